package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/stagecraft/internal/pipeline"
	"github.com/lucasnoah/stagecraft/internal/validate"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent execution events",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		limit, _ := cmd.Flags().GetInt("limit")
		events, err := a.db.RecentEvents(a.cfg.Pipeline.Name, limit)
		if err != nil {
			return err
		}
		if format, _ := cmd.Flags().GetString("format"); format == "json" {
			return writeJSON(cmd, events)
		}
		if len(events) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No events.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tSTAGE\tEVENT\tROUNDS\tSTEPS\tAGENTS\tSCORES\tDETAIL")
		for _, e := range events {
			scores := make([]string, len(e.Scores))
			for i, s := range e.Scores {
				scores[i] = fmt.Sprintf("%.2f", s)
			}
			detail := e.Detail
			if len(detail) > 50 {
				detail = detail[:47] + "..."
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
				e.Timestamp, e.Stage, e.Event, e.Rounds, e.Steps, e.Agents, strings.Join(scores, ","), detail)
		}
		return w.Flush()
	},
}

var complianceCmd = &cobra.Command{
	Use:   "compliance",
	Short: "Check that every stage recorded an execution event",
	Long: `A pipeline is compliant when every stage has at least one debate,
sequential, or single-agent execution event in the log. Exit code 0 means
compliant, 1 means violations, 2 means the pipeline has not yet reached
every stage.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		missing, err := a.orch.Compliance()
		if err != nil {
			return err
		}
		prog, err := a.store.Progress()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(missing) == 0 {
			fmt.Fprintln(out, "compliant: every stage recorded an execution event")
			return nil
		}

		// Stages never reached are findings, not violations.
		var violations, unreached []string
		for _, stage := range missing {
			if prog.Done(stage) {
				violations = append(violations, stage)
			} else {
				unreached = append(unreached, stage)
			}
		}
		if len(violations) > 0 {
			fmt.Fprintf(out, "violations — finished stages without execution events: %s\n", strings.Join(violations, ", "))
		}
		if len(unreached) > 0 {
			fmt.Fprintf(out, "not yet executed: %s\n", strings.Join(unreached, ", "))
		}

		cleanup()
		if len(violations) > 0 {
			os.Exit(1)
		}
		os.Exit(2)
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate [stage]",
	Short: "Run output validation for a stage",
	Long: `Validates a stage's required artifacts and, for code-producing stages,
its build and test gates. Defaults to the current stage. Exit code 0 means
all checks passed, 1 means critical failures, 2 means only high or medium
findings.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		stageID := ""
		if len(args) == 1 {
			stageID = args[0]
		} else {
			state, err := a.store.State()
			if err != nil {
				return err
			}
			stageID = state.CurrentStage
		}
		if stageID == pipeline.StageComplete {
			return fmt.Errorf("pipeline is complete; name a stage to validate")
		}
		stage := a.cfg.Pipeline.StageByID(stageID)
		if stage == nil {
			return fmt.Errorf("unknown stage %q", stageID)
		}

		report, err := a.validator.Validate(cmd.Context(), stage)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(report.FailedChecks) == 0 {
			fmt.Fprintf(out, "stage %s: all checks passed (score %.2f)\n", stageID, report.Score)
			return nil
		}
		fmt.Fprintf(out, "stage %s: %d failed checks (score %.2f)\n", stageID, len(report.FailedChecks), report.Score)
		for _, c := range report.FailedChecks {
			fmt.Fprintf(out, "  [%s] %s: %s\n", c.Severity, c.Name, c.Detail)
		}

		cleanup()
		os.Exit(validate.ExitCode(report))
		return nil
	},
}

func init() {
	eventsCmd.Flags().Int("limit", 20, "Maximum events to show")
	eventsCmd.Flags().String("format", "text", "Output format: text or json")
}
