package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/stagecraft/internal/orchestrator"
	"github.com/lucasnoah/stagecraft/internal/pipeline"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize pipeline state for the project",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		p := &a.cfg.Pipeline
		ids := p.StageIDs()
		if len(ids) == 0 {
			return errors.New("config declares no stages")
		}
		state, err := a.store.Init(p.Name, p.Version, ids[0], ids)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "initialized %s (%s, %d stages), first stage %s\n",
			state.Project, state.Version, len(ids), state.CurrentStage)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline from its current stage until completion or pause",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		err = a.orch.Run(cmd.Context())
		if errors.Is(err, orchestrator.ErrPaused) {
			state, stateErr := a.store.State()
			if stateErr == nil && state.PausedReason != "" {
				return fmt.Errorf("pipeline paused: %s", state.PausedReason)
			}
		}
		return err
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline state and per-stage progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		state, err := a.store.State()
		if err != nil {
			return err
		}
		prog, err := a.store.Progress()
		if err != nil {
			return err
		}

		if format, _ := cmd.Flags().GetString("format"); format == "json" {
			return writeJSON(cmd, map[string]interface{}{
				"state":    state,
				"progress": prog,
			})
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "project: %s (%s)\n", state.Project, state.Version)
		fmt.Fprintf(out, "status:  %s", state.Status)
		if state.PausedReason != "" {
			fmt.Fprintf(out, " (%s)", state.PausedReason)
		}
		fmt.Fprintf(out, "\ncurrent: %s\n\n", state.CurrentStage)

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STAGE\tSTATUS\tATTEMPTS\tCHECKPOINT")
		for _, s := range a.cfg.Pipeline.Stages {
			sp := prog[s.ID]
			status := sp.Status
			if status == "" {
				status = "pending"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.ID, status, sp.Attempts, sp.CheckpointID)
		}
		return w.Flush()
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Request a cooperative pipeline pause",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		reason, _ := cmd.Flags().GetString("reason")
		if err := a.orch.Pause(reason); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "pipeline paused")
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Clear a paused state and continue the pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := a.orch.Resume(); err != nil {
			return err
		}
		return a.orch.Run(cmd.Context())
	},
}

var skipCmd = &cobra.Command{
	Use:   "skip <stage>",
	Short: "Mark a stage skipped and advance past it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := a.orch.Skip(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stage %s skipped\n", args[0])
		return nil
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Resume a pipeline paused by retry exhaustion and retry the stage",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		// A fresh ladder, not a continuation of the exhausted one.
		if err := a.store.UpdateState(func(st *pipeline.PipelineState) {
			st.RetryState = nil
		}); err != nil {
			return err
		}
		if err := a.orch.Resume(); err != nil {
			return err
		}
		return a.orch.Run(cmd.Context())
	},
}

func init() {
	statusCmd.Flags().String("format", "text", "Output format: text or json")
	pauseCmd.Flags().String("reason", "operator request", "Reason recorded with the pause")
}
