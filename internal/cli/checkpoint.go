package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/stagecraft/internal/checkpoint"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Create, list, restore, delete, and clean up state checkpoints",
}

var checkpointCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Snapshot the current project state",
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
		desc, _ := cmd.Flags().GetString("description")
		inc := checkpoint.Include{}
		inc.Stages, _ = cmd.Flags().GetBool("stages")
		inc.State, _ = cmd.Flags().GetBool("state")
		inc.Config, _ = cmd.Flags().GetBool("config-file")
		meta, err := a.checkpoints.Create(state.CurrentStage, desc, false, inc)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created checkpoint %s\n", meta.ID)
		return nil
	},
}

var checkpointListCmd = &cobra.Command{
	Use:   "list",
	Short: "List checkpoints, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		metas, err := a.checkpoints.List()
		if err != nil {
			return err
		}
		if format, _ := cmd.Flags().GetString("format"); format == "json" {
			return writeJSON(cmd, metas)
		}
		if len(metas) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No checkpoints.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTAGE\tCREATED\tMILESTONE\tDESCRIPTION")
		for _, m := range metas {
			milestone := ""
			if m.Milestone {
				milestone = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", m.ID, m.Stage, m.CreatedAt.Format("2006-01-02 15:04:05"), milestone, m.Description)
		}
		return w.Flush()
	},
}

var checkpointRestoreCmd = &cobra.Command{
	Use:   "restore <id> [path...]",
	Short: "Restore project state from a checkpoint",
	Long: `Restores the named checkpoint's copies over the current state. With no
paths, every included entry is restored; with paths, only those entries.
Restore is refused while a stage is in progress.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		// The manager itself refuses to restore while a stage is in progress.
		if err := a.checkpoints.Restore(args[0], args[1:]); err != nil {
			return err
		}
		scope := "all entries"
		if len(args) > 1 {
			scope = strings.Join(args[1:], ", ")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "restored %s from %s\n", scope, args[0])
		return nil
	},
}

var checkpointDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := a.checkpoints.Delete(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted checkpoint %s\n", args[0])
		return nil
	},
}

var checkpointCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Apply the retention policy to old checkpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		cp := a.cfg.Pipeline.Checkpoints
		deleted, err := a.checkpoints.Cleanup(cp.MaxRetention, cp.PreserveMilestones)
		if err != nil {
			return err
		}
		if len(deleted) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "nothing to clean up")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d checkpoints: %s\n", len(deleted), strings.Join(deleted, ", "))
		return nil
	},
}

func init() {
	checkpointCreateCmd.Flags().String("description", "", "Description stored with the checkpoint")
	checkpointCreateCmd.Flags().Bool("stages", true, "Include stage artifacts and handoffs")
	checkpointCreateCmd.Flags().Bool("state", true, "Include state.json and progress.json")
	checkpointCreateCmd.Flags().Bool("config-file", true, "Include the pipeline config file")
	checkpointListCmd.Flags().String("format", "text", "Output format: text or json")

	checkpointCmd.AddCommand(checkpointCreateCmd)
	checkpointCmd.AddCommand(checkpointListCmd)
	checkpointCmd.AddCommand(checkpointRestoreCmd)
	checkpointCmd.AddCommand(checkpointDeleteCmd)
	checkpointCmd.AddCommand(checkpointCleanupCmd)
}
