package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/stagecraft/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration utilities",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the pipeline configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		var cfg *config.PipelineConfig
		var err error
		if path != "" {
			cfg, err = config.Load(path)
		} else {
			cfg, err = config.LoadDefault()
		}
		if err != nil {
			return err
		}

		errs := config.Validate(cfg)
		if len(errs) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "config valid: %d stages (%s)\n",
				len(cfg.Pipeline.Stages), cfg.Pipeline.Version)
			return nil
		}
		for _, e := range errs {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", e.Error())
		}
		return fmt.Errorf("%d validation errors", len(errs))
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the stagecraft version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "stagecraft version %s\n", version)
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}
