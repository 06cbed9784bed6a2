package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/edie/internal/config"
	"firestige.xyz/edie/pkg/plugin"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and message database",
	Long: `Load the configuration and every message database document without
reading any input. Reports the number of messages and enumerations and checks
that the configured input and reporters exist.

Examples:
  edie validate -c edie.yml
  edie validate -s messages.json -s custom.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(appCfg, cmd.OutOrStdout())
	},
}

func runValidate(cfg *config.Config, w io.Writer) error {
	db, err := loadDatabase(cfg)
	if err != nil {
		return err
	}
	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return err
	}
	if _, err := plugin.GetSourceFactory(cfg.Input.Type); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	for _, r := range append(append([]config.PluginConfig(nil), cfg.Reporters...), cfg.UnknownReporters...) {
		if _, err := plugin.GetReporterFactory(r.Type); err != nil {
			return fmt.Errorf("reporter: %w", err)
		}
	}
	format, _ := cfg.Parser.Format()
	_, err = fmt.Fprintf(w, "VALID: %d message(s), %d enum(s), input %q, %d reporter(s), output %s\n",
		len(db.Messages), len(db.Enums), cfg.Input.Type, len(cfg.Reporters)+len(cfg.UnknownReporters), format)
	return err
}
