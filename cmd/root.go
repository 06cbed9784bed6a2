// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/edie/internal/config"
	"firestige.xyz/edie/internal/log"
	"firestige.xyz/edie/pkg/novatel"
	"firestige.xyz/edie/pkg/schema"

	// register built-in sources and reporters
	_ "firestige.xyz/edie/plugins"
)

var (
	// Global flags
	configFile  string
	schemaPaths []string
	logLevel    string

	appCfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "edie",
	Short: "EDIE - NovAtel OEM receiver message framer, decoder and encoder",
	Long: `EDIE frames, decodes, filters and re-encodes the messages of NovAtel OEM
receivers. Logs may be ASCII, abbreviated ASCII, binary, short binary, NMEA
or JSON, mixed freely in one stream. Message layouts come from a JSON or YAML
message database.

Examples:
  edie convert -s messages.json -i log.gps -f json -o log.json
  edie convert -c edie.yml
  edie command -s messages.json "LOG COM1 BESTPOSA ONTIME 1"
  edie frame log.gps`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path")
	rootCmd.PersistentFlags().StringSliceVarP(&schemaPaths, "schema", "s", nil,
		"message database (JSON or YAML), repeatable; overrides schema.paths")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level: trace, debug, info, warn, error, critical")

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(commandCmd)
	rootCmd.AddCommand(frameCmd)
	rootCmd.AddCommand(validateCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configFile, schemaPaths, logLevel)
	if err != nil {
		return err
	}
	if err := log.Init(&cfg.Log); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	novatel.SetLogger(log.GetLogger().WithField("component", "novatel"))
	appCfg = cfg
	return nil
}

// loadConfig reads path, or the defaults when path is empty, and applies
// the command line overrides.
func loadConfig(path string, schemas []string, level string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path == "" {
		cfg, err = config.Default()
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, err
	}
	if len(schemas) > 0 {
		cfg.Schema.Paths = schemas
	}
	if level != "" {
		if _, err := log.ParseLevel(level); err != nil {
			return nil, fmt.Errorf("invalid log level: %s", level)
		}
		cfg.Log.Level = level
	}
	return cfg, nil
}

func loadDatabase(cfg *config.Config) (*schema.Database, error) {
	if len(cfg.Schema.Paths) == 0 {
		return nil, fmt.Errorf("no message database, set schema.paths or --schema")
	}
	db, err := schema.LoadAll(cfg.Schema.Paths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load message database: %w", err)
	}
	return db, nil
}
