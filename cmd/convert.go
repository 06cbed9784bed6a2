package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/edie/internal/config"
	"firestige.xyz/edie/internal/log"
	"firestige.xyz/edie/internal/metrics"
	"firestige.xyz/edie/internal/pipeline"
	"firestige.xyz/edie/pkg/novatel"
	"firestige.xyz/edie/pkg/plugin"
	"firestige.xyz/edie/plugins/reporter/api"
	"firestige.xyz/edie/plugins/reporter/console"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Decode a log and write it in another format",
	Long: `Read messages from the configured input, apply the filter and write every
message in the chosen encode format to the configured reporters.

Command line flags override the configuration file. Without reporters the
converted stream is written to stdout.

Examples:
  edie convert -s messages.json -i log.gps -f json
  edie convert -s messages.json -i capture.pcapng --input-type pcap -o out.asc
  edie convert -c edie.yml --metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runConvert(ctx, appCfg, convertOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

type convertOptions struct {
	Input         string
	InputType     string
	Format        string
	Output        string
	UnknownOutput string
	Metrics       bool
	Stats         bool
}

var convertOpts convertOptions

func init() {
	f := convertCmd.Flags()
	f.StringVarP(&convertOpts.Input, "input", "i", "", "input path, overrides input.options.path")
	f.StringVar(&convertOpts.InputType, "input-type", "", "input plugin: file or pcap")
	f.StringVarP(&convertOpts.Format, "format", "f", "",
		"encode format: ASCII, ABBREV_ASCII, BINARY, FLATTENED_BINARY or JSON")
	f.StringVarP(&convertOpts.Output, "output", "o", "",
		"output file, '-' for stdout; replaces configured reporters")
	f.StringVar(&convertOpts.UnknownOutput, "unknown-output", "",
		"file receiving bytes that belong to no message")
	f.BoolVar(&convertOpts.Metrics, "metrics", false, "serve Prometheus metrics while converting")
	f.BoolVar(&convertOpts.Stats, "stats", true, "print a summary when done")
}

// applyConvertOptions folds the command line flags into cfg.
func applyConvertOptions(cfg *config.Config, opts convertOptions) error {
	if opts.InputType != "" {
		cfg.Input.Type = opts.InputType
	}
	if opts.Input != "" {
		if cfg.Input.Options == nil {
			cfg.Input.Options = map[string]any{}
		}
		cfg.Input.Options["path"] = opts.Input
	}
	if opts.Format != "" {
		cfg.Parser.EncodeFormat = opts.Format
		if _, err := cfg.Parser.Format(); err != nil {
			return err
		}
	}
	switch opts.Output {
	case "":
	case "-":
		cfg.Reporters = nil
	default:
		cfg.Reporters = []config.PluginConfig{{Type: "file", Options: map[string]any{"filename": opts.Output}}}
	}
	if opts.UnknownOutput != "" {
		cfg.UnknownReporters = []config.PluginConfig{{Type: "file", Options: map[string]any{"filename": opts.UnknownOutput}}}
	}
	if opts.Metrics {
		cfg.Metrics.Enabled = true
	}
	return nil
}

func newReporters(cfgs []config.PluginConfig) ([]plugin.Reporter, error) {
	reporters := make([]plugin.Reporter, 0, len(cfgs))
	for _, rc := range cfgs {
		r, err := plugin.NewReporter(rc.Type, rc.Options)
		if err != nil {
			return nil, err
		}
		reporters = append(reporters, r)
	}
	return reporters, nil
}

func buildPipeline(cfg *config.Config, stdout io.Writer) (*pipeline.Pipeline, error) {
	db, err := loadDatabase(cfg)
	if err != nil {
		return nil, err
	}
	opts, err := cfg.Parser.Options()
	if err != nil {
		return nil, err
	}
	filter, err := cfg.Filter.Build()
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	src, err := plugin.NewSource(cfg.Input.Type, cfg.Input.Options)
	if err != nil {
		return nil, err
	}
	reporters, err := newReporters(cfg.Reporters)
	if err != nil {
		return nil, err
	}
	if len(reporters) == 0 {
		reporters = append(reporters, console.NewWriterReporter(stdout, api.EncodingRaw))
	}
	unknown, err := newReporters(cfg.UnknownReporters)
	if err != nil {
		return nil, err
	}

	return pipeline.NewBuilder().
		WithSource(src).
		WithDatabase(db).
		WithParserOptions(append(opts, novatel.WithFilter(filter))...).
		WithReporters(reporters...).
		WithUnknownReporters(unknown...).
		Build()
}

func runConvert(ctx context.Context, cfg *config.Config, opts convertOptions, stdout, stderr io.Writer) error {
	if err := applyConvertOptions(cfg, opts); err != nil {
		return err
	}
	p, err := buildPipeline(cfg, stdout)
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Stop(shutdownCtx); err != nil {
				log.GetLogger().WithError(err).Warn("metrics server shutdown failed")
			}
		}()
	}

	start := time.Now()
	if err := p.Start(ctx); err != nil {
		return err
	}
	runErr := p.Wait()
	stopErr := p.Stop()

	if opts.Stats {
		s := p.Stats()
		fmt.Fprintf(stderr, "messages=%d unknown=%d (%d bytes) skipped=%d reported=%d errors=%d read=%.1f%% in %s\n",
			s.Messages, s.Unknown, s.UnknownBytes, s.Skipped, s.Reported, s.ReportErrors,
			s.PercentRead, time.Since(start).Round(time.Millisecond))
		for _, iv := range p.Intervals() {
			fmt.Fprintf(stderr, "interval %s n=%d mean=%.3fms std=%.3fms min=%.3fms max=%.3fms\n",
				iv.Message, iv.Count, iv.MeanMs, iv.StdMs, iv.MinMs, iv.MaxMs)
		}
	}
	return errors.Join(runErr, stopErr)
}
