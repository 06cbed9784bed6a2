// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"firestige.xyz/edie/internal/log"
	"firestige.xyz/edie/pkg/novatel"
)

// Config is the `edie:` section of the configuration file.
type Config struct {
	Log              log.LoggerConfig `mapstructure:"log"`
	Schema           SchemaConfig     `mapstructure:"schema"`
	Parser           ParserConfig     `mapstructure:"parser"`
	Filter           FilterConfig     `mapstructure:"filter"`
	Input            PluginConfig     `mapstructure:"input"`
	Reporters        []PluginConfig   `mapstructure:"reporters"`
	UnknownReporters []PluginConfig   `mapstructure:"unknown_reporters"`
	Metrics          MetricsConfig    `mapstructure:"metrics"`
}

// SchemaConfig lists message database documents, merged in order.
type SchemaConfig struct {
	Paths []string `mapstructure:"paths"`
}

// ParserConfig mirrors the novatel.Parser options.
type ParserConfig struct {
	EncodeFormat          string `mapstructure:"encode_format"`
	FrameJSON             bool   `mapstructure:"frame_json"`
	IgnoreAbbrevResponses bool   `mapstructure:"ignore_abbrev_responses"`
	ReturnUnknownBytes    bool   `mapstructure:"return_unknown_bytes"`
	DecompressRangeCmp    bool   `mapstructure:"decompress_rangecmp"`
}

// MessageFilterConfig selects a message by name or, when Name is empty, by ID.
type MessageFilterConfig struct {
	Name   string `mapstructure:"name"`
	ID     uint32 `mapstructure:"id"`
	Format string `mapstructure:"format"` // header format name, default ALL
	Source string `mapstructure:"source"` // primary | secondary
}

// GPSTimeConfig is a GPS week and seconds into the week.
type GPSTimeConfig struct {
	Week    uint16  `mapstructure:"week"`
	Seconds float64 `mapstructure:"seconds"`
}

// FilterConfig configures the parser's message filter.
type FilterConfig struct {
	Messages         []MessageFilterConfig `mapstructure:"messages"`
	InvertMessages   bool                  `mapstructure:"invert_messages"`
	TimeStatus       []string              `mapstructure:"time_status"`
	InvertTimeStatus bool                  `mapstructure:"invert_time_status"`
	LowerTime        *GPSTimeConfig        `mapstructure:"lower_time"`
	UpperTime        *GPSTimeConfig        `mapstructure:"upper_time"`
	InvertTime       bool                  `mapstructure:"invert_time"`
	DecimationMs     uint64                `mapstructure:"decimation_ms"`
	InvertDecimation bool                  `mapstructure:"invert_decimation"`
	IncludeNMEA      bool                  `mapstructure:"include_nmea"`
}

// PluginConfig names a registered source or reporter and its options.
type PluginConfig struct {
	Type    string         `mapstructure:"type"`
	Options map[string]any `mapstructure:"options"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// configRoot is the top-level wrapper matching the YAML structure `edie: ...`.
type configRoot struct {
	Edie Config `mapstructure:"edie"`
}

// Load reads the configuration file at path. Environment variables override
// file values through the key path, e.g. EDIE_PARSER_ENCODE_FORMAT.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return load(v)
}

// Default returns the configuration used when no file is given.
func Default() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Edie
	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use the "edie." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("edie.log.level", "info")
	v.SetDefault("edie.log.pattern", log.DefaultPattern)
	v.SetDefault("edie.log.time", log.DefaultTime)

	v.SetDefault("edie.parser.encode_format", "ASCII")
	v.SetDefault("edie.parser.frame_json", false)
	v.SetDefault("edie.parser.ignore_abbrev_responses", true)
	v.SetDefault("edie.parser.return_unknown_bytes", true)
	v.SetDefault("edie.parser.decompress_rangecmp", true)

	v.SetDefault("edie.input.type", "file")

	v.SetDefault("edie.metrics.enabled", false)
	v.SetDefault("edie.metrics.listen", ":9091")
	v.SetDefault("edie.metrics.path", "/metrics")
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *Config) ValidateAndApplyDefaults() error {
	if _, err := log.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", cfg.Log.Level)
	}
	if _, err := cfg.Parser.Format(); err != nil {
		return err
	}
	if _, err := cfg.Filter.Build(); err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	for i, r := range cfg.Reporters {
		if r.Type == "" {
			return fmt.Errorf("reporters[%d]: type is required", i)
		}
	}
	for i, r := range cfg.UnknownReporters {
		if r.Type == "" {
			return fmt.Errorf("unknown_reporters[%d]: type is required", i)
		}
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen is required when metrics.enabled=true")
	}
	return nil
}

// Format returns the configured output format.
func (p ParserConfig) Format() (novatel.EncodeFormat, error) {
	f, err := novatel.ParseEncodeFormat(p.EncodeFormat)
	if err != nil || f == novatel.EncodeUnspecified {
		return novatel.EncodeUnspecified, fmt.Errorf("invalid parser.encode_format: %q", p.EncodeFormat)
	}
	return f, nil
}

// Options converts the parser section into parser options.
func (p ParserConfig) Options() ([]novatel.ParserOption, error) {
	f, err := p.Format()
	if err != nil {
		return nil, err
	}
	return []novatel.ParserOption{
		novatel.WithEncodeFormat(f),
		novatel.WithFrameJSON(p.FrameJSON),
		novatel.WithIgnoreAbbrevASCIIResponses(p.IgnoreAbbrevResponses),
		novatel.WithReturnUnknownBytes(p.ReturnUnknownBytes),
		novatel.WithDecompressRangeCmp(p.DecompressRangeCmp),
	}, nil
}
