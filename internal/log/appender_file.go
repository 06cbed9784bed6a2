package log

import "gopkg.in/natefinch/lumberjack.v2"

// FileAppenderOpt configures a rotating log file. Zero sizes fall back to
// lumberjack's own defaults.
type FileAppenderOpt struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	LocalTime  bool   `mapstructure:"local_time"`
}

func newRotatingFile(options FileAppenderOpt) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   options.Filename,
		MaxSize:    options.MaxSizeMB,
		MaxBackups: options.MaxBackups,
		MaxAge:     options.MaxAgeDays,
		Compress:   options.Compress,
		LocalTime:  options.LocalTime,
	}
}

func (m *MultiWriter) AddFileAppender(options FileAppenderOpt) *MultiWriter {
	return m.Add(newRotatingFile(options))
}
