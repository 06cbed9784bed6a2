package log

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// LoggerConfig is the `log:` configuration section.
type LoggerConfig struct {
	Pattern      string           `mapstructure:"pattern"`
	Time         string           `mapstructure:"time"`
	Level        string           `mapstructure:"level"`
	ReportCaller bool             `mapstructure:"report_caller"`
	Appenders    []AppenderConfig `mapstructure:"appenders"`
}

// AppenderConfig names an appender type and its type-specific options.
type AppenderConfig struct {
	Type    string                 `mapstructure:"type"`
	Options map[string]interface{} `mapstructure:"options"`
}

const criticalField = "critical"

type logrusAdapter struct {
	entry *logrus.Entry
}

// ParseLevel accepts the logrus level names plus "critical", which is
// filtered like error.
func ParseLevel(s string) (logrus.Level, error) {
	if strings.EqualFold(s, criticalField) {
		return logrus.ErrorLevel, nil
	}
	return logrus.ParseLevel(s)
}

// New builds a Logger from cfg without touching the process logger.
func New(cfg *LoggerConfig) (Logger, error) {
	if cfg == nil {
		cfg = &LoggerConfig{}
	}
	out := NewMultiWriter()
	for _, a := range cfg.Appenders {
		if err := out.AddAppender(a); err != nil {
			return nil, err
		}
	}
	if out.Len() == 0 {
		out.AddConsoleAppender(ConsoleAppenderOpt{})
	}
	return newWithWriter(cfg, out)
}

func newWithWriter(cfg *LoggerConfig, w io.Writer) (Logger, error) {
	level := logrus.InfoLevel
	if cfg.Level != "" {
		var err error
		level, err = ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}
	l := logrus.New()
	l.SetFormatter(newFormatter(cfg.Pattern, cfg.Time))
	l.SetLevel(level)
	l.SetReportCaller(cfg.ReportCaller)
	l.SetOutput(w)
	return &logrusAdapter{entry: logrus.NewEntry(l)}, nil
}

func (l *logrusAdapter) Print(args ...interface{})                 { l.entry.Print(args...) }
func (l *logrusAdapter) Printf(format string, args ...interface{}) { l.entry.Printf(format, args...) }

func (l *logrusAdapter) Trace(args ...interface{})                 { l.entry.Trace(args...) }
func (l *logrusAdapter) Tracef(format string, args ...interface{}) { l.entry.Tracef(format, args...) }

func (l *logrusAdapter) Debug(args ...interface{})                 { l.entry.Debug(args...) }
func (l *logrusAdapter) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }

func (l *logrusAdapter) Info(args ...interface{})                 { l.entry.Info(args...) }
func (l *logrusAdapter) Infof(format string, args ...interface{}) { l.entry.Infof(format, args...) }

func (l *logrusAdapter) Warn(args ...interface{})                 { l.entry.Warn(args...) }
func (l *logrusAdapter) Warnf(format string, args ...interface{}) { l.entry.Warnf(format, args...) }

func (l *logrusAdapter) Error(args ...interface{})                 { l.entry.Error(args...) }
func (l *logrusAdapter) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l *logrusAdapter) Critical(args ...interface{}) {
	l.entry.WithField(criticalField, true).Error(args...)
}
func (l *logrusAdapter) Criticalf(format string, args ...interface{}) {
	l.entry.WithField(criticalField, true).Errorf(format, args...)
}

func (l *logrusAdapter) Fatal(args ...interface{})                 { l.entry.Fatal(args...) }
func (l *logrusAdapter) Fatalf(format string, args ...interface{}) { l.entry.Fatalf(format, args...) }

func (l *logrusAdapter) Panic(args ...interface{})                 { l.entry.Panic(args...) }
func (l *logrusAdapter) Panicf(format string, args ...interface{}) { l.entry.Panicf(format, args...) }

func (l *logrusAdapter) WithField(field string, value interface{}) Logger {
	return &logrusAdapter{entry: l.entry.WithField(field, value)}
}
func (l *logrusAdapter) WithFields(fields map[string]interface{}) Logger {
	return &logrusAdapter{entry: l.entry.WithFields(fields)}
}
func (l *logrusAdapter) WithError(err error) Logger {
	return &logrusAdapter{entry: l.entry.WithError(err)}
}

func (l *logrusAdapter) IsTraceEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.TraceLevel)
}
func (l *logrusAdapter) IsDebugEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.DebugLevel)
}
func (l *logrusAdapter) IsInfoEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.InfoLevel)
}
