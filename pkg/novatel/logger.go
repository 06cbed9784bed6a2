package novatel

import "sync/atomic"

// Logger receives diagnostics from the decode and encode paths. Any
// internal/log.Logger satisfies it.
type Logger interface {
	Tracef(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Tracef(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

type loggerHolder struct{ Logger }

var pkgLogger atomic.Value

func init() {
	pkgLogger.Store(loggerHolder{nopLogger{}})
}

// SetLogger replaces the package logger. A nil logger silences output.
func SetLogger(l Logger) {
	if l == nil {
		l = nopLogger{}
	}
	pkgLogger.Store(loggerHolder{l})
}

func logger() Logger {
	return pkgLogger.Load().(loggerHolder).Logger
}
