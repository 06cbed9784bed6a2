package log

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  logrus.Level
	}{
		{"trace", logrus.TraceLevel},
		{"DEBUG", logrus.DebugLevel},
		{"info", logrus.InfoLevel},
		{"warn", logrus.WarnLevel},
		{"warning", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"critical", logrus.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, level)
		})
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestFormatter(t *testing.T) {
	var buf bytes.Buffer
	l, err := newWithWriter(&LoggerConfig{
		Level:   "debug",
		Pattern: "[%level] %field%msg%n",
	}, &buf)
	require.NoError(t, err)

	l.WithFields(map[string]interface{}{"b": 2, "a": "x"}).Debugf("framed %d", 3)
	l.WithError(errors.New("boom")).Warn("skipped")
	l.Critical("schema missing")
	l.Trace("hidden")

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "[debug] a=x,b=2 framed 3", lines[0])
	assert.Equal(t, "[warning] error=boom skipped", lines[1])
	assert.Equal(t, "[critical] schema missing", lines[2])

	assert.True(t, l.IsDebugEnabled())
	assert.False(t, l.IsTraceEnabled())
}

func TestNew_FileAppender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edie.log")
	l, err := New(&LoggerConfig{
		Level:   "info",
		Pattern: "%msg%n",
		Appenders: []AppenderConfig{{
			Type:    "file",
			Options: map[string]interface{}{"filename": path, "max_size_mb": "1"},
		}},
	})
	require.NoError(t, err)
	l.Info("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  LoggerConfig
	}{
		{"bad level", LoggerConfig{Level: "nope"}},
		{"unknown appender", LoggerConfig{Appenders: []AppenderConfig{{Type: "loki"}}}},
		{"file without name", LoggerConfig{Appenders: []AppenderConfig{{Type: "file"}}}},
		{"unknown option", LoggerConfig{Appenders: []AppenderConfig{{
			Type: "console", Options: map[string]interface{}{"colour": true},
		}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(&tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestGetLogger_Default(t *testing.T) {
	assert.NotNil(t, GetLogger())
}
