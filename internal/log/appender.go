package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// MultiWriter fans each log line out to every appender.
type MultiWriter struct {
	writers []io.Writer
}

func (m *MultiWriter) Write(p []byte) (n int, err error) {
	for _, w := range m.writers {
		_, e := w.Write(p)
		if e != nil {
			err = e
		}
	}
	return len(p), err
}

func (m *MultiWriter) Add(writer io.Writer) *MultiWriter {
	m.writers = append(m.writers, writer)
	return m
}

// Len returns the number of appenders.
func (m *MultiWriter) Len() int { return len(m.writers) }

// Close closes every appender that can be closed.
func (m *MultiWriter) Close() error {
	var first error
	for _, w := range m.writers {
		if w == os.Stdout || w == os.Stderr {
			continue
		}
		if c, ok := w.(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

func NewMultiWriter() *MultiWriter {
	return &MultiWriter{writers: make([]io.Writer, 0)}
}

// ConsoleAppenderOpt selects the console stream.
type ConsoleAppenderOpt struct {
	Stream string `mapstructure:"stream"` // stderr (default) | stdout
}

func (m *MultiWriter) AddConsoleAppender(options ConsoleAppenderOpt) *MultiWriter {
	if strings.EqualFold(options.Stream, "stdout") {
		return m.Add(os.Stdout)
	}
	// stdout carries converted messages
	return m.Add(os.Stderr)
}

// AddAppender decodes cfg.Options for the appender type and attaches it.
func (m *MultiWriter) AddAppender(cfg AppenderConfig) error {
	switch strings.ToLower(cfg.Type) {
	case "", "console":
		var opt ConsoleAppenderOpt
		if err := decodeOptions(cfg.Options, &opt); err != nil {
			return fmt.Errorf("console appender: %w", err)
		}
		m.AddConsoleAppender(opt)
	case "file":
		var opt FileAppenderOpt
		if err := decodeOptions(cfg.Options, &opt); err != nil {
			return fmt.Errorf("file appender: %w", err)
		}
		if opt.Filename == "" {
			return fmt.Errorf("file appender requires 'filename' option")
		}
		m.AddFileAppender(opt)
	default:
		return fmt.Errorf("unsupported appender type: %s", cfg.Type)
	}
	return nil
}

func decodeOptions(in map[string]interface{}, out interface{}) error {
	if len(in) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}
