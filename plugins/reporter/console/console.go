// Package console implements console reporter.
// Writes each message to stdout, either as the parser encoded it or as a
// decoded record.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"firestige.xyz/edie/internal/log"
	"firestige.xyz/edie/pkg/novatel"
	"firestige.xyz/edie/pkg/plugin"
	"firestige.xyz/edie/plugins/reporter/api"
)

// ConsoleReporter outputs messages to the console.
type ConsoleReporter struct {
	name          string
	encoding      api.Encoding
	mu            sync.Mutex
	out           io.Writer
	reportedCount atomic.Uint64
}

// NewConsoleReporter creates a new console reporter.
func NewConsoleReporter() plugin.Reporter {
	return &ConsoleReporter{
		name:     "console",
		encoding: api.EncodingRaw,
		out:      os.Stdout,
	}
}

// NewWriterReporter returns a console reporter writing to w.
func NewWriterReporter(w io.Writer, enc api.Encoding) *ConsoleReporter {
	return &ConsoleReporter{name: "console", encoding: enc, out: w}
}

func (r *ConsoleReporter) Name() string {
	return r.name
}

// Init reads the optional "encoding" (raw, json, text) and "stream"
// (stdout, stderr) options.
func (r *ConsoleReporter) Init(config map[string]any) error {
	if config == nil {
		return nil
	}
	if v, ok := config["encoding"]; ok {
		s, _ := v.(string)
		enc, err := api.ParseEncoding(s)
		if err != nil {
			return err
		}
		if enc == api.EncodingProto {
			return fmt.Errorf("encoding %q is not printable", enc)
		}
		r.encoding = enc
	}
	if stream, ok := config["stream"].(string); ok {
		switch stream {
		case "stdout":
			r.out = os.Stdout
		case "stderr":
			r.out = os.Stderr
		default:
			return fmt.Errorf("invalid stream %q, must be stdout or stderr", stream)
		}
	}
	return nil
}

func (r *ConsoleReporter) Start(ctx context.Context) error {
	log.GetLogger().WithField("encoding", string(r.encoding)).Debug("console reporter started")
	return nil
}

func (r *ConsoleReporter) Stop(ctx context.Context) error {
	log.GetLogger().WithField("total_reported", r.reportedCount.Load()).Debug("console reporter stopped")
	return nil
}

// Report writes one message.
func (r *ConsoleReporter) Report(ctx context.Context, res *novatel.Result) error {
	if res == nil {
		return fmt.Errorf("nil result")
	}
	data, err := api.Marshal(res, r.encoding)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.out.Write(data); err != nil {
		return fmt.Errorf("console write failed: %w", err)
	}
	r.reportedCount.Add(1)
	return nil
}

// Flush is a no-op for console reporter (stdout is unbuffered).
func (r *ConsoleReporter) Flush(ctx context.Context) error {
	return nil
}

// Reported returns the number of messages written.
func (r *ConsoleReporter) Reported() uint64 {
	return r.reportedCount.Load()
}
