// Package file implements a reporter that writes messages to a rotating file.
package file

import (
	"bufio"
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mitchellh/mapstructure"
	"google.golang.org/protobuf/encoding/protowire"
	"gopkg.in/natefinch/lumberjack.v2"

	"firestige.xyz/edie/internal/log"
	"firestige.xyz/edie/pkg/novatel"
	"firestige.xyz/edie/pkg/plugin"
	"firestige.xyz/edie/plugins/reporter/api"
)

// Config represents file reporter configuration.
type Config struct {
	Filename   string `mapstructure:"filename"` // required
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	Encoding   string `mapstructure:"encoding"` // raw|json|proto|text, default raw
}

// FileReporter appends every message to a file, rotating it by size.
type FileReporter struct {
	name     string
	config   Config
	encoding api.Encoding

	mu  sync.Mutex
	out *lumberjack.Logger
	buf *bufio.Writer

	reportedCount atomic.Uint64
}

func NewFileReporter() plugin.Reporter {
	return &FileReporter{name: "file"}
}

func (r *FileReporter) Name() string {
	return r.name
}

func (r *FileReporter) Init(config map[string]any) error {
	cfg := Config{MaxSizeMB: 100, Encoding: string(api.EncodingRaw)}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(config); err != nil {
		return fmt.Errorf("invalid file reporter config: %w", err)
	}
	if cfg.Filename == "" {
		return fmt.Errorf("filename is required")
	}
	enc, err := api.ParseEncoding(cfg.Encoding)
	if err != nil {
		return err
	}
	r.config = cfg
	r.encoding = enc
	return nil
}

func (r *FileReporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = &lumberjack.Logger{
		Filename:   r.config.Filename,
		MaxSize:    r.config.MaxSizeMB,
		MaxBackups: r.config.MaxBackups,
		MaxAge:     r.config.MaxAgeDays,
		Compress:   r.config.Compress,
	}
	r.buf = bufio.NewWriterSize(r.out, 64*1024)
	log.GetLogger().WithFields(map[string]interface{}{
		"filename": r.config.Filename,
		"encoding": string(r.encoding),
	}).Info("file reporter started")
	return nil
}

func (r *FileReporter) Report(ctx context.Context, res *novatel.Result) error {
	if res == nil {
		return fmt.Errorf("nil result")
	}
	data, err := api.Marshal(res, r.encoding)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.buf == nil {
		return fmt.Errorf("file reporter not started")
	}
	if r.encoding == api.EncodingProto {
		// length-delimited so the file can be split back into records
		if _, err := r.buf.Write(protowire.AppendVarint(nil, uint64(len(data)))); err != nil {
			return err
		}
	}
	if _, err := r.buf.Write(data); err != nil {
		return fmt.Errorf("file write failed: %w", err)
	}
	r.reportedCount.Add(1)
	return nil
}

func (r *FileReporter) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.buf == nil {
		return nil
	}
	return r.buf.Flush()
}

func (r *FileReporter) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.out == nil {
		return nil
	}
	err := r.buf.Flush()
	if cerr := r.out.Close(); err == nil {
		err = cerr
	}
	r.out, r.buf = nil, nil
	log.GetLogger().WithField("total_reported", r.reportedCount.Load()).Info("file reporter stopped")
	return err
}
