// Package kafka implements Kafka reporter plugin.
// Sends decoded messages to Kafka with batching, compression, and retry support.
package kafka

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"firestige.xyz/edie/internal/log"
	"firestige.xyz/edie/pkg/novatel"
	"firestige.xyz/edie/pkg/plugin"
	"firestige.xyz/edie/plugins/reporter/api"
)

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 100 * time.Millisecond
	defaultCompression  = "snappy"
	defaultMaxAttempts  = 3
)

// messageWriter is the part of kafka.Writer the reporter uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaReporter sends messages to Kafka.
type KafkaReporter struct {
	name   string
	writer messageWriter
	config Config

	// Statistics
	reportedCount atomic.Uint64
	errorCount    atomic.Uint64
}

// Config represents Kafka reporter configuration.
type Config struct {
	Brokers      []string      `mapstructure:"brokers"`       // required
	Topic        string        `mapstructure:"topic"`         // required
	BatchSize    int           `mapstructure:"batch_size"`    // optional, default 100
	BatchTimeout time.Duration `mapstructure:"batch_timeout"` // optional, default 100ms
	Compression  string        `mapstructure:"compression"`   // optional: none|gzip|snappy|lz4|zstd, default snappy
	MaxAttempts  int           `mapstructure:"max_attempts"`  // optional, default 3
	Encoding     string        `mapstructure:"encoding"`      // optional: raw|json|proto, default json
}

// NewKafkaReporter creates a new Kafka reporter.
func NewKafkaReporter() plugin.Reporter {
	return &KafkaReporter{
		name: "kafka",
	}
}

// Name returns the plugin name.
func (r *KafkaReporter) Name() string {
	return r.name
}

// Init initializes the reporter with configuration.
func (r *KafkaReporter) Init(config map[string]any) error {
	if config == nil {
		return fmt.Errorf("kafka reporter requires configuration")
	}

	cfg := Config{
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
		Compression:  defaultCompression,
		MaxAttempts:  defaultMaxAttempts,
		Encoding:     string(api.EncodingJSON),
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(config); err != nil {
		return fmt.Errorf("invalid kafka config: %w", err)
	}
	if len(cfg.Brokers) == 0 {
		return fmt.Errorf("brokers is required")
	}
	if cfg.Topic == "" {
		return fmt.Errorf("topic is required")
	}
	enc, err := api.ParseEncoding(cfg.Encoding)
	if err != nil {
		return err
	}
	if enc == api.EncodingText {
		return fmt.Errorf("encoding %q is not supported by kafka reporter", enc)
	}
	cfg.Encoding = string(enc)

	codec, err := compressionCodec(cfg.Compression)
	if err != nil {
		return err
	}

	r.config = cfg
	r.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{}, // same message name, same partition
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		MaxAttempts:  cfg.MaxAttempts,
		Compression:  codec,
		Async:        false,
	}
	return nil
}

func compressionCodec(name string) (compress.Compression, error) {
	switch name {
	case "none", "":
		return 0, nil
	case "gzip":
		return compress.Gzip, nil
	case "snappy":
		return compress.Snappy, nil
	case "lz4":
		return compress.Lz4, nil
	case "zstd":
		return compress.Zstd, nil
	}
	return 0, fmt.Errorf("invalid compression type: %s", name)
}

// Start starts the reporter.
func (r *KafkaReporter) Start(ctx context.Context) error {
	log.GetLogger().WithFields(map[string]interface{}{
		"brokers":       r.config.Brokers,
		"topic":         r.config.Topic,
		"batch_size":    r.config.BatchSize,
		"batch_timeout": r.config.BatchTimeout,
		"compression":   r.config.Compression,
		"encoding":      r.config.Encoding,
	}).Info("kafka reporter started")
	return nil
}

// Stop closes the writer, flushing pending messages.
func (r *KafkaReporter) Stop(ctx context.Context) error {
	if r.writer != nil {
		if err := r.writer.Close(); err != nil {
			log.GetLogger().WithError(err).Error("error closing kafka writer")
			return err
		}
	}

	log.GetLogger().WithFields(map[string]interface{}{
		"total_reported": r.reportedCount.Load(),
		"total_errors":   r.errorCount.Load(),
	}).Info("kafka reporter stopped")
	return nil
}

// Report sends a message to Kafka, keyed by message name.
func (r *KafkaReporter) Report(ctx context.Context, res *novatel.Result) error {
	if res == nil {
		return fmt.Errorf("nil result")
	}
	msg, err := r.message(res)
	if err != nil {
		r.errorCount.Add(1)
		return fmt.Errorf("serialize message failed: %w", err)
	}

	if err := r.writer.WriteMessages(ctx, msg); err != nil {
		r.errorCount.Add(1)
		return fmt.Errorf("kafka write failed: %w", err)
	}

	r.reportedCount.Add(1)
	return nil
}

func (r *KafkaReporter) message(res *novatel.Result) (kafka.Message, error) {
	value, err := api.Marshal(res, api.Encoding(r.config.Encoding))
	if err != nil {
		return kafka.Message{}, err
	}
	key := res.Meta.MessageName
	if key == "" {
		key = "UNKNOWN"
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "format", Value: []byte(res.Meta.Format.String())},
			{Key: "encoding", Value: []byte(r.config.Encoding)},
			{Key: "week", Value: []byte(fmt.Sprint(res.Meta.Week))},
			{Key: "milliseconds", Value: []byte(fmt.Sprintf("%.0f", res.Meta.Milliseconds))},
		},
	}, nil
}

// Flush is a no-op; kafka.Writer batches by BatchSize and BatchTimeout and
// synchronous writes return after delivery.
func (r *KafkaReporter) Flush(ctx context.Context) error {
	return nil
}
