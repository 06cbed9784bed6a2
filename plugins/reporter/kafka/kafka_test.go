package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/edie/pkg/novatel"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaReporter_Init(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]any
		wantErr bool
	}{
		{"nil config", nil, true},
		{"missing brokers", map[string]any{"topic": "gnss"}, true},
		{"missing topic", map[string]any{"brokers": []any{"localhost:9092"}}, true},
		{"valid", map[string]any{"brokers": []any{"localhost:9092"}, "topic": "gnss"}, false},
		{"all options", map[string]any{
			"brokers":       []string{"a:9092", "b:9092"},
			"topic":         "gnss",
			"batch_size":    10,
			"batch_timeout": "50ms",
			"compression":   "lz4",
			"max_attempts":  "5",
			"encoding":      "proto",
		}, false},
		{"bad timeout", map[string]any{"brokers": []any{"a"}, "topic": "t", "batch_timeout": "soon"}, true},
		{"bad compression", map[string]any{"brokers": []any{"a"}, "topic": "t", "compression": "brotli"}, true},
		{"text encoding", map[string]any{"brokers": []any{"a"}, "topic": "t", "encoding": "text"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewKafkaReporter().(*KafkaReporter)
			err := r.Init(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, r.writer)
		})
	}
}

func TestKafkaReporter_InitOptions(t *testing.T) {
	r := NewKafkaReporter().(*KafkaReporter)
	require.NoError(t, r.Init(map[string]any{
		"brokers":       []any{"a:9092"},
		"topic":         "gnss",
		"batch_size":    10,
		"batch_timeout": "50ms",
		"compression":   "gzip",
	}))
	assert.Equal(t, 10, r.config.BatchSize)
	assert.Equal(t, 50*time.Millisecond, r.config.BatchTimeout)
	assert.Equal(t, defaultMaxAttempts, r.config.MaxAttempts)
	assert.Equal(t, "json", r.config.Encoding)

	w := r.writer.(*kafka.Writer)
	assert.Equal(t, compress.Gzip, w.Compression)
	assert.Equal(t, "gnss", w.Topic)
}

func TestKafkaReporter_Report(t *testing.T) {
	r := NewKafkaReporter().(*KafkaReporter)
	require.NoError(t, r.Init(map[string]any{"brokers": []any{"a:9092"}, "topic": "gnss", "encoding": "raw"}))
	fw := &fakeWriter{}
	r.writer = fw

	meta := novatel.NewMetaData()
	meta.MessageName = "BESTPOS"
	meta.Format = novatel.FormatBinary
	meta.Week = 2166
	res := &novatel.Result{Meta: meta, Data: novatel.MessageData{Message: []byte{0xAA, 0x44, 0x12}}}

	ctx := context.Background()
	require.NoError(t, r.Start(ctx))
	require.NoError(t, r.Report(ctx, res))
	require.Len(t, fw.msgs, 1)
	assert.Equal(t, "BESTPOS", string(fw.msgs[0].Key))
	assert.Equal(t, []byte{0xAA, 0x44, 0x12}, fw.msgs[0].Value)
	assert.Contains(t, fw.msgs[0].Headers, kafka.Header{Key: "format", Value: []byte("BINARY")})
	assert.Contains(t, fw.msgs[0].Headers, kafka.Header{Key: "week", Value: []byte("2166")})

	unknown := &novatel.Result{Meta: novatel.NewMetaData(), Data: novatel.MessageData{Message: []byte("junk")}}
	require.NoError(t, r.Report(ctx, unknown))
	assert.Equal(t, "UNKNOWN", string(fw.msgs[1].Key))

	fw.err = errors.New("broker down")
	assert.Error(t, r.Report(ctx, res))
	assert.Error(t, r.Report(ctx, nil))
	assert.Equal(t, uint64(2), r.reportedCount.Load())
	assert.Equal(t, uint64(1), r.errorCount.Load())

	require.NoError(t, r.Flush(ctx))
	require.NoError(t, r.Stop(ctx))
	assert.True(t, fw.closed)
}
