package console

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/edie/pkg/novatel"
	"firestige.xyz/edie/plugins/reporter/api"
)

func TestConsoleReporter_Init(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]any
		wantErr bool
		wantEnc api.Encoding
	}{
		{"nil config defaults to raw", nil, false, api.EncodingRaw},
		{"empty config defaults to raw", map[string]any{}, false, api.EncodingRaw},
		{"json encoding", map[string]any{"encoding": "json"}, false, api.EncodingJSON},
		{"text encoding", map[string]any{"encoding": "text"}, false, api.EncodingText},
		{"proto is not printable", map[string]any{"encoding": "proto"}, true, api.EncodingRaw},
		{"invalid encoding", map[string]any{"encoding": "xml"}, true, api.EncodingRaw},
		{"invalid stream", map[string]any{"stream": "printer"}, true, api.EncodingRaw},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewConsoleReporter().(*ConsoleReporter)
			err := r.Init(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantEnc, r.encoding)
		})
	}
}

func TestConsoleReporter_Report(t *testing.T) {
	meta := novatel.NewMetaData()
	meta.MessageName = "BESTPOS"
	meta.MessageID = 42
	meta.Format = novatel.FormatASCII
	res := &novatel.Result{Meta: meta, Data: novatel.MessageData{Message: []byte("#BESTPOSA,...*00000000\r\n")}}

	var buf bytes.Buffer
	r := NewWriterReporter(&buf, api.EncodingRaw)
	ctx := context.Background()
	require.NoError(t, r.Start(ctx))
	require.NoError(t, r.Report(ctx, res))
	require.NoError(t, r.Flush(ctx))
	require.NoError(t, r.Stop(ctx))
	assert.Equal(t, "#BESTPOSA,...*00000000\r\n", buf.String())
	assert.Equal(t, uint64(1), r.Reported())

	buf.Reset()
	r = NewWriterReporter(&buf, api.EncodingText)
	require.NoError(t, r.Report(ctx, res))
	assert.Equal(t, "BESTPOS id=42 format=ASCII week=0 ms=0 time_status=UNKNOWN bytes=24\n", buf.String())

	assert.Error(t, r.Report(ctx, nil))
}
