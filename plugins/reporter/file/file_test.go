package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"firestige.xyz/edie/pkg/novatel"
)

func result(name string, body string) *novatel.Result {
	meta := novatel.NewMetaData()
	meta.MessageName = name
	meta.Format = novatel.FormatASCII
	return &novatel.Result{Meta: meta, Data: novatel.MessageData{Message: []byte(body)}}
}

func TestFileReporter_Init(t *testing.T) {
	r := NewFileReporter().(*FileReporter)
	assert.Error(t, r.Init(map[string]any{}), "filename is required")
	assert.Error(t, r.Init(map[string]any{"filename": "x", "encoding": "xml"}))
	assert.Error(t, r.Init(map[string]any{"filename": "x", "colour": "red"}))

	require.NoError(t, r.Init(map[string]any{"filename": "x", "max_size_mb": "5", "compress": true}))
	assert.Equal(t, 5, r.config.MaxSizeMB)
	assert.True(t, r.config.Compress)
}

func TestFileReporter_Report(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	r := NewFileReporter().(*FileReporter)
	require.NoError(t, r.Init(map[string]any{"filename": path}))

	ctx := context.Background()
	assert.Error(t, r.Report(ctx, result("A", "x")), "not started")
	require.NoError(t, r.Start(ctx))
	require.NoError(t, r.Report(ctx, result("BESTPOS", "#BESTPOSA,1\r\n")))
	require.NoError(t, r.Report(ctx, result("VERSION", "#VERSIONA,2\r\n")))
	require.NoError(t, r.Flush(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "#BESTPOSA,1\r\n#VERSIONA,2\r\n", string(data))

	require.NoError(t, r.Stop(ctx))
	require.NoError(t, r.Stop(ctx))
	assert.Equal(t, uint64(2), r.reportedCount.Load())
}

func TestFileReporter_ProtoIsLengthDelimited(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pb")
	r := NewFileReporter().(*FileReporter)
	require.NoError(t, r.Init(map[string]any{"filename": path, "encoding": "proto"}))

	ctx := context.Background()
	require.NoError(t, r.Start(ctx))
	require.NoError(t, r.Report(ctx, result("", "junk")))
	require.NoError(t, r.Stop(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	n, width := protowire.ConsumeVarint(data)
	require.Greater(t, width, 0)
	assert.Equal(t, int(n), len(data)-width)
}
