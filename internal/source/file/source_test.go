package file

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/edie/pkg/plugin"
)

func TestSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.gps")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	s, err := initSource(map[string]any{"path": path})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	buf := make([]byte, 4)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(buf[:n]))
	assert.InDelta(t, 40, s.PercentRead(), 0.001)

	rest, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "456789", string(rest))
	assert.InDelta(t, 100, s.PercentRead(), 0.001)

	require.NoError(t, s.(plugin.Resettable).Reset())
	assert.Zero(t, s.PercentRead())
}

func TestSource_Errors(t *testing.T) {
	_, err := initSource(map[string]any{})
	assert.Error(t, err)

	s := New(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, s.Start(context.Background()))
	_, err = s.Read(make([]byte, 1))
	assert.Error(t, err)
	assert.NoError(t, s.Stop(context.Background()))
}

func initSource(cfg map[string]any) (plugin.Source, error) {
	s := NewSource()
	return s, s.Init(cfg)
}
