package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/edie/pkg/novatel"
)

type mockPlugin struct {
	name    string
	initErr error
	cfg     map[string]any
}

func (m *mockPlugin) Name() string { return m.name }

func (m *mockPlugin) Init(cfg map[string]any) error {
	m.cfg = cfg
	return m.initErr
}

func (m *mockPlugin) Start(context.Context) error { return nil }
func (m *mockPlugin) Stop(context.Context) error  { return nil }

type mockSource struct{ mockPlugin }

func (m *mockSource) Read([]byte) (int, error) { return 0, nil }
func (m *mockSource) PercentRead() float64     { return 0 }

type mockReporter struct {
	mockPlugin
	reported []*novatel.Result
}

func (m *mockReporter) Report(_ context.Context, res *novatel.Result) error {
	m.reported = append(m.reported, res)
	return nil
}
func (m *mockReporter) Flush(context.Context) error { return nil }

func TestRegisterAndGetReporter(t *testing.T) {
	reporterReg.Reset()
	defer reporterReg.Reset()

	RegisterReporter("test_rep", func() Reporter {
		return &mockReporter{mockPlugin: mockPlugin{name: "test_rep"}}
	})

	factory, err := GetReporterFactory("test_rep")
	require.NoError(t, err)
	assert.Equal(t, "test_rep", factory().Name())

	r, err := NewReporter("test_rep", map[string]any{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": "v"}, r.(*mockReporter).cfg)
}

func TestRegisterAndGetSource(t *testing.T) {
	sourceReg.Reset()
	defer sourceReg.Reset()

	RegisterSource("test_src", func() Source {
		return &mockSource{mockPlugin{name: "test_src"}}
	})
	s, err := NewSource("test_src", nil)
	require.NoError(t, err)
	assert.Equal(t, "test_src", s.Name())
}

func TestGetNotFoundReturnsError(t *testing.T) {
	reporterReg.Reset()
	sourceReg.Reset()

	_, err := GetReporterFactory("nonexistent")
	assert.ErrorIs(t, err, ErrUnknownPlugin)
	_, err = NewSource("nonexistent", nil)
	assert.ErrorIs(t, err, ErrUnknownPlugin)
}

func TestInitErrorIsWrapped(t *testing.T) {
	reporterReg.Reset()
	defer reporterReg.Reset()

	boom := errors.New("boom")
	RegisterReporter("broken", func() Reporter {
		return &mockReporter{mockPlugin: mockPlugin{name: "broken", initErr: boom}}
	})
	_, err := NewReporter("broken", nil)
	assert.ErrorIs(t, err, boom)
}

func TestRegisterPanics(t *testing.T) {
	reporterReg.Reset()
	defer reporterReg.Reset()

	factory := func() Reporter { return &mockReporter{} }
	RegisterReporter("dup", factory)
	assert.Panics(t, func() { RegisterReporter("dup", factory) })
	assert.Panics(t, func() { RegisterReporter("", factory) })
	assert.Panics(t, func() { RegisterReporter("nil", nil) })
}

func TestList(t *testing.T) {
	reporterReg.Reset()
	defer reporterReg.Reset()

	for _, name := range []string{"rep_c", "rep_a", "rep_b"} {
		RegisterReporter(name, func() Reporter { return &mockReporter{} })
	}
	assert.Equal(t, []string{"rep_a", "rep_b", "rep_c"}, ListReporters())
}
