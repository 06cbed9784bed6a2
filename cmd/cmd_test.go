package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/edie/internal/config"
	"firestige.xyz/edie/pkg/schema"
)

var testDatabase = filepath.Join("..", "testdata", "messages.json")

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "testdata", "frames", name+".bin"))
	require.NoError(t, err)
	return data
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := loadConfig("", []string{testDatabase}, "")
	require.NoError(t, err)
	return cfg
}

func writeInput(t *testing.T, parts ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.gps")
	require.NoError(t, os.WriteFile(path, bytes.Join(parts, nil), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Schema.Paths)
	_, err = loadDatabase(cfg)
	assert.Error(t, err)

	cfg, err = loadConfig("", []string{testDatabase}, "debug")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	db, err := loadDatabase(cfg)
	require.NoError(t, err)
	assert.NotEmpty(t, db.Messages)

	_, err = loadConfig("", nil, "chatty")
	assert.Error(t, err)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yml"), nil, "")
	assert.Error(t, err)
}

func TestRunCommand(t *testing.T) {
	db, err := schema.Load(testDatabase)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runCommand(db, "LOG COM1 BESTPOSA ONTIME 1", "ascii", false, &out))
	assert.Equal(t,
		"#LOGA,THISPORT,0,0.0,UNKNOWN,0,0.000,00000000,5c9a,0;COM1,BESTPOSA,ONTIME,1.000000,0.000000,NOHOLD*54edacb0\r\n",
		out.String())

	out.Reset()
	require.NoError(t, runCommand(db, "LOG COM1 BESTPOSA ONTIME 1", "binary", false, &out))
	assert.Equal(t,
		"aa44121c010000c0200000000014000000000000000000009a5c0000200000002a00200002000000000000000000f03f0000000000000000000000006b47dbf2\n",
		out.String())

	out.Reset()
	require.NoError(t, runCommand(db, "LOG COM1 BESTPOSA ONTIME 1", "binary", true, &out))
	assert.Equal(t, []byte{0xAA, 0x44, 0x12}, out.Bytes()[:3])

	assert.Error(t, runCommand(db, "LOG COM1 BESTPOSA", "yaml", false, &out))
	assert.Error(t, runCommand(db, "FROBNICATE", "ascii", false, &out))
}

func TestRunFrame(t *testing.T) {
	bestpos := fixture(t, "ascii_bestpos")
	in := bytes.Join([][]byte{[]byte("GARBAGE_DATA"), bestpos, []byte("#BESTPOSA,COM1")}, nil)

	var out bytes.Buffer
	require.NoError(t, runFrame(bytes.NewReader(in), false, &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)

	first := strings.Fields(lines[0])
	assert.Equal(t, []string{"0", "12", "UNKNOWN", "GARBAGE_DATA"}, first)

	second := strings.Fields(lines[1])
	assert.Equal(t, "12", second[0])
	assert.Equal(t, "ASCII", second[2])
	assert.True(t, strings.HasPrefix(second[3], "#BESTPOSA,COM1,0,60.5,FINESTEERING"))

	third := strings.Fields(lines[2])
	assert.Equal(t, "UNKNOWN", third[2])
	assert.Equal(t, "14", third[1])
}

func TestRunConvert_Stdout(t *testing.T) {
	binary := fixture(t, "binary_bestpos")
	path := writeInput(t, fixture(t, "ascii_bestpos"), binary)

	cfg := testConfig(t)
	var stdout, stderr bytes.Buffer
	err := runConvert(context.Background(), cfg, convertOptions{Input: path, Format: "binary", Output: "-", Stats: true}, &stdout, &stderr)
	require.NoError(t, err)

	out := stdout.Bytes()
	require.Greater(t, len(out), len(binary))
	assert.Equal(t, []byte{0xAA, 0x44, 0x12}, out[:3])
	assert.Equal(t, binary, out[len(out)-len(binary):], "binary input round trips")
	assert.Contains(t, stderr.String(), "messages=2")
}

func TestRunConvert_StatsIntervals(t *testing.T) {
	path := writeInput(t, fixture(t, "binary_bestpos"), fixture(t, "ascii_bestpos"))

	cfg := testConfig(t)
	var stdout, stderr bytes.Buffer
	err := runConvert(context.Background(), cfg, convertOptions{Input: path, Format: "ascii", Output: "-", Stats: true}, &stdout, &stderr)
	require.NoError(t, err)

	// week 1964 141367.000s to week 2166 327153.000s
	gap := float64(2166-1964)*604800000 + 327153000 - 141367000
	want := fmt.Sprintf("interval BESTPOS n=1 mean=%.3fms std=0.000ms min=%.3fms max=%.3fms\n", gap, gap, gap)
	assert.Contains(t, stderr.String(), want)
}

func TestRunConvert_Files(t *testing.T) {
	bestpos := fixture(t, "ascii_bestpos")
	path := writeInput(t, []byte("GARBAGE_DATA"), bestpos)
	dir := t.TempDir()
	output := filepath.Join(dir, "out.asc")
	unknown := filepath.Join(dir, "unknown.bin")

	cfg := testConfig(t)
	var stdout, stderr bytes.Buffer
	opts := convertOptions{Input: path, Format: "ascii", Output: output, UnknownOutput: unknown}
	require.NoError(t, runConvert(context.Background(), cfg, opts, &stdout, &stderr))
	assert.Empty(t, stdout.String())
	assert.Empty(t, stderr.String(), "stats disabled")

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, string(bestpos), string(got))

	junk, err := os.ReadFile(unknown)
	require.NoError(t, err)
	assert.Equal(t, "GARBAGE_DATA", string(junk))
}

func TestRunConvert_Errors(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer

	assert.Error(t, runConvert(ctx, testConfig(t), convertOptions{Input: "x", Format: "xml"}, &out, &out))
	assert.Error(t, runConvert(ctx, testConfig(t), convertOptions{InputType: "serial", Input: "x"}, &out, &out))
	assert.Error(t, runConvert(ctx, testConfig(t), convertOptions{}, &out, &out), "file input needs a path")

	cfg := testConfig(t)
	cfg.Schema.Paths = nil
	assert.Error(t, runConvert(ctx, cfg, convertOptions{Input: "x"}, &out, &out))
}

func TestRunValidate(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runValidate(testConfig(t), &out))
	assert.True(t, strings.HasPrefix(out.String(), "VALID: "))
	assert.Contains(t, out.String(), `input "file"`)

	cfg := testConfig(t)
	cfg.Reporters = []config.PluginConfig{{Type: "carrier-pigeon"}}
	assert.Error(t, runValidate(cfg, &out))

	cfg = testConfig(t)
	cfg.Input.Type = "serial"
	assert.Error(t, runValidate(cfg, &out))
}
