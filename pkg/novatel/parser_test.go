package novatel

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readAll reads until the parser needs more data.
func readAll(t *testing.T, p *Parser) ([]*Result, []Status) {
	t.Helper()
	var results []*Result
	var statuses []Status
	for i := 0; i < 64; i++ {
		res, err := p.Read()
		st := StatusOf(err)
		if st.Retryable() {
			return results, statuses
		}
		results = append(results, res)
		statuses = append(statuses, st)
	}
	t.Fatal("parser did not drain")
	return nil, nil
}

func mixedStream(t *testing.T) []byte {
	var buf bytes.Buffer
	buf.WriteString("GARBAGE_DATA")
	buf.Write(loadFrame(t, "ascii_bestpos"))
	buf.Write(loadFrame(t, "binary_version"))
	buf.Write(loadFrame(t, "no_definition"))
	buf.Write(loadFrame(t, "short_binary_rawimu"))
	return buf.Bytes()
}

func TestParser_Read(t *testing.T) {
	db := loadDB(t)
	var skipped []Status
	p := NewParser(db, WithSkipHandler(func(_ *MetaData, err error) {
		skipped = append(skipped, StatusOf(err))
	}))
	_, err := p.Write(mixedStream(t))
	require.NoError(t, err)

	results, statuses := readAll(t, p)
	require.Len(t, results, 4)
	assert.Equal(t, []Status{StatusUnknown, StatusSuccess, StatusSuccess, StatusSuccess}, statuses)
	assert.Equal(t, []Status{StatusNoDefinition}, skipped)

	assert.Equal(t, "GARBAGE_DATA", string(results[0].Data.Message))
	assert.Equal(t, string(loadFrame(t, "ascii_bestpos")), string(results[1].Data.Message))
	assert.Equal(t, "VERSION", results[2].Meta.MessageName)
	assert.True(t, strings.HasPrefix(string(results[2].Data.Message), "#VERSIONA,"))
	assert.True(t, strings.HasPrefix(string(results[3].Data.Message), "%RAWIMUSXA,0,5.998;"))

	lat, err := results[1].Lookup("latitude")
	require.NoError(t, err)
	assert.InDelta(t, 51.15043699323, lat, 1e-11)
	week, err := results[1].Lookup("week")
	require.NoError(t, err)
	assert.Equal(t, uint16(2166), week)
}

func TestParser_Options(t *testing.T) {
	db := loadDB(t)

	t.Run("drop unknown bytes", func(t *testing.T) {
		p := NewParser(db, WithReturnUnknownBytes(false))
		_, err := p.Write(mixedStream(t))
		require.NoError(t, err)
		_, statuses := readAll(t, p)
		assert.Equal(t, []Status{StatusSuccess, StatusSuccess, StatusSuccess}, statuses)
	})

	t.Run("filter", func(t *testing.T) {
		f := NewFilter()
		f.IncludeMessageName("VERSION", FormatAll, SourcePrimary)
		p := NewParser(db, WithFilter(f), WithReturnUnknownBytes(false))
		_, err := p.Write(mixedStream(t))
		require.NoError(t, err)
		results, _ := readAll(t, p)
		require.Len(t, results, 1)
		assert.Equal(t, "VERSION", results[0].Meta.MessageName)
	})

	t.Run("json output", func(t *testing.T) {
		p := NewParser(db, WithEncodeFormat(EncodeJSON))
		_, err := p.Write(loadFrame(t, "binary_bestpos"))
		require.NoError(t, err)
		res, err := p.Read()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(res.Data.Message), `{"header": {"message": "BESTPOS","id": 42,`))
	})

	t.Run("json input", func(t *testing.T) {
		p := NewParser(db, WithFrameJSON(true), WithEncodeFormat(EncodeJSON))
		_, err := p.Write(loadFrame(t, "json_version"))
		require.NoError(t, err)
		res, err := p.Read()
		require.NoError(t, err)
		assert.Equal(t, string(loadFrame(t, "json_version")), string(res.Data.Message))
	})

	t.Run("abbreviated responses", func(t *testing.T) {
		p := NewParser(db)
		_, err := p.Write([]byte("<OK\r\n"))
		require.NoError(t, err)
		_, err = p.Read()
		assert.Equal(t, StatusBufferEmpty, StatusOf(err))

		p = NewParser(db, WithIgnoreAbbrevASCIIResponses(false))
		_, err = p.Write([]byte("<OK\r\n"))
		require.NoError(t, err)
		res, err := p.Read()
		require.NoError(t, err)
		assert.True(t, res.Meta.Response)
	})
}

type stubDecompressor struct {
	calls int
	err   error
}

func (s *stubDecompressor) Decompress(_ *IntermediateHeader, msg IntermediateMessage, _ *MetaData) (IntermediateMessage, error) {
	s.calls++
	return msg, s.err
}

func TestParser_Decompressor(t *testing.T) {
	db := loadDB(t)
	d := &stubDecompressor{}
	p := NewParser(db, WithDecompressor(d))
	_, err := p.Write(loadFrame(t, "binary_bestpos"))
	require.NoError(t, err)
	_, err = p.Read()
	require.NoError(t, err)
	assert.Zero(t, d.calls, "only compressed range messages are decompressed")
}

func TestParser_Incomplete(t *testing.T) {
	db := loadDB(t)
	p := NewParser(db)
	frame := loadFrame(t, "binary_bestpos")

	_, err := p.Write(frame[:50])
	require.NoError(t, err)
	_, err = p.Read()
	assert.Equal(t, StatusIncomplete, StatusOf(err))

	_, err = p.Write(frame[50:])
	require.NoError(t, err)
	res, err := p.Read()
	require.NoError(t, err)
	assert.Equal(t, "BESTPOS", res.Meta.MessageName)

	_, err = p.Write([]byte("#BESTPOSA,COM1"))
	require.NoError(t, err)
	assert.Equal(t, "#BESTPOSA,COM1", string(p.Flush()))
}

func TestFileParser(t *testing.T) {
	db := loadDB(t)
	path := filepath.Join(t.TempDir(), "stream.bin")
	data := append(mixedStream(t), []byte("#BESTPOSA,COM1")...)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	stream, err := OpenFileStream(path)
	require.NoError(t, err)
	defer stream.Close()

	fp := NewFileParser(db, stream)
	collect := func() []Status {
		var out []Status
		for i := 0; i < 64; i++ {
			_, err := fp.Read()
			st := StatusOf(err)
			if st == StatusStreamEmpty {
				return out
			}
			out = append(out, st)
		}
		t.Fatal("file parser did not finish")
		return nil
	}

	want := []Status{StatusUnknown, StatusSuccess, StatusSuccess, StatusSuccess, StatusUnknown}
	assert.Equal(t, want, collect())
	assert.InDelta(t, 100, fp.PercentRead(), 0.001)

	require.NoError(t, fp.Reset())
	assert.Zero(t, fp.PercentRead())
	assert.Equal(t, want, collect())
}

func TestFileParser_UnterminatedAbbreviatedLine(t *testing.T) {
	db := loadDB(t)
	path := filepath.Join(t.TempDir(), "stream.bin")
	data := append([]byte{OEM4AbbrevASCIISync}, bytes.Repeat([]byte{'A'}, MaxMessageLength-1)...)
	data = append(data, loadFrame(t, "binary_bestpos")...)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	stream, err := OpenFileStream(path)
	require.NoError(t, err)
	defer stream.Close()

	fp := NewFileParser(db, stream)
	res, err := fp.Read()
	assert.Equal(t, StatusUnknown, StatusOf(err))
	assert.Len(t, res.Data.Message, MaxMessageLength)

	res, err = fp.Read()
	require.NoError(t, err)
	assert.Equal(t, "BESTPOS", res.Meta.MessageName)

	_, err = fp.Read()
	assert.Equal(t, StatusStreamEmpty, StatusOf(err))
}

func TestFileParser_NoStream(t *testing.T) {
	fp := NewFileParser(loadDB(t), nil)
	_, err := fp.Read()
	assert.Equal(t, StatusNullProvided, StatusOf(err))
}

func TestLookup(t *testing.T) {
	db := loadDB(t)
	d := decodeFrame(t, db, loadFrame(t, "binary_version"))

	models, err := Lookup(&d.hdr, d.msg, "component_type")
	require.NoError(t, err)
	assert.Equal(t, []any{int32(1), int32(21)}, models)

	id, err := Lookup(&d.hdr, d.msg, "message_id")
	require.NoError(t, err)
	assert.Equal(t, uint16(37), id)

	_, err = Lookup(&d.hdr, d.msg, "nope")
	assert.ErrorIs(t, err, ErrFieldNotFound)
}
