package novatel

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/edie/pkg/schema"
)

func loadDB(t *testing.T) *schema.Database {
	t.Helper()
	db, err := schema.Load(filepath.Join("..", "..", "testdata", "messages.json"))
	require.NoError(t, err)
	return db
}

type decoded struct {
	hdr  IntermediateHeader
	msg  IntermediateMessage
	meta MetaData
}

func decodeFrame(t *testing.T, db *schema.Database, frame []byte) decoded {
	t.Helper()
	meta := NewMetaData()
	hdr, err := NewHeaderDecoder(db).Decode(frame, &meta)
	require.NoError(t, err)
	msg, err := NewMessageDecoder(db).Decode(frame[meta.HeaderLength:], &meta)
	require.NoError(t, err)
	return decoded{hdr: hdr, msg: msg, meta: meta}
}

func TestCodec_SameFormatRoundTrip(t *testing.T) {
	db := loadDB(t)
	tests := []struct {
		fixture string
		format  EncodeFormat
	}{
		{"ascii_bestpos", EncodeASCII},
		{"ascii_loglist", EncodeASCII},
		{"ascii_version", EncodeASCII},
		{"short_ascii_rawimu", EncodeASCII},
		{"binary_bestpos", EncodeBinary},
		{"binary_loglist", EncodeBinary},
		{"binary_sourcetable", EncodeBinary},
		{"binary_version", EncodeBinary},
		{"short_binary_rawimu", EncodeBinary},
		{"flattened_binary_version", EncodeFlattenedBinary},
		{"json_bestpos", EncodeJSON},
		{"json_gpsephem", EncodeJSON},
		{"json_version", EncodeJSON},
	}
	for _, tt := range tests {
		t.Run(tt.fixture, func(t *testing.T) {
			frame := loadFrame(t, tt.fixture)
			d := decodeFrame(t, db, frame)
			out, err := NewEncoder(db).Encode(&d.hdr, d.msg, &d.meta, tt.format)
			require.NoError(t, err)
			assert.Equal(t, string(frame), string(out.Message))
			assert.Equal(t, len(out.Message), out.HeaderLength+out.BodyLength+trailerLength(tt.format))
		})
	}
}

func trailerLength(f EncodeFormat) int {
	switch f {
	case EncodeASCII:
		return 1 + OEM4ASCIICRCLength + 2
	case EncodeBinary, EncodeFlattenedBinary:
		return OEM4BinaryCRCLength
	case EncodeJSON:
		return 1
	}
	return 0
}

func TestCodec_CrossFormat(t *testing.T) {
	db := loadDB(t)
	enc := NewEncoder(db)

	ascii := decodeFrame(t, db, loadFrame(t, "ascii_bestpos"))
	bin, err := enc.Encode(&ascii.hdr, ascii.msg, &ascii.meta, EncodeBinary)
	require.NoError(t, err)
	assert.Equal(t, OEM4BinaryHeaderLength, bin.HeaderLength)
	assert.Equal(t, 72, bin.BodyLength)
	assert.Equal(t, uint8(msgTypeASCII), bin.Message[6]&msgTypeFormatMask, "format bits record the source format")

	// back to ASCII through the binary form
	back := decodeFrame(t, db, bin.Message)
	text, err := enc.Encode(&back.hdr, back.msg, &back.meta, EncodeASCII)
	require.NoError(t, err)
	assert.Equal(t, string(loadFrame(t, "ascii_bestpos")), string(text.Message))

	js, err := enc.Encode(&ascii.hdr, ascii.msg, &ascii.meta, EncodeJSON)
	require.NoError(t, err)
	fromJSON := decodeFrame(t, db, js.Message)
	assert.Equal(t, ascii.hdr.Week, fromJSON.hdr.Week)
	lat, err := Lookup(&fromJSON.hdr, fromJSON.msg, "latitude")
	require.NoError(t, err)
	assert.InDelta(t, 51.15043699323, lat, 1e-11)
}

func TestCodec_AbbreviatedASCII(t *testing.T) {
	db := loadDB(t)
	enc := NewEncoder(db)
	d := decodeFrame(t, db, loadFrame(t, "ascii_loglist"))

	out, err := enc.Encode(&d.hdr, d.msg, &d.meta, EncodeAbbrevASCII)
	require.NoError(t, err)
	text := string(out.Message)
	assert.Contains(t, text, "<LOGLISTA COM1 0 63.5 FINESTEERING 2172 164226.000 02010000 c00c 16248\r\n")
	assert.Contains(t, text, "<     6\r\n")
	assert.Contains(t, text, "<          COM1 RXSTATUSEVENTA ONNEW 0.000000 0.000000 HOLD\r\n")

	again := decodeFrame(t, db, out.Message)
	assert.Equal(t, FormatAbbASCII, again.meta.Format)
	assert.Equal(t, d.msg, again.msg)
}

func TestCodec_NoDefinition(t *testing.T) {
	db := loadDB(t)
	frame := loadFrame(t, "no_definition")

	meta := NewMetaData()
	_, err := NewHeaderDecoder(db).Decode(frame, &meta)
	require.NoError(t, err)
	assert.Equal(t, FormatASCII, meta.Format)
	assert.Equal(t, MeasurementSource(2), meta.MeasurementSource)

	_, err = NewMessageDecoder(db).Decode(frame[meta.HeaderLength:], &meta)
	assert.Equal(t, StatusNoDefinition, StatusOf(err))
}

func TestCodec_Responses(t *testing.T) {
	db := loadDB(t)
	enc := NewEncoder(db)

	frame := []byte("<OK\r\n")
	meta := NewMetaData()
	hdr, err := NewHeaderDecoder(db).Decode(frame, &meta)
	require.NoError(t, err)
	require.True(t, meta.Response)
	msg, err := NewMessageDecoder(db).Decode(frame[meta.HeaderLength:], &meta)
	require.NoError(t, err)
	id, _ := msg.Get("response_id")
	assert.Equal(t, int32(responseOK), id)

	hdr.MessageID = 1
	meta.MessageName = "LOG"
	out, err := enc.Encode(&hdr, msg, &meta, EncodeASCII)
	require.NoError(t, err)
	assert.Contains(t, string(out.Message), "#LOGR,")
	assert.Contains(t, string(out.Message), ";OK*")

	bin, err := enc.Encode(&hdr, msg, &meta, EncodeBinary)
	require.NoError(t, err)
	assert.NotZero(t, bin.Message[6]&msgTypeResponseBit)
	assert.Equal(t, 8, bin.BodyLength, "id plus NUL terminated empty text padded to 4")
}

func TestCodec_EncodeErrors(t *testing.T) {
	db := loadDB(t)
	d := decodeFrame(t, db, loadFrame(t, "binary_bestpos"))

	_, err := NewEncoder(db).Encode(&d.hdr, d.msg, &d.meta, EncodeUnspecified)
	assert.Equal(t, StatusUnsupported, StatusOf(err))

	_, err = NewEncoder(nil).Encode(&d.hdr, d.msg, &d.meta, EncodeASCII)
	assert.Equal(t, StatusNoDatabase, StatusOf(err))

	_, err = NewEncoder(db).Encode(nil, d.msg, &d.meta, EncodeASCII)
	assert.Equal(t, StatusNullProvided, StatusOf(err))
}

func TestCodec_DecodeErrors(t *testing.T) {
	db := loadDB(t)
	frame := loadFrame(t, "binary_bestpos")

	meta := NewMetaData()
	_, err := NewHeaderDecoder(db).Decode(frame, &meta)
	require.NoError(t, err)

	_, err = NewMessageDecoder(db).Decode(frame[meta.HeaderLength:meta.HeaderLength+10], &meta)
	assert.Equal(t, StatusMalformedInput, StatusOf(err))

	_, err = NewMessageDecoder(nil).Decode(frame, &meta)
	assert.Equal(t, StatusNoDatabase, StatusOf(err))

	_, err = NewHeaderDecoder(db).Decode([]byte("?"), &meta)
	assert.Equal(t, StatusUnknown, StatusOf(err))
}

func TestConversion_Format(t *testing.T) {
	tests := []struct {
		conv string
		in   float64
		want string
	}{
		{"%.4f", -17, "-17.0000"},
		{"%.11lf", 51.15043699323, "51.15043699323"},
		{"%.9le", 26559425.98, "2.655942598e+07"},
		{"%.5le", 0, "0.00000"},
		{"%lf", 0.05, "0.050000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseConversion(tt.conv).formatFloat(tt.in), tt.conv)
	}

	assert.Equal(t, "0ba4fe00", parseConversion("%08lx").formatInt(0x0ba4fe00, 0x0ba4fe00, false))
	assert.Equal(t, "0b", parseConversion("%02x").formatInt(11, 11, false))
	assert.Equal(t, "-5", parseConversion("%d").formatInt(-5, uint64(0xFFFFFFFB), true))
}

func TestSatelliteID(t *testing.T) {
	for _, s := range []string{"12", "8+6", "9-2"} {
		id, err := ParseSatelliteID(s)
		require.NoError(t, err)
		assert.Equal(t, s, id.String())
	}
	_, err := ParseSatelliteID("x")
	assert.Error(t, err)
}
