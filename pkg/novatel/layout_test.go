package novatel

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/edie/pkg/schema"
)

const layoutSchema = `
messages:
  - messageID: 9001
    name: PADARRAY
    latestMsgDefCrc: 1
    fields:
      "1":
        - {name: a, type: SIMPLE, dataType: {name: UCHAR}}
        - {name: b, type: FIXED_LENGTH_ARRAY, dataType: {name: UCHAR}, arrayLength: 3}
        - {name: c, type: SIMPLE, dataType: {name: ULONG}}
  - messageID: 9002
    name: PADSTRING
    latestMsgDefCrc: 1
    fields:
      "1":
        - {name: a, type: SIMPLE, dataType: {name: UCHAR}}
        - {name: s, type: STRING}
        - {name: c, type: SIMPLE, dataType: {name: ULONG}}
  - messageID: 9003
    name: RXCONFIGTEST
    latestMsgDefCrc: 1
    fields:
      "1":
        - {name: embedded_header, type: RXCONFIG_HEADER}
        - {name: embedded_body, type: RXCONFIG_BODY}
  - messageID: 9004
    name: BIGARRAY
    latestMsgDefCrc: 1
    fields:
      "1":
        - {name: values, type: FIXED_LENGTH_ARRAY, dataType: {name: ULONG}, arrayLength: 4000}
  - messageID: 140
    name: RANGECMP
    latestMsgDefCrc: 1
    fields:
      "1":
        - {name: count, type: SIMPLE, dataType: {name: ULONG}}
`

func layoutDB(t *testing.T) *schema.Database {
	t.Helper()
	db, err := schema.Parse([]byte(layoutSchema), schema.FormatYAML)
	require.NoError(t, err)
	return db
}

func layoutFields(t *testing.T, db *schema.Database, name string) []*schema.Field {
	t.Helper()
	def, err := db.MessageByName(name)
	require.NoError(t, err)
	return def.FieldsFor(1)
}

// encodeLayout encodes msg as an OEM4 binary frame of the named message.
func encodeLayout(t *testing.T, db *schema.Database, name string, msg IntermediateMessage, format EncodeFormat) MessageData {
	t.Helper()
	def, err := db.MessageByName(name)
	require.NoError(t, err)
	hdr := IntermediateHeader{MessageID: uint16(def.ID), MessageDefinitionCRC: 1, Week: 2200}
	meta := NewMetaData()
	meta.Format = FormatBinary
	meta.MessageName = name
	out, err := NewEncoder(db).Encode(&hdr, msg, &meta, format)
	require.NoError(t, err)
	return out
}

func TestCodec_UnalignedArrayRoundTrip(t *testing.T) {
	db := layoutDB(t)
	fields := layoutFields(t, db, "PADARRAY")
	msg := IntermediateMessage{
		{Field: fields[0], Value: uint8(7)},
		{Field: fields[1], Value: []any{uint8(1), uint8(2), uint8(3)}},
		{Field: fields[2], Value: uint32(99)},
	}

	out := encodeLayout(t, db, "PADARRAY", msg, EncodeBinary)
	assert.Equal(t, []byte{0x07, 0x01, 0x02, 0x03, 0x00, 0x63, 0x00, 0x00, 0x00}, out.Body())

	d := decodeFrame(t, db, out.Message)
	assert.Equal(t, msg, d.msg)

	again, err := NewEncoder(db).Encode(&d.hdr, d.msg, &d.meta, EncodeBinary)
	require.NoError(t, err)
	assert.Equal(t, out.Message, again.Message)

	flat := encodeLayout(t, db, "PADARRAY", msg, EncodeFlattenedBinary)
	assert.Equal(t, msg, decodeFrame(t, db, flat.Message).msg)
}

func TestCodec_UnalignedStringRoundTrip(t *testing.T) {
	db := layoutDB(t)
	fields := layoutFields(t, db, "PADSTRING")
	msg := IntermediateMessage{
		{Field: fields[0], Value: uint8(7)},
		{Field: fields[1], Value: "ab"},
		{Field: fields[2], Value: uint32(99)},
	}

	out := encodeLayout(t, db, "PADSTRING", msg, EncodeBinary)
	assert.Equal(t, []byte{0x07, 'a', 'b', 0x00, 0x00, 0x63, 0x00, 0x00, 0x00}, out.Body())
	assert.Equal(t, msg, decodeFrame(t, db, out.Message).msg)
}

func TestEncoder_OutputTooLarge(t *testing.T) {
	db := layoutDB(t)
	fields := layoutFields(t, db, "BIGARRAY")
	vals := make([]any, fields[0].ArrayLength)
	for i := range vals {
		vals[i] = uint32(4000000000)
	}
	msg := IntermediateMessage{{Field: fields[0], Value: vals}}

	hdr := IntermediateHeader{MessageID: 9004, MessageDefinitionCRC: 1}
	meta := NewMetaData()
	meta.Format = FormatBinary
	_, err := NewEncoder(db).Encode(&hdr, msg, &meta, EncodeASCII)
	assert.Equal(t, StatusBufferFull, StatusOf(err))

	out, err := NewEncoder(db).Encode(&hdr, msg, &meta, EncodeBinary)
	require.NoError(t, err, "the binary form still fits")
	assert.LessOrEqual(t, len(out.Message), MaxMessageLength)
}

// rawBinaryFrame wraps body in an OEM4 binary header and CRC.
func rawBinaryFrame(id uint16, body []byte) []byte {
	frame := make([]byte, OEM4BinaryHeaderLength, OEM4BinaryHeaderLength+len(body)+OEM4BinaryCRCLength)
	frame[0], frame[1], frame[2] = OEM4BinarySync1, OEM4BinarySync2, OEM4BinarySync3
	frame[3] = OEM4BinaryHeaderLength
	binary.LittleEndian.PutUint16(frame[4:], id)
	binary.LittleEndian.PutUint16(frame[8:], uint16(len(body)))
	binary.LittleEndian.PutUint16(frame[24:], 1)
	frame = append(frame, body...)
	return binary.LittleEndian.AppendUint32(frame, CRC32(frame))
}

func TestDecoder_RxConfigUnsupported(t *testing.T) {
	db := layoutDB(t)
	meta := NewMetaData()
	meta.Format = FormatBinary
	meta.MessageID = 9003
	_, err := NewMessageDecoder(db).Decode(make([]byte, 8), &meta)
	assert.Equal(t, StatusUnsupported, StatusOf(err))

	var skipped []Status
	p := NewParser(db, WithSkipHandler(func(_ *MetaData, err error) {
		skipped = append(skipped, StatusOf(err))
	}))
	_, err = p.Write(rawBinaryFrame(9003, make([]byte, 8)))
	require.NoError(t, err)
	_, err = p.Read()
	assert.Equal(t, StatusBufferEmpty, StatusOf(err))
	assert.Equal(t, []Status{StatusUnsupported}, skipped)
}

func TestParser_DecompressionFailure(t *testing.T) {
	db := layoutDB(t)
	fields := layoutFields(t, db, "RANGECMP")
	frame := encodeLayout(t, db, "RANGECMP", IntermediateMessage{{Field: fields[0], Value: uint32(3)}}, EncodeBinary).Message

	var skipped []Status
	d := &stubDecompressor{err: errors.New("corrupt range record")}
	p := NewParser(db, WithDecompressor(d), WithSkipHandler(func(meta *MetaData, err error) {
		assert.Equal(t, "RANGECMP", meta.MessageName)
		skipped = append(skipped, StatusOf(err))
	}))
	_, err := p.Write(frame)
	require.NoError(t, err)
	_, err = p.Read()
	assert.Equal(t, StatusBufferEmpty, StatusOf(err))
	assert.Equal(t, 1, d.calls)
	assert.Equal(t, []Status{StatusDecompressionFailure}, skipped)

	d = &stubDecompressor{err: errors.New("corrupt range record")}
	p = NewParser(db, WithDecompressor(d), WithDecompressRangeCmp(false))
	_, err = p.Write(frame)
	require.NoError(t, err)
	res, err := p.Read()
	require.NoError(t, err)
	assert.Equal(t, "RANGECMP", res.Meta.MessageName)
	assert.Zero(t, d.calls)
}
