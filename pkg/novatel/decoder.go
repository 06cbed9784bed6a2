package novatel

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"firestige.xyz/edie/pkg/schema"
)

// MessageDecoder decodes message bodies against the database.
type MessageDecoder struct {
	db *schema.Database
}

// NewMessageDecoder returns a MessageDecoder for db.
func NewMessageDecoder(db *schema.Database) *MessageDecoder {
	return &MessageDecoder{db: db}
}

// SetDatabase replaces the database.
func (d *MessageDecoder) SetDatabase(db *schema.Database) { d.db = db }

// Decode decodes body, the bytes following the header (trailing CRC and
// terminators included), using the format, message id and definition CRC in
// meta.
func (d *MessageDecoder) Decode(body []byte, meta *MetaData) (IntermediateMessage, error) {
	if meta == nil || body == nil {
		return nil, StatusNullProvided
	}
	if d.db == nil {
		return nil, StatusNoDatabase
	}

	fields := responseFields
	if !meta.Response {
		def, err := d.db.MessageByID(uint32(meta.MessageID))
		if err != nil || (meta.MessageName != "" && !strings.EqualFold(def.Name, meta.MessageName)) {
			return nil, statusf(StatusNoDefinition, "message %q id %d", meta.MessageName, meta.MessageID)
		}
		if meta.MessageCRC != 0 && !def.HasCRC(meta.MessageCRC) {
			logger().Debugf("decoder: %s has no layout for crc 0x%04x, using 0x%04x", def.Name, meta.MessageCRC, def.LatestCRC)
		}
		fields = def.FieldsFor(meta.MessageCRC)
		meta.MessageName = def.Name
	}
	if err := checkSupported(fields); err != nil {
		return nil, err
	}

	switch meta.Format {
	case FormatBinary, FormatShortBinary:
		if meta.BinaryMsgLength > 0 && int(meta.BinaryMsgLength) <= len(body) {
			body = body[:meta.BinaryMsgLength]
		}
		r := binaryReader{buf: body}
		if meta.Response {
			return r.response()
		}
		return r.fields(fields)
	case FormatASCII, FormatShortASCII:
		if star := bytes.LastIndexByte(body, OEM4ASCIICRCDelimiter); star >= 0 {
			body = body[:star]
		}
		toks, err := tokenize(body, OEM4ASCIIFieldSeparator)
		if err != nil {
			return nil, err
		}
		r := asciiReader{db: d.db, tokens: toks}
		if meta.Response {
			return r.response()
		}
		return r.message(fields)
	case FormatAbbASCII, FormatShortAbbASCII:
		toks, err := tokenize(joinAbbrevLines(body), OEM4AbbrevASCIISeparator)
		if err != nil {
			return nil, err
		}
		r := asciiReader{db: d.db, tokens: toks}
		if meta.Response {
			return r.response()
		}
		return r.message(fields)
	case FormatJSON:
		return decodeJSONBody(d.db, body, fields)
	case FormatEncryptedBinary:
		return nil, statusf(StatusUnsupported, "encrypted binary body")
	}
	return nil, statusf(StatusUnsupported, "cannot decode %s body", meta.Format)
}

func checkSupported(fields []*schema.Field) error {
	for _, f := range fields {
		switch f.Type {
		case schema.FieldRxConfigHeader, schema.FieldRxConfigBody:
			return statusf(StatusUnsupported, "field %s of type %s", f.Name, f.Type)
		case schema.FieldArray:
			if err := checkSupported(f.Fields); err != nil {
				return err
			}
		}
	}
	return nil
}

func align4(n int) int { return (n + 3) &^ 3 }

type binaryReader struct {
	buf []byte
	pos int
}

func (r *binaryReader) need(n int, name string) error {
	if n < 0 || r.pos+n > len(r.buf) {
		return statusf(StatusMalformedInput, "field %s needs %d bytes at offset %d of %d", name, n, r.pos, len(r.buf))
	}
	return nil
}

func (r *binaryReader) u32(name string) (uint32, error) {
	if err := r.need(4, name); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *binaryReader) primitive(dt schema.DataType, name string) (any, error) {
	size := dt.Size()
	if err := r.need(size, name); err != nil {
		return nil, err
	}
	v := readPrimitive(r.buf[r.pos:r.pos+size], dt.Name)
	r.pos += size
	return v, nil
}

func readPrimitive(p []byte, dt schema.DataTypeName) any {
	le := binary.LittleEndian
	switch dt {
	case schema.Bool:
		return le.Uint32(p) != 0
	case schema.Char:
		return int8(p[0])
	case schema.UChar, schema.HexByte:
		return p[0]
	case schema.Short:
		return int16(le.Uint16(p))
	case schema.UShort:
		return le.Uint16(p)
	case schema.Int, schema.Long:
		return int32(le.Uint32(p))
	case schema.UInt, schema.ULong:
		return le.Uint32(p)
	case schema.LongLong:
		return int64(le.Uint64(p))
	case schema.ULongLong:
		return le.Uint64(p)
	case schema.Float:
		return math.Float32frombits(le.Uint32(p))
	case schema.Double:
		return math.Float64frombits(le.Uint64(p))
	case schema.SatelliteID:
		return SatelliteID{PRN: le.Uint16(p), Channel: int16(le.Uint16(p[2:]))}
	}
	switch len(p) {
	case 1:
		return p[0]
	case 2:
		return le.Uint16(p)
	case 8:
		return le.Uint64(p)
	}
	return le.Uint32(p)
}

func cString(p []byte) string {
	if i := bytes.IndexByte(p, 0); i >= 0 {
		p = p[:i]
	}
	return string(p)
}

func (r *binaryReader) fields(fields []*schema.Field) (IntermediateMessage, error) {
	msg := make(IntermediateMessage, 0, len(fields))
	for _, f := range fields {
		v, err := r.field(f)
		if err != nil {
			return nil, err
		}
		msg = append(msg, FieldValue{Field: f, Value: v})
	}
	return msg, nil
}

func (r *binaryReader) field(f *schema.Field) (any, error) {
	switch f.Type {
	case schema.FieldSimple:
		return r.primitive(f.DataType, f.Name)
	case schema.FieldEnum:
		size := f.DataType.Size()
		if size == 0 {
			size = 4
		}
		if err := r.need(size, f.Name); err != nil {
			return nil, err
		}
		n, _ := toInt64(readPrimitive(r.buf[r.pos:r.pos+size], schema.Undefined))
		r.pos += size
		return int32(n), nil
	case schema.FieldString:
		rest := r.buf[r.pos:]
		n := bytes.IndexByte(rest, 0)
		if n < 0 {
			return nil, statusf(StatusMalformedInput, "string %s is not terminated", f.Name)
		}
		s := string(rest[:n])
		r.pos += min(align4(n+1), len(rest))
		return s, nil
	case schema.FieldFixedArray:
		return r.array(f, f.ArrayLength, f.ArrayLength)
	case schema.FieldVarArray:
		count, err := r.u32(f.Name)
		if err != nil {
			return nil, err
		}
		if int(count) > f.ArrayLength {
			return nil, statusf(StatusMalformedInput, "array %s has %d elements, max %d", f.Name, count, f.ArrayLength)
		}
		return r.array(f, int(count), int(count))
	case schema.FieldArray:
		count, err := r.u32(f.Name)
		if err != nil {
			return nil, err
		}
		if int(count) > f.ArrayLength {
			return nil, statusf(StatusMalformedInput, "field array %s has %d elements, max %d", f.Name, count, f.ArrayLength)
		}
		elems := make([]IntermediateMessage, 0, count)
		for i := 0; i < int(count); i++ {
			start := r.pos
			elem, err := r.fields(f.Fields)
			if err != nil {
				return nil, err
			}
			r.pos = start + align4(r.pos-start)
			elems = append(elems, elem)
		}
		return elems, nil
	}
	return nil, statusf(StatusUnsupported, "field %s of type %s", f.Name, f.Type)
}

// array reads count elements and advances past span elements padded to 4.
func (r *binaryReader) array(f *schema.Field, count, span int) (any, error) {
	size := f.DataType.Size()
	if err := r.need(span*size, f.Name); err != nil {
		return nil, err
	}
	raw := r.buf[r.pos : r.pos+span*size]
	r.pos += min(align4(span*size), len(r.buf)-r.pos)
	if f.IsCharString() {
		return cString(raw[:count*size]), nil
	}
	vals := make([]any, count)
	for i := range vals {
		vals[i] = readPrimitive(raw[i*size:(i+1)*size], f.DataType.Name)
	}
	return vals, nil
}

func (r *binaryReader) response() (IntermediateMessage, error) {
	id, err := r.u32("response_id")
	if err != nil {
		return nil, err
	}
	text := cString(r.buf[r.pos:])
	return IntermediateMessage{
		{Field: responseFields[0], Value: int32(id)},
		{Field: responseFields[1], Value: text},
	}, nil
}

type token struct {
	text   string
	quoted bool
}

// tokenize splits an ASCII body on sep, keeping quoted strings whole.
func tokenize(body []byte, sep byte) ([]token, error) {
	var toks []token
	i := 0
	for i < len(body) {
		if sep == OEM4AbbrevASCIISeparator {
			for i < len(body) && body[i] == sep {
				i++
			}
			if i >= len(body) {
				break
			}
		}
		if body[i] == '"' {
			end := bytes.IndexByte(body[i+1:], '"')
			if end < 0 {
				return nil, statusf(StatusMalformedInput, "unterminated string at offset %d", i)
			}
			toks = append(toks, token{text: string(body[i+1 : i+1+end]), quoted: true})
			i += end + 2
		} else {
			end := bytes.IndexByte(body[i:], sep)
			if end < 0 {
				end = len(body) - i
			}
			toks = append(toks, token{text: string(body[i : i+end])})
			i += end
		}
		if i < len(body) && body[i] == sep {
			i++
			if i == len(body) && sep == OEM4ASCIIFieldSeparator {
				toks = append(toks, token{})
			}
		}
	}
	return toks, nil
}

// joinAbbrevLines turns the body lines of an abbreviated message into one
// space separated line.
func joinAbbrevLines(body []byte) []byte {
	var out []byte
	for _, line := range bytes.Split(body, []byte("\n")) {
		line = bytes.TrimRight(line, "\r")
		line = bytes.TrimPrefix(line, []byte{OEM4AbbrevASCIISync})
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		out = append(out, ' ')
		out = append(out, line...)
	}
	return out
}

type asciiReader struct {
	db     *schema.Database
	tokens []token
	pos    int
}

func (r *asciiReader) next(name string) (token, error) {
	if r.pos >= len(r.tokens) {
		return token{}, statusf(StatusMalformedInput, "missing field %s", name)
	}
	t := r.tokens[r.pos]
	r.pos++
	return t, nil
}

func (r *asciiReader) message(fields []*schema.Field) (IntermediateMessage, error) {
	msg := make(IntermediateMessage, 0, len(fields))
	for _, f := range fields {
		v, err := r.field(f)
		if err != nil {
			return nil, err
		}
		msg = append(msg, FieldValue{Field: f, Value: v})
	}
	return msg, nil
}

func (r *asciiReader) field(f *schema.Field) (any, error) {
	switch f.Type {
	case schema.FieldSimple:
		t, err := r.next(f.Name)
		if err != nil {
			return nil, err
		}
		return parsePrimitive(r.db, f, t.text)
	case schema.FieldEnum:
		t, err := r.next(f.Name)
		if err != nil {
			return nil, err
		}
		return parseEnum(f, t.text)
	case schema.FieldString:
		t, err := r.next(f.Name)
		if err != nil {
			return nil, err
		}
		return t.text, nil
	case schema.FieldFixedArray, schema.FieldVarArray:
		if f.IsCharString() {
			t, err := r.next(f.Name)
			if err != nil {
				return nil, err
			}
			return t.text, nil
		}
		count := f.ArrayLength
		if f.Type == schema.FieldVarArray {
			n, err := r.count(f)
			if err != nil {
				return nil, err
			}
			count = n
		}
		vals := make([]any, count)
		for i := range vals {
			t, err := r.next(f.Name)
			if err != nil {
				return nil, err
			}
			if vals[i], err = parsePrimitive(r.db, f, t.text); err != nil {
				return nil, err
			}
		}
		return vals, nil
	case schema.FieldArray:
		count, err := r.count(f)
		if err != nil {
			return nil, err
		}
		elems := make([]IntermediateMessage, 0, count)
		for i := 0; i < count; i++ {
			elem, err := r.message(f.Fields)
			if err != nil {
				return nil, err
			}
			elems = append(elems, elem)
		}
		return elems, nil
	}
	return nil, statusf(StatusUnsupported, "field %s of type %s", f.Name, f.Type)
}

func (r *asciiReader) count(f *schema.Field) (int, error) {
	t, err := r.next(f.Name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(t.text, 10, 32)
	if err != nil || int(n) > f.ArrayLength {
		return 0, statusf(StatusMalformedInput, "array %s count %q", f.Name, t.text)
	}
	return int(n), nil
}

func (r *asciiReader) response() (IntermediateMessage, error) {
	text := ""
	if len(r.tokens) > 0 {
		parts := make([]string, len(r.tokens))
		for i, t := range r.tokens {
			parts[i] = t.text
		}
		text = strings.Join(parts, ",")
	}
	text = strings.TrimPrefix(text, "ERROR:")
	id := int32(0)
	if text == "OK" {
		id = responseOK
	} else if e, err := r.db.EnumByName("Responses"); err == nil {
		if v, ok := e.ByName(text); ok {
			id = v
		}
	}
	return IntermediateMessage{
		{Field: responseFields[0], Value: id},
		{Field: responseFields[1], Value: text},
	}, nil
}

func parseEnum(f *schema.Field, text string) (int32, error) {
	if f.Enum != nil {
		if v, ok := f.Enum.ByName(text); ok {
			return v, nil
		}
	}
	n, err := strconv.ParseInt(text, 10, 32)
	if err != nil {
		return 0, statusf(StatusMalformedInput, "field %s: unknown enumerator %q", f.Name, text)
	}
	return int32(n), nil
}

// parsePrimitive parses one ASCII token of the field's data type.
func parsePrimitive(db *schema.Database, f *schema.Field, text string) (any, error) {
	conv := parseConversion(f.ConversionString)
	bad := func() (any, error) {
		return nil, statusf(StatusMalformedInput, "field %s: cannot parse %q as %s", f.Name, text, f.DataType.Name)
	}
	if conv.isMessageID() {
		v, err := parseMessageID(db, text)
		if err != nil {
			return bad()
		}
		return v, nil
	}

	base := 10
	if conv.isHex() || f.DataType.Name == schema.HexByte {
		base = 16
	}
	switch f.DataType.Name {
	case schema.Bool:
		switch strings.ToUpper(text) {
		case "TRUE", "1":
			return true, nil
		case "FALSE", "0":
			return false, nil
		}
		return bad()
	case schema.Char:
		if conv.verb == 'c' || (len(text) == 1 && (text[0] < '0' || text[0] > '9')) {
			if len(text) != 1 {
				return bad()
			}
			return int8(text[0]), nil
		}
		n, err := strconv.ParseInt(text, 10, 8)
		if err != nil {
			return bad()
		}
		return int8(n), nil
	case schema.UChar, schema.HexByte:
		if conv.verb == 'c' && len(text) == 1 {
			return text[0], nil
		}
		n, err := strconv.ParseUint(text, base, 8)
		if err != nil {
			return bad()
		}
		return uint8(n), nil
	case schema.Short:
		n, err := strconv.ParseInt(text, base, 16)
		if err != nil {
			return bad()
		}
		return int16(n), nil
	case schema.UShort:
		n, err := strconv.ParseUint(text, base, 16)
		if err != nil {
			return bad()
		}
		return uint16(n), nil
	case schema.Int, schema.Long:
		n, err := strconv.ParseInt(text, base, 32)
		if err != nil {
			return bad()
		}
		return int32(n), nil
	case schema.UInt, schema.ULong:
		n, err := strconv.ParseUint(text, base, 32)
		if err != nil {
			return bad()
		}
		return uint32(n), nil
	case schema.LongLong:
		n, err := strconv.ParseInt(text, base, 64)
		if err != nil {
			return bad()
		}
		return n, nil
	case schema.ULongLong:
		n, err := strconv.ParseUint(text, base, 64)
		if err != nil {
			return bad()
		}
		return n, nil
	case schema.Float:
		n, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return bad()
		}
		return float32(n), nil
	case schema.Double:
		n, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return bad()
		}
		return n, nil
	case schema.SatelliteID:
		id, err := ParseSatelliteID(text)
		if err != nil {
			return bad()
		}
		return id, nil
	}
	return bad()
}

// parseMessageID parses a "%m" token: a message name with an optional A or B
// suffix, or a plain number.
func parseMessageID(db *schema.Database, text string) (uint32, error) {
	if n, err := strconv.ParseUint(text, 10, 32); err == nil {
		return uint32(n), nil
	}
	if db == nil {
		return 0, StatusNoDatabase
	}
	if msg, err := db.MessageByName(text); err == nil {
		return msg.ID | uint32(msgTypeAbbASCII)<<16, nil
	}
	if len(text) > 1 {
		bits := uint32(msgTypeBinary)
		if text[len(text)-1] == 'A' {
			bits = msgTypeASCII
		}
		if c := text[len(text)-1]; c == 'A' || c == 'B' {
			if msg, err := db.MessageByName(text[:len(text)-1]); err == nil {
				return msg.ID | bits<<16, nil
			}
		}
	}
	return 0, statusf(StatusNoDefinition, "message %q", text)
}

// formatMessageID renders a "%m" value.
func formatMessageID(db *schema.Database, value uint32) string {
	id := value & 0xFFFF
	msgType := uint8(value >> 16)
	if db != nil {
		if msg, err := db.MessageByID(id); err == nil {
			switch msgType & msgTypeFormatMask {
			case msgTypeBinary:
				return msg.Name + "B"
			case msgTypeASCII:
				return msg.Name + "A"
			default:
				return msg.Name
			}
		}
	}
	return strconv.FormatUint(uint64(value), 10)
}

func decodeJSONBody(db *schema.Database, data []byte, fields []*schema.Field) (IntermediateMessage, error) {
	var doc struct {
		Body json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, statusf(StatusMalformedInput, "json body: %v", err)
	}
	if len(doc.Body) == 0 {
		return nil, statusf(StatusMalformedInput, "json document has no body")
	}
	return decodeJSONObject(db, doc.Body, fields)
}

func decodeJSONObject(db *schema.Database, raw json.RawMessage, fields []*schema.Field) (IntermediateMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, statusf(StatusMalformedInput, "json object: %v", err)
	}
	msg := make(IntermediateMessage, 0, len(fields))
	for _, f := range fields {
		v, ok := obj[f.Name]
		if !ok {
			return nil, statusf(StatusMalformedInput, "json body has no field %s", f.Name)
		}
		val, err := decodeJSONField(db, f, v)
		if err != nil {
			return nil, err
		}
		msg = append(msg, FieldValue{Field: f, Value: val})
	}
	return msg, nil
}

// jsonScalar returns the text of a JSON scalar, unquoting strings.
func jsonScalar(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

func decodeJSONField(db *schema.Database, f *schema.Field, raw json.RawMessage) (any, error) {
	switch f.Type {
	case schema.FieldSimple:
		return parseJSONPrimitive(db, f, raw)
	case schema.FieldEnum:
		return parseEnum(f, jsonScalar(raw))
	case schema.FieldString, schema.FieldResponseStr:
		return jsonScalar(raw), nil
	case schema.FieldResponseID:
		n, err := strconv.ParseInt(jsonScalar(raw), 10, 32)
		if err != nil {
			return nil, statusf(StatusMalformedInput, "field %s", f.Name)
		}
		return int32(n), nil
	case schema.FieldFixedArray, schema.FieldVarArray:
		if f.IsCharString() {
			return jsonScalar(raw), nil
		}
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil || len(items) > f.ArrayLength {
			return nil, statusf(StatusMalformedInput, "json array %s", f.Name)
		}
		vals := make([]any, len(items))
		for i, item := range items {
			v, err := parseJSONPrimitive(db, f, item)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		return vals, nil
	case schema.FieldArray:
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil || len(items) > f.ArrayLength {
			return nil, statusf(StatusMalformedInput, "json field array %s", f.Name)
		}
		elems := make([]IntermediateMessage, 0, len(items))
		for _, item := range items {
			elem, err := decodeJSONObject(db, item, f.Fields)
			if err != nil {
				return nil, err
			}
			elems = append(elems, elem)
		}
		return elems, nil
	}
	return nil, statusf(StatusUnsupported, "field %s of type %s", f.Name, f.Type)
}

// parseJSONPrimitive parses a JSON scalar. Hex conversions are written as
// decimal numbers in JSON.
func parseJSONPrimitive(db *schema.Database, f *schema.Field, raw json.RawMessage) (any, error) {
	text := jsonScalar(raw)
	if f.DataType.Name == schema.HexByte || parseConversion(f.ConversionString).isHex() {
		dec := *f
		if dec.DataType.Name == schema.HexByte {
			dec.DataType.Name = schema.UChar
		}
		dec.ConversionString = ""
		return parsePrimitive(db, &dec, text)
	}
	return parsePrimitive(db, f, text)
}
