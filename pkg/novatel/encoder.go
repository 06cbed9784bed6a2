package novatel

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"firestige.xyz/edie/pkg/schema"
)

// Encoder writes intermediate messages in any supported format.
type Encoder struct {
	db *schema.Database
}

// NewEncoder returns an Encoder using db for enum and message names.
func NewEncoder(db *schema.Database) *Encoder {
	return &Encoder{db: db}
}

// SetDatabase replaces the database.
func (e *Encoder) SetDatabase(db *schema.Database) { e.db = db }

const (
	abbrevBodyIndent  = "<     "
	abbrevArrayIndent = "<          "
)

// Encode serialises hdr and msg. Messages that arrived with a short header
// keep it when re-encoded as ASCII or BINARY.
func (e *Encoder) Encode(hdr *IntermediateHeader, msg IntermediateMessage, meta *MetaData, format EncodeFormat) (MessageData, error) {
	if hdr == nil || meta == nil {
		return MessageData{}, StatusNullProvided
	}
	if e.db == nil {
		return MessageData{}, StatusNoDatabase
	}

	short := meta.Format == FormatShortASCII || meta.Format == FormatShortBinary || meta.Format == FormatShortAbbASCII
	var (
		out MessageData
		err error
	)
	switch format {
	case EncodeASCII:
		out, err = e.encodeASCII(hdr, msg, meta, short)
	case EncodeAbbrevASCII:
		out, err = e.encodeAbbrevASCII(hdr, msg, meta, short)
	case EncodeBinary:
		out, err = e.encodeBinary(hdr, msg, meta, short, false)
	case EncodeFlattenedBinary:
		out, err = e.encodeBinary(hdr, msg, meta, false, true)
	case EncodeJSON:
		out, err = e.encodeJSON(hdr, msg, meta)
	default:
		return MessageData{}, statusf(StatusUnsupported, "encode format %s", format)
	}
	if err != nil {
		logger().Warnf("encoder: %s %s: %v", meta.MessageName, format, err)
		return MessageData{}, err
	}
	if len(out.Message) > MaxMessageLength {
		return MessageData{}, statusf(StatusBufferFull, "encoded %s is %d bytes", format, len(out.Message))
	}
	return out, nil
}

func (e *Encoder) messageName(hdr *IntermediateHeader, meta *MetaData) string {
	if meta.MessageName != "" {
		return meta.MessageName
	}
	if msg, err := e.db.MessageByID(uint32(hdr.MessageID)); err == nil {
		return msg.Name
	}
	return strconv.Itoa(int(hdr.MessageID))
}

// asciiName appends the A or R suffix and the measurement source.
func (e *Encoder) asciiName(hdr *IntermediateHeader, meta *MetaData) string {
	name := e.messageName(hdr, meta)
	if hdr.MessageType&msgTypeResponseBit != 0 {
		name += "R"
	} else {
		name += "A"
	}
	if src := hdr.MessageType & msgTypeSourceMask; src != 0 {
		name += "_" + strconv.Itoa(int(src))
	}
	return name
}

func idleString(idle uint8) string {
	return strconv.FormatFloat(float64(idle)/2, 'f', 1, 64)
}

func secondsString(ms float64) string {
	return strconv.FormatFloat(ms/1000, 'f', 3, 64)
}

func (e *Encoder) headerTokens(hdr *IntermediateHeader, meta *MetaData, short bool) []string {
	if short {
		return []string{
			e.asciiName(hdr, meta),
			strconv.Itoa(int(hdr.Week)),
			secondsString(hdr.Milliseconds),
		}
	}
	return []string{
		e.asciiName(hdr, meta),
		enumName(e.db, portEnumName, hdr.Port),
		strconv.Itoa(int(hdr.Sequence)),
		idleString(hdr.IdleTime),
		hdr.TimeStatus.String(),
		strconv.Itoa(int(hdr.Week)),
		secondsString(hdr.Milliseconds),
		fmt.Sprintf("%08x", hdr.ReceiverStatus),
		fmt.Sprintf("%04x", hdr.MessageDefinitionCRC),
		strconv.Itoa(int(hdr.ReceiverSWVersion)),
	}
}

func (e *Encoder) encodeASCII(hdr *IntermediateHeader, msg IntermediateMessage, meta *MetaData, short bool) (MessageData, error) {
	var buf bytes.Buffer
	if short {
		buf.WriteByte(OEM4ShortASCIISync)
	} else {
		buf.WriteByte(OEM4ASCIISync)
	}
	buf.WriteString(strings.Join(e.headerTokens(hdr, meta, short), ","))
	buf.WriteByte(OEM4ASCIIHeaderTerminator)
	headerLen := buf.Len()

	if meta.Response {
		buf.WriteString(responseText(msg))
	} else {
		w := textWriter{db: e.db, sep: ","}
		if err := w.fields(msg); err != nil {
			return MessageData{}, err
		}
		buf.WriteString(strings.Join(w.tokens, ","))
	}
	bodyLen := buf.Len() - headerLen

	crc := CRC32(buf.Bytes()[1:])
	fmt.Fprintf(&buf, "*%08x\r\n", crc)
	return MessageData{Message: buf.Bytes(), HeaderLength: headerLen, BodyLength: bodyLen}, nil
}

func (e *Encoder) encodeAbbrevASCII(hdr *IntermediateHeader, msg IntermediateMessage, meta *MetaData, short bool) (MessageData, error) {
	var buf bytes.Buffer
	buf.WriteByte(OEM4AbbrevASCIISync)
	buf.WriteString(strings.Join(e.headerTokens(hdr, meta, short), " "))
	buf.WriteString("\r\n")
	headerLen := buf.Len()

	if meta.Response {
		buf.WriteString(abbrevBodyIndent)
		buf.WriteString(responseText(msg))
		buf.WriteString("\r\n")
		return MessageData{Message: buf.Bytes(), HeaderLength: headerLen, BodyLength: buf.Len() - headerLen}, nil
	}

	buf.WriteString(abbrevBodyIndent)
	if err := e.writeAbbrevFields(&buf, msg); err != nil {
		return MessageData{}, err
	}
	buf.WriteString("\r\n")
	return MessageData{Message: buf.Bytes(), HeaderLength: headerLen, BodyLength: buf.Len() - headerLen}, nil
}

// writeAbbrevFields writes scalars on the current line and every field array
// element on its own indented line.
func (e *Encoder) writeAbbrevFields(buf *bytes.Buffer, msg IntermediateMessage) error {
	first := true
	for _, fv := range msg {
		if fv.Field.Type == schema.FieldArray {
			elems, _ := fv.Value.([]IntermediateMessage)
			if !first {
				buf.WriteByte(' ')
			}
			buf.WriteString(strconv.Itoa(len(elems)))
			for _, elem := range elems {
				w := textWriter{db: e.db, sep: " "}
				if err := w.fields(elem); err != nil {
					return err
				}
				buf.WriteString("\r\n")
				buf.WriteString(abbrevArrayIndent)
				buf.WriteString(strings.Join(w.tokens, " "))
			}
			first = false
			continue
		}
		w := textWriter{db: e.db, sep: " "}
		if err := w.field(fv); err != nil {
			return err
		}
		if len(w.tokens) == 0 {
			continue
		}
		if !first {
			buf.WriteByte(' ')
		}
		buf.WriteString(strings.Join(w.tokens, " "))
		first = false
	}
	return nil
}

func responseText(msg IntermediateMessage) string {
	id, _ := msg.Get("response_id")
	text, _ := msg.Get("response_str")
	s, _ := text.(string)
	if n, ok := toInt64(id); ok && n == responseOK {
		return "OK"
	}
	return "ERROR:" + s
}

// textWriter renders fields as ASCII tokens.
type textWriter struct {
	db     *schema.Database
	sep    string
	tokens []string
}

func (w *textWriter) fields(msg IntermediateMessage) error {
	for _, fv := range msg {
		if err := w.field(fv); err != nil {
			return err
		}
	}
	return nil
}

func (w *textWriter) field(fv FieldValue) error {
	f := fv.Field
	switch f.Type {
	case schema.FieldSimple:
		s, err := formatPrimitive(w.db, f, fv.Value, false)
		if err != nil {
			return err
		}
		w.tokens = append(w.tokens, s)
	case schema.FieldEnum:
		w.tokens = append(w.tokens, formatEnum(f, fv.Value))
	case schema.FieldString:
		s, _ := fv.Value.(string)
		w.tokens = append(w.tokens, `"`+s+`"`)
	case schema.FieldFixedArray, schema.FieldVarArray:
		if f.IsCharString() {
			s, _ := fv.Value.(string)
			w.tokens = append(w.tokens, `"`+s+`"`)
			return nil
		}
		vals, _ := fv.Value.([]any)
		if f.Type == schema.FieldVarArray {
			w.tokens = append(w.tokens, strconv.Itoa(len(vals)))
		}
		for _, v := range vals {
			s, err := formatPrimitive(w.db, f, v, false)
			if err != nil {
				return err
			}
			w.tokens = append(w.tokens, s)
		}
	case schema.FieldArray:
		elems, _ := fv.Value.([]IntermediateMessage)
		w.tokens = append(w.tokens, strconv.Itoa(len(elems)))
		for _, elem := range elems {
			if err := w.fields(elem); err != nil {
				return err
			}
		}
	case schema.FieldResponseID, schema.FieldResponseStr:
	default:
		return statusf(StatusUnsupported, "field %s of type %s", f.Name, f.Type)
	}
	return nil
}

func formatEnum(f *schema.Field, v any) string {
	n, _ := toInt64(v)
	if f.Enum != nil {
		if name, ok := f.Enum.ByValue(int32(n)); ok {
			return name
		}
	}
	return strconv.FormatInt(n, 10)
}

// formatPrimitive renders one scalar. In JSON mode hex conversions become
// decimal numbers and booleans are lower case.
func formatPrimitive(db *schema.Database, f *schema.Field, v any, jsonMode bool) (string, error) {
	conv := parseConversion(f.ConversionString)
	if conv.isMessageID() {
		n, _ := toInt64(v)
		name := formatMessageID(db, uint32(n))
		if jsonMode {
			return quoteJSON(name), nil
		}
		return name, nil
	}
	if jsonMode && conv.isHex() {
		conv = noConversion
	}

	switch x := v.(type) {
	case bool:
		if jsonMode {
			return strconv.FormatBool(x), nil
		}
		if x {
			return "TRUE", nil
		}
		return "FALSE", nil
	case float32:
		return conv.formatFloat(float64(x)), nil
	case float64:
		return conv.formatFloat(x), nil
	case SatelliteID:
		if jsonMode {
			return quoteJSON(x.String()), nil
		}
		return x.String(), nil
	case int8:
		if conv.verb == 'c' {
			if jsonMode {
				return quoteJSON(string(rune(byte(x)))), nil
			}
			return string(rune(byte(x))), nil
		}
		return conv.formatInt(int64(x), uint64(uint8(x)), true), nil
	case uint8:
		if f.DataType.Name == schema.HexByte && !jsonMode && conv.verb == 0 {
			return fmt.Sprintf("%02x", x), nil
		}
		if conv.verb == 'c' {
			if jsonMode {
				return quoteJSON(string(rune(x))), nil
			}
			return string(rune(x)), nil
		}
		return conv.formatInt(int64(x), uint64(x), false), nil
	case int16:
		return conv.formatInt(int64(x), uint64(uint16(x)), true), nil
	case uint16:
		return conv.formatInt(int64(x), uint64(x), false), nil
	case int32:
		return conv.formatInt(int64(x), uint64(uint32(x)), true), nil
	case uint32:
		return conv.formatInt(int64(x), uint64(x), false), nil
	case int64:
		return conv.formatInt(x, uint64(x), true), nil
	case uint64:
		return conv.formatInt(int64(x), x, false), nil
	}
	return "", statusf(StatusMalformedInput, "field %s holds %T", f.Name, v)
}

func quoteJSON(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return strconv.Quote(s)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func (e *Encoder) encodeBinary(hdr *IntermediateHeader, msg IntermediateMessage, meta *MetaData, short, flatten bool) (MessageData, error) {
	w := binaryWriter{flatten: flatten}
	if meta.Response {
		if err := w.response(msg); err != nil {
			return MessageData{}, err
		}
	} else if err := w.fields(msg); err != nil {
		return MessageData{}, err
	}
	body := w.buf.Bytes()

	var out []byte
	le := binary.LittleEndian
	if short {
		if len(body) > 0xFF {
			return MessageData{}, statusf(StatusBufferFull, "short binary body of %d bytes", len(body))
		}
		out = make([]byte, OEM4ShortBinaryHeaderLength, OEM4ShortBinaryHeaderLength+len(body)+OEM4BinaryCRCLength)
		out[0], out[1], out[2] = OEM4BinarySync1, OEM4BinarySync2, OEM4ShortBinarySync3
		out[3] = byte(len(body))
		le.PutUint16(out[4:], hdr.MessageID)
		le.PutUint16(out[6:], hdr.Week)
		le.PutUint32(out[8:], uint32(math.Round(hdr.Milliseconds)))
	} else {
		if len(body) > MaxBinaryMessageLength {
			return MessageData{}, statusf(StatusBufferFull, "binary body of %d bytes", len(body))
		}
		out = make([]byte, OEM4BinaryHeaderLength, OEM4BinaryHeaderLength+len(body)+OEM4BinaryCRCLength)
		out[0], out[1], out[2] = OEM4BinarySync1, OEM4BinarySync2, OEM4BinarySync3
		out[3] = OEM4BinaryHeaderLength
		le.PutUint16(out[4:], hdr.MessageID)
		out[6] = hdr.MessageType&^msgTypeFormatMask | originalFormatBits(meta.Format)
		out[7] = byte(hdr.Port)
		le.PutUint16(out[8:], uint16(len(body)))
		le.PutUint16(out[10:], hdr.Sequence)
		out[12] = hdr.IdleTime
		out[13] = byte(hdr.TimeStatus)
		le.PutUint16(out[14:], hdr.Week)
		le.PutUint32(out[16:], uint32(math.Round(hdr.Milliseconds)))
		le.PutUint32(out[20:], hdr.ReceiverStatus)
		le.PutUint16(out[24:], uint16(hdr.MessageDefinitionCRC))
		le.PutUint16(out[26:], hdr.ReceiverSWVersion)
	}
	headerLen := len(out)
	out = append(out, body...)
	out = le.AppendUint32(out, CRC32(out))
	return MessageData{Message: out, HeaderLength: headerLen, BodyLength: len(body)}, nil
}

// originalFormatBits records which format a binary message was converted from.
func originalFormatBits(f HeaderFormat) uint8 {
	switch f {
	case FormatASCII, FormatShortASCII, FormatJSON:
		return msgTypeASCII
	case FormatAbbASCII, FormatShortAbbASCII:
		return msgTypeAbbASCII
	case FormatNMEA:
		return msgTypeNMEA
	}
	return msgTypeBinary
}

type binaryWriter struct {
	buf     bytes.Buffer
	flatten bool
}

// padFrom zero-fills so the bytes written since start are a multiple of 4.
// Padding is relative to the field, the same rule the decoder applies.
func (w *binaryWriter) padFrom(start int) {
	for (w.buf.Len()-start)%4 != 0 {
		w.buf.WriteByte(0)
	}
}

func (w *binaryWriter) zeros(n int) {
	for i := 0; i < n; i++ {
		w.buf.WriteByte(0)
	}
}

func (w *binaryWriter) fields(msg IntermediateMessage) error {
	for _, fv := range msg {
		if err := w.field(fv); err != nil {
			return err
		}
	}
	return nil
}

func (w *binaryWriter) field(fv FieldValue) error {
	f := fv.Field
	switch f.Type {
	case schema.FieldSimple:
		return writePrimitive(&w.buf, f, f.DataType, fv.Value)
	case schema.FieldEnum:
		n, _ := toInt64(fv.Value)
		size := f.DataType.Size()
		if size == 0 {
			size = 4
		}
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], uint64(n))
		w.buf.Write(tmp[:size])
	case schema.FieldString:
		s, _ := fv.Value.(string)
		start := w.buf.Len()
		w.buf.WriteString(s)
		w.buf.WriteByte(0)
		if w.flatten && w.buf.Len()-start < f.ArrayLength {
			w.zeros(f.ArrayLength - (w.buf.Len() - start))
		}
		w.padFrom(start)
	case schema.FieldFixedArray, schema.FieldVarArray:
		size := f.DataType.Size()
		if f.IsCharString() {
			s, _ := fv.Value.(string)
			if len(s) > f.ArrayLength {
				return statusf(StatusMalformedInput, "field %s: %d characters exceed %d", f.Name, len(s), f.ArrayLength)
			}
			capacity := f.ArrayLength
			if f.Type == schema.FieldVarArray {
				binary.Write(&w.buf, binary.LittleEndian, uint32(len(s)))
				if !w.flatten {
					capacity = len(s)
				}
			}
			start := w.buf.Len()
			w.buf.WriteString(s)
			w.zeros(capacity*size - len(s))
			w.padFrom(start)
			return nil
		}
		vals, _ := fv.Value.([]any)
		if len(vals) > f.ArrayLength {
			return statusf(StatusMalformedInput, "field %s: %d elements exceed %d", f.Name, len(vals), f.ArrayLength)
		}
		capacity := len(vals)
		if f.Type == schema.FieldVarArray {
			binary.Write(&w.buf, binary.LittleEndian, uint32(len(vals)))
			if w.flatten {
				capacity = f.ArrayLength
			}
		} else {
			capacity = f.ArrayLength
		}
		start := w.buf.Len()
		for _, v := range vals {
			if err := writePrimitive(&w.buf, f, f.DataType, v); err != nil {
				return err
			}
		}
		w.zeros((capacity - len(vals)) * size)
		w.padFrom(start)
	case schema.FieldArray:
		elems, _ := fv.Value.([]IntermediateMessage)
		if len(elems) > f.ArrayLength {
			return statusf(StatusMalformedInput, "field array %s: %d elements exceed %d", f.Name, len(elems), f.ArrayLength)
		}
		binary.Write(&w.buf, binary.LittleEndian, uint32(len(elems)))
		for _, elem := range elems {
			start := w.buf.Len()
			if err := w.fields(elem); err != nil {
				return err
			}
			w.padFrom(start)
		}
		if w.flatten {
			w.zeros((f.ArrayLength - len(elems)) * flatSize(f.Fields))
		}
	default:
		return statusf(StatusUnsupported, "field %s of type %s", f.Name, f.Type)
	}
	return nil
}

// flatSize is the expanded size of one field array element.
func flatSize(fields []*schema.Field) int {
	n := 0
	for _, f := range fields {
		switch f.Type {
		case schema.FieldSimple, schema.FieldEnum:
			size := f.DataType.Size()
			if size == 0 {
				size = 4
			}
			n += size
		case schema.FieldString:
			n += align4(f.ArrayLength)
		case schema.FieldFixedArray:
			n += align4(f.ArrayLength * f.DataType.Size())
		case schema.FieldVarArray:
			n += 4 + align4(f.ArrayLength*f.DataType.Size())
		case schema.FieldArray:
			n += 4 + f.ArrayLength*flatSize(f.Fields)
		}
	}
	return align4(n)
}

func writePrimitive(buf *bytes.Buffer, f *schema.Field, dt schema.DataType, v any) error {
	var tmp [8]byte
	le := binary.LittleEndian
	size := dt.Size()
	switch dt.Name {
	case schema.Float:
		x, ok := toFloat64(v)
		if !ok {
			break
		}
		le.PutUint32(tmp[:], math.Float32bits(float32(x)))
		buf.Write(tmp[:4])
		return nil
	case schema.Double:
		x, ok := toFloat64(v)
		if !ok {
			break
		}
		le.PutUint64(tmp[:], math.Float64bits(x))
		buf.Write(tmp[:8])
		return nil
	case schema.SatelliteID:
		id, ok := v.(SatelliteID)
		if !ok {
			break
		}
		le.PutUint16(tmp[:], id.PRN)
		le.PutUint16(tmp[2:], uint16(id.Channel))
		buf.Write(tmp[:4])
		return nil
	default:
		n, ok := toInt64(v)
		if !ok || size > 8 || size == 0 {
			break
		}
		if u, isU64 := v.(uint64); isU64 {
			le.PutUint64(tmp[:], u)
		} else {
			le.PutUint64(tmp[:], uint64(n))
		}
		buf.Write(tmp[:size])
		return nil
	}
	return statusf(StatusMalformedInput, "field %s: cannot write %T as %s", f.Name, v, dt.Name)
}

func (w *binaryWriter) response(msg IntermediateMessage) error {
	id, _ := msg.Get("response_id")
	text, _ := msg.Get("response_str")
	n, _ := toInt64(id)
	s, _ := text.(string)
	binary.Write(&w.buf, binary.LittleEndian, uint32(n))
	start := w.buf.Len()
	w.buf.WriteString(s)
	w.buf.WriteByte(0)
	w.padFrom(start)
	return nil
}

func (e *Encoder) encodeJSON(hdr *IntermediateHeader, msg IntermediateMessage, meta *MetaData) (MessageData, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"header": {`)
	pairs := []string{
		`"message": ` + quoteJSON(e.messageName(hdr, meta)),
		`"id": ` + strconv.Itoa(int(hdr.MessageID)),
		`"port": ` + quoteJSON(enumName(e.db, portEnumName, hdr.Port)),
		`"sequence_num": ` + strconv.Itoa(int(hdr.Sequence)),
		`"percent_idle_time": ` + idleString(hdr.IdleTime),
		`"time_status": ` + quoteJSON(hdr.TimeStatus.String()),
		`"week": ` + strconv.Itoa(int(hdr.Week)),
		`"seconds": ` + secondsString(hdr.Milliseconds),
		`"receiver_status": ` + strconv.FormatUint(uint64(hdr.ReceiverStatus), 10),
		`"HEADER_reserved1": ` + strconv.FormatUint(uint64(hdr.MessageDefinitionCRC), 10),
		`"receiver_sw_version": ` + strconv.Itoa(int(hdr.ReceiverSWVersion)),
	}
	buf.WriteString(strings.Join(pairs, ","))
	buf.WriteString(`},"body": `)
	headerLen := buf.Len()

	if meta.Response {
		id, _ := msg.Get("response_id")
		text, _ := msg.Get("response_str")
		n, _ := toInt64(id)
		s, _ := text.(string)
		fmt.Fprintf(&buf, `{"response_id": %d,"response_str": %s}`, n, quoteJSON(s))
	} else {
		body, err := e.jsonObject(msg)
		if err != nil {
			return MessageData{}, err
		}
		buf.WriteString(body)
	}
	bodyLen := buf.Len() - headerLen
	buf.WriteByte('}')
	return MessageData{Message: buf.Bytes(), HeaderLength: headerLen, BodyLength: bodyLen}, nil
}

func (e *Encoder) jsonObject(msg IntermediateMessage) (string, error) {
	pairs := make([]string, 0, len(msg))
	for _, fv := range msg {
		v, err := e.jsonValue(fv)
		if err != nil {
			return "", err
		}
		pairs = append(pairs, quoteJSON(fv.Field.Name)+": "+v)
	}
	return "{" + strings.Join(pairs, ",") + "}", nil
}

func (e *Encoder) jsonValue(fv FieldValue) (string, error) {
	f := fv.Field
	switch f.Type {
	case schema.FieldSimple:
		return formatPrimitive(e.db, f, fv.Value, true)
	case schema.FieldEnum:
		n, _ := toInt64(fv.Value)
		if f.Enum != nil {
			if name, ok := f.Enum.ByValue(int32(n)); ok {
				return quoteJSON(name), nil
			}
		}
		return strconv.FormatInt(n, 10), nil
	case schema.FieldString, schema.FieldResponseStr:
		s, _ := fv.Value.(string)
		return quoteJSON(s), nil
	case schema.FieldResponseID:
		n, _ := toInt64(fv.Value)
		return strconv.FormatInt(n, 10), nil
	case schema.FieldFixedArray, schema.FieldVarArray:
		if f.IsCharString() {
			s, _ := fv.Value.(string)
			return quoteJSON(s), nil
		}
		vals, _ := fv.Value.([]any)
		items := make([]string, len(vals))
		for i, v := range vals {
			s, err := formatPrimitive(e.db, f, v, true)
			if err != nil {
				return "", err
			}
			items[i] = s
		}
		return "[" + strings.Join(items, ",") + "]", nil
	case schema.FieldArray:
		elems, _ := fv.Value.([]IntermediateMessage)
		items := make([]string, len(elems))
		for i, elem := range elems {
			s, err := e.jsonObject(elem)
			if err != nil {
				return "", err
			}
			items[i] = s
		}
		return "[" + strings.Join(items, ",") + "]", nil
	}
	return "", statusf(StatusUnsupported, "field %s of type %s", f.Name, f.Type)
}
