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

// IntermediateHeader is the format independent form of an OEM4 header.
type IntermediateHeader struct {
	MessageID            uint16
	MessageType          uint8
	Port                 uint32
	Length               uint16
	Sequence             uint16
	IdleTime             uint8
	TimeStatus           TimeStatus
	Week                 uint16
	Milliseconds         float64
	ReceiverStatus       uint32
	MessageDefinitionCRC uint32
	ReceiverSWVersion    uint16
}

const portEnumName = "PortAddress"

// HeaderDecoder decodes headers of every supported format.
type HeaderDecoder struct {
	db *schema.Database
}

// NewHeaderDecoder returns a HeaderDecoder reading names from db.
func NewHeaderDecoder(db *schema.Database) *HeaderDecoder {
	return &HeaderDecoder{db: db}
}

// SetDatabase replaces the database.
func (d *HeaderDecoder) SetDatabase(db *schema.Database) { d.db = db }

// Decode decodes the header at the start of frame. The format is detected
// from the sync bytes and written to meta together with the message id,
// definition CRC, time and header length.
func (d *HeaderDecoder) Decode(frame []byte, meta *MetaData) (IntermediateHeader, error) {
	var hdr IntermediateHeader
	if meta == nil || len(frame) == 0 {
		return hdr, StatusNullProvided
	}
	if d.db == nil {
		return hdr, StatusNoDatabase
	}

	var err error
	switch frame[0] {
	case OEM4BinarySync1:
		err = d.decodeBinary(frame, &hdr, meta)
	case OEM4ASCIISync:
		meta.Format = FormatASCII
		err = d.decodeASCII(frame, &hdr, meta)
	case OEM4ShortASCIISync:
		meta.Format = FormatShortASCII
		err = d.decodeASCII(frame, &hdr, meta)
	case OEM4AbbrevASCIISync:
		err = d.decodeAbbASCII(frame, &hdr, meta)
	case NMEASync:
		meta.Format = FormatNMEA
		meta.HeaderLength = 0
		name := frame[1:]
		if i := bytes.IndexAny(name, ",*"); i >= 0 {
			name = name[:i]
		}
		meta.MessageName = string(name)
	case JSONSync:
		meta.Format = FormatJSON
		err = d.decodeJSON(frame, &hdr, meta)
	default:
		return hdr, statusf(StatusUnknown, "unrecognised sync byte 0x%02x", frame[0])
	}
	if err != nil {
		return hdr, err
	}
	if meta.Format != FormatNMEA {
		meta.MessageID = hdr.MessageID
		meta.MessageCRC = hdr.MessageDefinitionCRC
		meta.TimeStatus = hdr.TimeStatus
		meta.Week = hdr.Week
		meta.Milliseconds = hdr.Milliseconds
		meta.Response = hdr.MessageType&msgTypeResponseBit != 0
		meta.MeasurementSource = MeasurementSource(hdr.MessageType & msgTypeSourceMask)
	}
	return hdr, nil
}

func (d *HeaderDecoder) decodeBinary(frame []byte, hdr *IntermediateHeader, meta *MetaData) error {
	if len(frame) < OEM4BinarySyncLength+1 || frame[1] != OEM4BinarySync2 {
		return statusf(StatusMalformedInput, "truncated binary sync")
	}
	le := binary.LittleEndian
	switch frame[2] {
	case OEM4BinarySync3, OEM4EncryptedBinarySync3:
		if len(frame) < OEM4BinaryHeaderLength {
			return statusf(StatusMalformedInput, "binary header needs %d bytes, got %d", OEM4BinaryHeaderLength, len(frame))
		}
		if hl := int(frame[3]); hl < OEM4BinaryHeaderLength || hl > len(frame) {
			return statusf(StatusMalformedInput, "binary header length %d outside frame of %d bytes", hl, len(frame))
		}
		meta.Format = FormatBinary
		if frame[2] == OEM4EncryptedBinarySync3 {
			meta.Format = FormatEncryptedBinary
		}
		hdr.MessageID = le.Uint16(frame[4:6])
		hdr.MessageType = frame[6]
		hdr.Port = uint32(frame[7])
		hdr.Length = le.Uint16(frame[8:10])
		hdr.Sequence = le.Uint16(frame[10:12])
		hdr.IdleTime = frame[12]
		hdr.TimeStatus = TimeStatus(frame[13])
		hdr.Week = le.Uint16(frame[14:16])
		hdr.Milliseconds = float64(le.Uint32(frame[16:20]))
		hdr.ReceiverStatus = le.Uint32(frame[20:24])
		hdr.MessageDefinitionCRC = uint32(le.Uint16(frame[24:26]))
		hdr.ReceiverSWVersion = le.Uint16(frame[26:28])
		meta.HeaderLength = uint32(frame[3])
		meta.BinaryMsgLength = uint32(hdr.Length)
	case OEM4ShortBinarySync3:
		if len(frame) < OEM4ShortBinaryHeaderLength {
			return statusf(StatusMalformedInput, "short binary header needs %d bytes, got %d", OEM4ShortBinaryHeaderLength, len(frame))
		}
		meta.Format = FormatShortBinary
		hdr.Length = uint16(frame[3])
		hdr.MessageID = le.Uint16(frame[4:6])
		hdr.Week = le.Uint16(frame[6:8])
		hdr.Milliseconds = float64(le.Uint32(frame[8:12]))
		hdr.TimeStatus = TimeUnknown
		meta.HeaderLength = OEM4ShortBinaryHeaderLength
		meta.BinaryMsgLength = uint32(hdr.Length)
	default:
		return statusf(StatusMalformedInput, "unknown binary sync 0x%02x", frame[2])
	}
	if msg, err := d.db.MessageByID(uint32(hdr.MessageID)); err == nil {
		meta.MessageName = msg.Name
	} else {
		meta.MessageName = ""
	}
	return nil
}

// splitMessageName splits an ASCII message name into its base name, response flag
// and measurement source, e.g. "RAWWAASFRAMEA_2" or "LOGR".
func splitMessageName(name string, suffixed bool) (base string, response bool, source uint8) {
	if i := strings.LastIndexByte(name, '_'); i > 0 {
		if n, err := strconv.ParseUint(name[i+1:], 10, 8); err == nil {
			source = uint8(n) & msgTypeSourceMask
			name = name[:i]
		}
	}
	if suffixed && len(name) > 1 {
		switch name[len(name)-1] {
		case 'R':
			response = true
			name = name[:len(name)-1]
		case 'A', 'B':
			name = name[:len(name)-1]
		}
	}
	return name, response, source
}

func (d *HeaderDecoder) resolveName(hdr *IntermediateHeader, meta *MetaData, name string, suffixed bool, formatBits uint8) {
	base, response, source := splitMessageName(name, suffixed)
	if !suffixed {
		// abbreviated headers may or may not carry the A suffix
		if _, err := d.db.MessageByName(base); err != nil {
			base, response, source = splitMessageName(name, true)
		}
	}
	hdr.MessageType = formatBits | source
	if response {
		hdr.MessageType |= msgTypeResponseBit
	}
	meta.MessageName = base
	if msg, err := d.db.MessageByName(base); err == nil {
		hdr.MessageID = uint16(msg.ID)
	} else {
		hdr.MessageID = 0
	}
}

func (d *HeaderDecoder) decodeASCII(frame []byte, hdr *IntermediateHeader, meta *MetaData) error {
	semi := bytes.IndexByte(frame, OEM4ASCIIHeaderTerminator)
	if semi < 0 {
		return statusf(StatusMalformedInput, "ascii header has no terminator")
	}
	tokens := strings.Split(string(frame[1:semi]), string(OEM4ASCIIFieldSeparator))
	meta.HeaderLength = uint32(semi + 1)
	if meta.Format == FormatShortASCII {
		return d.decodeShortHeaderTokens(tokens, hdr, meta)
	}
	return d.decodeHeaderTokens(tokens, hdr, meta, msgTypeASCII)
}

func (d *HeaderDecoder) decodeAbbASCII(frame []byte, hdr *IntermediateHeader, meta *MetaData) error {
	line := frame[1:]
	end := bytes.Index(line, []byte("\r\n"))
	if end < 0 {
		end = len(line)
		meta.HeaderLength = uint32(len(frame))
	} else {
		meta.HeaderLength = uint32(end + 3)
	}
	if IsAbbrevASCIIResponse(frame) {
		meta.Format = FormatAbbASCII
		meta.HeaderLength = 0
		meta.MessageName = ""
		hdr.MessageType = msgTypeAbbASCII | msgTypeResponseBit
		return nil
	}
	tokens := strings.Fields(string(line[:end]))
	switch len(tokens) {
	case 10:
		meta.Format = FormatAbbASCII
		return d.decodeHeaderTokens(tokens, hdr, meta, msgTypeAbbASCII)
	case 3:
		meta.Format = FormatShortAbbASCII
		return d.decodeShortHeaderTokens(tokens, hdr, meta)
	}
	return statusf(StatusMalformedInput, "abbreviated header has %d fields", len(tokens))
}

// IsAbbrevASCIIResponse reports whether frame is a receiver reply such as
// "<OK" or "<ERROR:...".
func IsAbbrevASCIIResponse(frame []byte) bool {
	return bytes.HasPrefix(frame, []byte("<OK")) || bytes.HasPrefix(frame, []byte("<ERROR"))
}

func (d *HeaderDecoder) decodeHeaderTokens(tokens []string, hdr *IntermediateHeader, meta *MetaData, formatBits uint8) error {
	if len(tokens) != 10 {
		return statusf(StatusMalformedInput, "ascii header has %d fields, want 10", len(tokens))
	}
	d.resolveName(hdr, meta, tokens[0], formatBits == msgTypeASCII, formatBits)

	port, err := d.parsePort(tokens[1])
	if err != nil {
		return err
	}
	hdr.Port = port

	seq, err := strconv.ParseUint(tokens[2], 10, 16)
	if err != nil {
		return statusf(StatusMalformedInput, "sequence %q", tokens[2])
	}
	hdr.Sequence = uint16(seq)

	idle, err := strconv.ParseFloat(tokens[3], 64)
	if err != nil {
		return statusf(StatusMalformedInput, "idle time %q", tokens[3])
	}
	hdr.IdleTime = uint8(math.Round(idle * 2))

	ts, err := ParseTimeStatus(tokens[4])
	if err != nil {
		n, nerr := strconv.ParseUint(tokens[4], 10, 8)
		if nerr != nil {
			return statusf(StatusMalformedInput, "time status %q", tokens[4])
		}
		ts = TimeStatus(n)
	}
	hdr.TimeStatus = ts

	if err := parseWeekSeconds(tokens[5], tokens[6], hdr); err != nil {
		return err
	}

	rx, err := strconv.ParseUint(tokens[7], 16, 32)
	if err != nil {
		return statusf(StatusMalformedInput, "receiver status %q", tokens[7])
	}
	hdr.ReceiverStatus = uint32(rx)

	crc, err := strconv.ParseUint(tokens[8], 16, 16)
	if err != nil {
		return statusf(StatusMalformedInput, "definition crc %q", tokens[8])
	}
	hdr.MessageDefinitionCRC = uint32(crc)

	sw, err := strconv.ParseUint(tokens[9], 10, 16)
	if err != nil {
		return statusf(StatusMalformedInput, "software version %q", tokens[9])
	}
	hdr.ReceiverSWVersion = uint16(sw)
	return nil
}

func (d *HeaderDecoder) decodeShortHeaderTokens(tokens []string, hdr *IntermediateHeader, meta *MetaData) error {
	if len(tokens) != 3 {
		return statusf(StatusMalformedInput, "short header has %d fields, want 3", len(tokens))
	}
	d.resolveName(hdr, meta, tokens[0], meta.Format == FormatShortASCII, msgTypeASCII)
	hdr.TimeStatus = TimeUnknown
	return parseWeekSeconds(tokens[1], tokens[2], hdr)
}

func parseWeekSeconds(week, seconds string, hdr *IntermediateHeader) error {
	w, err := strconv.ParseUint(week, 10, 16)
	if err != nil {
		return statusf(StatusMalformedInput, "week %q", week)
	}
	s, err := strconv.ParseFloat(seconds, 64)
	if err != nil {
		return statusf(StatusMalformedInput, "seconds %q", seconds)
	}
	hdr.Week = uint16(w)
	hdr.Milliseconds = math.Round(s * 1000)
	return nil
}

func (d *HeaderDecoder) parsePort(token string) (uint32, error) {
	return parseEnumToken(d.db, portEnumName, token)
}

// parseEnumToken resolves a symbolic name through the named enum, falling
// back to a decimal value.
func parseEnumToken(db *schema.Database, enumName, token string) (uint32, error) {
	if db != nil {
		if e, err := db.EnumByName(enumName); err == nil {
			if v, ok := e.ByName(token); ok {
				return uint32(v), nil
			}
		}
	}
	n, err := strconv.ParseUint(token, 10, 32)
	if err != nil {
		return 0, statusf(StatusMalformedInput, "unknown %s %q", enumName, token)
	}
	return uint32(n), nil
}

// enumName renders value through the named enum, falling back to decimal.
func enumName(db *schema.Database, enumName string, value uint32) string {
	if db != nil {
		if e, err := db.EnumByName(enumName); err == nil {
			if name, ok := e.ByValue(int32(value)); ok {
				return name
			}
		}
	}
	return strconv.FormatUint(uint64(value), 10)
}

type jsonHeader struct {
	Message           string          `json:"message"`
	ID                uint16          `json:"id"`
	Port              json.RawMessage `json:"port"`
	SequenceNum       uint16          `json:"sequence_num"`
	PercentIdleTime   float64         `json:"percent_idle_time"`
	TimeStatus        string          `json:"time_status"`
	Week              uint16          `json:"week"`
	Seconds           float64         `json:"seconds"`
	ReceiverStatus    uint32          `json:"receiver_status"`
	Reserved1         uint32          `json:"HEADER_reserved1"`
	ReceiverSWVersion uint16          `json:"receiver_sw_version"`
}

func (d *HeaderDecoder) decodeJSON(frame []byte, hdr *IntermediateHeader, meta *MetaData) error {
	var doc struct {
		Header *jsonHeader `json:"header"`
	}
	if err := json.Unmarshal(frame, &doc); err != nil {
		return statusf(StatusMalformedInput, "json header: %v", err)
	}
	if doc.Header == nil {
		return statusf(StatusMalformedInput, "json document has no header")
	}
	h := doc.Header
	// header and body share one document
	meta.HeaderLength = 0
	meta.MessageName = h.Message
	hdr.MessageID = h.ID
	if h.ID == 0 {
		if msg, err := d.db.MessageByName(h.Message); err == nil {
			hdr.MessageID = uint16(msg.ID)
		}
	}

	var portName string
	if err := json.Unmarshal(h.Port, &portName); err == nil {
		port, err := d.parsePort(portName)
		if err != nil {
			return err
		}
		hdr.Port = port
	} else if len(h.Port) > 0 {
		n, err := strconv.ParseUint(string(h.Port), 10, 32)
		if err != nil {
			return statusf(StatusMalformedInput, "json port %s", h.Port)
		}
		hdr.Port = uint32(n)
	}

	hdr.Sequence = h.SequenceNum
	hdr.IdleTime = uint8(math.Round(h.PercentIdleTime * 2))
	ts, err := ParseTimeStatus(h.TimeStatus)
	if err != nil {
		return statusf(StatusMalformedInput, "json time status %q", h.TimeStatus)
	}
	hdr.TimeStatus = ts
	hdr.Week = h.Week
	hdr.Milliseconds = math.Round(h.Seconds * 1000)
	hdr.ReceiverStatus = h.ReceiverStatus
	hdr.MessageDefinitionCRC = h.Reserved1
	hdr.ReceiverSWVersion = h.ReceiverSWVersion
	return nil
}
