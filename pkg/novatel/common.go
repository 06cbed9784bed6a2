// Package novatel frames, decodes, filters and encodes NovAtel OEM4 protocol
// streams using a schema.Database for message layouts.
package novatel

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the outcome of a core operation. Every status other than
// StatusSuccess is also returned as an error value.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusUnknown
	StatusIncomplete
	StatusIncompleteMoreData
	StatusNullProvided
	StatusNoDatabase
	StatusNoDefinition
	StatusNoDefinitionEmbedded
	StatusBufferFull
	StatusBufferEmpty
	StatusStreamEmpty
	StatusUnsupported
	StatusMalformedInput
	StatusDecompressionFailure
)

var statusNames = [...]string{
	"SUCCESS",
	"FAILURE",
	"UNKNOWN",
	"INCOMPLETE",
	"INCOMPLETE_MORE_DATA",
	"NULL_PROVIDED",
	"NO_DATABASE",
	"NO_DEFINITION",
	"NO_DEFINITION_EMBEDDED",
	"BUFFER_FULL",
	"BUFFER_EMPTY",
	"STREAM_EMPTY",
	"UNSUPPORTED",
	"MALFORMED_INPUT",
	"DECOMPRESSION_FAILURE",
}

func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("STATUS(%d)", int(s))
}

func (s Status) Error() string {
	return "edie: " + s.String()
}

// StatusOf extracts the Status carried by err.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var st Status
	if errors.As(err, &st) {
		return st
	}
	return StatusFailure
}

// Retryable reports whether the caller only needs to supply more data.
func (s Status) Retryable() bool {
	return s == StatusIncomplete || s == StatusIncompleteMoreData ||
		s == StatusBufferEmpty || s == StatusStreamEmpty
}

// statusf wraps st with context.
func statusf(st Status, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), st)
}

// HeaderFormat is the wire format a frame was recognised as.
type HeaderFormat int

const (
	FormatUnknown HeaderFormat = iota + 1
	FormatBinary
	FormatShortBinary
	FormatEncryptedBinary
	FormatASCII
	FormatShortASCII
	FormatAbbASCII
	FormatNMEA
	FormatJSON
	FormatShortAbbASCII
	FormatAll
)

var headerFormatNames = map[HeaderFormat]string{
	FormatUnknown:         "UNKNOWN",
	FormatBinary:          "BINARY",
	FormatShortBinary:     "SHORT_BINARY",
	FormatEncryptedBinary: "ENCRYPTED_BINARY",
	FormatASCII:           "ASCII",
	FormatShortASCII:      "SHORT_ASCII",
	FormatAbbASCII:        "ABB_ASCII",
	FormatNMEA:            "NMEA",
	FormatJSON:            "JSON",
	FormatShortAbbASCII:   "SHORT_ABB_ASCII",
	FormatAll:             "ALL",
}

func (f HeaderFormat) String() string {
	if name, ok := headerFormatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("FORMAT(%d)", int(f))
}

// ParseHeaderFormat parses a HeaderFormat name.
func ParseHeaderFormat(s string) (HeaderFormat, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for f, name := range headerFormatNames {
		if name == upper {
			return f, nil
		}
	}
	return FormatUnknown, fmt.Errorf("unknown header format %q", s)
}

// EncodeFormat is an Encoder target.
type EncodeFormat int

const (
	EncodeFlattenedBinary EncodeFormat = iota
	EncodeASCII
	EncodeAbbrevASCII
	EncodeBinary
	EncodeJSON
	EncodeUnspecified
)

var encodeFormatNames = [...]string{
	"FLATTENED_BINARY",
	"ASCII",
	"ABBREV_ASCII",
	"BINARY",
	"JSON",
	"UNSPECIFIED",
}

func (f EncodeFormat) String() string {
	if f >= 0 && int(f) < len(encodeFormatNames) {
		return encodeFormatNames[f]
	}
	return fmt.Sprintf("ENCODEFORMAT(%d)", int(f))
}

// ParseEncodeFormat parses an EncodeFormat name, case-insensitively.
func ParseEncodeFormat(s string) (EncodeFormat, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range encodeFormatNames {
		if name == upper {
			return EncodeFormat(i), nil
		}
	}
	return EncodeUnspecified, fmt.Errorf("unknown encode format %q", s)
}

// TimeStatus is the GPS reference time quality.
type TimeStatus uint32

const (
	TimeUnknown            TimeStatus = 20
	TimeApproximate        TimeStatus = 60
	TimeCoarseAdjusting    TimeStatus = 80
	TimeCoarse             TimeStatus = 100
	TimeCoarseSteering     TimeStatus = 120
	TimeFreewheeling       TimeStatus = 130
	TimeFineAdjusting      TimeStatus = 140
	TimeFine               TimeStatus = 160
	TimeFineBackupSteering TimeStatus = 170
	TimeFineSteering       TimeStatus = 180
	TimeSatTime            TimeStatus = 200
	TimeExtern             TimeStatus = 220
	TimeExact              TimeStatus = 240
)

var timeStatusNames = map[TimeStatus]string{
	TimeUnknown:            "UNKNOWN",
	TimeApproximate:        "APPROXIMATE",
	TimeCoarseAdjusting:    "COARSEADJUSTING",
	TimeCoarse:             "COARSE",
	TimeCoarseSteering:     "COARSESTEERING",
	TimeFreewheeling:       "FREEWHEELING",
	TimeFineAdjusting:      "FINEADJUSTING",
	TimeFine:               "FINE",
	TimeFineBackupSteering: "FINEBACKUPSTEERING",
	TimeFineSteering:       "FINESTEERING",
	TimeSatTime:            "SATTIME",
	TimeExtern:             "EXTERN",
	TimeExact:              "EXACT",
}

func (t TimeStatus) String() string {
	if name, ok := timeStatusNames[t]; ok {
		return name
	}
	return fmt.Sprintf("%d", uint32(t))
}

// ParseTimeStatus parses a time status name.
func ParseTimeStatus(s string) (TimeStatus, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for t, name := range timeStatusNames {
		if name == upper {
			return t, nil
		}
	}
	return TimeUnknown, fmt.Errorf("unknown time status %q", s)
}

// MeasurementSource identifies the antenna a message belongs to.
type MeasurementSource uint32

const (
	SourcePrimary MeasurementSource = iota
	SourceSecondary
)

func (m MeasurementSource) String() string {
	switch m {
	case SourcePrimary:
		return "PRIMARY"
	case SourceSecondary:
		return "SECONDARY"
	default:
		return fmt.Sprintf("SOURCE(%d)", uint32(m))
	}
}

const (
	MaxMessageLength            = 32768
	MaxASCIIMessageLength       = MaxMessageLength
	MaxBinaryMessageLength      = MaxMessageLength
	MaxShortASCIIMessageLength  = MaxMessageLength
	MaxShortBinaryMessageLength = OEM4ShortBinaryHeaderLength + 0xFF + OEM4BinaryCRCLength
	MaxAbbASCIIResponseLength   = MaxMessageLength
	MaxNMEAMessageLength        = 256

	NMEASync      = '$'
	NMEACRCLength = 2

	OEM4ASCIISync             = '#'
	OEM4ASCIIFieldSeparator   = ','
	OEM4ASCIIHeaderTerminator = ';'
	OEM4ASCIICRCDelimiter     = '*'
	OEM4ASCIICRCLength        = 8
	OEM4ASCIIMessageNameMax   = 40
	OEM4ShortASCIISync        = '%'
	OEM4AbbrevASCIISync       = '<'
	OEM4AbbrevASCIISeparator  = ' '

	OEM4BinarySync1             = 0xAA
	OEM4BinarySync2             = 0x44
	OEM4BinarySync3             = 0x12
	OEM4BinarySyncLength        = 3
	OEM4BinaryHeaderLength      = 28
	OEM4BinaryCRCLength         = 4
	OEM4ShortBinarySync3        = 0x13
	OEM4ShortBinaryHeaderLength = 12
	OEM4EncryptedBinarySync3    = 0x45

	JSONSync = '{'
)

// Message type byte layout.
const (
	msgTypeResponseBit = 0x80
	msgTypeFormatMask  = 0x60
	msgTypeSourceMask  = 0x1F

	msgTypeBinary   = 0x00
	msgTypeASCII    = 0x20
	msgTypeAbbASCII = 0x40
	msgTypeNMEA     = 0x60
)

// MetaData describes one framed or decoded message.
type MetaData struct {
	Format            HeaderFormat
	MeasurementSource MeasurementSource
	TimeStatus        TimeStatus
	Response          bool
	Week              uint16
	Milliseconds      float64
	BinaryMsgLength   uint32
	Length            uint32
	HeaderLength      uint32
	MessageID         uint16
	MessageCRC        uint32
	MessageName       string
}

// NewMetaData returns MetaData in its initial state.
func NewMetaData() MetaData {
	return MetaData{Format: FormatUnknown, TimeStatus: TimeUnknown}
}

// MessageData is an encoded message. Header and Body are views into Message.
type MessageData struct {
	Message      []byte
	HeaderLength int
	BodyLength   int
}

// Header returns the encoded header.
func (m MessageData) Header() []byte {
	if m.HeaderLength > len(m.Message) {
		return m.Message
	}
	return m.Message[:m.HeaderLength]
}

// Body returns the encoded body.
func (m MessageData) Body() []byte {
	end := m.HeaderLength + m.BodyLength
	if m.HeaderLength > len(m.Message) {
		return nil
	}
	if end > len(m.Message) {
		end = len(m.Message)
	}
	return m.Message[m.HeaderLength:end]
}
