package novatel

import (
	"bytes"
	"encoding/binary"
)

// candidate outcome of evaluating the sync byte at offset 0.
type verdict int

const (
	verdictSuccess verdict = iota
	verdictIncomplete
	verdictReject
)

// Framer splits a byte stream into frames. It is not safe for concurrent use.
type Framer struct {
	buf []byte

	reportUnknownBytes bool
	payloadOnly        bool
	frameJSON          bool
}

// NewFramer returns a Framer with an empty buffer of MaxMessageLength bytes.
func NewFramer() *Framer {
	return &Framer{
		buf:                make([]byte, 0, MaxMessageLength),
		reportUnknownBytes: true,
	}
}

// SetReportUnknownBytes controls whether unrecognised bytes are returned as
// UNKNOWN frames or silently dropped.
func (f *Framer) SetReportUnknownBytes(on bool) { f.reportUnknownBytes = on }

// ReportUnknownBytes reports the current setting.
func (f *Framer) ReportUnknownBytes() bool { return f.reportUnknownBytes }

// SetPayloadOnly strips header and CRC from successfully framed messages.
func (f *Framer) SetPayloadOnly(on bool) { f.payloadOnly = on }

// PayloadOnly reports the current setting.
func (f *Framer) PayloadOnly() bool { return f.payloadOnly }

// SetFrameJSON enables JSON object framing.
func (f *Framer) SetFrameJSON(on bool) { f.frameJSON = on }

// FrameJSON reports the current setting.
func (f *Framer) FrameJSON() bool { return f.frameJSON }

// AvailableBytes returns the free space in the buffer.
func (f *Framer) AvailableBytes() int { return cap(f.buf) - len(f.buf) }

// BufferedBytes returns the number of bytes waiting to be framed.
func (f *Framer) BufferedBytes() int { return len(f.buf) }

// Write appends p to the buffer. When p does not fit, the prefix that fits is
// stored and StatusBufferFull is returned.
func (f *Framer) Write(p []byte) (int, error) {
	n := len(p)
	if free := f.AvailableBytes(); n > free {
		n = free
	}
	f.buf = append(f.buf, p[:n]...)
	if n < len(p) {
		return n, StatusBufferFull
	}
	return n, nil
}

// Flush drains the buffer and returns its contents.
func (f *Framer) Flush() []byte {
	out := make([]byte, len(f.buf))
	copy(out, f.buf)
	f.buf = f.buf[:0]
	return out
}

// Read extracts the next frame. It returns StatusBufferEmpty when nothing is
// buffered, StatusIncomplete when the leading candidate needs more bytes and
// StatusUnknown for bytes that belong to no frame. Returned frames are copies.
func (f *Framer) Read() ([]byte, MetaData, error) {
	for {
		meta := NewMetaData()
		if len(f.buf) == 0 {
			return nil, meta, StatusBufferEmpty
		}

		if j := f.nextSync(0); j > 0 {
			frame := f.consume(j)
			if !f.reportUnknownBytes {
				continue
			}
			meta.Length = uint32(j)
			logger().Tracef("framer: %d unknown bytes", j)
			return frame, meta, StatusUnknown
		}

		v, format, n := f.candidate(f.buf)
		switch v {
		case verdictIncomplete:
			meta.Format = format
			meta.Length = uint32(len(f.buf))
			return nil, meta, StatusIncomplete
		case verdictReject:
			end := f.nextSync(n)
			frame := f.consume(end)
			if !f.reportUnknownBytes {
				continue
			}
			meta.Length = uint32(end)
			logger().Tracef("framer: rejected %d bytes", end)
			return frame, meta, StatusUnknown
		}

		frame := f.consume(n)
		meta.Format = format
		meta.Length = uint32(n)
		switch format {
		case FormatBinary, FormatEncryptedBinary:
			meta.HeaderLength = uint32(frame[3])
			meta.BinaryMsgLength = uint32(binary.LittleEndian.Uint16(frame[8:10]))
		case FormatShortBinary:
			meta.HeaderLength = OEM4ShortBinaryHeaderLength
			meta.BinaryMsgLength = uint32(frame[3])
		}
		logger().Tracef("framer: %s frame of %d bytes", format, n)
		if f.payloadOnly {
			frame = payload(frame, format, &meta)
		}
		return frame, meta, nil
	}
}

// consume removes and returns a copy of the first n buffered bytes.
func (f *Framer) consume(n int) []byte {
	out := make([]byte, n)
	copy(out, f.buf[:n])
	f.buf = f.buf[:copy(f.buf, f.buf[n:])]
	return out
}

func (f *Framer) isSync(b byte) bool {
	switch b {
	case OEM4BinarySync1, OEM4ASCIISync, OEM4ShortASCIISync, NMEASync, OEM4AbbrevASCIISync:
		return true
	case JSONSync:
		return f.frameJSON
	}
	return false
}

// nextSync returns the offset of the first sync byte at or after from, or
// the buffer length when there is none.
func (f *Framer) nextSync(from int) int {
	for i := from; i < len(f.buf); i++ {
		if f.isSync(f.buf[i]) {
			return i
		}
	}
	return len(f.buf)
}

func (f *Framer) candidate(b []byte) (verdict, HeaderFormat, int) {
	switch b[0] {
	case OEM4BinarySync1:
		return frameBinary(b)
	case OEM4ASCIISync:
		return frameASCII(b, FormatASCII)
	case OEM4ShortASCIISync:
		return frameASCII(b, FormatShortASCII)
	case NMEASync:
		return frameNMEA(b)
	case OEM4AbbrevASCIISync:
		return frameAbbASCII(b)
	case JSONSync:
		return frameJSON(b)
	}
	return verdictReject, FormatUnknown, 1
}

func frameBinary(b []byte) (verdict, HeaderFormat, int) {
	if len(b) < 2 {
		return verdictIncomplete, FormatUnknown, 0
	}
	if b[1] != OEM4BinarySync2 {
		return verdictReject, FormatUnknown, 1
	}
	if len(b) < OEM4BinarySyncLength {
		return verdictIncomplete, FormatUnknown, 0
	}

	var format HeaderFormat
	var total int
	switch b[2] {
	case OEM4BinarySync3, OEM4EncryptedBinarySync3:
		format = FormatBinary
		if b[2] == OEM4EncryptedBinarySync3 {
			format = FormatEncryptedBinary
		}
		if len(b) < 10 {
			return verdictIncomplete, format, 0
		}
		total = OEM4BinaryHeaderLength + int(binary.LittleEndian.Uint16(b[8:10])) + OEM4BinaryCRCLength
		if total > MaxBinaryMessageLength {
			return verdictReject, FormatUnknown, 1
		}
		if hl := int(b[3]); hl < OEM4BinaryHeaderLength || hl > total-OEM4BinaryCRCLength {
			return verdictReject, FormatUnknown, 1
		}
	case OEM4ShortBinarySync3:
		format = FormatShortBinary
		if len(b) < 4 {
			return verdictIncomplete, format, 0
		}
		total = OEM4ShortBinaryHeaderLength + int(b[3]) + OEM4BinaryCRCLength
	default:
		return verdictReject, FormatUnknown, 1
	}

	if len(b) < total {
		return verdictIncomplete, format, 0
	}
	if CRC32(b[:total]) != 0 {
		return verdictReject, FormatUnknown, 1
	}
	return verdictSuccess, format, total
}

func isPrintable(c byte) bool { return c >= 0x20 && c <= 0x7E }

func isHex(p []byte) bool {
	for _, c := range p {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// scanTerminator scans from i for CR or LF. It returns the offset of the
// terminator and the frame end, or ok=false when more bytes are needed.
func scanTerminator(b []byte, i int) (term, end int, ok bool) {
	for ; i < len(b); i++ {
		if b[i] == '\r' || b[i] == '\n' {
			break
		}
	}
	if i >= len(b) {
		return 0, 0, false
	}
	if b[i] == '\n' {
		return i, i + 1, true
	}
	if i+1 >= len(b) {
		return 0, 0, false
	}
	if b[i+1] == '\n' {
		return i, i + 2, true
	}
	return i, i + 1, true
}

func frameASCII(b []byte, format HeaderFormat) (verdict, HeaderFormat, int) {
	sync := b[0]
	inHeader := true
	nameEnd := 0
	i := 1
	for ; ; i++ {
		if i >= len(b) {
			if len(b) >= MaxASCIIMessageLength {
				return verdictReject, FormatUnknown, len(b)
			}
			return verdictIncomplete, format, 0
		}
		c := b[i]
		if c == OEM4ASCIICRCDelimiter {
			break
		}
		if c == '\r' || c == '\n' || !isPrintable(c) {
			return verdictReject, FormatUnknown, 1
		}
		if inHeader {
			if c == sync {
				return verdictReject, FormatUnknown, 1
			}
			if nameEnd == 0 && (c == OEM4ASCIIFieldSeparator || c == OEM4ASCIIHeaderTerminator) {
				nameEnd = i
			}
			if c == OEM4ASCIIHeaderTerminator {
				inHeader = false
			}
		}
	}
	star := i

	term, end, ok := scanTerminator(b, star+1)
	if !ok {
		if len(b) >= MaxASCIIMessageLength {
			return verdictReject, FormatUnknown, len(b)
		}
		return verdictIncomplete, format, 0
	}
	digits := b[star+1 : term]
	hex := isHex(digits)
	if hex && len(digits) > OEM4ASCIICRCLength {
		// run-on CRC: wait until bytes past the terminator prove it
		if end >= len(b) {
			return verdictIncomplete, format, 0
		}
		return verdictReject, FormatUnknown, end
	}
	if len(digits) != OEM4ASCIICRCLength || !hex || end != term+2 {
		return verdictReject, FormatUnknown, end
	}
	if parseHex32(digits) != CRC32(b[1:star]) {
		return verdictReject, FormatUnknown, end
	}
	if nameEnd-1 > OEM4ASCIIMessageNameMax {
		return verdictReject, FormatUnknown, 1
	}
	return verdictSuccess, format, end
}

func parseHex32(p []byte) uint32 {
	var v uint32
	for _, c := range p {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= uint32(c - '0')
		case c >= 'a' && c <= 'f':
			v |= uint32(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v |= uint32(c-'A') + 10
		}
	}
	return v
}

func frameNMEA(b []byte) (verdict, HeaderFormat, int) {
	i := 1
	for ; ; i++ {
		if i >= len(b) {
			return verdictIncomplete, FormatNMEA, 0
		}
		c := b[i]
		if c == OEM4ASCIICRCDelimiter {
			break
		}
		if c == NMEASync || c == '\r' || c == '\n' || !isPrintable(c) {
			return verdictReject, FormatUnknown, 1
		}
		if i+1 > MaxNMEAMessageLength {
			return verdictReject, FormatUnknown, 1
		}
	}
	star := i

	term, end, ok := scanTerminator(b, star+1)
	if !ok {
		return verdictIncomplete, FormatNMEA, 0
	}
	digits := b[star+1 : term]
	if len(digits) != NMEACRCLength || end != term+2 || !isHex(digits) {
		return verdictReject, FormatUnknown, end
	}
	if byte(parseHex32(digits)) != NMEAChecksum(b[1:star]) {
		return verdictReject, FormatUnknown, end
	}
	return verdictSuccess, FormatNMEA, end
}

func frameAbbASCII(b []byte) (verdict, HeaderFormat, int) {
	for i := 1; i < len(b); i++ {
		c := b[i]
		if c == '\r' {
			if i+1 >= len(b) {
				return verdictIncomplete, FormatAbbASCII, 0
			}
			if b[i+1] == '\n' {
				return verdictSuccess, FormatAbbASCII, i + 2
			}
			return verdictReject, FormatUnknown, 1
		}
		if c == '\n' || !isPrintable(c) {
			return verdictReject, FormatUnknown, 1
		}
	}
	// A full buffer with no terminator can never complete.
	if len(b) >= MaxAbbASCIIResponseLength {
		return verdictReject, FormatUnknown, 1
	}
	return verdictIncomplete, FormatAbbASCII, 0
}

func frameJSON(b []byte) (verdict, HeaderFormat, int) {
	depth := 0
	inString, escaped := false, false
	for i, c := range b {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return verdictSuccess, FormatJSON, i + 1
			}
		}
	}
	if len(b) >= MaxMessageLength {
		return verdictReject, FormatUnknown, 1
	}
	return verdictIncomplete, FormatJSON, 0
}

// payload strips the header and CRC of a framed message.
func payload(frame []byte, format HeaderFormat, meta *MetaData) []byte {
	switch format {
	case FormatBinary, FormatEncryptedBinary, FormatShortBinary:
		return frame[meta.HeaderLength : len(frame)-OEM4BinaryCRCLength]
	case FormatASCII, FormatShortASCII:
		semi := bytes.IndexByte(frame, OEM4ASCIIHeaderTerminator)
		star := bytes.LastIndexByte(frame, OEM4ASCIICRCDelimiter)
		if semi < 0 || star < semi {
			return frame
		}
		meta.HeaderLength = uint32(semi + 1)
		return frame[semi+1 : star]
	}
	return frame
}
