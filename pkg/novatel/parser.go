package novatel

import (
	"strings"

	"firestige.xyz/edie/pkg/schema"
)

// Decompressor expands compressed range messages into their full form.
type Decompressor interface {
	Decompress(hdr *IntermediateHeader, msg IntermediateMessage, meta *MetaData) (IntermediateMessage, error)
}

const rangeCmpPrefix = "RANGECMP"

// Result is one message produced by a Parser.
type Result struct {
	Meta   MetaData
	Data   MessageData
	Header IntermediateHeader
	Body   IntermediateMessage
}

// Lookup finds a field in the decoded body or header by name.
func (r *Result) Lookup(name string) (any, error) {
	return Lookup(&r.Header, r.Body, name)
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithEncodeFormat sets the output format. The default is ASCII.
func WithEncodeFormat(f EncodeFormat) ParserOption {
	return func(p *Parser) { p.encodeFormat = f }
}

// WithFilter replaces the parser's filter.
func WithFilter(f *Filter) ParserOption {
	return func(p *Parser) { p.filter = f }
}

// WithDecompressor sets the hook used for compressed range messages.
func WithDecompressor(d Decompressor) ParserOption {
	return func(p *Parser) { p.decompressor = d }
}

func WithDecompressRangeCmp(on bool) ParserOption {
	return func(p *Parser) { p.decompressRangeCmp = on }
}

func WithIgnoreAbbrevASCIIResponses(on bool) ParserOption {
	return func(p *Parser) { p.ignoreAbbrevResponses = on }
}

// WithReturnUnknownBytes controls whether unrecognised bytes are returned
// from Read.
func WithReturnUnknownBytes(on bool) ParserOption {
	return func(p *Parser) { p.returnUnknownBytes = on }
}

// WithFrameJSON enables framing of JSON documents.
func WithFrameJSON(on bool) ParserOption {
	return func(p *Parser) { p.framer.SetFrameJSON(on) }
}

// WithSkipHandler registers a callback invoked for every frame dropped
// because it could not be decoded or encoded.
func WithSkipHandler(fn func(meta *MetaData, err error)) ParserOption {
	return func(p *Parser) { p.onSkip = fn }
}

// Parser chains a Framer, Filter, HeaderDecoder, MessageDecoder and Encoder.
// It is not safe for concurrent use.
type Parser struct {
	framer  *Framer
	header  *HeaderDecoder
	decoder *MessageDecoder
	encoder *Encoder
	filter  *Filter

	decompressor          Decompressor
	encodeFormat          EncodeFormat
	decompressRangeCmp    bool
	ignoreAbbrevResponses bool
	returnUnknownBytes    bool
	onSkip                func(meta *MetaData, err error)
}

// NewParser returns a Parser for db.
func NewParser(db *schema.Database, opts ...ParserOption) *Parser {
	p := &Parser{
		framer:                NewFramer(),
		header:                NewHeaderDecoder(db),
		decoder:               NewMessageDecoder(db),
		encoder:               NewEncoder(db),
		filter:                NewFilter(),
		encodeFormat:          EncodeASCII,
		decompressRangeCmp:    true,
		ignoreAbbrevResponses: true,
		returnUnknownBytes:    true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetDatabase replaces the database of every stage.
func (p *Parser) SetDatabase(db *schema.Database) {
	p.header.SetDatabase(db)
	p.decoder.SetDatabase(db)
	p.encoder.SetDatabase(db)
}

func (p *Parser) Filter() *Filter { return p.filter }

func (p *Parser) SetFilter(f *Filter) { p.filter = f }

func (p *Parser) EncodeFormat() EncodeFormat { return p.encodeFormat }

func (p *Parser) SetEncodeFormat(f EncodeFormat) { p.encodeFormat = f }

// AvailableBytes returns the space left for Write.
func (p *Parser) AvailableBytes() int { return p.framer.AvailableBytes() }

// Write buffers data. See Framer.Write.
func (p *Parser) Write(data []byte) (int, error) {
	return p.framer.Write(data)
}

// Read returns the next message. Unrecognised bytes are returned in a Result
// with the error StatusUnknown. StatusIncomplete and StatusBufferEmpty mean
// more data is needed. Frames that fail to decode or encode are skipped.
func (p *Parser) Read() (*Result, error) {
	for {
		frame, meta, err := p.framer.Read()
		switch StatusOf(err) {
		case StatusSuccess:
		case StatusUnknown:
			if !p.returnUnknownBytes {
				continue
			}
			return &Result{Meta: meta, Data: MessageData{Message: frame}}, err
		default:
			return nil, err
		}

		if res, ok := p.process(frame, meta); ok {
			return res, nil
		}
	}
}

func (p *Parser) process(frame []byte, meta MetaData) (*Result, bool) {
	if meta.Format == FormatNMEA {
		if !p.filter.Filter(&meta) {
			return nil, false
		}
		return &Result{Meta: meta, Data: MessageData{Message: frame}}, true
	}
	if p.ignoreAbbrevResponses && meta.Format == FormatAbbASCII && IsAbbrevASCIIResponse(frame) {
		return nil, false
	}

	hdr, err := p.header.Decode(frame, &meta)
	if err != nil {
		p.skip(&meta, err)
		return nil, false
	}
	if !p.filter.Filter(&meta) {
		return nil, false
	}

	var body []byte
	if int(meta.HeaderLength) <= len(frame) {
		body = frame[meta.HeaderLength:]
	}
	msg, err := p.decoder.Decode(body, &meta)
	if err != nil {
		p.skip(&meta, err)
		return nil, false
	}

	if p.decompressRangeCmp && p.decompressor != nil && strings.HasPrefix(meta.MessageName, rangeCmpPrefix) {
		msg, err = p.decompressor.Decompress(&hdr, msg, &meta)
		if err != nil {
			p.skip(&meta, statusf(StatusDecompressionFailure, "%s: %v", meta.MessageName, err))
			return nil, false
		}
	}

	data, err := p.encoder.Encode(&hdr, msg, &meta, p.encodeFormat)
	if err != nil {
		p.skip(&meta, err)
		return nil, false
	}
	return &Result{Meta: meta, Data: data, Header: hdr, Body: msg}, true
}

func (p *Parser) skip(meta *MetaData, err error) {
	logger().Warnf("parser: skipping %s frame %q: %v", meta.Format, meta.MessageName, err)
	if p.onSkip != nil {
		p.onSkip(meta, err)
	}
}

// Flush empties the framer and returns its contents.
func (p *Parser) Flush() []byte {
	return p.framer.Flush()
}
