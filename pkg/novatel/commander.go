package novatel

import (
	"strings"

	"firestige.xyz/edie/pkg/schema"
)

const thisPortName = "THISPORT"

// Commander encodes abbreviated ASCII commands such as
// "LOG COM1 BESTPOSA ONTIME 1" into ASCII or BINARY.
type Commander struct {
	db      *schema.Database
	encoder *Encoder
}

func NewCommander(db *schema.Database) *Commander {
	return &Commander{db: db, encoder: NewEncoder(db)}
}

// SetDatabase replaces the database.
func (c *Commander) SetDatabase(db *schema.Database) {
	c.db = db
	c.encoder.SetDatabase(db)
}

// Encode maps the command arguments positionally onto the command's latest
// definition. Omitted trailing arguments are zero.
func (c *Commander) Encode(command string, format EncodeFormat) ([]byte, error) {
	if c.db == nil {
		return nil, StatusNoDatabase
	}
	var meta MetaData
	switch format {
	case EncodeASCII:
		meta.Format = FormatASCII
	case EncodeBinary:
		meta.Format = FormatBinary
	default:
		return nil, statusf(StatusUnsupported, "command format %s", format)
	}

	toks, err := tokenize([]byte(strings.TrimSpace(command)), OEM4AbbrevASCIISeparator)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 || toks[0].text == "" {
		return nil, statusf(StatusMalformedInput, "empty command")
	}
	def, err := c.db.MessageByName(toks[0].text)
	if err != nil {
		return nil, statusf(StatusNoDefinition, "command %q", toks[0].text)
	}
	fields := def.FieldsFor(def.LatestCRC)
	if err := checkSupported(fields); err != nil {
		return nil, err
	}

	r := asciiReader{db: c.db, tokens: toks[1:]}
	msg := make(IntermediateMessage, 0, len(fields))
	for _, f := range fields {
		var v any
		if r.pos < len(r.tokens) {
			if v, err = r.field(f); err != nil {
				return nil, err
			}
		} else {
			v = zeroField(f)
		}
		msg = append(msg, FieldValue{Field: f, Value: v})
	}
	if r.pos < len(r.tokens) {
		return nil, statusf(StatusMalformedInput, "command %s has %d extra arguments", def.Name, len(r.tokens)-r.pos)
	}

	port, err := parseEnumToken(c.db, portEnumName, thisPortName)
	if err != nil {
		port = 0xC0
	}
	hdr := IntermediateHeader{
		MessageID:            uint16(def.ID),
		Port:                 port,
		TimeStatus:           TimeUnknown,
		MessageDefinitionCRC: def.LatestCRC,
	}
	meta.MessageID = uint16(def.ID)
	meta.MessageName = def.Name
	meta.MessageCRC = def.LatestCRC
	meta.TimeStatus = TimeUnknown

	out, err := c.encoder.Encode(&hdr, msg, &meta, format)
	if err != nil {
		return nil, err
	}
	return out.Message, nil
}

func zeroField(f *schema.Field) any {
	switch f.Type {
	case schema.FieldEnum:
		return int32(0)
	case schema.FieldString:
		return ""
	case schema.FieldFixedArray:
		if f.IsCharString() {
			return ""
		}
		vals := make([]any, f.ArrayLength)
		for i := range vals {
			vals[i] = zeroValue(f.DataType.Name)
		}
		return vals
	case schema.FieldVarArray:
		if f.IsCharString() {
			return ""
		}
		return []any{}
	case schema.FieldArray:
		return []IntermediateMessage{}
	}
	return zeroValue(f.DataType.Name)
}
