// Package schema implements the message definition database.
// A database is built once from a JSON or YAML document and is read-only
// afterwards, so a single instance can be shared by any number of decoders.
package schema

import (
	"fmt"
	"strconv"
)

// FieldType describes how a field is laid out on the wire.
type FieldType string

const (
	FieldSimple         FieldType = "SIMPLE"
	FieldEnum           FieldType = "ENUM"
	FieldString         FieldType = "STRING"
	FieldFixedArray     FieldType = "FIXED_LENGTH_ARRAY"
	FieldVarArray       FieldType = "VARIABLE_LENGTH_ARRAY"
	FieldArray          FieldType = "FIELD_ARRAY"
	FieldResponseID     FieldType = "RESPONSE_ID"
	FieldResponseStr    FieldType = "RESPONSE_STR"
	FieldRxConfigHeader FieldType = "RXCONFIG_HEADER"
	FieldRxConfigBody   FieldType = "RXCONFIG_BODY"
	FieldUnknown        FieldType = "UNKNOWN"
)

// DataTypeName names a primitive.
type DataTypeName string

const (
	Bool        DataTypeName = "BOOL"
	Char        DataTypeName = "CHAR"
	UChar       DataTypeName = "UCHAR"
	Short       DataTypeName = "SHORT"
	UShort      DataTypeName = "USHORT"
	Int         DataTypeName = "INT"
	UInt        DataTypeName = "UINT"
	Long        DataTypeName = "LONG"
	ULong       DataTypeName = "ULONG"
	LongLong    DataTypeName = "LONGLONG"
	ULongLong   DataTypeName = "ULONGLONG"
	Float       DataTypeName = "FLOAT"
	Double      DataTypeName = "DOUBLE"
	HexByte     DataTypeName = "HEXBYTE"
	SatelliteID DataTypeName = "SATELLITEID"
	Undefined   DataTypeName = "UNKNOWN"
)

var dataTypeSizes = map[DataTypeName]int{
	Bool:        4,
	Char:        1,
	UChar:       1,
	Short:       2,
	UShort:      2,
	Int:         4,
	UInt:        4,
	Long:        4,
	ULong:       4,
	LongLong:    8,
	ULongLong:   8,
	Float:       4,
	Double:      8,
	HexByte:     1,
	SatelliteID: 4,
}

// DataType is the primitive carried by a field.
type DataType struct {
	Name        DataTypeName `json:"name" yaml:"name"`
	Length      int          `json:"length,omitempty" yaml:"length,omitempty"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
}

// Size returns the width in bytes of one element.
func (d DataType) Size() int {
	if d.Length > 0 {
		return d.Length
	}
	return dataTypeSizes[d.Name]
}

// Known reports whether the primitive has a fixed width.
func (d DataType) Known() bool {
	_, ok := dataTypeSizes[d.Name]
	return ok
}

// Field is one entry of a message definition.
type Field struct {
	Name             string    `json:"name" yaml:"name"`
	Type             FieldType `json:"type" yaml:"type"`
	DataType         DataType  `json:"dataType" yaml:"dataType"`
	ArrayLength      int       `json:"arrayLength,omitempty" yaml:"arrayLength,omitempty"`
	ConversionString string    `json:"conversionString,omitempty" yaml:"conversionString,omitempty"`
	EnumID           string    `json:"enumID,omitempty" yaml:"enumID,omitempty"`
	Description      string    `json:"description,omitempty" yaml:"description,omitempty"`
	Fields           []*Field  `json:"fields,omitempty" yaml:"fields,omitempty"`

	// Enum is resolved from EnumID at load time.
	Enum *EnumDefinition `json:"-" yaml:"-"`
}

// IsCharString reports whether a fixed array of CHAR is rendered as text.
func (f *Field) IsCharString() bool {
	return (f.Type == FieldFixedArray || f.Type == FieldVarArray) &&
		f.DataType.Name == Char && f.ConversionString == "%s"
}

// Enumerator is a single symbolic value.
type Enumerator struct {
	Name        string `json:"name" yaml:"name"`
	Value       int32  `json:"value" yaml:"value"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// EnumDefinition maps symbolic names to numeric values.
type EnumDefinition struct {
	ID          string       `json:"_id" yaml:"_id"`
	Name        string       `json:"name" yaml:"name"`
	Enumerators []Enumerator `json:"enumerators" yaml:"enumerators"`

	byValue map[int32]string
	byName  map[string]int32
}

func (e *EnumDefinition) index() {
	e.byValue = make(map[int32]string, len(e.Enumerators))
	e.byName = make(map[string]int32, len(e.Enumerators))
	for _, en := range e.Enumerators {
		// the first name registered for a value is the canonical one
		if _, ok := e.byValue[en.Value]; !ok {
			e.byValue[en.Value] = en.Name
		}
		e.byName[en.Name] = en.Value
	}
}

// ByValue returns the name of value.
func (e *EnumDefinition) ByValue(value int32) (string, bool) {
	name, ok := e.byValue[value]
	return name, ok
}

// ByName returns the value of name.
func (e *EnumDefinition) ByName(name string) (int32, bool) {
	value, ok := e.byName[name]
	return value, ok
}

// MessageDefinition describes every known layout of one message id.
type MessageDefinition struct {
	ID          uint32              `json:"messageID" yaml:"messageID"`
	Name        string              `json:"name" yaml:"name"`
	LatestCRC   uint32              `json:"latestMsgDefCrc" yaml:"latestMsgDefCrc"`
	Description string              `json:"description,omitempty" yaml:"description,omitempty"`
	Definitions map[string][]*Field `json:"fields" yaml:"fields"`

	fields map[uint32][]*Field
}

// FieldsFor returns the layout for crc, falling back to the latest layout.
func (m *MessageDefinition) FieldsFor(crc uint32) []*Field {
	if fields, ok := m.fields[crc]; ok {
		return fields
	}
	return m.fields[m.LatestCRC]
}

// HasCRC reports whether an exact layout exists for crc.
func (m *MessageDefinition) HasCRC(crc uint32) bool {
	_, ok := m.fields[crc]
	return ok
}

func (m *MessageDefinition) index() error {
	m.fields = make(map[uint32][]*Field, len(m.Definitions))
	for key, fields := range m.Definitions {
		crc, err := strconv.ParseUint(key, 0, 32)
		if err != nil {
			return fmt.Errorf("message %s: invalid definition crc %q: %w", m.Name, key, err)
		}
		m.fields[uint32(crc)] = fields
	}
	if _, ok := m.fields[m.LatestCRC]; !ok && len(m.fields) > 0 {
		return fmt.Errorf("message %s: latest definition crc %d has no layout", m.Name, m.LatestCRC)
	}
	return nil
}
