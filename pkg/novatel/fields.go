package novatel

import (
	"fmt"
	"strconv"
	"strings"

	"firestige.xyz/edie/pkg/schema"
)

// FieldValue is one decoded field. Value holds:
//
//	SIMPLE        bool, int8, uint8, int16, uint16, int32, uint32, int64,
//	              uint64, float32, float64 or SatelliteID
//	ENUM          int32
//	STRING        string
//	FIXED/VAR     []any of the element type, or string for %s CHAR arrays
//	FIELD_ARRAY   []IntermediateMessage
//	RESPONSE_ID   int32
//	RESPONSE_STR  string
type FieldValue struct {
	Field *schema.Field
	Value any
}

// IntermediateMessage is a decoded body in definition order.
type IntermediateMessage []FieldValue

// Get returns the value of the top-level field called name.
func (m IntermediateMessage) Get(name string) (any, bool) {
	for _, fv := range m {
		if fv.Field != nil && fv.Field.Name == name {
			return fv.Value, true
		}
	}
	return nil, false
}

// SatelliteID identifies a satellite by PRN and, for GLONASS, its frequency
// channel.
type SatelliteID struct {
	PRN     uint16
	Channel int16
}

func (s SatelliteID) String() string {
	if s.Channel == 0 {
		return strconv.Itoa(int(s.PRN))
	}
	return fmt.Sprintf("%d%+d", s.PRN, s.Channel)
}

// ParseSatelliteID parses "12", "8+6" or "9-2".
func ParseSatelliteID(s string) (SatelliteID, error) {
	split := strings.IndexAny(s[min(1, len(s)):], "+-")
	prnText, chanText := s, ""
	if split >= 0 {
		split++
		prnText, chanText = s[:split], s[split:]
	}
	prn, err := strconv.ParseUint(prnText, 10, 16)
	if err != nil {
		return SatelliteID{}, err
	}
	id := SatelliteID{PRN: uint16(prn)}
	if chanText != "" {
		ch, err := strconv.ParseInt(chanText, 10, 16)
		if err != nil {
			return SatelliteID{}, err
		}
		id.Channel = int16(ch)
	}
	return id, nil
}

// responseFields is the layout of every command response body.
var responseFields = []*schema.Field{
	{Name: "response_id", Type: schema.FieldResponseID, DataType: schema.DataType{Name: schema.ULong}},
	{Name: "response_str", Type: schema.FieldResponseStr, DataType: schema.DataType{Name: schema.Char}},
}

const responseOK = 1

// zeroValue returns the decoded zero value for a primitive.
func zeroValue(dt schema.DataTypeName) any {
	switch dt {
	case schema.Bool:
		return false
	case schema.Char:
		return int8(0)
	case schema.UChar, schema.HexByte:
		return uint8(0)
	case schema.Short:
		return int16(0)
	case schema.UShort:
		return uint16(0)
	case schema.Int, schema.Long:
		return int32(0)
	case schema.UInt, schema.ULong:
		return uint32(0)
	case schema.LongLong:
		return int64(0)
	case schema.ULongLong:
		return uint64(0)
	case schema.Float:
		return float32(0)
	case schema.Double:
		return float64(0)
	case schema.SatelliteID:
		return SatelliteID{}
	}
	return uint32(0)
}

// toInt64 widens any integer or bool value.
func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case int8:
		return int64(x), true
	case uint8:
		return int64(x), true
	case int16:
		return int64(x), true
	case uint16:
		return int64(x), true
	case int32:
		return int64(x), true
	case uint32:
		return int64(x), true
	case int64:
		return x, true
	case uint64:
		return int64(x), true
	case int:
		return int64(x), true
	case float32:
		return int64(x), true
	case float64:
		return int64(x), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	i, ok := toInt64(v)
	return float64(i), ok
}
