package novatel

import (
	"errors"
	"fmt"
)

// ErrFieldNotFound is returned by Lookup when no header or body field has
// the requested name.
var ErrFieldNotFound = errors.New("edie: field not found")

// Lookup finds a field by name. Body fields are searched first, then fields
// nested in field arrays (the result holds one value per element), then the
// header.
func Lookup(hdr *IntermediateHeader, msg IntermediateMessage, name string) (any, error) {
	if v, ok := msg.Get(name); ok {
		return v, nil
	}
	for _, fv := range msg {
		elems, ok := fv.Value.([]IntermediateMessage)
		if !ok {
			continue
		}
		var vals []any
		found := false
		for _, elem := range elems {
			if v, ok := elem.Get(name); ok {
				vals = append(vals, v)
				found = true
			}
		}
		if found {
			return vals, nil
		}
	}
	if hdr != nil {
		if v, ok := hdr.field(name); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", name, ErrFieldNotFound)
}

func (h *IntermediateHeader) field(name string) (any, bool) {
	switch name {
	case "message_id":
		return h.MessageID, true
	case "message_type":
		return h.MessageType, true
	case "port":
		return h.Port, true
	case "length":
		return h.Length, true
	case "sequence", "sequence_num":
		return h.Sequence, true
	case "idle_time":
		return h.IdleTime, true
	case "percent_idle_time":
		return float64(h.IdleTime) / 2, true
	case "time_status":
		return h.TimeStatus, true
	case "week":
		return h.Week, true
	case "milliseconds":
		return h.Milliseconds, true
	case "seconds":
		return h.Milliseconds / 1000, true
	case "receiver_status":
		return h.ReceiverStatus, true
	case "message_definition_crc", "HEADER_reserved1":
		return h.MessageDefinitionCRC, true
	case "receiver_sw_version":
		return h.ReceiverSWVersion, true
	}
	return nil, false
}
