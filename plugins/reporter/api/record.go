// Package api holds the message representations shared by the reporters.
package api

import (
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"firestige.xyz/edie/pkg/novatel"
	"firestige.xyz/edie/pkg/schema"
)

// Encoding selects how a reporter serialises a result.
type Encoding string

const (
	// EncodingRaw writes the parser's encoded message unchanged.
	EncodingRaw Encoding = "raw"
	// EncodingJSON writes the decoded record as protobuf JSON.
	EncodingJSON Encoding = "json"
	// EncodingProto writes the decoded record as a binary google.protobuf.Struct.
	EncodingProto Encoding = "proto"
	// EncodingText writes a one-line summary.
	EncodingText Encoding = "text"
)

func ParseEncoding(s string) (Encoding, error) {
	switch e := Encoding(strings.ToLower(s)); e {
	case "":
		return EncodingRaw, nil
	case EncodingRaw, EncodingJSON, EncodingProto, EncodingText:
		return e, nil
	}
	return "", fmt.Errorf("invalid encoding %q, must be raw, json, proto or text", s)
}

// Record flattens a result into plain values. Enumerations are rendered by
// name where the definition is known.
func Record(res *novatel.Result) map[string]any {
	m := res.Meta
	rec := map[string]any{
		"format": m.Format.String(),
		"length": int64(len(res.Data.Message)),
	}
	if m.MessageName == "" && len(res.Body) == 0 {
		rec["data"] = string(res.Data.Message)
		return rec
	}
	rec["message"] = m.MessageName
	rec["id"] = int64(m.MessageID)
	rec["source"] = m.MeasurementSource.String()
	rec["response"] = m.Response
	rec["time_status"] = m.TimeStatus.String()
	rec["week"] = int64(m.Week)
	rec["milliseconds"] = m.Milliseconds
	if res.Body != nil {
		rec["fields"] = fields(res.Body)
	}
	return rec
}

func fields(msg novatel.IntermediateMessage) map[string]any {
	out := make(map[string]any, len(msg))
	for _, fv := range msg {
		if fv.Field == nil {
			continue
		}
		out[fv.Field.Name] = value(fv.Field, fv.Value)
	}
	return out
}

func value(f *schema.Field, v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case novatel.IntermediateMessage:
		return fields(t)
	case []novatel.IntermediateMessage:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = fields(m)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = value(f, e)
		}
		return out
	case int32:
		if f.Type == schema.FieldEnum && f.Enum != nil {
			if name, ok := f.Enum.ByValue(t); ok {
				return name
			}
		}
		return int64(t)
	}
	return scalar(v)
}

// scalar widens v to a type structpb accepts.
func scalar(v any) any {
	switch t := v.(type) {
	case bool, string, int64, uint64, float64:
		return t
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int:
		return int64(t)
	case uint8:
		return uint64(t)
	case uint16:
		return uint64(t)
	case uint32:
		return uint64(t)
	case float32:
		return float64(t)
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}

// Struct converts a result to a google.protobuf.Struct.
func Struct(res *novatel.Result) (*structpb.Struct, error) {
	return structpb.NewStruct(Record(res))
}

// Summary is a one-line human readable description of res.
func Summary(res *novatel.Result) string {
	m := res.Meta
	if m.MessageName == "" && len(res.Body) == 0 {
		return fmt.Sprintf("UNKNOWN %d bytes", len(res.Data.Message))
	}
	return fmt.Sprintf("%s id=%d format=%s week=%d ms=%.0f time_status=%s bytes=%d",
		m.MessageName, m.MessageID, m.Format, m.Week, m.Milliseconds, m.TimeStatus, len(res.Data.Message))
}

// Marshal serialises res. JSON and text output end with a newline.
func Marshal(res *novatel.Result, enc Encoding) ([]byte, error) {
	switch enc {
	case EncodingRaw, "":
		return res.Data.Message, nil
	case EncodingText:
		return []byte(Summary(res) + "\n"), nil
	}
	st, err := Struct(res)
	if err != nil {
		return nil, fmt.Errorf("build record: %w", err)
	}
	switch enc {
	case EncodingJSON:
		b, err := protojson.MarshalOptions{UseProtoNames: true}.Marshal(st)
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	case EncodingProto:
		return proto.MarshalOptions{Deterministic: true}.Marshal(st)
	}
	return nil, fmt.Errorf("unsupported encoding %q", enc)
}
