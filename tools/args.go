package tools

import (
	"bytes"
	"encoding/json"

	"github.com/mhpenta/devicemcp/jsonrpc"
	"github.com/mhpenta/devicemcp/safeunmarshal"
)

// Args is a read-only view over the arguments object of one tool call.
// It is only valid for the duration of the handler call.
type Args struct {
	raw    json.RawMessage
	fields map[string]json.RawMessage
}

// NewArgs wraps a raw arguments value. Anything other than a JSON object
// yields an empty view.
func NewArgs(raw json.RawMessage) Args {
	return Args{raw: raw, fields: jsonrpc.Object(raw)}
}

// Has reports whether key is present.
func (a Args) Has(key string) bool {
	_, ok := a.fields[key]
	return ok
}

// String returns the string at key, or def when absent or not a string.
func (a Args) String(key, def string) string {
	var v any
	if !a.lookup(key, &v) {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

// Float returns the number at key, or def when absent or not a number.
func (a Args) Float(key string, def float64) float64 {
	var v any
	if !a.lookup(key, &v) {
		return def
	}
	if f, ok := v.(float64); ok {
		return f
	}
	return def
}

// Int returns the number at key truncated to an int, or def when absent or
// not a number.
func (a Args) Int(key string, def int) int {
	var v any
	if !a.lookup(key, &v) {
		return def
	}
	if f, ok := v.(float64); ok {
		return int(f)
	}
	return def
}

// Bool returns the boolean at key, or def when absent or not a boolean.
func (a Args) Bool(key string, def bool) bool {
	var v any
	if !a.lookup(key, &v) {
		return def
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

// Raw returns the arguments as received, nil when absent.
func (a Args) Raw() json.RawMessage {
	return a.raw
}

// Map decodes the arguments object. It returns nil when there is none.
func (a Args) Map() map[string]any {
	if a.fields == nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(a.raw, &out); err != nil {
		return nil
	}
	return out
}

// Bind decodes the arguments into v. Absent arguments decode as an empty object.
func (a Args) Bind(v any) error {
	return a.bind(v, safeunmarshal.DefaultOptions())
}

// BindStrict is Bind that also rejects unknown fields.
func (a Args) BindStrict(v any) error {
	return a.bind(v, safeunmarshal.StrictOptions())
}

func (a Args) bind(v any, opts safeunmarshal.UnmarshalOptions) error {
	raw := a.raw
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		raw = json.RawMessage(`{}`)
	}
	return safeunmarshal.Into(raw, v, opts)
}

func (a Args) lookup(key string, v *any) bool {
	raw, ok := a.fields[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}
