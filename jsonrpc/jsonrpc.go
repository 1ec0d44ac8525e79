// Package jsonrpc parses JSON-RPC 2.0 requests and builds response envelopes.
// See: https://www.jsonrpc.org/specification
package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Version is the only protocol version this package emits.
const Version = "2.0"

// Standard JSON-RPC error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

var (
	// ErrParse is returned when the message is not well-formed JSON.
	ErrParse = errors.New("parse error")

	// ErrMissingMethod is returned when method is absent or not a string.
	// It wraps ErrParse: a method-less message is a malformed envelope.
	ErrMissingMethod = fmt.Errorf("%w: missing or invalid method", ErrParse)
)

// Request is one parsed inbound message.
type Request struct {
	JSONRPC string
	ID      int
	// IDValid reports whether a numeric id was present.
	IDValid bool
	Method  string
	// Params is a private copy of the params value, nil when absent.
	Params json.RawMessage
	// IsNotification is true when no numeric id was present. Notifications
	// expect no JSON-RPC response.
	IsNotification bool
}

// ParseRequest parses a raw message into a Request.
func ParseRequest(raw string) (*Request, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	req := &Request{IsNotification: true}

	if v, ok := decodeString(fields["jsonrpc"]); ok {
		req.JSONRPC = v
	}

	if rawID, ok := fields["id"]; ok {
		var id any
		if err := json.Unmarshal(rawID, &id); err == nil {
			if n, ok := id.(float64); ok {
				req.ID = clampID(n)
				req.IDValid = true
				req.IsNotification = false
			}
		}
	}

	method, ok := decodeString(fields["method"])
	if !ok {
		return nil, ErrMissingMethod
	}
	req.Method = method

	if params, ok := fields["params"]; ok {
		req.Params = append(json.RawMessage(nil), params...)
	}

	return req, nil
}

// ParamsObject decodes params as a JSON object. It returns nil when params
// are absent, null or not an object.
func (r *Request) ParamsObject() map[string]json.RawMessage {
	return Object(r.Params)
}

// Object decodes raw as a JSON object, returning nil for anything else.
func Object(raw json.RawMessage) map[string]json.RawMessage {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	return obj
}

func decodeString(raw json.RawMessage) (string, bool) {
	if raw == nil {
		return "", false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// RPCError is the error member of a response envelope.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type successResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
}

type errorResponse struct {
	JSONRPC string   `json:"jsonrpc"`
	ID      int      `json:"id"`
	Error   RPCError `json:"error"`
}

// CreateResponse builds a success envelope. A nil result is emitted as
// "result":null. A json.RawMessage result is embedded as is.
func CreateResponse(id int, result any) (string, error) {
	var payload json.RawMessage
	switch v := result.(type) {
	case nil:
	case json.RawMessage:
		payload = v
	default:
		data, err := marshal(v)
		if err != nil {
			return "", fmt.Errorf("marshalling result: %w", err)
		}
		payload = data
	}

	data, err := marshal(successResponse{JSONRPC: Version, ID: id, Result: payload})
	if err != nil {
		return "", fmt.Errorf("marshalling response: %w", err)
	}
	return string(data), nil
}

// CreateError builds an error envelope. An empty message becomes "Unknown error".
func CreateError(id int, code int, message string) string {
	if message == "" {
		message = "Unknown error"
	}
	data, err := marshal(errorResponse{
		JSONRPC: Version,
		ID:      id,
		Error:   RPCError{Code: code, Message: message},
	})
	if err != nil {
		// Only strings and ints are involved; keep a valid envelope regardless.
		return fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"error":{"code":%d,"message":"Internal error"}}`, id, CodeInternalError)
	}
	return string(data)
}

// marshal encodes without HTML escaping and without a trailing newline.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// clampID truncates a numeric id toward zero and saturates it at the int
// range, so ids such as 1e20 map to a fixed value.
func clampID(n float64) int {
	switch {
	case n >= math.MaxInt:
		return math.MaxInt
	case n <= math.MinInt:
		return math.MinInt
	}
	return int(n)
}
