// Package safeunmarshal decodes tool arguments into Go values with a size
// limit and strict type checking.
package safeunmarshal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

const (
	// DefaultMaxInputSize is the default maximum size for JSON input (64KB).
	// Requests reaching a device are far smaller; this only guards direct callers.
	DefaultMaxInputSize = 64 * 1024
)

// UnmarshalOptions configures the behavior of JSON unmarshalling.
type UnmarshalOptions struct {
	// MaxInputSize is the maximum allowed size for input JSON in bytes.
	// Set to 0 for no limit.
	MaxInputSize int

	// DisallowUnknownFields rejects object keys that have no matching struct field.
	DisallowUnknownFields bool
}

// DefaultOptions returns the default unmarshalling options.
func DefaultOptions() UnmarshalOptions {
	return UnmarshalOptions{
		MaxInputSize: DefaultMaxInputSize,
	}
}

// StrictOptions returns options that additionally reject unknown fields.
func StrictOptions() UnmarshalOptions {
	return UnmarshalOptions{
		MaxInputSize:          DefaultMaxInputSize,
		DisallowUnknownFields: true,
	}
}

// Into unmarshals raw into the value pointed to by v.
//
// Usage:
//
//	var req SetpointRequest
//	err := safeunmarshal.Into(args, &req, safeunmarshal.DefaultOptions())
//	if errors.Is(err, safeunmarshal.ErrExpectedJSONArray) {
//	    // target was a slice but input was not an array
//	}
func Into(raw []byte, v any, opts UnmarshalOptions) error {
	if opts.MaxInputSize > 0 && len(raw) > opts.MaxInputSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrInputTooLarge, len(raw), opts.MaxInputSize)
	}

	data := bytes.TrimSpace(raw)
	if len(data) == 0 {
		return ErrEmptyInput
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if opts.DisallowUnknownFields {
		dec.DisallowUnknownFields()
	}

	if err := dec.Decode(v); err != nil {
		if target := reflect.TypeOf(v); target != nil && target.Kind() == reflect.Pointer {
			kind := target.Elem().Kind()
			if (kind == reflect.Array || kind == reflect.Slice) && !isJSONArray(data) {
				return fmt.Errorf("%w: got %s", ErrExpectedJSONArray, data)
			}
		}
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	if dec.More() {
		return fmt.Errorf("failed to parse JSON: %w", ErrTrailingData)
	}
	return nil
}

// isJSONArray checks whether the first non-whitespace byte opens an array.
func isJSONArray(data []byte) bool {
	for _, b := range data {
		if b == ' ' || b == '\t' || b == '\n' || b == '\r' {
			continue
		}
		return b == '['
	}
	return false
}
