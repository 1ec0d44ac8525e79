// Package infer derives tool parameter schemas from Go types.
//
// This package is a convenience wrapper around github.com/google/jsonschema-go:
// a struct type is reflected into a JSON schema, which is then flattened into
// the []schema.Parameter list a tool definition declares.
package infer

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/mhpenta/devicemcp/schema"
)

// ErrNotObject is returned when a type does not reflect to a JSON object.
var ErrNotObject = errors.New("schema is not an object")

// FromType generates the JSON schema for T.
//
// Example:
//
//	type SetFanRequest struct {
//	    Mode string `json:"mode" jsonschema:"Fan mode: auto, on or off"`
//	}
//
//	s, err := infer.FromType[SetFanRequest]()
func FromType[T any]() (*jsonschema.Schema, error) {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("generating schema: %w", err)
	}
	return s, nil
}

// ParametersFor generates the parameter list for the struct type T.
func ParametersFor[T any]() ([]schema.Parameter, error) {
	s, err := FromType[T]()
	if err != nil {
		return nil, err
	}
	return Parameters(s)
}

// Parameters flattens the top-level properties of an object schema into
// parameters, ordered by name. Nested objects become object parameters
// without their inner structure.
func Parameters(s *jsonschema.Schema) ([]schema.Parameter, error) {
	if s == nil {
		return nil, fmt.Errorf("cannot convert nil schema")
	}
	if typeName(s) != "object" {
		return nil, ErrNotObject
	}

	required := make(map[string]bool, len(s.Required))
	for _, name := range s.Required {
		required[name] = true
	}

	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]schema.Parameter, 0, len(names))
	for _, name := range names {
		params = append(params, toParameter(name, s.Properties[name], required[name]))
	}
	return params, nil
}

func toParameter(name string, prop *jsonschema.Schema, required bool) schema.Parameter {
	p := schema.Parameter{Name: name, Required: required, Type: schema.TypeObject}
	if prop == nil {
		return p
	}

	if t, ok := schema.ParseType(typeName(prop)); ok {
		p.Type = t
	}
	p.Description = prop.Description
	p.Minimum = prop.Minimum
	p.Maximum = prop.Maximum
	p.MinLength = prop.MinLength
	p.MaxLength = prop.MaxLength
	p.Pattern = prop.Pattern

	for _, v := range prop.Enum {
		p.Enum = append(p.Enum, fmt.Sprint(v))
	}
	return p
}

// typeName returns the single non-null type of s. Pointer fields reflect as
// ["null", T].
func typeName(s *jsonschema.Schema) string {
	if s.Type != "" {
		return s.Type
	}
	for _, t := range s.Types {
		if t != "null" {
			return t
		}
	}
	return ""
}
