// Package schema describes tool parameters and renders them as JSON Schema
// fragments that MCP clients use to build argument forms.
//
// Parameters are declared statically by the embedding application:
//
//	var setThermostatParams = []schema.Parameter{
//	    schema.NumberRequired("temperature", "Target temperature in Fahrenheit", 40, 90),
//	}
//
// The rendered schema is descriptive. Handlers remain responsible for
// enforcing ranges unless the server is configured to validate arguments.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/jsonschema-go/jsonschema"
)

// Type is the JSON type of a parameter.
type Type int

const (
	TypeString Type = iota
	TypeNumber
	TypeInteger
	TypeBoolean
	TypeObject
	TypeArray
	TypeNull
)

// String returns the JSON Schema type name. Unknown values render as "string".
func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeInteger:
		return "integer"
	case TypeBoolean:
		return "boolean"
	case TypeObject:
		return "object"
	case TypeArray:
		return "array"
	case TypeNull:
		return "null"
	default:
		return "string"
	}
}

// ParseType maps a JSON Schema type name to a Type.
func ParseType(name string) (Type, bool) {
	switch name {
	case "string":
		return TypeString, true
	case "number":
		return TypeNumber, true
	case "integer":
		return TypeInteger, true
	case "boolean":
		return TypeBoolean, true
	case "object":
		return TypeObject, true
	case "array":
		return TypeArray, true
	case "null":
		return TypeNull, true
	}
	return TypeString, false
}

// ErrMissingName is returned for a parameter without a name.
var ErrMissingName = errors.New("parameter name is required")

// Parameter describes one named tool argument.
//
// A nil bound means the bound is absent, not zero. Numeric bounds only apply
// to number and integer parameters; length and pattern only to strings.
type Parameter struct {
	Name        string
	Type        Type
	Description string
	Required    bool

	Minimum *float64
	Maximum *float64

	MinLength *int
	MaxLength *int
	Pattern   string

	// Enum lists the allowed literal values, for any type.
	Enum []string
}

// EmptyInputSchema is advertised for tools that take no parameters.
var EmptyInputSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// inputSchema keeps the top-level key order stable and always emits required.
type inputSchema struct {
	Type       string                        `json:"type"`
	Properties map[string]*jsonschema.Schema `json:"properties"`
	Required   []string                      `json:"required"`
}

// ParamToJSON converts a single parameter into its property schema.
func ParamToJSON(p Parameter) (*jsonschema.Schema, error) {
	if p.Name == "" {
		return nil, ErrMissingName
	}

	s := &jsonschema.Schema{
		Type:        p.Type.String(),
		Description: p.Description,
	}

	switch p.Type {
	case TypeNumber, TypeInteger:
		s.Minimum = bound(p.Minimum, p.Type == TypeInteger)
		s.Maximum = bound(p.Maximum, p.Type == TypeInteger)
	case TypeString:
		s.MinLength = copyInt(p.MinLength)
		s.MaxLength = copyInt(p.MaxLength)
		s.Pattern = p.Pattern
	}

	if len(p.Enum) > 0 {
		s.Enum = make([]any, 0, len(p.Enum))
		for _, v := range p.Enum {
			s.Enum = append(s.Enum, v)
		}
	}

	return s, nil
}

// Build assembles the object schema for a parameter list. Parameters that
// cannot be rendered are logged and left out.
func Build(logger *slog.Logger, params []Parameter) *jsonschema.Schema {
	if logger == nil {
		logger = slog.Default()
	}

	root := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(params)),
		Required:   []string{},
	}

	for i, p := range params {
		prop, err := ParamToJSON(p)
		if err != nil {
			logger.Warn("skipping parameter", "index", i, "error", err)
			continue
		}
		root.Properties[p.Name] = prop
		if p.Required {
			root.Required = append(root.Required, p.Name)
		}
	}

	return root
}

// ToJSON renders the inputSchema for a tool. An empty list yields EmptyInputSchema.
func ToJSON(logger *slog.Logger, params []Parameter) (json.RawMessage, error) {
	if len(params) == 0 {
		return EmptyInputSchema, nil
	}

	built := Build(logger, params)
	data, err := json.Marshal(inputSchema{
		Type:       built.Type,
		Properties: built.Properties,
		Required:   built.Required,
	})
	if err != nil {
		return nil, fmt.Errorf("marshalling input schema: %w", err)
	}
	return data, nil
}

func bound(v *float64, integer bool) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	if integer {
		out = math.Trunc(out)
	}
	return &out
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
