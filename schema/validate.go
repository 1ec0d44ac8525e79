package schema

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Validate checks a decoded argument object against an input schema built
// with Build. A nil args map is validated as an empty object.
func Validate(s *jsonschema.Schema, args map[string]any) error {
	if s == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}

	resolved, err := s.Resolve(nil)
	if err != nil {
		return fmt.Errorf("resolving schema: %w", err)
	}

	if err := resolved.Validate(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
