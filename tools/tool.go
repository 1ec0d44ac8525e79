// Package tools defines MCP tool definitions, their results and the registry
// the server dispatches from.
//
// # Basic Usage
//
// Declare a tool with a handler and a static parameter list:
//
//	var setThermostatParams = []schema.Parameter{
//	    schema.NumberRequired("temperature", "Target temperature in Fahrenheit", 40, 90),
//	}
//
//	var SetThermostat = tools.Definition{
//	    Name:        "set_thermostat",
//	    Description: "Sets the thermostat setpoint temperature in Fahrenheit",
//	    Parameters:  setThermostatParams,
//	    Handler: func(ctx context.Context, args tools.Args) tools.Result {
//	        t := args.Float("temperature", -999)
//	        if t < 40 || t > 90 {
//	            return tools.Failure("Invalid temperature value (must be between 40 and 90 degrees)")
//	        }
//	        return tools.Success(fmt.Sprintf(`{"setpoint": %.1f}`, t))
//	    },
//	}
//
// # Typed Tools
//
// NewTyped infers the parameter list from a request struct and binds the
// arguments before calling the handler:
//
//	def, err := tools.NewTyped("set_fan_mode", "Sets the fan mode", setFanMode)
//
// Parameter schemas are descriptive: the handler owns range and enum checks.
package tools

import (
	"context"
	"fmt"

	"github.com/mhpenta/devicemcp/schema"
)

// Handler runs a tool. It must not retain args after returning.
type Handler func(ctx context.Context, args Args) Result

// Definition is a named capability supplied by the embedding application.
type Definition struct {
	// Name is the unique registry key.
	Name string

	// Description is shown to clients, optional.
	Description string

	// Handler is mandatory.
	Handler Handler

	// Parameters describe the arguments, possibly empty. The registry keeps a
	// reference to this slice rather than a copy.
	Parameters []schema.Parameter
}

// Validate checks the mandatory fields of a definition. Any non-empty name is
// accepted; lookups compare names byte for byte.
func Validate(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("%w: tool name cannot be empty", ErrInvalidArgument)
	}

	if def.Handler == nil {
		return fmt.Errorf("%w: tool %q has no handler", ErrInvalidArgument, def.Name)
	}

	return nil
}
