package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mhpenta/devicemcp/infer"
	"github.com/mhpenta/devicemcp/schema"
)

type typedConfig struct {
	logger     *slog.Logger
	parameters []schema.Parameter
	custom     bool
	strict     bool
}

// ToolOption for functional configuration
type ToolOption func(*typedConfig)

// WithLogger sets the logger used when an output cannot be encoded.
func WithLogger(logger *slog.Logger) ToolOption {
	return func(c *typedConfig) {
		c.logger = logger
	}
}

// WithParameters replaces the inferred parameter list.
func WithParameters(params ...schema.Parameter) ToolOption {
	return func(c *typedConfig) {
		c.parameters = params
		c.custom = true
	}
}

// WithStrictArguments rejects arguments that In does not declare.
func WithStrictArguments() ToolOption {
	return func(c *typedConfig) {
		c.strict = true
	}
}

// NewTyped builds a Definition whose parameters are inferred from In and
// whose arguments are decoded into In before the handler runs. A decoding
// failure or a handler error becomes a Failure result; Out is rendered with
// Encoded.
//
// Example:
//
//	type FanRequest struct {
//	    Mode string `json:"mode" jsonschema:"Fan mode"`
//	}
//
//	def, err := tools.NewTyped("set_fan_mode", "Sets the fan mode",
//	    func(ctx context.Context, req FanRequest) (string, error) {
//	        return "ok", nil
//	    })
func NewTyped[In, Out any](
	name,
	description string,
	handler func(context.Context, In) (Out, error),
	opts ...ToolOption,
) (Definition, error) {
	if handler == nil {
		return Definition{}, fmt.Errorf("%w: tool %q has no handler", ErrInvalidArgument, name)
	}

	cfg := typedConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	params := cfg.parameters
	if !cfg.custom {
		inferred, err := infer.ParametersFor[In]()
		if err != nil {
			return Definition{}, fmt.Errorf("failed to infer parameters for %q: %w", name, err)
		}
		params = inferred
	}

	logger := cfg.logger
	bind := Args.Bind
	if cfg.strict {
		bind = Args.BindStrict
	}

	return Definition{
		Name:        name,
		Description: description,
		Parameters:  params,
		Handler: func(ctx context.Context, args Args) Result {
			var input In
			if err := bind(args, &input); err != nil {
				return Failuref("failed to parse parameters: %v", err)
			}
			out, err := handler(ctx, input)
			if err != nil {
				return Failure(err.Error())
			}
			res := Encoded(out)
			if !res.Success {
				logger.Error("tool output not encodable", "tool", name, "error", res.ErrorMessage)
			}
			return res
		},
	}, nil
}

// MustTyped is NewTyped that panics on error, for package-level definitions.
func MustTyped[In, Out any](
	name,
	description string,
	handler func(context.Context, In) (Out, error),
	opts ...ToolOption,
) Definition {
	def, err := NewTyped(name, description, handler, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create tool %q: %v", name, err))
	}
	return def
}
