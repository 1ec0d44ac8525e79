package utilitytools

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/mhpenta/devicemcp/schema"
	"github.com/mhpenta/devicemcp/tools"
)

const (
	MinSetpoint     = 40.0
	MaxSetpoint     = 90.0
	DefaultSetpoint = 72.0
)

// FanModes lists the accepted set_fan_mode values.
var FanModes = []string{"auto", "on", "circulate"}

// Sensor returns the current temperature in Fahrenheit.
type Sensor func(ctx context.Context) (float64, error)

// RandomSensor simulates a probe reading between 40 and 80 degrees.
func RandomSensor(ctx context.Context) (float64, error) {
	return 40 + float64(rand.IntN(41)), nil
}

// Thermostat is the device state behind the thermostat tools.
type Thermostat struct {
	mu       sync.Mutex
	setpoint float64
	fanMode  string
	sensor   Sensor
	logger   *slog.Logger
}

// NewThermostat creates a thermostat at DefaultSetpoint with the fan on auto.
// A nil sensor selects RandomSensor.
func NewThermostat(sensor Sensor, logger *slog.Logger) *Thermostat {
	if sensor == nil {
		sensor = RandomSensor
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Thermostat{
		setpoint: DefaultSetpoint,
		fanMode:  "auto",
		sensor:   sensor,
		logger:   logger,
	}
}

// Setpoint returns the current setpoint.
func (t *Thermostat) Setpoint() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.setpoint
}

// FanMode returns the current fan mode.
func (t *Thermostat) FanMode() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fanMode
}

// Tools returns every thermostat tool in registration order.
func (t *Thermostat) Tools() []tools.Definition {
	return []tools.Definition{
		HelloWorldTool(t.logger),
		t.GetTemperatureTool(),
		t.SetThermostatTool(),
		t.SetFanModeTool(),
	}
}

// HelloWorldTool returns a tool that answers with a fixed greeting.
func HelloWorldTool(logger *slog.Logger) tools.Definition {
	return tools.Definition{
		Name:        "hello_world",
		Description: "Returns a friendly greeting from the ESP32",
		Handler: func(ctx context.Context, args tools.Args) tools.Result {
			logger.Info("hello world tool called")
			return tools.Success("Hello from ESP32 MCP Server!")
		},
	}
}

// TemperatureReading is the get_temperature output.
type TemperatureReading struct {
	Temperature float64 `json:"temperature"`
	Unit        string  `json:"unit"`
}

// GetTemperatureTool reads the sensor.
func (t *Thermostat) GetTemperatureTool() tools.Definition {
	return tools.Definition{
		Name:        "get_temperature",
		Description: "Gets the current temperature reading in Fahrenheit",
		Handler: func(ctx context.Context, args tools.Args) tools.Result {
			temp, err := t.sensor(ctx)
			if err != nil {
				t.logger.Error("sensor read failed", "error", err)
				return tools.Failuref("sensor read failed: %v", err)
			}
			return tools.Encoded(TemperatureReading{Temperature: temp, Unit: "F"})
		},
	}
}

// SetpointResult is the set_thermostat output.
type SetpointResult struct {
	Setpoint float64 `json:"setpoint"`
	Status   string  `json:"status"`
}

const setThermostatDescription = `Sets the thermostat setpoint temperature in Fahrenheit.

The setpoint must be between 40 and 90 degrees. Values outside that range are
rejected and the current setpoint is kept.`

// SetThermostatTool changes the setpoint. The range is checked here, not by
// the schema.
func (t *Thermostat) SetThermostatTool() tools.Definition {
	return tools.Definition{
		Name:        "set_thermostat",
		Description: setThermostatDescription,
		Parameters: []schema.Parameter{
			schema.NumberRequired("temperature", "Target temperature in Fahrenheit (must be between 40 and 90)", MinSetpoint, MaxSetpoint),
		},
		Handler: func(ctx context.Context, args tools.Args) tools.Result {
			setpoint := args.Float("temperature", -999)
			if setpoint < MinSetpoint || setpoint > MaxSetpoint {
				return tools.Failure("Invalid temperature value (must be between 40 and 90 degrees)")
			}

			t.mu.Lock()
			t.setpoint = setpoint
			t.mu.Unlock()

			t.logger.Info("thermostat setpoint updated", "setpoint", setpoint)
			return tools.Encoded(SetpointResult{Setpoint: setpoint, Status: "success"})
		},
	}
}

// FanModeParams defines parameters for set_fan_mode
type FanModeParams struct {
	Mode string `json:"mode" jsonschema:"Fan mode: auto, on or circulate"`
}

// FanModeResult is the set_fan_mode output.
type FanModeResult struct {
	Mode     string `json:"mode"`
	Previous string `json:"previous"`
}

// SetFanModeTool is a typed tool; the enum is advertised explicitly since it
// cannot be inferred from the struct.
func (t *Thermostat) SetFanModeTool() tools.Definition {
	handler := func(ctx context.Context, params FanModeParams) (FanModeResult, error) {
		if !slices.Contains(FanModes, params.Mode) {
			return FanModeResult{}, fmt.Errorf("invalid fan mode %q (must be one of %v)", params.Mode, FanModes)
		}

		t.mu.Lock()
		previous := t.fanMode
		t.fanMode = params.Mode
		t.mu.Unlock()

		t.logger.Info("fan mode updated", "mode", params.Mode, "previous", previous)
		return FanModeResult{Mode: params.Mode, Previous: previous}, nil
	}

	return tools.MustTyped("set_fan_mode", "Sets the thermostat fan mode", handler,
		tools.WithLogger(t.logger),
		tools.WithParameters(
			schema.StringRequired("mode", "Fan mode").WithEnum(FanModes...),
		))
}
