package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhpenta/devicemcp/transport"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFiles_Defaults(t *testing.T) {
	cfg, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, "ESP32 MCP Server", cfg.Server.Name)
	assert.Equal(t, "http", cfg.Server.Transport)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 4096, cfg.Server.MaxRequestSize)
	assert.Equal(t, 32, cfg.Server.MaxTools)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFiles_TOML(t *testing.T) {
	path := writeFile(t, "server.toml", `
[server]
name = "Porch Thermostat"
transport = "websocket"
port = 9090
validate_arguments = true

[logging]
level = "debug"
format = "json"
`)

	cfg, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, "Porch Thermostat", cfg.Server.Name)
	assert.Equal(t, "websocket", cfg.Server.Transport)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Server.ValidateArguments)
	assert.Equal(t, "1.0.0", cfg.Server.Version, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, transport.TypeWebSocket, cfg.TransportType())
}

func TestLoadFromFiles_YAMLWithEnvExpansion(t *testing.T) {
	t.Setenv("THERMOSTAT_TTY", "/dev/ttyUSB0")
	path := writeFile(t, "server.yaml", `
server:
  transport: uart
  device: ${THERMOSTAT_TTY}
logging:
  level: warn
`)

	cfg, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, "uart", cfg.Server.Transport)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Server.Device)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadFromFiles_LaterFilesWin(t *testing.T) {
	base := writeFile(t, "base.toml", "[server]\nport = 9000\nname = \"base\"\n")
	override := writeFile(t, "override.yml", "server:\n  port: 9001\n")

	cfg, err := LoadFromFiles(base, "", override)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "base", cfg.Server.Name)
}

func TestLoadFromFiles_Errors(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = LoadFromFiles(writeFile(t, "server.json", `{}`))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = LoadFromFiles(writeFile(t, "broken.toml", "[server\n"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	path := writeFile(t, "server.toml", "[server]\nport = 9000\n")
	t.Setenv("MCP_PORT", "7000")
	t.Setenv("MCP_TRANSPORT", "uart")
	t.Setenv("MCP_LOG_LEVEL", "error")
	t.Setenv("MCP_VALIDATE_ARGUMENTS", "true")

	cfg, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "uart", cfg.Server.Transport)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.True(t, cfg.Server.ValidateArguments)
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := NewDefaultConfig()

	ApplyFlagOverrides(cfg, "", 0, "")
	assert.Equal(t, NewDefaultConfig(), cfg)

	ApplyFlagOverrides(cfg, "websocket", 8181, "/dev/ttyACM0")
	assert.Equal(t, "websocket", cfg.Server.Transport)
	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, "/dev/ttyACM0", cfg.Server.Device)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown transport", func(c *Config) { c.Server.Transport = "carrier-pigeon" }},
		{"negative port", func(c *Config) { c.Server.Port = -1 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"zero request size", func(c *Config) { c.Server.MaxRequestSize = 0 }},
		{"unknown level", func(c *Config) { c.Logging.Level = "chatty" }},
		{"unknown format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestMCP(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Server.Transport = "uart"
	cfg.Server.Device = "/dev/ttyUSB1"
	cfg.Server.ValidateArguments = true

	mc := cfg.MCP(nil)
	assert.Equal(t, transport.TypeUART, mc.Transport)
	assert.Equal(t, "/dev/ttyUSB1", mc.TransportOptions.Device)
	assert.Equal(t, 4096, mc.TransportOptions.MaxRequestSize)
	assert.True(t, mc.ValidateArguments)
}

func TestNewLogger(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = noColor })

	t.Run("console", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LoggingConfig{Level: "info", Format: "text"}, &buf)

		logger.Debug("hidden")
		logger.With("transport", "http").WithGroup("req").Info("started", "port", 8080)

		out := buf.String()
		assert.NotContains(t, out, "hidden")
		assert.Contains(t, out, "INF started")
		assert.Contains(t, out, "transport=http")
		assert.Contains(t, out, "req.port=8080")
		assert.Equal(t, 1, strings.Count(out, "\n"))
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LoggingConfig{Level: "debug", Format: "json"}, &buf)

		logger.Debug("tool registered", "tool", "hello_world")
		assert.Contains(t, buf.String(), `"msg":"tool registered"`)
		assert.Contains(t, buf.String(), `"tool":"hello_world"`)
	})
}

func TestParseLevel(t *testing.T) {
	_, err := ParseLevel("chatty")
	assert.Error(t, err)

	level, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, "WARN", level.String())
}
