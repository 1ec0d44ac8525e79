// Package config loads server configuration with priority
// defaults -> files -> MCP_* environment -> flags.
//
// Files ending in .toml are parsed as TOML, .yaml and .yml as YAML. In both,
// ${VAR_NAME} references are expanded from the environment before parsing.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/mhpenta/devicemcp/mcp"
	"github.com/mhpenta/devicemcp/tools"
	"github.com/mhpenta/devicemcp/transport"
)

var ErrUnsupportedFormat = errors.New("unsupported config file format")

// Config represents the application configuration.
type Config struct {
	Server  ServerConfig  `toml:"server" yaml:"server"`
	Logging LoggingConfig `toml:"logging" yaml:"logging"`
}

// ServerConfig contains MCP server and transport settings.
type ServerConfig struct {
	Name              string `toml:"name" yaml:"name"`
	Version           string `toml:"version" yaml:"version"`
	ProtocolVersion   string `toml:"protocol_version" yaml:"protocol_version"`
	Transport         string `toml:"transport" yaml:"transport"`
	Port              int    `toml:"port" yaml:"port"`
	Device            string `toml:"device" yaml:"device"`
	MaxRequestSize    int    `toml:"max_request_size" yaml:"max_request_size"`
	MaxTools          int    `toml:"max_tools" yaml:"max_tools"`
	ValidateArguments bool   `toml:"validate_arguments" yaml:"validate_arguments"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// NewDefaultConfig returns the built-in defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:            mcp.DefaultName,
			Version:         mcp.DefaultVersion,
			ProtocolVersion: mcp.DefaultProtocolVersion,
			Transport:       transport.TypeHTTP.String(),
			Port:            3000,
			MaxRequestSize:  transport.DefaultMaxRequestSize,
			MaxTools:        tools.DefaultCapacity,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := decode(path, []byte(expandEnvVars(string(data))), config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

func decode(path string, data []byte, config *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Unmarshal(data, config)
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, config)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the variable's value. Unset
// variables expand to the empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// applyEnvOverrides applies MCP_* environment variable overrides to config.
func applyEnvOverrides(config *Config) {
	if name := os.Getenv("MCP_SERVER_NAME"); name != "" {
		config.Server.Name = name
	}
	if t := os.Getenv("MCP_TRANSPORT"); t != "" {
		config.Server.Transport = t
	}
	if port := os.Getenv("MCP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if device := os.Getenv("MCP_DEVICE"); device != "" {
		config.Server.Device = device
	}
	if size := os.Getenv("MCP_MAX_REQUEST_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil {
			config.Server.MaxRequestSize = n
		}
	}
	if v := os.Getenv("MCP_VALIDATE_ARGUMENTS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Server.ValidateArguments = b
		}
	}
	if level := os.Getenv("MCP_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("MCP_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config. Zero
// values leave the config untouched.
func ApplyFlagOverrides(config *Config, transportName string, port int, device string) {
	if transportName != "" {
		config.Server.Transport = transportName
	}
	if port > 0 {
		config.Server.Port = port
	}
	if device != "" {
		config.Server.Device = device
	}
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if _, err := transport.ParseType(c.Server.Transport); err != nil {
		return fmt.Errorf("server.transport: %w", err)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.MaxRequestSize <= 0 {
		return fmt.Errorf("server.max_request_size must be positive")
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// TransportType returns the parsed transport. Call Validate first.
func (c *Config) TransportType() transport.Type {
	t, _ := transport.ParseType(c.Server.Transport)
	return t
}

// MCP converts the server section into an mcp.Config. Call Validate first.
func (c *Config) MCP(logger *slog.Logger) mcp.Config {
	return mcp.Config{
		Name:            c.Server.Name,
		Version:         c.Server.Version,
		ProtocolVersion: c.Server.ProtocolVersion,
		Transport:       c.TransportType(),
		TransportOptions: transport.Options{
			Logger:         logger,
			MaxRequestSize: c.Server.MaxRequestSize,
			Device:         c.Server.Device,
		},
		MaxTools:          c.Server.MaxTools,
		ValidateArguments: c.Server.ValidateArguments,
		Logger:            logger,
	}
}
