// Package mcp implements a Model Context Protocol server that exposes
// application tools over a pluggable transport.
//
//	srv, err := mcp.NewServer(mcp.Config{Transport: transport.TypeHTTP})
//	if err != nil {
//	    return err
//	}
//	srv.AddTool("hello_world", "Says hello", hello)
//	if err := srv.Start(8080); err != nil {
//	    return err
//	}
//	defer srv.Destroy()
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mhpenta/devicemcp/schema"
	"github.com/mhpenta/devicemcp/tools"
	"github.com/mhpenta/devicemcp/transport"
)

const (
	DefaultName            = "ESP32 MCP Server"
	DefaultVersion         = "1.0.0"
	DefaultProtocolVersion = "2024-11-05"
)

var (
	ErrAlreadyRunning = errors.New("server already running")
	ErrDestroyed      = errors.New("server destroyed")
	ErrNilTransport   = errors.New("transport is required")
)

// Config holds configuration for the MCP server
type Config struct {
	Name    string
	Version string

	// ProtocolVersion is reported when the client does not send one.
	ProtocolVersion string

	// Transport selects the transport built by NewServer.
	Transport        transport.Type
	TransportOptions transport.Options

	// MaxTools bounds the registry. Zero selects tools.DefaultCapacity,
	// a negative value removes the bound.
	MaxTools int

	// ValidateArguments checks tools/call arguments against the tool's
	// parameter schema before the handler runs. Off by default: handlers own
	// their checks.
	ValidateArguments bool

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if c.ProtocolVersion == "" {
		c.ProtocolVersion = DefaultProtocolVersion
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.TransportOptions.Logger == nil {
		c.TransportOptions.Logger = c.Logger
	}
	return c
}

// Server routes protocol messages from its transport to registered tools.
type Server struct {
	name            string
	version         string
	protocolDefault string
	validate        bool
	logger          *slog.Logger

	transport transport.Transport
	registry  *tools.Registry

	ctx    context.Context
	cancel context.CancelFunc

	// lifeMu guards the lifecycle flags. It is never taken by dispatch, so a
	// transport can wait for in-flight requests while Stop holds it.
	lifeMu    sync.Mutex
	running   bool
	destroyed bool

	stateMu         sync.RWMutex
	initialized     bool
	protocolVersion string
	clientName      string
}

// NewServer creates a server and the transport selected by cfg.Transport.
func NewServer(cfg Config) (*Server, error) {
	cfg = cfg.withDefaults()

	t, err := transport.New(cfg.Transport, cfg.TransportOptions)
	if err != nil {
		cfg.Logger.Error("failed to create transport", "transport", cfg.Transport.String(), "error", err)
		return nil, fmt.Errorf("creating transport: %w", err)
	}
	return NewServerWithTransport(cfg, t)
}

// NewServerWithTransport creates a server on an existing transport. The
// server takes ownership of t and installs itself as its request handler.
func NewServerWithTransport(cfg Config, t transport.Transport) (*Server, error) {
	if t == nil {
		return nil, ErrNilTransport
	}
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		name:            cfg.Name,
		version:         cfg.Version,
		protocolDefault: cfg.ProtocolVersion,
		validate:        cfg.ValidateArguments,
		logger:          cfg.Logger,
		transport:       t,
		registry:        tools.NewRegistry(cfg.MaxTools, cfg.Logger),
		ctx:             ctx,
		cancel:          cancel,
	}
	t.SetRequestHandler(s.HandleRequest)

	s.logger.Info("initialized MCP server",
		"name", s.name,
		"version", s.version,
		"transport", fmt.Sprintf("%T", t))

	return s, nil
}

// RegisterTool adds a tool to the registry.
func (s *Server) RegisterTool(def tools.Definition) error {
	if s.isDestroyed() {
		return ErrDestroyed
	}
	return s.registry.Register(def)
}

// AddTool registers a tool from its parts.
func (s *Server) AddTool(name, description string, handler tools.Handler, params ...schema.Parameter) error {
	return s.RegisterTool(tools.Definition{
		Name:        name,
		Description: description,
		Handler:     handler,
		Parameters:  params,
	})
}

// RegisterTools registers defs in order and stops at the first failure.
func (s *Server) RegisterTools(defs ...tools.Definition) error {
	for _, def := range defs {
		if err := s.RegisterTool(def); err != nil {
			return fmt.Errorf("registering %q: %w", def.Name, err)
		}
	}
	return nil
}

// Start initializes the transport on port and starts it. A failure leaves
// the server stopped so Start can be retried.
func (s *Server) Start(port uint16) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.destroyed {
		return ErrDestroyed
	}
	if s.running {
		s.logger.Warn("server already running")
		return ErrAlreadyRunning
	}

	if err := s.transport.Init(port); err != nil {
		s.logger.Error("failed to initialize transport", "error", err)
		return fmt.Errorf("initializing transport: %w", err)
	}
	if err := s.transport.Start(); err != nil {
		s.logger.Error("failed to start transport", "error", err)
		return fmt.Errorf("starting transport: %w", err)
	}

	s.running = true
	s.logger.Info("MCP server started", "port", port, "tools", s.registry.Count())
	return nil
}

// Stop stops the transport. Stopping a server that is not running only logs
// a warning.
func (s *Server) Stop() error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.destroyed {
		return ErrDestroyed
	}
	return s.stopLocked()
}

func (s *Server) stopLocked() error {
	if !s.running {
		s.logger.Warn("server not running")
		return nil
	}

	s.running = false
	if err := s.transport.Stop(); err != nil {
		s.logger.Error("failed to stop transport", "error", err)
		return fmt.Errorf("stopping transport: %w", err)
	}
	s.logger.Info("MCP server stopped")
	return nil
}

// Destroy stops the server if needed, clears its tools and handshake state
// and destroys the transport. The server cannot be used afterwards.
func (s *Server) Destroy() error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.destroyed {
		return ErrDestroyed
	}

	var errs []error
	if s.running {
		if err := s.stopLocked(); err != nil {
			errs = append(errs, err)
		}
	}

	s.registry.Clear()
	s.stateMu.Lock()
	s.initialized = false
	s.protocolVersion = ""
	s.clientName = ""
	s.stateMu.Unlock()

	if err := s.transport.Destroy(); err != nil {
		errs = append(errs, fmt.Errorf("destroying transport: %w", err))
	}
	s.cancel()
	s.destroyed = true

	s.logger.Info("MCP server destroyed")
	return errors.Join(errs...)
}

// ToolCount returns the number of registered tools.
func (s *Server) ToolCount() int { return s.registry.Count() }

// HasTool reports whether name is registered.
func (s *Server) HasTool(name string) bool { return s.registry.Has(name) }

// Name returns the server name
func (s *Server) Name() string { return s.name }

// Version returns the server version
func (s *Server) Version() string { return s.version }

// Transport returns the transport the server owns.
func (s *Server) Transport() transport.Transport { return s.transport }

// IsRunning reports whether Start succeeded and Stop has not been called since.
func (s *Server) IsRunning() bool {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	return s.running
}

// IsInitialized reports whether the client sent notifications/initialized.
func (s *Server) IsInitialized() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.initialized
}

// ClientInfo returns what the client reported in initialize. Both values are
// empty before the handshake.
func (s *Server) ClientInfo() (protocolVersion, clientName string) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.protocolVersion, s.clientName
}

func (s *Server) isDestroyed() bool {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	return s.destroyed
}
