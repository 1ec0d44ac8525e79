// Package transport carries raw JSON-RPC messages between clients and a
// request handler. A transport owns its I/O loop; for every inbound message
// it synchronously invokes the registered RequestHandler, which answers by
// calling SendResponse before returning.
package transport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// RequestHandler receives one raw inbound message.
type RequestHandler func(request string)

// Transport is the capability set every concrete transport implements.
type Transport interface {
	// Init prepares the transport. Port is ignored by stream transports.
	Init(port uint16) error
	// Start begins accepting messages. Init must have been called.
	Start() error
	// Stop halts message intake. Calling Stop when not running is a no-op.
	Stop() error
	// SendResponse delivers the reply for the message being handled.
	SendResponse(response string) error
	// Destroy stops the transport if needed and releases its resources.
	Destroy() error
	SetRequestHandler(handler RequestHandler)
}

// NotificationAck is the minimal reply sent for notifications so that
// one-reply-per-exchange transports always have something to return.
// Stream transports drop it.
const NotificationAck = "{}"

const (
	DefaultMaxRequestSize  = 4096
	DefaultShutdownTimeout = 5 * time.Second
)

var (
	ErrUnsupportedType = errors.New("unsupported transport type")
	ErrNotInitialized  = errors.New("transport not initialized")
	ErrRunning         = errors.New("transport already running")
	ErrDestroyed       = errors.New("transport destroyed")
	ErrResponsePending = errors.New("response already pending")
)

// State is the lifecycle position of a transport.
type State int

const (
	StateCreated State = iota
	StateInitialized
	StateRunning
	StateStopped
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Type selects a concrete transport.
type Type int

const (
	TypeHTTP Type = iota
	TypeUART
	TypeWebSocket
)

func (t Type) String() string {
	switch t {
	case TypeHTTP:
		return "http"
	case TypeUART:
		return "uart"
	case TypeWebSocket:
		return "websocket"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// ParseType maps a name such as "http", "uart" or "websocket" to a Type.
func ParseType(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "http":
		return TypeHTTP, nil
	case "uart", "serial", "stdio":
		return TypeUART, nil
	case "websocket", "ws":
		return TypeWebSocket, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedType, name)
}

// Options configures the transports built by New. Zero values select defaults.
type Options struct {
	Logger *slog.Logger

	// MaxRequestSize bounds a single inbound message in bytes.
	MaxRequestSize int

	// Device is the serial device path for the UART transport. When empty,
	// Reader and Writer are used instead.
	Device string
	Reader io.Reader
	Writer io.Writer

	ShutdownTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.MaxRequestSize <= 0 {
		o.MaxRequestSize = DefaultMaxRequestSize
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = DefaultShutdownTimeout
	}
	if o.Reader == nil {
		o.Reader = os.Stdin
	}
	if o.Writer == nil {
		o.Writer = os.Stdout
	}
	return o
}

// New constructs the transport selected by t.
func New(t Type, opts Options) (Transport, error) {
	switch t {
	case TypeHTTP:
		return NewHTTP(opts), nil
	case TypeUART:
		return NewUART(opts), nil
	case TypeWebSocket:
		return NewWebSocket(opts), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
}
