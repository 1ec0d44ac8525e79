package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/mhpenta/devicemcp/schema"
	"github.com/mhpenta/devicemcp/tools"
	"github.com/mhpenta/devicemcp/transport"
)

// fakeTransport records lifecycle calls and captures responses in memory.
type fakeTransport struct {
	mu        sync.Mutex
	handler   transport.RequestHandler
	responses []string
	calls     []string
	initErr   error
	startErr  error
}

func (f *fakeTransport) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeTransport) Init(port uint16) error {
	f.record("init")
	return f.initErr
}

func (f *fakeTransport) Start() error {
	f.record("start")
	return f.startErr
}

func (f *fakeTransport) Stop() error {
	f.record("stop")
	return nil
}

func (f *fakeTransport) Destroy() error {
	f.record("destroy")
	return nil
}

func (f *fakeTransport) SendResponse(response string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, response)
	return nil
}

func (f *fakeTransport) SetRequestHandler(handler transport.RequestHandler) {
	f.handler = handler
}

// deliver feeds raw to the server the way a transport would and returns the reply.
func (f *fakeTransport) deliver(raw string) string {
	f.handler(raw)
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.responses) == 0 {
		return ""
	}
	return f.responses[len(f.responses)-1]
}

func (f *fakeTransport) callLog() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.calls, ",")
}

func assertJSONEqual(t *testing.T, want, got string) {
	t.Helper()
	var w, g any
	if err := json.Unmarshal([]byte(want), &w); err != nil {
		t.Fatalf("bad expectation: %v", err)
	}
	if err := json.Unmarshal([]byte(got), &g); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, got)
	}
	if !reflect.DeepEqual(w, g) {
		t.Errorf("\n got %s\nwant %s", got, want)
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, cfg Config) (*Server, *fakeTransport) {
	t.Helper()
	ft := &fakeTransport{}
	cfg.Logger = quietLogger()
	s, err := NewServerWithTransport(cfg, ft)
	if err != nil {
		t.Fatalf("NewServerWithTransport: %v", err)
	}
	return s, ft
}

func helloWorld(ctx context.Context, args tools.Args) tools.Result {
	return tools.Success("Hello from ESP32 MCP Server!")
}

func TestServer_HelloWorldEndToEnd(t *testing.T) {
	s, ft := newTestServer(t, Config{})
	if err := s.AddTool("hello_world", "Says hello", helloWorld); err != nil {
		t.Fatal(err)
	}

	got := ft.deliver(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	want := `{"jsonrpc":"2.0","id":1,"result":{"tools":[{"name":"hello_world","description":"Says hello","inputSchema":{"type":"object","properties":{}}}]}}`
	if got != want {
		t.Errorf("tools/list:\n got %s\nwant %s", got, want)
	}

	got = ft.deliver(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"hello_world"}}`)
	want = `{"jsonrpc":"2.0","id":2,"result":{"content":[{"type":"text","text":"Hello from ESP32 MCP Server!"}]}}`
	if got != want {
		t.Errorf("tools/call:\n got %s\nwant %s", got, want)
	}
}

func TestServer_ToolsListWithParameters(t *testing.T) {
	s, ft := newTestServer(t, Config{})
	err := s.AddTool("set_thermostat", "", helloWorld,
		schema.NumberRequired("temperature", "Target temperature", 40, 90))
	if err != nil {
		t.Fatal(err)
	}

	got := ft.deliver(`{"jsonrpc":"2.0","id":4,"method":"tools/list"}`)
	want := `{"jsonrpc":"2.0","id":4,"result":{"tools":[{"name":"set_thermostat","inputSchema":{"type":"object","properties":{"temperature":{"type":"number","description":"Target temperature","minimum":40,"maximum":90}},"required":["temperature"]}}]}}`
	assertJSONEqual(t, want, got)
}

func TestServer_Initialize(t *testing.T) {
	tests := []struct {
		name          string
		request       string
		want          string
		wantProtocol  string
		wantClientFor string
	}{
		{
			name:          "echoes client version",
			request:       `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","clientInfo":{"name":"inspector","version":"0.1"}}}`,
			want:          `{"jsonrpc":"2.0","id":1,"result":{"protocolVersion":"2025-03-26","capabilities":{"tools":{}},"serverInfo":{"name":"ESP32 MCP Server","version":"1.0.0"}}}`,
			wantProtocol:  "2025-03-26",
			wantClientFor: "inspector",
		},
		{
			name:    "defaults without params",
			request: `{"jsonrpc":"2.0","id":2,"method":"initialize"}`,
			want:    `{"jsonrpc":"2.0","id":2,"result":{"protocolVersion":"2024-11-05","capabilities":{"tools":{}},"serverInfo":{"name":"ESP32 MCP Server","version":"1.0.0"}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ft := newTestServer(t, Config{})
			if got := ft.deliver(tt.request); got != tt.want {
				t.Errorf("initialize:\n got %s\nwant %s", got, tt.want)
			}
			protocol, client := s.ClientInfo()
			if protocol != tt.wantProtocol || client != tt.wantClientFor {
				t.Errorf("ClientInfo() = %q, %q", protocol, client)
			}
		})
	}
}

func TestServer_InitializedNotification(t *testing.T) {
	s, ft := newTestServer(t, Config{})

	if s.IsInitialized() {
		t.Fatal("should not be initialized before the notification")
	}
	got := ft.deliver(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	if got != transport.NotificationAck {
		t.Errorf("expected ack %q, got %q", transport.NotificationAck, got)
	}
	if !s.IsInitialized() {
		t.Error("expected initialized after the notification")
	}
}

func TestServer_LenientHandshake(t *testing.T) {
	s, ft := newTestServer(t, Config{})
	if err := s.AddTool("hello_world", "", helloWorld); err != nil {
		t.Fatal(err)
	}

	got := ft.deliver(`{"jsonrpc":"2.0","id":9,"method":"tools/call","params":{"name":"hello_world"}}`)
	if !strings.Contains(got, "Hello from ESP32 MCP Server!") {
		t.Errorf("tools/call before initialized should succeed, got %s", got)
	}
}

func TestServer_ErrorResponses(t *testing.T) {
	tests := []struct {
		name    string
		request string
		want    string
	}{
		{
			name:    "parse error",
			request: `{"jsonrpc":"2.0","id":`,
			want:    `{"jsonrpc":"2.0","id":0,"error":{"code":-32700,"message":"Parse error"}}`,
		},
		{
			name:    "missing method",
			request: `{"jsonrpc":"2.0","id":1}`,
			want:    `{"jsonrpc":"2.0","id":0,"error":{"code":-32700,"message":"Parse error"}}`,
		},
		{
			name:    "unknown tool",
			request: `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"frobnicate"}}`,
			want:    `{"jsonrpc":"2.0","id":3,"error":{"code":-32602,"message":"Tool not found"}}`,
		},
		{
			name:    "missing name",
			request: `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"arguments":{}}}`,
			want:    `{"jsonrpc":"2.0","id":4,"error":{"code":-32602,"message":"Missing 'name' parameter"}}`,
		},
		{
			name:    "non-string name",
			request: `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":42}}`,
			want:    `{"jsonrpc":"2.0","id":5,"error":{"code":-32602,"message":"Missing 'name' parameter"}}`,
		},
		{
			name:    "no params",
			request: `{"jsonrpc":"2.0","id":6,"method":"tools/call"}`,
			want:    `{"jsonrpc":"2.0","id":6,"error":{"code":-32602,"message":"Missing 'name' parameter"}}`,
		},
		{
			name:    "unknown method",
			request: `{"jsonrpc":"2.0","id":7,"method":"resources/list"}`,
			want:    `{"jsonrpc":"2.0","id":7,"error":{"code":-32601,"message":"Method not found"}}`,
		},
		{
			name:    "unknown notification",
			request: `{"jsonrpc":"2.0","method":"notifications/cancelled"}`,
			want:    `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ft := newTestServer(t, Config{})
			if got := ft.deliver(tt.request); got != tt.want {
				t.Errorf("\n got %s\nwant %s", got, tt.want)
			}
		})
	}
}

func TestServer_Ping(t *testing.T) {
	_, ft := newTestServer(t, Config{})
	got := ft.deliver(`{"jsonrpc":"2.0","id":11,"method":"ping"}`)
	if want := `{"jsonrpc":"2.0","id":11,"result":{}}`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func setThermostat(called *bool) tools.Definition {
	return tools.Definition{
		Name:        "set_thermostat",
		Description: "Sets the thermostat setpoint",
		Parameters:  []schema.Parameter{schema.NumberRequired("temperature", "Target temperature in Fahrenheit", 40, 90)},
		Handler: func(ctx context.Context, args tools.Args) tools.Result {
			*called = true
			temp := args.Float("temperature", -999)
			if temp < 40 || temp > 90 {
				return tools.Failure("Invalid temperature value (must be between 40 and 90 degrees)")
			}
			return tools.Success("ok")
		},
	}
}

func TestServer_RangeIsHandlerOwned(t *testing.T) {
	s, ft := newTestServer(t, Config{})
	var called bool
	if err := s.RegisterTool(setThermostat(&called)); err != nil {
		t.Fatal(err)
	}

	got := ft.deliver(`{"jsonrpc":"2.0","id":12,"method":"tools/call","params":{"name":"set_thermostat","arguments":{"temperature":35}}}`)
	want := `{"jsonrpc":"2.0","id":12,"result":{"error":"Invalid temperature value (must be between 40 and 90 degrees)"}}`
	if got != want {
		t.Errorf("\n got %s\nwant %s", got, want)
	}
	if !called {
		t.Error("the handler must see out-of-range values")
	}
}

func TestServer_ValidateArguments(t *testing.T) {
	s, ft := newTestServer(t, Config{ValidateArguments: true})
	var called bool
	if err := s.RegisterTool(setThermostat(&called)); err != nil {
		t.Fatal(err)
	}

	got := ft.deliver(`{"jsonrpc":"2.0","id":13,"method":"tools/call","params":{"name":"set_thermostat","arguments":{"temperature":35}}}`)
	if !strings.HasPrefix(got, `{"jsonrpc":"2.0","id":13,"error":{"code":-32602,"message":"Invalid params: `) {
		t.Errorf("expected invalid params error, got %s", got)
	}
	if called {
		t.Error("handler should not run when validation fails")
	}

	got = ft.deliver(`{"jsonrpc":"2.0","id":14,"method":"tools/call","params":{"name":"set_thermostat","arguments":{"temperature":72}}}`)
	if want := `{"jsonrpc":"2.0","id":14,"result":{"content":[{"type":"text","text":"ok"}]}}`; got != want {
		t.Errorf("\n got %s\nwant %s", got, want)
	}
}

func TestServer_HandlerPanic(t *testing.T) {
	s, ft := newTestServer(t, Config{})
	err := s.AddTool("explode", "", func(ctx context.Context, args tools.Args) tools.Result {
		panic("boom")
	})
	if err != nil {
		t.Fatal(err)
	}

	got := ft.deliver(`{"jsonrpc":"2.0","id":15,"method":"tools/call","params":{"name":"explode"}}`)
	if want := `{"jsonrpc":"2.0","id":15,"error":{"code":-32603,"message":"Internal error"}}`; got != want {
		t.Errorf("\n got %s\nwant %s", got, want)
	}
}

func TestServer_RegisterTools(t *testing.T) {
	s, _ := newTestServer(t, Config{MaxTools: 2})

	err := s.RegisterTools(
		tools.Definition{Name: "a", Handler: helloWorld},
		tools.Definition{Name: "b", Handler: helloWorld},
		tools.Definition{Name: "c", Handler: helloWorld},
	)
	if !errors.Is(err, tools.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if s.ToolCount() != 2 || !s.HasTool("a") || !s.HasTool("b") || s.HasTool("c") {
		t.Errorf("unexpected registry contents, count %d", s.ToolCount())
	}

	if err := s.AddTool("a", "", helloWorld); !errors.Is(err, tools.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestServer_Lifecycle(t *testing.T) {
	s, ft := newTestServer(t, Config{})

	if err := s.Stop(); err != nil {
		t.Errorf("stop before start should only warn, got %v", err)
	}
	if err := s.Start(8080); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !s.IsRunning() {
		t.Fatal("expected running")
	}
	if err := s.Start(8080); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("second stop: %v", err)
	}
	if s.IsRunning() {
		t.Error("expected stopped")
	}
	if got, want := ft.callLog(), "init,start,stop"; got != want {
		t.Errorf("transport calls %q, want %q", got, want)
	}
}

func TestServer_DestroyImpliesStop(t *testing.T) {
	s, ft := newTestServer(t, Config{})
	if err := s.AddTool("hello_world", "", helloWorld); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(0); err != nil {
		t.Fatal(err)
	}

	if err := s.Destroy(); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if got, want := ft.callLog(), "init,start,stop,destroy"; got != want {
		t.Errorf("transport calls %q, want %q", got, want)
	}
	if s.IsRunning() || s.ToolCount() != 0 {
		t.Error("destroy should stop the server and clear its tools")
	}

	if err := s.Destroy(); !errors.Is(err, ErrDestroyed) {
		t.Errorf("expected ErrDestroyed, got %v", err)
	}
	if err := s.Start(0); !errors.Is(err, ErrDestroyed) {
		t.Errorf("expected ErrDestroyed from start, got %v", err)
	}
	if err := s.AddTool("late", "", helloWorld); !errors.Is(err, ErrDestroyed) {
		t.Errorf("expected ErrDestroyed from register, got %v", err)
	}
}

func TestServer_StartFailureKeepsStopped(t *testing.T) {
	ft := &fakeTransport{startErr: errors.New("port in use")}
	s, err := NewServerWithTransport(Config{Logger: quietLogger()}, ft)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Start(80); err == nil {
		t.Fatal("expected start to fail")
	}
	if s.IsRunning() {
		t.Error("failed start must not mark the server running")
	}

	ft.startErr = nil
	if err := s.Start(80); err != nil {
		t.Errorf("retry: %v", err)
	}
}

func TestNewServer(t *testing.T) {
	s, err := NewServer(Config{Transport: transport.Type(99), Logger: quietLogger()})
	if !errors.Is(err, transport.ErrUnsupportedType) || s != nil {
		t.Errorf("expected unsupported transport error and no server, got %v, %v", s, err)
	}

	s, err = NewServer(Config{Transport: transport.TypeHTTP, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if s.Name() != DefaultName || s.Version() != DefaultVersion {
		t.Errorf("unexpected defaults %q %q", s.Name(), s.Version())
	}
	if _, ok := s.Transport().(*transport.HTTPTransport); !ok {
		t.Errorf("expected an HTTP transport, got %T", s.Transport())
	}

	if _, err := NewServerWithTransport(Config{}, nil); !errors.Is(err, ErrNilTransport) {
		t.Errorf("expected ErrNilTransport, got %v", err)
	}
}
