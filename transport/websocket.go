package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// WebSocketTransport treats every text message on a connection to "/" as one
// request and writes the reply back on the same connection.
type WebSocketTransport struct {
	lc             serverLifecycle
	maxRequestSize int

	connsMu sync.Mutex
	conns   map[*websocket.Conn]struct{}

	ex exchange
}

// NewWebSocket creates a WebSocket transport. Like HTTPTransport it can be
// mounted as an http.Handler.
func NewWebSocket(opts Options) *WebSocketTransport {
	opts = opts.withDefaults()
	return &WebSocketTransport{
		lc: serverLifecycle{
			logger:          opts.Logger,
			name:            TypeWebSocket.String(),
			shutdownTimeout: opts.ShutdownTimeout,
		},
		maxRequestSize: opts.MaxRequestSize,
		conns:          make(map[*websocket.Conn]struct{}),
	}
}

// Init records the port to listen on. It fails while running or after Destroy.
func (t *WebSocketTransport) Init(port uint16) error { return t.lc.init(port) }

// Start binds the listener and accepts WebSocket upgrades in the background.
func (t *WebSocketTransport) Start() error { return t.lc.start(t) }

// Stop closes every open connection with StatusGoingAway, then shuts the
// server down.
func (t *WebSocketTransport) Stop() error { return t.lc.stop(t.closeConns) }

// Destroy stops the server and releases the transport for good.
func (t *WebSocketTransport) Destroy() error {
	err := t.lc.destroy(t.closeConns)
	t.ex.setHandler(nil)
	return err
}

// SendResponse stores the reply for the message being handled. It is sent on
// the connection the message arrived on.
func (t *WebSocketTransport) SendResponse(response string) error {
	return t.ex.put(response)
}

// SetRequestHandler installs the callback invoked for every text message.
func (t *WebSocketTransport) SetRequestHandler(handler RequestHandler) {
	t.ex.setHandler(handler)
}

// State reports the lifecycle state.
func (t *WebSocketTransport) State() State { return t.lc.current() }

// Addr returns the bound address while running, nil otherwise.
func (t *WebSocketTransport) Addr() net.Addr { return t.lc.addr() }

// ConnCount returns the number of open connections.
func (t *WebSocketTransport) ConnCount() int {
	t.connsMu.Lock()
	defer t.connsMu.Unlock()
	return len(t.conns)
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (t *WebSocketTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		t.lc.logger.Warn("websocket accept failed", "error", err)
		return
	}
	conn.SetReadLimit(int64(t.maxRequestSize))

	connID := uuid.NewString()
	logger := t.lc.logger.With("conn_id", connID, "remote", r.RemoteAddr)
	logger.Info("websocket client connected")

	t.connsMu.Lock()
	t.conns[conn] = struct{}{}
	t.connsMu.Unlock()

	defer func() {
		t.connsMu.Lock()
		delete(t.conns, conn)
		t.connsMu.Unlock()
		conn.CloseNow()
		logger.Info("websocket client disconnected")
	}()

	ctx := r.Context()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return
			}
			logger.Warn("websocket read failed", "error", err, "status", status)
			return
		}
		if typ != websocket.MessageText {
			logger.Warn("ignoring non-text message")
			continue
		}

		resp, ok := t.ex.run(string(data))
		if !ok || resp == NotificationAck {
			continue
		}
		if err := conn.Write(ctx, websocket.MessageText, []byte(resp)); err != nil {
			logger.Warn("websocket write failed", "error", err)
			return
		}
	}
}

func (t *WebSocketTransport) closeConns() {
	t.connsMu.Lock()
	conns := make([]*websocket.Conn, 0, len(t.conns))
	for c := range t.conns {
		conns = append(conns, c)
	}
	t.connsMu.Unlock()

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c *websocket.Conn) {
			defer wg.Done()
			c.Close(websocket.StatusGoingAway, "server stopping")
		}(c)
	}
	wg.Wait()
}
