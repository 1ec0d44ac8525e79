package transport

import (
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

// HTTPTransport answers one JSON-RPC message per POST to the root path.
type HTTPTransport struct {
	lc             serverLifecycle
	maxRequestSize int
	ex             exchange
}

// NewHTTP creates an HTTP transport. It also implements http.Handler, so it
// can be mounted on an existing server without calling Start.
func NewHTTP(opts Options) *HTTPTransport {
	opts = opts.withDefaults()
	return &HTTPTransport{
		lc: serverLifecycle{
			logger:          opts.Logger,
			name:            TypeHTTP.String(),
			shutdownTimeout: opts.ShutdownTimeout,
		},
		maxRequestSize: opts.MaxRequestSize,
	}
}

// Init records the port to listen on. It fails while running or after Destroy.
func (t *HTTPTransport) Init(port uint16) error { return t.lc.init(port) }

// Start binds the listener and serves requests in the background. A bind
// failure leaves the transport initialized so Start can be retried.
func (t *HTTPTransport) Start() error { return t.lc.start(t) }

// Stop shuts the server down gracefully. It is a no-op unless running.
func (t *HTTPTransport) Stop() error { return t.lc.stop(nil) }

// Destroy stops the server and releases the transport for good.
func (t *HTTPTransport) Destroy() error {
	err := t.lc.destroy(nil)
	t.ex.setHandler(nil)
	return err
}

// SendResponse stores the reply for the in-flight request. A second reply in
// the same exchange returns ErrResponsePending.
func (t *HTTPTransport) SendResponse(response string) error {
	return t.ex.put(response)
}

// SetRequestHandler installs the callback invoked for every accepted POST.
func (t *HTTPTransport) SetRequestHandler(handler RequestHandler) {
	t.ex.setHandler(handler)
}

// State reports the lifecycle state.
func (t *HTTPTransport) State() State { return t.lc.current() }

// Addr returns the bound address while running, nil otherwise.
func (t *HTTPTransport) Addr() net.Addr { return t.lc.addr() }

// ServeHTTP implements http.Handler
func (t *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set("X-Request-Id", requestID)
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodOptions:
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")
		w.WriteHeader(http.StatusNoContent)
	case http.MethodPost:
		t.handlePost(w, r, requestID)
	default:
		w.Header().Set("Allow", "POST, OPTIONS")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (t *HTTPTransport) handlePost(w http.ResponseWriter, r *http.Request, requestID string) {
	logger := t.lc.logger.With("request_id", requestID)

	if r.ContentLength >= int64(t.maxRequestSize) {
		logger.Warn("request too large", "content_length", r.ContentLength, "limit", t.maxRequestSize)
		http.Error(w, "Request too large", http.StatusRequestEntityTooLarge)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, int64(t.maxRequestSize)))
	if err != nil {
		logger.Error("failed to read request body", "error", err)
		http.Error(w, "failed to read request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if len(body) >= t.maxRequestSize {
		logger.Warn("request too large", "limit", t.maxRequestSize)
		http.Error(w, "Request too large", http.StatusRequestEntityTooLarge)
		return
	}

	resp, ok := t.ex.run(string(body))
	if !ok {
		logger.Error("no response generated")
		http.Error(w, "No response generated", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(resp)))
	if _, err := io.WriteString(w, resp); err != nil {
		logger.Error("failed to write response", "error", err)
	}
}
