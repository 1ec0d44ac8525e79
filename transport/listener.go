package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// httpListener is a running http.Server bound to a TCP port.
type httpListener struct {
	srv  *http.Server
	ln   net.Listener
	done chan struct{}
}

// listen binds port synchronously so bind failures reach the caller, then
// serves handler in the background.
func listen(logger *slog.Logger, name string, port uint16, handler http.Handler) (*httpListener, error) {
	addr := fmt.Sprintf(":%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	l := &httpListener{
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		ln:   ln,
		done: make(chan struct{}),
	}

	go func() {
		defer close(l.done)
		logger.Info("transport listening", "transport", name, "addr", ln.Addr().String())
		if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("transport server error", "transport", name, "error", err)
		}
	}()

	return l, nil
}

func (l *httpListener) addr() net.Addr {
	return l.ln.Addr()
}

func (l *httpListener) shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := l.srv.Shutdown(ctx)
	<-l.done
	if err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
