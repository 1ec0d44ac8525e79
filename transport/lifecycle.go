package transport

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// serverLifecycle is the state machine shared by the listener-based
// transports.
type serverLifecycle struct {
	logger          *slog.Logger
	name            string
	shutdownTimeout time.Duration

	mu    sync.Mutex
	state State
	port  uint16
	l     *httpListener
}

func (lc *serverLifecycle) current() State {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.state
}

func (lc *serverLifecycle) init(port uint16) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	switch lc.state {
	case StateDestroyed:
		return ErrDestroyed
	case StateRunning:
		return ErrRunning
	}
	lc.port = port
	lc.state = StateInitialized
	lc.logger.Debug("transport initialized", "transport", lc.name, "port", port)
	return nil
}

func (lc *serverLifecycle) start(handler http.Handler) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	switch lc.state {
	case StateCreated:
		return ErrNotInitialized
	case StateDestroyed:
		return ErrDestroyed
	case StateRunning:
		return ErrRunning
	}

	l, err := listen(lc.logger, lc.name, lc.port, handler)
	if err != nil {
		return err
	}
	lc.l = l
	lc.state = StateRunning
	return nil
}

// stop shuts the listener down. beforeShutdown runs first while the state
// lock is held.
func (lc *serverLifecycle) stop(beforeShutdown func()) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.stopLocked(beforeShutdown)
}

func (lc *serverLifecycle) stopLocked(beforeShutdown func()) error {
	if lc.state != StateRunning {
		return nil
	}
	if beforeShutdown != nil {
		beforeShutdown()
	}

	err := lc.l.shutdown(lc.shutdownTimeout)
	lc.l = nil
	lc.state = StateStopped
	lc.logger.Info("transport stopped", "transport", lc.name)
	return err
}

// destroy stops the listener and marks the transport destroyed. Only the
// first call succeeds.
func (lc *serverLifecycle) destroy(beforeShutdown func()) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if lc.state == StateDestroyed {
		return ErrDestroyed
	}
	err := lc.stopLocked(beforeShutdown)
	lc.state = StateDestroyed
	return err
}

func (lc *serverLifecycle) addr() net.Addr {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.l == nil {
		return nil
	}
	return lc.l.addr()
}
