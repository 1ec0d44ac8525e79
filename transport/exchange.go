package transport

import "sync"

// exchange serialises request/response round trips through a single pending
// response slot. Only one exchange runs at a time, so a reply can never be
// picked up by the wrong request.
type exchange struct {
	mu sync.Mutex

	slotMu  sync.Mutex
	handler RequestHandler
	pending *string
}

func (e *exchange) setHandler(h RequestHandler) {
	e.slotMu.Lock()
	defer e.slotMu.Unlock()
	e.handler = h
}

// put stores a reply. A second reply for the same exchange is rejected.
func (e *exchange) put(response string) error {
	e.slotMu.Lock()
	defer e.slotMu.Unlock()
	if e.pending != nil {
		return ErrResponsePending
	}
	e.pending = &response
	return nil
}

func (e *exchange) take() (string, bool) {
	e.slotMu.Lock()
	defer e.slotMu.Unlock()
	if e.pending == nil {
		return "", false
	}
	resp := *e.pending
	e.pending = nil
	return resp, true
}

// run hands request to the handler and returns the reply it produced, if any.
func (e *exchange) run(request string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Drop anything sent outside an exchange.
	e.take()

	e.slotMu.Lock()
	h := e.handler
	e.slotMu.Unlock()

	if h != nil {
		h(request)
	}
	return e.take()
}
