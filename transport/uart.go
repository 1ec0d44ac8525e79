package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// UARTTransport exchanges newline-delimited JSON over a serial device or any
// reader/writer pair (stdin/stdout by default).
type UARTTransport struct {
	logger         *slog.Logger
	device         string
	maxRequestSize int

	mu      sync.Mutex
	state   State
	reader  io.Reader
	writer  io.Writer
	file    *os.File
	lines   chan string
	closed  chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
	writeMu sync.Mutex

	ex exchange
}

// NewUART creates a UART transport.
func NewUART(opts Options) *UARTTransport {
	opts = opts.withDefaults()
	return &UARTTransport{
		logger:         opts.Logger,
		device:         opts.Device,
		maxRequestSize: opts.MaxRequestSize,
		reader:         opts.Reader,
		writer:         opts.Writer,
		closed:         make(chan struct{}),
	}
}

// Init opens the device, if one is configured. The port is ignored.
func (t *UARTTransport) Init(port uint16) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case StateDestroyed:
		return ErrDestroyed
	case StateRunning:
		return ErrRunning
	}

	if t.device != "" && t.file == nil {
		f, err := os.OpenFile(t.device, os.O_RDWR, 0)
		if err != nil {
			return fmt.Errorf("open device %s: %w", t.device, err)
		}
		t.file = f
		t.reader = f
		t.writer = f
	}

	if t.lines == nil {
		t.lines = make(chan string)
		go t.scan(t.reader)
	}

	t.state = StateInitialized
	t.logger.Debug("transport initialized", "transport", TypeUART.String(), "device", t.device)
	return nil
}

// Start begins handling input lines.
func (t *UARTTransport) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case StateCreated:
		return ErrNotInitialized
	case StateDestroyed:
		return ErrDestroyed
	case StateRunning:
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})
	t.state = StateRunning

	go t.loop(ctx, t.done)
	t.logger.Info("starting MCP uart transport", "device", t.device)
	return nil
}

// Stop halts request handling. The input stream stays open for a later Start.
func (t *UARTTransport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	return nil
}

func (t *UARTTransport) stopLocked() {
	if t.state != StateRunning {
		return
	}
	t.cancel()
	<-t.done
	t.state = StateStopped
	t.logger.Info("uart transport stopped")
}

// Destroy stops the transport, ends the reader goroutine and closes the
// device. Later calls return ErrDestroyed.
func (t *UARTTransport) Destroy() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateDestroyed {
		return ErrDestroyed
	}
	t.stopLocked()

	var err error
	close(t.closed)
	if t.file != nil {
		if cerr := t.file.Close(); cerr != nil {
			err = fmt.Errorf("close device: %w", cerr)
		}
		t.file = nil
	}
	t.state = StateDestroyed
	t.ex.setHandler(nil)
	return err
}

// SendResponse stores the reply for the line being handled. It is written
// once the request handler returns.
func (t *UARTTransport) SendResponse(response string) error {
	return t.ex.put(response)
}

// SetRequestHandler installs the callback invoked for every input line.
func (t *UARTTransport) SetRequestHandler(handler RequestHandler) {
	t.ex.setHandler(handler)
}

// State reports the lifecycle state.
func (t *UARTTransport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// scan feeds lines from r until EOF or Destroy. It outlives Stop so that a
// restarted transport keeps reading the same stream. Lines longer than
// maxRequestSize are skipped up to the next newline.
func (t *UARTTransport) scan(r io.Reader) {
	defer close(t.lines)

	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, size, err := readLine(br, t.maxRequestSize)
		switch {
		case size > t.maxRequestSize:
			t.logger.Warn("request too large", "size", size, "limit", t.maxRequestSize)
		case len(line) > 0:
			select {
			case t.lines <- string(line):
			case <-t.closed:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.logger.Error("uart read error", "error", err)
			}
			return
		}
	}
}

// readLine reads through the next newline and reports the number of bytes
// consumed. Content is kept only while it fits within limit, so an oversized
// line costs no more than the reader's buffer.
func readLine(br *bufio.Reader, limit int) ([]byte, int, error) {
	var line []byte
	size := 0
	for {
		chunk, err := br.ReadSlice('\n')
		size += len(chunk)
		if size <= limit {
			line = append(line, chunk...)
		} else {
			line = nil
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return line, size, err
	}
}

func (t *UARTTransport) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-t.lines:
			if !ok {
				t.logger.Info("uart input closed")
				go t.inputClosed(done)
				return
			}
			t.handleLine(line)
		}
	}
}

// inputClosed moves a transport whose input reached EOF out of Running. It
// runs after loop has exited, so a concurrent Stop holding t.mu can finish
// first.
func (t *UARTTransport) inputClosed(done chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateRunning && t.done == done {
		t.state = StateStopped
	}
}

func (t *UARTTransport) handleLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if len(line) >= t.maxRequestSize {
		t.logger.Warn("request too large", "size", len(line), "limit", t.maxRequestSize)
		return
	}

	resp, ok := t.ex.run(line)
	if !ok || resp == NotificationAck {
		return
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := io.WriteString(t.writer, resp+"\n"); err != nil {
		t.logger.Error("error writing response", "error", err)
	}
}
