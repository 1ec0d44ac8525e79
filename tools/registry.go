package tools

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mhpenta/devicemcp/schema"
)

// DefaultCapacity bounds the registry when no capacity is configured.
const DefaultCapacity = 32

var (
	ErrInvalidArgument  = errors.New("invalid tool definition")
	ErrAlreadyExists    = errors.New("tool already registered")
	ErrCapacityExceeded = errors.New("tool capacity exceeded")
)

// Entry is the registry's own record of a tool.
type Entry struct {
	Name        string
	Description string
	Handler     Handler
	// Parameters aliases the slice from the Definition.
	Parameters []schema.Parameter
}

// Registry stores tools in registration order with a name index.
type Registry struct {
	mu       sync.RWMutex
	entries  []*Entry
	index    map[string]int
	capacity int
	logger   *slog.Logger
}

// NewRegistry creates a registry holding at most capacity tools. Zero selects
// DefaultCapacity; a negative capacity means unbounded.
func NewRegistry(capacity int, logger *slog.Logger) *Registry {
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		index:    make(map[string]int),
		capacity: capacity,
		logger:   logger,
	}
}

// Register adds a tool. Names are matched case-sensitively.
func (r *Registry) Register(def Definition) error {
	if err := Validate(def); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[def.Name]; exists {
		r.logger.Error("tool already registered", "tool", def.Name)
		return fmt.Errorf("%w: %s", ErrAlreadyExists, def.Name)
	}

	if r.capacity > 0 && len(r.entries) >= r.capacity {
		r.logger.Error("maximum number of tools reached", "capacity", r.capacity)
		return fmt.Errorf("%w: limit is %d", ErrCapacityExceeded, r.capacity)
	}

	r.index[def.Name] = len(r.entries)
	r.entries = append(r.entries, &Entry{
		Name:        def.Name,
		Description: def.Description,
		Handler:     def.Handler,
		Parameters:  def.Parameters,
	})

	r.logger.Info("registered tool", "tool", def.Name, "parameters", len(def.Parameters))
	return nil
}

// Lookup returns the entry registered under name.
func (r *Registry) Lookup(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.entries[i], true
}

// Has reports whether a tool named name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Entries returns the registered tools in registration order.
func (r *Registry) Entries() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Clear removes every tool.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = nil
	r.index = make(map[string]int)
}
