package subscription

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ggerr"
)

// Subscription errors.
var (
	// ErrStop is returned by a callback to close its own subscription once
	// the current delivery has returned.
	ErrStop = errors.New("stop subscription")

	// ErrResourceExhausted indicates the registry is full.
	ErrResourceExhausted = fmt.Errorf("%w: maximum subscriptions reached", ggerr.Busy)

	// ErrNilCallback indicates Register was called without a callback.
	ErrNilCallback = fmt.Errorf("%w: nil callback", ggerr.Invalid)
)

// DefaultMaxSubscriptions matches the connection's stream table, less the
// reserved connect stream.
const DefaultMaxSubscriptions = 15

// Handle identifies a registered callback. The zero handle is never issued.
type Handle uint32

// Callback receives one event. Returning ErrStop closes the subscription
// after the delivery; other errors are logged.
type Callback func(event any) error

// Config holds registry configuration.
type Config struct {
	// MaxSubscriptions is the maximum number of live handles.
	MaxSubscriptions int

	// Logger receives callback errors (default: slog.Default()).
	Logger *slog.Logger
}

// DefaultConfig returns the default registry configuration.
func DefaultConfig() Config {
	return Config{MaxSubscriptions: DefaultMaxSubscriptions}
}

// Registry maps handles to boxed callbacks.
type Registry struct {
	mu      sync.RWMutex
	config  Config
	entries map[Handle]*entry
	next    Handle
}

// entry is the box behind a handle.
type entry struct {
	mu      sync.Mutex // held for the duration of a delivery
	closed  atomic.Bool
	cb      Callback
	onClose func()
	once    sync.Once
}

// NewRegistry creates a registry with default configuration.
func NewRegistry() *Registry {
	return NewRegistryWithConfig(DefaultConfig())
}

// NewRegistryWithConfig creates a registry with custom configuration.
func NewRegistryWithConfig(config Config) *Registry {
	if config.MaxSubscriptions <= 0 {
		config.MaxSubscriptions = DefaultMaxSubscriptions
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Registry{
		config:  config,
		entries: make(map[Handle]*entry),
	}
}

// Register boxes cb and returns its handle. onClose, if non-nil, runs
// exactly once when the handle is closed.
func (r *Registry) Register(cb Callback, onClose func()) (Handle, error) {
	if cb == nil {
		return 0, ErrNilCallback
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) >= r.config.MaxSubscriptions {
		return 0, ErrResourceExhausted
	}
	for {
		r.next++
		if r.next == 0 {
			r.next = 1
		}
		if _, used := r.entries[r.next]; !used {
			break
		}
	}
	r.entries[r.next] = &entry{cb: cb, onClose: onClose}
	return r.next, nil
}

func (r *Registry) lookup(h Handle) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[h]
}

// Deliver invokes the callback registered for h with event. It reports
// whether the callback ran; events for unknown or closed handles are
// dropped.
func (r *Registry) Deliver(h Handle, event any) bool {
	e := r.lookup(h)
	if e == nil || e.closed.Load() {
		return false
	}

	e.mu.Lock()
	if e.closed.Load() {
		e.mu.Unlock()
		return false
	}
	err := e.cb(event)
	e.mu.Unlock()

	switch {
	case errors.Is(err, ErrStop):
		r.Close(h)
	case err != nil:
		r.config.Logger.Warn("subscription callback failed", "handle", uint32(h), "error", err)
	}
	return true
}

// Close closes h. It blocks until an in-flight delivery returns, then runs
// the close hook. Closing the zero handle, an unknown handle or a closed
// handle is a no-op.
func (r *Registry) Close(h Handle) {
	if h == 0 {
		return
	}
	e := r.lookup(h)
	if e == nil {
		return
	}
	e.closed.Store(true)

	// Wait for any in-flight delivery.
	e.mu.Lock()
	e.mu.Unlock() //nolint:staticcheck // empty critical section is the barrier

	e.once.Do(func() {
		if e.onClose != nil {
			e.onClose()
		}
		r.mu.Lock()
		delete(r.entries, h)
		r.mu.Unlock()
		e.cb = nil
	})
}

// CloseAsync marks h closed so no further delivery starts, and finishes
// the close on another goroutine. It is safe to call from h's own callback.
func (r *Registry) CloseAsync(h Handle) {
	e := r.lookup(h)
	if e == nil {
		return
	}
	e.closed.Store(true)
	go r.Close(h)
}

// CloseAll closes every handle.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	handles := make([]Handle, 0, len(r.entries))
	for h := range r.entries {
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	for _, h := range handles {
		r.Close(h)
	}
}

// Active reports whether h is registered and not closed.
func (r *Registry) Active(h Handle) bool {
	e := r.lookup(h)
	return e != nil && !e.closed.Load()
}

// Count returns the number of registered handles, including handles whose
// close is in progress.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
