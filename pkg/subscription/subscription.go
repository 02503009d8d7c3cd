package subscription

import "runtime"

// Subscription is the caller-facing handle for an active subscription.
// Dropping every reference to an open Subscription closes it once the
// garbage collector notices; call Close to stop it deterministically.
type Subscription struct {
	reg     *Registry
	handle  Handle
	cleanup runtime.Cleanup
}

// closeTarget is the cleanup argument. It must not reference the
// Subscription itself.
type closeTarget struct {
	reg    *Registry
	handle Handle
}

// New wraps handle h of reg.
func New(reg *Registry, h Handle) *Subscription {
	s := &Subscription{reg: reg, handle: h}
	s.cleanup = runtime.AddCleanup(s, func(t closeTarget) {
		t.reg.Close(t.handle)
	}, closeTarget{reg: reg, handle: h})
	return s
}

// Handle returns the registry handle.
func (s *Subscription) Handle() Handle {
	return s.handle
}

// Active reports whether the subscription is still open.
func (s *Subscription) Active() bool {
	return s.reg.Active(s.handle)
}

// Close stops the subscription and waits for an in-flight callback to
// return. Close is idempotent. It must not be called from the
// subscription's own callback; use CloseAsync there.
func (s *Subscription) Close() {
	s.cleanup.Stop()
	s.reg.Close(s.handle)
}

// CloseAsync stops further callbacks without waiting.
func (s *Subscription) CloseAsync() {
	s.cleanup.Stop()
	s.reg.CloseAsync(s.handle)
}
