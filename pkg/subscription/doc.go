// Package subscription bridges transport-delivered stream events to
// caller-supplied callbacks.
//
// A Registry maps small integer handles to boxed callbacks. The transport
// side calls Deliver with a handle; the registry recovers the callback and
// invokes it. Handles are never raw pointers, so a late event for a closed
// handle is simply dropped.
//
// # Ordering
//
// Deliveries for one handle are serialized and run in the order Deliver is
// called. Deliveries for different handles may run concurrently.
//
// # Closing
//
// Close is idempotent and blocks until an in-flight delivery for the handle
// has returned. After Close returns the callback is never invoked again and
// the close hook registered with the handle has run exactly once.
//
// A callback must not call Close on its own handle; that would wait on
// itself. To stop from inside a callback, return ErrStop or call
// Subscription.CloseAsync.
//
// # Lifecycle
//
// Subscriptions do not survive connection loss. CloseAll closes every
// handle when the connection ends.
package subscription
