// Package ipc is the component-side client for the Greengrass nucleus IPC
// service.
//
// A Client owns one connection. Connect reads the socket path and auth
// token from the environment the nucleus sets up for a component process:
//
//	c := ipc.New()
//	if err := c.Connect(ctx); err != nil {
//		return err
//	}
//	defer c.Close()
//
//	buf := make([]byte, 4096)
//	v, err := c.GetConfig(ctx, []string{"settings", "interval"}, "", arena.New(buf))
//
// # Requests
//
// Every request runs on its own stream and blocks the calling goroutine
// until the response arrives, the context ends, or the client's timeout
// (10s by default) expires. Remote errors are translated per operation into
// ggerr kinds; the *ggerr.RemoteError stays reachable with errors.As.
//
// Responses are decoded into scratch memory. Functions that return decoded
// objects copy them into caller-supplied memory and fail with ggerr.Nomem
// rather than truncate.
//
// # Subscriptions
//
// Subscribe methods return a *subscription.Subscription. Callbacks run on
// the connection's single receive goroutine, one at a time across every
// subscription of the Client, in the order the nucleus sent the events.
// While a callback runs no other event and no response for any request on
// that Client is read. A callback must therefore not make blocking requests
// on the same Client: such a request can only end with ggerr.Timeout. Hand
// that work to a goroutine of its own instead. Close waits for a running
// callback; from inside a callback use CloseAsync.
//
// Call and Subscribe expose the raw operation interface for operations the
// client has no method for. The operation table is generated from
// operations.yaml by ggipc-opgen.
package ipc
