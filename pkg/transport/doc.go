// Package transport carries eventstream messages over the Greengrass IPC
// unix socket.
//
// The transport layer handles:
//   - The connect handshake (auth token or component name)
//   - Stream multiplexing over a single connection
//   - Stream termination in both directions
//   - Connection state management
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│      JSON operation payloads   │
//	├────────────────────────────────┤
//	│   Eventstream messages (CRC32) │
//	├────────────────────────────────┤
//	│       Unix domain socket       │
//	└────────────────────────────────┘
//
// # Streams
//
// Stream 0 carries the connect exchange. Every operation runs on its own
// stream id allocated by OpenStream; a connection holds at most MaxStreams-1
// open streams. Messages for a stream are delivered in arrival order on the
// connection's single receive goroutine. A message flagged
// TERMINATE_STREAM ends its stream after delivery.
//
// Server is the accepting side, used by the development nucleus and tests.
package transport
