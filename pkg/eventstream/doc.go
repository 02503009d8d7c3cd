// Package eventstream implements the binary message format spoken on the
// Greengrass IPC socket.
//
// A message is a 12-byte prelude (total length, headers length, CRC32 of
// both), a run of typed headers, an opaque payload and a trailing CRC32 of
// everything before it. Every IPC message carries three INT32 common
// headers: :message-type, :message-flags and :stream-id.
//
//	m := eventstream.NewMessage(eventstream.CommonHeaders{
//		Type:     eventstream.MessageApplication,
//		StreamID: 2,
//	}, payload, eventstream.Header{Name: "operation", Value: eventstream.String(op)})
//	err := w.WriteMessage(m)
//
// Reader and Writer frame messages over a byte stream, bounded by
// DefaultMaxMessageSize, and emit log.FrameEvent records when a protocol
// logger is attached.
package eventstream
