// Package log records IPC protocol traffic as structured events.
//
// It is independent of operational logging: slog carries what the program
// is doing, while a protocol Logger receives every eventstream message,
// decoded operation and connection or subscription transition so a session
// can be replayed and inspected later.
//
//	fl, err := log.NewFileLogger("/var/log/greengrass/sensor.cbor")
//	...
//	client := ipc.New(ipc.WithProtocolLogger(
//		log.NewMultiLogger(fl, log.NewSlogAdapter(slog.Default())),
//	))
//
// Events belong to one of three layers: FRAME (eventstream messages and
// their common headers), IPC (requests, responses, stream events and
// remote errors) and CLIENT (connection and subscription state). Connect,
// connect ack and terminate messages are CONTROL events.
//
// A log file is a plain concatenation of CBOR-encoded events; Reader
// iterates one with an optional Filter and the ggipc-log tool views,
// filters, exports and summarizes it.
package log
