// Package nucleus is a development stand-in for the Greengrass nucleus IPC
// server.
//
// A Server listens on a unix socket, authenticates components by token or
// by name and serves the operations in ipc.Operations against an in-memory
// deployment: per-component configuration trees, reported lifecycle states
// and local and IoT Core publish/subscribe. IoT Core traffic is looped back
// to local subscribers; nothing leaves the process.
//
// Configuration writes carry a timestamp and a write older than the value it
// would replace is ignored. With a Store the accepted writes and reported
// states survive restarts.
//
// Operations the server does not know are answered with a ServiceError.
// Topics matching a deny filter are answered with an UnauthorizedError.
package nucleus
