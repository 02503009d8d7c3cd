// Package ggerr defines the status codes shared by every operation of the
// Greengrass IPC client.
//
// A Kind is itself an error, so callers can match with errors.Is:
//
//	if errors.Is(err, ggerr.Noentry) {
//	    // key not present in configuration
//	}
//
// Errors raised deeper in the stack wrap a Kind with context:
//
//	return ggerr.Errorf(ggerr.Range, "key path has %d segments", n)
//
// Application-level errors reported by the nucleus are returned as
// *RemoteError, which matches Remote.
package ggerr
