package ggerr

import (
	"errors"
	"fmt"
)

// Kind is a canonical status code.
type Kind uint8

const (
	// Failure is a generic failure.
	Failure Kind = iota + 1
	// Retry is a transient failure; the operation may be retried.
	Retry
	// Busy means the peer or a local resource is busy.
	Busy
	// Fatal is unrecoverable; the connection should not be used further.
	Fatal
	// Invalid means the request was malformed.
	Invalid
	// Unsupported means the operation or argument is not supported.
	Unsupported
	// Parse means data could not be parsed.
	Parse
	// Range means a value is out of range (path too deep, buffer too small).
	Range
	// Nomem means scratch memory is exhausted.
	Nomem
	// Noconn means there is no connection.
	Noconn
	// Nodata means no data is available.
	Nodata
	// Noentry means a key or entity was not found.
	Noentry
	// Config means connection parameters are missing or invalid.
	Config
	// Remote means the peer reported an application error.
	Remote
	// Expected means the response was unexpected but well-formed.
	Expected
	// Timeout means no response arrived in time.
	Timeout
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Failure:
		return "FAILURE"
	case Retry:
		return "RETRY"
	case Busy:
		return "BUSY"
	case Fatal:
		return "FATAL"
	case Invalid:
		return "INVALID"
	case Unsupported:
		return "UNSUPPORTED"
	case Parse:
		return "PARSE"
	case Range:
		return "RANGE"
	case Nomem:
		return "NOMEM"
	case Noconn:
		return "NOCONN"
	case Nodata:
		return "NODATA"
	case Noentry:
		return "NOENTRY"
	case Config:
		return "CONFIG"
	case Remote:
		return "REMOTE"
	case Expected:
		return "EXPECTED"
	case Timeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// Error implements error.
func (k Kind) Error() string {
	return k.String()
}

// Kinds lists every defined kind in code order.
func Kinds() []Kind {
	return []Kind{
		Failure, Retry, Busy, Fatal, Invalid, Unsupported, Parse, Range,
		Nomem, Noconn, Nodata, Noentry, Config, Remote, Expected, Timeout,
	}
}

// ParseKind returns the kind named s (as produced by String).
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds() {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// Error is a Kind with operation context and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	default:
		return e.Kind.String()
	}
}

// Is reports whether target is this error's kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf returns an error of kind k with a formatted message.
func Errorf(k Kind, format string, args ...any) error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// Wrap returns an error of kind k caused by err.
// Returns nil if err is nil.
func Wrap(k Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, Msg: msg, Err: err}
}

// KindOf returns the kind carried by err, Failure for errors that carry no
// kind, and 0 for nil.
func KindOf(err error) Kind {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return Remote
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return Failure
}
