package eventstream

import (
	"time"

	"github.com/google/uuid"
)

// HeaderType is the wire type tag of a header value.
type HeaderType uint8

const (
	HeaderBoolTrue  HeaderType = 0
	HeaderBoolFalse HeaderType = 1
	HeaderByte      HeaderType = 2
	HeaderInt16     HeaderType = 3
	HeaderInt32     HeaderType = 4
	HeaderInt64     HeaderType = 5
	HeaderBytes     HeaderType = 6
	HeaderString    HeaderType = 7
	HeaderTimestamp HeaderType = 8
	HeaderUUID      HeaderType = 9
)

// String returns the header type name.
func (t HeaderType) String() string {
	switch t {
	case HeaderBoolTrue:
		return "BOOL_TRUE"
	case HeaderBoolFalse:
		return "BOOL_FALSE"
	case HeaderByte:
		return "BYTE"
	case HeaderInt16:
		return "INT16"
	case HeaderInt32:
		return "INT32"
	case HeaderInt64:
		return "INT64"
	case HeaderBytes:
		return "BYTE_BUF"
	case HeaderString:
		return "STRING"
	case HeaderTimestamp:
		return "TIMESTAMP"
	case HeaderUUID:
		return "UUID"
	default:
		return "UNKNOWN"
	}
}

// Header is a named, typed header.
type Header struct {
	Name  string
	Value HeaderValue
}

// HeaderValue holds one header value. Integer-like types keep their value in
// i; byte-like types reference b.
type HeaderValue struct {
	typ HeaderType
	i   int64
	b   []byte
}

// Bool returns a boolean header value.
func Bool(v bool) HeaderValue {
	if v {
		return HeaderValue{typ: HeaderBoolTrue}
	}
	return HeaderValue{typ: HeaderBoolFalse}
}

// Byte returns a byte header value.
func Byte(v int8) HeaderValue { return HeaderValue{typ: HeaderByte, i: int64(v)} }

// Int16 returns an int16 header value.
func Int16(v int16) HeaderValue { return HeaderValue{typ: HeaderInt16, i: int64(v)} }

// Int32 returns an int32 header value.
func Int32(v int32) HeaderValue { return HeaderValue{typ: HeaderInt32, i: int64(v)} }

// Int64 returns an int64 header value.
func Int64(v int64) HeaderValue { return HeaderValue{typ: HeaderInt64, i: v} }

// Bytes returns a byte buffer header value referencing b.
func Bytes(b []byte) HeaderValue { return HeaderValue{typ: HeaderBytes, b: b} }

// String returns a string header value.
func String(s string) HeaderValue { return HeaderValue{typ: HeaderString, b: []byte(s)} }

// Timestamp returns a timestamp header value with millisecond precision.
func Timestamp(t time.Time) HeaderValue {
	return HeaderValue{typ: HeaderTimestamp, i: t.UnixMilli()}
}

// UUID returns a UUID header value.
func UUID(id uuid.UUID) HeaderValue {
	return HeaderValue{typ: HeaderUUID, b: id[:]}
}

// Type returns the wire type.
func (v HeaderValue) Type() HeaderType {
	return v.typ
}

// AsBool returns the value of a boolean header.
func (v HeaderValue) AsBool() (bool, bool) {
	switch v.typ {
	case HeaderBoolTrue:
		return true, true
	case HeaderBoolFalse:
		return false, true
	}
	return false, false
}

// AsInt32 returns the value of an INT32 header.
func (v HeaderValue) AsInt32() (int32, bool) {
	return int32(v.i), v.typ == HeaderInt32
}

// AsInt64 returns the value of any integer header.
func (v HeaderValue) AsInt64() (int64, bool) {
	switch v.typ {
	case HeaderByte, HeaderInt16, HeaderInt32, HeaderInt64:
		return v.i, true
	}
	return 0, false
}

// AsString returns the value of a STRING header.
func (v HeaderValue) AsString() (string, bool) {
	if v.typ != HeaderString {
		return "", false
	}
	return string(v.b), true
}

// AsBytes returns the raw bytes of a BYTE_BUF or STRING header. The slice
// aliases the decoded message.
func (v HeaderValue) AsBytes() ([]byte, bool) {
	return v.b, v.typ == HeaderBytes || v.typ == HeaderString
}

// AsTime returns the value of a TIMESTAMP header.
func (v HeaderValue) AsTime() (time.Time, bool) {
	if v.typ != HeaderTimestamp {
		return time.Time{}, false
	}
	return time.UnixMilli(v.i), true
}

// AsUUID returns the value of a UUID header.
func (v HeaderValue) AsUUID() (uuid.UUID, bool) {
	if v.typ != HeaderUUID {
		return uuid.UUID{}, false
	}
	id, err := uuid.FromBytes(v.b)
	return id, err == nil
}

// encodedLen returns the size of the value on the wire, excluding the type
// byte.
func (v HeaderValue) encodedLen() int {
	switch v.typ {
	case HeaderByte:
		return 1
	case HeaderInt16:
		return 2
	case HeaderInt32:
		return 4
	case HeaderInt64, HeaderTimestamp:
		return 8
	case HeaderBytes, HeaderString:
		return 2 + len(v.b)
	case HeaderUUID:
		return 16
	default:
		return 0
	}
}

// Well-known header names.
const (
	HeaderMessageType      = ":message-type"
	HeaderMessageFlags     = ":message-flags"
	HeaderStreamID         = ":stream-id"
	HeaderContentType      = ":content-type"
	HeaderVersion          = ":version"
	HeaderOperation        = "operation"
	HeaderServiceModelType = "service-model-type"
	HeaderSvcUID           = "svcuid"
)

// ContentTypeJSON is the content type of IPC payloads.
const ContentTypeJSON = "application/json"
