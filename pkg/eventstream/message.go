package eventstream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ggerr"
)

// Message framing constants.
const (
	// PreludeSize is the size of total length, headers length and prelude CRC.
	PreludeSize = 12

	// MinMessageSize is a message with no headers and no payload.
	MinMessageSize = PreludeSize + 4

	// DefaultMaxMessageSize bounds encoded messages in either direction.
	DefaultMaxMessageSize = 10000

	maxHeaderNameLen  = 255
	maxHeaderValueLen = 65535
)

// Framing errors.
var (
	// ErrMessageTooLarge indicates the message exceeds the maximum size.
	ErrMessageTooLarge = fmt.Errorf("%w: message too large", ggerr.Nomem)

	// ErrBadCRC indicates a prelude or message checksum mismatch.
	ErrBadCRC = fmt.Errorf("%w: checksum mismatch", ggerr.Parse)

	// ErrTruncated indicates the message ended early.
	ErrTruncated = fmt.Errorf("%w: message truncated", ggerr.Parse)

	// ErrBadHeader indicates a malformed or unsupported header.
	ErrBadHeader = fmt.Errorf("%w: malformed header", ggerr.Parse)

	// ErrMissingHeader indicates a required common header is absent or has
	// the wrong type.
	ErrMissingHeader = fmt.Errorf("%w: missing common header", ggerr.Parse)
)

// MessageType is the value of the :message-type header.
type MessageType int32

const (
	MessageApplication   MessageType = 0
	MessageError         MessageType = 1
	MessagePing          MessageType = 2
	MessagePingResponse  MessageType = 3
	MessageConnect       MessageType = 4
	MessageConnectAck    MessageType = 5
	MessageProtocolError MessageType = 6
	MessageInternalError MessageType = 7
)

// String returns the message type name.
func (t MessageType) String() string {
	switch t {
	case MessageApplication:
		return "APPLICATION_MESSAGE"
	case MessageError:
		return "APPLICATION_ERROR"
	case MessagePing:
		return "PING"
	case MessagePingResponse:
		return "PING_RESPONSE"
	case MessageConnect:
		return "CONNECT"
	case MessageConnectAck:
		return "CONNECT_ACK"
	case MessageProtocolError:
		return "PROTOCOL_ERROR"
	case MessageInternalError:
		return "INTERNAL_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Flags is the value of the :message-flags header.
type Flags int32

const (
	FlagConnectionAccepted Flags = 1
	FlagTerminateStream    Flags = 2
)

// Has reports whether all bits of f are set.
func (fl Flags) Has(f Flags) bool {
	return fl&f == f
}

// Message is a decoded eventstream message. Headers and Payload of a decoded
// message alias the input buffer.
type Message struct {
	Headers []Header
	Payload []byte
}

// Header returns the first header with the given name.
func (m *Message) Header(name string) (HeaderValue, bool) {
	for _, h := range m.Headers {
		if h.Name == name {
			return h.Value, true
		}
	}
	return HeaderValue{}, false
}

// StringHeader returns the value of a STRING header.
func (m *Message) StringHeader(name string) (string, bool) {
	v, ok := m.Header(name)
	if !ok {
		return "", false
	}
	return v.AsString()
}

// CommonHeaders are the headers every IPC message carries.
type CommonHeaders struct {
	Type     MessageType
	Flags    Flags
	StreamID int32
}

// Common extracts the common headers. All three must be present as INT32.
func (m *Message) Common() (CommonHeaders, error) {
	var c CommonHeaders
	var seen int
	for _, h := range m.Headers {
		v, ok := h.Value.AsInt32()
		switch h.Name {
		case HeaderMessageType:
			if !ok {
				return c, fmt.Errorf("%w: %s is %s", ErrMissingHeader, h.Name, h.Value.Type())
			}
			c.Type = MessageType(v)
			seen |= 1
		case HeaderMessageFlags:
			if !ok {
				return c, fmt.Errorf("%w: %s is %s", ErrMissingHeader, h.Name, h.Value.Type())
			}
			c.Flags = Flags(v)
			seen |= 2
		case HeaderStreamID:
			if !ok {
				return c, fmt.Errorf("%w: %s is %s", ErrMissingHeader, h.Name, h.Value.Type())
			}
			c.StreamID = v
			seen |= 4
		}
	}
	if seen != 7 {
		return c, ErrMissingHeader
	}
	return c, nil
}

// NewMessage returns a message carrying the common headers followed by
// extra.
func NewMessage(c CommonHeaders, payload []byte, extra ...Header) *Message {
	headers := make([]Header, 0, 3+len(extra))
	headers = append(headers,
		Header{Name: HeaderMessageType, Value: Int32(int32(c.Type))},
		Header{Name: HeaderMessageFlags, Value: Int32(int32(c.Flags))},
		Header{Name: HeaderStreamID, Value: Int32(c.StreamID)},
	)
	headers = append(headers, extra...)
	return &Message{Headers: headers, Payload: payload}
}

// EncodedSize returns the size of m on the wire.
func (m *Message) EncodedSize() int {
	return MinMessageSize + headersLen(m.Headers) + len(m.Payload)
}

func headersLen(headers []Header) int {
	n := 0
	for _, h := range headers {
		n += 1 + len(h.Name) + 1 + h.Value.encodedLen()
	}
	return n
}

// Append appends the encoding of m to dst.
func (m *Message) Append(dst []byte) ([]byte, error) {
	for _, h := range m.Headers {
		if len(h.Name) == 0 || len(h.Name) > maxHeaderNameLen {
			return dst, fmt.Errorf("%w: name length %d", ErrBadHeader, len(h.Name))
		}
		if (h.Value.typ == HeaderBytes || h.Value.typ == HeaderString) && len(h.Value.b) > maxHeaderValueLen {
			return dst, fmt.Errorf("%w: %s value length %d", ErrBadHeader, h.Name, len(h.Value.b))
		}
		if h.Value.typ == HeaderUUID && len(h.Value.b) != 16 {
			return dst, fmt.Errorf("%w: %s uuid length %d", ErrBadHeader, h.Name, len(h.Value.b))
		}
		if h.Value.typ > HeaderUUID {
			return dst, fmt.Errorf("%w: %s has type %d", ErrBadHeader, h.Name, h.Value.typ)
		}
	}

	hlen := headersLen(m.Headers)
	total := MinMessageSize + hlen + len(m.Payload)

	start := len(dst)
	dst = binary.BigEndian.AppendUint32(dst, uint32(total))
	dst = binary.BigEndian.AppendUint32(dst, uint32(hlen))
	dst = binary.BigEndian.AppendUint32(dst, crc32.ChecksumIEEE(dst[start:]))

	for _, h := range m.Headers {
		dst = append(dst, byte(len(h.Name)))
		dst = append(dst, h.Name...)
		dst = append(dst, byte(h.Value.typ))
		v := h.Value
		switch v.typ {
		case HeaderByte:
			dst = append(dst, byte(v.i))
		case HeaderInt16:
			dst = binary.BigEndian.AppendUint16(dst, uint16(v.i))
		case HeaderInt32:
			dst = binary.BigEndian.AppendUint32(dst, uint32(v.i))
		case HeaderInt64, HeaderTimestamp:
			dst = binary.BigEndian.AppendUint64(dst, uint64(v.i))
		case HeaderBytes, HeaderString:
			dst = binary.BigEndian.AppendUint16(dst, uint16(len(v.b)))
			dst = append(dst, v.b...)
		case HeaderUUID:
			dst = append(dst, v.b...)
		}
	}
	dst = append(dst, m.Payload...)
	dst = binary.BigEndian.AppendUint32(dst, crc32.ChecksumIEEE(dst[start:]))
	return dst, nil
}

// Encode returns the encoding of m.
func (m *Message) Encode() ([]byte, error) {
	return m.Append(make([]byte, 0, m.EncodedSize()))
}

// Prelude holds the decoded message prelude.
type Prelude struct {
	TotalLen   uint32
	HeadersLen uint32
}

// DecodePrelude validates the first PreludeSize bytes of a message.
func DecodePrelude(b []byte) (Prelude, error) {
	if len(b) < PreludeSize {
		return Prelude{}, ErrTruncated
	}
	p := Prelude{
		TotalLen:   binary.BigEndian.Uint32(b[0:4]),
		HeadersLen: binary.BigEndian.Uint32(b[4:8]),
	}
	if crc32.ChecksumIEEE(b[:8]) != binary.BigEndian.Uint32(b[8:12]) {
		return p, fmt.Errorf("%w: prelude", ErrBadCRC)
	}
	if p.TotalLen < MinMessageSize {
		return p, fmt.Errorf("%w: total length %d", ErrTruncated, p.TotalLen)
	}
	if uint64(p.HeadersLen) > uint64(p.TotalLen)-MinMessageSize {
		return p, fmt.Errorf("%w: headers length %d exceeds message", ErrBadHeader, p.HeadersLen)
	}
	return p, nil
}

// Decode parses one complete message. The returned message aliases b.
func Decode(b []byte) (*Message, error) {
	p, err := DecodePrelude(b)
	if err != nil {
		return nil, err
	}
	if uint32(len(b)) != p.TotalLen {
		if uint32(len(b)) < p.TotalLen {
			return nil, ErrTruncated
		}
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrBadHeader, uint32(len(b))-p.TotalLen)
	}
	end := len(b) - 4
	if crc32.ChecksumIEEE(b[:end]) != binary.BigEndian.Uint32(b[end:]) {
		return nil, fmt.Errorf("%w: message", ErrBadCRC)
	}

	hdrs := b[PreludeSize : PreludeSize+int(p.HeadersLen)]
	headers, err := decodeHeaders(hdrs)
	if err != nil {
		return nil, err
	}
	return &Message{
		Headers: headers,
		Payload: b[PreludeSize+int(p.HeadersLen) : end],
	}, nil
}

func decodeHeaders(b []byte) ([]Header, error) {
	var headers []Header
	for len(b) > 0 {
		nameLen := int(b[0])
		b = b[1:]
		if nameLen == 0 || len(b) < nameLen+1 {
			return nil, ErrBadHeader
		}
		name := string(b[:nameLen])
		typ := HeaderType(b[nameLen])
		b = b[nameLen+1:]

		v := HeaderValue{typ: typ}
		var size int
		switch typ {
		case HeaderBoolTrue, HeaderBoolFalse:
		case HeaderByte:
			size = 1
		case HeaderInt16:
			size = 2
		case HeaderInt32:
			size = 4
		case HeaderInt64, HeaderTimestamp:
			size = 8
		case HeaderUUID:
			size = 16
		case HeaderBytes, HeaderString:
			if len(b) < 2 {
				return nil, ErrBadHeader
			}
			size = int(binary.BigEndian.Uint16(b))
			b = b[2:]
		default:
			return nil, fmt.Errorf("%w: %s has type %d", ErrBadHeader, name, typ)
		}
		if len(b) < size {
			return nil, fmt.Errorf("%w: %s value truncated", ErrBadHeader, name)
		}
		raw := b[:size:size]
		b = b[size:]

		switch typ {
		case HeaderByte:
			v.i = int64(int8(raw[0]))
		case HeaderInt16:
			v.i = int64(int16(binary.BigEndian.Uint16(raw)))
		case HeaderInt32:
			v.i = int64(int32(binary.BigEndian.Uint32(raw)))
		case HeaderInt64, HeaderTimestamp:
			v.i = int64(binary.BigEndian.Uint64(raw))
		case HeaderBytes, HeaderString, HeaderUUID:
			v.b = raw
		}
		headers = append(headers, Header{Name: name, Value: v})
	}
	return headers, nil
}

// IsFramingError reports whether err came from message framing rather than
// the underlying connection.
func IsFramingError(err error) bool {
	return errors.Is(err, ErrBadCRC) || errors.Is(err, ErrTruncated) ||
		errors.Is(err, ErrBadHeader) || errors.Is(err, ErrMessageTooLarge)
}
