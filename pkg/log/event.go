package log

import (
	"time"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// LocalRole indicates whether this is a component or the nucleus.
	LocalRole Role `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the IPC socket path.
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// Component is the component name (populated after connect).
	Component string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Eventstream framing
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // IPC operation
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Connection/stream state
	ControlMsg  *ControlMsgEvent  `cbor:"13,keyasint,omitempty"` // Connect/ack/terminate
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerFrame is the eventstream framing layer.
	LayerFrame Layer = 0
	// LayerIPC is the operation layer (requests, responses, stream events).
	LayerIPC Layer = 1
	// LayerClient is the client facade.
	LayerClient Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerFrame:
		return "FRAME"
	case LayerIPC:
		return "IPC"
	case LayerClient:
		return "CLIENT"
	default:
		return "UNKNOWN"
	}
}

// ParseLayer returns the layer with the given name.
func ParseLayer(s string) (Layer, bool) {
	for _, l := range []Layer{LayerFrame, LayerIPC, LayerClient} {
		if l.String() == s {
			return l, true
		}
	}
	return 0, false
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates an application message.
	CategoryMessage Category = 0
	// CategoryControl indicates a connect, connect ack or stream terminate.
	CategoryControl Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseCategory returns the category with the given name.
func ParseCategory(s string) (Category, bool) {
	for _, c := range []Category{CategoryMessage, CategoryControl, CategoryState, CategoryError} {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

// Role indicates which end of the IPC socket logged the event.
type Role uint8

const (
	// RoleComponent indicates a component (client).
	RoleComponent Role = 0
	// RoleNucleus indicates the IPC server.
	RoleNucleus Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleComponent:
		return "COMPONENT"
	case RoleNucleus:
		return "NUCLEUS"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures an eventstream message at the framing layer.
type FrameEvent struct {
	// Size is the encoded message size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw payload (may be truncated for large messages).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`

	// StreamID is the :stream-id header.
	StreamID int32 `cbor:"4,keyasint"`

	// MessageType is the :message-type header.
	MessageType int32 `cbor:"5,keyasint"`

	// Flags is the :message-flags header.
	Flags int32 `cbor:"6,keyasint,omitempty"`

	// Headers lists the remaining header names.
	Headers []string `cbor:"7,keyasint,omitempty"`
}

// MessageEvent captures an IPC operation message.
type MessageEvent struct {
	// Kind distinguishes request, response, stream event and error.
	Kind MessageKind `cbor:"1,keyasint"`

	// StreamID correlates requests with responses and stream events.
	StreamID int32 `cbor:"2,keyasint"`

	// Operation is the fully qualified operation name.
	Operation string `cbor:"3,keyasint,omitempty"`

	// ServiceModelType is the service-model-type header.
	ServiceModelType string `cbor:"4,keyasint,omitempty"`

	// ErrorCode is the remote _errorCode for error responses.
	ErrorCode string `cbor:"5,keyasint,omitempty"`

	// Decoded payload (CBOR-compatible representation).
	Payload any `cbor:"8,keyasint,omitempty"`

	// ProcessingTime is the round trip from request send to response
	// receipt (response only). Stored as nanoseconds.
	ProcessingTime *time.Duration `cbor:"9,keyasint,omitempty"`
}

// MessageKind distinguishes request/response/stream event/error.
type MessageKind uint8

const (
	// MessageKindRequest indicates an operation request.
	MessageKindRequest MessageKind = 0
	// MessageKindResponse indicates the first response on a stream.
	MessageKindResponse MessageKind = 1
	// MessageKindStreamEvent indicates a later message on a subscription.
	MessageKindStreamEvent MessageKind = 2
	// MessageKindError indicates an application error.
	MessageKindError MessageKind = 3
)

// String returns the message kind name.
func (m MessageKind) String() string {
	switch m {
	case MessageKindRequest:
		return "REQUEST"
	case MessageKindResponse:
		return "RESPONSE"
	case MessageKindStreamEvent:
		return "STREAM_EVENT"
	case MessageKindError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures connection and stream lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`

	// StreamID identifies the stream for stream and subscription entities.
	StreamID int32 `cbor:"5,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntityStream indicates a stream was opened or closed.
	StateEntityStream StateEntity = 1
	// StateEntitySubscription indicates a subscription state change.
	StateEntitySubscription StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityStream:
		return "STREAM"
	case StateEntitySubscription:
		return "SUBSCRIPTION"
	default:
		return "UNKNOWN"
	}
}

// ControlMsgEvent captures eventstream control messages.
type ControlMsgEvent struct {
	// Type of control message.
	Type ControlMsgType `cbor:"1,keyasint"`

	// StreamID is set for terminate messages.
	StreamID int32 `cbor:"2,keyasint,omitempty"`
}

// ControlMsgType indicates the type of control message.
type ControlMsgType uint8

const (
	// ControlMsgConnect indicates a connect request.
	ControlMsgConnect ControlMsgType = 0
	// ControlMsgConnectAck indicates a connect acknowledgement.
	ControlMsgConnectAck ControlMsgType = 1
	// ControlMsgTerminate indicates a stream terminate flag.
	ControlMsgTerminate ControlMsgType = 2
)

// String returns the control message type name.
func (c ControlMsgType) String() string {
	switch c {
	case ControlMsgConnect:
		return "CONNECT"
	case ControlMsgConnectAck:
		return "CONNECT_ACK"
	case ControlMsgTerminate:
		return "TERMINATE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Kind is the error kind name, if known.
	Kind string `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
