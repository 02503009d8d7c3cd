package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/eventstream"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ggerr"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/log"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/object"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/version"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/wire"
)

// State is the lifecycle state of a connection.
type State int32

const (
	// StateDisconnected indicates no connection.
	StateDisconnected State = iota

	// StateConnecting indicates the connect handshake is in progress.
	StateConnecting

	// StateConnected indicates an active connection.
	StateConnected

	// StateClosing indicates close in progress.
	StateClosing
)

// String returns the connection state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// Connection errors.
var (
	ErrNotConnected     = fmt.Errorf("%w: not connected", ggerr.Noconn)
	ErrClosed           = fmt.Errorf("%w: connection closed", ggerr.Noconn)
	ErrNoStreams        = fmt.Errorf("%w: no free streams", ggerr.Busy)
	ErrConnectRejected  = fmt.Errorf("%w: connection not accepted", ggerr.Failure)
	ErrMissingSvcUID    = fmt.Errorf("%w: connect ack carries no svcuid", ggerr.Failure)
	ErrNoCredentials    = fmt.Errorf("%w: auth token or component name required", ggerr.Invalid)
	ErrReservedStreamID = fmt.Errorf("%w: stream 0 is reserved", ggerr.Invalid)
)

// Config configures a connection.
type Config struct {
	// MaxMessageSize bounds messages in both directions (default: 10000).
	MaxMessageSize uint32

	// MaxStreams is the size of the stream table including the reserved
	// stream 0 (default: 16).
	MaxStreams int

	// ConnectTimeout bounds dial and handshake when the context carries no
	// deadline (default: 10s).
	ConnectTimeout time.Duration

	// WriteTimeout is the timeout for write operations (0 = no timeout).
	WriteTimeout time.Duration

	// Logger receives operational logs (default: slog.Default()).
	Logger *slog.Logger

	// ProtocolLogger receives protocol events (optional).
	ProtocolLogger log.Logger
}

// DefaultConfig returns the default connection configuration.
func DefaultConfig() Config {
	return Config{
		MaxMessageSize: eventstream.DefaultMaxMessageSize,
		MaxStreams:     16,
		ConnectTimeout: 10 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	if c.MaxStreams < 2 {
		c.MaxStreams = def.MaxStreams
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Credentials identify the component to the server. Exactly one of the
// fields is used; AuthToken takes precedence.
type Credentials struct {
	AuthToken     string
	ComponentName string
}

// StreamHandler receives messages for one stream.
// Methods run on the connection's single receive goroutine, shared by all
// streams. They must not wait for a response on the same connection, since
// nothing is read until they return.
type StreamHandler interface {
	// OnMessage is called for each message on the stream.
	OnMessage(m *eventstream.Message, h eventstream.CommonHeaders)

	// OnClose is called once if the connection ends while the stream is
	// open. It is not called after CloseStream.
	OnClose(err error)
}

// HandlerFuncs adapts functions to StreamHandler. Nil fields are ignored.
type HandlerFuncs struct {
	Message func(m *eventstream.Message, h eventstream.CommonHeaders)
	Close   func(err error)
}

// OnMessage calls f.Message.
func (f HandlerFuncs) OnMessage(m *eventstream.Message, h eventstream.CommonHeaders) {
	if f.Message != nil {
		f.Message(m, h)
	}
}

// OnClose calls f.Close.
func (f HandlerFuncs) OnClose(err error) {
	if f.Close != nil {
		f.Close(err)
	}
}

// Conn is a client connection to the IPC server. It multiplexes streams
// over one unix socket and owns exactly one receive goroutine.
type Conn struct {
	config Config
	logger *slog.Logger
	connID string
	path   string
	svcuid string

	conn   net.Conn
	reader *eventstream.Reader
	writer *eventstream.Writer

	state     atomic.Int32
	closeOnce sync.Once
	done      chan struct{}
	err       error // set before done is closed

	streamsMu  sync.Mutex
	streams    map[int32]StreamHandler
	nextStream int32
}

// Dial connects to the unix socket at path and performs the connect
// handshake.
func Dial(ctx context.Context, path string, creds Credentials, config Config) (*Conn, error) {
	config.applyDefaults()
	if creds.AuthToken == "" && creds.ComponentName == "" {
		return nil, ErrNoCredentials
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.ConnectTimeout)
		defer cancel()
	}

	c := &Conn{
		config:     config,
		connID:     uuid.NewString(),
		path:       path,
		done:       make(chan struct{}),
		streams:    make(map[int32]StreamHandler),
		nextStream: 1,
	}
	c.logger = config.Logger.With("conn_id", c.connID)
	c.setState(StateConnecting, "")

	dialer := &net.Dialer{}
	nc, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		c.setState(StateDisconnected, err.Error())
		return nil, ggerr.Wrap(ggerr.Noconn, "dial "+path, err)
	}
	c.conn = nc
	c.reader = eventstream.NewReaderWithMaxSize(nc, config.MaxMessageSize)
	c.writer = eventstream.NewWriterWithMaxSize(nc, config.MaxMessageSize)
	if config.ProtocolLogger != nil {
		c.reader.SetLogger(config.ProtocolLogger, c.connID)
		c.writer.SetLogger(config.ProtocolLogger, c.connID)
	}

	if err := c.handshake(ctx, creds); err != nil {
		if ctx.Err() != nil {
			err = ggerr.Wrap(ggerr.Timeout, "connect handshake", err)
		}
		nc.Close()
		c.setState(StateDisconnected, err.Error())
		return nil, err
	}

	c.setState(StateConnected, "")
	c.logger.Debug("connected", "socket", path)
	go c.readLoop()
	return c, nil
}

// connectPayload returns the JSON body of a connect message.
func connectPayload(creds Credentials) ([]byte, error) {
	kv := object.NewKV("authToken", object.Buf[object.Shared](creds.AuthToken))
	if creds.AuthToken == "" {
		kv = object.NewKV("componentName", object.Buf[object.Shared](creds.ComponentName))
	}
	return wire.EncodeJSON(object.NewMap(kv))
}

func (c *Conn) handshake(ctx context.Context, creds Credentials) error {
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
		defer c.conn.SetDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Now())
	})
	defer stop()

	payload, err := connectPayload(creds)
	if err != nil {
		return ggerr.Wrap(ggerr.Failure, "encode connect", err)
	}

	msg := eventstream.NewMessage(
		eventstream.CommonHeaders{Type: eventstream.MessageConnect},
		payload,
		eventstream.Header{Name: eventstream.HeaderVersion, Value: eventstream.String(version.Current)},
	)
	c.logControl(log.DirectionOut, log.ControlMsgConnect, 0)
	if err := c.writer.WriteMessage(msg); err != nil {
		return c.ioErr("send connect", err)
	}

	ack, err := c.reader.ReadMessage()
	if err != nil {
		return c.ioErr("read connect ack", err)
	}
	h, err := ack.Common()
	if err != nil {
		return err
	}
	c.logControl(log.DirectionIn, log.ControlMsgConnectAck, 0)
	if h.Type != eventstream.MessageConnectAck {
		return fmt.Errorf("%w: got %s", ErrConnectRejected, h.Type)
	}
	if !h.Flags.Has(eventstream.FlagConnectionAccepted) {
		return ErrConnectRejected
	}

	if creds.AuthToken != "" {
		c.svcuid = creds.AuthToken
		return nil
	}
	svcuid, ok := ack.StringHeader(eventstream.HeaderSvcUID)
	if !ok || svcuid == "" {
		return ErrMissingSvcUID
	}
	c.svcuid = svcuid
	return nil
}

func (c *Conn) ioErr(op string, err error) error {
	if eventstream.IsFramingError(err) {
		return err
	}
	return ggerr.Wrap(ggerr.Noconn, op, err)
}

// SvcUID returns the auth token in use. For connections made by component
// name it is the token issued by the server.
func (c *Conn) SvcUID() string {
	return c.svcuid
}

// ID returns the connection id used in protocol logs.
func (c *Conn) ID() string {
	return c.connID
}

// State returns the current connection state.
func (c *Conn) State() State {
	return State(c.state.Load())
}

// Done is closed when the connection ends.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection ended, or nil while it is open.
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// OpenStream allocates a stream id and routes its messages to h.
func (c *Conn) OpenStream(h StreamHandler) (int32, error) {
	if c.State() != StateConnected {
		return 0, ErrNotConnected
	}

	c.streamsMu.Lock()
	defer c.streamsMu.Unlock()

	limit := int32(c.config.MaxStreams)
	if len(c.streams) >= int(limit-1) {
		return 0, ErrNoStreams
	}
	// Round robin so a recently closed id is not reused at once.
	for range limit - 1 {
		id := c.nextStream
		c.nextStream++
		if c.nextStream >= limit {
			c.nextStream = 1
		}
		if _, used := c.streams[id]; !used {
			c.streams[id] = h
			c.logStream(id, "OPEN", "")
			return id, nil
		}
	}
	return 0, ErrNoStreams
}

// Send writes m to the connection.
func (c *Conn) Send(m *eventstream.Message) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}
	if c.config.WriteTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	if err := c.writer.WriteMessage(m); err != nil {
		return c.ioErr("send", err)
	}
	return nil
}

// CloseStream stops routing messages for id and tells the server the stream
// is finished. Closing an unknown or already closed stream is a no-op.
// A message already being dispatched may still reach the handler.
func (c *Conn) CloseStream(id int32) error {
	if id == 0 {
		return ErrReservedStreamID
	}

	c.streamsMu.Lock()
	_, ok := c.streams[id]
	delete(c.streams, id)
	c.streamsMu.Unlock()
	if !ok {
		return nil
	}
	c.logStream(id, "CLOSED", "local")

	if c.State() != StateConnected {
		return nil
	}
	c.logControl(log.DirectionOut, log.ControlMsgTerminate, id)
	msg := eventstream.NewMessage(eventstream.CommonHeaders{
		Type:     eventstream.MessageApplication,
		Flags:    eventstream.FlagTerminateStream,
		StreamID: id,
	}, nil)
	return c.Send(msg)
}

// Close closes the connection. Open streams see OnClose with ErrClosed.
// It is safe to call Close multiple times.
func (c *Conn) Close() error {
	c.shutdown(ErrClosed)
	return nil
}

func (c *Conn) shutdown(cause error) {
	c.closeOnce.Do(func() {
		prev := c.State()
		c.state.Store(int32(StateClosing))
		c.logState(prev, StateClosing, "")

		if c.conn != nil {
			c.conn.Close()
		}

		c.streamsMu.Lock()
		streams := c.streams
		c.streams = make(map[int32]StreamHandler)
		c.streamsMu.Unlock()

		c.err = cause
		c.state.Store(int32(StateDisconnected))
		c.logState(StateClosing, StateDisconnected, cause.Error())
		close(c.done)

		for _, h := range streams {
			h.OnClose(cause)
		}
	})
}

// readLoop reads messages and dispatches them to stream handlers.
func (c *Conn) readLoop() {
	for {
		m, err := c.reader.ReadMessage()
		if err != nil {
			if c.State() != StateConnected {
				return // Expected during close
			}
			c.logger.Debug("read failed", "error", err)
			c.logError("read", err)
			c.shutdown(c.ioErr("read", err))
			return
		}
		c.dispatch(m)
	}
}

func (c *Conn) dispatch(m *eventstream.Message) {
	h, err := m.Common()
	if err != nil {
		c.logger.Warn("dropping message without common headers", "error", err)
		c.logError("dispatch", err)
		return
	}

	switch h.Type {
	case eventstream.MessagePing:
		pong := eventstream.NewMessage(eventstream.CommonHeaders{Type: eventstream.MessagePingResponse}, m.Payload)
		if err := c.Send(pong); err != nil {
			c.logger.Debug("ping response failed", "error", err)
		}
		return
	case eventstream.MessagePingResponse:
		return
	case eventstream.MessageProtocolError, eventstream.MessageInternalError:
		c.logger.Error("server reported connection error", "type", h.Type.String(), "payload", string(m.Payload))
		c.shutdown(fmt.Errorf("%w: server sent %s", ggerr.Failure, h.Type))
		return
	}

	terminate := h.Flags.Has(eventstream.FlagTerminateStream)

	c.streamsMu.Lock()
	handler, ok := c.streams[h.StreamID]
	if ok && terminate {
		delete(c.streams, h.StreamID)
	}
	c.streamsMu.Unlock()

	if !ok {
		c.logger.Debug("message for unknown stream", "stream_id", h.StreamID, "type", h.Type.String())
		return
	}
	if terminate {
		c.logControl(log.DirectionIn, log.ControlMsgTerminate, h.StreamID)
		c.logStream(h.StreamID, "CLOSED", "remote")
	}
	handler.OnMessage(m, h)
}

func (c *Conn) setState(s State, reason string) {
	prev := State(c.state.Swap(int32(s)))
	c.logState(prev, s, reason)
}

func (c *Conn) logState(from, to State, reason string) {
	if c.config.ProtocolLogger == nil || from == to {
		return
	}
	c.config.ProtocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Layer:        log.LayerFrame,
		Category:     log.CategoryState,
		RemoteAddr:   c.path,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: from.String(),
			NewState: to.String(),
			Reason:   reason,
		},
	})
}

func (c *Conn) logStream(id int32, state, reason string) {
	if c.config.ProtocolLogger == nil {
		return
	}
	c.config.ProtocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Layer:        log.LayerFrame,
		Category:     log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityStream,
			NewState: state,
			Reason:   reason,
			StreamID: id,
		},
	})
}

func (c *Conn) logControl(dir log.Direction, typ log.ControlMsgType, id int32) {
	if c.config.ProtocolLogger == nil {
		return
	}
	c.config.ProtocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Direction:    dir,
		Layer:        log.LayerFrame,
		Category:     log.CategoryControl,
		ControlMsg:   &log.ControlMsgEvent{Type: typ, StreamID: id},
	})
}

func (c *Conn) logError(where string, err error) {
	if c.config.ProtocolLogger == nil {
		return
	}
	c.config.ProtocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Layer:        log.LayerFrame,
		Category:     log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerFrame,
			Message: err.Error(),
			Kind:    ggerr.KindOf(err).String(),
			Context: where,
		},
	})
}
