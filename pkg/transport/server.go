package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/arena"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/eventstream"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ggerr"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/log"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/object"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/version"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/wire"
)

// ConnectRequest is the decoded body of a client connect message.
type ConnectRequest struct {
	AuthToken     string
	ComponentName string
	Version       string
}

// Identity is what the server learned about an accepted client.
type Identity struct {
	// Component is the authenticated component name.
	Component string

	// SvcUID is returned to clients that connected by name.
	SvcUID string
}

// ServerConfig configures an IPC server.
type ServerConfig struct {
	// Path is the unix socket path. An existing socket file is replaced.
	Path string

	// MaxMessageSize is the maximum message size (default: 10000).
	MaxMessageSize uint32

	// HandshakeTimeout bounds the connect exchange (default: 10s).
	HandshakeTimeout time.Duration

	// Logger for operational logs (default: slog.Default()).
	Logger *slog.Logger

	// ProtocolLogger for protocol logging (optional).
	ProtocolLogger log.Logger

	// Authenticate accepts or rejects a connect request. Required.
	Authenticate func(conn *ServerConn, req ConnectRequest) (Identity, error)

	// OnConnect is called when a client has been accepted.
	OnConnect func(conn *ServerConn)

	// OnDisconnect is called when a connection is closed.
	OnDisconnect func(conn *ServerConn)

	// OnMessage is called for each application message.
	OnMessage func(conn *ServerConn, m *eventstream.Message, h eventstream.CommonHeaders)

	// OnError is called when an error occurs.
	OnError func(conn *ServerConn, err error)
}

// Server accepts IPC clients on a unix socket.
type Server struct {
	config   ServerConfig
	listener net.Listener

	// Active connections
	conns   map[*ServerConn]struct{}
	connsMu sync.RWMutex

	// State
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a new IPC server.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("%w: socket path is required", ggerr.Config)
	}
	if config.Authenticate == nil {
		return nil, fmt.Errorf("%w: Authenticate is required", ggerr.Config)
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = eventstream.DefaultMaxMessageSize
	}
	if config.HandshakeTimeout == 0 {
		config.HandshakeTimeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Server{
		config: config,
		conns:  make(map[*ServerConn]struct{}),
	}, nil
}

// Start starts the server and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("%w: server already running", ggerr.Failure)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	if err := os.Remove(s.config.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}
	listener, err := net.Listen("unix", s.config.Path)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener

	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop stops the server and closes all connections.
func (s *Server) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()
	return nil
}

// Addr returns the server's listen address.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// ConnectionCount returns the number of accepted connections.
func (s *Server) ConnectionCount() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

// acceptLoop accepts incoming connections.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.running.Load() && s.config.OnError != nil {
				s.config.OnError(nil, fmt.Errorf("accept error: %w", err))
			}
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection performs the connect handshake and then reads messages
// until the connection ends.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	connID := uuid.NewString()
	reader := eventstream.NewReaderWithMaxSize(conn, s.config.MaxMessageSize)
	writer := eventstream.NewWriterWithMaxSize(conn, s.config.MaxMessageSize)
	if s.config.ProtocolLogger != nil {
		reader.SetLogger(s.config.ProtocolLogger, connID)
		writer.SetLogger(s.config.ProtocolLogger, connID)
	}

	sconn := &ServerConn{
		conn:    conn,
		reader:  reader,
		writer:  writer,
		server:  s,
		closeCh: make(chan struct{}),
		connID:  connID,
	}

	conn.SetDeadline(time.Now().Add(s.config.HandshakeTimeout))
	if err := sconn.accept(); err != nil {
		conn.Close()
		s.config.Logger.Debug("connect rejected", "conn_id", connID, "error", err)
		if s.config.OnError != nil {
			s.config.OnError(sconn, err)
		}
		return
	}
	conn.SetDeadline(time.Time{})

	sconn.logState("", "CONNECTED")

	s.connsMu.Lock()
	s.conns[sconn] = struct{}{}
	s.connsMu.Unlock()

	if s.config.OnConnect != nil {
		s.config.OnConnect(sconn)
	}

	sconn.readLoop()

	s.connsMu.Lock()
	delete(s.conns, sconn)
	s.connsMu.Unlock()

	sconn.logState("CONNECTED", "DISCONNECTED")

	if s.config.OnDisconnect != nil {
		s.config.OnDisconnect(sconn)
	}
}

// ServerConn represents an accepted client connection.
type ServerConn struct {
	conn      net.Conn
	reader    *eventstream.Reader
	writer    *eventstream.Writer
	server    *Server
	closeCh   chan struct{}
	closeOnce sync.Once
	connID    string
	identity  Identity
}

// ConnID returns the unique connection identifier.
func (c *ServerConn) ConnID() string {
	return c.connID
}

// Identity returns the authenticated identity.
func (c *ServerConn) Identity() Identity {
	return c.identity
}

// PeerCred returns the credentials of the connected process where the
// platform provides them.
func (c *ServerConn) PeerCred() (PeerCred, bool) {
	uc, ok := c.conn.(*net.UnixConn)
	if !ok {
		return PeerCred{}, false
	}
	return peerCred(uc)
}

// Send sends a message to the client.
func (c *ServerConn) Send(m *eventstream.Message) error {
	return c.writer.WriteMessage(m)
}

// Close closes the connection.
func (c *ServerConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}

// accept runs the server side of the connect handshake.
func (c *ServerConn) accept() error {
	m, err := c.reader.ReadMessage()
	if err != nil {
		return fmt.Errorf("read connect: %w", err)
	}
	h, err := m.Common()
	if err != nil {
		return err
	}
	if h.Type != eventstream.MessageConnect {
		return fmt.Errorf("%w: expected CONNECT, got %s", ggerr.Invalid, h.Type)
	}
	c.logControl(log.DirectionIn, log.ControlMsgConnect)

	req, err := decodeConnect(m)
	if err == nil {
		c.identity, err = c.server.config.Authenticate(c, req)
	}
	if err != nil {
		c.sendAck(0, "")
		return err
	}

	svcuid := ""
	if req.AuthToken == "" {
		svcuid = c.identity.SvcUID
	}
	return c.sendAck(eventstream.FlagConnectionAccepted, svcuid)
}

func (c *ServerConn) sendAck(flags eventstream.Flags, svcuid string) error {
	var extra []eventstream.Header
	if svcuid != "" {
		extra = append(extra, eventstream.Header{Name: eventstream.HeaderSvcUID, Value: eventstream.String(svcuid)})
	}
	ack := eventstream.NewMessage(eventstream.CommonHeaders{
		Type:  eventstream.MessageConnectAck,
		Flags: flags,
	}, nil, extra...)
	c.logControl(log.DirectionOut, log.ControlMsgConnectAck)
	return c.Send(ack)
}

func decodeConnect(m *eventstream.Message) (ConnectRequest, error) {
	req := ConnectRequest{}
	req.Version, _ = m.StringHeader(eventstream.HeaderVersion)
	if err := version.Check(req.Version); err != nil {
		return req, err
	}

	mem := make([]byte, 2*len(m.Payload)+256)
	obj, err := wire.DecodeJSON(m.Payload, arena.New(mem))
	if err != nil {
		return req, err
	}
	body, ok := obj.AsMap()
	if !ok {
		return req, fmt.Errorf("%w: connect payload is not an object", ggerr.Parse)
	}

	var token, name object.Object[object.Shared]
	err = body.Validate(
		object.Optional("authToken", object.TypeBuf, &token),
		object.Optional("componentName", object.TypeBuf, &name),
	)
	if err != nil {
		return req, err
	}
	req.AuthToken, _ = token.AsBuf()
	req.ComponentName, _ = name.AsBuf()
	if req.AuthToken == "" && req.ComponentName == "" {
		return req, ErrNoCredentials
	}
	return req, nil
}

// readLoop reads messages from the connection.
func (c *ServerConn) readLoop() {
	for {
		select {
		case <-c.closeCh:
			return
		case <-c.server.ctx.Done():
			return
		default:
		}

		m, err := c.reader.ReadMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			if c.server.config.OnError != nil && c.server.running.Load() {
				select {
				case <-c.closeCh:
					// Already closing, don't report
				default:
					c.server.config.OnError(c, err)
				}
			}
			return
		}

		h, err := m.Common()
		if err != nil {
			if c.server.config.OnError != nil {
				c.server.config.OnError(c, err)
			}
			continue
		}

		switch h.Type {
		case eventstream.MessagePing:
			c.Send(eventstream.NewMessage(eventstream.CommonHeaders{Type: eventstream.MessagePingResponse}, m.Payload))
			continue
		case eventstream.MessageConnect:
			if c.server.config.OnError != nil {
				c.server.config.OnError(c, fmt.Errorf("%w: repeated CONNECT", ggerr.Invalid))
			}
			continue
		}

		if h.Flags.Has(eventstream.FlagTerminateStream) {
			c.logControl(log.DirectionIn, log.ControlMsgTerminate)
		}
		if c.server.config.OnMessage != nil {
			c.server.config.OnMessage(c, m, h)
		}
	}
}

func (c *ServerConn) logState(from, to string) {
	if c.server.config.ProtocolLogger == nil {
		return
	}
	c.server.config.ProtocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Layer:        log.LayerFrame,
		Category:     log.CategoryState,
		LocalRole:    log.RoleNucleus,
		RemoteAddr:   c.server.config.Path,
		Component:    c.identity.Component,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: from,
			NewState: to,
		},
	})
}

func (c *ServerConn) logControl(dir log.Direction, typ log.ControlMsgType) {
	if c.server.config.ProtocolLogger == nil {
		return
	}
	c.server.config.ProtocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Direction:    dir,
		Layer:        log.LayerFrame,
		Category:     log.CategoryControl,
		LocalRole:    log.RoleNucleus,
		Component:    c.identity.Component,
		ControlMsg:   &log.ControlMsgEvent{Type: typ},
	})
}
