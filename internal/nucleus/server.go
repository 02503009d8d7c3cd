package nucleus

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/arena"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/eventstream"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ggerr"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ipc"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/log"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/object"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/transport"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/wire"
)

// serviceName is reported in the _service field of error responses.
const serviceName = "aws.greengrass#GreengrassCoreIPC"

// Error codes sent to clients.
const (
	CodeServiceError     = "ServiceError"
	CodeResourceNotFound = "ResourceNotFoundError"
	CodeUnauthorized     = "UnauthorizedError"
	CodeInvalidArguments = "InvalidArgumentsError"
)

// subKind is what a subscription listens to.
type subKind uint8

const (
	subConfig subKind = iota
	subTopic
	subIoTCore
)

// subscriber is an accepted subscription stream.
type subscriber struct {
	kind   subKind
	conn   *transport.ServerConn
	stream int32
	op     ipc.Operation

	// subConfig
	component string
	keyPath   []string

	// subTopic, subIoTCore
	filter string
}

type subKey struct {
	conn   *transport.ServerConn
	stream int32
}

// outbound is an event queued for a subscriber.
type outbound struct {
	sub   *subscriber
	event object.Object[object.Shared]
}

// Server is a development nucleus: it accepts components on a unix socket
// and serves configuration, lifecycle and publish/subscribe operations.
type Server struct {
	config ServerConfig
	deploy Config
	logger *slog.Logger
	srv    *transport.Server

	mu     sync.Mutex
	trees  map[string]*Tree
	tokens map[string]string // token -> component
	states map[string]string
	subs   map[subKey]*subscriber
}

// NewServer creates a nucleus serving deploy. If config.Store is set,
// stored configuration is replayed over deploy.
func NewServer(deploy Config, config ServerConfig) (*Server, error) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	s := &Server{
		config: config,
		deploy: deploy,
		logger: config.Logger,
		trees:  make(map[string]*Tree),
		tokens: make(map[string]string),
		states: make(map[string]string),
		subs:   make(map[subKey]*subscriber),
	}

	for name, comp := range deploy.Components {
		tree := NewTree()
		if comp.Configuration != nil {
			tree.Merge(nil, comp.Configuration, 0)
		}
		s.trees[name] = tree
		if comp.Token != "" {
			s.tokens[comp.Token] = name
		}
	}

	if config.Store != nil {
		if err := s.restore(); err != nil {
			return nil, err
		}
	}

	srv, err := transport.NewServer(transport.ServerConfig{
		Path:           config.SocketPath,
		MaxMessageSize: config.MaxMessageSize,
		Logger:         config.Logger,
		ProtocolLogger: config.ProtocolLogger,
		Authenticate:   s.authenticate,
		OnConnect:      s.onConnect,
		OnDisconnect:   s.onDisconnect,
		OnMessage:      s.onMessage,
		OnError: func(conn *transport.ServerConn, err error) {
			s.logger.Debug("connection error", "conn_id", connID(conn), "error", err)
		},
	})
	if err != nil {
		return nil, err
	}
	s.srv = srv
	return s, nil
}

func (s *Server) restore() error {
	leaves, err := s.config.Store.Leaves()
	if err != nil {
		return fmt.Errorf("failed to load stored configuration: %w", err)
	}
	for _, cl := range leaves {
		tree, known := s.trees[cl.Component]
		if !known {
			s.logger.Warn("ignoring stored configuration of unknown component", "component", cl.Component)
			continue
		}
		tree.Set(cl.Path, cl.Value, cl.Timestamp)
	}
	s.logger.Debug("restored configuration", "leaves", len(leaves))
	return nil
}

// Start starts listening.
func (s *Server) Start(ctx context.Context) error {
	if err := s.srv.Start(ctx); err != nil {
		return err
	}
	s.logger.Info("nucleus listening", "socket", s.config.SocketPath)
	return nil
}

// Stop closes every connection and stops listening.
func (s *Server) Stop() error {
	return s.srv.Stop()
}

// ConnectionCount returns the number of connected components.
func (s *Server) ConnectionCount() int {
	return s.srv.ConnectionCount()
}

// SubscriptionCount returns the number of open subscription streams.
func (s *Server) SubscriptionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// ComponentState returns the lifecycle state component last reported.
func (s *Server) ComponentState(component string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[component]
}

// Configuration returns a copy of the configuration of component at path.
func (s *Server) Configuration(component string, path ...string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tree, known := s.trees[component]
	if !known {
		return nil, false
	}
	return tree.Get(path)
}

func (s *Server) authenticate(conn *transport.ServerConn, req transport.ConnectRequest) (transport.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.AuthToken != "" {
		component, known := s.tokens[req.AuthToken]
		if !known {
			return transport.Identity{}, ggerr.Errorf(ggerr.Noentry, "unknown auth token")
		}
		return transport.Identity{Component: component}, nil
	}

	if _, known := s.trees[req.ComponentName]; !known {
		return transport.Identity{}, ggerr.Errorf(ggerr.Noentry, "unknown component %q", req.ComponentName)
	}
	svcuid := uuid.NewString()
	s.tokens[svcuid] = req.ComponentName
	return transport.Identity{Component: req.ComponentName, SvcUID: svcuid}, nil
}

func (s *Server) onConnect(conn *transport.ServerConn) {
	attrs := []any{"conn_id", conn.ConnID(), "component", conn.Identity().Component}
	if cred, ok := conn.PeerCred(); ok {
		attrs = append(attrs, "pid", cred.PID, "uid", cred.UID, "gid", cred.GID)
	}
	s.logger.Info("component connected", attrs...)
}

func (s *Server) onDisconnect(conn *transport.ServerConn) {
	s.mu.Lock()
	for key := range s.subs {
		if key.conn == conn {
			delete(s.subs, key)
		}
	}
	s.mu.Unlock()
	s.logger.Info("component disconnected", "conn_id", conn.ConnID(), "component", conn.Identity().Component)
}

// request is a decoded application request.
type request struct {
	conn      *transport.ServerConn
	stream    int32
	op        ipc.Operation
	component string
	params    object.Map[object.Shared]
}

// handlerFunc serves one operation. A non-nil subscriber is registered once
// the response has been sent.
type handlerFunc func(s *Server, r *request) (object.Object[object.Shared], *subscriber, error)

var handlers = map[string]handlerFunc{
	ipc.OpGetConfiguration.Name:               (*Server).getConfiguration,
	ipc.OpUpdateConfiguration.Name:            (*Server).updateConfiguration,
	ipc.OpSubscribeToConfigurationUpdate.Name: (*Server).subscribeToConfigurationUpdate,
	ipc.OpUpdateState.Name:                    (*Server).updateState,
	ipc.OpRestartComponent.Name:               (*Server).restartComponent,
	ipc.OpPublishToTopic.Name:                 (*Server).publishToTopic,
	ipc.OpSubscribeToTopic.Name:               (*Server).subscribeToTopic,
	ipc.OpPublishToIoTCore.Name:               (*Server).publishToIoTCore,
	ipc.OpSubscribeToIoTCore.Name:             (*Server).subscribeToIoTCore,
	ipc.OpPrivateGetSystemConfig.Name:         (*Server).getSystemConfig,
}

func (s *Server) onMessage(conn *transport.ServerConn, m *eventstream.Message, h eventstream.CommonHeaders) {
	if h.Flags.Has(eventstream.FlagTerminateStream) {
		s.mu.Lock()
		_, open := s.subs[subKey{conn, h.StreamID}]
		delete(s.subs, subKey{conn, h.StreamID})
		s.mu.Unlock()
		if open {
			s.logger.Debug("subscription closed by client", "conn_id", conn.ConnID(), "stream_id", h.StreamID)
		}
		return
	}
	if h.Type != eventstream.MessageApplication {
		s.logger.Debug("ignoring message", "conn_id", conn.ConnID(), "type", h.Type.String())
		return
	}

	name, _ := m.StringHeader(eventstream.HeaderOperation)
	op, known := ipc.LookupOperation(name)
	handler := handlers[name]
	if !known || handler == nil {
		s.logger.Warn("unsupported operation", "conn_id", conn.ConnID(), "operation", name)
		s.sendError(conn, h.StreamID, name, CodeServiceError, fmt.Sprintf("operation %q is not supported", name))
		return
	}

	mem := make([]byte, arena.ObjectSize*len(m.Payload)+arena.KVSize)
	obj, err := wire.DecodeJSON(m.Payload, arena.New(mem))
	params, isMap := obj.AsMap()
	if err != nil || !isMap {
		s.sendError(conn, h.StreamID, name, CodeInvalidArguments, "request payload is not a JSON object")
		return
	}
	s.logMessage(conn, log.DirectionIn, log.MessageKindRequest, h.StreamID, name, op.RequestType, params.Object(), "")

	r := &request{
		conn:      conn,
		stream:    h.StreamID,
		op:        op,
		component: conn.Identity().Component,
		params:    params,
	}
	resp, sub, err := handler(s, r)
	if err != nil {
		code, msg := errorCode(err)
		s.logger.Debug("operation failed", "operation", name, "component", r.component, "code", code, "error", err)
		s.sendError(conn, h.StreamID, name, code, msg)
		return
	}

	flags := eventstream.FlagTerminateStream
	if sub != nil {
		flags = 0
	}
	if err := s.send(conn, h.StreamID, flags, log.MessageKindResponse, name, op.Name+"Response", resp); err != nil {
		s.logger.Debug("response not sent", "operation", name, "error", err)
		return
	}

	if sub != nil {
		s.mu.Lock()
		s.subs[subKey{conn, h.StreamID}] = sub
		s.mu.Unlock()
	}
}

// remoteError is a handler failure reported with a specific error code.
type remoteError struct {
	code string
	msg  string
}

func (e *remoteError) Error() string {
	return e.code + ": " + e.msg
}

func fail(code, format string, args ...any) error {
	return &remoteError{code: code, msg: fmt.Sprintf(format, args...)}
}

func errorCode(err error) (string, string) {
	if re, ok := err.(*remoteError); ok {
		return re.code, re.msg
	}
	return CodeServiceError, err.Error()
}

func (s *Server) sendError(conn *transport.ServerConn, stream int32, op, code, msg string) {
	body := object.NewMap(
		object.NewKV("_message", object.Buf[object.Shared](msg)),
		object.NewKV("_errorCode", object.Buf[object.Shared](code)),
		object.NewKV("_service", object.Buf[object.Shared](serviceName)),
	)
	payload, _ := wire.EncodeJSON(body)
	m := eventstream.NewMessage(
		eventstream.CommonHeaders{Type: eventstream.MessageError, Flags: eventstream.FlagTerminateStream, StreamID: stream},
		payload,
		eventstream.Header{Name: eventstream.HeaderContentType, Value: eventstream.String(eventstream.ContentTypeJSON)},
		eventstream.Header{Name: eventstream.HeaderServiceModelType, Value: eventstream.String("aws.greengrass#" + code)},
	)
	s.logMessage(conn, log.DirectionOut, log.MessageKindError, stream, op, "aws.greengrass#"+code, body, code)
	if err := conn.Send(m); err != nil {
		s.logger.Debug("error response not sent", "operation", op, "error", err)
	}
}

func (s *Server) send(conn *transport.ServerConn, stream int32, flags eventstream.Flags, kind log.MessageKind,
	op, smt string, body object.Object[object.Shared]) error {
	payload, err := wire.EncodeJSON(body)
	if err != nil {
		return err
	}
	m := eventstream.NewMessage(
		eventstream.CommonHeaders{Type: eventstream.MessageApplication, Flags: flags, StreamID: stream},
		payload,
		eventstream.Header{Name: eventstream.HeaderContentType, Value: eventstream.String(eventstream.ContentTypeJSON)},
		eventstream.Header{Name: eventstream.HeaderServiceModelType, Value: eventstream.String(smt)},
	)
	s.logMessage(conn, log.DirectionOut, kind, stream, op, smt, body, "")
	return conn.Send(m)
}

// matching returns the subscribers of kind accepted by match.
func (s *Server) matching(kind subKind, match func(*subscriber) bool) []*subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*subscriber
	for _, sub := range s.subs {
		if sub.kind == kind && match(sub) {
			out = append(out, sub)
		}
	}
	slices.SortFunc(out, func(a, b *subscriber) int {
		if a.conn != b.conn {
			return cmp.Compare(a.conn.ConnID(), b.conn.ConnID())
		}
		return cmp.Compare(a.stream, b.stream)
	})
	return out
}

// dispatch sends events to their subscribers. A failed send drops the
// subscription.
func (s *Server) dispatch(events []outbound) {
	for _, ev := range events {
		sub := ev.sub
		err := s.send(sub.conn, sub.stream, 0, log.MessageKindStreamEvent, sub.op.Name, sub.op.EventType, ev.event)
		if err != nil {
			s.logger.Debug("dropping subscription after failed send", "conn_id", sub.conn.ConnID(), "stream_id", sub.stream, "error", err)
			s.mu.Lock()
			delete(s.subs, subKey{sub.conn, sub.stream})
			s.mu.Unlock()
		}
	}
}

// denied reports whether topic matches a deny filter.
func (s *Server) denied(topic string) bool {
	for _, f := range s.deploy.DenyTopics {
		if MatchTopic(f, topic) {
			return true
		}
	}
	return false
}

func (s *Server) logMessage(conn *transport.ServerConn, dir log.Direction, kind log.MessageKind, stream int32,
	op, smt string, body object.Object[object.Shared], code string) {
	if s.config.ProtocolLogger == nil {
		return
	}
	category := log.CategoryMessage
	if kind == log.MessageKindError {
		category = log.CategoryError
	}
	s.config.ProtocolLogger.Log(log.Event{
		Timestamp:    s.config.Now(),
		ConnectionID: conn.ConnID(),
		Direction:    dir,
		Layer:        log.LayerIPC,
		Category:     category,
		LocalRole:    log.RoleNucleus,
		Component:    conn.Identity().Component,
		Message: &log.MessageEvent{
			Kind:             kind,
			StreamID:         stream,
			Operation:        op,
			ServiceModelType: smt,
			ErrorCode:        code,
			Payload:          wire.ToNative(body),
		},
	})
}

func connID(conn *transport.ServerConn) string {
	if conn == nil {
		return ""
	}
	return conn.ConnID()
}
