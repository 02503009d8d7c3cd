package ipc

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/arena"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/eventstream"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ggerr"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/log"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/object"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/subscription"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/wire"
)

// ErrNoStreamCallback is returned by Subscribe without a stream callback.
var ErrNoStreamCallback = fmt.Errorf("%w: stream callback required", ggerr.Invalid)

// ResultFunc receives the outcome of a request: either the response map or
// the error the nucleus reported, never both. The map is only valid until
// the function returns.
type ResultFunc func(resp object.Map[object.Shared], remote *ggerr.RemoteError) error

// StreamFunc receives one stream event of a subscription. The map is only
// valid until the function returns. Returning subscription.ErrStop closes
// the subscription.
type StreamFunc func(token any, serviceModelType string, event object.Map[object.Shared]) error

// inbound is a message routed to a waiting request.
type inbound struct {
	m *eventstream.Message
	h eventstream.CommonHeaders
}

// exchange waits for the first message on a stream.
type exchange struct {
	resp   chan inbound
	closed chan error
}

func newExchange() exchange {
	return exchange{
		resp:   make(chan inbound, 1),
		closed: make(chan error, 1),
	}
}

func (x *exchange) OnMessage(m *eventstream.Message, h eventstream.CommonHeaders) {
	select {
	case x.resp <- inbound{m: m, h: h}:
	default:
	}
}

func (x *exchange) OnClose(err error) {
	select {
	case x.closed <- err:
	default:
	}
}

// subStream routes the response of a subscribe request to the waiting
// caller and everything after it to the subscription registry.
type subStream struct {
	exchange
	c        *Client
	op       string
	handle   subscription.Handle
	id       atomic.Int32
	answered atomic.Bool
}

func (s *subStream) OnMessage(m *eventstream.Message, h eventstream.CommonHeaders) {
	if !s.answered.Swap(true) {
		s.exchange.OnMessage(m, h)
		return
	}
	s.c.deliver(s, inbound{m: m, h: h})
}

func (s *subStream) OnClose(err error) {
	s.exchange.OnClose(err)
	s.c.subs.CloseAsync(s.handle)
}

// streamEvent is the registry payload for one stream event.
type streamEvent struct {
	serviceModelType string
	event            object.Map[object.Shared]
}

// Call sends a request and waits for its response. onResult, if non-nil,
// is invoked exactly once when a response arrives; its error is returned.
// With a nil onResult a remote error is returned as *ggerr.RemoteError.
func (c *Client) Call(ctx context.Context, op, serviceModelType string, params object.Map[object.Shared], onResult ResultFunc) error {
	conn, err := c.transport()
	if err != nil {
		return err
	}

	x := newExchange()
	id, err := conn.OpenStream(&x)
	if err != nil {
		return err
	}
	defer conn.CloseStream(id)

	in, err := c.roundTrip(ctx, conn, id, &x, op, serviceModelType, params)
	if err != nil {
		return err
	}
	return c.result(in, op, onResult)
}

// Subscribe sends a subscribe request and, once the nucleus accepts it,
// routes later messages on the stream to onStream with token. onResult
// behaves as for Call. If the request fails the subscription is closed
// before Subscribe returns. onStream runs on the receive goroutine and must
// not make blocking requests on c; see the package documentation.
func (c *Client) Subscribe(ctx context.Context, op, serviceModelType string, params object.Map[object.Shared],
	onResult ResultFunc, onStream StreamFunc, token any) (*subscription.Subscription, error) {
	if onStream == nil {
		return nil, ErrNoStreamCallback
	}
	conn, err := c.transport()
	if err != nil {
		return nil, err
	}

	s := &subStream{exchange: newExchange(), c: c, op: op}
	h, err := c.subs.Register(func(ev any) error {
		e := ev.(streamEvent)
		return onStream(token, e.serviceModelType, e.event)
	}, func() {
		if id := s.id.Load(); id != 0 {
			if err := conn.CloseStream(id); err != nil {
				c.logger.Debug("close stream failed", "stream_id", id, "error", err)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	s.handle = h

	id, err := conn.OpenStream(s)
	if err != nil {
		c.subs.Close(h)
		return nil, err
	}
	s.id.Store(id)

	in, err := c.roundTrip(ctx, conn, id, &s.exchange, op, serviceModelType, params)
	if err == nil {
		err = c.result(in, op, onResult)
	}
	if err != nil {
		c.subs.Close(h)
		return nil, err
	}

	c.logger.Debug("subscribed", "operation", op, "stream_id", id, "handle", uint32(h))
	return subscription.New(c.subs, h), nil
}

// roundTrip sends one request on stream id and waits for the first message
// routed to x.
func (c *Client) roundTrip(ctx context.Context, conn Transport, id int32, x *exchange,
	op, serviceModelType string, params object.Map[object.Shared]) (inbound, error) {
	payload, err := wire.EncodeJSON(params.Object())
	if err != nil {
		return inbound{}, err
	}

	msg := eventstream.NewMessage(
		eventstream.CommonHeaders{Type: eventstream.MessageApplication, StreamID: id},
		payload,
		eventstream.Header{Name: eventstream.HeaderOperation, Value: eventstream.String(op)},
		eventstream.Header{Name: eventstream.HeaderServiceModelType, Value: eventstream.String(serviceModelType)},
	)

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	c.logMessage(log.DirectionOut, log.MessageKindRequest, id, op, serviceModelType, params.Object(), "", nil)
	if err := conn.Send(msg); err != nil {
		return inbound{}, err
	}

	select {
	case in := <-x.resp:
		rtt := time.Since(start)
		c.logResponse(in, op, &rtt)
		return in, nil
	case err := <-x.closed:
		return inbound{}, err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.logger.Warn("timed out waiting for a response", "operation", op, "stream_id", id)
			return inbound{}, ggerr.Wrap(ggerr.Timeout, op, ctx.Err())
		}
		return inbound{}, ggerr.Wrap(ggerr.Failure, op, ctx.Err())
	}
}

// result decodes a response and hands it to onResult.
func (c *Client) result(in inbound, op string, onResult ResultFunc) error {
	scratch := scratchFor(in.m.Payload)

	switch in.h.Type {
	case eventstream.MessageError:
		remote, err := decodeRemoteError(in.m.Payload, scratch)
		if err != nil {
			c.logger.Error("undecodable error response", "operation", op, "error", err)
			return err
		}
		if onResult == nil {
			return remote
		}
		return onResult(object.Map[object.Shared]{}, remote)

	case eventstream.MessageApplication:
		resp, err := decodeMap(in.m.Payload, scratch)
		if err != nil {
			c.logger.Error("undecodable response", "operation", op, "error", err)
			return err
		}
		if onResult == nil {
			return nil
		}
		return onResult(resp, nil)
	}

	return ggerr.Errorf(ggerr.Failure, "%s: unexpected %s response", op, in.h.Type)
}

// invoke runs op and translates remote errors with the operation's code
// map. onResp may be nil.
func (c *Client) invoke(ctx context.Context, op Operation, params object.Map[object.Shared], onResp func(object.Map[object.Shared]) error) error {
	return c.Call(ctx, op.Name, op.RequestType, params, func(resp object.Map[object.Shared], remote *ggerr.RemoteError) error {
		if remote != nil {
			return c.remoteErr(op, remote)
		}
		if onResp == nil {
			return nil
		}
		return onResp(resp)
	})
}

// subscribe runs a streaming op. Events whose service-model-type does not
// match the operation are rejected before reaching onEvent.
func (c *Client) subscribe(ctx context.Context, op Operation, params object.Map[object.Shared], onEvent func(object.Map[object.Shared]) error) (*subscription.Subscription, error) {
	return c.Subscribe(ctx, op.Name, op.RequestType, params,
		func(_ object.Map[object.Shared], remote *ggerr.RemoteError) error {
			if remote != nil {
				return c.remoteErr(op, remote)
			}
			return nil
		},
		func(_ any, smt string, event object.Map[object.Shared]) error {
			if smt != op.EventType {
				return ggerr.Errorf(ggerr.Invalid, "%s: unexpected service-model-type %q", op.Name, smt)
			}
			return onEvent(event)
		}, nil)
}

func (c *Client) remoteErr(op Operation, remote *ggerr.RemoteError) error {
	err := op.Errors.Translate(remote)
	c.logger.Error("operation failed", "operation", op.Name, "code", remote.Code, "message", remote.Message, "kind", ggerr.KindOf(err).String())
	return err
}

// deliver decodes a stream event and passes it to the subscription. It
// runs on the transport's receive goroutine.
func (c *Client) deliver(s *subStream, in inbound) {
	terminate := in.h.Flags.Has(eventstream.FlagTerminateStream)
	if terminate {
		defer c.subs.CloseAsync(s.handle)
	}

	if in.h.Type != eventstream.MessageApplication {
		c.logResponse(in, s.op, nil)
		c.logger.Error("unexpected message on subscription stream", "operation", s.op, "stream_id", in.h.StreamID, "type", in.h.Type.String())
		return
	}
	if ct, _ := in.m.StringHeader(eventstream.HeaderContentType); ct != eventstream.ContentTypeJSON {
		c.logger.Error("stream event does not declare a JSON payload", "operation", s.op, "stream_id", in.h.StreamID, "content_type", ct)
		return
	}
	smt, _ := in.m.StringHeader(eventstream.HeaderServiceModelType)

	event, err := decodeMap(in.m.Payload, scratchFor(in.m.Payload))
	if err != nil {
		c.logger.Error("undecodable stream event", "operation", s.op, "stream_id", in.h.StreamID, "error", err)
		return
	}
	c.logMessage(log.DirectionIn, log.MessageKindStreamEvent, in.h.StreamID, s.op, smt, event.Object(), "", nil)

	c.subs.Deliver(s.handle, streamEvent{serviceModelType: smt, event: event})
}

// scratchPerByte bounds the arena charge per byte of JSON input: the
// shortest list item is 2 bytes for a 16 byte node.
const scratchPerByte = arena.ObjectSize / 2

// scratchFor returns an arena large enough to decode any JSON document of
// len(payload) bytes.
func scratchFor(payload []byte) *arena.Arena {
	return arena.New(make([]byte, scratchPerByte*len(payload)+arena.KVSize))
}

// decodeMap decodes a JSON object. An empty payload is an empty map.
func decodeMap(payload []byte, scratch *arena.Arena) (object.Map[object.Shared], error) {
	if len(payload) == 0 {
		return object.Map[object.Shared]{}, nil
	}
	obj, err := wire.DecodeJSON(payload, scratch)
	if err != nil {
		return object.Map[object.Shared]{}, err
	}
	m, ok := obj.AsMap()
	if !ok {
		return object.Map[object.Shared]{}, ggerr.Errorf(ggerr.Parse, "payload is %s, want a map", obj.Type())
	}
	return m, nil
}

// decodeRemoteError decodes an application error payload.
func decodeRemoteError(payload []byte, scratch *arena.Arena) (*ggerr.RemoteError, error) {
	m, err := decodeMap(payload, scratch)
	if err != nil {
		return nil, err
	}
	var code, msg object.Object[object.Shared]
	err = m.Validate(
		object.Required("_errorCode", object.TypeBuf, &code),
		object.Optional("_message", object.TypeBuf, &msg),
	)
	if err != nil {
		return nil, err
	}
	re := &ggerr.RemoteError{}
	re.Code, _ = code.AsBuf()
	re.Message, _ = msg.AsBuf()
	return re, nil
}

func (c *Client) logResponse(in inbound, op string, rtt *time.Duration) {
	if c.config.ProtocolLogger == nil {
		return
	}
	smt, _ := in.m.StringHeader(eventstream.HeaderServiceModelType)
	kind := log.MessageKindResponse
	var payload any
	var code string
	scratch := scratchFor(in.m.Payload)
	if in.h.Type == eventstream.MessageError {
		kind = log.MessageKindError
		if re, err := decodeRemoteError(in.m.Payload, scratch); err == nil {
			code = re.Code
			payload = re.Message
		}
	} else if m, err := decodeMap(in.m.Payload, scratch); err == nil {
		payload = wire.ToNative(m.Object())
	}
	c.logEvent(log.DirectionIn, &log.MessageEvent{
		Kind:             kind,
		StreamID:         in.h.StreamID,
		Operation:        op,
		ServiceModelType: smt,
		ErrorCode:        code,
		Payload:          payload,
		ProcessingTime:   rtt,
	})
}

func (c *Client) logMessage(dir log.Direction, kind log.MessageKind, id int32, op, smt string, payload object.Object[object.Shared], code string, rtt *time.Duration) {
	if c.config.ProtocolLogger == nil {
		return
	}
	c.logEvent(dir, &log.MessageEvent{
		Kind:             kind,
		StreamID:         id,
		Operation:        op,
		ServiceModelType: smt,
		ErrorCode:        code,
		Payload:          wire.ToNative(payload),
		ProcessingTime:   rtt,
	})
}

func (c *Client) logEvent(dir log.Direction, m *log.MessageEvent) {
	category := log.CategoryMessage
	if m.Kind == log.MessageKindError {
		category = log.CategoryError
	}
	c.mu.Lock()
	connID := c.connID
	c.mu.Unlock()
	c.config.ProtocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    dir,
		Layer:        log.LayerIPC,
		Category:     category,
		LocalRole:    log.RoleComponent,
		Message:      m,
	})
}
