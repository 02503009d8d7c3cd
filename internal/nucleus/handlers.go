package nucleus

import (
	"encoding/base64"
	"slices"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ipc"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/object"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/wire"
)

var emptyResponse = object.NewMap[object.Shared]()

func invalid(err error) error {
	return fail(CodeInvalidArguments, "%v", err)
}

// stringList converts a list of text objects.
func stringList(o object.Object[object.Shared]) ([]string, bool) {
	list, ok := o.AsList()
	if !ok {
		return nil, false
	}
	out := make([]string, 0, list.Len())
	for _, item := range list.All() {
		s, ok := item.AsBuf()
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// target returns the component a request addresses: the componentName
// parameter or the caller.
func (r *request) target(name object.Object[object.Shared]) string {
	if s, ok := name.AsBuf(); ok && s != "" {
		return s
	}
	return r.component
}

func (s *Server) getConfiguration(r *request) (object.Object[object.Shared], *subscriber, error) {
	var keyPath, name object.Object[object.Shared]
	err := r.params.Validate(
		object.Required("keyPath", object.TypeList, &keyPath),
		object.Optional("componentName", object.TypeBuf, &name),
	)
	if err != nil {
		return emptyResponse, nil, invalid(err)
	}
	path, ok := stringList(keyPath)
	if !ok {
		return emptyResponse, nil, fail(CodeInvalidArguments, "keyPath must contain only strings")
	}
	component := r.target(name)

	value, found := s.Configuration(component, path...)
	if !found {
		return emptyResponse, nil, fail(CodeResourceNotFound, "no configuration of %s at %v", component, path)
	}
	if _, isMap := value.(map[string]any); !isMap {
		if len(path) == 0 {
			return emptyResponse, nil, fail(CodeServiceError, "configuration root of %s is not a map", component)
		}
		value = map[string]any{path[len(path)-1]: value}
	}

	obj, err := wire.FromNative(value)
	if err != nil {
		return emptyResponse, nil, err
	}
	return object.NewMap(
		object.NewKV("componentName", object.Buf[object.Shared](component)),
		object.NewKV("value", obj),
	), nil, nil
}

func (s *Server) updateConfiguration(r *request) (object.Object[object.Shared], *subscriber, error) {
	var keyPath, stamp, value object.Object[object.Shared]
	err := r.params.Validate(
		object.Optional("keyPath", object.TypeList, &keyPath),
		object.Optional("timestamp", object.TypeNull, &stamp),
		object.Required("valueToMerge", object.TypeMap, &value),
	)
	if err != nil {
		return emptyResponse, nil, invalid(err)
	}
	path, ok := stringList(keyPath)
	if keyPath.Type() == object.TypeList && !ok {
		return emptyResponse, nil, fail(CodeInvalidArguments, "keyPath must contain only strings")
	}

	ts, ok := seconds(stamp)
	if !ok {
		return emptyResponse, nil, fail(CodeInvalidArguments, "timestamp must be a number")
	}
	if ts == 0 {
		now := s.config.Now()
		ts = float64(now.UnixNano()) / 1e9
	}

	merge, _ := wire.ToNative(value).(map[string]any)

	s.mu.Lock()
	tree := s.trees[r.component]
	if tree == nil {
		tree = NewTree()
		s.trees[r.component] = tree
	}
	changed := tree.Merge(path, merge, ts)
	leaves := make([]Leaf, 0, len(changed))
	for _, p := range changed {
		v, _ := tree.Get(p)
		leaves = append(leaves, Leaf{Path: p, Value: v, Timestamp: ts})
	}
	s.mu.Unlock()

	if len(changed) < countLeaves(merge) {
		s.logger.Debug("ignored stale configuration writes", "component", r.component, "timestamp", ts)
	}
	if s.config.Store != nil && len(leaves) > 0 {
		if err := s.config.Store.SaveLeaves(r.component, leaves); err != nil {
			s.logger.Error("failed to persist configuration", "component", r.component, "error", err)
		}
	}

	var events []outbound
	for _, p := range changed {
		for _, sub := range s.matching(subConfig, func(sub *subscriber) bool {
			return sub.component == r.component && related(sub.keyPath, p)
		}) {
			events = append(events, outbound{sub: sub, event: configEvent(r.component, p)})
		}
	}
	s.dispatch(events)
	return emptyResponse, nil, nil
}

// seconds reads an optional numeric timestamp.
func seconds(o object.Object[object.Shared]) (float64, bool) {
	switch o.Type() {
	case object.TypeNull:
		return 0, true
	case object.TypeF64:
		f, _ := o.AsF64()
		return f, true
	case object.TypeI64:
		i, _ := o.AsI64()
		return float64(i), true
	}
	return 0, false
}

func countLeaves(m map[string]any) int {
	n := 0
	for _, v := range m {
		if child, isMap := v.(map[string]any); isMap {
			n += countLeaves(child)
			continue
		}
		n++
	}
	return n
}

// related reports whether a change at changed concerns a subscription at
// watched: one path is a prefix of the other.
func related(watched, changed []string) bool {
	n := min(len(watched), len(changed))
	return slices.Equal(watched[:n], changed[:n])
}

func configEvent(component string, path []string) object.Object[object.Shared] {
	keys := make([]object.Object[object.Shared], len(path))
	for i, k := range path {
		keys[i] = object.Buf[object.Shared](k)
	}
	return object.NewMap(object.NewKV("configurationUpdateEvent", object.NewMap(
		object.NewKV("componentName", object.Buf[object.Shared](component)),
		object.NewKV("keyPath", object.NewList(keys...)),
	)))
}

func (s *Server) subscribeToConfigurationUpdate(r *request) (object.Object[object.Shared], *subscriber, error) {
	var keyPath, name object.Object[object.Shared]
	err := r.params.Validate(
		object.Optional("componentName", object.TypeBuf, &name),
		object.Optional("keyPath", object.TypeList, &keyPath),
	)
	if err != nil {
		return emptyResponse, nil, invalid(err)
	}
	path, ok := stringList(keyPath)
	if keyPath.Type() == object.TypeList && !ok {
		return emptyResponse, nil, fail(CodeServiceError, "keyPath must contain only strings")
	}
	component := r.target(name)

	s.mu.Lock()
	_, known := s.trees[component]
	s.mu.Unlock()
	if !known {
		return emptyResponse, nil, fail(CodeResourceNotFound, "unknown component %s", component)
	}

	return emptyResponse, &subscriber{
		kind:      subConfig,
		conn:      r.conn,
		stream:    r.stream,
		op:        r.op,
		component: component,
		keyPath:   path,
	}, nil
}

func (s *Server) updateState(r *request) (object.Object[object.Shared], *subscriber, error) {
	var state object.Object[object.Shared]
	if err := r.params.Validate(object.Required("state", object.TypeBuf, &state)); err != nil {
		return emptyResponse, nil, invalid(err)
	}
	name, _ := state.AsBuf()
	if _, valid := ipc.ParseComponentState(name); !valid {
		return emptyResponse, nil, fail(CodeInvalidArguments, "unknown state %q", name)
	}

	s.mu.Lock()
	s.states[r.component] = name
	s.mu.Unlock()
	s.logger.Info("component state changed", "component", r.component, "state", name)

	if s.config.Store != nil {
		if err := s.config.Store.SaveState(r.component, name, s.config.Now()); err != nil {
			s.logger.Error("failed to persist component state", "component", r.component, "error", err)
		}
	}
	return emptyResponse, nil, nil
}

func (s *Server) restartComponent(r *request) (object.Object[object.Shared], *subscriber, error) {
	var name object.Object[object.Shared]
	if err := r.params.Validate(object.Required("componentName", object.TypeBuf, &name)); err != nil {
		return emptyResponse, nil, invalid(err)
	}
	component, _ := name.AsBuf()

	s.mu.Lock()
	_, known := s.trees[component]
	if known {
		delete(s.states, component)
	}
	s.mu.Unlock()

	status := "SUCCEEDED"
	msg := ""
	if !known {
		status = "FAILED"
		msg = "component " + component + " is not deployed"
	}
	s.logger.Info("restart requested", "component", component, "by", r.component, "status", status)
	return object.NewMap(
		object.NewKV("restartStatus", object.Buf[object.Shared](status)),
		object.NewKV("message", object.Buf[object.Shared](msg)),
	), nil, nil
}

func (s *Server) publishToTopic(r *request) (object.Object[object.Shared], *subscriber, error) {
	var topicObj, msgObj object.Object[object.Shared]
	err := r.params.Validate(
		object.Required("topic", object.TypeBuf, &topicObj),
		object.Required("publishMessage", object.TypeMap, &msgObj),
	)
	if err != nil {
		return emptyResponse, nil, invalid(err)
	}
	topic, _ := topicObj.AsBuf()
	if !ValidTopic(topic) {
		return emptyResponse, nil, fail(CodeInvalidArguments, "invalid topic %q", topic)
	}
	if s.denied(topic) {
		return emptyResponse, nil, fail(CodeUnauthorized, "%s is not authorized to publish to %s", r.component, topic)
	}

	msg, _ := msgObj.AsMap()
	var jsonMsg, binMsg object.Object[object.Shared]
	err = msg.Validate(
		object.Optional("jsonMessage", object.TypeMap, &jsonMsg),
		object.Optional("binaryMessage", object.TypeMap, &binMsg),
	)
	if err != nil {
		return emptyResponse, nil, invalid(err)
	}
	isJSON := jsonMsg.Type() == object.TypeMap
	if isJSON == (binMsg.Type() == object.TypeMap) {
		return emptyResponse, nil, fail(CodeInvalidArguments, "publishMessage needs exactly one of jsonMessage and binaryMessage")
	}

	key, wrapper, want := "binaryMessage", binMsg, object.TypeBuf
	if isJSON {
		key, wrapper, want = "jsonMessage", jsonMsg, object.TypeMap
	}
	wm, _ := wrapper.AsMap()
	var payload object.Object[object.Shared]
	if err := wm.Validate(object.Required("message", want, &payload)); err != nil {
		return emptyResponse, nil, invalid(err)
	}
	if !isJSON {
		b64, _ := payload.AsBuf()
		if _, err := base64.StdEncoding.DecodeString(b64); err != nil {
			return emptyResponse, nil, fail(CodeInvalidArguments, "binary message is not base64")
		}
	}

	event := object.NewMap(object.NewKV(key, object.NewMap(
		object.NewKV("message", payload),
		object.NewKV("context", object.NewMap(object.NewKV("topic", object.Buf[object.Shared](topic)))),
	)))
	var events []outbound
	for _, sub := range s.matching(subTopic, func(sub *subscriber) bool { return MatchTopic(sub.filter, topic) }) {
		events = append(events, outbound{sub: sub, event: event})
	}
	s.dispatch(events)
	return emptyResponse, nil, nil
}

func (s *Server) subscribeToTopic(r *request) (object.Object[object.Shared], *subscriber, error) {
	var topicObj object.Object[object.Shared]
	if err := r.params.Validate(object.Required("topic", object.TypeBuf, &topicObj)); err != nil {
		return emptyResponse, nil, invalid(err)
	}
	filter, _ := topicObj.AsBuf()
	return s.topicSubscription(r, subTopic, filter)
}

func (s *Server) topicSubscription(r *request, kind subKind, filter string) (object.Object[object.Shared], *subscriber, error) {
	if !ValidFilter(filter) {
		return emptyResponse, nil, fail(CodeInvalidArguments, "invalid topic filter %q", filter)
	}
	if s.denied(filter) {
		return emptyResponse, nil, fail(CodeUnauthorized, "%s is not authorized to subscribe to %s", r.component, filter)
	}
	return emptyResponse, &subscriber{
		kind:   kind,
		conn:   r.conn,
		stream: r.stream,
		op:     r.op,
		filter: filter,
	}, nil
}

// qosParam validates the string-encoded QoS of an IoT Core request.
func qosParam(params object.Map[object.Shared]) error {
	var qos object.Object[object.Shared]
	if err := params.Validate(object.Required("qos", object.TypeBuf, &qos)); err != nil {
		return invalid(err)
	}
	switch q, _ := qos.AsBuf(); q {
	case "0", "1", "2":
		return nil
	default:
		return fail(CodeInvalidArguments, "invalid qos %q", q)
	}
}

// publishToIoTCore loops the message back to local IoT Core subscribers.
func (s *Server) publishToIoTCore(r *request) (object.Object[object.Shared], *subscriber, error) {
	var topicObj, payload object.Object[object.Shared]
	err := r.params.Validate(
		object.Required("topicName", object.TypeBuf, &topicObj),
		object.Optional("payload", object.TypeBuf, &payload),
	)
	if err != nil {
		return emptyResponse, nil, invalid(err)
	}
	if err := qosParam(r.params); err != nil {
		return emptyResponse, nil, err
	}
	topic, _ := topicObj.AsBuf()
	if !ValidTopic(topic) {
		return emptyResponse, nil, fail(CodeInvalidArguments, "invalid topic %q", topic)
	}
	if s.denied(topic) {
		return emptyResponse, nil, fail(CodeUnauthorized, "%s is not authorized to publish to %s", r.component, topic)
	}
	b64, _ := payload.AsBuf()
	if _, err := base64.StdEncoding.DecodeString(b64); err != nil {
		return emptyResponse, nil, fail(CodeInvalidArguments, "payload is not base64")
	}

	event := object.NewMap(object.NewKV("message", object.NewMap(
		object.NewKV("topicName", object.Buf[object.Shared](topic)),
		object.NewKV("payload", object.Buf[object.Shared](b64)),
	)))
	var events []outbound
	for _, sub := range s.matching(subIoTCore, func(sub *subscriber) bool { return MatchTopic(sub.filter, topic) }) {
		events = append(events, outbound{sub: sub, event: event})
	}
	s.dispatch(events)
	return emptyResponse, nil, nil
}

func (s *Server) subscribeToIoTCore(r *request) (object.Object[object.Shared], *subscriber, error) {
	var topicObj object.Object[object.Shared]
	if err := r.params.Validate(object.Required("topicName", object.TypeBuf, &topicObj)); err != nil {
		return emptyResponse, nil, invalid(err)
	}
	if err := qosParam(r.params); err != nil {
		return emptyResponse, nil, err
	}
	filter, _ := topicObj.AsBuf()
	return s.topicSubscription(r, subIoTCore, filter)
}

func (s *Server) getSystemConfig(r *request) (object.Object[object.Shared], *subscriber, error) {
	var key object.Object[object.Shared]
	if err := r.params.Validate(object.Required("key", object.TypeBuf, &key)); err != nil {
		return emptyResponse, nil, invalid(err)
	}
	name, _ := key.AsBuf()
	value, found := s.deploy.System[name]
	if !found {
		return emptyResponse, nil, fail(CodeResourceNotFound, "no system setting %q", name)
	}
	return object.NewMap(object.NewKV("value", object.Buf[object.Shared](value))), nil, nil
}
