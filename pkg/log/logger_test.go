package log

import (
	"sync"
	"testing"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Log(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Message != nil {
			out = append(out, e.Message.Operation)
		}
	}
	return out
}

func request(op string) Event {
	return Event{Layer: LayerIPC, Message: &MessageEvent{Kind: MessageKindRequest, Operation: op}}
}

func TestNoopLogger(t *testing.T) {
	var l Logger = NoopLogger{}
	l.Log(request("aws.greengrass#UpdateState"))
	l.Log(Event{Error: &ErrorEventData{Layer: LayerFrame, Message: "bad prelude crc"}})
}

func TestMultiLoggerFansOut(t *testing.T) {
	file, console := &recorder{}, &recorder{}
	l := NewMultiLogger(file, nil, console)
	l.Log(request("aws.greengrass#PublishToTopic"))
	l.Log(request("aws.greengrass#SubscribeToTopic"))

	for name, r := range map[string]*recorder{"file": file, "console": console} {
		got := r.ops()
		if len(got) != 2 || got[0] != "aws.greengrass#PublishToTopic" || got[1] != "aws.greengrass#SubscribeToTopic" {
			t.Errorf("%s sink got %v", name, got)
		}
	}
}

func TestMultiLoggerCollapses(t *testing.T) {
	if l := NewMultiLogger(); l != nil {
		t.Errorf("NewMultiLogger() = %T, want nil", l)
	}
	if l := NewMultiLogger(nil, nil); l != nil {
		t.Errorf("NewMultiLogger(nil, nil) = %T, want nil", l)
	}

	only := &recorder{}
	if l := NewMultiLogger(nil, only); l != Logger(only) {
		t.Errorf("single sink was wrapped: %T", l)
	}
}

func TestMultiLoggerFlattens(t *testing.T) {
	a, b, c := &recorder{}, &recorder{}, &recorder{}
	l := NewMultiLogger(NewMultiLogger(a, b), c)

	m, ok := l.(*MultiLogger)
	if !ok {
		t.Fatalf("NewMultiLogger returned %T", l)
	}
	if len(m.sinks) != 3 {
		t.Errorf("sinks = %d, want 3", len(m.sinks))
	}
	l.Log(request("aws.greengrass#RestartComponent"))
	for i, r := range []*recorder{a, b, c} {
		if len(r.ops()) != 1 {
			t.Errorf("sink %d got %d events", i, len(r.ops()))
		}
	}
}
