package log

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeLog(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.cbor")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

func readAll(t *testing.T, path string, f Filter) []Event {
	t.Helper()
	r, err := NewFilteredReader(path, f)
	if err != nil {
		t.Fatalf("NewFilteredReader: %v", err)
	}
	defer r.Close()

	var out []Event
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, e)
	}
}

// session is a short exchange between two components and the nucleus: a
// config read on stream 1 and a topic subscription on stream 2 with one
// delivered event.
func session(base time.Time) []Event {
	at := func(ms int) time.Time { return base.Add(time.Duration(ms) * time.Millisecond) }
	return []Event{
		{Timestamp: at(0), ConnectionID: "sensor", Direction: DirectionOut, Category: CategoryControl,
			ControlMsg: &ControlMsgEvent{Type: ControlMsgConnect}},
		{Timestamp: at(1), ConnectionID: "sensor", Direction: DirectionIn, Category: CategoryControl,
			ControlMsg: &ControlMsgEvent{Type: ControlMsgConnectAck}},
		{Timestamp: at(2), ConnectionID: "sensor", Direction: DirectionOut, Layer: LayerFrame, Category: CategoryMessage,
			Frame: &FrameEvent{Size: 180, StreamID: 1}},
		{Timestamp: at(2), ConnectionID: "sensor", Direction: DirectionOut, Layer: LayerIPC, Category: CategoryMessage,
			Message: &MessageEvent{Kind: MessageKindRequest, StreamID: 1, Operation: "aws.greengrass#GetConfiguration"}},
		{Timestamp: at(5), ConnectionID: "sensor", Direction: DirectionIn, Layer: LayerIPC, Category: CategoryMessage,
			Message: &MessageEvent{Kind: MessageKindResponse, StreamID: 1, Operation: "aws.greengrass#GetConfiguration"}},
		{Timestamp: at(6), ConnectionID: "dashboard", Direction: DirectionOut, Layer: LayerIPC, Category: CategoryMessage,
			Message: &MessageEvent{Kind: MessageKindRequest, StreamID: 2, Operation: "aws.greengrass#SubscribeToTopic"}},
		{Timestamp: at(7), ConnectionID: "dashboard", Direction: DirectionIn, Layer: LayerClient, Category: CategoryState,
			StateChange: &StateChangeEvent{Entity: StateEntitySubscription, StreamID: 2, NewState: "ACTIVE"}},
		{Timestamp: at(9), ConnectionID: "dashboard", Direction: DirectionIn, Layer: LayerIPC, Category: CategoryMessage,
			Message: &MessageEvent{Kind: MessageKindStreamEvent, StreamID: 2, Operation: "aws.greengrass#SubscribeToTopic"}},
		{Timestamp: at(12), ConnectionID: "dashboard", Direction: DirectionOut, Category: CategoryControl,
			ControlMsg: &ControlMsgEvent{Type: ControlMsgTerminate, StreamID: 2}},
	}
}

func TestReaderReturnsEventsInOrder(t *testing.T) {
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	events := session(base)
	got := readAll(t, writeLog(t, events), Filter{})

	if len(got) != len(events) {
		t.Fatalf("read %d events, want %d", len(got), len(events))
	}
	for i := range got {
		if !got[i].Timestamp.Equal(events[i].Timestamp) || got[i].ConnectionID != events[i].ConnectionID {
			t.Errorf("event %d = %s@%s, want %s@%s", i,
				got[i].ConnectionID, got[i].Timestamp, events[i].ConnectionID, events[i].Timestamp)
		}
	}
	if got[3].Message == nil || got[3].Message.Operation != "aws.greengrass#GetConfiguration" {
		t.Errorf("request payload lost: %+v", got[3].Message)
	}
}

func TestReaderEmptyLog(t *testing.T) {
	if got := readAll(t, writeLog(t, nil), Filter{}); len(got) != 0 {
		t.Errorf("empty log yielded %d events", len(got))
	}
}

func TestReaderMissingFile(t *testing.T) {
	_, err := NewReader(filepath.Join(t.TempDir(), "absent.cbor"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("NewReader(absent) = %v, want ErrNotExist", err)
	}
}

func TestReaderFilters(t *testing.T) {
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	path := writeLog(t, session(base))

	ipc := LayerIPC
	out := DirectionOut
	state := CategoryState
	control := CategoryControl
	stream1, stream2 := int32(1), int32(2)
	from, to := base.Add(5*time.Millisecond), base.Add(9*time.Millisecond)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"connection", Filter{ConnectionID: "sensor"}, 5},
		{"layer", Filter{Layer: &ipc}, 4},
		{"direction", Filter{Direction: &out}, 5},
		{"category state", Filter{Category: &state}, 1},
		{"category control", Filter{Category: &control}, 3},
		{"time window", Filter{TimeStart: &from, TimeEnd: &to}, 3},
		{"stream 1", Filter{StreamID: &stream1}, 3},
		{"stream 2 includes terminate", Filter{StreamID: &stream2}, 4},
		{"operation", Filter{Operation: "aws.greengrass#SubscribeToTopic"}, 2},
		{"combined", Filter{ConnectionID: "sensor", Layer: &ipc, Direction: &out}, 1},
		{"no match", Filter{ConnectionID: "sensor", Operation: "aws.greengrass#SubscribeToTopic"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := readAll(t, path, tt.filter); len(got) != tt.want {
				t.Errorf("matched %d events, want %d", len(got), tt.want)
			}
		})
	}
}
