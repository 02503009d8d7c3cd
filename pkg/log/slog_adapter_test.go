package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func captureSlog(t *testing.T, event Event) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	NewSlogAdapter(slog.New(handler)).Log(event)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("slog output is not JSON: %v\n%s", err, buf.String())
	}
	return rec
}

func TestSlogAdapterMessage(t *testing.T) {
	rtt := 2 * time.Millisecond
	rec := captureSlog(t, Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-1",
		Direction:    DirectionIn,
		Layer:        LayerIPC,
		Category:     CategoryMessage,
		Component:    "com.example.Pub",
		Message: &MessageEvent{
			Kind:           MessageKindError,
			StreamID:       4,
			Operation:      "aws.greengrass#PublishToTopic",
			ErrorCode:      "UnauthorizedError",
			ProcessingTime: &rtt,
		},
	})

	want := map[string]any{
		"msg":        "protocol",
		"level":      "DEBUG",
		"conn_id":    "conn-1",
		"direction":  "IN",
		"layer":      "IPC",
		"component":  "com.example.Pub",
		"kind":       "ERROR",
		"stream_id":  float64(4),
		"operation":  "aws.greengrass#PublishToTopic",
		"error_code": "UnauthorizedError",
	}
	for k, v := range want {
		if rec[k] != v {
			t.Errorf("%s = %v, want %v", k, rec[k], v)
		}
	}
	if _, ok := rec["processing_time"]; !ok {
		t.Error("processing_time missing")
	}
}

func TestSlogAdapterFrameAndControl(t *testing.T) {
	rec := captureSlog(t, Event{
		Layer: LayerFrame,
		Frame: &FrameEvent{Size: 40, StreamID: 2, MessageType: 1, Flags: 2},
	})
	if rec["frame_size"] != float64(40) || rec["flags"] != float64(2) || rec["msg_type"] != float64(1) {
		t.Errorf("frame attrs = %v", rec)
	}

	rec = captureSlog(t, Event{
		Category:   CategoryControl,
		ControlMsg: &ControlMsgEvent{Type: ControlMsgTerminate, StreamID: 5},
	})
	if rec["ctrl_type"] != "TERMINATE" || rec["stream_id"] != float64(5) {
		t.Errorf("control attrs = %v", rec)
	}
}

func TestSlogAdapterStateAndError(t *testing.T) {
	rec := captureSlog(t, Event{
		StateChange: &StateChangeEvent{Entity: StateEntityConnection, OldState: "DISCONNECTED", NewState: "CONNECTED"},
	})
	if rec["entity"] != "CONNECTION" || rec["new_state"] != "CONNECTED" {
		t.Errorf("state attrs = %v", rec)
	}
	if _, ok := rec["stream_id"]; ok {
		t.Error("connection state change should not carry stream_id")
	}

	rec = captureSlog(t, Event{
		Error: &ErrorEventData{Layer: LayerFrame, Message: "bad crc", Kind: "PARSE"},
	})
	if rec["error_layer"] != "FRAME" || rec["error_kind"] != "PARSE" {
		t.Errorf("error attrs = %v", rec)
	}
}
