package log

import (
	"bytes"
	"testing"
	"time"
)

func TestEventEncodeDecode(t *testing.T) {
	ts := time.Date(2026, 3, 14, 15, 9, 26, 535897932, time.UTC)
	rtt := 1500 * time.Microsecond

	tests := []struct {
		name  string
		event Event
		check func(t *testing.T, got Event)
	}{
		{
			name: "frame",
			event: Event{
				Timestamp:    ts,
				ConnectionID: "c1",
				Direction:    DirectionOut,
				Layer:        LayerFrame,
				Category:     CategoryMessage,
				Frame: &FrameEvent{
					Size:        64,
					Data:        []byte(`{"topic":"a"}`),
					StreamID:    2,
					MessageType: 0,
					Headers:     []string{"operation", "service-model-type"},
				},
			},
			check: func(t *testing.T, got Event) {
				if got.Frame == nil || got.Frame.StreamID != 2 || len(got.Frame.Headers) != 2 {
					t.Errorf("Frame = %+v", got.Frame)
				}
				if !bytes.Equal(got.Frame.Data, []byte(`{"topic":"a"}`)) {
					t.Errorf("Frame.Data = %q", got.Frame.Data)
				}
			},
		},
		{
			name: "message with payload",
			event: Event{
				Timestamp: ts,
				Layer:     LayerIPC,
				Component: "com.example.Sensor",
				Message: &MessageEvent{
					Kind:             MessageKindResponse,
					StreamID:         3,
					Operation:        "aws.greengrass#GetConfiguration",
					ServiceModelType: "aws.greengrass#GetConfigurationResponse",
					Payload:          map[string]any{"value": "x"},
					ProcessingTime:   &rtt,
				},
			},
			check: func(t *testing.T, got Event) {
				m := got.Message
				if m == nil || m.Kind != MessageKindResponse || m.Operation != "aws.greengrass#GetConfiguration" {
					t.Fatalf("Message = %+v", m)
				}
				if m.ProcessingTime == nil || *m.ProcessingTime != rtt {
					t.Errorf("ProcessingTime = %v", m.ProcessingTime)
				}
				payload, ok := m.Payload.(map[string]any)
				if !ok || payload["value"] != "x" {
					t.Errorf("Payload = %#v", m.Payload)
				}
				if got.Component != "com.example.Sensor" {
					t.Errorf("Component = %q", got.Component)
				}
			},
		},
		{
			name: "control",
			event: Event{
				Timestamp:  ts,
				Category:   CategoryControl,
				ControlMsg: &ControlMsgEvent{Type: ControlMsgTerminate, StreamID: 9},
			},
			check: func(t *testing.T, got Event) {
				if got.ControlMsg == nil || got.ControlMsg.Type != ControlMsgTerminate || got.ControlMsg.StreamID != 9 {
					t.Errorf("ControlMsg = %+v", got.ControlMsg)
				}
			},
		},
		{
			name: "error",
			event: Event{
				Timestamp: ts,
				Category:  CategoryError,
				Error:     &ErrorEventData{Layer: LayerIPC, Message: "bad payload", Kind: "PARSE", Context: "stream event"},
			},
			check: func(t *testing.T, got Event) {
				if got.Error == nil || got.Error.Kind != "PARSE" || got.Error.Context != "stream event" {
					t.Errorf("Error = %+v", got.Error)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeEvent(tt.event)
			if err != nil {
				t.Fatalf("EncodeEvent failed: %v", err)
			}
			got, err := DecodeEvent(data)
			if err != nil {
				t.Fatalf("DecodeEvent failed: %v", err)
			}
			if !got.Timestamp.Equal(ts) {
				t.Errorf("Timestamp = %v, want %v", got.Timestamp, ts)
			}
			tt.check(t, got)
		})
	}
}

func TestEncoderDecoderStream(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for i := range 3 {
		if err := enc.Encode(Event{ConnectionID: string(rune('a' + i))}); err != nil {
			t.Fatal(err)
		}
	}

	dec := NewDecoder(&buf)
	for i := range 3 {
		var e Event
		if err := dec.Decode(&e); err != nil {
			t.Fatalf("Decode %d failed: %v", i, err)
		}
		if e.ConnectionID != string(rune('a'+i)) {
			t.Errorf("event %d ConnectionID = %q", i, e.ConnectionID)
		}
	}
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	if _, err := DecodeEvent([]byte{0xff, 0x00}); err == nil {
		t.Error("DecodeEvent accepted invalid CBOR")
	}
}
