package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/eventstream"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/log"
)

var viewTS = time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)

func format(event log.Event) string {
	var buf bytes.Buffer
	formatEvent(&buf, event)
	return buf.String()
}

func expectContains(t *testing.T, output string, parts ...string) {
	t.Helper()
	for _, p := range parts {
		if !strings.Contains(output, p) {
			t.Errorf("expected %q in output:\n%s", p, output)
		}
	}
}

func TestFormatFrameEvent(t *testing.T) {
	output := format(log.Event{
		Timestamp:    viewTS,
		ConnectionID: "abc12345-6789-0123-4567-890abcdef012",
		Direction:    log.DirectionOut,
		Layer:        log.LayerFrame,
		Category:     log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size:        128,
			Data:        []byte{0xa1, 0x01},
			Truncated:   true,
			StreamID:    4,
			MessageType: int32(eventstream.MessageApplication),
			Flags:       2,
			Headers:     []string{"operation"},
		},
	})

	expectContains(t, output,
		"2026-01-28T10:15:32.123456Z",
		"[conn:abc12345]",
		"OUT FRAME Frame",
		"128 bytes",
		"Stream: 4",
		"Flags: 0x2",
		"Headers: operation",
		"a101 (truncated)",
	)
}

func TestFormatMessageEvent(t *testing.T) {
	rtt := 1500 * time.Microsecond
	output := format(log.Event{
		Timestamp:    viewTS,
		ConnectionID: "short",
		Direction:    log.DirectionIn,
		Layer:        log.LayerIPC,
		Category:     log.CategoryMessage,
		Component:    "Sensor",
		Message: &log.MessageEvent{
			Kind:             log.MessageKindError,
			StreamID:         7,
			Operation:        "aws.greengrass#GetConfiguration",
			ServiceModelType: "aws.greengrass#ResourceNotFoundError",
			ErrorCode:        "ResourceNotFoundError",
			Payload:          map[string]any{"_message": "missing"},
			ProcessingTime:   &rtt,
		},
	})

	expectContains(t, output,
		"[conn:short]",
		"IN  IPC ERROR (Sensor)",
		"Stream: 7",
		"Operation: aws.greengrass#GetConfiguration",
		"Model: aws.greengrass#ResourceNotFoundError",
		"ErrorCode: ResourceNotFoundError",
		"Duration: 1.500ms",
		`Payload: {"_message":"missing"}`,
	)
}

func TestFormatControlAndState(t *testing.T) {
	output := format(log.Event{
		Timestamp:  viewTS,
		Layer:      log.LayerFrame,
		Category:   log.CategoryControl,
		ControlMsg: &log.ControlMsgEvent{Type: log.ControlMsgTerminate, StreamID: 9},
	})
	expectContains(t, output, "CTRL TERMINATE", "Stream: 9")

	output = format(log.Event{
		Timestamp: viewTS,
		Layer:     log.LayerClient,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySubscription,
			OldState: "OPEN",
			NewState: "CLOSED",
			Reason:   "terminated by peer",
			StreamID: 2,
		},
	})
	expectContains(t, output, "CLIENT State", "Entity: SUBSCRIPTION 2", "OPEN -> CLOSED", "Reason: terminated by peer")
}

func TestFormatErrorEvent(t *testing.T) {
	output := format(log.Event{
		Timestamp: viewTS,
		Layer:     log.LayerIPC,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerIPC,
			Message: "stream closed",
			Kind:    "NOCONN",
			Context: "PublishToTopic",
		},
	})
	expectContains(t, output, "IPC Error", "Message: stream closed", "Kind: NOCONN", "Context: PublishToTopic")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Nanosecond, "0.500us"},
		{2500 * time.Microsecond, "2.500ms"},
		{1500 * time.Millisecond, "1.500s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %s, want %s", tt.d, got, tt.want)
		}
	}
}

func TestParseFlags(t *testing.T) {
	if l, err := ParseLayerFlag("ipc"); err != nil || l != log.LayerIPC {
		t.Errorf("ParseLayerFlag(ipc) = %v, %v", l, err)
	}
	if _, err := ParseLayerFlag("transport"); err == nil {
		t.Error("expected error for unknown layer")
	}
	if d, err := ParseDirectionFlag("Out"); err != nil || d != log.DirectionOut {
		t.Errorf("ParseDirectionFlag(Out) = %v, %v", d, err)
	}
	if c, err := ParseCategoryFlag("control"); err != nil || c != log.CategoryControl {
		t.Errorf("ParseCategoryFlag(control) = %v, %v", c, err)
	}
}

func TestRunViewFiltersByComponent(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunView(path, log.Filter{Component: "Sensor"}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	output := buf.String()
	if n := strings.Count(output, "(Sensor)"); n != 2 {
		t.Errorf("expected 2 Sensor events, got %d:\n%s", n, output)
	}
	if strings.Contains(output, "Frame") {
		t.Errorf("frame event should be filtered out:\n%s", output)
	}
}
