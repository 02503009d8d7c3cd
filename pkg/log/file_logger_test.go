package log

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestFileLoggerOwnerOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ipc.cbor")
	l, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	defer l.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		t.Errorf("log file mode = %v, want owner-only", perm)
	}
}

func TestFileLoggerAppendsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ipc.cbor")
	for _, op := range []string{"aws.greengrass#UpdateState", "aws.greengrass#RestartComponent"} {
		l, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("NewFileLogger: %v", err)
		}
		l.Log(Event{Timestamp: time.Now(), Layer: LayerIPC, Message: &MessageEvent{Kind: MessageKindRequest, Operation: op}})
		if err := l.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}

	got := readAll(t, path, Filter{})
	if len(got) != 2 {
		t.Fatalf("read %d events, want 2", len(got))
	}
	if got[0].Message.Operation != "aws.greengrass#UpdateState" || got[1].Message.Operation != "aws.greengrass#RestartComponent" {
		t.Errorf("operations = %q, %q", got[0].Message.Operation, got[1].Message.Operation)
	}
}

func TestFileLoggerConcurrentStreams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ipc.cbor")
	l, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}

	const streams, events = 8, 50
	var wg sync.WaitGroup
	for s := 1; s <= streams; s++ {
		wg.Add(1)
		go func(stream int32) {
			defer wg.Done()
			for range events {
				l.Log(Event{Timestamp: time.Now(), Layer: LayerFrame, Frame: &FrameEvent{Size: 16, StreamID: stream}})
			}
		}(int32(s))
	}
	wg.Wait()
	l.Close()

	for s := int32(1); s <= streams; s++ {
		if got := readAll(t, path, Filter{StreamID: &s}); len(got) != events {
			t.Errorf("stream %d: %d events, want %d", s, len(got), events)
		}
	}
	if l.Dropped() != 0 {
		t.Errorf("Dropped = %d", l.Dropped())
	}
}

func TestFileLoggerCountsUnencodable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ipc.cbor")
	l, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	defer l.Close()

	l.Log(Event{Message: &MessageEvent{Payload: make(chan int)}})
	l.Log(Event{Message: &MessageEvent{Payload: map[string]any{"ok": true}}})
	if l.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", l.Dropped())
	}
}

func TestFileLoggerCloseIsFinal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ipc.cbor")
	l, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	l.Log(Event{ConnectionID: "before"})
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
	l.Log(Event{ConnectionID: "after"})

	got := readAll(t, path, Filter{})
	if len(got) != 1 || got[0].ConnectionID != "before" {
		t.Errorf("events = %+v", got)
	}
}

func TestFileLoggerBadPath(t *testing.T) {
	if _, err := NewFileLogger(filepath.Join(t.TempDir(), "missing", "ipc.cbor")); err == nil {
		t.Error("NewFileLogger in a missing directory succeeded")
	}
}
