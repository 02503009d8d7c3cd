package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ipc"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-socket", "/tmp/x.sock", "-db", "n.db", "-status", "0"})
	if err != nil {
		t.Fatalf("parseFlags failed: %v", err)
	}
	if opts.Socket != "/tmp/x.sock" || opts.DBPath != "n.db" || opts.Status != 0 {
		t.Errorf("unexpected options %+v", opts)
	}
	if opts.LogLevel != "info" {
		t.Errorf("expected default log level info, got %s", opts.LogLevel)
	}

	if _, err := parseFlags([]string{"-socket", ""}); err == nil {
		t.Error("expected error for empty socket")
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger("DEBUG")
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug level enabled")
	}
	if _, err := newLogger("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

const deployYAML = `
components:
  Sensor:
    token: sensor-token
    configuration:
      interval: 5
`

func TestRunServesUntilCancelled(t *testing.T) {
	dir, err := os.MkdirTemp("", "ggn")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	configPath := filepath.Join(dir, "deploy.yaml")
	if err := os.WriteFile(configPath, []byte(deployYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	opts := Options{
		Socket:      filepath.Join(dir, "s"),
		ConfigFile:  configPath,
		DBPath:      filepath.Join(dir, "n.db"),
		ProtocolLog: filepath.Join(dir, "p.glog"),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, opts, logger) }()

	client := ipc.New(ipc.WithTimeout(time.Second))
	deadline := time.Now().Add(5 * time.Second)
	for {
		err := client.ConnectWithToken(context.Background(), opts.Socket, "sensor-token")
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("nucleus never accepted a connection: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	buf := make([]byte, 16)
	if err := client.UpdateState(context.Background(), ipc.StateRunning); err != nil {
		t.Errorf("UpdateState failed: %v", err)
	}
	if _, err := client.GetConfigStr(context.Background(), []string{"missing"}, "", buf); err == nil {
		t.Error("expected error for missing key")
	}
	client.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}

	if info, err := os.Stat(opts.ProtocolLog); err != nil || info.Size() == 0 {
		t.Errorf("expected protocol log to be written: %v", err)
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("denyTopics: ['a/#/b']"), 0o600); err != nil {
		t.Fatal(err)
	}
	err := run(context.Background(), Options{Socket: filepath.Join(dir, "s"), ConfigFile: path}, slog.Default())
	if err == nil {
		t.Error("expected error for invalid deny filter")
	}
}
