package main

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ggerr"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ipc"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func noEnv(string) string { return "" }

func TestLoadSettingsYAML(t *testing.T) {
	path := writeFile(t, "ggipc.yaml", `
socket: /run/gg.sock
token: abc
timeout: 3s
scratch_size: 128
`)
	s, err := loadSettings(path, DefaultSettings())
	if err != nil {
		t.Fatalf("loadSettings failed: %v", err)
	}
	if s.Socket != "/run/gg.sock" || s.Token != "abc" || s.Timeout != 3*time.Second || s.ScratchSize != 128 {
		t.Errorf("unexpected settings %+v", s)
	}
	if s.LogLevel != "warn" {
		t.Errorf("expected default log level to survive, got %s", s.LogLevel)
	}
}

func TestLoadSettingsTOML(t *testing.T) {
	path := writeFile(t, "ggipc.toml", `
socket = "/run/gg.sock"
component = "Admin"
log_level = "debug"
protocol_log = "client.glog"
`)
	s, err := loadSettings(path, DefaultSettings())
	if err != nil {
		t.Fatalf("loadSettings failed: %v", err)
	}
	if s.Component != "Admin" || s.LogLevel != "debug" || s.ProtocolLog != "client.glog" {
		t.Errorf("unexpected settings %+v", s)
	}
}

func TestLoadSettingsErrors(t *testing.T) {
	tests := []struct {
		name, file, content string
	}{
		{"bad duration", "a.yaml", "timeout: soon"},
		{"negative scratch", "a.yaml", "scratch_size: -1"},
		{"bad toml", "a.toml", "socket = "},
		{"bad yaml", "a.yaml", "socket: [1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadSettings(writeFile(t, tt.file, tt.content), DefaultSettings())
			if !errors.Is(err, ggerr.Config) {
				t.Errorf("expected Config error, got %v", err)
			}
		})
	}

	if _, err := loadSettings(filepath.Join(t.TempDir(), "missing.yaml"), DefaultSettings()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseSettingsPrecedence(t *testing.T) {
	path := writeFile(t, "ggipc.yaml", "socket: /from/file\ntoken: file-token\ntimeout: 4s\n")
	env := map[string]string{
		ipc.EnvSocketPath: "/from/env",
		ipc.EnvSvcUID:     "env-token",
	}
	getenv := func(k string) string { return env[k] }

	s, rest, err := parseSettings([]string{"-config", path, "-token", "flag-token", "get-config", "a"}, io.Discard, getenv)
	if err != nil {
		t.Fatalf("parseSettings failed: %v", err)
	}
	if s.Socket != "/from/env" {
		t.Errorf("environment should override the file, got %s", s.Socket)
	}
	if s.Token != "flag-token" {
		t.Errorf("flags should override the environment, got %s", s.Token)
	}
	if s.Timeout != 4*time.Second {
		t.Errorf("unset flags must not override the file, got %s", s.Timeout)
	}
	if len(rest) != 2 || rest[0] != "get-config" {
		t.Errorf("unexpected remaining args %v", rest)
	}
}

func TestParseSettingsRequiresCommand(t *testing.T) {
	_, _, err := parseSettings([]string{"-socket", "/x"}, io.Discard, noEnv)
	if !errors.Is(err, errUsage) {
		t.Errorf("expected usage error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := DefaultSettings()

	s := base
	if err := s.validate(); !errors.Is(err, ggerr.Config) {
		t.Errorf("missing socket: expected Config error, got %v", err)
	}

	s.Socket = "/x"
	if err := s.validate(); !errors.Is(err, ggerr.Config) {
		t.Errorf("missing credentials: expected Config error, got %v", err)
	}

	s.Component = "Admin"
	if err := s.validate(); err != nil {
		t.Errorf("connect by name should validate: %v", err)
	}

	s.Timeout = 0
	if err := s.validate(); !errors.Is(err, ggerr.Config) {
		t.Errorf("zero timeout: expected Config error, got %v", err)
	}
}
