package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ggerr"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ipc"
)

// Settings controls how ggipc connects and logs.
type Settings struct {
	Socket      string
	Token       string
	Component   string
	Timeout     time.Duration
	LogLevel    string
	ProtocolLog string
	ScratchSize int
}

// DefaultSettings returns the settings used when nothing else is given.
func DefaultSettings() Settings {
	return Settings{
		Timeout:     ipc.DefaultTimeout,
		LogLevel:    "warn",
		ScratchSize: 64 * 1024,
	}
}

// fileConfig is the on-disk form, shared by the YAML and TOML loaders.
type fileConfig struct {
	Socket      string `yaml:"socket" toml:"socket"`
	Token       string `yaml:"token" toml:"token"`
	Component   string `yaml:"component" toml:"component"`
	Timeout     string `yaml:"timeout" toml:"timeout"`
	LogLevel    string `yaml:"log_level" toml:"log_level"`
	ProtocolLog string `yaml:"protocol_log" toml:"protocol_log"`
	ScratchSize int    `yaml:"scratch_size" toml:"scratch_size"`
}

// loadSettings overlays the config file at path onto base. The format is
// chosen by extension: .toml is TOML, anything else YAML.
func loadSettings(path string, base Settings) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, ggerr.Wrap(ggerr.Config, "read config", err)
	}

	var raw fileConfig
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return base, ggerr.Wrap(ggerr.Config, "parse TOML config", err)
		}
	} else if err := yaml.Unmarshal(data, &raw); err != nil {
		return base, ggerr.Wrap(ggerr.Config, "parse YAML config", err)
	}

	return raw.apply(base)
}

func (raw fileConfig) apply(s Settings) (Settings, error) {
	if v := strings.TrimSpace(raw.Socket); v != "" {
		s.Socket = v
	}
	if v := strings.TrimSpace(raw.Token); v != "" {
		s.Token = v
	}
	if v := strings.TrimSpace(raw.Component); v != "" {
		s.Component = v
	}
	if v := strings.TrimSpace(raw.Timeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return s, ggerr.Wrap(ggerr.Config, "parse timeout", err)
		}
		s.Timeout = d
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		s.LogLevel = v
	}
	if v := strings.TrimSpace(raw.ProtocolLog); v != "" {
		s.ProtocolLog = v
	}
	if raw.ScratchSize < 0 {
		return s, ggerr.Errorf(ggerr.Config, "scratch_size must not be negative")
	}
	if raw.ScratchSize > 0 {
		s.ScratchSize = raw.ScratchSize
	}
	return s, nil
}

// applyEnv fills the connection settings the nucleus exports to components.
func (s Settings) applyEnv(getenv func(string) string) Settings {
	if v := getenv(ipc.EnvSocketPath); v != "" {
		s.Socket = v
	}
	if v := getenv(ipc.EnvSvcUID); v != "" {
		s.Token = v
	}
	return s
}

func (s Settings) validate() error {
	if s.Socket == "" {
		return ggerr.Errorf(ggerr.Config, "no socket path: use -socket, a config file or %s", ipc.EnvSocketPath)
	}
	if s.Token == "" && s.Component == "" {
		return ggerr.Errorf(ggerr.Config, "no credentials: use -token, -component or %s", ipc.EnvSvcUID)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ggerr.Config)
	}
	return nil
}
