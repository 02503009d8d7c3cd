package nucleus

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ggerr"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/log"
)

// Config is the deployment the nucleus serves, usually loaded from YAML:
//
//	components:
//	  com.example.Sensor:
//	    token: sensor-token
//	    configuration:
//	      interval: 5
//	system:
//	  thingName: dev-thing
//	denyTopics:
//	  - secret/#
type Config struct {
	// Components are the components allowed to connect, keyed by name.
	Components map[string]ComponentConfig `yaml:"components"`

	// System holds the values served by the private GetSystemConfig
	// operation.
	System map[string]string `yaml:"system"`

	// DenyTopics are topic filters no component may publish or subscribe
	// to, locally or on IoT Core.
	DenyTopics []string `yaml:"denyTopics"`
}

// ComponentConfig describes one component.
type ComponentConfig struct {
	// Token authenticates the component. Components without a token can
	// only connect by name.
	Token string `yaml:"token"`

	// Configuration is the component's initial configuration tree.
	Configuration map[string]any `yaml:"configuration"`
}

// LoadConfig reads a deployment from a YAML file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML deployment.
func ParseConfig(data []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, ggerr.Wrap(ggerr.Config, "parse nucleus config", err)
	}
	for _, f := range c.DenyTopics {
		if !ValidFilter(f) {
			return Config{}, ggerr.Errorf(ggerr.Config, "invalid deny topic filter %q", f)
		}
	}
	return c, nil
}

// ServerConfig configures the nucleus server.
type ServerConfig struct {
	// SocketPath is the unix socket the server listens on. Required.
	SocketPath string

	// MaxMessageSize bounds messages in both directions (default: 10000).
	MaxMessageSize uint32

	// Store persists configuration and component state (optional).
	Store *Store

	// Logger receives operational logs (default: slog.Default()).
	Logger *slog.Logger

	// ProtocolLogger receives protocol events (optional).
	ProtocolLogger log.Logger

	// Now returns the current time (default: time.Now).
	Now func() time.Time
}
