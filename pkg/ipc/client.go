package ipc

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/eventstream"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ggerr"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/log"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/subscription"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/transport"
)

// Environment variables set by the nucleus for a component process.
const (
	EnvSocketPath = "AWS_GG_NUCLEUS_DOMAIN_SOCKET_FILEPATH_FOR_COMPONENT"
	EnvSvcUID     = "SVCUID"
)

// DefaultTimeout bounds a request when the context carries no earlier
// deadline.
const DefaultTimeout = 10 * time.Second

// MaxKeyPathLen is the maximum number of segments in a configuration key
// path.
const MaxKeyPathLen = 14

// Client errors.
var (
	ErrAlreadyConnected = fmt.Errorf("%w: client already connected", ggerr.Failure)
	ErrNotConnected     = fmt.Errorf("%w: client not connected", ggerr.Noconn)
	ErrMissingEnv       = fmt.Errorf("%w: %s and %s must be set", ggerr.Config, EnvSocketPath, EnvSvcUID)
	ErrKeyPathTooLong   = fmt.Errorf("%w: key path longer than %d segments", ggerr.Range, MaxKeyPathLen)
)

// Transport carries eventstream messages for the client. It is implemented
// by *transport.Conn.
type Transport interface {
	// OpenStream allocates a stream and routes its messages to h.
	OpenStream(h transport.StreamHandler) (int32, error)

	// Send writes one message.
	Send(m *eventstream.Message) error

	// CloseStream ends a stream. Unknown streams are ignored.
	CloseStream(id int32) error

	// Close closes the connection.
	Close() error
}

var _ Transport = (*transport.Conn)(nil)

// DialFunc opens a connection and returns it together with the svcuid in
// effect.
type DialFunc func(ctx context.Context, path string, creds transport.Credentials) (Transport, string, error)

// ConnState is the client's connection state.
type ConnState uint8

const (
	// Disconnected means no connect has succeeded yet.
	Disconnected ConnState = iota

	// Connected means a connect succeeded. The state never goes back.
	Connected
)

// String returns the state name.
func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Config configures a Client.
type Config struct {
	// Timeout bounds each request (default: DefaultTimeout).
	Timeout time.Duration

	// Transport configures the default dialer.
	Transport transport.Config

	// MaxSubscriptions bounds concurrent subscriptions (default: 15).
	MaxSubscriptions int

	// Logger receives operational logs (default: slog.Default()).
	Logger *slog.Logger

	// ProtocolLogger receives request, response and stream events
	// (optional). It is also handed to the default dialer.
	ProtocolLogger log.Logger

	// Dial opens connections (default: transport.Dial).
	Dial DialFunc
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:          DefaultTimeout,
		Transport:        transport.DefaultConfig(),
		MaxSubscriptions: subscription.DefaultMaxSubscriptions,
	}
}

// Option adjusts a Config.
type Option func(*Config)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithProtocolLogger sets the protocol event logger.
func WithProtocolLogger(l log.Logger) Option {
	return func(c *Config) {
		c.ProtocolLogger = l
	}
}

// WithTransportConfig sets the configuration used by the default dialer.
func WithTransportConfig(tc transport.Config) Option {
	return func(c *Config) {
		c.Transport = tc
	}
}

// WithMaxSubscriptions bounds concurrent subscriptions.
func WithMaxSubscriptions(n int) Option {
	return func(c *Config) {
		c.MaxSubscriptions = n
	}
}

// WithDialer replaces the dialer.
func WithDialer(d DialFunc) Option {
	return func(c *Config) {
		c.Dial = d
	}
}

// Client is a connection to the nucleus IPC server and the operations it
// offers. A Client connects at most once. All methods are safe for
// concurrent use.
type Client struct {
	config Config
	logger *slog.Logger
	subs   *subscription.Registry

	mu     sync.Mutex
	state  ConnState
	conn   Transport
	svcuid string
	connID string
}

// New returns a disconnected client.
func New(opts ...Option) *Client {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Dial == nil {
		config.Dial = dialer(config)
	}

	return &Client{
		config: config,
		logger: config.Logger,
		subs: subscription.NewRegistryWithConfig(subscription.Config{
			MaxSubscriptions: config.MaxSubscriptions,
			Logger:           config.Logger,
		}),
	}
}

func dialer(config Config) DialFunc {
	tc := config.Transport
	if tc.Logger == nil {
		tc.Logger = config.Logger
	}
	if tc.ProtocolLogger == nil {
		tc.ProtocolLogger = config.ProtocolLogger
	}
	return func(ctx context.Context, path string, creds transport.Credentials) (Transport, string, error) {
		conn, err := transport.Dial(ctx, path, creds, tc)
		if err != nil {
			return nil, "", err
		}
		return conn, conn.SvcUID(), nil
	}
}

// Connect connects using the socket path and auth token the nucleus places
// in the environment.
func (c *Client) Connect(ctx context.Context) error {
	path := os.Getenv(EnvSocketPath)
	token := os.Getenv(EnvSvcUID)
	if path == "" || token == "" {
		return ErrMissingEnv
	}
	return c.ConnectWithToken(ctx, path, token)
}

// ConnectWithToken connects to the socket at path and authenticates with
// token.
func (c *Client) ConnectWithToken(ctx context.Context, path, token string) error {
	_, err := c.connect(ctx, path, transport.Credentials{AuthToken: token})
	return err
}

// ConnectByName connects to the socket at path as componentName and returns
// the svcuid the nucleus issued. Only privileged processes may connect by
// name.
func (c *Client) ConnectByName(ctx context.Context, path, componentName string) (string, error) {
	return c.connect(ctx, path, transport.Credentials{ComponentName: componentName})
}

func (c *Client) connect(ctx context.Context, path string, creds transport.Credentials) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Connected {
		return "", ErrAlreadyConnected
	}

	conn, svcuid, err := c.config.Dial(ctx, path, creds)
	if err != nil {
		c.logger.Error("connect failed", "socket", path, "error", err)
		return "", err
	}

	c.conn = conn
	c.svcuid = svcuid
	c.state = Connected
	if tc, ok := conn.(*transport.Conn); ok {
		c.connID = tc.ID()
	}
	c.logger.Info("connected to nucleus", "socket", path)
	return svcuid, nil
}

// State returns the connection state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SvcUID returns the auth token in use, or "" before connect.
func (c *Client) SvcUID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.svcuid
}

// Subscriptions returns the number of open subscriptions.
func (c *Client) Subscriptions() int {
	return c.subs.Count()
}

// Close closes every subscription and the connection. The client stays in
// the Connected state; later requests fail with ggerr.Noconn.
func (c *Client) Close() error {
	c.subs.CloseAll()

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (c *Client) transport() (Transport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}
