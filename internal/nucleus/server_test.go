package nucleus_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cookpate/aws-greengrass-sdk-lite/internal/nucleus"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/arena"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ggerr"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ipc"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/object"
)

const testDeployment = `
components:
  com.example.Sensor:
    token: sensor-token
    configuration:
      net:
        host: broker.local
        port: 8883
      name: sensor
  com.example.Logger:
    token: logger-token
  com.example.Privileged: {}
system:
  thingName: dev-thing
denyTopics:
  - secret/#
`

// socketPath returns a short socket path; t.TempDir can exceed the unix
// socket path limit.
func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "ggn")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "ipc.sock")
}

func startNucleus(t *testing.T, config nucleus.ServerConfig) *nucleus.Server {
	t.Helper()
	deploy, err := nucleus.ParseConfig([]byte(testDeployment))
	require.NoError(t, err)

	if config.SocketPath == "" {
		config.SocketPath = socketPath(t)
	}
	srv, err := nucleus.NewServer(deploy, config)
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { srv.Stop() })
	return srv
}

func connect(t *testing.T, path, token string) *ipc.Client {
	t.Helper()
	c := ipc.New(ipc.WithTimeout(2 * time.Second))
	require.NoError(t, c.ConnectWithToken(context.Background(), path, token))
	t.Cleanup(func() { c.Close() })
	return c
}

func TestConnect(t *testing.T) {
	path := socketPath(t)
	srv := startNucleus(t, nucleus.ServerConfig{SocketPath: path})
	ctx := context.Background()

	connect(t, path, "sensor-token")
	assert.Eventually(t, func() bool { return srv.ConnectionCount() == 1 }, time.Second, 5*time.Millisecond)

	err := ipc.New().ConnectWithToken(ctx, path, "wrong")
	assert.Error(t, err)

	byName := ipc.New()
	svcuid, err := byName.ConnectByName(ctx, path, "com.example.Privileged")
	require.NoError(t, err)
	assert.NotEmpty(t, svcuid)
	defer byName.Close()

	// The issued svcuid authenticates later connections.
	connect(t, path, svcuid)
}

func TestGetConfiguration(t *testing.T) {
	path := socketPath(t)
	startNucleus(t, nucleus.ServerConfig{SocketPath: path})
	c := connect(t, path, "sensor-token")
	ctx := context.Background()

	host, err := c.GetConfigStr(ctx, []string{"net", "host"}, "", make([]byte, 64))
	require.NoError(t, err)
	assert.Equal(t, "broker.local", host)

	scratch := arena.New(make([]byte, 1024))
	port, err := c.GetConfig(ctx, []string{"net", "port"}, "", scratch)
	require.NoError(t, err)
	assert.Equal(t, "8883", port.String())

	net, err := c.GetConfig(ctx, []string{"net"}, "", scratch)
	require.NoError(t, err)
	assert.Equal(t, `{"host":"broker.local","port":8883}`, net.String())

	// Another component's configuration.
	other := connect(t, path, "logger-token")
	name, err := other.GetConfigStr(ctx, []string{"name"}, "com.example.Sensor", make([]byte, 16))
	require.NoError(t, err)
	assert.Equal(t, "sensor", name)

	_, err = c.GetConfig(ctx, []string{"missing"}, "", nil)
	assert.ErrorIs(t, err, ggerr.Noentry)
	var re *ggerr.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, nucleus.CodeResourceNotFound, re.Code)

	_, err = c.GetConfigStr(ctx, []string{"net", "host"}, "", make([]byte, 3))
	assert.ErrorIs(t, err, ggerr.Nomem)
}

func TestUpdateConfiguration(t *testing.T) {
	path := socketPath(t)
	store, err := nucleus.NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()
	srv := startNucleus(t, nucleus.ServerConfig{SocketPath: path, Store: store})
	c := connect(t, path, "sensor-token")
	ctx := context.Background()

	newer := time.Unix(2000, 0)
	require.NoError(t, c.UpdateConfig(ctx, []string{"net", "port"}, &newer, object.I64[object.Shared](443)))
	v, _ := srv.Configuration("com.example.Sensor", "net", "port")
	assert.Equal(t, int64(443), v)

	// An older write is ignored.
	older := time.Unix(1000, 0)
	require.NoError(t, c.UpdateConfig(ctx, []string{"net", "port"}, &older, object.I64[object.Shared](1)))
	v, _ = srv.Configuration("com.example.Sensor", "net", "port")
	assert.Equal(t, int64(443), v)

	leaves, err := store.Leaves()
	require.NoError(t, err)
	require.Len(t, leaves, 1)
	assert.Equal(t, []string{"net", "port"}, leaves[0].Path)
	assert.Equal(t, 2000.0, leaves[0].Timestamp)
}

func TestStoredConfigurationSurvivesRestart(t *testing.T) {
	store, err := nucleus.NewStore(filepath.Join(t.TempDir(), "nucleus.db"))
	require.NoError(t, err)
	defer store.Close()

	path := socketPath(t)
	srv := startNucleus(t, nucleus.ServerConfig{SocketPath: path, Store: store})
	c := connect(t, path, "sensor-token")
	require.NoError(t, c.UpdateConfig(context.Background(), []string{"name"}, nil, object.Buf[object.Shared]("renamed")))
	require.NoError(t, c.Close())
	require.NoError(t, srv.Stop())

	restarted := startNucleus(t, nucleus.ServerConfig{Store: store})
	v, ok := restarted.Configuration("com.example.Sensor", "name")
	require.True(t, ok)
	assert.Equal(t, "renamed", v)
}

func TestConfigurationUpdateSubscription(t *testing.T) {
	path := socketPath(t)
	srv := startNucleus(t, nucleus.ServerConfig{SocketPath: path})
	c := connect(t, path, "sensor-token")
	ctx := context.Background()

	type change struct {
		component string
		keyPath   []string
	}
	changes := make(chan change, 4)
	sub, err := c.SubscribeToConfigurationUpdate(ctx, "", []string{"net"}, func(component string, keyPath []string) {
		changes <- change{component, keyPath}
	})
	require.NoError(t, err)

	require.NoError(t, c.UpdateConfig(ctx, []string{"name"}, nil, object.Buf[object.Shared]("ignored")))
	require.NoError(t, c.UpdateConfig(ctx, []string{"net", "host"}, nil, object.Buf[object.Shared]("other")))

	select {
	case got := <-changes:
		assert.Equal(t, change{"com.example.Sensor", []string{"net", "host"}}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no configuration update event")
	}
	assert.Empty(t, changes)

	sub.Close()
	assert.Eventually(t, func() bool { return srv.SubscriptionCount() == 0 }, time.Second, 5*time.Millisecond)

	_, err = c.SubscribeToConfigurationUpdate(ctx, "com.example.Unknown", nil, func(string, []string) {})
	assert.ErrorIs(t, err, ggerr.Noentry)
}

func TestComponentLifecycle(t *testing.T) {
	path := socketPath(t)
	srv := startNucleus(t, nucleus.ServerConfig{SocketPath: path})
	c := connect(t, path, "sensor-token")
	ctx := context.Background()

	require.NoError(t, c.UpdateState(ctx, ipc.StateRunning))
	assert.Equal(t, "RUNNING", srv.ComponentState("com.example.Sensor"))

	require.NoError(t, c.RestartComponent(ctx, "com.example.Logger"))
	assert.ErrorIs(t, c.RestartComponent(ctx, "com.example.Missing"), ggerr.Failure)
}

func TestPubSub(t *testing.T) {
	path := socketPath(t)
	startNucleus(t, nucleus.ServerConfig{SocketPath: path})
	pub := connect(t, path, "sensor-token")
	subClient := connect(t, path, "logger-token")
	ctx := context.Background()

	var mu sync.Mutex
	var got []string
	received := make(chan struct{}, 4)
	sub, err := subClient.SubscribeToTopic(ctx, "sensors/+/temp", func(topic string, p ipc.TopicPayload) {
		mu.Lock()
		defer mu.Unlock()
		switch p := p.(type) {
		case ipc.JSONPayload:
			got = append(got, topic+" "+p.Map.Object().String())
		case ipc.BinaryPayload:
			got = append(got, topic+" "+string(p.Data))
		}
		received <- struct{}{}
	})
	require.NoError(t, err)
	defer sub.Close()

	payload, _ := object.NewMap(object.NewKV("c", object.F64[object.Shared](21.5))).AsMap()
	require.NoError(t, pub.PublishToTopicJSON(ctx, "sensors/1/temp", payload))
	require.NoError(t, pub.PublishToTopicBinary(ctx, "sensors/2/temp", []byte("raw")))
	require.NoError(t, pub.PublishToTopicBinary(ctx, "sensors/2/humidity", []byte("skip")))

	for range 2 {
		select {
		case <-received:
		case <-time.After(2 * time.Second):
			t.Fatal("missing topic message")
		}
	}
	mu.Lock()
	assert.Equal(t, []string{`sensors/1/temp {"c":21.5}`, "sensors/2/temp raw"}, got)
	mu.Unlock()

	err = pub.PublishToTopicBinary(ctx, "secret/key", []byte("x"))
	assert.ErrorIs(t, err, ggerr.Unsupported)
	_, err = subClient.SubscribeToTopic(ctx, "secret/#", func(string, ipc.TopicPayload) {})
	assert.ErrorIs(t, err, ggerr.Unsupported)
}

func TestIoTCoreLoopback(t *testing.T) {
	path := socketPath(t)
	startNucleus(t, nucleus.ServerConfig{SocketPath: path})
	c := connect(t, path, "sensor-token")
	ctx := context.Background()

	type message struct {
		topic   string
		payload string
	}
	messages := make(chan message, 2)
	sub, err := c.SubscribeToIoTCore(ctx, "dt/#", ipc.QosAtLeastOnce, func(topic string, payload []byte) {
		messages <- message{topic, string(payload)}
	})
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, c.PublishToIoTCore(ctx, "dt/device/1", []byte("hello"), ipc.QosAtMostOnce))
	select {
	case m := <-messages:
		assert.Equal(t, message{"dt/device/1", "hello"}, m)
	case <-time.After(2 * time.Second):
		t.Fatal("no IoT Core message")
	}

	assert.ErrorIs(t, c.PublishToIoTCore(ctx, "secret/x", nil, ipc.QosAtMostOnce), ggerr.Unsupported)
}

func TestSystemConfig(t *testing.T) {
	path := socketPath(t)
	startNucleus(t, nucleus.ServerConfig{SocketPath: path})
	c := connect(t, path, "sensor-token")
	ctx := context.Background()

	thing, err := c.PrivateGetSystemConfig(ctx, "thingName", make([]byte, 32))
	require.NoError(t, err)
	assert.Equal(t, "dev-thing", thing)

	_, err = c.PrivateGetSystemConfig(ctx, "missing", make([]byte, 32))
	assert.ErrorIs(t, err, ggerr.Failure)
}

func TestUnknownOperation(t *testing.T) {
	path := socketPath(t)
	startNucleus(t, nucleus.ServerConfig{SocketPath: path})
	c := connect(t, path, "sensor-token")

	params, _ := object.NewMap[object.Shared]().AsMap()
	err := c.Call(context.Background(), "aws.greengrass#ListComponents", "aws.greengrass#ListComponentsRequest", params, nil)
	var re *ggerr.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, nucleus.CodeServiceError, re.Code)
}

func TestDisconnectDropsSubscriptions(t *testing.T) {
	path := socketPath(t)
	srv := startNucleus(t, nucleus.ServerConfig{SocketPath: path})
	c := ipc.New()
	require.NoError(t, c.ConnectWithToken(context.Background(), path, "logger-token"))

	_, err := c.SubscribeToTopic(context.Background(), "a/#", func(string, ipc.TopicPayload) {})
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return srv.SubscriptionCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Close())
	assert.Eventually(t, func() bool { return srv.SubscriptionCount() == 0 }, time.Second, 5*time.Millisecond)
}
