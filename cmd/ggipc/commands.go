package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/arena"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ggerr"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ipc"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/subscription"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/wire"
)

// errUsage reports a command invoked with bad arguments.
var errUsage = errors.New("usage")

// command is one ggipc subcommand, usable both from the command line and
// the shell.
type command struct {
	name    string
	args    string
	summary string
	run     func(ctx context.Context, s *session, args []string) error
}

var commands = []command{
	{"get-config", "[-component C] <key>...", "Read a configuration value", cmdGetConfig},
	{"update-config", "[-timestamp T] <key>... <json>", "Merge a JSON value into the configuration", cmdUpdateConfig},
	{"watch-config", "[-component C] <key>...", "Print configuration changes under a key path", cmdWatchConfig},
	{"update-state", "<RUNNING|ERRORED>", "Report this component's state", cmdUpdateState},
	{"restart", "<component>", "Restart a component", cmdRestart},
	{"publish", "[-binary] <topic> <payload>", "Publish a JSON object (or raw text) to a local topic", cmdPublish},
	{"subscribe", "<topic>", "Print messages on a local topic", cmdSubscribe},
	{"iot-publish", "[-qos N] <topic> <payload>", "Publish to an IoT Core topic", cmdIoTPublish},
	{"iot-subscribe", "[-qos N] <filter>", "Print IoT Core messages matching a filter", cmdIoTSubscribe},
	{"system-config", "<key>", "Read a nucleus system setting", cmdSystemConfig},
}

func lookupCommand(name string) (command, bool) {
	i := slices.IndexFunc(commands, func(c command) bool { return c.name == name })
	if i < 0 {
		return command{}, false
	}
	return commands[i], true
}

// session is a connected client plus the subscriptions opened through it.
type session struct {
	client  *ipc.Client
	scratch int

	mu   sync.Mutex
	out  io.Writer
	subs []*subscription.Subscription
	desc []string
}

func newSession(client *ipc.Client, out io.Writer, scratch int) *session {
	return &session{client: client, out: out, scratch: scratch}
}

// printf writes to the session output. Subscription callbacks call it from
// other goroutines.
func (s *session) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *session) track(sub *subscription.Subscription, desc string) {
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.desc = append(s.desc, desc)
	n := len(s.subs)
	s.mu.Unlock()
	s.printf("subscribed [%d] %s\n", n, desc)
}

// active returns the number of subscriptions still delivering.
func (s *session) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sub := range s.subs {
		if sub.Active() {
			n++
		}
	}
	return n
}

// wait blocks while any subscription is delivering, until ctx is done.
func (s *session) wait(ctx context.Context) error {
	defer s.closeAll()
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for s.active() > 0 {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

func (s *session) listSubs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subs) == 0 {
		fmt.Fprintln(s.out, "No subscriptions")
		return
	}
	for i, sub := range s.subs {
		state := "active"
		if !sub.Active() {
			state = "closed"
		}
		fmt.Fprintf(s.out, "  [%d] %-6s %s\n", i+1, state, s.desc[i])
	}
}

func (s *session) unsubscribe(n int) error {
	s.mu.Lock()
	if n < 1 || n > len(s.subs) {
		s.mu.Unlock()
		return ggerr.Errorf(ggerr.Range, "no subscription %d", n)
	}
	sub := s.subs[n-1]
	s.mu.Unlock()
	// Close blocks until a running callback returns, and callbacks take mu.
	sub.Close()
	return nil
}

func (s *session) closeAll() {
	s.mu.Lock()
	subs := slices.Clone(s.subs)
	s.mu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}
}

// exec runs one shell line.
func (s *session) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "subs":
		s.listSubs()
		return nil
	case "unsubscribe", "unsub":
		if len(args) != 1 {
			return fmt.Errorf("%w: unsubscribe <n>", errUsage)
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("%w: unsubscribe <n>", errUsage)
		}
		return s.unsubscribe(n)
	}

	cmd, ok := lookupCommand(name)
	if !ok {
		return fmt.Errorf("unknown command: %s (type 'help' for commands)", name)
	}
	return cmd.run(ctx, s, args)
}

// flagSet returns a quiet flag set for command options.
func flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string, min int, synopsis string) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %s %s", errUsage, fs.Name(), synopsis)
	}
	if fs.NArg() < min {
		return nil, fmt.Errorf("%w: %s %s", errUsage, fs.Name(), synopsis)
	}
	return fs.Args(), nil
}

func (s *session) arena() *arena.Arena {
	return arena.New(make([]byte, s.scratch))
}

func cmdGetConfig(ctx context.Context, s *session, args []string) error {
	fs := flagSet("get-config")
	component := fs.String("component", "", "component to read (default: own)")
	keys, err := parse(fs, args, 0, "[-component C] <key>...")
	if err != nil {
		return err
	}

	v, err := s.client.GetConfig(ctx, keys, *component, s.arena())
	if err != nil {
		return err
	}
	s.printf("%s\n", v.String())
	return nil
}

func cmdUpdateConfig(ctx context.Context, s *session, args []string) error {
	fs := flagSet("update-config")
	ts := fs.Float64("timestamp", 0, "update time in seconds since the epoch (default: now)")
	rest, err := parse(fs, args, 1, "[-timestamp T] <key>... <json>")
	if err != nil {
		return err
	}

	keys, doc := rest[:len(rest)-1], rest[len(rest)-1]
	value, err := wire.DecodeJSON([]byte(doc), s.arena())
	if err != nil {
		return err
	}

	var when *time.Time
	if *ts != 0 {
		sec, frac := math.Modf(*ts)
		t := time.Unix(int64(sec), int64(frac*1e9))
		when = &t
	}
	return s.client.UpdateConfig(ctx, keys, when, value)
}

func cmdWatchConfig(ctx context.Context, s *session, args []string) error {
	fs := flagSet("watch-config")
	component := fs.String("component", "", "component to watch (default: own)")
	keys, err := parse(fs, args, 0, "[-component C] <key>...")
	if err != nil {
		return err
	}

	sub, err := s.client.SubscribeToConfigurationUpdate(ctx, *component, keys, func(component string, keyPath []string) {
		s.printf("config %s: %s changed\n", component, strings.Join(keyPath, "."))
	})
	if err != nil {
		return err
	}
	desc := "config " + strings.Join(keys, ".")
	if *component != "" {
		desc = "config " + *component + ":" + strings.Join(keys, ".")
	}
	s.track(sub, desc)
	return nil
}

func cmdUpdateState(ctx context.Context, s *session, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: update-state <RUNNING|ERRORED>", errUsage)
	}
	state, ok := ipc.ParseComponentState(strings.ToUpper(args[0]))
	if !ok {
		return ggerr.Errorf(ggerr.Invalid, "unknown state %q", args[0])
	}
	return s.client.UpdateState(ctx, state)
}

func cmdRestart(ctx context.Context, s *session, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: restart <component>", errUsage)
	}
	if err := s.client.RestartComponent(ctx, args[0]); err != nil {
		return err
	}
	s.printf("restarted %s\n", args[0])
	return nil
}

func cmdPublish(ctx context.Context, s *session, args []string) error {
	fs := flagSet("publish")
	binary := fs.Bool("binary", false, "publish the payload as raw bytes")
	rest, err := parse(fs, args, 2, "[-binary] <topic> <payload>")
	if err != nil {
		return err
	}

	topic, payload := rest[0], strings.Join(rest[1:], " ")
	if *binary {
		return s.client.PublishToTopicBinary(ctx, topic, []byte(payload))
	}

	v, err := wire.DecodeJSON([]byte(payload), s.arena())
	if err != nil {
		return err
	}
	m, ok := v.AsMap()
	if !ok {
		return ggerr.Errorf(ggerr.Invalid, "JSON payload must be an object (use -binary for raw text)")
	}
	return s.client.PublishToTopicJSON(ctx, topic, m)
}

func cmdSubscribe(ctx context.Context, s *session, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: subscribe <topic>", errUsage)
	}
	sub, err := s.client.SubscribeToTopic(ctx, args[0], func(topic string, payload ipc.TopicPayload) {
		switch p := payload.(type) {
		case ipc.JSONPayload:
			s.printf("%s: %s\n", topic, p.Map.Object().String())
		case ipc.BinaryPayload:
			s.printf("%s: %q\n", topic, p.Data)
		}
	})
	if err != nil {
		return err
	}
	s.track(sub, "topic "+args[0])
	return nil
}

func qosFlag(fs *flag.FlagSet) *uint {
	return fs.Uint("qos", uint(ipc.QosAtLeastOnce), "MQTT QoS (0-2)")
}

func cmdIoTPublish(ctx context.Context, s *session, args []string) error {
	fs := flagSet("iot-publish")
	qos := qosFlag(fs)
	rest, err := parse(fs, args, 2, "[-qos N] <topic> <payload>")
	if err != nil {
		return err
	}
	if *qos > math.MaxUint8 {
		return ggerr.Errorf(ggerr.Invalid, "QoS %d out of range", *qos)
	}
	return s.client.PublishToIoTCore(ctx, rest[0], []byte(strings.Join(rest[1:], " ")), ipc.Qos(*qos))
}

func cmdIoTSubscribe(ctx context.Context, s *session, args []string) error {
	fs := flagSet("iot-subscribe")
	qos := qosFlag(fs)
	rest, err := parse(fs, args, 1, "[-qos N] <filter>")
	if err != nil {
		return err
	}
	if *qos > math.MaxUint8 {
		return ggerr.Errorf(ggerr.Invalid, "QoS %d out of range", *qos)
	}
	sub, err := s.client.SubscribeToIoTCore(ctx, rest[0], ipc.Qos(*qos), func(topic string, payload []byte) {
		s.printf("%s: %q\n", topic, payload)
	})
	if err != nil {
		return err
	}
	s.track(sub, "iot "+rest[0])
	return nil
}

func cmdSystemConfig(ctx context.Context, s *session, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: system-config <key>", errUsage)
	}
	v, err := s.client.PrivateGetSystemConfig(ctx, args[0], make([]byte, s.scratch))
	if err != nil {
		return err
	}
	s.printf("%s\n", v)
	return nil
}
