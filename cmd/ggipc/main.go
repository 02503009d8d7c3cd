// Command ggipc talks to the nucleus IPC server from the command line.
//
// Usage:
//
//	ggipc [flags] <command> [args]
//
// Connection settings come from flags, then an optional config file (YAML,
// or TOML when the name ends in .toml), then the environment variables the
// nucleus sets for components.
//
// Examples:
//
//	# Read a value of the calling component
//	ggipc get-config net host
//
//	# Connect by name and watch another component's configuration
//	ggipc -socket /tmp/ggipc.sock -component Admin watch-config -component Sensor net
//
//	# Interactive shell
//	ggipc -config ggipc.toml shell
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ipc"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
	case errors.Is(err, errUsage):
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprint(w, "ggipc - Greengrass IPC command line client\n\nUsage:\n  ggipc [flags] <command> [args]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-14s %-32s %s\n", c.name, c.args, c.summary)
	}
	fmt.Fprintf(w, "  %-14s %-32s %s\n", "shell", "", "Interactive shell")
	fmt.Fprint(w, "\nFlags:\n")
	fs.SetOutput(w)
	fs.PrintDefaults()
}

// parseSettings resolves settings from defaults, the config file, the
// environment and explicitly set flags, in that order.
func parseSettings(args []string, stderr io.Writer, getenv func(string) string) (Settings, []string, error) {
	fs := flag.NewFlagSet("ggipc", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	defaults := DefaultSettings()
	var flags Settings
	configPath := fs.String("config", "", "Config file (YAML or TOML)")
	fs.StringVar(&flags.Socket, "socket", "", "Nucleus IPC socket path")
	fs.StringVar(&flags.Token, "token", "", "Auth token (svcuid)")
	fs.StringVar(&flags.Component, "component", "", "Connect by component name instead of token")
	fs.DurationVar(&flags.Timeout, "timeout", defaults.Timeout, "Request timeout")
	fs.StringVar(&flags.LogLevel, "log-level", defaults.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&flags.ProtocolLog, "protocol-log", "", "Write CBOR protocol events to this file")
	fs.IntVar(&flags.ScratchSize, "scratch", defaults.ScratchSize, "Bytes reserved for decoded values")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			usage(stderr, fs)
			return Settings{}, nil, err
		}
		return Settings{}, nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() == 0 {
		usage(stderr, fs)
		return Settings{}, nil, fmt.Errorf("%w: command required", errUsage)
	}

	settings := defaults
	if *configPath != "" {
		var err error
		if settings, err = loadSettings(*configPath, settings); err != nil {
			return Settings{}, nil, err
		}
	}
	settings = settings.applyEnv(getenv)

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "socket":
			settings.Socket = flags.Socket
		case "token":
			settings.Token = flags.Token
		case "component":
			settings.Component = flags.Component
		case "timeout":
			settings.Timeout = flags.Timeout
		case "log-level":
			settings.LogLevel = flags.LogLevel
		case "protocol-log":
			settings.ProtocolLog = flags.ProtocolLog
		case "scratch":
			settings.ScratchSize = flags.ScratchSize
		}
	})
	return settings, fs.Args(), nil
}

func newLogger(level string, w io.Writer) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

// connect opens a client according to settings.
func connect(ctx context.Context, settings Settings, logger *slog.Logger, plog log.Logger) (*ipc.Client, error) {
	opts := []ipc.Option{ipc.WithTimeout(settings.Timeout), ipc.WithLogger(logger)}
	if plog != nil {
		opts = append(opts, ipc.WithProtocolLogger(plog))
	}
	client := ipc.New(opts...)

	if settings.Token != "" {
		return client, client.ConnectWithToken(ctx, settings.Socket, settings.Token)
	}
	svcuid, err := client.ConnectByName(ctx, settings.Socket, settings.Component)
	if err == nil {
		logger.Info("connected by name", "component", settings.Component, "svcuid", svcuid)
	}
	return client, err
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	settings, rest, err := parseSettings(args, stderr, os.Getenv)
	if err != nil {
		return err
	}
	if err := settings.validate(); err != nil {
		return err
	}

	name, cmdArgs := rest[0], rest[1:]
	interactive := name == "shell"
	var cmd command
	if !interactive {
		var ok bool
		if cmd, ok = lookupCommand(name); !ok {
			usage(stderr, flag.NewFlagSet("ggipc", flag.ContinueOnError))
			return fmt.Errorf("%w: unknown command %s", errUsage, name)
		}
	}

	out, logOut := stdout, stderr
	var sh *shell
	if interactive {
		rl, err := newReadline()
		if err != nil {
			return err
		}
		defer rl.Close()
		out, logOut = rl.Stdout(), rl.Stderr()
		sh = &shell{rl: rl}
	}

	logger, err := newLogger(settings.LogLevel, logOut)
	if err != nil {
		return err
	}

	var sinks []log.Logger
	if settings.ProtocolLog != "" {
		fl, err := log.NewFileLogger(settings.ProtocolLog)
		if err != nil {
			return fmt.Errorf("open protocol log: %w", err)
		}
		defer fl.Close()
		sinks = append(sinks, fl)
	}
	if logger.Enabled(ctx, slog.LevelDebug) {
		sinks = append(sinks, log.NewSlogAdapter(logger))
	}
	plog := log.NewMultiLogger(sinks...)

	client, err := connect(ctx, settings, logger, plog)
	if err != nil {
		return err
	}
	defer client.Close()

	s := newSession(client, out, settings.ScratchSize)
	if interactive {
		sh.s = s
		sh.run(ctx)
		return nil
	}

	if err := cmd.run(ctx, s, cmdArgs); err != nil {
		return err
	}
	return s.wait(ctx)
}
