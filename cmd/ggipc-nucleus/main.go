// Command ggipc-nucleus runs a development IPC server that components and
// the ggipc CLI can connect to without a device runtime.
//
// Usage:
//
//	ggipc-nucleus [flags]
//
// Flags:
//
//	-socket string        Unix socket path (default "/tmp/ggipc.sock")
//	-config string        Deployment YAML (components, tokens, configuration)
//	-db string            SQLite file for configuration and state (optional)
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-protocol-log string  Write CBOR protocol events to this file
//	-status duration      Log connection counts at this interval (0 disables)
//
// Examples:
//
//	# Serve the components of deploy.yaml and keep state across restarts
//	ggipc-nucleus -config deploy.yaml -db nucleus.db
//
//	# Point a component at it
//	export AWS_GG_NUCLEUS_DOMAIN_SOCKET_FILEPATH_FOR_COMPONENT=/tmp/ggipc.sock
//	export SVCUID=sensor-token
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cookpate/aws-greengrass-sdk-lite/internal/nucleus"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/log"
)

// Options holds the command line settings.
type Options struct {
	Socket      string
	ConfigFile  string
	DBPath      string
	LogLevel    string
	ProtocolLog string
	Status      time.Duration
}

func parseFlags(args []string) (Options, error) {
	var opts Options
	fs := flag.NewFlagSet("ggipc-nucleus", flag.ContinueOnError)
	fs.StringVar(&opts.Socket, "socket", "/tmp/ggipc.sock", "Unix socket path")
	fs.StringVar(&opts.ConfigFile, "config", "", "Deployment YAML (components, tokens, configuration)")
	fs.StringVar(&opts.DBPath, "db", "", "SQLite file for configuration and state (optional)")
	fs.StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.StringVar(&opts.ProtocolLog, "protocol-log", "", "Write CBOR protocol events to this file")
	fs.DurationVar(&opts.Status, "status", time.Minute, "Log connection counts at this interval (0 disables)")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.Socket == "" {
		return opts, errors.New("-socket must not be empty")
	}
	return opts, nil
}

func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})), nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	logger, err := newLogger(opts.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger); err != nil {
		logger.Error("nucleus failed", "error", err)
		os.Exit(1)
	}
}

// run serves until ctx is cancelled.
func run(ctx context.Context, opts Options, logger *slog.Logger) error {
	var deploy nucleus.Config
	if opts.ConfigFile != "" {
		var err error
		deploy, err = nucleus.LoadConfig(opts.ConfigFile)
		if err != nil {
			return err
		}
	}

	cfg := nucleus.ServerConfig{
		SocketPath: opts.Socket,
		Logger:     logger,
	}

	if opts.DBPath != "" {
		store, err := nucleus.NewStore(opts.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()
		cfg.Store = store
	}

	var sinks []log.Logger
	if opts.ProtocolLog != "" {
		fl, err := log.NewFileLogger(opts.ProtocolLog)
		if err != nil {
			return fmt.Errorf("open protocol log: %w", err)
		}
		defer fl.Close()
		sinks = append(sinks, fl)
	}
	if logger.Enabled(ctx, slog.LevelDebug) {
		sinks = append(sinks, log.NewSlogAdapter(logger))
	}
	cfg.ProtocolLogger = log.NewMultiLogger(sinks...)

	srv, err := nucleus.NewServer(deploy, cfg)
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}
	logger.Info("components deployed", "count", len(deploy.Components))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return srv.Stop()
	})
	if opts.Status > 0 {
		g.Go(func() error {
			reportStatus(gctx, srv, opts.Status, logger)
			return nil
		})
	}
	return g.Wait()
}

func reportStatus(ctx context.Context, srv *nucleus.Server, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("status",
				"connections", srv.ConnectionCount(),
				"subscriptions", srv.SubscriptionCount())
		}
	}
}
