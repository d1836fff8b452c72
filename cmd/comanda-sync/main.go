// Command comanda-sync is an interactive demo terminal for the Comanda sync
// client.
//
// It runs the full client against a simulated in-memory backend, with
// console commands that push change notifications, kill the channel, take
// the backend offline, and flip consumer visibility, so every recovery path
// can be watched live.
//
// Usage:
//
//	comanda-sync [flags]
//
// Flags:
//
//	-config string    Configuration file path (YAML)
//	-events string    Write CBOR event log to this file
//	-verbose          Mirror sync events to stderr via slog
//
// Examples:
//
//	# Start with defaults
//	comanda-sync
//
//	# Capture the event log and mirror it to stderr
//	comanda-sync -events /tmp/sync-events.cbor -verbose
package main

import (
	"context"
	"flag"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/comanda-pos/comanda-go/cmd/comanda-sync/interactive"
	"github.com/comanda-pos/comanda-go/pkg/log"
	"github.com/comanda-pos/comanda-go/pkg/realtime"
	"github.com/comanda-pos/comanda-go/pkg/resource"
)

var (
	configPath string
	eventsPath string
	verbose    bool
)

func init() {
	flag.StringVar(&configPath, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&eventsPath, "events", "", "Write CBOR event log to this file")
	flag.BoolVar(&verbose, "verbose", false, "Mirror sync events to stderr via slog")
}

func main() {
	flag.Parse()
	stdlog.SetFlags(stdlog.Ltime | stdlog.Lmicroseconds)

	cfg := realtime.DefaultConfig()
	if configPath != "" {
		loaded, err := realtime.LoadConfig(configPath)
		if err != nil {
			stdlog.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	logger, cleanup, err := buildLogger()
	if err != nil {
		stdlog.Fatalf("Failed to set up logging: %v", err)
	}
	defer cleanup()

	backend := interactive.NewBackend(resource.StandardNames())
	env := interactive.NewEnvironment()

	registry, err := resource.StandardRegistry(backend, backend)
	if err != nil {
		stdlog.Fatalf("Failed to build registry: %v", err)
	}

	client, err := realtime.NewClient(realtime.ClientOptions{
		Channel:     backend,
		Registry:    registry,
		HealthCheck: backend.Health,
		Environment: env,
		Logger:      logger,
		Config:      cfg,
	})
	if err != nil {
		stdlog.Fatalf("Failed to create client: %v", err)
	}

	stdlog.Println("Comanda Sync Demo Terminal")
	stdlog.Println("==========================")
	stdlog.Printf("Client ID: %s", client.ID())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := client.Start(ctx); err != nil {
		// A failed initial load leaves the client usable; the console's
		// retry command re-runs it.
		stdlog.Printf("Initial load failed: %v (use 'retry' after 'online')", err)
	} else {
		stdlog.Printf("Initial load complete, channel %s", client.ChannelState())
	}

	console, err := interactive.New(client, backend, env, resource.StandardNames())
	if err != nil {
		stdlog.Fatalf("Failed to create console: %v", err)
	}

	go console.Run(ctx, cancel)

	// Wait for the console to exit or a shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		stdlog.Printf("Received signal: %v", sig)
		cancel()
	case <-ctx.Done():
	}

	stdlog.Println("Shutting down...")
	client.Close()
	stdlog.Println("Goodbye!")
}

// buildLogger assembles the event logger from the -events and -verbose
// flags. The returned cleanup flushes the file logger.
func buildLogger() (log.Logger, func(), error) {
	var loggers []log.Logger

	if eventsPath != "" {
		fl, err := log.NewFileLogger(eventsPath)
		if err != nil {
			return nil, nil, err
		}
		loggers = append(loggers, fl)
	}
	if verbose {
		sl := slog.New(slog.NewTextHandler(os.Stderr, nil))
		loggers = append(loggers, log.NewSlogAdapter(sl))
	}

	switch len(loggers) {
	case 0:
		return log.NoopLogger{}, func() {}, nil
	case 1:
		return loggers[0], closerFor(loggers), nil
	default:
		return log.NewMultiLogger(loggers...), closerFor(loggers), nil
	}
}

func closerFor(loggers []log.Logger) func() {
	return func() {
		for _, l := range loggers {
			if fl, ok := l.(*log.FileLogger); ok {
				_ = fl.Close()
			}
		}
	}
}
