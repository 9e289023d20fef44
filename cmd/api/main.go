package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/api"
	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/api/handlers"
	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/app"
	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/telemetry"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configPath := flag.String("config", getEnv("CONFIG_FILE", "configs/config.yaml"), "path to configuration file")
	flag.Parse()

	container, err := app.Build(*configPath)
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer container.Close()

	shutdownTracing, err := telemetry.Setup(ctx, container.Config.Telemetry,
		container.Config.App.Name, container.Config.App.Version)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		timeout := container.Config.Telemetry.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		flushCtx, flushCancel := context.WithTimeout(context.Background(), timeout)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	if err := container.EnsureTopics(ctx); err != nil {
		log.Fatalf("failed to ensure kafka topics: %v", err)
	}

	go container.Limiter.Run(ctx)

	server := api.NewServer(container, handlers.NewHandlerSet(container))

	log.Printf("starting server on port %d", container.Config.HTTP.Port)
	if err := server.Start(ctx); err != nil {
		log.Fatalf("server terminated: %v", err)
	}

	// the listener is down; give vendor-side calls a chance to finish
	// before resources are torn away.
	drainCtx, drainCancel := context.WithTimeout(context.Background(),
		container.Config.Shutdown.DrainTimeout+time.Second)
	defer drainCancel()
	server.Drain(drainCtx)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
