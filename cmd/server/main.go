// Command server runs the Lionboard API, the screening worker and the thread
// expiry schedule.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"lionboard/internal/config"
	"lionboard/internal/observability"
	"lionboard/internal/server"
)

var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.SetLogger(observability.NewLogger(os.Stdout, cfg.Env))

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "lionboard-api",
		ServiceVersion: version,
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSampler,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.NewServer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	runErr := srv.Run(ctx)

	if err := shutdownTracing(context.Background()); err != nil {
		observability.Logger.Error("tracing shutdown failed", "error", err)
	}
	if runErr != nil {
		log.Fatalf("Server stopped with error: %v", runErr)
	}
}
