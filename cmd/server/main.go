package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"github.com/notifico/notifico/internal/config"
	"github.com/notifico/notifico/internal/db"
	"github.com/notifico/notifico/internal/dispatch"
	"github.com/notifico/notifico/internal/observability"
	"github.com/notifico/notifico/internal/server"
	"github.com/notifico/notifico/internal/server/routes"
	"github.com/notifico/notifico/internal/services"
	"github.com/notifico/notifico/internal/services/cdevents"
	"github.com/notifico/notifico/internal/services/github"
	"github.com/notifico/notifico/internal/services/plain"
	"github.com/notifico/notifico/internal/sink"
)

func main() {
	log := slog.New(observability.WrapSlogHandler(
		slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
	))
	slog.SetDefault(log)

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	shutdownOtel, err := observability.SetupOpenTelemetry(ctx, log, observability.OpenTelemetryConfig(cfg.Observability))
	if err != nil {
		slog.Error("Failed to set up OpenTelemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownOtel(ctx); err != nil {
			slog.Error("Failed to shut down OpenTelemetry", "error", err)
		}
	}()

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}()

	registry, err := buildRegistry(cfg)
	if err != nil {
		// A registration conflict means hooks would route to the wrong
		// integration; refuse to serve.
		slog.Error("Failed to build service registry", "error", err)
		os.Exit(1)
	}

	deliverTo := buildSink(cfg, log)
	dispatcher := dispatch.New(database, registry, deliverTo, log,
		dispatch.WithHandleTimeout(cfg.HandleTimeout()))

	srv := server.New(log)
	srv.RegisterRouter(routes.NewHookRoutes(dispatcher))
	srv.RegisterRouter(routes.NewAPIRoutes(database, registry, cfg.Integrations.PublicURL))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	slog.Info("Starting server", "port", cfg.Server.Port, "services", len(registry.All()))
	slog.Error("Closing server", "error", srv.Start(addr))
}

// buildRegistry registers the built-in integrations in a fixed order.
func buildRegistry(cfg config.Config) (*services.Registry, error) {
	registry := services.NewRegistry()

	shortenerOpts := []github.ShortenerOption{}
	if cfg.Integrations.GitioEndpoint != "" {
		shortenerOpts = append(shortenerOpts, github.WithEndpoint(cfg.Integrations.GitioEndpoint))
	}

	for _, svc := range []services.Service{
		github.NewService(registry.ShortenURL),
		github.NewShortener(shortenerOpts...),
		plain.NewService(),
		cdevents.NewService(),
	} {
		if err := registry.Register(svc); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func buildSink(cfg config.Config, log *slog.Logger) sink.Sink {
	if cfg.Sink.URL == "" {
		slog.Info("No sink configured, notifications go to the log")
		return sink.NewLogSink(log)
	}
	ceSink, err := sink.NewCloudEventsSink(cfg.Sink.URL, log)
	if err != nil {
		slog.Warn("Failed to build CloudEvents sink, falling back to log", "error", err)
		return sink.NewLogSink(log)
	}
	return ceSink
}
