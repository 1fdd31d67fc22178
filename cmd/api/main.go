package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/careconnect/backend/internal/api/handlers"
	"github.com/careconnect/backend/internal/api/routes"
	"github.com/careconnect/backend/internal/bootstrap"
	"github.com/careconnect/backend/internal/infrastructure/observability"
	"github.com/careconnect/backend/pkg/config"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, vault, err := config.LoadWithSecrets(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Server.Env)
	if vault.Enabled {
		log.Info().Str("path", vault.Path).Int("loaded", len(vault.Loaded)).Int("skipped", len(vault.Skipped)).Msg("Vault secrets applied")
	}

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start insight pipeline")
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Error().Err(err).Msg("Error releasing resources")
		}
	}()

	if app.Warmer != nil {
		if err := app.Warmer.Start(ctx, cfg.Redis.WarmInterval); err != nil {
			log.Warn().Err(err).Msg("Cache warming disabled")
		}
	}
	if app.Alerts != nil {
		if err := app.Alerts.Start(ctx); err != nil {
			log.Warn().Err(err).Msg("Risk alerts disabled")
		}
	}

	checks := map[string]handlers.Pinger{"postgres": app.Postgres}
	if app.Redis != nil {
		checks["redis"] = app.Redis
	}

	var sseHandler *handlers.SSEHandler
	if app.EventBus != nil {
		sseHandler = handlers.NewSSEHandler(app.EventBus)
	}

	router := routes.NewRouter(
		handlers.NewInsightHandler(app.Service),
		handlers.NewHealthHandler(checks),
		sseHandler,
		app.Metrics,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     router.SetupRoutes(),
		ReadTimeout: 15 * time.Second,
		// Refresh waits on download, OCR and the remote model.
		WriteTimeout: cfg.Inference.Timeout + 60*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if app.EventBus != nil {
		// Closing the bus ends open SSE streams so Shutdown can drain.
		server.RegisterOnShutdown(func() {
			if err := app.EventBus.Close(); err != nil {
				log.Warn().Err(err).Msg("Error closing event bus")
			}
		})
	}

	go func() {
		log.Info().Str("addr", serverAddr).Str("env", cfg.Server.Env).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	log.Info().Msg("Server stopped")
}
