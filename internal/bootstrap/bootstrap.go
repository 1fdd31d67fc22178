// Package bootstrap assembles the insight pipeline from configuration. Both
// the HTTP server and the operator CLI build their object graph here.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/careconnect/backend/internal/adapters/cache"
	"github.com/careconnect/backend/internal/adapters/database"
	"github.com/careconnect/backend/internal/adapters/documents"
	"github.com/careconnect/backend/internal/adapters/events"
	"github.com/careconnect/backend/internal/analysis"
	"github.com/careconnect/backend/internal/application/services"
	"github.com/careconnect/backend/internal/domain/providers"
	"github.com/careconnect/backend/internal/domain/repositories"
	"github.com/careconnect/backend/internal/infrastructure/clients/huggingface"
	"github.com/careconnect/backend/internal/infrastructure/clients/postgres"
	"github.com/careconnect/backend/internal/infrastructure/clients/redis"
	"github.com/careconnect/backend/internal/infrastructure/clients/supabase"
	"github.com/careconnect/backend/internal/infrastructure/notifications"
	"github.com/careconnect/backend/internal/infrastructure/observability"
	"github.com/careconnect/backend/pkg/config"
)

// App is the assembled pipeline plus the resources it owns.
type App struct {
	Config   *config.Config
	Metrics  *observability.Metrics
	Postgres *postgres.Client
	// Redis is nil when Redis could not be reached.
	Redis    *redis.Client
	EventBus providers.EventBus
	Service  *services.InsightService
	// Warmer is nil without Redis.
	Warmer *services.CacheWarmingService
	// Alerts is nil unless Redis and WhatsApp alerting are both configured.
	Alerts *services.RiskAlertService
}

// NewAnalyzer builds the risk analyzer. The remote model is the primary
// strategy only when an API token is configured.
func NewAnalyzer(cfg *config.Config) *analysis.Analyzer {
	var primary analysis.Strategy
	if cfg.Inference.APIToken != "" {
		client, err := huggingface.NewClient(&cfg.Inference)
		if err != nil {
			log.Warn().Err(err).Msg("Remote model disabled; using keyword heuristic only")
		} else {
			primary = analysis.NewRemoteStrategy(client, providers.GenerationParams{
				MaxNewTokens: cfg.Inference.MaxNewTokens,
				Temperature:  cfg.Inference.Temperature,
			}, cfg.Inference.Timeout)
		}
	} else {
		log.Info().Msg("HF_API_TOKEN not set; using keyword heuristic only")
	}

	return analysis.NewAnalyzer(primary, analysis.NewHeuristicStrategy(), analysis.Config{
		MaxInputChars: cfg.Insights.MaxInputChars,
		ExcerptChars:  cfg.Insights.ExcerptChars,
	})
}

// NewExtractor builds the PDF text extractor with the configured OCR engine.
func NewExtractor(cfg *config.Config, metrics *observability.Metrics) *documents.Extractor {
	return documents.NewExtractor(
		documents.NewFitzEngine(),
		documents.NewOCREngine(cfg.OCR.TesseractPath),
		cfg.OCR.Language,
		cfg.OCR.DPI,
		metrics,
	)
}

// New connects to Postgres, Redis and object storage and wires the insight
// service. Postgres and storage are required; Redis is optional.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	metrics, err := observability.InitMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}
	log.Info().Msg("PostgreSQL client initialized")

	storage, err := supabase.NewStorage(&cfg.Storage)
	if err != nil {
		pgClient.Close()
		return nil, fmt.Errorf("failed to initialize object storage: %w", err)
	}

	app := &App{Config: cfg, Metrics: metrics, Postgres: pgClient}

	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable; running without patient cache and insight events")
	} else {
		app.Redis = redisClient
		app.EventBus = events.NewRedisEventBus(redisClient)
		log.Info().Msg("Redis client initialized")
	}

	insights := database.NewInsightAdapter(pgClient, metrics)

	var patients repositories.PatientRepository = database.NewPatientAdapter(pgClient)
	if app.Redis != nil {
		patients = database.NewCachedPatientAdapter(patients, cache.NewRedisAdapter(app.Redis), cfg.Redis.PatientCacheTTL, metrics)
		app.Warmer = services.NewCacheWarmingService(insights, patients, app.EventBus, cfg.Insights.LatestLimit)
	}

	if app.EventBus != nil && cfg.Alerts.Enabled() {
		sender, err := notifications.NewWhatsAppCloudSender(notifications.WhatsAppConfig{
			AccessToken:   cfg.Alerts.AccessToken,
			PhoneNumberID: cfg.Alerts.PhoneNumberID,
			APIVersion:    cfg.Alerts.APIVersion,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Risk alerts disabled")
		} else {
			app.Alerts = services.NewRiskAlertService(app.EventBus, sender, patients, cfg.Alerts.Recipients, cfg.Alerts.MinScore)
		}
	}

	app.Service = services.NewInsightService(services.InsightServiceDeps{
		Insights:  insights,
		Patients:  patients,
		Locator:   services.NewDocumentLocator(storage, cfg.Storage.PathTemplate, cfg.Storage.ListLimit),
		Storage:   storage,
		Extractor: NewExtractor(cfg, metrics),
		Vitals:    services.NewVitalsContextFetcher(database.NewVitalsAdapter(pgClient)),
		Analyzer:  NewAnalyzer(cfg),
		Events:    app.EventBus,
		Metrics:   metrics,
	}, services.InsightServiceConfig{
		DefaultLimit: cfg.Insights.DefaultLimit,
		LatestLimit:  cfg.Insights.LatestLimit,
	})

	return app, nil
}

// Close releases every resource the app opened.
func (a *App) Close() error {
	var errs []error
	if a.Warmer != nil {
		a.Warmer.Stop()
	}
	if a.Alerts != nil {
		a.Alerts.Stop()
	}
	if a.EventBus != nil {
		errs = append(errs, a.EventBus.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.Postgres != nil {
		errs = append(errs, a.Postgres.Close())
	}
	return errors.Join(errs...)
}
