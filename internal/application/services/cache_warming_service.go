package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/careconnect/backend/internal/domain/entities"
	"github.com/careconnect/backend/internal/domain/providers"
	"github.com/careconnect/backend/internal/domain/repositories"
)

// CacheWarmingService keeps patient summaries for recently analyzed patients
// in the read-through cache, so the latest-insights view rarely touches the
// patients table. patients is expected to be the cached repository.
type CacheWarmingService struct {
	insights repositories.InsightRepository
	patients repositories.PatientRepository
	eventBus providers.EventBus
	scan     int

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCacheWarmingService creates a new cache warming service. eventBus may be nil.
func NewCacheWarmingService(
	insights repositories.InsightRepository,
	patients repositories.PatientRepository,
	eventBus providers.EventBus,
	scan int,
) *CacheWarmingService {
	if scan <= 0 {
		scan = defaultLatestListLimit
	}
	return &CacheWarmingService{
		insights: insights,
		patients: patients,
		eventBus: eventBus,
		scan:     scan,
	}
}

// WarmCache loads summaries for every patient in the recent insight window.
// It returns the number of patients warmed.
func (s *CacheWarmingService) WarmCache(ctx context.Context) (int, error) {
	recent, err := s.insights.ListRecent(ctx, s.scan)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch recent insights: %w", err)
	}

	ids := LatestPerPatient(recent).Keys()
	if len(ids) == 0 {
		return 0, nil
	}

	summaries, err := s.patients.GetSummaries(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to warm patient summaries: %w", err)
	}

	log.Debug().Int("patients", len(summaries)).Msg("Warmed patient summary cache")
	return len(summaries), nil
}

// Start warms once, then keeps warming on every insight event and every interval.
// A zero interval disables periodic warming.
func (s *CacheWarmingService) Start(ctx context.Context, interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("cache warming service already started")
	}

	ctx, cancel := context.WithCancel(ctx)

	var events <-chan *entities.InsightEvent
	if s.eventBus != nil {
		ch, err := s.eventBus.Subscribe(ctx, providers.EventChannelInsightUpdates)
		if err != nil {
			cancel()
			return fmt.Errorf("failed to subscribe to insight updates: %w", err)
		}
		events = ch
	}
	s.cancel = cancel

	if n, err := s.WarmCache(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial cache warming failed")
	} else {
		log.Info().Int("patients", n).Msg("Initial cache warming completed")
	}

	var tick <-chan time.Time
	var ticker *time.Ticker
	if interval > 0 {
		ticker = time.NewTicker(interval)
		tick = ticker.C
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if ticker != nil {
			defer ticker.Stop()
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick:
				if _, err := s.WarmCache(ctx); err != nil {
					log.Warn().Err(err).Msg("Periodic cache warming failed")
				}
			case event, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				s.handleEvent(ctx, event)
			}
		}
	}()

	return nil
}

// Stop stops background warming and waits for the worker to exit.
func (s *CacheWarmingService) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		s.wg.Wait()
		log.Info().Msg("Cache warming service stopped")
	}
}

func (s *CacheWarmingService) handleEvent(ctx context.Context, event *entities.InsightEvent) {
	if event == nil || event.PatientID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.patients.GetSummary(ctx, event.PatientID); err != nil {
		log.Warn().Err(err).Str("patient_id", event.PatientID).Msg("Failed to warm patient summary")
	}
}
