package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/careconnect/backend/internal/domain/entities"
	"github.com/careconnect/backend/internal/domain/providers"
	"github.com/careconnect/backend/internal/domain/repositories"
	"github.com/careconnect/backend/pkg/retry"
)

// RiskAlertService pushes a message to on-call clinicians whenever a stored
// insight scores at or above the alert threshold.
type RiskAlertService struct {
	eventBus   providers.EventBus
	sender     providers.MessageSender
	patients   repositories.PatientRepository
	recipients []string
	minScore   int
	retry      retry.Config

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRiskAlertService creates a new alert service. patients may be nil, in
// which case messages carry the patient ID only.
func NewRiskAlertService(
	eventBus providers.EventBus,
	sender providers.MessageSender,
	patients repositories.PatientRepository,
	recipients []string,
	minScore int,
) *RiskAlertService {
	return &RiskAlertService{
		eventBus:   eventBus,
		sender:     sender,
		patients:   patients,
		recipients: recipients,
		minScore:   minScore,
		retry:      retry.QuickConfig(),
	}
}

// WithRetry overrides the per-recipient retry policy.
func (s *RiskAlertService) WithRetry(cfg retry.Config) *RiskAlertService {
	s.retry = cfg
	return s
}

// Notify alerts every recipient about event if it crosses the threshold.
// It returns the number of messages delivered.
func (s *RiskAlertService) Notify(ctx context.Context, event *entities.InsightEvent) (int, error) {
	if event == nil || event.RiskScore < s.minScore {
		return 0, nil
	}

	body := s.compose(ctx, event)
	logger := log.With().Str("patient_id", event.PatientID).Str("insight_id", event.InsightID).Logger()

	sent := 0
	var errs []error
	for _, to := range s.recipients {
		var messageID string
		err := retry.DoWithLog(ctx, s.retry, "risk-alert", func() error {
			id, err := s.sender.SendText(ctx, to, body)
			if err != nil {
				var r interface{ Retryable() bool }
				if errors.As(err, &r) && !r.Retryable() {
					return retry.Permanent(err)
				}
				return err
			}
			messageID = id
			return nil
		}, func(attempt int, err error, next time.Duration) {
			logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", next).Msg("Risk alert send failed; retrying")
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("alert to %s: %w", to, err))
			continue
		}
		sent++
		logger.Info().Str("message_id", messageID).Int("risk_score", event.RiskScore).Msg("Risk alert sent")
	}

	return sent, errors.Join(errs...)
}

func (s *RiskAlertService) compose(ctx context.Context, event *entities.InsightEvent) string {
	name := ""
	if s.patients != nil {
		if summary, err := s.patients.GetSummary(ctx, event.PatientID); err == nil && summary != nil {
			name = summary.FullName
		} else if err != nil {
			log.Debug().Err(err).Str("patient_id", event.PatientID).Msg("Patient lookup for alert failed")
		}
	}

	who := "Patient " + event.PatientID
	if name != "" {
		who = fmt.Sprintf("%s (%s)", name, event.PatientID)
	}

	return fmt.Sprintf(
		"CareConnect risk alert: %s scored %d/100 (%s) at %s. Insight %s, model %s. Review the patient record.",
		who, event.RiskScore, event.RiskLevel, event.Timestamp.UTC().Format(time.RFC3339), event.InsightID, event.ModelVersion,
	)
}

// Start subscribes to insight updates and alerts in the background.
func (s *RiskAlertService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("risk alert service already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	events, err := s.eventBus.Subscribe(ctx, providers.EventChannelInsightUpdates)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to insight updates: %w", err)
	}
	s.cancel = cancel

	log.Info().Int("recipients", len(s.recipients)).Int("min_score", s.minScore).Msg("Risk alerts enabled")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				if _, err := s.Notify(ctx, event); err != nil {
					log.Error().Err(err).Str("patient_id", event.PatientID).Msg("Risk alert delivery failed")
				}
			}
		}
	}()

	return nil
}

// Stop cancels the subscription and waits for in-flight alerts.
func (s *RiskAlertService) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		s.wg.Wait()
	}
}
