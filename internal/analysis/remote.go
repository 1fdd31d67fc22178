package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/careconnect/backend/internal/domain/entities"
	"github.com/careconnect/backend/internal/domain/providers"
)

// RemoteModelVersion tags insights produced by the remote model.
const RemoteModelVersion = "ocr-v1-hf"

var (
	// ErrModelUnavailable means no remote generator is configured.
	ErrModelUnavailable = errors.New("remote model not configured")
	// ErrEmptyGeneration means the endpoint answered with no text.
	ErrEmptyGeneration = errors.New("remote model returned no text")
)

const riskPromptTemplate = "You are a clinical risk stratification model. " +
	"Read the following clinical note extracted from a PDF and return JSON with the keys " +
	"ai_summary (string), risk_score (0-100 int), risk_factors (array of strings), " +
	"recommendations (array of strings), key_terms (array of strings), confidence_score (0-1 float). " +
	"Use concise medical language.\nDocument:\n%s\nJSON:"

// RemoteStrategy asks a remote text-generation model for the insight JSON.
type RemoteStrategy struct {
	generator providers.TextGenerator
	params    providers.GenerationParams
	timeout   time.Duration
}

// NewRemoteStrategy creates a model-backed strategy. A nil generator yields a
// strategy that always reports ErrModelUnavailable.
func NewRemoteStrategy(generator providers.TextGenerator, params providers.GenerationParams, timeout time.Duration) *RemoteStrategy {
	return &RemoteStrategy{
		generator: generator,
		params:    params,
		timeout:   timeout,
	}
}

// Name implements Strategy.
func (r *RemoteStrategy) Name() string {
	return "remote"
}

// Analyze implements Strategy.
func (r *RemoteStrategy) Analyze(ctx context.Context, text string, _ *entities.VitalsSnapshot) (*entities.RiskAnalysis, error) {
	if r == nil || r.generator == nil {
		return nil, ErrModelUnavailable
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	generated, err := r.generator.Generate(ctx, buildRiskPrompt(text), r.params)
	if err != nil {
		return nil, fmt.Errorf("remote model request: %w", err)
	}
	if strings.TrimSpace(generated) == "" {
		return nil, ErrEmptyGeneration
	}

	return parseModelOutput(generated)
}

func buildRiskPrompt(text string) string {
	return fmt.Sprintf(riskPromptTemplate, text)
}
