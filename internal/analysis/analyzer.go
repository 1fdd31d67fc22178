// Package analysis turns clinical document text into a bounded risk insight.
//
// An Analyzer tries a primary Strategy (normally the remote model) and falls
// back to the deterministic heuristic on any failure. Exactly one strategy's
// output is returned per call.
package analysis

import (
	"context"
	"strings"

	"github.com/careconnect/backend/internal/domain/entities"
	"github.com/careconnect/backend/internal/infrastructure/observability"
)

// Strategy produces a risk analysis from document text.
type Strategy interface {
	Name() string
	Analyze(ctx context.Context, text string, vitals *entities.VitalsSnapshot) (*entities.RiskAnalysis, error)
}

// Config bounds analyzer input and provenance output.
type Config struct {
	MaxInputChars int
	ExcerptChars  int
}

// DefaultConfig returns the standard input cap and excerpt length.
func DefaultConfig() Config {
	return Config{
		MaxInputChars: 4000,
		ExcerptChars:  800,
	}
}

// Analyzer coordinates the primary and fallback strategies.
type Analyzer struct {
	primary  Strategy
	fallback Strategy
	cfg      Config
}

// NewAnalyzer creates an analyzer. primary may be nil, in which case every
// call goes straight to fallback.
func NewAnalyzer(primary, fallback Strategy, cfg Config) *Analyzer {
	if fallback == nil {
		fallback = NewHeuristicStrategy()
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = DefaultConfig().MaxInputChars
	}
	if cfg.ExcerptChars <= 0 {
		cfg.ExcerptChars = DefaultConfig().ExcerptChars
	}
	return &Analyzer{
		primary:  primary,
		fallback: fallback,
		cfg:      cfg,
	}
}

// Analyze scores text, trying the primary strategy first.
func (a *Analyzer) Analyze(ctx context.Context, text string, vitals *entities.VitalsSnapshot) (*entities.RiskAnalysis, error) {
	logger := observability.LoggerFromContext(ctx)

	input := truncateRunes(strings.TrimSpace(text), a.cfg.MaxInputChars)
	excerpt := truncateRunes(input, a.cfg.ExcerptChars)

	if a.primary != nil {
		result, err := a.primary.Analyze(ctx, input, vitals)
		if err == nil && result != nil {
			result.SourceExcerpt = excerpt
			result.Normalize()
			recordStrategy(ctx, a.primary.Name(), false)
			return result, nil
		}
		logger.Warn().
			Err(err).
			Str("strategy", a.primary.Name()).
			Str("fallback", a.fallback.Name()).
			Msg("primary risk strategy failed, falling back")
	}

	result, err := a.fallback.Analyze(ctx, input, vitals)
	if err != nil {
		return nil, err
	}
	result.SourceExcerpt = excerpt
	result.Normalize()
	recordStrategy(ctx, a.fallback.Name(), a.primary != nil)
	return result, nil
}
