package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careconnect/backend/internal/domain/entities"
)

type stubStrategy struct {
	name     string
	result   *entities.RiskAnalysis
	err      error
	received string
	calls    int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Analyze(_ context.Context, text string, _ *entities.VitalsSnapshot) (*entities.RiskAnalysis, error) {
	s.calls++
	s.received = text
	return s.result, s.err
}

func TestAnalyzer_UsesPrimaryWhenItSucceeds(t *testing.T) {
	primary := &stubStrategy{name: "remote", result: &entities.RiskAnalysis{
		AISummary: "Model summary", RiskScore: 66, ConfidenceScore: 0.8, ModelVersion: RemoteModelVersion,
	}}
	fallback := &stubStrategy{name: "heuristic"}

	result, err := NewAnalyzer(primary, fallback, DefaultConfig()).Analyze(context.Background(), "  Short note.  ", nil)
	require.NoError(t, err)

	assert.Equal(t, RemoteModelVersion, result.ModelVersion)
	assert.Equal(t, "Short note.", result.SourceExcerpt)
	assert.Equal(t, "Short note.", primary.received)
	assert.Equal(t, 0, fallback.calls)
}

func TestAnalyzer_FallsBackOnPrimaryFailure(t *testing.T) {
	failures := map[string]*stubStrategy{
		"error":      {name: "remote", err: errors.New("timeout")},
		"nil result": {name: "remote"},
	}

	for name, primary := range failures {
		t.Run(name, func(t *testing.T) {
			result, err := NewAnalyzer(primary, NewHeuristicStrategy(), DefaultConfig()).
				Analyze(context.Background(), "Known sepsis.", nil)
			require.NoError(t, err)

			assert.Equal(t, HeuristicModelVersion, result.ModelVersion)
			assert.Equal(t, 60, result.RiskScore)
			assert.Equal(t, "Known sepsis.", result.SourceExcerpt)
		})
	}
}

func TestAnalyzer_UnavailableModelGoesStraightToHeuristic(t *testing.T) {
	primary := NewRemoteStrategy(nil, testParams, 0)

	result, err := NewAnalyzer(primary, nil, DefaultConfig()).Analyze(context.Background(), "Stroke suspected.", nil)
	require.NoError(t, err)

	assert.Equal(t, HeuristicModelVersion, result.ModelVersion)
	assert.Equal(t, 62, result.RiskScore)
}

func TestAnalyzer_NoPrimary(t *testing.T) {
	result, err := NewAnalyzer(nil, nil, Config{}).Analyze(context.Background(), "Routine.", nil)
	require.NoError(t, err)
	assert.Equal(t, HeuristicModelVersion, result.ModelVersion)
}

func TestAnalyzer_TruncatesInputAndExcerpt(t *testing.T) {
	primary := &stubStrategy{name: "remote", result: &entities.RiskAnalysis{AISummary: "x"}}
	text := strings.Repeat("é", 5000)

	result, err := NewAnalyzer(primary, nil, DefaultConfig()).Analyze(context.Background(), text, nil)
	require.NoError(t, err)

	assert.Equal(t, 4000, utf8.RuneCountInString(primary.received))
	assert.Equal(t, 800, utf8.RuneCountInString(result.SourceExcerpt))
	assert.True(t, strings.HasPrefix(text, result.SourceExcerpt))
}

func TestAnalyzer_NormalizesPrimaryOutput(t *testing.T) {
	primary := &stubStrategy{name: "remote", result: &entities.RiskAnalysis{
		AISummary:   "x",
		RiskScore:   250,
		RiskFactors: []string{"1", "2", "3", "4", "5", "6", "7"},
	}}

	result, err := NewAnalyzer(primary, nil, DefaultConfig()).Analyze(context.Background(), "text", nil)
	require.NoError(t, err)

	assert.Equal(t, 100, result.RiskScore)
	assert.Len(t, result.RiskFactors, 6)
}
