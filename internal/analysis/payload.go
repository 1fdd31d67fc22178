package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/careconnect/backend/internal/domain/entities"
)

var (
	// ErrNoJSONObject means the generated text held no {...} span.
	ErrNoJSONObject = errors.New("model output contains no JSON object")
	// ErrUnparseableOutput means the JSON span failed parsing or validation.
	ErrUnparseableOutput = errors.New("model output is not a valid insight payload")
)

const (
	defaultModelRiskScore  = 50
	defaultModelConfidence = 0.7
)

// flexNumber accepts a JSON number or a numeric string.
type flexNumber struct {
	value float64
	set   bool
}

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		n.value, n.set = v, true
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.value, n.set = v, true
	return nil
}

type modelPayload struct {
	AISummary       *string    `json:"ai_summary"`
	RiskScore       flexNumber `json:"risk_score"`
	RiskFactors     []string   `json:"risk_factors"`
	Recommendations []string   `json:"recommendations"`
	KeyTerms        []string   `json:"key_terms"`
	ConfidenceScore flexNumber `json:"confidence_score"`
}

// extractJSONBlob returns the span from the first '{' to the last '}'.
func extractJSONBlob(generated string) (string, bool) {
	start := strings.Index(generated, "{")
	end := strings.LastIndex(generated, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return generated[start : end+1], true
}

// parseModelOutput decodes generated text into a validated analysis.
// The only repair attempted is swapping single quotes for double quotes,
// and only after a strict decode fails.
func parseModelOutput(generated string) (*entities.RiskAnalysis, error) {
	blob, ok := extractJSONBlob(generated)
	if !ok {
		return nil, ErrNoJSONObject
	}

	payload, err := decodePayload(blob)
	if err != nil {
		repaired, repairErr := decodePayload(strings.ReplaceAll(blob, "'", `"`))
		if repairErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnparseableOutput, err)
		}
		payload = repaired
	}

	return payload.toAnalysis()
}

func decodePayload(blob string) (*modelPayload, error) {
	var payload modelPayload
	if err := json.Unmarshal([]byte(blob), &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (p *modelPayload) toAnalysis() (*entities.RiskAnalysis, error) {
	if p.AISummary == nil || strings.TrimSpace(*p.AISummary) == "" {
		return nil, fmt.Errorf("%w: ai_summary is required", ErrUnparseableOutput)
	}

	riskScore := defaultModelRiskScore
	if p.RiskScore.set {
		riskScore = int(p.RiskScore.value)
		if riskScore < entities.MinRiskScore || riskScore > entities.MaxRiskScore {
			return nil, fmt.Errorf("%w: risk_score %d out of range", ErrUnparseableOutput, riskScore)
		}
	}

	confidence := defaultModelConfidence
	if p.ConfidenceScore.set {
		confidence = p.ConfidenceScore.value
		if confidence < 0 || confidence > 1 {
			return nil, fmt.Errorf("%w: confidence_score %v out of range", ErrUnparseableOutput, confidence)
		}
	}

	analysis := &entities.RiskAnalysis{
		AISummary:       strings.TrimSpace(*p.AISummary),
		RiskScore:       riskScore,
		RiskFactors:     nonEmpty(p.RiskFactors),
		Recommendations: nonEmpty(p.Recommendations),
		KeyTerms:        nonEmpty(p.KeyTerms),
		ConfidenceScore: confidence,
		ModelVersion:    RemoteModelVersion,
	}
	analysis.Normalize()
	return analysis, nil
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
