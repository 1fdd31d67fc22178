package analysis

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/careconnect/backend/internal/domain/entities"
)

// HeuristicModelVersion tags insights produced without a remote model.
const HeuristicModelVersion = "ocr-v1-heuristic"

const baselineRiskScore = 40

var (
	bloodPressurePattern = regexp.MustCompile(`(?:bp|blood pressure)[^0-9]*([0-9]{2,3})\s*/\s*([0-9]{2,3})`)
	heartRatePattern     = regexp.MustCompile(`(?:hr|heart rate)[^0-9]*([0-9]{2,3})`)
	oxygenSatPattern     = regexp.MustCompile(`(?:spo2|oxygen saturation)[^0-9]*([0-9]{2,3})`)
)

// HeuristicStrategy scores documents with a keyword table and vital-sign
// pattern rules. It is deterministic and needs no network.
type HeuristicStrategy struct{}

// NewHeuristicStrategy creates the keyword/regex scorer.
func NewHeuristicStrategy() *HeuristicStrategy {
	return &HeuristicStrategy{}
}

// Name implements Strategy.
func (h *HeuristicStrategy) Name() string {
	return "heuristic"
}

type findings struct {
	score           int
	riskFactors     []string
	recommendations []string
}

// Analyze implements Strategy.
func (h *HeuristicStrategy) Analyze(_ context.Context, text string, vitals *entities.VitalsSnapshot) (*entities.RiskAnalysis, error) {
	lowered := strings.ToLower(text)
	f := &findings{score: baselineRiskScore}

	f.scoreKeywords(lowered)
	f.scoreTextVitals(lowered)
	if vitals != nil {
		f.scoreRecordedVitals(vitals)
	}

	if f.score < entities.MinRiskScore {
		f.score = entities.MinRiskScore
	}
	if f.score > entities.MaxRiskScore {
		f.score = entities.MaxRiskScore
	}
	if len(f.recommendations) == 0 {
		f.recommendations = append(f.recommendations, recommendDefault)
	}

	result := &entities.RiskAnalysis{
		AISummary:       buildSummary(text),
		RiskScore:       f.score,
		RiskFactors:     f.riskFactors,
		Recommendations: f.recommendations,
		KeyTerms:        extractKeyTerms(text, entities.MaxKeyTerms),
		ConfidenceScore: confidenceFor(len(f.riskFactors)),
		ModelVersion:    HeuristicModelVersion,
	}
	result.Normalize()
	return result, nil
}

// confidenceFor grows with the number of findings, from 0.55 up to 0.90.
func confidenceFor(factorCount int) float64 {
	confidence := 0.55 + math.Min(0.35, 0.03*float64(factorCount))
	return math.Round(confidence*100) / 100
}

// scoreKeywords adds each keyword's weight once when it appears anywhere in the text.
func (f *findings) scoreKeywords(lowered string) {
	for _, kw := range criticalKeywords {
		if strings.Contains(lowered, kw.Phrase) {
			f.score += kw.Weight
			f.riskFactors = append(f.riskFactors, titleCase(kw.Phrase))
		}
	}
}

func (f *findings) scoreTextVitals(lowered string) {
	if m := bloodPressurePattern.FindStringSubmatch(lowered); m != nil {
		systolic, _ := strconv.Atoi(m[1])
		diastolic, _ := strconv.Atoi(m[2])
		if systolic >= systolicAlertAt || diastolic >= diastolicAlertAt {
			f.score += bloodPressureGain
			f.riskFactors = append(f.riskFactors, fmt.Sprintf("Hypertensive reading %d/%d", systolic, diastolic))
			f.recommendations = append(f.recommendations, recommendBloodPressure)
		}
	}

	if m := heartRatePattern.FindStringSubmatch(lowered); m != nil {
		heartRate, _ := strconv.Atoi(m[1])
		if heartRate >= heartRateHighAt || heartRate <= heartRateLowAt {
			f.score += heartRateGain
			f.riskFactors = append(f.riskFactors, fmt.Sprintf("Heart rate out of range (%d bpm)", heartRate))
		}
	}

	if m := oxygenSatPattern.FindStringSubmatch(lowered); m != nil {
		spo2, _ := strconv.Atoi(m[1])
		if spo2 < oxygenSatBelow {
			f.score += oxygenSatGain
			f.riskFactors = append(f.riskFactors, fmt.Sprintf("Oxygen saturation %d%%", spo2))
			f.recommendations = append(f.recommendations, recommendOxygen)
		}
	}
}

// scoreRecordedVitals applies the same thresholds to the latest structured
// reading. Findings may repeat ones already taken from the text.
func (f *findings) scoreRecordedVitals(v *entities.VitalsSnapshot) {
	if v.HeartRate != nil {
		hr := *v.HeartRate
		if hr >= heartRateHighAt || hr <= heartRateLowAt {
			f.score += heartRateGain
			f.riskFactors = append(f.riskFactors, fmt.Sprintf("Recent heart rate %d bpm", hr))
		}
	}

	if v.BloodPressureSystolic != nil && v.BloodPressureDiastolic != nil {
		systolic, diastolic := *v.BloodPressureSystolic, *v.BloodPressureDiastolic
		if systolic >= systolicAlertAt || diastolic >= diastolicAlertAt {
			f.score += bloodPressureGain
			f.riskFactors = append(f.riskFactors, fmt.Sprintf("Recent BP %d/%d", systolic, diastolic))
			f.recommendations = append(f.recommendations, recommendRecentBloodPressure)
		}
	}

	if v.OxygenSaturation != nil && *v.OxygenSaturation < oxygenSatBelow {
		f.score += oxygenSatGain
		f.riskFactors = append(f.riskFactors,
			fmt.Sprintf("Recent oxygen saturation %s%%", strconv.FormatFloat(*v.OxygenSaturation, 'f', -1, 64)))
		f.recommendations = append(f.recommendations, recommendRecentOxygen)
	}
}
