package entities

import (
	"math"
	"time"
)

const (
	// MaxRiskFactors caps the risk factor list on every insight.
	MaxRiskFactors = 6
	// MaxRecommendations caps the recommendation list on every insight.
	MaxRecommendations = 6
	// MaxKeyTerms caps the salient term list on every insight.
	MaxKeyTerms = 5

	// MinRiskScore and MaxRiskScore bound RiskScore.
	MinRiskScore = 0
	MaxRiskScore = 100

	// DefaultModelVersion is stored when an analysis does not tag itself.
	DefaultModelVersion = "ocr-v1"
)

// RiskLevel bands a risk score for display.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelElevated RiskLevel = "elevated"
	RiskLevelHigh     RiskLevel = "high"
)

// RiskLevelFor returns the band a score falls into.
func RiskLevelFor(score int) RiskLevel {
	switch {
	case score >= 80:
		return RiskLevelHigh
	case score >= 60:
		return RiskLevelElevated
	default:
		return RiskLevelLow
	}
}

// Insight is a persisted, immutable risk analysis of one patient document.
// New analyses are new rows; rows are never updated in place.
type Insight struct {
	ID              string    `json:"id" db:"id"`
	PatientID       string    `json:"patient_id" db:"patient_id"`
	RiskScore       int       `json:"risk_score" db:"risk_score"`
	AISummary       string    `json:"ai_summary" db:"ai_summary"`
	RiskFactors     []string  `json:"risk_factors" db:"risk_factors"`
	Recommendations []string  `json:"recommendations" db:"recommendations"`
	KeyTerms        []string  `json:"key_terms" db:"key_terms"`
	ConfidenceScore float64   `json:"confidence_score" db:"confidence_score"`
	ModelVersion    string    `json:"model_version" db:"model_version"`
	CreatedBy       *string   `json:"created_by" db:"created_by"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Level returns the display band for the stored score.
func (i *Insight) Level() RiskLevel {
	return RiskLevelFor(i.RiskScore)
}

// RiskAnalysis is the uniform payload produced by either analysis strategy.
type RiskAnalysis struct {
	AISummary       string   `json:"ai_summary"`
	RiskScore       int      `json:"risk_score"`
	RiskFactors     []string `json:"risk_factors"`
	Recommendations []string `json:"recommendations"`
	KeyTerms        []string `json:"key_terms"`
	ConfidenceScore float64  `json:"confidence_score"`
	ModelVersion    string   `json:"model_version"`
	SourceExcerpt   string   `json:"source_excerpt"`
}

// Normalize clamps scores into range, rounds confidence to the two decimals
// the ai_insights column stores, and truncates list fields to their caps.
func (a *RiskAnalysis) Normalize() {
	if a.RiskScore < MinRiskScore {
		a.RiskScore = MinRiskScore
	}
	if a.RiskScore > MaxRiskScore {
		a.RiskScore = MaxRiskScore
	}
	if a.ConfidenceScore < 0 {
		a.ConfidenceScore = 0
	}
	if a.ConfidenceScore > 1 {
		a.ConfidenceScore = 1
	}
	a.ConfidenceScore = math.Round(a.ConfidenceScore*100) / 100
	a.RiskFactors = capList(a.RiskFactors, MaxRiskFactors)
	a.Recommendations = capList(a.Recommendations, MaxRecommendations)
	a.KeyTerms = capList(a.KeyTerms, MaxKeyTerms)
}

// ToInsight builds the row to persist for a patient.
func (a *RiskAnalysis) ToInsight(patientID string, createdBy *string) *Insight {
	modelVersion := a.ModelVersion
	if modelVersion == "" {
		modelVersion = DefaultModelVersion
	}
	return &Insight{
		PatientID:       patientID,
		RiskScore:       a.RiskScore,
		AISummary:       a.AISummary,
		RiskFactors:     a.RiskFactors,
		Recommendations: a.Recommendations,
		KeyTerms:        a.KeyTerms,
		ConfidenceScore: a.ConfidenceScore,
		ModelVersion:    modelVersion,
		CreatedBy:       createdBy,
	}
}

func capList(items []string, max int) []string {
	if items == nil {
		return []string{}
	}
	if len(items) > max {
		return items[:max]
	}
	return items
}

// SourceDocument describes the document an insight was generated from.
type SourceDocument struct {
	StoragePath    string         `json:"storagePath"`
	FileName       string         `json:"fileName"`
	ExtractionMode ExtractionMode `json:"extractionMode"`
	ExtractedAt    time.Time      `json:"extractedAt"`
}

// InsightView is an insight decorated with non-persisted provenance.
type InsightView struct {
	*Insight
	RiskLevel      RiskLevel       `json:"risk_level"`
	SourceDocument *SourceDocument `json:"sourceDocument,omitempty"`
	LatestVitals   *VitalsSnapshot `json:"latestVitals"`
	SourceExcerpt  string          `json:"sourceExcerpt,omitempty"`
}

// NewInsightView wraps a stored insight for output.
func NewInsightView(insight *Insight) *InsightView {
	return &InsightView{
		Insight:   insight,
		RiskLevel: insight.Level(),
	}
}

// LatestInsight pairs a patient with their most recent insight.
type LatestInsight struct {
	Patient PatientSummary `json:"patient"`
	Insight *InsightView   `json:"insight"`
}
