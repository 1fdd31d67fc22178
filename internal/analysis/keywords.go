package analysis

// riskKeyword is a clinical phrase whose presence raises the risk score.
type riskKeyword struct {
	Phrase string
	Weight int
}

// criticalKeywords is scanned in order; factor order follows this table.
var criticalKeywords = []riskKeyword{
	{Phrase: "hypertensive crisis", Weight: 18},
	{Phrase: "myocardial infarction", Weight: 22},
	{Phrase: "ischemia", Weight: 15},
	{Phrase: "tachycardia", Weight: 10},
	{Phrase: "bradycardia", Weight: 10},
	{Phrase: "sepsis", Weight: 20},
	{Phrase: "respiratory failure", Weight: 22},
	{Phrase: "hypoxia", Weight: 15},
	{Phrase: "acute kidney injury", Weight: 12},
	{Phrase: "stroke", Weight: 22},
	{Phrase: "arrhythmia", Weight: 12},
	{Phrase: "pulmonary embolism", Weight: 20},
	{Phrase: "high risk", Weight: 10},
	{Phrase: "critical", Weight: 8},
	{Phrase: "unstable", Weight: 8},
}

// stopwords are dropped before counting key terms.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {}, "from": {},
	"have": {}, "patient": {}, "pain": {}, "were": {}, "they": {}, "which": {},
	"will": {}, "been": {}, "into": {}, "also": {}, "than": {}, "then": {},
	"there": {}, "their": {}, "about": {}, "without": {}, "within": {},
	"between": {}, "because": {}, "should": {}, "could": {}, "would": {},
	"while": {}, "over": {},
}

// Vital-sign thresholds shared by the text and structured-vitals rules.
const (
	systolicAlertAt   = 160
	diastolicAlertAt  = 100
	heartRateHighAt   = 110
	heartRateLowAt    = 50
	oxygenSatBelow    = 92
	bloodPressureGain = 12
	heartRateGain     = 8
	oxygenSatGain     = 10
)

const (
	recommendBloodPressure       = "Optimize antihypertensive regimen and monitor BP daily"
	recommendOxygen              = "Initiate supplemental oxygen and evaluate respiratory status"
	recommendRecentBloodPressure = "Review antihypertensive dosing and lifestyle adherence"
	recommendRecentOxygen        = "Reassess oxygenation given the recent low saturation reading"
	recommendDefault             = "Schedule follow-up visit within 7 days and review medication adherence"
	noSummaryAvailable           = "No structured summary available from document."
)
