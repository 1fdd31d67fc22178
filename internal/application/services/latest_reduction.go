package services

import "github.com/careconnect/backend/internal/domain/entities"

// PatientInsightMap is an insertion-ordered map from patient ID to insight.
type PatientInsightMap struct {
	order []string
	byID  map[string]*entities.Insight
}

// LatestPerPatient keeps the first insight seen for each patient. Input must
// be ordered newest first, so the first occurrence is the latest.
func LatestPerPatient(newestFirst []*entities.Insight) *PatientInsightMap {
	m := &PatientInsightMap{byID: make(map[string]*entities.Insight)}
	for _, insight := range newestFirst {
		if insight == nil || insight.PatientID == "" {
			continue
		}
		if _, seen := m.byID[insight.PatientID]; seen {
			continue
		}
		m.byID[insight.PatientID] = insight
		m.order = append(m.order, insight.PatientID)
	}
	return m
}

// Len returns the number of patients.
func (m *PatientInsightMap) Len() int { return len(m.order) }

// Keys returns patient IDs in first-seen order.
func (m *PatientInsightMap) Keys() []string {
	keys := make([]string, len(m.order))
	copy(keys, m.order)
	return keys
}

// Get returns the insight kept for patientID.
func (m *PatientInsightMap) Get(patientID string) (*entities.Insight, bool) {
	insight, ok := m.byID[patientID]
	return insight, ok
}

// Each visits entries in first-seen order.
func (m *PatientInsightMap) Each(fn func(patientID string, insight *entities.Insight)) {
	for _, id := range m.order {
		fn(id, m.byID[id])
	}
}
