package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/careconnect/backend/internal/application/services"
	"github.com/careconnect/backend/internal/domain/entities"
)

func TestLatestPerPatient_FirstSeenWins(t *testing.T) {
	t3 := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
	rows := []*entities.Insight{
		{ID: "a-t3", PatientID: "A", CreatedAt: t3},
		{ID: "b-1", PatientID: "B", CreatedAt: t3.Add(-time.Hour)},
		{ID: "a-t2", PatientID: "A", CreatedAt: t3.Add(-24 * time.Hour)},
		nil,
		{ID: "orphan"},
		{ID: "a-t1", PatientID: "A", CreatedAt: t3.Add(-48 * time.Hour)},
	}

	latest := services.LatestPerPatient(rows)

	assert.Equal(t, 2, latest.Len())
	assert.Equal(t, []string{"A", "B"}, latest.Keys())

	a, ok := latest.Get("A")
	assert.True(t, ok)
	assert.Equal(t, "a-t3", a.ID)

	var visited []string
	latest.Each(func(patientID string, insight *entities.Insight) {
		visited = append(visited, patientID+":"+insight.ID)
	})
	assert.Equal(t, []string{"A:a-t3", "B:b-1"}, visited)
}

func TestLatestPerPatient_Empty(t *testing.T) {
	latest := services.LatestPerPatient(nil)
	assert.Zero(t, latest.Len())
	assert.Empty(t, latest.Keys())
}
