package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/molinacode/padel-crm-api/internal/models"
)

type mockClassRepo struct {
	classes map[string]models.Class
}

func (m *mockClassRepo) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	return nil, 0, nil
}

func (m *mockClassRepo) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if c, ok := m.classes[id]; ok {
		class := c
		return &class, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassRepo) Create(ctx context.Context, class *models.Class) error {
	if m.classes == nil {
		m.classes = make(map[string]models.Class)
	}
	if class.ID == "" {
		class.ID = "new-class"
	}
	m.classes[class.ID] = *class
	return nil
}

func (m *mockClassRepo) Update(ctx context.Context, class *models.Class) error {
	m.classes[class.ID] = *class
	return nil
}

func (m *mockClassRepo) Delete(ctx context.Context, id string) error {
	delete(m.classes, id)
	return nil
}

type mockOccurrenceWriter struct {
	inserted  []models.Occurrence
	deleted   []string
	surviving []models.Occurrence
}

func (m *mockOccurrenceWriter) BulkInsert(ctx context.Context, occurrences []models.Occurrence) error {
	m.inserted = append(m.inserted, occurrences...)
	return nil
}

func (m *mockOccurrenceWriter) DeleteFutureGenerated(ctx context.Context, classID string, from time.Time) error {
	m.deleted = append(m.deleted, classID)
	return nil
}

func (m *mockOccurrenceWriter) List(ctx context.Context, filter models.OccurrenceFilter) ([]models.Occurrence, int, error) {
	return m.surviving, len(m.surviving), nil
}

func TestGenerateOccurrences(t *testing.T) {
	class := &models.Class{
		ID:        "c1",
		Weekday:   1, // Monday
		StartTime: "18:00",
		EndTime:   "19:00",
		StartDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),  // Sunday
		EndDate:   time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), // Saturday
	}
	occurrences := GenerateOccurrences(class)
	require.Len(t, occurrences, 4)
	for _, occurrence := range occurrences {
		assert.Equal(t, time.Monday, occurrence.Date.Weekday())
		assert.Equal(t, "18:00", occurrence.StartTime)
		assert.Equal(t, models.OccurrenceStatusScheduled, occurrence.Status)
	}
	assert.Equal(t, time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC), occurrences[0].Date)
	assert.Equal(t, time.Date(2026, 2, 23, 0, 0, 0, 0, time.UTC), occurrences[3].Date)
}

func TestGenerateOccurrencesEmptyWindow(t *testing.T) {
	class := &models.Class{
		Weekday:   1,
		StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	assert.Empty(t, GenerateOccurrences(class))
	assert.Empty(t, GenerateOccurrences(nil))
}

func TestClassServiceCreateGeneratesSeries(t *testing.T) {
	repo := &mockClassRepo{}
	occurrences := &mockOccurrenceWriter{}
	svc := NewClassService(repo, occurrences, nil, zap.NewNop())

	class, count, err := svc.Create(context.Background(), CreateClassRequest{
		Name:      "Escuela Lunes 18:00",
		Kind:      models.ClassKindGroup,
		Weekday:   1,
		StartTime: "18:00",
		EndTime:   "19:00",
		StartDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.Len(t, occurrences.inserted, 4)
	assert.Equal(t, class.ID, occurrences.inserted[0].ClassID)
}

func TestClassServiceUpdateSkipsRescheduledDates(t *testing.T) {
	future := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 1, 0)
	// Align the window to a Monday span containing one rescheduled session.
	for future.Weekday() != time.Monday {
		future = future.AddDate(0, 0, 1)
	}
	repo := &mockClassRepo{classes: map[string]models.Class{
		"c1": {ID: "c1", Name: "Escuela Lunes", Kind: models.ClassKindGroup, Weekday: 1},
	}}
	occurrences := &mockOccurrenceWriter{surviving: []models.Occurrence{
		{ID: "o-moved", ClassID: "c1", Date: future, Rescheduled: true},
	}}
	svc := NewClassService(repo, occurrences, nil, zap.NewNop())

	_, count, err := svc.Update(context.Background(), "c1", UpdateClassRequest{
		Name:      "Escuela Lunes",
		Kind:      models.ClassKindGroup,
		Weekday:   1,
		StartTime: "18:00",
		EndTime:   "19:00",
		StartDate: future,
		EndDate:   future.AddDate(0, 0, 21),
	})
	require.NoError(t, err)
	assert.Contains(t, occurrences.deleted, "c1")
	// Four Mondays in the window, one already held by the moved session.
	assert.Equal(t, 3, count)
	for _, occurrence := range occurrences.inserted {
		assert.False(t, occurrence.Date.Equal(future), "rescheduled date not re-inserted")
	}
}
