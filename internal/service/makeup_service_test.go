package service

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/molinacode/padel-crm-api/internal/models"
)

type mockCreditRepo struct {
	credits   map[string]models.MakeupCredit
	created   []*models.MakeupCredit
	fulfilled []string
	canceled  []string
}

func (m *mockCreditRepo) List(ctx context.Context, filter models.MakeupCreditFilter) ([]models.MakeupCreditDetail, int, error) {
	return nil, 0, nil
}

func (m *mockCreditRepo) FindByID(ctx context.Context, id string) (*models.MakeupCredit, error) {
	if c, ok := m.credits[id]; ok {
		credit := c
		return &credit, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCreditRepo) OldestPending(ctx context.Context, studentID string) (*models.MakeupCredit, error) {
	var candidates []models.MakeupCredit
	for _, c := range m.credits {
		if c.StudentID == studentID && c.Status == models.CreditStatusPending {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return nil, sql.ErrNoRows
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].MissedDate.Before(candidates[j].MissedDate) })
	return &candidates[0], nil
}

func (m *mockCreditRepo) ListByStudent(ctx context.Context, studentID string) ([]models.MakeupCredit, error) {
	var out []models.MakeupCredit
	for _, c := range m.credits {
		if c.StudentID == studentID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MissedDate.Before(out[j].MissedDate) })
	return out, nil
}

func (m *mockCreditRepo) Create(ctx context.Context, credit *models.MakeupCredit) error {
	if m.credits == nil {
		m.credits = make(map[string]models.MakeupCredit)
	}
	if credit.ID == "" {
		credit.ID = "new-credit"
	}
	m.credits[credit.ID] = *credit
	m.created = append(m.created, credit)
	return nil
}

func (m *mockCreditRepo) Fulfill(ctx context.Context, id string, date time.Time, occurrenceID *string, notes *string) error {
	if c, ok := m.credits[id]; ok {
		c.Status = models.CreditStatusFulfilled
		c.FulfilledDate = &date
		c.FulfillmentOccurrenceID = occurrenceID
		m.credits[id] = c
	}
	m.fulfilled = append(m.fulfilled, id)
	return nil
}

func (m *mockCreditRepo) Cancel(ctx context.Context, id, reason string) error {
	if c, ok := m.credits[id]; ok {
		c.Status = models.CreditStatusCanceled
		c.CancelReason = &reason
		m.credits[id] = c
	}
	m.canceled = append(m.canceled, id)
	return nil
}

type mockAttendanceSnapshot struct {
	records  []models.Attendance
	unlinked []models.Attendance
}

func (m *mockAttendanceSnapshot) ListByStudent(ctx context.Context, studentID string) ([]models.Attendance, error) {
	return m.records, nil
}

func (m *mockAttendanceSnapshot) ListJustifiedWithoutCredit(ctx context.Context, studentID string) ([]models.Attendance, error) {
	return m.unlinked, nil
}

func TestMakeupServiceFulfillOldest(t *testing.T) {
	older := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	repo := &mockCreditRepo{credits: map[string]models.MakeupCredit{
		"c-new": {ID: "c-new", StudentID: "s1", ClassID: "c1", MissedDate: newer, Status: models.CreditStatusPending},
		"c-old": {ID: "c-old", StudentID: "s1", ClassID: "c1", MissedDate: older, Status: models.CreditStatusPending},
	}}
	svc := NewMakeupService(repo, &mockAttendanceSnapshot{}, nil, zap.NewNop())

	recovery := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	credit, fulfilled, err := svc.FulfillOldest(context.Background(), "s1", recovery, strPtr("o9"))
	require.NoError(t, err)
	assert.True(t, fulfilled)
	assert.Equal(t, "c-old", credit.ID, "oldest pending by missed date wins")
	assert.Equal(t, models.CreditStatusFulfilled, credit.Status)
	require.NotNil(t, credit.FulfilledDate)
	assert.Equal(t, recovery, *credit.FulfilledDate)
}

func TestMakeupServiceFulfillOldestNonePending(t *testing.T) {
	svc := NewMakeupService(&mockCreditRepo{}, &mockAttendanceSnapshot{}, nil, zap.NewNop())

	credit, fulfilled, err := svc.FulfillOldest(context.Background(), "s1", time.Now(), nil)
	require.NoError(t, err)
	assert.False(t, fulfilled)
	assert.Nil(t, credit)
}

func TestMakeupServiceApplyMakeupMarkInferential(t *testing.T) {
	missed := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	recovery := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	repo := &mockCreditRepo{}
	attendance := &mockAttendanceSnapshot{unlinked: []models.Attendance{
		{ID: "a1", StudentID: "s1", ClassID: "c1", Date: missed, Status: models.AttendanceStatusJustified},
	}}
	svc := NewMakeupService(repo, attendance, nil, zap.NewNop())

	outcome, err := svc.ApplyMakeupMark(context.Background(), "s1", "c1", recovery, nil)
	require.NoError(t, err)
	assert.True(t, outcome.Applied)
	assert.True(t, outcome.Inferred)
	require.NotNil(t, outcome.Credit)
	assert.Equal(t, missed, outcome.Credit.MissedDate)
	assert.Equal(t, models.CreditStatusFulfilled, outcome.Credit.Status)
}

func TestMakeupServiceApplyMakeupMarkNothingToApply(t *testing.T) {
	svc := NewMakeupService(&mockCreditRepo{}, &mockAttendanceSnapshot{}, nil, zap.NewNop())

	outcome, err := svc.ApplyMakeupMark(context.Background(), "s1", "c1", time.Now(), nil)
	require.NoError(t, err)
	assert.False(t, outcome.Applied)
	assert.Nil(t, outcome.Credit)
}

func TestMakeupServiceCancel(t *testing.T) {
	repo := &mockCreditRepo{credits: map[string]models.MakeupCredit{
		"c1": {ID: "c1", StudentID: "s1", Status: models.CreditStatusPending},
	}}
	svc := NewMakeupService(repo, &mockAttendanceSnapshot{}, nil, zap.NewNop())

	_, err := svc.Cancel(context.Background(), "c1", "")
	require.Error(t, err, "reason is mandatory")

	credit, err := svc.Cancel(context.Background(), "c1", "student left the academy")
	require.NoError(t, err)
	assert.Equal(t, models.CreditStatusCanceled, credit.Status)

	_, err = svc.Cancel(context.Background(), "c1", "again")
	require.Error(t, err, "canceled is terminal")
}

func TestReconcilePendingExcludesMatchedCredits(t *testing.T) {
	missed := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	later := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	credits := []models.MakeupCredit{
		{ID: "c1", StudentID: "s1", ClassID: "cls", MissedDate: missed, Status: models.CreditStatusPending},
	}
	attendances := []models.Attendance{
		{ID: "a1", StudentID: "s1", ClassID: "cls", Date: later, Status: models.AttendanceStatusMakeup},
	}

	pending := ReconcilePending(credits, attendances)
	assert.Empty(t, pending, "matched credit is not truly pending")
}

func TestReconcilePendingOneAttendancePerCredit(t *testing.T) {
	d1 := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC)
	later := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	credits := []models.MakeupCredit{
		{ID: "c1", StudentID: "s1", ClassID: "cls", MissedDate: d1, Status: models.CreditStatusPending},
		{ID: "c2", StudentID: "s1", ClassID: "cls", MissedDate: d2, Status: models.CreditStatusPending},
	}
	attendances := []models.Attendance{
		{ID: "a1", StudentID: "s1", ClassID: "cls", Date: later, Status: models.AttendanceStatusMakeup},
	}

	pending := ReconcilePending(credits, attendances)
	require.Len(t, pending, 1, "a single attendance satisfies at most one credit")
	assert.Equal(t, "c2", pending[0].ID)
}

func TestReconcilePendingClaimedByFulfilledCreditFirst(t *testing.T) {
	d1 := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	recovery := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	credits := []models.MakeupCredit{
		{ID: "c-done", StudentID: "s1", ClassID: "cls", MissedDate: d1, Status: models.CreditStatusFulfilled, FulfilledDate: &recovery},
		{ID: "c-open", StudentID: "s1", ClassID: "cls", MissedDate: d1.AddDate(0, 0, 7), Status: models.CreditStatusPending},
	}
	attendances := []models.Attendance{
		{ID: "a1", StudentID: "s1", ClassID: "cls", Date: recovery, Status: models.AttendanceStatusMakeup},
	}

	pending := ReconcilePending(credits, attendances)
	require.Len(t, pending, 1, "the fulfilled credit already claimed the only match")
	assert.Equal(t, "c-open", pending[0].ID)
}
