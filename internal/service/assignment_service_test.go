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

type mockEnrollmentStore struct {
	enrollments map[string]models.Enrollment
	created     []*models.Enrollment
	deleted     []string
	originRows  int64
}

func (m *mockEnrollmentStore) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (m *mockEnrollmentStore) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		enrollment := e
		return &enrollment, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentStore) ListPermanentByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	var out []models.Enrollment
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.AssignmentType != models.AssignmentTemporary {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockEnrollmentStore) ListByClass(ctx context.Context, classID string) ([]models.Enrollment, error) {
	var out []models.Enrollment
	for _, e := range m.enrollments {
		if e.ClassID == classID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockEnrollmentStore) ExistsPermanent(ctx context.Context, studentID, classID string) (bool, error) {
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.ClassID == classID && e.AssignmentType != models.AssignmentTemporary {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockEnrollmentStore) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.enrollments == nil {
		m.enrollments = make(map[string]models.Enrollment)
	}
	if enrollment.ID == "" {
		enrollment.ID = "new-enrollment"
	}
	m.enrollments[enrollment.ID] = *enrollment
	m.created = append(m.created, enrollment)
	return nil
}

func (m *mockEnrollmentStore) Delete(ctx context.Context, id string) error {
	delete(m.enrollments, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockEnrollmentStore) UpdateOriginByClass(ctx context.Context, classID string, origin models.EnrollmentOrigin) (int64, error) {
	var rows int64
	for id, e := range m.enrollments {
		if e.ClassID == classID {
			e.Origin = origin
			m.enrollments[id] = e
			rows++
		}
	}
	m.originRows = rows
	return rows, nil
}

type mockStudentReader struct {
	students map[string]*models.Student
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockSeatAccountant struct {
	availability models.OccurrenceAvailability
	invalidated  []string
}

func (m *mockSeatAccountant) Availability(ctx context.Context, occurrenceID string, hint *int) (*models.OccurrenceAvailability, error) {
	out := m.availability
	return &out, nil
}

func (m *mockSeatAccountant) Invalidate(ctx context.Context, classID string) {
	m.invalidated = append(m.invalidated, classID)
}

type mockReleaseFiller struct {
	canceled *models.SlotRelease
	calls    int
}

func (m *mockReleaseFiller) CancelForFilledSeat(ctx context.Context, classID string, date time.Time, incomingStudentID string) (*models.SlotRelease, error) {
	m.calls++
	return m.canceled, nil
}

type mockCreditFulfiller struct {
	credit *models.MakeupCredit
	calls  int
}

func (m *mockCreditFulfiller) FulfillOldest(ctx context.Context, studentID string, date time.Time, occurrenceID *string) (*models.MakeupCredit, bool, error) {
	m.calls++
	if m.credit == nil {
		return nil, false, nil
	}
	return m.credit, true, nil
}

func newAssignmentFixture(enrollments *mockEnrollmentStore, seats *mockSeatAccountant, releases *mockReleaseFiller, credits *mockCreditFulfiller) *AssignmentService {
	date := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	students := &mockStudentReader{students: map[string]*models.Student{
		"s1": {ID: "s1", FullName: "Marta", Active: true},
		"s2": {ID: "s2", FullName: "Pau", Active: true},
	}}
	classes := &mockCapacityClassReader{classes: map[string]*models.Class{
		"c1": groupClass("c1"),
	}}
	occurrences := &mockOccurrenceReader{occurrences: map[string]*models.Occurrence{
		"o1": occurrenceOn("o1", "c1", date),
	}}
	return NewAssignmentService(enrollments, students, classes, occurrences, seats, releases, credits, nil, zap.NewNop())
}

func TestAssignmentServiceAssignPermanentOriginFromName(t *testing.T) {
	store := &mockEnrollmentStore{}
	seats := &mockSeatAccountant{}
	svc := newAssignmentFixture(store, seats, &mockReleaseFiller{}, &mockCreditFulfiller{})

	enrollment, err := svc.AssignPermanent(context.Background(), AssignStudentRequest{StudentID: "s1", ClassID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, models.OriginSchool, enrollment.Origin, "class named Escuela resolves to school")
	assert.Equal(t, models.AssignmentPermanent, enrollment.AssignmentType)
	assert.Contains(t, seats.invalidated, "c1")
}

func TestAssignmentServiceAssignPermanentOriginFromMajority(t *testing.T) {
	store := &mockEnrollmentStore{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "x1", ClassID: "c1", Origin: models.OriginInternal, AssignmentType: models.AssignmentPermanent},
		"e2": {ID: "e2", StudentID: "x2", ClassID: "c1", Origin: models.OriginInternal, AssignmentType: models.AssignmentPermanent},
	}}
	svc := newAssignmentFixture(store, &mockSeatAccountant{}, &mockReleaseFiller{}, &mockCreditFulfiller{})

	enrollment, err := svc.AssignPermanent(context.Background(), AssignStudentRequest{StudentID: "s1", ClassID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, models.OriginInternal, enrollment.Origin, "majority among existing enrollments wins over the name")
}

func TestAssignmentServiceAssignPermanentClassFull(t *testing.T) {
	store := &mockEnrollmentStore{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "x1", ClassID: "c1", AssignmentType: models.AssignmentPermanent},
		"e2": {ID: "e2", StudentID: "x2", ClassID: "c1", AssignmentType: models.AssignmentPermanent},
		"e3": {ID: "e3", StudentID: "x3", ClassID: "c1", AssignmentType: models.AssignmentPermanent},
		"e4": {ID: "e4", StudentID: "x4", ClassID: "c1", AssignmentType: models.AssignmentPermanent},
	}}
	svc := newAssignmentFixture(store, &mockSeatAccountant{}, &mockReleaseFiller{}, &mockCreditFulfiller{})

	_, err := svc.AssignPermanent(context.Background(), AssignStudentRequest{StudentID: "s1", ClassID: "c1"})
	require.Error(t, err)
}

func TestAssignmentServiceFillGapSupersedesRelease(t *testing.T) {
	store := &mockEnrollmentStore{enrollments: map[string]models.Enrollment{
		"prior": {ID: "prior", StudentID: "s2", ClassID: "c9", Origin: models.OriginSchool, AssignmentType: models.AssignmentPermanent},
	}}
	seats := &mockSeatAccountant{availability: models.OccurrenceAvailability{FreeSeatsReal: 2}}
	releases := &mockReleaseFiller{canceled: &models.SlotRelease{ID: "r1", Status: models.ReleaseStatusCanceled}}
	svc := newAssignmentFixture(store, seats, releases, &mockCreditFulfiller{})

	result, err := svc.FillGap(context.Background(), FillGapRequest{StudentID: "s2", OccurrenceID: "o1"})
	require.NoError(t, err)
	require.NotNil(t, result.Enrollment)
	assert.Equal(t, models.AssignmentTemporary, result.Enrollment.AssignmentType)
	require.NotNil(t, result.Enrollment.OccurrenceID)
	assert.Equal(t, "o1", *result.Enrollment.OccurrenceID)
	assert.Equal(t, models.OriginSchool, result.Enrollment.Origin, "inferred from the student's own enrollments")
	require.NotNil(t, result.CanceledRelease)
	assert.Equal(t, "r1", result.CanceledRelease.ID)
	assert.Equal(t, 1, releases.calls)
}

func TestAssignmentServiceFillGapMakeupFulfillsCredit(t *testing.T) {
	store := &mockEnrollmentStore{enrollments: map[string]models.Enrollment{
		"prior": {ID: "prior", StudentID: "s2", ClassID: "c9", Origin: models.OriginInternal, AssignmentType: models.AssignmentPermanent},
	}}
	seats := &mockSeatAccountant{availability: models.OccurrenceAvailability{FreeSeatsReal: 1}}
	credits := &mockCreditFulfiller{credit: &models.MakeupCredit{ID: "cred-1", Status: models.CreditStatusFulfilled}}
	svc := newAssignmentFixture(store, seats, &mockReleaseFiller{}, credits)

	result, err := svc.FillGap(context.Background(), FillGapRequest{StudentID: "s2", OccurrenceID: "o1", MakeupFill: true})
	require.NoError(t, err)
	assert.True(t, result.Enrollment.MakeupFill)
	require.NotNil(t, result.FulfilledCredit)
	assert.Equal(t, "cred-1", result.FulfilledCredit.ID)
	assert.Equal(t, 1, credits.calls)
}

func TestAssignmentServiceFillGapBrandNewStudentNeedsOriginDecision(t *testing.T) {
	store := &mockEnrollmentStore{}
	seats := &mockSeatAccountant{availability: models.OccurrenceAvailability{FreeSeatsReal: 2}}
	svc := newAssignmentFixture(store, seats, &mockReleaseFiller{}, &mockCreditFulfiller{})

	result, err := svc.FillGap(context.Background(), FillGapRequest{StudentID: "s1", OccurrenceID: "o1"})
	require.NoError(t, err)
	assert.True(t, result.OriginDecisionRequired)
	assert.Nil(t, result.Enrollment)
	assert.Empty(t, store.created, "nothing written without the operator decision")

	// With the explicit decision supplied the fill proceeds.
	result, err = svc.FillGap(context.Background(), FillGapRequest{StudentID: "s1", OccurrenceID: "o1", Origin: models.OriginInternal})
	require.NoError(t, err)
	assert.False(t, result.OriginDecisionRequired)
	require.NotNil(t, result.Enrollment)
	assert.Equal(t, models.OriginInternal, result.Enrollment.Origin)
}

func TestAssignmentServiceFillGapNoFreeSeats(t *testing.T) {
	store := &mockEnrollmentStore{}
	seats := &mockSeatAccountant{availability: models.OccurrenceAvailability{FreeSeatsReal: 0}}
	svc := newAssignmentFixture(store, seats, &mockReleaseFiller{}, &mockCreditFulfiller{})

	_, err := svc.FillGap(context.Background(), FillGapRequest{StudentID: "s1", OccurrenceID: "o1"})
	require.Error(t, err)
	assert.Empty(t, store.created)
}

func TestAssignmentServiceUnassign(t *testing.T) {
	store := &mockEnrollmentStore{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", ClassID: "c1"},
	}}
	seats := &mockSeatAccountant{}
	svc := newAssignmentFixture(store, seats, &mockReleaseFiller{}, &mockCreditFulfiller{})

	require.NoError(t, svc.Unassign(context.Background(), "e1"))
	assert.Contains(t, store.deleted, "e1")
	assert.Contains(t, seats.invalidated, "c1")

	err := svc.Unassign(context.Background(), "ghost")
	require.Error(t, err)
}

func TestAssignmentServiceChangeClassOrigin(t *testing.T) {
	store := &mockEnrollmentStore{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", ClassID: "c1", Origin: models.OriginSchool},
		"e2": {ID: "e2", StudentID: "s2", ClassID: "c1", Origin: models.OriginSchool},
		"e3": {ID: "e3", StudentID: "s3", ClassID: "other", Origin: models.OriginSchool},
	}}
	svc := newAssignmentFixture(store, &mockSeatAccountant{}, &mockReleaseFiller{}, &mockCreditFulfiller{})

	rows, err := svc.ChangeClassOrigin(context.Background(), "c1", models.OriginInternal)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)
	assert.Equal(t, models.OriginInternal, store.enrollments["e1"].Origin)
	assert.Equal(t, models.OriginSchool, store.enrollments["e3"].Origin, "other classes untouched")

	_, err = svc.ChangeClassOrigin(context.Background(), "c1", "bogus")
	require.Error(t, err)
}
