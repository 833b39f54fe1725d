package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/molinacode/padel-crm-api/internal/models"
)

type mockAttendanceStore struct {
	upserted []*models.Attendance
}

func (m *mockAttendanceStore) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	return nil, 0, nil
}

func (m *mockAttendanceStore) Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error) {
	stored := *record
	stored.ID = "att-1"
	m.upserted = append(m.upserted, &stored)
	return &stored, nil
}

type mockAbsenceReleaser struct {
	release      *models.SlotRelease
	created      bool
	openErr      error
	canceled     *models.SlotRelease
	openCalls    int
	cancelCalls  int
	lastReason   models.ReleaseReason
	lastStudent  string
	lastClass    string
	lastAbsence  time.Time
	lastCanceled time.Time
}

func (m *mockAbsenceReleaser) OpenForAbsence(ctx context.Context, studentID, classID string, date time.Time, reason models.ReleaseReason) (*models.SlotRelease, bool, error) {
	m.openCalls++
	m.lastStudent, m.lastClass, m.lastAbsence, m.lastReason = studentID, classID, date, reason
	if m.openErr != nil {
		return nil, false, m.openErr
	}
	return m.release, m.created, nil
}

func (m *mockAbsenceReleaser) CancelOnAttendance(ctx context.Context, studentID, classID string, date time.Time) (*models.SlotRelease, error) {
	m.cancelCalls++
	m.lastCanceled = date
	return m.canceled, nil
}

type mockMakeupApplier struct {
	credit      *models.MakeupCredit
	granted     bool
	outcome     *MakeupOutcome
	autoCalls   int
	applyCalls  int
	lastRelease *string
}

func (m *mockMakeupApplier) CreateAuto(ctx context.Context, studentID, classID string, missedDate time.Time, releaseID *string) (*models.MakeupCredit, bool, error) {
	m.autoCalls++
	m.lastRelease = releaseID
	return m.credit, m.granted, nil
}

func (m *mockMakeupApplier) ApplyMakeupMark(ctx context.Context, studentID, classID string, date time.Time, occurrenceID *string) (*MakeupOutcome, error) {
	m.applyCalls++
	if m.outcome == nil {
		return &MakeupOutcome{}, nil
	}
	return m.outcome, nil
}

type mockSeatInvalidator struct {
	classes []string
}

func (m *mockSeatInvalidator) Invalidate(ctx context.Context, classID string) {
	m.classes = append(m.classes, classID)
}

func TestAttendanceServiceMarkJustifiedAbsence(t *testing.T) {
	date := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	store := &mockAttendanceStore{}
	releases := &mockAbsenceReleaser{release: &models.SlotRelease{ID: "r1", Status: models.ReleaseStatusActive, RightToMakeup: true}, created: true}
	makeups := &mockMakeupApplier{credit: &models.MakeupCredit{ID: "cred-1", Status: models.CreditStatusPending}, granted: true}
	seats := &mockSeatInvalidator{}
	svc := NewAttendanceService(store, releases, makeups, seats, nil, zap.NewNop())

	result, err := svc.Mark(context.Background(), MarkAttendanceRequest{
		StudentID: "s1", ClassID: "c1", Date: date, Status: models.AttendanceStatusJustified,
	})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusJustified, result.Attendance.Status)
	require.NotNil(t, result.Release)
	require.NotNil(t, result.Credit)
	assert.Equal(t, models.ReleaseReasonJustified, releases.lastReason)
	require.NotNil(t, makeups.lastRelease)
	assert.Equal(t, "r1", *makeups.lastRelease)
	assert.Empty(t, result.Failed())
	assert.Contains(t, seats.classes, "c1")
}

func TestAttendanceServiceMarkUnjustifiedAbsenceNoCredit(t *testing.T) {
	date := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	releases := &mockAbsenceReleaser{release: &models.SlotRelease{ID: "r1"}, created: true}
	makeups := &mockMakeupApplier{}
	svc := NewAttendanceService(&mockAttendanceStore{}, releases, makeups, nil, nil, zap.NewNop())

	result, err := svc.Mark(context.Background(), MarkAttendanceRequest{
		StudentID: "s1", ClassID: "c1", Date: date, Status: models.AttendanceStatusUnjustified,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReleaseReasonUnjustified, releases.lastReason)
	assert.Zero(t, makeups.autoCalls, "unjustified absence grants no credit")
	assert.Nil(t, result.Credit)
}

func TestAttendanceServiceMarkReleaseFailureIsReportedNotRolledBack(t *testing.T) {
	date := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	store := &mockAttendanceStore{}
	releases := &mockAbsenceReleaser{openErr: errors.New("store down")}
	svc := NewAttendanceService(store, releases, &mockMakeupApplier{}, nil, nil, zap.NewNop())

	result, err := svc.Mark(context.Background(), MarkAttendanceRequest{
		StudentID: "s1", ClassID: "c1", Date: date, Status: models.AttendanceStatusInjury,
	})
	require.NoError(t, err, "the mark itself stands")
	assert.Len(t, store.upserted, 1)
	failed := result.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "slot_release", failed[0].Step)
}

func TestAttendanceServiceMarkAttendedCancelsCoveringRelease(t *testing.T) {
	date := time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC)
	releases := &mockAbsenceReleaser{canceled: &models.SlotRelease{ID: "r1", Status: models.ReleaseStatusCanceled}}
	svc := NewAttendanceService(&mockAttendanceStore{}, releases, &mockMakeupApplier{}, nil, nil, zap.NewNop())

	result, err := svc.Mark(context.Background(), MarkAttendanceRequest{
		StudentID: "s1", ClassID: "c1", Date: date, Status: models.AttendanceStatusAttended,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, releases.cancelCalls)
	require.NotNil(t, result.Release)
	assert.Equal(t, models.ReleaseStatusCanceled, result.Release.Status)
}

func TestAttendanceServiceMarkMakeupFulfillsCredit(t *testing.T) {
	date := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	makeups := &mockMakeupApplier{outcome: &MakeupOutcome{Applied: true, Credit: &models.MakeupCredit{ID: "cred-1", Status: models.CreditStatusFulfilled}}}
	releases := &mockAbsenceReleaser{}
	svc := NewAttendanceService(&mockAttendanceStore{}, releases, makeups, nil, nil, zap.NewNop())

	result, err := svc.Mark(context.Background(), MarkAttendanceRequest{
		StudentID: "s1", ClassID: "c1", Date: date, Status: models.AttendanceStatusMakeup,
	})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusMakeup, result.Attendance.Status)
	require.NotNil(t, result.Credit)
	assert.Zero(t, releases.cancelCalls, "a makeup mark does not cancel releases")
}

func TestAttendanceServiceMarkMakeupWithoutBookkeepingDowngrades(t *testing.T) {
	date := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	store := &mockAttendanceStore{}
	svc := NewAttendanceService(store, &mockAbsenceReleaser{}, &mockMakeupApplier{}, nil, nil, zap.NewNop())

	result, err := svc.Mark(context.Background(), MarkAttendanceRequest{
		StudentID: "s1", ClassID: "c1", Date: date, Status: models.AttendanceStatusMakeup,
	})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusAttended, result.Attendance.Status, "recorded as plain attendance")
	assert.Nil(t, result.Credit)
	var detail string
	for _, step := range result.Steps {
		if step.Step == "makeup_credit" {
			detail = step.Detail
		}
	}
	assert.Contains(t, detail, "no makeup bookkeeping applied")
}
