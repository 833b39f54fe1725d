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

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func groupClass(id string) *models.Class {
	return &models.Class{ID: id, Name: "Escuela Lunes 18:00", Kind: models.ClassKindGroup}
}

func occurrenceOn(id, classID string, date time.Time) *models.Occurrence {
	return &models.Occurrence{ID: id, ClassID: classID, Date: date, Status: models.OccurrenceStatusScheduled}
}

func permanentEnrollment(id, studentID, classID string) models.EnrollmentDetail {
	return models.EnrollmentDetail{Enrollment: models.Enrollment{ID: id, StudentID: studentID, ClassID: classID, AssignmentType: models.AssignmentPermanent, Origin: models.OriginSchool}}
}

func TestResolveAvailabilityBaseline(t *testing.T) {
	date := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	out := ResolveAvailability(AvailabilityInput{
		Class:      groupClass("c1"),
		Occurrence: occurrenceOn("o1", "c1", date),
		Enrollments: []models.EnrollmentDetail{
			permanentEnrollment("e1", "s1", "c1"),
			permanentEnrollment("e2", "s2", "c1"),
			permanentEnrollment("e3", "s3", "c1"),
		},
	})
	assert.Equal(t, 4, out.Capacity)
	assert.Equal(t, 3, out.OccupiedSeats)
	assert.Equal(t, 1, out.FreeSeatsReal)
	assert.Equal(t, 1, out.FreeSeatsOffered)
	assert.Len(t, out.Seats, 3)
}

func TestResolveAvailabilityTemporaryScopedToOtherOccurrence(t *testing.T) {
	date := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	temp := models.EnrollmentDetail{Enrollment: models.Enrollment{ID: "e2", StudentID: "s2", ClassID: "c1", AssignmentType: models.AssignmentTemporary, OccurrenceID: strPtr("o-other")}}
	out := ResolveAvailability(AvailabilityInput{
		Class:       groupClass("c1"),
		Occurrence:  occurrenceOn("o1", "c1", date),
		Enrollments: []models.EnrollmentDetail{permanentEnrollment("e1", "s1", "c1"), temp},
	})
	assert.Equal(t, 1, out.OccupiedSeats, "temporary enrollment for another occurrence must not count")

	temp.OccurrenceID = strPtr("o1")
	out = ResolveAvailability(AvailabilityInput{
		Class:       groupClass("c1"),
		Occurrence:  occurrenceOn("o1", "c1", date),
		Enrollments: []models.EnrollmentDetail{permanentEnrollment("e1", "s1", "c1"), temp},
	})
	assert.Equal(t, 2, out.OccupiedSeats)
}

func TestResolveAvailabilityJustifiedAbsenceFreesSeatOnce(t *testing.T) {
	// A justified absence opens a release AND leaves a justified mark for
	// the same student; the seat is freed once, not twice.
	date := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	out := ResolveAvailability(AvailabilityInput{
		Class:      groupClass("c1"),
		Occurrence: occurrenceOn("o1", "c1", date),
		Enrollments: []models.EnrollmentDetail{
			permanentEnrollment("e1", "s1", "c1"),
			permanentEnrollment("e2", "s2", "c1"),
			permanentEnrollment("e3", "s3", "c1"),
		},
		Releases: []models.SlotRelease{{
			ID: "r1", StudentID: "s1", ClassID: "c1",
			StartDate: date, EndDate: date.AddDate(0, 3, 0),
			Reason: models.ReleaseReasonJustified, Status: models.ReleaseStatusActive,
		}},
		JustifiedStudents: []string{"s1"},
	})
	assert.Equal(t, 2, out.OccupiedSeats)
	assert.Equal(t, 2, out.FreeSeatsReal)
}

func TestResolveAvailabilityFilledSeatAfterRelease(t *testing.T) {
	// Gap filled by a temporary enrollment while the absent student's
	// release is still visible in the snapshot.
	date := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	temp := models.EnrollmentDetail{Enrollment: models.Enrollment{ID: "e4", StudentID: "s4", ClassID: "c1", AssignmentType: models.AssignmentTemporary, OccurrenceID: strPtr("o1")}}
	out := ResolveAvailability(AvailabilityInput{
		Class:      groupClass("c1"),
		Occurrence: occurrenceOn("o1", "c1", date),
		Enrollments: []models.EnrollmentDetail{
			permanentEnrollment("e1", "s1", "c1"),
			permanentEnrollment("e2", "s2", "c1"),
			permanentEnrollment("e3", "s3", "c1"),
			temp,
		},
		Releases: []models.SlotRelease{{
			ID: "r1", StudentID: "s1", ClassID: "c1",
			StartDate: date, EndDate: date.AddDate(0, 3, 0),
			Reason: models.ReleaseReasonJustified, Status: models.ReleaseStatusActive,
		}},
	})
	assert.Equal(t, 3, out.OccupiedSeats)
	assert.Equal(t, 1, out.FreeSeatsReal)
}

func TestResolveAvailabilityPrivateClassFull(t *testing.T) {
	date := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	out := ResolveAvailability(AvailabilityInput{
		Class:       &models.Class{ID: "c1", Name: "Particular", Kind: models.ClassKindPrivate},
		Occurrence:  occurrenceOn("o1", "c1", date),
		Enrollments: []models.EnrollmentDetail{permanentEnrollment("e1", "s1", "c1")},
	})
	assert.Equal(t, 1, out.Capacity)
	assert.Equal(t, 0, out.FreeSeatsReal)
	assert.Equal(t, 0, out.FreeSeatsOffered)
}

func TestResolveAvailabilityOfferedNeverExceedsReal(t *testing.T) {
	date := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	base := AvailabilityInput{
		Class:      groupClass("c1"),
		Occurrence: occurrenceOn("o1", "c1", date),
		Enrollments: []models.EnrollmentDetail{
			permanentEnrollment("e1", "s1", "c1"),
			permanentEnrollment("e2", "s2", "c1"),
			permanentEnrollment("e3", "s3", "c1"),
		},
	}

	base.OfferedHint = intPtr(3)
	out := ResolveAvailability(base)
	assert.Equal(t, 1, out.FreeSeatsReal)
	assert.Equal(t, 1, out.FreeSeatsOffered)

	base.OfferedHint = intPtr(0)
	out = ResolveAvailability(base)
	assert.Equal(t, 0, out.FreeSeatsOffered)
}

func TestResolveAvailabilityDegradesOnMissingContext(t *testing.T) {
	out := ResolveAvailability(AvailabilityInput{})
	assert.Equal(t, 0, out.Capacity)
	assert.Equal(t, 0, out.FreeSeatsReal)

	out = ResolveAvailability(AvailabilityInput{Occurrence: occurrenceOn("o1", "c1", time.Now())})
	assert.Equal(t, "o1", out.OccurrenceID)
	assert.Equal(t, 0, out.FreeSeatsOffered)
}

type mockOccurrenceReader struct {
	occurrences map[string]*models.Occurrence
}

func (m *mockOccurrenceReader) FindByID(ctx context.Context, id string) (*models.Occurrence, error) {
	if o, ok := m.occurrences[id]; ok {
		return o, nil
	}
	return nil, sql.ErrNoRows
}

type mockCapacityClassReader struct {
	classes map[string]*models.Class
}

func (m *mockCapacityClassReader) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if c, ok := m.classes[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

type mockOccurrenceEnrollments struct {
	enrollments []models.EnrollmentDetail
}

func (m *mockOccurrenceEnrollments) ListForOccurrence(ctx context.Context, classID, occurrenceID string) ([]models.EnrollmentDetail, error) {
	return m.enrollments, nil
}

type mockReleaseCoverage struct {
	releases []models.SlotRelease
}

func (m *mockReleaseCoverage) ListActiveCovering(ctx context.Context, classID string, date time.Time) ([]models.SlotRelease, error) {
	return m.releases, nil
}

type mockJustifiedMarks struct {
	students []string
}

func (m *mockJustifiedMarks) ListJustifiedStudents(ctx context.Context, classID string, date time.Time) ([]string, error) {
	return m.students, nil
}

func TestCapacityServiceAvailability(t *testing.T) {
	date := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	svc := NewCapacityService(
		&mockOccurrenceReader{occurrences: map[string]*models.Occurrence{"o1": occurrenceOn("o1", "c1", date)}},
		&mockCapacityClassReader{classes: map[string]*models.Class{"c1": groupClass("c1")}},
		&mockOccurrenceEnrollments{enrollments: []models.EnrollmentDetail{
			permanentEnrollment("e1", "s1", "c1"),
			permanentEnrollment("e2", "s2", "c1"),
		}},
		&mockReleaseCoverage{},
		&mockJustifiedMarks{},
		nil, 0, zap.NewNop(),
	)

	availability, err := svc.Availability(context.Background(), "o1", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, availability.OccupiedSeats)
	assert.Equal(t, 2, availability.FreeSeatsReal)
}

func TestCapacityServiceAvailabilityUnknownOccurrence(t *testing.T) {
	svc := NewCapacityService(
		&mockOccurrenceReader{},
		&mockCapacityClassReader{},
		&mockOccurrenceEnrollments{},
		&mockReleaseCoverage{},
		&mockJustifiedMarks{},
		nil, 0, zap.NewNop(),
	)

	availability, err := svc.Availability(context.Background(), "ghost", nil)
	require.NoError(t, err)
	assert.Equal(t, "ghost", availability.OccurrenceID)
	assert.Equal(t, 0, availability.FreeSeatsReal)
	assert.Equal(t, 0, availability.FreeSeatsOffered)
}
