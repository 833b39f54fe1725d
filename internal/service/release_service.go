package service

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/molinacode/padel-crm-api/internal/models"
	"github.com/molinacode/padel-crm-api/internal/repository"
	appErrors "github.com/molinacode/padel-crm-api/pkg/errors"
)

type releaseRepository interface {
	List(ctx context.Context, filter models.SlotReleaseFilter) ([]models.SlotRelease, int, error)
	FindActive(ctx context.Context, studentID, classID string, startDate time.Time) (*models.SlotRelease, error)
	FindActiveCoveringStudent(ctx context.Context, studentID, classID string, date time.Time) (*models.SlotRelease, error)
	ListActiveCovering(ctx context.Context, classID string, date time.Time) ([]models.SlotRelease, error)
	Create(ctx context.Context, release *models.SlotRelease) error
	Cancel(ctx context.Context, id string, at time.Time) error
}

type scheduleReader interface {
	LastScheduledDate(ctx context.Context, classID string, from time.Time) (time.Time, error)
}

// ReleaseService drives the freed-seat state machine. Absence marks open
// releases, later attendance or an operator filling the seat cancels them.
type ReleaseService struct {
	repo        releaseRepository
	occurrences scheduleReader
	logger      *zap.Logger
}

// NewReleaseService constructs ReleaseService.
func NewReleaseService(repo releaseRepository, occurrences scheduleReader, logger *zap.Logger) *ReleaseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReleaseService{repo: repo, occurrences: occurrences, logger: logger}
}

// List returns releases with pagination metadata.
func (s *ReleaseService) List(ctx context.Context, filter models.SlotReleaseFilter) ([]models.SlotRelease, *models.Pagination, error) {
	releases, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list releases")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return releases, pagination, nil
}

// OpenForAbsence opens an active release for the student's seat starting
// at the absence date. The window runs to the last scheduled occurrence of
// the class as known right now; it is not recomputed when the series grows
// later. Re-marking the same absence is a no-op: an existing active release
// for the same window start short-circuits, and a unique violation on
// insert is treated as the same release created by a concurrent request.
// The second return reports whether a new release was created.
func (s *ReleaseService) OpenForAbsence(ctx context.Context, studentID, classID string, date time.Time, reason models.ReleaseReason) (*models.SlotRelease, bool, error) {
	if !reason.Valid() {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "invalid release reason")
	}
	existing, err := s.repo.FindActive(ctx, studentID, classID, date)
	if err == nil {
		return existing, false, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing release")
	}

	end, err := s.occurrences.LastScheduledDate(ctx, classID, date)
	if err != nil {
		if err != sql.ErrNoRows {
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve release window")
		}
		// No remaining sessions: the window collapses to the absence day.
		end = date
	}

	release := &models.SlotRelease{
		StudentID:     studentID,
		ClassID:       classID,
		StartDate:     date,
		EndDate:       end,
		Reason:        reason,
		RightToMakeup: reason.GrantsMakeup(),
		Status:        models.ReleaseStatusActive,
	}
	if err := s.repo.Create(ctx, release); err != nil {
		if repository.IsUniqueViolation(err) {
			existing, ferr := s.repo.FindActive(ctx, studentID, classID, date)
			if ferr != nil {
				return nil, false, appErrors.Wrap(ferr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load release after conflict")
			}
			return existing, false, nil
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create release")
	}
	s.logger.Info("slot release opened",
		zap.String("student_id", studentID),
		zap.String("class_id", classID),
		zap.Time("start", date),
		zap.Time("end", end),
		zap.String("reason", string(reason)))
	return release, true, nil
}

// CancelOnAttendance cancels the student's active release covering the
// attended date, restoring normal occupancy. Returns nil when no release
// covers the date.
func (s *ReleaseService) CancelOnAttendance(ctx context.Context, studentID, classID string, date time.Time) (*models.SlotRelease, error) {
	release, err := s.repo.FindActiveCoveringStudent(ctx, studentID, classID, date)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up covering release")
	}
	now := time.Now().UTC()
	if err := s.repo.Cancel(ctx, release.ID, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel release")
	}
	release.Status = models.ReleaseStatusCanceled
	release.CanceledAt = &now
	s.logger.Info("slot release canceled by attendance",
		zap.String("release_id", release.ID),
		zap.String("student_id", studentID),
		zap.String("class_id", classID))
	return release, nil
}

// CancelForFilledSeat cancels the release whose freed seat an operator
// just reused on the given date. Filling supersedes the release instead of
// stacking a second seat reduction. The incoming student's own releases
// are skipped. Returns nil when no covering release exists.
func (s *ReleaseService) CancelForFilledSeat(ctx context.Context, classID string, date time.Time, incomingStudentID string) (*models.SlotRelease, error) {
	releases, err := s.repo.ListActiveCovering(ctx, classID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list covering releases")
	}
	for i := range releases {
		release := &releases[i]
		if release.StudentID == incomingStudentID {
			continue
		}
		now := time.Now().UTC()
		if err := s.repo.Cancel(ctx, release.ID, now); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel release")
		}
		release.Status = models.ReleaseStatusCanceled
		release.CanceledAt = &now
		s.logger.Info("slot release superseded by gap fill",
			zap.String("release_id", release.ID),
			zap.String("class_id", classID),
			zap.String("incoming_student_id", incomingStudentID))
		return release, nil
	}
	return nil, nil
}
