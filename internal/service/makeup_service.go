package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/molinacode/padel-crm-api/internal/models"
	"github.com/molinacode/padel-crm-api/internal/repository"
	appErrors "github.com/molinacode/padel-crm-api/pkg/errors"
)

type creditRepository interface {
	List(ctx context.Context, filter models.MakeupCreditFilter) ([]models.MakeupCreditDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.MakeupCredit, error)
	OldestPending(ctx context.Context, studentID string) (*models.MakeupCredit, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.MakeupCredit, error)
	Create(ctx context.Context, credit *models.MakeupCredit) error
	Fulfill(ctx context.Context, id string, date time.Time, occurrenceID *string, notes *string) error
	Cancel(ctx context.Context, id, reason string) error
}

type attendanceSnapshotReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Attendance, error)
	ListJustifiedWithoutCredit(ctx context.Context, studentID string) ([]models.Attendance, error)
}

// CreateCreditRequest describes a manual credit grant.
type CreateCreditRequest struct {
	StudentID  string    `json:"student_id" validate:"required"`
	ClassID    string    `json:"class_id" validate:"required"`
	MissedDate time.Time `json:"missed_date" validate:"required"`
	Notes      *string   `json:"notes,omitempty"`
}

// MakeupOutcome reports what a makeup-attendance mark did. Applied is
// false when no bookkeeping matched, in which case the mark is recorded
// as plain attendance and the operator told so.
type MakeupOutcome struct {
	Credit   *models.MakeupCredit `json:"credit,omitempty"`
	Applied  bool                 `json:"applied"`
	Inferred bool                 `json:"inferred"`
}

// MakeupService manages the pending/fulfilled/canceled credit lifecycle.
type MakeupService struct {
	repo       creditRepository
	attendance attendanceSnapshotReader
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewMakeupService constructs MakeupService.
func NewMakeupService(repo creditRepository, attendance attendanceSnapshotReader, validate *validator.Validate, logger *zap.Logger) *MakeupService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MakeupService{repo: repo, attendance: attendance, validator: validate, logger: logger}
}

// List returns credits with pagination metadata.
func (s *MakeupService) List(ctx context.Context, filter models.MakeupCreditFilter) ([]models.MakeupCreditDetail, *models.Pagination, error) {
	credits, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list credits")
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
	return credits, pagination, nil
}

// CreateAuto records the credit a justified absence grants, back-referencing
// the release it came from. A unique constraint on (student, class, missed
// date) makes double-submission a no-op; the second return reports whether
// a credit was actually created.
func (s *MakeupService) CreateAuto(ctx context.Context, studentID, classID string, missedDate time.Time, releaseID *string) (*models.MakeupCredit, bool, error) {
	credit := &models.MakeupCredit{
		StudentID:       studentID,
		ClassID:         classID,
		MissedDate:      missedDate,
		SourceReleaseID: releaseID,
		Type:            models.CreditTypeAuto,
		Status:          models.CreditStatusPending,
	}
	if err := s.repo.Create(ctx, credit); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, false, nil
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create credit")
	}
	s.logger.Info("makeup credit granted",
		zap.String("student_id", studentID),
		zap.String("class_id", classID),
		zap.Time("missed_date", missedDate))
	return credit, true, nil
}

// CreateManual grants a credit by operator decision, with no source release.
func (s *MakeupService) CreateManual(ctx context.Context, req CreateCreditRequest) (*models.MakeupCredit, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid credit payload")
	}
	credit := &models.MakeupCredit{
		StudentID:  req.StudentID,
		ClassID:    req.ClassID,
		MissedDate: req.MissedDate,
		Type:       models.CreditTypeManual,
		Status:     models.CreditStatusPending,
		Notes:      req.Notes,
	}
	if err := s.repo.Create(ctx, credit); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "credit already exists for that missed date")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create credit")
	}
	return credit, nil
}

// FulfillOldest fulfills the student's oldest pending credit by missed
// date with the given recovery date. The second return is false when the
// student has no pending credit.
func (s *MakeupService) FulfillOldest(ctx context.Context, studentID string, date time.Time, occurrenceID *string) (*models.MakeupCredit, bool, error) {
	credit, err := s.repo.OldestPending(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to find pending credit")
	}
	if err := s.repo.Fulfill(ctx, credit.ID, date, occurrenceID, nil); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fulfill credit")
	}
	credit.Status = models.CreditStatusFulfilled
	credit.FulfilledDate = &date
	credit.FulfillmentOccurrenceID = occurrenceID
	s.logger.Info("makeup credit fulfilled",
		zap.String("credit_id", credit.ID),
		zap.String("student_id", studentID),
		zap.Time("recovery_date", date))
	return credit, true, nil
}

// ApplyMakeupMark resolves a "makeup" attendance mark against the credit
// ledger. It fulfills the oldest pending credit; failing that, it falls
// back to a prior justified absence with no linked credit for the same
// class and retroactively creates and fulfills a credit from it. When
// neither exists, Applied is false and the caller records the mark as
// plain attendance.
func (s *MakeupService) ApplyMakeupMark(ctx context.Context, studentID, classID string, date time.Time, occurrenceID *string) (*MakeupOutcome, error) {
	credit, fulfilled, err := s.FulfillOldest(ctx, studentID, date, occurrenceID)
	if err != nil {
		return nil, err
	}
	if fulfilled {
		return &MakeupOutcome{Credit: credit, Applied: true}, nil
	}

	absences, err := s.attendance.ListJustifiedWithoutCredit(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up justified absences")
	}
	var source *models.Attendance
	for i := range absences {
		if absences[i].ClassID == classID && !absences[i].Date.After(date) {
			source = &absences[i]
			break
		}
	}
	if source == nil {
		return &MakeupOutcome{Applied: false}, nil
	}

	credit, created, err := s.CreateAuto(ctx, studentID, classID, source.Date, nil)
	if err != nil {
		return nil, err
	}
	if !created {
		// Another request linked this absence between the lookup and the
		// insert. Nothing left for this mark to claim.
		return &MakeupOutcome{Applied: false}, nil
	}
	if err := s.repo.Fulfill(ctx, credit.ID, date, occurrenceID, nil); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fulfill credit")
	}
	credit.Status = models.CreditStatusFulfilled
	credit.FulfilledDate = &date
	credit.FulfillmentOccurrenceID = occurrenceID
	s.logger.Info("makeup credit inferred from prior absence",
		zap.String("credit_id", credit.ID),
		zap.String("student_id", studentID),
		zap.Time("missed_date", source.Date),
		zap.Time("recovery_date", date))
	return &MakeupOutcome{Credit: credit, Applied: true, Inferred: true}, nil
}

// TrulyPending returns the student's credits that remain pending after
// read-side reconciliation against their attendance history.
func (s *MakeupService) TrulyPending(ctx context.Context, studentID string) ([]models.MakeupCredit, error) {
	credits, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list credits")
	}
	attendances, err := s.attendance.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return ReconcilePending(credits, attendances), nil
}

// Cancel transitions a pending credit to canceled. A reason is mandatory;
// cancellation touches no enrollment.
func (s *MakeupService) Cancel(ctx context.Context, id, reason string) (*models.MakeupCredit, error) {
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cancellation reason is required")
	}
	credit, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "credit not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load credit")
	}
	if credit.Status != models.CreditStatusPending {
		return nil, appErrors.Clone(appErrors.ErrCreditFinalized, "")
	}
	if err := s.repo.Cancel(ctx, id, reason); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel credit")
	}
	credit.Status = models.CreditStatusCanceled
	credit.CancelReason = &reason
	return credit, nil
}

func attendanceCorroborates(status models.AttendanceStatus) bool {
	return status == models.AttendanceStatusAttended || status == models.AttendanceStatusMakeup
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ReconcilePending computes the truly-pending credit set from immutable
// snapshots of a student's credits and attendance records. A nominally
// pending credit is excluded when a later attendance for the same class on
// or after the missed date can be matched to it; attendances already
// corroborating a fulfilled credit are claimed first, and each attendance
// record satisfies at most one credit.
func ReconcilePending(credits []models.MakeupCredit, attendances []models.Attendance) []models.MakeupCredit {
	claimed := make(map[string]bool, len(attendances))

	for i := range credits {
		credit := &credits[i]
		if credit.Status != models.CreditStatusFulfilled || credit.FulfilledDate == nil {
			continue
		}
		for j := range attendances {
			record := &attendances[j]
			if claimed[record.ID] || record.ClassID != credit.ClassID {
				continue
			}
			if !attendanceCorroborates(record.Status) || !sameDay(record.Date, *credit.FulfilledDate) {
				continue
			}
			claimed[record.ID] = true
			break
		}
	}

	var pending []models.MakeupCredit
	for i := range credits {
		credit := credits[i]
		if credit.Status != models.CreditStatusPending {
			continue
		}
		matched := false
		for j := range attendances {
			record := &attendances[j]
			if claimed[record.ID] || record.ClassID != credit.ClassID {
				continue
			}
			if !attendanceCorroborates(record.Status) || record.Date.Before(credit.MissedDate) {
				continue
			}
			claimed[record.ID] = true
			matched = true
			break
		}
		if !matched {
			pending = append(pending, credit)
		}
	}
	return pending
}
