package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/molinacode/padel-crm-api/internal/models"
	appErrors "github.com/molinacode/padel-crm-api/pkg/errors"
)

type attendanceStore interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
	Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error)
}

type absenceReleaser interface {
	OpenForAbsence(ctx context.Context, studentID, classID string, date time.Time, reason models.ReleaseReason) (*models.SlotRelease, bool, error)
	CancelOnAttendance(ctx context.Context, studentID, classID string, date time.Time) (*models.SlotRelease, error)
}

type makeupApplier interface {
	CreateAuto(ctx context.Context, studentID, classID string, missedDate time.Time, releaseID *string) (*models.MakeupCredit, bool, error)
	ApplyMakeupMark(ctx context.Context, studentID, classID string, date time.Time, occurrenceID *string) (*MakeupOutcome, error)
}

type seatInvalidator interface {
	Invalidate(ctx context.Context, classID string)
}

// MarkAttendanceRequest describes one attendance mark.
type MarkAttendanceRequest struct {
	StudentID    string                  `json:"student_id" validate:"required"`
	ClassID      string                  `json:"class_id" validate:"required"`
	Date         time.Time               `json:"date" validate:"required"`
	Status       models.AttendanceStatus `json:"status" validate:"required"`
	OccurrenceID *string                 `json:"occurrence_id,omitempty"`
	Notes        *string                 `json:"notes,omitempty"`
}

// StepResult reports the outcome of one write in a marking sequence.
type StepResult struct {
	Step   string `json:"step"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// MarkResult aggregates everything a mark did. The writes are independent;
// a failed side effect shows up as a failed step next to the ones that
// succeeded, nothing is rolled back.
type MarkResult struct {
	Attendance *models.Attendance   `json:"attendance"`
	Release    *models.SlotRelease  `json:"release,omitempty"`
	Credit     *models.MakeupCredit `json:"credit,omitempty"`
	Steps      []StepResult         `json:"steps"`
}

// Failed returns the steps that did not complete.
func (r *MarkResult) Failed() []StepResult {
	var failed []StepResult
	for _, step := range r.Steps {
		if !step.OK {
			failed = append(failed, step)
		}
	}
	return failed
}

// AttendanceService records attendance marks and drives their seat and
// credit side effects.
type AttendanceService struct {
	repo      attendanceStore
	releases  absenceReleaser
	makeups   makeupApplier
	seats     seatInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(repo attendanceStore, releases absenceReleaser, makeups makeupApplier, seats seatInvalidator, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, releases: releases, makeups: makeups, seats: seats, validator: validate, logger: logger}
}

// List returns attendance records with pagination metadata.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, *models.Pagination, error) {
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return records, pagination, nil
}

// Mark records an attendance status for (student, class, date) and runs
// the bookkeeping it triggers: absences open a slot release (justified
// ones also grant a credit), attending cancels a covering release, and a
// makeup mark consumes or infers a credit. A makeup mark that matches no
// credit and no prior absence is stored as plain attendance. Each write is
// independent and its outcome lands in Steps.
func (s *AttendanceService) Mark(ctx context.Context, req MarkAttendanceRequest) (*MarkResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid attendance status")
	}

	result := &MarkResult{}
	status := req.Status

	if status == models.AttendanceStatusMakeup {
		outcome, err := s.makeups.ApplyMakeupMark(ctx, req.StudentID, req.ClassID, req.Date, req.OccurrenceID)
		switch {
		case err != nil:
			s.logger.Warn("makeup bookkeeping failed", zap.String("student_id", req.StudentID), zap.Error(err))
			result.Steps = append(result.Steps, StepResult{Step: "makeup_credit", Detail: "bookkeeping failed, mark recorded without it"})
		case outcome.Applied:
			result.Credit = outcome.Credit
			detail := "credit fulfilled"
			if outcome.Inferred {
				detail = "credit inferred from prior absence and fulfilled"
			}
			result.Steps = append(result.Steps, StepResult{Step: "makeup_credit", OK: true, Detail: detail})
		default:
			// No credit and no prior absence to infer from: record as a
			// plain attended mark and say so.
			status = models.AttendanceStatusAttended
			result.Steps = append(result.Steps, StepResult{Step: "makeup_credit", OK: true, Detail: "no makeup bookkeeping applied, recorded as attended"})
		}
	}

	stored, err := s.repo.Upsert(ctx, &models.Attendance{
		StudentID:    req.StudentID,
		ClassID:      req.ClassID,
		OccurrenceID: req.OccurrenceID,
		Date:         req.Date,
		Status:       status,
		Notes:        req.Notes,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}
	result.Attendance = stored
	result.Steps = append(result.Steps, StepResult{Step: "attendance", OK: true})

	if reason, isAbsence := status.ReleaseReason(); isAbsence {
		release, created, err := s.releases.OpenForAbsence(ctx, req.StudentID, req.ClassID, req.Date, reason)
		if err != nil {
			s.logger.Warn("release creation failed", zap.String("student_id", req.StudentID), zap.Error(err))
			result.Steps = append(result.Steps, StepResult{Step: "slot_release", Detail: "seat release could not be created"})
		} else {
			result.Release = release
			detail := "seat released"
			if !created {
				detail = "release already active"
			}
			result.Steps = append(result.Steps, StepResult{Step: "slot_release", OK: true, Detail: detail})

			if reason.GrantsMakeup() {
				releaseID := release.ID
				credit, granted, err := s.makeups.CreateAuto(ctx, req.StudentID, req.ClassID, req.Date, &releaseID)
				if err != nil {
					s.logger.Warn("credit creation failed", zap.String("student_id", req.StudentID), zap.Error(err))
					result.Steps = append(result.Steps, StepResult{Step: "makeup_credit", Detail: "credit could not be created"})
				} else if granted {
					result.Credit = credit
					result.Steps = append(result.Steps, StepResult{Step: "makeup_credit", OK: true, Detail: "credit granted"})
				} else {
					result.Steps = append(result.Steps, StepResult{Step: "makeup_credit", OK: true, Detail: "credit already exists"})
				}
			}
		}
	}

	if status == models.AttendanceStatusAttended && req.Status != models.AttendanceStatusMakeup {
		canceled, err := s.releases.CancelOnAttendance(ctx, req.StudentID, req.ClassID, req.Date)
		if err != nil {
			s.logger.Warn("release cancellation failed", zap.String("student_id", req.StudentID), zap.Error(err))
			result.Steps = append(result.Steps, StepResult{Step: "slot_release", Detail: "covering release could not be canceled"})
		} else if canceled != nil {
			result.Release = canceled
			result.Steps = append(result.Steps, StepResult{Step: "slot_release", OK: true, Detail: "covering release canceled"})
		}
	}

	if s.seats != nil {
		s.seats.Invalidate(ctx, req.ClassID)
	}
	return result, nil
}
