package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/molinacode/padel-crm-api/internal/models"
	appErrors "github.com/molinacode/padel-crm-api/pkg/errors"
)

type enrollmentStore interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ListPermanentByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error)
	ListByClass(ctx context.Context, classID string) ([]models.Enrollment, error)
	ExistsPermanent(ctx context.Context, studentID, classID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, id string) error
	UpdateOriginByClass(ctx context.Context, classID string, origin models.EnrollmentOrigin) (int64, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type seatAccountant interface {
	Availability(ctx context.Context, occurrenceID string, hint *int) (*models.OccurrenceAvailability, error)
	Invalidate(ctx context.Context, classID string)
}

type releaseFiller interface {
	CancelForFilledSeat(ctx context.Context, classID string, date time.Time, incomingStudentID string) (*models.SlotRelease, error)
}

type creditFulfiller interface {
	FulfillOldest(ctx context.Context, studentID string, date time.Time, occurrenceID *string) (*models.MakeupCredit, bool, error)
}

// AssignStudentRequest describes a permanent assignment.
type AssignStudentRequest struct {
	StudentID string                  `json:"student_id" validate:"required"`
	ClassID   string                  `json:"class_id" validate:"required"`
	Origin    models.EnrollmentOrigin `json:"origin,omitempty" validate:"omitempty,oneof=escuela interna"`
}

// FillGapRequest describes a temporary assignment to one occurrence.
type FillGapRequest struct {
	StudentID    string                  `json:"student_id" validate:"required"`
	OccurrenceID string                  `json:"occurrence_id" validate:"required"`
	MakeupFill   bool                    `json:"makeup_fill"`
	Origin       models.EnrollmentOrigin `json:"origin,omitempty" validate:"omitempty,oneof=escuela interna"`
}

// FillGapResult reports everything a gap fill did. When the student is
// brand new and no origin was supplied, OriginDecisionRequired is true and
// nothing was written: the operator must decide whether the enrollment
// bills through the school before retrying.
type FillGapResult struct {
	Enrollment             *models.Enrollment   `json:"enrollment,omitempty"`
	CanceledRelease        *models.SlotRelease  `json:"canceled_release,omitempty"`
	FulfilledCredit        *models.MakeupCredit `json:"fulfilled_credit,omitempty"`
	OriginDecisionRequired bool                 `json:"origin_decision_required"`
	Warnings               []string             `json:"warnings,omitempty"`
}

// AssignmentService creates and removes enrollments, applying the origin
// policy and the seat side effects of filling a freed slot.
type AssignmentService struct {
	enrollments enrollmentStore
	students    studentReader
	classes     classReader
	occurrences occurrenceReader
	seats       seatAccountant
	releases    releaseFiller
	credits     creditFulfiller
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAssignmentService constructs AssignmentService.
func NewAssignmentService(enrollments enrollmentStore, students studentReader, classes classReader, occurrences occurrenceReader, seats seatAccountant, releases releaseFiller, credits creditFulfiller, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{enrollments: enrollments, students: students, classes: classes, occurrences: occurrences, seats: seats, releases: releases, credits: credits, validator: validate, logger: logger}
}

// List returns enrollments with pagination metadata.
func (s *AssignmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
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
	return enrollments, pagination, nil
}

// resolveClassOrigin applies the origin policy for a permanent assignment:
// an explicit operator choice wins, then the majority among the class's
// existing enrollments, then resolution from the class name.
func resolveClassOrigin(requested models.EnrollmentOrigin, class *models.Class, existing []models.Enrollment) models.EnrollmentOrigin {
	if requested.Valid() {
		return requested
	}
	if len(existing) > 0 {
		origins := make([]models.EnrollmentOrigin, 0, len(existing))
		for _, enrollment := range existing {
			origins = append(origins, enrollment.Origin)
		}
		if majority := MajorityOrigin(origins); majority.Valid() {
			return majority
		}
	}
	return ResolveOrigin(class.Name)
}

// AssignPermanent enrolls a student in every future occurrence of a class.
func (s *AssignmentService) AssignPermanent(ctx context.Context, req AssignStudentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student inactive")
	}
	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	exists, err := s.enrollments.ExistsPermanent(ctx, req.StudentID, req.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate assignment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already assigned to class")
	}
	existing, err := s.enrollments.ListByClass(ctx, req.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class enrollments")
	}
	permanent := 0
	for _, enrollment := range existing {
		if enrollment.AssignmentType != models.AssignmentTemporary {
			permanent++
		}
	}
	if permanent >= class.Capacity() {
		return nil, appErrors.Clone(appErrors.ErrClassFull, "")
	}

	enrollment := &models.Enrollment{
		StudentID:      req.StudentID,
		ClassID:        req.ClassID,
		Origin:         resolveClassOrigin(req.Origin, class, existing),
		AssignmentType: models.AssignmentPermanent,
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	s.seats.Invalidate(ctx, req.ClassID)
	s.logger.Info("student assigned",
		zap.String("student_id", req.StudentID),
		zap.String("class_id", req.ClassID),
		zap.String("origin", string(enrollment.Origin)))
	return enrollment, nil
}

// FillGap places a student into a single occurrence through a temporary
// enrollment. Filling a seat freed by an absence supersedes the release;
// a makeup fill additionally consumes the student's oldest pending credit.
// Side-effect failures after the enrollment write are reported as warnings,
// never rolled back.
func (s *AssignmentService) FillGap(ctx context.Context, req FillGapRequest) (*FillGapResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid gap fill payload")
	}
	occurrence, err := s.occurrences.FindByID(ctx, req.OccurrenceID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "occurrence not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load occurrence")
	}
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student inactive")
	}

	availability, err := s.seats.Availability(ctx, req.OccurrenceID, nil)
	if err != nil {
		return nil, err
	}
	if availability.FreeSeatsReal <= 0 {
		return nil, appErrors.Clone(appErrors.ErrClassFull, "")
	}

	origin := req.Origin
	if !origin.Valid() {
		prior, err := s.enrollments.ListPermanentByStudent(ctx, req.StudentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student enrollments")
		}
		if len(prior) == 0 {
			// Brand-new student: billing provenance is a human decision,
			// never defaulted.
			return &FillGapResult{OriginDecisionRequired: true}, nil
		}
		origins := make([]models.EnrollmentOrigin, 0, len(prior))
		for _, enrollment := range prior {
			origins = append(origins, enrollment.Origin)
		}
		origin = MajorityOrigin(origins)
	}

	occurrenceID := occurrence.ID
	enrollment := &models.Enrollment{
		StudentID:      req.StudentID,
		ClassID:        occurrence.ClassID,
		Origin:         origin,
		AssignmentType: models.AssignmentTemporary,
		OccurrenceID:   &occurrenceID,
		MakeupFill:     req.MakeupFill,
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	result := &FillGapResult{Enrollment: enrollment}
	canceled, err := s.releases.CancelForFilledSeat(ctx, occurrence.ClassID, occurrence.Date, req.StudentID)
	if err != nil {
		s.logger.Warn("release supersede failed after gap fill", zap.String("enrollment_id", enrollment.ID), zap.Error(err))
		result.Warnings = append(result.Warnings, "seat filled but the superseded release could not be canceled")
	} else if canceled != nil {
		result.CanceledRelease = canceled
	}

	if req.MakeupFill {
		credit, fulfilled, err := s.credits.FulfillOldest(ctx, req.StudentID, occurrence.Date, &occurrenceID)
		if err != nil {
			s.logger.Warn("credit fulfillment failed after gap fill", zap.String("enrollment_id", enrollment.ID), zap.Error(err))
			result.Warnings = append(result.Warnings, "seat filled but the makeup credit could not be fulfilled")
		} else if fulfilled {
			result.FulfilledCredit = credit
		} else {
			result.Warnings = append(result.Warnings, "no pending makeup credit to fulfill")
		}
	}

	s.seats.Invalidate(ctx, occurrence.ClassID)
	s.logger.Info("gap filled",
		zap.String("student_id", req.StudentID),
		zap.String("occurrence_id", req.OccurrenceID),
		zap.Bool("makeup_fill", req.MakeupFill))
	return result, nil
}

// Unassign deletes an enrollment.
func (s *AssignmentService) Unassign(ctx context.Context, id string) error {
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if err := s.enrollments.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}
	s.seats.Invalidate(ctx, enrollment.ClassID)
	return nil
}

// ChangeClassOrigin rewrites the origin of every enrollment of a class,
// past rows included. Returns the number of rows touched.
func (s *AssignmentService) ChangeClassOrigin(ctx context.Context, classID string, origin models.EnrollmentOrigin) (int64, error) {
	if !origin.Valid() {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid origin")
	}
	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		if err == sql.ErrNoRows {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	rows, err := s.enrollments.UpdateOriginByClass(ctx, classID, origin)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to propagate origin")
	}
	s.logger.Info("class origin changed", zap.String("class_id", classID), zap.String("origin", string(origin)), zap.Int64("rows", rows))
	return rows, nil
}
