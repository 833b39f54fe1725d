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

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	Delete(ctx context.Context, id string) error
}

type occurrenceWriter interface {
	BulkInsert(ctx context.Context, occurrences []models.Occurrence) error
	DeleteFutureGenerated(ctx context.Context, classID string, from time.Time) error
	List(ctx context.Context, filter models.OccurrenceFilter) ([]models.Occurrence, int, error)
}

// CreateClassRequest describes class creation payload. Weekday follows
// time.Weekday numbering, 0 is Sunday.
type CreateClassRequest struct {
	Name         string           `json:"name" validate:"required"`
	Kind         models.ClassKind `json:"kind" validate:"required,oneof=group private"`
	Level        string           `json:"level"`
	Weekday      int              `json:"weekday" validate:"min=0,max=6"`
	StartTime    string           `json:"start_time" validate:"required"`
	EndTime      string           `json:"end_time" validate:"required"`
	StartDate    time.Time        `json:"start_date" validate:"required"`
	EndDate      time.Time        `json:"end_date" validate:"required"`
	InstructorID *string          `json:"instructor_id,omitempty"`
}

// UpdateClassRequest describes class update payload.
type UpdateClassRequest struct {
	Name         string           `json:"name" validate:"required"`
	Kind         models.ClassKind `json:"kind" validate:"required,oneof=group private"`
	Level        string           `json:"level"`
	Weekday      int              `json:"weekday" validate:"min=0,max=6"`
	StartTime    string           `json:"start_time" validate:"required"`
	EndTime      string           `json:"end_time" validate:"required"`
	StartDate    time.Time        `json:"start_date" validate:"required"`
	EndDate      time.Time        `json:"end_date" validate:"required"`
	InstructorID *string          `json:"instructor_id,omitempty"`
}

// ClassService manages recurring class templates and the dated sessions
// generated from them.
type ClassService struct {
	repo        classRepository
	occurrences occurrenceWriter
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewClassService constructs ClassService.
func NewClassService(repo classRepository, occurrences occurrenceWriter, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, occurrences: occurrences, validator: validate, logger: logger}
}

// List returns classes with pagination metadata.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, *models.Pagination, error) {
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
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
	return classes, pagination, nil
}

// Get returns one class.
func (s *ClassService) Get(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

// GenerateOccurrences enumerates the dates in [start, end] falling on the
// class weekday and builds scheduled occurrences for them.
func GenerateOccurrences(class *models.Class) []models.Occurrence {
	var out []models.Occurrence
	if class == nil || class.EndDate.Before(class.StartDate) {
		return out
	}
	for d := class.StartDate; !d.After(class.EndDate); d = d.AddDate(0, 0, 1) {
		if int(d.Weekday()) != class.Weekday {
			continue
		}
		out = append(out, models.Occurrence{
			ClassID:   class.ID,
			Date:      d,
			StartTime: class.StartTime,
			EndTime:   class.EndTime,
			Status:    models.OccurrenceStatusScheduled,
		})
	}
	return out
}

// Create stores a class and generates its occurrence series. The class
// row and the series are independent writes; a generation failure leaves
// the class in place and is surfaced to the operator.
func (s *ClassService) Create(ctx context.Context, req CreateClassRequest) (*models.Class, int, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	class := &models.Class{
		Name:         req.Name,
		Kind:         req.Kind,
		Level:        req.Level,
		Weekday:      req.Weekday,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		InstructorID: req.InstructorID,
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	occurrences := GenerateOccurrences(class)
	if err := s.occurrences.BulkInsert(ctx, occurrences); err != nil {
		return class, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "class created but occurrence generation failed")
	}
	s.logger.Info("class created", zap.String("class_id", class.ID), zap.Int("occurrences", len(occurrences)))
	return class, len(occurrences), nil
}

// Update edits a class and regenerates its future series. Generated
// future occurrences are replaced; individually rescheduled ones survive,
// and their dates are skipped on re-insert.
func (s *ClassService) Update(ctx context.Context, id string, req UpdateClassRequest) (*models.Class, int, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, 0, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	class.Name = req.Name
	class.Kind = req.Kind
	class.Level = req.Level
	class.Weekday = req.Weekday
	class.StartTime = req.StartTime
	class.EndTime = req.EndTime
	class.StartDate = req.StartDate
	class.EndDate = req.EndDate
	class.InstructorID = req.InstructorID
	if err := s.repo.Update(ctx, class); err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}

	count, err := s.regenerateFuture(ctx, class)
	if err != nil {
		return class, 0, err
	}
	s.logger.Info("class updated", zap.String("class_id", class.ID), zap.Int("regenerated", count))
	return class, count, nil
}

func (s *ClassService) regenerateFuture(ctx context.Context, class *models.Class) (int, error) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	from := today
	if class.StartDate.After(from) {
		from = class.StartDate
	}
	if err := s.occurrences.DeleteFutureGenerated(ctx, class.ID, from); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "class updated but series cleanup failed")
	}

	surviving, _, err := s.occurrences.List(ctx, models.OccurrenceFilter{ClassID: class.ID, DateFrom: &from, PageSize: 200})
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "class updated but series lookup failed")
	}
	taken := make(map[string]bool, len(surviving))
	for _, occurrence := range surviving {
		taken[occurrence.Date.Format("2006-01-02")] = true
	}

	window := *class
	window.StartDate = from
	var fresh []models.Occurrence
	for _, occurrence := range GenerateOccurrences(&window) {
		if taken[occurrence.Date.Format("2006-01-02")] {
			continue
		}
		fresh = append(fresh, occurrence)
	}
	if err := s.occurrences.BulkInsert(ctx, fresh); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "class updated but series regeneration failed")
	}
	return len(fresh), nil
}

// Delete removes a class.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	return nil
}
