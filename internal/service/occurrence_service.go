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

type occurrenceRepository interface {
	List(ctx context.Context, filter models.OccurrenceFilter) ([]models.Occurrence, int, error)
	FindByID(ctx context.Context, id string) (*models.Occurrence, error)
	UpdateStatus(ctx context.Context, id string, status models.OccurrenceStatus) error
	Reschedule(ctx context.Context, id string, date time.Time, startTime, endTime string) error
	SetExcludeFromRental(ctx context.Context, id string, exclude bool) error
}

// RescheduleRequest moves one occurrence to a new date and time.
type RescheduleRequest struct {
	Date      time.Time `json:"date" validate:"required"`
	StartTime string    `json:"start_time" validate:"required"`
	EndTime   string    `json:"end_time" validate:"required"`
}

// OccurrenceService manages individual dated sessions.
type OccurrenceService struct {
	repo      occurrenceRepository
	seats     seatInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewOccurrenceService constructs OccurrenceService.
func NewOccurrenceService(repo occurrenceRepository, seats seatInvalidator, validate *validator.Validate, logger *zap.Logger) *OccurrenceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OccurrenceService{repo: repo, seats: seats, validator: validate, logger: logger}
}

// List returns occurrences with pagination metadata.
func (s *OccurrenceService) List(ctx context.Context, filter models.OccurrenceFilter) ([]models.Occurrence, *models.Pagination, error) {
	occurrences, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list occurrences")
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
	return occurrences, pagination, nil
}

// Get returns one occurrence.
func (s *OccurrenceService) Get(ctx context.Context, id string) (*models.Occurrence, error) {
	occurrence, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "occurrence not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load occurrence")
	}
	return occurrence, nil
}

// Cancel marks an occurrence canceled.
func (s *OccurrenceService) Cancel(ctx context.Context, id string) (*models.Occurrence, error) {
	occurrence, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if occurrence.Status != models.OccurrenceStatusScheduled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "occurrence is not scheduled")
	}
	if err := s.repo.UpdateStatus(ctx, id, models.OccurrenceStatusCanceled); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel occurrence")
	}
	occurrence.Status = models.OccurrenceStatusCanceled
	if s.seats != nil {
		s.seats.Invalidate(ctx, occurrence.ClassID)
	}
	s.logger.Info("occurrence canceled", zap.String("occurrence_id", id), zap.String("class_id", occurrence.ClassID))
	return occurrence, nil
}

// Reschedule moves an occurrence and flags it as individually modified so
// it survives series regeneration.
func (s *OccurrenceService) Reschedule(ctx context.Context, id string, req RescheduleRequest) (*models.Occurrence, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}
	occurrence, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Reschedule(ctx, id, req.Date, req.StartTime, req.EndTime); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reschedule occurrence")
	}
	occurrence.Date = req.Date
	occurrence.StartTime = req.StartTime
	occurrence.EndTime = req.EndTime
	occurrence.Rescheduled = true
	if s.seats != nil {
		s.seats.Invalidate(ctx, occurrence.ClassID)
	}
	return occurrence, nil
}

// SetExcludeFromRental toggles the facility-rental accounting flag.
func (s *OccurrenceService) SetExcludeFromRental(ctx context.Context, id string, exclude bool) (*models.Occurrence, error) {
	occurrence, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetExcludeFromRental(ctx, id, exclude); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update occurrence")
	}
	occurrence.ExcludeFromRental = exclude
	return occurrence, nil
}
