package service

import (
	"context"
	"database/sql"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/molinacode/padel-crm-api/internal/models"
	appErrors "github.com/molinacode/padel-crm-api/pkg/errors"
)

type paymentRepository interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) error
	MarkPaid(ctx context.Context, id string, paidAt time.Time) error
}

type billableEnrollmentLister interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

// CreatePaymentRequest registers an expected monthly payment.
type CreatePaymentRequest struct {
	StudentID string  `json:"student_id" validate:"required,uuid4"`
	ClassID   *string `json:"class_id" validate:"omitempty,uuid4"`
	Month     string  `json:"month" validate:"required"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Notes     *string `json:"notes"`
}

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// PaymentService manages monthly payment bookkeeping. Only school-billed
// enrollments generate expected payments; internal ones are settled
// outside the academy.
type PaymentService struct {
	repo        paymentRepository
	enrollments billableEnrollmentLister
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewPaymentService constructs PaymentService.
func NewPaymentService(repo paymentRepository, enrollments billableEnrollmentLister, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{repo: repo, enrollments: enrollments, validator: validate, logger: logger}
}

// List returns payments with pagination metadata.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, *models.Pagination, error) {
	payments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
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
	return payments, pagination, nil
}

// Create registers one expected payment row.
func (s *PaymentService) Create(ctx context.Context, req CreatePaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if !monthPattern.MatchString(req.Month) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "month must use YYYY-MM format")
	}
	payment := &models.Payment{
		StudentID: req.StudentID,
		ClassID:   req.ClassID,
		Month:     req.Month,
		Amount:    req.Amount,
		Notes:     req.Notes,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create payment")
	}
	return payment, nil
}

// MarkPaid settles a payment.
func (s *PaymentService) MarkPaid(ctx context.Context, id string) (*models.Payment, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if payment.Paid {
		return nil, appErrors.Clone(appErrors.ErrConflict, "payment already settled")
	}
	now := time.Now().UTC()
	if err := s.repo.MarkPaid(ctx, id, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark payment paid")
	}
	payment.Paid = true
	payment.PaidAt = &now
	return payment, nil
}

// GenerateExpected creates missing payment rows for a month from the
// current school-billed permanent enrollments. Students that already
// have a row for the month and class are skipped.
func (s *PaymentService) GenerateExpected(ctx context.Context, month string, amount float64) (int, error) {
	if !monthPattern.MatchString(month) {
		return 0, appErrors.Clone(appErrors.ErrValidation, "month must use YYYY-MM format")
	}
	if amount <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "amount must be positive")
	}

	enrollments, _, err := s.enrollments.List(ctx, models.EnrollmentFilter{
		Origin:         models.OriginSchool,
		AssignmentType: models.AssignmentPermanent,
		PageSize:       1000,
	})
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list billable enrollments")
	}

	existing, _, err := s.repo.List(ctx, models.PaymentFilter{Month: month, PageSize: 1000})
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list existing payments")
	}
	covered := make(map[string]bool, len(existing))
	for _, p := range existing {
		key := p.StudentID
		if p.ClassID != nil {
			key += ":" + *p.ClassID
		}
		covered[key] = true
	}

	created := 0
	for _, e := range enrollments {
		classID := e.ClassID
		if covered[e.StudentID+":"+classID] {
			continue
		}
		payment := &models.Payment{
			StudentID: e.StudentID,
			ClassID:   &classID,
			Month:     month,
			Amount:    amount,
		}
		if err := s.repo.Create(ctx, payment); err != nil {
			s.logger.Warn("failed to create expected payment",
				zap.String("student_id", e.StudentID),
				zap.String("class_id", classID),
				zap.Error(err))
			continue
		}
		covered[e.StudentID+":"+classID] = true
		created++
	}
	s.logger.Info("expected payments generated", zap.String("month", month), zap.Int("created", created))
	return created, nil
}
