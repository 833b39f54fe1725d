package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/molinacode/padel-crm-api/internal/models"
)

// PaymentRepository handles persistence of monthly payments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// List returns payments filtered by the provided criteria.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	base := `FROM pagos p
LEFT JOIN alumnos a ON a.id = p.alumno_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("p.alumno_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Month != "" {
		conditions = append(conditions, fmt.Sprintf("p.mes = $%d", len(args)+1))
		args = append(args, filter.Month)
	}
	if filter.Paid != nil {
		conditions = append(conditions, fmt.Sprintf("p.pagado = $%d", len(args)+1))
		args = append(args, *filter.Paid)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT p.id, p.alumno_id, p.clase_id, p.mes, p.importe, p.pagado, p.fecha_pago, p.notas, p.created_at, p.updated_at,
        a.nombre AS student_name
        %s ORDER BY p.mes %s LIMIT %d OFFSET %d`, base+clause, order, size, offset)

	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}

// FindByID returns a payment by its ID.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	const query = `SELECT id, alumno_id, clase_id, mes, importe, pagado, fecha_pago, notas, created_at, updated_at FROM pagos WHERE id = $1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// Create persists a new payment row.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	now := time.Now().UTC()
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	payment.CreatedAt = now
	payment.UpdatedAt = now
	const query = `INSERT INTO pagos (id, alumno_id, clase_id, mes, importe, pagado, fecha_pago, notas, created_at, updated_at)
        VALUES (:id, :alumno_id, :clase_id, :mes, :importe, :pagado, :fecha_pago, :notas, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// MarkPaid records a payment as settled.
func (r *PaymentRepository) MarkPaid(ctx context.Context, id string, paidAt time.Time) error {
	const query = `UPDATE pagos SET pagado = TRUE, fecha_pago = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, paidAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark payment paid: %w", err)
	}
	return nil
}
