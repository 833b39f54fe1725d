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

// MakeupCreditRepository handles persistence of makeup credits.
type MakeupCreditRepository struct {
	db *sqlx.DB
}

// NewMakeupCreditRepository constructs the repository.
func NewMakeupCreditRepository(db *sqlx.DB) *MakeupCreditRepository {
	return &MakeupCreditRepository{db: db}
}

const creditColumns = `id, alumno_id, clase_id, fecha_falta, liberacion_id, tipo, estado, fecha_recuperacion, evento_recuperacion_id, notas, motivo_cancelacion, created_at, updated_at`

// List returns credits filtered by the provided criteria, enriched with
// student and class names for display.
func (r *MakeupCreditRepository) List(ctx context.Context, filter models.MakeupCreditFilter) ([]models.MakeupCreditDetail, int, error) {
	base := `FROM recuperaciones_clase rc
LEFT JOIN alumnos a ON a.id = rc.alumno_id
LEFT JOIN clases c ON c.id = rc.clase_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("rc.alumno_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("rc.clase_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("rc.estado = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	cols := strings.ReplaceAll(creditColumns, ", ", ", rc.")
	query := fmt.Sprintf(`SELECT rc.%s, a.nombre AS student_name, c.nombre AS class_name
        %s ORDER BY rc.fecha_falta %s LIMIT %d OFFSET %d`, cols, base+clause, order, size, offset)

	var credits []models.MakeupCreditDetail
	if err := r.db.SelectContext(ctx, &credits, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list credits: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count credits: %w", err)
	}
	return credits, total, nil
}

// FindByID returns a credit by its ID.
func (r *MakeupCreditRepository) FindByID(ctx context.Context, id string) (*models.MakeupCredit, error) {
	query := fmt.Sprintf("SELECT %s FROM recuperaciones_clase WHERE id = $1", creditColumns)
	var credit models.MakeupCredit
	if err := r.db.GetContext(ctx, &credit, query, id); err != nil {
		return nil, err
	}
	return &credit, nil
}

// OldestPending returns the student's pending credit with the earliest
// missed date, sql.ErrNoRows when none exists.
func (r *MakeupCreditRepository) OldestPending(ctx context.Context, studentID string) (*models.MakeupCredit, error) {
	query := fmt.Sprintf(`SELECT %s FROM recuperaciones_clase
        WHERE alumno_id = $1 AND estado = $2 ORDER BY fecha_falta ASC LIMIT 1`, creditColumns)
	var credit models.MakeupCredit
	if err := r.db.GetContext(ctx, &credit, query, studentID, models.CreditStatusPending); err != nil {
		return nil, err
	}
	return &credit, nil
}

// ListByStudent returns every credit of a student regardless of status.
// Read-side reconciliation needs fulfilled credits too, to know which
// attendance records are already claimed.
func (r *MakeupCreditRepository) ListByStudent(ctx context.Context, studentID string) ([]models.MakeupCredit, error) {
	query := fmt.Sprintf(`SELECT %s FROM recuperaciones_clase WHERE alumno_id = $1 ORDER BY fecha_falta ASC`, creditColumns)
	var credits []models.MakeupCredit
	if err := r.db.SelectContext(ctx, &credits, query, studentID); err != nil {
		return nil, fmt.Errorf("list student credits: %w", err)
	}
	return credits, nil
}

// Create persists a new credit. A unique index on
// (alumno_id, clase_id, fecha_falta) guards against double-submission;
// callers check IsUniqueViolation.
func (r *MakeupCreditRepository) Create(ctx context.Context, credit *models.MakeupCredit) error {
	now := time.Now().UTC()
	if credit.ID == "" {
		credit.ID = uuid.NewString()
	}
	if credit.Status == "" {
		credit.Status = models.CreditStatusPending
	}
	if credit.Type == "" {
		credit.Type = models.CreditTypeAuto
	}
	if credit.CreatedAt.IsZero() {
		credit.CreatedAt = now
	}
	credit.UpdatedAt = now
	const query = `INSERT INTO recuperaciones_clase (id, alumno_id, clase_id, fecha_falta, liberacion_id, tipo, estado, fecha_recuperacion, evento_recuperacion_id, notas, motivo_cancelacion, created_at, updated_at)
        VALUES (:id, :alumno_id, :clase_id, :fecha_falta, :liberacion_id, :tipo, :estado, :fecha_recuperacion, :evento_recuperacion_id, :notas, :motivo_cancelacion, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, credit); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("create credit: %w", err)
	}
	return nil
}

// Fulfill transitions a pending credit to fulfilled with the recovery date.
func (r *MakeupCreditRepository) Fulfill(ctx context.Context, id string, date time.Time, occurrenceID *string, notes *string) error {
	const query = `UPDATE recuperaciones_clase SET estado = $2, fecha_recuperacion = $3, evento_recuperacion_id = $4, notas = COALESCE($5, notas), updated_at = $6
        WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.CreditStatusFulfilled, date, occurrenceID, notes, time.Now().UTC()); err != nil {
		return fmt.Errorf("fulfill credit: %w", err)
	}
	return nil
}

// Cancel transitions a pending credit to canceled with the given reason.
func (r *MakeupCreditRepository) Cancel(ctx context.Context, id, reason string) error {
	const query = `UPDATE recuperaciones_clase SET estado = $2, motivo_cancelacion = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.CreditStatusCanceled, reason, time.Now().UTC()); err != nil {
		return fmt.Errorf("cancel credit: %w", err)
	}
	return nil
}
