package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/molinacode/padel-crm-api/internal/models"
)

const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether the error is a PostgreSQL unique
// constraint violation. Idempotent-insert paths treat it as a benign
// already-created race.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolationCode
	}
	return false
}

// SlotReleaseRepository handles persistence of freed-seat windows.
type SlotReleaseRepository struct {
	db *sqlx.DB
}

// NewSlotReleaseRepository constructs the repository.
func NewSlotReleaseRepository(db *sqlx.DB) *SlotReleaseRepository {
	return &SlotReleaseRepository{db: db}
}

const releaseColumns = `id, alumno_id, clase_id, fecha_inicio, fecha_fin, motivo, derecho_recuperacion, estado, created_at, canceled_at`

// List returns releases filtered by the provided criteria.
func (r *SlotReleaseRepository) List(ctx context.Context, filter models.SlotReleaseFilter) ([]models.SlotRelease, int, error) {
	base := `FROM liberaciones_plaza`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("alumno_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("clase_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("estado = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Date != nil {
		conditions = append(conditions, fmt.Sprintf("fecha_inicio <= $%d AND fecha_fin >= $%d", len(args)+1, len(args)+1))
		args = append(args, *filter.Date)
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY fecha_inicio %s LIMIT %d OFFSET %d", releaseColumns, base+clause, order, size, offset)

	var releases []models.SlotRelease
	if err := r.db.SelectContext(ctx, &releases, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list releases: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count releases: %w", err)
	}
	return releases, total, nil
}

// FindActive returns the active release for (student, class, window start),
// sql.ErrNoRows when none exists.
func (r *SlotReleaseRepository) FindActive(ctx context.Context, studentID, classID string, startDate time.Time) (*models.SlotRelease, error) {
	query := fmt.Sprintf(`SELECT %s FROM liberaciones_plaza
        WHERE alumno_id = $1 AND clase_id = $2 AND fecha_inicio = $3 AND estado = $4 LIMIT 1`, releaseColumns)
	var release models.SlotRelease
	if err := r.db.GetContext(ctx, &release, query, studentID, classID, startDate, models.ReleaseStatusActive); err != nil {
		return nil, err
	}
	return &release, nil
}

// ListActiveCovering returns the active releases of a class whose window
// contains the given date.
func (r *SlotReleaseRepository) ListActiveCovering(ctx context.Context, classID string, date time.Time) ([]models.SlotRelease, error) {
	query := fmt.Sprintf(`SELECT %s FROM liberaciones_plaza
        WHERE clase_id = $1 AND estado = $2 AND fecha_inicio <= $3 AND fecha_fin >= $3`, releaseColumns)
	var releases []models.SlotRelease
	if err := r.db.SelectContext(ctx, &releases, query, classID, models.ReleaseStatusActive, date); err != nil {
		return nil, fmt.Errorf("list covering releases: %w", err)
	}
	return releases, nil
}

// FindActiveCoveringStudent returns the student's active release covering
// the given date, sql.ErrNoRows when none exists.
func (r *SlotReleaseRepository) FindActiveCoveringStudent(ctx context.Context, studentID, classID string, date time.Time) (*models.SlotRelease, error) {
	query := fmt.Sprintf(`SELECT %s FROM liberaciones_plaza
        WHERE alumno_id = $1 AND clase_id = $2 AND estado = $3 AND fecha_inicio <= $4 AND fecha_fin >= $4
        ORDER BY fecha_inicio DESC LIMIT 1`, releaseColumns)
	var release models.SlotRelease
	if err := r.db.GetContext(ctx, &release, query, studentID, classID, models.ReleaseStatusActive, date); err != nil {
		return nil, err
	}
	return &release, nil
}

// Create persists a new slot release. A unique index on
// (alumno_id, clase_id, fecha_inicio) WHERE estado = 'active' guards
// against duplicate active windows; callers check IsUniqueViolation.
func (r *SlotReleaseRepository) Create(ctx context.Context, release *models.SlotRelease) error {
	if release.ID == "" {
		release.ID = uuid.NewString()
	}
	if release.CreatedAt.IsZero() {
		release.CreatedAt = time.Now().UTC()
	}
	if release.Status == "" {
		release.Status = models.ReleaseStatusActive
	}
	const query = `INSERT INTO liberaciones_plaza (id, alumno_id, clase_id, fecha_inicio, fecha_fin, motivo, derecho_recuperacion, estado, created_at)
        VALUES (:id, :alumno_id, :clase_id, :fecha_inicio, :fecha_fin, :motivo, :derecho_recuperacion, :estado, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, release); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("create release: %w", err)
	}
	return nil
}

// Cancel transitions a release to canceled.
func (r *SlotReleaseRepository) Cancel(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE liberaciones_plaza SET estado = $2, canceled_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReleaseStatusCanceled, at); err != nil {
		return fmt.Errorf("cancel release: %w", err)
	}
	return nil
}
