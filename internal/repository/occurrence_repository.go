package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/molinacode/padel-crm-api/internal/models"
)

// OccurrenceRepository handles persistence of dated class sessions.
type OccurrenceRepository struct {
	db *sqlx.DB
}

// NewOccurrenceRepository constructs the repository.
func NewOccurrenceRepository(db *sqlx.DB) *OccurrenceRepository {
	return &OccurrenceRepository{db: db}
}

const occurrenceColumns = `id, clase_id, fecha, hora_inicio, hora_fin, estado, modificado_individualmente, excluir_alquiler, created_at, updated_at`

// List returns occurrences filtered by the provided criteria.
func (r *OccurrenceRepository) List(ctx context.Context, filter models.OccurrenceFilter) ([]models.Occurrence, int, error) {
	base := `FROM eventos_clase`
	var conditions []string
	var args []interface{}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("clase_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("estado = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("fecha >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("fecha <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
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
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY fecha %s LIMIT %d OFFSET %d", occurrenceColumns, base+clause, order, size, offset)

	var occurrences []models.Occurrence
	if err := r.db.SelectContext(ctx, &occurrences, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list occurrences: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count occurrences: %w", err)
	}
	return occurrences, total, nil
}

// FindByID returns an occurrence by its ID.
func (r *OccurrenceRepository) FindByID(ctx context.Context, id string) (*models.Occurrence, error) {
	query := fmt.Sprintf("SELECT %s FROM eventos_clase WHERE id = $1", occurrenceColumns)
	var occurrence models.Occurrence
	if err := r.db.GetContext(ctx, &occurrence, query, id); err != nil {
		return nil, err
	}
	return &occurrence, nil
}

// BulkInsert persists a batch of generated occurrences.
func (r *OccurrenceRepository) BulkInsert(ctx context.Context, occurrences []models.Occurrence) error {
	if len(occurrences) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range occurrences {
		if occurrences[i].ID == "" {
			occurrences[i].ID = uuid.NewString()
		}
		if occurrences[i].Status == "" {
			occurrences[i].Status = models.OccurrenceStatusScheduled
		}
		occurrences[i].CreatedAt = now
		occurrences[i].UpdatedAt = now
	}
	const query = `INSERT INTO eventos_clase (id, clase_id, fecha, hora_inicio, hora_fin, estado, modificado_individualmente, excluir_alquiler, created_at, updated_at)
        VALUES (:id, :clase_id, :fecha, :hora_inicio, :hora_fin, :estado, :modificado_individualmente, :excluir_alquiler, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, occurrences); err != nil {
		return fmt.Errorf("bulk insert occurrences: %w", err)
	}
	return nil
}

// UpdateStatus changes the status of an occurrence.
func (r *OccurrenceRepository) UpdateStatus(ctx context.Context, id string, status models.OccurrenceStatus) error {
	const query = `UPDATE eventos_clase SET estado = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update occurrence status: %w", err)
	}
	return nil
}

// Reschedule moves an occurrence to a new date/time and flags it as
// individually modified so regeneration leaves it alone.
func (r *OccurrenceRepository) Reschedule(ctx context.Context, id string, date time.Time, startTime, endTime string) error {
	const query = `UPDATE eventos_clase SET fecha = $2, hora_inicio = $3, hora_fin = $4,
        modificado_individualmente = TRUE, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, date, startTime, endTime, time.Now().UTC()); err != nil {
		return fmt.Errorf("reschedule occurrence: %w", err)
	}
	return nil
}

// SetExcludeFromRental toggles the facility-rental accounting flag.
func (r *OccurrenceRepository) SetExcludeFromRental(ctx context.Context, id string, exclude bool) error {
	const query = `UPDATE eventos_clase SET excluir_alquiler = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, exclude, time.Now().UTC()); err != nil {
		return fmt.Errorf("set exclude from rental: %w", err)
	}
	return nil
}

// DeleteFutureGenerated removes future occurrences of a class that were
// not individually rescheduled. Used before regeneration.
func (r *OccurrenceRepository) DeleteFutureGenerated(ctx context.Context, classID string, from time.Time) error {
	const query = `DELETE FROM eventos_clase WHERE clase_id = $1 AND fecha >= $2 AND modificado_individualmente = FALSE`
	if _, err := r.db.ExecContext(ctx, query, classID, from); err != nil {
		return fmt.Errorf("delete future occurrences: %w", err)
	}
	return nil
}

// LastScheduledDate returns the date of the last non-deleted, non-canceled
// occurrence of a class on or after the given date. sql.ErrNoRows when the
// series has no remaining sessions.
func (r *OccurrenceRepository) LastScheduledDate(ctx context.Context, classID string, from time.Time) (time.Time, error) {
	const query = `SELECT fecha FROM eventos_clase WHERE clase_id = $1 AND fecha >= $2 AND estado = $3
        ORDER BY fecha DESC LIMIT 1`
	var date time.Time
	if err := r.db.GetContext(ctx, &date, query, classID, from, models.OccurrenceStatusScheduled); err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, err
		}
		return time.Time{}, fmt.Errorf("last scheduled date: %w", err)
	}
	return date, nil
}

// FindByClassAndDate returns the scheduled occurrence of a class on a date.
func (r *OccurrenceRepository) FindByClassAndDate(ctx context.Context, classID string, date time.Time) (*models.Occurrence, error) {
	query := fmt.Sprintf("SELECT %s FROM eventos_clase WHERE clase_id = $1 AND fecha = $2 AND estado = $3 LIMIT 1", occurrenceColumns)
	var occurrence models.Occurrence
	if err := r.db.GetContext(ctx, &occurrence, query, classID, date, models.OccurrenceStatusScheduled); err != nil {
		return nil, err
	}
	return &occurrence, nil
}
