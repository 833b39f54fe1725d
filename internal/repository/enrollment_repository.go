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

// EnrollmentRepository handles persistence of class enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM alumnos_clases ac
LEFT JOIN alumnos a ON a.id = ac.alumno_id
LEFT JOIN clases c ON c.id = ac.clase_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("ac.alumno_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("ac.clase_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.OccurrenceID != "" {
		conditions = append(conditions, fmt.Sprintf("ac.evento_id = $%d", len(args)+1))
		args = append(args, filter.OccurrenceID)
	}
	if filter.Origin != "" {
		conditions = append(conditions, fmt.Sprintf("ac.origen = $%d", len(args)+1))
		args = append(args, filter.Origin)
	}
	if filter.AssignmentType != "" {
		conditions = append(conditions, fmt.Sprintf("ac.tipo_asignacion = $%d", len(args)+1))
		args = append(args, filter.AssignmentType)
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

	query := fmt.Sprintf(`SELECT ac.id, ac.alumno_id, ac.clase_id, ac.origen, ac.tipo_asignacion, ac.evento_id, ac.es_recuperacion, ac.created_at,
        a.nombre AS student_name, c.nombre AS class_name
        %s ORDER BY ac.created_at %s LIMIT %d OFFSET %d`, base+clause, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, alumno_id, clase_id, origen, tipo_asignacion, evento_id, es_recuperacion, created_at FROM alumnos_clases WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListForOccurrence returns the enrollments that can occupy a seat on the
// given occurrence: permanent ones for the class plus temporary ones
// scoped to exactly this occurrence.
func (r *EnrollmentRepository) ListForOccurrence(ctx context.Context, classID, occurrenceID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT ac.id, ac.alumno_id, ac.clase_id, ac.origen, ac.tipo_asignacion, ac.evento_id, ac.es_recuperacion, ac.created_at,
        a.nombre AS student_name, c.nombre AS class_name
        FROM alumnos_clases ac
        LEFT JOIN alumnos a ON a.id = ac.alumno_id
        LEFT JOIN clases c ON c.id = ac.clase_id
        WHERE ac.clase_id = $1 AND (ac.tipo_asignacion <> $3 OR ac.evento_id = $2)`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, classID, occurrenceID, models.AssignmentTemporary); err != nil {
		return nil, fmt.Errorf("list occurrence enrollments: %w", err)
	}
	return enrollments, nil
}

// ListPermanentByStudent returns a student's permanent enrollments across
// all classes. Used for majority-origin inference and to detect brand-new
// students with no prior billing history.
func (r *EnrollmentRepository) ListPermanentByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	const query = `SELECT id, alumno_id, clase_id, origen, tipo_asignacion, evento_id, es_recuperacion, created_at
        FROM alumnos_clases WHERE alumno_id = $1 AND tipo_asignacion <> $2`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID, models.AssignmentTemporary); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// ListByClass returns every enrollment of a class.
func (r *EnrollmentRepository) ListByClass(ctx context.Context, classID string) ([]models.Enrollment, error) {
	const query = `SELECT id, alumno_id, clase_id, origen, tipo_asignacion, evento_id, es_recuperacion, created_at
        FROM alumnos_clases WHERE clase_id = $1`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, classID); err != nil {
		return nil, fmt.Errorf("list class enrollments: %w", err)
	}
	return enrollments, nil
}

// ExistsPermanent checks whether a student already holds a permanent
// enrollment in the class.
func (r *EnrollmentRepository) ExistsPermanent(ctx context.Context, studentID, classID string) (bool, error) {
	const query = `SELECT 1 FROM alumnos_clases WHERE alumno_id = $1 AND clase_id = $2 AND tipo_asignacion <> $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, classID, models.AssignmentTemporary); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check permanent enrollment: %w", err)
	}
	return true, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}
	if enrollment.AssignmentType == "" {
		enrollment.AssignmentType = models.AssignmentPermanent
	}
	const query = `INSERT INTO alumnos_clases (id, alumno_id, clase_id, origen, tipo_asignacion, evento_id, es_recuperacion, created_at)
        VALUES (:id, :alumno_id, :clase_id, :origen, :tipo_asignacion, :evento_id, :es_recuperacion, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Delete removes an enrollment. Enrollments are never mutated except for
// origin; unassignment is a hard delete.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM alumnos_clases WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	return nil
}

// UpdateOriginByClass retroactively rewrites the origin of every
// enrollment of a class. Returns the number of rows touched.
func (r *EnrollmentRepository) UpdateOriginByClass(ctx context.Context, classID string, origin models.EnrollmentOrigin) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE alumnos_clases SET origen = $2 WHERE clase_id = $1`, classID, origin)
	if err != nil {
		return 0, fmt.Errorf("propagate class origin: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("propagate class origin: %w", err)
	}
	return rows, nil
}
