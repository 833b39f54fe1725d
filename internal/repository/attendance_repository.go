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

// AttendanceRepository handles persistence of attendance marks.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const attendanceColumns = `id, alumno_id, clase_id, evento_id, fecha, estado, notas, created_at, updated_at`

// List returns attendance records filtered by the provided criteria.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	base := `FROM asistencias ast
LEFT JOIN alumnos a ON a.id = ast.alumno_id
LEFT JOIN clases c ON c.id = ast.clase_id`
	var conditions []string
	var args []interface{}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("ast.clase_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("ast.alumno_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("ast.estado = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("ast.fecha >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("ast.fecha <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
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
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT ast.id, ast.alumno_id, ast.clase_id, ast.evento_id, ast.fecha, ast.estado, ast.notas, ast.created_at, ast.updated_at,
        a.nombre AS student_name, c.nombre AS class_name
        %s ORDER BY ast.fecha %s LIMIT %d OFFSET %d`, base+clause, order, size, offset)

	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return records, total, nil
}

// Upsert writes an attendance mark, replacing any earlier mark for the
// same (student, class, date). Re-marking is an update, never a duplicate.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	query := fmt.Sprintf(`INSERT INTO asistencias (id, alumno_id, clase_id, evento_id, fecha, estado, notas, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (alumno_id, clase_id, fecha)
DO UPDATE SET estado = EXCLUDED.estado, notas = EXCLUDED.notas, evento_id = EXCLUDED.evento_id, updated_at = EXCLUDED.updated_at
RETURNING %s`, attendanceColumns)
	var stored models.Attendance
	if err := r.db.GetContext(ctx, &stored, query, record.ID, record.StudentID, record.ClassID, record.OccurrenceID, record.Date, record.Status, record.Notes, record.CreatedAt, record.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert attendance: %w", err)
	}
	return &stored, nil
}

// ListByStudent returns a student's attendance records ordered by date.
func (r *AttendanceRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Attendance, error) {
	query := fmt.Sprintf("SELECT %s FROM asistencias WHERE alumno_id = $1 ORDER BY fecha ASC", attendanceColumns)
	var records []models.Attendance
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("list student attendance: %w", err)
	}
	return records, nil
}

// ListJustifiedStudents returns the IDs of students holding a
// justified-absence mark for a class on an exact date.
func (r *AttendanceRepository) ListJustifiedStudents(ctx context.Context, classID string, date time.Time) ([]string, error) {
	const query = `SELECT alumno_id FROM asistencias WHERE clase_id = $1 AND fecha = $2 AND estado = $3`
	var studentIDs []string
	if err := r.db.SelectContext(ctx, &studentIDs, query, classID, date, models.AttendanceStatusJustified); err != nil {
		return nil, fmt.Errorf("list justified marks: %w", err)
	}
	return studentIDs, nil
}

// ListJustifiedWithoutCredit returns a student's justified-absence marks
// that no makeup credit references yet, oldest first. Feeds the
// inferential fulfillment fallback.
func (r *AttendanceRepository) ListJustifiedWithoutCredit(ctx context.Context, studentID string) ([]models.Attendance, error) {
	const query = `SELECT ast.id, ast.alumno_id, ast.clase_id, ast.evento_id, ast.fecha, ast.estado, ast.notas, ast.created_at, ast.updated_at
        FROM asistencias ast
        WHERE ast.alumno_id = $1 AND ast.estado = $2
        AND NOT EXISTS (
            SELECT 1 FROM recuperaciones_clase rc
            WHERE rc.alumno_id = ast.alumno_id AND rc.clase_id = ast.clase_id AND rc.fecha_falta = ast.fecha
        )
        ORDER BY ast.fecha ASC`
	var records []models.Attendance
	if err := r.db.SelectContext(ctx, &records, query, studentID, models.AttendanceStatusJustified); err != nil {
		return nil, fmt.Errorf("list unlinked justified absences: %w", err)
	}
	return records, nil
}
