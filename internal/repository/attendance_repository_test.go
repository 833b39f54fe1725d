package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/molinacode/padel-crm-api/internal/models"
)

func attendanceRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "alumno_id", "clase_id", "evento_id", "fecha", "estado", "notas", "created_at", "updated_at"})
}

func TestAttendanceRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO asistencias .*ON CONFLICT \(alumno_id, clase_id, fecha\)`).
		WithArgs(sqlmock.AnyArg(), "stu-1", "class-1", nil, date, models.AttendanceStatusJustified, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(attendanceRows().AddRow("att-1", "stu-1", "class-1", nil, date, models.AttendanceStatusJustified, nil, time.Now(), time.Now()))

	stored, err := repo.Upsert(context.Background(), &models.Attendance{
		StudentID: "stu-1",
		ClassID:   "class-1",
		Date:      date,
		Status:    models.AttendanceStatusJustified,
	})
	require.NoError(t, err)
	require.Equal(t, "att-1", stored.ID)
	require.Equal(t, models.AttendanceStatusJustified, stored.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListJustifiedStudents(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT alumno_id FROM asistencias WHERE clase_id = \$1 AND fecha = \$2 AND estado = \$3`).
		WithArgs("class-1", date, models.AttendanceStatusJustified).
		WillReturnRows(sqlmock.NewRows([]string{"alumno_id"}).AddRow("stu-1").AddRow("stu-2"))

	studentIDs, err := repo.ListJustifiedStudents(context.Background(), "class-1", date)
	require.NoError(t, err)
	require.Equal(t, []string{"stu-1", "stu-2"}, studentIDs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListJustifiedWithoutCredit(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	older := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT .* FROM asistencias ast\s+WHERE ast\.alumno_id = \$1 AND ast\.estado = \$2\s+AND NOT EXISTS`).
		WithArgs("stu-1", models.AttendanceStatusJustified).
		WillReturnRows(attendanceRows().
			AddRow("att-1", "stu-1", "class-1", nil, older, models.AttendanceStatusJustified, nil, time.Now(), time.Now()).
			AddRow("att-2", "stu-1", "class-1", nil, newer, models.AttendanceStatusJustified, nil, time.Now(), time.Now()))

	records, err := repo.ListJustifiedWithoutCredit(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.True(t, records[0].Date.Before(records[1].Date))
	require.NoError(t, mock.ExpectationsWereMet())
}
