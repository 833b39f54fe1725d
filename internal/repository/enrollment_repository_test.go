package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/molinacode/padel-crm-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryListForOccurrence(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	occID := "evt-1"
	rows := sqlmock.NewRows([]string{"id", "alumno_id", "clase_id", "origen", "tipo_asignacion", "evento_id", "es_recuperacion", "created_at", "student_name", "class_name"}).
		AddRow("enr-1", "stu-1", "class-1", models.OriginSchool, models.AssignmentPermanent, nil, false, time.Now(), "Ana", "Escuela L").
		AddRow("enr-2", "stu-2", "class-1", models.OriginInternal, models.AssignmentTemporary, occID, true, time.Now(), "Luis", "Escuela L")
	mock.ExpectQuery(`SELECT ac\.id, ac\.alumno_id.*FROM alumnos_clases ac.*tipo_asignacion <> \$3 OR ac\.evento_id = \$2`).
		WithArgs("class-1", occID, models.AssignmentTemporary).
		WillReturnRows(rows)

	enrollments, err := repo.ListForOccurrence(context.Background(), "class-1", occID)
	require.NoError(t, err)
	require.Len(t, enrollments, 2)
	require.True(t, enrollments[0].AppliesTo(occID))
	require.True(t, enrollments[1].AppliesTo(occID))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateOriginByClass(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE alumnos_clases SET origen = $2 WHERE clase_id = $1")).
		WithArgs("class-1", models.OriginInternal).
		WillReturnResult(sqlmock.NewResult(0, 3))

	rows, err := repo.UpdateOriginByClass(context.Background(), "class-1", models.OriginInternal)
	require.NoError(t, err)
	require.EqualValues(t, 3, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsPermanentNoRows(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(`SELECT 1 FROM alumnos_clases`).
		WithArgs("stu-1", "class-1", models.AssignmentTemporary).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err := repo.ExistsPermanent(context.Background(), "stu-1", "class-1")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}
