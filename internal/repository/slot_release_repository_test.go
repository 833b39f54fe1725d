package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/molinacode/padel-crm-api/internal/models"
)

func TestSlotReleaseRepositoryFindActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSlotReleaseRepository(db)

	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "alumno_id", "clase_id", "fecha_inicio", "fecha_fin", "motivo", "derecho_recuperacion", "estado", "created_at", "canceled_at"}).
		AddRow("rel-1", "stu-1", "class-1", start, start.AddDate(0, 2, 0), models.ReleaseReasonJustified, true, models.ReleaseStatusActive, time.Now(), nil)
	mock.ExpectQuery(`SELECT .* FROM liberaciones_plaza\s+WHERE alumno_id = \$1 AND clase_id = \$2 AND fecha_inicio = \$3 AND estado = \$4`).
		WithArgs("stu-1", "class-1", start, models.ReleaseStatusActive).
		WillReturnRows(rows)

	release, err := repo.FindActive(context.Background(), "stu-1", "class-1", start)
	require.NoError(t, err)
	require.Equal(t, "rel-1", release.ID)
	require.True(t, release.RightToMakeup)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotReleaseRepositoryCreateUniqueViolation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSlotReleaseRepository(db)

	mock.ExpectExec(`INSERT INTO liberaciones_plaza`).
		WillReturnError(&pq.Error{Code: uniqueViolationCode})

	err := repo.Create(context.Background(), &models.SlotRelease{
		StudentID: "stu-1",
		ClassID:   "class-1",
		StartDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 5, 25, 0, 0, 0, 0, time.UTC),
		Reason:    models.ReleaseReasonJustified,
	})
	require.Error(t, err)
	require.True(t, IsUniqueViolation(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotReleaseRepositoryCancel(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSlotReleaseRepository(db)

	mock.ExpectExec(`UPDATE liberaciones_plaza SET estado = \$2, canceled_at = \$3 WHERE id = \$1`).
		WithArgs("rel-1", models.ReleaseStatusCanceled, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Cancel(context.Background(), "rel-1", time.Now().UTC()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	require.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	require.False(t, IsUniqueViolation(context.Canceled))
	require.False(t, IsUniqueViolation(nil))
}
