package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/molinacode/padel-crm-api/internal/models"
)

func TestOccurrenceRepositoryLastScheduledDate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOccurrenceRepository(db)

	from := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	last := time.Date(2026, 6, 22, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT fecha FROM eventos_clase WHERE clase_id = \$1 AND fecha >= \$2 AND estado = \$3\s+ORDER BY fecha DESC LIMIT 1`).
		WithArgs("class-1", from, models.OccurrenceStatusScheduled).
		WillReturnRows(sqlmock.NewRows([]string{"fecha"}).AddRow(last))

	date, err := repo.LastScheduledDate(context.Background(), "class-1", from)
	require.NoError(t, err)
	require.Equal(t, last, date)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOccurrenceRepositoryLastScheduledDateEmptySeries(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOccurrenceRepository(db)

	from := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT fecha FROM eventos_clase`).
		WithArgs("class-1", from, models.OccurrenceStatusScheduled).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.LastScheduledDate(context.Background(), "class-1", from)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOccurrenceRepositoryDeleteFutureGenerated(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOccurrenceRepository(db)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`DELETE FROM eventos_clase WHERE clase_id = \$1 AND fecha >= \$2 AND modificado_individualmente = FALSE`).
		WithArgs("class-1", from).
		WillReturnResult(sqlmock.NewResult(0, 4))

	require.NoError(t, repo.DeleteFutureGenerated(context.Background(), "class-1", from))
	require.NoError(t, mock.ExpectationsWereMet())
}
