package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestAnswerRepositoryGetMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAnswerRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT instance_id, user_id, value, updated_at")).
		WithArgs(int64(1), int64(100)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), 1, 100)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnswerRepositorySetUpserts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAnswerRepository(db)

	mock.ExpectExec("ON CONFLICT \\(instance_id, user_id\\) DO UPDATE").
		WithArgs(int64(1), int64(100), true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Set(context.Background(), 1, 100, true))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnswerRepositoryGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAnswerRepository(db)

	rows := sqlmock.NewRows([]string{"instance_id", "user_id", "value", "updated_at"}).
		AddRow(int64(1), int64(100), true, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT instance_id, user_id, value, updated_at")).
		WithArgs(int64(1), int64(100)).
		WillReturnRows(rows)

	answer, err := repo.Get(context.Background(), 1, 100)
	require.NoError(t, err)
	require.True(t, answer.Value)
	require.NoError(t, mock.ExpectationsWereMet())
}
