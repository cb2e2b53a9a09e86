package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/antriver/moodle-enrol-self-parents/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrolmentRepositoryFindActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrolmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "instance_id", "user_id", "role_id", "time_start", "time_end", "status", "created_at", "updated_at"}).
		AddRow("enr-1", int64(1), int64(100), int64(5), int64(1000), int64(0), models.EnrolmentStatusActive, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, instance_id, user_id, role_id, time_start, time_end, status, created_at, updated_at")).
		WithArgs(int64(1), int64(100), models.EnrolmentStatusActive).
		WillReturnRows(rows)

	enrolment, err := repo.FindActive(context.Background(), 1, 100)
	require.NoError(t, err)
	require.Equal(t, "enr-1", enrolment.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrolmentRepositoryExistsActiveFalse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrolmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrolments WHERE instance_id = $1 AND user_id = $2 AND status = $3 LIMIT 1")).
		WithArgs(int64(1), int64(100), models.EnrolmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	exists, err := repo.ExistsActive(context.Background(), 1, 100)
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrolmentRepositoryCreateGeneratesID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrolmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrolments")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	enrolment := &models.Enrolment{InstanceID: 1, UserID: 100, RoleID: 5, TimeStart: 1000}
	require.NoError(t, repo.Create(context.Background(), enrolment))
	require.NotEmpty(t, enrolment.ID)
	require.Equal(t, models.EnrolmentStatusActive, enrolment.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrolmentRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrolmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrolments WHERE instance_id = $1 AND user_id = $2")).
		WithArgs(int64(1), int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), 1, 100))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrolmentRepositoryFindNeverAccessedFiltersCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrolmentRepository(db)

	rows := sqlmock.NewRows([]string{"instance_id", "course_id", "user_id", "inactivity_threshold"}).
		AddRow(int64(1), int64(10), int64(100), int64(2592000))
	mock.ExpectQuery("NOT EXISTS").
		WithArgs(int64(5000), models.EnrolmentStatusActive, int64(10)).
		WillReturnRows(rows)

	candidates, err := repo.FindNeverAccessed(context.Background(), 5000, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, int64(100), candidates[0].UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrolmentRepositoryFindStaleAccess(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrolmentRepository(db)

	rows := sqlmock.NewRows([]string{"instance_id", "course_id", "user_id", "inactivity_threshold"}).
		AddRow(int64(1), int64(10), int64(101), int64(2592000))
	mock.ExpectQuery("JOIN course_last_access").
		WithArgs(int64(5000), models.EnrolmentStatusActive).
		WillReturnRows(rows)

	candidates, err := repo.FindStaleAccess(context.Background(), 5000, 0)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
