package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestRelationshipRepositoryParentsOf(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRelationshipRepository(db)

	rows := sqlmock.NewRows([]string{"user_id", "username", "first_name", "last_name"}).
		AddRow(int64(300), "pat", "Pat", "Tester")
	mock.ExpectQuery("FROM role_assignments ra").
		WithArgs(int64(100), ContextLevelUser).
		WillReturnRows(rows)

	parents, err := repo.ParentsOf(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, parents, 1)
	require.Equal(t, int64(300), parents[0].UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelationshipRepositoryChildrenOf(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRelationshipRepository(db)

	rows := sqlmock.NewRows([]string{"user_id", "username", "first_name", "last_name"}).
		AddRow(int64(100), "alex", "Alex", "Tester").
		AddRow(int64(101), "brook", "Brook", "Tester")
	mock.ExpectQuery("JOIN users u ON u.id = c.instance_id").
		WithArgs(int64(300), ContextLevelUser).
		WillReturnRows(rows)

	children, err := repo.ChildrenOf(context.Background(), 300)
	require.NoError(t, err)
	require.Len(t, children, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}
