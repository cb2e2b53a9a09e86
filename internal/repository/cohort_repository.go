package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/antriver/moodle-enrol-self-parents/internal/models"
)

// CohortRepository reads host cohorts and memberships.
type CohortRepository struct {
	db *sqlx.DB
}

// NewCohortRepository constructs the repository.
func NewCohortRepository(db *sqlx.DB) *CohortRepository {
	return &CohortRepository{db: db}
}

// FindByID returns a cohort by its ID.
func (r *CohortRepository) FindByID(ctx context.Context, id int64) (*models.Cohort, error) {
	const query = `SELECT id, name FROM cohorts WHERE id = $1`
	var cohort models.Cohort
	if err := r.db.GetContext(ctx, &cohort, query, id); err != nil {
		return nil, err
	}
	return &cohort, nil
}

// IsMember reports whether the user belongs to the cohort.
func (r *CohortRepository) IsMember(ctx context.Context, cohortID, userID int64) (bool, error) {
	const query = `SELECT 1 FROM cohort_members WHERE cohort_id = $1 AND user_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, cohortID, userID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check cohort membership: %w", err)
	}
	return true, nil
}
