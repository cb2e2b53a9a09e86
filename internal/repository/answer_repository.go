package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/antriver/moodle-enrol-self-parents/internal/models"
)

// AnswerRepository persists the yes/no answer recorded per (instance, user)
// pair at enrolment time.
type AnswerRepository struct {
	db *sqlx.DB
}

// NewAnswerRepository constructs the repository.
func NewAnswerRepository(db *sqlx.DB) *AnswerRepository {
	return &AnswerRepository{db: db}
}

// Get returns the stored answer, or sql.ErrNoRows when none was recorded.
func (r *AnswerRepository) Get(ctx context.Context, instanceID, userID int64) (*models.ChildAnswer, error) {
	const query = `SELECT instance_id, user_id, value, updated_at
        FROM enrol_child_answers WHERE instance_id = $1 AND user_id = $2`
	var answer models.ChildAnswer
	if err := r.db.GetContext(ctx, &answer, query, instanceID, userID); err != nil {
		return nil, err
	}
	return &answer, nil
}

// Set upserts the answer; resubmission updates the existing row in place.
func (r *AnswerRepository) Set(ctx context.Context, instanceID, userID int64, value bool) error {
	const query = `INSERT INTO enrol_child_answers (instance_id, user_id, value, updated_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (instance_id, user_id) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, instanceID, userID, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("set child answer: %w", err)
	}
	return nil
}
