package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/antriver/moodle-enrol-self-parents/internal/models"
)

// GroupRepository reads host course groups and records memberships added
// through group-key enrolment.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository constructs the repository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// ListKeyed returns the course's groups that carry an enrolment key,
// ascending by id so key matching is deterministic (first match wins).
func (r *GroupRepository) ListKeyed(ctx context.Context, courseID int64) ([]models.Group, error) {
	const query = `SELECT id, course_id, name, enrolment_key
        FROM groups WHERE course_id = $1 AND enrolment_key <> '' ORDER BY id`
	var groups []models.Group
	if err := r.db.SelectContext(ctx, &groups, query, courseID); err != nil {
		return nil, fmt.Errorf("list keyed groups: %w", err)
	}
	return groups, nil
}

// AddMember records a group membership. Re-adding an existing member is a no-op.
func (r *GroupRepository) AddMember(ctx context.Context, groupID, userID int64) error {
	const query = `INSERT INTO group_members (group_id, user_id)
        VALUES ($1, $2) ON CONFLICT (group_id, user_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, groupID, userID); err != nil {
		return fmt.Errorf("add group member: %w", err)
	}
	return nil
}
