package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/antriver/moodle-enrol-self-parents/internal/models"
)

// RelationshipRepository reads parent/child links from the host's role
// assignment store. A parent is any user holding a role assignment scoped to
// the child's personal user context. Links are host-owned and read-only here.
type RelationshipRepository struct {
	db *sqlx.DB
}

// NewRelationshipRepository constructs the repository.
func NewRelationshipRepository(db *sqlx.DB) *RelationshipRepository {
	return &RelationshipRepository{db: db}
}

// ParentsOf returns the users assigned a role in the given user's personal context.
func (r *RelationshipRepository) ParentsOf(ctx context.Context, userID int64) ([]models.RelatedUser, error) {
	const query = `SELECT ra.user_id, u.username, u.first_name, u.last_name
        FROM role_assignments ra
        JOIN contexts c ON c.id = ra.context_id AND c.context_level = $2
        JOIN users u ON u.id = ra.user_id
        WHERE c.instance_id = $1
        ORDER BY ra.user_id`
	var parents []models.RelatedUser
	if err := r.db.SelectContext(ctx, &parents, query, userID, ContextLevelUser); err != nil {
		return nil, fmt.Errorf("parents of %d: %w", userID, err)
	}
	return parents, nil
}

// ChildrenOf returns the users in whose personal context the given user
// holds a role assignment.
func (r *RelationshipRepository) ChildrenOf(ctx context.Context, userID int64) ([]models.RelatedUser, error) {
	const query = `SELECT u.id AS user_id, u.username, u.first_name, u.last_name
        FROM role_assignments ra
        JOIN contexts c ON c.id = ra.context_id AND c.context_level = $2
        JOIN users u ON u.id = c.instance_id
        WHERE ra.user_id = $1
        ORDER BY u.id`
	var children []models.RelatedUser
	if err := r.db.SelectContext(ctx, &children, query, userID, ContextLevelUser); err != nil {
		return nil, fmt.Errorf("children of %d: %w", userID, err)
	}
	return children, nil
}
