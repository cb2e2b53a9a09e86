package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/antriver/moodle-enrol-self-parents/internal/models"
)

// Context levels used by the host platform's context table.
const (
	ContextLevelCourse = 50
	ContextLevelUser   = 30
)

// EnrolmentRepository handles persistence of enrolments.
type EnrolmentRepository struct {
	db *sqlx.DB
}

// NewEnrolmentRepository constructs the repository.
func NewEnrolmentRepository(db *sqlx.DB) *EnrolmentRepository {
	return &EnrolmentRepository{db: db}
}

// FindActive returns the active enrolment for the (instance, user) pair.
func (r *EnrolmentRepository) FindActive(ctx context.Context, instanceID, userID int64) (*models.Enrolment, error) {
	const query = `SELECT id, instance_id, user_id, role_id, time_start, time_end, status, created_at, updated_at
        FROM enrolments WHERE instance_id = $1 AND user_id = $2 AND status = $3`
	var enrolment models.Enrolment
	if err := r.db.GetContext(ctx, &enrolment, query, instanceID, userID, models.EnrolmentStatusActive); err != nil {
		return nil, err
	}
	return &enrolment, nil
}

// ExistsActive checks whether the user holds an active enrolment on the instance.
func (r *EnrolmentRepository) ExistsActive(ctx context.Context, instanceID, userID int64) (bool, error) {
	const query = `SELECT 1 FROM enrolments WHERE instance_id = $1 AND user_id = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, instanceID, userID, models.EnrolmentStatusActive); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active enrolment: %w", err)
	}
	return true, nil
}

// CountActive counts every active enrolment on the instance.
func (r *EnrolmentRepository) CountActive(ctx context.Context, instanceID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM enrolments WHERE instance_id = $1 AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, instanceID, models.EnrolmentStatusActive); err != nil {
		return 0, fmt.Errorf("count enrolments: %w", err)
	}
	return count, nil
}

// CountActiveExcludingRole counts active enrolments whose course-context role
// assignment differs from the given role. Used for the enrolment cap when
// parents are excluded from the count.
func (r *EnrolmentRepository) CountActiveExcludingRole(ctx context.Context, instanceID, roleID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM enrolments e
        JOIN enrol_instances i ON i.id = e.instance_id
        JOIN contexts ctx ON ctx.instance_id = i.course_id AND ctx.context_level = $3
        JOIN role_assignments ra ON ra.user_id = e.user_id AND ra.context_id = ctx.id
        WHERE e.instance_id = $1 AND e.status = $4 AND ra.role_id <> $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, instanceID, roleID, ContextLevelCourse, models.EnrolmentStatusActive); err != nil {
		return 0, fmt.Errorf("count enrolments excluding role: %w", err)
	}
	return count, nil
}

// Create persists a new enrolment record.
func (r *EnrolmentRepository) Create(ctx context.Context, enrolment *models.Enrolment) error {
	if enrolment.ID == "" {
		enrolment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrolment.CreatedAt.IsZero() {
		enrolment.CreatedAt = now
	}
	enrolment.UpdatedAt = now
	if enrolment.Status == "" {
		enrolment.Status = models.EnrolmentStatusActive
	}
	const query = `INSERT INTO enrolments (id, instance_id, user_id, role_id, time_start, time_end, status, created_at, updated_at)
        VALUES (:id, :instance_id, :user_id, :role_id, :time_start, :time_end, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrolment); err != nil {
		return fmt.Errorf("create enrolment: %w", err)
	}
	return nil
}

// UpdateWindow refreshes the time window and status of an existing enrolment.
// Used when an enrol call hits an already-enrolled user; there is never a
// second row for the same (instance, user) pair.
func (r *EnrolmentRepository) UpdateWindow(ctx context.Context, id string, timeStart, timeEnd int64, status models.EnrolmentStatus) error {
	const query = `UPDATE enrolments SET time_start = $2, time_end = $3, status = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, timeStart, timeEnd, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrolment window: %w", err)
	}
	return nil
}

// Delete removes the enrolment for the (instance, user) pair.
func (r *EnrolmentRepository) Delete(ctx context.Context, instanceID, userID int64) error {
	const query = `DELETE FROM enrolments WHERE instance_id = $1 AND user_id = $2`
	if _, err := r.db.ExecContext(ctx, query, instanceID, userID); err != nil {
		return fmt.Errorf("delete enrolment: %w", err)
	}
	return nil
}

// ListRoster returns active enrolments joined with user profile fields,
// ordered by last name for export.
func (r *EnrolmentRepository) ListRoster(ctx context.Context, instanceID int64) ([]models.RosterEntry, error) {
	const query = `SELECT e.id, e.instance_id, e.user_id, e.role_id, e.time_start, e.time_end, e.status, e.created_at, e.updated_at,
        u.username, u.first_name, u.last_name
        FROM enrolments e
        JOIN users u ON u.id = e.user_id
        WHERE e.instance_id = $1 AND e.status = $2
        ORDER BY u.last_name, u.first_name, u.id`
	var entries []models.RosterEntry
	if err := r.db.SelectContext(ctx, &entries, query, instanceID, models.EnrolmentStatusActive); err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	return entries, nil
}

// FindNeverAccessed returns active enrolments on inactivity-checked instances
// whose user has no course access record and whose last login predates the
// instance threshold. courseID zero scans every course.
func (r *EnrolmentRepository) FindNeverAccessed(ctx context.Context, now int64, courseID int64) ([]models.SyncCandidate, error) {
	query := `SELECT e.instance_id, i.course_id, e.user_id, i.inactivity_threshold
        FROM enrolments e
        JOIN enrol_instances i ON i.id = e.instance_id AND i.inactivity_threshold > 0
        JOIN users u ON u.id = e.user_id
        WHERE e.status = $2
          AND NOT EXISTS (
              SELECT 1 FROM course_last_access la
              WHERE la.user_id = e.user_id AND la.course_id = i.course_id)
          AND $1 - u.last_login > i.inactivity_threshold`
	args := []interface{}{now, models.EnrolmentStatusActive}
	if courseID > 0 {
		query += ` AND i.course_id = $3`
		args = append(args, courseID)
	}
	var candidates []models.SyncCandidate
	if err := r.db.SelectContext(ctx, &candidates, query, args...); err != nil {
		return nil, fmt.Errorf("find never-accessed enrolments: %w", err)
	}
	return candidates, nil
}

// FindExpiring returns active enrolments that entered their instance's
// expiry notification window within the last day. The one-day band keeps a
// daily sync run from re-notifying the same enrolment.
func (r *EnrolmentRepository) FindExpiring(ctx context.Context, now int64) ([]models.ExpiryCandidate, error) {
	const query = `SELECT e.instance_id, i.course_id, e.user_id, e.time_end, i.notify_all
        FROM enrolments e
        JOIN enrol_instances i ON i.id = e.instance_id AND i.expiry_notify > 0
        WHERE e.status = $2
          AND e.time_end > $1
          AND e.time_end - $1 <= i.expiry_threshold
          AND e.time_end - $1 > i.expiry_threshold - 86400`
	var candidates []models.ExpiryCandidate
	if err := r.db.SelectContext(ctx, &candidates, query, now, models.EnrolmentStatusActive); err != nil {
		return nil, fmt.Errorf("find expiring enrolments: %w", err)
	}
	return candidates, nil
}

// FindStaleAccess returns active enrolments on inactivity-checked instances
// whose user's last course access predates the instance threshold.
func (r *EnrolmentRepository) FindStaleAccess(ctx context.Context, now int64, courseID int64) ([]models.SyncCandidate, error) {
	query := `SELECT e.instance_id, i.course_id, e.user_id, i.inactivity_threshold
        FROM enrolments e
        JOIN enrol_instances i ON i.id = e.instance_id AND i.inactivity_threshold > 0
        JOIN course_last_access la ON la.user_id = e.user_id AND la.course_id = i.course_id
        WHERE e.status = $2
          AND $1 - la.time_access > i.inactivity_threshold`
	args := []interface{}{now, models.EnrolmentStatusActive}
	if courseID > 0 {
		query += ` AND i.course_id = $3`
		args = append(args, courseID)
	}
	var candidates []models.SyncCandidate
	if err := r.db.SelectContext(ctx, &candidates, query, args...); err != nil {
		return nil, fmt.Errorf("find stale-access enrolments: %w", err)
	}
	return candidates, nil
}
