package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/antriver/moodle-enrol-self-parents/internal/models"
)

// InstanceRepository handles persistence of enrolment instances.
type InstanceRepository struct {
	db *sqlx.DB
}

// NewInstanceRepository constructs the repository.
func NewInstanceRepository(db *sqlx.DB) *InstanceRepository {
	return &InstanceRepository{db: db}
}

const instanceColumns = `id, course_id, name, status, password, group_key_allowed,
        role_id, enrol_period, enrol_start_date, enrol_end_date,
        inactivity_threshold, expiry_threshold, expiry_notify, notify_all,
        max_enrolled, new_enrols_allowed, cohort_id,
        parents_can_enrol, parents_can_unenrol, parent_role_id, parents_counted_in_max,
        child_question, welcome_message, send_welcome, created_at, updated_at`

// FindByID returns an enrolment instance by its ID.
func (r *InstanceRepository) FindByID(ctx context.Context, id int64) (*models.Instance, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrol_instances WHERE id = $1`, instanceColumns)
	var instance models.Instance
	if err := r.db.GetContext(ctx, &instance, query, id); err != nil {
		return nil, err
	}
	return &instance, nil
}

// ListByCourse returns the instances attached to a course, oldest first.
func (r *InstanceRepository) ListByCourse(ctx context.Context, courseID int64) ([]models.Instance, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrol_instances WHERE course_id = $1 ORDER BY id`, instanceColumns)
	var instances []models.Instance
	if err := r.db.SelectContext(ctx, &instances, query, courseID); err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	return instances, nil
}

// Create inserts a new instance and fills in its generated ID.
func (r *InstanceRepository) Create(ctx context.Context, instance *models.Instance) error {
	now := time.Now().UTC()
	instance.CreatedAt = now
	instance.UpdatedAt = now
	const query = `INSERT INTO enrol_instances (course_id, name, status, password, group_key_allowed,
        role_id, enrol_period, enrol_start_date, enrol_end_date,
        inactivity_threshold, expiry_threshold, expiry_notify, notify_all,
        max_enrolled, new_enrols_allowed, cohort_id,
        parents_can_enrol, parents_can_unenrol, parent_role_id, parents_counted_in_max,
        child_question, welcome_message, send_welcome, created_at, updated_at)
        VALUES (:course_id, :name, :status, :password, :group_key_allowed,
        :role_id, :enrol_period, :enrol_start_date, :enrol_end_date,
        :inactivity_threshold, :expiry_threshold, :expiry_notify, :notify_all,
        :max_enrolled, :new_enrols_allowed, :cohort_id,
        :parents_can_enrol, :parents_can_unenrol, :parent_role_id, :parents_counted_in_max,
        :child_question, :welcome_message, :send_welcome, :created_at, :updated_at)
        RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, query, instance)
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&instance.ID); err != nil {
			return fmt.Errorf("scan instance id: %w", err)
		}
	}
	return rows.Err()
}
