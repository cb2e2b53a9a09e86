package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/antriver/moodle-enrol-self-parents/internal/models"
)

// CourseRepository reads host course records.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns a course by its ID.
func (r *CourseRepository) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	const query = `SELECT id, full_name, short_name FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindContact returns the course contact used as welcome-mail sender: the
// highest-authority user holding a contact role in the course context.
// sql.ErrNoRows when the course has no contact.
func (r *CourseRepository) FindContact(ctx context.Context, courseID int64) (*models.User, error) {
	const query = `SELECT u.id, u.username, u.first_name, u.last_name, u.email, u.last_login
        FROM role_assignments ra
        JOIN contexts ctx ON ctx.id = ra.context_id AND ctx.context_level = $2
        JOIN roles r ON r.id = ra.role_id AND r.course_contact = TRUE
        JOIN users u ON u.id = ra.user_id
        WHERE ctx.instance_id = $1
        ORDER BY r.sort_order, u.id
        LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, courseID, ContextLevelCourse); err != nil {
		return nil, err
	}
	return &user, nil
}
