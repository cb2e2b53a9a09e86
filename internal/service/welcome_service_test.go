package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/antriver/moodle-enrol-self-parents/internal/models"
	"github.com/antriver/moodle-enrol-self-parents/pkg/mail"
)

type fakeCourses struct {
	course  *models.Course
	contact *models.User
}

func (f *fakeCourses) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	if f.course == nil {
		return nil, sql.ErrNoRows
	}
	return f.course, nil
}

func (f *fakeCourses) FindContact(ctx context.Context, courseID int64) (*models.User, error) {
	if f.contact == nil {
		return nil, sql.ErrNoRows
	}
	return f.contact, nil
}

type fakeUsers struct {
	users map[int64]*models.User
}

func (f *fakeUsers) FindByID(ctx context.Context, id int64) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

type captureMailer struct {
	sent []mail.Message
}

func (m *captureMailer) Send(ctx context.Context, msg mail.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

func TestWelcomeSubstitutesPlaceholders(t *testing.T) {
	courses := &fakeCourses{course: &models.Course{ID: 10, FullName: "Physics 101", ShortName: "PHY101"}}
	users := &fakeUsers{users: map[int64]*models.User{100: {ID: 100, FirstName: "Alex", LastName: "Tester", Email: "alex@example.com"}}}
	mailer := &captureMailer{}
	svc := NewWelcomeService(courses, users, mailer, "support@example.com", "https://lms.example.com", zap.NewNop())

	instance := testInstance()
	instance.WelcomeMessage = "Welcome to {$a->coursename}! Profile: {$a->profileurl}"
	require.NoError(t, svc.Send(context.Background(), instance, 100))

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "alex@example.com", msg.ToEmail)
	assert.Equal(t, "Welcome to Physics 101", msg.Subject)
	assert.Contains(t, msg.TextBody, "Welcome to Physics 101!")
	assert.Contains(t, msg.TextBody, "https://lms.example.com/user/view.php?id=100&course=10")
	assert.Empty(t, msg.HTMLBody)
	assert.Equal(t, "support@example.com", msg.FromEmail)
}

func TestWelcomeUsesCourseContactAsSender(t *testing.T) {
	courses := &fakeCourses{
		course:  &models.Course{ID: 10, FullName: "Physics 101", ShortName: "PHY101"},
		contact: &models.User{ID: 7, FirstName: "Toni", LastName: "Contact", Email: "toni@example.com"},
	}
	users := &fakeUsers{users: map[int64]*models.User{100: {ID: 100, Email: "alex@example.com"}}}
	mailer := &captureMailer{}
	svc := NewWelcomeService(courses, users, mailer, "support@example.com", "https://lms.example.com", zap.NewNop())

	require.NoError(t, svc.Send(context.Background(), testInstance(), 100))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "toni@example.com", mailer.sent[0].FromEmail)
	assert.Equal(t, "Toni Contact", mailer.sent[0].FromName)
}

func TestWelcomeHTMLTemplateGetsTextAlternative(t *testing.T) {
	courses := &fakeCourses{course: &models.Course{ID: 10, FullName: "Physics 101", ShortName: "PHY101"}}
	users := &fakeUsers{users: map[int64]*models.User{100: {ID: 100, Email: "alex@example.com"}}}
	mailer := &captureMailer{}
	svc := NewWelcomeService(courses, users, mailer, "support@example.com", "https://lms.example.com", zap.NewNop())

	instance := testInstance()
	instance.WelcomeMessage = "<p>Welcome to <b>{$a->coursename}</b></p>"
	require.NoError(t, svc.Send(context.Background(), instance, 100))

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Contains(t, msg.HTMLBody, "<b>Physics 101</b>")
	assert.Equal(t, "Welcome to Physics 101", msg.TextBody)
}

func TestWelcomeDefaultTemplate(t *testing.T) {
	courses := &fakeCourses{course: &models.Course{ID: 10, FullName: "Physics 101", ShortName: "PHY101"}}
	users := &fakeUsers{users: map[int64]*models.User{100: {ID: 100, Email: "alex@example.com"}}}
	mailer := &captureMailer{}
	svc := NewWelcomeService(courses, users, mailer, "support@example.com", "https://lms.example.com", zap.NewNop())

	require.NoError(t, svc.Send(context.Background(), testInstance(), 100))

	require.Len(t, mailer.sent, 1)
	assert.Contains(t, mailer.sent[0].TextBody, "Welcome to Physics 101!")
}
