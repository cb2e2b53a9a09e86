package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/antriver/moodle-enrol-self-parents/internal/models"
)

type fakeExpiryStore struct {
	candidates []models.ExpiryCandidate
}

func (f *fakeExpiryStore) FindExpiring(ctx context.Context, now int64) ([]models.ExpiryCandidate, error) {
	return f.candidates, nil
}

func TestExpiryNotifiesUser(t *testing.T) {
	store := &fakeExpiryStore{candidates: []models.ExpiryCandidate{
		{InstanceID: 1, CourseID: 10, UserID: 100, TimeEnd: 1700000000},
	}}
	courses := &fakeCourses{course: &models.Course{ID: 10, FullName: "Physics 101", ShortName: "PHY101"}}
	users := &fakeUsers{users: map[int64]*models.User{
		100: {ID: 100, FirstName: "Alex", LastName: "Tester", Email: "alex@example.com"},
	}}
	rels := &fakeRelationships{parents: map[int64][]models.RelatedUser{}}
	mailer := &captureMailer{}
	svc := NewExpiryService(store, courses, users, rels, mailer, "support@example.com", zap.NewNop())

	require.NoError(t, svc.Run(context.Background()))

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "alex@example.com", msg.ToEmail)
	assert.Equal(t, "Enrolment in Physics 101 expires soon", msg.Subject)
	assert.Contains(t, msg.TextBody, "Alex Tester")
	assert.Equal(t, "support@example.com", msg.FromEmail)
}

func TestExpiryNotifyAllIncludesParents(t *testing.T) {
	store := &fakeExpiryStore{candidates: []models.ExpiryCandidate{
		{InstanceID: 1, CourseID: 10, UserID: 100, TimeEnd: 1700000000, NotifyAll: true},
	}}
	courses := &fakeCourses{course: &models.Course{ID: 10, FullName: "Physics 101", ShortName: "PHY101"}}
	users := &fakeUsers{users: map[int64]*models.User{
		100: {ID: 100, FirstName: "Alex", LastName: "Tester", Email: "alex@example.com"},
		200: {ID: 200, FirstName: "Pat", LastName: "Tester", Email: "pat@example.com"},
	}}
	rels := &fakeRelationships{parents: map[int64][]models.RelatedUser{
		100: {related(200, "Pat")},
	}}
	mailer := &captureMailer{}
	svc := NewExpiryService(store, courses, users, rels, mailer, "support@example.com", zap.NewNop())

	require.NoError(t, svc.Run(context.Background()))

	require.Len(t, mailer.sent, 2)
	assert.Equal(t, "alex@example.com", mailer.sent[0].ToEmail)
	assert.Equal(t, "pat@example.com", mailer.sent[1].ToEmail)
	assert.Contains(t, mailer.sent[1].TextBody, "Alex Tester")
}

func TestExpirySkipsCandidateWithMissingUser(t *testing.T) {
	store := &fakeExpiryStore{candidates: []models.ExpiryCandidate{
		{InstanceID: 1, CourseID: 10, UserID: 999, TimeEnd: 1700000000},
		{InstanceID: 1, CourseID: 10, UserID: 100, TimeEnd: 1700000000},
	}}
	courses := &fakeCourses{course: &models.Course{ID: 10, FullName: "Physics 101", ShortName: "PHY101"}}
	users := &fakeUsers{users: map[int64]*models.User{
		100: {ID: 100, FirstName: "Alex", LastName: "Tester", Email: "alex@example.com"},
	}}
	rels := &fakeRelationships{parents: map[int64][]models.RelatedUser{}}
	mailer := &captureMailer{}
	svc := NewExpiryService(store, courses, users, rels, mailer, "support@example.com", zap.NewNop())

	require.NoError(t, svc.Run(context.Background()))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "alex@example.com", mailer.sent[0].ToEmail)
}
