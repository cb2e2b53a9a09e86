package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/antriver/moodle-enrol-self-parents/internal/models"
)

type fakeSyncStore struct {
	never    []models.SyncCandidate
	stale    []models.SyncCandidate
	neverErr error
	staleErr error
}

func (f *fakeSyncStore) FindNeverAccessed(ctx context.Context, now int64, courseID int64) ([]models.SyncCandidate, error) {
	return f.never, f.neverErr
}

func (f *fakeSyncStore) FindStaleAccess(ctx context.Context, now int64, courseID int64) ([]models.SyncCandidate, error) {
	return f.stale, f.staleErr
}

type fakeInstances struct {
	instances map[int64]*models.Instance
	created   []*models.Instance
}

func (f *fakeInstances) FindByID(ctx context.Context, id int64) (*models.Instance, error) {
	if instance, ok := f.instances[id]; ok {
		return instance, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeInstances) ListByCourse(ctx context.Context, courseID int64) ([]models.Instance, error) {
	var list []models.Instance
	for _, instance := range f.instances {
		if instance.CourseID == courseID {
			list = append(list, *instance)
		}
	}
	return list, nil
}

func (f *fakeInstances) Create(ctx context.Context, instance *models.Instance) error {
	instance.ID = int64(len(f.created) + 1)
	f.created = append(f.created, instance)
	if f.instances == nil {
		f.instances = map[int64]*models.Instance{}
	}
	f.instances[instance.ID] = instance
	return nil
}

func TestSyncDisabled(t *testing.T) {
	svc := NewSyncService(&fakeSyncStore{}, &fakeInstances{}, nil, nil, false, nil, zap.NewNop())
	assert.Equal(t, SyncDisabled, svc.Run(context.Background(), 0))
}

func TestSyncUnenrolsInactiveUsers(t *testing.T) {
	store := newFakeEnrolmentStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &models.Enrolment{InstanceID: 1, UserID: 100, RoleID: 5, Status: models.EnrolmentStatusActive}))
	require.NoError(t, store.Create(ctx, &models.Enrolment{InstanceID: 1, UserID: 101, RoleID: 5, Status: models.EnrolmentStatusActive}))

	instance := testInstance()
	instance.InactivityThreshold = 30 * 86400
	instances := &fakeInstances{instances: map[int64]*models.Instance{1: instance}}

	syncStore := &fakeSyncStore{
		never: []models.SyncCandidate{{InstanceID: 1, CourseID: 10, UserID: 100, InactivityThreshold: instance.InactivityThreshold}},
		stale: []models.SyncCandidate{{InstanceID: 1, CourseID: 10, UserID: 101, InactivityThreshold: instance.InactivityThreshold}},
	}

	rels := &fakeRelationships{parents: map[int64][]models.RelatedUser{}, children: map[int64][]models.RelatedUser{}}
	propagator := NewPropagator(store, rels, nil, zap.NewNop())
	svc := NewSyncService(syncStore, instances, propagator, nil, true, nil, zap.NewNop())

	assert.Equal(t, SyncOK, svc.Run(ctx, 0))
	assert.Empty(t, store.enrolments)
}

func TestSyncQueryFailure(t *testing.T) {
	syncStore := &fakeSyncStore{neverErr: fmt.Errorf("db down")}
	svc := NewSyncService(syncStore, &fakeInstances{}, nil, nil, true, nil, zap.NewNop())
	assert.Equal(t, SyncError, svc.Run(context.Background(), 0))
}

func TestSyncSkipsBrokenRowsAndFlagsError(t *testing.T) {
	store := newFakeEnrolmentStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &models.Enrolment{InstanceID: 1, UserID: 100, RoleID: 5, Status: models.EnrolmentStatusActive}))

	instance := testInstance()
	instances := &fakeInstances{instances: map[int64]*models.Instance{1: instance}}

	// Candidate for an instance that no longer exists plus a valid one.
	syncStore := &fakeSyncStore{
		never: []models.SyncCandidate{
			{InstanceID: 99, CourseID: 10, UserID: 500},
			{InstanceID: 1, CourseID: 10, UserID: 100},
		},
	}

	rels := &fakeRelationships{parents: map[int64][]models.RelatedUser{}, children: map[int64][]models.RelatedUser{}}
	propagator := NewPropagator(store, rels, nil, zap.NewNop())
	svc := NewSyncService(syncStore, instances, propagator, nil, true, nil, zap.NewNop())

	assert.Equal(t, SyncError, svc.Run(ctx, 0))
	assert.Empty(t, store.enrolments, "valid candidate still processed")
}
