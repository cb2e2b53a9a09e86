package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/antriver/moodle-enrol-self-parents/internal/models"
	"github.com/antriver/moodle-enrol-self-parents/pkg/config"
)

func testEnrolDefaults() config.EnrolConfig {
	return config.EnrolConfig{
		DefaultStatusEnabled: true,
		DefaultRoleID:        5,
		ParentRoleID:         9,
		DefaultEnrolPeriod:   time.Hour,
		DefaultNewEnrols:     true,
		DefaultSendWelcome:   true,
		ParentsCanEnrol:      true,
		ParentsCanUnenrol:    true,
	}
}

func newInstanceService(instances *fakeInstances) *InstanceService {
	eligibility := newEligibility(newFakeEnrolmentStore(), 1000)
	return NewInstanceService(instances, eligibility, testEnrolDefaults(), validator.New(), zap.NewNop())
}

func TestInstanceDefaults(t *testing.T) {
	svc := newInstanceService(&fakeInstances{})

	defaults := svc.Defaults()
	assert.Equal(t, models.InstanceStatusEnabled, defaults.Status)
	assert.Equal(t, int64(5), defaults.RoleID)
	assert.Equal(t, int64(9), defaults.ParentRoleID)
	assert.Equal(t, int64(3600), defaults.EnrolPeriod)
	assert.True(t, defaults.NewEnrolsAllowed)
	assert.True(t, defaults.ParentsCanEnrol)
	assert.True(t, defaults.SendWelcome)
}

func TestInstanceCreateAppliesDefaults(t *testing.T) {
	instances := &fakeInstances{}
	svc := newInstanceService(instances)

	created, err := svc.Create(context.Background(), CreateInstanceRequest{CourseID: 10, Name: "Autumn intake"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), created.CourseID)
	assert.Equal(t, models.InstanceStatusEnabled, created.Status)
	assert.Equal(t, int64(9), created.ParentRoleID)
	require.Len(t, instances.created, 1)
}

func TestInstanceCreateGeneratesKeyWhenRequired(t *testing.T) {
	instances := &fakeInstances{}
	defaults := testEnrolDefaults()
	defaults.RequirePassword = true
	eligibility := newEligibility(newFakeEnrolmentStore(), 1000)
	svc := NewInstanceService(instances, eligibility, defaults, validator.New(), zap.NewNop())

	created, err := svc.Create(context.Background(), CreateInstanceRequest{CourseID: 10})
	require.NoError(t, err)
	assert.Len(t, created.Password, generatedKeyLength)

	// A provided key is kept as-is.
	created, err = svc.Create(context.Background(), CreateInstanceRequest{CourseID: 10, Password: "chosen"})
	require.NoError(t, err)
	assert.Equal(t, "chosen", created.Password)
}

func TestInstanceCreateRejectsInvertedWindow(t *testing.T) {
	svc := newInstanceService(&fakeInstances{})

	_, err := svc.Create(context.Background(), CreateInstanceRequest{
		CourseID:       10,
		EnrolStartDate: 2000,
		EnrolEndDate:   1000,
	})
	require.Error(t, err)
}

func TestInstanceDisplayName(t *testing.T) {
	svc := newInstanceService(&fakeInstances{})

	assert.Equal(t, "Autumn intake", svc.DisplayName(&models.Instance{Name: "Autumn intake"}))
	assert.Equal(t, "Self enrolment (self and parents)", svc.DisplayName(&models.Instance{}))
}

func TestInstanceInfoIcons(t *testing.T) {
	keyed := testInstance()
	keyed.Password = "secret"
	open := testInstance()
	open.ID = 2
	disabled := testInstance()
	disabled.ID = 3
	disabled.Status = models.InstanceStatusDisabled

	instances := &fakeInstances{instances: map[int64]*models.Instance{
		1: keyed, 2: open, 3: disabled,
	}}
	svc := newInstanceService(instances)

	icons, err := svc.InfoIcons(context.Background(), 10, 100)
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.InfoIcon{models.InfoIconWithKey, models.InfoIconWithoutKey}, icons)
}
