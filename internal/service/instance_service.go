package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/antriver/moodle-enrol-self-parents/internal/models"
	"github.com/antriver/moodle-enrol-self-parents/pkg/config"
	appErrors "github.com/antriver/moodle-enrol-self-parents/pkg/errors"
)

const generatedKeyLength = 20

// Characters similar enough to be misread are left out of generated keys.
const keyAlphabet = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ23456789"

type instanceRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Instance, error)
	ListByCourse(ctx context.Context, courseID int64) ([]models.Instance, error)
	Create(ctx context.Context, instance *models.Instance) error
}

// CreateInstanceRequest is the admin payload for attaching a new enrolment
// instance to a course. Zero values fall back to the site defaults.
type CreateInstanceRequest struct {
	CourseID            int64  `json:"course_id" validate:"required"`
	Name                string `json:"name"`
	Enabled             *bool  `json:"enabled"`
	Password            string `json:"password"`
	GroupKeyAllowed     *bool  `json:"group_key_allowed"`
	RoleID              int64  `json:"role_id"`
	EnrolPeriod         int64  `json:"enrol_period" validate:"gte=0"`
	EnrolStartDate      int64  `json:"enrol_start_date" validate:"gte=0"`
	EnrolEndDate        int64  `json:"enrol_end_date" validate:"gte=0"`
	InactivityThreshold int64  `json:"inactivity_threshold" validate:"gte=0"`
	ExpiryThreshold     int64  `json:"expiry_threshold" validate:"gte=0"`
	ExpiryNotify        *int   `json:"expiry_notify"`
	NotifyAll           bool   `json:"notify_all"`
	MaxEnrolled         int    `json:"max_enrolled" validate:"gte=0"`
	NewEnrolsAllowed    *bool  `json:"new_enrols_allowed"`
	CohortID            int64  `json:"cohort_id" validate:"gte=0"`
	ParentsCanEnrol     *bool  `json:"parents_can_enrol"`
	ParentsCanUnenrol   *bool  `json:"parents_can_unenrol"`
	ParentRoleID        int64  `json:"parent_role_id"`
	ParentsCountedInMax *bool  `json:"parents_counted_in_max"`
	ChildQuestion       string `json:"child_question"`
	WelcomeMessage      string `json:"welcome_message"`
	SendWelcome         *bool  `json:"send_welcome"`
}

// InstanceService manages enrolment instance configuration and the
// course-listing presentation helpers.
type InstanceService struct {
	instances   instanceRepository
	eligibility eligibilityEvaluator
	defaults    config.EnrolConfig
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewInstanceService constructs InstanceService.
func NewInstanceService(instances instanceRepository, eligibility eligibilityEvaluator, defaults config.EnrolConfig, validate *validator.Validate, logger *zap.Logger) *InstanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstanceService{
		instances:   instances,
		eligibility: eligibility,
		defaults:    defaults,
		validator:   validate,
		logger:      logger,
	}
}

// Defaults returns a new-instance template seeded from the site settings.
func (s *InstanceService) Defaults() models.Instance {
	status := models.InstanceStatusDisabled
	if s.defaults.DefaultStatusEnabled {
		status = models.InstanceStatusEnabled
	}
	return models.Instance{
		Status:              status,
		GroupKeyAllowed:     s.defaults.DefaultGroupKey,
		RoleID:              s.defaults.DefaultRoleID,
		EnrolPeriod:         int64(s.defaults.DefaultEnrolPeriod.Seconds()),
		ExpiryThreshold:     int64(s.defaults.DefaultExpiryThreshold.Seconds()),
		ExpiryNotify:        s.defaults.DefaultExpiryNotify,
		MaxEnrolled:         s.defaults.DefaultMaxEnrolled,
		NewEnrolsAllowed:    s.defaults.DefaultNewEnrols,
		ParentsCanEnrol:     s.defaults.ParentsCanEnrol,
		ParentsCanUnenrol:   s.defaults.ParentsCanUnenrol,
		ParentRoleID:        s.defaults.ParentRoleID,
		ParentsCountedInMax: s.defaults.ParentsCountedInMax,
		SendWelcome:         s.defaults.DefaultSendWelcome,
	}
}

// Get returns an instance by ID.
func (s *InstanceService) Get(ctx context.Context, id int64) (*models.Instance, error) {
	instance, err := s.instances.FindByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("enrolment instance %d not found", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instance")
	}
	return instance, nil
}

// Create validates and persists a new instance. When the site requires a
// key and none was provided one is generated.
func (s *InstanceService) Create(ctx context.Context, req CreateInstanceRequest) (*models.Instance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid instance payload")
	}
	if req.EnrolEndDate != 0 && req.EnrolEndDate < req.EnrolStartDate {
		return nil, appErrors.Clone(appErrors.ErrValidation, "enrolment end date cannot precede the start date")
	}

	instance := s.Defaults()
	instance.CourseID = req.CourseID
	instance.Name = req.Name
	instance.Password = req.Password
	instance.EnrolPeriod = req.EnrolPeriod
	instance.EnrolStartDate = req.EnrolStartDate
	instance.EnrolEndDate = req.EnrolEndDate
	instance.InactivityThreshold = req.InactivityThreshold
	instance.NotifyAll = req.NotifyAll
	instance.MaxEnrolled = req.MaxEnrolled
	instance.CohortID = req.CohortID
	instance.ChildQuestion = req.ChildQuestion
	instance.WelcomeMessage = req.WelcomeMessage

	if req.Enabled != nil {
		if *req.Enabled {
			instance.Status = models.InstanceStatusEnabled
		} else {
			instance.Status = models.InstanceStatusDisabled
		}
	}
	if req.GroupKeyAllowed != nil {
		instance.GroupKeyAllowed = *req.GroupKeyAllowed
	}
	if req.RoleID != 0 {
		instance.RoleID = req.RoleID
	}
	if req.ExpiryThreshold != 0 {
		instance.ExpiryThreshold = req.ExpiryThreshold
	}
	if req.ExpiryNotify != nil {
		instance.ExpiryNotify = *req.ExpiryNotify
	}
	if req.NewEnrolsAllowed != nil {
		instance.NewEnrolsAllowed = *req.NewEnrolsAllowed
	}
	if req.ParentsCanEnrol != nil {
		instance.ParentsCanEnrol = *req.ParentsCanEnrol
	}
	if req.ParentsCanUnenrol != nil {
		instance.ParentsCanUnenrol = *req.ParentsCanUnenrol
	}
	if req.ParentRoleID != 0 {
		instance.ParentRoleID = req.ParentRoleID
	}
	if req.ParentsCountedInMax != nil {
		instance.ParentsCountedInMax = *req.ParentsCountedInMax
	}
	if req.SendWelcome != nil {
		instance.SendWelcome = *req.SendWelcome
	}

	if s.defaults.RequirePassword && instance.Password == "" {
		key, err := generateEnrolKey()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate enrolment key")
		}
		instance.Password = key
	}

	if err := s.instances.Create(ctx, &instance); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create instance")
	}
	s.logger.Info("enrolment instance created",
		zap.Int64("instance_id", instance.ID),
		zap.Int64("course_id", instance.CourseID))
	return &instance, nil
}

// DisplayName returns the name shown for the instance in enrolment UIs.
func (s *InstanceService) DisplayName(instance *models.Instance) string {
	if strings.TrimSpace(instance.Name) != "" {
		return instance.Name
	}
	return "Self enrolment (self and parents)"
}

// InfoIcons maps each instance on a course to the icon a listing shows,
// considering only instances the user could currently enrol through.
func (s *InstanceService) InfoIcons(ctx context.Context, courseID, userID int64) ([]models.InfoIcon, error) {
	instances, err := s.instances.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list instances")
	}

	var icons []models.InfoIcon
	for i := range instances {
		decision, err := s.eligibility.Evaluate(ctx, &instances[i], userID, false)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to evaluate eligibility")
		}
		if !decision.Allowed {
			continue
		}
		if instances[i].RequiresKey() {
			icons = append(icons, models.InfoIconWithKey)
		} else {
			icons = append(icons, models.InfoIconWithoutKey)
		}
	}
	return icons, nil
}

func generateEnrolKey() (string, error) {
	max := big.NewInt(int64(len(keyAlphabet)))
	var b strings.Builder
	b.Grow(generatedKeyLength)
	for i := 0; i < generatedKeyLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(keyAlphabet[n.Int64()])
	}
	return b.String(), nil
}
