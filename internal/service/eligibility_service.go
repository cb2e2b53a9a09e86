package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/antriver/moodle-enrol-self-parents/internal/models"
)

type eligibilityEnrolmentRepo interface {
	ExistsActive(ctx context.Context, instanceID, userID int64) (bool, error)
	CountActive(ctx context.Context, instanceID int64) (int, error)
	CountActiveExcludingRole(ctx context.Context, instanceID, roleID int64) (int, error)
}

// EligibilityService decides whether a candidate may enrol through an
// instance. Denials are ordinary outcomes carried in the Decision value;
// errors are reserved for storage failures.
//
// The cohort restriction is deliberately not evaluated here: it must be
// checked against the acting user for self-enrolment but against each child
// for batch enrolment, and this service has no per-child context. The
// orchestrator owns that check.
type EligibilityService struct {
	enrolments  eligibilityEnrolmentRepo
	guestUserID int64
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
}

// NewEligibilityService constructs EligibilityService.
func NewEligibilityService(enrolments eligibilityEnrolmentRepo, guestUserID int64, metrics *MetricsService, logger *zap.Logger) *EligibilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EligibilityService{
		enrolments:  enrolments,
		guestUserID: guestUserID,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// Evaluate runs the ordered eligibility checks; the first failing check wins.
//
// The guest and already-enrolled checks only apply when the caller asked for
// an existing-enrolment check and the instance does not let parents enrol
// children: a parent who is already enrolled must still be able to reach the
// form to enrol more children.
func (s *EligibilityService) Evaluate(ctx context.Context, instance *models.Instance, userID int64, checkExisting bool) (models.Decision, error) {
	decision, err := s.evaluate(ctx, instance, userID, checkExisting)
	if err != nil {
		return decision, err
	}
	if !decision.Allowed {
		s.metrics.CountDenial(decision.Reason)
	}
	return decision, nil
}

func (s *EligibilityService) evaluate(ctx context.Context, instance *models.Instance, userID int64, checkExisting bool) (models.Decision, error) {
	if checkExisting && !instance.ParentsCanEnrol {
		if s.isGuest(userID) {
			return models.Deny(models.DenialGuestAccess, "Guests cannot enrol in this course."), nil
		}
		enrolled, err := s.enrolments.ExistsActive(ctx, instance.ID, userID)
		if err != nil {
			return models.Decision{}, err
		}
		if enrolled {
			return models.Deny(models.DenialAlreadyEnrolled, "You are already enrolled in this course."), nil
		}
	}

	if instance.Status != models.InstanceStatusEnabled {
		return models.Deny(models.DenialDisabled, "You cannot enrol yourself in this course."), nil
	}

	now := s.now().Unix()
	if instance.EnrolStartDate != 0 && instance.EnrolStartDate > now {
		return models.Deny(models.DenialNotStarted, "Enrolment has not started yet."), nil
	}
	if instance.EnrolEndDate != 0 && instance.EnrolEndDate < now {
		return models.Deny(models.DenialEnded, "Enrolment has finished."), nil
	}

	if !instance.NewEnrolsAllowed {
		return models.Deny(models.DenialNoNewEnrols, "This course is not accepting new enrolments."), nil
	}

	if instance.MaxEnrolled > 0 {
		count, err := s.capCount(ctx, instance)
		if err != nil {
			return models.Decision{}, err
		}
		if count >= instance.MaxEnrolled {
			return models.Deny(models.DenialMaxReached, "The maximum number of users allowed to enrol has been reached."), nil
		}
	}

	return models.Allow(), nil
}

func (s *EligibilityService) capCount(ctx context.Context, instance *models.Instance) (int, error) {
	if instance.ParentsCountedInMax {
		return s.enrolments.CountActive(ctx, instance.ID)
	}
	return s.enrolments.CountActiveExcludingRole(ctx, instance.ID, instance.ParentRoleID)
}

func (s *EligibilityService) isGuest(userID int64) bool {
	if userID <= 0 {
		return true
	}
	return s.guestUserID != 0 && userID == s.guestUserID
}
