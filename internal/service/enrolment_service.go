package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/antriver/moodle-enrol-self-parents/internal/models"
	appErrors "github.com/antriver/moodle-enrol-self-parents/pkg/errors"
	"github.com/antriver/moodle-enrol-self-parents/pkg/token"
)

type enrolmentPropagator interface {
	Enrol(ctx context.Context, instance *models.Instance, userID, roleID, timeStart, timeEnd int64, status models.EnrolmentStatus) error
	Unenrol(ctx context.Context, instance *models.Instance, userID int64) error
}

type eligibilityEvaluator interface {
	Evaluate(ctx context.Context, instance *models.Instance, userID int64, checkExisting bool) (models.Decision, error)
}

type enrolmentChecker interface {
	ExistsActive(ctx context.Context, instanceID, userID int64) (bool, error)
}

type groupReader interface {
	ListKeyed(ctx context.Context, courseID int64) ([]models.Group, error)
	AddMember(ctx context.Context, groupID, userID int64) error
}

type cohortReader interface {
	FindByID(ctx context.Context, id int64) (*models.Cohort, error)
	IsMember(ctx context.Context, cohortID, userID int64) (bool, error)
}

type answerStore interface {
	Get(ctx context.Context, instanceID, userID int64) (*models.ChildAnswer, error)
	Set(ctx context.Context, instanceID, userID int64, value bool) error
}

type welcomeSender interface {
	Send(ctx context.Context, instance *models.Instance, userID int64) error
}

// SubmitEnrolmentRequest is the explicit submission payload. The acting user
// and every dynamically-named form field arrive here as parameters; the
// service never reaches into ambient request state.
type SubmitEnrolmentRequest struct {
	ActingUserID  int64          `json:"-" validate:"required"`
	EnrolKey      string         `json:"enrol_key"`
	EnrolChildren bool           `json:"enrol_children"`
	ChildUserIDs  []int64        `json:"child_user_ids"`
	ChildAnswers  map[int64]bool `json:"child_answers"`
}

// SubmitEnrolmentResult reports what a submission did.
type SubmitEnrolmentResult struct {
	EnrolledUserIDs []int64         `json:"enrolled_user_ids"`
	Decision        models.Decision `json:"decision"`
}

// UnenrolChildRequest drives the two-step unenrol confirmation flow.
type UnenrolChildRequest struct {
	ChildUserID  int64  `json:"child_user_id" validate:"required"`
	Confirmed    bool   `json:"confirmed"`
	ConfirmToken string `json:"confirm_token"`
}

// UnenrolPrompt is returned for an unconfirmed unenrol request.
type UnenrolPrompt struct {
	Message      string    `json:"message"`
	ConfirmToken string    `json:"confirm_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// EnrolmentService orchestrates enrolment submissions: eligibility, key and
// cohort gating, target resolution, cascade enrolment, group joining,
// welcome mail and custom answers.
type EnrolmentService struct {
	enrolments    enrolmentChecker
	propagator    enrolmentPropagator
	eligibility   eligibilityEvaluator
	relationships relationshipResolver
	groups        groupReader
	cohorts       cohortReader
	answers       answerStore
	welcome       welcomeSender
	confirm       *token.ConfirmSigner
	showKeyHint   bool
	validator     *validator.Validate
	metrics       *MetricsService
	logger        *zap.Logger
	now           func() time.Time
}

// NewEnrolmentService constructs EnrolmentService.
func NewEnrolmentService(
	enrolments enrolmentChecker,
	propagator enrolmentPropagator,
	eligibility eligibilityEvaluator,
	relationships relationshipResolver,
	groups groupReader,
	cohorts cohortReader,
	answers answerStore,
	welcome welcomeSender,
	confirm *token.ConfirmSigner,
	showKeyHint bool,
	validate *validator.Validate,
	metrics *MetricsService,
	logger *zap.Logger,
) *EnrolmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrolmentService{
		enrolments:    enrolments,
		propagator:    propagator,
		eligibility:   eligibility,
		relationships: relationships,
		groups:        groups,
		cohorts:       cohorts,
		answers:       answers,
		welcome:       welcome,
		confirm:       confirm,
		showKeyHint:   showKeyHint,
		validator:     validate,
		metrics:       metrics,
		logger:        logger,
		now:           time.Now,
	}
}

// CanUserEnrol exposes the eligibility decision for navigation and the
// enrolment page.
func (s *EnrolmentService) CanUserEnrol(ctx context.Context, instance *models.Instance, userID int64, checkExisting bool) (models.Decision, error) {
	decision, err := s.eligibility.Evaluate(ctx, instance, userID, checkExisting)
	if err != nil {
		return models.Decision{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to evaluate eligibility")
	}
	return decision, nil
}

// SubmitEnrolment processes a submitted enrolment form.
func (s *EnrolmentService) SubmitEnrolment(ctx context.Context, instance *models.Instance, req SubmitEnrolmentRequest) (*SubmitEnrolmentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrolment payload")
	}

	decision, err := s.eligibility.Evaluate(ctx, instance, req.ActingUserID, true)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to evaluate eligibility")
	}
	if !decision.Allowed {
		return &SubmitEnrolmentResult{Decision: decision}, nil
	}

	// Submissions without the required key are dropped silently; the form
	// should never have produced one.
	if instance.RequiresKey() && req.EnrolKey == "" {
		return &SubmitEnrolmentResult{Decision: models.Allow()}, nil
	}

	matchedGroupID, keyDecision, err := s.matchKey(ctx, instance, req.EnrolKey)
	if err != nil {
		return nil, err
	}
	if !keyDecision.Allowed {
		return &SubmitEnrolmentResult{Decision: keyDecision}, nil
	}

	targets, denial, err := s.resolveTargets(ctx, instance, req)
	if err != nil {
		return nil, err
	}
	if denial != nil {
		return &SubmitEnrolmentResult{Decision: *denial}, nil
	}

	timeStart := s.now().Unix()
	var timeEnd int64
	if instance.EnrolPeriod > 0 {
		timeEnd = timeStart + instance.EnrolPeriod
	}

	enrolled := make([]int64, 0, len(targets))
	for _, target := range targets {
		if err := s.propagator.Enrol(ctx, instance, target, instance.RoleID, timeStart, timeEnd, models.EnrolmentStatusActive); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enrol user")
		}
		enrolled = append(enrolled, target)
		if req.EnrolChildren {
			s.metrics.CountEnrolment("child")
		} else {
			s.metrics.CountEnrolment("self")
		}

		if matchedGroupID != 0 {
			// Group membership is best-effort; the enrolment stands even
			// if the join fails.
			if err := s.groups.AddMember(ctx, matchedGroupID, target); err != nil {
				s.logger.Warn("group join failed",
					zap.Int64("group_id", matchedGroupID),
					zap.Int64("user_id", target),
					zap.Error(err))
			}
		}
	}

	if instance.SendWelcome && len(enrolled) > 0 {
		if err := s.welcome.Send(ctx, instance, req.ActingUserID); err != nil {
			s.metrics.CountWelcomeMail("error")
			s.logger.Warn("welcome email failed",
				zap.Int64("instance_id", instance.ID),
				zap.Int64("user_id", req.ActingUserID),
				zap.Error(err))
		} else {
			s.metrics.CountWelcomeMail("sent")
		}
	}

	if instance.ChildQuestion != "" {
		for userID, value := range req.ChildAnswers {
			if err := s.answers.Set(ctx, instance.ID, userID, value); err != nil {
				s.logger.Warn("child answer save failed",
					zap.Int64("instance_id", instance.ID),
					zap.Int64("user_id", userID),
					zap.Error(err))
			}
		}
	}

	return &SubmitEnrolmentResult{EnrolledUserIDs: enrolled, Decision: models.Allow()}, nil
}

// matchKey validates the submitted enrolment key. A key differing from the
// instance key may still match a group key when the instance allows them;
// the matched group's id is returned so targets can be added to it.
func (s *EnrolmentService) matchKey(ctx context.Context, instance *models.Instance, key string) (int64, models.Decision, error) {
	if !instance.RequiresKey() || key == instance.Password {
		return 0, models.Allow(), nil
	}

	if instance.GroupKeyAllowed {
		groups, err := s.groups.ListKeyed(ctx, instance.CourseID)
		if err != nil {
			return 0, models.Decision{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course groups")
		}
		for _, group := range groups {
			if group.EnrolmentKey == key {
				return group.ID, models.Allow(), nil
			}
		}
		// No hint with group keys; there are probably several valid ones.
		return 0, models.Deny(models.DenialInvalidKey, "Incorrect enrolment key, please try again."), nil
	}

	message := "Incorrect enrolment key, please try again."
	if s.showKeyHint && instance.Password != "" {
		message = fmt.Sprintf("Incorrect enrolment key, please try again. (It starts with %q.)", string(instance.Password[0]))
	}
	return 0, models.Deny(models.DenialInvalidKey, message), nil
}

// resolveTargets determines who the submission enrols and applies the
// cohort restriction per candidate.
func (s *EnrolmentService) resolveTargets(ctx context.Context, instance *models.Instance, req SubmitEnrolmentRequest) ([]int64, *models.Decision, error) {
	cohort, err := s.requiredCohort(ctx, instance)
	if err != nil {
		return nil, nil, err
	}

	if !req.EnrolChildren {
		if cohort != nil {
			member, err := s.cohorts.IsMember(ctx, cohort.ID, req.ActingUserID)
			if err != nil {
				return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check cohort membership")
			}
			if !member {
				denial := models.Deny(models.DenialNotInCohort, fmt.Sprintf("Only members of %q may enrol in this course.", cohort.Name))
				return nil, &denial, nil
			}
		}
		return []int64{req.ActingUserID}, nil, nil
	}

	if !instance.ParentsCanEnrol {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "parents may not enrol children through this instance")
	}
	if len(req.ChildUserIDs) == 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "no children selected")
	}

	children, err := s.relationships.ChildrenOf(ctx, req.ActingUserID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve children")
	}
	childSet := make(map[int64]models.RelatedUser, len(children))
	for _, child := range children {
		childSet[child.UserID] = child
	}

	targets := make([]int64, 0, len(req.ChildUserIDs))
	for _, childID := range req.ChildUserIDs {
		child, ok := childSet[childID]
		if !ok {
			return nil, nil, appErrors.Clone(appErrors.ErrNotYourChild, fmt.Sprintf("user %d is not a child of the acting user", childID))
		}
		if cohort != nil {
			member, err := s.cohorts.IsMember(ctx, cohort.ID, childID)
			if err != nil {
				return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check cohort membership")
			}
			if !member {
				denial := models.Deny(models.DenialNotInCohort, fmt.Sprintf("%s is not a member of %q.", child.FullName(), cohort.Name))
				return nil, &denial, nil
			}
		}
		targets = append(targets, childID)
	}
	return targets, nil, nil
}

// requiredCohort loads the instance's cohort restriction. A configured but
// missing cohort is a hard configuration error, never a silent downgrade to
// "no restriction".
func (s *EnrolmentService) requiredCohort(ctx context.Context, instance *models.Instance) (*models.Cohort, error) {
	if instance.CohortID == 0 {
		return nil, nil
	}
	cohort, err := s.cohorts.FindByID(ctx, instance.CohortID)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrBadConfig, fmt.Sprintf("required cohort %d for instance %d does not exist", instance.CohortID, instance.ID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cohort")
	}
	return cohort, nil
}

// RecordedAnswers returns the custom-question answers previously stored for
// the acting user and their children, keyed by user id. Used to prefill the
// enrolment form on resubmission; users without a stored answer are absent.
func (s *EnrolmentService) RecordedAnswers(ctx context.Context, instance *models.Instance, actingUserID int64) (map[int64]bool, error) {
	if instance.ChildQuestion == "" {
		return nil, nil
	}

	userIDs := []int64{actingUserID}
	children, err := s.relationships.ChildrenOf(ctx, actingUserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve children")
	}
	for _, child := range children {
		userIDs = append(userIDs, child.UserID)
	}

	answers := make(map[int64]bool)
	for _, userID := range userIDs {
		answer, err := s.answers.Get(ctx, instance.ID, userID)
		if err != nil {
			if isNoRows(err) {
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load answers")
		}
		answers[answer.UserID] = answer.Value
	}
	return answers, nil
}

// ChildActions builds the navigation links shown to a parent on a course:
// an unenrol link per enrolled child and a single enrol-more link when any
// child could still be enrolled.
func (s *EnrolmentService) ChildActions(ctx context.Context, instance *models.Instance, userID int64) ([]models.ChildAction, error) {
	if !instance.ParentsCanEnrol && !instance.ParentsCanUnenrol {
		return nil, nil
	}

	children, err := s.relationships.ChildrenOf(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve children")
	}

	var actions []models.ChildAction
	showEnrolMore := false
	for _, child := range children {
		enrolled, err := s.enrolments.ExistsActive(ctx, instance.ID, child.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrolment")
		}
		if enrolled {
			if instance.ParentsCanUnenrol {
				actions = append(actions, models.ChildAction{
					Type:        models.ChildActionUnenrol,
					ChildUserID: child.UserID,
					Label:       fmt.Sprintf("Unenrol %s from this course", child.FullName()),
					URL:         fmt.Sprintf("/instances/%d/unenrol-child?child=%d", instance.ID, child.UserID),
				})
			}
		} else if instance.ParentsCanEnrol {
			showEnrolMore = true
		}
	}

	if showEnrolMore {
		actions = append(actions, models.ChildAction{
			Type:  models.ChildActionEnrolMore,
			Label: "Enrol more of your children",
			URL:   fmt.Sprintf("/courses/%d/enrol", instance.CourseID),
		})
	}
	return actions, nil
}

// UnenrolChild handles the parent-initiated unenrolment of one child. The
// first call returns a confirmation prompt with a signed token; the
// confirmed call verifies the token and performs the unenrolment.
func (s *EnrolmentService) UnenrolChild(ctx context.Context, instance *models.Instance, actingUserID int64, req UnenrolChildRequest) (*UnenrolPrompt, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid unenrol payload")
	}
	if !instance.ParentsCanUnenrol {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "parents may not unenrol children through this instance")
	}

	children, err := s.relationships.ChildrenOf(ctx, actingUserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve children")
	}
	var child *models.RelatedUser
	for i := range children {
		if children[i].UserID == req.ChildUserID {
			child = &children[i]
			break
		}
	}
	if child == nil {
		return nil, appErrors.Clone(appErrors.ErrNotYourChild, "")
	}

	if !req.Confirmed {
		raw, expiresAt, err := s.confirm.Generate(instance.ID, actingUserID, req.ChildUserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue confirmation token")
		}
		return &UnenrolPrompt{
			Message:      fmt.Sprintf("Do you really want to unenrol %s from this course?", child.FullName()),
			ConfirmToken: raw,
			ExpiresAt:    expiresAt,
		}, nil
	}

	if err := s.confirm.Verify(req.ConfirmToken, instance.ID, actingUserID, req.ChildUserID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid confirmation token")
	}

	if err := s.propagator.Unenrol(ctx, instance, req.ChildUserID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unenrol child")
	}
	s.metrics.CountUnenrolment("direct")
	s.logger.Info("parent unenrolled child",
		zap.Int64("instance_id", instance.ID),
		zap.Int64("parent_id", actingUserID),
		zap.Int64("child_id", req.ChildUserID))
	return nil, nil
}
