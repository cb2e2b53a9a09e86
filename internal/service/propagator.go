package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/antriver/moodle-enrol-self-parents/internal/models"
)

// maxCascadeDepth bounds the parent cascade. The relationship graph is a
// two-level hierarchy in practice, but host data is not trusted to be
// acyclic, so every walk carries a visited set and a depth limit.
const maxCascadeDepth = 8

type propagatorEnrolmentRepo interface {
	FindActive(ctx context.Context, instanceID, userID int64) (*models.Enrolment, error)
	ExistsActive(ctx context.Context, instanceID, userID int64) (bool, error)
	Create(ctx context.Context, enrolment *models.Enrolment) error
	UpdateWindow(ctx context.Context, id string, timeStart, timeEnd int64, status models.EnrolmentStatus) error
	Delete(ctx context.Context, instanceID, userID int64) error
}

type relationshipResolver interface {
	ParentsOf(ctx context.Context, userID int64) ([]models.RelatedUser, error)
	ChildrenOf(ctx context.Context, userID int64) ([]models.RelatedUser, error)
}

// Propagator wraps the base enrol/unenrol primitives with the parent
// cascade: enrolling a user enrols their unenrolled parents under the
// parent role, and unenrolling a user unenrols each parent whose last
// enrolled child just left.
type Propagator struct {
	enrolments    propagatorEnrolmentRepo
	relationships relationshipResolver
	metrics       *MetricsService
	logger        *zap.Logger
	now           func() time.Time
}

// NewPropagator constructs a Propagator.
func NewPropagator(enrolments propagatorEnrolmentRepo, relationships relationshipResolver, metrics *MetricsService, logger *zap.Logger) *Propagator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Propagator{
		enrolments:    enrolments,
		relationships: relationships,
		metrics:       metrics,
		logger:        logger,
		now:           time.Now,
	}
}

// Enrol enrols the user and cascades to their parents. Enrolling an already
// enrolled user refreshes the existing row's window; it never creates a
// duplicate.
func (p *Propagator) Enrol(ctx context.Context, instance *models.Instance, userID, roleID, timeStart, timeEnd int64, status models.EnrolmentStatus) error {
	visited := map[int64]struct{}{}
	return p.enrol(ctx, instance, userID, roleID, timeStart, timeEnd, status, visited, 0)
}

func (p *Propagator) enrol(ctx context.Context, instance *models.Instance, userID, roleID, timeStart, timeEnd int64, status models.EnrolmentStatus, visited map[int64]struct{}, depth int) error {
	if depth > maxCascadeDepth {
		p.logger.Warn("enrol cascade depth exceeded",
			zap.Int64("instance_id", instance.ID),
			zap.Int64("user_id", userID))
		return nil
	}
	visited[userID] = struct{}{}

	if status == "" {
		status = models.EnrolmentStatusActive
	}

	existing, err := p.enrolments.FindActive(ctx, instance.ID, userID)
	switch {
	case err == nil:
		if err := p.enrolments.UpdateWindow(ctx, existing.ID, timeStart, timeEnd, status); err != nil {
			return fmt.Errorf("refresh enrolment for user %d: %w", userID, err)
		}
	case isNoRows(err):
		enrolment := &models.Enrolment{
			InstanceID: instance.ID,
			UserID:     userID,
			RoleID:     roleID,
			TimeStart:  timeStart,
			TimeEnd:    timeEnd,
			Status:     status,
		}
		if err := p.enrolments.Create(ctx, enrolment); err != nil {
			return fmt.Errorf("enrol user %d: %w", userID, err)
		}
	default:
		return fmt.Errorf("load enrolment for user %d: %w", userID, err)
	}

	parents, err := p.relationships.ParentsOf(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve parents of user %d: %w", userID, err)
	}
	for _, parent := range parents {
		if _, seen := visited[parent.UserID]; seen {
			continue
		}
		enrolled, err := p.enrolments.ExistsActive(ctx, instance.ID, parent.UserID)
		if err != nil {
			return fmt.Errorf("check parent %d enrolment: %w", parent.UserID, err)
		}
		if enrolled {
			continue
		}
		if err := p.enrol(ctx, instance, parent.UserID, instance.ParentRoleID, p.now().Unix(), 0, models.EnrolmentStatusActive, visited, depth+1); err != nil {
			return err
		}
		p.metrics.CountEnrolment("cascade")
		p.logger.Info("cascade enrolled parent",
			zap.Int64("instance_id", instance.ID),
			zap.Int64("parent_id", parent.UserID),
			zap.Int64("child_id", userID))
	}
	return nil
}

// Unenrol removes the user's enrolment, then removes each enrolled parent
// who has no other child still enrolled on the instance.
func (p *Propagator) Unenrol(ctx context.Context, instance *models.Instance, userID int64) error {
	visited := map[int64]struct{}{}
	return p.unenrol(ctx, instance, userID, visited, 0)
}

func (p *Propagator) unenrol(ctx context.Context, instance *models.Instance, userID int64, visited map[int64]struct{}, depth int) error {
	if depth > maxCascadeDepth {
		p.logger.Warn("unenrol cascade depth exceeded",
			zap.Int64("instance_id", instance.ID),
			zap.Int64("user_id", userID))
		return nil
	}
	visited[userID] = struct{}{}

	if err := p.enrolments.Delete(ctx, instance.ID, userID); err != nil {
		return fmt.Errorf("unenrol user %d: %w", userID, err)
	}

	parents, err := p.relationships.ParentsOf(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve parents of user %d: %w", userID, err)
	}
	for _, parent := range parents {
		if _, seen := visited[parent.UserID]; seen {
			continue
		}
		enrolled, err := p.enrolments.ExistsActive(ctx, instance.ID, parent.UserID)
		if err != nil {
			return fmt.Errorf("check parent %d enrolment: %w", parent.UserID, err)
		}
		if !enrolled {
			continue
		}

		hasEnrolledChild, err := p.hasOtherEnrolledChild(ctx, instance, parent.UserID)
		if err != nil {
			return err
		}
		if hasEnrolledChild {
			continue
		}

		if err := p.unenrol(ctx, instance, parent.UserID, visited, depth+1); err != nil {
			return err
		}
		p.metrics.CountUnenrolment("cascade")
		p.logger.Info("cascade unenrolled parent",
			zap.Int64("instance_id", instance.ID),
			zap.Int64("parent_id", parent.UserID),
			zap.Int64("child_id", userID))
	}
	return nil
}

func (p *Propagator) hasOtherEnrolledChild(ctx context.Context, instance *models.Instance, parentID int64) (bool, error) {
	children, err := p.relationships.ChildrenOf(ctx, parentID)
	if err != nil {
		return false, fmt.Errorf("resolve children of user %d: %w", parentID, err)
	}
	for _, child := range children {
		enrolled, err := p.enrolments.ExistsActive(ctx, instance.ID, child.UserID)
		if err != nil {
			return false, fmt.Errorf("check child %d enrolment: %w", child.UserID, err)
		}
		if enrolled {
			return true, nil
		}
	}
	return false, nil
}
