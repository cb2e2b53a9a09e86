package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/antriver/moodle-enrol-self-parents/internal/models"
)

// Sync exit codes, surfaced verbatim by cmd/enrol-sync.
const (
	SyncOK       = 0
	SyncError    = 1
	SyncDisabled = 2
)

type syncEnrolmentRepo interface {
	FindNeverAccessed(ctx context.Context, now int64, courseID int64) ([]models.SyncCandidate, error)
	FindStaleAccess(ctx context.Context, now int64, courseID int64) ([]models.SyncCandidate, error)
}

type syncInstanceRepo interface {
	FindByID(ctx context.Context, id int64) (*models.Instance, error)
}

type syncPropagator interface {
	Unenrol(ctx context.Context, instance *models.Instance, userID int64) error
}

type expiryNotifier interface {
	Run(ctx context.Context) error
}

// SyncService unenrols users who have been inactive longer than their
// instance's threshold. Two passes cover the two kinds of inactivity: users
// who never accessed the course at all, and users whose last course access
// has gone stale.
type SyncService struct {
	enrolments syncEnrolmentRepo
	instances  syncInstanceRepo
	propagator syncPropagator
	notifier   expiryNotifier
	enabled    bool
	metrics    *MetricsService
	logger     *zap.Logger
	now        func() time.Time
}

// NewSyncService constructs SyncService. notifier may be nil.
func NewSyncService(enrolments syncEnrolmentRepo, instances syncInstanceRepo, propagator syncPropagator, notifier expiryNotifier, enabled bool, metrics *MetricsService, logger *zap.Logger) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncService{
		enrolments: enrolments,
		instances:  instances,
		propagator: propagator,
		notifier:   notifier,
		enabled:    enabled,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes one sync pass. courseID zero means every course. The return
// value is the process exit code.
func (s *SyncService) Run(ctx context.Context, courseID int64) int {
	if !s.enabled {
		s.logger.Info("inactivity sync disabled")
		return SyncDisabled
	}

	now := s.now().Unix()
	s.logger.Info("inactivity sync started",
		zap.Int64("course_id", courseID),
		zap.Int64("now", now))

	instances := map[int64]*models.Instance{}
	code := SyncOK

	never, err := s.enrolments.FindNeverAccessed(ctx, now, courseID)
	if err != nil {
		s.logger.Error("never-accessed query failed", zap.Error(err))
		return SyncError
	}
	if !s.processCandidates(ctx, never, instances, now, "did not log in") {
		code = SyncError
	}

	stale, err := s.enrolments.FindStaleAccess(ctx, now, courseID)
	if err != nil {
		s.logger.Error("stale-access query failed", zap.Error(err))
		return SyncError
	}
	if !s.processCandidates(ctx, stale, instances, now, "did not access course") {
		code = SyncError
	}

	// Expiry notifications ride along after the unenrolment passes. A
	// notification failure never changes the sync result.
	if s.notifier != nil {
		if err := s.notifier.Run(ctx); err != nil {
			s.logger.Warn("expiry notifications failed", zap.Error(err))
		}
	}

	s.logger.Info("inactivity sync finished", zap.Int("exit_code", code))
	return code
}

// processCandidates unenrols each candidate. Per-row failures are logged and
// skipped so one bad record never stalls the whole pass; any failure flips
// the return to false.
func (s *SyncService) processCandidates(ctx context.Context, candidates []models.SyncCandidate, instances map[int64]*models.Instance, now int64, reason string) bool {
	ok := true
	for _, candidate := range candidates {
		instance, err := s.instance(ctx, instances, candidate.InstanceID)
		if err != nil {
			s.logger.Error("instance load failed",
				zap.Int64("instance_id", candidate.InstanceID),
				zap.Error(err))
			ok = false
			continue
		}

		if err := s.propagator.Unenrol(ctx, instance, candidate.UserID); err != nil {
			s.logger.Error("inactivity unenrolment failed",
				zap.Int64("instance_id", candidate.InstanceID),
				zap.Int64("user_id", candidate.UserID),
				zap.Error(err))
			ok = false
			continue
		}

		s.metrics.CountUnenrolment("inactivity")
		s.logger.Info("unenrolled inactive user",
			zap.Int64("instance_id", candidate.InstanceID),
			zap.Int64("course_id", candidate.CourseID),
			zap.Int64("user_id", candidate.UserID),
			zap.String("reason", reason),
			zap.Int64("threshold_days", candidate.InactivityThreshold/86400))
	}
	return ok
}

func (s *SyncService) instance(ctx context.Context, cache map[int64]*models.Instance, id int64) (*models.Instance, error) {
	if instance, ok := cache[id]; ok {
		return instance, nil
	}
	instance, err := s.instances.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	cache[id] = instance
	return instance, nil
}
