package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/antriver/moodle-enrol-self-parents/internal/models"
)

const relationshipCacheTTL = time.Minute

type relationshipRepository interface {
	ParentsOf(ctx context.Context, userID int64) ([]models.RelatedUser, error)
	ChildrenOf(ctx context.Context, userID int64) ([]models.RelatedUser, error)
}

type cacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// RelationshipService resolves parent/child links, memoising lookups for a
// short window. Cache failures degrade to direct reads.
type RelationshipService struct {
	repo   relationshipRepository
	cache  cacheStore
	logger *zap.Logger
}

// NewRelationshipService constructs RelationshipService. cache may be nil.
func NewRelationshipService(repo relationshipRepository, cache cacheStore, logger *zap.Logger) *RelationshipService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelationshipService{repo: repo, cache: cache, logger: logger}
}

// ParentsOf returns the user's parents.
func (s *RelationshipService) ParentsOf(ctx context.Context, userID int64) ([]models.RelatedUser, error) {
	return s.lookup(ctx, fmt.Sprintf("rel:parents:%d", userID), userID, s.repo.ParentsOf)
}

// ChildrenOf returns the user's children.
func (s *RelationshipService) ChildrenOf(ctx context.Context, userID int64) ([]models.RelatedUser, error) {
	return s.lookup(ctx, fmt.Sprintf("rel:children:%d", userID), userID, s.repo.ChildrenOf)
}

func (s *RelationshipService) lookup(ctx context.Context, key string, userID int64, query func(context.Context, int64) ([]models.RelatedUser, error)) ([]models.RelatedUser, error) {
	if s.cache != nil {
		var cached []models.RelatedUser
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	users, err := query(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, users, relationshipCacheTTL); err != nil {
			s.logger.Debug("relationship cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return users, nil
}
