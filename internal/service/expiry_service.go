package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/antriver/moodle-enrol-self-parents/internal/models"
	"github.com/antriver/moodle-enrol-self-parents/pkg/mail"
)

type expiryEnrolmentRepo interface {
	FindExpiring(ctx context.Context, now int64) ([]models.ExpiryCandidate, error)
}

// ExpiryService notifies users whose enrolment is about to lapse. With the
// instance's notify-all flag set, the user's parents are notified too.
type ExpiryService struct {
	enrolments    expiryEnrolmentRepo
	courses       welcomeCourseRepo
	users         welcomeUserRepo
	relationships relationshipResolver
	mailer        mail.Mailer
	supportEmail  string
	logger        *zap.Logger
	now           func() time.Time
}

// NewExpiryService constructs ExpiryService.
func NewExpiryService(enrolments expiryEnrolmentRepo, courses welcomeCourseRepo, users welcomeUserRepo, relationships relationshipResolver, mailer mail.Mailer, supportEmail string, logger *zap.Logger) *ExpiryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpiryService{
		enrolments:    enrolments,
		courses:       courses,
		users:         users,
		relationships: relationships,
		mailer:        mailer,
		supportEmail:  supportEmail,
		logger:        logger,
		now:           time.Now,
	}
}

// Run sends one notification per enrolment that crossed into its expiry
// window. Per-candidate failures are logged and skipped.
func (s *ExpiryService) Run(ctx context.Context) error {
	candidates, err := s.enrolments.FindExpiring(ctx, s.now().Unix())
	if err != nil {
		return fmt.Errorf("scan expiring enrolments: %w", err)
	}

	courses := map[int64]*models.Course{}
	for _, candidate := range candidates {
		course, ok := courses[candidate.CourseID]
		if !ok {
			course, err = s.courses.FindByID(ctx, candidate.CourseID)
			if err != nil {
				s.logger.Error("course load failed",
					zap.Int64("course_id", candidate.CourseID),
					zap.Error(err))
				continue
			}
			courses[candidate.CourseID] = course
		}

		recipients, err := s.recipients(ctx, candidate)
		if err != nil {
			s.logger.Error("recipient resolution failed",
				zap.Int64("user_id", candidate.UserID),
				zap.Error(err))
			continue
		}

		expiresOn := time.Unix(candidate.TimeEnd, 0).UTC().Format("2 January 2006")
		for _, user := range recipients {
			msg := mail.Message{
				ToName:    user.FirstName + " " + user.LastName,
				ToEmail:   user.Email,
				FromName:  course.ShortName,
				FromEmail: s.supportEmail,
				Subject:   fmt.Sprintf("Enrolment in %s expires soon", course.FullName),
				TextBody: fmt.Sprintf("The enrolment in %s for %s ends on %s.",
					course.FullName, recipients[0].FirstName+" "+recipients[0].LastName, expiresOn),
			}
			if err := s.mailer.Send(ctx, msg); err != nil {
				s.logger.Warn("expiry notification failed",
					zap.Int64("user_id", user.ID),
					zap.Error(err))
				continue
			}
		}
		s.logger.Info("expiry notification sent",
			zap.Int64("instance_id", candidate.InstanceID),
			zap.Int64("user_id", candidate.UserID),
			zap.String("expires_on", expiresOn))
	}
	return nil
}

func (s *ExpiryService) recipients(ctx context.Context, candidate models.ExpiryCandidate) ([]*models.User, error) {
	user, err := s.users.FindByID(ctx, candidate.UserID)
	if err != nil {
		return nil, err
	}
	recipients := []*models.User{user}

	if candidate.NotifyAll {
		parents, err := s.relationships.ParentsOf(ctx, candidate.UserID)
		if err != nil {
			return nil, err
		}
		for _, parent := range parents {
			parentUser, err := s.users.FindByID(ctx, parent.UserID)
			if err != nil {
				s.logger.Warn("parent load failed",
					zap.Int64("parent_id", parent.UserID),
					zap.Error(err))
				continue
			}
			recipients = append(recipients, parentUser)
		}
	}
	return recipients, nil
}
