package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/antriver/moodle-enrol-self-parents/internal/models"
	"github.com/antriver/moodle-enrol-self-parents/pkg/mail"
)

type welcomeCourseRepo interface {
	FindByID(ctx context.Context, id int64) (*models.Course, error)
	FindContact(ctx context.Context, courseID int64) (*models.User, error)
}

type welcomeUserRepo interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

// WelcomeService renders and sends the post-enrolment welcome email. The
// message template supports the {$a->coursename} and {$a->profileurl}
// placeholders; an empty template falls back to the default text.
type WelcomeService struct {
	courses      welcomeCourseRepo
	users        welcomeUserRepo
	mailer       mail.Mailer
	supportEmail string
	siteURL      string
	logger       *zap.Logger
}

// NewWelcomeService constructs WelcomeService.
func NewWelcomeService(courses welcomeCourseRepo, users welcomeUserRepo, mailer mail.Mailer, supportEmail, siteURL string, logger *zap.Logger) *WelcomeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WelcomeService{
		courses:      courses,
		users:        users,
		mailer:       mailer,
		supportEmail: supportEmail,
		siteURL:      siteURL,
		logger:       logger,
	}
}

// Send delivers the welcome email for the instance to the given user.
func (s *WelcomeService) Send(ctx context.Context, instance *models.Instance, userID int64) error {
	course, err := s.courses.FindByID(ctx, instance.CourseID)
	if err != nil {
		return fmt.Errorf("load course %d: %w", instance.CourseID, err)
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user %d: %w", userID, err)
	}

	body := instance.WelcomeMessage
	if strings.TrimSpace(body) == "" {
		body = fmt.Sprintf(
			"Welcome to %s!\n\nIf you have not done so already, you should edit your profile page so that we can learn more about you:\n\n%s",
			course.FullName, s.profileURL(userID, course.ID))
	} else {
		replacer := strings.NewReplacer(
			"{$a->coursename}", course.FullName,
			"{$a->profileurl}", s.profileURL(userID, course.ID),
		)
		body = replacer.Replace(body)
	}

	msg := mail.Message{
		ToName:    strings.TrimSpace(user.FirstName + " " + user.LastName),
		ToEmail:   user.Email,
		FromName:  course.ShortName,
		FromEmail: s.supportEmail,
		Subject:   fmt.Sprintf("Welcome to %s", course.FullName),
	}

	// A template containing markup goes out as HTML with a stripped-down
	// text alternative; plain templates go out as text only.
	if strings.Contains(body, "<") {
		msg.HTMLBody = body
		msg.TextBody = stripTags(body)
	} else {
		msg.TextBody = body
	}

	contact, err := s.courses.FindContact(ctx, instance.CourseID)
	switch {
	case err == nil:
		msg.FromName = strings.TrimSpace(contact.FirstName + " " + contact.LastName)
		msg.FromEmail = contact.Email
	case isNoRows(err):
		// Keep the support sender.
	default:
		s.logger.Warn("course contact lookup failed",
			zap.Int64("course_id", instance.CourseID),
			zap.Error(err))
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send welcome to user %d: %w", userID, err)
	}
	s.logger.Info("welcome email sent",
		zap.Int64("instance_id", instance.ID),
		zap.Int64("user_id", userID),
		zap.String("course", course.ShortName))
	return nil
}

func (s *WelcomeService) profileURL(userID, courseID int64) string {
	return fmt.Sprintf("%s/user/view.php?id=%d&course=%d", strings.TrimRight(s.siteURL, "/"), userID, courseID)
}

// stripTags produces a crude text alternative for an HTML body. It is not a
// sanitiser; the output is only ever embedded in the text part of an email.
func stripTags(html string) string {
	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
