package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/antriver/moodle-enrol-self-parents/internal/repository"
	"github.com/antriver/moodle-enrol-self-parents/internal/service"
	"github.com/antriver/moodle-enrol-self-parents/pkg/config"
	"github.com/antriver/moodle-enrol-self-parents/pkg/database"
	"github.com/antriver/moodle-enrol-self-parents/pkg/logger"
	"github.com/antriver/moodle-enrol-self-parents/pkg/mail"
)

// One-shot inactivity sync, intended for cron. Exit codes: 0 success,
// 1 failure, 2 sync disabled.
func main() {
	courseID := flag.Int64("course", 0, "limit the sync to one course (0 = all courses)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Errorw("failed to connect to postgres", "error", err)
		os.Exit(service.SyncError)
	}
	defer db.Close() //nolint:errcheck

	enrolmentRepo := repository.NewEnrolmentRepository(db)
	instanceRepo := repository.NewInstanceRepository(db)
	relationshipRepo := repository.NewRelationshipRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	userRepo := repository.NewUserRepository(db)

	var mailer mail.Mailer
	switch cfg.Mail.Provider {
	case "sendgrid":
		mailer = mail.NewSendGridMailer(cfg.Mail.SendGridAPIKey)
	default:
		mailer = mail.NewConsoleMailer(logr)
	}

	metrics := service.NewMetricsService()
	relationships := service.NewRelationshipService(relationshipRepo, nil, logr)
	propagator := service.NewPropagator(enrolmentRepo, relationships, metrics, logr)
	expiry := service.NewExpiryService(enrolmentRepo, courseRepo, userRepo, relationships, mailer, cfg.Enrol.SupportEmail, logr)
	sync := service.NewSyncService(enrolmentRepo, instanceRepo, propagator, expiry, cfg.Sync.Enabled, metrics, logr)

	code := sync.Run(context.Background(), *courseID)
	logr.Sync() //nolint:errcheck
	os.Exit(code)
}
