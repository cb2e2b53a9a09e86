package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/antriver/moodle-enrol-self-parents/api/swagger"
	"github.com/antriver/moodle-enrol-self-parents/internal/handler"
	"github.com/antriver/moodle-enrol-self-parents/internal/middleware"
	"github.com/antriver/moodle-enrol-self-parents/internal/repository"
	"github.com/antriver/moodle-enrol-self-parents/internal/service"
	"github.com/antriver/moodle-enrol-self-parents/pkg/cache"
	"github.com/antriver/moodle-enrol-self-parents/pkg/config"
	"github.com/antriver/moodle-enrol-self-parents/pkg/database"
	"github.com/antriver/moodle-enrol-self-parents/pkg/logger"
	"github.com/antriver/moodle-enrol-self-parents/pkg/mail"
	corsmiddleware "github.com/antriver/moodle-enrol-self-parents/pkg/middleware/cors"
	reqidmiddleware "github.com/antriver/moodle-enrol-self-parents/pkg/middleware/requestid"
	"github.com/antriver/moodle-enrol-self-parents/pkg/storage"
	"github.com/antriver/moodle-enrol-self-parents/pkg/token"
)

// @title Self and Parents Enrolment API
// @version 0.1.0
// @description Course enrolment for students and their parents
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	instanceRepo := repository.NewInstanceRepository(db)
	enrolmentRepo := repository.NewEnrolmentRepository(db)
	relationshipRepo := repository.NewRelationshipRepository(db)
	answerRepo := repository.NewAnswerRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	cohortRepo := repository.NewCohortRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	var transport mail.Mailer
	switch cfg.Mail.Provider {
	case "sendgrid":
		transport = mail.NewSendGridMailer(cfg.Mail.SendGridAPIKey)
	default:
		transport = mail.NewConsoleMailer(logr)
	}
	mailer := mail.NewQueuedMailer(transport, cfg.Mail.QueueWorkers, logr)
	mailer.Start(context.Background())
	defer mailer.Stop()

	var archive *storage.Archive
	if cfg.Roster.ArchiveDir != "" {
		archive, err = storage.NewArchive(cfg.Roster.ArchiveDir)
		if err != nil {
			logr.Sugar().Warnw("roster archive unavailable", "dir", cfg.Roster.ArchiveDir, "error", err)
			archive = nil
		}
	}

	relationships := service.NewRelationshipService(relationshipRepo, cacheRepo, logr)
	eligibility := service.NewEligibilityService(enrolmentRepo, cfg.Enrol.GuestUserID, metrics, logr)
	propagator := service.NewPropagator(enrolmentRepo, relationships, metrics, logr)
	welcome := service.NewWelcomeService(courseRepo, userRepo, mailer, cfg.Enrol.SupportEmail, cfg.Enrol.SiteURL, logr)
	confirm := token.NewConfirmSigner(cfg.Session.ConfirmSecret, cfg.Session.ConfirmTTL)
	enrolments := service.NewEnrolmentService(
		enrolmentRepo, propagator, eligibility, relationships,
		groupRepo, cohortRepo, answerRepo, welcome,
		confirm, cfg.Enrol.ShowKeyHint, validate, metrics, logr,
	)
	instances := service.NewInstanceService(instanceRepo, eligibility, cfg.Enrol, validate, logr)
	exports := service.NewExportService(enrolmentRepo, instanceRepo, cacheRepo, archive, cfg.Roster.CacheTTL, logr)
	expiry := service.NewExpiryService(enrolmentRepo, courseRepo, userRepo, relationships, mailer, cfg.Enrol.SupportEmail, logr)
	sync := service.NewSyncService(enrolmentRepo, instanceRepo, propagator, expiry, cfg.Sync.Enabled, metrics, logr)

	instanceHandler := handler.NewInstanceHandler(instances)
	enrolmentHandler := handler.NewEnrolmentHandler(instances, enrolments, exports)
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.Session(cfg.Session.TokenSecret))
	{
		api.GET("/instances/defaults", instanceHandler.Defaults)
		api.POST("/instances", instanceHandler.Create)
		api.GET("/instances/:id", instanceHandler.Get)
		api.GET("/instances/:id/eligibility", enrolmentHandler.Eligibility)
		api.POST("/instances/:id/enrolments", enrolmentHandler.Submit)
		api.GET("/instances/:id/child-actions", enrolmentHandler.ChildActions)
		api.GET("/instances/:id/answers", enrolmentHandler.Answers)
		api.POST("/instances/:id/unenrol-child", enrolmentHandler.UnenrolChild)
		api.GET("/instances/:id/roster", enrolmentHandler.Roster)
		api.GET("/courses/:courseId/enrol-icons", instanceHandler.InfoIcons)
	}

	scheduler := cron.New()
	if cfg.Sync.Enabled && cfg.Sync.Cron != "" {
		if _, err := scheduler.AddFunc(cfg.Sync.Cron, func() {
			sync.Run(context.Background(), 0)
		}); err != nil {
			logr.Sugar().Fatalw("invalid sync schedule", "cron", cfg.Sync.Cron, "error", err)
		}
		logr.Sugar().Infow("inactivity sync scheduled", "cron", cfg.Sync.Cron)
	}
	if archive != nil && cfg.Roster.ArchiveTTL > 0 {
		if _, err := scheduler.AddFunc("@daily", func() {
			if removed, err := archive.Prune(cfg.Roster.ArchiveTTL); err != nil {
				logr.Sugar().Warnw("roster archive prune failed", "error", err)
			} else if removed > 0 {
				logr.Sugar().Infow("roster archive pruned", "removed", removed)
			}
		}); err != nil {
			logr.Sugar().Fatalw("invalid archive prune schedule", "error", err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
