package main

import (
	"context"
	"os"

	"github.com/ZeremItay/autohub/internal/config"
	"github.com/ZeremItay/autohub/internal/handlers"
	"github.com/ZeremItay/autohub/internal/models"
	"github.com/ZeremItay/autohub/internal/services"
	"github.com/ZeremItay/autohub/internal/storage"
	"github.com/ZeremItay/autohub/internal/utils"
	"github.com/ZeremItay/autohub/pkg/logger"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	cfg       *config.Config
	taskQueue services.TaskQueue
	worker    *services.Worker
	scheduler *services.Scheduler
	hub       *services.SSEHub
	files     *storage.LocalStorage

	authService *services.AuthService

	authHandler         *handlers.AuthHandler
	memberHandler       *handlers.MemberHandler
	courseHandler       *handlers.CourseHandler
	forumHandler        *handlers.ForumHandler
	projectHandler      *handlers.ProjectHandler
	messageHandler      *handlers.MessageHandler
	recordingHandler    *handlers.RecordingHandler
	resourceHandler     *handlers.ResourceHandler
	tagHandler          *handlers.TagHandler
	subscriptionHandler *handlers.SubscriptionHandler
	gamificationHandler *handlers.GamificationHandler
	notificationHandler *handlers.NotificationHandler
	liveLogHandler      *handlers.LiveLogHandler
	sseHandler          *handlers.SSEHandler
	adminHandler        *handlers.AdminHandler
	systemConfigHandler *handlers.SystemConfigHandler
	systemLogHandler    *handlers.SystemLogHandler
	healthHandler       *handlers.HealthHandler
}

// bootstrap initializes all application dependencies: database, storage, queue, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	// Initialize database
	if err := models.InitDB(&cfg.Database, cfg.Log.Level); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto migrate database
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	// Seed roles, forums, points rules and settings
	if err := models.SeedDefaultData(); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}

	db := models.GetDB()

	// Initialize system logger
	services.InitSystemLogger(db)

	files, err := storage.NewLocalStorage(cfg.Storage.Dir, cfg.Storage.PublicURL)
	if err != nil {
		logger.Fatalf("Failed to prepare storage directory: %v", err)
	}
	uploader := services.NewFileUploader(files, cfg.Storage.MaxUploadSize)

	// Initialize task queue (uses Redis if enabled, otherwise sync mode)
	taskQueue := services.NewTaskQueue(cfg)
	hub := services.GetSSEHub()

	configService := services.NewSystemConfigService(db)
	prefService := services.NewEmailPreferenceService(db)
	mailService := services.NewMailService(services.NewMailer(&cfg.Mail, configService), prefService)
	pointsService := services.NewGamificationService(db, configService, taskQueue)
	notificationService := services.NewNotificationService(db, hub, taskQueue, configService)
	activityService := services.NewActivityService(db, hub)
	subscriptionService := services.NewSubscriptionService(db, taskQueue)
	systemLogService := services.NewSystemLogService(db, configService)
	authService := services.NewAuthService(db, &cfg.JWT, services.NewLDAPService(&cfg.LDAP), configService, taskQueue)

	jobs := services.NewJobs(mailService, pointsService, notificationService, activityService)
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(jobs.Process)
	}

	// Start async worker if Redis is enabled
	var worker *services.Worker
	if taskQueue.IsAsync() {
		worker = services.NewWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(jobs.Process)
			if err := worker.Start(); err != nil {
				logger.Error().Err(err).Msg("Failed to start task worker")
			}
		}
	}

	scheduler := services.NewScheduler(db, subscriptionService, systemLogService)
	if err := scheduler.Start(); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}

	// Create default admin user
	if email := os.Getenv("ADMIN_EMAIL"); email != "" {
		if err := authService.CreateAdminIfNotExists(context.Background(), email, os.Getenv("ADMIN_PASSWORD")); err != nil {
			logger.Warn().Err(err).Msg("Failed to create admin user")
		}
	}

	return &appServices{
		cfg:         cfg,
		taskQueue:   taskQueue,
		worker:      worker,
		scheduler:   scheduler,
		hub:         hub,
		files:       files,
		authService: authService,

		authHandler:         handlers.NewAuthHandler(authService, configService),
		memberHandler:       handlers.NewMemberHandler(services.NewMemberService(db, uploader)),
		courseHandler:       handlers.NewCourseHandler(services.NewCourseService(db, taskQueue, uploader)),
		forumHandler:        handlers.NewForumHandler(services.NewForumService(db, taskQueue, hub)),
		projectHandler:      handlers.NewProjectHandler(services.NewProjectService(db, taskQueue, hub)),
		messageHandler:      handlers.NewMessageHandler(services.NewMessageService(db, taskQueue, hub)),
		recordingHandler:    handlers.NewRecordingHandler(services.NewRecordingService(db, uploader)),
		resourceHandler:     handlers.NewResourceHandler(services.NewResourceService(db, taskQueue, hub, uploader, pointsService)),
		tagHandler:          handlers.NewTagHandler(services.NewTagService(db)),
		subscriptionHandler: handlers.NewSubscriptionHandler(subscriptionService, cfg.Payments.WebhookSecret),
		gamificationHandler: handlers.NewGamificationHandler(pointsService),
		notificationHandler: handlers.NewNotificationHandler(notificationService, prefService),
		liveLogHandler:      handlers.NewLiveLogHandler(activityService),
		sseHandler:          handlers.NewSSEHandler(hub, authService),
		adminHandler:        handlers.NewAdminHandler(services.NewAdminService(db, pointsService)),
		systemConfigHandler: handlers.NewSystemConfigHandler(configService),
		systemLogHandler:    handlers.NewSystemLogHandler(systemLogService),
		healthHandler:       handlers.NewHealthHandler(db, taskQueue, hub),
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.scheduler.Stop()
	logger.Info().Msg("Scheduler stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		if err := s.taskQueue.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close task queue")
		}
	}
}
