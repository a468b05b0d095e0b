package main

import (
	"github.com/launchpad/backend/internal/config"
	"github.com/launchpad/backend/internal/middleware"
	"github.com/launchpad/backend/internal/models"
	"github.com/launchpad/backend/internal/services"
	"github.com/launchpad/backend/internal/utils"
	"github.com/launchpad/backend/pkg/logger"
	"gorm.io/gorm"
)

// appServices holds the wired services shared by the HTTP layer and the
// background workers.
type appServices struct {
	cfg                 *config.Config
	db                  *gorm.DB
	taskQueue           services.TaskQueue
	worker              *services.Worker
	hub                 *services.SSEHub
	sweeper             *services.SweepService
	authService         *services.AuthService
	projectService      *services.ProjectService
	applicationService  *services.ApplicationService
	notificationService *services.NotificationService
	submitLimiter       *middleware.RateLimiter
}

// newAppServices wires the service graph over db without starting anything.
func newAppServices(cfg *config.Config, db *gorm.DB, queue services.TaskQueue, hub *services.SSEHub) *appServices {
	notificationService := services.NewNotificationService(db, hub)
	if syncQueue, ok := queue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(notificationService.Deliver)
	}

	notifier := services.NewQueueNotifier(queue)
	store := services.NewProjectStore(db, cfg.Database.MaxConflictRetries)
	sweeper := services.NewSweepService(db, store, notifier, cfg.Sweep.MaxAttempts)

	return &appServices{
		cfg:                 cfg,
		db:                  db,
		taskQueue:           queue,
		hub:                 hub,
		sweeper:             sweeper,
		authService:         services.NewAuthService(db, &cfg.JWT),
		projectService:      services.NewProjectService(db, store),
		applicationService:  services.NewApplicationService(db, store, notifier, sweeper),
		notificationService: notificationService,
		submitLimiter:       middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
	}
}

// bootstrap opens the database and starts the queue worker and sweep scheduler.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	svc := newAppServices(cfg, models.GetDB(), services.InitTaskQueue(cfg), services.GetSSEHub())

	if cfg.Redis.Enabled && svc.taskQueue.IsAsync() {
		svc.worker = services.NewWorker(&cfg.Redis)
		if svc.worker != nil {
			svc.worker.SetProcessor(svc.notificationService.Deliver)
			if err := svc.worker.Start(); err != nil {
				logger.Error().Err(err).Msg("Failed to start notification worker")
			}
		}
	}

	if err := svc.sweeper.StartScheduler(cfg.Sweep.Cron); err != nil {
		logger.Fatalf("Failed to start sweep scheduler: %v", err)
	}

	return svc
}

// shutdown stops background work in reverse start order.
func (s *appServices) shutdown() {
	s.sweeper.StopScheduler()
	s.submitLimiter.Stop()
	logger.Info().Msg("Schedulers stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
}
