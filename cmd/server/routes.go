package main

import (
	"github.com/gin-gonic/gin"
	"github.com/launchpad/backend/internal/handlers"
	"github.com/launchpad/backend/internal/middleware"
	"github.com/launchpad/backend/internal/models"
	"github.com/launchpad/backend/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.Use(middleware.CORS(svc.cfg.Server.AllowedOrigins))

	cookieName := svc.cfg.JWT.CookieName

	healthHandler := handlers.NewHealthHandler(svc.db, svc.taskQueue, svc.hub)
	r.GET("/health", healthHandler.CheckHealth)

	authHandler := handlers.NewAuthHandler(svc.authService, &svc.cfg.JWT)
	projectHandler := handlers.NewProjectHandler(svc.projectService)
	applicationHandler := handlers.NewApplicationHandler(svc.applicationService)
	notificationHandler := handlers.NewNotificationHandler(svc.notificationService)
	sseHandler := handlers.NewSSEHandler(svc.hub, cookieName)

	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/signup", authHandler.Signup)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
		}

		// SSE validates the token itself so EventSource can pass ?token=
		api.GET("/events/notifications", sseHandler.StreamNotifications)

		protected := api.Group("")
		protected.Use(middleware.AuthRequired(cookieName))
		{
			protected.GET("/auth/me", authHandler.Me)

			// Projects
			protected.GET("/projects", projectHandler.List)
			protected.GET("/projects/:id", projectHandler.GetByID)
			protected.PUT("/projects/:id", projectHandler.Update)
			protected.DELETE("/projects/:id", projectHandler.Delete)

			// Applications and membership
			protected.POST("/projects/:id/applications", svc.submitLimiter.Middleware(), applicationHandler.Submit)
			protected.GET("/projects/:id/applications", applicationHandler.ListForProject)
			protected.POST("/projects/:id/applications/:appId/decision", applicationHandler.Decide)
			protected.POST("/projects/:id/leave", applicationHandler.Leave)
			protected.DELETE("/projects/:id/members/:userId", applicationHandler.RemoveMember)
			protected.GET("/me/applications", applicationHandler.Mine)

			// Notifications
			protected.GET("/notifications", notificationHandler.List)
			protected.POST("/notifications/read-all", notificationHandler.MarkAllRead)
			protected.POST("/notifications/:id/read", notificationHandler.MarkRead)
		}

		founders := protected.Group("")
		founders.Use(middleware.RoleRequired(models.RoleFounder))
		{
			founders.POST("/projects", projectHandler.Create)
		}
	}
}
