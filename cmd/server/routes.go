package main

import (
	"time"

	"github.com/ZeremItay/autohub/internal/middleware"
	"github.com/ZeremItay/autohub/pkg/logger"
	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinRequestID(), logger.GinLogger(), logger.GinRecovery())
	r.Use(middleware.CORS(svc.cfg.Server.CORSOrigins...))

	// Rate limiters for credential and upload routes
	authLimiter := middleware.NewRateLimiter(5, 10)
	uploadLimiter := middleware.NewRateLimiter(2, 5, middleware.ByMember)
	timeout := middleware.RequestTimeout(time.Duration(svc.cfg.Server.RequestTimeout) * time.Second)

	// Health check and metrics
	r.GET("/health", svc.healthHandler.CheckHealth)
	r.GET("/metrics", svc.healthHandler.Metrics)

	// Uploaded objects
	r.Static("/files", svc.files.Dir())

	api := r.Group("/api")

	// SSE streams validate the token themselves and are not bounded by the request timeout
	api.GET("/live-log/stream", svc.sseHandler.StreamLiveLog)
	api.GET("/events/stream", svc.sseHandler.StreamEvents)

	timed := api.Group("", timeout)

	// Auth routes (public, rate limited)
	auth := timed.Group("/auth", authLimiter.Middleware())
	{
		auth.POST("/signup", svc.authHandler.Signup)
		auth.POST("/login", svc.authHandler.Login)
		auth.POST("/refresh", svc.authHandler.Refresh)
		auth.POST("/logout", svc.authHandler.Logout)
		auth.GET("/config", svc.authHandler.GetAuthConfig)
	}

	// Catalog routes: anonymous callers allowed, caller state attached when signed in
	public := timed.Group("", middleware.OptionalAuth(svc.authService))
	{
		public.GET("/members", svc.memberHandler.List)
		public.GET("/profiles/:id", svc.memberHandler.GetProfile)

		public.GET("/courses", svc.courseHandler.List)
		public.GET("/courses/:id", svc.courseHandler.Get)

		public.GET("/forums", svc.forumHandler.ListForums)
		public.GET("/forums/:id/posts", svc.forumHandler.ListPosts)
		public.GET("/forums/posts/:id", svc.forumHandler.GetPost)

		public.GET("/projects", svc.projectHandler.List)
		public.GET("/projects/:id", svc.projectHandler.GetByID)

		public.GET("/recordings", svc.recordingHandler.List)
		public.GET("/resources", svc.resourceHandler.List)
		public.GET("/resources/:id", svc.resourceHandler.Get)
		public.GET("/tags", svc.tagHandler.List)

		public.GET("/subscription/plans", svc.subscriptionHandler.Plans)
		public.GET("/gamification/leaderboard", svc.gamificationHandler.Leaderboard)
		public.GET("/live-log", svc.liveLogHandler.List)

		// Admin session or provider webhook secret
		public.POST("/subscription/payments/:id/confirm", svc.subscriptionHandler.Confirm)
	}

	// Protected routes
	protected := timed.Group("", middleware.AuthRequired(svc.authService))
	{
		// Auth
		protected.GET("/auth/me", svc.authHandler.Me)
		protected.POST("/auth/change-password", authLimiter.Middleware(), svc.authHandler.ChangePassword)

		// Profiles
		protected.PUT("/profiles/me", svc.memberHandler.UpdateMe)
		protected.POST("/profiles/me/avatar", uploadLimiter.Middleware(), svc.memberHandler.UploadAvatar)

		// Courses
		protected.POST("/courses/:id/enroll", svc.courseHandler.Enroll)
		protected.DELETE("/courses/:id/enroll", svc.courseHandler.Unenroll)
		protected.GET("/courses/:id/lessons/:lessonId", svc.courseHandler.GetLesson)
		protected.POST("/courses/:id/lessons/:lessonId/complete", svc.courseHandler.CompleteLesson)

		// Forums
		protected.POST("/forums/posts", svc.forumHandler.CreatePost)
		protected.PUT("/forums/posts/:id", svc.forumHandler.UpdatePost)
		protected.DELETE("/forums/posts/:id", svc.forumHandler.DeletePost)
		protected.POST("/forums/posts/:id/like", svc.forumHandler.Like)

		// Projects marketplace
		protected.POST("/projects", svc.projectHandler.Create)
		protected.PUT("/projects/:id", svc.projectHandler.Update)
		protected.DELETE("/projects/:id", svc.projectHandler.Delete)
		protected.POST("/projects/:id/offers", svc.projectHandler.CreateOffer)
		protected.POST("/projects/:id/offers/:offerId/accept", svc.projectHandler.AcceptOffer)
		protected.POST("/projects/:id/offers/:offerId/withdraw", svc.projectHandler.WithdrawOffer)

		// Messages
		protected.GET("/messages/conversations", svc.messageHandler.Conversations)
		protected.GET("/messages", svc.messageHandler.Thread)
		protected.POST("/messages", svc.messageHandler.Send)
		protected.GET("/messages/unread-count", svc.messageHandler.UnreadCount)

		// Recordings (premium check needs the caller)
		protected.GET("/recordings/:id", svc.recordingHandler.Get)

		// Resources
		protected.POST("/resources/upload", uploadLimiter.Middleware(), svc.resourceHandler.Upload)
		protected.POST("/resources", svc.resourceHandler.Create)
		protected.PUT("/resources/:id", svc.resourceHandler.Update)
		protected.DELETE("/resources/:id", svc.resourceHandler.Delete)
		protected.POST("/resources/:id/download", svc.resourceHandler.Download)
		protected.POST("/resources/:id/like", svc.resourceHandler.Like)
		protected.POST("/resources/:id/save", svc.resourceHandler.Save)

		// Subscription
		protected.GET("/subscription", svc.subscriptionHandler.Current)
		protected.POST("/subscription/checkout", svc.subscriptionHandler.Checkout)
		protected.POST("/subscription/cancel", svc.subscriptionHandler.Cancel)
		protected.GET("/subscription/payments", svc.subscriptionHandler.Payments)

		// Gamification
		protected.GET("/gamification/me", svc.gamificationHandler.Me)

		// Notifications
		protected.GET("/notifications", svc.notificationHandler.List)
		protected.POST("/notifications/:id/read", svc.notificationHandler.MarkRead)
		protected.POST("/notifications/read-all", svc.notificationHandler.MarkAllRead)
		protected.GET("/notifications/unread-count", svc.notificationHandler.UnreadCount)
		protected.GET("/email-preferences", svc.notificationHandler.GetEmailPreferences)
		protected.PUT("/email-preferences", svc.notificationHandler.UpdateEmailPreferences)
	}

	// Admin only routes
	admin := timed.Group("/admin", middleware.AuthRequired(svc.authService), middleware.AdminRequired(), middleware.AuditLog())
	{
		// Settings
		admin.GET("/settings", svc.systemConfigHandler.GetSettings)
		admin.GET("/settings/:group", svc.systemConfigHandler.GetSettingsGroup)
		admin.PUT("/settings", svc.systemConfigHandler.UpdateSettings)

		// Users
		admin.GET("/users", svc.adminHandler.ListUsers)
		admin.PUT("/users/:id", svc.adminHandler.UpdateUser)
		admin.DELETE("/users/:id", svc.adminHandler.DeleteUser)
		admin.GET("/stats", svc.adminHandler.Stats)

		// System Logs
		admin.GET("/system-logs", svc.systemLogHandler.List)
		admin.GET("/system-logs/modules", svc.systemLogHandler.GetModules)
		admin.GET("/system-logs/retention", svc.systemLogHandler.GetRetentionDays)
		admin.POST("/system-logs/cleanup", svc.systemLogHandler.Cleanup)

		// Courses
		admin.POST("/courses", svc.courseHandler.CreateCourse)
		admin.PUT("/courses/:id", svc.courseHandler.UpdateCourse)
		admin.DELETE("/courses/:id", svc.courseHandler.DeleteCourse)
		admin.POST("/courses/:id/thumbnail", svc.courseHandler.UploadThumbnail)
		admin.PUT("/courses/:id/order", svc.courseHandler.Reorder)
		admin.POST("/courses/:id/sections", svc.courseHandler.CreateSection)
		admin.PUT("/courses/:id/sections/:sectionId", svc.courseHandler.UpdateSection)
		admin.DELETE("/courses/:id/sections/:sectionId", svc.courseHandler.DeleteSection)
		admin.POST("/courses/:id/lessons", svc.courseHandler.CreateLesson)
		admin.PUT("/courses/:id/lessons/:lessonId", svc.courseHandler.UpdateLesson)
		admin.DELETE("/courses/:id/lessons/:lessonId", svc.courseHandler.DeleteLesson)

		// Forums
		admin.POST("/forums", svc.forumHandler.CreateForum)
		admin.PUT("/forums/:id", svc.forumHandler.UpdateForum)
		admin.DELETE("/forums/:id", svc.forumHandler.DeleteForum)
		admin.PUT("/forums/posts/:id", svc.forumHandler.ModeratePost)

		// Recordings
		admin.POST("/recordings", svc.recordingHandler.Create)
		admin.PUT("/recordings/:id", svc.recordingHandler.Update)
		admin.DELETE("/recordings/:id", svc.recordingHandler.Delete)

		// Tags
		admin.POST("/tags", svc.tagHandler.Create)
		admin.PUT("/tags/:id", svc.tagHandler.Update)
		admin.DELETE("/tags/:id", svc.tagHandler.Delete)

		// Gamification
		admin.GET("/points-rules", svc.gamificationHandler.ListRules)
		admin.POST("/points-rules", svc.gamificationHandler.CreateRule)
		admin.PUT("/points-rules/:id", svc.gamificationHandler.UpdateRule)
		admin.POST("/points/grant", svc.gamificationHandler.Grant)
	}
}
