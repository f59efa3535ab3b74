package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"compforge/config"
	"compforge/database"
	"compforge/handlers"
	"compforge/middleware"
	"compforge/services"
)

func main() {
	cfg := config.Load()

	// Database and cache
	database.Connect(cfg)
	database.Migrate()
	database.ConnectRedis(cfg)

	// Services
	cache := services.NewCache(database.RDB)
	dispatcher := services.NewDispatcher(cfg)
	generator := services.NewGenerator(dispatcher, cfg.DefaultModel)
	sessionService := services.NewSessionService(database.DB, cache, generator)

	// Handlers
	authHandler := handlers.NewAuthHandler(cfg, cache)
	sessionsHandler := handlers.NewSessionsHandler(sessionService)
	messagesHandler := handlers.NewMessagesHandler(sessionService)
	componentsHandler := handlers.NewComponentsHandler(sessionService, generator)

	// Router
	r := gin.Default()
	r.Use(middleware.CORS(cfg))
	r.Use(middleware.SecurityHeaders())

	apiLimiter := middleware.NewRateLimiter(database.RDB, "api", 100, 1*time.Minute)
	authLimiter := middleware.NewRateLimiter(database.RDB, "auth", 10, 1*time.Minute)

	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Auth routes
	auth := r.Group("/api/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
	}

	// Protected routes
	protected := r.Group("/api")
	protected.Use(apiLimiter.Middleware())
	protected.Use(middleware.AuthRequired(cfg.JWTSecret))
	{
		// User
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/auth/me", authHandler.Me)
		protected.PUT("/auth/profile", authHandler.UpdateProfile)
		protected.PUT("/auth/password", authHandler.ChangePassword)

		// Sessions
		protected.GET("/sessions", sessionsHandler.List)
		protected.POST("/sessions", sessionsHandler.Create)
		protected.GET("/sessions/stats", sessionsHandler.Stats)
		protected.GET("/sessions/:id", sessionsHandler.Get)
		protected.PUT("/sessions/:id", sessionsHandler.Update)
		protected.DELETE("/sessions/:id", sessionsHandler.Delete)
		protected.POST("/sessions/:id/archive", sessionsHandler.Archive)
		protected.POST("/sessions/:id/duplicate", sessionsHandler.Duplicate)

		// Messages
		protected.GET("/sessions/:id/messages", messagesHandler.List)
		protected.POST("/sessions/:id/messages", messagesHandler.Send)
		protected.PUT("/sessions/:id/messages/:messageId", messagesHandler.Edit)
		protected.DELETE("/sessions/:id/messages/:messageId", messagesHandler.Delete)
		protected.POST("/sessions/:id/messages/:messageId/regenerate", messagesHandler.Regenerate)

		// Component library
		protected.POST("/components", componentsHandler.Save)
		protected.GET("/components", componentsHandler.List)
		protected.GET("/components/:id", componentsHandler.Get)
		protected.DELETE("/components/:id", componentsHandler.Delete)

		// AI
		protected.GET("/ai/models", componentsHandler.Models)
	}

	fmt.Printf("Server starting on :%s\n", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
