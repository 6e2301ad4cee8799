// Package api wires the HTTP surface: router, middleware and handlers.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wikicontest/wikicontest/internal/auth"
	"github.com/wikicontest/wikicontest/internal/config"
	"github.com/wikicontest/wikicontest/internal/service/contest"
	"github.com/wikicontest/wikicontest/internal/service/leaderboard"
	"github.com/wikicontest/wikicontest/internal/service/submission"
	"github.com/wikicontest/wikicontest/pkg/logger"
)

// DatabaseChecker reports database health.
type DatabaseChecker interface {
	Health() error
}

// CacheChecker reports cache health.
type CacheChecker interface {
	Health(ctx context.Context) error
}

// Services groups everything the handlers depend on.
type Services struct {
	Auth        *auth.Service
	Contests    *contest.Service
	Submissions *submission.Service
	Leaderboard *leaderboard.Service
	Database    DatabaseChecker
	Cache       CacheChecker
}

// NewRouter creates and configures the Gin router.
func NewRouter(services *Services, cfg *config.Config, log *logger.Logger) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(recoveryMiddleware(log))
	router.Use(loggingMiddleware(log))
	router.Use(metricsMiddleware())
	router.Use(corsMiddleware(cfg.Server.FrontendURL))

	users := NewUserHandler(services.Auth, services.Leaderboard, cfg, log)
	contests := NewContestHandler(services.Contests, services.Submissions, services.Leaderboard, log)
	submissions := NewSubmissionHandler(services.Submissions, log)

	session := requireSession(services.Auth, &cfg.Auth, log)
	csrf := requireCSRF()

	router.GET("/health", healthCheck(services))

	userAPI := router.Group("/api/user")
	{
		userAPI.POST("/register", users.Register)
		userAPI.POST("/login", users.Login)
		userAPI.POST("/logout", users.Logout)
		userAPI.GET("/oauth/login", users.OAuthLogin)
		userAPI.GET("/oauth/callback", users.OAuthCallback)
		userAPI.POST("/oauth/callback", users.OAuthCallback)

		userAPI.GET("/me", session, users.Me)
		userAPI.PUT("/me", session, csrf, users.UpdateMe)
		userAPI.GET("/dashboard", session, users.Dashboard)
		userAPI.PUT("/:id/role", session, csrf, users.ChangeRole)
	}

	if services.Auth.Strategy().ServesAlias() {
		router.GET("/oauth/callback", users.OAuthCallback)
	}

	contestAPI := router.Group("/api/contest")
	{
		contestAPI.GET("/", contests.List)
		contestAPI.POST("/", session, csrf, contests.Create)
		contestAPI.GET("/:id", contests.Get)
		contestAPI.PUT("/:id", session, csrf, contests.Update)
		contestAPI.DELETE("/:id", session, csrf, contests.Delete)
		contestAPI.GET("/:id/leaderboard", contests.Leaderboard)
		contestAPI.POST("/:id/submit", session, csrf, contests.Submit)
		contestAPI.GET("/:id/submissions", session, contests.Submissions)
		contestAPI.POST("/:id/refresh-metadata", session, csrf, contests.RefreshMetadata)
	}

	submissionAPI := router.Group("/api/submission", session)
	{
		submissionAPI.GET("/pending", submissions.Pending)
		submissionAPI.GET("/stats", submissions.Stats)
		submissionAPI.GET("/:id", submissions.Get)
		submissionAPI.PUT("/:id", csrf, submissions.Review)
	}

	return router
}

// healthCheck reports database and cache health.
func healthCheck(services *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{"database": "ok", "cache": "ok"}
		status := "healthy"
		code := http.StatusOK

		if services.Database != nil {
			if err := services.Database.Health(); err != nil {
				checks["database"] = err.Error()
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		if services.Cache != nil {
			if err := services.Cache.Health(ctx); err != nil {
				checks["cache"] = err.Error()
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}

		c.JSON(code, gin.H{
			"status":    status,
			"checks":    checks,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"service":   "wikicontest",
		})
	}
}
