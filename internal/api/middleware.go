package api

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wikicontest/wikicontest/internal/auth"
	"github.com/wikicontest/wikicontest/internal/config"
	prommetrics "github.com/wikicontest/wikicontest/internal/metrics"
	"github.com/wikicontest/wikicontest/internal/models"
	"github.com/wikicontest/wikicontest/pkg/logger"
)

// CSRFHeader carries the double-submit CSRF value on state-changing requests.
const CSRFHeader = "X-CSRF-TOKEN"

const (
	ctxUser   = "session_user"
	ctxClaims = "session_claims"
)

// recoveryMiddleware handles panics
func recoveryMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Interface("error", err).Str("path", c.Request.URL.Path).Msg("Panic recovered")
				errorResponse(c, http.StatusInternalServerError, "Internal server error")
			}
		}()
		c.Next()
	}
}

// loggingMiddleware logs requests
func loggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		event := log.Info()
		if statusCode >= 400 {
			event = log.Warn()
		}
		if statusCode >= 500 {
			event = log.Error()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("Request completed")
	}
}

// metricsMiddleware records request counts and latencies by route template.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		prommetrics.RecordHTTPRequest(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start).Seconds(),
		)
	}
}

// corsMiddleware allows the configured frontend to call the API with cookies.
func corsMiddleware(frontendURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if frontendURL != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", frontendURL)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+CSRFHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requireSession resolves the session cookie into the current user.
func requireSession(authSvc *auth.Service, cfg *config.AuthConfig, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(cfg.AccessCookieName)

		user, claims, err := authSvc.CheckSession(c.Request.Context(), token)
		if err != nil {
			fail(c, log, err)
			return
		}

		c.Set(ctxUser, user)
		c.Set(ctxClaims, claims)
		c.Next()
	}
}

// requireCSRF checks the CSRF header against the session's CSRF claim on
// state-changing methods. It must run after requireSession.
func requireCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			c.Next()
			return
		}

		claims := sessionClaims(c)
		header := c.GetHeader(CSRFHeader)
		if claims == nil || header == "" ||
			subtle.ConstantTimeCompare([]byte(header), []byte(claims.CSRF)) != 1 {
			errorResponse(c, http.StatusUnauthorized, "missing or invalid CSRF token")
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(ctxUser); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

func sessionClaims(c *gin.Context) *auth.SessionClaims {
	if v, ok := c.Get(ctxClaims); ok {
		if claims, ok := v.(*auth.SessionClaims); ok {
			return claims
		}
	}
	return nil
}
