package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wikicontest/wikicontest/internal/apperr"
	"github.com/wikicontest/wikicontest/internal/auth"
	"github.com/wikicontest/wikicontest/internal/config"
	"github.com/wikicontest/wikicontest/internal/service/leaderboard"
	"github.com/wikicontest/wikicontest/pkg/logger"
)

// pendingTokenCookie remembers the OAuth request token between the
// out-of-band login redirect and the verifier post.
const pendingTokenCookie = "oauth_request_token"

// UserHandler handles account, session and OAuth requests.
type UserHandler struct {
	auth        *auth.Service
	leaderboard *leaderboard.Service
	cfg         *config.Config
	log         *logger.Logger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(authSvc *auth.Service, lb *leaderboard.Service, cfg *config.Config, log *logger.Logger) *UserHandler {
	return &UserHandler{auth: authSvc, leaderboard: lb, cfg: cfg, log: log}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type roleRequest struct {
	Role string `json:"role" binding:"required"`
}

// Register creates a local account.
// POST /api/user/register.
func (h *UserHandler) Register(c *gin.Context) {
	var in auth.RegisterInput
	if !bindJSON(c, &in) {
		return
	}

	user, err := h.auth.Register(c.Request.Context(), in)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    user.Profile(),
	})
}

// Login verifies a password and issues the session cookies.
// POST /api/user/login.
func (h *UserHandler) Login(c *gin.Context) {
	var in loginRequest
	if !bindJSON(c, &in) {
		return
	}

	session, err := h.auth.Login(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	h.setSessionCookies(c, session)
	c.JSON(http.StatusOK, gin.H{
		"message":    "Login successful",
		"user":       session.User.Profile(),
		"csrf_token": session.CSRFToken,
		"expires_at": session.ExpiresAt,
	})
}

// Logout revokes the current session and clears the cookies. A live session
// cookie needs the CSRF header; without a session it always answers 200.
// POST /api/user/logout.
func (h *UserHandler) Logout(c *gin.Context) {
	token, _ := c.Cookie(h.cfg.Auth.AccessCookieName)
	if err := h.auth.Logout(c.Request.Context(), token, c.GetHeader(CSRFHeader)); err != nil {
		if apperr.Is(err, apperr.KindUnauthorized) {
			fail(c, h.log, err)
			return
		}
		h.log.Warn().Err(err).Msg("Failed to revoke session on logout")
	}

	h.clearSessionCookies(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

// Me returns the current user's profile.
// GET /api/user/me.
func (h *UserHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": currentUser(c).Profile()})
}

// UpdateMe changes the current user's email or password.
// PUT /api/user/me.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	var in auth.ProfileInput
	if !bindJSON(c, &in) {
		return
	}

	user, err := h.auth.UpdateProfile(c.Request.Context(), currentUser(c), in)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user.Profile()})
}

// ChangeRole sets another user's role.
// PUT /api/user/:id/role.
func (h *UserHandler) ChangeRole(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var in roleRequest
	if !bindJSON(c, &in) {
		return
	}

	user, err := h.auth.ChangeRole(c.Request.Context(), currentUser(c), id, in.Role)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Dashboard returns the current user's dashboard.
// GET /api/user/dashboard.
func (h *UserHandler) Dashboard(c *gin.Context) {
	dashboard, err := h.leaderboard.UserDashboard(c.Request.Context(), currentUser(c))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

// OAuthLogin starts the Wikimedia handshake and redirects to the provider.
// GET /api/user/oauth/login.
func (h *UserHandler) OAuthLogin(c *gin.Context) {
	start, err := h.auth.OAuthLogin(c.Request.Context())
	if err != nil {
		fail(c, h.log, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(pendingTokenCookie, start.RequestToken, int(h.cfg.OAuth.RequestTokenTTL.Seconds()),
		"/", "", h.cfg.Auth.SecureCookies, true)
	c.Redirect(http.StatusFound, start.AuthorizeURL)
}

// OAuthCallback completes the handshake. The direct strategy redirects to
// the frontend; the out-of-band strategy answers with JSON.
// GET|POST /api/user/oauth/callback, GET /oauth/callback.
func (h *UserHandler) OAuthCallback(c *gin.Context) {
	pending, _ := c.Cookie(pendingTokenCookie)

	session, err := h.auth.OAuthCallbackRequest(c.Request.Context(), c.Request, pending)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	c.SetCookie(pendingTokenCookie, "", -1, "/", "", h.cfg.Auth.SecureCookies, true)
	h.setSessionCookies(c, session)

	if target := h.auth.Strategy().LoginRedirect(); target != "" {
		c.Redirect(http.StatusFound, target)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "Login successful",
		"user":       session.User.Profile(),
		"csrf_token": session.CSRFToken,
		"expires_at": session.ExpiresAt,
	})
}

func (h *UserHandler) setSessionCookies(c *gin.Context, session *auth.Session) {
	maxAge := int(h.cfg.Auth.SessionTTL.Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.Auth.AccessCookieName, session.Token, maxAge, "/", "", h.cfg.Auth.SecureCookies, true)
	c.SetCookie(h.cfg.Auth.CSRFCookieName, session.CSRFToken, maxAge, "/", "", h.cfg.Auth.SecureCookies, false)
}

func (h *UserHandler) clearSessionCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.Auth.AccessCookieName, "", -1, "/", "", h.cfg.Auth.SecureCookies, true)
	c.SetCookie(h.cfg.Auth.CSRFCookieName, "", -1, "/", "", h.cfg.Auth.SecureCookies, false)
}
