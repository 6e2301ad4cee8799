package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/wikicontest/wikicontest/internal/apperr"
	"github.com/wikicontest/wikicontest/internal/cache"
	"github.com/wikicontest/wikicontest/internal/config"
	prommetrics "github.com/wikicontest/wikicontest/internal/metrics"
	"github.com/wikicontest/wikicontest/internal/models"
	"github.com/wikicontest/wikicontest/internal/repository"
	"github.com/wikicontest/wikicontest/pkg/logger"
)

const (
	requestSecretPrefix = "oauth:request:"
	revokedPrefix       = "session:revoked:"
)

// UserRepository interface for user operations.
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	GetByOAuthID(oauthID string) (*models.User, error)
	ExistsByUsername(username string) (bool, error)
	ExistsByEmail(email string) (bool, error)
	Update(user *models.User) error
}

// RegisterInput is the payload of a local registration.
type RegisterInput struct {
	Username string `json:"username" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// ProfileInput changes the caller's own account. Nil fields are left unchanged.
type ProfileInput struct {
	Email           *string `json:"email"`
	CurrentPassword string  `json:"current_password"`
	NewPassword     *string `json:"new_password"`
}

// OAuthStart is the result of starting the OAuth handshake.
type OAuthStart struct {
	AuthorizeURL string
	RequestToken string
}

// Service handles registration, login, sessions and the OAuth handshake.
type Service struct {
	users     UserRepository
	cache     cache.Cache
	tokens    *TokenManager
	provider  Provider
	strategy  CallbackStrategy
	oauthCfg  config.OAuthConfig
	validator *validator.Validate
	log       *logger.Logger
}

// NewService creates a new auth service with concrete dependencies.
// The OAuth provider is only built when consumer credentials are configured.
func NewService(
	cfg *config.Config,
	users *repository.UserRepository,
	store *cache.Client,
	log *logger.Logger,
) (*Service, error) {
	strategy, err := NewCallbackStrategy(&cfg.OAuth, cfg.Server.FrontendURL)
	if err != nil {
		return nil, err
	}

	var provider Provider
	if cfg.OAuth.Enabled() {
		provider = NewWikimediaProvider(&cfg.OAuth)
	}

	tokens := NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	return NewServiceWithInterfaces(users, store, tokens, provider, strategy, cfg.OAuth, log), nil
}

// NewServiceWithInterfaces creates a new auth service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	users UserRepository,
	store cache.Cache,
	tokens *TokenManager,
	provider Provider,
	strategy CallbackStrategy,
	oauthCfg config.OAuthConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		users:     users,
		cache:     store,
		tokens:    tokens,
		provider:  provider,
		strategy:  strategy,
		oauthCfg:  oauthCfg,
		validator: validator.New(),
		log:       log,
	}
}

// Strategy returns the configured OAuth callback strategy.
func (s *Service) Strategy() CallbackStrategy {
	return s.strategy
}

// Register creates a local account with a hashed password.
func (s *Service) Register(_ context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	if err := s.validator.Struct(in); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, describeValidation(err), err)
	}

	taken, err := s.users.ExistsByUsername(in.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.Conflict("username already exists")
	}
	taken, err = s.users.ExistsByEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.Conflict("email already exists")
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	email := in.Email
	user := &models.User{
		Username:     in.Username,
		Email:        &email,
		PasswordHash: hash,
		Role:         models.RoleUser,
	}
	if err := s.users.Create(user); err != nil {
		return nil, err
	}

	s.log.Info().
		Uint("user_id", user.ID).
		Str("username", user.Username).
		Msg("User registered")

	return user, nil
}

// Login verifies an email and password and issues a session.
func (s *Service) Login(_ context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		prommetrics.RecordAuthAttempt("password", "invalid")
		return nil, apperr.Validation("email and password are required")
	}

	user, err := s.users.GetByEmail(email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			prommetrics.RecordAuthAttempt("password", "failure")
			return nil, apperr.Unauthorized("invalid email or password")
		}
		return nil, err
	}

	if err := CheckPassword(user.PasswordHash, password); err != nil {
		prommetrics.RecordAuthAttempt("password", "failure")
		return nil, apperr.Unauthorized("invalid email or password")
	}

	session, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	prommetrics.RecordAuthAttempt("password", "success")
	s.log.Info().Uint("user_id", user.ID).Msg("User logged in")
	return session, nil
}

// Logout revokes the session carried by token until it would have expired.
// A live session is only ended when csrf matches its CSRF claim; unparseable
// or missing tokens are ignored.
func (s *Service) Logout(ctx context.Context, token, csrf string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil
	}
	if csrf == "" || subtle.ConstantTimeCompare([]byte(csrf), []byte(claims.CSRF)) != 1 {
		return apperr.Unauthorized("missing or invalid CSRF token")
	}

	ttl := time.Until(time.Unix(claims.ExpiresAt, 0))
	if ttl <= 0 {
		return nil
	}
	if err := s.cache.Set(ctx, revokedPrefix+claims.Id, "1", ttl); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	s.log.Info().Uint("user_id", claims.UserID).Msg("User logged out")
	return nil
}

// CheckSession resolves the user behind a session token.
func (s *Service) CheckSession(ctx context.Context, token string) (*models.User, *SessionClaims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindUnauthorized, "authentication required", err)
	}

	revoked, err := s.cache.Exists(ctx, revokedPrefix+claims.Id)
	if err != nil {
		return nil, nil, err
	}
	if revoked > 0 {
		return nil, nil, apperr.Unauthorized("session has been revoked")
	}

	user, err := s.users.GetByID(claims.UserID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, nil, apperr.Unauthorized("user no longer exists")
		}
		return nil, nil, err
	}
	return user, claims, nil
}

// OAuthLogin obtains a request token and returns the provider URL to visit.
// The request secret is kept in the cache until the callback consumes it.
func (s *Service) OAuthLogin(ctx context.Context) (*OAuthStart, error) {
	if s.provider == nil {
		return nil, apperr.Config("OAuth is not configured")
	}

	token, secret, err := s.provider.RequestToken(s.strategy.CallbackURL())
	if err != nil {
		prommetrics.RecordAuthAttempt("oauth", "provider_error")
		return nil, apperr.Wrap(apperr.KindUnauthorized, "OAuth provider rejected the request", err)
	}

	if err := s.cache.Set(ctx, requestSecretPrefix+token, secret, s.oauthCfg.RequestTokenTTL); err != nil {
		return nil, fmt.Errorf("failed to store request token: %w", err)
	}

	authorizeURL, err := s.provider.AuthorizeURL(token)
	if err != nil {
		return nil, err
	}

	s.log.Debug().Str("mode", s.strategy.Mode()).Msg("OAuth handshake started")
	return &OAuthStart{AuthorizeURL: authorizeURL, RequestToken: token}, nil
}

// OAuthCallbackRequest completes the handshake from an incoming callback request.
func (s *Service) OAuthCallbackRequest(ctx context.Context, r *http.Request, pendingToken string) (*Session, error) {
	if s.provider == nil {
		return nil, apperr.Config("OAuth is not configured")
	}

	token, verifier, err := s.strategy.Extract(r, pendingToken)
	if err != nil {
		prommetrics.RecordAuthAttempt("oauth", "invalid")
		return nil, apperr.Wrap(apperr.KindValidation, "oauth_token and oauth_verifier are required", err)
	}
	return s.OAuthCallback(ctx, token, verifier)
}

// OAuthCallback exchanges a verified request token, resolves the linked
// user and issues a session.
func (s *Service) OAuthCallback(ctx context.Context, requestToken, verifier string) (*Session, error) {
	if s.provider == nil {
		return nil, apperr.Config("OAuth is not configured")
	}

	secret, err := s.cache.GetDel(ctx, requestSecretPrefix+requestToken)
	if err != nil {
		return nil, err
	}
	if secret == "" {
		prommetrics.RecordAuthAttempt("oauth", "failure")
		return nil, apperr.Unauthorized("unknown or expired OAuth request token")
	}

	accessToken, accessSecret, err := s.provider.AccessToken(requestToken, secret, verifier)
	if err != nil {
		prommetrics.RecordAuthAttempt("oauth", "failure")
		return nil, apperr.Wrap(apperr.KindUnauthorized, "OAuth verification failed", err)
	}

	identity, err := s.provider.Identify(ctx, accessToken, accessSecret)
	if err != nil {
		prommetrics.RecordAuthAttempt("oauth", "failure")
		return nil, apperr.Wrap(apperr.KindUnauthorized, "OAuth identity could not be verified", err)
	}

	user, err := s.resolveOAuthUser(identity, accessToken, accessSecret)
	if err != nil {
		prommetrics.RecordAuthAttempt("oauth", "failure")
		return nil, err
	}

	session, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	prommetrics.RecordAuthAttempt("oauth", "success")
	s.log.Info().
		Uint("user_id", user.ID).
		Str("username", user.Username).
		Str("mode", s.strategy.Mode()).
		Msg("User logged in via OAuth")
	return session, nil
}

// resolveOAuthUser finds the account linked to identity, links an unlinked
// account with the same username, or creates an OAuth-only account.
func (s *Service) resolveOAuthUser(identity *Identity, accessToken, accessSecret string) (*models.User, error) {
	user, err := s.users.GetByOAuthID(identity.CentralID)
	if err == nil {
		user.OAuthToken = accessToken
		user.OAuthSecret = accessSecret
		if err := s.users.Update(user); err != nil {
			return nil, err
		}
		return user, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}

	user, err = s.users.GetByUsername(identity.Username)
	switch {
	case err == nil:
		if user.IsOAuthLinked() {
			return nil, apperr.Conflict("username is linked to another Wikimedia account")
		}
		centralID := identity.CentralID
		user.OAuthID = &centralID
		user.OAuthToken = accessToken
		user.OAuthSecret = accessSecret
		if err := s.users.Update(user); err != nil {
			return nil, err
		}
		s.log.Info().Uint("user_id", user.ID).Msg("Linked existing account to Wikimedia identity")
		return user, nil
	case apperr.Is(err, apperr.KindNotFound):
	default:
		return nil, err
	}

	centralID := identity.CentralID
	user = &models.User{
		Username:    identity.Username,
		Role:        models.RoleUser,
		OAuthID:     &centralID,
		OAuthToken:  accessToken,
		OAuthSecret: accessSecret,
	}
	if err := s.users.Create(user); err != nil {
		return nil, err
	}
	s.log.Info().Uint("user_id", user.ID).Msg("Created account from Wikimedia identity")
	return user, nil
}

// UpdateProfile changes the caller's email and/or password.
func (s *Service) UpdateProfile(_ context.Context, user *models.User, in ProfileInput) (*models.User, error) {
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if err := s.validator.Var(email, "required,email,max=255"); err != nil {
			return nil, apperr.Validation("a valid email is required")
		}
		if user.Email == nil || !strings.EqualFold(*user.Email, email) {
			taken, err := s.users.ExistsByEmail(email)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, apperr.Conflict("email already exists")
			}
		}
		user.Email = &email
	}

	if in.NewPassword != nil {
		if err := s.validator.Var(*in.NewPassword, "required,min=6,max=72"); err != nil {
			return nil, apperr.Validation("password must be between 6 and 72 characters")
		}
		if user.HasPassword() {
			if err := CheckPassword(user.PasswordHash, in.CurrentPassword); err != nil {
				return nil, apperr.Unauthorized("current password is incorrect")
			}
		}
		hash, err := HashPassword(*in.NewPassword)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if err := s.users.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangeRole sets the role of another account. Admins manage user and admin
// roles on accounts that are not superadmins; superadmins manage every role.
func (s *Service) ChangeRole(_ context.Context, actor *models.User, targetID uint, roleName string) (*models.User, error) {
	role, err := models.ParseRole(roleName)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "role must be one of user, admin, superadmin", err)
	}

	caps := actor.Capabilities()
	if !caps.ManageRoles {
		return nil, apperr.Forbidden("only admins can change roles")
	}
	if actor.ID == targetID {
		return nil, apperr.Forbidden("you cannot change your own role")
	}

	target, err := s.users.GetByID(targetID)
	if err != nil {
		return nil, err
	}
	if !caps.GrantSuperadmin && (role == models.RoleSuperadmin || target.Role == models.RoleSuperadmin) {
		return nil, apperr.Forbidden("only superadmins can grant or revoke superadmin")
	}

	previous := target.Role
	target.Role = role
	if err := s.users.Update(target); err != nil {
		return nil, err
	}

	s.log.Info().
		Uint("actor_id", actor.ID).
		Uint("user_id", target.ID).
		Str("from", string(previous)).
		Str("to", string(role)).
		Msg("User role changed")
	return target, nil
}

// describeValidation turns validator errors into a client-safe message.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid input"
	}

	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return field + " is invalid"
	}
}
