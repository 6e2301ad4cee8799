package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"

	"github.com/wikicontest/wikicontest/internal/models"
)

// ErrInvalidSession is returned for tokens that are malformed, expired or forged.
var ErrInvalidSession = errors.New("invalid or expired session")

// SessionClaims are the claims carried by the session cookie.
// StandardClaims.Id identifies the session for revocation.
type SessionClaims struct {
	UserID uint        `json:"uid"`
	Role   models.Role `json:"role"`
	CSRF   string      `json:"csrf"`
	jwt.StandardClaims
}

// Session is an issued session credential.
type Session struct {
	Token     string       `json:"-"`
	CSRFToken string       `json:"csrf_token"`
	ID        string       `json:"-"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// TokenManager signs and verifies session tokens with an HMAC secret.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager creates a token manager.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// TTL returns the lifetime of issued sessions.
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue creates a session token for user with a fresh session id and CSRF value.
func (m *TokenManager) Issue(user *models.User) (*Session, error) {
	now := time.Now()
	expiresAt := now.Add(m.ttl)

	claims := SessionClaims{
		UserID: user.ID,
		Role:   user.Role,
		CSRF:   uuid.NewString(),
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  now.Unix(),
			ExpiresAt: expiresAt.Unix(),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return &Session{
		Token:     token,
		CSRFToken: claims.CSRF,
		ID:        claims.Id,
		ExpiresAt: expiresAt,
		User:      user,
	}, nil
}

// Parse verifies a session token and returns its claims.
func (m *TokenManager) Parse(tokenString string) (*SessionClaims, error) {
	if tokenString == "" {
		return nil, ErrInvalidSession
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidSession
	}
	if claims.UserID == 0 || claims.Id == "" {
		return nil, ErrInvalidSession
	}
	return claims, nil
}
