package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dghubble/oauth1"
	"github.com/golang-jwt/jwt"

	"github.com/wikicontest/wikicontest/internal/config"
)

// Identity is the Wikimedia account behind an access token.
type Identity struct {
	CentralID string
	Username  string
}

// Provider performs the OAuth 1.0a handshake with the identity provider.
type Provider interface {
	RequestToken(callbackURL string) (token, secret string, err error)
	AuthorizeURL(requestToken string) (string, error)
	AccessToken(requestToken, requestSecret, verifier string) (token, secret string, err error)
	Identify(ctx context.Context, accessToken, accessSecret string) (*Identity, error)
}

// WikimediaProvider talks to Special:OAuth on a MediaWiki site.
type WikimediaProvider struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	endpoint       oauth1.Endpoint
}

// NewWikimediaProvider creates a provider for the configured consumer.
func NewWikimediaProvider(cfg *config.OAuthConfig) *WikimediaProvider {
	base := strings.TrimRight(cfg.BaseURL, "/")
	return &WikimediaProvider{
		baseURL:        base,
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		endpoint: oauth1.Endpoint{
			RequestTokenURL: base + "/w/index.php?title=Special:OAuth/initiate",
			AuthorizeURL:    base + "/wiki/Special:OAuth/authorize",
			AccessTokenURL:  base + "/w/index.php?title=Special:OAuth/token",
		},
	}
}

func (p *WikimediaProvider) config(callbackURL string) *oauth1.Config {
	return &oauth1.Config{
		ConsumerKey:    p.consumerKey,
		ConsumerSecret: p.consumerSecret,
		CallbackURL:    callbackURL,
		Endpoint:       p.endpoint,
	}
}

// RequestToken obtains a temporary request token.
func (p *WikimediaProvider) RequestToken(callbackURL string) (string, string, error) {
	token, secret, err := p.config(callbackURL).RequestToken()
	if err != nil {
		return "", "", fmt.Errorf("failed to obtain request token: %w", err)
	}
	return token, secret, nil
}

// AuthorizeURL returns the page the user must visit to approve the request token.
// MediaWiki additionally expects the consumer key on that URL.
func (p *WikimediaProvider) AuthorizeURL(requestToken string) (string, error) {
	u, err := p.config("").AuthorizationURL(requestToken)
	if err != nil {
		return "", fmt.Errorf("failed to build authorization URL: %w", err)
	}
	q := u.Query()
	q.Set("oauth_consumer_key", p.consumerKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// AccessToken exchanges an approved request token for an access token.
func (p *WikimediaProvider) AccessToken(requestToken, requestSecret, verifier string) (string, string, error) {
	token, secret, err := p.config("").AccessToken(requestToken, requestSecret, verifier)
	if err != nil {
		return "", "", fmt.Errorf("failed to obtain access token: %w", err)
	}
	return token, secret, nil
}

// Identify calls Special:OAuth/identify and verifies the returned JWT, which
// is signed with the consumer secret and addressed to the consumer key.
func (p *WikimediaProvider) Identify(ctx context.Context, accessToken, accessSecret string) (*Identity, error) {
	client := p.config("").Client(ctx, oauth1.NewToken(accessToken, accessSecret))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/w/index.php?title=Special:OAuth/identify", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create identify request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call identify: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("failed to read identify response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identify returned status %d", resp.StatusCode)
	}

	return ParseIdentity(strings.TrimSpace(string(body)), p.consumerKey, p.consumerSecret)
}

// ParseIdentity verifies an identify JWT and extracts the account.
func ParseIdentity(raw, consumerKey, consumerSecret string) (*Identity, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(consumerSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid identify token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("unexpected identify claims")
	}
	if !claims.VerifyAudience(consumerKey, true) {
		return nil, errors.New("identify token audience mismatch")
	}

	var centralID string
	switch sub := claims["sub"].(type) {
	case string:
		centralID = sub
	case float64:
		centralID = strconv.FormatFloat(sub, 'f', -1, 64)
	}
	username, _ := claims["username"].(string)
	if centralID == "" || centralID == "0" || username == "" {
		return nil, errors.New("identify token lacks user")
	}

	return &Identity{CentralID: centralID, Username: username}, nil
}
