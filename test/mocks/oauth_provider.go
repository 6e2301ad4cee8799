package mocks

import (
	"context"
	"errors"
	"net/url"

	"github.com/wikicontest/wikicontest/internal/auth"
)

// MockOAuthProvider is a scripted OAuth 1.0a provider.
type MockOAuthProvider struct {
	RequestTokenFunc func(callbackURL string) (string, string, error)
	AccessTokenFunc  func(requestToken, requestSecret, verifier string) (string, string, error)
	IdentifyFunc     func(ctx context.Context, accessToken, accessSecret string) (*auth.Identity, error)

	// LastCallbackURL is the callback sent with the last request token.
	LastCallbackURL string
}

func (m *MockOAuthProvider) RequestToken(callbackURL string) (string, string, error) {
	m.LastCallbackURL = callbackURL
	if m.RequestTokenFunc != nil {
		return m.RequestTokenFunc(callbackURL)
	}
	return "request-token", "request-secret", nil
}

func (m *MockOAuthProvider) AuthorizeURL(requestToken string) (string, error) {
	return "https://meta.wikimedia.org/wiki/Special:OAuth/authorize?oauth_token=" + url.QueryEscape(requestToken), nil
}

func (m *MockOAuthProvider) AccessToken(requestToken, requestSecret, verifier string) (string, string, error) {
	if m.AccessTokenFunc != nil {
		return m.AccessTokenFunc(requestToken, requestSecret, verifier)
	}
	if requestSecret != "request-secret" || verifier == "" {
		return "", "", errors.New("verifier rejected")
	}
	return "access-token", "access-secret", nil
}

func (m *MockOAuthProvider) Identify(ctx context.Context, accessToken, accessSecret string) (*auth.Identity, error) {
	if m.IdentifyFunc != nil {
		return m.IdentifyFunc(ctx, accessToken, accessSecret)
	}
	return &auth.Identity{CentralID: "4242", Username: "WikiEditor"}, nil
}
