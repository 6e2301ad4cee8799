package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dghubble/oauth1"

	"github.com/wikicontest/wikicontest/internal/config"
)

// ErrMissingVerifier is returned when a callback lacks the request token or verifier.
var ErrMissingVerifier = errors.New("missing oauth_token or oauth_verifier")

// CallbackStrategy decides how the provider hands the verifier back to us.
type CallbackStrategy interface {
	// Mode is the configured callback mode.
	Mode() string
	// CallbackURL is sent with the request token.
	CallbackURL() string
	// Extract reads the request token and verifier from a callback request.
	// pendingToken is the request token remembered from the login step.
	Extract(r *http.Request, pendingToken string) (requestToken, verifier string, err error)
	// LoginRedirect is where the browser goes after a successful callback;
	// empty means the callback answers with JSON.
	LoginRedirect() string
	// ServesAlias reports whether the bare /oauth/callback path is registered.
	ServesAlias() bool
}

// NewCallbackStrategy returns the strategy for the configured mode.
func NewCallbackStrategy(cfg *config.OAuthConfig, frontendURL string) (CallbackStrategy, error) {
	switch cfg.CallbackMode {
	case config.CallbackModeDirect, "":
		return &DirectCallback{url: cfg.CallbackURL, frontendURL: frontendURL}, nil
	case config.CallbackModeOOB:
		return &OutOfBand{}, nil
	default:
		return nil, fmt.Errorf("unknown oauth callback mode %q", cfg.CallbackMode)
	}
}

// DirectCallback has the provider redirect the browser to our callback URL.
type DirectCallback struct {
	url         string
	frontendURL string
}

// Mode implements CallbackStrategy.
func (d *DirectCallback) Mode() string { return config.CallbackModeDirect }

// CallbackURL implements CallbackStrategy.
func (d *DirectCallback) CallbackURL() string { return d.url }

// Extract implements CallbackStrategy. The provider puts both values on the query string.
func (d *DirectCallback) Extract(r *http.Request, _ string) (string, string, error) {
	token, verifier, err := oauth1.ParseAuthorizationCallback(r)
	if err != nil {
		return "", "", ErrMissingVerifier
	}
	return token, verifier, nil
}

// LoginRedirect implements CallbackStrategy.
func (d *DirectCallback) LoginRedirect() string { return d.frontendURL }

// ServesAlias implements CallbackStrategy.
func (d *DirectCallback) ServesAlias() bool { return true }

// OutOfBand shows the verifier to the user, who pastes it back into the app.
type OutOfBand struct{}

// Mode implements CallbackStrategy.
func (o *OutOfBand) Mode() string { return config.CallbackModeOOB }

// CallbackURL implements CallbackStrategy.
func (o *OutOfBand) CallbackURL() string { return "oob" }

// Extract implements CallbackStrategy. The verifier arrives as a query or form
// value; the request token falls back to the one remembered at login.
func (o *OutOfBand) Extract(r *http.Request, pendingToken string) (string, string, error) {
	if err := r.ParseForm(); err != nil {
		return "", "", ErrMissingVerifier
	}
	verifier := r.Form.Get("oauth_verifier")
	token := r.Form.Get("oauth_token")
	if token == "" {
		token = pendingToken
	}
	if token == "" || verifier == "" {
		return "", "", ErrMissingVerifier
	}
	return token, verifier, nil
}

// LoginRedirect implements CallbackStrategy.
func (o *OutOfBand) LoginRedirect() string { return "" }

// ServesAlias implements CallbackStrategy.
func (o *OutOfBand) ServesAlias() bool { return false }
