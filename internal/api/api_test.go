//nolint:noctx // Test file uses httptest.NewRequest for simplicity
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wikicontest/wikicontest/internal/api"
	"github.com/wikicontest/wikicontest/internal/auth"
	"github.com/wikicontest/wikicontest/internal/cache"
	"github.com/wikicontest/wikicontest/internal/config"
	"github.com/wikicontest/wikicontest/internal/mediawiki"
	prommetrics "github.com/wikicontest/wikicontest/internal/metrics"
	"github.com/wikicontest/wikicontest/internal/models"
	"github.com/wikicontest/wikicontest/internal/repository"
	"github.com/wikicontest/wikicontest/internal/service/contest"
	"github.com/wikicontest/wikicontest/internal/service/leaderboard"
	"github.com/wikicontest/wikicontest/internal/service/submission"
	"github.com/wikicontest/wikicontest/pkg/logger"
	"github.com/wikicontest/wikicontest/test/mocks"
	"github.com/wikicontest/wikicontest/test/testdb"
)

const frontendURL = "https://contest.example.org"

var today = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

type stubFetcher struct{}

func (stubFetcher) FetchArticle(_ context.Context, link string) (*mediawiki.ArticleMetadata, error) {
	return &mediawiki.ArticleMetadata{
		Title:                link,
		Creator:              "Creator",
		CreatedAt:            today.AddDate(-1, 0, 0),
		Size:                 2048,
		WordCount:            300,
		LatestRevisionAuthor: "Editor",
		LatestRevisionAt:     today,
	}, nil
}

type harness struct {
	router *gin.Engine
	db     *repository.DB
	tokens *auth.TokenManager
	cfg    *config.Config
}

// session is a logged-in client: its cookie and CSRF value.
type session struct {
	token string
	csrf  string
}

func newHarness(t *testing.T, callbackMode string, withProvider bool) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testdb.New(t)
	mr := miniredis.RunT(t)
	store := cache.NewFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), logger.Nop())
	t.Cleanup(func() { _ = store.Close() })

	cfg := &config.Config{
		Server: config.ServerConfig{Environment: "test", FrontendURL: frontendURL},
		Auth: config.AuthConfig{
			JWTSecret:        "test-secret",
			SessionTTL:       time.Hour,
			AccessCookieName: "access_token_cookie",
			CSRFCookieName:   "csrf_access_token",
		},
		OAuth: config.OAuthConfig{
			ConsumerKey:     "key",
			ConsumerSecret:  "secret",
			CallbackMode:    callbackMode,
			CallbackURL:     frontendURL + "/oauth/callback",
			RequestTokenTTL: 10 * time.Minute,
		},
	}

	strategy, err := auth.NewCallbackStrategy(&cfg.OAuth, frontendURL)
	require.NoError(t, err)

	var provider auth.Provider
	if withProvider {
		provider = &mocks.MockOAuthProvider{}
	}

	log := logger.Nop()
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	clock := testdb.Clock(today)

	users := repository.NewUserRepository(db)
	contests := repository.NewContestRepository(db)
	submissions := repository.NewSubmissionRepository(db)

	services := &api.Services{
		Auth:        auth.NewServiceWithInterfaces(users, store, tokens, provider, strategy, cfg.OAuth, log),
		Contests:    contest.NewServiceWithInterfaces(contests, clock, log),
		Submissions: submission.NewServiceWithInterfaces(submissions, contests, stubFetcher{}, mediawiki.DefaultAllowedHosts, clock, log),
		Leaderboard: leaderboard.NewServiceWithInterfaces(submissions, contests, clock, log),
		Database:    db,
		Cache:       store,
	}

	return &harness{
		router: api.NewRouter(services, cfg, log),
		db:     db,
		tokens: tokens,
		cfg:    cfg,
	}
}

func (h *harness) login(t *testing.T, user *models.User) *session {
	t.Helper()
	issued, err := h.tokens.Issue(user)
	require.NoError(t, err)
	return &session{token: issued.Token, csrf: issued.CSRFToken}
}

func (h *harness) do(method, path string, body interface{}, s *session) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if s != nil {
		req.AddCookie(&http.Cookie{Name: h.cfg.Auth.AccessCookieName, Value: s.token})
		if s.csrf != "" {
			req.Header.Set(api.CSRFHeader, s.csrf)
		}
	}

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func cookieValue(w *httptest.ResponseRecorder, name string) string {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func TestHealthEndpoint(t *testing.T) {
	h := newHarness(t, config.CallbackModeDirect, true)

	before := testutil.ToFloat64(prommetrics.HTTPRequestsTotal.WithLabelValues("GET", "/health", "200"))

	w := h.do(http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "wikicontest", body["service"])

	after := testutil.ToFloat64(prommetrics.HTTPRequestsTotal.WithLabelValues("GET", "/health", "200"))
	assert.Equal(t, before+1, after)
}

func TestRegisterLoginLogoutFlow(t *testing.T) {
	h := newHarness(t, config.CallbackModeDirect, true)

	w := h.do(http.MethodPost, "/api/user/register", gin.H{
		"username": "Alice", "email": "alice@example.org", "password": "secret123",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = h.do(http.MethodPost, "/api/user/register", gin.H{
		"username": "alice", "email": "other@example.org", "password": "secret123",
	}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(http.MethodPost, "/api/user/login", gin.H{"email": "alice@example.org", "password": "wrong-pass"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(http.MethodPost, "/api/user/login", gin.H{"email": "alice@example.org", "password": "secret123"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	token := cookieValue(w, "access_token_cookie")
	csrf := cookieValue(w, "csrf_access_token")
	require.NotEmpty(t, token)
	require.NotEmpty(t, csrf)
	assert.Equal(t, csrf, decode(t, w)["csrf_token"])

	s := &session{token: token, csrf: csrf}

	w = h.do(http.MethodGet, "/api/user/me", nil, &session{token: token})
	require.Equal(t, http.StatusOK, w.Code)
	me := decode(t, w)["user"].(map[string]interface{})
	assert.Equal(t, "Alice", me["username"])
	assert.Equal(t, "alice@example.org", me["email"])
	assert.NotContains(t, me, "password_hash")

	// state-changing requests need the CSRF header
	w = h.do(http.MethodPut, "/api/user/me", gin.H{"email": "alice@wiki.example.org"}, &session{token: token})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = h.do(http.MethodPut, "/api/user/me", gin.H{"email": "alice@wiki.example.org"}, &session{token: token, csrf: "forged"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = h.do(http.MethodPut, "/api/user/me", gin.H{"email": "alice@wiki.example.org"}, s)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// a cross-site form cannot end the session without the CSRF header
	w = h.do(http.MethodPost, "/api/user/logout", nil, &session{token: token})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = h.do(http.MethodGet, "/api/user/me", nil, &session{token: token})
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(http.MethodPost, "/api/user/logout", nil, s)
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(http.MethodGet, "/api/user/me", nil, s)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// logout is idempotent
	w = h.do(http.MethodPost, "/api/user/logout", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegister_ValidationError(t *testing.T) {
	h := newHarness(t, config.CallbackModeDirect, true)

	w := h.do(http.MethodPost, "/api/user/register", gin.H{"username": "bob", "email": "not-an-email", "password": "secret123"}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decode(t, w)
	assert.NotEmpty(t, body["error"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestContestEndpoints(t *testing.T) {
	h := newHarness(t, config.CallbackModeDirect, true)
	alice := testdb.User(t, h.db, "alice", models.RoleUser)
	bob := testdb.User(t, h.db, "bob", models.RoleUser)
	s := h.login(t, alice)

	payload := gin.H{
		"name":         "Spring Drive",
		"project_name": "Wikipedia",
		"jury_members": []string{"bob"},
		"start_date":   "2025-01-01",
		"end_date":     "2025-01-31",
	}

	w := h.do(http.MethodPost, "/api/contest/", payload, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(http.MethodPost, "/api/contest/", payload, &session{token: s.token})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(http.MethodPost, "/api/contest/", payload, s)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)["contest"].(map[string]interface{})
	assert.Equal(t, "spring-drive", created["slug"])
	assert.Equal(t, "current", created["status"])

	w = h.do(http.MethodPost, "/api/contest/", payload, s)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(http.MethodGet, "/api/contest/?category=current", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["total"])

	w = h.do(http.MethodGet, "/api/contest/?category=archived", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodGet, "/api/contest/spring-drive", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(http.MethodGet, "/api/contest/no-such-contest", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// jury members cannot edit
	w = h.do(http.MethodPut, "/api/contest/spring-drive", gin.H{"description": "hijacked"}, h.login(t, bob))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(http.MethodPut, "/api/contest/spring-drive", gin.H{"description": "Improve spring articles"}, s)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode(t, w)["contest"].(map[string]interface{})
	assert.Equal(t, "Improve spring articles", updated["description"])
	assert.Equal(t, "Spring Drive", updated["name"])

	w = h.do(http.MethodDelete, "/api/contest/spring-drive", nil, s)
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(http.MethodGet, "/api/contest/spring-drive", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmissionAndReviewFlow(t *testing.T) {
	h := newHarness(t, config.CallbackModeDirect, true)
	creator := testdb.User(t, h.db, "creator", models.RoleUser)
	jury := testdb.User(t, h.db, "bob", models.RoleUser)
	author := testdb.User(t, h.db, "carol", models.RoleUser)
	c := testdb.Contest(t, h.db, creator, "Winter Drive", testdb.Date(2025, 1, 1), testdb.Date(2025, 1, 31), "Bob")

	authorSession := h.login(t, author)
	jurySession := h.login(t, jury)
	base := "/api/contest/winter-drive"

	w := h.do(http.MethodPost, base+"/submit", gin.H{
		"article_title": "Alan Turing",
		"article_link":  "https://en.wikipedia.org/wiki/Alan_Turing",
	}, authorSession)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sub := decode(t, w)["submission"].(map[string]interface{})
	assert.Equal(t, "pending", sub["status"])
	subPath := "/api/submission/" + strconv.Itoa(int(sub["id"].(float64)))

	w = h.do(http.MethodPost, base+"/submit", gin.H{
		"article_title": "Alan Turing",
		"article_link":  "https://en.wikipedia.org/wiki/Alan_Turing",
	}, authorSession)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(http.MethodGet, base+"/submissions", nil, authorSession)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(http.MethodGet, base+"/submissions", nil, jurySession)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode(t, w)
	assert.EqualValues(t, 1, listed["total"])
	submitter := listed["submissions"].([]interface{})[0].(map[string]interface{})["user"].(map[string]interface{})
	assert.Equal(t, "carol", submitter["username"])
	assert.NotContains(t, submitter, "email", "jury must not see the submitter's email")

	w = h.do(http.MethodGet, "/api/submission/pending", nil, jurySession)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["total"])

	w = h.do(http.MethodPut, subPath, gin.H{"status": "accepted"}, authorSession)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(http.MethodPut, subPath, gin.H{"status": "maybe"}, jurySession)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPut, subPath, gin.H{"status": "accepted", "comment": "Well sourced"}, jurySession)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	reviewed := decode(t, w)["submission"].(map[string]interface{})
	assert.Equal(t, "accepted", reviewed["status"])
	assert.EqualValues(t, 10, reviewed["score"])

	w = h.do(http.MethodPut, subPath, gin.H{"status": "rejected"}, jurySession)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(http.MethodGet, subPath, nil, jurySession)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "carol@example.org")

	w = h.do(http.MethodGet, subPath, nil, authorSession)
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.do(http.MethodGet, base+"/leaderboard", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	entries := decode(t, w)["leaderboard"].([]interface{})
	require.Len(t, entries, 1)
	first := entries[0].(map[string]interface{})
	assert.Equal(t, "carol", first["username"])
	assert.EqualValues(t, 10, first["total_score"])
	assert.EqualValues(t, 1, first["rank"])

	w = h.do(http.MethodGet, "/api/user/dashboard", nil, authorSession)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 10, decode(t, w)["total_score"])

	w = h.do(http.MethodGet, "/api/submission/stats", nil, authorSession)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["total"])

	w = h.do(http.MethodPost, base+"/refresh-metadata", nil, jurySession)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode(t, w)
	assert.EqualValues(t, 1, result["updated"])
	assert.EqualValues(t, 0, result["failed"])

	stored, err := repository.NewSubmissionRepository(h.db).ListByContest(c.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.NotNil(t, stored[0].ArticleWordCount)
	assert.Equal(t, 300, *stored[0].ArticleWordCount)
}

func TestSubmit_ContestNotRunning(t *testing.T) {
	h := newHarness(t, config.CallbackModeDirect, true)
	creator := testdb.User(t, h.db, "creator", models.RoleUser)
	author := testdb.User(t, h.db, "carol", models.RoleUser)
	testdb.Contest(t, h.db, creator, "Autumn Drive", testdb.Date(2024, 9, 1), testdb.Date(2024, 9, 30), "bob")

	w := h.do(http.MethodPost, "/api/contest/autumn-drive/submit", gin.H{
		"article_title": "Ada Lovelace",
		"article_link":  "https://en.wikipedia.org/wiki/Ada_Lovelace",
	}, h.login(t, author))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestChangeRole(t *testing.T) {
	h := newHarness(t, config.CallbackModeDirect, true)
	admin := testdb.User(t, h.db, "admin", models.RoleAdmin)
	user := testdb.User(t, h.db, "dave", models.RoleUser)

	path := "/api/user/" + strconv.FormatUint(uint64(user.ID), 10) + "/role"

	w := h.do(http.MethodPut, path, gin.H{"role": "admin"}, h.login(t, user))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(http.MethodPut, path, gin.H{"role": "superadmin"}, h.login(t, admin))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(http.MethodPut, path, gin.H{"role": "admin"}, h.login(t, admin))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "admin", decode(t, w)["user"].(map[string]interface{})["role"])

	w = h.do(http.MethodPut, path, gin.H{}, h.login(t, admin))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOAuth_DirectCallback(t *testing.T) {
	h := newHarness(t, config.CallbackModeDirect, true)

	w := h.do(http.MethodGet, "/api/user/oauth/login", nil, nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "oauth_token=request-token")

	callback := "/oauth/callback?oauth_token=request-token&oauth_verifier=verifier-123"
	w = h.do(http.MethodGet, callback, nil, nil)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	assert.Equal(t, frontendURL, w.Header().Get("Location"))
	assert.NotEmpty(t, cookieValue(w, "access_token_cookie"))

	// the request secret is single use
	w = h.do(http.MethodGet, callback, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(http.MethodGet, "/api/user/oauth/callback?oauth_token=request-token", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOAuth_LinksExistingAccountIgnoringCase(t *testing.T) {
	h := newHarness(t, config.CallbackModeDirect, true)
	local := testdb.User(t, h.db, "wikieditor", models.RoleUser)

	w := h.do(http.MethodGet, "/api/user/oauth/login", nil, nil)
	require.Equal(t, http.StatusFound, w.Code)
	w = h.do(http.MethodGet, "/oauth/callback?oauth_token=request-token&oauth_verifier=v", nil, nil)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())

	var count int64
	require.NoError(t, h.db.Model(&models.User{}).Where("LOWER(username) = ?", "wikieditor").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	linked, err := repository.NewUserRepository(h.db).GetByID(local.ID)
	require.NoError(t, err)
	require.NotNil(t, linked.OAuthID)
	assert.Equal(t, "4242", *linked.OAuthID)
}

func TestOAuth_OutOfBand(t *testing.T) {
	h := newHarness(t, config.CallbackModeOOB, true)

	w := h.do(http.MethodGet, "/oauth/callback?oauth_token=request-token&oauth_verifier=v", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(http.MethodGet, "/api/user/oauth/login", nil, nil)
	require.Equal(t, http.StatusFound, w.Code)
	pending := cookieValue(w, "oauth_request_token")
	require.Equal(t, "request-token", pending)

	form := url.Values{"oauth_verifier": {"pasted-verifier"}}
	req := httptest.NewRequest(http.MethodPost, "/api/user/oauth/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "oauth_request_token", Value: pending})

	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.NotEmpty(t, body["csrf_token"])
	assert.Equal(t, "WikiEditor", body["user"].(map[string]interface{})["username"])
}

func TestOAuth_NotConfigured(t *testing.T) {
	h := newHarness(t, config.CallbackModeDirect, false)

	w := h.do(http.MethodGet, "/api/user/oauth/login", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
