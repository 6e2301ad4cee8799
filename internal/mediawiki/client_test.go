package mediawiki

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wikicontest/wikicontest/internal/config"
	"github.com/wikicontest/wikicontest/pkg/logger"
)

func TestParseArticleLink(t *testing.T) {
	tests := []struct {
		name    string
		link    string
		wantAPI string
		want    string
		wantErr bool
	}{
		{"wiki path", "https://en.wikipedia.org/wiki/Ada_Lovelace", "https://en.wikipedia.org/w/api.php", "Ada Lovelace", false},
		{"escaped", "https://fr.wikipedia.org/wiki/Caf%C3%A9", "https://fr.wikipedia.org/w/api.php", "Café", false},
		{"index.php", "https://en.wikipedia.org/w/index.php?title=Grace_Hopper&oldid=1", "https://en.wikipedia.org/w/api.php", "Grace Hopper", false},
		{"no title", "https://en.wikipedia.org/wiki/", "", "", true},
		{"other path", "https://en.wikipedia.org/articles/1", "", "", true},
		{"not http", "ftp://en.wikipedia.org/wiki/X", "", "", true},
		{"relative", "/wiki/X", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ParseArticleLink(tt.link, DefaultAllowedHosts)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedLink)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAPI, ref.APIURL)
			assert.Equal(t, tt.want, ref.Title)
		})
	}
}

func TestParseArticleLink_RejectsHostsOffTheAllowlist(t *testing.T) {
	links := []string{
		"http://169.254.169.254/wiki/latest",
		"http://localhost:6379/wiki/X",
		"http://10.0.0.5/wiki/X",
		"https://example.org/wiki/X",
		"https://en.wikipedia.org.evil.example/wiki/X",
		"https://en.wikipedia.org@127.0.0.1/wiki/X",
		"https://wikipedia.org/wiki/X",
	}
	for _, link := range links {
		t.Run(link, func(t *testing.T) {
			_, err := ParseArticleLink(link, DefaultAllowedHosts)
			assert.ErrorIs(t, err, ErrHostNotAllowed)
		})
	}
}

func TestHostAllowlist_Allows(t *testing.T) {
	list := HostAllowlist{"*.wikipedia.org", "commons.wikimedia.org"}

	assert.True(t, list.Allows("en.wikipedia.org"))
	assert.True(t, list.Allows("EN.Wikipedia.org."))
	assert.True(t, list.Allows("commons.wikimedia.org"))
	assert.False(t, list.Allows("meta.wikimedia.org"))
	assert.False(t, list.Allows("wikipedia.org"))
	assert.False(t, list.Allows("evilwikipedia.org"))
	assert.False(t, list.Allows(""))
	assert.False(t, HostAllowlist(nil).Allows("en.wikipedia.org"))
}

const firstRevision = `{"query":{"pages":[{"pageid":1,"ns":0,"title":"Ada Lovelace","revisions":[
	{"user":"Creator","timestamp":"2024-03-01T10:00:00Z"}]}]}}`

const latestRevision = `{"query":{"pages":[{"pageid":1,"ns":0,"title":"Ada Lovelace","revisions":[
	{"user":"LastEditor","timestamp":"2025-01-15T08:30:00Z","size":2048,
	 "slots":{"main":{"contentmodel":"wikitext","content":"'''Ada''' was a\nmathematician and writer."}}}]}]}}`

func newTestClient(maxRetries int) *Client {
	c := NewClient(&config.MediaWikiConfig{
		UserAgent:    "WikiContestTest/1.0",
		Timeout:      5 * time.Second,
		MaxRetries:   maxRetries,
		AllowedHosts: []string{"127.0.0.1"},
	}, logger.Nop())
	c.http.RetryWaitMin = time.Millisecond
	c.http.RetryWaitMax = 5 * time.Millisecond
	return c
}

func TestFetchArticle(t *testing.T) {
	var userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		q := r.URL.Query()
		if r.URL.Path != "/w/api.php" || q.Get("titles") != "Ada Lovelace" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if q.Get("rvdir") == "newer" {
			_, _ = w.Write([]byte(firstRevision))
			return
		}
		_, _ = w.Write([]byte(latestRevision))
	}))
	defer server.Close()

	meta, err := newTestClient(0).FetchArticle(context.Background(), server.URL+"/wiki/Ada_Lovelace")
	require.NoError(t, err)

	assert.Equal(t, "WikiContestTest/1.0", userAgent)
	assert.Equal(t, "Creator", meta.Creator)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), meta.CreatedAt.UTC())
	assert.Equal(t, 2048, meta.Size)
	assert.Equal(t, 6, meta.WordCount)
	assert.Equal(t, "LastEditor", meta.LatestRevisionAuthor)
	assert.Equal(t, time.Date(2025, 1, 15, 8, 30, 0, 0, time.UTC), meta.LatestRevisionAt.UTC())
}

func TestFetchArticle_Missing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"query":{"pages":[{"ns":0,"title":"Nope","missing":true}]}}`))
	}))
	defer server.Close()

	_, err := newTestClient(0).FetchArticle(context.Background(), server.URL+"/wiki/Nope")
	assert.True(t, errors.Is(err, ErrArticleMissing))
}

func TestFetchArticle_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"code":"badvalue","info":"Unrecognized value"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(0).FetchArticle(context.Background(), server.URL+"/wiki/X")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "badvalue")
}

func TestFetchArticle_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.URL.Query().Get("rvdir") == "newer" {
			_, _ = w.Write([]byte(firstRevision))
			return
		}
		_, _ = w.Write([]byte(latestRevision))
	}))
	defer server.Close()

	meta, err := newTestClient(2).FetchArticle(context.Background(), server.URL+"/wiki/Ada_Lovelace")
	require.NoError(t, err)
	assert.Equal(t, "Creator", meta.Creator)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchArticle_GivesUp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(1).FetchArticle(context.Background(), server.URL+"/wiki/X")
	assert.Error(t, err)
}

func TestFetchArticle_BadLink(t *testing.T) {
	_, err := newTestClient(0).FetchArticle(context.Background(), "not a link")
	assert.ErrorIs(t, err, ErrUnsupportedLink)
}

func TestFetchArticle_HostNotAllowed(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	client := NewClient(&config.MediaWikiConfig{Timeout: time.Second}, logger.Nop())
	assert.Equal(t, DefaultAllowedHosts, client.AllowedHosts())

	_, err := client.FetchArticle(context.Background(), server.URL+"/wiki/X")
	assert.ErrorIs(t, err, ErrHostNotAllowed)
	assert.Zero(t, atomic.LoadInt32(&hits))
}
