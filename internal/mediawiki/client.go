// Package mediawiki fetches article metadata from the MediaWiki Action API of
// the wiki an article link points to.
package mediawiki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/wikicontest/wikicontest/internal/config"
	"github.com/wikicontest/wikicontest/pkg/logger"
)

// ErrArticleMissing is returned when the wiki has no page with the title.
var ErrArticleMissing = errors.New("article does not exist")

// ArticleMetadata describes an article as the wiki currently sees it.
type ArticleMetadata struct {
	Title                string
	Creator              string
	CreatedAt            time.Time
	Size                 int // bytes of the latest revision
	WordCount            int
	LatestRevisionAuthor string
	LatestRevisionAt     time.Time
}

// Client queries MediaWiki sites over HTTP with bounded retries.
type Client struct {
	http      *retryablehttp.Client
	userAgent string
	allowed   HostAllowlist
	log       *logger.Logger
}

// NewClient creates a new MediaWiki client.
func NewClient(cfg *config.MediaWikiConfig, log *logger.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.MaxRetries
	rc.RetryWaitMin = 250 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = retryLogger{log: log}

	allowed := HostAllowlist(cfg.AllowedHosts)
	if len(allowed) == 0 {
		allowed = DefaultAllowedHosts
	}

	return &Client{
		http:      rc,
		userAgent: cfg.UserAgent,
		allowed:   allowed,
		log:       log,
	}
}

// AllowedHosts returns the wikis the client will query.
func (c *Client) AllowedHosts() HostAllowlist {
	return c.allowed
}

// FetchArticle resolves the wiki behind link and returns the article's
// creation and latest-revision details.
func (c *Client) FetchArticle(ctx context.Context, link string) (*ArticleMetadata, error) {
	ref, err := ParseArticleLink(link, c.allowed)
	if err != nil {
		return nil, err
	}

	first, err := c.revision(ctx, ref, url.Values{
		"rvdir":  {"newer"},
		"rvprop": {"user|timestamp"},
	})
	if err != nil {
		return nil, err
	}

	latest, err := c.revision(ctx, ref, url.Values{
		"rvprop":  {"user|timestamp|size|content"},
		"rvslots": {"main"},
	})
	if err != nil {
		return nil, err
	}

	meta := &ArticleMetadata{
		Title:                ref.Title,
		Creator:              first.User,
		CreatedAt:            first.Timestamp,
		Size:                 latest.Size,
		WordCount:            len(strings.Fields(latest.Slots.Main.Content)),
		LatestRevisionAuthor: latest.User,
		LatestRevisionAt:     latest.Timestamp,
	}

	c.log.Debug().
		Str("api", ref.APIURL).
		Str("title", ref.Title).
		Int("size", meta.Size).
		Msg("Fetched article metadata")

	return meta, nil
}

type revision struct {
	User      string    `json:"user"`
	Timestamp time.Time `json:"timestamp"`
	Size      int       `json:"size"`
	Slots     struct {
		Main struct {
			Content string `json:"content"`
		} `json:"main"`
	} `json:"slots"`
}

type queryResponse struct {
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
	Query struct {
		Pages []struct {
			Title     string     `json:"title"`
			Missing   bool       `json:"missing"`
			Invalid   bool       `json:"invalid"`
			Revisions []revision `json:"revisions"`
		} `json:"pages"`
	} `json:"query"`
}

// revision runs a single-revision prop=revisions query.
func (c *Client) revision(ctx context.Context, ref *ArticleRef, extra url.Values) (*revision, error) {
	params := url.Values{
		"action":        {"query"},
		"format":        {"json"},
		"formatversion": {"2"},
		"prop":          {"revisions"},
		"titles":        {ref.Title},
		"rvlimit":       {"1"},
		"redirects":     {"1"},
	}
	for k, v := range extra {
		params[k] = v
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, ref.APIURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", ref.APIURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mediawiki returned status %d", resp.StatusCode)
	}

	var body queryResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode mediawiki response: %w", err)
	}
	if body.Error != nil {
		return nil, fmt.Errorf("mediawiki error %s: %s", body.Error.Code, body.Error.Info)
	}
	if len(body.Query.Pages) == 0 {
		return nil, ErrArticleMissing
	}

	page := body.Query.Pages[0]
	if page.Missing || page.Invalid || len(page.Revisions) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrArticleMissing, ref.Title)
	}
	return &page.Revisions[0], nil
}

// retryLogger adapts the service logger to retryablehttp.LeveledLogger.
type retryLogger struct {
	log *logger.Logger
}

func (l retryLogger) Error(msg string, kv ...interface{}) {
	l.log.Error().Fields(fields(kv)).Msg(msg)
}

func (l retryLogger) Warn(msg string, kv ...interface{}) {
	l.log.Warn().Fields(fields(kv)).Msg(msg)
}

func (l retryLogger) Info(msg string, kv ...interface{}) {
	l.log.Debug().Fields(fields(kv)).Msg(msg)
}

func (l retryLogger) Debug(msg string, kv ...interface{}) {
	l.log.Debug().Fields(fields(kv)).Msg(msg)
}

func fields(kv []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out[fmt.Sprint(kv[i])] = fmt.Sprint(kv[i+1])
	}
	return out
}
