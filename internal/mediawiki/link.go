package mediawiki

import (
	"errors"
	"net/url"
	"strings"
)

var (
	// ErrUnsupportedLink is returned for links that do not name a wiki page.
	ErrUnsupportedLink = errors.New("link is not a wiki article URL")
	// ErrHostNotAllowed is returned for links to hosts outside the allowlist.
	ErrHostNotAllowed = errors.New("link points to a wiki that is not allowed")
)

// DefaultAllowedHosts covers the Wikimedia projects.
var DefaultAllowedHosts = HostAllowlist{
	"*.wikipedia.org",
	"*.wiktionary.org",
	"*.wikibooks.org",
	"*.wikinews.org",
	"*.wikiquote.org",
	"*.wikisource.org",
	"*.wikiversity.org",
	"*.wikivoyage.org",
	"*.wikimedia.org",
	"*.wikidata.org",
	"*.mediawiki.org",
}

// HostAllowlist holds exact host names and "*.domain" patterns matching any
// subdomain of domain.
type HostAllowlist []string

// Allows reports whether host, given without a port, is on the list.
func (l HostAllowlist) Allows(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return false
	}
	for _, pattern := range l {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		if domain, ok := strings.CutPrefix(pattern, "*."); ok {
			if strings.HasSuffix(host, "."+domain) {
				return true
			}
			continue
		}
		if host == pattern {
			return true
		}
	}
	return false
}

// ArticleRef locates an article: the Action API endpoint of its wiki and
// its title in display form.
type ArticleRef struct {
	APIURL string
	Title  string
}

// ParseArticleLink accepts /wiki/<Title> and /w/index.php?title=<Title> links
// on hosts the allowlist permits.
func ParseArticleLink(link string, allowed HostAllowlist) (*ArticleRef, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, ErrUnsupportedLink
	}
	if !allowed.Allows(u.Hostname()) {
		return nil, ErrHostNotAllowed
	}

	var title string
	switch {
	case strings.HasPrefix(u.Path, "/wiki/"):
		title = strings.TrimPrefix(u.Path, "/wiki/")
	case u.Path == "/w/index.php":
		title = u.Query().Get("title")
	}

	title = strings.TrimSpace(strings.ReplaceAll(title, "_", " "))
	if title == "" {
		return nil, ErrUnsupportedLink
	}

	return &ArticleRef{
		APIURL: u.Scheme + "://" + u.Host + "/w/api.php",
		Title:  title,
	}, nil
}
