package crawler

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/alvmarrod/sitegraph/internal/config"
)

// SkipReason explains why an extracted link was not kept
type SkipReason string

const (
	SkipEmpty     SkipReason = "empty"     // blank or fragment-only href
	SkipMalformed SkipReason = "malformed" // unparseable or missing host
	SkipScheme    SkipReason = "scheme"
	SkipHost      SkipReason = "host"
)

// LinkOutcome is the result of normalizing one extracted href: either a
// normalized URL or the reason it was skipped.
type LinkOutcome struct {
	Href   string
	URL    string
	Reason SkipReason
	Err    error
}

// Valid reports whether the link was kept
func (o LinkOutcome) Valid() bool {
	return o.Reason == ""
}

func (o LinkOutcome) String() string {
	if o.Valid() {
		return o.URL
	}
	if o.Err != nil {
		return fmt.Sprintf("%q skipped (%s): %v", o.Href, o.Reason, o.Err)
	}
	return fmt.Sprintf("%q skipped (%s)", o.Href, o.Reason)
}

// Scope restricts the crawl to one scheme and host and normalizes URLs
// to scheme://host/path with the trailing slash stripped.
type Scope struct {
	Scheme string
	Host   string
	Root   string // normalized root URL
}

// NewScope builds the crawl scope from configuration
func NewScope(cfg *config.Config) (Scope, error) {
	s := Scope{
		Scheme: strings.ToLower(cfg.AllowedScheme),
		Host:   canonicalHost(strings.ToLower(cfg.AllowedScheme), cfg.AllowedHost),
	}
	root, err := NormalizeURL(cfg.RootURL)
	if err != nil {
		return Scope{}, fmt.Errorf("invalid root URL: %w", err)
	}
	if out := s.Normalize(nil, root); !out.Valid() {
		return Scope{}, fmt.Errorf("root URL %s is outside the crawl scope: %s", cfg.RootURL, out)
	}
	s.Root = root
	return s, nil
}

// Normalize resolves href against base (which may be nil) and checks it
// against the scope.
func (s Scope) Normalize(base *url.URL, href string) LinkOutcome {
	out := LinkOutcome{Href: href}

	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		out.Reason = SkipEmpty
		return out
	}

	u, err := url.Parse(href)
	if err != nil {
		out.Reason = SkipMalformed
		out.Err = err
		return out
	}
	if base != nil {
		u = base.ResolveReference(u)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != s.Scheme {
		out.Reason = SkipScheme
		return out
	}
	if u.Host == "" {
		out.Reason = SkipMalformed
		out.Err = fmt.Errorf("missing host")
		return out
	}
	if canonicalHost(scheme, u.Host) != s.Host {
		out.Reason = SkipHost
		return out
	}

	out.URL = format(scheme, canonicalHost(scheme, u.Host), u)
	return out
}

// NormalizeURL reduces an absolute URL to scheme://host/path with the
// trailing slash stripped, dropping query, fragment and default port.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q must be absolute", rawURL)
	}
	scheme := strings.ToLower(u.Scheme)
	return format(scheme, canonicalHost(scheme, u.Host), u), nil
}

func format(scheme, host string, u *url.URL) string {
	path := strings.TrimRight(u.EscapedPath(), "/")
	return scheme + "://" + host + path
}

// canonicalHost lowercases host and removes the scheme's default port
func canonicalHost(scheme, host string) string {
	host = strings.ToLower(host)
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	return host
}
