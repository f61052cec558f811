package crawler

import (
	"net/url"
	"testing"

	"github.com/alvmarrod/sitegraph/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScope(t *testing.T) Scope {
	t.Helper()
	s, err := NewScope(&config.Config{
		RootURL:       "https://www.uc.edu/",
		AllowedScheme: "https",
		AllowedHost:   "www.uc.edu",
	})
	require.NoError(t, err)
	return s
}

func TestNewScopeNormalizesRoot(t *testing.T) {
	s := testScope(t)
	assert.Equal(t, "https://www.uc.edu", s.Root)
}

func TestNewScopeRejectsOutOfScopeRoot(t *testing.T) {
	_, err := NewScope(&config.Config{
		RootURL:       "https://example.org",
		AllowedScheme: "https",
		AllowedHost:   "www.uc.edu",
	})
	require.Error(t, err)
}

func TestScopeNormalize(t *testing.T) {
	s := testScope(t)
	base, err := url.Parse("https://www.uc.edu/news/today")
	require.NoError(t, err)

	tests := []struct {
		name   string
		href   string
		want   string
		reason SkipReason
	}{
		{"absolute", "https://www.uc.edu/about", "https://www.uc.edu/about", ""},
		{"trailing slash", "https://www.uc.edu/about/", "https://www.uc.edu/about", ""},
		{"root slash", "https://www.uc.edu/", "https://www.uc.edu", ""},
		{"relative", "archive", "https://www.uc.edu/news/archive", ""},
		{"absolute path", "/admissions/", "https://www.uc.edu/admissions", ""},
		{"query and fragment dropped", "/search?q=x#top", "https://www.uc.edu/search", ""},
		{"uppercase host", "HTTPS://WWW.UC.EDU/Path", "https://www.uc.edu/Path", ""},
		{"default port", "https://www.uc.edu:443/a", "https://www.uc.edu/a", ""},
		{"empty", "  ", "", SkipEmpty},
		{"fragment only", "#section", "", SkipEmpty},
		{"other scheme", "http://www.uc.edu/a", "", SkipScheme},
		{"mailto", "mailto:someone@uc.edu", "", SkipScheme},
		{"javascript", "javascript:void(0)", "", SkipScheme},
		{"other host", "https://example.org/a", "", SkipHost},
		{"subdomain", "https://news.uc.edu/a", "", SkipHost},
		{"malformed", "https://www.uc.edu/%zz", "", SkipMalformed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := s.Normalize(base, tc.href)
			assert.Equal(t, tc.reason, out.Reason)
			assert.Equal(t, tc.want, out.URL)
			assert.Equal(t, tc.reason == "", out.Valid())
			assert.Equal(t, tc.href, out.Href)
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	got, err := NormalizeURL("HTTP://Example.org:80/a/b/?x=1")
	require.NoError(t, err)
	assert.Equal(t, "http://example.org/a/b", got)

	_, err = NormalizeURL("/relative")
	require.Error(t, err)
}

func TestLinkOutcomeString(t *testing.T) {
	assert.Equal(t, "https://www.uc.edu/a", LinkOutcome{URL: "https://www.uc.edu/a"}.String())
	assert.Contains(t, LinkOutcome{Href: "x", Reason: SkipHost}.String(), "host")
}
