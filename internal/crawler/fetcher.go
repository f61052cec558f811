package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alvmarrod/sitegraph/internal/config"
	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

// Fetcher turns a page URL into its outbound links
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (FetchResult, error)
}

// FetchResult holds the in-scope links of a page, deduplicated and in
// document order, plus every link that was dropped.
type FetchResult struct {
	Links      []string
	Skipped    []LinkOutcome
	StatusCode int
	Duration   time.Duration
}

// FetchError reports that a single page could not be fetched or parsed
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// CollyFetcher implements Fetcher with a synchronous Colly collector
type CollyFetcher struct {
	scope Scope
	base  *colly.Collector
}

// NewCollyFetcher configures the collector used for every fetch
func NewCollyFetcher(cfg *config.Config, scope Scope) *CollyFetcher {
	c := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.MaxDepth(0), // depth is the frontier's business
	)
	// Resumed runs may revisit a page on purpose.
	c.AllowURLRevisit = true
	// 0 disables the timeout.
	c.SetRequestTimeout(time.Duration(cfg.RequestTimeoutMs) * time.Millisecond)

	return &CollyFetcher{
		scope: scope,
		base:  c,
	}
}

// Fetch downloads pageURL and extracts its a[href] links
func (f *CollyFetcher) Fetch(ctx context.Context, pageURL string) (FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return FetchResult{}, &FetchError{URL: pageURL, Err: err}
	}

	var (
		result   FetchResult
		fetchErr error
		seen     = make(map[string]struct{})
	)
	start := time.Now()
	collector := f.base.Clone()

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		out := f.scope.Normalize(e.Request.URL, e.Attr("href"))
		if !out.Valid() {
			result.Skipped = append(result.Skipped, out)
			logrus.Debugf("Link on %s: %s", pageURL, out)
			return
		}
		if _, dup := seen[out.URL]; dup {
			return
		}
		seen[out.URL] = struct{}{}
		result.Links = append(result.Links, out.URL)
	})

	collector.OnResponse(func(r *colly.Response) {
		result.StatusCode = r.StatusCode
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.StatusCode = r.StatusCode
		}
		if err == nil {
			err = errors.New("unknown colly error")
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(pageURL)
	}()

	select {
	case <-ctx.Done():
		return FetchResult{}, &FetchError{URL: pageURL, Err: ctx.Err()}
	case err := <-done:
		result.Duration = time.Since(start)
		if err == nil {
			err = fetchErr
		}
		if err != nil {
			return result, &FetchError{URL: pageURL, StatusCode: result.StatusCode, Err: err}
		}
		return result, nil
	}
}
