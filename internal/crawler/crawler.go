package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alvmarrod/sitegraph/internal/config"
	"github.com/alvmarrod/sitegraph/internal/memory"
	"github.com/sirupsen/logrus"
)

// StopReason says why a crawl run left the BFS loop
type StopReason string

const (
	StopFrontierEmpty StopReason = "frontier_empty"
	StopCancelled     StopReason = "cancelled"
	StopMaxVisits     StopReason = "max_visits"
)

// Delta is the progress made by one visit, reported to the metrics callback
type Delta struct {
	Visited            int
	VerticesDiscovered int
	EdgesRecorded      int
	PagesFetched       int
	PagesFailed        int
	LinksSkipped       int
	FetchDuration      time.Duration
}

// Result summarizes a finished run
type Result struct {
	Reason    StopReason
	Visited   int
	Remaining int // frontier size when the loop stopped
}

// Crawler drives the breadth-first crawl over a graph and its frontier
type Crawler struct {
	fetcher         Fetcher
	maxVisits       int
	checkpointEvery int
	checkpoint      func() error
	metricsCallback func(Delta)
}

// NewCrawler creates a new crawler instance
func NewCrawler(cfg *config.Config, fetcher Fetcher, metricsCallback func(Delta)) *Crawler {
	return &Crawler{
		fetcher:         fetcher,
		maxVisits:       cfg.MaxVisits,
		checkpointEvery: cfg.CheckpointEvery,
		metricsCallback: metricsCallback,
	}
}

// SetCheckpointer installs the function called every checkpoint_every visits.
func (c *Crawler) SetCheckpointer(fn func() error) {
	c.checkpoint = fn
}

// Run visits frontier entries in FIFO order until the frontier is empty,
// ctx is cancelled, or the visit cap is reached. Cancellation is only
// observed between visits: the page being processed is always finished,
// and its fetch is not interrupted.
func (c *Crawler) Run(ctx context.Context, g *memory.Graph, q *Queue) (Result, error) {
	var result Result

	logrus.Infof("Resuming BFS with %d vertices queued (interrupt to stop early)", q.Size())

	for {
		if q.IsEmpty() {
			result.Reason = StopFrontierEmpty
			break
		}
		if ctx.Err() != nil {
			result.Reason = StopCancelled
			break
		}
		if c.maxVisits > 0 && result.Visited >= c.maxVisits {
			result.Reason = StopMaxVisits
			break
		}

		if err := c.visit(ctx, g, q); err != nil {
			result.Remaining = q.Size()
			return result, err
		}
		result.Visited++

		if c.checkpoint != nil && c.checkpointEvery > 0 && result.Visited%c.checkpointEvery == 0 {
			if err := c.checkpoint(); err != nil {
				logrus.Errorf("Checkpoint after %d visits failed: %v", result.Visited, err)
			}
		}
	}

	result.Remaining = q.Size()
	logrus.Infof("BFS terminated (%s) after %d visits with %d vertices left in the queue",
		result.Reason, result.Visited, result.Remaining)
	return result, nil
}

// visit processes the frontier head: fetch, record outlinks, then pop.
func (c *Crawler) visit(ctx context.Context, g *memory.Graph, q *Queue) error {
	pageURL, ok := q.Peek()
	if !ok {
		return ErrEmptyQueue
	}
	src, ok := g.ID(pageURL)
	if !ok {
		return fmt.Errorf("frontier head %s is not a known vertex", pageURL)
	}

	logrus.Infof("%d vertices queued. Visiting %s", q.Size(), pageURL)

	delta := Delta{Visited: 1}
	res, err := c.fetcher.Fetch(context.WithoutCancel(ctx), pageURL)
	delta.FetchDuration = res.Duration
	if err != nil {
		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) {
			err = &FetchError{URL: pageURL, Err: err}
		}
		logrus.Warnf("Treating %s as having no links: %v", pageURL, err)
		delta.PagesFailed = 1
		res = FetchResult{}
	} else {
		delta.PagesFetched = 1
		delta.LinksSkipped = len(res.Skipped)
	}

	for _, link := range res.Links {
		dest, created := g.AddVertex(link)
		if created {
			q.Push(link)
			delta.VerticesDiscovered++
		}
		if g.AddEdge(src, dest) {
			delta.EdgesRecorded++
		}
	}

	if _, err := q.Pop(); err != nil {
		return err
	}

	if c.metricsCallback != nil {
		c.metricsCallback(delta)
	}
	return nil
}
