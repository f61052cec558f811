package crawler

import (
	"context"
	"errors"
	"testing"

	"github.com/alvmarrod/sitegraph/internal/config"
	"github.com/alvmarrod/sitegraph/internal/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	root = "https://example.org"
	pa   = "https://example.org/a"
	pb   = "https://example.org/b"
	pc   = "https://example.org/c"
	pd   = "https://example.org/d"
)

// stubFetcher returns canned links keyed by URL and records visit order.
type stubFetcher struct {
	pages   map[string][]string
	fail    map[string]error
	calls   []string
	onFetch func(url string)
}

func (s *stubFetcher) Fetch(_ context.Context, pageURL string) (FetchResult, error) {
	s.calls = append(s.calls, pageURL)
	if s.onFetch != nil {
		s.onFetch(pageURL)
	}
	if err, ok := s.fail[pageURL]; ok {
		return FetchResult{}, err
	}
	return FetchResult{Links: s.pages[pageURL]}, nil
}

func seeded() (*memory.Graph, *Queue) {
	g := memory.NewGraph()
	g.AddVertex(root)
	q := NewQueue()
	q.Push(root)
	return g, q
}

func TestRunFirstIteration(t *testing.T) {
	g, q := seeded()
	f := &stubFetcher{pages: map[string][]string{root: {pa, pb}}}
	c := NewCrawler(&config.Config{MaxVisits: 1}, f, nil)

	res, err := c.Run(context.Background(), g, q)
	require.NoError(t, err)

	assert.Equal(t, StopMaxVisits, res.Reason)
	assert.Equal(t, 1, res.Visited)
	assert.Equal(t, 2, res.Remaining)
	assert.Equal(t, []memory.Vertex{{ID: 0, URL: root}, {ID: 1, URL: pa}, {ID: 2, URL: pb}}, g.Vertices())
	assert.Equal(t, []memory.Edge{{Src: 0, Dest: 1}, {Src: 0, Dest: 2}}, g.Edges())
	assert.Equal(t, []string{pa, pb}, q.Snapshot())
}

func TestRunCycleDoesNotRequeueVisited(t *testing.T) {
	g, q := seeded()
	f := &stubFetcher{pages: map[string][]string{
		root: {pa, pb},
		pa:   {root, root},
	}}
	c := NewCrawler(&config.Config{MaxVisits: 2}, f, nil)

	_, err := c.Run(context.Background(), g, q)
	require.NoError(t, err)

	vertices, edges := g.GetStats()
	assert.Equal(t, 3, vertices)
	assert.Equal(t, 3, edges)
	assert.Contains(t, g.Edges(), memory.Edge{Src: 1, Dest: 0})
	assert.Equal(t, []string{pb}, q.Snapshot())
	assert.False(t, q.Contains(root))
}

func TestRunVisitsInBFSOrder(t *testing.T) {
	// root -> a, b ; a -> c ; b -> d ; c -> root
	g, q := seeded()
	f := &stubFetcher{pages: map[string][]string{
		root: {pa, pb},
		pa:   {pc},
		pb:   {pd, pa},
		pc:   {root},
	}}
	c := NewCrawler(&config.Config{}, f, nil)

	res, err := c.Run(context.Background(), g, q)
	require.NoError(t, err)

	assert.Equal(t, StopFrontierEmpty, res.Reason)
	assert.Equal(t, 5, res.Visited)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, []string{root, pa, pb, pc, pd}, f.calls)

	ids := make(map[string]int)
	for _, v := range g.Vertices() {
		ids[v.URL] = v.ID
	}
	assert.Equal(t, map[string]int{root: 0, pa: 1, pb: 2, pc: 3, pd: 4}, ids)
	assert.ElementsMatch(t, []memory.Edge{{Src: 0, Dest: 1}, {Src: 0, Dest: 2}, {Src: 1, Dest: 3}, {Src: 2, Dest: 4}, {Src: 2, Dest: 1}, {Src: 3, Dest: 0}}, g.Edges())
}

func TestRunStopsAfterCurrentVertexOnCancel(t *testing.T) {
	g, q := seeded()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := &stubFetcher{pages: map[string][]string{
		root: {pa, pb},
		pa:   {root, pc},
	}}
	f.onFetch = func(u string) {
		if u == pa {
			cancel()
		}
	}
	c := NewCrawler(&config.Config{}, f, nil)

	res, err := c.Run(ctx, g, q)
	require.NoError(t, err)

	assert.Equal(t, StopCancelled, res.Reason)
	assert.Equal(t, 2, res.Visited)
	// a was finished completely, including its new vertex c.
	assert.Equal(t, []string{pb, pc}, q.Snapshot())
	assert.Contains(t, g.Edges(), memory.Edge{Src: 1, Dest: 0})
	assert.Contains(t, g.Edges(), memory.Edge{Src: 1, Dest: 3})
	assert.Equal(t, []string{root, pa}, f.calls)
}

func TestRunCancelledBeforeStart(t *testing.T) {
	g, q := seeded()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &stubFetcher{}
	res, err := NewCrawler(&config.Config{}, f, nil).Run(ctx, g, q)
	require.NoError(t, err)
	assert.Equal(t, StopCancelled, res.Reason)
	assert.Empty(t, f.calls)
	assert.Equal(t, 1, res.Remaining)
}

func TestRunRecoversFromFetchErrors(t *testing.T) {
	g, q := seeded()
	f := &stubFetcher{
		pages: map[string][]string{root: {pa, pb}, pb: {pc}},
		fail:  map[string]error{pa: errors.New("connection reset")},
	}

	var deltas []Delta
	c := NewCrawler(&config.Config{}, f, func(d Delta) { deltas = append(deltas, d) })

	res, err := c.Run(context.Background(), g, q)
	require.NoError(t, err)

	assert.Equal(t, StopFrontierEmpty, res.Reason)
	assert.Equal(t, 4, res.Visited)
	assert.Equal(t, []string{root, pa, pb, pc}, f.calls, "failed page is popped, not retried")

	require.Len(t, deltas, 4)
	assert.Equal(t, 1, deltas[1].PagesFailed)
	assert.Equal(t, 0, deltas[1].PagesFetched)
	assert.Equal(t, 2, deltas[0].VerticesDiscovered)
	assert.Equal(t, 2, deltas[0].EdgesRecorded)
}

func TestRunRediscoveryAddsNothing(t *testing.T) {
	g, q := seeded()
	f := &stubFetcher{pages: map[string][]string{root: {pa, pb}}}
	c := NewCrawler(&config.Config{}, f, nil)

	_, err := c.Run(context.Background(), g, q)
	require.NoError(t, err)
	vBefore, eBefore := g.GetStats()

	// Revisit root with the same links.
	q.Push(root)
	_, err = c.Run(context.Background(), g, q)
	require.NoError(t, err)

	vAfter, eAfter := g.GetStats()
	assert.Equal(t, vBefore, vAfter)
	assert.Equal(t, eBefore, eAfter)
}

func TestRunCheckpointsEveryN(t *testing.T) {
	g, q := seeded()
	f := &stubFetcher{pages: map[string][]string{root: {pa, pb, pc, pd}}}
	c := NewCrawler(&config.Config{CheckpointEvery: 2}, f, nil)

	var checkpoints []int
	c.SetCheckpointer(func() error {
		checkpoints = append(checkpoints, q.Size())
		return errors.New("disk full") // logged, not fatal
	})

	res, err := c.Run(context.Background(), g, q)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Visited)
	assert.Equal(t, []int{3, 1}, checkpoints)
}

func TestRunUnknownFrontierHead(t *testing.T) {
	g := memory.NewGraph()
	q := NewQueue()
	q.Push(root)

	_, err := NewCrawler(&config.Config{}, &stubFetcher{}, nil).Run(context.Background(), g, q)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a known vertex")
}
