package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/alvmarrod/sitegraph/internal/crawler"
	"github.com/alvmarrod/sitegraph/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
)

// Tracker holds and manages crawl metrics for one run. Besides the JSON
// summary it keeps Prometheus collectors on a private registry, written
// out as a node-exporter textfile.
type Tracker struct {
	mu               sync.Mutex
	data             storage.Metrics
	totalFetchTimeMs int64
	fetchCount       int

	registry      *prometheus.Registry
	visited       prometheus.Counter
	discovered    prometheus.Counter
	edges         prometheus.Counter
	fetches       *prometheus.CounterVec
	linksSkipped  prometheus.Counter
	fetchDuration prometheus.Histogram
}

// NewTracker creates a new metrics tracker labelled with runID
func NewTracker(runID string) *Tracker {
	t := &Tracker{
		data: storage.Metrics{
			RunID:     runID,
			StartTime: time.Now(),
		},
		registry: prometheus.NewRegistry(),
		visited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sitegraph_vertices_visited_total",
			Help: "Frontier entries visited.",
		}),
		discovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sitegraph_vertices_discovered_total",
			Help: "New vertices added to the graph.",
		}),
		edges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sitegraph_edges_recorded_total",
			Help: "New edges added to the graph.",
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitegraph_page_fetches_total",
			Help: "Page fetches partitioned by result.",
		}, []string{"result"}),
		linksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sitegraph_links_skipped_total",
			Help: "Anchors dropped as empty, malformed or out of scope.",
		}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sitegraph_fetch_duration_seconds",
			Help:    "Wall time per page fetch.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
	}

	reg := prometheus.WrapRegistererWith(prometheus.Labels{"run_id": runID}, t.registry)
	reg.MustRegister(t.visited, t.discovered, t.edges, t.fetches, t.linksSkipped, t.fetchDuration)
	return t
}

// Callback folds one visit's delta into the counters. It is handed to the
// crawler as its metrics callback.
func (t *Tracker) Callback(d crawler.Delta) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.data.VerticesVisited += d.Visited
	t.data.VerticesDiscovered += d.VerticesDiscovered
	t.data.EdgesRecorded += d.EdgesRecorded
	t.data.PagesFetched += d.PagesFetched
	t.data.PagesFailed += d.PagesFailed
	t.data.LinksSkipped += d.LinksSkipped

	t.visited.Add(float64(d.Visited))
	t.discovered.Add(float64(d.VerticesDiscovered))
	t.edges.Add(float64(d.EdgesRecorded))
	t.fetches.WithLabelValues("ok").Add(float64(d.PagesFetched))
	t.fetches.WithLabelValues("failed").Add(float64(d.PagesFailed))
	t.linksSkipped.Add(float64(d.LinksSkipped))

	if d.PagesFetched+d.PagesFailed > 0 {
		t.totalFetchTimeMs += d.FetchDuration.Milliseconds()
		t.fetchCount++
		t.fetchDuration.Observe(d.FetchDuration.Seconds())
	}
}

// GetSnapshot returns a copy of current metrics
func (t *Tracker) GetSnapshot() storage.Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

func (t *Tracker) snapshot() storage.Metrics {
	snapshot := t.data
	snapshot.TotalFetchTimeMs = t.totalFetchTimeMs
	if t.fetchCount > 0 {
		snapshot.AvgFetchTimeMs = t.totalFetchTimeMs / int64(t.fetchCount)
	}
	return snapshot
}

// WriteToFile exports metrics to a JSON file
func (t *Tracker) WriteToFile(path, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.data.EndTime = time.Now()
	t.data.TerminationReason = reason

	jsonData, err := json.MarshalIndent(t.snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}

	return nil
}

// WriteTextfile writes the Prometheus collectors in text exposition format
func (t *Tracker) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, t.registry); err != nil {
		return fmt.Errorf("failed to write prometheus textfile: %w", err)
	}
	return nil
}

// LogProgress prints current metrics to console (for periodic updates)
func (t *Tracker) LogProgress() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return fmt.Sprintf("Vertices: %d discovered, %d visited | Edges: %d | Pages: %d fetched, %d failed | Links skipped: %d",
		t.data.VerticesDiscovered,
		t.data.VerticesVisited,
		t.data.EdgesRecorded,
		t.data.PagesFetched,
		t.data.PagesFailed,
		t.data.LinksSkipped,
	)
}
