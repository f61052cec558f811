package storage

import "time"

// Metrics holds one run's crawl statistics for export on exit
type Metrics struct {
	RunID              string    `json:"run_id"`
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time"`
	VerticesDiscovered int       `json:"vertices_discovered"`
	VerticesVisited    int       `json:"vertices_visited"`
	EdgesRecorded      int       `json:"edges_recorded"`
	PagesFetched       int       `json:"pages_fetched"`
	PagesFailed        int       `json:"pages_failed"`
	LinksSkipped       int       `json:"links_skipped"`
	TotalFetchTimeMs   int64     `json:"total_fetch_time_ms"`
	AvgFetchTimeMs     int64     `json:"avg_fetch_time_ms"`
	TerminationReason  string    `json:"termination_reason"`
}
