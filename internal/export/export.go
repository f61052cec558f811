// Package export turns a crawl's logs into a single JSON document for
// consumers outside the crawler: the ordered vertex list, the edge list as
// [src,dest] pairs and a rank vector aligned by vertex id.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alvmarrod/sitegraph/internal/config"
	"github.com/alvmarrod/sitegraph/internal/memory"
	"github.com/alvmarrod/sitegraph/internal/persistence"
	"github.com/sirupsen/logrus"
)

// Document is the exported graph
type Document struct {
	Nodes    []string  `json:"nodes"`
	Edges    [][2]int  `json:"edges"`
	PageRank []float64 `json:"pagerank"`
}

// Load reads the vertex and edge logs named in cfg and, when rankPath is
// not empty, a rank vector with one number per line. The logs go through
// the same integrity checks as a crawl resume.
func Load(cfg *config.Config, rankPath string) (*Document, error) {
	vertexRecords, err := persistence.NewLog("vertex log", filepath.Join(cfg.DataDir, cfg.VertexFile)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read vertex log: %w", err)
	}
	edgeRecords, err := persistence.NewLog("edge log", filepath.Join(cfg.DataDir, cfg.EdgeFile)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read edge log: %w", err)
	}

	g, err := memory.LoadFromLog(vertexRecords, edgeRecords)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Nodes:    make([]string, 0, len(vertexRecords)),
		Edges:    make([][2]int, 0, len(edgeRecords)),
		PageRank: []float64{},
	}
	for _, v := range g.Vertices() {
		doc.Nodes = append(doc.Nodes, v.URL)
	}
	for _, e := range g.Edges() {
		doc.Edges = append(doc.Edges, [2]int{e.Src, e.Dest})
	}
	logrus.Infof("Read %d vertices and %d edges", len(doc.Nodes), len(doc.Edges))

	if rankPath == "" {
		return doc, nil
	}
	rank, err := readRank(rankPath)
	if err != nil {
		return nil, err
	}
	if len(rank) != len(doc.Nodes) {
		return nil, fmt.Errorf("rank vector has %d entries for %d vertices", len(rank), len(doc.Nodes))
	}
	doc.PageRank = rank
	logrus.Infof("Read %d-element rank vector", len(rank))
	return doc, nil
}

func readRank(path string) ([]float64, error) {
	records, err := persistence.NewLog("rank vector", path).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read rank vector: %w", err)
	}
	rank := make([]float64, len(records))
	for i, rec := range records {
		rank[i], err = strconv.ParseFloat(strings.TrimSpace(rec), 64)
		if err != nil {
			return nil, fmt.Errorf("rank vector line %d: %w", i+1, err)
		}
	}
	return rank, nil
}

// WriteFile serializes doc to path, indented four spaces
func (d *Document) WriteFile(path string) error {
	data, err := json.MarshalIndent(d, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logrus.Infof("Graph written to %s", path)
	return nil
}
