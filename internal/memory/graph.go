package memory

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Vertex is a discovered page. ID equals its discovery order.
type Vertex struct {
	ID  int
	URL string
}

// Edge is a directed hyperlink from Src's page to Dest's page.
type Edge struct {
	Src  int
	Dest int
}

// String renders the edge in edge log form: "src,dest".
func (e Edge) String() string {
	return strconv.Itoa(e.Src) + "," + strconv.Itoa(e.Dest)
}

// ParseEdge parses an edge log record.
func ParseEdge(record string) (Edge, error) {
	srcStr, destStr, ok := strings.Cut(record, ",")
	if !ok {
		return Edge{}, fmt.Errorf("missing comma separator")
	}
	src, err := strconv.Atoi(srcStr)
	if err != nil {
		return Edge{}, fmt.Errorf("invalid source id: %w", err)
	}
	dest, err := strconv.Atoi(destStr)
	if err != nil {
		return Edge{}, fmt.Errorf("invalid destination id: %w", err)
	}
	if src < 0 || dest < 0 {
		return Edge{}, fmt.Errorf("negative vertex id")
	}
	return Edge{Src: src, Dest: dest}, nil
}

// Graph holds the deduplicated vertex list and edge set of a crawl,
// plus the vertices and edges discovered since the last flush.
//
// Graph is owned by a single crawl run and is not safe for concurrent use.
type Graph struct {
	urls     []string       // id -> url
	index    map[string]int // url -> id
	edges    map[Edge]struct{}
	edgeList []Edge // insertion order

	persistedVertices int // urls[:persistedVertices] are already on disk
	newEdges          []Edge
}

// NewGraph creates an empty graph
func NewGraph() *Graph {
	return &Graph{
		index: make(map[string]int),
		edges: make(map[Edge]struct{}),
	}
}

// LoadFromLog rebuilds a graph from vertex and edge log records. Vertex ids
// are assigned by record position. The loaded graph has nothing pending.
func LoadFromLog(vertexRecords, edgeRecords []string) (*Graph, error) {
	g := NewGraph()

	for i, record := range vertexRecords {
		if err := validVertexURL(record); err != nil {
			return nil, &IntegrityError{Log: "vertex log", Line: i + 1, Record: record, Reason: "malformed URL", Err: err}
		}
		if prev, exists := g.index[record]; exists {
			return nil, &IntegrityError{
				Log:    "vertex log",
				Line:   i + 1,
				Record: record,
				Reason: fmt.Sprintf("duplicate of vertex %d", prev),
			}
		}
		g.index[record] = len(g.urls)
		g.urls = append(g.urls, record)
	}

	for i, record := range edgeRecords {
		e, err := ParseEdge(record)
		if err != nil {
			return nil, &IntegrityError{Log: "edge log", Line: i + 1, Record: record, Reason: "malformed edge", Err: err}
		}
		if !g.validID(e.Src) || !g.validID(e.Dest) {
			return nil, &IntegrityError{
				Log:    "edge log",
				Line:   i + 1,
				Record: record,
				Reason: fmt.Sprintf("vertex id out of range [0,%d)", len(g.urls)),
			}
		}
		// A repeated record is absorbed; the set keeps one copy.
		if !g.hasEdge(e) {
			g.edges[e] = struct{}{}
			g.edgeList = append(g.edgeList, e)
		}
	}

	g.persistedVertices = len(g.urls)
	return g, nil
}

func validVertexURL(record string) error {
	if record == "" {
		return fmt.Errorf("empty record")
	}
	u, err := url.Parse(record)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("missing scheme or host")
	}
	return nil
}

// AddVertex returns the id of url, appending it as a new vertex if unseen.
// created reports whether the vertex was new.
func (g *Graph) AddVertex(url string) (id int, created bool) {
	if id, exists := g.index[url]; exists {
		return id, false
	}
	id = len(g.urls)
	g.urls = append(g.urls, url)
	g.index[url] = id
	return id, true
}

// AddEdge records src -> dest. It returns false if the edge already exists.
// Both endpoints must be existing vertex ids; anything else is a caller bug
// and panics.
func (g *Graph) AddEdge(src, dest int) bool {
	if !g.validID(src) || !g.validID(dest) {
		panic(fmt.Sprintf("memory: edge %d,%d references unknown vertex (have %d)", src, dest, len(g.urls)))
	}
	e := Edge{Src: src, Dest: dest}
	if g.hasEdge(e) {
		return false
	}
	g.edges[e] = struct{}{}
	g.edgeList = append(g.edgeList, e)
	g.newEdges = append(g.newEdges, e)
	return true
}

func (g *Graph) validID(id int) bool {
	return id >= 0 && id < len(g.urls)
}

// ID looks up the vertex id of url
func (g *Graph) ID(url string) (int, bool) {
	id, ok := g.index[url]
	return id, ok
}

func (g *Graph) hasEdge(e Edge) bool {
	_, ok := g.edges[e]
	return ok
}

// GetStats returns current graph statistics
func (g *Graph) GetStats() (vertexCount, edgeCount int) {
	return len(g.urls), len(g.edgeList)
}

// Vertices returns a copy of the vertex list, indexed by id.
func (g *Graph) Vertices() []Vertex {
	out := make([]Vertex, len(g.urls))
	for id, u := range g.urls {
		out[id] = Vertex{ID: id, URL: u}
	}
	return out
}

// Edges returns a copy of the edge set in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edgeList))
	copy(out, g.edgeList)
	return out
}

// Last returns the most recently discovered vertex.
func (g *Graph) Last() (Vertex, bool) {
	if len(g.urls) == 0 {
		return Vertex{}, false
	}
	id := len(g.urls) - 1
	return Vertex{ID: id, URL: g.urls[id]}, true
}

// PendingVertices returns vertices discovered since the last flush, in id order.
func (g *Graph) PendingVertices() []Vertex {
	out := make([]Vertex, 0, len(g.urls)-g.persistedVertices)
	for id := g.persistedVertices; id < len(g.urls); id++ {
		out = append(out, Vertex{ID: id, URL: g.urls[id]})
	}
	return out
}

// PendingEdges returns edges discovered since the last flush, in discovery order.
func (g *Graph) PendingEdges() []Edge {
	out := make([]Edge, len(g.newEdges))
	copy(out, g.newEdges)
	return out
}

// MarkVerticesPersisted clears the vertex discovery buffer.
func (g *Graph) MarkVerticesPersisted() {
	g.persistedVertices = len(g.urls)
}

// MarkEdgesPersisted clears the edge discovery buffer.
func (g *Graph) MarkEdgesPersisted() {
	g.newEdges = nil
}
