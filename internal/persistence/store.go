// Package persistence keeps a crawl session on disk as three text logs:
// an append-only vertex log (line number = vertex id), an append-only edge
// log ("src,dest" per line) and a frontier snapshot rewritten in full on
// every flush (head first).
//
// A run reconstructs its session with Resume and writes back only what it
// discovered with Flush. Run wraps both so the flush happens on every exit
// path, panics included. A process killed outright loses whatever was not
// flushed or checkpointed.
package persistence

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alvmarrod/sitegraph/internal/config"
	"github.com/alvmarrod/sitegraph/internal/crawler"
	"github.com/alvmarrod/sitegraph/internal/memory"
	"github.com/sirupsen/logrus"
)

// ErrAlreadyFlushed is returned by a second Flush of the same session
var ErrAlreadyFlushed = errors.New("session already flushed")

// Mirror receives every committed delta. It is a secondary copy of the
// graph; the logs stay authoritative.
type Mirror interface {
	Record(vertices []memory.Vertex, edges []memory.Edge) error
	Counts() (vertices, edges int, err error)
	Reset() error
}

// Session is the in-memory crawl state owned by one run
type Session struct {
	Graph    *memory.Graph
	Frontier *crawler.Queue

	flushed bool
}

// Store owns the three logs of a crawl
type Store struct {
	dir      string
	root     string
	vertices *Log
	edges    *Log
	frontier *Log
	mirror   Mirror
}

// NewStore creates a store for the logs named in cfg. root is the
// normalized URL used to seed fresh state.
func NewStore(cfg *config.Config, root string) *Store {
	return &Store{
		dir:      cfg.DataDir,
		root:     root,
		vertices: NewLog("vertex log", filepath.Join(cfg.DataDir, cfg.VertexFile)),
		edges:    NewLog("edge log", filepath.Join(cfg.DataDir, cfg.EdgeFile)),
		frontier: NewLog("frontier snapshot", filepath.Join(cfg.DataDir, cfg.FrontierFile)),
	}
}

// SetMirror attaches a secondary graph copy updated on every commit
func (s *Store) SetMirror(m Mirror) {
	s.mirror = m
}

// Exists reports whether a vertex log has been written yet
func (s *Store) Exists() (bool, error) {
	return s.vertices.Exists()
}

// Reset discards all persisted state and seeds it with the root URL:
// vertex log and frontier hold the root, the edge log is empty.
func (s *Store) Reset() error {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := s.edges.Rewrite(nil); err != nil {
		return err
	}
	if err := s.vertices.Rewrite([]string{s.root}); err != nil {
		return err
	}
	if err := s.frontier.Rewrite([]string{s.root}); err != nil {
		return err
	}

	if s.mirror != nil {
		if err := s.mirror.Reset(); err != nil {
			logrus.Warnf("Failed to reset graph mirror: %v", err)
		} else if err := s.mirror.Record([]memory.Vertex{{ID: 0, URL: s.root}}, nil); err != nil {
			logrus.Warnf("Failed to seed graph mirror: %v", err)
		}
	}

	logrus.Infof("Crawl state reset, seeded with %s", s.root)
	return nil
}

// Resume rebuilds the session from the logs. Missing, truncated or
// inconsistent logs yield a *memory.IntegrityError.
func (s *Store) Resume() (*Session, error) {
	vertexRecords, err := s.read(s.vertices)
	if err != nil {
		return nil, err
	}
	edgeRecords, err := s.read(s.edges)
	if err != nil {
		return nil, err
	}
	frontierRecords, err := s.read(s.frontier)
	if err != nil {
		return nil, err
	}

	g, err := memory.LoadFromLog(vertexRecords, edgeRecords)
	if err != nil {
		return nil, err
	}
	last, ok := g.Last()
	if !ok {
		return nil, &memory.IntegrityError{Log: s.vertices.Name(), Reason: "no vertices"}
	}

	q := crawler.NewQueue()
	for i, u := range frontierRecords {
		if _, known := g.ID(u); !known {
			return nil, &memory.IntegrityError{
				Log:    s.frontier.Name(),
				Line:   i + 1,
				Record: u,
				Reason: "not a known vertex",
			}
		}
		q.Push(u)
	}
	if q.IsEmpty() {
		logrus.Infof("Frontier is empty, continuing from latest vertex %s", last.URL)
		q.Push(last.URL)
	}

	vertices, edges := g.GetStats()
	logrus.Infof("Resumed crawl: %d vertices, %d edges, %d queued", vertices, edges, q.Size())

	s.syncMirror(g)
	return &Session{Graph: g, Frontier: q}, nil
}

func (s *Store) read(l *Log) ([]string, error) {
	records, err := l.ReadAll()
	switch {
	case err == nil:
		return records, nil
	case errors.Is(err, ErrTruncated):
		return nil, &memory.IntegrityError{Log: l.Name(), Line: len(records) + 1, Reason: "truncated", Err: err}
	case errors.Is(err, os.ErrNotExist):
		return nil, &memory.IntegrityError{Log: l.Name(), Reason: "missing", Err: err}
	default:
		return nil, &memory.IntegrityError{Log: l.Name(), Reason: "unreadable", Err: err}
	}
}

// Flush appends the session's discoveries, rewrites the frontier snapshot
// with what is left to visit and empties the in-memory frontier. A session
// is flushed once.
func (s *Store) Flush(sess *Session) error {
	if sess.flushed {
		return ErrAlreadyFlushed
	}
	sess.flushed = true

	if err := s.commit(sess, sess.Frontier.Snapshot()); err != nil {
		return err
	}
	sess.Frontier.Drain()
	return nil
}

// Checkpoint persists the session like Flush but keeps the frontier in
// memory so the run can continue.
func (s *Store) Checkpoint(sess *Session) error {
	if sess.flushed {
		return ErrAlreadyFlushed
	}
	if err := s.commit(sess, sess.Frontier.Snapshot()); err != nil {
		return err
	}
	logrus.Debugf("Checkpoint written with %d vertices queued", sess.Frontier.Size())
	return nil
}

// commit writes vertices before edges before the frontier, stopping at the
// first failure, so every edge and frontier entry on disk refers to a vertex
// already on disk.
func (s *Store) commit(sess *Session, frontier []string) error {
	vertices := sess.Graph.PendingVertices()
	edges := sess.Graph.PendingEdges()

	urls := make([]string, len(vertices))
	for i, v := range vertices {
		urls[i] = v.URL
	}
	if err := s.vertices.Append(urls); err != nil {
		return err
	}
	sess.Graph.MarkVerticesPersisted()

	records := make([]string, len(edges))
	for i, e := range edges {
		records[i] = e.String()
	}
	if err := s.edges.Append(records); err != nil {
		return err
	}
	sess.Graph.MarkEdgesPersisted()

	if err := s.frontier.Rewrite(frontier); err != nil {
		return err
	}

	if s.mirror != nil && (len(vertices) > 0 || len(edges) > 0) {
		if err := s.mirror.Record(vertices, edges); err != nil {
			logrus.Warnf("Failed to update graph mirror: %v", err)
		}
	}

	logrus.Infof("Flushed %d new vertices, %d new edges, %d queued", len(vertices), len(edges), len(frontier))
	return nil
}

// syncMirror backfills the mirror when it lags the logs, e.g. after it was
// first enabled on an existing crawl.
func (s *Store) syncMirror(g *memory.Graph) {
	if s.mirror == nil {
		return
	}
	mv, me, err := s.mirror.Counts()
	if err != nil {
		logrus.Warnf("Failed to inspect graph mirror: %v", err)
		return
	}
	nv, ne := g.GetStats()
	if mv == nv && me == ne {
		return
	}
	if mv > nv || me > ne {
		// The mirror belongs to a different crawl; start it over.
		if err := s.mirror.Reset(); err != nil {
			logrus.Warnf("Failed to reset graph mirror: %v", err)
			return
		}
	}
	logrus.Infof("Backfilling graph mirror (%d/%d vertices, %d/%d edges)", mv, nv, me, ne)
	if err := s.mirror.Record(g.Vertices(), g.Edges()); err != nil {
		logrus.Warnf("Failed to backfill graph mirror: %v", err)
	}
}

// Run resumes a session, hands it to fn and flushes it however fn exits.
// Flush errors are joined to fn's error; a panic in fn still flushes
// before it propagates.
func (s *Store) Run(fn func(*Session) error) (err error) {
	sess, err := s.Resume()
	if err != nil {
		return err
	}

	defer func() {
		if ferr := s.Flush(sess); ferr != nil {
			err = errors.Join(err, fmt.Errorf("flush crawl state: %w", ferr))
		}
	}()

	return fn(sess)
}
