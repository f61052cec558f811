package storage

import (
	"database/sql"
	"fmt"

	"github.com/alvmarrod/sitegraph/internal/memory"
	_ "github.com/mattn/go-sqlite3"
)

// Storage mirrors the crawled graph into a SQLite database so it can be
// queried while a crawl is running. The text logs remain the source of truth.
type Storage struct {
	db *sql.DB
}

// NewStorage creates a new Storage instance, opening/creating the DB and initializing schema
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storage := &Storage{db: db}

	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// initSchema creates tables and indices if they don't exist
func (s *Storage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS vertices (
		vertex_id INTEGER PRIMARY KEY,
		url TEXT UNIQUE NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS edges (
		src_id INTEGER NOT NULL,
		dest_id INTEGER NOT NULL,
		FOREIGN KEY (src_id) REFERENCES vertices(vertex_id),
		FOREIGN KEY (dest_id) REFERENCES vertices(vertex_id),
		PRIMARY KEY (src_id, dest_id)
	);

	CREATE INDEX IF NOT EXISTS idx_edges_dest ON edges(dest_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Record inserts vertices and edges in a single transaction. Rows already
// present are left alone, so replaying a delta is harmless.
func (s *Storage) Record(vertices []memory.Vertex, edges []memory.Edge) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	vstmt, err := tx.Prepare("INSERT OR IGNORE INTO vertices (vertex_id, url) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare vertex insert: %w", err)
	}
	defer vstmt.Close()
	for _, v := range vertices {
		if _, err = vstmt.Exec(v.ID, v.URL); err != nil {
			return fmt.Errorf("failed to insert vertex %d: %w", v.ID, err)
		}
	}

	estmt, err := tx.Prepare("INSERT OR IGNORE INTO edges (src_id, dest_id) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare edge insert: %w", err)
	}
	defer estmt.Close()
	for _, e := range edges {
		if _, err = estmt.Exec(e.Src, e.Dest); err != nil {
			return fmt.Errorf("failed to insert edge %s: %w", e, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Counts returns how many vertices and edges the mirror holds
func (s *Storage) Counts() (vertices, edges int, err error) {
	if err := s.db.QueryRow("SELECT COUNT(*) FROM vertices").Scan(&vertices); err != nil {
		return 0, 0, fmt.Errorf("failed to count vertices: %w", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM edges").Scan(&edges); err != nil {
		return 0, 0, fmt.Errorf("failed to count edges: %w", err)
	}
	return vertices, edges, nil
}

// Reset deletes every row
func (s *Storage) Reset() error {
	if _, err := s.db.Exec("DELETE FROM edges; DELETE FROM vertices;"); err != nil {
		return fmt.Errorf("failed to reset database: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}
