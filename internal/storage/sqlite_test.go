package storage

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/alvmarrod/sitegraph/internal/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// outlinks returns the destination ids of src's edges in ascending order
func outlinks(t *testing.T, s *Storage, src int) []int {
	t.Helper()
	rows, err := s.db.Query("SELECT dest_id FROM edges WHERE src_id = ? ORDER BY dest_id", src)
	require.NoError(t, err)
	defer rows.Close()

	var dests []int
	for rows.Next() {
		var dest int
		require.NoError(t, rows.Scan(&dest))
		dests = append(dests, dest)
	}
	require.NoError(t, rows.Err())
	return dests
}

func TestRecordAndQuery(t *testing.T) {
	s := newTestStorage(t)

	vertices := []memory.Vertex{
		{ID: 0, URL: "https://example.org"},
		{ID: 1, URL: "https://example.org/a"},
		{ID: 2, URL: "https://example.org/b"},
	}
	edges := []memory.Edge{{Src: 0, Dest: 2}, {Src: 0, Dest: 1}, {Src: 1, Dest: 0}}
	require.NoError(t, s.Record(vertices, edges))

	nv, ne, err := s.Counts()
	require.NoError(t, err)
	assert.Equal(t, 3, nv)
	assert.Equal(t, 3, ne)

	var (
		id        int
		createdAt time.Time
	)
	require.NoError(t, s.db.QueryRow("SELECT vertex_id, created_at FROM vertices WHERE url = ?", "https://example.org/a").
		Scan(&id, &createdAt))
	assert.Equal(t, 1, id)
	assert.False(t, createdAt.IsZero())

	err = s.db.QueryRow("SELECT vertex_id FROM vertices WHERE url = ?", "https://example.org/zzz").Scan(&id)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	assert.Equal(t, []int{1, 2}, outlinks(t, s, 0))
}

func TestRecordIsIdempotent(t *testing.T) {
	s := newTestStorage(t)

	vertices := []memory.Vertex{{ID: 0, URL: "https://example.org"}, {ID: 1, URL: "https://example.org/a"}}
	edges := []memory.Edge{{Src: 0, Dest: 1}}
	require.NoError(t, s.Record(vertices, edges))
	require.NoError(t, s.Record(vertices, edges))

	nv, ne, err := s.Counts()
	require.NoError(t, err)
	assert.Equal(t, 2, nv)
	assert.Equal(t, 1, ne)
}

func TestReset(t *testing.T) {
	s := newTestStorage(t)
	require.NoError(t, s.Record([]memory.Vertex{{ID: 0, URL: "https://example.org"}}, []memory.Edge{{Src: 0, Dest: 0}}))

	require.NoError(t, s.Reset())
	nv, ne, err := s.Counts()
	require.NoError(t, err)
	assert.Zero(t, nv)
	assert.Zero(t, ne)
}

func TestReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.db")
	s, err := NewStorage(path)
	require.NoError(t, err)
	require.NoError(t, s.Record([]memory.Vertex{{ID: 0, URL: "https://example.org"}}, nil))
	require.NoError(t, s.Close())

	s, err = NewStorage(path)
	require.NoError(t, err)
	defer s.Close()

	nv, _, err := s.Counts()
	require.NoError(t, err)
	assert.Equal(t, 1, nv)
}
