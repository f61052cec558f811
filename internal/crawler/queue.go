package crawler

import "errors"

// ErrEmptyQueue is returned when popping from an empty frontier
var ErrEmptyQueue = errors.New("frontier queue is empty")

// Queue is the BFS frontier: a FIFO of URLs waiting to be visited plus a
// membership set mirroring its contents. A URL is queued at most once at a time.
//
// Queue is owned by a single crawl run and is not safe for concurrent use.
type Queue struct {
	items   []string
	members map[string]struct{}
}

// NewQueue creates a new BFS queue
func NewQueue() *Queue {
	return &Queue{
		items:   make([]string, 0),
		members: make(map[string]struct{}),
	}
}

// Push appends url to the tail unless it is already queued.
// Returns true if added, false if duplicate
func (q *Queue) Push(url string) bool {
	if _, queued := q.members[url]; queued {
		return false
	}
	q.members[url] = struct{}{}
	q.items = append(q.items, url)
	return true
}

// Peek returns the head without removing it
func (q *Queue) Peek() (string, bool) {
	if len(q.items) == 0 {
		return "", false
	}
	return q.items[0], true
}

// Pop removes and returns the head
func (q *Queue) Pop() (string, error) {
	if len(q.items) == 0 {
		return "", ErrEmptyQueue
	}
	url := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	delete(q.members, url)
	return url, nil
}

// Contains reports whether url is currently queued
func (q *Queue) Contains(url string) bool {
	_, ok := q.members[url]
	return ok
}

// IsEmpty returns true if the queue has no items
func (q *Queue) IsEmpty() bool {
	return len(q.items) == 0
}

// Size returns the current number of items in the queue
func (q *Queue) Size() int {
	return len(q.items)
}

// Snapshot returns a copy of the queued URLs, head first.
func (q *Queue) Snapshot() []string {
	entries := make([]string, len(q.items))
	copy(entries, q.items)
	return entries
}

// Drain empties the queue and returns what it held, head first.
func (q *Queue) Drain() []string {
	entries := q.items
	q.items = make([]string, 0)
	q.members = make(map[string]struct{})
	return entries
}
