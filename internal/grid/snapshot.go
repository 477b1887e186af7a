// Package grid is the editable-grid engine behind the inventory pages.
//
// It keeps the last fetched rows (the snapshot), the rows the user has
// touched (the overlay), and the validation errors of the last rejected
// batch, and derives from them everything a table view needs: changed
// cells, error highlighting, sorting, filtering and paging.
//
// # State
//
// A [Session] owns one snapshot and one overlay. All transitions are
// explicit methods:
//
//	Refresh  clear everything, fetch, replace the snapshot
//	Open     start collecting edits
//	SetField record one cell edit (whole row copied into the overlay)
//	Submit   send the overlay as one batch; reload on success,
//	         reconcile errors on failure
//	Cancel   drop edits and errors
//
// # Errors
//
// Batch failures arrive as [inventory.BatchError]. [Reconcile] turns the
// raw list into [ValidationError] values with a message key and a detail
// string naming the row. Attribution is per row: the server does not say
// which column failed, so every cell of a failed row is highlighted.
package grid

import (
	"context"
	"sync"

	"github.com/JonMunkholm/factoryinv/internal/inventory"
)

// FetchFunc loads rows for a query.
type FetchFunc func(ctx context.Context, q inventory.Query) ([]inventory.Row, error)

// SnapshotListener is called after the snapshot changes.
type SnapshotListener func(rows []inventory.Row)

// SnapshotStore holds the last authoritative rows. The slice is replaced
// wholesale and never edited in place; readers get copies.
type SnapshotStore struct {
	mu        sync.RWMutex
	rows      []inventory.Row
	listeners []SnapshotListener
}

// NewSnapshotStore creates an empty store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// Load fetches rows and replaces the snapshot with them. A failed fetch
// leaves the current snapshot untouched.
func (s *SnapshotStore) Load(ctx context.Context, fetch FetchFunc, q inventory.Query) ([]inventory.Row, error) {
	rows, err := fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	s.Replace(rows)
	return s.Rows(), nil
}

// Replace swaps in a new snapshot.
func (s *SnapshotStore) Replace(rows []inventory.Row) {
	next := inventory.CloneRows(rows)
	if next == nil {
		next = []inventory.Row{}
	}

	s.mu.Lock()
	s.rows = next
	listeners := append([]SnapshotListener(nil), s.listeners...)
	s.mu.Unlock()

	s.notify(listeners, next)
}

// Clear empties the snapshot.
func (s *SnapshotStore) Clear() {
	s.mu.Lock()
	s.rows = []inventory.Row{}
	listeners := append([]SnapshotListener(nil), s.listeners...)
	s.mu.Unlock()

	s.notify(listeners, nil)
}

// Subscribe registers fn to run after every Replace or Clear.
func (s *SnapshotStore) Subscribe(fn SnapshotListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *SnapshotStore) notify(listeners []SnapshotListener, rows []inventory.Row) {
	for _, fn := range listeners {
		fn(inventory.CloneRows(rows))
	}
}

// Rows returns a copy of the snapshot.
func (s *SnapshotStore) Rows() []inventory.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := inventory.CloneRows(s.rows)
	if out == nil {
		out = []inventory.Row{}
	}
	return out
}

// Len returns the number of rows.
func (s *SnapshotStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Find returns a copy of the row with the given identifier.
func (s *SnapshotStore) Find(id string) (inventory.Row, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := inventory.FindRow(s.rows, id)
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// IDs returns the identifiers in snapshot order.
func (s *SnapshotStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.rows))
	for i, r := range s.rows {
		ids[i] = r.ID()
	}
	return ids
}
