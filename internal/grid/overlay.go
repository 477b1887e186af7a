package grid

import (
	"sync"

	"github.com/JonMunkholm/factoryinv/internal/inventory"
)

// Overlay holds full-row copies of edited rows, keyed by identifier and
// kept in first-edit order. An entry whose identifier is not in the
// snapshot is a new, unsaved row.
type Overlay struct {
	mu    sync.RWMutex
	order []string
	rows  map[string]inventory.Row
}

// NewOverlay creates an empty overlay.
func NewOverlay() *Overlay {
	return &Overlay{rows: make(map[string]inventory.Row)}
}

// SetField records value for field on row rowID. An existing entry is
// replaced by a copy carrying the new value; otherwise a new entry holding
// only the identifier and the field is appended. Writes to the identifier
// field itself are ignored.
func (o *Overlay) SetField(rowID, field, value string) {
	if field == inventory.IDField {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if cur, ok := o.rows[rowID]; ok {
		o.rows[rowID] = cur.With(field, value)
		return
	}
	o.order = append(o.order, rowID)
	o.rows[rowID] = inventory.Row{inventory.IDField: rowID, field: value}
}

// Put stores a copy of row as the row's whole current state.
func (o *Overlay) Put(row inventory.Row) {
	id := row.ID()

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.rows[id]; !ok {
		o.order = append(o.order, id)
	}
	o.rows[id] = row.Clone()
}

// Get returns a copy of the edited row.
func (o *Overlay) Get(rowID string) (inventory.Row, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	r, ok := o.rows[rowID]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Has reports whether rowID has an entry.
func (o *Overlay) Has(rowID string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.rows[rowID]
	return ok
}

// Rows returns copies of all entries in first-edit order.
func (o *Overlay) Rows() []inventory.Row {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]inventory.Row, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.rows[id].Clone())
	}
	return out
}

// Len returns the number of edited rows.
func (o *Overlay) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.order)
}

// Reset drops every entry.
func (o *Overlay) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.order = nil
	o.rows = make(map[string]inventory.Row)
}
