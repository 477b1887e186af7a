package grid

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JonMunkholm/factoryinv/internal/inventory"
)

var (
	// ErrSessionClosed is returned for edit operations outside an open session.
	ErrSessionClosed = errors.New("edit session is not open")

	// ErrSubmitInFlight is returned when a batch is submitted while the
	// previous one has not come back yet.
	ErrSubmitInFlight = errors.New("batch submission already in flight")

	// ErrRowNotEditable is returned for edits to rows outside the editable set.
	ErrRowNotEditable = errors.New("row is not editable")

	// ErrLoad wraps a failed fetch. The snapshot is left empty.
	ErrLoad = errors.New("load inventory")
)

// Backend is the inventory API as seen by the grid.
type Backend interface {
	Load(ctx context.Context, q inventory.Query) ([]inventory.Row, error)
	Update(ctx context.Context, rows []inventory.Row) error
	Create(ctx context.Context, rows []inventory.Row) error
}

// Session is the state of one grid page: snapshot, overlay, reconciled
// errors and the open/closed edit state. It is safe for concurrent use;
// backend calls run without holding the session lock.
type Session struct {
	backend Backend
	proj    *Projection

	snapshot *SnapshotStore
	overlay  *Overlay

	mu       sync.Mutex
	errs     []ValidationError
	editing  bool
	editable map[string]struct{}
	inFlight bool
	page     int
	query    inventory.Query
}

// NewSession creates a closed session with an empty snapshot.
func NewSession(backend Backend, proj *Projection) *Session {
	if proj == nil {
		proj = NewProjection(TieBreakGreater, DefaultLocale)
	}
	return &Session{
		backend:  backend,
		proj:     proj,
		snapshot: NewSnapshotStore(),
		overlay:  NewOverlay(),
		page:     1,
	}
}

// Snapshot exposes the snapshot store.
func (s *Session) Snapshot() *SnapshotStore { return s.snapshot }

// Overlay exposes the overlay store.
func (s *Session) Overlay() *Overlay { return s.overlay }

// Refresh clears all session state, then fetches q into the snapshot.
// The clear happens first on purpose: a failed or slow fetch shows an
// empty table, never the previous one.
func (s *Session) Refresh(ctx context.Context, q inventory.Query) error {
	s.mu.Lock()
	s.page = 1
	s.errs = nil
	s.editable = nil
	s.editing = false
	s.query = q
	s.overlay.Reset()
	s.mu.Unlock()

	s.snapshot.Clear()
	if _, err := s.snapshot.Load(ctx, s.backend.Load, q); err != nil {
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}
	return nil
}

// Open starts an edit session. Every snapshot row becomes editable and any
// previous edits or errors are dropped.
func (s *Session) Open() {
	ids := s.snapshot.IDs()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.editable = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s.editable[id] = struct{}{}
	}
	s.overlay.Reset()
	s.errs = nil
	s.editing = true
}

// Cancel closes the session, discarding edits and errors.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.overlay.Reset()
	s.errs = nil
	s.editable = nil
	s.editing = false
}

// SetField records one cell edit. The overlay always holds whole rows, so
// the first edit of a snapshot row copies the row in before applying the
// value.
func (s *Session) SetField(rowID, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkEditableLocked(rowID); err != nil {
		return err
	}
	if !s.overlay.Has(rowID) {
		if base, ok := s.snapshot.Find(rowID); ok {
			s.overlay.Put(base)
		}
	}
	s.overlay.SetField(rowID, field, value)
	return nil
}

// PutRow replaces the edited state of a row with row.
func (s *Session) PutRow(row inventory.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkEditableLocked(row.ID()); err != nil {
		return err
	}
	s.overlay.Put(row)
	return nil
}

// AddRow appends a new, unsaved row with a fresh identifier.
func (s *Session) AddRow() (inventory.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.editing {
		return nil, ErrSessionClosed
	}
	row := inventory.NewRow()
	s.editable[row.ID()] = struct{}{}
	s.overlay.Put(row)
	return row.Clone(), nil
}

func (s *Session) checkEditableLocked(rowID string) error {
	if !s.editing {
		return ErrSessionClosed
	}
	if _, ok := s.editable[rowID]; !ok {
		return fmt.Errorf("%w: %s", ErrRowNotEditable, rowID)
	}
	return nil
}

// Submit sends the overlay rows that differ from the snapshot as one
// update batch. Rows edited back to their loaded values are left out; if
// nothing differs the backend is not called.
//
// On success the session closes and the snapshot is reloaded. On an
// [inventory.BatchError] the errors are reconciled against the overlay and
// the session stays open for correction. A second Submit while one is in
// flight fails with ErrSubmitInFlight.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	if !s.editing {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.inFlight {
		s.mu.Unlock()
		return ErrSubmitInFlight
	}
	s.inFlight = true
	rows := s.pendingLocked()
	q := s.query
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	if len(rows) == 0 {
		return s.Refresh(ctx, q)
	}
	err := s.backend.Update(ctx, rows)
	if err == nil {
		return s.Refresh(ctx, q)
	}

	var batchErr *inventory.BatchError
	if errors.As(err, &batchErr) {
		s.mu.Lock()
		if s.editing {
			s.errs = Reconcile(batchErr.Errors, s.overlay.Rows())
		}
		s.mu.Unlock()
	}
	return fmt.Errorf("submit batch: %w", err)
}

// pendingLocked returns the overlay rows to save: added rows, and snapshot
// rows with at least one changed field.
func (s *Session) pendingLocked() []inventory.Row {
	var out []inventory.Row
	for _, row := range s.overlay.Rows() {
		original, ok := s.snapshot.Find(row.ID())
		if ok && len(ChangedFields(row, original)) == 0 {
			continue
		}
		out = append(out, row)
	}
	return out
}

// Create persists new rows outside the edit session (manual add, import)
// and reloads on success.
func (s *Session) Create(ctx context.Context, rows []inventory.Row) error {
	if err := s.backend.Create(ctx, rows); err != nil {
		return fmt.Errorf("create rows: %w", err)
	}
	s.mu.Lock()
	q := s.query
	s.mu.Unlock()
	return s.Refresh(ctx, q)
}

// Editing reports whether an edit session is open.
func (s *Session) Editing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editing
}

// InFlight reports whether a submission is pending.
func (s *Session) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Query returns the parameters of the last Refresh.
func (s *Session) Query() inventory.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Errors returns the reconciled errors of the last rejected batch.
func (s *Session) Errors() []ValidationError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ValidationError(nil), s.errs...)
}

// StyleFor reports the edit status of one cell.
func (s *Session) StyleFor(rowID, field string) CellDiff {
	return StyleFor(s.overlay, s.snapshot, rowID, field)
}

// CellStyle returns the full presentation of one cell.
func (s *Session) CellStyle(rowID, field string) CellStyle {
	s.mu.Lock()
	inError := newErrorSet(s.errs).has(rowID)
	s.mu.Unlock()
	return CellStyleFor(inError, s.StyleFor(rowID, field))
}
