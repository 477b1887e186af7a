package grid

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/factoryinv/internal/inventory"
)

type fakeBackend struct {
	mu        sync.Mutex
	rows      []inventory.Row
	loadErr   error
	updateErr error
	createErr error
	updates   [][]inventory.Row
	creates   [][]inventory.Row

	// When set, Update signals entered and waits for release.
	entered chan struct{}
	release chan struct{}
}

func (f *fakeBackend) Load(ctx context.Context, q inventory.Query) ([]inventory.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return inventory.CloneRows(f.rows), nil
}

func (f *fakeBackend) Update(ctx context.Context, rows []inventory.Row) error {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, rows)
	return f.updateErr
}

func (f *fakeBackend) Create(ctx context.Context, rows []inventory.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, rows)
	if f.createErr != nil {
		return f.createErr
	}
	f.rows = append(f.rows, rows...)
	return nil
}

func newTestSession(t *testing.T, rows ...inventory.Row) (*Session, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{rows: rows}
	s := NewSession(backend, nil)
	if err := s.Refresh(context.Background(), inventory.Query{}); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	return s, backend
}

func TestSession_CancelResetsEdits(t *testing.T) {
	s, _ := newTestSession(t, inventory.Row{inventory.IDField: "1", inventory.FieldCompanyCode: "A"})

	s.Open()
	if err := s.SetField("1", inventory.FieldCompanyCode, "B"); err != nil {
		t.Fatalf("SetField failed: %v", err)
	}
	if !s.StyleFor("1", inventory.FieldCompanyCode).Changed {
		t.Error("edited cell not reported as changed")
	}

	s.Cancel()
	if s.Overlay().Len() != 0 {
		t.Errorf("overlay has %d rows after Cancel, want 0", s.Overlay().Len())
	}
	if s.StyleFor("1", inventory.FieldCompanyCode).Changed {
		t.Error("cell still changed after Cancel")
	}
	if s.Editing() {
		t.Error("session still open after Cancel")
	}
}

func TestSession_SetFieldCopiesWholeRow(t *testing.T) {
	s, _ := newTestSession(t, inventory.Row{
		inventory.IDField:          "1",
		inventory.FieldCompanyCode: "A",
		inventory.FieldHulftID:     "H",
	})
	s.Open()
	if err := s.SetField("1", inventory.FieldCompanyCode, "B"); err != nil {
		t.Fatalf("SetField failed: %v", err)
	}

	got, _ := s.Overlay().Get("1")
	if got.Get(inventory.FieldHulftID) != "H" {
		t.Errorf("overlay row = %v, want untouched fields copied", got)
	}
	if s.StyleFor("1", inventory.FieldHulftID).Changed {
		t.Error("untouched field reported as changed")
	}
}

func TestSession_EditsRequireOpenSession(t *testing.T) {
	s, _ := newTestSession(t, inventory.Row{inventory.IDField: "1"})

	if err := s.SetField("1", inventory.FieldCompanyCode, "B"); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("SetField on closed session = %v, want ErrSessionClosed", err)
	}
	if _, err := s.AddRow(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("AddRow on closed session = %v, want ErrSessionClosed", err)
	}
	if err := s.Submit(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Submit on closed session = %v, want ErrSessionClosed", err)
	}

	s.Open()
	if err := s.SetField("nope", inventory.FieldCompanyCode, "B"); !errors.Is(err, ErrRowNotEditable) {
		t.Errorf("SetField on unknown row = %v, want ErrRowNotEditable", err)
	}
}

func TestSession_SubmitSuccessReloads(t *testing.T) {
	s, backend := newTestSession(t, inventory.Row{inventory.IDField: "1", inventory.FieldCompanyCode: "A"})
	s.Open()
	_ = s.SetField("1", inventory.FieldCompanyCode, "B")

	backend.mu.Lock()
	backend.rows = []inventory.Row{{inventory.IDField: "1", inventory.FieldCompanyCode: "B"}}
	backend.mu.Unlock()

	if err := s.Submit(context.Background()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if s.Editing() {
		t.Error("session still open after successful submit")
	}
	if s.Overlay().Len() != 0 {
		t.Error("overlay not cleared after successful submit")
	}
	row, _ := s.Snapshot().Find("1")
	if row.Get(inventory.FieldCompanyCode) != "B" {
		t.Errorf("snapshot not reloaded: %v", row)
	}
	if len(backend.updates) != 1 || len(backend.updates[0]) != 1 {
		t.Errorf("backend saw %v, want one batch of one row", backend.updates)
	}
}

func TestSession_SubmitRejected(t *testing.T) {
	s, backend := newTestSession(t,
		inventory.Row{inventory.IDField: "1", inventory.FieldCompanyCode: "A"},
		inventory.Row{inventory.IDField: "2", inventory.FieldCompanyCode: "B"},
	)
	backend.updateErr = &inventory.BatchError{Errors: []inventory.CommitError{
		{Code: inventory.CodeUniqueViolation, UUID: "1", Level: inventory.LevelError},
		{Code: inventory.CodeException, UUID: "2", Level: inventory.LevelInfo},
	}}

	s.Open()
	_ = s.SetField("1", inventory.FieldCompanyCode, "B")

	err := s.Submit(context.Background())
	var batchErr *inventory.BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("Submit error = %v, want *BatchError", err)
	}
	if !s.Editing() {
		t.Error("session closed after rejected submit")
	}
	if s.InFlight() {
		t.Error("submission still in flight after return")
	}

	errs := s.Errors()
	if len(errs) != 1 {
		t.Fatalf("got %d validation errors, want 1", len(errs))
	}
	if errs[0].MessageKey != MsgPrimaryKeyDuplicate || errs[0].UUID != "1" {
		t.Errorf("validation error = %+v", errs[0])
	}
	if got := s.CellStyle("1", inventory.FieldHulftID); got.State != CellError {
		t.Errorf("cell of failed row = %q, want error", got.State)
	}
	if got := s.CellStyle("2", inventory.FieldCompanyCode); got.State != CellDefault {
		t.Errorf("cell of untouched row = %q, want default", got.State)
	}

	// Correcting and cancelling clears everything.
	s.Cancel()
	if len(s.Errors()) != 0 {
		t.Error("errors survived Cancel")
	}
}

func TestSession_SubmitSkipsRevertedRows(t *testing.T) {
	s, backend := newTestSession(t,
		inventory.Row{inventory.IDField: "1", inventory.FieldCompanyCode: "A"},
		inventory.Row{inventory.IDField: "2", inventory.FieldCompanyCode: "X"},
	)
	s.Open()
	_ = s.SetField("1", inventory.FieldCompanyCode, "B")
	_ = s.SetField("1", inventory.FieldCompanyCode, "A")
	_ = s.SetField("2", inventory.FieldCompanyCode, "Y")

	if s.StyleFor("1", inventory.FieldCompanyCode).Changed {
		t.Error("reverted cell reported as changed")
	}
	if err := s.Submit(context.Background()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if len(backend.updates) != 1 || len(backend.updates[0]) != 1 || backend.updates[0][0].ID() != "2" {
		t.Errorf("backend saw %v, want only row 2", backend.updates)
	}
}

func TestSession_SubmitNothingChanged(t *testing.T) {
	s, backend := newTestSession(t, inventory.Row{inventory.IDField: "1", inventory.FieldCompanyCode: "A"})
	s.Open()
	_ = s.SetField("1", inventory.FieldCompanyCode, "B")
	_ = s.SetField("1", inventory.FieldCompanyCode, "A")
	added, err := s.AddRow()
	if err != nil {
		t.Fatalf("AddRow failed: %v", err)
	}

	if err := s.Submit(context.Background()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if len(backend.updates) != 1 || len(backend.updates[0]) != 1 || backend.updates[0][0].ID() != added.ID() {
		t.Errorf("backend saw %v, want only the added row", backend.updates)
	}

	s.Open()
	_ = s.SetField("1", inventory.FieldCompanyCode, "A")
	if err := s.Submit(context.Background()); err != nil {
		t.Fatalf("second Submit failed: %v", err)
	}
	if len(backend.updates) != 1 {
		t.Errorf("backend called with an empty batch: %v", backend.updates)
	}
	if s.Editing() {
		t.Error("session still open after submitting no changes")
	}
}

func TestSession_SubmitInFlightRejected(t *testing.T) {
	s, backend := newTestSession(t, inventory.Row{inventory.IDField: "1"})
	backend.entered = make(chan struct{})
	backend.release = make(chan struct{})

	s.Open()
	_ = s.SetField("1", inventory.FieldCompanyCode, "A")

	done := make(chan error, 1)
	go func() { done <- s.Submit(context.Background()) }()

	select {
	case <-backend.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first submit never reached the backend")
	}

	if !s.InFlight() {
		t.Error("InFlight = false during submission")
	}
	if err := s.Submit(context.Background()); !errors.Is(err, ErrSubmitInFlight) {
		t.Errorf("second Submit = %v, want ErrSubmitInFlight", err)
	}

	close(backend.release)
	if err := <-done; err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}
	if len(backend.updates) != 1 {
		t.Errorf("backend saw %d batches, want 1", len(backend.updates))
	}
}

func TestSession_RefreshFailureLeavesEmptySnapshot(t *testing.T) {
	s, backend := newTestSession(t, inventory.Row{inventory.IDField: "1"})
	if s.Snapshot().Len() != 1 {
		t.Fatalf("snapshot len = %d, want 1", s.Snapshot().Len())
	}

	backend.loadErr = errors.New("connection refused")
	err := s.Refresh(context.Background(), inventory.Query{})
	if !errors.Is(err, ErrLoad) {
		t.Fatalf("Refresh error = %v, want ErrLoad", err)
	}
	if s.Snapshot().Len() != 0 {
		t.Errorf("snapshot len = %d after failed refresh, want 0", s.Snapshot().Len())
	}
}

func TestSession_CreateReloads(t *testing.T) {
	s, _ := newTestSession(t)
	q := inventory.Query{SearchKeyword: "x"}
	if err := s.Refresh(context.Background(), q); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	row := inventory.NewRow().With(inventory.FieldCompanyCode, "N")
	if err := s.Create(context.Background(), []inventory.Row{row}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, ok := s.Snapshot().Find(row.ID()); !ok {
		t.Error("created row missing from reloaded snapshot")
	}
	if s.Query() != q {
		t.Errorf("query = %+v, want %+v", s.Query(), q)
	}
}

func TestSession_View(t *testing.T) {
	s, _ := newTestSession(t,
		inventory.Row{inventory.IDField: "1", inventory.FieldCompanyCode: "B"},
		inventory.Row{inventory.IDField: "2", inventory.FieldCompanyCode: "A"},
	)
	s.Open()
	_ = s.SetField("1", inventory.FieldCompanyCode, "C")
	added, err := s.AddRow()
	if err != nil {
		t.Fatalf("AddRow failed: %v", err)
	}
	_ = s.SetField(added.ID(), inventory.FieldCompanyCode, "D")

	v := s.View(ViewOptions{})
	if !v.Editing {
		t.Error("view not editing")
	}
	if len(v.Columns) != len(inventory.Fields()) {
		t.Errorf("columns = %d, want %d", len(v.Columns), len(inventory.Fields()))
	}
	if len(v.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(v.Rows))
	}
	if !v.Rows[2].New || v.Rows[2].UUID != added.ID() {
		t.Errorf("last row = %+v, want the new row", v.Rows[2])
	}

	first := v.Rows[0]
	if first.Cells[inventory.FieldCompanyCode].Value != "C" {
		t.Errorf("merged value = %q, want C", first.Cells[inventory.FieldCompanyCode].Value)
	}
	if first.Cells[inventory.FieldCompanyCode].Style.State != CellChanged {
		t.Errorf("edited cell state = %q, want changed", first.Cells[inventory.FieldCompanyCode].Style.State)
	}
	if first.Cells[inventory.FieldHulftID].Style.State != CellDefault {
		t.Errorf("untouched cell state = %q, want default", first.Cells[inventory.FieldHulftID].Style.State)
	}

	sorted := s.View(ViewOptions{Sort: &SortSpec{Field: inventory.FieldCompanyCode}})
	if sorted.Rows[0].UUID != "2" {
		t.Errorf("sorted first row = %q, want 2", sorted.Rows[0].UUID)
	}

	filtered := s.View(ViewOptions{Filters: Filters{inventory.FieldCompanyCode: "d"}})
	if len(filtered.Rows) != 1 || filtered.Rows[0].UUID != added.ID() {
		t.Errorf("filtered rows = %+v, want only the new row", filtered.Rows)
	}

	paged := s.View(ViewOptions{Page: 2, PageSize: 2})
	if len(paged.Rows) != 1 || paged.Page.Page != 2 {
		t.Errorf("page 2 = %d rows, page %d", len(paged.Rows), paged.Page.Page)
	}
}

type joinTranslator struct{}

func (joinTranslator) Translate(key, detail string) string { return key + ":" + detail }

func TestSession_ViewErrors(t *testing.T) {
	s, backend := newTestSession(t, inventory.Row{inventory.IDField: "1", inventory.FieldCompanyCode: "A"})
	backend.updateErr = &inventory.BatchError{Errors: []inventory.CommitError{
		{Code: inventory.CodeNoData, UUID: "1", Level: inventory.LevelWarning},
	}}
	s.Open()
	_ = s.SetField("1", inventory.FieldCompanyCode, "B")
	_ = s.Submit(context.Background())

	v := s.View(ViewOptions{Translator: joinTranslator{}})
	if len(v.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(v.Errors))
	}
	if v.Errors[0].Color != ColorLevelWarning {
		t.Errorf("color = %q, want %q", v.Errors[0].Color, ColorLevelWarning)
	}
	if want := MsgRowNotFound + ":B, , , , "; v.Errors[0].Message != want {
		t.Errorf("message = %q, want %q", v.Errors[0].Message, want)
	}
	if !v.Rows[0].InError {
		t.Error("row not marked in error")
	}
}
