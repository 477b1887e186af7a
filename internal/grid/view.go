package grid

import (
	"golang.org/x/text/language"

	"github.com/JonMunkholm/factoryinv/internal/inventory"
)

// DefaultLocale is the collation locale used when none is configured.
var DefaultLocale = language.Japanese

// Translator renders a message key. Detail fills the key's placeholder.
type Translator interface {
	Translate(key, detail string) string
}

// ViewOptions selects what View projects. A zero Page keeps the session's
// current page; a zero PageSize uses DefaultPageSize.
type ViewOptions struct {
	Sort       *SortSpec
	Filters    Filters
	Page       int
	PageSize   int
	Translator Translator
}

// CellView is one rendered cell.
type CellView struct {
	Value string    `json:"value"`
	Style CellStyle `json:"style"`
}

// RowView is one rendered row.
type RowView struct {
	UUID    string              `json:"uuid"`
	New     bool                `json:"new,omitempty"`
	Edited  bool                `json:"edited,omitempty"`
	InError bool                `json:"inError,omitempty"`
	Cells   map[string]CellView `json:"cells"`
}

// ErrorView is a reconciled error ready for the error list.
type ErrorView struct {
	ValidationError
	Message string `json:"message"`
	Color   string `json:"color"`
}

// View is everything a table needs to draw the current state.
type View struct {
	Editing  bool        `json:"editing"`
	InFlight bool        `json:"inFlight"`
	Columns  []Column    `json:"columns"`
	Rows     []RowView   `json:"rows"`
	Errors   []ErrorView `json:"errors"`
	Page     PageInfo    `json:"page"`
}

// View merges the overlay over the snapshot, applies filters and sort, and
// returns the requested page. Overlay rows unknown to the snapshot are
// appended after the snapshot rows.
func (s *Session) View(opts ViewOptions) View {
	s.mu.Lock()
	defer s.mu.Unlock()

	if opts.Page > 0 {
		s.page = opts.Page
	}

	snapshot := s.snapshot.Rows()
	originals := make(map[string]inventory.Row, len(snapshot))
	merged := make([]inventory.Row, 0, len(snapshot)+s.overlay.Len())
	for _, r := range snapshot {
		originals[r.ID()] = r
		if ov, ok := s.overlay.Get(r.ID()); ok {
			merged = append(merged, ov)
			continue
		}
		merged = append(merged, r)
	}
	for _, ov := range s.overlay.Rows() {
		if _, ok := originals[ov.ID()]; !ok {
			merged = append(merged, ov)
		}
	}

	merged = opts.Filters.Apply(merged)
	if opts.Sort != nil {
		s.proj.Sort(merged, *opts.Sort)
	}
	pageRows, info := Paginate(merged, s.page, opts.PageSize)
	s.page = info.Page

	errSet := newErrorSet(s.errs)
	cols := s.proj.Columns()
	rows := make([]RowView, 0, len(pageRows))
	for _, r := range pageRows {
		id := r.ID()
		original, known := originals[id]
		edited := s.overlay.Has(id)
		inError := errSet.has(id)

		rv := RowView{
			UUID:    id,
			New:     !known,
			Edited:  edited,
			InError: inError,
			Cells:   make(map[string]CellView, len(cols)),
		}
		for _, c := range cols {
			diff := CellDiff{Changed: edited && FieldChanged(r, original, c.Field)}
			rv.Cells[c.Field] = CellView{
				Value: r.Get(c.Field),
				Style: CellStyleFor(inError, diff),
			}
		}
		rows = append(rows, rv)
	}

	errs := make([]ErrorView, 0, len(s.errs))
	for _, e := range s.errs {
		msg := e.MessageKey
		if opts.Translator != nil {
			msg = opts.Translator.Translate(e.MessageKey, e.Detail)
		}
		errs = append(errs, ErrorView{ValidationError: e, Message: msg, Color: LevelColor(e.Level)})
	}

	return View{
		Editing:  s.editing,
		InFlight: s.inFlight,
		Columns:  cols,
		Rows:     rows,
		Errors:   errs,
		Page:     info,
	}
}
