package grid

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/JonMunkholm/factoryinv/internal/inventory"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Highlight colors.
const (
	ColorErrorCell      = "#f7a968ff"
	ColorEditBackground = "#fff7e6"
	ColorEditBorder     = "#fa8c16"
	ColorDefault        = "white"
	ColorLevelError     = "#ff4d4f"
	ColorLevelWarning   = "#fa8c16"
)

// TieBreak decides what the code comparator returns for equal values.
type TieBreak string

const (
	// TieBreakGreater treats the first of two equal values as larger.
	TieBreakGreater TieBreak = "greater"
	// TieBreakLess treats the first of two equal values as smaller.
	TieBreakLess TieBreak = "less"
	// TieBreakStable reports equal values as equal.
	TieBreakStable TieBreak = "stable"
)

// ParseTieBreak validates a tie-break name.
func ParseTieBreak(s string) (TieBreak, error) {
	switch tb := TieBreak(strings.ToLower(strings.TrimSpace(s))); tb {
	case TieBreakGreater, TieBreakLess, TieBreakStable:
		return tb, nil
	case "":
		return TieBreakGreater, nil
	default:
		return "", fmt.Errorf("unknown sort tie-break %q (want greater, less or stable)", s)
	}
}

// Comparator orders two rows; negative means a sorts first.
type Comparator func(a, b inventory.Row) int

// Column is the projected definition of one table column.
type Column struct {
	Field   string         `json:"field"`
	Title   string         `json:"title"`
	Kind    inventory.Kind `json:"kind"`
	Compare Comparator     `json:"-"`
}

// Projection derives columns, comparators and styles from the stores.
type Projection struct {
	tieBreak TieBreak
	locale   language.Tag
	layout   *inventory.Layout
}

// NewProjection builds a projection over the default layout.
func NewProjection(tb TieBreak, locale language.Tag) *Projection {
	if tb == "" {
		tb = TieBreakGreater
	}
	return &Projection{tieBreak: tb, locale: locale, layout: inventory.DefaultLayout()}
}

// Columns returns one column per known field, in display order.
func (p *Projection) Columns() []Column {
	fields := p.layout.Fields()
	cols := make([]Column, len(fields))
	for i, f := range fields {
		cols[i] = Column{
			Field:   f.Name,
			Title:   f.Label,
			Kind:    f.Kind,
			Compare: p.Comparator(f),
		}
	}
	return cols
}

// Comparator returns the sort comparator for a field. Name fields use
// locale collation; everything else compares byte-wise and resolves ties
// with the configured TieBreak.
func (p *Projection) Comparator(f inventory.Field) Comparator {
	name := f.Name
	if f.Kind == inventory.KindName {
		var mu sync.Mutex
		coll := collate.New(p.locale)
		return func(a, b inventory.Row) int {
			mu.Lock()
			defer mu.Unlock()
			return coll.CompareString(a.Get(name), b.Get(name))
		}
	}

	tb := p.tieBreak
	return func(a, b inventory.Row) int {
		av, bv := a.Get(name), b.Get(name)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		switch tb {
		case TieBreakLess:
			return -1
		case TieBreakStable:
			return 0
		default:
			return 1
		}
	}
}

// SortSpec selects a column and direction.
type SortSpec struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc,omitempty"`
}

// Sort orders rows in place by spec. Unknown fields leave rows as they are.
func (p *Projection) Sort(rows []inventory.Row, spec SortSpec) {
	f, ok := p.layout.Field(spec.Field)
	if !ok {
		return
	}
	cmp := p.Comparator(f)
	if spec.Desc {
		slices.SortStableFunc(rows, func(a, b inventory.Row) int { return cmp(b, a) })
		return
	}
	slices.SortStableFunc(rows, cmp)
}

// FilterPredicate matches rows whose field contains query, ignoring case.
// An empty query matches everything.
func FilterPredicate(field, query string) func(inventory.Row) bool {
	q := strings.ToLower(query)
	if q == "" {
		return func(inventory.Row) bool { return true }
	}
	return func(r inventory.Row) bool {
		return strings.Contains(strings.ToLower(r.Get(field)), q)
	}
}

// Filters holds the per-column search text. Columns are combined with AND.
type Filters map[string]string

// Set stores a filter; an empty query clears it.
func (f Filters) Set(field, query string) {
	if query == "" {
		delete(f, field)
		return
	}
	f[field] = query
}

// Clear resets a column to match everything.
func (f Filters) Clear(field string) {
	delete(f, field)
}

// Match reports whether the row passes every filter.
func (f Filters) Match(r inventory.Row) bool {
	for field, q := range f {
		if !FilterPredicate(field, q)(r) {
			return false
		}
	}
	return true
}

// Apply returns the rows that pass every filter.
func (f Filters) Apply(rows []inventory.Row) []inventory.Row {
	if len(f) == 0 {
		return rows
	}
	out := make([]inventory.Row, 0, len(rows))
	for _, r := range rows {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// CellState names why a cell is highlighted.
type CellState string

const (
	CellDefault CellState = "default"
	CellChanged CellState = "changed"
	CellError   CellState = "error"
)

// CellStyle is the presentation of one cell.
type CellStyle struct {
	State           CellState `json:"state"`
	BackgroundColor string    `json:"backgroundColor"`
	BorderColor     string    `json:"borderColor,omitempty"`
}

// CellStyleFor picks the style of one cell. Row errors win over edits.
func CellStyleFor(inError bool, diff CellDiff) CellStyle {
	switch {
	case inError:
		return CellStyle{State: CellError, BackgroundColor: ColorErrorCell}
	case diff.Changed:
		return CellStyle{State: CellChanged, BackgroundColor: ColorEditBackground, BorderColor: ColorEditBorder}
	default:
		return CellStyle{State: CellDefault, BackgroundColor: ColorDefault}
	}
}

// LevelColor is the text color of an error list entry.
func LevelColor(level inventory.Level) string {
	if level == inventory.LevelError {
		return ColorLevelError
	}
	return ColorLevelWarning
}

// Page sizes offered by the table.
var PageSizeOptions = []int{10, 20}

// DefaultPageSize is used when no size is requested.
const DefaultPageSize = 10

// PageInfo describes the slice of rows returned by Paginate.
type PageInfo struct {
	Page       int `json:"current"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	RangeStart int `json:"range0"`
	RangeEnd   int `json:"range1"`
}

// Paginate returns the rows of a 1-based page. Out-of-range pages clamp
// to the last page.
func Paginate(rows []inventory.Row, page, size int) ([]inventory.Row, PageInfo) {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := len(rows)
	if page < 1 {
		page = 1
	}
	last := (total + size - 1) / size
	if last < 1 {
		last = 1
	}
	if page > last {
		page = last
	}

	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	info := PageInfo{Page: page, PageSize: size, Total: total}
	if end > start {
		info.RangeStart = start + 1
		info.RangeEnd = end
	}
	return rows[start:end], info
}
