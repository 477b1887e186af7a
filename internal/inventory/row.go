// Package inventory defines the factory inventory record and the fixed
// assets that describe it: the field list, the spreadsheet header map and
// the wire shapes exchanged with the inventory API.
//
// The package has no I/O beyond parsing its embedded header asset and can
// be used by the store, the grid engine, the spreadsheet codec and the
// HTTP client alike.
package inventory

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// IDField is the key holding a row's stable identifier.
const IDField = "uuid"

// Row is one inventory record as a flat field -> value map.
// Dates travel as strings ("2006-01-02"). Keys outside the known field
// list are carried as-is.
type Row map[string]string

// NewRow returns an empty row with a freshly generated identifier.
func NewRow() Row {
	return Row{IDField: uuid.NewString()}
}

// ID returns the row identifier.
func (r Row) ID() string {
	return r[IDField]
}

// Get returns the value for field. A missing key reads as "".
func (r Row) Get(field string) string {
	return r[field]
}

// Clone returns an independent copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	c := make(Row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// With returns a copy of the row with field set to value.
func (r Row) With(field, value string) Row {
	c := r.Clone()
	if c == nil {
		c = Row{}
	}
	c[field] = value
	return c
}

// CloneRows deep-copies a slice of rows.
func CloneRows(rows []Row) []Row {
	if rows == nil {
		return nil
	}
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

// FindRow returns the first row whose identifier equals id.
func FindRow(rows []Row, id string) (Row, bool) {
	for _, r := range rows {
		if r.ID() == id {
			return r, true
		}
	}
	return nil, false
}

// Query holds the search parameters accepted by the fetch endpoint.
type Query struct {
	SearchKeyword       string `json:"searchKeyword,omitempty"`
	PreviousFactoryCode string `json:"previousFactoryCode,omitempty"`
	ProductFactoryCode  string `json:"productFactoryCode,omitempty"`
}

// Values encodes the query as URL parameters, omitting empty ones.
func (q Query) Values() url.Values {
	v := url.Values{}
	if s := strings.TrimSpace(q.SearchKeyword); s != "" {
		v.Set("searchKeyword", s)
	}
	if s := strings.TrimSpace(q.PreviousFactoryCode); s != "" {
		v.Set("previousFactoryCode", s)
	}
	if s := strings.TrimSpace(q.ProductFactoryCode); s != "" {
		v.Set("productFactoryCode", s)
	}
	return v
}

// QueryFromValues is the inverse of Query.Values.
func QueryFromValues(v url.Values) Query {
	return Query{
		SearchKeyword:       strings.TrimSpace(v.Get("searchKeyword")),
		PreviousFactoryCode: strings.TrimSpace(v.Get("previousFactoryCode")),
		ProductFactoryCode:  strings.TrimSpace(v.Get("productFactoryCode")),
	}
}
