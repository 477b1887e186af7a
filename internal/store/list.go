package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/factoryinv/internal/inventory"
)

// List returns the rows matching q, ordered by the natural key.
func (s *Store) List(ctx context.Context, q inventory.Query) ([]inventory.Row, error) {
	query, args := buildListQuery(q)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", Table, err)
	}
	defer rows.Close()

	out := []inventory.Row{}
	values := make([]string, len(columns)+1)
	dest := make([]any, len(values))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", Table, err)
		}
		row := make(inventory.Row, len(values))
		row[inventory.IDField] = values[0]
		for i, c := range columns {
			row[c.field.Name] = values[i+1]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", Table, err)
	}
	return out, nil
}

// buildListQuery renders the SELECT for q. The keyword matches any text
// column; the factory codes match their own column. All matches are
// case-insensitive substrings.
func buildListQuery(q inventory.Query) (string, []any) {
	exprs := make([]string, 0, len(columns)+1)
	exprs = append(exprs, quoteIdentifier(inventory.IDField)+"::text")
	for _, c := range columns {
		exprs = append(exprs, c.selectExpr())
	}

	var (
		where []string
		args  []any
	)
	addArg := func(v string) string {
		args = append(args, "%"+escapeLike(v)+"%")
		return fmt.Sprintf("$%d", len(args))
	}

	if kw := strings.TrimSpace(q.SearchKeyword); kw != "" {
		p := addArg(kw)
		var ors []string
		for _, c := range columns {
			if c.searchable() {
				ors = append(ors, fmt.Sprintf("%s ILIKE %s", quoteIdentifier(c.name), p))
			}
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}
	if v := strings.TrimSpace(q.PreviousFactoryCode); v != "" {
		where = append(where, fmt.Sprintf("%s ILIKE %s", quoteIdentifier("previous_factory_code"), addArg(v)))
	}
	if v := strings.TrimSpace(q.ProductFactoryCode); v != "" {
		where = append(where, fmt.Sprintf("%s ILIKE %s", quoteIdentifier("product_factory_code"), addArg(v)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(exprs, ", "), quoteIdentifier(Table))
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(` ORDER BY "company_code", "previous_factory_code", "product_factory_code", "start_operation_date"`)
	return b.String(), args
}
