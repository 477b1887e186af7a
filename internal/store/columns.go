package store

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/JonMunkholm/factoryinv/internal/inventory"
)

// column binds a field to its table column.
type column struct {
	field inventory.Field
	name  string
}

// columns lists the data columns in layout order.
var columns = buildColumns(inventory.Fields())

func buildColumns(fields []inventory.Field) []column {
	cols := make([]column, len(fields))
	for i, f := range fields {
		cols[i] = column{field: f, name: toDBColumnName(f.Name)}
	}
	return cols
}

// toDBColumnName converts a field name to a database column name.
// "companyCode" -> "company_code", "hulftid" -> "hulftid".
func toDBColumnName(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// quoteIdentifier quotes a SQL identifier to prevent injection.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// selectExpr renders a column as text, with dates in ISO form and NULL as "".
func (c column) selectExpr() string {
	q := quoteIdentifier(c.name)
	if c.field.Kind == inventory.KindDate {
		return fmt.Sprintf("COALESCE(to_char(%s, 'YYYY-MM-DD'), '')", q)
	}
	return fmt.Sprintf("COALESCE(%s, '')", q)
}

// searchable reports whether the keyword search covers the column.
func (c column) searchable() bool {
	return c.field.Kind != inventory.KindDate
}

// escapeLike escapes LIKE wildcards in s.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
