package inventory

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Known field names.
const (
	FieldCompanyCode              = "companyCode"
	FieldPreviousFactoryCode      = "previousFactoryCode"
	FieldProductFactoryCode       = "productFactoryCode"
	FieldStartOperationDate       = "startOperationDate"
	FieldEndOperationDate         = "endOperationDate"
	FieldPreviousFactoryName      = "previousFactoryName"
	FieldProductFactoryName       = "productFactoryName"
	FieldMaterialDepartmentCode   = "materialDepartmentCode"
	FieldEnvironmentalInformation = "environmentalInformation"
	FieldAuthenticationFlag       = "authenticationFlag"
	FieldGroupCorporateCode       = "groupCorporateCode"
	FieldIntegrationPattern       = "integrationPattern"
	FieldHulftID                  = "hulftid"
)

// DetailFields identify a row in user-facing error messages, in order.
var DetailFields = []string{
	FieldCompanyCode,
	FieldPreviousFactoryCode,
	FieldProductFactoryCode,
	FieldStartOperationDate,
	FieldEndOperationDate,
}

// Kind selects how a column is compared and stored.
type Kind string

const (
	KindCode Kind = "code" // plain text, byte-wise ordering
	KindName Kind = "name" // free text, locale collation
	KindDate Kind = "date" // YYYY-MM-DD
)

// Field describes one known column.
type Field struct {
	Name  string `yaml:"name"`
	Label string `yaml:"label"`
	Kind  Kind   `yaml:"kind"`
}

// Layout is the fixed field list plus the header remapping tables used by
// spreadsheet import and export.
type Layout struct {
	SheetName string

	fields   []Field
	byName   map[string]Field
	upload   map[string]string // external label -> field
	download map[string]string // field -> external label
}

type layoutFile struct {
	Sheet         string            `yaml:"sheet"`
	Fields        []Field           `yaml:"fields"`
	UploadAliases map[string]string `yaml:"upload_aliases"`
}

//go:embed headers.yaml
var headersYAML []byte

var defaultLayout = mustParseLayout(headersYAML)

func mustParseLayout(data []byte) *Layout {
	l, err := ParseLayout(data)
	if err != nil {
		panic(fmt.Sprintf("inventory: invalid embedded header layout: %v", err))
	}
	return l
}

// DefaultLayout returns the embedded layout.
func DefaultLayout() *Layout {
	return defaultLayout
}

// ParseLayout reads a layout document.
func ParseLayout(data []byte) (*Layout, error) {
	var f layoutFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	if len(f.Fields) == 0 {
		return nil, fmt.Errorf("parse layout: no fields defined")
	}

	l := &Layout{
		SheetName: f.Sheet,
		fields:    make([]Field, 0, len(f.Fields)),
		byName:    make(map[string]Field, len(f.Fields)),
		upload:    make(map[string]string, len(f.Fields)+len(f.UploadAliases)),
		download:  make(map[string]string, len(f.Fields)),
	}
	if l.SheetName == "" {
		l.SheetName = "Sheet1"
	}

	for _, fd := range f.Fields {
		if fd.Name == "" || fd.Label == "" {
			return nil, fmt.Errorf("parse layout: field %q needs name and label", fd.Name)
		}
		if _, dup := l.byName[fd.Name]; dup {
			return nil, fmt.Errorf("parse layout: duplicate field %q", fd.Name)
		}
		switch fd.Kind {
		case KindCode, KindName, KindDate:
		case "":
			fd.Kind = KindCode
		default:
			return nil, fmt.Errorf("parse layout: field %q has unknown kind %q", fd.Name, fd.Kind)
		}
		l.fields = append(l.fields, fd)
		l.byName[fd.Name] = fd
		l.upload[fd.Label] = fd.Name
		l.download[fd.Name] = fd.Label
	}

	for label, name := range f.UploadAliases {
		if _, ok := l.byName[name]; !ok {
			return nil, fmt.Errorf("parse layout: alias %q targets unknown field %q", label, name)
		}
		l.upload[label] = name
	}

	return l, nil
}

// Fields returns the known fields in display order.
func (l *Layout) Fields() []Field {
	out := make([]Field, len(l.fields))
	copy(out, l.fields)
	return out
}

// Field looks up a known field by name.
func (l *Layout) Field(name string) (Field, bool) {
	f, ok := l.byName[name]
	return f, ok
}

// Headers returns the export header row.
func (l *Layout) Headers() []string {
	out := make([]string, len(l.fields))
	for i, f := range l.fields {
		out[i] = l.download[f.Name]
	}
	return out
}

// FieldForHeader maps an external column label to a field name.
// Surrounding whitespace in the label is ignored.
func (l *Layout) FieldForHeader(label string) (string, bool) {
	name, ok := l.upload[strings.TrimSpace(label)]
	return name, ok
}

// FromRecord converts one external record into a Row, pairing values with
// header labels by column. Columns without a mapping are dropped. When two
// columns map to the same field the leftmost wins. No identifier is
// assigned.
func (l *Layout) FromRecord(header, record []string) Row {
	row := make(Row, len(header))
	for i, label := range header {
		if i >= len(record) {
			break
		}
		name, ok := l.FieldForHeader(label)
		if !ok {
			continue
		}
		if _, seen := row[name]; !seen {
			row[name] = strings.TrimSpace(record[i])
		}
	}
	return row
}

// ToExternal returns the row's values in export column order.
func (l *Layout) ToExternal(row Row) []string {
	out := make([]string, len(l.fields))
	for i, f := range l.fields {
		out[i] = row[f.Name]
	}
	return out
}

// Fields returns the known fields of the default layout.
func Fields() []Field {
	return defaultLayout.Fields()
}

// LookupField finds a known field of the default layout.
func LookupField(name string) (Field, bool) {
	return defaultLayout.Field(name)
}
