// Package sheet reads and writes inventory spreadsheets.
//
// Import accepts .xlsx and .csv. The first row is the header; columns are
// matched to fields by their external label and unknown columns are
// dropped. Export always writes .xlsx with a single sheet named after the
// layout.
package sheet

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/factoryinv/internal/inventory"
)

var (
	// ErrUnsupportedFormat is returned for file types other than xlsx and csv.
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")

	// ErrNoHeader is returned for files without a header row.
	ErrNoHeader = errors.New("spreadsheet has no header row")
)

// Format is a spreadsheet file type.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// MIME types of exported files.
const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeCSV  = "text/csv; charset=utf-8"
)

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return ContentTypeCSV
	}
	return ContentTypeXLSX
}

// ParseFormat validates a format name; empty means xlsx.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case "", FormatXLSX:
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// FormatFor picks the format from a file name's extension.
func FormatFor(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// Result is a decoded import.
type Result struct {
	Rows []inventory.Row

	// Skipped counts blank data rows.
	Skipped int

	// Unmapped lists header labels that matched no field.
	Unmapped []string
}

// Decode reads a spreadsheet and maps it onto layout. Rows carry no
// identifier.
func Decode(r io.Reader, format Format, layout *inventory.Layout) (*Result, error) {
	var (
		records [][]string
		err     error
	)
	switch format {
	case FormatXLSX:
		records, err = readXLSX(r)
	case FormatCSV:
		records, err = readCSV(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}
	return mapRecords(records, layout)
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read excel: %w", err)
	}
	return rows, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// skipBOM drops a leading UTF-8 byte order mark, as written by Excel.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(b, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(skipBOM(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return records, nil
}

func mapRecords(records [][]string, layout *inventory.Layout) (*Result, error) {
	if len(records) == 0 || isEmptyRow(records[0]) {
		return nil, ErrNoHeader
	}
	header := records[0]

	res := &Result{Rows: []inventory.Row{}}
	for _, h := range header {
		if h = strings.TrimSpace(h); h == "" {
			continue
		}
		if _, ok := layout.FieldForHeader(h); !ok {
			res.Unmapped = append(res.Unmapped, h)
		}
	}

	for _, rec := range records[1:] {
		if isEmptyRow(rec) {
			res.Skipped++
			continue
		}
		res.Rows = append(res.Rows, layout.FromRecord(header, rec))
	}
	return res, nil
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// EncodeXLSX writes rows as a workbook with a header row.
func EncodeXLSX(w io.Writer, rows []inventory.Row, layout *inventory.Layout) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := layout.SheetName
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	if err := writeRow(f, sheet, 1, layout.Headers()); err != nil {
		return err
	}
	for i, row := range rows {
		if err := writeRow(f, sheet, i+2, layout.ToExternal(row)); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, rowIdx int, values []string) error {
	for c, v := range values {
		cell, err := excelize.CoordinatesToCellName(c+1, rowIdx)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

// Encode writes rows in the given format.
func Encode(w io.Writer, rows []inventory.Row, format Format, layout *inventory.Layout) error {
	switch format {
	case FormatXLSX:
		return EncodeXLSX(w, rows, layout)
	case FormatCSV:
		return EncodeCSV(w, rows, layout)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// EncodeCSV writes rows as CSV with a BOM so Excel detects UTF-8.
func EncodeCSV(w io.Writer, rows []inventory.Row, layout *inventory.Layout) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(layout.Headers()); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(layout.ToExternal(row)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
