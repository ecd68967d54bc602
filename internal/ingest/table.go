// Package ingest turns uploaded export files into a raw string table.
// No typing happens here; every cell stays text until normalization.
package ingest

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
)

// Table is a header plus rows of string cells. Every row has len(Columns)
// cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

func (t Table) Len() int {
	return len(t.Rows)
}

// ParseError reports input that is not a well-formed table.
type ParseError struct {
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Read picks a reader from the file extension. Anything that is not a
// spreadsheet is treated as CSV.
func Read(r io.Reader, filename string) (Table, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(r)
	default:
		return ReadCSV(r)
	}
}

// ReadCSV loads a CSV with a header row. Type detection is disabled so that
// malformed numbers survive as text and are coerced later.
func ReadCSV(r io.Reader) (Table, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return Table{}, &ParseError{Format: "csv", Err: df.Err}
	}

	records := df.Records()
	if len(records) == 0 {
		return Table{}, &ParseError{Format: "csv", Err: fmt.Errorf("no header row")}
	}

	return newTable(records[0], records[1:])
}

// ReadXLSX loads the first worksheet of a workbook. The first row is the
// header.
func ReadXLSX(r io.Reader) (Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Table{}, &ParseError{Format: "xlsx", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, &ParseError{Format: "xlsx", Err: fmt.Errorf("workbook has no sheets")}
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Table{}, &ParseError{Format: "xlsx", Err: err}
	}
	if len(rows) == 0 {
		return Table{}, &ParseError{Format: "xlsx", Err: fmt.Errorf("sheet %q is empty", sheets[0])}
	}

	return newTable(rows[0], rows[1:])
}

// ReadBytes is a convenience for callers holding the whole upload in memory.
func ReadBytes(data []byte, filename string) (Table, error) {
	return Read(bytes.NewReader(data), filename)
}

func newTable(header []string, body [][]string) (Table, error) {
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	if len(columns) == 0 {
		return Table{}, &ParseError{Format: "table", Err: fmt.Errorf("header has no columns")}
	}

	rows := make([][]string, 0, len(body))
	for _, raw := range body {
		if blankRow(raw) {
			continue
		}
		row := make([]string, len(columns))
		copy(row, raw)
		rows = append(rows, row)
	}

	return Table{Columns: columns, Rows: rows}, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
