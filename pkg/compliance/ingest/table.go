// Package ingest converts department spreadsheets into registry documents.
//
// A source is read into a Table (header row plus data rows). Header labels
// are resolved through ordered candidate lists so that the same logical
// field can be found under an English label, a local-language label, or a
// combined "English / Local" cell. Rows are decoded into tagged records with
// explicit presence flags, and then into contracts.Document values with
// documented defaults.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrSourceMissing is returned when a department source file does not exist.
// Callers treat it as a recoverable warning.
var ErrSourceMissing = errors.New("source file missing")

// ErrUnsupportedFormat is returned for file extensions the adapter can't read.
var ErrUnsupportedFormat = errors.New("unsupported source format")

// Table is one sheet of tabular data.
type Table struct {
	Source string
	Sheet  string
	Header []string
	Rows   [][]string
}

// cell returns the trimmed cell at col, or "" when out of range.
func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// ReadTable loads the first sheet whose name matches one of sheetCandidates
// (case-insensitive), or the first sheet when none match. CSV files have a
// single implicit sheet. The first non-empty row is the header.
func ReadTable(path string, sheetCandidates []string) (*Table, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %w", ErrSourceMissing, path, err)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	var (
		sheet string
		rows  [][]string
		err   error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		sheet, rows, err = readWorkbook(path, sheetCandidates)
	case ".csv":
		sheet = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		rows, err = readCSV(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, err
	}

	t := &Table{Source: path, Sheet: sheet}
	for i, r := range rows {
		if isBlank(r) {
			continue
		}
		t.Header = r
		for _, dr := range rows[i+1:] {
			if !isBlank(dr) {
				t.Rows = append(t.Rows, dr)
			}
		}
		break
	}
	return t, nil
}

func readWorkbook(path string, sheetCandidates []string) (string, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	sheet := pickSheet(sheets, sheetCandidates)

	rows, err := f.GetRows(sheet)
	if err != nil {
		return "", nil, fmt.Errorf("read sheet %q of %s: %w", sheet, path, err)
	}
	return sheet, rows, nil
}

func pickSheet(sheets, candidates []string) string {
	for _, c := range candidates {
		for _, s := range sheets {
			if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(c)) {
				return s
			}
		}
	}
	return sheets[0]
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the run configuration
	if err != nil {
		return nil, fmt.Errorf("open csv %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv %s: %w", path, err)
		}
		rows = append(rows, rec)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
