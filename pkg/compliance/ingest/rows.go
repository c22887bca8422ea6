package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Documented defaults for absent or empty fields.
const (
	DefaultTitle  = "Untitled"
	DefaultStatus = "Missing"
	DefaultPath   = ""
)

// Field is one optional cell value. Present is false when the column is
// absent from the header or the cell is blank.
type Field struct {
	Value   string
	Present bool
}

// Or returns the value, or def when the field is not present.
func (f Field) Or(def string) string {
	if !f.Present {
		return def
	}
	return f.Value
}

// DocumentRow is a decoded department-baseline row.
type DocumentRow struct {
	Line          int // 1-based data row number, header excluded
	ID            Field
	Title         Field
	Type          Field
	Status        Field
	Version       Field
	LastUpdated   Field
	Path          Field
	Folder        Field
	RequiredDocID Field
	Frameworks    Field
	Controls      Field
}

// RequirementRow is a decoded requirement-register row.
type RequirementRow struct {
	Line     int
	DocID    Field
	Title    Field
	Domain   Field
	Priority Field
}

func field(row []string, cols map[string]int, name string) Field {
	col, ok := cols[name]
	if !ok || col < 0 {
		return Field{}
	}
	v := cell(row, col)
	return Field{Value: v, Present: v != ""}
}

// DecodeDocumentRows decodes every data row of t with profile p.
func DecodeDocumentRows(t *Table, p Profile) []DocumentRow {
	cols := NewHeaderIndex(t.Header).Columns(p)
	out := make([]DocumentRow, 0, len(t.Rows))
	for i, row := range t.Rows {
		out = append(out, DocumentRow{
			Line:          i + 1,
			ID:            field(row, cols, FieldID),
			Title:         field(row, cols, FieldTitle),
			Type:          field(row, cols, FieldType),
			Status:        field(row, cols, FieldStatus),
			Version:       field(row, cols, FieldVersion),
			LastUpdated:   field(row, cols, FieldLastUpdated),
			Path:          field(row, cols, FieldPath),
			Folder:        field(row, cols, FieldFolder),
			RequiredDocID: field(row, cols, FieldRequiredDocID),
			Frameworks:    field(row, cols, FieldFrameworks),
			Controls:      field(row, cols, FieldControls),
		})
	}
	return out
}

// DecodeRequirementRows decodes every data row of t with profile p.
func DecodeRequirementRows(t *Table, p Profile) []RequirementRow {
	cols := NewHeaderIndex(t.Header).Columns(p)
	out := make([]RequirementRow, 0, len(t.Rows))
	for i, row := range t.Rows {
		out = append(out, RequirementRow{
			Line:     i + 1,
			DocID:    field(row, cols, FieldID),
			Title:    field(row, cols, FieldTitle),
			Domain:   field(row, cols, FieldDomain),
			Priority: field(row, cols, FieldPriority),
		})
	}
	return out
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02/01/2006",
	"2/1/2006",
	"01-02-06",
	"1/2/06",
	"02-Jan-2006",
	"2 January 2006",
	"January 2, 2006",
}

// normalizeDate renders recognizable dates as YYYY-MM-DD. Excel serial day
// numbers are converted; anything else is kept verbatim.
func normalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil && serial > 0 && serial < 100000 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t.Format("2006-01-02")
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return raw
}

// splitList splits a multi-value cell on common separators and drops
// duplicates while keeping first-seen order.
func splitList(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == '|'
	})
	seen := make(map[string]struct{}, len(parts))
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
