package ingest

import (
	"maps"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Logical field names resolved from header rows.
const (
	FieldID            = "id"
	FieldTitle         = "title"
	FieldType          = "type"
	FieldStatus        = "status"
	FieldVersion       = "version"
	FieldLastUpdated   = "lastUpdated"
	FieldPath          = "path"
	FieldFolder        = "folder"
	FieldRequiredDocID = "requiredDocId"
	FieldFrameworks    = "frameworks"
	FieldControls      = "controls"
	FieldDomain        = "domain"
	FieldPriority      = "priority"
)

// Profile maps each logical field to an ordered list of header candidates.
// The first candidate found in the header row wins.
type Profile struct {
	Name   string
	Fields map[string][]string
}

// DefaultDocumentProfile covers the English and Arabic labels used by the
// department baselines.
func DefaultDocumentProfile() Profile {
	return Profile{
		Name: "document",
		Fields: map[string][]string{
			FieldID:            {"Document ID", "Doc ID", "Document No", "Document Number", "Reference", "Ref", "ID", "رقم الوثيقة", "الرمز"},
			FieldTitle:         {"Document Title", "Document Name", "Title", "Name", "عنوان الوثيقة", "اسم الوثيقة"},
			FieldType:          {"Document Type", "Type", "نوع الوثيقة"},
			FieldStatus:        {"Status", "Document Status", "Approval Status", "الحالة"},
			FieldVersion:       {"Version", "Rev", "Revision", "الإصدار"},
			FieldLastUpdated:   {"Last Updated", "Last Review Date", "Last Reviewed", "Date", "تاريخ التحديث", "تاريخ آخر مراجعة"},
			FieldPath:          {"File Path", "Path", "File Name", "Filename", "File", "Location", "المسار", "اسم الملف"},
			FieldFolder:        {"Folder", "Directory", "المجلد"},
			FieldRequiredDocID: {"Required Doc ID", "Requirement ID", "Required Document"},
			FieldFrameworks:    {"Frameworks", "Framework", "الأطر"},
			FieldControls:      {"Controls", "Control IDs", "Control", "الضوابط"},
		},
	}
}

// DefaultRequirementProfile covers requirement-register sheets.
func DefaultRequirementProfile() Profile {
	return Profile{
		Name: "requirement",
		Fields: map[string][]string{
			FieldID:       {"Doc ID", "Document ID", "Requirement ID", "ID", "رقم الوثيقة"},
			FieldTitle:    {"Required Document", "Document Title", "Title", "Name", "عنوان الوثيقة"},
			FieldDomain:   {"Domain", "Category", "Area", "المجال"},
			FieldPriority: {"Priority", "الأولوية"},
		},
	}
}

// WithOverrides returns a copy of p where each overridden field's candidates
// are tried before the defaults.
func (p Profile) WithOverrides(overrides map[string][]string) Profile {
	out := Profile{Name: p.Name, Fields: maps.Clone(p.Fields)}
	for field, cands := range overrides {
		out.Fields[field] = append(slices.Clone(cands), p.Fields[field]...)
	}
	return out
}

// foldLabel canonicalizes a header label for comparison: NFKC, case folded,
// inner whitespace collapsed, trailing colon and asterisk markers dropped.
func foldLabel(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimRight(s, ":* ")
}

// HeaderIndex resolves logical fields to column positions.
type HeaderIndex struct {
	labels map[string]int
}

// NewHeaderIndex indexes every header cell under its whole label and under
// each side of a bilingual "English / Local" split. The leftmost column wins
// when two columns share a label.
func NewHeaderIndex(header []string) *HeaderIndex {
	h := &HeaderIndex{labels: make(map[string]int)}
	add := func(label string, col int) {
		key := foldLabel(label)
		if key == "" {
			return
		}
		if _, exists := h.labels[key]; !exists {
			h.labels[key] = col
		}
	}
	for col, raw := range header {
		add(raw, col)
		for _, sep := range []string{"/", "|", "\n"} {
			if strings.Contains(raw, sep) {
				for _, part := range strings.Split(raw, sep) {
					add(part, col)
				}
			}
		}
	}
	return h
}

// Resolve returns the column of the first candidate present in the header,
// or -1.
func (h *HeaderIndex) Resolve(candidates []string) int {
	for _, c := range candidates {
		if col, ok := h.labels[foldLabel(c)]; ok {
			return col
		}
	}
	return -1
}

// Columns resolves every field of a profile. Missing fields map to -1.
func (h *HeaderIndex) Columns(p Profile) map[string]int {
	out := make(map[string]int, len(p.Fields))
	for field, cands := range p.Fields {
		out[field] = h.Resolve(cands)
	}
	return out
}
