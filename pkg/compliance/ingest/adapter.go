package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/docreg/pkg/compliance/normalize"
	"github.com/Mindburn-Labs/docreg/pkg/contracts"
)

// Stats counts what happened to the rows of one table.
type Stats struct {
	Rows    int `json:"rows"`
	Dropped int `json:"dropped"`
}

// Adapter turns tables into registry records.
type Adapter struct {
	DocumentProfile    Profile
	RequirementProfile Profile
	RunID              string
	Now                func() time.Time
	Logger             *slog.Logger
}

// NewAdapter returns an adapter with the default header profiles and a fresh
// run id.
func NewAdapter() *Adapter {
	return &Adapter{
		DocumentProfile:    DefaultDocumentProfile(),
		RequirementProfile: DefaultRequirementProfile(),
		RunID:              uuid.NewString(),
		Now:                time.Now,
		Logger:             slog.Default().With("component", "ingest"),
	}
}

func (a *Adapter) now() time.Time {
	if a.Now == nil {
		return time.Now().UTC()
	}
	return a.Now().UTC()
}

func (a *Adapter) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

// Documents converts every row of t into a Document owned by department.
// Rows without an id are dropped and counted; every other gap is filled
// with a default.
func (a *Adapter) Documents(t *Table, department, folder string) ([]contracts.Document, Stats) {
	rows := DecodeDocumentRows(t, a.DocumentProfile)
	stats := Stats{Rows: len(rows)}
	ts := a.now()

	docs := make([]contracts.Document, 0, len(rows))
	for _, r := range rows {
		if !r.ID.Present {
			stats.Dropped++
			a.logger().Warn("row dropped: no document id", "source", t.Source, "sheet", t.Sheet, "row", r.Line)
			continue
		}
		docs = append(docs, a.document(r, t, department, folder, ts))
	}
	return docs, stats
}

func (a *Adapter) document(r DocumentRow, t *Table, department, folder string, ts time.Time) contracts.Document {
	id := r.ID.Value

	docType := normalize.NormalizeType(id)
	if r.Type.Present {
		docType = normalize.NormalizeType(r.Type.Value)
	}

	status := contracts.Status(DefaultStatus)
	if r.Status.Present {
		if s, ok := normalize.CanonicalStatus(r.Status.Value); ok {
			status = s
		} else {
			status = normalize.NormalizeStatus(r.Status.Value)
		}
	}

	p := strings.ReplaceAll(r.Path.Or(DefaultPath), `\`, "/")
	var filename string
	if p != "" {
		filename = path.Base(p)
	}
	docFolder := r.Folder.Value
	if docFolder == "" && strings.Contains(p, "/") {
		docFolder = path.Dir(p)
	}
	if docFolder == "" {
		docFolder = folder
	}

	return contracts.Document{
		ID:            id,
		Title:         r.Title.Or(DefaultTitle),
		Type:          docType,
		Department:    department,
		Status:        status,
		Version:       r.Version.Value,
		LastUpdated:   normalizeDate(r.LastUpdated.Value),
		RequiredDocID: r.RequiredDocID.Value,
		Frameworks:    splitList(r.Frameworks.Value),
		Controls:      splitList(r.Controls.Value),
		Filename:      filename,
		Folder:        docFolder,
		Provenance: contracts.Provenance{
			Source:    provenanceSource(t),
			Timestamp: ts,
			RunID:     a.RunID,
		},
	}
}

func provenanceSource(t *Table) string {
	if t.Sheet == "" {
		return t.Source
	}
	return t.Source + "#" + t.Sheet
}

// RequiredDocuments converts a requirement-register sheet. Rows without a
// docId are dropped; a row without a domain column lands in defaultDomain.
// Duplicate docIds within a domain keep the first row.
func (a *Adapter) RequiredDocuments(t *Table, defaultDomain string) ([]contracts.RequiredDocument, Stats) {
	rows := DecodeRequirementRows(t, a.RequirementProfile)
	stats := Stats{Rows: len(rows)}
	seen := make(map[string]struct{}, len(rows))

	out := make([]contracts.RequiredDocument, 0, len(rows))
	for _, r := range rows {
		if !r.DocID.Present {
			stats.Dropped++
			continue
		}
		domain := r.Domain.Or(defaultDomain)
		key := domain + "\x00" + r.DocID.Value
		if _, dup := seen[key]; dup {
			stats.Dropped++
			a.logger().Warn("duplicate required document id", "domain", domain, "docId", r.DocID.Value, "row", r.Line)
			continue
		}
		seen[key] = struct{}{}
		out = append(out, contracts.RequiredDocument{
			Domain:   domain,
			DocID:    r.DocID.Value,
			Title:    r.Title.Or(DefaultTitle),
			Priority: r.Priority.Value,
		})
	}
	return out, stats
}

// DepartmentSource describes where one department's baseline lives.
type DepartmentSource struct {
	Code    string
	Path    string
	Sheets  []string
	Folder  string
	Headers map[string][]string
}

// Result is the outcome of loading one department.
type Result struct {
	Department string
	Sheet      string
	Docs       []contracts.Document
	Stats      Stats
	Missing    bool
}

// LoadDepartment reads and converts one department source. A missing file
// is not an error: the result is empty with Missing set and a warning is
// logged. Any other read failure is returned.
func (a *Adapter) LoadDepartment(ctx context.Context, src DepartmentSource) (Result, error) {
	res := Result{Department: src.Code}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	t, err := ReadTable(src.Path, src.Sheets)
	if err != nil {
		if errors.Is(err, ErrSourceMissing) {
			a.logger().Warn("department source missing, skipping", "department", src.Code, "path", src.Path)
			res.Missing = true
			return res, nil
		}
		return res, fmt.Errorf("department %s: %w", src.Code, err)
	}

	adapter := *a
	if len(src.Headers) > 0 {
		adapter.DocumentProfile = a.DocumentProfile.WithOverrides(src.Headers)
	}
	res.Sheet = t.Sheet
	res.Docs, res.Stats = adapter.Documents(t, src.Code, src.Folder)

	a.logger().Info("department loaded",
		"department", src.Code,
		"sheet", t.Sheet,
		"rows", res.Stats.Rows,
		"dropped", res.Stats.Dropped,
	)
	return res, nil
}
