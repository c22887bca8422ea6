// Package matrix derives the two compliance views of a run: the gap
// analysis (one row per required document) and the compliance matrix (one
// row per law article). Both are recomputed from the registry and the
// static inputs on every run and never persisted as state.
package matrix

import (
	"github.com/Mindburn-Labs/docreg/pkg/compliance/matching"
	"github.com/Mindburn-Labs/docreg/pkg/contracts"
)

// GapRow is one required document and the status of its evidence.
type GapRow struct {
	ID         string `json:"id"`
	Domain     string `json:"domain"`
	Title      string `json:"title"`
	Priority   string `json:"priority"`
	Status     string `json:"status"`
	ActualFile string `json:"actualFile"`
	DocumentID string `json:"documentId,omitempty"`
}

// Matched reports whether a document was resolved for the row.
func (r GapRow) Matched() bool { return r.DocumentID != "" }

// BuildGapAnalysis emits one row per required document, in register order.
// Status is Missing unless the requirement resolved to a document, in which
// case it is that document's status (Draft when unset). Each row is
// resolved within its own domain.
func BuildGapAnalysis(register []contracts.RequiredDocument, links matching.Links) []GapRow {
	rows := make([]GapRow, 0, len(register))
	for _, req := range register {
		row := GapRow{
			ID:       req.DocID,
			Domain:   req.Domain,
			Title:    req.Title,
			Priority: req.Priority,
			Status:   string(contracts.StatusMissing),
		}
		if doc, ok := links.Lookup(req); ok {
			row.DocumentID = doc.ID
			row.ActualFile = doc.Filename
			row.Status = string(doc.Status)
			if row.Status == "" {
				row.Status = string(contracts.StatusDraft)
			}
		}
		rows = append(rows, row)
	}
	return rows
}
