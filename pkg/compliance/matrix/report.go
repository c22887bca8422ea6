package matrix

import (
	"encoding/json"
	"io"
	"time"
)

// Report is the JSON form of one run's derived views.
type Report struct {
	GeneratedAt time.Time   `json:"generatedAt"`
	RunID       string      `json:"runId,omitempty"`
	Filter      string      `json:"filter,omitempty"`
	Summary     Summary     `json:"summary"`
	GapAnalysis []GapRow    `json:"gapAnalysis"`
	Matrix      []MatrixRow `json:"complianceMatrix"`
}

// NewReport assembles a report and its summary.
func NewReport(runID string, at time.Time, gaps []GapRow, rows []MatrixRow) *Report {
	if gaps == nil {
		gaps = []GapRow{}
	}
	if rows == nil {
		rows = []MatrixRow{}
	}
	return &Report{
		GeneratedAt: at.UTC(),
		RunID:       runID,
		Summary:     Summarize(gaps, rows),
		GapAnalysis: gaps,
		Matrix:      rows,
	}
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}
