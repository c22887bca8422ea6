package pipeline

import (
	"fmt"
	"io"
	"sort"

	"github.com/Mindburn-Labs/docreg/pkg/artifacts"
	"github.com/Mindburn-Labs/docreg/pkg/compliance/ingest"
	"github.com/Mindburn-Labs/docreg/pkg/compliance/matrix"
	"github.com/Mindburn-Labs/docreg/pkg/compliance/normalize"
	"github.com/Mindburn-Labs/docreg/pkg/compliance/obligations"
	"github.com/Mindburn-Labs/docreg/pkg/registry"
)

// DepartmentReport is the ingest outcome for one department.
type DepartmentReport struct {
	Code    string `json:"code"`
	Sheet   string `json:"sheet,omitempty"`
	Rows    int    `json:"rows"`
	Dropped int    `json:"dropped"`
	Added   int    `json:"added"`
	Skipped int    `json:"skipped"`
	Missing bool   `json:"missing,omitempty"`
}

// IngestSummary reports an ingest stage.
type IngestSummary struct {
	Replace     bool                 `json:"replace"`
	Departments []DepartmentReport   `json:"departments"`
	Added       int                  `json:"added"`
	Skipped     int                  `json:"skipped"`
	Removed     int                  `json:"removed"`
	Total       int                  `json:"total"`
	Changes     *normalize.ChangeSet `json:"changes,omitempty"`
}

// MissingSources lists the departments whose source file was absent.
func (s *IngestSummary) MissingSources() []string {
	var out []string
	for _, d := range s.Departments {
		if d.Missing {
			out = append(out, d.Code)
		}
	}
	return out
}

func (s *IngestSummary) fill(results []ingest.Result, merge registry.MergeResult) {
	s.Added = merge.Added
	s.Skipped = merge.Skipped
	for _, res := range results {
		c := merge.ByDepartment[res.Department]
		s.Departments = append(s.Departments, DepartmentReport{
			Code:    res.Department,
			Sheet:   res.Sheet,
			Rows:    res.Stats.Rows,
			Dropped: res.Stats.Dropped,
			Added:   c.Added,
			Skipped: c.Skipped,
			Missing: res.Missing,
		})
	}
}

// WriteText prints the summary for the console.
func (s *IngestSummary) WriteText(w io.Writer) {
	mode := "merge"
	if s.Replace {
		mode = "replace"
	}
	fmt.Fprintf(w, "Ingest (%s)\n", mode)
	for _, d := range s.Departments {
		if d.Missing {
			fmt.Fprintf(w, "  %-10s source missing, skipped\n", d.Code)
			continue
		}
		fmt.Fprintf(w, "  %-10s rows=%d added=%d skipped=%d dropped=%d\n", d.Code, d.Rows, d.Added, d.Skipped, d.Dropped)
	}
	fmt.Fprintf(w, "  total: added=%d skipped=%d", s.Added, s.Skipped)
	if s.Replace {
		fmt.Fprintf(w, " removed=%d", s.Removed)
	}
	fmt.Fprintf(w, " registry=%d\n", s.Total)
	if missing := s.MissingSources(); len(missing) > 0 {
		fmt.Fprintf(w, "  missing sources: %v\n", missing)
	}
	if s.Changes != nil {
		fmt.Fprintf(w, "  changes: +%d ~%d -%d\n",
			s.Changes.Count(normalize.ChangeAdded),
			s.Changes.Count(normalize.ChangeModified),
			s.Changes.Count(normalize.ChangeRemoved),
		)
	}
}

// LinkSummary reports an obligation linking stage.
type LinkSummary struct {
	Obligations int                            `json:"obligations"`
	Linked      int                            `json:"linked"`
	Planned     int                            `json:"planned"`
	Applied     int                            `json:"applied"`
	Unresolved  []obligations.UnresolvedRef    `json:"unresolved,omitempty"`
	Resolved    map[obligations.Resolution]int `json:"resolved"`
}

// WriteText prints the summary for the console.
func (s *LinkSummary) WriteText(w io.Writer) {
	fmt.Fprintln(w, "Obligations")
	fmt.Fprintf(w, "  obligations=%d linked=%d new links=%d unresolved=%d\n",
		s.Obligations, s.Linked, s.Applied, len(s.Unresolved))
	kinds := make([]string, 0, len(s.Resolved))
	for k := range s.Resolved {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  resolved by %s: %d\n", k, s.Resolved[obligations.Resolution(k)])
	}
}

// ReportSummary reports a report stage.
type ReportSummary struct {
	Out       string          `json:"out"`
	JSON      string          `json:"json,omitempty"`
	Summary   matrix.Summary  `json:"summary"`
	Published []artifacts.Ref `json:"published,omitempty"`
}

// WriteText prints the summary for the console.
func (s *ReportSummary) WriteText(w io.Writer) {
	m := s.Summary
	fmt.Fprintln(w, "Report")
	fmt.Fprintf(w, "  requirements=%d matched=%d missing=%d coverage=%.1f%%\n",
		m.Requirements, m.Matched, m.Missing, m.Coverage)
	for _, d := range m.ByDomain {
		fmt.Fprintf(w, "  %-24s %d/%d (%.1f%%)\n", d.Domain, d.Matched, d.Total, d.Coverage)
	}
	fmt.Fprintf(w, "  articles=%d implemented=%d gaps=%d\n", m.Articles, m.Implemented, m.Gaps)
	fmt.Fprintf(w, "  workbook: %s\n", s.Out)
	if s.JSON != "" {
		fmt.Fprintf(w, "  json: %s\n", s.JSON)
	}
	for _, ref := range s.Published {
		fmt.Fprintf(w, "  published: %s\n", ref)
	}
}

// RunSummary reports a full run.
type RunSummary struct {
	RunID  string         `json:"runId"`
	Ingest *IngestSummary `json:"ingest,omitempty"`
	Link   *LinkSummary   `json:"link,omitempty"`
	Report *ReportSummary `json:"report,omitempty"`
}

// WriteText prints every completed stage.
func (s *RunSummary) WriteText(w io.Writer) {
	fmt.Fprintf(w, "Run %s\n", s.RunID)
	if s.Ingest != nil {
		s.Ingest.WriteText(w)
	}
	if s.Link != nil {
		s.Link.WriteText(w)
	}
	if s.Report != nil {
		s.Report.WriteText(w)
	}
}
