package matrix

import (
	"sort"

	"github.com/Mindburn-Labs/docreg/pkg/contracts"
)

// DomainSummary counts requirements of one domain.
type DomainSummary struct {
	Domain   string  `json:"domain"`
	Total    int     `json:"total"`
	Matched  int     `json:"matched"`
	Coverage float64 `json:"coverage"`
}

// Summary aggregates both views for the console and the JSON report.
type Summary struct {
	Requirements int             `json:"requirements"`
	Matched      int             `json:"matched"`
	Missing      int             `json:"missing"`
	Coverage     float64         `json:"coverage"`
	ByStatus     map[string]int  `json:"byStatus"`
	ByDomain     []DomainSummary `json:"byDomain"`
	Articles     int             `json:"articles"`
	Implemented  int             `json:"implemented"`
	Gaps         int             `json:"gaps"`
}

// Summarize counts gap rows by status and domain and matrix rows by status.
// Coverage values are percentages rounded to one decimal.
func Summarize(gaps []GapRow, rows []MatrixRow) Summary {
	s := Summary{Requirements: len(gaps), ByStatus: make(map[string]int), ByDomain: []DomainSummary{}}
	domains := make(map[string]*DomainSummary)
	for _, g := range gaps {
		s.ByStatus[g.Status]++
		d, ok := domains[g.Domain]
		if !ok {
			d = &DomainSummary{Domain: g.Domain}
			domains[g.Domain] = d
		}
		d.Total++
		if g.Matched() {
			s.Matched++
			d.Matched++
		} else if g.Status == string(contracts.StatusMissing) {
			s.Missing++
		}
	}
	s.Coverage = percent(s.Matched, s.Requirements)
	for _, d := range domains {
		d.Coverage = percent(d.Matched, d.Total)
		s.ByDomain = append(s.ByDomain, *d)
	}
	sort.Slice(s.ByDomain, func(i, j int) bool { return s.ByDomain[i].Domain < s.ByDomain[j].Domain })

	s.Articles = len(rows)
	for _, r := range rows {
		if r.Status == StatusImplemented {
			s.Implemented++
		} else {
			s.Gaps++
		}
	}
	return s
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(int(float64(n)*1000/float64(total)+0.5)) / 10
}
