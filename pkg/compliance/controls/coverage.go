package controls

import (
	"sort"

	"github.com/Mindburn-Labs/docreg/pkg/contracts"
)

// FrameworkCoverage is how many controls of one framework are implemented.
type FrameworkCoverage struct {
	Framework   string  `json:"framework"`
	Total       int     `json:"total"`
	Implemented int     `json:"implemented"`
	Percent     float64 `json:"percent"`
}

// ImplementedControls collects the control references carried by documents
// in an Approved or Active state.
func ImplementedControls(docs []contracts.Document) map[string]struct{} {
	out := make(map[string]struct{})
	for _, d := range docs {
		if d.Status != contracts.StatusApproved && d.Status != contracts.StatusActive {
			continue
		}
		for _, c := range d.Controls {
			out[c] = struct{}{}
		}
	}
	return out
}

// Coverage counts the controls of frameworkID that appear in implemented,
// either by library id or by their mapped controlId/controlCode in that
// framework.
func (x *Index) Coverage(frameworkID string, implemented map[string]struct{}) FrameworkCoverage {
	cov := FrameworkCoverage{Framework: frameworkID}
	for _, p := range x.byFramework[frameworkID] {
		c := x.controls[p]
		cov.Total++
		if isImplemented(c, frameworkID, implemented) {
			cov.Implemented++
		}
	}
	if cov.Total > 0 {
		cov.Percent = float64(int(float64(cov.Implemented)*1000/float64(cov.Total)+0.5)) / 10
	}
	return cov
}

// CoverageAll reports Coverage for every known framework, sorted by id.
func (x *Index) CoverageAll(implemented map[string]struct{}) []FrameworkCoverage {
	fws := make([]string, 0, len(x.byFramework))
	for fw := range x.byFramework {
		fws = append(fws, fw)
	}
	sort.Strings(fws)
	out := make([]FrameworkCoverage, 0, len(fws))
	for _, fw := range fws {
		out = append(out, x.Coverage(fw, implemented))
	}
	return out
}

func isImplemented(c contracts.Control, frameworkID string, implemented map[string]struct{}) bool {
	if _, ok := implemented[c.ID]; ok {
		return true
	}
	for _, m := range c.Mappings {
		if m.Framework != frameworkID {
			continue
		}
		if _, ok := implemented[m.ControlID]; ok && m.ControlID != "" {
			return true
		}
		if _, ok := implemented[m.ControlCode]; ok && m.ControlCode != "" {
			return true
		}
	}
	return false
}
