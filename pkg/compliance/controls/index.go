// Package controls provides the Index, a read-only query layer over the
// static control library. Framework coverage numbers answer how many
// controls of a framework are implemented; they are kept apart from the
// law/article compliance matrix.
package controls

import (
	"fmt"
	"sort"

	"github.com/Mindburn-Labs/docreg/pkg/contracts"
)

// Index is an immutable view of a control library. All queries return
// controls in library order.
type Index struct {
	controls    []contracts.Control
	frameworks  []contracts.Framework
	byID        map[string]int
	byCategory  map[string][]int
	byFramework map[string][]int // framework id → controls with ≥1 mapping
}

// NewIndex indexes lib. Controls must have unique, non-empty ids.
func NewIndex(lib contracts.ControlLibraryFile) (*Index, error) {
	idx := &Index{
		controls:    make([]contracts.Control, 0, len(lib.Controls)),
		frameworks:  append([]contracts.Framework{}, lib.Frameworks...),
		byID:        make(map[string]int, len(lib.Controls)),
		byCategory:  make(map[string][]int),
		byFramework: make(map[string][]int),
	}
	for _, c := range lib.Controls {
		if c.ID == "" {
			return nil, fmt.Errorf("invalid control: empty id")
		}
		if _, dup := idx.byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate control id %s", c.ID)
		}
		c.Mappings = append([]contracts.FrameworkMapping{}, c.Mappings...)
		pos := len(idx.controls)
		idx.controls = append(idx.controls, c)
		idx.byID[c.ID] = pos
		idx.byCategory[c.Category] = append(idx.byCategory[c.Category], pos)

		seen := make(map[string]struct{}, len(c.Mappings))
		for _, m := range c.Mappings {
			if _, dup := seen[m.Framework]; dup {
				continue
			}
			seen[m.Framework] = struct{}{}
			idx.byFramework[m.Framework] = append(idx.byFramework[m.Framework], pos)
		}
	}
	return idx, nil
}

func (x *Index) pick(positions []int) []contracts.Control {
	out := make([]contracts.Control, 0, len(positions))
	for _, p := range positions {
		out = append(out, cloneControl(x.controls[p]))
	}
	return out
}

func cloneControl(c contracts.Control) contracts.Control {
	c.Mappings = append([]contracts.FrameworkMapping{}, c.Mappings...)
	return c
}

// Len is the number of controls in the library.
func (x *Index) Len() int { return len(x.controls) }

// All returns every control in library order.
func (x *Index) All() []contracts.Control {
	out := make([]contracts.Control, len(x.controls))
	for i, c := range x.controls {
		out[i] = cloneControl(c)
	}
	return out
}

// ByFramework returns every control with at least one mapping into
// frameworkID.
func (x *Index) ByFramework(frameworkID string) []contracts.Control {
	return x.pick(x.byFramework[frameworkID])
}

// ByCategory returns every control of the category.
func (x *Index) ByCategory(category string) []contracts.Control {
	return x.pick(x.byCategory[category])
}

// ByFrameworksAndCategory returns controls of the category that map into at
// least one of frameworkIDs.
func (x *Index) ByFrameworksAndCategory(frameworkIDs []string, category string) []contracts.Control {
	want := make(map[string]struct{}, len(frameworkIDs))
	for _, f := range frameworkIDs {
		want[f] = struct{}{}
	}
	var positions []int
	for _, p := range x.byCategory[category] {
		for _, m := range x.controls[p].Mappings {
			if _, ok := want[m.Framework]; ok {
				positions = append(positions, p)
				break
			}
		}
	}
	return x.pick(positions)
}

// ByID returns the control with id.
func (x *Index) ByID(id string) (contracts.Control, bool) {
	p, ok := x.byID[id]
	if !ok {
		return contracts.Control{}, false
	}
	return cloneControl(x.controls[p]), true
}

// FrameworkMappingFor returns the first mapping of controlID into
// frameworkID.
func (x *Index) FrameworkMappingFor(controlID, frameworkID string) (contracts.FrameworkMapping, bool) {
	p, ok := x.byID[controlID]
	if !ok {
		return contracts.FrameworkMapping{}, false
	}
	for _, m := range x.controls[p].Mappings {
		if m.Framework == frameworkID {
			return m, true
		}
	}
	return contracts.FrameworkMapping{}, false
}

// CategoryStats counts controls per category.
func (x *Index) CategoryStats() map[string]int {
	out := make(map[string]int, len(x.byCategory))
	for cat, ps := range x.byCategory {
		out[cat] = len(ps)
	}
	return out
}

// FrameworkStats counts controls per framework. A control mapped into N
// frameworks counts once in each of them; several mappings of one control
// into the same framework count once.
func (x *Index) FrameworkStats() map[string]int {
	out := make(map[string]int, len(x.byFramework))
	for fw, ps := range x.byFramework {
		out[fw] = len(ps)
	}
	return out
}

// Frameworks lists the declared frameworks, followed by any framework that
// only appears in mappings, sorted by id.
func (x *Index) Frameworks() []contracts.Framework {
	out := append([]contracts.Framework{}, x.frameworks...)
	declared := make(map[string]struct{}, len(out))
	for _, f := range out {
		declared[f.ID] = struct{}{}
	}
	var extra []string
	for fw := range x.byFramework {
		if _, ok := declared[fw]; !ok {
			extra = append(extra, fw)
		}
	}
	sort.Strings(extra)
	for _, fw := range extra {
		out = append(out, contracts.Framework{ID: fw, Name: fw})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
