// Package obligations resolves the required artifacts of regulatory
// obligations to registry documents and plans the obligation links to
// attach. Planning is pure; the registry applies the plan.
package obligations

import (
	"sort"

	"github.com/Mindburn-Labs/docreg/pkg/compliance/matching"
	"github.com/Mindburn-Labs/docreg/pkg/contracts"
)

// Resolution records how an artifact reference was resolved.
type Resolution string

const (
	ByRequiredDocID Resolution = "requiredDocId"
	ByDocumentID    Resolution = "id"
	ByTitleMatch    Resolution = "titleMatch"
)

// UnresolvedRef is an artifact reference with no matching document.
type UnresolvedRef struct {
	ObligationID string `json:"obligationId"`
	Artifact     string `json:"artifact"`
}

// Result is the outcome of planning.
type Result struct {
	Links      []contracts.ObligationLink `json:"links"`
	Linked     int                        `json:"linked"`
	NewLinks   int                        `json:"newLinks"`
	Unresolved []UnresolvedRef            `json:"unresolved,omitempty"`
	Resolved   map[Resolution]int         `json:"resolved"`
}

// Linker indexes a registry snapshot for artifact resolution.
type Linker struct {
	byRequired map[string][]string
	byID       map[string]*contracts.Document
	titleLinks *matching.Links
}

// NewLinker builds the lookup indexes over docs. titleLinks is optional;
// when set, references that match neither a requiredDocId nor a document
// id fall back to the title-matched document for that requirement.
func NewLinker(docs []contracts.Document, titleLinks *matching.Links) *Linker {
	l := &Linker{
		byRequired: make(map[string][]string),
		byID:       make(map[string]*contracts.Document, len(docs)),
		titleLinks: titleLinks,
	}
	for i := range docs {
		d := &docs[i]
		if _, dup := l.byID[d.ID]; !dup {
			l.byID[d.ID] = d
		}
		if d.RequiredDocID != "" {
			l.byRequired[d.RequiredDocID] = append(l.byRequired[d.RequiredDocID], d.ID)
		}
	}
	return l
}

// resolve returns the ids of the documents satisfying ref, in registry order.
func (l *Linker) resolve(ref string) ([]string, Resolution) {
	if ids := l.byRequired[ref]; len(ids) > 0 {
		return ids, ByRequiredDocID
	}
	if _, ok := l.byID[ref]; ok {
		return []string{ref}, ByDocumentID
	}
	if l.titleLinks != nil {
		if d, ok := l.titleLinks.Get(ref); ok {
			if _, known := l.byID[d.ID]; known {
				return []string{d.ID}, ByTitleMatch
			}
		}
	}
	return nil, ""
}

// Plan resolves every artifact of every obligation. A link is emitted only
// when the document does not already carry the obligation and the pair has
// not been planned before, so planning after the links are applied yields
// no new links.
func (l *Linker) Plan(obligations []contracts.Obligation) Result {
	res := Result{Links: []contracts.ObligationLink{}, Resolved: make(map[Resolution]int)}
	planned := make(map[contracts.ObligationLink]struct{})

	for _, ob := range obligations {
		if ob.ID == "" {
			continue
		}
		linked := false
		for _, ref := range ob.RequiredArtifacts {
			ids, how := l.resolve(ref)
			if len(ids) == 0 {
				res.Unresolved = append(res.Unresolved, UnresolvedRef{ObligationID: ob.ID, Artifact: ref})
				continue
			}
			linked = true
			res.Resolved[how]++
			for _, id := range ids {
				link := contracts.ObligationLink{DocumentID: id, ObligationID: ob.ID}
				if _, dup := planned[link]; dup || l.byID[id].HasObligation(ob.ID) {
					continue
				}
				planned[link] = struct{}{}
				res.Links = append(res.Links, link)
			}
		}
		if linked {
			res.Linked++
		}
	}

	sort.SliceStable(res.Links, func(i, j int) bool {
		if res.Links[i].DocumentID != res.Links[j].DocumentID {
			return res.Links[i].DocumentID < res.Links[j].DocumentID
		}
		return res.Links[i].ObligationID < res.Links[j].ObligationID
	})
	res.NewLinks = len(res.Links)
	return res
}

// Plan is a convenience wrapper around NewLinker(docs, titleLinks).Plan.
func Plan(obligations []contracts.Obligation, docs []contracts.Document, titleLinks *matching.Links) Result {
	return NewLinker(docs, titleLinks).Plan(obligations)
}
