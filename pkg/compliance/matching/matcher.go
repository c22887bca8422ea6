// Package matching links required-document definitions to actual registry
// documents by normalized title containment.
//
// The heuristic is deliberately unscored: a requirement resolves to the
// first document, in registry order, whose normalized title contains the
// requirement title or is contained in it. Near-duplicate titles can
// therefore resolve to the wrong document.
package matching

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/Mindburn-Labs/docreg/pkg/contracts"
)

// NormalizeTitle lower-cases s and keeps only letters and digits after NFKC
// normalization, so "Data-Retention  Policy" and "data retention policy"
// compare equal.
func NormalizeTitle(s string) string {
	s = norm.NFKC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// Links maps required documents to the matched Document. Each
// (domain, docId) pair is resolved against its own title; the docId-keyed
// view keeps the first matched occurrence and serves lookups that only know
// a docId, such as law articles and obligation artifacts. It is never
// modified after construction; Get returns copies.
type Links struct {
	byReq   map[reqKey]contracts.Document
	byDocID map[string]contracts.Document
}

type reqKey struct {
	domain string
	docID  string
}

// Get returns the document matched to a required docId.
func (l Links) Get(docID string) (contracts.Document, bool) {
	d, ok := l.byDocID[docID]
	if !ok {
		return contracts.Document{}, false
	}
	return d.Clone(), true
}

// Lookup returns the document matched to req within its own domain.
func (l Links) Lookup(req contracts.RequiredDocument) (contracts.Document, bool) {
	d, ok := l.byReq[reqKey{req.Domain, req.DocID}]
	if !ok {
		return contracts.Document{}, false
	}
	return d.Clone(), true
}

// Len is the number of matched requirement ids.
func (l Links) Len() int { return len(l.byDocID) }

// IDs returns the matched requirement ids in sorted order.
func (l Links) IDs() []string {
	ids := make([]string, 0, len(l.byDocID))
	for id := range l.byDocID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Filename returns the matched document's filename, or "".
func (l Links) Filename(docID string) string {
	return l.byDocID[docID].Filename
}

// LinkRequirementsToDocuments resolves each required document to the first
// actual document whose normalized title contains, or is contained in, the
// required normalized title. Empty normalized titles never match. A docId
// shared by several domains is matched per domain; Get returns the first
// domain's match.
func LinkRequirementsToDocuments(required []contracts.RequiredDocument, actual []contracts.Document) Links {
	titles := make([]string, len(actual))
	for i, d := range actual {
		titles[i] = NormalizeTitle(d.Title)
	}

	out := Links{
		byReq:   make(map[reqKey]contracts.Document, len(required)),
		byDocID: make(map[string]contracts.Document, len(required)),
	}
	for _, req := range required {
		key := reqKey{req.Domain, req.DocID}
		if _, done := out.byReq[key]; done {
			continue
		}
		want := NormalizeTitle(req.Title)
		if want == "" {
			continue
		}
		for i, have := range titles {
			if have == "" {
				continue
			}
			if strings.Contains(have, want) || strings.Contains(want, have) {
				out.byReq[key] = actual[i].Clone()
				if _, seen := out.byDocID[req.DocID]; !seen {
					out.byDocID[req.DocID] = actual[i].Clone()
				}
				break
			}
		}
	}
	return out
}
