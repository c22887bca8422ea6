// Package normalize maps free-text field values coming from department
// spreadsheets onto the registry's fixed vocabularies, and detects changes
// between two registry snapshots.
//
// Every function in this file is total: any input string, including the
// empty string, yields a value from the vocabulary.
package normalize

import (
	"strings"
	"unicode"

	"github.com/Mindburn-Labs/docreg/pkg/contracts"
)

// statusRules are evaluated in order; the first marker found wins.
var statusRules = []struct {
	marker string
	status contracts.Status
}{
	{"approved", contracts.StatusApproved},
	{"review", contracts.StatusUnderReview},
	{"draft", contracts.StatusDraft},
}

// NormalizeStatus classifies raw by case-insensitive substring with priority
// APPROVED > REVIEW > DRAFT. Anything else is Draft.
func NormalizeStatus(raw string) contracts.Status {
	s := strings.ToLower(raw)
	for _, r := range statusRules {
		if strings.Contains(s, r.marker) {
			return r.status
		}
	}
	return contracts.StatusDraft
}

// typeRules are evaluated in priority order. words match as substrings of
// the lower-cased input; codes match whole tokens only, so "X-POL-003" is a
// policy while "Approval Log" is not a procedure.
var typeRules = []struct {
	words   []string
	codes   []string
	docType contracts.DocType
}{
	{words: []string{"polic"}, codes: []string{"pol"}, docType: contracts.TypePolicy},
	{words: []string{"procedure"}, codes: []string{"pro", "proc", "prc"}, docType: contracts.TypeProcedure},
	{words: []string{"sop"}, codes: nil, docType: contracts.TypeSOP},
	{words: []string{"template"}, codes: []string{"tpl", "tmpl", "tmp"}, docType: contracts.TypeTemplate},
	{words: []string{"register"}, codes: []string{"reg"}, docType: contracts.TypeRegister},
}

// NormalizeType classifies raw with priority policy > procedure > sop >
// template > register. Anything else is the generic doc type.
func NormalizeType(raw string) contracts.DocType {
	s := strings.ToLower(raw)
	tokens := tokenize(s)
	for _, r := range typeRules {
		for _, w := range r.words {
			if strings.Contains(s, w) {
				return r.docType
			}
		}
		for _, c := range r.codes {
			if _, ok := tokens[c]; ok {
				return r.docType
			}
		}
	}
	return contracts.TypeDoc
}

func tokenize(s string) map[string]struct{} {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		out[f] = struct{}{}
	}
	return out
}

// CanonicalStatus recognizes a value that is already spelled as one of the
// registry statuses, tolerating case and spacing ("under review"). It is
// used before NormalizeStatus so explicit Active/Archived/Missing cells keep
// their meaning instead of collapsing to Draft.
func CanonicalStatus(raw string) (contracts.Status, bool) {
	key := strings.ToLower(strings.Join(strings.Fields(raw), ""))
	switch key {
	case "draft":
		return contracts.StatusDraft, true
	case "underreview", "under_review":
		return contracts.StatusUnderReview, true
	case "approved":
		return contracts.StatusApproved, true
	case "active":
		return contracts.StatusActive, true
	case "archived":
		return contracts.StatusArchived, true
	case "missing":
		return contracts.StatusMissing, true
	}
	return "", false
}
