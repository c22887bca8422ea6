package contracts

import (
	"bytes"
	"encoding/json"
)

// RequiredDocument describes a document that should exist for compliance,
// whether or not it does.
type RequiredDocument struct {
	Domain   string `json:"domain,omitempty"`
	DocID    string `json:"docId"`
	Title    string `json:"title"`
	Priority string `json:"priority,omitempty"`
}

// RequirementDomain groups required documents.
type RequirementDomain struct {
	Name              string             `json:"name"`
	RequiredDocuments []RequiredDocument `json:"requiredDocuments"`
}

// RequirementsFile is the required-document register envelope.
type RequirementsFile struct {
	Domains []RequirementDomain `json:"domains"`
}

// Flatten returns every required document in register order with Domain set.
func (f *RequirementsFile) Flatten() []RequiredDocument {
	var out []RequiredDocument
	for _, d := range f.Domains {
		for _, r := range d.RequiredDocuments {
			r.Domain = d.Name
			out = append(out, r)
		}
	}
	return out
}

// Obligation is a regulatory or legal duty tracked per department.
type Obligation struct {
	ID                string   `json:"id"`
	Department        string   `json:"department,omitempty"`
	Law               string   `json:"law,omitempty"`
	Summary           string   `json:"summary,omitempty"`
	RiskRating        string   `json:"riskRating,omitempty"`
	ComplianceStatus  string   `json:"complianceStatus,omitempty"`
	RequiredArtifacts []string `json:"requiredArtifacts"`
}

// ObligationsFile is the obligations registry envelope.
type ObligationsFile struct {
	LastUpdated string       `json:"lastUpdated,omitempty"`
	Obligations []Obligation `json:"obligations"`
}

// ArticleNumber accepts both `"12"` and `12` in source files.
type ArticleNumber string

// UnmarshalJSON implements json.Unmarshaler.
func (n *ArticleNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = ArticleNumber(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*n = ArticleNumber(num.String())
	return nil
}

// Article is a single numbered provision of a law.
type Article struct {
	Article       ArticleNumber `json:"article"`
	Text          string        `json:"text,omitempty"`
	RelatedDocIDs []string      `json:"relatedDocIds"`
}

// Law is a regulation with its articles.
type Law struct {
	Title    string    `json:"title"`
	Articles []Article `json:"articles"`
}

// UniverseFile is the regulatory universe envelope.
type UniverseFile struct {
	Laws []Law `json:"laws"`
}

// ObligationLink attaches one obligation to one document.
type ObligationLink struct {
	DocumentID   string `json:"documentId"`
	ObligationID string `json:"obligationId"`
}

// ApplyObligationLinks attaches links to docs in place and returns how many
// were new. Links naming unknown documents are ignored.
func ApplyObligationLinks(docs []Document, links []ObligationLink) int {
	idx := make(map[string]int, len(docs))
	for i := range docs {
		if _, dup := idx[docs[i].ID]; !dup {
			idx[docs[i].ID] = i
		}
	}
	n := 0
	for _, link := range links {
		i, ok := idx[link.DocumentID]
		if !ok {
			continue
		}
		if docs[i].AttachObligation(link.ObligationID) {
			n++
		}
	}
	return n
}
