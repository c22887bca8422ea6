// Package contracts defines the data model shared by the registry, the
// ingestion adapters and the derived compliance views.
package contracts

import (
	"slices"
	"time"
)

// DocType is the normalized document type vocabulary.
type DocType string

const (
	TypePolicy    DocType = "policy"
	TypeProcedure DocType = "procedure"
	TypeSOP       DocType = "sop"
	TypeTemplate  DocType = "template"
	TypeRegister  DocType = "register"
	TypeDoc       DocType = "doc"
)

// Status is the normalized document lifecycle vocabulary.
type Status string

const (
	StatusDraft       Status = "Draft"
	StatusUnderReview Status = "UnderReview"
	StatusApproved    Status = "Approved"
	StatusActive      Status = "Active"
	StatusArchived    Status = "Archived"
	StatusMissing     Status = "Missing"
)

// Provenance records where and when a document entered the registry.
type Provenance struct {
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"runId,omitempty"`
}

// Document is one entry of the canonical registry.
type Document struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Type          DocType    `json:"type"`
	Department    string     `json:"department"`
	Status        Status     `json:"status"`
	Version       string     `json:"version,omitempty"`
	LastUpdated   string     `json:"lastUpdated,omitempty"`
	RequiredDocID string     `json:"requiredDocId,omitempty"`
	Frameworks    []string   `json:"frameworks,omitempty"`
	Controls      []string   `json:"controls,omitempty"`
	Obligations   []string   `json:"obligations,omitempty"`
	Filename      string     `json:"filename,omitempty"`
	Folder        string     `json:"folder,omitempty"`
	Provenance    Provenance `json:"provenance"`
}

// HasObligation reports whether the obligation id is already attached.
func (d *Document) HasObligation(id string) bool {
	return slices.Contains(d.Obligations, id)
}

// AttachObligation adds id to the obligation set. It returns false when the
// id was already present.
func (d *Document) AttachObligation(id string) bool {
	if id == "" || d.HasObligation(id) {
		return false
	}
	d.Obligations = append(d.Obligations, id)
	return true
}

// Clone returns a deep copy so callers can't mutate registry state through
// shared slices.
func (d Document) Clone() Document {
	d.Frameworks = slices.Clone(d.Frameworks)
	d.Controls = slices.Clone(d.Controls)
	d.Obligations = slices.Clone(d.Obligations)
	return d
}

// RegistryFile is the on-disk envelope of the canonical registry.
type RegistryFile struct {
	SchemaVersion string     `json:"schemaVersion,omitempty"`
	LastUpdated   time.Time  `json:"lastUpdated"`
	Documents     []Document `json:"documents"`
}
