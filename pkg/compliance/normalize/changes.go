package normalize

import (
	"sort"
	"time"

	"github.com/Mindburn-Labs/docreg/pkg/canonicalize"
	"github.com/Mindburn-Labs/docreg/pkg/contracts"
)

// ChangeType indicates what changed between two registry snapshots.
type ChangeType string

const (
	ChangeAdded    ChangeType = "ADDED"
	ChangeModified ChangeType = "MODIFIED"
	ChangeRemoved  ChangeType = "REMOVED"
)

// Change is a single detected difference for one document id.
type Change struct {
	ChangeType ChangeType `json:"change_type"`
	RecordID   string     `json:"record_id"`
	SourceID   string     `json:"source_id"`
	OldHash    string     `json:"old_hash,omitempty"`
	NewHash    string     `json:"new_hash,omitempty"`
}

// ChangeSet is the typed output of change detection between two snapshots.
type ChangeSet struct {
	SourceID    string    `json:"source_id"`
	PriorHash   string    `json:"prior_hash"`
	CurrentHash string    `json:"current_hash"`
	Changes     []Change  `json:"changes"`
	DetectedAt  time.Time `json:"detected_at"`
	IsEmpty     bool      `json:"is_empty"`
}

// Count returns the number of changes of type ct.
func (cs *ChangeSet) Count(ct ChangeType) int {
	n := 0
	for _, c := range cs.Changes {
		if c.ChangeType == ct {
			n++
		}
	}
	return n
}

// Fingerprint is the content hash of a document, excluding provenance so a
// re-scan of identical content is not reported as a modification.
func Fingerprint(doc contracts.Document) string {
	doc.Provenance = contracts.Provenance{}
	h, err := canonicalize.CanonicalHash(doc)
	if err != nil {
		// Document has no unmarshalable fields; unreachable in practice.
		return ""
	}
	return h
}

// Fingerprints maps document id to Fingerprint for a snapshot.
func Fingerprints(docs []contracts.Document) map[string]string {
	out := make(map[string]string, len(docs))
	for _, d := range docs {
		out[d.ID] = Fingerprint(d)
	}
	return out
}

// DetectChanges compares two fingerprint maps and emits a ChangeSet ordered
// by record id.
func DetectChanges(sourceID string, prior, current map[string]string) *ChangeSet {
	now := time.Now()
	cs := &ChangeSet{
		SourceID:    sourceID,
		PriorHash:   hashMap(prior),
		CurrentHash: hashMap(current),
		DetectedAt:  now,
	}

	for id, hash := range current {
		oldHash, exists := prior[id]
		switch {
		case !exists:
			cs.Changes = append(cs.Changes, Change{ChangeType: ChangeAdded, RecordID: id, SourceID: sourceID, NewHash: hash})
		case oldHash != hash:
			cs.Changes = append(cs.Changes, Change{ChangeType: ChangeModified, RecordID: id, SourceID: sourceID, OldHash: oldHash, NewHash: hash})
		}
	}
	for id, hash := range prior {
		if _, exists := current[id]; !exists {
			cs.Changes = append(cs.Changes, Change{ChangeType: ChangeRemoved, RecordID: id, SourceID: sourceID, OldHash: hash})
		}
	}

	sort.Slice(cs.Changes, func(i, j int) bool {
		if cs.Changes[i].RecordID != cs.Changes[j].RecordID {
			return cs.Changes[i].RecordID < cs.Changes[j].RecordID
		}
		return cs.Changes[i].ChangeType < cs.Changes[j].ChangeType
	})
	cs.IsEmpty = len(cs.Changes) == 0
	return cs
}

func hashMap(m map[string]string) string {
	h, err := canonicalize.CanonicalHash(m)
	if err != nil {
		return ""
	}
	return h
}
