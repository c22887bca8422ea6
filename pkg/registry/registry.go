// Package registry is the canonical, deduplicated store of compliance
// documents across departments.
//
// Document ids are unique and merges are first-writer-wins: an incoming
// document whose id is already present is skipped, never overwritten.
// Every mutation is computed on a copy, stamped with the registry clock and
// persisted as a whole snapshot; the in-memory state only advances once the
// store accepted the write.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/Mindburn-Labs/docreg/pkg/contracts"
)

// DepartmentCounts is the merge outcome for one department.
type DepartmentCounts struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

// MergeResult reports a merge.
type MergeResult struct {
	Added        int                         `json:"added"`
	Skipped      int                         `json:"skipped"`
	ByDepartment map[string]DepartmentCounts `json:"byDepartment"`
}

// Departments returns the department codes of the result, sorted.
func (m MergeResult) Departments() []string {
	out := make([]string, 0, len(m.ByDepartment))
	for d := range m.ByDepartment {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// ReplaceResult reports a department replace.
type ReplaceResult struct {
	Removed int `json:"removed"`
	MergeResult
}

// Registry holds the current snapshot.
type Registry struct {
	store       Store
	clock       func() time.Time
	logger      *slog.Logger
	docs        []contracts.Document
	index       map[string]int
	lastUpdated time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the clock used to stamp lastUpdated.
func WithClock(clock func() time.Time) Option {
	return func(r *Registry) { r.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// Open loads the registry from store. A store without a registry yields an
// empty one unless mustExist is set, in which case ErrNotFound is returned.
func Open(ctx context.Context, store Store, mustExist bool, opts ...Option) (*Registry, error) {
	r := &Registry{
		store:  store,
		clock:  time.Now,
		logger: slog.Default().With("component", "registry"),
		index:  make(map[string]int),
	}
	for _, o := range opts {
		o(r)
	}

	snap, err := store.Load(ctx)
	switch {
	case errors.Is(err, ErrNotFound) && !mustExist:
		r.logger.Info("starting empty registry", "location", store.Location())
		return r, nil
	case err != nil:
		return nil, err
	}

	r.lastUpdated = snap.LastUpdated
	for _, d := range snap.Documents {
		if _, dup := r.index[d.ID]; dup {
			r.logger.Warn("duplicate id in stored registry, keeping first", "id", d.ID)
			continue
		}
		r.index[d.ID] = len(r.docs)
		r.docs = append(r.docs, d)
	}
	return r, nil
}

// Location is the backing store location.
func (r *Registry) Location() string { return r.store.Location() }

// Len is the number of documents.
func (r *Registry) Len() int { return len(r.docs) }

// LastUpdated is the time of the last persisted mutation.
func (r *Registry) LastUpdated() time.Time { return r.lastUpdated }

// Documents returns a deep copy of all documents in registry order.
func (r *Registry) Documents() []contracts.Document {
	out := make([]contracts.Document, len(r.docs))
	for i, d := range r.docs {
		out[i] = d.Clone()
	}
	return out
}

// Get returns a copy of the document with id.
func (r *Registry) Get(id string) (contracts.Document, bool) {
	i, ok := r.index[id]
	if !ok {
		return contracts.Document{}, false
	}
	return r.docs[i].Clone(), true
}

// Snapshot returns the persisted form of the current state.
func (r *Registry) Snapshot() contracts.RegistryFile {
	return contracts.RegistryFile{
		SchemaVersion: SchemaVersion,
		LastUpdated:   r.lastUpdated,
		Documents:     r.Documents(),
	}
}

// Merge inserts every incoming document whose id is not yet present, in
// order. Later duplicates inside the same batch are skipped too. The
// registry is persisted only when at least one document was added.
func (r *Registry) Merge(ctx context.Context, incoming []contracts.Document) (MergeResult, error) {
	docs := slices.Clone(r.docs)
	index := maps.Clone(r.index)
	res := mergeInto(&docs, index, incoming)

	if res.Added == 0 {
		return res, nil
	}
	if err := r.commit(ctx, "merge", docs, index); err != nil {
		return res, &WriteError{Path: r.store.Location(), Op: "merge", Added: res.Added, Skipped: res.Skipped, Err: err}
	}
	r.logger.Info("merged", "added", res.Added, "skipped", res.Skipped)
	return res, nil
}

// ReplaceDepartment removes every document whose department is in
// deptCodes, then merges newDocs with the Merge rule. Documents of other
// departments keep precedence over newDocs with the same id.
func (r *Registry) ReplaceDepartment(ctx context.Context, deptCodes []string, newDocs []contracts.Document) (ReplaceResult, error) {
	drop := make(map[string]struct{}, len(deptCodes))
	for _, d := range deptCodes {
		drop[d] = struct{}{}
	}

	var res ReplaceResult
	docs := make([]contracts.Document, 0, len(r.docs)+len(newDocs))
	index := make(map[string]int, len(r.docs)+len(newDocs))
	for _, d := range r.docs {
		if _, ok := drop[d.Department]; ok {
			res.Removed++
			continue
		}
		index[d.ID] = len(docs)
		docs = append(docs, d)
	}
	res.MergeResult = mergeInto(&docs, index, newDocs)

	if res.Removed == 0 && res.Added == 0 {
		return res, nil
	}
	if err := r.commit(ctx, "replace", docs, index); err != nil {
		return res, &WriteError{Path: r.store.Location(), Op: "replace", Added: res.Added, Skipped: res.Skipped, Err: err}
	}
	r.logger.Info("departments replaced", "departments", deptCodes, "removed", res.Removed, "added", res.Added, "skipped", res.Skipped)
	return res, nil
}

// ApplyLinks attaches obligation links and returns how many were new. The
// registry is persisted only when at least one link was new.
func (r *Registry) ApplyLinks(ctx context.Context, links []contracts.ObligationLink) (int, error) {
	docs := make([]contracts.Document, len(r.docs))
	for i, d := range r.docs {
		docs[i] = d.Clone()
	}
	n := contracts.ApplyObligationLinks(docs, links)
	if n == 0 {
		return 0, nil
	}
	if err := r.commit(ctx, "link", docs, r.index); err != nil {
		return 0, &WriteError{Path: r.store.Location(), Op: "link", Added: n, Err: err}
	}
	r.logger.Info("obligation links applied", "new", n)
	return n, nil
}

func (r *Registry) commit(ctx context.Context, op string, docs []contracts.Document, index map[string]int) error {
	now := r.clock().UTC()
	snap := contracts.RegistryFile{SchemaVersion: SchemaVersion, LastUpdated: now, Documents: docs}
	if err := r.store.Save(ctx, snap); err != nil {
		r.logger.Error("persist failed", "op", op, "location", r.store.Location(), "error", err)
		return err
	}
	r.docs = docs
	r.index = index
	r.lastUpdated = now
	return nil
}

func mergeInto(docs *[]contracts.Document, index map[string]int, incoming []contracts.Document) MergeResult {
	res := MergeResult{ByDepartment: make(map[string]DepartmentCounts)}
	for _, d := range incoming {
		c := res.ByDepartment[d.Department]
		if _, exists := index[d.ID]; exists || d.ID == "" {
			res.Skipped++
			c.Skipped++
		} else {
			index[d.ID] = len(*docs)
			*docs = append(*docs, d.Clone())
			res.Added++
			c.Added++
		}
		res.ByDepartment[d.Department] = c
	}
	return res
}
