package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/docreg/pkg/contracts"
)

var fixedNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// memStore is an in-memory Store that can be told to fail.
type memStore struct {
	snap  *contracts.RegistryFile
	saves int
	fail  error
}

func (m *memStore) Load(context.Context) (contracts.RegistryFile, error) {
	if m.snap == nil {
		return contracts.RegistryFile{}, ErrNotFound
	}
	return *m.snap, nil
}

func (m *memStore) Save(_ context.Context, snap contracts.RegistryFile) error {
	if m.fail != nil {
		return m.fail
	}
	m.saves++
	m.snap = &snap
	return nil
}

func (m *memStore) Location() string { return "mem" }

func doc(id, dept string) contracts.Document {
	return contracts.Document{ID: id, Title: "Doc " + id, Department: dept, Status: contracts.StatusDraft}
}

func openMem(t *testing.T, s *memStore) *Registry {
	t.Helper()
	r, err := Open(context.Background(), s, false, WithClock(clock))
	require.NoError(t, err)
	return r
}

func TestMerge_FirstWriterWins(t *testing.T) {
	ctx := context.Background()
	s := &memStore{}
	r := openMem(t, s)

	res, err := r.Merge(ctx, []contracts.Document{doc("A", "RISK"), doc("B", "RISK"), doc("A", "HR")})
	require.NoError(t, err)
	require.Equal(t, 2, res.Added)
	require.Equal(t, 1, res.Skipped, "duplicate inside the batch")
	require.Equal(t, DepartmentCounts{Added: 2}, res.ByDepartment["RISK"])
	require.Equal(t, DepartmentCounts{Skipped: 1}, res.ByDepartment["HR"])
	require.Equal(t, []string{"HR", "RISK"}, res.Departments())

	changed := doc("A", "RISK")
	changed.Title = "Overwritten?"
	res, err = r.Merge(ctx, []contracts.Document{changed})
	require.NoError(t, err)
	require.Equal(t, 0, res.Added)
	require.Equal(t, 1, res.Skipped)

	got, ok := r.Get("A")
	require.True(t, ok)
	require.Equal(t, "Doc A", got.Title)
	require.Equal(t, 1, s.saves, "a merge that adds nothing does not persist")
	require.Equal(t, fixedNow, r.LastUpdated())
	require.Equal(t, fixedNow, s.snap.LastUpdated)
	require.Equal(t, SchemaVersion, s.snap.SchemaVersion)
}

func TestMerge_Idempotent(t *testing.T) {
	ctx := context.Background()
	batch := []contracts.Document{doc("A", "X"), doc("B", "Y")}

	r := openMem(t, &memStore{})
	first, err := r.Merge(ctx, batch)
	require.NoError(t, err)
	second, err := r.Merge(ctx, batch)
	require.NoError(t, err)

	require.Equal(t, 2, first.Added)
	require.Equal(t, 0, second.Added)
	require.Equal(t, len(batch), second.Skipped)
	require.Equal(t, 2, r.Len())
}

func TestMerge_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	idsGen := gen.SliceOf(gen.IntRange(0, 20).Map(func(i int) string { return fmt.Sprintf("D-%02d", i) }))
	toDocs := func(ids []string) []contracts.Document {
		out := make([]contracts.Document, len(ids))
		for i, id := range ids {
			out[i] = doc(id, "DEPT")
		}
		return out
	}

	properties.Property("ids stay unique across any sequence of merges", prop.ForAll(
		func(a, b []string) bool {
			r, err := Open(context.Background(), &memStore{}, false)
			if err != nil {
				return false
			}
			for _, batch := range [][]string{a, b, a} {
				if _, err := r.Merge(context.Background(), toDocs(batch)); err != nil {
					return false
				}
			}
			seen := map[string]bool{}
			for _, d := range r.Documents() {
				if seen[d.ID] {
					return false
				}
				seen[d.ID] = true
			}
			return true
		},
		idsGen, idsGen,
	))

	properties.Property("re-merging a batch adds nothing and skips it all", prop.ForAll(
		func(ids []string) bool {
			r, err := Open(context.Background(), &memStore{}, false)
			if err != nil {
				return false
			}
			first, err := r.Merge(context.Background(), toDocs(ids))
			if err != nil {
				return false
			}
			second, err := r.Merge(context.Background(), toDocs(ids))
			if err != nil {
				return false
			}
			return second.Added == 0 && second.Skipped == len(ids) && first.Added+first.Skipped == len(ids)
		},
		idsGen,
	))

	properties.TestingRun(t)
}

func TestReplaceDepartment(t *testing.T) {
	ctx := context.Background()
	r := openMem(t, &memStore{})
	_, err := r.Merge(ctx, []contracts.Document{doc("R1", "RISK"), doc("R2", "RISK"), doc("H1", "HR"), doc("L1", "LEGAL")})
	require.NoError(t, err)

	res, err := r.ReplaceDepartment(ctx, []string{"RISK", "LEGAL"}, []contracts.Document{doc("R3", "RISK"), doc("H1", "RISK"), doc("R3", "RISK")})
	require.NoError(t, err)
	require.Equal(t, 3, res.Removed)
	require.Equal(t, 1, res.Added)
	require.Equal(t, 2, res.Skipped)

	var risk []string
	for _, d := range r.Documents() {
		if d.Department == "RISK" {
			risk = append(risk, d.ID)
		}
	}
	require.Equal(t, []string{"R3"}, risk, "only the new batch remains for RISK")
	h1, _ := r.Get("H1")
	require.Equal(t, "HR", h1.Department, "other departments keep their ids")
	_, ok := r.Get("L1")
	require.False(t, ok)
}

func TestApplyLinks(t *testing.T) {
	ctx := context.Background()
	s := &memStore{}
	r := openMem(t, s)
	_, err := r.Merge(ctx, []contracts.Document{doc("A", "X")})
	require.NoError(t, err)

	links := []contracts.ObligationLink{{DocumentID: "A", ObligationID: "OB-1"}, {DocumentID: "A", ObligationID: "OB-1"}, {DocumentID: "ZZ", ObligationID: "OB-1"}}
	n, err := r.ApplyLinks(ctx, links)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = r.ApplyLinks(ctx, links)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Equal(t, 2, s.saves)

	a, _ := r.Get("A")
	require.Equal(t, []string{"OB-1"}, a.Obligations)
}

func TestWriteFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	s := &memStore{}
	r := openMem(t, s)
	_, err := r.Merge(ctx, []contracts.Document{doc("A", "X")})
	require.NoError(t, err)

	s.fail = errors.New("disk full")
	_, err = r.Merge(ctx, []contracts.Document{doc("B", "X"), doc("A", "X")})
	var we *WriteError
	require.ErrorAs(t, err, &we)
	require.Equal(t, 1, we.Added)
	require.Equal(t, 1, we.Skipped)
	require.Equal(t, "merge", we.Op)
	require.Contains(t, err.Error(), "disk full")
	require.Equal(t, 1, r.Len())

	_, err = r.ApplyLinks(ctx, []contracts.ObligationLink{{DocumentID: "A", ObligationID: "OB"}})
	require.ErrorAs(t, err, &we)
	a, _ := r.Get("A")
	require.Empty(t, a.Obligations)

	_, err = r.ReplaceDepartment(ctx, []string{"X"}, nil)
	require.ErrorAs(t, err, &we)
	require.Equal(t, 1, r.Len())
}

func TestOpen_MustExist(t *testing.T) {
	_, err := Open(context.Background(), &memStore{}, true)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDocumentsAreCopies(t *testing.T) {
	ctx := context.Background()
	r := openMem(t, &memStore{})
	d := doc("A", "X")
	d.Frameworks = []string{"ISO"}
	_, err := r.Merge(ctx, []contracts.Document{d})
	require.NoError(t, err)

	d.Frameworks[0] = "changed"
	out := r.Documents()
	out[0].Frameworks[0] = "mutated"

	got, _ := r.Get("A")
	require.Equal(t, []string{"ISO"}, got.Frameworks)
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "registry.json")
	store := NewFileStore(path)

	r, err := Open(ctx, store, false, WithClock(clock))
	require.NoError(t, err)
	d := doc("RISK-POL-001", "RISK")
	d.Title = "Risk <Policy> & Co"
	_, err = r.Merge(ctx, []contracts.Document{d, doc("HR-POL-001", "HR")})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"schemaVersion": "1.0.0"`)
	require.Contains(t, string(raw), "Risk <Policy> & Co", "no HTML escaping")
	require.Equal(t, byte('\n'), raw[len(raw)-1])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file removed after rename")

	reopened, err := Open(ctx, store, true)
	require.NoError(t, err)
	require.Equal(t, []string{"RISK-POL-001", "HR-POL-001"}, ids(reopened.Documents()))
	require.Equal(t, fixedNow, reopened.LastUpdated().UTC())
}

func TestFileStore_LoadErrors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	_, err := NewFileStore(filepath.Join(dir, "missing.json")).Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	tests := map[string]string{
		"bad.json":     `{"documents": [`,
		"schema.json":  `{"documents": [{"title": "no id"}]}`,
		"version.json": `{"schemaVersion": "2.1.0", "documents": []}`,
		"dupobl.json":  `{"documents": [{"id": "A", "obligations": ["O", "O"]}]}`,
	}
	for name, content := range tests {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
		_, err := NewFileStore(p).Load(ctx)
		require.Error(t, err, name)
	}

	p := filepath.Join(dir, "version.json")
	_, err = NewFileStore(p).Load(ctx)
	require.ErrorIs(t, err, ErrSchemaVersion)

	p = filepath.Join(dir, "legacy.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"lastUpdated": "2024-01-01T00:00:00Z", "documents": [{"id": "A"}]}`), 0o600))
	snap, err := NewFileStore(p).Load(ctx)
	require.NoError(t, err, "registries without schemaVersion are accepted")
	require.Len(t, snap.Documents, 1)
}

func TestCheckSchemaVersion(t *testing.T) {
	require.NoError(t, checkSchemaVersion(""))
	require.NoError(t, checkSchemaVersion("1.0.0"))
	require.NoError(t, checkSchemaVersion("1.4.2"))
	require.ErrorIs(t, checkSchemaVersion("2.0.0"), ErrSchemaVersion)
	require.ErrorIs(t, checkSchemaVersion("one"), ErrSchemaVersion)
}

func ids(docs []contracts.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}
