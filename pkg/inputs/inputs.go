// Package inputs loads the static JSON inputs of a run: the regulatory
// universe, the required-document register, the obligations registry and
// the control library. Each is schema-checked before decoding and treated
// as immutable for the rest of the run.
package inputs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Mindburn-Labs/docreg/pkg/compliance/ingest"
	"github.com/Mindburn-Labs/docreg/pkg/contracts"
	"github.com/Mindburn-Labs/docreg/pkg/contracts/schemas"
)

// MissingInputError reports a mandatory input that does not exist.
type MissingInputError struct {
	Kind schemas.Kind
	Path string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing %s input: %s", e.Kind, e.Path)
}

// Is lets errors.Is(err, fs.ErrNotExist) match.
func (e *MissingInputError) Is(target error) bool { return target == fs.ErrNotExist }

func readInput(kind schemas.Kind, path string) ([]byte, error) {
	if path == "" {
		return nil, &MissingInputError{Kind: kind, Path: "(not configured)"}
	}
	raw, err := os.ReadFile(path) //nolint:gosec // path comes from the run configuration
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &MissingInputError{Kind: kind, Path: path}
		}
		return nil, fmt.Errorf("read %s %s: %w", kind, path, err)
	}
	return raw, nil
}

func loadJSON[T any](kind schemas.Kind, path string) (*T, error) {
	raw, err := readInput(kind, path)
	if err != nil {
		return nil, err
	}
	if err := schemas.Validate(kind, raw); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", kind, path, err)
	}
	return &out, nil
}

// LoadUniverse reads the regulatory universe.
func LoadUniverse(path string) (*contracts.UniverseFile, error) {
	return loadJSON[contracts.UniverseFile](schemas.KindUniverse, path)
}

// LoadObligations reads the obligations registry.
func LoadObligations(path string) (*contracts.ObligationsFile, error) {
	return loadJSON[contracts.ObligationsFile](schemas.KindObligations, path)
}

// LoadControls reads the control library.
func LoadControls(path string) (*contracts.ControlLibraryFile, error) {
	return loadJSON[contracts.ControlLibraryFile](schemas.KindControls, path)
}

// LoadRequirements reads the required-document register and flattens it in
// register order. A JSON register is schema-checked; an .xlsx or .csv
// register is read through the spreadsheet adapter, with a missing domain
// column falling back to the file's base name. Duplicate docIds within a
// domain keep the first entry and log a warning.
func LoadRequirements(path string) ([]contracts.RequiredDocument, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".csv":
		return loadRequirementSheet(path)
	}
	f, err := loadJSON[contracts.RequirementsFile](schemas.KindRequirements, path)
	if err != nil {
		return nil, err
	}
	return dedupeRequirements(f.Flatten()), nil
}

func loadRequirementSheet(path string) ([]contracts.RequiredDocument, error) {
	t, err := ingest.ReadTable(path, []string{"Requirements", "Required Documents", "Register"})
	if err != nil {
		if errors.Is(err, ingest.ErrSourceMissing) {
			return nil, &MissingInputError{Kind: schemas.KindRequirements, Path: path}
		}
		return nil, err
	}
	domain := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	reqs, stats := ingest.NewAdapter().RequiredDocuments(t, domain)
	if stats.Dropped > 0 {
		slog.Default().With("component", "inputs").Warn("requirement rows dropped", "path", path, "dropped", stats.Dropped)
	}
	return reqs, nil
}

func dedupeRequirements(in []contracts.RequiredDocument) []contracts.RequiredDocument {
	seen := make(map[string]struct{}, len(in))
	out := make([]contracts.RequiredDocument, 0, len(in))
	for _, r := range in {
		key := r.Domain + "\x00" + r.DocID
		if _, dup := seen[key]; dup {
			slog.Default().With("component", "inputs").Warn("duplicate required document id", "domain", r.Domain, "docId", r.DocID)
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Paths locates the static inputs of a run.
type Paths struct {
	Universe     string
	Requirements string
	Obligations  string
	Controls     string
}

// Bundle is the loaded static context of one run.
type Bundle struct {
	Paths        Paths
	Laws         []contracts.Law
	Requirements []contracts.RequiredDocument
	Obligations  []contracts.Obligation
	Controls     *contracts.ControlLibraryFile
}

// Need selects which inputs a command requires.
type Need struct {
	Universe     bool
	Requirements bool
	Obligations  bool
	Controls     bool
}

// Load reads every needed input. Any missing needed input fails the whole
// load before anything is written.
func Load(p Paths, need Need) (*Bundle, error) {
	b := &Bundle{Paths: p}
	if need.Universe {
		u, err := LoadUniverse(p.Universe)
		if err != nil {
			return nil, err
		}
		b.Laws = u.Laws
	}
	if need.Requirements {
		reqs, err := LoadRequirements(p.Requirements)
		if err != nil {
			return nil, err
		}
		b.Requirements = reqs
	}
	if need.Obligations {
		o, err := LoadObligations(p.Obligations)
		if err != nil {
			return nil, err
		}
		b.Obligations = o.Obligations
	}
	if need.Controls {
		c, err := LoadControls(p.Controls)
		if err != nil {
			return nil, err
		}
		b.Controls = c
	}
	return b, nil
}

// Validate schema-checks every configured JSON input without decoding it
// further. The result has one entry per checked input; nil means valid.
func Validate(p Paths) map[schemas.Kind]error {
	out := make(map[schemas.Kind]error)
	check := func(kind schemas.Kind, path string) {
		if path == "" {
			return
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".json" {
			return
		}
		raw, err := readInput(kind, path)
		if err == nil {
			err = schemas.Validate(kind, raw)
		}
		out[kind] = err
	}
	check(schemas.KindUniverse, p.Universe)
	check(schemas.KindRequirements, p.Requirements)
	check(schemas.KindObligations, p.Obligations)
	check(schemas.KindControls, p.Controls)
	return out
}
