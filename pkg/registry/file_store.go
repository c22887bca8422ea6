package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Mindburn-Labs/docreg/pkg/canonicalize"
	"github.com/Mindburn-Labs/docreg/pkg/contracts"
	"github.com/Mindburn-Labs/docreg/pkg/contracts/schemas"
)

// FileStore keeps the registry in a single pretty-printed JSON file with
// canonically ordered keys.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path. The file need not exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Location returns the file path.
func (f *FileStore) Location() string { return f.path }

// Load reads and validates the registry file.
func (f *FileStore) Load(ctx context.Context) (contracts.RegistryFile, error) {
	var snap contracts.RegistryFile
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return snap, fmt.Errorf("%w: %s", ErrNotFound, f.path)
		}
		return snap, fmt.Errorf("read registry %s: %w", f.path, err)
	}
	if err := schemas.Validate(schemas.KindRegistry, raw); err != nil {
		return snap, fmt.Errorf("registry %s: %w", f.path, err)
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return snap, fmt.Errorf("decode registry %s: %w", f.path, err)
	}
	if err := checkSchemaVersion(snap.SchemaVersion); err != nil {
		return snap, fmt.Errorf("registry %s: %w", f.path, err)
	}
	return snap, nil
}

// Save writes snap to a temporary file in the same directory and renames it
// over the registry, so readers never observe a half-written file.
func (f *FileStore) Save(ctx context.Context, snap contracts.RegistryFile) error {
	if snap.SchemaVersion == "" {
		snap.SchemaVersion = SchemaVersion
	}
	if snap.Documents == nil {
		snap.Documents = []contracts.Document{}
	}
	data, err := Encode(snap)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	return os.Rename(tmpName, f.path)
}

// Encode renders a snapshot as canonical (RFC 8785 key order) JSON indented
// with two spaces and a trailing newline.
func Encode(snap contracts.RegistryFile) ([]byte, error) {
	canon, err := canonicalize.JCS(snap)
	if err != nil {
		return nil, fmt.Errorf("canonicalize registry: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, canon, "", "  "); err != nil {
		return nil, fmt.Errorf("indent registry: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
