// Package artifacts publishes generated reports to a storage backend.
//
// Every object is addressed by a relative key such as
// "<runId>/compliance_report.xlsx". The returned Ref carries the location
// and the SHA-256 digest of the published bytes so a summary can point at
// exactly what was written.
package artifacts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound is returned by Get for keys that were never published.
var ErrNotFound = errors.New("artifact not found")

// ErrInvalidKey is returned for empty, absolute or escaping keys.
var ErrInvalidKey = errors.New("invalid artifact key")

// Ref identifies a published artifact.
type Ref struct {
	Key      string `json:"key"`
	Location string `json:"location"`
	Digest   string `json:"digest"`
	Size     int    `json:"size"`
}

func (r Ref) String() string {
	return r.Location + " (" + r.Digest + ")"
}

// Store is the contract for report publication backends.
type Store interface {
	// Put writes data under key, replacing any previous object.
	Put(ctx context.Context, key string, data []byte, contentType string) (Ref, error)
	// Get reads the object stored under key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Exists reports whether key has been published.
	Exists(ctx context.Context, key string) (bool, error)
}

// Digest returns the "sha256:<hex>" digest of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// cleanKey validates key and returns it in slash form.
func cleanKey(key string) (string, error) {
	k := strings.ReplaceAll(strings.TrimSpace(key), `\`, "/")
	if k == "" || strings.HasPrefix(k, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	k = path.Clean(k)
	if k == "." || k == ".." || strings.HasPrefix(k, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return k, nil
}

// FileStore publishes artifacts below a local directory.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore creates the base directory if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	//nolint:gosec // G301: reports are meant to be shared
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure artifact dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) path(key string) (string, string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", "", err
	}
	return k, filepath.Join(s.baseDir, filepath.FromSlash(k)), nil
}

func (s *FileStore) Put(ctx context.Context, key string, data []byte, _ string) (Ref, error) {
	if err := ctx.Err(); err != nil {
		return Ref{}, err
	}
	k, p, err := s.path(key)
	if err != nil {
		return Ref{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	//nolint:gosec // G301: reports are meant to be shared
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return Ref{}, fmt.Errorf("failed to create artifact dir: %w", err)
	}
	tmp := p + ".tmp"
	//nolint:gosec // G306: reports are meant to be readable
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return Ref{}, fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return Ref{}, fmt.Errorf("failed to commit artifact: %w", err)
	}
	return Ref{Key: k, Location: p, Digest: Digest(data), Size: len(data)}, nil
}

func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, p, err := s.path(key)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(p) //nolint:gosec // key validated by cleanKey
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("read artifact %s: %w", key, err)
	}
	return data, nil
}

func (s *FileStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, p, err := s.path(key)
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err = os.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat artifact %s: %w", key, err)
	}
}
