package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Mindburn-Labs/docreg/pkg/contracts"
)

// SQLStore keeps the registry in two tables. It works with both Postgres
// (lib/pq) and SQLite (modernc.org/sqlite), which accept $n placeholders.
type SQLStore struct {
	db   *sql.DB
	name string
}

// NewSQLStore wraps db. name is reported by Location, e.g. "sqlite:data/docreg.db".
func NewSQLStore(db *sql.DB, name string) *SQLStore {
	return &SQLStore{db: db, name: name}
}

const sqlSchema = `
CREATE TABLE IF NOT EXISTS registry_meta (
	id INTEGER PRIMARY KEY,
	schema_version TEXT NOT NULL,
	last_updated TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	position INTEGER NOT NULL,
	department TEXT NOT NULL,
	body TEXT NOT NULL
);
`

// Init creates the tables if needed.
func (s *SQLStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqlSchema)
	return err
}

// Location returns the configured name.
func (s *SQLStore) Location() string { return s.name }

// Load reads the snapshot. An empty registry_meta table means no registry
// has been written yet.
func (s *SQLStore) Load(ctx context.Context) (contracts.RegistryFile, error) {
	var (
		snap        contracts.RegistryFile
		lastUpdated string
	)
	row := s.db.QueryRowContext(ctx, `SELECT schema_version, last_updated FROM registry_meta WHERE id = 1`)
	if err := row.Scan(&snap.SchemaVersion, &lastUpdated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return snap, fmt.Errorf("%w: %s", ErrNotFound, s.name)
		}
		return snap, fmt.Errorf("load registry meta: %w", err)
	}
	if err := checkSchemaVersion(snap.SchemaVersion); err != nil {
		return snap, err
	}
	if lastUpdated != "" {
		t, err := time.Parse(time.RFC3339Nano, lastUpdated)
		if err != nil {
			return snap, fmt.Errorf("parse last_updated %q: %w", lastUpdated, err)
		}
		snap.LastUpdated = t
	}

	rows, err := s.db.QueryContext(ctx, `SELECT body FROM documents ORDER BY position`)
	if err != nil {
		return snap, fmt.Errorf("load documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snap.Documents = make([]contracts.Document, 0)
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return snap, err
		}
		var doc contracts.Document
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			return snap, fmt.Errorf("decode document: %w", err)
		}
		snap.Documents = append(snap.Documents, doc)
	}
	if err := rows.Err(); err != nil {
		return snap, err
	}
	return snap, nil
}

// Save replaces the stored snapshot inside one transaction.
func (s *SQLStore) Save(ctx context.Context, snap contracts.RegistryFile) (err error) {
	if snap.SchemaVersion == "" {
		snap.SchemaVersion = SchemaVersion
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}
	for i, doc := range snap.Documents {
		var body []byte
		body, err = json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode %s: %w", doc.ID, err)
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO documents (id, position, department, body) VALUES ($1, $2, $3, $4)`,
			doc.ID, i, doc.Department, string(body),
		); err != nil {
			return fmt.Errorf("insert %s: %w", doc.ID, err)
		}
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM registry_meta`); err != nil {
		return fmt.Errorf("clear meta: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO registry_meta (id, schema_version, last_updated) VALUES (1, $1, $2)`,
		snap.SchemaVersion, snap.LastUpdated.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
