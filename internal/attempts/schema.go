package attempts

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stored in the sqlite user_version pragma. Bump it when
// schema.sql changes in a way existing databases cannot satisfy.
const schemaVersion = 1

// ErrSchemaMismatch reports a database created by an incompatible version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ensureSchema brings the database up to the current schema. A fresh
// database reports user_version 0 and gets the full schema applied.
func (s *Store) ensureSchema(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	switch version {
	case 0:
		return s.applySchema(ctx)
	case schemaVersion:
		return nil
	default:
		return fmt.Errorf("%w: database at %s has version %d, want %d (delete it to recreate)",
			ErrSchemaMismatch, s.path, version, schemaVersion)
	}
}

func (s *Store) applySchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}
