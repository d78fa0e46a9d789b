package attempts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"claimscan/internal/config"
)

// Store manages attempt persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the attempts database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LogDir, "attempts.db"))
}

// OpenPath connects to the attempts database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Add records a new pending attempt and returns it with its assigned
// identifier and creation time.
func (s *Store) Add(ctx context.Context, itemID, mode string, source Source) (*Attempt, error) {
	now := time.Now().UTC()
	attempt := &Attempt{
		ID:        uuid.NewString(),
		ItemID:    itemID,
		Mode:      mode,
		Source:    source,
		Status:    StatusPending,
		CreatedAt: now,
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO attempts (id, item_id, mode, source, status, message, created_at, resolved_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		attempt.ID,
		attempt.ItemID,
		attempt.Mode,
		string(attempt.Source),
		string(attempt.Status),
		nil,
		now.Format(time.RFC3339Nano),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("insert attempt: %w", err)
	}
	return attempt, nil
}

// Resolve marks an attempt with its final outcome.
func (s *Store) Resolve(ctx context.Context, id string, status Status, message string) error {
	if status != StatusSucceeded && status != StatusFailed {
		return fmt.Errorf("resolve attempt: status %q is not terminal", status)
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE attempts SET status = ?, message = ?, resolved_at = ? WHERE id = ?`,
		string(status),
		nullableString(message),
		now.Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("resolve attempt: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("resolve attempt: no attempt with id %s", id)
	}
	return nil
}

// GetByID fetches an attempt by identifier. A nil attempt means not found.
func (s *Store) GetByID(ctx context.Context, id string) (*Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE id = ?`, id)
	attempt, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	return attempt, nil
}

// List returns attempts newest first, filtered by status set (or all
// attempts when no status is provided). A limit of zero means no limit.
func (s *Store) List(ctx context.Context, limit int, statuses ...Status) ([]*Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM attempts`
	var args []any
	if len(statuses) > 0 {
		placeholders := makePlaceholders(len(statuses))
		query += ` WHERE status IN (` + placeholders + `)`
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var results []*Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, attempt)
	}
	return results, rows.Err()
}

// ByItem returns attempts for a single item, newest first.
func (s *Store) ByItem(ctx context.Context, itemID string) ([]*Attempt, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE item_id = ? ORDER BY created_at DESC`,
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("attempts by item: %w", err)
	}
	defer rows.Close()

	var results []*Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, attempt)
	}
	return results, rows.Err()
}

// Stats returns a count of attempts grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM attempts GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("attempt stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Clear removes all recorded attempts.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM attempts`)
	if err != nil {
		return 0, fmt.Errorf("clear attempts: %w", err)
	}
	return res.RowsAffected()
}

const attemptColumns = "id, item_id, mode, source, status, message, created_at, resolved_at"

func scanAttempt(scanner interface{ Scan(dest ...any) error }) (*Attempt, error) {
	var (
		id          string
		itemID      string
		mode        string
		source      string
		statusStr   string
		message     sql.NullString
		createdRaw  sql.NullString
		resolvedRaw sql.NullString
	)

	if err := scanner.Scan(&id, &itemID, &mode, &source, &statusStr, &message, &createdRaw, &resolvedRaw); err != nil {
		return nil, err
	}

	attempt := &Attempt{
		ID:      id,
		ItemID:  itemID,
		Mode:    mode,
		Source:  Source(source),
		Status:  Status(statusStr),
		Message: message.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		attempt.CreatedAt = created
	}
	if resolvedRaw.Valid {
		if resolved, err := parseTimeString(resolvedRaw.String); err == nil {
			attempt.ResolvedAt = &resolved
		}
	}
	return attempt, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
