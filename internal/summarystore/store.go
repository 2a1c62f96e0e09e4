package summarystore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"covercache/internal/identity"
)

// Summary is one persisted lookup.
type Summary struct {
	Subject   string    `json:"subject"`
	Text      string    `json:"summary"`
	CheckedAt time.Time `json:"checked_at"`
}

// Store manages summary persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Subject returns the store key for a request: "isbn:<ISBN>" when the
// identifier normalizes non-empty, else "q:<hash>" when a title or author
// is given, else "".
func Subject(isbn, title, author string) string {
	if id := identity.ISBN(isbn); !id.IsZero() {
		return id.String()
	}
	return identity.Query(title, author).String()
}

// Open initializes or connects to the summary database and applies migrations.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("summary database path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure summary directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the stored summary for subject. found is false when the
// subject was never checked.
func (s *Store) Get(ctx context.Context, subject string) (Summary, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT subject, summary, checked_at FROM summaries WHERE subject = ?`, subject)
	summary, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Summary{}, false, nil
	}
	if err != nil {
		return Summary{}, false, fmt.Errorf("get summary: %w", err)
	}
	return summary, true, nil
}

// Put records text (possibly empty) as the checked summary for subject.
func (s *Store) Put(ctx context.Context, subject, text string) error {
	if strings.TrimSpace(subject) == "" {
		return errors.New("summary subject required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO summaries (subject, summary, checked_at) VALUES (?, ?, ?)
         ON CONFLICT(subject) DO UPDATE SET summary = excluded.summary, checked_at = excluded.checked_at`,
		subject,
		text,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put summary: %w", err)
	}
	return nil
}

// Delete removes one subject. It reports whether a row existed.
func (s *Store) Delete(ctx context.Context, subject string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM summaries WHERE subject = ?`, subject)
	if err != nil {
		return false, fmt.Errorf("delete summary: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Clear removes every stored summary and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM summaries`)
	if err != nil {
		return 0, fmt.Errorf("clear summaries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// List returns stored summaries, most recently checked first. A limit <= 0
// returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	query := `SELECT subject, summary, checked_at FROM summaries ORDER BY checked_at DESC, subject`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return out, nil
}

// Count returns the number of stored subjects and how many of them are empty.
func (s *Store) Count(ctx context.Context) (total, empty int, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1), COALESCE(SUM(CASE WHEN summary = '' THEN 1 ELSE 0 END), 0) FROM summaries`)
	if err := row.Scan(&total, &empty); err != nil {
		return 0, 0, fmt.Errorf("count summaries: %w", err)
	}
	return total, empty, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (Summary, error) {
	var (
		summary   Summary
		checkedAt string
	)
	if err := row.Scan(&summary.Subject, &summary.Text, &checkedAt); err != nil {
		return Summary{}, err
	}
	if ts, err := time.Parse(time.RFC3339Nano, checkedAt); err == nil {
		summary.CheckedAt = ts
	}
	return summary, nil
}
