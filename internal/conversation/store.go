// Package conversation persists the turn log in a local SQLite database.
package conversation

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"tabitalk/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS turns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	turn_id TEXT NOT NULL,
	role TEXT NOT NULL,
	text TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_created_at ON turns(created_at);
`

// Store is a SQLite-backed conversation log.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores a turn and returns its assigned row id. Pending turns
// must never reach this method.
func (s *Store) Append(ctx context.Context, turn domain.Turn) (int64, error) {
	if turn.Pending {
		return 0, fmt.Errorf("refusing to persist pending turn %s", turn.ID)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (turn_id, role, text, created_at)
		VALUES (?, ?, ?, ?)
	`, turn.ID, string(turn.Role), turn.Text, turn.CreatedAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("insert turn: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read insert id: %w", err)
	}
	return seq, nil
}

// Recent returns the most recent limit turns in chronological order.
func (s *Store) Recent(ctx context.Context, limit int) ([]domain.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, turn_id, role, text, created_at
		FROM turns
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var newestFirst []domain.Turn
	for rows.Next() {
		var t domain.Turn
		var role string
		var createdAt int64
		if err := rows.Scan(&t.Seq, &t.ID, &role, &t.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Role = domain.Role(role)
		t.CreatedAt = time.UnixMilli(createdAt)
		newestFirst = append(newestFirst, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	turns := make([]domain.Turn, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		turns = append(turns, newestFirst[i])
	}
	return turns, nil
}

// UpdateText rewrites the text of a stored turn after a confirmed edit.
func (s *Store) UpdateText(ctx context.Context, seq int64, text string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE turns SET text = ? WHERE id = ?`, text, seq)
	if err != nil {
		return fmt.Errorf("update turn %d: %w", seq, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("turn %d not found", seq)
	}
	return nil
}

// Delete removes a stored turn.
func (s *Store) Delete(ctx context.Context, seq int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE id = ?`, seq); err != nil {
		return fmt.Errorf("delete turn %d: %w", seq, err)
	}
	return nil
}

// Clear removes all stored turns.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM turns`); err != nil {
		return fmt.Errorf("clear turns: %w", err)
	}
	return nil
}
