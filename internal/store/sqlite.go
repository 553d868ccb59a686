package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/robertomojr/whatsapp-backend/internal/domain"
)

// SQLiteStore keeps exchanges in a local SQLite file. Used when no Supabase
// endpoint is configured.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	// modernc driver takes pragmas as _pragma=name(value) params
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, logger: logger}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		message_id    TEXT PRIMARY KEY,
		from_number   TEXT,
		received_text TEXT,
		received_at   TEXT,
		reply         TEXT,
		updated_at    DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_messages_from ON messages(from_number);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) UpsertExchange(ctx context.Context, rec domain.ExchangeRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (message_id, from_number, received_text, received_at, reply, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(message_id) DO UPDATE SET
			from_number   = excluded.from_number,
			received_text = excluded.received_text,
			received_at   = excluded.received_at,
			reply         = excluded.reply,
			updated_at    = CURRENT_TIMESTAMP`,
		rec.MessageID, rec.FromNumber, rec.ReceivedText, rec.ReceivedAt.Format(time.RFC3339), rec.Reply,
	)
	if err != nil {
		return fmt.Errorf("%w: sqlite upsert: %v", domain.ErrStore, err)
	}

	s.logger.Debug("exchange upserted", "backend", "sqlite", "message_id", rec.MessageID)
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
