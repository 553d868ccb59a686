package store

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/robertomojr/whatsapp-backend/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "messages.db"), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite_WALEnabled(t *testing.T) {
	s := newTestSQLite(t)

	var mode string
	if err := s.db.QueryRow(`PRAGMA journal_mode`).Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode: got %q, want wal", mode)
	}
}

func TestSQLiteUpsert_Insert(t *testing.T) {
	s := newTestSQLite(t)

	rec := domain.ExchangeRecord{
		MessageID:    "wamid.A",
		FromNumber:   "5511999999999",
		ReceivedText: "oi",
		ReceivedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Reply:        "olá",
	}
	if err := s.UpsertExchange(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	var text, reply string
	err := s.db.QueryRow(`SELECT received_text, reply FROM messages WHERE message_id = ?`, "wamid.A").Scan(&text, &reply)
	if err != nil {
		t.Fatal(err)
	}
	if text != "oi" || reply != "olá" {
		t.Errorf("got text=%q reply=%q", text, reply)
	}
}

func TestSQLiteUpsert_Idempotent(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	rec := domain.ExchangeRecord{
		MessageID:    "wamid.B",
		FromNumber:   "5511999999999",
		ReceivedText: "primeira",
		ReceivedAt:   time.Now().UTC(),
		Reply:        "resposta 1",
	}
	if err := s.UpsertExchange(ctx, rec); err != nil {
		t.Fatal(err)
	}

	rec.ReceivedText = "segunda"
	rec.Reply = "resposta 2"
	if err := s.UpsertExchange(ctx, rec); err != nil {
		t.Fatal(err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE message_id = ?`, "wamid.B").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row, got %d", count)
	}

	var reply string
	if err := s.db.QueryRow(`SELECT reply FROM messages WHERE message_id = ?`, "wamid.B").Scan(&reply); err != nil {
		t.Fatal(err)
	}
	if reply != "resposta 2" {
		t.Errorf("second write should win, got %q", reply)
	}
}
