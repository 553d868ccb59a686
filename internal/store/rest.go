package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/robertomojr/whatsapp-backend/internal/config"
	"github.com/robertomojr/whatsapp-backend/internal/domain"
)

// RESTStore writes exchanges to a Supabase (PostgREST) table over HTTPS.
// Conflict resolution happens server-side: the request names the message-id
// column as the conflict target and asks for merge-duplicates resolution.
type RESTStore struct {
	baseURL string
	apiKey  string
	table   string
	client  *http.Client
	logger  *slog.Logger
}

func NewRESTStore(cfg config.StoreConfig, logger *slog.Logger) *RESTStore {
	return &RESTStore{
		baseURL: strings.TrimRight(cfg.SupabaseURL, "/"),
		apiKey:  cfg.SupabaseKey,
		table:   cfg.Table,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// restRow is the wire form of one exchange; column names match the table.
type restRow struct {
	MessageID    string `json:"message_id"`
	FromNumber   string `json:"from_number"`
	ReceivedText string `json:"received_text"`
	ReceivedAt   string `json:"received_at"`
	Reply        string `json:"reply"`
}

func (s *RESTStore) UpsertExchange(ctx context.Context, rec domain.ExchangeRecord) error {
	if s.baseURL == "" || s.apiKey == "" {
		return domain.ConfigError("SUPABASE_URL / SUPABASE_KEY")
	}

	// PostgREST accepts a row array for inserts.
	body, err := json.Marshal([]restRow{{
		MessageID:    rec.MessageID,
		FromNumber:   rec.FromNumber,
		ReceivedText: rec.ReceivedText,
		ReceivedAt:   rec.ReceivedAt.Format(time.RFC3339),
		Reply:        rec.Reply,
	}})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	url := fmt.Sprintf("%s/rest/v1/%s?on_conflict=message_id", s.baseURL, s.table)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Prefer", "resolution=merge-duplicates")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: supabase upsert: %v", domain.ErrStore, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: supabase %d: %s", domain.ErrStore, resp.StatusCode, string(respBody))
	}

	s.logger.Debug("exchange upserted", "backend", "supabase", "message_id", rec.MessageID)
	return nil
}

func (s *RESTStore) Close() error { return nil }
