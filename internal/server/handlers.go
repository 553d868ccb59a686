package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/robertomojr/whatsapp-backend/internal/channel"
	"github.com/robertomojr/whatsapp-backend/internal/domain"
)

const maxBodySize = 1 << 20 // 1MB

//go:embed testpage.html
var testPageHTML []byte

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "Backend WhatsApp + OpenAI está vivo 🚀")
}

func (s *Server) handleTestPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(testPageHTML)
}

// handleVerify answers the Meta webhook subscription handshake: echo the
// challenge only when the mode is "subscribe" and the token matches exactly.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token == s.cfg.WhatsApp.VerifyToken {
		s.logger.Info("webhook verified")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, challenge)
		return
	}

	s.logger.Warn("webhook verification failed", "mode", mode)
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// handleEvent acknowledges the event before doing any work: Meta retries
// deliveries whose acknowledgment is late, and local failures must not
// trigger redelivery. Processing continues in a detached goroutine whose
// outcome is only observable in logs.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if s.cfg.WhatsApp.AppSecret != "" {
		sig := r.Header.Get("X-Hub-Signature-256")
		if !channel.VerifySignature(s.cfg.WhatsApp.AppSecret, body, sig) {
			s.logger.Warn("invalid webhook signature")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	w.WriteHeader(http.StatusOK)

	eventID := uuid.NewString()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		s.processEvent(ctx, body, eventID)
	}()
}

type askRequest struct {
	// Pointer so a missing field and a JSON type mismatch both reject.
	Message *string `json:"message"`
}

// handleAsk is the synchronous entry point: raw text in, generated reply out.
// It bypasses the channel and the store entirely.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil || req.Message == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "message is required and must be a string"})
		return
	}

	reply, err := s.gen.Reply(r.Context(), *req.Message)
	if err != nil {
		s.logger.Error("ask failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to generate a reply"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"reply": reply})
}

// handleTestInsert writes a synthetic row so the store wiring can be checked
// from a browser.
func (s *Server) handleTestInsert(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "no store configured"})
		return
	}

	rec := domain.ExchangeRecord{
		MessageID:    "test-" + uuid.NewString(),
		FromNumber:   "0000000000",
		ReceivedText: "mensagem de teste",
		ReceivedAt:   time.Now().UTC(),
		Reply:        "resposta simulada do bot",
	}

	if err := s.store.UpsertExchange(r.Context(), rec); err != nil {
		s.logger.Error("test insert failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "insert failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
