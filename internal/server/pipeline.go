package server

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/robertomojr/whatsapp-backend/internal/channel"
	"github.com/robertomojr/whatsapp-backend/internal/domain"
)

// processEvent runs the background pipeline for one webhook event. The HTTP
// acknowledgment has already been sent, so every stage failure is logged and
// dropped: a generation failure aborts the remaining stages, a recording
// failure does not block the send.
func (s *Server) processEvent(ctx context.Context, body []byte, eventID string) {
	log := s.logger.With("event", eventID)

	var payload channel.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn("bad webhook payload", "err", err)
		return
	}

	msg, ok := channel.ExtractMessage(&payload)
	if !ok {
		log.Debug("no message in event")
		return
	}
	if !msg.IsText() {
		log.Info("ignoring non-text message", "type", msg.Type, "from", msg.From)
		return
	}

	log.Info("message received", "from", msg.From, "text_len", len(msg.Text))

	reply, err := s.gen.Reply(ctx, msg.Text)
	if err != nil {
		log.Error("reply generation failed", "err", err)
		return
	}

	if s.store != nil {
		rec := domain.ExchangeRecord{
			MessageID:    msg.ID,
			FromNumber:   msg.From,
			ReceivedText: msg.Text,
			ReceivedAt:   msg.ReceivedAt(time.Now()),
			Reply:        reply,
		}
		if err := s.store.UpsertExchange(ctx, rec); err != nil {
			log.Error("exchange record failed", "err", err)
		}
	}

	if !s.cfg.WhatsApp.SendReply {
		log.Info("send-reply disabled, reply not delivered", "to", msg.From)
		return
	}

	if _, err := s.sender.SendText(ctx, msg.From, reply); err != nil {
		var derr *domain.DeliveryError
		if errors.As(err, &derr) {
			log.Error("whatsapp send failed",
				"status", derr.StatusCode, "code", derr.Code, "subcode", derr.Subcode, "message", derr.Message)
		} else {
			log.Error("whatsapp send failed", "err", err)
		}
		return
	}

	log.Info("reply delivered", "to", msg.From)
}
