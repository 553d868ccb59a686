package channel

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/robertomojr/whatsapp-backend/internal/config"
	"github.com/robertomojr/whatsapp-backend/internal/domain"
)

const graphAPIBase = "https://graph.facebook.com/v20.0"

// Payload mirrors the WhatsApp Cloud API event envelope. Every level is
// optional: delivery-status callbacks arrive with the same shape but no
// messages array.
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Value Value  `json:"value"`
	Field string `json:"field"`
}

type Value struct {
	MessagingProduct string            `json:"messaging_product"`
	Metadata         Metadata          `json:"metadata"`
	Messages         []Message         `json:"messages,omitempty"`
	Statuses         []json.RawMessage `json:"statuses,omitempty"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type Message struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *Text  `json:"text,omitempty"`
}

type Text struct {
	Body string `json:"body"`
}

// ExtractMessage navigates entry[0].changes[0].value.messages[0] and returns
// the normalized message. The second return is false when the event carries
// no message (status-only callbacks and empty envelopes).
func ExtractMessage(p *Payload) (*domain.IncomingMessage, bool) {
	if p == nil || len(p.Entry) == 0 {
		return nil, false
	}
	changes := p.Entry[0].Changes
	if len(changes) == 0 {
		return nil, false
	}
	msgs := changes[0].Value.Messages
	if len(msgs) == 0 {
		return nil, false
	}

	msg := msgs[0]
	in := &domain.IncomingMessage{
		ID:        msg.ID,
		From:      msg.From,
		Type:      msg.Type,
		Timestamp: msg.Timestamp,
	}
	if msg.Text != nil {
		in.Text = msg.Text.Body
	}
	return in, true
}

// VerifySignature checks the X-Hub-Signature-256 header against the raw body.
func VerifySignature(appSecret string, body []byte, signature string) bool {
	if len(signature) < 7 || signature[:7] != "sha256=" {
		return false
	}
	expected := signature[7:]

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(computed))
}

// Client posts text messages back to users via the WhatsApp Cloud API.
type Client struct {
	accessToken   string
	phoneNumberID string
	apiBase       string
	client        *http.Client
	logger        *slog.Logger
}

func NewClient(cfg config.WhatsAppConfig, logger *slog.Logger) *Client {
	return &Client{
		accessToken:   cfg.AccessToken,
		phoneNumberID: cfg.PhoneNumberID,
		apiBase:       graphAPIBase,
		client:        &http.Client{Timeout: 30 * time.Second},
		logger:        logger,
	}
}

type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             sendText `json:"text"`
}

type sendText struct {
	Body string `json:"body"`
}

type graphErrorBody struct {
	Error struct {
		Message      string `json:"message"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
	} `json:"error"`
}

// SendText delivers a text message to the given phone number. Credentials are
// checked before any network I/O; a non-2xx response is surfaced as a
// *domain.DeliveryError carrying the Graph API's code and subcode. On success
// the provider's response body is returned unmodified.
func (c *Client) SendText(ctx context.Context, to, text string) ([]byte, error) {
	if c.accessToken == "" {
		return nil, domain.ConfigError("WHATSAPP_TOKEN")
	}
	if c.phoneNumberID == "" {
		return nil, domain.ConfigError("WHATSAPP_PHONE_NUMBER_ID")
	}

	url := fmt.Sprintf("%s/%s/messages", c.apiBase, c.phoneNumberID)

	body, err := json.Marshal(sendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             sendText{Body: text},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whatsapp send: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var gerr graphErrorBody
		_ = json.Unmarshal(respBody, &gerr)
		return nil, &domain.DeliveryError{
			StatusCode: resp.StatusCode,
			Message:    gerr.Error.Message,
			Code:       gerr.Error.Code,
			Subcode:    gerr.Error.ErrorSubcode,
		}
	}

	c.logger.Debug("whatsapp message sent", "to", to, "bytes", len(respBody))
	return respBody, nil
}
