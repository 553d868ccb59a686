package channel

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/robertomojr/whatsapp-backend/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

const textEvent = `{
	"object": "whatsapp_business_account",
	"entry": [{
		"id": "123",
		"changes": [{
			"field": "messages",
			"value": {
				"messaging_product": "whatsapp",
				"metadata": {"display_phone_number": "15550000000", "phone_number_id": "111"},
				"messages": [{
					"from": "5511999999999",
					"id": "wamid.ABC",
					"timestamp": "1700000000",
					"type": "text",
					"text": {"body": "olá"}
				}]
			}
		}]
	}]
}`

func TestExtractMessage_Text(t *testing.T) {
	var p Payload
	if err := json.Unmarshal([]byte(textEvent), &p); err != nil {
		t.Fatal(err)
	}

	msg, ok := ExtractMessage(&p)
	if !ok {
		t.Fatal("expected a message")
	}
	if msg.ID != "wamid.ABC" {
		t.Errorf("id: got %q", msg.ID)
	}
	if msg.From != "5511999999999" {
		t.Errorf("from: got %q", msg.From)
	}
	if msg.Text != "olá" {
		t.Errorf("text: got %q", msg.Text)
	}
	if msg.Timestamp != "1700000000" {
		t.Errorf("timestamp: got %q", msg.Timestamp)
	}
	if !msg.IsText() {
		t.Error("expected IsText")
	}
}

func TestExtractMessage_StatusOnly(t *testing.T) {
	raw := `{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.X","status":"delivered"}]}}]}]}`
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatal(err)
	}
	if _, ok := ExtractMessage(&p); ok {
		t.Error("status-only event should not yield a message")
	}
}

func TestExtractMessage_EmptyLevels(t *testing.T) {
	cases := []string{
		`{}`,
		`{"entry":[]}`,
		`{"entry":[{}]}`,
		`{"entry":[{"changes":[]}]}`,
		`{"entry":[{"changes":[{"value":{}}]}]}`,
	}
	for _, raw := range cases {
		var p Payload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			t.Fatalf("%s: %v", raw, err)
		}
		if _, ok := ExtractMessage(&p); ok {
			t.Errorf("%s: expected absent", raw)
		}
	}
	if _, ok := ExtractMessage(nil); ok {
		t.Error("nil payload: expected absent")
	}
}

func TestExtractMessage_NonText(t *testing.T) {
	raw := `{"entry":[{"changes":[{"value":{"messages":[{"from":"551","id":"wamid.I","type":"image"}]}}]}]}`
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatal(err)
	}
	msg, ok := ExtractMessage(&p)
	if !ok {
		t.Fatal("expected a message")
	}
	if msg.IsText() {
		t.Error("image message should not be text")
	}
}

func TestVerifySignature_Valid(t *testing.T) {
	secret := "app-secret"
	body := []byte(`{"object":"whatsapp_business_account"}`)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	if !VerifySignature(secret, body, sig) {
		t.Error("valid signature should verify")
	}
}

func TestVerifySignature_Invalid(t *testing.T) {
	if VerifySignature("secret", []byte("body"), "sha256=deadbeef") {
		t.Error("invalid signature should not verify")
	}
	if VerifySignature("secret", []byte("body"), "") {
		t.Error("empty signature should not verify")
	}
}

func TestSendText_Success(t *testing.T) {
	var gotPath, gotAuth string
	var gotReq sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Error(err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"messages":[{"id":"wamid.OUT"}]}`))
	}))
	defer srv.Close()

	c := &Client{
		accessToken:   "tok",
		phoneNumberID: "111",
		apiBase:       srv.URL,
		client:        srv.Client(),
		logger:        testLogger(),
	}

	body, err := c.SendText(context.Background(), "5511999999999", "oi")
	if err != nil {
		t.Fatal(err)
	}
	if gotPath != "/111/messages" {
		t.Errorf("path: got %q", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("auth: got %q", gotAuth)
	}
	if gotReq.MessagingProduct != "whatsapp" || gotReq.To != "5511999999999" || gotReq.Type != "text" || gotReq.Text.Body != "oi" {
		t.Errorf("unexpected request: %+v", gotReq)
	}
	if string(body) != `{"messages":[{"id":"wamid.OUT"}]}` {
		t.Errorf("body: got %q", body)
	}
}

func TestSendText_GraphError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Invalid parameter","code":100,"error_subcode":2018001}}`))
	}))
	defer srv.Close()

	c := &Client{
		accessToken:   "tok",
		phoneNumberID: "111",
		apiBase:       srv.URL,
		client:        srv.Client(),
		logger:        testLogger(),
	}

	_, err := c.SendText(context.Background(), "551", "oi")
	var derr *domain.DeliveryError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	if derr.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d", derr.StatusCode)
	}
	if derr.Message != "Invalid parameter" || derr.Code != 100 || derr.Subcode != 2018001 {
		t.Errorf("unexpected error detail: %+v", derr)
	}
}

func TestSendText_MissingCredentials(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	c := &Client{
		phoneNumberID: "111",
		apiBase:       srv.URL,
		client:        srv.Client(),
		logger:        testLogger(),
	}
	if _, err := c.SendText(context.Background(), "551", "oi"); !errors.Is(err, domain.ErrConfig) {
		t.Errorf("missing token: expected ErrConfig, got %v", err)
	}

	c = &Client{
		accessToken: "tok",
		apiBase:     srv.URL,
		client:      srv.Client(),
		logger:      testLogger(),
	}
	if _, err := c.SendText(context.Background(), "551", "oi"); !errors.Is(err, domain.ErrConfig) {
		t.Errorf("missing phone id: expected ErrConfig, got %v", err)
	}

	if calls != 0 {
		t.Errorf("no network call should happen, got %d", calls)
	}
}
