package domain

import (
	"strconv"
	"time"
)

// IncomingMessage is the normalized form of one inbound WhatsApp message.
// It is built per webhook event and discarded after the pipeline finishes.
type IncomingMessage struct {
	ID        string // provider-assigned message id (wamid.*)
	From      string // sender phone number, e.g. "5511999999999"
	Type      string // "text", "image", "audio", ...
	Text      string // body, only set for text messages
	Timestamp string // epoch seconds as supplied by the provider, may be empty
}

// IsText reports whether the message carries a processable text body.
func (m *IncomingMessage) IsText() bool {
	return m.Type == "text" && m.Text != ""
}

// ReceivedAt converts the provider epoch-seconds timestamp to UTC time,
// falling back to now when the timestamp is absent or malformed.
func (m *IncomingMessage) ReceivedAt(now time.Time) time.Time {
	if m.Timestamp == "" {
		return now.UTC()
	}
	secs, err := strconv.ParseInt(m.Timestamp, 10, 64)
	if err != nil {
		return now.UTC()
	}
	return time.Unix(secs, 0).UTC()
}

// ExchangeRecord is the persisted row for one processed message: the inbound
// text and the generated reply, merged into a single row keyed by message id.
type ExchangeRecord struct {
	MessageID    string
	FromNumber   string
	ReceivedText string
	ReceivedAt   time.Time
	Reply        string
}
