package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying pipeline stage failures. Callers match with
// errors.Is; the webhook pipeline logs and drops them, synchronous endpoints
// map them to HTTP status codes.
var (
	ErrConfig     = errors.New("configuration error")
	ErrValidation = errors.New("validation error")
	ErrProvider   = errors.New("provider error")
	ErrStore      = errors.New("store error")
)

// ConfigError reports a required credential or setting that is absent.
// It never crashes the process; the failing operation is simply aborted.
func ConfigError(name string) error {
	return fmt.Errorf("%w: missing %s", ErrConfig, name)
}

// DeliveryError carries the structured error body the WhatsApp Graph API
// returns on a failed send.
type DeliveryError struct {
	StatusCode int
	Message    string
	Code       int
	Subcode    int
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("whatsapp send failed (http %d): %s (code=%d subcode=%d)",
		e.StatusCode, e.Message, e.Code, e.Subcode)
}
