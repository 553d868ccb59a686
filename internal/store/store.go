// Package store persists processed exchanges. All backends share the same
// contract: an upsert keyed on message id, so reprocessing the same inbound
// message never creates duplicate rows.
package store

import (
	"context"

	"github.com/robertomojr/whatsapp-backend/internal/domain"
)

type Store interface {
	// UpsertExchange writes the record, overwriting any existing row with
	// the same message id (last-write-wins).
	UpsertExchange(ctx context.Context, rec domain.ExchangeRecord) error
	Close() error
}
