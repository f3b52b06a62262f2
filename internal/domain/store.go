package domain

import (
	"context"
	"encoding/json"
	"time"
)

// MaxAuditEntriesPerKey caps the audit trail kept per cache key. Appending
// beyond the cap drops the oldest entries.
const MaxAuditEntriesPerKey = 100

// AuditEntry is one normalized payload recorded by the pipeline.
type AuditEntry struct {
	ID        string          `json:"id"`
	Key       string          `json:"key"`
	Event     string          `json:"event"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// AuditStore is the append-only audit trail of normalized pipeline payloads,
// keyed by the pipeline cache key and capped at MaxAuditEntriesPerKey.
type AuditStore interface {
	Append(ctx context.Context, entry AuditEntry) error
	List(ctx context.Context, key string, limit int) ([]AuditEntry, error)
	Keys(ctx context.Context) ([]string, error)
}

// BlobWriter uploads an object to cold storage. Used by the audit archiver.
type BlobWriter interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
}
