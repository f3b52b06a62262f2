package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/trustscope/trustscope/internal/domain"
)

// Archiver periodically snapshots the audit trail to cold storage. Each key's
// entries are serialized to JSONL and uploaded under a year-month partition:
//
//	archive/audit/2026-08/<escaped-key>.jsonl
//
// Entries are not deleted from the primary store; the audit store enforces
// its own per-key cap, so the archive preserves history the cap would
// otherwise drop.
type Archiver struct {
	writer domain.BlobWriter
	audit  domain.AuditStore
	logger *slog.Logger
	now    func() time.Time
}

// NewArchiver creates an Archiver that reads from the given audit store and
// writes through the given blob writer.
func NewArchiver(writer domain.BlobWriter, audit domain.AuditStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		audit:  audit,
		logger: logger.With(slog.String("component", "archiver")),
		now:    time.Now,
	}
}

// Run archives on the given interval until the context is cancelled. A
// failed cycle is logged and retried at the next tick.
func (a *Archiver) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n, err := a.ArchiveAll(ctx); err != nil {
				a.logger.Error("archive cycle failed", slog.String("error", err.Error()))
			} else {
				a.logger.Info("archive cycle completed", slog.Int("keys", n))
			}
		}
	}
}

// ArchiveAll uploads the current audit trail for every key and returns the
// number of keys archived. Keys with no entries are skipped.
func (a *Archiver) ArchiveAll(ctx context.Context) (int, error) {
	keys, err := a.audit.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive list keys: %w", err)
	}

	archived := 0
	for _, key := range keys {
		if err := a.archiveKey(ctx, key); err != nil {
			return archived, err
		}
		archived++
	}
	return archived, nil
}

func (a *Archiver) archiveKey(ctx context.Context, key string) error {
	entries, err := a.audit.List(ctx, key, 0)
	if err != nil {
		return fmt.Errorf("s3blob: archive list %s: %w", key, err)
	}
	if len(entries) == 0 {
		return nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return fmt.Errorf("s3blob: archive marshal %s: %w", key, err)
	}

	path := archivePath(key, a.now().UTC())
	if err := a.writer.Put(ctx, path, buf, "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: archive upload %s: %w", key, err)
	}
	return nil
}

// archivePath builds the S3 key for one audit trail snapshot, partitioned by
// year-month. The audit key is URL-escaped since it contains colons.
func archivePath(key string, at time.Time) string {
	return fmt.Sprintf("archive/audit/%s/%s.jsonl", at.Format("2006-01"), url.PathEscape(key))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
