package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trustscope/trustscope/internal/domain"
)

// AuditStore implements domain.AuditStore using PostgreSQL.
type AuditStore struct {
	pool *pgxpool.Pool
}

var _ domain.AuditStore = (*AuditStore)(nil)

// NewAuditStore creates a new AuditStore backed by the given connection pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Append inserts a new audit entry and prunes the key's trail down to the
// retention cap in the same statement set.
func (s *AuditStore) Append(ctx context.Context, entry domain.AuditEntry) error {
	const insert = `INSERT INTO audit_trail (id, key, event, payload, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.pool.Exec(ctx, insert, entry.ID, entry.Key, entry.Event, []byte(entry.Payload), entry.CreatedAt); err != nil {
		return fmt.Errorf("postgres: append audit entry %s: %w", entry.Key, err)
	}

	const prune = `
		DELETE FROM audit_trail
		WHERE key = $1 AND id NOT IN (
			SELECT id FROM audit_trail
			WHERE key = $1
			ORDER BY created_at DESC
			LIMIT $2
		)`
	if _, err := s.pool.Exec(ctx, prune, entry.Key, domain.MaxAuditEntriesPerKey); err != nil {
		return fmt.Errorf("postgres: prune audit trail %s: %w", entry.Key, err)
	}
	return nil
}

// List returns the most recent entries for a key, newest first. limit <= 0
// means "all retained entries".
func (s *AuditStore) List(ctx context.Context, key string, limit int) ([]domain.AuditEntry, error) {
	query := `SELECT id, key, event, payload, created_at FROM audit_trail WHERE key = $1 ORDER BY created_at DESC`
	args := []any{key}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit trail %s: %w", key, err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var payload []byte
		if err := rows.Scan(&e.ID, &e.Key, &e.Event, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan audit entry: %w", err)
		}
		e.Payload = payload
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list audit trail rows: %w", err)
	}
	return entries, nil
}

// Keys returns every key with at least one retained entry.
func (s *AuditStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT key FROM audit_trail ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("postgres: scan audit key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list audit keys rows: %w", err)
	}
	return keys, nil
}
