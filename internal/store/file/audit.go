// Package file is the default audit-trail store: one JSON file per audit key
// under a data directory. It requires no external services and is swapped for
// the Postgres store when a database is configured.
package file

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/trustscope/trustscope/internal/domain"
)

// AuditStore persists audit entries as per-key JSON files. Keys are encoded
// to URL-safe base64 for the filename so arbitrary cache keys stay
// filesystem-safe and recoverable.
type AuditStore struct {
	dir string
	mu  sync.Mutex
}

var _ domain.AuditStore = (*AuditStore)(nil)

func NewAuditStore(dir string) (*AuditStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file: create audit dir %s: %w", dir, err)
	}
	return &AuditStore{dir: dir}, nil
}

func (s *AuditStore) Append(_ context.Context, entry domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read(entry.Key)
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	if len(entries) > domain.MaxAuditEntriesPerKey {
		entries = entries[len(entries)-domain.MaxAuditEntriesPerKey:]
	}
	return s.write(entry.Key, entries)
}

// List returns the most recent entries for a key, newest first. limit <= 0
// means "all retained entries".
func (s *AuditStore) List(_ context.Context, key string, limit int) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read(key)
	if err != nil {
		return nil, err
	}
	// Stored oldest first; reverse to newest first.
	out := make([]domain.AuditEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *AuditStore) Keys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("file: list audit dir: %w", err)
	}
	keys := make([]string, 0, len(dirEntries))
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		raw, err := base64.URLEncoding.DecodeString(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue // not one of ours
		}
		keys = append(keys, string(raw))
	}
	return keys, nil
}

func (s *AuditStore) path(key string) string {
	return filepath.Join(s.dir, base64.URLEncoding.EncodeToString([]byte(key))+".json")
}

func (s *AuditStore) read(key string) ([]domain.AuditEntry, error) {
	raw, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file: read audit trail %q: %w", key, err)
	}
	var entries []domain.AuditEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("file: decode audit trail %q: %w", key, err)
	}
	return entries, nil
}

func (s *AuditStore) write(key string, entries []domain.AuditEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("file: encode audit trail %q: %w", key, err)
	}
	path := s.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("file: write audit trail %q: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("file: replace audit trail %q: %w", key, err)
	}
	return nil
}
