package file

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustscope/trustscope/internal/domain"
)

func newStore(t *testing.T) *AuditStore {
	t.Helper()
	s, err := NewAuditStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func entry(key, event string) domain.AuditEntry {
	return domain.AuditEntry{
		ID:        uuid.NewString(),
		Key:       key,
		Event:     event,
		Payload:   json.RawMessage(`{"score": 50}`),
		CreatedAt: time.Now().UTC(),
	}
}

func TestAppendAndList(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	first := entry("pipe:1:0xabc", "scan_completed")
	second := entry("pipe:1:0xabc", "scan_completed")
	require.NoError(t, s.Append(ctx, first))
	require.NoError(t, s.Append(ctx, second))

	got, err := s.List(ctx, "pipe:1:0xabc", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID, "newest first")
	assert.Equal(t, first.ID, got[1].ID)
	assert.Equal(t, json.RawMessage(`{"score": 50}`), got[0].Payload)
}

func TestListLimit(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, entry("k", "e")))
	}
	got, err := s.List(ctx, "k", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestListUnknownKey(t *testing.T) {
	s := newStore(t)
	got, err := s.List(context.Background(), "never-written", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAppendCapsPerKey(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	var lastID string
	for i := 0; i < domain.MaxAuditEntriesPerKey+10; i++ {
		e := entry("capped", fmt.Sprintf("event-%d", i))
		lastID = e.ID
		require.NoError(t, s.Append(ctx, e))
	}

	got, err := s.List(ctx, "capped", 0)
	require.NoError(t, err)
	assert.Len(t, got, domain.MaxAuditEntriesPerKey, "trail must be capped")
	assert.Equal(t, lastID, got[0].ID, "newest entries survive the cap")
	assert.Equal(t, fmt.Sprintf("event-%d", 10), got[len(got)-1].Event, "oldest entries are dropped")
}

func TestKeysRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Append(ctx, entry("pipe:solana:So111/weird key", "e")))
	require.NoError(t, s.Append(ctx, entry("pipe:1:0xabc", "e")))

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"pipe:solana:So111/weird key", "pipe:1:0xabc"}, keys)
}

func TestKeysIsolatedPerKey(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Append(ctx, entry("a", "e")))
	require.NoError(t, s.Append(ctx, entry("b", "e")))

	got, err := s.List(ctx, "a", 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Key)
}
