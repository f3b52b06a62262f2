package s3blob

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustscope/trustscope/internal/domain"
	"github.com/trustscope/trustscope/internal/store/file"
)

type memoryBlob struct {
	objects map[string][]byte
	types   map[string]string
}

func newMemoryBlob() *memoryBlob {
	return &memoryBlob{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryBlob) Put(_ context.Context, path string, data []byte, contentType string) error {
	m.objects[path] = append([]byte(nil), data...)
	m.types[path] = contentType
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestArchiveAllUploadsJSONLPerKey(t *testing.T) {
	ctx := context.Background()
	store, err := file.NewAuditStore(t.TempDir())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append(ctx, domain.AuditEntry{
			ID:        "e" + string(rune('0'+i)),
			Key:       "pipe:1:0xabc",
			Event:     "scan_completed",
			Payload:   json.RawMessage(`{"score":80}`),
			CreatedAt: time.Now().UTC(),
		}))
	}
	require.NoError(t, store.Append(ctx, domain.AuditEntry{
		ID:      "x1",
		Key:     "pipe:solana:abc",
		Event:   "scan_completed",
		Payload: json.RawMessage(`{}`),
	}))

	blob := newMemoryBlob()
	arch := NewArchiver(blob, store, testLogger())
	arch.now = func() time.Time {
		return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	}

	n, err := arch.ArchiveAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, blob.objects, 2)

	path := "archive/audit/2026-08/pipe:1:0xabc.jsonl"
	data, ok := blob.objects[path]
	require.True(t, ok, "expected object at %s, have %v", path, keysOf(blob.objects))
	assert.Equal(t, "application/x-ndjson", blob.types[path])

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 3)

	var entry domain.AuditEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "pipe:1:0xabc", entry.Key)
}

func TestArchiveAllSkipsEmptyStore(t *testing.T) {
	store, err := file.NewAuditStore(t.TempDir())
	require.NoError(t, err)

	blob := newMemoryBlob()
	arch := NewArchiver(blob, store, testLogger())

	n, err := arch.ArchiveAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, blob.objects)
}

func keysOf(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
