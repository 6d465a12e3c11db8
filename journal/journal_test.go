package journal

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRecordAndList(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"op-1", "op-2", "op-3"} {
		err := j.Record(ctx, Entry{
			ID:        id,
			Kind:      KindDownload,
			Repo:      "https://example.com/repo.git",
			Paths:     []string{"data/a"},
			Bytes:     int64(i + 1),
			Duration:  time.Second,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	entries, err := j.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Most recent first.
	require.Equal(t, "op-3", entries[0].ID)
	require.Equal(t, "op-1", entries[2].ID)
	require.Equal(t, KindDownload, entries[0].Kind)
	require.Equal(t, int64(3), entries[0].Bytes)
}

func TestListLimit(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range 5 {
		err := j.Record(ctx, Entry{
			ID:        string(rune('a' + i)),
			Kind:      KindUpdate,
			StartedAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	entries, err := j.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "e", entries[0].ID)
	require.Equal(t, "d", entries[1].ID)
}

func TestRecordFillsStartedAt(t *testing.T) {
	now := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"), WithNow(func() time.Time { return now }))
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	ctx := context.Background()
	require.NoError(t, j.Record(ctx, Entry{ID: "op", Kind: KindUpdate}))

	entries, err := j.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, now, entries[0].StartedAt)
}

func TestLargeEntryRoundTrip(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	// Enough paths to cross the compression threshold.
	paths := make([]string, 200)
	for i := range paths {
		paths[i] = "datasets/images/batch-" + strings.Repeat("x", 10)
	}

	err := j.Record(ctx, Entry{
		ID:        "big",
		Kind:      KindUpdate,
		Repo:      "https://example.com/repo.git",
		Paths:     paths,
		CommitSHA: "a1b2c3",
		StartedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	entries, err := j.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, paths, entries[0].Paths)
	require.Equal(t, "a1b2c3", entries[0].CommitSHA)
}

func TestCodecRoundTrip(t *testing.T) {
	c, err := newCodec()
	require.NoError(t, err)
	defer c.close()

	small := []byte(`{"id":"x"}`)
	encoded := c.encode(small)
	require.Equal(t, encodingIdentity, encoded[0])
	decoded, err := c.decode(encoded)
	require.NoError(t, err)
	require.Equal(t, small, decoded)

	large := []byte(strings.Repeat(`{"path":"data/a"},`, 100))
	encoded = c.encode(large)
	require.Equal(t, encodingZstd, encoded[0])
	require.Less(t, len(encoded), len(large))
	decoded, err = c.decode(encoded)
	require.NoError(t, err)
	require.Equal(t, large, decoded)
}

func TestCodecDecodeInvalid(t *testing.T) {
	c, err := newCodec()
	require.NoError(t, err)
	defer c.close()

	_, err = c.decode(nil)
	require.Error(t, err)

	_, err = c.decode([]byte{99, 1, 2})
	require.Error(t, err)
}
