package dvcfs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

func TestToWriterLeavesWriterOpen(t *testing.T) {
	var buf bytes.Buffer
	d := ToWriter("data/a", &buf)
	require.Equal(t, "data/a", d.Path())

	sink, err := d.Open()
	require.NoError(t, err)
	_, err = sink.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	require.Equal(t, "payload", buf.String())

	// Closing the sink must not affect the underlying writer.
	_, err = buf.WriteString(" more")
	require.NoError(t, err)
}

func TestToFileAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "nested", "out.bin")

	d := ToFile("data/a", local)
	sink, err := d.Open()
	require.NoError(t, err)

	// Nothing visible at the destination until Close.
	_, err = sink.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoFileExists(t, local)

	require.NoError(t, sink.Close())
	data, err := os.ReadFile(local)
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(local))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	// Close is idempotent.
	require.NoError(t, sink.Close())
}

func TestToZstdFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "out.zst")
	payload := bytes.Repeat([]byte("compressible payload "), 100)

	d := ToZstdFile("data/a", local)
	sink, err := d.Open()
	require.NoError(t, err)
	_, err = sink.Write(payload)
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	compressed, err := os.ReadFile(local)
	require.NoError(t, err)
	require.Less(t, len(compressed), len(payload))

	zr, err := zstd.NewReader(bytes.NewReader(compressed))
	require.NoError(t, err)
	defer zr.Close()
	decoded, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.Equal(t, payload, decoded)
}

// brokenOpener yields part of the payload, then fails mid-stream.
type brokenOpener struct{}

func (brokenOpener) Open(context.Context, string, bool) (io.ReadCloser, error) {
	return io.NopCloser(io.MultiReader(bytes.NewReader([]byte("part")), errReader{})), nil
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) {
	return 0, errors.New("stream interrupted")
}

func TestFailedDownloadCommitsNothing(t *testing.T) {
	c, err := NewClient(context.Background(), testRepoURL,
		WithLogger(slog.New(slog.DiscardHandler)),
		WithCloner(&fakeCloner{}),
		WithOpener(brokenOpener{}),
	)
	require.NoError(t, err)

	dir := t.TempDir()
	dst := filepath.Join(dir, "out.bin")
	_, err = c.Download(context.Background(), []Download{ToFile("data/a", dst)})
	require.ErrorContains(t, err, "stream interrupted")

	// Neither a truncated destination nor a temp file remains.
	require.NoFileExists(t, dst)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)

	zdst := filepath.Join(dir, "out.zst")
	_, err = c.Download(context.Background(), []Download{ToZstdFile("data/a", zdst)})
	require.ErrorContains(t, err, "stream interrupted")
	require.NoFileExists(t, zdst)
	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestDownloadResultTotalBytes(t *testing.T) {
	res := &DownloadResult{Sizes: []int64{5, 10, 0}}
	require.Equal(t, int64(15), res.TotalBytes())
	require.Zero(t, (&DownloadResult{}).TotalBytes())
}

func TestDownloadToFiles(t *testing.T) {
	c, _, _ := newTestClient(t, map[string]string{
		"data/a": "alpha",
		"data/b": "beta",
	})

	dir := t.TempDir()
	res, err := c.Download(t.Context(), []Download{
		ToFile("data/a", filepath.Join(dir, "a")),
		ToFile("data/b", filepath.Join(dir, "b")),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"data/a", "data/b"}, res.Paths)
	require.Equal(t, []int64{5, 4}, res.Sizes)

	a, err := os.ReadFile(filepath.Join(dir, "a"))
	require.NoError(t, err)
	require.Equal(t, "alpha", string(a))
	b, err := os.ReadFile(filepath.Join(dir, "b"))
	require.NoError(t, err)
	require.Equal(t, "beta", string(b))
}
