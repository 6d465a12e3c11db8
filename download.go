package dvcfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/wolfeidau/dvcfs/journal"
)

// Download pairs a logical path with a destination sink.
type Download interface {
	// Path is the logical path to download.
	Path() string
	// Open returns the destination sink. The sink is closed by the
	// pipeline after the payload has been copied into it.
	Open() (io.WriteCloser, error)
}

// ToWriter returns a download target that copies the payload for path
// into w. The writer is not closed.
func ToWriter(path string, w io.Writer) Download {
	return &writerDownload{path: path, w: w}
}

type writerDownload struct {
	path string
	w    io.Writer
}

func (d *writerDownload) Path() string {
	return d.path
}

func (d *writerDownload) Open() (io.WriteCloser, error) {
	return nopWriteCloser{d.w}, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}

// ToFile returns a download target writing the payload to localPath.
// The write is atomic: data goes to a temp file in the same directory
// and is renamed into place on Close.
func ToFile(path, localPath string) Download {
	return &fileDownload{path: path, local: localPath}
}

type fileDownload struct {
	path  string
	local string
}

func (d *fileDownload) Path() string {
	return d.path
}

func (d *fileDownload) Open() (io.WriteCloser, error) {
	dir := filepath.Dir(d.local)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	return &atomicWriter{f: tmp, tmpPath: tmp.Name(), dstPath: d.local}, nil
}

// atomicWriter wraps a file for atomic writing via temp file + rename.
type atomicWriter struct {
	f       *os.File
	tmpPath string
	dstPath string
	closed  bool
}

// sinkAborter discards a partially written sink without committing
// anything to its destination. Sinks that buffer or stage output
// implement it so a failed copy never surfaces a truncated result.
type sinkAborter interface {
	abort()
}

// abortSink discards a sink after a failed copy. Sinks without an
// abort path are just closed.
func abortSink(sink io.WriteCloser) {
	if a, ok := sink.(sinkAborter); ok {
		a.abort()
		return
	}
	_ = sink.Close()
}

func (w *atomicWriter) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

// abort removes the temp file without renaming it into place.
func (w *atomicWriter) abort() {
	if w.closed {
		return
	}
	w.closed = true
	_ = w.f.Close()
	_ = os.Remove(w.tmpPath)
}

// Close commits the write by renaming the temp file.
func (w *atomicWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.f.Sync(); err != nil {
		_ = w.f.Close()
		_ = os.Remove(w.tmpPath)
		return fmt.Errorf("syncing file: %w", err)
	}
	if err := w.f.Close(); err != nil {
		_ = os.Remove(w.tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(w.tmpPath, w.dstPath); err != nil {
		_ = os.Remove(w.tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// ToZstdFile is ToFile with zstd compression applied on the way down.
func ToZstdFile(path, localPath string) Download {
	return &zstdDownload{fileDownload{path: path, local: localPath}}
}

type zstdDownload struct {
	fileDownload
}

func (d *zstdDownload) Open() (io.WriteCloser, error) {
	wc, err := d.fileDownload.Open()
	if err != nil {
		return nil, err
	}
	zw, err := zstd.NewWriter(wc, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = wc.Close()
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	return &zstdWriteCloser{zw: zw, under: wc}, nil
}

type zstdWriteCloser struct {
	zw    *zstd.Encoder
	under io.WriteCloser
}

func (w *zstdWriteCloser) Write(p []byte) (int, error) {
	return w.zw.Write(p)
}

func (w *zstdWriteCloser) Close() error {
	if err := w.zw.Close(); err != nil {
		_ = w.under.Close()
		return fmt.Errorf("flushing zstd stream: %w", err)
	}
	return w.under.Close()
}

func (w *zstdWriteCloser) abort() {
	_ = w.zw.Close()
	abortSink(w.under)
}

// DownloadResult summarizes one batch download. Paths and Sizes are
// parallel slices in request order.
type DownloadResult struct {
	OpID     string
	Repo     string
	Paths    []string
	Sizes    []int64
	Duration time.Duration
}

// TotalBytes returns the sum of all downloaded payload sizes.
func (r *DownloadResult) TotalBytes() int64 {
	var total int64
	for _, n := range r.Sizes {
		total += n
	}
	return total
}

// Download fetches a batch of files. Empty input returns an empty
// result without materializing the working copy. Requests are served
// in input order; the first failure aborts the whole call — there is
// no partial-success mode. Accepts WithEmptyFallback for all entries.
func (c *Client) Download(ctx context.Context, files []Download, opts ...FileOption) (*DownloadResult, error) {
	start := time.Now()
	res := &DownloadResult{OpID: uuid.NewString(), Repo: c.repo}
	if len(files) == 0 {
		res.Duration = time.Since(start)
		return res, nil
	}

	for _, dl := range files {
		n, err := c.downloadOne(ctx, dl, opts)
		if err != nil {
			recordTransfer(ctx, "download", 0, time.Since(start), "error")
			return nil, err
		}
		res.Paths = append(res.Paths, dl.Path())
		res.Sizes = append(res.Sizes, n)
	}

	res.Duration = time.Since(start)
	c.logger.Debug("download complete", "repo", c.repo,
		"files", len(res.Paths), "bytes", res.TotalBytes(), "duration", res.Duration)
	recordTransfer(ctx, "download", res.TotalBytes(), res.Duration, "ok")
	c.record(ctx, journal.Entry{
		ID:        res.OpID,
		Kind:      journal.KindDownload,
		Repo:      c.repo,
		Paths:     res.Paths,
		Bytes:     res.TotalBytes(),
		Duration:  res.Duration,
		StartedAt: start.UTC(),
	})
	return res, nil
}

func (c *Client) downloadOne(ctx context.Context, dl Download, opts []FileOption) (int64, error) {
	f, err := c.Open(ctx, dl.Path(), opts...)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	sink, err := dl.Open()
	if err != nil {
		return 0, fmt.Errorf("opening sink for %s: %w", dl.Path(), err)
	}
	n, err := io.Copy(sink, f)
	if err != nil {
		abortSink(sink)
		return 0, fmt.Errorf("writing %s: %w", dl.Path(), err)
	}
	if err := sink.Close(); err != nil {
		return 0, fmt.Errorf("closing sink for %s: %w", dl.Path(), err)
	}
	return n, nil
}
