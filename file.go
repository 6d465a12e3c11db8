package dvcfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var errReadOnly = errors.New("dvcfs: file opened read-only")

type mode int

const (
	modeRead mode = iota
	modeWrite
	modeAppend
)

type fileOptions struct {
	mode          mode
	emptyFallback bool
}

// FileOption configures how an entry handle is opened.
type FileOption func(*fileOptions)

// WithEmptyFallback makes reads of a path with no remote
// representation yield an empty stream instead of failing with
// FileNotFoundError.
func WithEmptyFallback() FileOption {
	return func(o *fileOptions) {
		o.emptyFallback = true
	}
}

// ForWrite opens the entry for writing, truncating any pulled content.
// Closing the handle submits the staged file as a single-entry update.
func ForWrite() FileOption {
	return func(o *fileOptions) {
		o.mode = modeWrite
	}
}

// ForAppend opens the entry for writing positioned after any pulled
// content, so partial writes extend the latest remote version.
func ForAppend() FileOption {
	return func(o *fileOptions) {
		o.mode = modeAppend
	}
}

// File is a scoped accessor over a single logical file. Read handles
// stream pulled content. Write handles expose the staged working-copy
// file and, on Close, submit exactly one upload through the update
// pipeline with the default commit message.
type File struct {
	path    string
	repo    string
	session session
}

// session is the per-mode behaviour of an active handle, fixed at
// construction. The context passed to close bounds any final update a
// write session runs; read sessions ignore it.
type session interface {
	io.Reader
	io.Writer
	close(ctx context.Context) error
}

// Open opens an entry handle for the logical path, materializing the
// working copy if needed. Without options the handle is read-only.
func (c *Client) Open(ctx context.Context, path string, opts ...FileOption) (*File, error) {
	var fo fileOptions
	for _, opt := range opts {
		opt(&fo)
	}

	f := &File{path: path, repo: c.repo}
	if fo.mode == modeRead {
		rc, err := c.opener.Open(ctx, path, fo.emptyFallback)
		if err != nil {
			return nil, err
		}
		f.session = &readSession{rc: rc}
		return f, nil
	}

	s, err := c.openWrite(ctx, path, fo.mode)
	if err != nil {
		return nil, err
	}
	f.session = s
	return f, nil
}

// openWrite stages a working-copy file for the logical path. When a
// pointer artifact already exists the current payload is pulled first,
// so writes over existing content start from the latest version.
func (c *Client) openWrite(ctx context.Context, path string, m mode) (*writeSession, error) {
	cache, err := c.materialize(ctx)
	if err != nil {
		return nil, err
	}

	if cache.pointerExists(path) {
		if err := cache.dvc.PullPath(ctx, path); err != nil {
			return nil, err
		}
	}

	dst := cache.workPath(path)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, fmt.Errorf("creating parent directory: %w", err)
	}

	flags := os.O_RDWR | os.O_CREATE
	switch m {
	case modeWrite:
		flags |= os.O_TRUNC
	case modeAppend:
		flags |= os.O_APPEND
	}
	fh, err := os.OpenFile(dst, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dst, err)
	}

	return &writeSession{
		client: c,
		path:   path,
		staged: dst,
		f:      fh,
	}, nil
}

// Path returns the logical path of the entry.
func (f *File) Path() string {
	return f.path
}

func (f *File) Read(p []byte) (int, error) {
	return f.session.Read(p)
}

func (f *File) Write(p []byte) (int, error) {
	return f.session.Write(p)
}

// Close finalizes the handle. Read handles only release the stream.
// Write handles flush and close the staged file, then run the update
// pipeline for it: dvc add and push, then a metadata commit and push.
// The final update runs under a background context; use
// CloseWithContext to bound it.
func (f *File) Close() error {
	return f.session.close(context.Background())
}

// CloseWithContext is Close with an explicit context for the final
// update of a write handle. Read handles ignore the context.
func (f *File) CloseWithContext(ctx context.Context) error {
	return f.session.close(ctx)
}

type readSession struct {
	rc io.ReadCloser
}

func (s *readSession) Read(p []byte) (int, error) {
	return s.rc.Read(p)
}

func (s *readSession) Write([]byte) (int, error) {
	return 0, errReadOnly
}

func (s *readSession) close(context.Context) error {
	return s.rc.Close()
}

type writeSession struct {
	client *Client
	path   string
	staged string
	f      *os.File
	closed bool
}

func (s *writeSession) Read(p []byte) (int, error) {
	return s.f.Read(p)
}

func (s *writeSession) Write(p []byte) (int, error) {
	return s.f.Write(p)
}

func (s *writeSession) close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.f.Sync(); err != nil {
		_ = s.f.Close()
		return fmt.Errorf("syncing %s: %w", s.staged, err)
	}
	if err := s.f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", s.staged, err)
	}

	// The staged file already sits at its working-copy destination, so
	// PathUpload's overwrite policy skips the redundant copy.
	_, err := s.client.Update(ctx, []Upload{&PathUpload{Src: s.staged, Dest: s.path}})
	return err
}
