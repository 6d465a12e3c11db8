package dvcfs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/wolfeidau/dvcfs/pointer"
)

// Opener is the strategy serving read-mode entry handles. Two
// implementations exist: clone-backed reads through the materialized
// working copy, and direct repo-URL reads via dvc get. The choice is
// made once at client construction by a capability probe.
type Opener interface {
	Open(ctx context.Context, path string, emptyFallback bool) (io.ReadCloser, error)
}

func emptyReader() io.ReadCloser {
	return io.NopCloser(bytes.NewReader(nil))
}

// cloneOpener serves reads from the materialized working copy: check
// the pointer artifact, pull the payload, check the payload arrived.
type cloneOpener struct {
	client *Client
}

func (o *cloneOpener) Open(ctx context.Context, path string, emptyFallback bool) (io.ReadCloser, error) {
	c := o.client
	cache, err := c.materialize(ctx)
	if err != nil {
		return nil, err
	}

	if !cache.pointerExists(path) {
		if emptyFallback {
			return emptyReader(), nil
		}
		return nil, &FileNotFoundError{Repo: c.repo, Path: path}
	}

	if err := cache.dvc.PullPath(ctx, path); err != nil {
		return nil, err
	}

	f, err := os.Open(cache.workPath(path))
	if err != nil {
		// The pointer exists but the payload never materialized.
		if os.IsNotExist(err) {
			if emptyFallback {
				return emptyReader(), nil
			}
			return nil, &FileNotFoundError{Repo: c.repo, Path: path}
		}
		return nil, fmt.Errorf("opening payload for %s: %w", path, err)
	}
	return f, nil
}

// directOpener fetches payloads straight from the repository URL with
// dvc get, without requiring a materialized working copy. Existence is
// probed with dvc get --show-url, which fails for paths with no remote
// representation.
type directOpener struct {
	client *Client

	// CLI calls, swappable in tests.
	showURL func(ctx context.Context, bin, repoURL, path string) (string, error)
	get     func(ctx context.Context, bin, repoURL, path, out string) error
}

func newDirectOpener(c *Client) *directOpener {
	return &directOpener{client: c, showURL: pointer.ShowURL, get: pointer.Get}
}

func (o *directOpener) Open(ctx context.Context, path string, emptyFallback bool) (io.ReadCloser, error) {
	c := o.client

	if _, err := o.showURL(ctx, c.dvcBin, c.repo, path); err != nil {
		if emptyFallback {
			return emptyReader(), nil
		}
		return nil, &FileNotFoundError{Repo: c.repo, Path: path}
	}

	tmp, err := os.CreateTemp(c.tempDir, "dvcfs-get-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	// dvc get refuses to overwrite; hand it a free path.
	_ = os.Remove(tmpPath)

	if err := o.get(ctx, c.dvcBin, c.repo, path, tmpPath); err != nil {
		return nil, err
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("opening fetched payload for %s: %w", path, err)
	}
	return &tempFileReader{File: f, path: tmpPath}, nil
}

// tempFileReader removes its backing file on Close.
type tempFileReader struct {
	*os.File
	path string
}

func (r *tempFileReader) Close() error {
	err := r.File.Close()
	_ = os.Remove(r.path)
	return err
}
