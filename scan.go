package dvcfs

import (
	"context"
	"fmt"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/wolfeidau/dvcfs/pointer"
)

// excludedScanDirs are version-control internals hidden from scans.
var excludedScanDirs = []string{".git", ".dvc"}

// Entry describes one logical entry in a working-copy directory.
type Entry struct {
	// Path is relative to the working-copy root, slash-separated, with
	// the pointer-artifact suffix stripped for files.
	Path  string
	Name  string
	Repo  string
	IsDir bool
}

// ScanDir lists the immediate children of dir inside the working copy,
// materializing it if needed. Directories are emitted unless they are
// version-control internals; files are emitted only when they carry
// the pointer-artifact suffix, with the suffix stripped. Everything
// else is silently omitted. Non-recursive.
func (c *Client) ScanDir(ctx context.Context, dir string) ([]Entry, error) {
	dir = strings.TrimPrefix(dir, "/")
	if dir == "" {
		dir = "."
	}

	cache, err := c.materialize(ctx)
	if err != nil {
		return nil, err
	}

	children, err := os.ReadDir(cache.workPath(dir))
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var entries []Entry
	for _, child := range children {
		rel := path.Join(dir, child.Name())
		switch {
		case child.IsDir() && !slices.Contains(excludedScanDirs, child.Name()):
			entries = append(entries, Entry{
				Path:  rel,
				Name:  child.Name(),
				Repo:  c.repo,
				IsDir: true,
			})
		case !child.IsDir() && pointer.IsPointer(child.Name()):
			entries = append(entries, Entry{
				Path:  pointer.Trim(rel),
				Name:  pointer.Trim(child.Name()),
				Repo:  c.repo,
				IsDir: false,
			})
		}
	}
	return entries, nil
}

// ListFiles returns the names of the entries in dir.
func (c *Client) ListFiles(ctx context.Context, dir string) ([]string, error) {
	entries, err := c.ScanDir(ctx, dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names, nil
}
