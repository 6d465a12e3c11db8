// Package dvcfs provides file-level read/write access to content
// stored in a git repository augmented with DVC data versioning. A
// Client materializes the remote repository into a temporary working
// copy once per session, serves reads by pulling payloads on demand,
// and batches writes into a single stage/push/commit/push transaction
// across the data store and the metadata repository.
//
// A Client is not goroutine-safe: it owns one mutable working copy.
// Callers needing parallelism should use one Client per worker or
// serialize access externally.
package dvcfs

import (
	"context"

	"github.com/wolfeidau/dvcfs/gitrepo"
)

// MetadataRepo is the version-control side of a working copy: it
// tracks pointer artifacts and their history. Satisfied by
// *gitrepo.Repository.
type MetadataRepo interface {
	Add(ctx context.Context, paths ...string) error
	Commit(ctx context.Context, message string) (gitrepo.Commit, error)
	Push(ctx context.Context) error
	Log(ctx context.Context, maxCount int, paths []string) ([]gitrepo.Commit, error)
}

// PointerStore moves binary payloads between a working copy and the
// remote data store. Satisfied by *pointer.CLI.
type PointerStore interface {
	// Add stages a path, producing or refreshing its pointer artifact.
	Add(ctx context.Context, path string) error
	// Push uploads all staged payloads to the remote data store.
	Push(ctx context.Context) error
	// PullPath downloads the payload for one pointer artifact.
	PullPath(ctx context.Context, path string) error
}

// Cloner materializes a remote repository into a local directory.
type Cloner interface {
	Clone(ctx context.Context, url, dir string) (MetadataRepo, error)
}
