package dvcfs

import (
	"fmt"
	"strings"
)

// RepositoryUnreachableError reports that cloning the metadata
// repository failed. The cache is left unset; a later call may retry.
type RepositoryUnreachableError struct {
	Repo string
	Err  error
}

func (e *RepositoryUnreachableError) Error() string {
	return fmt.Sprintf("repository %s not accessible: %v", e.Repo, e.Err)
}

func (e *RepositoryUnreachableError) Unwrap() error {
	return e.Err
}

// FileNotFoundError reports that a logical path has no remote
// representation (no pointer artifact, or the payload failed to
// materialize) and no empty fallback was requested.
type FileNotFoundError struct {
	Repo string
	Path string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("file %s is missing in repository %s", e.Path, e.Repo)
}

// MetadataUpdateFailedError reports that staging, committing, or
// pushing the metadata repository failed after the binary payloads
// were already pushed to the data store. The data store and the
// metadata repository may be inconsistent: pointer artifacts exist as
// pushed payloads but were never committed. Callers should re-run the
// update or inspect the remote rather than assume a rollback.
type MetadataUpdateFailedError struct {
	Repo  string
	Paths []string
	Err   error
}

func (e *MetadataUpdateFailedError) Error() string {
	return fmt.Sprintf("metadata update for %s failed (paths: %s): %v",
		e.Repo, strings.Join(e.Paths, ", "), e.Err)
}

func (e *MetadataUpdateFailedError) Unwrap() error {
	return e.Err
}
