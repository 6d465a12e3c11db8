package dvcfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/dvcfs/gitrepo"
	"github.com/wolfeidau/dvcfs/journal"
	"github.com/wolfeidau/dvcfs/pointer"
)

// defaultMessagePrefix starts the commit message when the caller does
// not supply one; the comma-joined basenames of the updated paths
// follow.
const defaultMessagePrefix = "Automatically updated files: "

type updateOptions struct {
	message string
	extra   string
}

// UpdateOption configures a batch update.
type UpdateOption func(*updateOptions)

// WithCommitMessage replaces the default commit message.
func WithCommitMessage(message string) UpdateOption {
	return func(o *updateOptions) {
		o.message = message
	}
}

// WithCommitMessageExtra appends an extra segment to the commit
// message, separated by a newline.
func WithCommitMessageExtra(extra string) UpdateOption {
	return func(o *updateOptions) {
		o.extra = extra
	}
}

// UpdateResult summarizes one batch update.
type UpdateResult struct {
	OpID          string
	Repo          string
	CommitMessage string
	Requested     []string
	Updated       []string
	CommitSHA     string
	CommittedAt   time.Time
	Duration      time.Duration
}

// Update uploads a batch of files: stage each source into the working
// copy, dvc add it, push all payloads to the data store once, then
// commit and push the pointer artifacts to the metadata repository as
// one unit. Empty input returns an empty result without materializing
// the working copy or performing a commit.
//
// A metadata-side failure surfaces as MetadataUpdateFailedError. At
// that point the payload push has already succeeded, so the data store
// and the metadata repository can be left inconsistent; callers should
// re-run the update or inspect the remote rather than assume rollback.
func (c *Client) Update(ctx context.Context, files []Upload, opts ...UpdateOption) (*UpdateResult, error) {
	start := time.Now()
	var uo updateOptions
	for _, opt := range opts {
		opt(&uo)
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path()
	}
	res := &UpdateResult{OpID: uuid.NewString(), Repo: c.repo, Requested: paths}

	if len(files) == 0 {
		res.Updated = []string{}
		res.Duration = time.Since(start)
		return res, nil
	}

	message := uo.message
	if message == "" {
		names := make([]string, len(files))
		for i, f := range files {
			names[i] = path.Base(f.Path())
		}
		message = defaultMessagePrefix + strings.Join(names, ", ")
	}
	if uo.extra != "" {
		message = message + "\n" + uo.extra
	}
	res.CommitMessage = message

	cache, err := c.materialize(ctx)
	if err != nil {
		return nil, err
	}

	c.logger.Info("staging files", "repo", c.repo, "count", len(files))
	var stagedBytes int64
	for _, file := range files {
		n, err := c.stage(ctx, cache, file)
		if err != nil {
			recordTransfer(ctx, "update", stagedBytes, time.Since(start), "error")
			return nil, err
		}
		stagedBytes += n
	}

	c.logger.Info("pushing payloads", "repo", c.repo)
	if err := cache.dvc.Push(ctx); err != nil {
		recordTransfer(ctx, "update", stagedBytes, time.Since(start), "error")
		return nil, err
	}

	pointerPaths := make([]string, len(paths))
	for i, p := range paths {
		pointerPaths[i] = pointer.Path(p)
	}

	commit, err := c.commitMetadata(ctx, cache, pointerPaths, message)
	if err != nil {
		recordTransfer(ctx, "update", stagedBytes, time.Since(start), "error")
		return nil, &MetadataUpdateFailedError{Repo: c.repo, Paths: paths, Err: err}
	}

	res.Updated = paths
	res.CommitSHA = commit.SHA
	res.CommittedAt = commit.CommittedAt
	res.Duration = time.Since(start)
	c.logger.Debug("update complete", "repo", c.repo,
		"files", len(paths), "commit", commit.SHA, "duration", res.Duration)
	recordTransfer(ctx, "update", stagedBytes, res.Duration, "ok")
	c.record(ctx, journal.Entry{
		ID:        res.OpID,
		Kind:      journal.KindUpdate,
		Repo:      c.repo,
		Paths:     paths,
		Bytes:     stagedBytes,
		CommitSHA: commit.SHA,
		Duration:  res.Duration,
		StartedAt: start.UTC(),
	})
	return res, nil
}

// stage copies one upload into the working copy (unless its overwrite
// policy declines) and dvc-adds it, producing or refreshing the
// pointer artifact. Returns the number of bytes copied.
func (c *Client) stage(ctx context.Context, cache *repoCache, file Upload) (int64, error) {
	dst := cache.workPath(file.Path())
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("creating parent directory for %s: %w", file.Path(), err)
	}

	abs, err := filepath.Abs(dst)
	if err != nil {
		return 0, fmt.Errorf("resolving destination for %s: %w", file.Path(), err)
	}

	var copied int64
	if file.ShouldCopy(abs) {
		src, err := file.Open()
		if err != nil {
			return 0, fmt.Errorf("opening source for %s: %w", file.Path(), err)
		}
		copied, err = writeFile(dst, src)
		cerr := src.Close()
		if err != nil {
			return 0, fmt.Errorf("staging %s: %w", file.Path(), err)
		}
		if cerr != nil {
			return 0, fmt.Errorf("closing source for %s: %w", file.Path(), cerr)
		}
	}

	if err := cache.dvc.Add(ctx, file.Path()); err != nil {
		return 0, err
	}
	return copied, nil
}

// commitMetadata stages the pointer artifacts in the metadata
// repository, creates one commit, and pushes it.
func (c *Client) commitMetadata(ctx context.Context, cache *repoCache, pointerPaths []string, message string) (gitrepo.Commit, error) {
	c.logger.Info("committing metadata", "repo", c.repo, "files", len(pointerPaths))
	if err := cache.repo.Add(ctx, pointerPaths...); err != nil {
		return gitrepo.Commit{}, err
	}
	commit, err := cache.repo.Commit(ctx, message)
	if err != nil {
		return gitrepo.Commit{}, err
	}
	if err := cache.repo.Push(ctx); err != nil {
		return gitrepo.Commit{}, err
	}
	return commit, nil
}

func writeFile(dst string, src io.Reader) (int64, error) {
	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, src)
	if err != nil {
		_ = out.Close()
		return n, err
	}
	return n, out.Close()
}
