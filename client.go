package dvcfs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wolfeidau/dvcfs/gitrepo"
	"github.com/wolfeidau/dvcfs/journal"
	"github.com/wolfeidau/dvcfs/pointer"
	"github.com/wolfeidau/dvcfs/telemetry"
)

// maxHistoryDepth caps how far back ModifiedDate searches for commits
// touching the queried pointer artifacts.
const maxHistoryDepth = 100

// Metric recording, swappable in tests.
var (
	recordTransfer = telemetry.RecordTransfer
	recordClone    = telemetry.RecordClone
)

// Client is the high-level interface for all repository operations.
// It lazily materializes one working copy per session and reuses it
// across calls until Cleanup. Not goroutine-safe.
type Client struct {
	repo       string
	logger     *slog.Logger
	tempDir    string
	gitBin     string
	dvcBin     string
	constraint string

	cloner   Cloner
	newStore func(dir string) PointerStore
	opener   Opener

	journalPath string
	journal     *journal.Journal

	cache *repoCache
}

// repoCache is the materialized working copy: a temporary directory
// owning the filesystem lifetime, the cloned metadata repository at
// its "repo" subpath, and a pointer store bound to that path.
type repoCache struct {
	tempDir string
	workdir string
	repo    MetadataRepo
	dvc     PointerStore
}

// workPath resolves a logical path inside the working copy.
func (rc *repoCache) workPath(logical string) string {
	return filepath.Join(rc.workdir, filepath.FromSlash(logical))
}

// pointerExists reports whether the pointer artifact for a logical
// path is present in the working copy.
func (rc *repoCache) pointerExists(logical string) bool {
	info, err := os.Stat(rc.workPath(pointer.Path(logical)))
	return err == nil && !info.IsDir()
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTempDir sets the parent directory for the temporary working
// copy. Defaults to the system temp directory.
func WithTempDir(dir string) Option {
	return func(c *Client) {
		c.tempDir = dir
	}
}

// WithGitBinary sets the git executable name or path.
func WithGitBinary(bin string) Option {
	return func(c *Client) {
		c.gitBin = bin
	}
}

// WithDVCBinary sets the dvc executable name or path.
func WithDVCBinary(bin string) Option {
	return func(c *Client) {
		c.dvcBin = bin
	}
}

// WithVersionConstraint sets the dvc version range accepted by the
// startup capability probe.
func WithVersionConstraint(constraint string) Option {
	return func(c *Client) {
		c.constraint = constraint
	}
}

// WithCloner replaces the cloner used to materialize the working copy.
func WithCloner(cloner Cloner) Option {
	return func(c *Client) {
		c.cloner = cloner
	}
}

// WithPointerStore replaces the factory binding a pointer store to the
// working copy directory.
func WithPointerStore(factory func(dir string) PointerStore) Option {
	return func(c *Client) {
		c.newStore = factory
	}
}

// WithOpener replaces the read strategy, bypassing the capability
// probe.
func WithOpener(opener Opener) Option {
	return func(c *Client) {
		c.opener = opener
	}
}

// WithJournal enables the transfer journal at the given bbolt file
// path. Each download and update operation appends one record.
func WithJournal(path string) Option {
	return func(c *Client) {
		c.journalPath = path
	}
}

// NewClient creates a client for the repository at the given clone
// URL. The dvc CLI is probed once to pick the read strategy: direct
// repo-URL reads when available, clone-backed reads otherwise.
func NewClient(ctx context.Context, repoURL string, opts ...Option) (*Client, error) {
	c := &Client{
		repo:       repoURL,
		logger:     slog.Default(),
		gitBin:     gitrepo.DefaultBinary,
		dvcBin:     pointer.DefaultBinary,
		constraint: pointer.DefaultConstraint,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.cloner == nil {
		c.cloner = &gitCloner{bin: c.gitBin}
	}
	if c.newStore == nil {
		bin := c.dvcBin
		c.newStore = func(dir string) PointerStore {
			return pointer.NewCLI(dir, pointer.WithBinary(bin))
		}
	}
	if c.opener == nil {
		if err := pointer.Probe(ctx, c.dvcBin, c.constraint); err == nil {
			c.opener = newDirectOpener(c)
		} else {
			c.logger.Debug("direct reads unavailable, falling back to clone-backed reads",
				"repo", repoURL, "error", err)
			c.opener = &cloneOpener{client: c}
		}
	}

	if c.journalPath != "" {
		j, err := journal.Open(c.journalPath, journal.WithLogger(c.logger))
		if err != nil {
			return nil, fmt.Errorf("opening journal: %w", err)
		}
		c.journal = j
	}
	return c, nil
}

// Repo returns the repository clone URL this client is bound to.
func (c *Client) Repo() string {
	return c.repo
}

// materialize returns the cached working copy, cloning the repository
// on first use. Reuse is idempotent; the cache lives until Cleanup.
func (c *Client) materialize(ctx context.Context) (*repoCache, error) {
	if c.cache != nil {
		return c.cache, nil
	}

	start := time.Now()
	tempDir, err := os.MkdirTemp(c.tempDir, "dvcfs-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}

	workdir := filepath.Join(tempDir, "repo")
	repo, err := c.cloner.Clone(ctx, c.repo, workdir)
	if err != nil {
		_ = os.RemoveAll(tempDir)
		recordClone(ctx, time.Since(start), "error")
		return nil, &RepositoryUnreachableError{Repo: c.repo, Err: err}
	}
	recordClone(ctx, time.Since(start), "ok")

	c.cache = &repoCache{
		tempDir: tempDir,
		workdir: workdir,
		repo:    repo,
		dvc:     c.newStore(workdir),
	}
	c.logger.Debug("materialized working copy", "repo", c.repo, "workdir", workdir)
	return c.cache, nil
}

// Cleanup removes the materialized working copy and closes the
// journal. The client must not be used after Cleanup except to create
// a fresh cache via a subsequent operation. Callers are responsible
// for running Cleanup on all paths, including after failed updates.
func (c *Client) Cleanup() error {
	c.logger.Info("perform cleanup")
	if c.cache != nil {
		if err := os.RemoveAll(c.cache.tempDir); err != nil {
			return fmt.Errorf("removing working copy: %w", err)
		}
		c.cache = nil
	}
	if c.journal != nil {
		j := c.journal
		c.journal = nil
		if err := j.Close(); err != nil {
			return fmt.Errorf("closing journal: %w", err)
		}
	}
	return nil
}

// ModifiedDate returns the commit time of the most recent commit
// touching the pointer artifacts of the given logical paths, searching
// at most the last 100 matching commits. Fails with
// gitrepo.ErrNoHistory when none of the paths has history.
func (c *Client) ModifiedDate(ctx context.Context, paths []string) (time.Time, error) {
	cache, err := c.materialize(ctx)
	if err != nil {
		return time.Time{}, err
	}

	pointerPaths := make([]string, len(paths))
	for i, p := range paths {
		pointerPaths[i] = pointer.Path(p)
	}

	commits, err := cache.repo.Log(ctx, maxHistoryDepth, pointerPaths)
	if err != nil {
		return time.Time{}, err
	}
	if len(commits) == 0 {
		return time.Time{}, fmt.Errorf("modified date of %s: %w",
			strings.Join(paths, ", "), gitrepo.ErrNoHistory)
	}
	return commits[0].CommittedAt, nil
}

// record appends a journal entry, best effort.
func (c *Client) record(ctx context.Context, e journal.Entry) {
	if c.journal == nil {
		return
	}
	if err := c.journal.Record(ctx, e); err != nil {
		c.logger.Warn("journal record failed", "id", e.ID, "error", err)
	}
}

var (
	_ MetadataRepo = (*gitrepo.Repository)(nil)
	_ PointerStore = (*pointer.CLI)(nil)
	_ Cloner       = (*gitCloner)(nil)
)

// gitCloner is the production Cloner backed by the git CLI.
type gitCloner struct {
	bin string
}

func (g *gitCloner) Clone(ctx context.Context, url, dir string) (MetadataRepo, error) {
	repo, err := gitrepo.Clone(ctx, url, dir, gitrepo.WithBinary(g.bin))
	if err != nil {
		return nil, err
	}
	return repo, nil
}
