// Package gitrepo provides typed access to the git CLI for the
// metadata repository that tracks pointer artifacts. All commands
// target a specific working copy via the -C flag, which is injected
// by every Repository method.
package gitrepo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DefaultBinary is the git executable used when none is configured.
const DefaultBinary = "git"

// ErrNoHistory is returned when a log query matches no commits.
var ErrNoHistory = errors.New("gitrepo: no matching commits")

// Commit identifies a single commit in the metadata repository.
type Commit struct {
	SHA         string
	CommittedAt time.Time
}

// Repository represents a cloned working copy at a specific directory.
// There is no default directory — callers always say which repository
// they mean.
type Repository struct {
	dir string
	bin string
}

// Option configures a Repository.
type Option func(*Repository)

// WithBinary sets the git executable name or path.
func WithBinary(bin string) Option {
	return func(r *Repository) {
		r.bin = bin
	}
}

// Clone clones the repository at url into dir and returns a Repository
// bound to the fresh working copy. The parent of dir must exist.
func Clone(ctx context.Context, url, dir string, opts ...Option) (*Repository, error) {
	r := &Repository{dir: dir, bin: DefaultBinary}
	for _, opt := range opts {
		opt(r)
	}

	var stderr bytes.Buffer
	command := exec.CommandContext(ctx, r.bin, "clone", url, dir)
	command.Stderr = &stderr
	if err := command.Run(); err != nil {
		return nil, fmt.Errorf("git clone %s: %w (stderr: %s)",
			url, err, strings.TrimSpace(stderr.String()))
	}
	return r, nil
}

// Open returns a Repository for an existing working copy without
// cloning. Used by tests and tooling that already have a checkout.
func Open(dir string, opts ...Option) *Repository {
	r := &Repository{dir: dir, bin: DefaultBinary}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dir returns the working copy directory.
func (r *Repository) Dir() string {
	return r.dir
}

// run executes a git command targeting this repository and returns
// stdout. Stderr is captured separately and included in error messages
// on failure.
func (r *Repository) run(ctx context.Context, args ...string) (string, error) {
	fullArgs := append([]string{"-C", r.dir}, args...)
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, r.bin, fullArgs...)
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return "", fmt.Errorf("git %s in %s: %w (stderr: %s)",
			strings.Join(args, " "), r.dir, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Add stages the given paths in the index.
func (r *Repository) Add(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"add", "--"}, paths...)
	_, err := r.run(ctx, args...)
	return err
}

// Commit creates a commit from the current index with the given
// message and returns its SHA and commit time.
func (r *Repository) Commit(ctx context.Context, message string) (Commit, error) {
	if _, err := r.run(ctx, "commit", "-m", message); err != nil {
		return Commit{}, err
	}
	out, err := r.run(ctx, "log", "-1", logFormat)
	if err != nil {
		return Commit{}, err
	}
	commits, err := parseLog(out)
	if err != nil {
		return Commit{}, err
	}
	if len(commits) == 0 {
		return Commit{}, ErrNoHistory
	}
	return commits[0], nil
}

// Push pushes the current branch to its remote.
func (r *Repository) Push(ctx context.Context) error {
	_, err := r.run(ctx, "push")
	return err
}

// Log returns up to maxCount commits touching the given paths,
// most recent first. An empty result is not an error; callers decide
// whether absence of history is fatal.
func (r *Repository) Log(ctx context.Context, maxCount int, paths []string) ([]Commit, error) {
	args := []string{"log", logFormat, "-n", strconv.Itoa(maxCount)}
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}
	out, err := r.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return parseLog(out)
}

// logFormat prints one commit per line as "<sha>\t<unix-seconds>".
const logFormat = "--format=%H\t%ct"

// parseLog parses `git log --format=%H\t%ct` output.
func parseLog(out string) ([]Commit, error) {
	var commits []Commit
	for line := range strings.Lines(out) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sha, ts, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("malformed log line: %q", line)
		}
		unix, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed commit time in %q: %w", line, err)
		}
		commits = append(commits, Commit{
			SHA:         sha,
			CommittedAt: time.Unix(unix, 0).UTC(),
		})
	}
	return commits, nil
}
