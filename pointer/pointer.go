// Package pointer wraps the dvc CLI, which moves binary payloads
// between a working copy and the remote data store. A logical path P
// is represented in the metadata repository by the pointer artifact
// "P.dvc"; this package owns that naming convention and the CLI
// invocations that produce, push, and pull payloads.
package pointer

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const (
	// DefaultBinary is the dvc executable used when none is configured.
	DefaultBinary = "dvc"

	// Extension is the pointer-artifact suffix. Presence of "P.dvc" in
	// the working copy is the sole signal that logical path P exists
	// remotely.
	Extension = ".dvc"
)

// Path returns the pointer-artifact path for a logical path.
func Path(logical string) string {
	return logical + Extension
}

// IsPointer reports whether name carries the pointer-artifact suffix.
func IsPointer(name string) bool {
	return strings.HasSuffix(name, Extension)
}

// Trim strips the pointer-artifact suffix, returning the logical path.
func Trim(name string) string {
	return strings.TrimSuffix(name, Extension)
}

// CLI runs dvc commands inside a single working copy.
type CLI struct {
	dir string
	bin string
}

// Option configures a CLI.
type Option func(*CLI)

// WithBinary sets the dvc executable name or path.
func WithBinary(bin string) Option {
	return func(c *CLI) {
		c.bin = bin
	}
}

// NewCLI returns a CLI bound to the given working copy directory.
func NewCLI(dir string, opts ...Option) *CLI {
	c := &CLI{dir: dir, bin: DefaultBinary}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dir returns the working copy directory.
func (c *CLI) Dir() string {
	return c.dir
}

// run executes a dvc command in the working copy and returns stdout.
// Stderr is captured and included in error messages on failure.
func (c *CLI) run(ctx context.Context, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, c.bin, args...)
	command.Dir = c.dir
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return "", fmt.Errorf("dvc %s in %s: %w (stderr: %s)",
			strings.Join(args, " "), c.dir, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Add stages a path for data versioning, producing or refreshing its
// pointer artifact in the working copy.
func (c *CLI) Add(ctx context.Context, path string) error {
	_, err := c.run(ctx, "add", path)
	return err
}

// Push uploads all staged binary payloads to the remote data store.
func (c *CLI) Push(ctx context.Context) error {
	_, err := c.run(ctx, "push")
	return err
}

// PullPath downloads the binary payload for one pointer artifact into
// the working copy.
func (c *CLI) PullPath(ctx context.Context, path string) error {
	_, err := c.run(ctx, "pull", path)
	return err
}
