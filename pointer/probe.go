package pointer

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// DefaultConstraint is the dvc version range the library is tested
// against. Direct repo-URL reads (dvc get) behave consistently from
// 2.x onward.
const DefaultConstraint = ">= 2.0.0"

// Probe checks once, at client construction time, whether the dvc CLI
// is present and its version satisfies the given constraint. A nil
// error means direct repo-URL reads can be used; any error means the
// caller should fall back to clone-backed reads.
func Probe(ctx context.Context, bin, constraint string) error {
	if bin == "" {
		bin = DefaultBinary
	}
	if constraint == "" {
		constraint = DefaultConstraint
	}

	if _, err := exec.LookPath(bin); err != nil {
		return fmt.Errorf("dvc binary %q not found: %w", bin, err)
	}

	version, err := Version(ctx, bin)
	if err != nil {
		return err
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("invalid dvc version constraint %q: %w", constraint, err)
	}
	if !c.Check(version) {
		return fmt.Errorf("dvc version %s does not satisfy %q", version, constraint)
	}
	return nil
}

// Version reports the version of the dvc binary.
func Version(ctx context.Context, bin string) (*semver.Version, error) {
	if bin == "" {
		bin = DefaultBinary
	}
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, bin, "--version")
	command.Stdout = &stdout
	command.Stderr = &stderr
	if err := command.Run(); err != nil {
		return nil, fmt.Errorf("dvc --version: %w (stderr: %s)",
			err, strings.TrimSpace(stderr.String()))
	}
	return parseVersion(stdout.String())
}

// parseVersion extracts a semantic version from `dvc --version`
// output. Recent releases print the bare version; older ones prefix it
// with "dvc version".
func parseVersion(out string) (*semver.Version, error) {
	out = strings.TrimSpace(out)
	fields := strings.Fields(out)
	for _, field := range fields {
		if v, err := semver.NewVersion(field); err == nil {
			return v, nil
		}
	}
	return nil, fmt.Errorf("no version in dvc output %q", out)
}

// Get fetches the payload for a logical path directly from a repository
// URL into the out file, without a prior clone.
func Get(ctx context.Context, bin, repoURL, path, out string) error {
	if bin == "" {
		bin = DefaultBinary
	}
	var stderr bytes.Buffer
	command := exec.CommandContext(ctx, bin, "get", repoURL, path, "-o", out)
	command.Stderr = &stderr
	if err := command.Run(); err != nil {
		return fmt.Errorf("dvc get %s %s: %w (stderr: %s)",
			repoURL, path, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// ShowURL resolves the data-store URL for a logical path in a remote
// repository. It fails when the path has no remote representation,
// which makes it the existence probe for direct reads.
func ShowURL(ctx context.Context, bin, repoURL, path string) (string, error) {
	if bin == "" {
		bin = DefaultBinary
	}
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, bin, "get", "--show-url", repoURL, path)
	command.Stdout = &stdout
	command.Stderr = &stderr
	if err := command.Run(); err != nil {
		return "", fmt.Errorf("dvc get --show-url %s %s: %w (stderr: %s)",
			repoURL, path, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
