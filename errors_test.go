package dvcfs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRepositoryUnreachableError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &RepositoryUnreachableError{Repo: "https://example.com/repo.git", Err: cause}

	require.Equal(t, "repository https://example.com/repo.git not accessible: connection refused", err.Error())
	require.ErrorIs(t, err, cause)

	var target *RepositoryUnreachableError
	require.ErrorAs(t, fmt.Errorf("wrapped: %w", err), &target)
	require.Equal(t, "https://example.com/repo.git", target.Repo)
}

func TestFileNotFoundError(t *testing.T) {
	err := &FileNotFoundError{Repo: "https://example.com/repo.git", Path: "data/a"}
	require.Equal(t, "file data/a is missing in repository https://example.com/repo.git", err.Error())
}

func TestMetadataUpdateFailedError(t *testing.T) {
	cause := errors.New("push rejected")
	err := &MetadataUpdateFailedError{
		Repo:  "https://example.com/repo.git",
		Paths: []string{"data/a", "data/b"},
		Err:   cause,
	}

	require.Equal(t,
		"metadata update for https://example.com/repo.git failed (paths: data/a, data/b): push rejected",
		err.Error())
	require.ErrorIs(t, err, cause)
}
