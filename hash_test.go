package dvcfs

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashBytes(t *testing.T) {
	a := HashBytes([]byte("hello"))
	b := HashBytes([]byte("hello"))
	c := HashBytes([]byte("world"))

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.False(t, a.IsZero())
	require.True(t, Hash{}.IsZero())
	require.Len(t, a.String(), HashSize*2)
}

func TestHashReader(t *testing.T) {
	h, n, err := HashReader(bytes.NewReader([]byte("hello")))
	require.NoError(t, err)
	require.Equal(t, int64(5), n)
	require.Equal(t, HashBytes([]byte("hello")), h)
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	h, err := HashFile(path)
	require.NoError(t, err)
	require.Equal(t, HashBytes([]byte("hello")), h)

	_, err = HashFile(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
