package pointer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPath(t *testing.T) {
	require.Equal(t, "data/a.dvc", Path("data/a"))
}

func TestIsPointer(t *testing.T) {
	require.True(t, IsPointer("report.dvc"))
	require.False(t, IsPointer("report"))
	require.False(t, IsPointer("report.csv"))
}

func TestTrim(t *testing.T) {
	require.Equal(t, "data/a", Trim("data/a.dvc"))
	require.Equal(t, "plain", Trim("plain"))
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		out  string
		want string
	}{
		{"3.30.1\n", "3.30.1"},
		{"dvc version 2.58.2 (pip)\n", "2.58.2"},
		{"2.0.0", "2.0.0"},
	}
	for _, tt := range tests {
		v, err := parseVersion(tt.out)
		require.NoError(t, err, tt.out)
		require.Equal(t, tt.want, v.String())
	}
}

func TestParseVersionInvalid(t *testing.T) {
	_, err := parseVersion("command not found")
	require.Error(t, err)
}

func TestNewCLIDefaults(t *testing.T) {
	c := NewCLI("/tmp/work")
	require.Equal(t, "/tmp/work", c.Dir())
	require.Equal(t, DefaultBinary, c.bin)

	c = NewCLI("/tmp/work", WithBinary("/opt/dvc/bin/dvc"))
	require.Equal(t, "/opt/dvc/bin/dvc", c.bin)
}
