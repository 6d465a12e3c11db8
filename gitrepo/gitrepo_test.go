package gitrepo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseLog(t *testing.T) {
	out := "a1b2c3\t1700000000\nd4e5f6\t1690000000\n"

	commits, err := parseLog(out)
	require.NoError(t, err)
	require.Len(t, commits, 2)

	require.Equal(t, "a1b2c3", commits[0].SHA)
	require.Equal(t, time.Unix(1700000000, 0).UTC(), commits[0].CommittedAt)
	require.Equal(t, "d4e5f6", commits[1].SHA)
}

func TestParseLogEmpty(t *testing.T) {
	commits, err := parseLog("")
	require.NoError(t, err)
	require.Empty(t, commits)
}

func TestParseLogMalformed(t *testing.T) {
	_, err := parseLog("not-a-log-line\n")
	require.Error(t, err)

	_, err = parseLog("abc\tnot-a-timestamp\n")
	require.Error(t, err)
}

func TestOpenDir(t *testing.T) {
	dir := t.TempDir()
	r := Open(dir, WithBinary("git"))
	require.Equal(t, dir, r.Dir())
}
