package archive

import (
	"testing"

	"github.com/beam-cloud/savn/pkg/common"
	"github.com/stretchr/testify/require"
)

func paths(a *common.Archive) []string {
	var out []string
	for _, entry := range a.Entries {
		out = append(out, entry.Path)
	}
	return out
}

func TestFindByPathReturnsFirstMatch(t *testing.T) {
	a := testArchive()

	entry := FindByPath(a, "x")
	require.NotNil(t, entry)
	require.Equal(t, []byte("hi"), entry.Contents)

	require.Nil(t, FindByPath(a, "./x"))
	require.Nil(t, FindByPath(a, "missing"))
}

func TestRemoveByPaths(t *testing.T) {
	a := testArchive()

	removed := RemoveByPaths(a, "link", "x", "not-in-archive")
	require.Equal(t, 3, removed)
	require.Equal(t, []string{"bin/run.sh", "empty", "dir/ünïcödé.txt"}, paths(a))

	require.Nil(t, FindByPath(a, "x"))
	require.Nil(t, FindByPath(a, "link"))
}

func TestRemoveByPathsIgnoresUnknownPaths(t *testing.T) {
	a := testArchive()
	before := paths(a)

	require.Zero(t, RemoveByPaths(a, "nope", "also/nope"))
	require.Zero(t, RemoveByPaths(a))
	require.Equal(t, before, paths(a))
}

func TestRemoveEverything(t *testing.T) {
	a := testArchive()

	RemoveByPaths(a, paths(a)...)
	require.Zero(t, a.Len())

	encoded, err := EncodeBytes(a)
	require.NoError(t, err)
	require.Equal(t, []byte{0x00}, encoded)
}
