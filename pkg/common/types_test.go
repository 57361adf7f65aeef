package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEntryKind(t *testing.T) {
	testCases := []struct {
		kind   EntryKind
		valid  bool
		symbol string
	}{
		{RegularFile, true, "f"},
		{ExecutableFile, true, "x"},
		{SoftSymlink, true, "l"},
		{EntryKind(0), false, "?"},
		{EntryKind(4), false, "?"},
	}

	for _, tc := range testCases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			require.Equal(t, tc.valid, tc.kind.Valid())
			require.Equal(t, tc.symbol, tc.kind.Symbol())

			entry := &Entry{Path: "p", Kind: tc.kind}
			require.Equal(t, tc.kind == SoftSymlink, entry.IsSymlink())
			require.Equal(t, tc.kind == ExecutableFile, entry.IsExecutable())
		})
	}
}

func TestArchiveFindReturnsFirstMatch(t *testing.T) {
	a := NewArchive()
	a.Append(&Entry{Path: "x", Kind: RegularFile, Contents: []byte("first")})
	a.Append(&Entry{Path: "y", Kind: RegularFile})
	a.Append(&Entry{Path: "x", Kind: RegularFile, Contents: []byte("second")})

	require.Equal(t, 3, a.Len())
	require.Equal(t, []byte("first"), a.Find("x").Contents)
	require.Nil(t, a.Find("./x"))
}

func TestArchiveRetain(t *testing.T) {
	a := NewArchive()
	for _, p := range []string{"a", "b", "c", "d"} {
		a.Append(&Entry{Path: p, Kind: RegularFile})
	}

	dropped := a.Retain(func(e *Entry) bool { return e.Path != "b" && e.Path != "d" })
	require.Equal(t, 2, dropped)
	require.Equal(t, 2, a.Len())
	require.Equal(t, "a", a.Entries[0].Path)
	require.Equal(t, "c", a.Entries[1].Path)
}

func TestParseS3Location(t *testing.T) {
	info, err := ParseS3Location("s3://bucket/some/key.savn")
	require.NoError(t, err)
	require.Equal(t, "bucket", info.Bucket)
	require.Equal(t, "some/key.savn", info.Key)
	require.Equal(t, "s3://bucket/some/key.savn", info.String())

	for _, bad := range []string{"bucket/key", "s3://", "s3://bucket", "s3://bucket/", "s3:///key"} {
		_, err := ParseS3Location(bad)
		require.Error(t, err, bad)
	}

	require.True(t, IsS3Location("s3://b/k"))
	require.False(t, IsS3Location("./archive.savn"))
}
