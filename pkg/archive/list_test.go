package archive

import (
	"bytes"
	"strings"
	"testing"

	"github.com/beam-cloud/savn/pkg/common"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/require"
)

func TestListSingleEntry(t *testing.T) {
	a := &common.Archive{Entries: []*common.Entry{
		{Path: "x", Kind: common.RegularFile, Contents: []byte("hi")},
	}}

	var out bytes.Buffer
	require.NoError(t, List(&out, a, ListOptions{}))
	require.Equal(t, "f 2 x\n", out.String())
}

func TestListAlignsLengths(t *testing.T) {
	a := &common.Archive{Entries: []*common.Entry{
		{Path: "small", Kind: common.RegularFile, Contents: []byte("a")},
		{Path: "big", Kind: common.ExecutableFile, Contents: bytes.Repeat([]byte("a"), 1234)},
		{Path: "link", Kind: common.SoftSymlink, Contents: []byte("big")},
		{Path: "nothing", Kind: common.RegularFile, Contents: []byte{}},
	}}

	var out bytes.Buffer
	require.NoError(t, List(&out, a, ListOptions{}))

	expected := strings.Join([]string{
		"f    1 small",
		"x 1234 big",
		"l    3 link",
		"f    0 nothing",
	}, "\n") + "\n"
	require.Equal(t, expected, out.String())
}

func TestListEmptyArchive(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, List(&out, common.NewArchive(), ListOptions{}))
	require.Empty(t, out.String())
}

func TestListWithDigest(t *testing.T) {
	a := &common.Archive{Entries: []*common.Entry{
		{Path: "x", Kind: common.RegularFile, Contents: []byte("hi")},
	}}

	var out bytes.Buffer
	require.NoError(t, List(&out, a, ListOptions{Digest: true}))
	require.Equal(t, "f 2 "+digest.FromString("hi").String()+" x\n", out.String())
}

func TestLengthWidth(t *testing.T) {
	testCases := []struct {
		n    int
		want int
	}{
		{0, 1},
		{1, 1},
		{9, 1},
		{10, 2},
		{99, 2},
		{100, 3},
		{1 << 20, 7},
	}

	for _, tc := range testCases {
		require.Equal(t, tc.want, lengthWidth(tc.n), "width of %d", tc.n)
	}
}
