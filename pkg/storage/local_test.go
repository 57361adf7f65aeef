package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/beam-cloud/savn/pkg/common"
	"github.com/stretchr/testify/require"
)

func sampleArchive() *common.Archive {
	return &common.Archive{Entries: []*common.Entry{
		{Path: "x", Kind: common.RegularFile, Contents: []byte("hi")},
		{Path: "link", Kind: common.SoftSymlink, Contents: []byte("x")},
	}}
}

func TestLocalArchiveStorage_StoreAndLoad(t *testing.T) {
	ctx := context.Background()
	archivePath := filepath.Join(t.TempDir(), "test.savn")
	s := NewLocalArchiveStorage(LocalArchiveStorageOpts{ArchivePath: archivePath})

	require.NoError(t, s.Store(ctx, sampleArchive()))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, sampleArchive(), loaded)

	info, err := os.Stat(archivePath)
	require.NoError(t, err)
	require.Equal(t, defaultArchiveMode, info.Mode().Perm())
}

func TestLocalArchiveStorage_LoadMissing(t *testing.T) {
	s := NewLocalArchiveStorage(LocalArchiveStorageOpts{ArchivePath: filepath.Join(t.TempDir(), "missing.savn")})

	_, err := s.Load(context.Background())
	require.ErrorIs(t, err, common.ErrNotFound)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLocalArchiveStorage_LoadCorrupt(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "corrupt.savn")
	require.NoError(t, os.WriteFile(archivePath, []byte{'a', 0x00, 0x01, 0xff, 0x00, 0x00, 0x00}, 0644))

	s := NewLocalArchiveStorage(LocalArchiveStorageOpts{ArchivePath: archivePath})
	_, err := s.Load(context.Background())
	require.ErrorIs(t, err, common.ErrTruncatedStream)
	require.NotErrorIs(t, err, common.ErrNotFound)
}

func TestLocalArchiveStorage_StoreLeavesNoTemporaryFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "test.savn")
	s := NewLocalArchiveStorage(LocalArchiveStorageOpts{ArchivePath: archivePath})

	require.NoError(t, s.Store(ctx, sampleArchive()))
	require.NoError(t, s.Store(ctx, common.NewArchive()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "test.savn", entries[0].Name())

	contents, err := os.ReadFile(archivePath)
	require.NoError(t, err)
	require.Equal(t, []byte{0x00}, contents)
}

func TestLocalArchiveStorage_FailedStoreKeepsOriginal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "test.savn")
	s := NewLocalArchiveStorage(LocalArchiveStorageOpts{ArchivePath: archivePath})

	require.NoError(t, s.Store(ctx, sampleArchive()))
	original, err := os.ReadFile(archivePath)
	require.NoError(t, err)

	invalid := &common.Archive{Entries: []*common.Entry{
		{Path: "bad\x00path", Kind: common.RegularFile},
	}}
	err = s.Store(ctx, invalid)
	require.ErrorIs(t, err, common.ErrInvalidEntry)

	after, err := os.ReadFile(archivePath)
	require.NoError(t, err)
	require.Equal(t, original, after)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary file should have been cleaned up")
}

func TestLocalArchiveStorage_StorePreservesMode(t *testing.T) {
	ctx := context.Background()
	archivePath := filepath.Join(t.TempDir(), "test.savn")
	require.NoError(t, os.WriteFile(archivePath, []byte{0x00}, 0600))
	require.NoError(t, os.Chmod(archivePath, 0600))

	s := NewLocalArchiveStorage(LocalArchiveStorageOpts{ArchivePath: archivePath})
	require.NoError(t, s.Store(ctx, sampleArchive()))

	info, err := os.Stat(archivePath)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLocalArchiveStorage_Lock(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "test.savn")
	s := NewLocalArchiveStorage(LocalArchiveStorageOpts{ArchivePath: archivePath})

	unlock, err := s.Lock(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	other := NewLocalArchiveStorage(LocalArchiveStorageOpts{ArchivePath: archivePath})
	_, err = other.Lock(ctx)
	require.ErrorIs(t, err, common.ErrArchiveLocked)

	require.NoError(t, unlock())

	unlockOther, err := other.Lock(context.Background())
	require.NoError(t, err)
	require.NoError(t, unlockOther())
}

func TestNewArchiveStorage_Local(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "test.savn")

	s, err := NewArchiveStorage(context.Background(), ArchiveStorageOpts{Location: archivePath})
	require.NoError(t, err)
	require.IsType(t, &LocalArchiveStorage{}, s)
	require.Equal(t, archivePath, s.Location())

	_, ok := s.(Locker)
	require.True(t, ok)
}

func TestNewArchiveStorage_InvalidS3Location(t *testing.T) {
	_, err := NewArchiveStorage(context.Background(), ArchiveStorageOpts{Location: "s3://bucket-only"})
	require.Error(t, err)
}
