package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/beam-cloud/savn/pkg/archive"
	"github.com/beam-cloud/savn/pkg/common"
	"github.com/beam-cloud/savn/pkg/metrics"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	defaultArchiveMode os.FileMode = 0644
	lockRetryDelay                 = 50 * time.Millisecond
)

type LocalArchiveStorage struct {
	archivePath string
}

type LocalArchiveStorageOpts struct {
	ArchivePath string
}

func NewLocalArchiveStorage(opts LocalArchiveStorageOpts) *LocalArchiveStorage {
	return &LocalArchiveStorage{
		archivePath: opts.ArchivePath,
	}
}

func (s *LocalArchiveStorage) Location() string {
	return s.archivePath
}

func (s *LocalArchiveStorage) Load(ctx context.Context) (*common.Archive, error) {
	f, err := os.Open(s.archivePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", common.ErrNotFound, err)
		}
		return nil, err
	}
	defer f.Close()

	a, err := archive.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("unable to decode archive <%s>: %w", s.archivePath, err)
	}

	if fi, err := f.Stat(); err == nil {
		metrics.RecordDecode(a.Len(), fi.Size())
	}

	return a, nil
}

// Store replaces the archive atomically: it is written to a temporary file in
// the same directory which is then renamed over the original. The temporary
// file is removed if anything fails.
func (s *LocalArchiveStorage) Store(ctx context.Context, a *common.Archive) (err error) {
	mode := defaultArchiveMode
	if fi, statErr := os.Stat(s.archivePath); statErr == nil {
		mode = fi.Mode().Perm()
	}

	tmpPath := fmt.Sprintf("%s.%s.tmp", s.archivePath, uuid.New().String()[:6])
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return fmt.Errorf("failed to create temporary archive <%s>: %w", tmpPath, err)
	}

	closed := false
	defer func() {
		if err == nil {
			return
		}
		if !closed {
			f.Close()
		}
		if removeErr := os.Remove(tmpPath); removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
			log.Warn().Err(removeErr).Msgf("unable to remove temporary archive <%s>", tmpPath)
		}
	}()

	if err = archive.Encode(f, a); err != nil {
		return fmt.Errorf("failed to write archive <%s>: %w", s.archivePath, err)
	}

	if err = f.Sync(); err != nil {
		return err
	}

	size := int64(0)
	if fi, statErr := f.Stat(); statErr == nil {
		size = fi.Size()
	}

	closed = true
	if err = f.Close(); err != nil {
		return err
	}

	if err = os.Rename(tmpPath, s.archivePath); err != nil {
		return fmt.Errorf("failed to move archive into place <%s>: %w", s.archivePath, err)
	}

	metrics.RecordEncode(a.Len(), size)
	log.Debug().Str("path", s.archivePath).Int64("bytes", size).Msg("archive stored")

	return nil
}

func (s *LocalArchiveStorage) lockPath() string {
	return s.archivePath + ".lock"
}

// Lock takes an exclusive advisory lock on <archive>.lock, waiting until ctx is
// done. The lock file itself is left in place.
func (s *LocalArchiveStorage) Lock(ctx context.Context) (func() error, error) {
	if dir := filepath.Dir(s.archivePath); dir != "" {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	fileLock := flock.New(s.lockPath())

	locked, err := fileLock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %s", common.ErrArchiveLocked, s.archivePath)
		}
		return nil, fmt.Errorf("error while trying to acquire file lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", common.ErrArchiveLocked, s.archivePath)
	}

	log.Debug().Str("lock", s.lockPath()).Msg("archive lock acquired")

	return fileLock.Unlock, nil
}
