package savn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/beam-cloud/savn/pkg/archive"
	"github.com/beam-cloud/savn/pkg/common"
	"github.com/beam-cloud/savn/pkg/metrics"
	"github.com/beam-cloud/savn/pkg/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultLockTimeout = 30 * time.Second

// SetLogLevel configures the logging verbosity for the savn library.
// Valid levels: "debug", "info", "warn", "error", "disabled"
func SetLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "disabled", "none", "off":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	default:
		return fmt.Errorf("invalid log level %q: must be one of: debug, info, warn, error, disabled", level)
	}
	return nil
}

// StorageOptions configures where archives that are not local files live.
type StorageOptions struct {
	S3          common.S3StorageInfo
	Credentials storage.ArchiveStorageCredentials
}

type ListOptions struct {
	ArchivePath string
	Output      io.Writer
	Digest      bool
	Storage     StorageOptions
}

type AddOptions struct {
	ArchivePath             string
	Paths                   []string
	SkipExecutableDetection bool
	LockTimeout             time.Duration
	Storage                 StorageOptions
}

type RemoveOptions struct {
	ArchivePath string
	Paths       []string
	LockTimeout time.Duration
	Storage     StorageOptions
}

type ExtractOptions struct {
	ArchivePath string
	OutputPath  string
	Storage     StorageOptions
}

func newStorage(ctx context.Context, archivePath string, opts StorageOptions) (storage.ArchiveStorageInterface, error) {
	return storage.NewArchiveStorage(ctx, storage.ArchiveStorageOpts{
		Location:    archivePath,
		S3:          opts.S3,
		Credentials: opts.Credentials,
	})
}

// lockStorage takes the storage's exclusive lock if it has one. The returned
// function releases it and is always safe to call.
func lockStorage(ctx context.Context, s storage.ArchiveStorageInterface, timeout time.Duration) (func(), error) {
	locker, ok := s.(storage.Locker)
	if !ok {
		return func() {}, nil
	}

	if timeout <= 0 {
		timeout = defaultLockTimeout
	}
	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	unlock, err := locker.Lock(lockCtx)
	if err != nil {
		return nil, err
	}

	return func() {
		if err := unlock(); err != nil {
			log.Warn().Err(err).Msgf("unable to release lock on %s", s.Location())
		}
	}, nil
}

// LoadOrEmpty loads the archive from s, or returns an empty archive if none
// has been stored yet. Any other failure is returned as is.
func LoadOrEmpty(ctx context.Context, s storage.ArchiveStorageInterface) (*common.Archive, error) {
	a, err := s.Load(ctx)
	if errors.Is(err, common.ErrNotFound) {
		log.Debug().Msgf("archive %s does not exist yet, starting empty", s.Location())
		return common.NewArchive(), nil
	}
	return a, err
}

// List Archive
func ListArchive(ctx context.Context, options ListOptions) error {
	start := time.Now()
	defer func() { metrics.RecordOperation("list", time.Since(start)) }()

	s, err := newStorage(ctx, options.ArchivePath, options.Storage)
	if err != nil {
		return err
	}

	a, err := LoadOrEmpty(ctx, s)
	if err != nil {
		return err
	}

	out := options.Output
	if out == nil {
		out = os.Stdout
	}

	return archive.List(out, a, archive.ListOptions{Digest: options.Digest})
}

// Add files to an archive. The archive is only written back if every path was
// added successfully.
func AddToArchive(ctx context.Context, options AddOptions) error {
	start := time.Now()
	defer func() { metrics.RecordOperation("add", time.Since(start)) }()

	log.Info().Msgf("adding %d path(s) to %s", len(options.Paths), options.ArchivePath)

	s, err := newStorage(ctx, options.ArchivePath, options.Storage)
	if err != nil {
		return err
	}

	unlock, err := lockStorage(ctx, s, options.LockTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	a, err := LoadOrEmpty(ctx, s)
	if err != nil {
		return err
	}

	before := a.Len()
	for _, path := range options.Paths {
		err := archive.AddFromFilesystem(a, path, archive.WithExecutableDetection(!options.SkipExecutableDetection))
		if err != nil {
			return fmt.Errorf("unable to add %s: %w", path, err)
		}
	}

	var addedBytes int64
	for _, entry := range a.Entries[before:] {
		addedBytes += int64(entry.Size())
		log.Debug().Str("path", entry.Path).Stringer("kind", entry.Kind).Int("bytes", entry.Size()).Msg("added entry")
	}
	metrics.RecordAdd(a.Len()-before, addedBytes)

	if duplicates := common.NewPathIndex(a).Duplicates(); len(duplicates) > 0 {
		log.Warn().Strs("paths", duplicates).Msg("archive contains duplicate paths, lookups return the first entry")
	}

	if err := s.Store(ctx, a); err != nil {
		return err
	}

	log.Info().Msgf("added %d entries to %s", a.Len()-before, options.ArchivePath)
	return nil
}

// Remove entries from an archive. Paths that are not in the archive are ignored.
func RemoveFromArchive(ctx context.Context, options RemoveOptions) error {
	start := time.Now()
	defer func() { metrics.RecordOperation("remove", time.Since(start)) }()

	s, err := newStorage(ctx, options.ArchivePath, options.Storage)
	if err != nil {
		return err
	}

	unlock, err := lockStorage(ctx, s, options.LockTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	a, err := LoadOrEmpty(ctx, s)
	if err != nil {
		return err
	}

	index := common.NewPathIndex(a)
	for _, path := range options.Paths {
		if _, found := index.Lookup(path); !found {
			log.Debug().Str("path", path).Msg("path not in archive, ignoring")
		}
	}

	removed := archive.RemoveByPaths(a, options.Paths...)
	metrics.RecordRemove(removed)

	if err := s.Store(ctx, a); err != nil {
		return err
	}

	log.Info().Msgf("removed %d entries from %s", removed, options.ArchivePath)
	return nil
}

// Extract Archive
func ExtractArchive(ctx context.Context, options ExtractOptions) error {
	start := time.Now()
	defer func() { metrics.RecordOperation("extract", time.Since(start)) }()

	log.Info().Msgf("extracting archive: %s", options.ArchivePath)

	s, err := newStorage(ctx, options.ArchivePath, options.Storage)
	if err != nil {
		return err
	}

	a, err := LoadOrEmpty(ctx, s)
	if err != nil {
		return err
	}

	err = archive.ExtractToDirectory(a, options.OutputPath, func(entry *common.Entry, dest string) {
		metrics.RecordExtract(int64(entry.Size()))
		log.Debug().Str("path", entry.Path).Str("dest", dest).Msg("extracted entry")
	})
	if err != nil {
		return err
	}

	log.Info().Msg("archive extracted successfully")
	return nil
}
