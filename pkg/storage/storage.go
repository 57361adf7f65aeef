package storage

import (
	"context"

	"github.com/beam-cloud/savn/pkg/common"
)

// ArchiveStorageInterface persists a whole archive as a single blob.
// Load returns an error matching common.ErrNotFound when no archive exists yet.
type ArchiveStorageInterface interface {
	Load(ctx context.Context) (*common.Archive, error)
	Store(ctx context.Context, a *common.Archive) error
	Location() string
}

// Locker is implemented by storage backends that can hold an exclusive lock
// across a load, mutate, store cycle.
type Locker interface {
	Lock(ctx context.Context) (unlock func() error, err error)
}

type ArchiveStorageCredentials struct {
	S3 *S3ArchiveStorageCredentials
}

type ArchiveStorageOpts struct {
	Location    string
	S3          common.S3StorageInfo
	Credentials ArchiveStorageCredentials
}

// NewArchiveStorage picks a backend from opts.Location: s3://bucket/key locations
// are kept in S3, anything else is a local file path.
func NewArchiveStorage(ctx context.Context, opts ArchiveStorageOpts) (ArchiveStorageInterface, error) {
	if !common.IsS3Location(opts.Location) {
		return NewLocalArchiveStorage(LocalArchiveStorageOpts{
			ArchivePath: opts.Location,
		}), nil
	}

	storageInfo, err := common.ParseS3Location(opts.Location)
	if err != nil {
		return nil, err
	}

	s3Opts := S3ArchiveStorageOpts{
		Bucket:         storageInfo.Bucket,
		Key:            storageInfo.Key,
		Region:         opts.S3.Region,
		Endpoint:       opts.S3.Endpoint,
		ForcePathStyle: opts.S3.ForcePathStyle,
	}
	if opts.Credentials.S3 != nil {
		s3Opts.AccessKey = opts.Credentials.S3.AccessKey
		s3Opts.SecretKey = opts.Credentials.S3.SecretKey
	}

	return NewS3ArchiveStorage(ctx, s3Opts)
}
