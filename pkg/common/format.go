package common

import (
	"fmt"
	"math"
	"strings"
)

/*

Archives are stored as a flat sequence of entries followed by a single zero byte:

	Path     []byte  // utf-8, never contains 0x00
	0x00
	Kind     EntryKind
	Length   uint32  // little endian
	Contents [Length]byte
	...
	0x00             // end of archive

*/

const (
	PathTerminator byte = 0x00
	ArchiveEnd     byte = 0x00

	// LengthFieldSize is the number of bytes used for an entry's contents length.
	LengthFieldSize = 4

	MaxContentsLength = math.MaxUint32
)

const s3Scheme = "s3://"

// S3StorageInfo describes an archive kept as a single S3 object.
type S3StorageInfo struct {
	Bucket         string
	Region         string
	Key            string
	Endpoint       string
	ForcePathStyle bool
}

func (ssi S3StorageInfo) String() string {
	return s3Scheme + ssi.Bucket + "/" + ssi.Key
}

// IsS3Location reports whether location refers to an S3 object (s3://bucket/key).
func IsS3Location(location string) bool {
	return strings.HasPrefix(location, s3Scheme)
}

// ParseS3Location splits an s3://bucket/key location into its bucket and key.
func ParseS3Location(location string) (S3StorageInfo, error) {
	if !IsS3Location(location) {
		return S3StorageInfo{}, fmt.Errorf("not an s3 location: %q", location)
	}

	bucket, key, ok := strings.Cut(strings.TrimPrefix(location, s3Scheme), "/")
	if !ok || bucket == "" || key == "" {
		return S3StorageInfo{}, fmt.Errorf("s3 location must look like s3://bucket/key: %q", location)
	}

	return S3StorageInfo{Bucket: bucket, Key: key}, nil
}
