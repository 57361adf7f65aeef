package common

import "errors"

var (
	ErrNotFound             = errors.New("archive not found")
	ErrInvalidEncoding      = errors.New("invalid archive encoding")
	ErrTruncatedStream      = errors.New("truncated archive stream")
	ErrInvalidEntry         = errors.New("invalid archive entry")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrArchiveLocked        = errors.New("archive is locked by another process")
)
