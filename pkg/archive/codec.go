package archive

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/beam-cloud/savn/pkg/common"
)

// initialContentsBuffer caps the up-front allocation for an entry's contents so
// a corrupt length field cannot force a huge allocation before any data is read.
const initialContentsBuffer = 1 << 20

// ValidateEntry checks that an entry can be framed unambiguously.
func ValidateEntry(entry *common.Entry) error {
	if entry.Path == "" {
		return fmt.Errorf("%w: empty path", common.ErrInvalidEntry)
	}
	if strings.IndexByte(entry.Path, common.PathTerminator) >= 0 {
		return fmt.Errorf("%w: path %q contains a zero byte", common.ErrInvalidEntry, entry.Path)
	}
	if !entry.Kind.Valid() {
		return fmt.Errorf("%w: %q has unknown kind %d", common.ErrInvalidEntry, entry.Path, byte(entry.Kind))
	}
	if uint64(len(entry.Contents)) > common.MaxContentsLength {
		return fmt.Errorf("%w: %q is larger than %d bytes", common.ErrInvalidEntry, entry.Path, uint64(common.MaxContentsLength))
	}
	return nil
}

// Encode writes the archive to w, followed by the end of archive marker.
// Every entry is validated before anything is written.
func Encode(w io.Writer, a *common.Archive) error {
	for _, entry := range a.Entries {
		if err := ValidateEntry(entry); err != nil {
			return err
		}
	}

	writer := bufio.NewWriter(w)

	var lengthBuf [common.LengthFieldSize]byte
	for _, entry := range a.Entries {
		if _, err := writer.WriteString(entry.Path); err != nil {
			return err
		}
		if err := writer.WriteByte(common.PathTerminator); err != nil {
			return err
		}
		if err := writer.WriteByte(byte(entry.Kind)); err != nil {
			return err
		}

		binary.LittleEndian.PutUint32(lengthBuf[:], uint32(len(entry.Contents)))
		if _, err := writer.Write(lengthBuf[:]); err != nil {
			return err
		}
		if _, err := writer.Write(entry.Contents); err != nil {
			return err
		}
	}

	if err := writer.WriteByte(common.ArchiveEnd); err != nil {
		return err
	}

	return writer.Flush()
}

// EncodeBytes returns the encoded form of the archive.
func EncodeBytes(a *common.Archive) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, a); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads an archive from r in a single forward pass. It stops at the end
// of archive marker, or at EOF between two entries, so a zero byte stream is an
// empty archive. On error no archive is returned.
func Decode(r io.Reader) (*common.Archive, error) {
	reader := bufio.NewReader(r)
	a := common.NewArchive()

	for {
		entry, err := decodeEntry(reader)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return a, nil
		}
		a.Append(entry)
	}
}

// DecodeBytes decodes an archive held in memory.
func DecodeBytes(b []byte) (*common.Archive, error) {
	return Decode(bytes.NewReader(b))
}

// decodeEntry returns a nil entry once the end of the archive is reached.
func decodeEntry(reader *bufio.Reader) (*common.Entry, error) {
	pathBytes, err := reader.ReadBytes(common.PathTerminator)
	if err != nil {
		if errors.Is(err, io.EOF) {
			// A clean EOF between entries reads as an empty path
			if len(pathBytes) == 0 {
				return nil, nil
			}
			return nil, fmt.Errorf("%w: stream ends inside path %q", common.ErrTruncatedStream, pathBytes)
		}
		return nil, fmt.Errorf("error reading entry path: %w", err)
	}

	pathBytes = pathBytes[:len(pathBytes)-1]
	if len(pathBytes) == 0 {
		return nil, nil
	}

	if !utf8.Valid(pathBytes) {
		return nil, fmt.Errorf("%w: entry path %q is not valid utf-8", common.ErrInvalidEncoding, pathBytes)
	}
	path := string(pathBytes)

	tag, err := reader.ReadByte()
	if err != nil {
		return nil, readError(path, "kind", err)
	}

	kind := common.EntryKind(tag)
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: entry %q has unknown kind %d", common.ErrInvalidEncoding, path, tag)
	}

	var lengthBuf [common.LengthFieldSize]byte
	if _, err := io.ReadFull(reader, lengthBuf[:]); err != nil {
		return nil, readError(path, "length", err)
	}
	length := int64(binary.LittleEndian.Uint32(lengthBuf[:]))

	contents := bytes.NewBuffer(make([]byte, 0, min(length, initialContentsBuffer)))
	n, err := io.CopyN(contents, reader, length)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: entry %q declares %d bytes but only %d remain", common.ErrTruncatedStream, path, length, n)
		}
		return nil, fmt.Errorf("error reading contents of %q: %w", path, err)
	}

	return &common.Entry{Path: path, Kind: kind, Contents: contents.Bytes()}, nil
}

func readError(path string, field string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: entry %q ends before its %s", common.ErrTruncatedStream, path, field)
	}
	return fmt.Errorf("error reading %s of %q: %w", field, path, err)
}
