package archive

import (
	"fmt"
	"io"

	"github.com/beam-cloud/savn/pkg/common"
	"github.com/opencontainers/go-digest"
)

type ListOptions struct {
	// Digest adds a sha256 digest of each entry's contents to the listing.
	Digest bool
}

// lengthWidth returns the number of decimal digits needed to print n, treating 0 as 1.
func lengthWidth(n int) int {
	width := 1
	for n >= 10 {
		n /= 10
		width++
	}
	return width
}

// List writes one line per entry: kind symbol, contents length and path. Lengths
// are right aligned to the widest length in the archive.
func List(w io.Writer, a *common.Archive, opts ListOptions) error {
	width := 0
	for _, entry := range a.Entries {
		width = max(width, lengthWidth(entry.Size()))
	}

	for _, entry := range a.Entries {
		var err error
		if opts.Digest {
			_, err = fmt.Fprintf(w, "%s %*d %s %s\n", entry.Kind.Symbol(), width, entry.Size(), digest.FromBytes(entry.Contents), entry.Path)
		} else {
			_, err = fmt.Fprintf(w, "%s %*d %s\n", entry.Kind.Symbol(), width, entry.Size(), entry.Path)
		}
		if err != nil {
			return err
		}
	}

	return nil
}
