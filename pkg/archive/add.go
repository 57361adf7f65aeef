package archive

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/beam-cloud/savn/pkg/common"
	"github.com/karrick/godirwalk"
)

type addOptionData struct {
	detectExecutable bool
}

type AddOption func(*addOptionData)

// WithExecutableDetection controls whether regular files with any execute
// permission bit are stored as ExecutableFile entries. It is enabled by default.
func WithExecutableDetection(enabled bool) AddOption {
	return func(o *addOptionData) {
		o.detectExecutable = enabled
	}
}

// AddFromFilesystem appends the node at fsPath to the archive without following
// symlinks. Directories are walked recursively and only their files and symlinks
// become entries. Entry paths keep the spelling of fsPath, so "./d" yields
// "./d/a.txt".
//
// The first filesystem error aborts the walk. Entries appended before the error
// stay in the archive; callers decide whether to persist it.
func AddFromFilesystem(a *common.Archive, fsPath string, options ...AddOption) error {
	opts := addOptionData{detectExecutable: true}
	for _, o := range options {
		o(&opts)
	}

	fi, err := os.Lstat(fsPath)
	if err != nil {
		return err
	}

	if !fi.IsDir() {
		entry, err := entryFromNode(fsPath, fsPath, fi.Mode().Type(), opts)
		if err != nil {
			return err
		}
		a.Append(entry)
		return nil
	}

	root := filepath.Clean(fsPath)
	return godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}

			rel, err := filepath.Rel(root, osPathname)
			if err != nil {
				return err
			}

			entry, err := entryFromNode(osPathname, joinEntryPath(fsPath, rel), de.ModeType(), opts)
			if err != nil {
				return err
			}

			a.Append(entry)
			return nil
		},
		ErrorCallback: func(_ string, _ error) godirwalk.ErrorAction {
			return godirwalk.Halt
		},
		Unsorted: false,
	})
}

// joinEntryPath appends rel to root without cleaning root.
func joinEntryPath(root, rel string) string {
	if root != "" && os.IsPathSeparator(root[len(root)-1]) {
		return root + rel
	}
	return root + string(filepath.Separator) + rel
}

func entryFromNode(osPathname string, entryPath string, modeType fs.FileMode, opts addOptionData) (*common.Entry, error) {
	switch {
	case modeType&fs.ModeSymlink != 0:
		target, err := os.Readlink(osPathname)
		if err != nil {
			return nil, fmt.Errorf("error reading symlink target %s: %w", osPathname, err)
		}
		return &common.Entry{Path: entryPath, Kind: common.SoftSymlink, Contents: []byte(target)}, nil

	case modeType.IsRegular():
		return readRegularFile(osPathname, entryPath, opts)

	default:
		return nil, fmt.Errorf("%w: cannot archive %s (%s)", common.ErrUnsupportedOperation, osPathname, modeType)
	}
}

func readRegularFile(osPathname string, entryPath string, opts addOptionData) (*common.Entry, error) {
	f, err := os.Open(osPathname)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	if uint64(fi.Size()) > common.MaxContentsLength {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", common.ErrInvalidEntry, osPathname, uint64(common.MaxContentsLength))
	}

	contents, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("error reading file %s: %w", osPathname, err)
	}

	kind := common.RegularFile
	if opts.detectExecutable && fi.Mode().Perm()&0111 != 0 {
		kind = common.ExecutableFile
	}

	return &common.Entry{Path: entryPath, Kind: kind, Contents: contents}, nil
}
