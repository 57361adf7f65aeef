package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/beam-cloud/savn/pkg/common"
)

const (
	regularFileMode    os.FileMode = 0644
	executableFileMode os.FileMode = 0755
	directoryMode      os.FileMode = 0755
)

// ExtractFunc is called after each entry is written to disk.
type ExtractFunc func(entry *common.Entry, dest string)

// ExtractToDirectory materializes every entry under target, in archive order.
// Parent directories are created as needed; entries are never written through a
// symlink below target. The first failure stops extraction;
// entries already written are left in place.
func ExtractToDirectory(a *common.Archive, target string, onExtract ExtractFunc) error {
	for _, entry := range a.Entries {
		dest, err := destinationPath(target, entry.Path)
		if err != nil {
			return err
		}

		if err := checkNoSymlinkParents(target, dest); err != nil {
			return err
		}

		if err := os.MkdirAll(filepath.Dir(dest), directoryMode); err != nil {
			return fmt.Errorf("error creating parent directory for %s: %w", entry.Path, err)
		}

		if err := extractEntry(entry, dest); err != nil {
			return err
		}

		if onExtract != nil {
			onExtract(entry, dest)
		}
	}

	return nil
}

func extractEntry(entry *common.Entry, dest string) error {
	if !entry.IsSymlink() {
		// replace a symlink at dest rather than writing through it
		if err := removeSymlink(dest); err != nil {
			return fmt.Errorf("error replacing symlink %s: %w", entry.Path, err)
		}
	}

	switch {
	case entry.IsSymlink():
		if err := createSymlink(string(entry.Contents), dest); err != nil {
			return fmt.Errorf("error creating symlink %s -> %s: %w", entry.Path, entry.Contents, err)
		}

	case entry.IsExecutable():
		if err := os.WriteFile(dest, entry.Contents, executableFileMode); err != nil {
			return fmt.Errorf("error writing file %s: %w", entry.Path, err)
		}
		// WriteFile leaves the mode of an existing file untouched
		if err := os.Chmod(dest, executableFileMode); err != nil {
			return fmt.Errorf("error marking %s executable: %w", entry.Path, err)
		}

	case entry.Kind == common.RegularFile:
		if err := os.WriteFile(dest, entry.Contents, regularFileMode); err != nil {
			return fmt.Errorf("error writing file %s: %w", entry.Path, err)
		}

	default:
		return fmt.Errorf("%w: %q has unknown kind %d", common.ErrInvalidEntry, entry.Path, byte(entry.Kind))
	}

	return nil
}

// destinationPath joins path onto target and refuses results outside target.
func destinationPath(target string, path string) (string, error) {
	dest := filepath.Join(target, path)

	rel, err := filepath.Rel(filepath.Clean(target), dest)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", common.ErrInvalidEntry, path, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q resolves outside of %s", common.ErrInvalidEntry, path, target)
	}

	return dest, nil
}

// checkNoSymlinkParents walks the directories between target and dest and fails
// if any existing one is a symlink, including links extracted by earlier entries.
func checkNoSymlinkParents(target string, dest string) error {
	root := filepath.Clean(target)
	rel, err := filepath.Rel(root, filepath.Dir(dest))
	if err != nil || rel == "." {
		return err
	}

	current := root
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		current = filepath.Join(current, part)

		fi, err := os.Lstat(current)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if fi.Mode()&fs.ModeSymlink != 0 {
			return fmt.Errorf("%w: %q would be written through symlink %s", common.ErrInvalidEntry, dest, current)
		}
	}

	return nil
}

func removeSymlink(path string) error {
	fi, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if fi.Mode()&fs.ModeSymlink == 0 {
		return nil
	}
	return os.Remove(path)
}
