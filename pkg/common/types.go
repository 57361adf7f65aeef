package common

import "fmt"

type EntryKind byte

const (
	RegularFile    EntryKind = 1
	ExecutableFile EntryKind = 2
	SoftSymlink    EntryKind = 3
)

// Valid reports whether k is one of the known entry kinds.
func (k EntryKind) Valid() bool {
	switch k {
	case RegularFile, ExecutableFile, SoftSymlink:
		return true
	}
	return false
}

// Symbol returns the single letter used for k in archive listings.
func (k EntryKind) Symbol() string {
	switch k {
	case RegularFile:
		return "f"
	case ExecutableFile:
		return "x"
	case SoftSymlink:
		return "l"
	}
	return "?"
}

func (k EntryKind) String() string {
	switch k {
	case RegularFile:
		return "file"
	case ExecutableFile:
		return "executable"
	case SoftSymlink:
		return "symlink"
	}
	return fmt.Sprintf("EntryKind(%d)", byte(k))
}

// Entry is a single archived item. For symlinks, Contents holds the link target.
type Entry struct {
	Path     string
	Kind     EntryKind
	Contents []byte
}

// IsSymlink returns true if the Entry represents a symlink.
func (e *Entry) IsSymlink() bool {
	return e.Kind == SoftSymlink
}

// IsExecutable returns true if the Entry represents an executable file.
func (e *Entry) IsExecutable() bool {
	return e.Kind == ExecutableFile
}

// Size returns the length of the entry's contents in bytes.
func (e *Entry) Size() int {
	return len(e.Contents)
}

// Archive is an ordered list of entries. Paths are not required to be unique;
// lookups return the first match.
type Archive struct {
	Entries []*Entry
}

func NewArchive() *Archive {
	return &Archive{Entries: []*Entry{}}
}

func (a *Archive) Len() int {
	return len(a.Entries)
}

func (a *Archive) Append(entry *Entry) {
	a.Entries = append(a.Entries, entry)
}

// Find returns the first entry whose path equals path, or nil.
func (a *Archive) Find(path string) *Entry {
	for _, entry := range a.Entries {
		if entry.Path == path {
			return entry
		}
	}
	return nil
}

// Retain keeps only the entries for which keep returns true, preserving order.
// It returns the number of entries dropped.
func (a *Archive) Retain(keep func(*Entry) bool) int {
	kept := a.Entries[:0]
	for _, entry := range a.Entries {
		if keep(entry) {
			kept = append(kept, entry)
		}
	}

	dropped := len(a.Entries) - len(kept)
	for i := len(kept); i < len(a.Entries); i++ {
		a.Entries[i] = nil
	}
	a.Entries = kept
	return dropped
}
