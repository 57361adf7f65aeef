package archive

import "github.com/beam-cloud/savn/pkg/common"

// FindByPath returns the first entry with exactly the given path, or nil.
func FindByPath(a *common.Archive, path string) *common.Entry {
	return a.Find(path)
}

// RemoveByPaths drops every entry whose path is one of paths. Paths that are
// not in the archive are ignored. It returns the number of entries removed.
func RemoveByPaths(a *common.Archive, paths ...string) int {
	if len(paths) == 0 {
		return 0
	}

	remove := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		remove[p] = struct{}{}
	}

	return a.Retain(func(entry *common.Entry) bool {
		_, found := remove[entry.Path]
		return !found
	})
}
