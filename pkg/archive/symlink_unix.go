//go:build unix

package archive

import "golang.org/x/sys/unix"

func createSymlink(target string, dest string) error {
	return unix.Symlink(target, dest)
}
