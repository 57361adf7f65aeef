//go:build !unix

package archive

import (
	"fmt"
	"runtime"

	"github.com/beam-cloud/savn/pkg/common"
)

func createSymlink(target string, dest string) error {
	return fmt.Errorf("%w: symlinks are not supported on %s", common.ErrUnsupportedOperation, runtime.GOOS)
}
