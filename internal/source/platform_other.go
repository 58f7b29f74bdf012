//go:build !linux

package source

import (
	"errors"
	"os"
)

func deviceSize(*os.File) (int64, error) {
	return 0, errors.New("device size ioctl not supported on this platform")
}

// AdviseSequential is a no-op on platforms without posix_fadvise.
func AdviseSequential(*os.File) {}
