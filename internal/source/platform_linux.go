//go:build linux

package source

import (
	"os"

	"golang.org/x/sys/unix"
)

// deviceSize asks the kernel for the size of a block device. Stat reports
// zero for raw devices, so the BLKGETSIZE64 ioctl is the reliable path.
func deviceSize(f *os.File) (int64, error) {
	n, err := unix.IoctlGetInt(int(f.Fd()), unix.BLKGETSIZE64)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

// AdviseSequential hints the kernel that the handle will be read
// sequentially. Used before replay-heavy sequential emulation.
func AdviseSequential(f *os.File) {
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}
