package device

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/dkfs/donkey/pkg/donkeyerr"
)

// macOS discovers media size from two ioctls rather than one: block size
// (DKIOCGETBLOCKSIZE, a uint32) and block count (DKIOCGETBLOCKCOUNT, a
// uint64), per §6.
const (
	dkiocGetBlockSize  = 0x40046418 // _IOR('d', 24, sizeof(uint32))
	dkiocGetBlockCount = 0x40086419 // _IOR('d', 25, sizeof(uint64))
)

func mediaSize(f *os.File) (size, blockSize uint64, err error) {
	var bs uint32
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), dkiocGetBlockSize, uintptr(unsafe.Pointer(&bs))); errno != 0 {
		return 0, 0, donkeyerr.Wrap(donkeyerr.IOError, errno, "DKIOCGETBLOCKSIZE ioctl")
	}
	var count uint64
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), dkiocGetBlockCount, uintptr(unsafe.Pointer(&count))); errno != 0 {
		return 0, 0, donkeyerr.Wrap(donkeyerr.IOError, errno, "DKIOCGETBLOCKCOUNT ioctl")
	}
	return uint64(bs) * count, uint64(bs), nil
}
