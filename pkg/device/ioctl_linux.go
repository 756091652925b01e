package device

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/dkfs/donkey/pkg/donkeyerr"
)

// blkGetSize64 is Linux's BLKGETSIZE64 request number: _IOR(0x12, 114,
// sizeof(uint64)), per §6.
const blkGetSize64 = 0x80081272

func mediaSize(f *os.File) (size, blockSize uint64, err error) {
	var nbytes uint64
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), blkGetSize64, uintptr(unsafe.Pointer(&nbytes)))
	if errno != 0 {
		return 0, 0, donkeyerr.Wrap(donkeyerr.IOError, errno, "BLKGETSIZE64 ioctl")
	}
	return nbytes, DefaultBlockSize, nil
}
