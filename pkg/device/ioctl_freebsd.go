package device

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/dkfs/donkey/pkg/donkeyerr"
)

// diocGMediaSize is FreeBSD's DIOCGMEDIASIZE request number: _IOR('d', 129,
// sizeof(off_t)), per §6.
const diocGMediaSize = 0x40086481

func mediaSize(f *os.File) (size, blockSize uint64, err error) {
	var nbytes uint64
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), diocGMediaSize, uintptr(unsafe.Pointer(&nbytes))); errno != 0 {
		return 0, 0, donkeyerr.Wrap(donkeyerr.IOError, errno, "DIOCGMEDIASIZE ioctl")
	}
	return nbytes, DefaultBlockSize, nil
}
