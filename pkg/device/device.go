// Package device implements the byte-addressable random-access backing
// store the core reads and writes through: a regular-file image, a raw
// block/char device, or an in-memory buffer for tests. None of the three
// caches; every call goes straight to the underlying store, matching the
// "no caching" contract in spec §4.2.
package device

import (
	"io"

	"github.com/dkfs/donkey/pkg/donkeyerr"
)

// DefaultBlockSize is the logical block size reported for regular-file
// images and assumed for raw block devices that don't expose their own
// preferred I/O size, per §4.2.
const DefaultBlockSize = 4096

// Device is a byte-addressable random-access store that reports its own
// size and preferred block size. The core treats it as opaque; it does not
// care whether Size is backed by stat(2), an ioctl, or len(buf).
type Device interface {
	// Size returns the total addressable byte length of the device.
	Size() uint64

	// BlockSize returns the device's preferred logical block size.
	BlockSize() uint64

	// ReadAt returns an io.Reader bounded to [ptr, Size()).
	ReadAt(ptr uint64) (io.Reader, error)

	// ReadLenAt reads exactly len bytes starting at ptr.
	ReadLenAt(ptr uint64, length int) ([]byte, error)

	// ReadBlockAt reads exactly BlockSize() bytes starting at ptr.
	ReadBlockAt(ptr uint64) ([]byte, error)

	// WriteAt writes data starting at ptr.
	WriteAt(data []byte, ptr uint64) error

	// Close releases any OS resources held by the device.
	Close() error
}

// checkBounds returns Corrupted if [ptr, ptr+length) does not fit within
// [0, size), per §4.2: "All operations fail with Corrupted if
// ptr + len > size()".
func checkBounds(ptr uint64, length int, size uint64) error {
	if length < 0 {
		return donkeyerr.New(donkeyerr.Invalid, "negative length %d", length)
	}
	end := ptr + uint64(length)
	if end < ptr || end > size {
		return donkeyerr.New(donkeyerr.Corrupted, "access [%d, %d) exceeds device size %d", ptr, end, size)
	}
	return nil
}
