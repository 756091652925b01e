//go:build linux || darwin || freebsd

package device

import (
	"io"
	"os"

	"github.com/dkfs/donkey/pkg/donkeyerr"
)

// blockDevice backs a Donkey volume with a raw block or character device,
// per §6: size is discovered with a platform-specific ioctl rather than
// stat(2), since special files report a zero st_size.
type blockDevice struct {
	f         *os.File
	size      uint64
	blockSize uint64
}

// OpenBlockDevice opens path, which must be a block or character special
// file, and discovers its media size via the platform's size ioctl.
func OpenBlockDevice(path string) (Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, donkeyerr.Wrap(donkeyerr.IOError, err, "open device")
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, donkeyerr.Wrap(donkeyerr.IOError, err, "stat device")
	}
	if fi.Mode()&os.ModeDevice == 0 {
		f.Close()
		return nil, donkeyerr.New(donkeyerr.NotSupported, "%s is not a block or character device", path)
	}

	size, blockSize, err := mediaSize(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &blockDevice{f: f, size: size, blockSize: blockSize}, nil
}

func (d *blockDevice) Size() uint64      { return d.size }
func (d *blockDevice) BlockSize() uint64 { return d.blockSize }

func (d *blockDevice) ReadAt(ptr uint64) (io.Reader, error) {
	if err := checkBounds(ptr, 0, d.size); err != nil {
		return nil, err
	}
	return io.NewSectionReader(d.f, int64(ptr), int64(d.size-ptr)), nil
}

func (d *blockDevice) ReadLenAt(ptr uint64, length int) ([]byte, error) {
	if err := checkBounds(ptr, length, d.size); err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	if _, err := d.f.ReadAt(buf, int64(ptr)); err != nil && err != io.EOF {
		return nil, donkeyerr.Wrap(donkeyerr.IOError, err, "read %d bytes at %d", length, ptr)
	}
	return buf, nil
}

func (d *blockDevice) ReadBlockAt(ptr uint64) ([]byte, error) {
	return d.ReadLenAt(ptr, int(d.blockSize))
}

func (d *blockDevice) WriteAt(data []byte, ptr uint64) error {
	if err := checkBounds(ptr, len(data), d.size); err != nil {
		return err
	}
	if _, err := d.f.WriteAt(data, int64(ptr)); err != nil {
		return donkeyerr.Wrap(donkeyerr.IOError, err, "write %d bytes at %d", len(data), ptr)
	}
	return nil
}

func (d *blockDevice) Close() error {
	return d.f.Close()
}
