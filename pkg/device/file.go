package device

import (
	"io"
	"os"

	"github.com/dkfs/donkey/pkg/donkeyerr"
)

// fileDevice backs a Donkey volume with a regular file image. Per §4.2, a
// regular file always uses the fixed 4 KiB logical block regardless of the
// host filesystem's own block size.
type fileDevice struct {
	f         *os.File
	size      uint64
	blockSize uint64
}

// OpenFile opens path as a regular-file-backed device. The file's current
// length is taken as the device size.
func OpenFile(path string, blockSize uint64) (Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, donkeyerr.Wrap(donkeyerr.IOError, err, "open device file")
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, donkeyerr.Wrap(donkeyerr.IOError, err, "stat device file")
	}
	return &fileDevice{f: f, size: uint64(fi.Size()), blockSize: blockSize}, nil
}

// CreateFile creates (or truncates) path to size bytes and opens it as a
// regular-file-backed device, the way the format tool provisions a fresh
// image.
func CreateFile(path string, size, blockSize uint64) (Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, donkeyerr.Wrap(donkeyerr.IOError, err, "create device file")
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, donkeyerr.Wrap(donkeyerr.IOError, err, "truncate device file")
	}
	return &fileDevice{f: f, size: size, blockSize: blockSize}, nil
}

func (d *fileDevice) Size() uint64      { return d.size }
func (d *fileDevice) BlockSize() uint64 { return d.blockSize }

func (d *fileDevice) ReadAt(ptr uint64) (io.Reader, error) {
	if err := checkBounds(ptr, 0, d.size); err != nil {
		return nil, err
	}
	return io.NewSectionReader(d.f, int64(ptr), int64(d.size-ptr)), nil
}

func (d *fileDevice) ReadLenAt(ptr uint64, length int) ([]byte, error) {
	if err := checkBounds(ptr, length, d.size); err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	if _, err := d.f.ReadAt(buf, int64(ptr)); err != nil && err != io.EOF {
		return nil, donkeyerr.Wrap(donkeyerr.IOError, err, "read %d bytes at %d", length, ptr)
	}
	return buf, nil
}

func (d *fileDevice) ReadBlockAt(ptr uint64) ([]byte, error) {
	return d.ReadLenAt(ptr, int(d.blockSize))
}

func (d *fileDevice) WriteAt(data []byte, ptr uint64) error {
	if err := checkBounds(ptr, len(data), d.size); err != nil {
		return err
	}
	if _, err := d.f.WriteAt(data, int64(ptr)); err != nil {
		return donkeyerr.Wrap(donkeyerr.IOError, err, "write %d bytes at %d", len(data), ptr)
	}
	return nil
}

func (d *fileDevice) Close() error {
	return d.f.Close()
}
