package device

import (
	"bytes"
	"io"
)

// memDevice is an in-memory Device, used by tests and by callers that want
// a Donkey volume that never touches disk.
type memDevice struct {
	buf       []byte
	blockSize uint64
}

// NewMemory builds an in-memory device of the given size, zero-initialized.
func NewMemory(size, blockSize uint64) Device {
	return &memDevice{buf: make([]byte, size), blockSize: blockSize}
}

func (d *memDevice) Size() uint64      { return uint64(len(d.buf)) }
func (d *memDevice) BlockSize() uint64 { return d.blockSize }

func (d *memDevice) ReadAt(ptr uint64) (io.Reader, error) {
	if err := checkBounds(ptr, 0, d.Size()); err != nil {
		return nil, err
	}
	return bytes.NewReader(d.buf[ptr:]), nil
}

func (d *memDevice) ReadLenAt(ptr uint64, length int) ([]byte, error) {
	if err := checkBounds(ptr, length, d.Size()); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, d.buf[ptr:ptr+uint64(length)])
	return out, nil
}

func (d *memDevice) ReadBlockAt(ptr uint64) ([]byte, error) {
	return d.ReadLenAt(ptr, int(d.blockSize))
}

func (d *memDevice) WriteAt(data []byte, ptr uint64) error {
	if err := checkBounds(ptr, len(data), d.Size()); err != nil {
		return err
	}
	copy(d.buf[ptr:], data)
	return nil
}

func (d *memDevice) Close() error { return nil }
