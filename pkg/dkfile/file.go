// Package dkfile implements the file object (C6): per-inode in-memory
// state (the mutable inode image, cursor, dirty flag, xattr map, and
// indirect-block cache) with byte-level read/write/seek/flush/destroy
// semantics, per spec §4.6.
package dkfile

import (
	"io"

	"github.com/dkfs/donkey/pkg/block"
	"github.com/dkfs/donkey/pkg/device"
	"github.com/dkfs/donkey/pkg/donkeyerr"
	"github.com/dkfs/donkey/pkg/extent"
	"github.com/dkfs/donkey/pkg/inode"
)

// File is the in-memory representation of one open inode's data. A single
// File is shared by every handle referencing the same inode number; the
// handle manager (C8) is responsible for that interning.
type File struct {
	dev     device.Device
	mapper  *extent.Mapper
	dballoc extent.DataAllocator
	istore  *inode.Store

	Inode *block.Inode
	pos   int64
	dirty bool

	xattr     map[string][]byte
	extentBuf extent.Cache
}

// Open loads in's image into a new File, reading its xattr block (if any)
// so the in-memory map is complete on first reference, per §4.6.
func Open(dev device.Device, mapper *extent.Mapper, dballoc extent.DataAllocator, istore *inode.Store, in *block.Inode) (*File, error) {
	f := &File{
		dev:     dev,
		mapper:  mapper,
		dballoc: dballoc,
		istore:  istore,
		Inode:   in,
		xattr:   map[string][]byte{},
	}
	if in.XattrPtr != 0 {
		if err := f.loadXattr(); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Seek repositions the cursor. Per §4.5's numeric tie-breaks, seeking past
// EOF never extends the file; only a subsequent write does.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = f.pos + offset
	case io.SeekEnd:
		newPos = int64(f.Inode.Size) + offset
	default:
		return 0, donkeyerr.New(donkeyerr.Invalid, "invalid whence %d", whence)
	}
	if newPos < 0 {
		return 0, donkeyerr.New(donkeyerr.Invalid, "negative seek position %d", newPos)
	}
	f.pos = newPos
	return f.pos, nil
}

// Position returns the current cursor offset.
func (f *File) Position() int64 { return f.pos }

// Read fills buf starting at the current cursor, returning fewer bytes
// than len(buf) at EOF, per §4.6/§4.5: a read at pos >= size returns zero
// bytes, a read straddling EOF is truncated to size, and a read of an
// unallocated (sparse) region below EOF returns zeros.
func (f *File) Read(buf []byte) (int, error) {
	if f.pos >= int64(f.Inode.Size) {
		return 0, nil
	}

	remaining := int64(f.Inode.Size) - f.pos
	want := len(buf)
	if int64(want) > remaining {
		want = int(remaining)
	}

	total := 0
	blockSize := int64(f.dev.BlockSize())
	for total < want {
		bi := uint64((f.pos + int64(total)) / blockSize)
		bo := (f.pos + int64(total)) % blockSize
		chunk := int64(want - total)
		if bo+chunk > blockSize {
			chunk = blockSize - bo
		}

		ptr, err := f.mapper.Locate(f.Inode, &f.extentBuf, bi, false)
		if err != nil {
			return total, err
		}
		if ptr == 0 {
			for i := int64(0); i < chunk; i++ {
				buf[int64(total)+i] = 0
			}
		} else {
			data, err := f.dev.ReadLenAt(ptr+uint64(bo), int(chunk))
			if err != nil {
				return total, err
			}
			copy(buf[total:], data)
		}
		total += int(chunk)
	}

	f.pos += int64(total)
	return total, nil
}

// Write stores buf starting at the current cursor, allocating data blocks
// as needed, and extends inode.Size if the write passes the current end of
// file. A zero-length write is a no-op, per §4.5.
func (f *File) Write(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	f.dirty = true

	blockSize := int64(f.dev.BlockSize())
	total := 0
	for total < len(buf) {
		bi := uint64((f.pos + int64(total)) / blockSize)
		bo := (f.pos + int64(total)) % blockSize
		chunk := int64(len(buf) - total)
		if bo+chunk > blockSize {
			chunk = blockSize - bo
		}

		ptr, err := f.mapper.Locate(f.Inode, &f.extentBuf, bi, true)
		if err != nil {
			return total, err
		}
		if err := f.dev.WriteAt(buf[total:int64(total)+chunk], ptr+uint64(bo)); err != nil {
			return total, err
		}
		total += int(chunk)
	}

	f.pos += int64(total)
	if uint64(f.pos) > f.Inode.Size {
		f.Inode.Size = uint64(f.pos)
		if !f.Inode.Mode.IsDirectory() {
			now := Now()
			f.Inode.Mtime = now
			f.Inode.Ctime = now
		}
	}
	return total, nil
}

// Truncate sets the logical size to size, freeing any data blocks beyond
// the new end when shrinking. Growing the file does not allocate; holes
// are materialized lazily on write, matching sparse-file semantics.
func (f *File) Truncate(size uint64) error {
	f.dirty = true
	if size < f.Inode.Size {
		blockSize := f.dev.BlockSize()
		firstFreedBlock := (size + blockSize - 1) / blockSize
		if size%blockSize != 0 {
			// The block holding the new EOF is kept, so only blocks
			// strictly beyond it are freed; its bytes past the new EOF
			// are zeroed so a later extension reads them as zeros.
			firstFreedBlock = size/blockSize + 1
			ptr, err := f.mapper.Locate(f.Inode, &f.extentBuf, size/blockSize, false)
			if err != nil {
				return err
			}
			if ptr != 0 {
				off := size % blockSize
				if err := f.dev.WriteAt(make([]byte, blockSize-off), ptr+off); err != nil {
					return err
				}
			}
		}
		if err := f.mapper.FreeFrom(f.Inode, firstFreedBlock, &f.extentBuf); err != nil {
			return err
		}
	}
	f.Inode.Size = size
	if !f.Inode.Mode.IsDirectory() {
		now := Now()
		f.Inode.Mtime = now
		f.Inode.Ctime = now
	}
	if f.pos > int64(size) {
		f.pos = int64(size)
	}
	return nil
}

// MarkDirty flags the file as having pending attribute or data changes,
// for callers (setattr) that mutate the inode image directly.
func (f *File) MarkDirty() { f.dirty = true }

// Dirty reports whether the file has unflushed changes.
func (f *File) Dirty() bool { return f.dirty }

// Flush writes back every dirty extent-cache slot, the xattr block (if the
// map is non-empty), and finally the inode image, per §4.6. It is a no-op
// if nothing changed, and does nothing at all once the inode has reached
// nlink==0 (a destroyed object's image is meaningless).
func (f *File) Flush() error {
	if !f.dirty || f.Inode.Nlink == 0 {
		return nil
	}
	if err := f.extentBuf.Flush(f.dev); err != nil {
		return err
	}
	if err := f.flushXattr(); err != nil {
		return err
	}
	if err := f.istore.Write(f.Inode); err != nil {
		return err
	}
	f.dirty = false
	return nil
}

// Destroy releases every resource charged to the inode: its data blocks
// (via truncate to zero), its xattr block, and finally its own inode slot.
// The caller (the handle manager) is responsible for calling this only
// once nlink has reached zero and the last handle is closing.
func (f *File) Destroy(inodeFree func(ptr uint64) error) error {
	if err := f.mapper.FreeFrom(f.Inode, 0, &f.extentBuf); err != nil {
		return err
	}
	if f.Inode.XattrPtr != 0 {
		if err := f.dballoc.Free(f.Inode.XattrPtr); err != nil {
			return err
		}
		f.Inode.XattrPtr = 0
	}
	return inodeFree(inode.Ptr(f.Inode.Ino))
}
