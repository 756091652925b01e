package block

import (
	"bytes"
	"encoding/binary"

	"github.com/dkfs/donkey/pkg/donkeyerr"
)

// Timestamp is a signed-seconds/unsigned-nanoseconds timestamp, matching
// original_source/dkfs/src/lib.rs's TimeSpec.
type Timestamp struct {
	Sec  int64
	Nsec uint32
}

// Pointers is the five-level direct/indirect extent tree embedded in every
// inode: 12 direct pointers at level 0, and one pointer per level for
// levels 1 (single indirect) through 4 (quadruple indirect).
type Pointers struct {
	Direct   [DirectPointerCount]uint64
	Indirect [IndirectLevels]uint64
}

// Inode is the 256-byte on-disk inode record.
type Inode struct {
	Ino   uint64
	Mode  FileMode
	UID   uint32
	GID   uint32
	Nlink uint64

	Atime  Timestamp
	Mtime  Timestamp
	Ctime  Timestamp
	Crtime Timestamp

	// Size is the logical file length for regular files/directories/
	// symlinks, or the device number for device inodes. The two uses share
	// this field exclusively.
	Size uint64

	// Blocks counts data blocks charged to this inode, including indirect
	// and xattr blocks.
	Blocks uint64

	XattrPtr uint64

	Ptrs Pointers

	Reserved [30]byte
}

// InodeEncodedSize is the number of bytes Encode/Decode actually read and
// write; the remainder of the InodeSize slot is Reserved padding.
const InodeEncodedSize = 8 + 2 + 4 + 4 + 8 +
	(8+4)*4 + // atime, mtime, ctime, crtime
	8 + 8 + 8 +
	8*(DirectPointerCount+IndirectLevels) +
	30

// NewInode builds a zero-initialized inode image for a freshly allocated
// slot.
func NewInode(ino uint64, mode FileMode, uid, gid uint32, nlink uint64, t Timestamp) *Inode {
	return &Inode{
		Ino:    ino,
		Mode:   mode,
		UID:    uid,
		GID:    gid,
		Nlink:  nlink,
		Atime:  t,
		Mtime:  t,
		Ctime:  t,
		Crtime: t,
	}
}

// Encode serializes the inode into an InodeSize-byte buffer.
func (in *Inode) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(InodeSize)
	_ = binary.Write(buf, binary.LittleEndian, in)
	out := make([]byte, InodeSize)
	copy(out, buf.Bytes())
	return out
}

// DecodeInode parses an inode image and validates its self-referential ino
// field is within the valid range.
func DecodeInode(data []byte) (*Inode, error) {
	in := new(Inode)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, in); err != nil {
		return nil, donkeyerr.Wrap(donkeyerr.Corrupted, err, "decode inode")
	}
	if in.Ino < RootInode {
		return nil, donkeyerr.New(donkeyerr.Corrupted, "inode number %d below RootInode", in.Ino)
	}
	return in, nil
}

// DecodeInodeAllowFree parses an inode image without validating the ino
// field, for use by the allocator which may be looking at a free-list node
// occupying an inode slot rather than a live inode.
func DecodeInodeAllowFree(data []byte) (*Inode, error) {
	in := new(Inode)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, in); err != nil {
		return nil, donkeyerr.Wrap(donkeyerr.Corrupted, err, "decode inode")
	}
	return in, nil
}
