// Package block implements the fixed-size binary encoding of every
// persistent Donkey record: the superblock, inodes, free-list nodes, and
// the directory-entry and extended-attribute streams that live inside data
// blocks. All multi-byte integers are little-endian and structures are
// packed in declaration order with no implicit padding, the way
// github.com/vorteil/vorteil/pkg/ext lays out its ext2 Superblock and Inode
// structs with encoding/binary.
package block

import "github.com/dkfs/donkey/pkg/donkeyerr"

// Layout constants, per the on-disk format.
const (
	// MagicNumber identifies a Donkey volume.
	MagicNumber uint64 = 0x1BADFACEDEADC0DE

	// BootRegionOffset and BootRegionSize bound the unused reserved region
	// at the start of the device.
	BootRegionOffset = 0
	BootRegionSize   = 1024

	// SuperblockOffset is the fixed byte offset of the superblock.
	SuperblockOffset = BootRegionOffset + BootRegionSize
	// SuperblockRegionSize is the fixed region reserved for the
	// superblock; the encoded struct itself is much smaller but the inode
	// table always begins at SuperblockOffset+SuperblockRegionSize.
	SuperblockRegionSize = 1024

	// InodeTableOffset is the byte offset of inode number RootInode.
	InodeTableOffset = SuperblockOffset + SuperblockRegionSize

	// InodeSize is the fixed on-disk size of one inode slot.
	InodeSize = 256

	// RootInode is the first valid (lowest) inode number. Numbers below it
	// are reserved.
	RootInode uint64 = 114514

	// DirEndSentinel terminates a serialized directory entry stream.
	DirEndSentinel = RootInode - 1

	// DefaultBytesPerInode is the default inode-to-device-size ratio used
	// by the format tool.
	DefaultBytesPerInode uint64 = 16384

	// DefaultBlockSize is the logical block size used for regular-file
	// backed images.
	DefaultBlockSize uint64 = 4096

	// MaxNameLength is the longest permitted directory-entry or xattr name.
	MaxNameLength = 256

	// PointersPerBlock(bs) = bs/8 is computed at runtime since it
	// depends on the device's block size; no constant is defined here.
	pointerSize = 8

	// DirectPointerCount is the number of level-0 direct pointers in an
	// inode.
	DirectPointerCount = 12

	// IndirectLevels is the number of indirect levels above the direct
	// level (single, double, triple, quadruple).
	IndirectLevels = 4
)

// PointersPerBlock returns the number of 64-bit pointers that fit in one
// indirect block for the given device block size.
func PointersPerBlock(blockSize uint64) uint64 {
	return blockSize / pointerSize
}

// FileMode holds the high nibble file-type bit, the setuid/setgid/sticky
// bits, and the 9 owner/group/other permission bits, matching §6.
type FileMode uint16

// File-type bits (high nibble) and permission/special bits, transcribed
// from the bitflags! layout in original_source/dkfs/src/lib.rs and
// extended with the device/fifo/socket types the spec requires.
const (
	TypeSocket          FileMode = 0x1000
	TypeRegularFile     FileMode = 0x2000
	TypeDirectory       FileMode = 0x3000
	TypeSymbolicLink    FileMode = 0x4000
	TypeCharacterDevice FileMode = 0x5000
	TypeBlockDevice     FileMode = 0x6000
	TypeFIFO            FileMode = 0x7000
	TypeMask            FileMode = 0xF000

	Setuid FileMode = 1 << 11
	Setgid FileMode = 1 << 10
	Sticky FileMode = 1 << 9

	UserRead    FileMode = 1 << 8
	UserWrite   FileMode = 1 << 7
	UserExecute FileMode = 1 << 6

	GroupRead    FileMode = 1 << 5
	GroupWrite   FileMode = 1 << 4
	GroupExecute FileMode = 1 << 3

	OtherRead    FileMode = 1 << 2
	OtherWrite   FileMode = 1 << 1
	OtherExecute FileMode = 1 << 0

	PermissionMask FileMode = 0x1FF
	AllRWX         FileMode = UserRead | UserWrite | UserExecute |
		GroupRead | GroupWrite | GroupExecute |
		OtherRead | OtherWrite | OtherExecute
)

// Type returns the file-type nibble of the mode.
func (m FileMode) Type() FileMode { return m & TypeMask }

// IsDirectory reports whether m describes a directory.
func (m FileMode) IsDirectory() bool { return m.Type() == TypeDirectory }

// IsRegularFile reports whether m describes a regular file.
func (m FileMode) IsRegularFile() bool { return m.Type() == TypeRegularFile }

// IsSymlink reports whether m describes a symbolic link.
func (m FileMode) IsSymlink() bool { return m.Type() == TypeSymbolicLink }

// IsDevice reports whether m describes a character or block device.
func (m FileMode) IsDevice() bool {
	t := m.Type()
	return t == TypeCharacterDevice || t == TypeBlockDevice
}

// OpenFlags captures the access mode requested by open(); only the low two
// bits are interpreted by the core, per §6.
type OpenFlags uint32

// Access modes, the low two bits of OpenFlags.
const (
	ReadOnly  OpenFlags = 0
	WriteOnly OpenFlags = 1
	ReadWrite OpenFlags = 2
	invalid   OpenFlags = 3
)

// AccessMode masks out everything but the access-mode bits.
func (f OpenFlags) AccessMode() OpenFlags { return f & 3 }

// Validate returns an Invalid error if the access-mode bits form the
// reserved combination.
func (f OpenFlags) Validate() error {
	if f.AccessMode() == invalid {
		return donkeyerr.New(donkeyerr.Invalid, "invalid open flags %#x", uint32(f))
	}
	return nil
}

// Readable reports whether the access mode permits reads.
func (f OpenFlags) Readable() bool {
	m := f.AccessMode()
	return m == ReadOnly || m == ReadWrite
}

// Writable reports whether the access mode permits writes.
func (f OpenFlags) Writable() bool {
	m := f.AccessMode()
	return m == WriteOnly || m == ReadWrite
}
