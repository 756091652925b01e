package block

import (
	"bytes"
	"encoding/binary"

	"github.com/dkfs/donkey/pkg/donkeyerr"
)

// Superblock is the single source of truth for free-list heads and used
// counts. It is flushed on every allocation and release.
type Superblock struct {
	Magic          uint64
	BlockSize      uint64
	InodeCount     uint64
	UsedInodeCount uint64
	DBCount        uint64
	UsedDBCount    uint64
	InodeFlPtr     uint64
	DBFlPtr        uint64
}

// NewSuperblock builds a freshly formatted superblock with both free lists
// pointing at a single run covering the whole inode table / data region.
// DBFlPtr is the block-aligned FirstDataBlockPtr, not the raw end of the
// inode table, per §3's "every nonzero pointer is block-aligned" invariant.
func NewSuperblock(blockSize, inodeCount, dbCount uint64) *Superblock {
	sb := &Superblock{
		Magic:      MagicNumber,
		BlockSize:  blockSize,
		InodeCount: inodeCount,
		DBCount:    dbCount,
		InodeFlPtr: InodeTableOffset,
	}
	sb.DBFlPtr = sb.FirstDataBlockPtr()
	return sb
}

// Encode serializes the superblock into a SuperblockRegionSize-byte buffer,
// zero-padded past the encoded fields.
func (s *Superblock) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(SuperblockRegionSize)
	// Errors from binary.Write on a bytes.Buffer are always nil for
	// fixed-size fields.
	_ = binary.Write(buf, binary.LittleEndian, s)
	out := make([]byte, SuperblockRegionSize)
	copy(out, buf.Bytes())
	return out
}

// DecodeSuperblock parses a superblock image and validates its magic
// number.
func DecodeSuperblock(data []byte) (*Superblock, error) {
	s := new(Superblock)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, s); err != nil {
		return nil, donkeyerr.Wrap(donkeyerr.Corrupted, err, "decode superblock")
	}
	if s.Magic != MagicNumber {
		return nil, donkeyerr.New(donkeyerr.Corrupted, "bad superblock magic %#x", s.Magic)
	}
	return s, nil
}

// FirstDataBlockPtr returns the block-size-aligned start of the data
// region, per §3: ⌈(2048 + 256·I) / block_size⌉ · block_size.
func (s *Superblock) FirstDataBlockPtr() uint64 {
	end := InodeTableOffset + InodeSize*s.InodeCount
	bs := s.BlockSize
	return ((end + bs - 1) / bs) * bs
}

// DeviceEnd returns the byte offset one past the end of the data region.
func (s *Superblock) DeviceEnd() uint64 {
	return s.FirstDataBlockPtr() + s.BlockSize*s.DBCount
}
