// Package extent implements the extent mapper (C5): translation of a
// file-relative logical block index into a physical data-block pointer
// across the five-level direct/indirect tree in spec §3/§4.5, allocating
// on write and caching indirect blocks per file.
package extent

import (
	"github.com/dkfs/donkey/pkg/block"
	"github.com/dkfs/donkey/pkg/device"
	"github.com/dkfs/donkey/pkg/donkeyerr"
)

// DataAllocator allocates and frees whole data blocks. pkg/alloc.List
// satisfies this.
type DataAllocator interface {
	Allocate() (uint64, error)
	Free(ptr uint64) error
}

// Mapper resolves logical block indices against one device's block size.
// It holds no per-file state; callers supply the inode and its Cache.
type Mapper struct {
	dev       device.Device
	blockSize uint64
	dballoc   DataAllocator
}

// NewMapper builds a mapper over dev, allocating/freeing data blocks
// through dballoc.
func NewMapper(dev device.Device, dballoc DataAllocator) *Mapper {
	return &Mapper{dev: dev, blockSize: dev.BlockSize(), dballoc: dballoc}
}

// capacities returns the number of logical blocks addressable at each of
// the five levels (direct, single..quadruple indirect), per §3/§4.5.
func (m *Mapper) capacities() [5]uint64 {
	pc := block.PointersPerBlock(m.blockSize)
	return [5]uint64{
		block.DirectPointerCount,
		pc,
		pc * pc,
		pc * pc * pc,
		pc * pc * pc * pc,
	}
}

// locateLevel returns the level L and the offset within that level for
// logical block index b, per §4.5's "find smallest L such that
// b < Σ capacities[i]" rule.
func (m *Mapper) locateLevel(b uint64) (level int, offset uint64) {
	caps := m.capacities()
	var base uint64
	for l := 0; l < len(caps); l++ {
		if b < base+caps[l] {
			return l, b - base
		}
		base += caps[l]
	}
	// Past the addressable range; Locate rejects such indices with
	// ErrRangeExceeded before calling here.
	return len(caps) - 1, b - base
}

// MaxLogicalBlocks returns the total number of logical blocks addressable
// by the extent tree for this mapper's block size.
func (m *Mapper) MaxLogicalBlocks() uint64 {
	caps := m.capacities()
	var total uint64
	for _, c := range caps {
		total += c
	}
	return total
}

// Locate resolves logical block index b to a physical data-block pointer.
// In read mode (allocate=false) an unallocated region yields ptr==0 ("hole")
// with no error. In write mode (allocate=true) holes are filled in: leaf
// data blocks are allocated uninitialized, indirect blocks are allocated
// zero-filled, and inode.Blocks is charged for each new block. Every
// allocation on the path is reflected in inode's fields and the
// in-memory cache; persisting them is the caller's job (extent.Cache.Flush
// plus the inode write).
func (m *Mapper) Locate(inode *block.Inode, cache *Cache, b uint64, allocate bool) (uint64, error) {
	if b >= m.MaxLogicalBlocks() {
		return 0, ErrRangeExceeded
	}
	level, offset := m.locateLevel(b)

	if level == 0 {
		ptr := inode.Ptrs.Direct[offset]
		if ptr == 0 {
			if !allocate {
				return 0, nil
			}
			newPtr, err := m.dballoc.Allocate()
			if err != nil {
				return 0, err
			}
			inode.Ptrs.Direct[offset] = newPtr
			inode.Blocks++
			return newPtr, nil
		}
		return ptr, nil
	}

	head := inode.Ptrs.Indirect[level-1]
	if head == 0 {
		if !allocate {
			return 0, nil
		}
		newHead, err := m.allocateZeroed()
		if err != nil {
			return 0, err
		}
		inode.Ptrs.Indirect[level-1] = newHead
		inode.Blocks++
		head = newHead
	}

	return m.descend(inode, cache, head, level, offset, allocate)
}

// descend walks one indirect block at the given remaining level, using
// cache slot level-1, per §4.5's recursive definition: index by
// offset/PC^(level-1), then recurse on the child with offset mod
// PC^(level-1) and level-1. At level 1 the indexed pointer is a leaf data
// block rather than another indirect block.
func (m *Mapper) descend(inode *block.Inode, cache *Cache, ptr uint64, level int, offset uint64, allocate bool) (uint64, error) {
	idx := cache.slotIndex(level)
	data, err := cache.load(m.dev, idx, ptr)
	if err != nil {
		return 0, err
	}

	pc := block.PointersPerBlock(m.blockSize)
	stride := pow(pc, uint64(level-1))
	childIdx := offset / stride
	childOffset := offset % stride

	child := readPointer(data, childIdx)

	if level == 1 {
		if child == 0 {
			if !allocate {
				return 0, nil
			}
			newPtr, err := m.dballoc.Allocate()
			if err != nil {
				return 0, err
			}
			writePointer(data, childIdx, newPtr)
			cache.markDirty(idx)
			inode.Blocks++
			return newPtr, nil
		}
		return child, nil
	}

	if child == 0 {
		if !allocate {
			return 0, nil
		}
		newChild, err := m.allocateZeroed()
		if err != nil {
			return 0, err
		}
		writePointer(data, childIdx, newChild)
		cache.markDirty(idx)
		inode.Blocks++
		child = newChild
	}

	return m.descend(inode, cache, child, level-1, childOffset, allocate)
}

// allocateZeroed allocates a data block and zero-fills it, the way every
// indirect block must start out so unreferenced slots read as null
// pointers, per spec §3's lifecycle note.
func (m *Mapper) allocateZeroed() (uint64, error) {
	ptr, err := m.dballoc.Allocate()
	if err != nil {
		return 0, err
	}
	zero := make([]byte, m.blockSize)
	if err := m.dev.WriteAt(zero, ptr); err != nil {
		return 0, err
	}
	return ptr, nil
}

// slotIndex maps a recursion-remaining level (1..4) to the cache's 0..3
// slot index.
func (c *Cache) slotIndex(level int) int {
	if level < 1 || level > 4 {
		panic("extent: level out of range")
	}
	return level - 1
}

func pow(base, exp uint64) uint64 {
	result := uint64(1)
	for i := uint64(0); i < exp; i++ {
		result *= base
	}
	return result
}

// ErrRangeExceeded is returned when a requested logical offset exceeds the
// 256 TiB addressable ceiling described in §3.
var ErrRangeExceeded = donkeyerr.New(donkeyerr.Invalid, "logical offset exceeds addressable range")
