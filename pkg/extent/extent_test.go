package extent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkfs/donkey/pkg/alloc"
	"github.com/dkfs/donkey/pkg/block"
	"github.com/dkfs/donkey/pkg/device"
)

// newTestMapper builds a mapper over a small in-memory device whose entire
// body (after a tiny header) is free data blocks, with an 8-pointer
// indirect block (blockSize=64) so multi-level trees can be exercised
// cheaply.
func newTestMapper(t *testing.T, dbCount uint64) (*Mapper, *block.Inode) {
	t.Helper()
	const blockSize = 64 // PointersPerBlock = 8
	dev := device.NewMemory(blockSize*(dbCount+1), blockSize)
	require.NoError(t, alloc.InitRun(dev, blockSize, blockSize*dbCount))

	head := uint64(blockSize)
	used := uint64(0)
	list := alloc.NewList(dev, blockSize, &head, &used, dbCount, func() error { return nil })

	m := NewMapper(dev, list)
	inode := block.NewInode(block.RootInode, block.TypeRegularFile|0644, 0, 0, 1, block.Timestamp{})
	return m, inode
}

func TestLocateDirectAllocatesOnWrite(t *testing.T) {
	m, inode := newTestMapper(t, 32)
	cache := &Cache{}

	ptr, err := m.Locate(inode, cache, 0, false)
	require.NoError(t, err)
	require.Zero(t, ptr, "unallocated block is a hole")

	ptr, err = m.Locate(inode, cache, 0, true)
	require.NoError(t, err)
	require.NotZero(t, ptr)
	require.Equal(t, uint64(1), inode.Blocks)

	ptr2, err := m.Locate(inode, cache, 0, false)
	require.NoError(t, err)
	require.Equal(t, ptr, ptr2)
}

func TestLocateSingleIndirectAllocatesTwoBlocks(t *testing.T) {
	m, inode := newTestMapper(t, 32)
	cache := &Cache{}

	// blockIndex 12 is the first single-indirect block (direct has 12
	// slots, indices 0..11).
	ptr, err := m.Locate(inode, cache, 12, true)
	require.NoError(t, err)
	require.NotZero(t, ptr)
	// One block for the indirect pointer table, one for the leaf.
	require.Equal(t, uint64(2), inode.Blocks)
	require.NotZero(t, inode.Ptrs.Indirect[0])

	require.NoError(t, cache.Flush(m.dev))

	ptr2, err := m.Locate(inode, cache, 12, false)
	require.NoError(t, err)
	require.Equal(t, ptr, ptr2)
}

func TestLocateDoubleIndirectRoundTrip(t *testing.T) {
	m, inode := newTestMapper(t, 64)
	cache := &Cache{}

	// capacities: direct=12, single=8 -> double region starts at 20.
	b := uint64(20) + 5
	ptr, err := m.Locate(inode, cache, b, true)
	require.NoError(t, err)
	require.NotZero(t, ptr)
	require.NoError(t, cache.Flush(m.dev))
	cache.Discard()

	ptr2, err := m.Locate(inode, cache, b, false)
	require.NoError(t, err)
	require.Equal(t, ptr, ptr2)
}

func TestFreeFromReleasesDirectBlocks(t *testing.T) {
	m, inode := newTestMapper(t, 32)
	cache := &Cache{}

	for i := uint64(0); i < 4; i++ {
		_, err := m.Locate(inode, cache, i, true)
		require.NoError(t, err)
	}
	require.Equal(t, uint64(4), inode.Blocks)

	require.NoError(t, m.FreeFrom(inode, 0, cache))
	require.Equal(t, uint64(0), inode.Blocks)
	for i := 0; i < block.DirectPointerCount; i++ {
		require.Zero(t, inode.Ptrs.Direct[i])
	}
}

func TestFreeFromReleasesIndirectSubtree(t *testing.T) {
	m, inode := newTestMapper(t, 32)
	cache := &Cache{}

	_, err := m.Locate(inode, cache, 12, true)
	require.NoError(t, err)
	require.NoError(t, cache.Flush(m.dev))
	require.Equal(t, uint64(2), inode.Blocks)

	require.NoError(t, m.FreeFrom(inode, 0, cache))
	require.Equal(t, uint64(0), inode.Blocks)
	require.Zero(t, inode.Ptrs.Indirect[0])
}

func TestFreeFromPartialKeepsSubtreeAlive(t *testing.T) {
	m, inode := newTestMapper(t, 32)
	cache := &Cache{}

	// Allocate two leaves under the same single-indirect block.
	_, err := m.Locate(inode, cache, 12, true)
	require.NoError(t, err)
	_, err = m.Locate(inode, cache, 13, true)
	require.NoError(t, err)
	require.NoError(t, cache.Flush(m.dev))
	require.Equal(t, uint64(3), inode.Blocks) // 1 indirect + 2 leaves

	// Truncate to keep only block index 12.
	require.NoError(t, m.FreeFrom(inode, 13, cache))
	require.Equal(t, uint64(2), inode.Blocks) // 1 indirect + 1 leaf
	require.NotZero(t, inode.Ptrs.Indirect[0])
}
