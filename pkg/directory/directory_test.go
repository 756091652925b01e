package directory

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkfs/donkey/pkg/alloc"
	"github.com/dkfs/donkey/pkg/block"
	"github.com/dkfs/donkey/pkg/device"
	"github.com/dkfs/donkey/pkg/dkfile"
	"github.com/dkfs/donkey/pkg/extent"
	"github.com/dkfs/donkey/pkg/inode"
)

func newTestDir(t *testing.T) *Directory {
	t.Helper()
	const blockSize, dbCount = 512, 64
	total := block.InodeTableOffset + block.InodeSize*4 + uint64(blockSize*dbCount)
	dev := device.NewMemory(total, blockSize)

	dbBase := block.InodeTableOffset + block.InodeSize*4
	require.NoError(t, alloc.InitRun(dev, dbBase, uint64(blockSize*dbCount)))
	dbHead, dbUsed := dbBase, uint64(0)
	dballoc := alloc.NewList(dev, blockSize, &dbHead, &dbUsed, dbCount, func() error { return nil })

	istore := inode.NewStore(dev)
	in := block.NewInode(block.RootInode, block.TypeDirectory|0755, 0, 0, 2, dkfile.Now())
	require.NoError(t, istore.Write(in))

	mapper := extent.NewMapper(dev, dballoc)
	f, err := dkfile.Open(dev, mapper, dballoc, istore, in)
	require.NoError(t, err)

	d, err := Open(f)
	require.NoError(t, err)
	return d
}

func TestDirectoryEmptyOnCreate(t *testing.T) {
	d := newTestDir(t)
	require.Zero(t, d.Len())
	require.True(t, d.IsEmpty())
}

func TestDirectoryAddLookupRemove(t *testing.T) {
	d := newTestDir(t)
	require.NoError(t, d.Add(".", block.RootInode))
	require.NoError(t, d.Add("..", block.RootInode))
	require.NoError(t, d.Add("foo.txt", 114520))
	require.True(t, d.IsEmpty() == false)

	ino, ok := d.Lookup("foo.txt")
	require.True(t, ok)
	require.Equal(t, uint64(114520), ino)

	err := d.Add("foo.txt", 114521)
	require.Error(t, err)

	removed, ok := d.Remove("foo.txt")
	require.True(t, ok)
	require.Equal(t, uint64(114520), removed)

	_, ok = d.Lookup("foo.txt")
	require.False(t, ok)
	require.True(t, d.IsEmpty())
}

func TestDirectoryFlushAndReload(t *testing.T) {
	d := newTestDir(t)
	require.NoError(t, d.Add(".", block.RootInode))
	require.NoError(t, d.Add("..", block.RootInode))
	require.NoError(t, d.Add("a", 114520))
	require.NoError(t, d.Add("b", 114521))
	require.NoError(t, d.Flush())

	d2, err := Open(d.File)
	require.NoError(t, err)
	require.Equal(t, 4, d2.Len())

	ino, ok := d2.Lookup("a")
	require.True(t, ok)
	require.Equal(t, uint64(114520), ino)

	ino, ok = d2.Lookup("b")
	require.True(t, ok)
	require.Equal(t, uint64(114521), ino)
}

func TestDirectoryListOffset(t *testing.T) {
	d := newTestDir(t)
	require.NoError(t, d.Add("a", 114520))
	require.NoError(t, d.Add("b", 114521))
	require.NoError(t, d.Add("c", 114522))

	all := d.List(0)
	require.Len(t, all, 3)
	require.Equal(t, "a", all[0].Name)

	tail := d.List(1)
	require.Len(t, tail, 2)
	require.Equal(t, "b", tail[0].Name)

	require.Nil(t, d.List(3))
}
