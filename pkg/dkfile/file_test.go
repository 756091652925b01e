package dkfile

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkfs/donkey/pkg/alloc"
	"github.com/dkfs/donkey/pkg/block"
	"github.com/dkfs/donkey/pkg/device"
	"github.com/dkfs/donkey/pkg/extent"
	"github.com/dkfs/donkey/pkg/inode"
)

func newTestFile(t *testing.T, blockSize, dbCount uint64) (*File, device.Device, *alloc.List) {
	t.Helper()
	total := block.InodeTableOffset + block.InodeSize*4 + blockSize*dbCount
	dev := device.NewMemory(total, blockSize)

	dbBase := block.InodeTableOffset + block.InodeSize*4
	require.NoError(t, alloc.InitRun(dev, dbBase, blockSize*dbCount))
	dbHead, dbUsed := dbBase, uint64(0)
	dballoc := alloc.NewList(dev, blockSize, &dbHead, &dbUsed, dbCount, func() error { return nil })

	istore := inode.NewStore(dev)
	in := block.NewInode(block.RootInode, block.TypeRegularFile|0644, 0, 0, 1, Now())
	require.NoError(t, istore.Write(in))

	mapper := extent.NewMapper(dev, dballoc)
	f, err := Open(dev, mapper, dballoc, istore, in)
	require.NoError(t, err)
	return f, dev, dballoc
}

func TestFileWriteReadRoundTrip(t *testing.T) {
	f, _, _ := newTestFile(t, 512, 64)

	payload := make([]byte, 3000)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	n, err := f.Write(payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.Equal(t, uint64(len(payload)), f.Inode.Size)

	_, err = f.Seek(0, 0)
	require.NoError(t, err)

	got := make([]byte, len(payload))
	n, err = f.Read(got)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.Equal(t, payload, got)
}

func TestFileReadPastEOF(t *testing.T) {
	f, _, _ := newTestFile(t, 512, 64)
	_, err := f.Write([]byte("hello"))
	require.NoError(t, err)

	_, err = f.Seek(5, 0)
	require.NoError(t, err)
	buf := make([]byte, 10)
	n, err := f.Read(buf)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestFileSparseReadReturnsZeros(t *testing.T) {
	f, _, _ := newTestFile(t, 512, 64)
	_, err := f.Seek(1000, 0)
	require.NoError(t, err)
	_, err = f.Write([]byte("end"))
	require.NoError(t, err)
	require.Equal(t, uint64(1003), f.Inode.Size)

	_, err = f.Seek(0, 0)
	require.NoError(t, err)
	buf := make([]byte, 100)
	n, err := f.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 100, n)
	for _, b := range buf {
		require.Zero(t, b)
	}
}

func TestFileTruncateToZeroReleasesBlocks(t *testing.T) {
	f, _, _ := newTestFile(t, 512, 64)
	payload := make([]byte, 5000)
	_, err := f.Write(payload)
	require.NoError(t, err)
	require.NotZero(t, f.Inode.Blocks)

	require.NoError(t, f.Truncate(0))
	require.Zero(t, f.Inode.Blocks)
	require.Zero(t, f.Inode.Size)
}

func TestFileXattrSetGetRemove(t *testing.T) {
	f, _, _ := newTestFile(t, 512, 64)

	require.NoError(t, f.SetXattr("user.foo", []byte("bar")))
	v, err := f.GetXattr("user.foo")
	require.NoError(t, err)
	require.Equal(t, "bar", string(v))

	require.NoError(t, f.Flush())
	require.NotZero(t, f.Inode.XattrPtr)

	require.NoError(t, f.RemoveXattr("user.foo"))
	require.NoError(t, f.Flush())
	require.Zero(t, f.Inode.XattrPtr)
}
