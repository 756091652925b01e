package inode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkfs/donkey/pkg/block"
	"github.com/dkfs/donkey/pkg/device"
)

func TestPtrInoRoundTrip(t *testing.T) {
	for _, ino := range []uint64{block.RootInode, block.RootInode + 1, block.RootInode + 2048} {
		require.Equal(t, ino, Ino(Ptr(ino)))
	}
}

func TestStoreReadWriteRoundTrip(t *testing.T) {
	dev := device.NewMemory(block.InodeTableOffset+block.InodeSize*4, 4096)
	s := NewStore(dev)

	in := block.NewInode(block.RootInode, block.TypeDirectory|0755, 0, 0, 2, block.Timestamp{Sec: 100})
	require.NoError(t, s.Write(in))

	got, err := s.Read(block.RootInode)
	require.NoError(t, err)
	require.Equal(t, in.Ino, got.Ino)
	require.Equal(t, in.Mode, got.Mode)
	require.Equal(t, in.Nlink, got.Nlink)
}
