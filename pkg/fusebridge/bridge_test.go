package fusebridge

import (
	"testing"

	"github.com/jacobsa/fuse"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"

	"github.com/dkfs/donkey/pkg/block"
	"github.com/dkfs/donkey/pkg/device"
	"github.com/dkfs/donkey/pkg/donkey"
)

func newTestBridge(t *testing.T) *Bridge {
	t.Helper()
	dev := device.NewMemory(4*1024*1024, 512)
	fs, err := donkey.Format(dev, 0)
	require.NoError(t, err)
	return New(fs)
}

func TestRootInodeAliasing(t *testing.T) {
	require.Equal(t, fuse.InodeID(fuse.RootInodeID), toFuseIno(block.RootInode))
	require.Equal(t, uint64(block.RootInode), toDonkeyIno(fuse.RootInodeID))

	require.Equal(t, fuse.InodeID(42), toFuseIno(42))
	require.Equal(t, uint64(42), toDonkeyIno(42))
}

func TestMkDirAndLookUpInode(t *testing.T) {
	b := newTestBridge(t)
	ctx := context.Background()

	mkResp, err := b.MkDir(ctx, &fuse.MkDirRequest{
		Parent: fuse.RootInodeID,
		Name:   "Homura",
		Mode:   0755,
	})
	require.NoError(t, err)
	require.True(t, mkResp.Entry.Attributes.Mode.IsDir())

	lookResp, err := b.LookUpInode(ctx, &fuse.LookUpInodeRequest{
		Parent: fuse.RootInodeID,
		Name:   "Homura",
	})
	require.NoError(t, err)
	require.Equal(t, mkResp.Entry.Child, lookResp.Entry.Child)

	_, err = b.LookUpInode(ctx, &fuse.LookUpInodeRequest{
		Parent: fuse.RootInodeID,
		Name:   "missing",
	})
	require.Equal(t, fuse.ENOENT, err)
}

func TestCreateWriteReadFile(t *testing.T) {
	b := newTestBridge(t)
	ctx := context.Background()

	createResp, err := b.CreateFile(ctx, &fuse.CreateFileRequest{
		Parent: fuse.RootInodeID,
		Name:   "note.txt",
		Mode:   0644,
	})
	require.NoError(t, err)
	require.True(t, createResp.Entry.Attributes.Mode.IsRegular())

	_, err = b.WriteFile(ctx, &fuse.WriteFileRequest{
		Inode:  createResp.Entry.Child,
		Handle: createResp.Handle,
		Offset: 0,
		Data:   []byte("hello donkey"),
	})
	require.NoError(t, err)

	readResp, err := b.ReadFile(ctx, &fuse.ReadFileRequest{
		Inode:  createResp.Entry.Child,
		Handle: createResp.Handle,
		Offset: 0,
		Size:   12,
	})
	require.NoError(t, err)
	require.Equal(t, "hello donkey", string(readResp.Data))

	_, err = b.FlushFile(ctx, &fuse.FlushFileRequest{
		Inode:  createResp.Entry.Child,
		Handle: createResp.Handle,
	})
	require.NoError(t, err)

	_, err = b.ReleaseFileHandle(ctx, &fuse.ReleaseFileHandleRequest{Handle: createResp.Handle})
	require.NoError(t, err)
}

func TestUnlinkRemovesEntry(t *testing.T) {
	b := newTestBridge(t)
	ctx := context.Background()

	createResp, err := b.CreateFile(ctx, &fuse.CreateFileRequest{
		Parent: fuse.RootInodeID,
		Name:   "gone.txt",
		Mode:   0644,
	})
	require.NoError(t, err)
	_, err = b.ReleaseFileHandle(ctx, &fuse.ReleaseFileHandleRequest{Handle: createResp.Handle})
	require.NoError(t, err)

	_, err = b.Unlink(ctx, &fuse.UnlinkRequest{Parent: fuse.RootInodeID, Name: "gone.txt"})
	require.NoError(t, err)

	_, err = b.LookUpInode(ctx, &fuse.LookUpInodeRequest{Parent: fuse.RootInodeID, Name: "gone.txt"})
	require.Equal(t, fuse.ENOENT, err)
}

func TestReadDirListsEntries(t *testing.T) {
	b := newTestBridge(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		_, err := b.CreateFile(ctx, &fuse.CreateFileRequest{
			Parent: fuse.RootInodeID,
			Name:   name,
			Mode:   0644,
		})
		require.NoError(t, err)
	}

	openResp, err := b.OpenDir(ctx, &fuse.OpenDirRequest{Inode: fuse.RootInodeID})
	require.NoError(t, err)

	readResp, err := b.ReadDir(ctx, &fuse.ReadDirRequest{
		Handle: openResp.Handle,
		Offset: 0,
		Size:   4096,
	})
	require.NoError(t, err)
	require.NotEmpty(t, readResp.Data)

	_, err = b.ReleaseDirHandle(ctx, &fuse.ReleaseDirHandleRequest{Handle: openResp.Handle})
	require.NoError(t, err)
}

func TestSetInodeAttributesAppliesSize(t *testing.T) {
	b := newTestBridge(t)
	ctx := context.Background()

	createResp, err := b.CreateFile(ctx, &fuse.CreateFileRequest{
		Parent: fuse.RootInodeID,
		Name:   "sized.txt",
		Mode:   0644,
	})
	require.NoError(t, err)

	size := uint64(100)
	setResp, err := b.SetInodeAttributes(ctx, &fuse.SetInodeAttributesRequest{
		Inode: createResp.Entry.Child,
		Size:  &size,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(100), setResp.Attributes.Size)
}
