package donkey

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkfs/donkey/pkg/block"
	"github.com/dkfs/donkey/pkg/device"
)

func newTestFS(t *testing.T, size, blockSize uint64) *FS {
	t.Helper()
	dev := device.NewMemory(size, blockSize)
	fs, err := Format(dev, 0)
	require.NoError(t, err)
	return fs
}

func TestFormatAndStatfsMatchesSpecScenario(t *testing.T) {
	fs := newTestFS(t, 32*1024*1024, 4096)
	sv := fs.Statfs()
	require.Equal(t, uint64(8063), sv.Blocks)
	require.Equal(t, uint64(8062), sv.Bfree)
	require.Equal(t, uint64(8062), sv.Bavail)
	require.Equal(t, uint64(2048), sv.Files)
	require.Equal(t, uint64(2047), sv.Ffree)
	require.Equal(t, uint64(4096), sv.Bsize)
	require.Equal(t, uint64(256), sv.NameLen)
}

func TestRootGetattrMatchesSpecScenario(t *testing.T) {
	fs := newTestFS(t, 32*1024*1024, 4096)
	s, err := fs.Getattr(block.RootInode)
	require.NoError(t, err)
	require.Equal(t, block.RootInode, s.Ino)
	require.True(t, s.Mode.IsDirectory())
	require.Zero(t, s.UID)
	require.Zero(t, s.GID)
	require.Zero(t, s.Rdev)
	require.Equal(t, uint64(2), s.Nlink)
}

func TestMkdirAndLookup(t *testing.T) {
	fs := newTestFS(t, 4*1024*1024, 512)
	s, err := fs.Mkdir(block.RootInode, 0, 0, "Homura", block.AllRWX)
	require.NoError(t, err)
	require.True(t, s.Mode.IsDirectory())
	require.Equal(t, uint64(2), s.Nlink)

	found, err := fs.Lookup(block.RootInode, "Homura")
	require.NoError(t, err)
	require.Equal(t, s.Ino, found.Ino)

	_, err = fs.Mkdir(block.RootInode, 0, 0, "Homura", block.AllRWX)
	require.Error(t, err)
}

func TestRmdirSafety(t *testing.T) {
	fs := newTestFS(t, 4*1024*1024, 512)
	dir, err := fs.Mkdir(block.RootInode, 0, 0, "Homura", block.AllRWX)
	require.NoError(t, err)

	_, err = fs.Mknod(0, 0, dir.Ino, "Madoka", block.TypeRegularFile|0644, 0)
	require.NoError(t, err)

	err = fs.Rmdir(block.RootInode, "Homura")
	require.Error(t, err)

	require.NoError(t, fs.Unlink(dir.Ino, "Madoka"))
	require.NoError(t, fs.Rmdir(block.RootInode, "Homura"))

	_, err = fs.Lookup(block.RootInode, "Homura")
	require.Error(t, err)
}

func TestReaddirTraversal(t *testing.T) {
	fs := newTestFS(t, 8*1024*1024, 512)
	names := []string{"a", "b", "c", "d"}
	for _, n := range names {
		_, err := fs.Mknod(0, 0, block.RootInode, n, block.TypeRegularFile|0644, 0)
		require.NoError(t, err)
	}

	h, err := fs.OpenDir(block.RootInode)
	require.NoError(t, err)
	entries := h.Readdir(0)
	require.NoError(t, h.Release())

	seen := map[string]bool{}
	for _, e := range entries {
		seen[e.Name] = true
	}
	for _, n := range names {
		require.True(t, seen[n], "missing entry %q", n)
	}
	require.True(t, seen["."])
	require.True(t, seen[".."])
}

func TestFileWriteReadThroughHandles(t *testing.T) {
	fs := newTestFS(t, 4*1024*1024, 512)
	s, err := fs.Mknod(0, 0, block.RootInode, "note.txt", block.TypeRegularFile|0644, 0)
	require.NoError(t, err)

	wh, err := fs.Open(s.Ino, block.WriteOnly)
	require.NoError(t, err)
	n, err := wh.WriteAt([]byte("hello donkey"), 0)
	require.NoError(t, err)
	require.Equal(t, 12, n)
	require.NoError(t, wh.Release())

	rh, err := fs.Open(s.Ino, block.ReadOnly)
	require.NoError(t, err)
	buf := make([]byte, 12)
	n, err = rh.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, 12, n)
	require.Equal(t, "hello donkey", string(buf))
	require.NoError(t, rh.Release())
}

func TestUnlinkReleasesBlocksOnClose(t *testing.T) {
	fs := newTestFS(t, 4*1024*1024, 512)
	before := fs.Statfs()

	s, err := fs.Mknod(0, 0, block.RootInode, "tmp.bin", block.TypeRegularFile|0644, 0)
	require.NoError(t, err)
	h, err := fs.Open(s.Ino, block.WriteOnly)
	require.NoError(t, err)
	_, err = h.WriteAt(make([]byte, 3000), 0)
	require.NoError(t, err)
	require.NoError(t, h.Release())

	require.NoError(t, fs.Unlink(block.RootInode, "tmp.bin"))

	after := fs.Statfs()
	require.Equal(t, before.Bfree, after.Bfree)
}

func TestSymlinkBody(t *testing.T) {
	fs := newTestFS(t, 4*1024*1024, 512)
	target := "/暮美ほむら"
	s, err := fs.Symlink(0, 0, block.RootInode, "Homura", target)
	require.NoError(t, err)
	require.True(t, s.Mode.IsSymlink())

	h, err := fs.Open(s.Ino, block.ReadOnly)
	require.NoError(t, err)
	buf := make([]byte, s.Size)
	n, err := h.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, target, string(buf[:n]))
	require.NoError(t, h.Release())
}

func TestXattrRoundTrip(t *testing.T) {
	fs := newTestFS(t, 4*1024*1024, 512)
	s, err := fs.Mknod(0, 0, block.RootInode, "f", block.TypeRegularFile|0644, 0)
	require.NoError(t, err)

	require.NoError(t, fs.Setxattr(s.Ino, "user.note", []byte("value")))
	v, err := fs.Getxattr(s.Ino, "user.note")
	require.NoError(t, err)
	require.Equal(t, "value", string(v))

	names, err := fs.Listxattr(s.Ino)
	require.NoError(t, err)
	require.Contains(t, names, "user.note")

	require.NoError(t, fs.Removexattr(s.Ino, "user.note"))
	_, err = fs.Getxattr(s.Ino, "user.note")
	require.Error(t, err)
}

func TestRenameMovesEntry(t *testing.T) {
	fs := newTestFS(t, 4*1024*1024, 512)
	dir, err := fs.Mkdir(block.RootInode, 0, 0, "dest", block.AllRWX)
	require.NoError(t, err)
	s, err := fs.Mknod(0, 0, block.RootInode, "src.txt", block.TypeRegularFile|0644, 0)
	require.NoError(t, err)

	require.NoError(t, fs.Rename(block.RootInode, "src.txt", dir.Ino, "moved.txt"))

	_, err = fs.Lookup(block.RootInode, "src.txt")
	require.Error(t, err)

	found, err := fs.Lookup(dir.Ino, "moved.txt")
	require.NoError(t, err)
	require.Equal(t, s.Ino, found.Ino)
}
