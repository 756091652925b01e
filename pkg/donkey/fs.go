// Package donkey implements the handle manager (C8) and the public
// operation set it exposes: the single entry point every caller (the FUSE
// bridge, the inspect tool) goes through, per spec §4.8. It interns at
// most one file or directory object per inode number, drains deferred
// closes at safe points, and wires every mutating operation through the
// free-space allocator and superblock counters.
package donkey

import (
	"github.com/dkfs/donkey/pkg/alloc"
	"github.com/dkfs/donkey/pkg/block"
	"github.com/dkfs/donkey/pkg/device"
	"github.com/dkfs/donkey/pkg/directory"
	"github.com/dkfs/donkey/pkg/dkfile"
	"github.com/dkfs/donkey/pkg/donkeyerr"
	"github.com/dkfs/donkey/pkg/extent"
	"github.com/dkfs/donkey/pkg/inode"
)

type fileEntry struct {
	file *dkfile.File
	refs int
}

type dirEntry struct {
	dir  *directory.Directory
	refs int
}

// FS is a single mounted Donkey volume. It is not safe for concurrent use
// from multiple goroutines: the scheduling model is single-threaded
// cooperative, per spec §5.
type FS struct {
	dev    device.Device
	sb     *block.Superblock
	istore *inode.Store
	ialloc *alloc.List
	dballoc *alloc.List
	mapper *extent.Mapper

	files map[uint64]*fileEntry
	dirs  map[uint64]*dirEntry

	pendingDirClose  []uint64
	pendingFileClose []uint64
}

func newFS(dev device.Device, sb *block.Superblock) *FS {
	fs := &FS{
		dev:   dev,
		sb:    sb,
		files: map[uint64]*fileEntry{},
		dirs:  map[uint64]*dirEntry{},
	}
	fs.istore = inode.NewStore(dev)
	fs.ialloc = alloc.NewList(dev, block.InodeSize, &sb.InodeFlPtr, &sb.UsedInodeCount, sb.InodeCount, fs.flushSuperblock)
	fs.dballoc = alloc.NewList(dev, sb.BlockSize, &sb.DBFlPtr, &sb.UsedDBCount, sb.DBCount, fs.flushSuperblock)
	fs.mapper = extent.NewMapper(dev, fs.dballoc)
	return fs
}

func (fs *FS) flushSuperblock() error {
	return fs.dev.WriteAt(fs.sb.Encode(), block.SuperblockOffset)
}

// Mount opens an already-formatted device, validating the superblock
// magic, per §6.
func Mount(dev device.Device) (*FS, error) {
	raw, err := dev.ReadLenAt(block.SuperblockOffset, block.SuperblockRegionSize)
	if err != nil {
		return nil, err
	}
	sb, err := block.DecodeSuperblock(raw)
	if err != nil {
		return nil, err
	}
	return newFS(dev, sb), nil
}

// Format lays down a fresh superblock, seeds both free lists with a
// single run apiece, and creates the root directory, per §6's Format
// tool contract. bytesPerInode of 0 uses the default ratio (16384).
func Format(dev device.Device, bytesPerInode uint64) (*FS, error) {
	if bytesPerInode == 0 {
		bytesPerInode = block.DefaultBytesPerInode
	}
	blockSize := dev.BlockSize()
	inodeCount := dev.Size() / bytesPerInode

	stub := &block.Superblock{BlockSize: blockSize, InodeCount: inodeCount}
	firstDB := stub.FirstDataBlockPtr()
	dbCount := (dev.Size() - firstDB) / blockSize

	sb := block.NewSuperblock(blockSize, inodeCount, dbCount)
	fs := newFS(dev, sb)

	if err := alloc.InitRun(dev, sb.InodeFlPtr, block.InodeSize*inodeCount); err != nil {
		return nil, err
	}
	if err := alloc.InitRun(dev, sb.DBFlPtr, blockSize*dbCount); err != nil {
		return nil, err
	}
	if err := fs.flushSuperblock(); err != nil {
		return nil, err
	}

	if err := fs.createRoot(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FS) createRoot() error {
	ptr, err := fs.ialloc.Allocate()
	if err != nil {
		return err
	}
	rootIno := inode.Ino(ptr)
	if rootIno != block.RootInode {
		return donkeyerr.New(donkeyerr.Corrupted, "root inode allocated at %d, expected %d", rootIno, block.RootInode)
	}
	in := block.NewInode(rootIno, block.TypeDirectory|0755, 0, 0, 0, dkfile.Now())
	if err := fs.istore.Write(in); err != nil {
		return err
	}
	if err := fs.link(rootIno, rootIno, "."); err != nil {
		return err
	}
	return fs.link(rootIno, rootIno, "..")
}

// openFileInternal interns and returns the file object for ino, loading it
// from disk on first reference.
func (fs *FS) openFileInternal(ino uint64) (*dkfile.File, error) {
	if e, ok := fs.files[ino]; ok {
		e.refs++
		return e.file, nil
	}
	in, err := fs.istore.Read(ino)
	if err != nil {
		return nil, err
	}
	f, err := dkfile.Open(fs.dev, fs.mapper, fs.dballoc, fs.istore, in)
	if err != nil {
		return nil, err
	}
	fs.files[ino] = &fileEntry{file: f, refs: 1}
	return f, nil
}

func (fs *FS) releaseFileInternal(ino uint64) {
	e, ok := fs.files[ino]
	if !ok {
		return
	}
	e.refs--
	if e.refs == 0 {
		fs.pendingFileClose = append(fs.pendingFileClose, ino)
	}
}

// openDirInternal interns and returns the directory object for ino,
// holding a matching reference on the underlying file object so it stays
// live until the directory itself is closed, per §4.8.
func (fs *FS) openDirInternal(ino uint64) (*directory.Directory, error) {
	if e, ok := fs.dirs[ino]; ok {
		e.refs++
		return e.dir, nil
	}
	f, err := fs.openFileInternal(ino)
	if err != nil {
		return nil, err
	}
	d, err := directory.Open(f)
	if err != nil {
		fs.releaseFileInternal(ino)
		return nil, err
	}
	fs.dirs[ino] = &dirEntry{dir: d, refs: 1}
	return d, nil
}

func (fs *FS) releaseDirInternal(ino uint64) {
	e, ok := fs.dirs[ino]
	if !ok {
		return
	}
	e.refs--
	if e.refs == 0 {
		fs.pendingDirClose = append(fs.pendingDirClose, ino)
	}
}

// applyReleases drains both deferred-close lists, directories before
// files, per §4.8: "so directory flushes that extend the underlying file
// still have the file live." Only entries whose refcount is still zero
// (nobody reopened them since they were enqueued) are actually flushed and
// evicted.
func (fs *FS) applyReleases() error {
	dirQueue := fs.pendingDirClose
	fs.pendingDirClose = nil
	for _, ino := range dirQueue {
		e, ok := fs.dirs[ino]
		if !ok || e.refs != 0 {
			continue
		}
		if err := e.dir.Flush(); err != nil {
			return err
		}
		delete(fs.dirs, ino)
		fs.releaseFileInternal(ino)
	}

	fileQueue := fs.pendingFileClose
	fs.pendingFileClose = nil
	for _, ino := range fileQueue {
		e, ok := fs.files[ino]
		if !ok || e.refs != 0 {
			continue
		}
		if err := e.file.Flush(); err != nil {
			return err
		}
		if e.file.Inode.Nlink == 0 {
			if err := e.file.Destroy(fs.ialloc.Free); err != nil {
				return err
			}
		}
		delete(fs.files, ino)
	}
	return nil
}

// withFile opens ino's file object, runs fn, and releases it again,
// draining the resulting close immediately: the transient-open pattern
// used by every single-shot operation (getattr, setattr, link, xattr ops)
// that doesn't hand a long-lived handle back to the caller.
func (fs *FS) withFile(ino uint64, fn func(*dkfile.File) error) error {
	if err := fs.applyReleases(); err != nil {
		return err
	}
	f, err := fs.openFileInternal(ino)
	if err != nil {
		return err
	}
	ferr := fn(f)
	fs.releaseFileInternal(ino)
	if err := fs.applyReleases(); err != nil {
		if ferr != nil {
			return ferr
		}
		return err
	}
	return ferr
}

// withDir is withFile's counterpart for directory objects.
func (fs *FS) withDir(ino uint64, fn func(*directory.Directory) error) error {
	if err := fs.applyReleases(); err != nil {
		return err
	}
	d, err := fs.openDirInternal(ino)
	if err != nil {
		return err
	}
	derr := fn(d)
	fs.releaseDirInternal(ino)
	if err := fs.applyReleases(); err != nil {
		if derr != nil {
			return derr
		}
		return err
	}
	return derr
}

// Close drains both deferred-close lists a final time and closes the
// backing device. Per §4.8's shutdown contract, I/O errors encountered
// here have no caller left to report to; they are returned anyway so a
// caller that wants strict handling still can, but cmd/mtdonkey's
// shutdown path logs them to stderr and discards them rather than
// propagating past unmount.
func (fs *FS) Close() error {
	for ino := range fs.dirs {
		fs.pendingDirClose = append(fs.pendingDirClose, ino)
	}
	for ino := range fs.files {
		fs.pendingFileClose = append(fs.pendingFileClose, ino)
	}
	if err := fs.applyReleases(); err != nil {
		return err
	}
	return fs.dev.Close()
}
