package donkey

import (
	"io"

	"github.com/dkfs/donkey/pkg/block"
	"github.com/dkfs/donkey/pkg/directory"
	"github.com/dkfs/donkey/pkg/dkfile"
	"github.com/dkfs/donkey/pkg/donkeyerr"
)

// FileHandle is a long-lived reference to an open file object, returned
// by Open and released by the caller, per §4.8's open/release contract.
type FileHandle struct {
	fs    *FS
	Ino   uint64
	file  *dkfile.File
	flags block.OpenFlags
}

// Open interns (or reuses) the file object for ino and returns a handle
// to it, failing with Invalid for a malformed access-mode combination.
func (fs *FS) Open(ino uint64, flags block.OpenFlags) (*FileHandle, error) {
	if err := flags.Validate(); err != nil {
		return nil, err
	}
	if err := fs.applyReleases(); err != nil {
		return nil, err
	}
	f, err := fs.openFileInternal(ino)
	if err != nil {
		return nil, err
	}
	return &FileHandle{fs: fs, Ino: ino, file: f, flags: flags}, nil
}

// ReadAt reads starting at offset into buf.
func (h *FileHandle) ReadAt(buf []byte, offset int64) (int, error) {
	if !h.flags.Readable() {
		return 0, donkeyerr.New(donkeyerr.Invalid, "handle for ino %d is not open for reading", h.Ino)
	}
	if _, err := h.file.Seek(offset, io.SeekStart); err != nil {
		return 0, err
	}
	return h.file.Read(buf)
}

// WriteAt writes buf starting at offset.
func (h *FileHandle) WriteAt(buf []byte, offset int64) (int, error) {
	if !h.flags.Writable() {
		return 0, donkeyerr.New(donkeyerr.Invalid, "handle for ino %d is not open for writing", h.Ino)
	}
	if _, err := h.file.Seek(offset, io.SeekStart); err != nil {
		return 0, err
	}
	return h.file.Write(buf)
}

// Flush delegates to the underlying file object.
func (h *FileHandle) Flush() error { return h.file.Flush() }

// Fsync is a no-op when datasync is true, per §4.8: there is no data
// cache separate from the extent-cache, which is always flushed together
// with metadata.
func (h *FileHandle) Fsync(datasync bool) error {
	if datasync {
		return nil
	}
	return h.file.Flush()
}

// Release drops this handle's reference, enqueueing the inode for
// deferred close once every other reference has also gone.
func (h *FileHandle) Release() error {
	h.fs.releaseFileInternal(h.Ino)
	return h.fs.applyReleases()
}

// DirHandle is a long-lived reference to an open directory object.
type DirHandle struct {
	fs  *FS
	Ino uint64
	dir *directory.Directory
}

// OpenDir interns (or reuses) the directory object for ino, per §4.8:
// "opens the underlying file read-write and wraps it as a directory,
// reading its body."
func (fs *FS) OpenDir(ino uint64) (*DirHandle, error) {
	if err := fs.applyReleases(); err != nil {
		return nil, err
	}
	d, err := fs.openDirInternal(ino)
	if err != nil {
		return nil, err
	}
	return &DirHandle{fs: fs, Ino: ino, dir: d}, nil
}

// Readdir produces every (name, ino) pair starting at the offset-th
// entry in the current in-memory ordered map; finite, not restartable
// across mutations, per §4.8.
func (h *DirHandle) Readdir(offset int) []directory.Entry {
	return h.dir.List(offset)
}

// Fsyncdir is a no-op when datasync is true, matching FileHandle.Fsync.
func (h *DirHandle) Fsyncdir(datasync bool) error {
	if datasync {
		return nil
	}
	return h.dir.Flush()
}

// Release drops this handle's reference, enqueueing the inode for
// deferred close.
func (h *DirHandle) Release() error {
	h.fs.releaseDirInternal(h.Ino)
	return h.fs.applyReleases()
}
