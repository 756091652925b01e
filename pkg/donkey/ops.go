package donkey

import (
	"github.com/dkfs/donkey/pkg/block"
	"github.com/dkfs/donkey/pkg/directory"
	"github.com/dkfs/donkey/pkg/dkfile"
	"github.com/dkfs/donkey/pkg/donkeyerr"
	"github.com/dkfs/donkey/pkg/inode"
)

// Getattr opens ino read-only and synthesizes a stat tuple, per §4.8.
func (fs *FS) Getattr(ino uint64) (*Stat, error) {
	var s *Stat
	err := fs.withFile(ino, func(f *dkfile.File) error {
		s = buildStat(f.Inode, fs.sb.BlockSize)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// SetattrRequest carries the optional fields accepted by Setattr; a nil
// field is left unchanged.
type SetattrRequest struct {
	Mode   *block.FileMode
	UID    *uint32
	GID    *uint32
	Size   *uint64
	Atime  *block.Timestamp
	Mtime  *block.Timestamp
	Ctime  *block.Timestamp
	Crtime *block.Timestamp
}

// Setattr applies every non-nil field in req, per §4.8: changing size
// truncates/extends, and if any field changed and Ctime was not given
// explicitly, ctime is set to now.
func (fs *FS) Setattr(ino uint64, req SetattrRequest) (*Stat, error) {
	var s *Stat
	err := fs.withFile(ino, func(f *dkfile.File) error {
		changed := false
		if req.Mode != nil {
			f.Inode.Mode = (f.Inode.Mode & block.TypeMask) | (*req.Mode &^ block.TypeMask)
			changed = true
		}
		if req.UID != nil {
			f.Inode.UID = *req.UID
			changed = true
		}
		if req.GID != nil {
			f.Inode.GID = *req.GID
			changed = true
		}
		if req.Size != nil {
			if err := f.Truncate(*req.Size); err != nil {
				return err
			}
			changed = true
		}
		if req.Atime != nil {
			f.Inode.Atime = *req.Atime
			changed = true
		}
		if req.Mtime != nil {
			f.Inode.Mtime = *req.Mtime
			changed = true
		}
		if req.Crtime != nil {
			f.Inode.Crtime = *req.Crtime
			changed = true
		}
		if req.Ctime != nil {
			f.Inode.Ctime = *req.Ctime
		} else if changed {
			f.Inode.Ctime = dkfile.Now()
		}
		if changed || req.Ctime != nil {
			f.MarkDirty()
		}
		s = buildStat(f.Inode, fs.sb.BlockSize)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Lookup resolves name within parent, returning NotFound if absent.
func (fs *FS) Lookup(parent uint64, name string) (*Stat, error) {
	if err := block.ValidateName(name); err != nil {
		return nil, err
	}
	var ino uint64
	err := fs.withDir(parent, func(d *directory.Directory) error {
		found, ok := d.Lookup(name)
		if !ok {
			return donkeyerr.New(donkeyerr.NotFound, "no entry %q in directory %d", name, parent)
		}
		ino = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fs.Getattr(ino)
}

// link adds a directory entry (targetIno under name in dirIno) and
// increments targetIno's link count, per §4.8's `link` contract. The
// increment happens first so a freshly allocated zero-nlink inode is
// never transiently visible at nlink==0 to a concurrent drain between the
// two steps (see createRoot/Mkdir/Mknod, all built on this primitive).
func (fs *FS) link(targetIno, dirIno uint64, name string) error {
	if err := fs.withFile(targetIno, func(f *dkfile.File) error {
		f.Inode.Nlink++
		f.Inode.Ctime = dkfile.Now()
		f.MarkDirty()
		return nil
	}); err != nil {
		return err
	}
	return fs.withDir(dirIno, func(d *directory.Directory) error {
		return d.Add(name, targetIno)
	})
}

// Link hard-links an existing inode into a new directory entry.
func (fs *FS) Link(ino, parent uint64, name string) (*Stat, error) {
	if err := block.ValidateName(name); err != nil {
		return nil, err
	}
	if err := fs.checkNameFree(parent, name); err != nil {
		return nil, err
	}
	if err := fs.link(ino, parent, name); err != nil {
		return nil, err
	}
	return fs.Getattr(ino)
}

// unlink removes name from dirIno's body and decrements the nlink of
// whatever inode it named, per §4.8's `unlink` contract. Destruction is
// deferred to close.
func (fs *FS) unlink(dirIno uint64, name string) error {
	var targetIno uint64
	err := fs.withDir(dirIno, func(d *directory.Directory) error {
		found, ok := d.Remove(name)
		if !ok {
			return donkeyerr.New(donkeyerr.NotFound, "no entry %q in directory %d", name, dirIno)
		}
		targetIno = found
		return nil
	})
	if err != nil {
		return err
	}
	return fs.withFile(targetIno, func(f *dkfile.File) error {
		f.Inode.Nlink--
		f.Inode.Ctime = dkfile.Now()
		f.MarkDirty()
		return nil
	})
}

// Unlink removes name from parent.
func (fs *FS) Unlink(parent uint64, name string) error {
	if err := block.ValidateName(name); err != nil {
		return err
	}
	return fs.unlink(parent, name)
}

// allocateInode allocates an inode slot and writes a zero-nlink image for
// it directly (bypassing the handle tables, since a zero-nlink object
// must never be visible to a close-time destroy check before its first
// link() call has run). initialSize seeds the size/rdev field.
func (fs *FS) allocateInode(mode block.FileMode, uid, gid uint32, initialSize uint64) (uint64, error) {
	ptr, err := fs.ialloc.Allocate()
	if err != nil {
		return 0, err
	}
	ino := inode.Ino(ptr)
	in := block.NewInode(ino, mode, uid, gid, 0, dkfile.Now())
	in.Size = initialSize
	if err := fs.istore.Write(in); err != nil {
		return 0, err
	}
	return ino, nil
}

func (fs *FS) checkNameFree(parent uint64, name string) error {
	return fs.withDir(parent, func(d *directory.Directory) error {
		if _, ok := d.Lookup(name); ok {
			return donkeyerr.New(donkeyerr.AlreadyExists, "entry %q already exists", name)
		}
		return nil
	})
}

// mknodInternal allocates a new inode of the given mode, links it into
// parent under name, and returns its inode number. rdev is stored in the
// inode's size field for device nodes, per §3's shared-field note.
func (fs *FS) mknodInternal(uid, gid uint32, parent uint64, name string, mode block.FileMode, rdev uint64) (uint64, error) {
	if err := block.ValidateName(name); err != nil {
		return 0, err
	}
	if err := fs.checkNameFree(parent, name); err != nil {
		return 0, err
	}
	ino, err := fs.allocateInode(mode, uid, gid, rdev)
	if err != nil {
		return 0, err
	}
	if err := fs.link(ino, parent, name); err != nil {
		fs.ialloc.Free(inode.Ptr(ino))
		return 0, err
	}
	return ino, nil
}

// Mknod allocates a new inode and links it into parent under name.
func (fs *FS) Mknod(uid, gid uint32, parent uint64, name string, mode block.FileMode, rdev uint64) (*Stat, error) {
	ino, err := fs.mknodInternal(uid, gid, parent, name, mode, rdev)
	if err != nil {
		return nil, err
	}
	return fs.Getattr(ino)
}

// Mkdir allocates a new directory inode, wires up `.` and `..`, and links
// it into parent under name, per §4.8's mkdir contract.
func (fs *FS) Mkdir(parent uint64, uid, gid uint32, name string, mode block.FileMode) (*Stat, error) {
	if err := block.ValidateName(name); err != nil {
		return nil, err
	}
	if err := fs.checkNameFree(parent, name); err != nil {
		return nil, err
	}
	dirMode := (mode &^ block.TypeMask) | block.TypeDirectory
	ino, err := fs.allocateInode(dirMode, uid, gid, 0)
	if err != nil {
		return nil, err
	}
	if err := fs.link(ino, ino, "."); err != nil {
		fs.ialloc.Free(inode.Ptr(ino))
		return nil, err
	}
	if err := fs.link(parent, ino, ".."); err != nil {
		fs.ialloc.Free(inode.Ptr(ino))
		return nil, err
	}
	if err := fs.link(ino, parent, name); err != nil {
		fs.ialloc.Free(inode.Ptr(ino))
		return nil, err
	}
	return fs.Getattr(ino)
}

// Rmdir refuses with NotEmpty unless the named directory contains only
// `.` and `..`, then unlinks both and the entry in parent, per §4.8.
func (fs *FS) Rmdir(parent uint64, name string) error {
	if err := block.ValidateName(name); err != nil {
		return err
	}
	var childIno uint64
	err := fs.withDir(parent, func(d *directory.Directory) error {
		found, ok := d.Lookup(name)
		if !ok {
			return donkeyerr.New(donkeyerr.NotFound, "no entry %q in directory %d", name, parent)
		}
		childIno = found
		return nil
	})
	if err != nil {
		return err
	}

	var empty bool
	if err := fs.withDir(childIno, func(d *directory.Directory) error {
		empty = d.IsEmpty()
		return nil
	}); err != nil {
		return err
	}
	if !empty {
		return donkeyerr.New(donkeyerr.NotEmpty, "directory %d is not empty", childIno)
	}

	if err := fs.unlink(childIno, "."); err != nil {
		return err
	}
	if err := fs.unlink(childIno, ".."); err != nil {
		return err
	}
	return fs.unlink(parent, name)
}

// Rename moves oldName under oldParent to newName under newParent,
// implemented as link-then-unlink per §4.8. It does not replace an
// existing target: a collision in newParent fails with AlreadyExists.
func (fs *FS) Rename(oldParent uint64, oldName string, newParent uint64, newName string) error {
	if err := block.ValidateName(oldName); err != nil {
		return err
	}
	if err := block.ValidateName(newName); err != nil {
		return err
	}
	var ino uint64
	err := fs.withDir(oldParent, func(d *directory.Directory) error {
		found, ok := d.Lookup(oldName)
		if !ok {
			return donkeyerr.New(donkeyerr.NotFound, "no entry %q in directory %d", oldName, oldParent)
		}
		ino = found
		return nil
	})
	if err != nil {
		return err
	}
	if err := fs.checkNameFree(newParent, newName); err != nil {
		return err
	}
	if err := fs.link(ino, newParent, newName); err != nil {
		return err
	}
	return fs.unlink(oldParent, oldName)
}

// Symlink creates a symbolic-link inode and writes target's UTF-8 bytes
// as its body, per §4.8.
func (fs *FS) Symlink(uid, gid uint32, parent uint64, name, target string) (*Stat, error) {
	ino, err := fs.mknodInternal(uid, gid, parent, name, block.TypeSymbolicLink|block.AllRWX, 0)
	if err != nil {
		return nil, err
	}
	if err := fs.withFile(ino, func(f *dkfile.File) error {
		_, err := f.Write([]byte(target))
		return err
	}); err != nil {
		return nil, err
	}
	return fs.Getattr(ino)
}

// Getxattr returns the value stored under name on ino.
func (fs *FS) Getxattr(ino uint64, name string) ([]byte, error) {
	var v []byte
	err := fs.withFile(ino, func(f *dkfile.File) error {
		got, err := f.GetXattr(name)
		v = got
		return err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Setxattr stores name=value on ino.
func (fs *FS) Setxattr(ino uint64, name string, value []byte) error {
	return fs.withFile(ino, func(f *dkfile.File) error {
		return f.SetXattr(name, value)
	})
}

// Listxattr returns every attribute name stored on ino.
func (fs *FS) Listxattr(ino uint64) ([]string, error) {
	var names []string
	err := fs.withFile(ino, func(f *dkfile.File) error {
		names = f.ListXattr()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// Removexattr deletes name from ino's xattr map.
func (fs *FS) Removexattr(ino uint64, name string) error {
	return fs.withFile(ino, func(f *dkfile.File) error {
		return f.RemoveXattr(name)
	})
}
