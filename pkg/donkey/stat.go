package donkey

import "github.com/dkfs/donkey/pkg/block"

// Stat is the attribute tuple returned by getattr/lookup/mknod/mkdir/
// symlink, per spec §4.8's "typed result records" contract.
type Stat struct {
	Ino    uint64
	Mode   block.FileMode
	UID    uint32
	GID    uint32
	Nlink  uint64
	Size   uint64
	Blocks uint64 // 512-byte units, per §4.8's getattr contract
	Rdev   uint64
	Atime  block.Timestamp
	Mtime  block.Timestamp
	Ctime  block.Timestamp
	Crtime block.Timestamp
}

func buildStat(in *block.Inode, blockSize uint64) *Stat {
	s := &Stat{
		Ino:    in.Ino,
		Mode:   in.Mode,
		UID:    in.UID,
		GID:    in.GID,
		Nlink:  in.Nlink,
		Blocks: in.Blocks * (blockSize / 512),
		Atime:  in.Atime,
		Mtime:  in.Mtime,
		Ctime:  in.Ctime,
		Crtime: in.Crtime,
	}
	if in.Mode.IsDevice() {
		s.Rdev = in.Size
	} else {
		s.Size = in.Size
	}
	return s
}

// Statvfs snapshots the superblock's free-space counters, per §4.8's
// statfs contract.
type Statvfs struct {
	Blocks  uint64
	Bfree   uint64
	Bavail  uint64
	Files   uint64
	Ffree   uint64
	Bsize   uint64
	NameLen uint64
}

// Statfs returns a snapshot of the current superblock counters.
func (fs *FS) Statfs() *Statvfs {
	return &Statvfs{
		Blocks:  fs.sb.DBCount,
		Bfree:   fs.sb.DBCount - fs.sb.UsedDBCount,
		Bavail:  fs.sb.DBCount - fs.sb.UsedDBCount,
		Files:   fs.sb.InodeCount,
		Ffree:   fs.sb.InodeCount - fs.sb.UsedInodeCount,
		Bsize:   fs.sb.BlockSize,
		NameLen: block.MaxNameLength,
	}
}
