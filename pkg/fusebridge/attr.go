package fusebridge

import (
	"os"
	"time"

	"github.com/jacobsa/fuse"

	"github.com/dkfs/donkey/pkg/block"
	"github.com/dkfs/donkey/pkg/donkey"
)

// farFuture is the attribute/entry cache expiration handed back on every
// response: nothing outside this process mutates the backing device, so
// the kernel may cache indefinitely, mirroring jacobsa-fuse/samples/memfs's
// "we don't spontaneously mutate" reasoning.
func farFuture() time.Time {
	return time.Now().Add(365 * 24 * time.Hour)
}

// toOSMode translates a Donkey on-disk mode into the os.FileMode shape the
// older jacobsa/fuse interface exchanges, transcribed from
// original_source/mtdk/src/dk2fuse.rs's file_type/permission pair.
func toOSMode(m block.FileMode) os.FileMode {
	perm := os.FileMode(m & block.PermissionMask)
	if m&block.Setuid != 0 {
		perm |= os.ModeSetuid
	}
	if m&block.Setgid != 0 {
		perm |= os.ModeSetgid
	}
	if m&block.Sticky != 0 {
		perm |= os.ModeSticky
	}

	switch m.Type() {
	case block.TypeDirectory:
		return perm | os.ModeDir
	case block.TypeSymbolicLink:
		return perm | os.ModeSymlink
	case block.TypeFIFO:
		return perm | os.ModeNamedPipe
	case block.TypeSocket:
		return perm | os.ModeSocket
	case block.TypeCharacterDevice:
		return perm | os.ModeDevice | os.ModeCharDevice
	case block.TypeBlockDevice:
		return perm | os.ModeDevice
	default:
		return perm
	}
}

// fromOSMode is toOSMode's inverse, transcribed from
// original_source/mtdk/src/fuse2dk.rs's file_mode.
func fromOSMode(m os.FileMode) block.FileMode {
	perm := block.FileMode(m.Perm())
	if m&os.ModeSetuid != 0 {
		perm |= block.Setuid
	}
	if m&os.ModeSetgid != 0 {
		perm |= block.Setgid
	}
	if m&os.ModeSticky != 0 {
		perm |= block.Sticky
	}

	switch {
	case m&os.ModeDir != 0:
		return perm | block.TypeDirectory
	case m&os.ModeSymlink != 0:
		return perm | block.TypeSymbolicLink
	case m&os.ModeNamedPipe != 0:
		return perm | block.TypeFIFO
	case m&os.ModeSocket != 0:
		return perm | block.TypeSocket
	case m&os.ModeCharDevice != 0:
		return perm | block.TypeCharacterDevice
	case m&os.ModeDevice != 0:
		return perm | block.TypeBlockDevice
	default:
		return perm | block.TypeRegularFile
	}
}

func toTime(t block.Timestamp) time.Time {
	return time.Unix(t.Sec, int64(t.Nsec))
}

func fromTime(t time.Time) block.Timestamp {
	return block.Timestamp{Sec: t.Unix(), Nsec: uint32(t.Nanosecond())}
}

func toAttrs(s *donkey.Stat) fuse.InodeAttributes {
	return fuse.InodeAttributes{
		Size:   s.Size,
		Nlink:  s.Nlink,
		Mode:   toOSMode(s.Mode),
		Atime:  toTime(s.Atime),
		Mtime:  toTime(s.Mtime),
		Ctime:  toTime(s.Ctime),
		Crtime: toTime(s.Crtime),
		Uid:    s.UID,
		Gid:    s.GID,
	}
}
