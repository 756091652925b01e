package fusebridge

import (
	"syscall"

	bazilfuse "bazil.org/fuse"
	"github.com/jacobsa/fuse"

	"github.com/dkfs/donkey/pkg/donkeyerr"
)

// errnoFor maps a Donkey error kind to the errno the kernel expects, per
// original_source/mtdk/src/dk2fuse.rs's errno() table. jacobsa/fuse's fuse
// package only predefines EIO/ENOENT/ENOSYS/ENOTEMPTY; the rest are built
// the same way errors.go itself builds ENOTEMPTY, wrapping a raw syscall
// errno in bazilfuse.Errno.
func errnoFor(err error) error {
	if err == nil {
		return nil
	}
	de, ok := err.(*donkeyerr.Error)
	if !ok {
		return bazilfuse.Errno(syscall.EIO)
	}
	switch de.Kind {
	case donkeyerr.IOError, donkeyerr.Corrupted:
		return fuse.EIO
	case donkeyerr.Exhausted:
		return bazilfuse.Errno(syscall.EDQUOT)
	case donkeyerr.NotSupported:
		return fuse.ENOSYS
	case donkeyerr.NotFound:
		return fuse.ENOENT
	case donkeyerr.NotEmpty:
		return fuse.ENOTEMPTY
	case donkeyerr.NotDirectory:
		return bazilfuse.Errno(syscall.ENOTDIR)
	case donkeyerr.AlreadyExists:
		return bazilfuse.Errno(syscall.EEXIST)
	case donkeyerr.NameTooLong:
		return bazilfuse.Errno(syscall.ENAMETOOLONG)
	case donkeyerr.Invalid:
		return bazilfuse.Errno(syscall.EINVAL)
	default:
		return bazilfuse.Errno(syscall.EIO)
	}
}
