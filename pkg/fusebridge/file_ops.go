package fusebridge

import (
	"syscall"

	"github.com/jacobsa/fuse"
	"golang.org/x/net/context"

	"github.com/dkfs/donkey/pkg/block"
)

// accessFlags translates the O_ACCMODE bits of a kernel open(2) call into
// the access mode block.OpenFlags expects, per fuse2dk.rs's flags().
func accessFlags(f uint32) block.OpenFlags {
	switch f & syscall.O_ACCMODE {
	case syscall.O_WRONLY:
		return block.WriteOnly
	case syscall.O_RDWR:
		return block.ReadWrite
	default:
		return block.ReadOnly
	}
}

func (b *Bridge) CreateFile(
	ctx context.Context,
	req *fuse.CreateFileRequest) (*fuse.CreateFileResponse, error) {
	mode := fromOSMode(req.Mode)&^block.TypeMask | block.TypeRegularFile
	s, err := b.fs.Mknod(req.Header.Uid, req.Header.Gid, toDonkeyIno(req.Parent), req.Name, mode, 0)
	if err != nil {
		return nil, errnoFor(err)
	}
	h, err := b.fs.Open(s.Ino, block.ReadWrite)
	if err != nil {
		return nil, errnoFor(err)
	}
	return &fuse.CreateFileResponse{
		Entry:  b.childEntry(s),
		Handle: b.putFileHandle(h),
	}, nil
}

func (b *Bridge) Unlink(
	ctx context.Context,
	req *fuse.UnlinkRequest) (*fuse.UnlinkResponse, error) {
	if err := b.fs.Unlink(toDonkeyIno(req.Parent), req.Name); err != nil {
		return nil, errnoFor(err)
	}
	return &fuse.UnlinkResponse{}, nil
}

func (b *Bridge) OpenFile(
	ctx context.Context,
	req *fuse.OpenFileRequest) (*fuse.OpenFileResponse, error) {
	h, err := b.fs.Open(toDonkeyIno(req.Inode), accessFlags(uint32(req.Flags)))
	if err != nil {
		return nil, errnoFor(err)
	}
	return &fuse.OpenFileResponse{Handle: b.putFileHandle(h)}, nil
}

func (b *Bridge) ReadFile(
	ctx context.Context,
	req *fuse.ReadFileRequest) (*fuse.ReadFileResponse, error) {
	h := b.getFileHandle(req.Handle)
	if h == nil {
		return nil, fuse.EIO
	}
	buf := make([]byte, req.Size)
	n, err := h.ReadAt(buf, req.Offset)
	if err != nil && n == 0 {
		return nil, errnoFor(err)
	}
	return &fuse.ReadFileResponse{Data: buf[:n]}, nil
}

func (b *Bridge) WriteFile(
	ctx context.Context,
	req *fuse.WriteFileRequest) (*fuse.WriteFileResponse, error) {
	h := b.getFileHandle(req.Handle)
	if h == nil {
		return nil, fuse.EIO
	}
	if _, err := h.WriteAt(req.Data, req.Offset); err != nil {
		return nil, errnoFor(err)
	}
	return &fuse.WriteFileResponse{}, nil
}

func (b *Bridge) SyncFile(
	ctx context.Context,
	req *fuse.SyncFileRequest) (*fuse.SyncFileResponse, error) {
	h := b.getFileHandle(req.Handle)
	if h == nil {
		return nil, fuse.EIO
	}
	if err := h.Fsync(false); err != nil {
		return nil, errnoFor(err)
	}
	return &fuse.SyncFileResponse{}, nil
}

func (b *Bridge) FlushFile(
	ctx context.Context,
	req *fuse.FlushFileRequest) (*fuse.FlushFileResponse, error) {
	h := b.getFileHandle(req.Handle)
	if h == nil {
		return nil, fuse.EIO
	}
	if err := h.Flush(); err != nil {
		return nil, errnoFor(err)
	}
	return &fuse.FlushFileResponse{}, nil
}

func (b *Bridge) ReleaseFileHandle(
	ctx context.Context,
	req *fuse.ReleaseFileHandleRequest) (*fuse.ReleaseFileHandleResponse, error) {
	h := b.takeFileHandle(req.Handle)
	if h == nil {
		return &fuse.ReleaseFileHandleResponse{}, nil
	}
	if err := h.Release(); err != nil {
		return nil, errnoFor(err)
	}
	return &fuse.ReleaseFileHandleResponse{}, nil
}
