package fusebridge

import (
	"encoding/binary"

	"github.com/jacobsa/fuse"
	"golang.org/x/net/context"

	"github.com/dkfs/donkey/pkg/block"
)

// Linux dirent type nibbles (include/linux/fs.h DT_*), used to build the
// raw fuse_dirent records ReadDir must return.
const (
	dtUnknown = 0
	dtFIFO    = 1
	dtChr     = 2
	dtDir     = 4
	dtBlk     = 6
	dtReg     = 8
	dtLnk     = 10
	dtSock    = 12
)

func directoryEntryType(m block.FileMode) uint32 {
	switch m.Type() {
	case block.TypeDirectory:
		return dtDir
	case block.TypeRegularFile:
		return dtReg
	case block.TypeSymbolicLink:
		return dtLnk
	case block.TypeCharacterDevice:
		return dtChr
	case block.TypeBlockDevice:
		return dtBlk
	case block.TypeFIFO:
		return dtFIFO
	case block.TypeSocket:
		return dtSock
	default:
		return dtUnknown
	}
}

// appendDirent serializes one fuse_dirent record (as produced by the
// kernel's fuse_add_direntry, per the doc comment on
// fuse.ReadDirResponse.Data), 8-byte aligned.
func appendDirent(buf []byte, ino uint64, offset uint64, name string, dtype uint32) []byte {
	const headerLen = 8 + 8 + 4 + 4
	entryLen := headerLen + len(name)
	padded := (entryLen + 7) &^ 7

	rec := make([]byte, padded)
	binary.LittleEndian.PutUint64(rec[0:8], ino)
	binary.LittleEndian.PutUint64(rec[8:16], offset)
	binary.LittleEndian.PutUint32(rec[16:20], uint32(len(name)))
	binary.LittleEndian.PutUint32(rec[20:24], dtype)
	copy(rec[headerLen:], name)
	return append(buf, rec...)
}

func (b *Bridge) MkDir(
	ctx context.Context,
	req *fuse.MkDirRequest) (*fuse.MkDirResponse, error) {
	s, err := b.fs.Mkdir(toDonkeyIno(req.Parent), req.Header.Uid, req.Header.Gid, req.Name, fromOSMode(req.Mode))
	if err != nil {
		return nil, errnoFor(err)
	}
	return &fuse.MkDirResponse{Entry: b.childEntry(s)}, nil
}

func (b *Bridge) RmDir(
	ctx context.Context,
	req *fuse.RmDirRequest) (*fuse.RmDirResponse, error) {
	if err := b.fs.Rmdir(toDonkeyIno(req.Parent), req.Name); err != nil {
		return nil, errnoFor(err)
	}
	return &fuse.RmDirResponse{}, nil
}

func (b *Bridge) OpenDir(
	ctx context.Context,
	req *fuse.OpenDirRequest) (*fuse.OpenDirResponse, error) {
	h, err := b.fs.OpenDir(toDonkeyIno(req.Inode))
	if err != nil {
		return nil, errnoFor(err)
	}
	return &fuse.OpenDirResponse{Handle: b.putDirHandle(h)}, nil
}

func (b *Bridge) ReadDir(
	ctx context.Context,
	req *fuse.ReadDirRequest) (*fuse.ReadDirResponse, error) {
	h := b.getDirHandle(req.Handle)
	if h == nil {
		return nil, fuse.EIO
	}

	var data []byte
	base := uint64(req.Offset)
	entries := h.Readdir(int(req.Offset))
	for i, e := range entries {
		s, err := b.fs.Getattr(e.Ino)
		if err != nil {
			return nil, errnoFor(err)
		}
		next := appendDirent(nil, e.Ino, base+uint64(i)+1, e.Name, directoryEntryType(s.Mode))
		if len(data)+len(next) > req.Size {
			break
		}
		data = append(data, next...)
	}
	return &fuse.ReadDirResponse{Data: data}, nil
}

func (b *Bridge) ReleaseDirHandle(
	ctx context.Context,
	req *fuse.ReleaseDirHandleRequest) (*fuse.ReleaseDirHandleResponse, error) {
	h := b.takeDirHandle(req.Handle)
	if h == nil {
		return &fuse.ReleaseDirHandleResponse{}, nil
	}
	if err := h.Release(); err != nil {
		return nil, errnoFor(err)
	}
	return &fuse.ReleaseDirHandleResponse{}, nil
}
