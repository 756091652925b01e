// Package fusebridge adapts a *donkey.FS to the older context+Request/
// Response fuse.FileSystem interface exposed by github.com/jacobsa/fuse
// (the interface github.com/jacobsa/fuse/samples/memfs implements), so a
// Donkey volume can be mounted with fuse.Mount. It is deliberately thin:
// request/response translation and errno mapping only, with no caching or
// flow control of its own — all of that lives in pkg/donkey.
package fusebridge

import (
	"sync"

	"github.com/jacobsa/fuse"
	"golang.org/x/net/context"

	"github.com/dkfs/donkey/pkg/block"
	"github.com/dkfs/donkey/pkg/donkey"
)

// Bridge implements fuse.FileSystem over a single mounted *donkey.FS.
type Bridge struct {
	fs *donkey.FS

	mu         sync.Mutex
	nextHandle uint64
	files      map[fuse.HandleID]*donkey.FileHandle
	dirs       map[fuse.HandleID]*donkey.DirHandle
}

var _ fuse.FileSystem = (*Bridge)(nil)

// New wraps fs for mounting.
func New(fs *donkey.FS) *Bridge {
	return &Bridge{
		fs:    fs,
		files: make(map[fuse.HandleID]*donkey.FileHandle),
		dirs:  make(map[fuse.HandleID]*donkey.DirHandle),
	}
}

// toFuseIno and toDonkeyIno translate between the kernel-visible root ID
// (always 1, per fuse.RootInodeID) and Donkey's own RootInode number; every
// other inode number passes through unchanged since Donkey mints its own
// 64-bit inode numbers and the kernel only ever echoes back IDs this
// bridge handed it.
func toFuseIno(ino uint64) fuse.InodeID {
	if ino == block.RootInode {
		return fuse.RootInodeID
	}
	return fuse.InodeID(ino)
}

func toDonkeyIno(id fuse.InodeID) uint64 {
	if id == fuse.RootInodeID {
		return block.RootInode
	}
	return uint64(id)
}

func (b *Bridge) childEntry(s *donkey.Stat) fuse.ChildInodeEntry {
	exp := farFuture()
	return fuse.ChildInodeEntry{
		Child:                toFuseIno(s.Ino),
		Attributes:           toAttrs(s),
		AttributesExpiration: exp,
		EntryExpiration:      exp,
	}
}

func (b *Bridge) allocHandle() fuse.HandleID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextHandle++
	return fuse.HandleID(b.nextHandle)
}

func (b *Bridge) putFileHandle(h *donkey.FileHandle) fuse.HandleID {
	id := b.allocHandle()
	b.mu.Lock()
	b.files[id] = h
	b.mu.Unlock()
	return id
}

func (b *Bridge) takeFileHandle(id fuse.HandleID) *donkey.FileHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := b.files[id]
	delete(b.files, id)
	return h
}

func (b *Bridge) getFileHandle(id fuse.HandleID) *donkey.FileHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.files[id]
}

func (b *Bridge) putDirHandle(h *donkey.DirHandle) fuse.HandleID {
	id := b.allocHandle()
	b.mu.Lock()
	b.dirs[id] = h
	b.mu.Unlock()
	return id
}

func (b *Bridge) takeDirHandle(id fuse.HandleID) *donkey.DirHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := b.dirs[id]
	delete(b.dirs, id)
	return h
}

func (b *Bridge) getDirHandle(id fuse.HandleID) *donkey.DirHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dirs[id]
}

// Init updates the root inode's ownership to the mounting process's
// credentials, matching samples/memfs/fs.go's Init.
func (b *Bridge) Init(
	ctx context.Context,
	req *fuse.InitRequest) (*fuse.InitResponse, error) {
	uid, gid := req.Header.Uid, req.Header.Gid
	_, err := b.fs.Setattr(block.RootInode, donkey.SetattrRequest{UID: &uid, GID: &gid})
	if err != nil {
		return nil, errnoFor(err)
	}
	return &fuse.InitResponse{}, nil
}

func (b *Bridge) LookUpInode(
	ctx context.Context,
	req *fuse.LookUpInodeRequest) (*fuse.LookUpInodeResponse, error) {
	s, err := b.fs.Lookup(toDonkeyIno(req.Parent), req.Name)
	if err != nil {
		return nil, errnoFor(err)
	}
	return &fuse.LookUpInodeResponse{Entry: b.childEntry(s)}, nil
}

func (b *Bridge) GetInodeAttributes(
	ctx context.Context,
	req *fuse.GetInodeAttributesRequest) (*fuse.GetInodeAttributesResponse, error) {
	s, err := b.fs.Getattr(toDonkeyIno(req.Inode))
	if err != nil {
		return nil, errnoFor(err)
	}
	return &fuse.GetInodeAttributesResponse{
		Attributes:           toAttrs(s),
		AttributesExpiration: farFuture(),
	}, nil
}

func (b *Bridge) SetInodeAttributes(
	ctx context.Context,
	req *fuse.SetInodeAttributesRequest) (*fuse.SetInodeAttributesResponse, error) {
	var sreq donkey.SetattrRequest
	if req.Size != nil {
		sreq.Size = req.Size
	}
	if req.Mode != nil {
		m := fromOSMode(*req.Mode)
		sreq.Mode = &m
	}
	if req.Atime != nil {
		t := fromTime(*req.Atime)
		sreq.Atime = &t
	}
	if req.Mtime != nil {
		t := fromTime(*req.Mtime)
		sreq.Mtime = &t
	}
	s, err := b.fs.Setattr(toDonkeyIno(req.Inode), sreq)
	if err != nil {
		return nil, errnoFor(err)
	}
	return &fuse.SetInodeAttributesResponse{
		Attributes:           toAttrs(s),
		AttributesExpiration: farFuture(),
	}, nil
}

// ForgetInode is a no-op: Donkey's inode lifecycle is governed entirely by
// nlink and open-handle refcounts (see pkg/donkey's deferred-close queue),
// not by the kernel's dentry cache telling us an ID is no longer needed.
func (b *Bridge) ForgetInode(
	ctx context.Context,
	req *fuse.ForgetInodeRequest) (*fuse.ForgetInodeResponse, error) {
	return &fuse.ForgetInodeResponse{}, nil
}
