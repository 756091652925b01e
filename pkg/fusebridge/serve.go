package fusebridge

import (
	"fmt"
	"io"
	"log"
	"time"

	bazilfuse "bazil.org/fuse"
	"github.com/jacobsa/fuse"
	"golang.org/x/net/context"
)

// MountOptions controls how a volume is mounted, per the mount tool's
// fsname/allow_other/default_permissions contract.
type MountOptions struct {
	FSName        string
	AllowOther    bool
	AllowNonEmpty bool
}

func (o *MountOptions) bazilOptions() []bazilfuse.MountOption {
	fsname := o.FSName
	if fsname == "" {
		fsname = "donkey"
	}
	opts := []bazilfuse.MountOption{
		bazilfuse.FSName(fsname),
		bazilfuse.Subtype("donkey"),
		bazilfuse.DefaultPermissions(),
	}
	if o.AllowOther {
		opts = append(opts, bazilfuse.AllowOther())
	}
	if o.AllowNonEmpty {
		opts = append(opts, bazilfuse.AllowNonEmptyMount())
	}
	return opts
}

// Mount mounts fs at dir and serves kernel requests until the connection is
// closed (by FUSE unmount or an I/O error), following the bazilfuse.Mount +
// Conn.ReadRequest loop shown in jacobsa-fuse's (unexported) server.go for
// this same older fuse.FileSystem interface.
func Mount(dir string, fs fuse.FileSystem, opts MountOptions, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	conn, err := bazilfuse.Mount(dir, opts.bazilOptions()...)
	if err != nil {
		return fmt.Errorf("bazilfuse.Mount: %w", err)
	}
	defer conn.Close()

	s := &server{fs: fs, logger: logger}
	return s.serve(conn)
}

// server relays bazilfuse requests to a fuse.FileSystem, adapted from
// jacobsa-fuse/server.go's dispatch switch (that file's own newServer/server
// types are unexported, so this is a from-scratch copy of the same pattern
// rather than a reused symbol).
type server struct {
	fs     fuse.FileSystem
	logger *log.Logger
}

func (s *server) serve(c *bazilfuse.Conn) error {
	for {
		req, err := c.ReadRequest()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			s.logger.Printf("ReadRequest: %v", err)
			return fmt.Errorf("ReadRequest: %w", err)
		}
		s.handle(req)
	}
}

func convertHeader(h bazilfuse.Header) fuse.RequestHeader {
	return fuse.RequestHeader{Uid: h.Uid, Gid: h.Gid}
}

// convertExpirationTime mirrors jacobsa-fuse/server.go's helper of the same
// purpose: bazilfuse wants a relative duration, the fuse.FileSystem
// interface hands back an absolute expiration time.
func convertExpirationTime(t time.Time) time.Duration {
	d := time.Until(t)
	if d < 0 {
		return 0
	}
	return d
}

func convertChildEntry(in fuse.ChildInodeEntry, out *bazilfuse.LookupResponse) {
	out.Node = bazilfuse.NodeID(in.Child)
	out.Generation = uint64(in.Generation)
	out.Attr = convertAttr(in.Child, in.Attributes)
	out.EntryValid = convertExpirationTime(in.EntryExpiration)
	out.AttrValid = convertExpirationTime(in.AttributesExpiration)
}

func convertAttr(inode fuse.InodeID, a fuse.InodeAttributes) bazilfuse.Attr {
	return bazilfuse.Attr{
		Inode:  uint64(inode),
		Size:   a.Size,
		Nlink:  uint32(a.Nlink),
		Mode:   a.Mode,
		Atime:  a.Atime,
		Mtime:  a.Mtime,
		Ctime:  a.Ctime,
		Crtime: a.Crtime,
		Uid:    a.Uid,
		Gid:    a.Gid,
	}
}

func (s *server) handle(req bazilfuse.Request) {
	ctx := context.Background()

	switch typed := req.(type) {
	case *bazilfuse.InitRequest:
		_, err := s.fs.Init(ctx, &fuse.InitRequest{Header: convertHeader(typed.Header)})
		if err != nil {
			typed.RespondError(err)
			return
		}
		typed.Respond(&bazilfuse.InitResponse{})

	case *bazilfuse.StatfsRequest:
		typed.Respond(&bazilfuse.StatfsResponse{})

	case *bazilfuse.LookupRequest:
		resp, err := s.fs.LookUpInode(ctx, &fuse.LookUpInodeRequest{
			Header: convertHeader(typed.Header),
			Parent: fuse.InodeID(typed.Header.Node),
			Name:   typed.Name,
		})
		if err != nil {
			typed.RespondError(err)
			return
		}
		fuseResp := &bazilfuse.LookupResponse{}
		convertChildEntry(resp.Entry, fuseResp)
		typed.Respond(fuseResp)

	case *bazilfuse.GetattrRequest:
		resp, err := s.fs.GetInodeAttributes(ctx, &fuse.GetInodeAttributesRequest{
			Header: convertHeader(typed.Header),
			Inode:  fuse.InodeID(typed.Header.Node),
		})
		if err != nil {
			typed.RespondError(err)
			return
		}
		typed.Respond(&bazilfuse.GetattrResponse{
			Attr:      convertAttr(fuse.InodeID(typed.Header.Node), resp.Attributes),
			AttrValid: convertExpirationTime(resp.AttributesExpiration),
		})

	case *bazilfuse.SetattrRequest:
		ino := fuse.InodeID(typed.Header.Node)
		sreq := &fuse.SetInodeAttributesRequest{Header: convertHeader(typed.Header), Inode: ino}
		if typed.Valid&bazilfuse.SetattrSize != 0 {
			sreq.Size = &typed.Size
		}
		if typed.Valid&bazilfuse.SetattrMode != 0 {
			sreq.Mode = &typed.Mode
		}
		if typed.Valid&bazilfuse.SetattrAtime != 0 {
			sreq.Atime = &typed.Atime
		}
		if typed.Valid&bazilfuse.SetattrMtime != 0 {
			sreq.Mtime = &typed.Mtime
		}
		resp, err := s.fs.SetInodeAttributes(ctx, sreq)
		if err != nil {
			typed.RespondError(err)
			return
		}
		typed.Respond(&bazilfuse.SetattrResponse{
			Attr:      convertAttr(ino, resp.Attributes),
			AttrValid: convertExpirationTime(resp.AttributesExpiration),
		})

	case *bazilfuse.MkdirRequest:
		resp, err := s.fs.MkDir(ctx, &fuse.MkDirRequest{
			Header: convertHeader(typed.Header),
			Parent: fuse.InodeID(typed.Header.Node),
			Name:   typed.Name,
			Mode:   typed.Mode,
		})
		if err != nil {
			typed.RespondError(err)
			return
		}
		fuseResp := &bazilfuse.MkdirResponse{}
		convertChildEntry(resp.Entry, &fuseResp.LookupResponse)
		typed.Respond(fuseResp)

	case *bazilfuse.CreateRequest:
		resp, err := s.fs.CreateFile(ctx, &fuse.CreateFileRequest{
			Header: convertHeader(typed.Header),
			Parent: fuse.InodeID(typed.Header.Node),
			Name:   typed.Name,
			Mode:   typed.Mode,
			Flags:  typed.Flags,
		})
		if err != nil {
			typed.RespondError(err)
			return
		}
		fuseResp := &bazilfuse.CreateResponse{
			OpenResponse: bazilfuse.OpenResponse{Handle: bazilfuse.HandleID(resp.Handle)},
		}
		convertChildEntry(resp.Entry, &fuseResp.LookupResponse)
		typed.Respond(fuseResp)

	case *bazilfuse.RemoveRequest:
		if typed.Dir {
			_, err := s.fs.RmDir(ctx, &fuse.RmDirRequest{
				Header: convertHeader(typed.Header),
				Parent: fuse.InodeID(typed.Header.Node),
				Name:   typed.Name,
			})
			if err != nil {
				typed.RespondError(err)
				return
			}
		} else {
			_, err := s.fs.Unlink(ctx, &fuse.UnlinkRequest{
				Header: convertHeader(typed.Header),
				Parent: fuse.InodeID(typed.Header.Node),
				Name:   typed.Name,
			})
			if err != nil {
				typed.RespondError(err)
				return
			}
		}
		typed.Respond()

	case *bazilfuse.OpenRequest:
		if typed.Dir {
			resp, err := s.fs.OpenDir(ctx, &fuse.OpenDirRequest{
				Header: convertHeader(typed.Header),
				Inode:  fuse.InodeID(typed.Header.Node),
			})
			if err != nil {
				typed.RespondError(err)
				return
			}
			typed.Respond(&bazilfuse.OpenResponse{Handle: bazilfuse.HandleID(resp.Handle)})
		} else {
			resp, err := s.fs.OpenFile(ctx, &fuse.OpenFileRequest{
				Header: convertHeader(typed.Header),
				Inode:  fuse.InodeID(typed.Header.Node),
				Flags:  typed.Flags,
			})
			if err != nil {
				typed.RespondError(err)
				return
			}
			typed.Respond(&bazilfuse.OpenResponse{Handle: bazilfuse.HandleID(resp.Handle)})
		}

	case *bazilfuse.ReadRequest:
		if typed.Dir {
			resp, err := s.fs.ReadDir(ctx, &fuse.ReadDirRequest{
				Header: convertHeader(typed.Header),
				Inode:  fuse.InodeID(typed.Header.Node),
				Handle: fuse.HandleID(typed.Handle),
				Offset: fuse.DirOffset(typed.Offset),
				Size:   typed.Size,
			})
			if err != nil {
				typed.RespondError(err)
				return
			}
			typed.Respond(&bazilfuse.ReadResponse{Data: resp.Data})
		} else {
			resp, err := s.fs.ReadFile(ctx, &fuse.ReadFileRequest{
				Header: convertHeader(typed.Header),
				Inode:  fuse.InodeID(typed.Header.Node),
				Handle: fuse.HandleID(typed.Handle),
				Offset: typed.Offset,
				Size:   typed.Size,
			})
			if err != nil {
				typed.RespondError(err)
				return
			}
			typed.Respond(&bazilfuse.ReadResponse{Data: resp.Data})
		}

	case *bazilfuse.ReleaseRequest:
		if typed.Dir {
			_, err := s.fs.ReleaseDirHandle(ctx, &fuse.ReleaseDirHandleRequest{
				Header: convertHeader(typed.Header),
				Handle: fuse.HandleID(typed.Handle),
			})
			if err != nil {
				typed.RespondError(err)
				return
			}
		} else {
			_, err := s.fs.ReleaseFileHandle(ctx, &fuse.ReleaseFileHandleRequest{
				Header: convertHeader(typed.Header),
				Handle: fuse.HandleID(typed.Handle),
			})
			if err != nil {
				typed.RespondError(err)
				return
			}
		}
		typed.Respond()

	case *bazilfuse.WriteRequest:
		_, err := s.fs.WriteFile(ctx, &fuse.WriteFileRequest{
			Header: convertHeader(typed.Header),
			Inode:  fuse.InodeID(typed.Header.Node),
			Handle: fuse.HandleID(typed.Handle),
			Offset: typed.Offset,
			Data:   typed.Data,
		})
		if err != nil {
			typed.RespondError(err)
			return
		}
		typed.Respond(&bazilfuse.WriteResponse{Size: len(typed.Data)})

	default:
		typed.RespondError(fuse.ENOSYS)
	}
}
