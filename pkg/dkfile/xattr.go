package dkfile

import (
	"github.com/dkfs/donkey/pkg/block"
	"github.com/dkfs/donkey/pkg/donkeyerr"
)

func (f *File) loadXattr() error {
	data, err := f.dev.ReadBlockAt(f.Inode.XattrPtr)
	if err != nil {
		return err
	}
	m, _, err := block.DecodeXattrMap(data)
	if err != nil {
		return err
	}
	f.xattr = m
	return nil
}

// flushXattr (re)serializes the xattr map to its data block, allocating
// one if the map is non-empty and none exists yet, or freeing the
// existing one if the map has become empty, per §4.6.
func (f *File) flushXattr() error {
	if len(f.xattr) == 0 {
		if f.Inode.XattrPtr != 0 {
			if err := f.dballoc.Free(f.Inode.XattrPtr); err != nil {
				return err
			}
			f.Inode.XattrPtr = 0
			f.Inode.Blocks--
		}
		return nil
	}

	order := make([]string, 0, len(f.xattr))
	for name := range f.xattr {
		order = append(order, name)
	}
	data, err := block.EncodeXattrMap(f.xattr, f.dev.BlockSize(), order)
	if err != nil {
		return err
	}

	if f.Inode.XattrPtr == 0 {
		ptr, err := f.dballoc.Allocate()
		if err != nil {
			return err
		}
		f.Inode.XattrPtr = ptr
		f.Inode.Blocks++
	}
	return f.dev.WriteAt(data, f.Inode.XattrPtr)
}

// GetXattr returns the value for name, or NotFound.
func (f *File) GetXattr(name string) ([]byte, error) {
	v, ok := f.xattr[name]
	if !ok {
		return nil, donkeyerr.New(donkeyerr.NotFound, "no such xattr %q", name)
	}
	return v, nil
}

// SetXattr stores name=value, validating the 256-byte name limit.
func (f *File) SetXattr(name string, value []byte) error {
	if err := block.ValidateName(name); err != nil {
		return err
	}
	f.xattr[name] = append([]byte(nil), value...)
	f.dirty = true
	return nil
}

// ListXattr returns every stored attribute name.
func (f *File) ListXattr() []string {
	names := make([]string, 0, len(f.xattr))
	for name := range f.xattr {
		names = append(names, name)
	}
	return names
}

// RemoveXattr deletes name, or returns NotFound if it isn't set.
func (f *File) RemoveXattr(name string) error {
	if _, ok := f.xattr[name]; !ok {
		return donkeyerr.New(donkeyerr.NotFound, "no such xattr %q", name)
	}
	delete(f.xattr, name)
	f.dirty = true
	return nil
}
