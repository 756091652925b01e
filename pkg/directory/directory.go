// Package directory implements the directory object (C7): a file object
// whose body is a sentinel-terminated stream of (ino, name) records,
// mirrored in memory as an ordered name -> ino map, per spec §4.7.
package directory

import (
	"bufio"
	"bytes"
	"io"

	"github.com/dkfs/donkey/pkg/block"
	"github.com/dkfs/donkey/pkg/dkfile"
	"github.com/dkfs/donkey/pkg/donkeyerr"
)

// entry pairs a name with its inode number. Entries are kept in insertion
// order, so iteration (readdir) is stable and matches the order entries
// were added.
type entry struct {
	name string
	ino  uint64
}

// Directory wraps a file object and maintains the body's on-disk
// (ino, name) stream as an in-memory ordered map.
type Directory struct {
	File    *dkfile.File
	entries []entry
	byName  map[string]int // name -> index into entries
	dirty   bool
}

// Open reads the directory's entire body into memory, per §4.7.
func Open(f *dkfile.File) (*Directory, error) {
	if !f.Inode.Mode.IsDirectory() {
		return nil, donkeyerr.New(donkeyerr.NotDirectory, "inode %d is not a directory", f.Inode.Ino)
	}
	d := &Directory{File: f, byName: map[string]int{}}
	if err := d.load(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Directory) load() error {
	// A freshly created directory has no body yet: no sentinel has been
	// written, so there is nothing to parse.
	if d.File.Inode.Size == 0 {
		return nil
	}
	if _, err := d.File.Seek(0, io.SeekStart); err != nil {
		return err
	}
	body := make([]byte, d.File.Inode.Size)
	if _, err := d.File.Read(body); err != nil {
		return err
	}

	r := bufio.NewReader(bytes.NewReader(body))
	for {
		ino, name, end, err := block.DecodeDirEntry(r)
		if err != nil {
			return donkeyerr.Wrap(donkeyerr.Corrupted, err, "decode directory entry")
		}
		if end {
			break
		}
		d.insert(name, ino)
	}
	return nil
}

func (d *Directory) insert(name string, ino uint64) {
	d.byName[name] = len(d.entries)
	d.entries = append(d.entries, entry{name: name, ino: ino})
}

// Lookup returns the inode number bound to name, or ok=false.
func (d *Directory) Lookup(name string) (uint64, bool) {
	idx, ok := d.byName[name]
	if !ok {
		return 0, false
	}
	return d.entries[idx].ino, true
}

// Add inserts name -> ino, failing with AlreadyExists if name is taken.
// Per §4.7, any mutation marks the directory dirty and bumps ctime/mtime.
func (d *Directory) Add(name string, ino uint64) error {
	if err := block.ValidateName(name); err != nil {
		return err
	}
	if _, exists := d.byName[name]; exists {
		return donkeyerr.New(donkeyerr.AlreadyExists, "entry %q already exists", name)
	}
	d.insert(name, ino)
	d.touch()
	return nil
}

// Remove deletes name, returning the ino it was bound to, or ok=false if
// there was no such entry.
func (d *Directory) Remove(name string) (uint64, bool) {
	idx, ok := d.byName[name]
	if !ok {
		return 0, false
	}
	ino := d.entries[idx].ino
	d.entries = append(d.entries[:idx], d.entries[idx+1:]...)
	delete(d.byName, name)
	for i := idx; i < len(d.entries); i++ {
		d.byName[d.entries[i].name] = i
	}
	d.touch()
	return ino, true
}

// Len returns the number of entries currently in the directory.
func (d *Directory) Len() int { return len(d.entries) }

// IsEmpty reports whether the directory contains only "." and "..".
func (d *Directory) IsEmpty() bool {
	if len(d.entries) > 2 {
		return false
	}
	for _, e := range d.entries {
		if e.name != "." && e.name != ".." {
			return false
		}
	}
	return true
}

// Entry is one (name, ino) pair as seen by readdir.
type Entry struct {
	Name string
	Ino  uint64
}

// List returns every entry starting at the offset-th one, in insertion
// order, per §4.8's readdir contract: "a lazy sequence ... starting at the
// offset-th entry ... finite; not restartable across mutations." The
// returned slice is a point-in-time snapshot; subsequent mutations do not
// affect it.
func (d *Directory) List(offset int) []Entry {
	if offset < 0 || offset >= len(d.entries) {
		return nil
	}
	out := make([]Entry, 0, len(d.entries)-offset)
	for _, e := range d.entries[offset:] {
		out = append(out, Entry{Name: e.name, Ino: e.ino})
	}
	return out
}

func (d *Directory) touch() {
	d.dirty = true
	now := dkfile.Now()
	d.File.Inode.Mtime = now
	d.File.Inode.Ctime = now
	d.File.MarkDirty()
}

// Flush rewrites the entire body when dirty: seek to 0, serialize the
// whole map plus the end sentinel, and let the underlying file's own
// Flush persist the inode and extent cache. Per §9's design note, the
// file grows monotonically; stale bytes beyond the new sentinel are
// harmless because parsing halts there.
func (d *Directory) Flush() error {
	if !d.dirty {
		return d.File.Flush()
	}
	buf := new(bytes.Buffer)
	for _, e := range d.entries {
		if err := block.EncodeDirEntry(buf, e.ino, e.name); err != nil {
			return err
		}
	}
	if err := block.EncodeDirEndSentinel(buf); err != nil {
		return err
	}

	if _, err := d.File.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := d.File.Write(buf.Bytes()); err != nil {
		return err
	}
	d.dirty = false
	return d.File.Flush()
}
