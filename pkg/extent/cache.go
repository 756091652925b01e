package extent

import (
	"encoding/binary"

	"github.com/dkfs/donkey/pkg/device"
)

// slot caches one indirect block image, keyed by the pointer it was loaded
// from. Each Cache keeps four of these, one per indirect level
// (1..4), per spec §4.5's "indirect-pointer cache coherence" design note.
type slot struct {
	valid bool
	ptr   uint64
	data  []byte
	dirty bool
}

// Cache is the four-slot indirect-block cache carried by a single open
// file object (C6), handed to the extent mapper on every call so the
// mapper itself stays stateless across files.
type Cache struct {
	slots [4]slot
}

// load returns the block image for ptr at cache index idx (0..3,
// corresponding to level idx+1), reusing the slot if it already holds ptr
// and otherwise evicting (writing back if dirty) and reading fresh.
func (c *Cache) load(dev device.Device, idx int, ptr uint64) ([]byte, error) {
	s := &c.slots[idx]
	if s.valid && s.ptr == ptr {
		return s.data, nil
	}
	if err := c.evict(dev, idx); err != nil {
		return nil, err
	}
	data, err := dev.ReadBlockAt(ptr)
	if err != nil {
		return nil, err
	}
	s.valid, s.ptr, s.data, s.dirty = true, ptr, data, false
	return data, nil
}

// markDirty flags the slot at idx as modified so Flush writes it back.
func (c *Cache) markDirty(idx int) {
	c.slots[idx].dirty = true
}

// evict writes back the slot at idx if dirty and invalidates it.
func (c *Cache) evict(dev device.Device, idx int) error {
	s := &c.slots[idx]
	if s.valid && s.dirty {
		if err := dev.WriteAt(s.data, s.ptr); err != nil {
			return err
		}
	}
	s.valid, s.dirty, s.data = false, false, nil
	return nil
}

// Flush writes back every dirty slot without discarding them, so that a
// subsequent read through the same slot still hits the cache.
func (c *Cache) Flush(dev device.Device) error {
	for idx := range c.slots {
		s := &c.slots[idx]
		if s.valid && s.dirty {
			if err := dev.WriteAt(s.data, s.ptr); err != nil {
				return err
			}
			s.dirty = false
		}
	}
	return nil
}

// Discard evicts every slot without writing; FreeFrom uses it once a
// truncate has invalidated the underlying tree structure.
func (c *Cache) Discard() {
	for idx := range c.slots {
		c.slots[idx] = slot{}
	}
}

func readPointer(data []byte, idx uint64) uint64 {
	return binary.LittleEndian.Uint64(data[idx*8:])
}

func writePointer(data []byte, idx uint64, v uint64) {
	binary.LittleEndian.PutUint64(data[idx*8:], v)
}
