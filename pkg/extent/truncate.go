package extent

import "github.com/dkfs/donkey/pkg/block"

// FreeFrom releases every data block at logical index >= b, walking the
// direct region and recursively descending indirect subtrees, freeing any
// subtree that becomes entirely empty (including the indirect block
// itself), per §4.5's truncate contract. inode.Blocks is decremented once
// per freed block (leaf, indirect, or head).
//
// The walk reads indirect blocks straight from the device, so any dirty
// cache slots are written back first; the cache is then invalidated
// unconditionally afterward: a shrinking tree can free blocks the cache
// currently holds images of, and writing those back during a later Flush
// would resurrect freed blocks.
func (m *Mapper) FreeFrom(inode *block.Inode, b uint64, cache *Cache) error {
	defer cache.Discard()
	if err := cache.Flush(m.dev); err != nil {
		return err
	}

	if b < block.DirectPointerCount {
		for i := b; i < block.DirectPointerCount; i++ {
			if ptr := inode.Ptrs.Direct[i]; ptr != 0 {
				if err := m.dballoc.Free(ptr); err != nil {
					return err
				}
				inode.Ptrs.Direct[i] = 0
				inode.Blocks--
			}
		}
		for level := 1; level <= block.IndirectLevels; level++ {
			if err := m.freeEntireLevel(inode, level); err != nil {
				return err
			}
		}
		return nil
	}

	caps := m.capacities()
	base := caps[0]
	for level := 1; level <= block.IndirectLevels; level++ {
		levelCap := caps[level]
		if b >= base+levelCap {
			base += levelCap
			continue
		}
		var threshold uint64
		if b > base {
			threshold = b - base
		}
		if threshold == 0 {
			if err := m.freeEntireLevel(inode, level); err != nil {
				return err
			}
		} else {
			head := inode.Ptrs.Indirect[level-1]
			if head != 0 {
				empty, err := m.freeSubtree(inode, head, level, threshold)
				if err != nil {
					return err
				}
				if empty {
					inode.Ptrs.Indirect[level-1] = 0
					inode.Blocks--
				}
			}
		}
		base += levelCap
	}
	return nil
}

// freeEntireLevel drops an entire indirect subtree rooted at
// inode.Ptrs.Indirect[level-1], if any.
func (m *Mapper) freeEntireLevel(inode *block.Inode, level int) error {
	head := inode.Ptrs.Indirect[level-1]
	if head == 0 {
		return nil
	}
	if _, err := m.freeSubtree(inode, head, level, 0); err != nil {
		return err
	}
	inode.Ptrs.Indirect[level-1] = 0
	inode.Blocks--
	return nil
}

// freeSubtree frees every block reachable from ptr (an indirect block at
// the given remaining level) whose local index is >= threshold, and
// reports whether the whole block at ptr ended up empty (i.e. should
// itself be freed by the caller).
func (m *Mapper) freeSubtree(inode *block.Inode, ptr uint64, level int, threshold uint64) (bool, error) {
	if ptr == 0 {
		return true, nil
	}

	data, err := m.dev.ReadBlockAt(ptr)
	if err != nil {
		return false, err
	}

	pc := block.PointersPerBlock(m.blockSize)
	var idxThreshold, remThreshold uint64
	if level == 1 {
		idxThreshold = threshold
	} else {
		stride := pow(pc, uint64(level-1))
		idxThreshold = threshold / stride
		remThreshold = threshold % stride
	}

	changed := false
	for idx := idxThreshold; idx < pc; idx++ {
		child := readPointer(data, idx)
		if child == 0 {
			continue
		}
		if level == 1 {
			if err := m.dballoc.Free(child); err != nil {
				return false, err
			}
			inode.Blocks--
			writePointer(data, idx, 0)
			changed = true
			continue
		}

		childThreshold := uint64(0)
		if idx == idxThreshold {
			childThreshold = remThreshold
		}
		empty, err := m.freeSubtree(inode, child, level-1, childThreshold)
		if err != nil {
			return false, err
		}
		if empty {
			writePointer(data, idx, 0)
			inode.Blocks--
			changed = true
		}
	}

	allEmpty := true
	for idx := uint64(0); idx < pc; idx++ {
		if readPointer(data, idx) != 0 {
			allEmpty = false
			break
		}
	}

	if changed && !allEmpty {
		if err := m.dev.WriteAt(data, ptr); err != nil {
			return false, err
		}
	}

	if allEmpty {
		if err := m.dballoc.Free(ptr); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}
