// Package alloc implements the free-space allocator (C3): two independent
// singly linked free lists, one over inode slots and one over data blocks,
// each managed by walking variable-length runs, per spec §4.3.
package alloc

import (
	"github.com/dkfs/donkey/pkg/block"
	"github.com/dkfs/donkey/pkg/device"
	"github.com/dkfs/donkey/pkg/donkeyerr"
)

// List manages one free list (inodes or data blocks) living on dev. head
// and used are pointers into the caller's superblock fields so that every
// mutation can write the superblock back immediately, per §4.3's ordering
// requirement.
type List struct {
	dev      device.Device
	unitSize uint64
	head     *uint64
	used     *uint64
	count    uint64
	flush    func() error
}

// NewList builds a free-list manager over unit-sized slots. head and used
// alias superblock fields; flush persists the superblock after every
// mutation.
func NewList(dev device.Device, unitSize uint64, head, used *uint64, count uint64, flush func() error) *List {
	return &List{dev: dev, unitSize: unitSize, head: head, used: used, count: count, flush: flush}
}

// Allocate walks the list from its head until it finds a run whose size
// covers at least one unit, splits off one unit's worth, and returns its
// pointer. Per §4.3: the residual node (or the successor, if the residual
// is too small to hold a node header) becomes the new head, and the
// superblock is written back before Allocate returns.
func (l *List) Allocate() (uint64, error) {
	if *l.used >= l.count {
		return 0, donkeyerr.New(donkeyerr.Exhausted, "free list exhausted (%d/%d used)", *l.used, l.count)
	}

	var prevPtr uint64
	var prevNode *block.FreeListNode
	ptr := *l.head
	for ptr != 0 {
		raw, err := l.dev.ReadLenAt(ptr, block.FreeListNodeSize)
		if err != nil {
			return 0, err
		}
		node, err := block.DecodeFreeListNode(raw)
		if err != nil {
			return 0, err
		}
		if node.Size >= l.unitSize {
			residual := node.Size - l.unitSize
			var newHead uint64
			if residual >= block.FreeListNodeSize {
				residualNode := &block.FreeListNode{NextPtr: node.NextPtr, Size: residual}
				residualPtr := ptr + l.unitSize
				if err := l.dev.WriteAt(residualNode.Encode(), residualPtr); err != nil {
					return 0, err
				}
				newHead = residualPtr
			} else {
				newHead = node.NextPtr
			}

			if prevNode == nil {
				*l.head = newHead
			} else {
				prevNode.NextPtr = newHead
				if err := l.dev.WriteAt(prevNode.Encode(), prevPtr); err != nil {
					return 0, err
				}
			}
			*l.used++
			if err := l.flush(); err != nil {
				return 0, err
			}
			return ptr, nil
		}
		prevPtr, prevNode = ptr, node
		ptr = node.NextPtr
	}
	return 0, donkeyerr.New(donkeyerr.Exhausted, "free list has no run covering %d bytes", l.unitSize)
}

// Free prepends a new single-unit head node at ptr. Per §4.3, freed runs
// are never coalesced with neighbors; the list fragments gradually as an
// accepted trade-off.
func (l *List) Free(ptr uint64) error {
	node := &block.FreeListNode{NextPtr: *l.head, Size: l.unitSize}
	if err := l.dev.WriteAt(node.Encode(), ptr); err != nil {
		return err
	}
	*l.head = ptr
	if *l.used == 0 {
		return donkeyerr.New(donkeyerr.Corrupted, "free of unit %d with used count already zero", ptr)
	}
	*l.used--
	return l.flush()
}
