package block

import (
	"bytes"
	"encoding/binary"

	"github.com/dkfs/donkey/pkg/donkeyerr"
)

// FreeListNodeSize is the encoded size of a free-list node header. It must
// be no larger than the smallest unit a free list manages (one inode slot,
// 256 bytes, or one data block, whose size is at least FreeListNodeSize).
const FreeListNodeSize = 16

// FreeListNode is a node in a singly linked free list of variable-length
// runs, living in-place in an unallocated inode slot or data block.
type FreeListNode struct {
	NextPtr uint64
	Size    uint64
}

// Encode serializes the node header. Callers that write it into a larger
// slot (an inode slot or data block) are responsible for placing these
// bytes at the start of that slot; the remainder of the slot is
// unspecified.
func (n *FreeListNode) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(FreeListNodeSize)
	_ = binary.Write(buf, binary.LittleEndian, n)
	return buf.Bytes()
}

// DecodeFreeListNode parses a free-list node header from the first
// FreeListNodeSize bytes of data.
func DecodeFreeListNode(data []byte) (*FreeListNode, error) {
	if len(data) < FreeListNodeSize {
		return nil, donkeyerr.New(donkeyerr.Corrupted, "free-list node truncated")
	}
	n := new(FreeListNode)
	if err := binary.Read(bytes.NewReader(data[:FreeListNodeSize]), binary.LittleEndian, n); err != nil {
		return nil, donkeyerr.Wrap(donkeyerr.Corrupted, err, "decode free-list node")
	}
	return n, nil
}
