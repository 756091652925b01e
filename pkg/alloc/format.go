package alloc

import (
	"github.com/dkfs/donkey/pkg/block"
	"github.com/dkfs/donkey/pkg/device"
)

// InitRun writes a single free-list node covering size bytes starting at
// ptr, with no successor. The format tool uses this to seed both the
// inode and data-block free lists with one run apiece covering the whole
// region, per §6's Format tool contract.
func InitRun(dev device.Device, ptr, size uint64) error {
	node := &block.FreeListNode{NextPtr: 0, Size: size}
	return dev.WriteAt(node.Encode(), ptr)
}
