package dkfile

import (
	"time"

	"github.com/dkfs/donkey/pkg/block"
)

// Now returns the current wall-clock time as a block.Timestamp, the way
// every attribute-touching operation stamps atime/mtime/ctime.
func Now() block.Timestamp {
	t := time.Now()
	return block.Timestamp{Sec: t.Unix(), Nsec: uint32(t.Nanosecond())}
}
