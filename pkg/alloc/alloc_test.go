package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkfs/donkey/pkg/device"
	"github.com/dkfs/donkey/pkg/donkeyerr"
)

func newTestList(t *testing.T) (*List, device.Device, *uint64, *uint64) {
	t.Helper()
	dev := device.NewMemory(4096, 256)
	head := uint64(0)
	used := uint64(0)
	require.NoError(t, InitRun(dev, 256, 8*256))
	head = 256
	flushed := false
	l := NewList(dev, 256, &head, &used, 8, func() error { flushed = true; return nil })
	_ = flushed
	return l, dev, &head, &used
}

func TestAllocateSplitsResidual(t *testing.T) {
	l, _, head, used := newTestList(t)

	ptr, err := l.Allocate()
	require.NoError(t, err)
	require.Equal(t, uint64(256), ptr)
	require.Equal(t, uint64(1), *used)
	require.Equal(t, uint64(256+256), *head)
}

func TestAllocateExhausted(t *testing.T) {
	l, _, _, used := newTestList(t)
	for i := 0; i < 8; i++ {
		_, err := l.Allocate()
		require.NoError(t, err)
	}
	require.Equal(t, uint64(8), *used)

	_, err := l.Allocate()
	require.Error(t, err)
	require.True(t, donkeyerr.Is(err, donkeyerr.Exhausted))
}

func TestFreePrependsHead(t *testing.T) {
	l, _, head, used := newTestList(t)

	ptr, err := l.Allocate()
	require.NoError(t, err)
	require.NoError(t, l.Free(ptr))
	require.Equal(t, uint64(0), *used)
	require.Equal(t, ptr, *head)
}
