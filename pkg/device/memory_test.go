package device

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkfs/donkey/pkg/donkeyerr"
)

func TestMemoryReadWriteRoundTrip(t *testing.T) {
	d := NewMemory(4096, 512)
	require.Equal(t, uint64(4096), d.Size())
	require.Equal(t, uint64(512), d.BlockSize())

	payload := []byte("the quick brown fox")
	require.NoError(t, d.WriteAt(payload, 100))

	got, err := d.ReadLenAt(100, len(payload))
	require.NoError(t, err)
	require.Equal(t, payload, got)

	block, err := d.ReadBlockAt(512)
	require.NoError(t, err)
	require.Len(t, block, 512)
}

func TestMemoryReadAtStreamsToEnd(t *testing.T) {
	d := NewMemory(16, 16)
	require.NoError(t, d.WriteAt([]byte("hello"), 0))

	r, err := d.ReadAt(0)
	require.NoError(t, err)
	all, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Len(t, all, 16)
	require.Equal(t, "hello", string(all[:5]))
}

func TestMemoryOutOfBoundsIsCorrupted(t *testing.T) {
	d := NewMemory(16, 16)

	_, err := d.ReadLenAt(10, 10)
	require.Error(t, err)
	require.True(t, donkeyerr.Is(err, donkeyerr.Corrupted))

	err = d.WriteAt(make([]byte, 4), 15)
	require.Error(t, err)
	require.True(t, donkeyerr.Is(err, donkeyerr.Corrupted))
}
