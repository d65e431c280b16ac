package utils

import (
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup3(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		initval  uint32
		expected uint32
	}{
		{"empty input", "", 0, 0xdeadbeef},
		{"reference sentence", "Four score and seven years ago", 0, 0x17770551},
		{"reference sentence seeded", "Four score and seven years ago", 1, 0xcd628161},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Lookup3([]byte(tt.data), tt.initval))
		})
	}
}

func TestLookup3_BlockBoundaries(t *testing.T) {
	// Lengths around the 12-byte block size exercise both the loop and the tail switch.
	seen := make(map[uint32]int)
	for n := 0; n <= 25; n++ {
		sum := Lookup3(bytes.Repeat([]byte{0xA5}, n), 0)
		prev, dup := seen[sum]
		require.Falsef(t, dup, "length %d collides with length %d", n, prev)
		seen[sum] = n
	}
}

func TestStorageSize(t *testing.T) {
	size, err := StorageSize([]uint64{10, 3}, 8)
	require.NoError(t, err)
	require.Equal(t, uint64(240), size)

	size, err = StorageSize(nil, 4)
	require.NoError(t, err)
	require.Equal(t, uint64(4), size, "scalar shape is a single element")

	size, err = StorageSize([]uint64{0, 3}, 8)
	require.NoError(t, err)
	require.Zero(t, size)

	_, err = StorageSize([]uint64{math.MaxUint64, 2}, 8)
	require.Error(t, err)

	_, err = StorageSize([]uint64{1}, 0)
	require.Error(t, err)
}

func TestSafeMultiply(t *testing.T) {
	v, err := SafeMultiply(1<<20, 1<<20)
	require.NoError(t, err)
	require.Equal(t, uint64(1<<40), v)

	_, err = SafeMultiply(math.MaxUint64, 2)
	require.Error(t, err)
}

func TestReadFull(t *testing.T) {
	r := bytes.NewReader([]byte("0123456789"))

	got, err := ReadFull(r, 2, 4)
	require.NoError(t, err)
	require.Equal(t, []byte("2345"), got)

	_, err = ReadFull(r, 8, 4)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestDecodeUint(t *testing.T) {
	b := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	assert.Equal(t, uint64(0x01), DecodeUint(b, 1))
	assert.Equal(t, uint64(0x0201), DecodeUint(b, 2))
	assert.Equal(t, uint64(0x04030201), DecodeUint(b, 4))
	assert.Equal(t, uint64(0x0807060504030201), DecodeUint(b, 8))
}

func TestBufferPool(t *testing.T) {
	buf := GetBuffer(16)
	require.Len(t, buf, 16)
	ReleaseBuffer(buf)

	big := GetBuffer(maxPooled + 1)
	require.Len(t, big, maxPooled+1)
	ReleaseBuffer(big)
}
