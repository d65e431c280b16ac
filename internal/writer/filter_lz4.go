package writer

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// DefaultLZ4BlockSize matches the HDF5 LZ4 plugin default of 1 GiB.
const DefaultLZ4BlockSize = 1 << 30

// LZ4Filter implements the registered HDF5 LZ4 filter (FilterID = 32004).
//
// Stored layout (all integers big-endian):
//
//	Original size (8) | Block size (4) | { Compressed size (4) | Block } ...
//
// A block whose compressed size equals its original size is stored raw.
type LZ4Filter struct {
	blockSize uint32
}

// NewLZ4Filter creates an LZ4 filter; zero selects DefaultLZ4BlockSize.
func NewLZ4Filter(blockSize uint32) *LZ4Filter {
	if blockSize == 0 {
		blockSize = DefaultLZ4BlockSize
	}
	return &LZ4Filter{blockSize: blockSize}
}

// ID returns the HDF5 filter identifier for LZ4.
func (f *LZ4Filter) ID() FilterID { return FilterLZ4 }

// Name returns the plugin name recorded in the pipeline message.
func (f *LZ4Filter) Name() string { return "lz4" }

// Apply compresses data block by block.
func (f *LZ4Filter) Apply(data []byte) ([]byte, error) {
	block := int(f.blockSize)
	out := make([]byte, 12, 12+lz4.CompressBlockBound(len(data))+4*(len(data)/block+1))
	binary.BigEndian.PutUint64(out[0:8], uint64(len(data)))
	binary.BigEndian.PutUint32(out[8:12], f.blockSize)

	scratch := make([]byte, lz4.CompressBlockBound(min(block, len(data))))
	for start := 0; start < len(data); start += block {
		src := data[start:min(start+block, len(data))]
		n, err := lz4.CompressBlock(src, scratch, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compression failed: %w", err)
		}
		if n == 0 || n >= len(src) {
			out = binary.BigEndian.AppendUint32(out, uint32(len(src))) //nolint:gosec // G115: block <= 1 GiB
			out = append(out, src...)
			continue
		}
		out = binary.BigEndian.AppendUint32(out, uint32(n)) //nolint:gosec // G115: n < block
		out = append(out, scratch[:n]...)
	}
	return out, nil
}

// Remove decompresses data produced by Apply or by the HDF5 LZ4 plugin.
func (f *LZ4Filter) Remove(data []byte) ([]byte, error) {
	if len(data) < 12 {
		return nil, errors.New("lz4 chunk header truncated")
	}
	total := binary.BigEndian.Uint64(data[0:8])
	block := uint64(binary.BigEndian.Uint32(data[8:12]))
	if block == 0 {
		return nil, errors.New("lz4 chunk has zero block size")
	}
	if total > uint64(len(data))*255+block {
		return nil, fmt.Errorf("lz4 chunk claims implausible size %d", total)
	}

	out := make([]byte, total)
	pos := 12
	for done := uint64(0); done < total; {
		want := min(block, total-done)
		if pos+4 > len(data) {
			return nil, errors.New("lz4 block header truncated")
		}
		size := int(binary.BigEndian.Uint32(data[pos:]))
		pos += 4
		if pos+size > len(data) {
			return nil, errors.New("lz4 block truncated")
		}
		src := data[pos : pos+size]
		dst := out[done : done+want]
		if uint64(size) == want {
			copy(dst, src)
		} else {
			n, err := lz4.UncompressBlock(src, dst)
			if err != nil {
				return nil, fmt.Errorf("lz4 decompression failed: %w", err)
			}
			if uint64(n) != want {
				return nil, fmt.Errorf("lz4 block decompressed to %d bytes, expected %d", n, want)
			}
		}
		pos += size
		done += want
	}
	return out, nil
}

// Encode returns the block size as the single client data value.
func (f *LZ4Filter) Encode() (flags uint16, cdValues []uint32) {
	return 0, []uint32{f.blockSize}
}
