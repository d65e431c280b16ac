package structures

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Chunk locates one stored chunk of a dataset indexed by a version 1
// B-tree.
type Chunk struct {
	Address    uint64
	Size       uint32   // stored (possibly filtered) size in bytes
	FilterMask uint32   // bit i set: filter i was skipped for this chunk
	Offset     []uint64 // element coordinates of the chunk's first element
}

// ReadChunkIndex collects every chunk of a dataset of the given rank.
// Keys hold the stored size, the filter mask and rank+1 element offsets,
// the last of which (the element-size dimension) is always zero.
func ReadChunkIndex(r io.ReaderAt, address uint64, rank int) ([]Chunk, error) {
	keySize := 8 + (rank+1)*8

	var chunks []Chunk
	err := walkBTree(r, address, BTreeChunk, keySize, func(key []byte, child uint64) error {
		c := Chunk{
			Address:    child,
			Size:       binary.LittleEndian.Uint32(key[0:4]),
			FilterMask: binary.LittleEndian.Uint32(key[4:8]),
			Offset:     make([]uint64, rank),
		}
		for i := range c.Offset {
			c.Offset[i] = binary.LittleEndian.Uint64(key[8+i*8:])
		}
		if c.Size == 0 {
			return fmt.Errorf("chunk at 0x%x has zero size", child)
		}
		chunks = append(chunks, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}
