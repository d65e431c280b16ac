package core

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/scigolib/hnf/internal/utils"
)

// DataLayoutClass represents the storage layout type.
type DataLayoutClass uint8

// Data layout class constants define how dataset data is stored.
const (
	LayoutCompact    DataLayoutClass = 0
	LayoutContiguous DataLayoutClass = 1
	LayoutChunked    DataLayoutClass = 2
	LayoutVirtual    DataLayoutClass = 3
)

// Chunk index types. Version 4 layouts store the type; version 3 chunked
// layouts always index their chunks with a version 1 B-tree, recorded here
// as ChunkIndexBTreeV1.
const (
	ChunkIndexBTreeV1 uint8 = 0
	ChunkIndexSingle  uint8 = 1

	layoutFlagSingleFiltered uint8 = 0x02
)

// DataLayout represents a decoded data layout message.
type DataLayout struct {
	Version     uint8
	Class       DataLayoutClass
	Address     uint64
	Size        uint64 // contiguous data size, or filtered chunk size
	CompactData []byte
	ChunkDims   []uint64 // excludes the trailing element-size dimension
	ChunkIndex  uint8
	Filtered    bool
	FilterMask  uint32
}

// ParseDataLayoutMessage parses a version 3 or 4 data layout message.
// Chunked storage is supported with the version 3 B-tree index and the
// version 4 single-chunk index.
func ParseDataLayoutMessage(data []byte) (*DataLayout, error) {
	if len(data) < 2 {
		return nil, errors.New("data layout message too short")
	}

	dl := &DataLayout{Version: data[0], Class: DataLayoutClass(data[1])}
	if dl.Version != 3 && dl.Version != 4 {
		return nil, fmt.Errorf("unsupported data layout version: %d", dl.Version)
	}

	body := data[2:]
	switch dl.Class {
	case LayoutCompact:
		if len(body) < 2 {
			return nil, errors.New("compact layout message too short")
		}
		size := int(binary.LittleEndian.Uint16(body[0:2]))
		if len(body) < 2+size {
			return nil, errors.New("compact layout data truncated")
		}
		dl.CompactData = append([]byte(nil), body[2:2+size]...)
		dl.Size = uint64(size)

	case LayoutContiguous:
		if len(body) < 16 {
			return nil, errors.New("contiguous layout message too short")
		}
		dl.Address = binary.LittleEndian.Uint64(body[0:8])
		dl.Size = binary.LittleEndian.Uint64(body[8:16])

	case LayoutChunked:
		if dl.Version == 3 {
			if err := dl.parseChunkedV3(body); err != nil {
				return nil, err
			}
			break
		}
		if err := dl.parseChunkedV4(body); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unsupported layout class: %d", dl.Class)
	}

	return dl, nil
}

// parseChunkedV3 decodes dimensionality (rank + 1), the B-tree address and
// one 4-byte size per dimension, the last being the element size.
func (dl *DataLayout) parseChunkedV3(body []byte) error {
	if len(body) < 9 {
		return errors.New("chunked layout message too short")
	}
	ndims := int(body[0])
	if ndims < 2 {
		return fmt.Errorf("invalid chunk dimensionality: %d", ndims)
	}
	if len(body) < 9+ndims*4 {
		return errors.New("chunked layout dimensions truncated")
	}
	dl.ChunkIndex = ChunkIndexBTreeV1
	dl.Address = binary.LittleEndian.Uint64(body[1:9])
	dl.ChunkDims = make([]uint64, ndims-1)
	for i := range dl.ChunkDims {
		dl.ChunkDims[i] = uint64(binary.LittleEndian.Uint32(body[9+i*4:]))
		if dl.ChunkDims[i] == 0 {
			return errors.New("chunk dimension is zero")
		}
	}
	return nil
}

func (dl *DataLayout) parseChunkedV4(body []byte) error {
	if len(body) < 3 {
		return errors.New("chunked layout message too short")
	}
	flags := body[0]
	ndims := int(body[1])
	encLen := int(body[2])
	if ndims < 2 {
		return fmt.Errorf("invalid chunk dimensionality: %d", ndims)
	}
	if encLen < 1 || encLen > 8 {
		return fmt.Errorf("invalid chunk dimension encoding length: %d", encLen)
	}

	pos := 3
	if len(body) < pos+ndims*encLen+1 {
		return errors.New("chunked layout dimensions truncated")
	}
	dims := make([]uint64, ndims)
	for i := range dims {
		dims[i] = utils.DecodeUint(body[pos:], encLen)
		pos += encLen
	}
	dl.ChunkDims = dims[:ndims-1]

	index := body[pos]
	pos++
	if index != ChunkIndexSingle {
		return fmt.Errorf("unsupported chunk index type: %d", index)
	}
	dl.ChunkIndex = index

	if flags&layoutFlagSingleFiltered != 0 {
		if len(body) < pos+12 {
			return errors.New("single chunk filter info truncated")
		}
		dl.Filtered = true
		dl.Size = binary.LittleEndian.Uint64(body[pos : pos+8])
		dl.FilterMask = binary.LittleEndian.Uint32(body[pos+8 : pos+12])
		pos += 12
	}

	if len(body) < pos+8 {
		return errors.New("chunk address truncated")
	}
	dl.Address = binary.LittleEndian.Uint64(body[pos : pos+8])
	return nil
}

// EncodeContiguousLayout encodes a version 4 contiguous layout message.
// Empty datasets use UndefinedAddress and size 0.
func EncodeContiguousLayout(address, size uint64) []byte {
	buf := make([]byte, 18)
	buf[0] = 4
	buf[1] = byte(LayoutContiguous)
	binary.LittleEndian.PutUint64(buf[2:10], address)
	binary.LittleEndian.PutUint64(buf[10:18], size)
	return buf
}

// EncodeSingleChunkLayout encodes a version 4 chunked layout whose single
// chunk covers the whole dataset.
//
//	Version (1) = 4, Class (1) = 2
//	Flags (1): bit 1 set when the chunk is filtered
//	Dimensionality (1) = rank + 1
//	Dimension Size Encoded Length (1) = 8
//	Dimension sizes (8 bytes each), the last one is the element size
//	Chunk Indexing Type (1) = 1 (single chunk)
//	[Filtered chunk size (8) + filter mask (4)] when filtered
//	Chunk address (8)
func EncodeSingleChunkLayout(dims []uint64, elementSize uint32, address, storedSize uint64, filtered bool) []byte {
	ndims := len(dims) + 1
	size := 2 + 3 + ndims*8 + 1 + 8
	if filtered {
		size += 12
	}

	buf := make([]byte, size)
	buf[0] = 4
	buf[1] = byte(LayoutChunked)
	if filtered {
		buf[2] = layoutFlagSingleFiltered
	}
	buf[3] = uint8(ndims) //nolint:gosec // G115: rank bounded by callers
	buf[4] = 8

	pos := 5
	for _, d := range dims {
		binary.LittleEndian.PutUint64(buf[pos:], d)
		pos += 8
	}
	binary.LittleEndian.PutUint64(buf[pos:], uint64(elementSize))
	pos += 8

	buf[pos] = ChunkIndexSingle
	pos++

	if filtered {
		binary.LittleEndian.PutUint64(buf[pos:], storedSize)
		// Filter mask stays zero: every filter in the pipeline was applied.
		pos += 12
	}
	binary.LittleEndian.PutUint64(buf[pos:], address)

	return buf
}

// EncodeFillValueMessage encodes a version 3 fill value message with no
// user-defined fill value. Chunked datasets allocate incrementally,
// contiguous ones late.
func EncodeFillValueMessage(chunked bool) []byte {
	// Flags bits 0-1: space allocation time, bits 2-3: fill write time
	// (2 = only if user defined).
	flags := byte(2) | 2<<2
	if chunked {
		flags = byte(3) | 2<<2
	}
	return []byte{3, flags}
}
