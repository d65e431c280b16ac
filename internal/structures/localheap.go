// Package structures reads the indexing structures of old-style (HDF5
// 1.6 layout) files: local heaps, symbol table nodes and version 1
// B-trees for groups and chunked datasets.
package structures

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/scigolib/hnf/internal/utils"
)

// localHeapHeaderSize is the header size with 8-byte offsets and lengths.
const localHeapHeaderSize = 32

// LocalHeap holds the data segment of a local heap, where old-style
// groups keep their link names.
//
//	Signature "HEAP" (4), version 0 (1), reserved (3)
//	Data segment size (8)
//	Offset to head of free list (8)
//	Data segment address (8)
type LocalHeap struct {
	Data []byte
}

// LoadLocalHeap reads the local heap at address together with its data
// segment.
func LoadLocalHeap(r io.ReaderAt, address uint64) (*LocalHeap, error) {
	header, err := utils.ReadFull(r, address, localHeapHeaderSize)
	if err != nil {
		return nil, utils.WrapError("local heap header read failed", err)
	}
	if string(header[0:4]) != "HEAP" {
		return nil, errors.New("invalid local heap signature")
	}
	if header[4] != 0 {
		return nil, fmt.Errorf("unsupported local heap version: %d", header[4])
	}

	size := binary.LittleEndian.Uint64(header[8:16])
	dataAddr := binary.LittleEndian.Uint64(header[24:32])
	if size > 1<<30 {
		return nil, fmt.Errorf("local heap data segment too large: %d bytes", size)
	}

	data, err := utils.ReadFull(r, dataAddr, int(size))
	if err != nil {
		return nil, utils.WrapError("local heap data read failed", err)
	}
	return &LocalHeap{Data: data}, nil
}

// String returns the null-terminated string at offset.
func (h *LocalHeap) String(offset uint64) (string, error) {
	if offset >= uint64(len(h.Data)) {
		return "", fmt.Errorf("local heap offset %d beyond data segment (%d bytes)", offset, len(h.Data))
	}
	rest := h.Data[offset:]
	for i, c := range rest {
		if c == 0 {
			return string(rest[:i]), nil
		}
	}
	return "", fmt.Errorf("unterminated string at local heap offset %d", offset)
}
