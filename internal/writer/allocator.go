package writer

import (
	"fmt"
	"math"
	"sort"
)

// AllocatedBlock tracks an allocated region of the file.
type AllocatedBlock struct {
	Offset uint64
	Size   uint64
}

// Allocator hands out file space with an end-of-file strategy. Archives are
// always rebuilt into a fresh file, so freed space never needs reuse.
//
// Not thread-safe; owned by a single FileWriter.
type Allocator struct {
	blocks     []AllocatedBlock
	nextOffset uint64
}

// NewAllocator creates an allocator whose first block starts at
// initialOffset (the superblock size for a new file).
func NewAllocator(initialOffset uint64) *Allocator {
	return &Allocator{
		blocks:     make([]AllocatedBlock, 0, 64),
		nextOffset: initialOffset,
	}
}

// Allocate reserves size bytes at the end of the file and returns the address.
func (a *Allocator) Allocate(size uint64) (uint64, error) {
	if size == 0 {
		return 0, fmt.Errorf("cannot allocate zero bytes")
	}
	if a.nextOffset > math.MaxUint64-size {
		return 0, fmt.Errorf("allocation of %d bytes at 0x%x overflows the address space", size, a.nextOffset)
	}

	addr := a.nextOffset
	a.blocks = append(a.blocks, AllocatedBlock{Offset: addr, Size: size})
	a.nextOffset += size
	return addr, nil
}

// EndOfFile returns the address where the next allocation would occur.
func (a *Allocator) EndOfFile() uint64 {
	return a.nextOffset
}

// Blocks returns a copy of all allocations sorted by offset.
func (a *Allocator) Blocks() []AllocatedBlock {
	out := make([]AllocatedBlock, len(a.blocks))
	copy(out, a.blocks)
	sort.Slice(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// ValidateNoOverlaps checks allocator integrity.
func (a *Allocator) ValidateNoOverlaps() error {
	blocks := a.Blocks()
	for i := 1; i < len(blocks); i++ {
		prev, cur := blocks[i-1], blocks[i]
		if prev.Offset+prev.Size > cur.Offset {
			return fmt.Errorf("blocks overlap: [0x%x, +%d) and [0x%x, +%d)", prev.Offset, prev.Size, cur.Offset, cur.Size)
		}
	}
	return nil
}
