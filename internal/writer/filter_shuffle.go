package writer

import "fmt"

// ShuffleFilter implements byte shuffle (FilterID = 2).
//
// Bytes are transposed from element order to byte-plane order so that
// similar bytes sit together before compression:
//
//	Original: [A1 A2 A3 A4][B1 B2 B3 B4][C1 C2 C3 C4]
//	Shuffled: [A1 B1 C1][A2 B2 C2][A3 B3 C3][A4 B4 C4]
//
// Shuffle must precede the compression filter in the pipeline.
type ShuffleFilter struct {
	elementSize uint32
}

// NewShuffleFilter creates a shuffle filter for elements of elementSize bytes.
func NewShuffleFilter(elementSize uint32) *ShuffleFilter {
	if elementSize == 0 {
		elementSize = 1
	}
	return &ShuffleFilter{elementSize: elementSize}
}

// ID returns the HDF5 filter identifier for shuffle.
func (f *ShuffleFilter) ID() FilterID { return FilterShuffle }

// Name returns the HDF5 filter name.
func (f *ShuffleFilter) Name() string { return "shuffle" }

// Apply performs the byte shuffle.
func (f *ShuffleFilter) Apply(data []byte) ([]byte, error) {
	return f.transpose(data, false)
}

// Remove reverses the byte shuffle.
func (f *ShuffleFilter) Remove(data []byte) ([]byte, error) {
	return f.transpose(data, true)
}

func (f *ShuffleFilter) transpose(data []byte, inverse bool) ([]byte, error) {
	size := int(f.elementSize)
	if size == 1 || len(data) == 0 {
		return data, nil
	}

	// HDF5 leaves a trailing partial element untouched.
	n := len(data) / size
	out := make([]byte, len(data))
	copy(out[n*size:], data[n*size:])

	for b := 0; b < size; b++ {
		for e := 0; e < n; e++ {
			elem := e*size + b
			plane := b*n + e
			if inverse {
				out[elem] = data[plane]
			} else {
				out[plane] = data[elem]
			}
		}
	}
	return out, nil
}

// Encode returns the element size as the single client data value.
func (f *ShuffleFilter) Encode() (flags uint16, cdValues []uint32) {
	return 0, []uint32{f.elementSize}
}

// String describes the filter.
func (f *ShuffleFilter) String() string {
	return fmt.Sprintf("shuffle(%d)", f.elementSize)
}
