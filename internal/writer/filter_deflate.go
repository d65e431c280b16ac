package writer

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// DeflateFilter implements the HDF5 deflate filter (FilterID = 1). The
// stored form is a zlib stream (RFC 1950), which is what the reference
// library and h5py produce and expect.
//
// Compression levels:
//
//	1 = fastest compression, larger files
//	6 = balanced
//	9 = best compression, slower
type DeflateFilter struct {
	level int
}

// NewDeflateFilter creates a deflate filter. Levels outside 1-9 fall back to 6.
func NewDeflateFilter(level int) *DeflateFilter {
	if level < 1 || level > 9 {
		level = 6
	}
	return &DeflateFilter{level: level}
}

// ID returns the HDF5 filter identifier for deflate.
func (f *DeflateFilter) ID() FilterID { return FilterDeflate }

// Name returns the HDF5 filter name.
func (f *DeflateFilter) Name() string { return "deflate" }

// Apply compresses data into a zlib stream.
func (f *DeflateFilter) Apply(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(data)/2 + 64)

	w, err := zlib.NewWriterLevel(&buf, f.level)
	if err != nil {
		return nil, fmt.Errorf("zlib writer creation failed: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("deflate compression failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("deflate close failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Remove inflates a zlib stream.
func (f *DeflateFilter) Remove(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zlib reader creation failed: %w", err)
	}
	defer func() { _ = r.Close() }()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("deflate decompression failed: %w", err)
	}
	return out, nil
}

// Encode returns the compression level as the single client data value.
func (f *DeflateFilter) Encode() (flags uint16, cdValues []uint32) {
	return 0, []uint32{uint32(f.level)} //nolint:gosec // G115: level is 1-9
}
