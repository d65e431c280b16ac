package utils

import (
	"errors"
	"fmt"
	"io"
)

// ReadFull reads exactly n bytes at offset. A short read is an error even
// when it ends at EOF, since every structure in the file has a known size.
func ReadFull(r io.ReaderAt, offset uint64, n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative read length %d", n)
	}
	if offset > uint64(1<<63-1) {
		return nil, fmt.Errorf("offset %d out of range", offset)
	}
	buf := make([]byte, n)
	got, err := r.ReadAt(buf, int64(offset)) //nolint:gosec // G115: checked above
	if got == n {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("read %d bytes at 0x%x: %w", n, offset, err)
}

// DecodeUint reads a little-endian unsigned integer of 1, 2, 4 or 8 bytes.
func DecodeUint(b []byte, size int) uint64 {
	var v uint64
	for i := size - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
