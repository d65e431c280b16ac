// Package testing provides in-memory file doubles for container tests.
package testing

import (
	"errors"
	"io"
)

// MemFile is an in-memory io.ReaderAt and io.WriterAt. Writes past the end
// grow the buffer; reads past the end report io.EOF like *os.File does.
type MemFile struct {
	data []byte
}

// NewMemFile creates a MemFile seeded with a copy of data.
func NewMemFile(data []byte) *MemFile {
	return &MemFile{data: append([]byte(nil), data...)}
}

// ReadAt implements io.ReaderAt.
func (m *MemFile) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt.
func (m *MemFile) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	end := int(off) + len(p)
	if end > len(m.data) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[off:], p)
	return len(p), nil
}

// Bytes returns the current contents.
func (m *MemFile) Bytes() []byte {
	return m.data
}

// Corrupt flips every bit of the byte at off.
func (m *MemFile) Corrupt(off int) {
	m.data[off] ^= 0xFF
}
