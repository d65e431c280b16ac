// Package writer provides HDF5 file writing infrastructure: space
// allocation, atomic file replacement and the chunk filter pipeline.
package writer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileWriter writes a new container into a temporary file next to its
// target and renames it into place on Commit. Readers of the old file keep
// working until they close their handles.
//
// Thread-safety: Not thread-safe. Caller must synchronize access.
type FileWriter struct {
	file      *os.File
	target    string
	allocator *Allocator
}

// NewFileWriter creates the temporary file for target. Allocation starts at
// initialOffset; the region before it is reserved for the superblock.
func NewFileWriter(target string, initialOffset uint64) (*FileWriter, error) {
	dir := filepath.Dir(target)
	f, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}

	return &FileWriter{
		file:      f,
		target:    target,
		allocator: NewAllocator(initialOffset),
	}, nil
}

// Allocate reserves a block of space in the file.
func (w *FileWriter) Allocate(size uint64) (uint64, error) {
	if w.file == nil {
		return 0, errors.New("writer is closed")
	}
	return w.allocator.Allocate(size)
}

// WriteAt writes data at a specific address in the file.
func (w *FileWriter) WriteAt(data []byte, offset int64) (int, error) {
	if w.file == nil {
		return 0, errors.New("writer is closed")
	}
	if len(data) == 0 {
		return 0, nil
	}

	n, err := w.file.WriteAt(data, offset)
	if err != nil {
		return n, fmt.Errorf("write at address %d failed: %w", offset, err)
	}
	if n != len(data) {
		return n, fmt.Errorf("incomplete write at address %d: wrote %d of %d bytes", offset, n, len(data))
	}
	return n, nil
}

// WriteAtWithAllocation allocates space for data, writes it and returns its address.
func (w *FileWriter) WriteAtWithAllocation(data []byte) (uint64, error) {
	if len(data) == 0 {
		return 0, errors.New("cannot write empty data")
	}

	addr, err := w.Allocate(uint64(len(data)))
	if err != nil {
		return 0, err
	}
	if _, err := w.WriteAt(data, int64(addr)); err != nil { //nolint:gosec // G115: addresses stay below 2^63
		return 0, err
	}
	return addr, nil
}

// ReadAt reads back written data.
func (w *FileWriter) ReadAt(buf []byte, addr int64) (int, error) {
	if w.file == nil {
		return 0, errors.New("writer is closed")
	}
	return w.file.ReadAt(buf, addr)
}

// EndOfFile returns the current end-of-file address.
func (w *FileWriter) EndOfFile() uint64 {
	return w.allocator.EndOfFile()
}

// Allocator returns the space allocator.
func (w *FileWriter) Allocator() *Allocator {
	return w.allocator
}

// Commit flushes the temporary file to disk and renames it over the target.
func (w *FileWriter) Commit() error {
	if w.file == nil {
		return errors.New("writer is closed")
	}

	name := w.file.Name()
	if err := w.file.Sync(); err != nil {
		_ = w.Abort()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := w.file.Close(); err != nil {
		w.file = nil
		_ = os.Remove(name)
		return fmt.Errorf("close %s: %w", name, err)
	}
	w.file = nil

	if err := os.Rename(name, w.target); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("replace %s: %w", w.target, err)
	}
	return nil
}

// Abort discards the temporary file. Safe to call after Commit.
func (w *FileWriter) Abort() error {
	if w.file == nil {
		return nil
	}
	name := w.file.Name()
	err := w.file.Close()
	w.file = nil
	if rmErr := os.Remove(name); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}

var (
	_ io.ReaderAt = (*FileWriter)(nil)
	_ io.WriterAt = (*FileWriter)(nil)
)
