// Package store implements the container tree neuron archives are stored
// in: a pure-Go subset of HDF5 with lazily loaded groups and datasets on
// the read side and whole-file atomic rewrites on the write side.
package store

import (
	"fmt"
	"os"
	"sync"

	"github.com/scigolib/hnf/internal/core"
	"github.com/scigolib/hnf/internal/structures"
	"github.com/scigolib/hnf/internal/utils"
)

// File is a read handle on a container file. Handles are cheap; concurrent
// readers should each open their own.
type File struct {
	path  string
	osf   *os.File
	sb    *core.Superblock
	key   fileKey
	cache *HeaderCache

	mu   sync.Mutex
	root *Group
}

// Option configures Open.
type Option func(*File)

// WithHeaderCache shares parsed object headers through c.
func WithHeaderCache(c *HeaderCache) Option {
	return func(f *File) {
		f.cache = c
	}
}

// Open opens path read-only and validates its superblock.
func Open(path string, opts ...Option) (*File, error) {
	osf, err := os.Open(path) //nolint:gosec // G304: caller-chosen archive path
	if err != nil {
		return nil, err
	}

	info, err := osf.Stat()
	if err != nil {
		_ = osf.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	sb, err := core.ReadSuperblock(osf)
	if err != nil {
		_ = osf.Close()
		return nil, utils.WrapErrorf(err, "open %s", path)
	}

	f := &File{
		path: path,
		osf:  osf,
		sb:   sb,
		key:  fileKey{path: path, size: info.Size(), mtime: info.ModTime().UnixNano()},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Path returns the path the file was opened with.
func (f *File) Path() string {
	return f.path
}

// Superblock returns the parsed superblock.
func (f *File) Superblock() *core.Superblock {
	return f.sb
}

// Root returns the root group, loading it on first use.
func (f *File) Root() (*Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.osf == nil {
		return nil, ErrClosed
	}
	if f.root != nil {
		return f.root, nil
	}

	obj, err := f.object(f.sb.RootGroup)
	if err != nil {
		return nil, utils.WrapError("root group", err)
	}
	root, err := loadGroup(f, obj)
	if err != nil {
		return nil, utils.WrapError("root group", err)
	}
	f.root = root
	return root, nil
}

// Close releases the file handle. It is idempotent.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.osf == nil {
		return nil
	}
	err := f.osf.Close()
	f.osf = nil
	return err
}

func (f *File) object(addr uint64) (*object, error) {
	if f.osf == nil {
		return nil, ErrClosed
	}
	k := headerKey{file: f.key, addr: addr}
	if f.cache != nil {
		if obj, ok := f.cache.get(k); ok {
			return obj, nil
		}
	}
	oh, err := core.ReadObjectHeader(f.osf, addr)
	if err != nil {
		return nil, err
	}
	obj := &object{oh: oh}
	if f.cache != nil {
		obj = f.cache.add(k, obj)
	}
	return obj, nil
}

func (f *File) readAt(addr uint64, n int) ([]byte, error) {
	if f.osf == nil {
		return nil, ErrClosed
	}
	return utils.ReadFull(f.osf, addr, n)
}

// groupLinks enumerates an old-style group through its B-tree and heap.
func (f *File) groupLinks(stm *core.SymbolTableMessage) ([]structures.GroupLink, error) {
	if f.osf == nil {
		return nil, ErrClosed
	}
	return structures.ReadGroupLinks(f.osf, stm)
}

// chunkIndex lists the chunks of a dataset indexed by a version 1 B-tree.
func (f *File) chunkIndex(addr uint64, rank int) ([]structures.Chunk, error) {
	if f.osf == nil {
		return nil, ErrClosed
	}
	return structures.ReadChunkIndex(f.osf, addr, rank)
}

// varLenStrings resolves n variable-length string elements through the
// global heap.
func (f *File) varLenStrings(data []byte, n int) ([]string, error) {
	if f == nil || f.osf == nil {
		return nil, ErrClosed
	}
	if len(data) < n*core.VarLenRefSize {
		return nil, fmt.Errorf("variable-length data is %d bytes, %d elements need %d", len(data), n, n*core.VarLenRefSize)
	}

	heaps := make(map[uint64]*core.GlobalHeapCollection)
	out := make([]string, n)
	for i := range out {
		ref := core.ParseVarLenRef(data[i*core.VarLenRefSize:])
		if ref.Length == 0 || ref.Heap == 0 || ref.Heap == core.UndefinedAddress {
			continue
		}
		gc, ok := heaps[ref.Heap]
		if !ok {
			var err error
			if gc, err = core.ReadGlobalHeapCollection(f.osf, ref.Heap); err != nil {
				return nil, err
			}
			heaps[ref.Heap] = gc
		}
		b, err := gc.Object(ref.Index, ref.Length)
		if err != nil {
			return nil, err
		}
		out[i] = string(b)
	}
	return out, nil
}
