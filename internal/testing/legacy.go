package testing

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
)

// LegacyAttr is an attribute of a legacy object. String values are stored
// as variable-length strings in a global heap, the way h5py stores str.
type LegacyAttr struct {
	Name  string
	Value any // string, []string, int64, []int64, float64 or []float64
}

// LegacyDataset describes one dataset. Exactly one of the value slices is
// set; Strings become variable-length strings.
type LegacyDataset struct {
	Dims     []uint64 // nil: one-dimensional
	Float64s []float64
	Int64s   []int64
	Uint8s   []uint8
	Strings  []string

	Chunks  []uint64 // chunk shape; nil stores the data contiguously
	Deflate bool     // chunked datasets only
	Attrs   []LegacyAttr
}

// LegacyGroup describes one group. Members are stored sorted by name, as
// symbol tables require.
type LegacyGroup struct {
	Attrs    []LegacyAttr
	Groups   map[string]*LegacyGroup
	Datasets map[string]*LegacyDataset
}

// Layout constants of the files BuildLegacy writes.
const (
	legacySuperblockSize = 96
	legacySNODCapacity   = 8
	legacyChunkLeafSize  = 4
	legacyHeapCollection = 4096
	legacyUndef          = math.MaxUint64
)

var le = binary.LittleEndian

// BuildLegacy returns the bytes of a file in the layout HDF5 1.6 and
// h5py's default libver produce: a version 0 superblock, version 1 object
// headers, symbol table groups and chunked datasets indexed by version 1
// B-trees. Headers with more than three messages spill the rest into a
// continuation block.
func BuildLegacy(root *LegacyGroup) ([]byte, error) {
	b := &legacyBuilder{buf: make([]byte, legacySuperblockSize)}
	rootAddr, btree, heap, err := b.group(root)
	if err != nil {
		return nil, err
	}

	sb := b.buf[:legacySuperblockSize]
	copy(sb, "\x89HDF\r\n\x1a\n")
	sb[13], sb[14] = 8, 8
	le.PutUint16(sb[16:], legacySNODCapacity/2)
	le.PutUint16(sb[18:], 16)
	le.PutUint64(sb[24:], 0)
	le.PutUint64(sb[32:], legacyUndef)
	le.PutUint64(sb[40:], uint64(len(b.buf)))
	le.PutUint64(sb[48:], legacyUndef)
	// Root group symbol table entry with its cached B-tree and heap.
	le.PutUint64(sb[56:], 0)
	le.PutUint64(sb[64:], rootAddr)
	le.PutUint32(sb[72:], 1)
	le.PutUint64(sb[80:], btree)
	le.PutUint64(sb[88:], heap)
	return b.buf, nil
}

type legacyBuilder struct {
	buf []byte
}

// alloc appends data at the next 8-byte boundary and returns its address.
func (b *legacyBuilder) alloc(data []byte) uint64 {
	for len(b.buf)%8 != 0 {
		b.buf = append(b.buf, 0)
	}
	addr := uint64(len(b.buf))
	b.buf = append(b.buf, data...)
	return addr
}

type legacyMsg struct {
	typ  uint16
	data []byte
}

func pad8(b []byte) []byte {
	for len(b)%8 != 0 {
		b = append(b, 0)
	}
	return b
}

func encodeMessages(msgs []legacyMsg) []byte {
	var out []byte
	for _, m := range msgs {
		data := pad8(slices.Clone(m.data))
		out = le.AppendUint16(out, m.typ)
		out = le.AppendUint16(out, uint16(len(data))) //nolint:gosec // G115: fixture messages are small
		out = append(out, 0, 0, 0, 0)
		out = append(out, data...)
	}
	return out
}

// objectHeader writes a version 1 object header and returns its address.
func (b *legacyBuilder) objectHeader(msgs []legacyMsg) uint64 {
	total := len(msgs)
	first := msgs
	if len(msgs) > 3 {
		rest := encodeMessages(msgs[3:])
		addr := b.alloc(rest)
		cont := le.AppendUint64(nil, addr)
		cont = le.AppendUint64(cont, uint64(len(rest)))
		first = append(slices.Clone(msgs[:3]), legacyMsg{typ: 0x10, data: cont})
		total++
	}
	body := encodeMessages(first)

	hdr := make([]byte, 16, 16+len(body))
	hdr[0] = 1
	le.PutUint16(hdr[2:], uint16(total)) //nolint:gosec // G115: fixture headers are small
	le.PutUint32(hdr[4:], 1)
	le.PutUint32(hdr[8:], uint32(len(body))) //nolint:gosec // G115: fixture headers are small
	return b.alloc(append(hdr, body...))
}

func (b *legacyBuilder) group(g *LegacyGroup) (addr, btree, heap uint64, err error) {
	var names []string
	for name := range g.Groups {
		names = append(names, name)
	}
	for name := range g.Datasets {
		if _, dup := g.Groups[name]; dup {
			return 0, 0, 0, fmt.Errorf("member %q is both a group and a dataset", name)
		}
		names = append(names, name)
	}
	slices.Sort(names)

	addrs := make([]uint64, len(names))
	for i, name := range names {
		if sub, ok := g.Groups[name]; ok {
			addrs[i], _, _, err = b.group(sub)
		} else {
			addrs[i], err = b.dataset(g.Datasets[name])
		}
		if err != nil {
			return 0, 0, 0, fmt.Errorf("%s: %w", name, err)
		}
	}

	// Local heap: offset 0 holds the empty string.
	data := make([]byte, 8)
	offsets := make([]uint64, len(names))
	for i, name := range names {
		offsets[i] = uint64(len(data))
		data = pad8(append(append(data, name...), 0))
	}
	dataAddr := b.alloc(data)
	hdr := make([]byte, 32)
	copy(hdr, "HEAP")
	le.PutUint64(hdr[8:], uint64(len(data)))
	le.PutUint64(hdr[16:], legacyUndef)
	le.PutUint64(hdr[24:], dataAddr)
	heap = b.alloc(hdr)

	// Symbol table nodes, then one leaf B-tree node pointing at them.
	var snods, lastKeys []uint64
	for start := 0; start < len(names); start += legacySNODCapacity {
		end := min(start+legacySNODCapacity, len(names))
		node := make([]byte, 8+legacySNODCapacity*40)
		copy(node, "SNOD")
		node[4] = 1
		le.PutUint16(node[6:], uint16(end-start)) //nolint:gosec // G115: at most legacySNODCapacity
		for i := start; i < end; i++ {
			e := node[8+(i-start)*40:]
			le.PutUint64(e[0:], offsets[i])
			le.PutUint64(e[8:], addrs[i])
		}
		snods = append(snods, b.alloc(node))
		lastKeys = append(lastKeys, offsets[end-1])
	}

	tree := btreeHeader(0, 0, len(snods))
	tree = le.AppendUint64(tree, 0)
	for i, snod := range snods {
		tree = le.AppendUint64(tree, snod)
		tree = le.AppendUint64(tree, lastKeys[i])
	}
	btree = b.alloc(tree)

	stm := le.AppendUint64(nil, btree)
	stm = le.AppendUint64(stm, heap)
	msgs := []legacyMsg{{typ: 0x11, data: stm}}
	attrs, err := b.attributes(g.Attrs)
	if err != nil {
		return 0, 0, 0, err
	}
	return b.objectHeader(append(msgs, attrs...)), btree, heap, nil
}

func btreeHeader(nodeType, level uint8, used int) []byte {
	h := make([]byte, 24)
	copy(h, "TREE")
	h[4], h[5] = nodeType, level
	le.PutUint16(h[6:], uint16(used)) //nolint:gosec // G115: fixture trees are small
	le.PutUint64(h[8:], legacyUndef)
	le.PutUint64(h[16:], legacyUndef)
	return h
}

func (b *legacyBuilder) dataset(d *LegacyDataset) (uint64, error) {
	var dt, raw []byte
	var n, elem int
	switch {
	case d.Float64s != nil:
		dt, n, elem = float64Type(), len(d.Float64s), 8
		for _, v := range d.Float64s {
			raw = le.AppendUint64(raw, math.Float64bits(v))
		}
	case d.Int64s != nil:
		dt, n, elem = intType(8, true), len(d.Int64s), 8
		for _, v := range d.Int64s {
			raw = le.AppendUint64(raw, uint64(v)) //nolint:gosec // G115: two's complement bits
		}
	case d.Uint8s != nil:
		dt, raw, n, elem = intType(1, false), slices.Clone(d.Uint8s), len(d.Uint8s), 1
	case d.Strings != nil:
		dt, raw, n, elem = varLenStringType(), b.varLenRefs(d.Strings), len(d.Strings), 16
	default:
		return 0, errors.New("dataset has no values")
	}

	dims := d.Dims
	if dims == nil {
		dims = []uint64{uint64(n)}
	}
	count := uint64(1)
	for _, x := range dims {
		count *= x
	}
	if count != uint64(n) {
		return 0, fmt.Errorf("shape %v holds %d elements, have %d", dims, count, n)
	}

	msgs := []legacyMsg{
		{typ: 0x01, data: dataspaceV1(dims)},
		{typ: 0x03, data: dt},
	}
	switch {
	case d.Chunks == nil:
		if d.Deflate {
			return 0, errors.New("deflate needs a chunked layout")
		}
		addr := uint64(legacyUndef)
		if len(raw) > 0 {
			addr = b.alloc(raw)
		}
		layout := []byte{3, 1}
		layout = le.AppendUint64(layout, addr)
		layout = le.AppendUint64(layout, uint64(len(raw)))
		msgs = append(msgs, legacyMsg{typ: 0x08, data: layout})
	default:
		if len(d.Chunks) != len(dims) {
			return 0, fmt.Errorf("chunk rank %d differs from dataset rank %d", len(d.Chunks), len(dims))
		}
		btree, err := b.chunks(raw, dims, d.Chunks, elem, d.Deflate)
		if err != nil {
			return 0, err
		}
		layout := []byte{3, 2, uint8(len(dims) + 1)} //nolint:gosec // G115: fixture ranks are small
		layout = le.AppendUint64(layout, btree)
		for _, c := range d.Chunks {
			layout = le.AppendUint32(layout, uint32(c)) //nolint:gosec // G115: fixture chunks are small
		}
		layout = le.AppendUint32(layout, uint32(elem)) //nolint:gosec // G115: element sizes are small
		msgs = append(msgs, legacyMsg{typ: 0x08, data: layout})
		if d.Deflate {
			msgs = append(msgs, legacyMsg{typ: 0x0B, data: deflatePipelineV1()})
		}
	}

	attrs, err := b.attributes(d.Attrs)
	if err != nil {
		return 0, err
	}
	return b.objectHeader(append(msgs, attrs...)), nil
}

// chunks writes every chunk of the dataset and the B-tree indexing them.
// More than legacyChunkLeafSize chunks produce a two-level tree.
func (b *legacyBuilder) chunks(raw []byte, dims, chunk []uint64, elem int, deflate bool) (uint64, error) {
	rank := len(dims)
	grid := make([]uint64, rank)
	for i := range dims {
		if chunk[i] == 0 {
			return 0, errors.New("zero chunk dimension")
		}
		grid[i] = (dims[i] + chunk[i] - 1) / chunk[i]
	}
	chunkElems := 1
	for _, c := range chunk {
		chunkElems *= int(c) //nolint:gosec // G115: fixture chunks are small
	}

	type entry struct {
		key  []byte
		addr uint64
	}
	var entries []entry

	scaled := make([]uint64, rank)
	for total := product(grid); total > 0; total-- {
		offset := make([]uint64, rank)
		for i := range offset {
			offset[i] = scaled[i] * chunk[i]
		}
		data := make([]byte, chunkElems*elem)
		fillChunk(data, raw, dims, chunk, offset, elem)
		if deflate {
			var buf bytes.Buffer
			zw := zlib.NewWriter(&buf)
			if _, err := zw.Write(data); err != nil {
				return 0, err
			}
			if err := zw.Close(); err != nil {
				return 0, err
			}
			data = buf.Bytes()
		}
		entries = append(entries, entry{key: chunkKey(uint32(len(data)), offset), addr: b.alloc(data)}) //nolint:gosec // G115: fixture chunks are small

		for i := rank - 1; i >= 0; i-- {
			scaled[i]++
			if scaled[i] < grid[i] {
				break
			}
			scaled[i] = 0
		}
	}

	end := make([]uint64, rank)
	if rank > 0 {
		end[0] = grid[0] * chunk[0]
	}
	finalKey := chunkKey(0, end)

	node := func(level uint8, keys [][]byte, children []uint64, last []byte) uint64 {
		buf := btreeHeader(1, level, len(children))
		for i, child := range children {
			buf = append(buf, keys[i]...)
			buf = le.AppendUint64(buf, child)
		}
		return b.alloc(append(buf, last...))
	}

	if len(entries) <= legacyChunkLeafSize {
		keys := make([][]byte, len(entries))
		addrs := make([]uint64, len(entries))
		for i, e := range entries {
			keys[i], addrs[i] = e.key, e.addr
		}
		return node(0, keys, addrs, finalKey), nil
	}

	var leafKeys [][]byte
	var leaves []uint64
	for start := 0; start < len(entries); start += legacyChunkLeafSize {
		stop := min(start+legacyChunkLeafSize, len(entries))
		keys := make([][]byte, 0, stop-start)
		addrs := make([]uint64, 0, stop-start)
		for _, e := range entries[start:stop] {
			keys = append(keys, e.key)
			addrs = append(addrs, e.addr)
		}
		last := finalKey
		if stop < len(entries) {
			last = entries[stop].key
		}
		leafKeys = append(leafKeys, keys[0])
		leaves = append(leaves, node(0, keys, addrs, last))
	}
	return node(1, leafKeys, leaves, finalKey), nil
}

func product(v []uint64) uint64 {
	p := uint64(1)
	for _, x := range v {
		p *= x
	}
	return p
}

// chunkKey encodes stored size, a zero filter mask and the element offset
// of the chunk plus the trailing element-size dimension.
func chunkKey(size uint32, offset []uint64) []byte {
	key := le.AppendUint32(nil, size)
	key = le.AppendUint32(key, 0)
	for _, o := range offset {
		key = le.AppendUint64(key, o)
	}
	return le.AppendUint64(key, 0)
}

// fillChunk copies the part of the row-major array raw that falls inside
// the chunk starting at offset. Cells past the dataset edge stay zero.
func fillChunk(dst, raw []byte, dims, chunk, offset []uint64, elem int) {
	rank := len(dims)
	ext := make([]uint64, rank)
	for i := range dims {
		if offset[i] >= dims[i] {
			return
		}
		ext[i] = min(chunk[i], dims[i]-offset[i])
	}
	idx := make([]uint64, rank)
	for {
		var src, dstOff uint64
		srcStride, dstStride := uint64(1), uint64(1)
		for i := rank - 1; i >= 0; i-- {
			src += (offset[i] + idx[i]) * srcStride
			dstOff += idx[i] * dstStride
			srcStride *= dims[i]
			dstStride *= chunk[i]
		}
		s, d := int(src)*elem, int(dstOff)*elem //nolint:gosec // G115: fixture sizes are small
		copy(dst[d:d+elem], raw[s:s+elem])

		i := rank - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < ext[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return
		}
	}
}

// varLenRefs stores strs in a new global heap collection and returns one
// 16-byte reference per string.
func (b *legacyBuilder) varLenRefs(strs []string) []byte {
	coll := make([]byte, 16)
	copy(coll, "GCOL")
	coll[4] = 1
	for i, s := range strs {
		coll = le.AppendUint16(coll, uint16(i+1)) //nolint:gosec // G115: fixture collections are small
		coll = le.AppendUint16(coll, 1)
		coll = append(coll, 0, 0, 0, 0)
		coll = le.AppendUint64(coll, uint64(len(s)))
		coll = pad8(append(coll, s...))
	}
	size := max(len(coll)+16, legacyHeapCollection)
	// Trailing free-space object (index 0) covering the remainder.
	free := size - len(coll)
	coll = append(coll, 0, 0, 0, 0, 0, 0, 0, 0)
	coll = le.AppendUint64(coll, uint64(free))
	coll = append(coll, make([]byte, size-len(coll))...)
	le.PutUint64(coll[8:], uint64(size))
	addr := b.alloc(coll)

	refs := make([]byte, 0, 16*len(strs))
	for i, s := range strs {
		refs = le.AppendUint32(refs, uint32(len(s))) //nolint:gosec // G115: fixture strings are small
		refs = le.AppendUint64(refs, addr)
		refs = le.AppendUint32(refs, uint32(i+1)) //nolint:gosec // G115: fixture collections are small
	}
	return refs
}

func (b *legacyBuilder) attributes(attrs []LegacyAttr) ([]legacyMsg, error) {
	msgs := make([]legacyMsg, 0, len(attrs))
	for _, a := range attrs {
		var dt, data []byte
		var dims []uint64
		switch v := a.Value.(type) {
		case string:
			dt, data = varLenStringType(), b.varLenRefs([]string{v})
		case []string:
			dt, data, dims = varLenStringType(), b.varLenRefs(v), []uint64{uint64(len(v))}
		case int64:
			dt, data = intType(8, true), le.AppendUint64(nil, uint64(v)) //nolint:gosec // G115: two's complement bits
		case []int64:
			dt, dims = intType(8, true), []uint64{uint64(len(v))}
			for _, x := range v {
				data = le.AppendUint64(data, uint64(x)) //nolint:gosec // G115: two's complement bits
			}
		case float64:
			dt, data = float64Type(), le.AppendUint64(nil, math.Float64bits(v))
		case []float64:
			dt, dims = float64Type(), []uint64{uint64(len(v))}
			for _, x := range v {
				data = le.AppendUint64(data, math.Float64bits(x))
			}
		default:
			return nil, fmt.Errorf("attribute %q: unsupported value %T", a.Name, a.Value)
		}
		ds := dataspaceV1(dims)
		name := append([]byte(a.Name), 0)

		// Version 1 attribute message: sizes are unpadded, fields padded.
		msg := []byte{1, 0}
		msg = le.AppendUint16(msg, uint16(len(name))) //nolint:gosec // G115: fixture names are small
		msg = le.AppendUint16(msg, uint16(len(dt)))   //nolint:gosec // G115: datatype messages are small
		msg = le.AppendUint16(msg, uint16(len(ds)))   //nolint:gosec // G115: dataspace messages are small
		msg = append(msg, pad8(name)...)
		msg = append(msg, pad8(slices.Clone(dt))...)
		msg = append(msg, pad8(slices.Clone(ds))...)
		msg = append(msg, data...)
		msgs = append(msgs, legacyMsg{typ: 0x0C, data: msg})
	}
	return msgs, nil
}

// dataspaceV1 encodes a version 1 dataspace; nil dims is a scalar.
func dataspaceV1(dims []uint64) []byte {
	ds := []byte{1, uint8(len(dims)), 0, 0, 0, 0, 0, 0} //nolint:gosec // G115: fixture ranks are small
	for _, d := range dims {
		ds = le.AppendUint64(ds, d)
	}
	return ds
}

func intType(size uint32, signed bool) []byte {
	dt := []byte{0x10, 0, 0, 0}
	if signed {
		dt[1] = 0x08
	}
	dt = le.AppendUint32(dt, size)
	dt = le.AppendUint16(dt, 0)
	return le.AppendUint16(dt, uint16(size*8)) //nolint:gosec // G115: size <= 8
}

func float64Type() []byte {
	dt := []byte{0x11, 0x20, 63, 0}
	dt = le.AppendUint32(dt, 8)
	dt = le.AppendUint16(dt, 0)
	dt = le.AppendUint16(dt, 64)
	dt = append(dt, 52, 11, 0, 52)
	return le.AppendUint32(dt, 1023)
}

// varLenStringType is a UTF-8 variable-length string whose base type is
// an unsigned byte.
func varLenStringType() []byte {
	dt := []byte{0x19, 0x01, 0x01, 0}
	dt = le.AppendUint32(dt, 16)
	return append(dt, intType(1, false)...)
}

// deflatePipelineV1 is a version 1 pipeline with deflate at level 6.
func deflatePipelineV1() []byte {
	fp := []byte{1, 1, 0, 0, 0, 0, 0, 0}
	fp = le.AppendUint16(fp, 1)
	fp = le.AppendUint16(fp, 0)
	fp = le.AppendUint16(fp, 0)
	fp = le.AppendUint16(fp, 1)
	fp = le.AppendUint32(fp, 6)
	return append(fp, 0, 0, 0, 0)
}
