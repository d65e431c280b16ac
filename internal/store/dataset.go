package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/scigolib/hnf/internal/core"
	"github.com/scigolib/hnf/internal/utils"
	"github.com/scigolib/hnf/internal/writer"
)

// Codec selects the compression filter applied to a dataset on write.
type Codec uint8

// Supported codecs.
const (
	CodecNone Codec = iota
	CodecDeflate
	CodecLZ4
)

// String returns the codec name.
func (c Codec) String() string {
	switch c {
	case CodecDeflate:
		return "deflate"
	case CodecLZ4:
		return "lz4"
	}
	return "none"
}

// Compression describes the filter pipeline of a stored dataset.
type Compression struct {
	Codec   Codec
	Level   int // deflate level 1-9
	Shuffle bool
}

// pipeline returns nil when no filter applies.
func (c Compression) pipeline(elementSize uint32) *writer.FilterPipeline {
	fp := writer.NewFilterPipeline()
	if c.Shuffle && c.Codec != CodecNone && elementSize > 1 {
		fp.AddFilter(writer.NewShuffleFilter(elementSize))
	}
	switch c.Codec {
	case CodecDeflate:
		fp.AddFilter(writer.NewDeflateFilter(c.Level))
	case CodecLZ4:
		fp.AddFilter(writer.NewLZ4Filter(writer.DefaultLZ4BlockSize))
	}
	if fp.IsEmpty() {
		return nil
	}
	return fp
}

// DatasetOption configures a dataset when it is linked into a group.
type DatasetOption func(*Dataset)

// WithCompression sets the filters used when the dataset is saved.
func WithCompression(c Compression) DatasetOption {
	return func(d *Dataset) {
		d.compression = c
	}
}

type numeric interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64
}

// Dataset is an n-dimensional array of one element type plus attributes.
// Datasets loaded from a file read their data on demand.
type Dataset struct {
	attrSet

	dtype       *core.Datatype
	dims        []uint64
	raw         []byte
	compression Compression

	file    *File
	layout  *core.DataLayout
	filters *core.FilterPipelineMessage
}

func newDataset(dt *core.Datatype, dims []uint64, raw []byte) (*Dataset, error) {
	size, err := utils.StorageSize(dims, uint64(dt.Size))
	if err != nil {
		return nil, err
	}
	if uint64(len(raw)) != size {
		return nil, fmt.Errorf("dataset data is %d bytes, shape %v of %s needs %d", len(raw), dims, dt, size)
	}
	return &Dataset{dtype: dt, dims: dims, raw: raw}, nil
}

// NewNumeric builds a dataset from numeric values. Without dims the
// dataset is one-dimensional.
func NewNumeric[T numeric](vals []T, dims ...uint64) (*Dataset, error) {
	if len(dims) == 0 {
		dims = []uint64{uint64(len(vals))}
	}
	raw := make([]byte, 0, binary.Size(vals))
	raw, err := binary.Append(raw, binary.LittleEndian, vals)
	if err != nil {
		return nil, fmt.Errorf("encode values: %w", err)
	}
	return newDataset(datatypeOf[T](), slices.Clone(dims), raw)
}

// NewStrings builds a one-dimensional fixed-length UTF-8 string dataset
// sized to the longest value. Values are null-padded, so a value holding
// a NUL byte is rejected instead of being silently truncated on read.
func NewStrings(vals []string) (*Dataset, error) {
	size := 1
	for i, s := range vals {
		if err := checkNUL(s); err != nil {
			return nil, fmt.Errorf("string %d: %w", i, err)
		}
		size = max(size, len(s))
	}
	raw := make([]byte, size*len(vals))
	for i, s := range vals {
		copy(raw[i*size:], s)
	}
	return &Dataset{
		dtype: core.StringType(uint32(size)), //nolint:gosec // G115: string widths are bounded by memory
		dims:  []uint64{uint64(len(vals))},
		raw:   raw,
	}, nil
}

func datatypeOf[T numeric]() *core.Datatype {
	var zero T
	switch any(zero).(type) {
	case int8:
		return core.IntType(1, true)
	case int16:
		return core.IntType(2, true)
	case int32:
		return core.IntType(4, true)
	case int64:
		return core.IntType(8, true)
	case uint8:
		return core.IntType(1, false)
	case uint16:
		return core.IntType(2, false)
	case uint32:
		return core.IntType(4, false)
	case uint64:
		return core.IntType(8, false)
	case float32:
		return core.FloatType(4)
	default:
		return core.FloatType(8)
	}
}

func loadDataset(f *File, oh *core.ObjectHeader) (*Dataset, error) {
	d := &Dataset{file: f}

	m := oh.Find(core.MsgDatatype)
	if m == nil {
		return nil, fmt.Errorf("dataset at 0x%x has no datatype message", oh.Address)
	}
	dt, err := core.ParseDatatypeMessage(m.Data)
	if err != nil {
		return nil, err
	}
	d.dtype = dt

	if m = oh.Find(core.MsgDataspace); m == nil {
		return nil, fmt.Errorf("dataset at 0x%x has no dataspace message", oh.Address)
	}
	ds, err := core.ParseDataspaceMessage(m.Data)
	if err != nil {
		return nil, err
	}
	if ds.Type == core.DataspaceNull {
		return nil, fmt.Errorf("%w: null dataspace", ErrUnsupported)
	}
	d.dims = ds.Dims

	if m = oh.Find(core.MsgDataLayout); m == nil {
		return nil, fmt.Errorf("dataset at 0x%x has no layout message", oh.Address)
	}
	if d.layout, err = core.ParseDataLayoutMessage(m.Data); err != nil {
		return nil, err
	}
	if d.layout.Class == core.LayoutChunked {
		switch {
		case len(d.layout.ChunkDims) != len(d.dims):
			return nil, fmt.Errorf("chunk rank %d differs from dataset rank %d", len(d.layout.ChunkDims), len(d.dims))
		case d.layout.ChunkIndex == core.ChunkIndexSingle && len(d.dims) > 0 && !slices.Equal(d.layout.ChunkDims, d.dims):
			return nil, fmt.Errorf("%w: chunk shape %v differs from dataset shape %v", ErrUnsupported, d.layout.ChunkDims, d.dims)
		}
	}

	if m = oh.Find(core.MsgFilterPipeline); m != nil {
		if d.filters, err = core.ParseFilterPipelineMessage(m.Data); err != nil {
			return nil, err
		}
		d.compression = compressionOf(d.filters)
	}

	if err := d.attrSet.load(f, oh); err != nil {
		return nil, err
	}
	return d, nil
}

// compressionOf maps a stored pipeline back to the options that rebuild
// it, so a rewritten dataset keeps its codec. Unknown filters map to
// CodecNone.
func compressionOf(fp *core.FilterPipelineMessage) Compression {
	var c Compression
	for _, fi := range fp.Filters {
		switch writer.FilterID(fi.ID) {
		case writer.FilterShuffle:
			c.Shuffle = true
		case writer.FilterDeflate:
			c.Codec = CodecDeflate
			if len(fi.ClientData) > 0 {
				c.Level = int(fi.ClientData[0])
			}
		case writer.FilterLZ4:
			c.Codec = CodecLZ4
		}
	}
	if c.Codec == CodecNone {
		c.Shuffle = false
	}
	return c
}

// Datatype returns the element type.
func (d *Dataset) Datatype() *core.Datatype {
	return d.dtype
}

// Shape returns a copy of the dimensions. Scalars have an empty shape.
func (d *Dataset) Shape() []uint64 {
	return slices.Clone(d.dims)
}

// Len returns the number of elements.
func (d *Dataset) Len() uint64 {
	n := uint64(1)
	for _, dim := range d.dims {
		n *= dim
	}
	return n
}

// Compression returns the compression applied when the dataset is saved.
func (d *Dataset) Compression() Compression {
	return d.compression
}

func (d *Dataset) byteSize() (uint64, error) {
	return utils.StorageSize(d.dims, uint64(d.dtype.Size))
}

// Raw returns the element bytes in storage byte order with every filter
// removed.
func (d *Dataset) Raw() ([]byte, error) {
	if d.file == nil {
		return d.raw, nil
	}

	size, err := d.byteSize()
	if err != nil {
		return nil, err
	}
	n := int(size) //nolint:gosec // G115: StorageSize checked overflow

	switch d.layout.Class {
	case core.LayoutCompact:
		if len(d.layout.CompactData) != n {
			return nil, fmt.Errorf("compact data is %d bytes, want %d", len(d.layout.CompactData), n)
		}
		return d.layout.CompactData, nil

	case core.LayoutContiguous:
		if d.layout.Address == core.UndefinedAddress {
			return make([]byte, n), nil
		}
		return d.file.readAt(d.layout.Address, n)

	case core.LayoutChunked:
		if d.layout.Address == core.UndefinedAddress {
			return make([]byte, n), nil
		}
		if d.layout.ChunkIndex == core.ChunkIndexBTreeV1 {
			return d.readChunks(n)
		}
		stored := n
		if d.layout.Filtered {
			stored = int(d.layout.Size) //nolint:gosec // G115: bounded by file size on read
		}
		data, err := d.file.readAt(d.layout.Address, stored)
		if err != nil {
			return nil, utils.WrapError("read chunk", err)
		}
		fp, err := d.pipeline()
		if err != nil {
			return nil, err
		}
		if fp != nil {
			if data, err = fp.Remove(data, d.layout.FilterMask); err != nil {
				return nil, utils.WrapError("remove filters", err)
			}
		}
		if len(data) != n {
			return nil, fmt.Errorf("chunk decodes to %d bytes, want %d", len(data), n)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: layout class %d", ErrUnsupported, d.layout.Class)
}

func (d *Dataset) pipeline() (*writer.FilterPipeline, error) {
	if d.filters == nil || len(d.filters.Filters) == 0 {
		return nil, nil
	}
	return writer.PipelineFromMessage(d.filters, d.dtype.Size)
}

// readChunks assembles a dataset indexed by a version 1 B-tree. Chunks
// never written read as zeros; edge chunks are stored at full size and
// clipped to the dataset shape.
func (d *Dataset) readChunks(n int) ([]byte, error) {
	chunks, err := d.file.chunkIndex(d.layout.Address, len(d.dims))
	if err != nil {
		return nil, utils.WrapError("chunk index", err)
	}
	fp, err := d.pipeline()
	if err != nil {
		return nil, err
	}

	elem := int(d.dtype.Size)
	chunkBytes := elem
	for _, c := range d.layout.ChunkDims {
		chunkBytes *= int(c) //nolint:gosec // G115: chunk dims are 32-bit on disk
	}

	out := make([]byte, n)
	for _, c := range chunks {
		data, err := d.file.readAt(c.Address, int(c.Size))
		if err != nil {
			return nil, utils.WrapError("read chunk", err)
		}
		if fp != nil {
			if data, err = fp.Remove(data, c.FilterMask); err != nil {
				return nil, utils.WrapErrorf(err, "chunk at %v", c.Offset)
			}
		}
		if len(data) != chunkBytes {
			return nil, fmt.Errorf("chunk at %v decodes to %d bytes, want %d", c.Offset, len(data), chunkBytes)
		}
		copyChunk(out, data, d.dims, d.layout.ChunkDims, c.Offset, elem)
	}
	return out, nil
}

// copyChunk places a row-major chunk whose first element sits at offset
// into the row-major array out of shape dims, one contiguous run along
// the last dimension at a time.
func copyChunk(out, chunk []byte, dims, chunkDims, offset []uint64, elem int) {
	rank := len(dims)
	ext := make([]uint64, rank)
	for i := range dims {
		if offset[i] >= dims[i] {
			return
		}
		ext[i] = min(chunkDims[i], dims[i]-offset[i])
	}

	srcStride := make([]uint64, rank)
	dstStride := make([]uint64, rank)
	srcStride[rank-1], dstStride[rank-1] = 1, 1
	for i := rank - 2; i >= 0; i-- {
		srcStride[i] = srcStride[i+1] * chunkDims[i+1]
		dstStride[i] = dstStride[i+1] * dims[i+1]
	}

	run := int(ext[rank-1]) * elem //nolint:gosec // G115: bounded by dataset size
	idx := make([]uint64, rank)
	for {
		var src, dst uint64
		for i := 0; i < rank-1; i++ {
			src += idx[i] * srcStride[i]
			dst += (offset[i] + idx[i]) * dstStride[i]
		}
		dst += offset[rank-1]
		s, t := int(src)*elem, int(dst)*elem //nolint:gosec // G115: bounded by dataset size
		copy(out[t:t+run], chunk[s:s+run])

		i := rank - 2
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

// storedChunk returns the filtered chunk bytes when they can be copied to
// a new file without decoding.
func (d *Dataset) storedChunk() ([]byte, bool, error) {
	if d.file == nil || d.layout.Class != core.LayoutChunked || d.layout.ChunkIndex != core.ChunkIndexSingle || !d.layout.Filtered ||
		d.layout.FilterMask != 0 || d.layout.Address == core.UndefinedAddress || d.filters == nil {
		return nil, false, nil
	}
	data, err := d.file.readAt(d.layout.Address, int(d.layout.Size)) //nolint:gosec // G115: bounded by file size
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Values decodes the data into a typed slice: []int32 for signed integers
// up to 32 bits, []int64, []uint8, []uint32 for unsigned integers of 16 or
// 32 bits, []uint64, []float32, []float64 or []string.
func (d *Dataset) Values() (any, error) {
	raw, err := d.Raw()
	if err != nil {
		return nil, err
	}
	dt := d.dtype
	n := int(d.Len()) //nolint:gosec // G115: raw data already holds n elements

	switch dt.Class {
	case core.DatatypeString:
		return decodeStrings(raw, dt, n), nil
	case core.DatatypeVarLen:
		return d.file.varLenStrings(raw, n)
	case core.DatatypeFloat:
		if dt.Size == 4 {
			return decodeValues[float32](raw, dt, n)
		}
		return decodeValues[float64](raw, dt, n)
	case core.DatatypeFixed:
		switch {
		case dt.Signed && dt.Size == 1:
			v, err := decodeValues[int8](raw, dt, n)
			return convert[int8, int32](v), err
		case dt.Signed && dt.Size == 2:
			v, err := decodeValues[int16](raw, dt, n)
			return convert[int16, int32](v), err
		case dt.Signed && dt.Size == 4:
			return decodeValues[int32](raw, dt, n)
		case dt.Signed:
			return decodeValues[int64](raw, dt, n)
		case dt.Size == 1:
			return decodeValues[uint8](raw, dt, n)
		case dt.Size == 2:
			v, err := decodeValues[uint16](raw, dt, n)
			return convert[uint16, uint32](v), err
		case dt.Size == 4:
			return decodeValues[uint32](raw, dt, n)
		default:
			return decodeValues[uint64](raw, dt, n)
		}
	}
	return nil, fmt.Errorf("%w: dataset datatype %s", ErrUnsupported, dt)
}

// Float64s decodes any numeric dataset as float64 values.
func (d *Dataset) Float64s() ([]float64, error) {
	raw, err := d.Raw()
	if err != nil {
		return nil, err
	}
	n := int(d.Len()) //nolint:gosec // G115: raw data already holds n elements
	switch d.dtype.Class {
	case core.DatatypeFloat:
		return widenFloats(raw, d.dtype, n)
	case core.DatatypeFixed:
		if !d.dtype.Signed && d.dtype.Size == 8 {
			v, err := decodeValues[uint64](raw, d.dtype, n)
			return convert[uint64, float64](v), err
		}
		v, err := widenInts(raw, d.dtype, n)
		return convert[int64, float64](v), err
	}
	return nil, fmt.Errorf("%w: %s dataset read as float64", ErrUnsupported, d.dtype)
}

// Int64s decodes an integer dataset as int64 values.
func (d *Dataset) Int64s() ([]int64, error) {
	if d.dtype.Class != core.DatatypeFixed {
		return nil, fmt.Errorf("%w: %s dataset read as int64", ErrUnsupported, d.dtype)
	}
	raw, err := d.Raw()
	if err != nil {
		return nil, err
	}
	return widenInts(raw, d.dtype, int(d.Len())) //nolint:gosec // G115: raw data already holds n elements
}

// Strings decodes a fixed- or variable-length string dataset.
func (d *Dataset) Strings() ([]string, error) {
	if d.dtype.Class != core.DatatypeString && d.dtype.Class != core.DatatypeVarLen {
		return nil, fmt.Errorf("%w: %s dataset read as string", ErrUnsupported, d.dtype)
	}
	raw, err := d.Raw()
	if err != nil {
		return nil, err
	}
	n := int(d.Len()) //nolint:gosec // G115: raw data already holds n elements
	if d.dtype.Class == core.DatatypeVarLen {
		return d.file.varLenStrings(raw, n)
	}
	return decodeStrings(raw, d.dtype, n), nil
}

// Bytes returns the contents of a one-byte integer dataset.
func (d *Dataset) Bytes() ([]byte, error) {
	if d.dtype.Class != core.DatatypeFixed || d.dtype.Size != 1 {
		return nil, fmt.Errorf("%w: %s dataset read as bytes", ErrUnsupported, d.dtype)
	}
	raw, err := d.Raw()
	if err != nil {
		return nil, err
	}
	return slices.Clone(raw), nil
}

func byteOrder(dt *core.Datatype) binary.ByteOrder {
	if dt.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func decodeValues[T numeric](data []byte, dt *core.Datatype, n int) ([]T, error) {
	out := make([]T, n)
	if n == 0 {
		return out, nil
	}
	if _, err := binary.Decode(data, byteOrder(dt), out); err != nil {
		return nil, fmt.Errorf("decode %d %s values: %w", n, dt, err)
	}
	return out, nil
}

func convert[T, U numeric](in []T) []U {
	if in == nil {
		return nil
	}
	out := make([]U, len(in))
	for i, v := range in {
		out[i] = U(v)
	}
	return out
}

func widenInts(data []byte, dt *core.Datatype, n int) ([]int64, error) {
	switch {
	case dt.Signed && dt.Size == 1:
		v, err := decodeValues[int8](data, dt, n)
		return convert[int8, int64](v), err
	case dt.Signed && dt.Size == 2:
		v, err := decodeValues[int16](data, dt, n)
		return convert[int16, int64](v), err
	case dt.Signed && dt.Size == 4:
		v, err := decodeValues[int32](data, dt, n)
		return convert[int32, int64](v), err
	case dt.Signed && dt.Size == 8:
		return decodeValues[int64](data, dt, n)
	case dt.Size == 1:
		v, err := decodeValues[uint8](data, dt, n)
		return convert[uint8, int64](v), err
	case dt.Size == 2:
		v, err := decodeValues[uint16](data, dt, n)
		return convert[uint16, int64](v), err
	case dt.Size == 4:
		v, err := decodeValues[uint32](data, dt, n)
		return convert[uint32, int64](v), err
	case dt.Size == 8:
		v, err := decodeValues[uint64](data, dt, n)
		if err != nil {
			return nil, err
		}
		for _, x := range v {
			if x > math.MaxInt64 {
				return nil, fmt.Errorf("uint64 value %d overflows int64", x)
			}
		}
		return convert[uint64, int64](v), nil
	}
	return nil, fmt.Errorf("%w: integer size %d", ErrUnsupported, dt.Size)
}

func widenFloats(data []byte, dt *core.Datatype, n int) ([]float64, error) {
	switch dt.Size {
	case 4:
		v, err := decodeValues[float32](data, dt, n)
		return convert[float32, float64](v), err
	case 8:
		return decodeValues[float64](data, dt, n)
	}
	return nil, fmt.Errorf("%w: float size %d", ErrUnsupported, dt.Size)
}
