package hnf

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/tinylib/msgp/msgp"
)

// Serialized blobs start with blobMagic and a version byte, followed by a
// zstd frame holding one MessagePack map per neuron.
const (
	blobMagic   = "HNFB"
	blobVersion = 1
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// encodeBlob serializes every field of n except annotations, which are
// stored in their own blocks.
func encodeBlob(n Neuron) ([]byte, error) {
	info := n.NeuronInfo()

	var fields int
	b := make([]byte, 0, 1024)

	b = msgp.AppendString(b, "kind")
	b = msgp.AppendString(b, n.Kind().String())
	b = msgp.AppendString(b, "id")
	b = msgp.AppendString(b, info.ID)
	b = msgp.AppendString(b, "name")
	b = msgp.AppendString(b, info.Name)
	b = msgp.AppendString(b, "units_value")
	b = msgp.AppendFloat64(b, info.Units.Value)
	b = msgp.AppendString(b, "units_unit")
	b = msgp.AppendString(b, info.Units.Unit)
	b = msgp.AppendString(b, "soma")
	b = appendInt64s(b, info.Soma)
	fields += 6

	if len(info.Extra) > 0 {
		var err error
		b = msgp.AppendString(b, "extra")
		if b, err = appendValueMap(b, info.Extra); err != nil {
			return nil, fmt.Errorf("encode extra: %w", err)
		}
		fields++
	}

	switch x := n.(type) {
	case *Skeleton:
		var err error
		b = msgp.AppendString(b, "nodes")
		if b, err = appendTable(b, x.Nodes); err != nil {
			return nil, err
		}
		fields++
	case *Mesh:
		b = msgp.AppendString(b, "vertices")
		b = appendVec3s(b, x.Vertices)
		b = msgp.AppendString(b, "faces")
		b = appendSlice(b, flattenFaces(x.Faces), msgp.AppendInt64)
		fields += 2
		if x.SkeletonMap != nil {
			b = msgp.AppendString(b, "skeleton_map")
			b = appendInt64s(b, x.SkeletonMap)
			fields++
		}
	case *Dotprops:
		b = msgp.AppendString(b, "points")
		b = appendVec3s(b, x.Points)
		b = msgp.AppendString(b, "vect")
		b = appendVec3s(b, x.Vect)
		b = msgp.AppendString(b, "alpha")
		b = appendSlice(b, x.Alpha, msgp.AppendFloat64)
		b = msgp.AppendString(b, "k")
		b = msgp.AppendInt64(b, int64(x.K))
		fields += 4
	}

	// The field count is only known now, so the header goes in front last.
	b = append(msgp.AppendMapHeader(make([]byte, 0, len(b)+5), uint32(fields)), b...) //nolint:gosec // G115: a handful of fields

	enc := getZstdEncoder()
	defer zstdEncoderPool.Put(enc)
	out := append([]byte(blobMagic), blobVersion)
	return enc.EncodeAll(b, out), nil
}

func decodeBlob(data []byte) (Neuron, error) {
	if len(data) < len(blobMagic)+1 || !bytes.Equal(data[:len(blobMagic)], []byte(blobMagic)) {
		return nil, errors.New("not a serialized neuron")
	}
	if v := data[len(blobMagic)]; v != blobVersion {
		return nil, fmt.Errorf("unsupported serialized neuron version %d", v)
	}

	dec := getZstdDecoder()
	b, err := dec.DecodeAll(data[len(blobMagic)+1:], nil)
	zstdDecoderPool.Put(dec)
	if err != nil {
		return nil, fmt.Errorf("decompress serialized neuron: %w", err)
	}

	sz, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return nil, err
	}

	var (
		kind     Kind
		info     Info
		nodes    *Table
		vertices [][3]float64
		faces    []int64
		skelMap  []int64
		points   [][3]float64
		vect     [][3]float64
		alpha    []float64
		k        int64
	)
	for range sz {
		var key string
		if key, b, err = msgp.ReadStringBytes(b); err != nil {
			return nil, err
		}
		switch key {
		case "kind":
			var s string
			if s, b, err = msgp.ReadStringBytes(b); err == nil {
				kind, err = ParseKind(s)
			}
		case "id":
			info.ID, b, err = msgp.ReadStringBytes(b)
		case "name":
			info.Name, b, err = msgp.ReadStringBytes(b)
		case "units_value":
			info.Units.Value, b, err = msgp.ReadFloat64Bytes(b)
		case "units_unit":
			info.Units.Unit, b, err = msgp.ReadStringBytes(b)
		case "soma":
			info.Soma, b, err = readSlice(b, msgp.ReadInt64Bytes)
		case "extra":
			info.Extra, b, err = readValueMap(b)
		case "nodes":
			nodes, b, err = readTable(b)
		case "vertices":
			vertices, b, err = readVec3s(b)
		case "faces":
			faces, b, err = readSlice(b, msgp.ReadInt64Bytes)
		case "skeleton_map":
			skelMap, b, err = readSlice(b, msgp.ReadInt64Bytes)
		case "points":
			points, b, err = readVec3s(b)
		case "vect":
			vect, b, err = readVec3s(b)
		case "alpha":
			alpha, b, err = readSlice(b, msgp.ReadFloat64Bytes)
		case "k":
			k, b, err = msgp.ReadInt64Bytes(b)
		default:
			b, err = msgp.Skip(b)
		}
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
	}

	switch kind {
	case KindSkeleton:
		return &Skeleton{Info: info, Nodes: nodes}, nil
	case KindMesh:
		if len(faces)%3 != 0 {
			return nil, fmt.Errorf("face array length %d is not a multiple of 3", len(faces))
		}
		return &Mesh{Info: info, Vertices: vertices, Faces: unflattenFaces(faces), SkeletonMap: skelMap}, nil
	case KindDotprops:
		if k < 0 || k > math.MaxInt32 {
			return nil, fmt.Errorf("invalid k %d", k)
		}
		return &Dotprops{Info: info, Points: points, Vect: vect, Alpha: alpha, K: int(k)}, nil
	}
	return nil, errors.New("serialized neuron has no kind")
}

func appendSlice[T any](b []byte, vals []T, app func([]byte, T) []byte) []byte {
	if vals == nil {
		return msgp.AppendNil(b)
	}
	b = msgp.AppendArrayHeader(b, uint32(len(vals))) //nolint:gosec // G115: bounded by memory
	for _, v := range vals {
		b = app(b, v)
	}
	return b
}

func readSlice[T any](b []byte, read func([]byte) (T, []byte, error)) ([]T, []byte, error) {
	if msgp.IsNil(b) {
		b, err := msgp.ReadNilBytes(b)
		return nil, b, err
	}
	n, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return nil, b, err
	}
	// Every element takes at least one byte.
	if int(n) > len(b) {
		return nil, b, msgp.ErrShortBytes
	}
	out := make([]T, n)
	for i := range out {
		if out[i], b, err = read(b); err != nil {
			return nil, b, err
		}
	}
	return out, b, nil
}

func appendInt64s(b []byte, vals []int64) []byte {
	return appendSlice(b, vals, msgp.AppendInt64)
}

func appendVec3s(b []byte, vals [][3]float64) []byte {
	flat := make([]float64, 0, 3*len(vals))
	for _, v := range vals {
		flat = append(flat, v[0], v[1], v[2])
	}
	if vals == nil {
		flat = nil
	}
	return appendSlice(b, flat, msgp.AppendFloat64)
}

func readVec3s(b []byte) ([][3]float64, []byte, error) {
	flat, b, err := readSlice(b, msgp.ReadFloat64Bytes)
	if err != nil || flat == nil {
		return nil, b, err
	}
	if len(flat)%3 != 0 {
		return nil, b, fmt.Errorf("coordinate array length %d is not a multiple of 3", len(flat))
	}
	return unflatten3(flat), b, nil
}

func flattenFaces(faces [][3]int64) []int64 {
	if faces == nil {
		return nil
	}
	flat := make([]int64, 0, 3*len(faces))
	for _, f := range faces {
		flat = append(flat, f[0], f[1], f[2])
	}
	return flat
}

func unflattenFaces(flat []int64) [][3]int64 {
	if flat == nil {
		return nil
	}
	return unflatten3(flat)
}

func unflatten3[T any](flat []T) [][3]T {
	out := make([][3]T, len(flat)/3)
	for i := range out {
		out[i] = [3]T{flat[3*i], flat[3*i+1], flat[3*i+2]}
	}
	return out
}

// Table encoding: {"columns": [[name, type, values]...], "attrs": map}.
func appendTable(b []byte, t *Table) ([]byte, error) {
	if t == nil {
		return msgp.AppendNil(b), nil
	}
	b = msgp.AppendMapHeader(b, 2)
	b = msgp.AppendString(b, "columns")
	b = msgp.AppendArrayHeader(b, uint32(len(t.names))) //nolint:gosec // G115: bounded by memory
	for _, name := range t.names {
		b = msgp.AppendArrayHeader(b, 3)
		b = msgp.AppendString(b, name)
		switch c := t.cols[name].(type) {
		case []float64:
			b = msgp.AppendString(b, "f8")
			b = appendSlice(b, c, msgp.AppendFloat64)
		case []float32:
			b = msgp.AppendString(b, "f4")
			b = appendSlice(b, c, msgp.AppendFloat32)
		case []int64:
			b = msgp.AppendString(b, "i8")
			b = appendSlice(b, c, msgp.AppendInt64)
		case []int32:
			b = msgp.AppendString(b, "i4")
			b = appendSlice(b, c, msgp.AppendInt32)
		case []uint64:
			b = msgp.AppendString(b, "u8")
			b = appendSlice(b, c, msgp.AppendUint64)
		case []uint32:
			b = msgp.AppendString(b, "u4")
			b = appendSlice(b, c, msgp.AppendUint32)
		case []uint8:
			b = msgp.AppendString(b, "u1")
			b = msgp.AppendBytes(b, c)
		case []bool:
			b = msgp.AppendString(b, "b")
			b = appendSlice(b, c, msgp.AppendBool)
		case []string:
			b = msgp.AppendString(b, "s")
			b = appendSlice(b, c, msgp.AppendString)
		case Categorical:
			b = msgp.AppendString(b, "cat")
			b = msgp.AppendArrayHeader(b, 2)
			b = appendSlice(b, c.Codes, msgp.AppendInt32)
			b = appendSlice(b, c.Levels, msgp.AppendString)
		default:
			return nil, fmt.Errorf("column %q: unsupported type %T", name, c)
		}
	}

	var err error
	b = msgp.AppendString(b, "attrs")
	if b, err = appendValueMap(b, t.Attrs); err != nil {
		return nil, fmt.Errorf("table attrs: %w", err)
	}
	return b, nil
}

func readTable(b []byte) (*Table, []byte, error) {
	if msgp.IsNil(b) {
		b, err := msgp.ReadNilBytes(b)
		return nil, b, err
	}
	sz, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return nil, b, err
	}

	t := NewTable()
	for range sz {
		var key string
		if key, b, err = msgp.ReadStringBytes(b); err != nil {
			return nil, b, err
		}
		switch key {
		case "columns":
			b, err = readColumns(b, t)
		case "attrs":
			t.Attrs, b, err = readValueMap(b)
		default:
			b, err = msgp.Skip(b)
		}
		if err != nil {
			return nil, b, fmt.Errorf("table %s: %w", key, err)
		}
	}
	return t, b, nil
}

func readColumns(b []byte, t *Table) ([]byte, error) {
	n, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return b, err
	}
	for range n {
		var (
			size       uint32
			name, kind string
			col        any
		)
		if size, b, err = msgp.ReadArrayHeaderBytes(b); err != nil {
			return b, err
		}
		if size != 3 {
			return b, fmt.Errorf("column entry has %d fields, want 3", size)
		}
		if name, b, err = msgp.ReadStringBytes(b); err != nil {
			return b, err
		}
		if kind, b, err = msgp.ReadStringBytes(b); err != nil {
			return b, err
		}
		switch kind {
		case "f8":
			col, b, err = readColumn(b, msgp.ReadFloat64Bytes)
		case "f4":
			col, b, err = readColumn(b, msgp.ReadFloat32Bytes)
		case "i8":
			col, b, err = readColumn(b, msgp.ReadInt64Bytes)
		case "i4":
			col, b, err = readColumn(b, msgp.ReadInt32Bytes)
		case "u8":
			col, b, err = readColumn(b, msgp.ReadUint64Bytes)
		case "u4":
			col, b, err = readColumn(b, msgp.ReadUint32Bytes)
		case "u1":
			var raw []byte
			raw, b, err = msgp.ReadBytesBytes(b, nil)
			col = raw
		case "b":
			col, b, err = readColumn(b, msgp.ReadBoolBytes)
		case "s":
			col, b, err = readColumn(b, msgp.ReadStringBytes)
		case "cat":
			var c Categorical
			if _, b, err = msgp.ReadArrayHeaderBytes(b); err != nil {
				return b, err
			}
			if c.Codes, b, err = readSlice(b, msgp.ReadInt32Bytes); err != nil {
				return b, err
			}
			c.Levels, b, err = readSlice(b, msgp.ReadStringBytes)
			col = c
		default:
			return b, fmt.Errorf("column %q: unknown type %q", name, kind)
		}
		if err != nil {
			return b, fmt.Errorf("column %q: %w", name, err)
		}
		if err := t.AddColumn(name, col); err != nil {
			return b, err
		}
	}
	return b, nil
}

// readColumn reads a typed column, turning a nil array into an empty one.
func readColumn[T any](b []byte, read func([]byte) (T, []byte, error)) (any, []byte, error) {
	vals, b, err := readSlice(b, read)
	if vals == nil {
		vals = []T{}
	}
	return vals, b, err
}

// Auxiliary values are stored as [tag, payload] pairs so their Go types
// survive decoding. A type without a tag is stored as "any" and comes back
// the way MessagePack decodes it.
func appendValueMap(b []byte, m map[string]any) ([]byte, error) {
	if m == nil {
		return msgp.AppendNil(b), nil
	}
	b = msgp.AppendMapHeader(b, uint32(len(m))) //nolint:gosec // G115: bounded by memory
	for _, k := range slices.Sorted(maps.Keys(m)) {
		var err error
		b = msgp.AppendString(b, k)
		if b, err = appendValue(b, m[k]); err != nil {
			return nil, fmt.Errorf("%q: %w", k, err)
		}
	}
	return b, nil
}

func appendValue(b []byte, v any) ([]byte, error) {
	b = msgp.AppendArrayHeader(b, 2)
	switch x := v.(type) {
	case nil:
		return msgp.AppendNil(msgp.AppendString(b, "nil")), nil
	case string:
		return msgp.AppendString(msgp.AppendString(b, "s"), x), nil
	case bool:
		return msgp.AppendBool(msgp.AppendString(b, "b"), x), nil
	case float64:
		return msgp.AppendFloat64(msgp.AppendString(b, "f8"), x), nil
	case float32:
		return msgp.AppendFloat32(msgp.AppendString(b, "f4"), x), nil
	case int:
		return msgp.AppendInt(msgp.AppendString(b, "i"), x), nil
	case int64:
		return msgp.AppendInt64(msgp.AppendString(b, "i8"), x), nil
	case int32:
		return msgp.AppendInt32(msgp.AppendString(b, "i4"), x), nil
	case uint64:
		return msgp.AppendUint64(msgp.AppendString(b, "u8"), x), nil
	case uint32:
		return msgp.AppendUint32(msgp.AppendString(b, "u4"), x), nil
	case uint8:
		return msgp.AppendUint8(msgp.AppendString(b, "u1"), x), nil
	case []string:
		return appendSlice(msgp.AppendString(b, "[]s"), x, msgp.AppendString), nil
	case []bool:
		return appendSlice(msgp.AppendString(b, "[]b"), x, msgp.AppendBool), nil
	case []float64:
		return appendSlice(msgp.AppendString(b, "[]f8"), x, msgp.AppendFloat64), nil
	case []float32:
		return appendSlice(msgp.AppendString(b, "[]f4"), x, msgp.AppendFloat32), nil
	case []int:
		return appendSlice(msgp.AppendString(b, "[]i"), x, msgp.AppendInt), nil
	case []int64:
		return appendSlice(msgp.AppendString(b, "[]i8"), x, msgp.AppendInt64), nil
	case []int32:
		return appendSlice(msgp.AppendString(b, "[]i4"), x, msgp.AppendInt32), nil
	case []uint64:
		return appendSlice(msgp.AppendString(b, "[]u8"), x, msgp.AppendUint64), nil
	case []uint32:
		return appendSlice(msgp.AppendString(b, "[]u4"), x, msgp.AppendUint32), nil
	case []uint8:
		b = msgp.AppendString(b, "[]u1")
		if x == nil {
			return msgp.AppendNil(b), nil
		}
		return msgp.AppendBytes(b, x), nil
	case map[string]any:
		return appendValueMap(msgp.AppendString(b, "map"), x)
	default:
		return msgp.AppendIntf(msgp.AppendString(b, "any"), v)
	}
}

func readValueMap(b []byte) (map[string]any, []byte, error) {
	if msgp.IsNil(b) {
		b, err := msgp.ReadNilBytes(b)
		return nil, b, err
	}
	sz, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return nil, b, err
	}
	// Every entry takes at least two bytes.
	if int(sz) > len(b)/2 {
		return nil, b, msgp.ErrShortBytes
	}
	out := make(map[string]any, sz)
	for range sz {
		var key string
		if key, b, err = msgp.ReadStringBytes(b); err != nil {
			return nil, b, err
		}
		if out[key], b, err = readValue(b); err != nil {
			return nil, b, fmt.Errorf("%q: %w", key, err)
		}
	}
	return out, b, nil
}

func readValue(b []byte) (any, []byte, error) {
	size, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return nil, b, err
	}
	if size != 2 {
		return nil, b, fmt.Errorf("value entry has %d fields, want 2", size)
	}
	var tag string
	if tag, b, err = msgp.ReadStringBytes(b); err != nil {
		return nil, b, err
	}
	switch tag {
	case "nil":
		b, err = msgp.ReadNilBytes(b)
		return nil, b, err
	case "s":
		return anyValue(msgp.ReadStringBytes(b))
	case "b":
		return anyValue(msgp.ReadBoolBytes(b))
	case "f8":
		return anyValue(msgp.ReadFloat64Bytes(b))
	case "f4":
		return anyValue(msgp.ReadFloat32Bytes(b))
	case "i":
		return anyValue(msgp.ReadIntBytes(b))
	case "i8":
		return anyValue(msgp.ReadInt64Bytes(b))
	case "i4":
		return anyValue(msgp.ReadInt32Bytes(b))
	case "u8":
		return anyValue(msgp.ReadUint64Bytes(b))
	case "u4":
		return anyValue(msgp.ReadUint32Bytes(b))
	case "u1":
		return anyValue(msgp.ReadUint8Bytes(b))
	case "[]s":
		return anyValue(readSlice(b, msgp.ReadStringBytes))
	case "[]b":
		return anyValue(readSlice(b, msgp.ReadBoolBytes))
	case "[]f8":
		return anyValue(readSlice(b, msgp.ReadFloat64Bytes))
	case "[]f4":
		return anyValue(readSlice(b, msgp.ReadFloat32Bytes))
	case "[]i":
		return anyValue(readSlice(b, msgp.ReadIntBytes))
	case "[]i8":
		return anyValue(readSlice(b, msgp.ReadInt64Bytes))
	case "[]i4":
		return anyValue(readSlice(b, msgp.ReadInt32Bytes))
	case "[]u8":
		return anyValue(readSlice(b, msgp.ReadUint64Bytes))
	case "[]u4":
		return anyValue(readSlice(b, msgp.ReadUint32Bytes))
	case "[]u1":
		if msgp.IsNil(b) {
			b, err = msgp.ReadNilBytes(b)
			return []byte(nil), b, err
		}
		return anyValue(msgp.ReadBytesBytes(b, nil))
	case "map":
		return anyValue(readValueMap(b))
	case "any":
		return msgp.ReadIntfBytes(b)
	}
	return nil, b, fmt.Errorf("unknown value type %q", tag)
}

func anyValue[T any](v T, b []byte, err error) (any, []byte, error) {
	return v, b, err
}
