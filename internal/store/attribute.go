package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/scigolib/hnf/internal/core"
	"github.com/scigolib/hnf/internal/utils"
)

// Attribute is a named value attached to a group or dataset.
//
// Values decode as string, []string, int64, []int64, uint64, []uint64,
// float64 or []float64. Integer types narrower than 64 bits widen to
// int64; bool values are stored as uint8 and read back as int64.
type Attribute struct {
	Name  string
	Value any
}

// attr holds either a decoded value or, for types this package cannot
// represent, the original message so it survives a rewrite untouched.
type attr struct {
	name    string
	value   any
	encoded []byte
}

type attrSet struct {
	list []attr
}

func (s *attrSet) find(name string) int {
	for i := range s.list {
		if s.list[i].name == name {
			return i
		}
	}
	return -1
}

// Attr returns the decoded value of the named attribute.
func (s *attrSet) Attr(name string) (any, bool) {
	i := s.find(name)
	if i < 0 || s.list[i].value == nil {
		return nil, false
	}
	return s.list[i].value, true
}

// SetAttr creates or replaces an attribute. Values whose encoded message
// would not fit in an object header are rejected here rather than when
// the tree is saved.
func (s *attrSet) SetAttr(name string, v any) error {
	if name == "" {
		return fmt.Errorf("%w: empty attribute name", ErrInvalidName)
	}
	v, err := normalizeAttrValue(v)
	if err != nil {
		return utils.WrapErrorf(err, "attribute %q", name)
	}
	am, err := encodeAttrValue(name, v)
	if err != nil {
		return err
	}
	msg, err := am.Encode()
	if err != nil {
		return utils.WrapErrorf(err, "attribute %q", name)
	}
	if len(msg) > core.MaxMessageSize {
		return fmt.Errorf("%w: attribute %q encodes to %d bytes, header messages hold at most %d",
			ErrInvalidValue, name, len(msg), core.MaxMessageSize)
	}
	if i := s.find(name); i >= 0 {
		s.list[i] = attr{name: name, value: v}
		return nil
	}
	s.list = append(s.list, attr{name: name, value: v})
	return nil
}

// DeleteAttr removes an attribute, reporting whether it existed.
func (s *attrSet) DeleteAttr(name string) bool {
	i := s.find(name)
	if i < 0 {
		return false
	}
	s.list = append(s.list[:i], s.list[i+1:]...)
	return true
}

// Attrs returns the decodable attributes in storage order.
func (s *attrSet) Attrs() []Attribute {
	out := make([]Attribute, 0, len(s.list))
	for _, a := range s.list {
		if a.value != nil {
			out = append(out, Attribute{Name: a.name, Value: a.value})
		}
	}
	return out
}

func (s *attrSet) load(f *File, oh *core.ObjectHeader) error {
	if m := oh.Find(core.MsgAttributeInfo); m != nil {
		ai, err := core.ParseAttributeInfoMessage(m.Data)
		if err != nil {
			return err
		}
		if ai.HeapAddress != core.UndefinedAddress {
			return fmt.Errorf("%w: dense attribute storage", ErrUnsupported)
		}
	}
	for _, m := range oh.FindAll(core.MsgAttribute) {
		am, err := core.ParseAttributeMessage(m.Data)
		if err != nil {
			return err
		}
		if am.Datatype.Class == core.DatatypeVarLen {
			// Heap references are only valid in this file, so the
			// strings are resolved now and rewritten as fixed-length.
			v, err := decodeVarLenAttr(f, am)
			if err != nil {
				return utils.WrapErrorf(err, "attribute %q", am.Name)
			}
			s.list = append(s.list, attr{name: am.Name, value: v})
			continue
		}
		v, err := decodeAttrValue(am)
		if err != nil {
			s.list = append(s.list, attr{name: am.Name, encoded: m.Data})
			continue
		}
		s.list = append(s.list, attr{name: am.Name, value: v})
	}
	return nil
}

// encodeAll returns one encoded attribute message per entry.
func (s *attrSet) encodeAll() ([][]byte, error) {
	out := make([][]byte, 0, len(s.list))
	for _, a := range s.list {
		if a.encoded != nil {
			out = append(out, a.encoded)
			continue
		}
		am, err := encodeAttrValue(a.name, a.value)
		if err != nil {
			return nil, err
		}
		b, err := am.Encode()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func normalizeAttrValue(v any) (any, error) {
	switch x := v.(type) {
	case string:
		if err := checkNUL(x); err != nil {
			return nil, err
		}
		return x, nil
	case []string:
		for _, s := range x {
			if err := checkNUL(s); err != nil {
				return nil, err
			}
		}
		return x, nil
	case int64, []int64, uint64, []uint64, float64, []float64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case float32:
		return float64(x), nil
	case []int:
		out := make([]int64, len(x))
		for i, n := range x {
			out[i] = int64(n)
		}
		return out, nil
	case []int32:
		out := make([]int64, len(x))
		for i, n := range x {
			out[i] = int64(n)
		}
		return out, nil
	case []float32:
		out := make([]float64, len(x))
		for i, f := range x {
			out[i] = float64(f)
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("%w: nil attribute value", ErrUnsupported)
	}
	return nil, fmt.Errorf("%w: attribute value of type %T", ErrUnsupported, v)
}

func encodeAttrValue(name string, v any) (*core.AttributeMessage, error) {
	am := &core.AttributeMessage{Name: name}
	array := func(n int) {
		am.Dataspace = &core.Dataspace{Type: core.DataspaceSimple, Dims: []uint64{uint64(n)}}
	}

	switch x := v.(type) {
	case string:
		size := max(len(x), 1)
		am.Datatype = core.StringType(uint32(size)) //nolint:gosec // G115: attribute strings are small
		am.Data = make([]byte, size)
		copy(am.Data, x)
	case []string:
		size := 1
		for _, s := range x {
			size = max(size, len(s))
		}
		am.Datatype = core.StringType(uint32(size)) //nolint:gosec // G115: attribute strings are small
		am.Data = make([]byte, size*len(x))
		for i, s := range x {
			copy(am.Data[i*size:], s)
		}
		array(len(x))
	case int64:
		am.Datatype = core.IntType(8, true)
		am.Data = binary.LittleEndian.AppendUint64(nil, uint64(x)) //nolint:gosec // G115: two's complement bits
	case []int64:
		am.Datatype = core.IntType(8, true)
		for _, n := range x {
			am.Data = binary.LittleEndian.AppendUint64(am.Data, uint64(n)) //nolint:gosec // G115: two's complement bits
		}
		array(len(x))
	case uint64:
		am.Datatype = core.IntType(8, false)
		am.Data = binary.LittleEndian.AppendUint64(nil, x)
	case []uint64:
		am.Datatype = core.IntType(8, false)
		for _, n := range x {
			am.Data = binary.LittleEndian.AppendUint64(am.Data, n)
		}
		array(len(x))
	case float64:
		am.Datatype = core.FloatType(8)
		am.Data = binary.LittleEndian.AppendUint64(nil, math.Float64bits(x))
	case []float64:
		am.Datatype = core.FloatType(8)
		for _, f := range x {
			am.Data = binary.LittleEndian.AppendUint64(am.Data, math.Float64bits(f))
		}
		array(len(x))
	default:
		return nil, fmt.Errorf("%w: attribute %q of type %T", ErrUnsupported, name, v)
	}
	return am, nil
}

// checkNUL rejects strings that null-padded storage would truncate.
func checkNUL(s string) error {
	if i := strings.IndexByte(s, 0); i >= 0 {
		return fmt.Errorf("%w: string %q has a NUL byte at offset %d", ErrInvalidValue, s, i)
	}
	return nil
}

func decodeVarLenAttr(f *File, am *core.AttributeMessage) (any, error) {
	if am.Dataspace.Type == core.DataspaceNull {
		return nil, fmt.Errorf("%w: null dataspace", ErrUnsupported)
	}
	n := int(am.Dataspace.TotalElements()) //nolint:gosec // G115: bounded by message size
	vals, err := f.varLenStrings(am.Data, n)
	if err != nil {
		return nil, err
	}
	if am.Dataspace.Type == core.DataspaceScalar {
		return vals[0], nil
	}
	return vals, nil
}

func decodeAttrValue(am *core.AttributeMessage) (any, error) {
	dt, ds := am.Datatype, am.Dataspace
	if ds.Type == core.DataspaceNull {
		return nil, fmt.Errorf("%w: null dataspace", ErrUnsupported)
	}
	scalar := ds.Type == core.DataspaceScalar
	n := int(ds.TotalElements()) //nolint:gosec // G115: bounded by message size

	switch dt.Class {
	case core.DatatypeString:
		vals := decodeStrings(am.Data, dt, n)
		if scalar {
			return vals[0], nil
		}
		return vals, nil

	case core.DatatypeFixed:
		if !dt.Signed && dt.Size == 8 {
			vals, err := decodeValues[uint64](am.Data, dt, n)
			if err != nil {
				return nil, err
			}
			if scalar {
				return vals[0], nil
			}
			return vals, nil
		}
		vals, err := widenInts(am.Data, dt, n)
		if err != nil {
			return nil, err
		}
		if scalar {
			return vals[0], nil
		}
		return vals, nil

	case core.DatatypeFloat:
		vals, err := widenFloats(am.Data, dt, n)
		if err != nil {
			return nil, err
		}
		if scalar {
			return vals[0], nil
		}
		return vals, nil
	}
	return nil, fmt.Errorf("%w: attribute datatype %s", ErrUnsupported, dt)
}

func decodeStrings(data []byte, dt *core.Datatype, n int) []string {
	size := int(dt.Size)
	out := make([]string, n)
	for i := range out {
		end := min((i+1)*size, len(data))
		start := min(i*size, end)
		raw := data[start:end]
		if dt.Padding == core.StringSpacePad {
			out[i] = strings.TrimRight(string(raw), " ")
			continue
		}
		if j := strings.IndexByte(string(raw), 0); j >= 0 {
			raw = raw[:j]
		}
		out[i] = string(raw)
	}
	return out
}
