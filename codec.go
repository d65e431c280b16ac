package hnf

import (
	"errors"
	"fmt"
	"slices"

	"github.com/scigolib/hnf/internal/store"
)

// errNoData is returned by codecs for a block holding neither a blob nor
// raw data. The reader turns it into a RepresentationMissingError.
var errNoData = errors.New("no serialized or raw data")

// reservedAttrs are block attributes owned by the codecs.
var reservedAttrs = []string{attrUnitsNM, attrSoma, attrK}

func writeBlob(n Neuron, dst *store.Group) error {
	blob, err := encodeBlob(n)
	if err != nil {
		return fmt.Errorf("serialize: %w", err)
	}
	ds, err := store.NewNumeric(blob)
	if err != nil {
		return err
	}
	return dst.CreateDataset(blobName, ds)
}

func readBlob(src *store.Group, want Kind) (Neuron, error) {
	ds, err := src.Dataset(blobName)
	if err != nil {
		return nil, err
	}
	data, err := ds.Bytes()
	if err != nil {
		return nil, err
	}
	n, err := decodeBlob(data)
	if err != nil {
		return nil, fmt.Errorf("deserialize: %w", err)
	}
	if n.Kind() != want {
		return nil, fmt.Errorf("deserialize: blob holds a %s, want %s", n.Kind(), want)
	}
	return n, nil
}

// useBlob reports whether decoding should take the serialized path.
// Raw data wins only when requested and present.
func useBlob(src *store.Group, rawMarker string, o decodeOptions) (bool, error) {
	hasBlob, hasRaw := src.Has(blobName), src.Has(rawMarker)
	switch {
	case hasBlob && (!o.preferRaw || !hasRaw):
		return true, nil
	case hasRaw:
		return false, nil
	}
	return false, errNoData
}

// writeInfoAttrs stores units, soma and every Extra entry the container
// can represent as block attributes.
func writeInfoAttrs(dst *store.Group, info *Info) error {
	if nm, ok := info.Units.Nanometers(); ok {
		if err := dst.SetAttr(attrUnitsNM, nm); err != nil {
			return err
		}
	}
	if len(info.Soma) > 0 {
		if err := dst.SetAttr(attrSoma, info.Soma); err != nil {
			return err
		}
	}
	for k, v := range info.Extra {
		if slices.Contains(reservedAttrs, k) || k == attrColumnType {
			continue
		}
		if err := dst.SetAttr(k, v); err != nil && !errors.Is(err, store.ErrUnsupported) {
			return err
		}
	}
	return nil
}

// readInfoAttrs restores units and soma. Loose decoding also collects
// every other attribute into Extra.
func readInfoAttrs(src *store.Group, info *Info, strict bool) error {
	if v, ok := src.Attr(attrUnitsNM); ok {
		nm, err := attrFloat(attrUnitsNM, v)
		if err != nil {
			return err
		}
		info.Units = UnitsNM(nm)
	}
	if v, ok := src.Attr(attrSoma); ok {
		switch s := v.(type) {
		case int64:
			info.Soma = []int64{s}
		case []int64:
			info.Soma = s
		default:
			return fmt.Errorf("attribute %s: unexpected type %T", attrSoma, v)
		}
	}
	if strict {
		return nil
	}
	for _, a := range src.Attrs() {
		if slices.Contains(reservedAttrs, a.Name) {
			continue
		}
		if info.Extra == nil {
			info.Extra = make(map[string]any)
		}
		info.Extra[a.Name] = a.Value
	}
	return nil
}

func attrFloat(name string, v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	}
	return 0, fmt.Errorf("attribute %s: unexpected type %T", name, v)
}

func attrInt(name string, v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case float64:
		if x == float64(int64(x)) {
			return int64(x), nil
		}
	}
	return 0, fmt.Errorf("attribute %s: unexpected value %v (%T)", name, v, v)
}

// vec3Dataset stores N points as an (N, 3) float64 dataset.
func vec3Dataset(vals [][3]float64) (*store.Dataset, error) {
	flat := make([]float64, 0, 3*len(vals))
	for _, v := range vals {
		flat = append(flat, v[0], v[1], v[2])
	}
	return store.NewNumeric(flat, uint64(len(vals)), 3)
}

func readVec3Dataset(src *store.Group, name string) ([][3]float64, error) {
	ds, err := src.Dataset(name)
	if err != nil {
		return nil, err
	}
	if err := checkWidth3(name, ds.Shape()); err != nil {
		return nil, err
	}
	flat, err := ds.Float64s()
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", name, err)
	}
	return unflatten3(flat), nil
}

func checkWidth3(name string, shape []uint64) error {
	if len(shape) != 2 || shape[1] != 3 {
		return &UnsupportedShapeError{Name: name, Shape: shape}
	}
	return nil
}
