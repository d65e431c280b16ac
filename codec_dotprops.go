package hnf

import (
	"fmt"
	"math"

	"github.com/scigolib/hnf/internal/store"
)

// dotpropsCodec stores points and tangents as (N, 3) arrays plus alpha.
type dotpropsCodec struct{}

func (dotpropsCodec) kind() Kind { return KindDotprops }

func (dotpropsCodec) encode(n Neuron, dst *store.Group, o encodeOptions) error {
	d, ok := n.(*Dotprops)
	if !ok {
		return fmt.Errorf("dotprops codec cannot encode %T", n)
	}
	if o.serialized {
		if err := writeBlob(d, dst); err != nil {
			return err
		}
	}
	if o.raw {
		for _, arr := range []struct {
			name string
			vals [][3]float64
		}{{"points", d.Points}, {"vect", d.Vect}} {
			ds, err := vec3Dataset(arr.vals)
			if err != nil {
				return err
			}
			if err := dst.CreateDataset(arr.name, ds, store.WithCompression(o.compression)); err != nil {
				return err
			}
		}
		if len(d.Alpha) > 0 {
			ds, err := store.NewNumeric(d.Alpha)
			if err != nil {
				return err
			}
			if err := dst.CreateDataset("alpha", ds, store.WithCompression(o.compression)); err != nil {
				return err
			}
		}
		if err := dst.SetAttr(attrK, int64(d.K)); err != nil {
			return err
		}
	}
	return writeInfoAttrs(dst, &d.Info)
}

func (dotpropsCodec) decode(src *store.Group, o decodeOptions) (Neuron, error) {
	blob, err := useBlob(src, "points", o)
	if err != nil {
		return nil, err
	}
	if blob {
		return readBlob(src, KindDotprops)
	}

	d := &Dotprops{}
	if d.Points, err = readVec3Dataset(src, "points"); err != nil {
		return nil, err
	}
	if d.Vect, err = readVec3Dataset(src, "vect"); err != nil {
		return nil, err
	}
	if src.Has("alpha") {
		ds, err := src.Dataset("alpha")
		if err != nil {
			return nil, err
		}
		if d.Alpha, err = ds.Float64s(); err != nil {
			return nil, fmt.Errorf("dataset %q: %w", "alpha", err)
		}
	}
	if v, ok := src.Attr(attrK); ok {
		k, err := attrInt(attrK, v)
		if err != nil {
			return nil, err
		}
		if k < 0 || k > math.MaxInt32 {
			return nil, fmt.Errorf("attribute %s: invalid value %d", attrK, k)
		}
		d.K = int(k)
	}

	if err := readInfoAttrs(src, &d.Info, o.strict); err != nil {
		return nil, err
	}
	return d, nil
}
