package hnf

import (
	"fmt"

	"github.com/scigolib/hnf/internal/store"
)

// meshCodec stores vertices and faces as (N, 3) arrays.
type meshCodec struct{}

func (meshCodec) kind() Kind { return KindMesh }

func (meshCodec) encode(n Neuron, dst *store.Group, o encodeOptions) error {
	m, ok := n.(*Mesh)
	if !ok {
		return fmt.Errorf("mesh codec cannot encode %T", n)
	}
	if o.serialized {
		if err := writeBlob(m, dst); err != nil {
			return err
		}
	}
	if o.raw {
		verts, err := vec3Dataset(m.Vertices)
		if err != nil {
			return err
		}
		if err := dst.CreateDataset("vertices", verts, store.WithCompression(o.compression)); err != nil {
			return err
		}

		faces, err := store.NewNumeric(flattenFaces(m.Faces), uint64(len(m.Faces)), 3)
		if err != nil {
			return err
		}
		if err := dst.CreateDataset("faces", faces, store.WithCompression(o.compression)); err != nil {
			return err
		}

		if m.SkeletonMap != nil {
			sm, err := store.NewNumeric(m.SkeletonMap)
			if err != nil {
				return err
			}
			if err := dst.CreateDataset("skeleton_map", sm, store.WithCompression(o.compression)); err != nil {
				return err
			}
		}
	}
	return writeInfoAttrs(dst, &m.Info)
}

func (meshCodec) decode(src *store.Group, o decodeOptions) (Neuron, error) {
	blob, err := useBlob(src, "vertices", o)
	if err != nil {
		return nil, err
	}
	if blob {
		return readBlob(src, KindMesh)
	}

	m := &Mesh{}
	if m.Vertices, err = readVec3Dataset(src, "vertices"); err != nil {
		return nil, err
	}

	faces, err := src.Dataset("faces")
	if err != nil {
		return nil, err
	}
	if err := checkWidth3("faces", faces.Shape()); err != nil {
		return nil, err
	}
	flat, err := faces.Int64s()
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", "faces", err)
	}
	m.Faces = unflattenFaces(flat)

	if src.Has("skeleton_map") {
		ds, err := src.Dataset("skeleton_map")
		if err != nil {
			return nil, err
		}
		if m.SkeletonMap, err = ds.Int64s(); err != nil {
			return nil, fmt.Errorf("dataset %q: %w", "skeleton_map", err)
		}
	}

	if err := readInfoAttrs(src, &m.Info, o.strict); err != nil {
		return nil, err
	}
	return m, nil
}
