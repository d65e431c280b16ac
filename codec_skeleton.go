package hnf

import (
	"fmt"

	"github.com/scigolib/hnf/internal/store"
)

// skeletonCodec stores the node table column by column.
type skeletonCodec struct{}

func (skeletonCodec) kind() Kind { return KindSkeleton }

func (skeletonCodec) encode(n Neuron, dst *store.Group, o encodeOptions) error {
	s, ok := n.(*Skeleton)
	if !ok {
		return fmt.Errorf("skeleton codec cannot encode %T", n)
	}
	if o.serialized {
		if err := writeBlob(s, dst); err != nil {
			return err
		}
	}
	if o.raw {
		if err := writeDataframe(s.Nodes, dst, frameWriteOptions{compression: o.compression}); err != nil {
			return err
		}
	}
	return writeInfoAttrs(dst, &s.Info)
}

func (skeletonCodec) decode(src *store.Group, o decodeOptions) (Neuron, error) {
	blob, err := useBlob(src, "node_id", o)
	if err != nil {
		return nil, err
	}
	if blob {
		return readBlob(src, KindSkeleton)
	}

	fo := frameReadOptions{skipHidden: true}
	if o.strict {
		fo.subset = SkeletonColumns
	}
	nodes, err := readDataframe(src, fo)
	if err != nil {
		return nil, err
	}
	s := &Skeleton{Nodes: nodes.Select(orderedColumns(nodes, SkeletonColumns)...)}
	if err := readInfoAttrs(src, &s.Info, o.strict); err != nil {
		return nil, err
	}
	return s, nil
}

// orderedColumns puts the required columns first, then the rest in
// storage order.
func orderedColumns(t *Table, required []string) []string {
	out := make([]string, 0, len(t.names))
	for _, name := range required {
		if t.Has(name) {
			out = append(out, name)
		}
	}
	for _, name := range t.names {
		if !containsString(required, name) {
			out = append(out, name)
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
