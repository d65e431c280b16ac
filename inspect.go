package hnf

import (
	"fmt"
	"maps"
	"slices"
)

// Inventory describes an archive without decoding any neuron.
type Inventory struct {
	FormatSpec string                     `json:"format_spec"`
	FormatURL  string                     `json:"format_url,omitempty"`
	Neurons    map[string]NeuronInventory `json:"neurons"`
}

// NeuronInventory lists the blocks stored for one neuron.
type NeuronInventory struct {
	Name        string   `json:"name,omitempty"`
	Skeleton    bool     `json:"skeleton,omitempty"`
	Mesh        bool     `json:"mesh,omitempty"`
	Dotprops    bool     `json:"dotprops,omitempty"`
	Annotations []string `json:"annotations,omitempty"`
}

// Has reports whether the neuron has a block of kind k.
func (n NeuronInventory) Has(k Kind) bool {
	switch k {
	case KindSkeleton:
		return n.Skeleton
	case KindMesh:
		return n.Mesh
	case KindDotprops:
		return n.Dotprops
	}
	return false
}

// IDs returns the neuron ids in sorted order.
func (inv *Inventory) IDs() []string {
	return slices.Sorted(maps.Keys(inv.Neurons))
}

// Inspect lists the format and the blocks of every neuron in the archive
// at path.
func Inspect(path string, opts ...Option) (*Inventory, error) {
	r, err := OpenReader(path, opts...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	inv := &Inventory{FormatSpec: r.format.Spec, Neurons: make(map[string]NeuronInventory)}
	if v, ok := r.root.Attr(attrFormatURL); ok {
		inv.FormatURL, _ = v.(string)
	}

	ids, err := r.IDs()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		g, err := r.root.Group(id)
		if err != nil {
			return nil, fmt.Errorf("neuron %s: %w", id, err)
		}
		var ni NeuronInventory
		if v, ok := g.Attr(attrNeuronName); ok {
			ni.Name, _ = v.(string)
		}
		for _, k := range Kinds {
			isGroup, err := g.IsGroup(k.String())
			if err != nil {
				return nil, fmt.Errorf("neuron %s: %w", id, err)
			}
			if !isGroup {
				continue
			}
			switch k {
			case KindSkeleton:
				ni.Skeleton = true
			case KindMesh:
				ni.Mesh = true
			case KindDotprops:
				ni.Dotprops = true
			}
		}
		if ni.Annotations, err = annotationNames(g); err != nil {
			return nil, fmt.Errorf("neuron %s: %w", id, err)
		}
		inv.Neurons[id] = ni
	}
	return inv, nil
}
