package hnf

import (
	"fmt"
	"strings"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Kind identifies a neuron representation.
type Kind uint8

// Representation kinds.
const (
	KindSkeleton Kind = iota + 1
	KindMesh
	KindDotprops
)

// Kinds lists every representation in storage order.
var Kinds = []Kind{KindSkeleton, KindMesh, KindDotprops}

// String returns the name of the block group the representation is
// stored in.
func (k Kind) String() string {
	switch k {
	case KindSkeleton:
		return "skeleton"
	case KindMesh:
		return "mesh"
	case KindDotprops:
		return "dotprops"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind parses a representation name.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "skeleton", "skeletons":
		return KindSkeleton, nil
	case "mesh", "meshes":
		return KindMesh, nil
	case "dotprops", "dotprop":
		return KindDotprops, nil
	}
	return 0, fmt.Errorf("%w: unknown representation %q", ErrInvalidReadPolicy, s)
}

// Info holds the fields every representation shares.
type Info struct {
	// ID is the normalized neuron identifier, see NormalizeID.
	ID   string
	Name string

	Units Units

	// Soma holds soma node ids for skeletons and soma vertex or point
	// indices for the other representations.
	Soma []int64

	// Extra carries auxiliary attributes. Serialized blobs round-trip
	// every entry; raw storage keeps entries representable as container
	// attributes.
	Extra map[string]any

	// Annotations maps annotation names to tables.
	Annotations map[string]any
}

// NeuronInfo returns the shared fields.
func (i *Info) NeuronInfo() *Info { return i }

// SetID normalizes v and stores it as the neuron id.
func (i *Info) SetID(v any) error {
	id, err := NormalizeID(v)
	if err != nil {
		return err
	}
	i.ID = id
	return nil
}

// Neuron is one representation of a neuron: *Skeleton, *Mesh or
// *Dotprops.
type Neuron interface {
	Kind() Kind
	NeuronInfo() *Info
	Validate() error

	sealed()
}

// Skeleton is a tree of nodes with parent links.
type Skeleton struct {
	Info

	// Nodes holds at least node_id, parent_id, x, y, z and radius.
	// A negative parent_id marks a root.
	Nodes *Table
}

// Skeleton node table columns.
var SkeletonColumns = []string{"node_id", "parent_id", "x", "y", "z", "radius"}

// NewSkeleton builds a skeleton from node columns.
func NewSkeleton(id string, nodeIDs, parentIDs []int64, xyz [][3]float64, radius []float64) (*Skeleton, error) {
	t := NewTable()
	x := make([]float64, len(xyz))
	y := make([]float64, len(xyz))
	z := make([]float64, len(xyz))
	for i, p := range xyz {
		x[i], y[i], z[i] = p[0], p[1], p[2]
	}
	for _, c := range []struct {
		name string
		col  any
	}{
		{"node_id", nodeIDs}, {"parent_id", parentIDs},
		{"x", x}, {"y", y}, {"z", z}, {"radius", radius},
	} {
		if err := t.AddColumn(c.name, c.col); err != nil {
			return nil, err
		}
	}
	s := &Skeleton{Info: Info{ID: id}, Nodes: t}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (*Skeleton) Kind() Kind { return KindSkeleton }
func (*Skeleton) sealed()    {}

// Validate checks the node table: required columns, unique non-negative
// node ids, parents that exist and no cycles. Multiple roots are allowed.
func (s *Skeleton) Validate() error {
	if s.Nodes == nil {
		return fmt.Errorf("%w: skeleton %s has no node table", ErrInvalidNeuron, s.ID)
	}
	for _, c := range SkeletonColumns {
		if !s.Nodes.Has(c) {
			return fmt.Errorf("%w: skeleton %s: missing column %q", ErrInvalidNeuron, s.ID, c)
		}
	}
	for _, c := range SkeletonColumns[2:] {
		if _, err := s.Nodes.Float64s(c); err != nil {
			return fmt.Errorf("%w: skeleton %s: %v", ErrInvalidNeuron, s.ID, err)
		}
	}
	nodes, err := s.Nodes.Int64s("node_id")
	if err != nil {
		return fmt.Errorf("%w: skeleton %s: %v", ErrInvalidNeuron, s.ID, err)
	}
	parents, err := s.Nodes.Int64s("parent_id")
	if err != nil {
		return fmt.Errorf("%w: skeleton %s: %v", ErrInvalidNeuron, s.ID, err)
	}

	ids := roaring64.New()
	parentOf := make(map[int64]int64, len(nodes))
	for i, id := range nodes {
		if id < 0 {
			return fmt.Errorf("%w: skeleton %s: negative node id %d", ErrInvalidNeuron, s.ID, id)
		}
		if !ids.CheckedAdd(uint64(id)) {
			return fmt.Errorf("%w: skeleton %s: duplicate node id %d", ErrInvalidNeuron, s.ID, id)
		}
		parentOf[id] = parents[i]
	}
	for i, p := range parents {
		if p >= 0 && !ids.Contains(uint64(p)) {
			return fmt.Errorf("%w: skeleton %s: node %d has unknown parent %d", ErrInvalidNeuron, s.ID, nodes[i], p)
		}
	}
	for _, soma := range s.Soma {
		if soma < 0 || !ids.Contains(uint64(soma)) {
			return fmt.Errorf("%w: skeleton %s: soma %d is not a node", ErrInvalidNeuron, s.ID, soma)
		}
	}

	// Walk every node towards its root. A node seen twice on the same walk
	// closes a cycle; reaching a node finished by an earlier walk stops.
	done := roaring64.New()
	onPath := roaring64.New()
	var path []int64
	for _, start := range nodes {
		onPath.Clear()
		path = path[:0]
		for cur := start; cur >= 0 && !done.Contains(uint64(cur)); cur = parentOf[cur] {
			if !onPath.CheckedAdd(uint64(cur)) {
				return fmt.Errorf("%w: skeleton %s: cycle through node %d", ErrInvalidNeuron, s.ID, cur)
			}
			path = append(path, cur)
		}
		for _, id := range path {
			done.Add(uint64(id))
		}
	}
	return nil
}

// Roots returns the ids of nodes without a parent.
func (s *Skeleton) Roots() []int64 {
	nodes, err := s.Nodes.Int64s("node_id")
	if err != nil {
		return nil
	}
	parents, err := s.Nodes.Int64s("parent_id")
	if err != nil {
		return nil
	}
	var roots []int64
	for i, p := range parents {
		if p < 0 {
			roots = append(roots, nodes[i])
		}
	}
	return roots
}

// Mesh is a triangle mesh.
type Mesh struct {
	Info

	Vertices [][3]float64
	Faces    [][3]int64

	// SkeletonMap optionally maps every vertex to a skeleton node id.
	SkeletonMap []int64
}

func (*Mesh) Kind() Kind { return KindMesh }
func (*Mesh) sealed()    {}

// Validate checks face indices and the skeleton map length.
func (m *Mesh) Validate() error {
	n := int64(len(m.Vertices))
	for i, f := range m.Faces {
		for _, v := range f {
			if v < 0 || v >= n {
				return fmt.Errorf("%w: mesh %s: face %d references vertex %d of %d", ErrInvalidNeuron, m.ID, i, v, n)
			}
		}
	}
	if m.SkeletonMap != nil && len(m.SkeletonMap) != len(m.Vertices) {
		return fmt.Errorf("%w: mesh %s: skeleton map has %d entries for %d vertices",
			ErrInvalidNeuron, m.ID, len(m.SkeletonMap), len(m.Vertices))
	}
	return nil
}

// Dotprops is a point cloud with a tangent vector and a confidence value
// per point.
type Dotprops struct {
	Info

	Points [][3]float64
	Vect   [][3]float64

	// Alpha may be empty.
	Alpha []float64

	// K is the neighborhood size the tangents were computed from.
	K int
}

func (*Dotprops) Kind() Kind { return KindDotprops }
func (*Dotprops) sealed()    {}

// Validate checks that the per-point arrays line up.
func (d *Dotprops) Validate() error {
	if len(d.Vect) != len(d.Points) {
		return fmt.Errorf("%w: dotprops %s: %d vectors for %d points", ErrInvalidNeuron, d.ID, len(d.Vect), len(d.Points))
	}
	if len(d.Alpha) != 0 && len(d.Alpha) != len(d.Points) {
		return fmt.Errorf("%w: dotprops %s: %d alpha values for %d points", ErrInvalidNeuron, d.ID, len(d.Alpha), len(d.Points))
	}
	if d.K < 0 {
		return fmt.Errorf("%w: dotprops %s: negative k %d", ErrInvalidNeuron, d.ID, d.K)
	}
	return nil
}
