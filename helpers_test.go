package hnf

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testSkeleton(t *testing.T, id string) *Skeleton {
	t.Helper()
	s, err := NewSkeleton(id,
		[]int64{1, 2, 3, 4},
		[]int64{-1, 1, 2, 2},
		[][3]float64{{0, 0, 0}, {1, 0, 0}, {2, 1, 0}, {2, -1, 0.5}},
		[]float64{1.5, 1, 0.5, 0.5},
	)
	require.NoError(t, err)
	s.Name = "neuron " + id
	s.Units = UnitsNM(8)
	s.Soma = []int64{1}
	return s
}

func testMesh(t *testing.T, id string) *Mesh {
	t.Helper()
	m := &Mesh{
		Info:     Info{ID: id, Name: "mesh " + id, Units: UnitsNM(4)},
		Vertices: [][3]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		Faces:    [][3]int64{{0, 1, 2}, {0, 1, 3}, {0, 2, 3}, {1, 2, 3}},
	}
	require.NoError(t, m.Validate())
	return m
}

func testDotprops(t *testing.T, id string) *Dotprops {
	t.Helper()
	d := &Dotprops{
		Info:   Info{ID: id},
		Points: [][3]float64{{0, 0, 0}, {1, 1, 1}, {2, 2, 2}},
		Vect:   [][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		Alpha:  []float64{0.9, 0.5, 0.1},
		K:      5,
	}
	require.NoError(t, d.Validate())
	return d
}

func archivePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "neurons.h5")
}

func writeArchive(t *testing.T, path string, neurons []Neuron, opts ...Option) {
	t.Helper()
	require.NoError(t, Write(context.Background(), path, neurons, opts...))
}

func readArchive(t *testing.T, path string, opts ...Option) *Result {
	t.Helper()
	res, err := Read(context.Background(), path, opts...)
	require.NoError(t, err)
	return res
}

func kindsOf(neurons []Neuron) []string {
	out := make([]string, len(neurons))
	for i, n := range neurons {
		out[i] = fmt.Sprintf("%s:%s", n.NeuronInfo().ID, n.Kind())
	}
	return out
}
