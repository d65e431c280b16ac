package hnf

import (
	"os"
	"testing"

	memtest "github.com/scigolib/hnf/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeLegacyArchive stores one skeleton the way h5py lays files out by
// default: superblock v0, symbol table groups, chunked columns indexed by
// a v1 B-tree and variable-length strings.
func writeLegacyArchive(t *testing.T) string {
	t.Helper()
	root := &memtest.LegacyGroup{
		Attrs: []memtest.LegacyAttr{
			{Name: attrFormatSpec, Value: "hnf_v1"},
			{Name: attrFormatURL, Value: FormatURL},
		},
		Groups: map[string]*memtest.LegacyGroup{
			"7": {
				Attrs: []memtest.LegacyAttr{{Name: attrNeuronName, Value: "legacy 7"}},
				Groups: map[string]*memtest.LegacyGroup{
					"skeleton": {
						Attrs: []memtest.LegacyAttr{
							{Name: attrUnitsNM, Value: 8.0},
							{Name: attrSoma, Value: []int64{1}},
						},
						Datasets: map[string]*memtest.LegacyDataset{
							"node_id":   {Int64s: []int64{1, 2, 3, 4, 5}, Chunks: []uint64{2}},
							"parent_id": {Int64s: []int64{-1, 1, 2, 3, 3}, Chunks: []uint64{2}, Deflate: true},
							"x":         {Float64s: []float64{0, 1, 2, 3, 4}},
							"y":         {Float64s: []float64{0, 0, 1, 1, 2}, Chunks: []uint64{4}, Deflate: true},
							"z":         {Float64s: []float64{0.5, 0.5, 0.5, 0.5, 0.5}},
							"radius":    {Float64s: []float64{2, 1, 1, 0.5, 0.5}},
							"label":     {Strings: []string{"soma", "", "axon", "axon", "tip"}},
						},
					},
				},
			},
		},
	}
	data, err := memtest.BuildLegacy(root)
	require.NoError(t, err)
	path := archivePath(t)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestRead_LegacyLayout(t *testing.T) {
	path := writeLegacyArchive(t)

	res := readArchive(t, path)
	require.Equal(t, []string{"7:skeleton"}, kindsOf(res.Neurons))
	sk := res.Neurons[0].(*Skeleton)
	assert.Equal(t, "legacy 7", sk.Name)
	assert.Equal(t, UnitsNM(8), sk.Units)
	assert.Equal(t, []int64{1}, sk.Soma)
	assert.Equal(t, SkeletonColumns, sk.Nodes.Columns())

	parents, err := sk.Nodes.Int64s("parent_id")
	require.NoError(t, err)
	assert.Equal(t, []int64{-1, 1, 2, 3, 3}, parents)
	y, err := sk.Nodes.Float64s("y")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1, 1, 2}, y)
	assert.Equal(t, []int64{1}, sk.Roots())

	loose := readArchive(t, path, WithStrict(false))
	labels, err := loose.Neurons[0].(*Skeleton).Nodes.Strings("label")
	require.NoError(t, err)
	assert.Equal(t, []string{"soma", "", "axon", "axon", "tip"}, labels)
}

func TestWrite_AppendToLegacyLayout(t *testing.T) {
	path := writeLegacyArchive(t)
	writeArchive(t, path, []Neuron{testDotprops(t, "8")})

	inv, err := Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"7", "8"}, inv.IDs())
	assert.True(t, inv.Neurons["7"].Skeleton)

	res := readArchive(t, path, WithSubset("7"), WithStrict(false))
	require.Len(t, res.Neurons, 1)
	labels, err := res.Neurons[0].(*Skeleton).Nodes.Strings("label")
	require.NoError(t, err)
	assert.Equal(t, []string{"soma", "", "axon", "axon", "tip"}, labels)
}
