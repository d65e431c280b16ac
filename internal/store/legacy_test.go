package store

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/scigolib/hnf/internal/core"
	memtest "github.com/scigolib/hnf/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLegacy(t *testing.T, root *memtest.LegacyGroup) string {
	t.Helper()
	data, err := memtest.BuildLegacy(root)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "legacy.h5")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func legacyXYZ() []float64 {
	xyz := make([]float64, 30)
	for i := range xyz {
		xyz[i] = float64(i) / 2
	}
	return xyz
}

// legacyTree mirrors what h5py writes by default: ten extra groups force
// two symbol table nodes, xyz spans six deflated chunks (a two-level
// B-tree) and node_id ends in a partial chunk.
func legacyTree() *memtest.LegacyGroup {
	root := &memtest.LegacyGroup{
		Attrs: []memtest.LegacyAttr{
			{Name: "format_spec", Value: "hnf_v1"},
			{Name: "format_version", Value: int64(1)},
			{Name: "tags", Value: []string{"a", "", "ccc"}},
		},
		Groups: map[string]*memtest.LegacyGroup{
			"42": {
				Attrs: []memtest.LegacyAttr{
					{Name: "units_nm", Value: 8.0},
					{Name: "soma", Value: []int64{1}},
				},
				Groups: map[string]*memtest.LegacyGroup{
					"skeleton": {Datasets: map[string]*memtest.LegacyDataset{
						"xyz":     {Dims: []uint64{10, 3}, Float64s: legacyXYZ(), Chunks: []uint64{4, 2}, Deflate: true},
						"node_id": {Int64s: []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, Chunks: []uint64{4}},
						"label":   {Strings: []string{"soma", "", "axon"}, Attrs: []memtest.LegacyAttr{{Name: "kind", Value: "categorical"}}},
						"flags":   {Uint8s: []uint8{0, 1, 1}},
					}},
				},
			},
		},
	}
	for i := range 10 {
		root.Groups[fmt.Sprintf("%d", 100+i)] = &memtest.LegacyGroup{}
	}
	return root
}

func TestLegacy_SymbolTableGroups(t *testing.T) {
	f, err := Open(writeLegacy(t, legacyTree()))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, uint8(core.Version0), f.Superblock().Version)

	root, err := f.Root()
	require.NoError(t, err)
	assert.Equal(t, []string{"100", "101", "102", "103", "104", "105", "106", "107", "108", "109", "42"}, root.Names())

	spec, ok := root.Attr("format_spec")
	require.True(t, ok)
	assert.Equal(t, "hnf_v1", spec)
	tags, _ := root.Attr("tags")
	assert.Equal(t, []string{"a", "", "ccc"}, tags)
	version, _ := root.Attr("format_version")
	assert.Equal(t, int64(1), version)

	sk, err := root.Path("/42/skeleton")
	require.NoError(t, err)
	assert.Equal(t, []string{"flags", "label", "node_id", "xyz"}, sk.Names())

	n, err := root.Group("42")
	require.NoError(t, err)
	units, _ := n.Attr("units_nm")
	assert.Equal(t, 8.0, units)
}

func TestLegacy_ChunkedAndVarLenDatasets(t *testing.T) {
	f, err := Open(writeLegacy(t, legacyTree()))
	require.NoError(t, err)
	defer f.Close()

	root, err := f.Root()
	require.NoError(t, err)
	sk, err := root.Path("42/skeleton")
	require.NoError(t, err)

	xyz, err := sk.Dataset("xyz")
	require.NoError(t, err)
	assert.Equal(t, []uint64{10, 3}, xyz.Shape())
	assert.Equal(t, Compression{Codec: CodecDeflate, Level: 6}, xyz.Compression())
	got, err := xyz.Float64s()
	require.NoError(t, err)
	assert.Equal(t, legacyXYZ(), got)

	ids, err := sk.Dataset("node_id")
	require.NoError(t, err)
	vals, err := ids.Int64s()
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, vals)

	label, err := sk.Dataset("label")
	require.NoError(t, err)
	strs, err := label.Strings()
	require.NoError(t, err)
	assert.Equal(t, []string{"soma", "", "axon"}, strs)
	anyVals, err := label.Values()
	require.NoError(t, err)
	assert.Equal(t, strs, anyVals)
	kind, _ := label.Attr("kind")
	assert.Equal(t, "categorical", kind)

	flags, err := sk.Dataset("flags")
	require.NoError(t, err)
	b, err := flags.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 1}, b)
}

func TestLegacy_SaveRewritesAsCurrentLayout(t *testing.T) {
	src, err := Open(writeLegacy(t, legacyTree()))
	require.NoError(t, err)
	defer src.Close()
	root, err := src.Root()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rewritten.h5")
	require.NoError(t, Save(path, root))

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, uint8(core.Version2), f.Superblock().Version)

	again, err := f.Root()
	require.NoError(t, err)
	assert.Equal(t, root.Names(), again.Names())
	tags, _ := again.Attr("tags")
	assert.Equal(t, []string{"a", "", "ccc"}, tags)

	sk, err := again.Path("42/skeleton")
	require.NoError(t, err)
	label, err := sk.Dataset("label")
	require.NoError(t, err)
	assert.Equal(t, core.DatatypeString, label.Datatype().Class)
	strs, err := label.Strings()
	require.NoError(t, err)
	assert.Equal(t, []string{"soma", "", "axon"}, strs)

	xyz, err := sk.Dataset("xyz")
	require.NoError(t, err)
	assert.Equal(t, CodecDeflate, xyz.Compression().Codec)
	got, err := xyz.Float64s()
	require.NoError(t, err)
	assert.Equal(t, legacyXYZ(), got)
}

func TestCopyChunk(t *testing.T) {
	tests := []struct {
		name   string
		dims   []uint64
		chunk  []uint64
		offset []uint64
		data   []byte
		want   []byte
	}{
		{
			name: "interior 1-D", dims: []uint64{6}, chunk: []uint64{2}, offset: []uint64{2},
			data: []byte{7, 8}, want: []byte{0, 0, 7, 8, 0, 0},
		},
		{
			name: "clipped 1-D edge", dims: []uint64{5}, chunk: []uint64{2}, offset: []uint64{4},
			data: []byte{9, 99}, want: []byte{0, 0, 0, 0, 9},
		},
		{
			name: "2-D corner", dims: []uint64{3, 3}, chunk: []uint64{2, 2}, offset: []uint64{2, 2},
			data: []byte{5, 6, 7, 8}, want: []byte{0, 0, 0, 0, 0, 0, 0, 0, 5},
		},
		{
			name: "2-D interior rows", dims: []uint64{2, 4}, chunk: []uint64{2, 2}, offset: []uint64{0, 2},
			data: []byte{1, 2, 3, 4}, want: []byte{0, 0, 1, 2, 0, 0, 3, 4},
		},
		{
			name: "outside the dataset", dims: []uint64{2}, chunk: []uint64{2}, offset: []uint64{2},
			data: []byte{1, 2}, want: []byte{0, 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := make([]byte, len(tt.want))
			copyChunk(out, tt.data, tt.dims, tt.chunk, tt.offset, 1)
			assert.Equal(t, tt.want, out)
		})
	}
}
