package hnf

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scigolib/hnf/internal/store"
)

// saveAndReload round-trips a group through a container file.
func saveAndReload(t *testing.T, g *store.Group) *store.Group {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frame.h5")
	require.NoError(t, store.Save(path, g))
	f, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	root, err := f.Root()
	require.NoError(t, err)
	return root
}

func TestDataframe_RoundTrip(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.AddColumn("id", []int64{1, 2, 3}))
	require.NoError(t, tbl.AddColumn("w", []float32{0.5, 1.5, 2.5}))
	require.NoError(t, tbl.AddColumn("flag", []bool{true, false, false}))
	require.NoError(t, tbl.AddColumn("name", []string{"a", "bb", ""}))
	require.NoError(t, tbl.AddColumn("count", []uint32{7, 8, 9}))

	g := store.New()
	require.NoError(t, writeDataframe(tbl, g, frameWriteOptions{compression: DefaultCompression}))
	got, err := readDataframe(saveAndReload(t, g), frameReadOptions{skipHidden: true})
	require.NoError(t, err)

	assert.Equal(t, tbl.Columns(), got.Columns())
	for _, name := range tbl.Columns() {
		want, _ := tbl.Column(name)
		have, _ := got.Column(name)
		assert.Equal(t, want, have, name)
	}
}

func TestDataframe_SubsetExclude(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.AddColumn("a", []int64{1}))
	require.NoError(t, tbl.AddColumn("b", []int64{2}))
	require.NoError(t, tbl.AddColumn(".hidden", []int64{3}))

	g := store.New()
	require.NoError(t, writeDataframe(tbl, g, frameWriteOptions{exclude: []string{"b"}}))
	assert.Equal(t, []string{"a", ".hidden"}, g.Names())

	got, err := readDataframe(g, frameReadOptions{skipHidden: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got.Columns())

	got, err = readDataframe(g, frameReadOptions{skipHidden: false})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", ".hidden"}, got.Columns())

	got, err = readDataframe(g, frameReadOptions{subset: []string{".hidden"}, skipHidden: true})
	require.NoError(t, err)
	assert.Equal(t, []string{".hidden"}, got.Columns(), "an explicit request unhides a name")
}

func TestDataframe_ColumnExists(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.AddColumn("a", []int64{1, 2}))
	g := store.New()
	require.NoError(t, writeDataframe(tbl, g, frameWriteOptions{}))

	err := writeDataframe(tbl, g, frameWriteOptions{})
	var exists *ColumnExistsError
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, "a", exists.Column)

	require.NoError(t, tbl.SetColumn("a", []int64{5, 6}))
	require.NoError(t, writeDataframe(tbl, g, frameWriteOptions{overwrite: true}))
	got, err := readDataframe(g, frameReadOptions{})
	require.NoError(t, err)
	a, err := got.Int64s("a")
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 6}, a)
}

func TestDataframe_Shapes(t *testing.T) {
	g := store.New()
	xyz, err := store.NewNumeric([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, err)
	require.NoError(t, g.CreateDataset("xyz", xyz))
	_, err = g.CreateGroup("nested")
	require.NoError(t, err)

	got, err := readDataframe(saveAndReload(t, g), frameReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"xyz_0", "xyz_1", "xyz_2"}, got.Columns())
	col, _ := got.Column("xyz_1")
	assert.Equal(t, []float64{2, 5}, col)

	cube, err := store.NewNumeric(make([]int32, 8), 2, 2, 2)
	require.NoError(t, err)
	require.NoError(t, g.CreateDataset("cube", cube))
	_, err = readDataframe(g, frameReadOptions{})
	var shape *UnsupportedShapeError
	require.ErrorAs(t, err, &shape)
	assert.Equal(t, "cube", shape.Name)
	assert.Equal(t, []uint64{2, 2, 2}, shape.Shape)
}
