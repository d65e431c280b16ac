package hnf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_Columns(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.AddColumn("id", []int64{1, 2, 3}))
	require.NoError(t, tbl.AddColumn("x", []float32{1, 2, 3.5}))
	assert.Equal(t, 3, tbl.Len())

	err := tbl.AddColumn("y", []float64{1})
	require.ErrorIs(t, err, ErrRaggedTable)

	var exists *ColumnExistsError
	require.ErrorAs(t, tbl.AddColumn("id", []int64{4, 5, 6}), &exists)

	require.Error(t, tbl.AddColumn("bad", []complex64{1, 2, 3}))
	require.Error(t, tbl.AddColumn("", []int64{1, 2, 3}))

	require.NoError(t, tbl.SetColumn("id", []int64{7, 8, 9}))
	ids, err := tbl.Int64s("id")
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 8, 9}, ids)

	xs, err := tbl.Float64s("x")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3.5}, xs)

	_, err = tbl.Int64s("x")
	require.Error(t, err, "3.5 is not integral")

	sel := tbl.Select("x", "missing", "id")
	assert.Equal(t, []string{"x", "id"}, sel.Columns())

	assert.True(t, tbl.DropColumn("x"))
	assert.False(t, tbl.DropColumn("x"))
	assert.Equal(t, []string{"id"}, tbl.Columns())
	assert.True(t, tbl.DropColumn("id"))
	assert.Zero(t, tbl.Len())
}

func TestTable_Conversions(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.AddColumn("u", []uint32{1, 2}))
	require.NoError(t, tbl.AddColumn("f", []float64{4, 5}))
	require.NoError(t, tbl.AddColumn("s", []string{"a", "b"}))
	require.NoError(t, tbl.AddColumn("c", Categorical{Codes: []int32{1, -1}, Levels: []string{"x", "y"}}))

	f, err := tbl.Float64s("u")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, f)

	i, err := tbl.Int64s("f")
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5}, i)

	c, err := tbl.Strings("c")
	require.NoError(t, err)
	assert.Equal(t, []string{"y", ""}, c)

	_, err = tbl.Float64s("s")
	require.Error(t, err)
	_, err = tbl.Float64s("missing")
	require.Error(t, err)
}
