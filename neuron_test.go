package hnf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkeleton_Validate(t *testing.T) {
	xyz := [][3]float64{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}}
	radius := []float64{1, 1, 1}

	tests := []struct {
		name    string
		nodes   []int64
		parents []int64
		errMsg  string
	}{
		{"valid", []int64{1, 2, 3}, []int64{-1, 1, 2}, ""},
		{"two roots", []int64{1, 2, 3}, []int64{-1, 1, -1}, ""},
		{"duplicate", []int64{1, 1, 3}, []int64{-1, 1, 1}, "duplicate node id 1"},
		{"negative id", []int64{1, -2, 3}, []int64{-1, 1, 1}, "negative node id"},
		{"dangling parent", []int64{1, 2, 3}, []int64{-1, 1, 9}, "unknown parent 9"},
		{"cycle", []int64{1, 2, 3}, []int64{3, 1, 2}, "cycle"},
		{"self loop", []int64{1, 2, 3}, []int64{-1, 2, 2}, "cycle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSkeleton("s", tt.nodes, tt.parents, xyz, radius)
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidNeuron)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSkeleton_SomaAndColumns(t *testing.T) {
	s := testSkeleton(t, "1")
	assert.Equal(t, []int64{1}, s.Roots())

	s.Soma = []int64{99}
	require.ErrorIs(t, s.Validate(), ErrInvalidNeuron)

	s.Soma = nil
	s.Nodes.DropColumn("radius")
	err := s.Validate()
	require.ErrorIs(t, err, ErrInvalidNeuron)
	assert.Contains(t, err.Error(), `missing column "radius"`)

	require.ErrorIs(t, (&Skeleton{}).Validate(), ErrInvalidNeuron)
}

func TestMesh_Validate(t *testing.T) {
	m := testMesh(t, "1")
	m.SkeletonMap = []int64{1, 2}
	require.ErrorIs(t, m.Validate(), ErrInvalidNeuron)

	m.SkeletonMap = nil
	m.Faces = append(m.Faces, [3]int64{0, -1, 2})
	require.ErrorIs(t, m.Validate(), ErrInvalidNeuron)
}

func TestDotprops_Validate(t *testing.T) {
	d := testDotprops(t, "1")
	d.Alpha = nil
	require.NoError(t, d.Validate())

	d.Alpha = []float64{1}
	require.ErrorIs(t, d.Validate(), ErrInvalidNeuron)

	d.Alpha = nil
	d.Vect = d.Vect[:2]
	require.ErrorIs(t, d.Validate(), ErrInvalidNeuron)

	d = testDotprops(t, "1")
	d.K = -1
	require.ErrorIs(t, d.Validate(), ErrInvalidNeuron)
}

func TestKind(t *testing.T) {
	for _, k := range Kinds {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	_, err := ParseKind("volume")
	require.ErrorIs(t, err, ErrInvalidReadPolicy)
}
