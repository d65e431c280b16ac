package hnf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPolicy(t *testing.T) {
	has := func(kinds ...Kind) func(Kind) bool {
		return func(k Kind) bool { return containsKind(kinds, k) }
	}

	tests := []struct {
		policy string
		has    []Kind
		want   []Kind
	}{
		{"mesh->skeleton", []Kind{KindSkeleton, KindMesh}, []Kind{KindMesh}},
		{"mesh->skeleton", []Kind{KindSkeleton}, []Kind{KindSkeleton}},
		{"mesh,skeleton", []Kind{KindSkeleton, KindMesh}, []Kind{KindMesh, KindSkeleton}},
		{"mesh->skeleton", []Kind{KindDotprops}, nil},
		{" skeleton -> dotprops , mesh ", []Kind{KindDotprops, KindMesh}, []Kind{KindDotprops, KindMesh}},
		{"skeleton,skeleton->mesh", []Kind{KindSkeleton, KindMesh}, []Kind{KindSkeleton}},
	}
	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			p, err := ParseReadPolicy(tt.policy)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Select(has(tt.has...)))
		})
	}
}

func TestReadPolicy_Errors(t *testing.T) {
	for _, s := range []string{"", "mesh,", "mesh->", "volume", "mesh->>skeleton"} {
		_, err := ParseReadPolicy(s)
		require.ErrorIs(t, err, ErrInvalidReadPolicy, s)
	}
	assert.Panics(t, func() { MustParseReadPolicy("bogus") })
}

func TestReadPolicy_String(t *testing.T) {
	p := MustParseReadPolicy("mesh -> skeleton,dotprops")
	assert.Equal(t, "mesh->skeleton,dotprops", p.String())
	assert.False(t, p.IsZero())
	assert.True(t, ReadPolicy{}.IsZero())
}
