package hnf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Lookup(t *testing.T) {
	f, err := DefaultRegistry.Lookup("hnf_v1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.Version)

	f, err = DefaultRegistry.Lookup("v1")
	require.NoError(t, err)
	assert.Equal(t, "hnf_v1", f.Spec)

	_, err = DefaultRegistry.Lookup("hnf_v9")
	var unsupported *UnsupportedFormatError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "hnf_v9", unsupported.Spec)

	assert.Equal(t, []string{"hnf_v1"}, DefaultRegistry.Specs())
}

func TestRegistry_Register(t *testing.T) {
	r, err := NewRegistry(FormatV1())
	require.NoError(t, err)
	require.Error(t, r.Register(FormatV1()))
	require.Error(t, r.Register(&Format{}))
	require.NoError(t, r.Register(FormatV1().Alias("hnf_v2", 2)))

	latest, err := r.Latest()
	require.NoError(t, err)
	assert.Equal(t, "hnf_v2", latest.Spec)

	empty, err := NewRegistry()
	require.NoError(t, err)
	_, err = empty.Latest()
	require.Error(t, err)
}

func TestRegistry_Resolve(t *testing.T) {
	r, err := NewRegistry(FormatV1(), FormatV1().Alias("hnf_v2", 2))
	require.NoError(t, err)

	tests := []struct {
		name      string
		write     bool
		requested string
		stored    string
		want      string
		conflict  bool
	}{
		{"read auto", false, FormatAuto, "hnf_v1", "hnf_v1", false},
		{"read explicit match", false, "v1", "hnf_v1", "hnf_v1", false},
		{"read explicit mismatch", false, "hnf_v2", "hnf_v1", "", true},
		{"read latest mismatch", false, FormatLatest, "hnf_v1", "", true},
		{"write latest new", true, FormatLatest, "", "hnf_v2", false},
		{"write latest existing", true, FormatLatest, "hnf_v1", "", true},
		{"write auto existing", true, FormatAuto, "hnf_v1", "hnf_v1", false},
		{"write auto new", true, FormatAuto, "", "hnf_v2", false},
		{"write explicit", true, "hnf_v1", "", "hnf_v1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolve := r.ResolveRead
			if tt.write {
				resolve = r.ResolveWrite
			}
			f, err := resolve(tt.requested, tt.stored)
			if tt.conflict {
				var conflict *FormatConflictError
				require.ErrorAs(t, err, &conflict)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Spec)
		})
	}
}
