package hnf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stringerID struct{ v string }

func (s stringerID) String() string { return s.v }

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
		err  bool
	}{
		{"string", "abc", "abc", false},
		{"int", 42, "42", false},
		{"negative int64", int64(-7), "-7", false},
		{"uint64", uint64(18446744073709551615), "18446744073709551615", false},
		{"uint8", uint8(3), "3", false},
		{"stringer", stringerID{"n-1"}, "n-1", false},
		{"empty", "", "", true},
		{"slash", "a/b", "", true},
		{"dot prefix", ".serialized_navis", "", true},
		{"float", 1.0, "", true},
		{"bool", true, "", true},
		{"nil", nil, "", true},
		{"bad stringer", stringerID{""}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeID(tt.in)
			if tt.err {
				require.ErrorIs(t, err, ErrInvalidID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeIDs_Dedup(t *testing.T) {
	got, err := normalizeIDs([]any{"5", 5, int32(6), "a", "5"})
	require.NoError(t, err)
	assert.Equal(t, []string{"5", "6", "a"}, got)

	_, err = normalizeIDs([]any{"ok", 2.5})
	require.ErrorIs(t, err, ErrInvalidID)
}

func TestInfo_SetID(t *testing.T) {
	var info Info
	require.NoError(t, info.SetID(123))
	assert.Equal(t, "123", info.ID)
	require.Error(t, info.SetID("a/b"))
	assert.Equal(t, "123", info.ID)
}
