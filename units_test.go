package hnf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnits(t *testing.T) {
	tests := []struct {
		in     string
		nm     float64
		length bool
	}{
		{"8 nanometer", 8, true},
		{"1 micron", 1000, true},
		{"nm", 1, true},
		{"0.5 µm", 500, true},
		{"2 mm", 2e6, true},
		{"10 angstrom", 1, true},
		{"dimensionless", 0, false},
		{"3", 0, false},
		{"1 second", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			u, err := ParseUnits(tt.in)
			require.NoError(t, err)
			nm, ok := u.Nanometers()
			assert.Equal(t, tt.length, ok)
			assert.InDelta(t, tt.nm, nm, 1e-9)
		})
	}

	u, err := ParseUnits("")
	require.NoError(t, err)
	assert.True(t, u.IsZero())
	assert.Empty(t, u.String())

	_, err = ParseUnits("x nanometer")
	require.Error(t, err)
	_, err = ParseUnits("1 2 3")
	require.Error(t, err)

	assert.Equal(t, "8 nanometer", UnitsNM(8).String())
}
