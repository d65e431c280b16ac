package hnf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlob_RoundTrip(t *testing.T) {
	sk := testSkeleton(t, "1")
	require.NoError(t, sk.Nodes.AddColumn("type", Categorical{Codes: []int32{0, 1, 1, 1}, Levels: []string{"soma", "axon"}}))
	require.NoError(t, sk.Nodes.AddColumn("flag", []bool{true, false, false, true}))
	require.NoError(t, sk.Nodes.AddColumn("raw", []uint8{1, 2, 3, 4}))
	sk.Nodes.Attrs = map[string]any{"origin": "trace", "levels": []int32{1, 2}}
	sk.Extra = map[string]any{"tag": "x"}

	mesh := testMesh(t, "2")
	mesh.SkeletonMap = []int64{1, 2, 3, 4}
	mesh.Extra = map[string]any{
		"tags":    []string{"a", "b"},
		"lot":     int64(3),
		"count":   7,
		"ratio":   float32(0.5),
		"ids":     []uint32{1, 2},
		"flag":    true,
		"none":    nil,
		"payload": []byte{0, 1},
		"nested":  map[string]any{"n": []float64{1, 2}, "u": uint8(9)},
	}

	dp := testDotprops(t, "3")
	dp.Alpha = nil

	for _, n := range []Neuron{sk, mesh, dp} {
		t.Run(n.Kind().String(), func(t *testing.T) {
			data, err := encodeBlob(n)
			require.NoError(t, err)
			require.Equal(t, blobMagic, string(data[:4]))

			got, err := decodeBlob(data)
			require.NoError(t, err)
			assert.Equal(t, n, got)
		})
	}
}

func TestBlob_ExtraKeepsTypes(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"string slice", []string{"a"}},
		{"empty string slice", []string{}},
		{"int", 42},
		{"uint64", uint64(1) << 63},
		{"float32 slice", []float32{1.5, -2}},
		{"bool slice", []bool{true}},
		{"nested map", map[string]any{"inner": map[string]any{"x": int32(-1)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dp := testDotprops(t, "1")
			dp.Extra = map[string]any{"v": tt.value}
			data, err := encodeBlob(dp)
			require.NoError(t, err)
			got, err := decodeBlob(data)
			require.NoError(t, err)
			assert.Equal(t, dp.Extra, got.NeuronInfo().Extra)
		})
	}
}

func TestBlob_Rejects(t *testing.T) {
	_, err := decodeBlob([]byte("nope"))
	require.Error(t, err)

	data, err := encodeBlob(testMesh(t, "1"))
	require.NoError(t, err)

	bad := append([]byte(nil), data...)
	bad[4] = 9
	_, err = decodeBlob(bad)
	require.ErrorContains(t, err, "version 9")

	_, err = decodeBlob(data[:len(data)-3])
	require.Error(t, err)
}
