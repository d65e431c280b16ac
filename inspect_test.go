package hnf

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspect_Scenario(t *testing.T) {
	path := archivePath(t)
	sk := testSkeleton(t, "1")
	sk.Name = ""
	mesh := testMesh(t, "1")
	mesh.Name = ""
	writeArchive(t, path, []Neuron{sk, mesh, testDotprops(t, "2")})

	inv, err := Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, "hnf_v1", inv.FormatSpec)
	assert.Equal(t, map[string]NeuronInventory{
		"1": {Skeleton: true, Mesh: true},
		"2": {Dotprops: true},
	}, inv.Neurons)
	assert.True(t, inv.Neurons["1"].Has(KindMesh))
	assert.False(t, inv.Neurons["2"].Has(KindSkeleton))

	out, err := json.Marshal(inv)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"format_spec": "hnf_v1",
		"format_url": "https://github.com/scigolib/hnf",
		"neurons": {"1": {"skeleton": true, "mesh": true}, "2": {"dotprops": true}}
	}`, string(out))

	res := readArchive(t, path,
		WithSubset("1", "2"),
		WithRepresentations(MustParseReadPolicy("mesh->skeleton->dotprops")),
	)
	assert.Equal(t, []string{"1:mesh", "2:dotprops"}, kindsOf(res.Neurons))
}

func TestInspect_NamesAndAnnotations(t *testing.T) {
	path := archivePath(t)
	sk := testSkeleton(t, "42")
	notes := NewTable()
	require.NoError(t, notes.AddColumn("text", []string{"ok"}))
	sk.Annotations = map[string]any{"notes": notes}
	writeArchive(t, path, []Neuron{sk}, WithAnnotations(AllAnnotations()))

	inv, err := Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, NeuronInventory{Name: "neuron 42", Skeleton: true, Annotations: []string{"notes"}}, inv.Neurons["42"])
}
