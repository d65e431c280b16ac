package hnf

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scigolib/hnf/internal/store"
)

func TestRoundTrip_Raw(t *testing.T) {
	path := archivePath(t)
	sk := testSkeleton(t, "1")
	mesh := testMesh(t, "2")
	mesh.SkeletonMap = []int64{1, 1, 2, 3}
	dp := testDotprops(t, "3")
	writeArchive(t, path, []Neuron{sk, mesh, dp}, WithSerialized(false))

	res := readArchive(t, path, WithRepresentations(MustParseReadPolicy("skeleton,mesh,dotprops")))
	require.Equal(t, []string{"1:skeleton", "2:mesh", "3:dotprops"}, kindsOf(res.Neurons))
	require.Empty(t, res.Errors)

	gotSk := res.Neurons[0].(*Skeleton)
	require.Equal(t, SkeletonColumns, gotSk.Nodes.Columns())
	for _, name := range SkeletonColumns {
		want, _ := sk.Nodes.Column(name)
		got, _ := gotSk.Nodes.Column(name)
		assert.Equal(t, want, got, name)
	}
	assert.Equal(t, "neuron 1", gotSk.Name)
	assert.Equal(t, UnitsNM(8), gotSk.Units)
	assert.Equal(t, []int64{1}, gotSk.Soma)
	assert.Nil(t, gotSk.Extra)

	gotMesh := res.Neurons[1].(*Mesh)
	assert.Equal(t, mesh.Vertices, gotMesh.Vertices)
	assert.Equal(t, mesh.Faces, gotMesh.Faces)
	assert.Equal(t, mesh.SkeletonMap, gotMesh.SkeletonMap)
	assert.Equal(t, "mesh 2", gotMesh.Name)
	assert.Equal(t, UnitsNM(4), gotMesh.Units)

	gotDp := res.Neurons[2].(*Dotprops)
	assert.Equal(t, dp.Points, gotDp.Points)
	assert.Equal(t, dp.Vect, gotDp.Vect)
	assert.Equal(t, dp.Alpha, gotDp.Alpha)
	assert.Equal(t, 5, gotDp.K)
	assert.True(t, gotDp.Units.IsZero())
}

func TestRoundTrip_Serialized(t *testing.T) {
	path := archivePath(t)
	sk := testSkeleton(t, "1")
	sk.Extra = map[string]any{"source": "test", "lot": int64(3)}
	mesh := testMesh(t, "2")
	dp := testDotprops(t, "3")
	writeArchive(t, path, []Neuron{sk, mesh, dp}, WithRaw(false))

	res := readArchive(t, path, WithRepresentations(MustParseReadPolicy("skeleton,mesh,dotprops")))
	require.Len(t, res.Neurons, 3)
	assert.Equal(t, sk, res.Neurons[0])
	assert.Equal(t, mesh, res.Neurons[1])
	assert.Equal(t, dp, res.Neurons[2])

	// Raw data is absent, so preferring it falls back to the blob.
	res = readArchive(t, path, WithPreferRaw(true), WithRepresentations(MustParseReadPolicy("skeleton")))
	require.Len(t, res.Neurons, 1)
	assert.Equal(t, sk, res.Neurons[0])
}

func TestRead_PreferRawLoose(t *testing.T) {
	path := archivePath(t)
	sk := testSkeleton(t, "1")
	sk.Extra = map[string]any{"source": "test"}
	require.NoError(t, sk.Nodes.AddColumn("label", []string{"soma", "a", "b", "c"}))
	writeArchive(t, path, []Neuron{sk})

	strict := readArchive(t, path, WithPreferRaw(true))
	require.Len(t, strict.Neurons, 1)
	gotStrict := strict.Neurons[0].(*Skeleton)
	assert.Equal(t, SkeletonColumns, gotStrict.Nodes.Columns())
	assert.Nil(t, gotStrict.Extra)

	loose := readArchive(t, path, WithPreferRaw(true), WithStrict(false))
	gotLoose := loose.Neurons[0].(*Skeleton)
	assert.Equal(t, append(append([]string{}, SkeletonColumns...), "label"), gotLoose.Nodes.Columns())
	labels, err := gotLoose.Nodes.Strings("label")
	require.NoError(t, err)
	assert.Equal(t, []string{"soma", "a", "b", "c"}, labels)
	assert.Equal(t, map[string]any{"source": "test"}, gotLoose.Extra)
}

func TestRead_Policy(t *testing.T) {
	path := archivePath(t)
	writeArchive(t, path, []Neuron{testSkeleton(t, "1"), testMesh(t, "1"), testDotprops(t, "2")})

	tests := []struct {
		policy string
		want   []string
	}{
		{"mesh->skeleton", []string{"1:mesh"}},
		{"skeleton->mesh", []string{"1:skeleton"}},
		{"mesh,skeleton", []string{"1:mesh", "1:skeleton"}},
		{"mesh->skeleton->dotprops", []string{"1:mesh", "2:dotprops"}},
		{"dotprops", []string{"2:dotprops"}},
		{"mesh->skeleton,skeleton", []string{"1:mesh", "1:skeleton"}},
		{"mesh,mesh->dotprops", []string{"1:mesh", "2:dotprops"}},
	}
	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			res := readArchive(t, path, WithRepresentations(MustParseReadPolicy(tt.policy)))
			assert.Equal(t, tt.want, kindsOf(res.Neurons))
			assert.Empty(t, res.Errors)
		})
	}
}

func TestRead_MissingRepresentationOmitted(t *testing.T) {
	path := archivePath(t)
	writeArchive(t, path, []Neuron{testDotprops(t, "7")})

	res := readArchive(t, path, WithRepresentations(MustParseReadPolicy("mesh->skeleton")))
	assert.Empty(t, res.Neurons)
	assert.Empty(t, res.Errors)

	r, err := OpenReader(path, WithRepresentations(MustParseReadPolicy("mesh->skeleton")))
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	neurons, err := r.ReadNeuron(7)
	require.NoError(t, err)
	assert.Empty(t, neurons)

	_, err = r.ReadNeuron("8")
	require.ErrorIs(t, err, ErrNeuronNotFound)
}

func TestRead_Subset(t *testing.T) {
	path := archivePath(t)
	writeArchive(t, path, []Neuron{testSkeleton(t, "1"), testSkeleton(t, "2"), testSkeleton(t, "3")})

	res := readArchive(t, path, WithSubset(3, "1", "missing", uint8(3)))
	assert.Equal(t, []string{"3:skeleton", "1:skeleton"}, kindsOf(res.Neurons))

	_, err := Read(context.Background(), path, WithSubset(1.5))
	require.ErrorIs(t, err, ErrInvalidID)
}

func TestWrite_OverwriteDiscipline(t *testing.T) {
	path := archivePath(t)
	first := testSkeleton(t, "1")
	require.NoError(t, first.Nodes.AddColumn("label", []string{"a", "b", "c", "d"}))
	writeArchive(t, path, []Neuron{first}, WithSerialized(false))

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	err = Write(context.Background(), path, []Neuron{testSkeleton(t, "1")}, WithSerialized(false))
	var exists *BlockExistsError
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, "1", exists.ID)
	assert.Equal(t, "skeleton", exists.Block)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "a failed write must not touch the archive")

	writeArchive(t, path, []Neuron{testSkeleton(t, "1")}, WithSerialized(false), WithOverwriteNeurons(true))
	res := readArchive(t, path, WithStrict(false))
	require.Len(t, res.Neurons, 1)
	assert.Equal(t, SkeletonColumns, res.Neurons[0].(*Skeleton).Nodes.Columns())
}

func TestWrite_AppendKeepsNeurons(t *testing.T) {
	path := archivePath(t)
	writeArchive(t, path, []Neuron{testSkeleton(t, "1")})
	writeArchive(t, path, []Neuron{testMesh(t, "1"), testDotprops(t, "2")})

	inv, err := Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, inv.IDs())
	assert.True(t, inv.Neurons["1"].Skeleton)
	assert.True(t, inv.Neurons["1"].Mesh)

	writeArchive(t, path, []Neuron{testDotprops(t, "9")}, WithMode(ModeOverwrite))
	inv, err = Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"9"}, inv.IDs())
}

func TestWrite_Errors(t *testing.T) {
	path := archivePath(t)

	_, err := OpenWriter(path, WithSerialized(false), WithRaw(false))
	require.ErrorIs(t, err, ErrNoStorage)

	bad := testMesh(t, "1")
	bad.Faces = append(bad.Faces, [3]int64{0, 1, 99})
	err = Write(context.Background(), path, []Neuron{bad})
	require.ErrorIs(t, err, ErrInvalidNeuron)
	_, statErr := os.Stat(path)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "nothing is written when a neuron fails")

	err = Write(context.Background(), path, []Neuron{testDotprops(t, ".hidden")})
	require.ErrorIs(t, err, ErrInvalidID)

	w, err := OpenWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.ErrorIs(t, w.Write(context.Background(), testDotprops(t, "1")), ErrClosed)
}

func TestWrite_SchemaGuard(t *testing.T) {
	path := archivePath(t)
	writeArchive(t, path, []Neuron{testSkeleton(t, "1")})
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	v2, err := NewRegistry(FormatV1().Alias("hnf_v2", 2))
	require.NoError(t, err)

	err = Write(context.Background(), path, []Neuron{testMesh(t, "2")}, WithRegistry(v2))
	var conflict *FormatConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "hnf_v1", conflict.Existing)
	assert.Equal(t, "hnf_v2", conflict.Writer)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	err = Write(context.Background(), path, []Neuron{testMesh(t, "2")}, WithFormat("hnf_v7"))
	var unsupported *UnsupportedFormatError
	require.ErrorAs(t, err, &unsupported)

	_, err = Read(context.Background(), path, WithRegistry(v2))
	var schema *SchemaError
	require.ErrorAs(t, err, &schema)
	require.ErrorAs(t, err, &unsupported)

	// Overwrite mode starts a fresh archive in the new format.
	writeArchive(t, path, []Neuron{testMesh(t, "2")}, WithRegistry(v2), WithMode(ModeOverwrite))
	inv, err := Inspect(path, WithRegistry(v2))
	require.NoError(t, err)
	assert.Equal(t, "hnf_v2", inv.FormatSpec)
}

func TestOpenReader_SchemaErrors(t *testing.T) {
	dir := t.TempDir()

	garbage := dir + "/garbage.h5"
	require.NoError(t, os.WriteFile(garbage, []byte("not a container"), 0o600))
	_, err := OpenReader(garbage)
	var schema *SchemaError
	require.ErrorAs(t, err, &schema)

	bare := dir + "/bare.h5"
	require.NoError(t, store.Save(bare, store.New()))
	_, err = OpenReader(bare)
	require.ErrorAs(t, err, &schema)
	assert.Contains(t, err.Error(), "missing format_spec")

	_, err = OpenReader(dir + "/absent.h5")
	require.ErrorAs(t, err, &schema)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// addBrokenNeuron stores a skeleton block with neither blob nor raw data.
func addBrokenNeuron(t *testing.T, path, id string) {
	t.Helper()
	f, err := store.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	root, err := f.Root()
	require.NoError(t, err)
	g, err := root.CreateGroup(id)
	require.NoError(t, err)
	_, err = g.CreateGroup("skeleton")
	require.NoError(t, err)
	require.NoError(t, store.Save(path, root))
}

func TestRead_OnError(t *testing.T) {
	path := archivePath(t)
	writeArchive(t, path, []Neuron{testSkeleton(t, "1")})
	addBrokenNeuron(t, path, "2")
	writeArchive(t, path, []Neuron{testSkeleton(t, "3")})

	_, err := Read(context.Background(), path)
	var missing *RepresentationMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "2", missing.ID)
	assert.Equal(t, KindSkeleton, missing.Kind)

	var buf bytes.Buffer
	logger := NewLogger(slog.NewTextHandler(&buf, nil))
	res := readArchive(t, path, WithOnError(ErrorModeWarn), WithLogger(logger))
	assert.Equal(t, []string{"1:skeleton", "3:skeleton"}, kindsOf(res.Neurons))
	require.Contains(t, res.Errors, "2")
	require.ErrorAs(t, res.Errors["2"], &missing)
	assert.Contains(t, buf.String(), "neuron skipped")
	assert.Contains(t, buf.String(), "id=2")

	buf.Reset()
	res = readArchive(t, path, WithOnError(ErrorModeIgnore), WithLogger(logger))
	assert.Len(t, res.Neurons, 2)
	assert.Contains(t, res.Errors, "2")
	assert.NotContains(t, buf.String(), "neuron skipped")
}

func TestReader_Lifecycle(t *testing.T) {
	path := archivePath(t)
	writeArchive(t, path, []Neuron{testSkeleton(t, "b"), testSkeleton(t, "a")})

	r, err := OpenReader(path)
	require.NoError(t, err)
	assert.Equal(t, "hnf_v1", r.Format().Spec)

	ids, err := r.IDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids)

	res, err := r.Read(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Neurons, 2)
	assert.Len(t, res.ByID("a"), 1)
	assert.Empty(t, res.ByID("c"))

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	_, err = r.IDs()
	require.ErrorIs(t, err, ErrClosed)
	_, err = r.Read(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}

func TestRead_ContextCancelled(t *testing.T) {
	path := archivePath(t)
	writeArchive(t, path, []Neuron{testSkeleton(t, "1")})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Read(ctx, path, WithParallel(ParallelOff))
	require.ErrorIs(t, err, context.Canceled)
}

func TestWrite_Compression(t *testing.T) {
	for _, spec := range []string{"none", "lz4", "deflate:9"} {
		t.Run(spec, func(t *testing.T) {
			c, err := ParseCompression(spec)
			require.NoError(t, err)
			path := archivePath(t)
			sk := testSkeleton(t, "1")
			writeArchive(t, path, []Neuron{sk}, WithSerialized(false), WithCompression(c))

			res := readArchive(t, path)
			require.Len(t, res.Neurons, 1)
			got := res.Neurons[0].(*Skeleton)
			want, _ := sk.Nodes.Float64s("x")
			x, err := got.Nodes.Float64s("x")
			require.NoError(t, err)
			assert.Equal(t, want, x)
		})
	}
}

func TestMetrics_Recorded(t *testing.T) {
	path := archivePath(t)
	m := &BasicMetricsCollector{}
	writeArchive(t, path, []Neuron{testSkeleton(t, "1"), testMesh(t, "1")}, WithMetrics(m))
	readArchive(t, path, WithMetrics(m), WithRepresentations(MustParseReadPolicy("mesh,skeleton")))

	stats := m.GetStats()
	assert.Equal(t, int64(2), stats.WriteCount)
	assert.Equal(t, int64(1), stats.ReadCount)
	assert.Equal(t, int64(2), stats.BlocksDecoded)
	assert.Zero(t, stats.ReadErrors)
}

func TestWrite_OversizedAttributeFailsNeuron(t *testing.T) {
	path := archivePath(t)
	w, err := OpenWriter(path)
	require.NoError(t, err)

	big := testMesh(t, "2")
	big.Extra = map[string]any{"big": make([]float64, 10000)}
	err = w.Write(context.Background(), testMesh(t, "1"), big)
	require.ErrorIs(t, err, store.ErrInvalidValue)
	require.NoError(t, w.Close())

	inv, err := Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, inv.IDs(), "neurons staged before the failure are saved")
}
