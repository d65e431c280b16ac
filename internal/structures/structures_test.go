package structures

import (
	"fmt"
	"testing"

	"github.com/scigolib/hnf/internal/core"
	memtest "github.com/scigolib/hnf/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rootSymbolTable(t *testing.T, root *memtest.LegacyGroup) (*memtest.MemFile, *core.SymbolTableMessage) {
	t.Helper()
	data, err := memtest.BuildLegacy(root)
	require.NoError(t, err)
	f := memtest.NewMemFile(data)
	sb, err := core.ReadSuperblock(f)
	require.NoError(t, err)
	return f, &core.SymbolTableMessage{BTreeAddress: sb.RootBTree, HeapAddress: sb.RootHeap}
}

func TestReadGroupLinks(t *testing.T) {
	root := &memtest.LegacyGroup{Groups: map[string]*memtest.LegacyGroup{}}
	var want []string
	for i := range 20 {
		name := fmt.Sprintf("n%02d", i)
		root.Groups[name] = &memtest.LegacyGroup{}
		want = append(want, name)
	}
	f, stm := rootSymbolTable(t, root)

	links, err := ReadGroupLinks(f, stm)
	require.NoError(t, err)
	got := make([]string, len(links))
	for i, l := range links {
		got[i] = l.Name
		assert.NotZero(t, l.Address)
	}
	assert.Equal(t, want, got)
}

func TestReadChunkIndex(t *testing.T) {
	f, stm := rootSymbolTable(t, &memtest.LegacyGroup{Datasets: map[string]*memtest.LegacyDataset{
		"v": {Int64s: []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, Chunks: []uint64{2}},
	}})
	links, err := ReadGroupLinks(f, stm)
	require.NoError(t, err)
	require.Len(t, links, 1)

	oh, err := core.ReadObjectHeader(f, links[0].Address)
	require.NoError(t, err)
	dl, err := core.ParseDataLayoutMessage(oh.Find(core.MsgDataLayout).Data)
	require.NoError(t, err)

	chunks, err := ReadChunkIndex(f, dl.Address, 1)
	require.NoError(t, err)
	require.Len(t, chunks, 6)
	for i, c := range chunks {
		assert.Equal(t, []uint64{uint64(i) * 2}, c.Offset)
		assert.Equal(t, uint32(16), c.Size)
		assert.Zero(t, c.FilterMask)
	}
}

func TestLegacyStructures_Errors(t *testing.T) {
	f, stm := rootSymbolTable(t, &memtest.LegacyGroup{})

	heap, err := LoadLocalHeap(f, stm.HeapAddress)
	require.NoError(t, err)
	name, err := heap.String(0)
	require.NoError(t, err)
	assert.Empty(t, name)
	_, err = heap.String(1 << 20)
	require.ErrorContains(t, err, "beyond data segment")

	_, err = LoadLocalHeap(f, stm.BTreeAddress)
	require.ErrorContains(t, err, "invalid local heap signature")

	_, err = ReadChunkIndex(f, stm.BTreeAddress, 1)
	require.ErrorContains(t, err, "has type 0, want 1")

	_, err = ReadSymbolTableNode(f, stm.HeapAddress)
	require.ErrorContains(t, err, "invalid SNOD signature")
}
