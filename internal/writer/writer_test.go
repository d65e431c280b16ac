package writer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocator(t *testing.T) {
	a := NewAllocator(48)

	first, err := a.Allocate(100)
	require.NoError(t, err)
	require.Equal(t, uint64(48), first)

	second, err := a.Allocate(10)
	require.NoError(t, err)
	require.Equal(t, uint64(148), second)
	require.Equal(t, uint64(158), a.EndOfFile())

	_, err = a.Allocate(0)
	require.Error(t, err)

	require.Len(t, a.Blocks(), 2)
	require.NoError(t, a.ValidateNoOverlaps())
}

func TestFileWriter_CommitReplacesTarget(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "archive.h5")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0o600))

	w, err := NewFileWriter(target, 4)
	require.NoError(t, err)

	addr, err := w.WriteAtWithAllocation([]byte("payload"))
	require.NoError(t, err)
	require.Equal(t, uint64(4), addr)
	_, err = w.WriteAt([]byte("HEAD"), 0)
	require.NoError(t, err)

	buf := make([]byte, 7)
	_, err = w.ReadAt(buf, 4)
	require.NoError(t, err)
	require.Equal(t, "payload", string(buf))

	require.NoError(t, w.Commit())
	got, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "HEADpayload", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary file must be renamed away")

	_, err = w.Allocate(1)
	require.Error(t, err)
	require.NoError(t, w.Abort())
}

func TestFileWriter_AbortKeepsTarget(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "archive.h5")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0o600))

	w, err := NewFileWriter(target, 0)
	require.NoError(t, err)
	_, err = w.WriteAtWithAllocation([]byte("new"))
	require.NoError(t, err)
	require.NoError(t, w.Abort())

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "old", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
