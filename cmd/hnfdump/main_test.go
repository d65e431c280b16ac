package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scigolib/hnf"
)

func writeTestArchive(t *testing.T) string {
	t.Helper()

	sk, err := hnf.NewSkeleton("42",
		[]int64{1, 2, 3},
		[]int64{-1, 1, 2},
		[][3]float64{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}},
		[]float64{1, 1, 1})
	require.NoError(t, err)
	sk.Name = "cell 42"

	mesh := &hnf.Mesh{
		Info:     hnf.Info{ID: "42"},
		Vertices: [][3]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Faces:    [][3]int64{{0, 1, 2}},
	}

	path := filepath.Join(t.TempDir(), "cells.h5")
	require.NoError(t, hnf.Write(context.Background(), path, []hnf.Neuron{sk, mesh}))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfg := config{workers: 2, logFormat: "text", compression: hnf.DefaultCompression}
	cmd := newRootCmd(cfg)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInspectCommand(t *testing.T) {
	path := writeTestArchive(t)

	out, err := run(t, "inspect", path)
	require.NoError(t, err)
	assert.Contains(t, out, "format: hnf_v1")
	assert.Contains(t, out, "skeleton,mesh")
	assert.Contains(t, out, "cell 42")

	out, err = run(t, "inspect", "--json", path)
	require.NoError(t, err)
	var inv hnf.Inventory
	require.NoError(t, json.Unmarshal([]byte(out), &inv))
	assert.Equal(t, "hnf_v1", inv.FormatSpec)
	require.Contains(t, inv.Neurons, "42")
	assert.True(t, inv.Neurons["42"].Skeleton)
	assert.True(t, inv.Neurons["42"].Mesh)
}

func TestLsAndReadCommands(t *testing.T) {
	path := writeTestArchive(t)

	out, err := run(t, "ls", path)
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)

	out, err = run(t, "read", "--repr", "skeleton", path)
	require.NoError(t, err)
	assert.Contains(t, out, "3 nodes, 1 roots")

	out, err = run(t, "read", "--repr", "mesh", "--raw", path)
	require.NoError(t, err)
	assert.Contains(t, out, "3 vertices, 1 faces")

	_, err = run(t, "read", "--on-error", "panic", path)
	require.Error(t, err)
}

func TestRepackCommand(t *testing.T) {
	src := writeTestArchive(t)
	dst := filepath.Join(t.TempDir(), "repacked.h5")

	out, err := run(t, "repack", "--no-serialized", src, dst)
	require.NoError(t, err)
	assert.Contains(t, out, "repacked 2 blocks")

	inv, err := hnf.Inspect(dst)
	require.NoError(t, err)
	assert.True(t, inv.Neurons["42"].Skeleton)
	assert.True(t, inv.Neurons["42"].Mesh)
}

func TestHexdump(t *testing.T) {
	var out bytes.Buffer
	hexdump(&out, []byte("\x89HDF\r\n\x1a\nabcdefghij"), 0x10)

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "00000010: 89 48 44 46 0d 0a 1a 0a  61 62 63 64 65 66 67 68  |.HDF....abcdefgh|", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "00000020: 69 6a "))
	assert.True(t, strings.HasSuffix(lines[1], "|ij|"))
}

func TestHexdumpCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bytes.bin")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o600))

	out, err := run(t, "hexdump", "--offset", "4", "--length", "100", path)
	require.NoError(t, err)
	assert.Contains(t, out, "exceeds available bytes (6)")
	assert.Contains(t, out, "|456789|")

	_, err = run(t, "hexdump", "--offset", "10", path)
	require.Error(t, err)
}

func TestTreeCommand(t *testing.T) {
	path := writeTestArchive(t)

	out, err := run(t, "tree", path, "42/skeleton")
	require.NoError(t, err)
	assert.Contains(t, out, "superblock v2")
	assert.Contains(t, out, "/42/skeleton\n")
	assert.Contains(t, out, "node_id [3]")

	out, err = run(t, "tree", "--depth", "1", path)
	require.NoError(t, err)
	assert.Contains(t, out, "@format_spec = hnf_v1")
	assert.Contains(t, out, "  42/\n")
	assert.NotContains(t, out, "skeleton/")

	_, err = run(t, "tree", path, "missing")
	require.ErrorContains(t, err, `group "missing"`)
}

func TestLoadConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(t *testing.T, cfg config)
	}{
		{
			name: "defaults",
			check: func(t *testing.T, cfg config) {
				assert.Equal(t, hnf.DefaultWorkers(), cfg.workers)
				assert.Equal(t, "text", cfg.logFormat)
			},
		},
		{
			name: "overrides",
			env:  map[string]string{"HNF_WORKERS": "3", "HNF_LOG_FORMAT": "JSON", "HNF_LOG_LEVEL": "debug", "HNF_COMPRESSION": "lz4"},
			check: func(t *testing.T, cfg config) {
				assert.Equal(t, 3, cfg.workers)
				assert.Equal(t, "json", cfg.logFormat)
				assert.Equal(t, "DEBUG", cfg.logLevel.String())
				assert.Equal(t, hnf.CodecLZ4, cfg.compression.Codec)
			},
		},
		{name: "bad workers", env: map[string]string{"HNF_WORKERS": "0"}, wantErr: true},
		{name: "bad format", env: map[string]string{"HNF_LOG_FORMAT": "xml"}, wantErr: true},
		{name: "bad compression", env: map[string]string{"HNF_COMPRESSION": "brotli"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"HNF_WORKERS", "HNF_LOG_LEVEL", "HNF_LOG_FORMAT", "HNF_COMPRESSION"} {
				t.Setenv(k, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := loadConfig()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}
