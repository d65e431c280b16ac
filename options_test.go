package hnf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Defaults(t *testing.T) {
	read := newOptions(false, nil)
	assert.Equal(t, FormatAuto, read.format)
	assert.Equal(t, DefaultReadPolicy, read.policy.String())
	assert.True(t, read.strict)
	assert.False(t, read.preferRaw)
	assert.Equal(t, ErrorModeStop, read.onError)
	assert.Equal(t, ParallelAuto, read.parallel)
	assert.Equal(t, DefaultWorkers(), read.workers)
	assert.Equal(t, DefaultParallelThreshold, read.threshold)
	assert.True(t, read.annotations.IsNone())

	write := newOptions(true, []Option{WithWorkers(0), WithLogger(nil), WithMetrics(nil)})
	assert.Equal(t, FormatLatest, write.format)
	assert.True(t, write.serialized)
	assert.True(t, write.raw)
	assert.Equal(t, ModeAppend, write.mode)
	assert.Equal(t, DefaultCompression, write.compression)
	assert.GreaterOrEqual(t, write.workers, 1)
	assert.NotNil(t, write.logger)
	assert.NotNil(t, write.metrics)
}

func TestOptions_UseParallel(t *testing.T) {
	o := newOptions(false, []Option{WithParallelThreshold(3)})
	assert.False(t, o.useParallel(3))
	assert.True(t, o.useParallel(4))
	WithParallel(ParallelOff)(o)
	assert.False(t, o.useParallel(1000))
	WithParallel(ParallelOn)(o)
	assert.True(t, o.useParallel(1))
}

func TestParseErrorMode(t *testing.T) {
	for in, want := range map[string]ErrorMode{"": ErrorModeStop, "raise": ErrorModeStop, "WARN": ErrorModeWarn, "ignore": ErrorModeIgnore} {
		got, err := ParseErrorMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseErrorMode("panic")
	require.Error(t, err)
	assert.Equal(t, "warn", ErrorModeWarn.String())
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("deflate:7")
	require.NoError(t, err)
	assert.Equal(t, Compression{Codec: CodecDeflate, Level: 7, Shuffle: true}, c)

	c, err = ParseCompression("lz4")
	require.NoError(t, err)
	assert.Equal(t, CodecLZ4, c.Codec)

	c, err = ParseCompression("none")
	require.NoError(t, err)
	assert.Equal(t, CodecNone, c.Codec)

	for _, bad := range []string{"deflate:0", "deflate:x", "brotli"} {
		_, err := ParseCompression(bad)
		require.Error(t, err, bad)
	}
}

func TestAnnotationSelector(t *testing.T) {
	available := []string{"connectors", "notes"}
	assert.Equal(t, available, AllAnnotations().pick(available))
	assert.Empty(t, NoAnnotations().pick(available))
	assert.Equal(t, []string{"notes"}, SelectAnnotations("absent", "notes").pick(available))
	assert.True(t, SelectAnnotations().IsNone())
}
