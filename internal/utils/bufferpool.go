// Package utils provides low-level helpers shared by the container engine.
package utils

import "sync"

// Small scratch buffers (message headers, prefixes) are pooled. Anything
// larger than maxPooled is allocated directly and never returned to the pool.
const maxPooled = 64 * 1024

var bufferPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, 0, 4096)
		return &b
	},
}

// GetBuffer returns a byte slice of the requested length from the pool.
func GetBuffer(size int) []byte {
	if size > maxPooled {
		return make([]byte, size)
	}
	bp := bufferPool.Get().(*[]byte)
	if cap(*bp) < size {
		return make([]byte, size, size*2)
	}
	return (*bp)[:size]
}

// ReleaseBuffer returns a buffer to the pool.
func ReleaseBuffer(buf []byte) {
	if cap(buf) > maxPooled {
		return
	}
	buf = buf[:0]
	bufferPool.Put(&buf)
}
