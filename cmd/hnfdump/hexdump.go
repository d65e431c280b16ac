package main

import (
	"fmt"
	"io"
	"os"
)

// runHexdump prints length bytes of path starting at offset.
func runHexdump(w, errw io.Writer, path string, offset int64, length int) error {
	f, err := os.Open(path) //nolint:gosec // G304: user-chosen file
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	size := info.Size()

	if offset < 0 || offset >= size {
		return fmt.Errorf("invalid offset %d (file size %d)", offset, size)
	}
	if length < 1 {
		return fmt.Errorf("invalid length %d", length)
	}
	n := int64(length)
	if remaining := size - offset; n > remaining {
		fmt.Fprintf(errw, "requested length %d exceeds available bytes (%d), dumping %d bytes\n", length, remaining, remaining)
		n = remaining
	}

	buf := make([]byte, n)
	read, err := f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return fmt.Errorf("read at %d: %w", offset, err)
	}

	fmt.Fprintf(w, "Dumping %d bytes at offset 0x%x (%d) of %s (size: %d bytes):\n", read, offset, offset, path, size)
	hexdump(w, buf[:read], offset)
	return nil
}

// hexdump writes 16 bytes per line: address, hex bytes in two groups of
// eight and the printable ASCII column.
func hexdump(w io.Writer, data []byte, base int64) {
	for i := 0; i < len(data); i += 16 {
		chunk := data[i:min(i+16, len(data))]

		fmt.Fprintf(w, "%08x: ", base+int64(i))
		for j := 0; j < 16; j++ {
			if j < len(chunk) {
				fmt.Fprintf(w, "%02x ", chunk[j])
			} else {
				fmt.Fprint(w, "   ")
			}
			if j == 7 {
				fmt.Fprint(w, " ")
			}
		}
		fmt.Fprint(w, " |")
		for _, b := range chunk {
			if b >= 32 && b <= 126 {
				fmt.Fprintf(w, "%c", b)
			} else {
				fmt.Fprint(w, ".")
			}
		}
		fmt.Fprintln(w, "|")
	}
}
