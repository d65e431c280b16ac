package utils

import (
	"fmt"
	"math"
)

// CheckMultiplyOverflow checks if multiplying two uint64 values would overflow.
func CheckMultiplyOverflow(a, b uint64) error {
	if a == 0 || b == 0 {
		return nil
	}
	if a > math.MaxUint64/b {
		return fmt.Errorf("multiplication overflow: %d * %d exceeds uint64 max", a, b)
	}
	return nil
}

// SafeMultiply multiplies two uint64 values and returns the result if no overflow occurs.
func SafeMultiply(a, b uint64) (uint64, error) {
	if err := CheckMultiplyOverflow(a, b); err != nil {
		return 0, err
	}
	return a * b, nil
}

// StorageSize returns product(dims) * elementSize, failing on overflow.
// A rank-0 shape counts as one element.
func StorageSize(dims []uint64, elementSize uint64) (uint64, error) {
	if elementSize == 0 {
		return 0, fmt.Errorf("element size cannot be zero")
	}
	size := elementSize
	for i, d := range dims {
		next, err := SafeMultiply(size, d)
		if err != nil {
			return 0, fmt.Errorf("storage size overflow at dimension %d: %w", i, err)
		}
		size = next
	}
	return size, nil
}
