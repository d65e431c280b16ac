package core

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// DataspaceType represents the type of dataspace.
type DataspaceType uint8

// Dataspace type constants.
const (
	DataspaceScalar DataspaceType = 0
	DataspaceSimple DataspaceType = 1
	DataspaceNull   DataspaceType = 2
)

// Dataspace describes the shape of a dataset or attribute.
type Dataspace struct {
	Type DataspaceType
	Dims []uint64
}

// TotalElements returns the number of elements (1 for scalar, 0 for null).
func (ds *Dataspace) TotalElements() uint64 {
	switch ds.Type {
	case DataspaceNull:
		return 0
	case DataspaceScalar:
		return 1
	}
	total := uint64(1)
	for _, d := range ds.Dims {
		total *= d
	}
	return total
}

// ParseDataspaceMessage parses a version 1 or 2 dataspace message.
func ParseDataspaceMessage(data []byte) (*Dataspace, error) {
	if len(data) < 4 {
		return nil, errors.New("dataspace message too short")
	}

	version := data[0]
	rank := int(data[1])
	flags := data[2]

	ds := &Dataspace{Type: DataspaceSimple}
	var offset int

	switch version {
	case 1:
		// Version, Rank, Flags, Reserved (1), Reserved (4).
		offset = 8
		if rank == 0 {
			ds.Type = DataspaceScalar
		}
	case 2:
		ds.Type = DataspaceType(data[3])
		offset = 4
	default:
		return nil, fmt.Errorf("unsupported dataspace version: %d", version)
	}

	if len(data) < offset+rank*8 {
		return nil, fmt.Errorf("dataspace message truncated: rank %d needs %d bytes, have %d", rank, offset+rank*8, len(data))
	}

	ds.Dims = make([]uint64, rank)
	for i := 0; i < rank; i++ {
		ds.Dims[i] = binary.LittleEndian.Uint64(data[offset:])
		offset += 8
	}

	// Max dims (flags bit 0) and permutation (bit 1, v1 only) follow; they
	// do not affect reading.
	_ = flags

	if ds.Type == DataspaceSimple && rank == 0 {
		ds.Type = DataspaceScalar
	}

	return ds, nil
}

// EncodeDataspaceMessage encodes a version 2 dataspace message. A nil dims
// slice encodes a scalar dataspace.
//
//	Version (1) = 2
//	Dimensionality (1)
//	Flags (1) = 0, no max dims
//	Type (1)
//	Dimension sizes (8 bytes each)
func EncodeDataspaceMessage(dims []uint64) []byte {
	buf := make([]byte, 4+8*len(dims))
	buf[0] = 2
	buf[1] = uint8(len(dims)) //nolint:gosec // G115: rank bounded by callers (<= 2)
	if dims == nil {
		buf[3] = uint8(DataspaceScalar)
	} else {
		buf[3] = uint8(DataspaceSimple)
	}
	for i, d := range dims {
		binary.LittleEndian.PutUint64(buf[4+8*i:], d)
	}
	return buf
}
