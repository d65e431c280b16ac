package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/scigolib/hnf/internal/utils"
)

// globalHeapHeaderSize covers signature, version, reserved bytes and the
// 8-byte collection size.
const globalHeapHeaderSize = 16

// GlobalHeapCollection holds the objects of one global heap collection,
// keyed by object index. Variable-length strings live here.
//
//	Signature "GCOL" (4), version 1 (1), reserved (3)
//	Collection size (8), including this header
//	Objects: index (2), reference count (2), reserved (4), size (8),
//	         data padded to 8 bytes. Index 0 is the trailing free space.
type GlobalHeapCollection struct {
	Address uint64
	Objects map[uint16][]byte
}

// ReadGlobalHeapCollection reads the collection at address.
func ReadGlobalHeapCollection(r io.ReaderAt, address uint64) (*GlobalHeapCollection, error) {
	header, err := utils.ReadFull(r, address, globalHeapHeaderSize)
	if err != nil {
		return nil, utils.WrapError("global heap header read failed", err)
	}
	if string(header[0:4]) != "GCOL" {
		return nil, fmt.Errorf("invalid global heap signature at 0x%x", address)
	}
	if header[4] != 1 {
		return nil, fmt.Errorf("unsupported global heap version: %d", header[4])
	}

	size := binary.LittleEndian.Uint64(header[8:16])
	if size < globalHeapHeaderSize || size > 1<<30 {
		return nil, fmt.Errorf("invalid global heap collection size: %d", size)
	}
	data, err := utils.ReadFull(r, address, int(size))
	if err != nil {
		return nil, utils.WrapError("global heap collection read failed", err)
	}

	gc := &GlobalHeapCollection{Address: address, Objects: make(map[uint16][]byte)}
	pos := globalHeapHeaderSize
	for pos+16 <= len(data) {
		index := binary.LittleEndian.Uint16(data[pos : pos+2])
		objSize := binary.LittleEndian.Uint64(data[pos+8 : pos+16])
		if index == 0 {
			break
		}
		start := pos + 16
		if objSize > uint64(len(data)-start) {
			return nil, fmt.Errorf("global heap object %d overruns collection", index)
		}
		end := start + int(objSize)
		gc.Objects[index] = data[start:end]
		pos = align8(end)
	}
	return gc, nil
}

// VarLenRef is one decoded variable-length element.
type VarLenRef struct {
	Length uint32
	Heap   uint64
	Index  uint32
}

// ParseVarLenRef decodes a VarLenRefSize-byte element.
func ParseVarLenRef(b []byte) VarLenRef {
	return VarLenRef{
		Length: binary.LittleEndian.Uint32(b[0:4]),
		Heap:   binary.LittleEndian.Uint64(b[4:12]),
		Index:  binary.LittleEndian.Uint32(b[12:16]),
	}
}

// Object returns the bytes of object index, truncated to length.
func (gc *GlobalHeapCollection) Object(index uint32, length uint32) ([]byte, error) {
	if index > 0xFFFF {
		return nil, fmt.Errorf("global heap object index %d out of range", index)
	}
	obj, ok := gc.Objects[uint16(index)]
	if !ok {
		return nil, fmt.Errorf("global heap object %d not found in collection 0x%x", index, gc.Address)
	}
	if uint64(length) > uint64(len(obj)) {
		return nil, errors.New("variable-length element longer than its heap object")
	}
	return obj[:length], nil
}
