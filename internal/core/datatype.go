package core

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// DatatypeClass represents HDF5 datatype classes.
type DatatypeClass uint8

// Datatype class constants.
const (
	DatatypeFixed    DatatypeClass = 0
	DatatypeFloat    DatatypeClass = 1
	DatatypeTime     DatatypeClass = 2
	DatatypeString   DatatypeClass = 3
	DatatypeBitfield DatatypeClass = 4
	DatatypeOpaque   DatatypeClass = 5
	DatatypeCompound DatatypeClass = 6
	DatatypeEnum     DatatypeClass = 8
	DatatypeVarLen   DatatypeClass = 9
	DatatypeArray    DatatypeClass = 10
)

// String padding types for fixed-length strings.
const (
	StringNullTerm  uint8 = 0
	StringNullPad   uint8 = 1
	StringSpacePad  uint8 = 2
	CharsetASCII    uint8 = 0
	CharsetUTF8     uint8 = 1
	datatypeVersion       = 1

	// VarLenRefSize is the stored size of one variable-length element:
	// length (4), heap collection address (8), object index (4).
	VarLenRefSize = 16
)

// Datatype is the subset of the HDF5 type system archives use: integers,
// IEEE floats and fixed-length strings. Enums are reported as their
// integer base type with Enum set. Variable-length strings (class 9) are
// read but never written; each element is a 16-byte global heap
// reference (VarLenRefSize).
type Datatype struct {
	Class     DatatypeClass
	Size      uint32
	Signed    bool
	BigEndian bool
	Padding   uint8
	Charset   uint8
	Enum      bool
}

// IntType returns a little-endian integer type of the given byte size.
func IntType(size uint32, signed bool) *Datatype {
	return &Datatype{Class: DatatypeFixed, Size: size, Signed: signed}
}

// FloatType returns a little-endian IEEE float type (4 or 8 bytes).
func FloatType(size uint32) *Datatype {
	return &Datatype{Class: DatatypeFloat, Size: size, Signed: true}
}

// StringType returns a null-padded UTF-8 fixed-length string type.
func StringType(size uint32) *Datatype {
	return &Datatype{Class: DatatypeString, Size: size, Padding: StringNullPad, Charset: CharsetUTF8}
}

// String describes the type for errors and inspection.
func (dt *Datatype) String() string {
	switch dt.Class {
	case DatatypeFixed:
		if dt.Signed {
			return fmt.Sprintf("int%d", dt.Size*8)
		}
		return fmt.Sprintf("uint%d", dt.Size*8)
	case DatatypeFloat:
		return fmt.Sprintf("float%d", dt.Size*8)
	case DatatypeString:
		return fmt.Sprintf("string[%d]", dt.Size)
	case DatatypeVarLen:
		return "vlen string"
	}
	return fmt.Sprintf("class%d", dt.Class)
}

// ParseDatatypeMessage parses a datatype message.
func ParseDatatypeMessage(data []byte) (*Datatype, error) {
	if len(data) < 8 {
		return nil, errors.New("datatype message too short")
	}

	class := DatatypeClass(data[0] & 0x0F)
	bits0 := data[1]
	dt := &Datatype{
		Class: class,
		Size:  binary.LittleEndian.Uint32(data[4:8]),
	}

	switch class {
	case DatatypeFixed:
		dt.BigEndian = bits0&0x01 != 0
		dt.Signed = bits0&0x08 != 0
		if !validNumericSize(dt.Size, 1, 2, 4, 8) {
			return nil, fmt.Errorf("unsupported integer size: %d", dt.Size)
		}
	case DatatypeFloat:
		dt.BigEndian = bits0&0x01 != 0
		dt.Signed = true
		if !validNumericSize(dt.Size, 4, 8) {
			return nil, fmt.Errorf("unsupported float size: %d", dt.Size)
		}
	case DatatypeString:
		dt.Padding = bits0 & 0x0F
		dt.Charset = bits0 >> 4
	case DatatypeEnum:
		base, err := ParseDatatypeMessage(data[8:])
		if err != nil {
			return nil, fmt.Errorf("enum base type: %w", err)
		}
		if base.Class != DatatypeFixed {
			return nil, fmt.Errorf("unsupported enum base class: %d", base.Class)
		}
		base.Enum = true
		return base, nil
	case DatatypeVarLen:
		// Bits 0-3: 0 sequence, 1 string. Bits 4-7: padding.
		// Bits 8-11: character set.
		if bits0&0x0F != 1 {
			return nil, errors.New("variable-length sequences are not supported")
		}
		dt.Padding = bits0 >> 4
		dt.Charset = data[2] & 0x0F
		if dt.Size != VarLenRefSize {
			return nil, fmt.Errorf("unsupported variable-length element size: %d", dt.Size)
		}
	default:
		return nil, fmt.Errorf("unsupported datatype class: %d", class)
	}

	return dt, nil
}

func validNumericSize(size uint32, allowed ...uint32) bool {
	for _, a := range allowed {
		if size == a {
			return true
		}
	}
	return false
}

// Encode encodes the datatype as a version 1 datatype message.
func (dt *Datatype) Encode() ([]byte, error) {
	header := func(props int) []byte {
		buf := make([]byte, 8+props)
		buf[0] = byte(dt.Class) | datatypeVersion<<4
		binary.LittleEndian.PutUint32(buf[4:8], dt.Size)
		return buf
	}

	switch dt.Class {
	case DatatypeFixed:
		// Properties: bit offset (2), bit precision (2).
		buf := header(4)
		if dt.Signed {
			buf[1] |= 0x08
		}
		binary.LittleEndian.PutUint16(buf[10:12], uint16(dt.Size*8)) //nolint:gosec // G115: size <= 8
		return buf, nil

	case DatatypeFloat:
		// Properties: bit offset (2), precision (2), exponent location (1),
		// exponent size (1), mantissa location (1), mantissa size (1),
		// exponent bias (4). Mantissa normalization "implied" (bits 4-5 = 2).
		buf := header(12)
		buf[1] = 0x20
		switch dt.Size {
		case 4:
			buf[2] = 31
			binary.LittleEndian.PutUint16(buf[10:12], 32)
			buf[12], buf[13], buf[14], buf[15] = 23, 8, 0, 23
			binary.LittleEndian.PutUint32(buf[16:20], 127)
		case 8:
			buf[2] = 63
			binary.LittleEndian.PutUint16(buf[10:12], 64)
			buf[12], buf[13], buf[14], buf[15] = 52, 11, 0, 52
			binary.LittleEndian.PutUint32(buf[16:20], 1023)
		default:
			return nil, fmt.Errorf("unsupported float size: %d", dt.Size)
		}
		return buf, nil

	case DatatypeString:
		if dt.Size == 0 {
			return nil, errors.New("string datatype size must be positive")
		}
		buf := header(0)
		buf[1] = dt.Padding&0x0F | dt.Charset<<4
		return buf, nil
	}

	return nil, fmt.Errorf("cannot encode datatype class %d", dt.Class)
}
