package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/scigolib/hnf/internal/utils"
)

// AttributeMessage is a decoded compact attribute (0x000C).
type AttributeMessage struct {
	Name      string
	Datatype  *Datatype
	Dataspace *Dataspace
	Data      []byte
}

// ParseAttributeMessage parses attribute message versions 1 to 3.
func ParseAttributeMessage(data []byte) (*AttributeMessage, error) {
	if len(data) < 8 {
		return nil, errors.New("attribute message too short")
	}

	version := data[0]
	if version < 1 || version > 3 {
		return nil, fmt.Errorf("unsupported attribute message version: %d", version)
	}
	if version >= 2 && data[1]&0x03 != 0 {
		return nil, errors.New("shared attribute datatypes are not supported")
	}

	nameSize := int(binary.LittleEndian.Uint16(data[2:4]))
	dtSize := int(binary.LittleEndian.Uint16(data[4:6]))
	dsSize := int(binary.LittleEndian.Uint16(data[6:8]))

	pos := 8
	if version == 3 {
		pos++ // name character set encoding
	}

	// Version 1 pads name, datatype and dataspace to 8-byte boundaries.
	pad := func(n int) int {
		if version == 1 {
			return (n + 7) &^ 7
		}
		return n
	}

	if len(data) < pos+pad(nameSize)+pad(dtSize)+pad(dsSize) {
		return nil, errors.New("attribute message truncated")
	}

	am := &AttributeMessage{Name: trimNull(data[pos : pos+nameSize])}
	pos += pad(nameSize)

	dt, err := ParseDatatypeMessage(data[pos : pos+dtSize])
	if err != nil {
		return nil, utils.WrapErrorf(err, "attribute %q datatype", am.Name)
	}
	am.Datatype = dt
	pos += pad(dtSize)

	ds, err := ParseDataspaceMessage(data[pos : pos+dsSize])
	if err != nil {
		return nil, utils.WrapErrorf(err, "attribute %q dataspace", am.Name)
	}
	am.Dataspace = ds
	pos += pad(dsSize)

	size, err := utils.StorageSize(ds.Dims, uint64(dt.Size))
	if err != nil {
		return nil, utils.WrapErrorf(err, "attribute %q", am.Name)
	}
	if ds.Type == DataspaceNull {
		size = 0
	}
	if uint64(len(data)-pos) < size {
		return nil, fmt.Errorf("attribute %q data truncated: need %d bytes, have %d", am.Name, size, len(data)-pos)
	}
	am.Data = append([]byte(nil), data[pos:pos+int(size)]...) //nolint:gosec // G115: bounded by message size

	return am, nil
}

// Encode encodes the attribute as a version 3 message with a UTF-8 name.
func (am *AttributeMessage) Encode() ([]byte, error) {
	dt, err := am.Datatype.Encode()
	if err != nil {
		return nil, utils.WrapErrorf(err, "attribute %q datatype", am.Name)
	}
	var ds []byte
	if am.Dataspace == nil || am.Dataspace.Type == DataspaceScalar {
		ds = EncodeDataspaceMessage(nil)
	} else {
		ds = EncodeDataspaceMessage(am.Dataspace.Dims)
	}

	nameSize := len(am.Name) + 1
	if nameSize > math.MaxUint16 {
		return nil, fmt.Errorf("attribute name too long: %d bytes", len(am.Name))
	}

	buf := make([]byte, 0, 9+nameSize+len(dt)+len(ds)+len(am.Data))
	buf = append(buf, 3, 0)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(nameSize))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(dt))) //nolint:gosec // G115: small encodings
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(ds))) //nolint:gosec // G115: small encodings
	buf = append(buf, CharsetUTF8)
	buf = append(buf, am.Name...)
	buf = append(buf, 0)
	buf = append(buf, dt...)
	buf = append(buf, ds...)
	buf = append(buf, am.Data...)

	return buf, nil
}

// AttributeInfo is the subset of the attribute info message (0x000F)
// needed to detect dense attribute storage.
type AttributeInfo struct {
	HeapAddress uint64
}

// ParseAttributeInfoMessage parses an attribute info message.
func ParseAttributeInfoMessage(data []byte) (*AttributeInfo, error) {
	if len(data) < 2 || data[0] != 0 {
		return nil, errors.New("invalid attribute info message")
	}
	pos := 2
	if data[1]&0x01 != 0 {
		pos += 2 // maximum creation index
	}
	if len(data) < pos+8 {
		return nil, errors.New("attribute info message truncated")
	}
	return &AttributeInfo{HeapAddress: binary.LittleEndian.Uint64(data[pos:])}, nil
}
