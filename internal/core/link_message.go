package core

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/scigolib/hnf/internal/utils"
)

// LinkType identifies the kind of link stored in a link message.
type LinkType uint8

// Link type constants.
const (
	LinkHard     LinkType = 0
	LinkSoft     LinkType = 1
	LinkExternal LinkType = 64
)

// LinkMessage is a decoded link message (0x0006).
type LinkMessage struct {
	Name       string
	Type       LinkType
	Address    uint64 // hard links
	SoftTarget string // soft links
}

// ParseLinkMessage parses a version 1 link message.
func ParseLinkMessage(data []byte) (*LinkMessage, error) {
	if len(data) < 2 {
		return nil, errors.New("link message too short")
	}
	if data[0] != 1 {
		return nil, fmt.Errorf("unsupported link message version: %d", data[0])
	}

	flags := data[1]
	pos := 2
	lm := &LinkMessage{Type: LinkHard}

	need := func(n int) error {
		if pos+n > len(data) {
			return errors.New("link message truncated")
		}
		return nil
	}

	if flags&0x08 != 0 {
		if err := need(1); err != nil {
			return nil, err
		}
		lm.Type = LinkType(data[pos])
		pos++
	}
	if flags&0x04 != 0 {
		pos += 8 // creation order
	}
	if flags&0x10 != 0 {
		pos++ // character set
	}

	lenSize := 1 << (flags & 0x03)
	if err := need(lenSize); err != nil {
		return nil, err
	}
	nameLen := int(utils.DecodeUint(data[pos:], lenSize)) //nolint:gosec // G115: bounded by message size
	pos += lenSize
	if err := need(nameLen); err != nil {
		return nil, err
	}
	lm.Name = string(data[pos : pos+nameLen])
	pos += nameLen

	switch lm.Type {
	case LinkHard:
		if err := need(8); err != nil {
			return nil, err
		}
		lm.Address = binary.LittleEndian.Uint64(data[pos:])
	case LinkSoft:
		if err := need(2); err != nil {
			return nil, err
		}
		n := int(binary.LittleEndian.Uint16(data[pos:]))
		pos += 2
		if err := need(n); err != nil {
			return nil, err
		}
		lm.SoftTarget = string(data[pos : pos+n])
	}

	return lm, nil
}

// EncodeHardLink encodes a version 1 hard link message with a UTF-8 name.
//
//	Version (1) = 1
//	Flags (1): bits 0-1 name length width, bit 4 charset present
//	Charset (1) = 1 (UTF-8)
//	Name length (1, 2 or 4 bytes), Name
//	Object header address (8)
func EncodeHardLink(name string, address uint64) []byte {
	var code byte
	var lenSize int
	switch n := len(name); {
	case n <= 0xFF:
		code, lenSize = 0, 1
	case n <= 0xFFFF:
		code, lenSize = 1, 2
	default:
		code, lenSize = 2, 4
	}

	buf := make([]byte, 0, 3+lenSize+len(name)+8)
	buf = append(buf, 1, code|0x10, CharsetUTF8)
	switch lenSize {
	case 1:
		buf = append(buf, byte(len(name)))
	case 2:
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(name))) //nolint:gosec // G115: checked above
	default:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(name))) //nolint:gosec // G115: checked above
	}
	buf = append(buf, name...)
	return binary.LittleEndian.AppendUint64(buf, address)
}

// LinkInfo is a decoded link info message (0x0002).
type LinkInfo struct {
	HeapAddress      uint64
	NameIndexAddress uint64
}

// Dense reports whether links live in a fractal heap instead of the header.
func (li *LinkInfo) Dense() bool {
	return li.HeapAddress != UndefinedAddress
}

// ParseLinkInfoMessage parses a link info message.
func ParseLinkInfoMessage(data []byte) (*LinkInfo, error) {
	if len(data) < 2 || data[0] != 0 {
		return nil, errors.New("invalid link info message")
	}
	pos := 2
	if data[1]&0x01 != 0 {
		pos += 8 // maximum creation index
	}
	if len(data) < pos+16 {
		return nil, errors.New("link info message truncated")
	}
	return &LinkInfo{
		HeapAddress:      binary.LittleEndian.Uint64(data[pos:]),
		NameIndexAddress: binary.LittleEndian.Uint64(data[pos+8:]),
	}, nil
}

// EncodeLinkInfoMessage encodes a link info message for compact storage:
// version 0, no creation order, UNDEF heap and name index addresses.
func EncodeLinkInfoMessage() []byte {
	buf := make([]byte, 18)
	binary.LittleEndian.PutUint64(buf[2:10], UndefinedAddress)
	binary.LittleEndian.PutUint64(buf[10:18], UndefinedAddress)
	return buf
}

// EncodeGroupInfoMessage encodes a group info message with default
// phase change values and no estimated entry info.
func EncodeGroupInfoMessage() []byte {
	return []byte{0, 0}
}
