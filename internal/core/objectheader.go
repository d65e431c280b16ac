package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/scigolib/hnf/internal/utils"
)

// ObjectType identifies the type of HDF5 object (group, dataset).
type ObjectType uint8

// Object type constants identify different HDF5 object types.
const (
	ObjectTypeUnknown ObjectType = iota
	ObjectTypeGroup
	ObjectTypeDataset
)

// MessageType identifies the type of message in an object header.
type MessageType uint16

// Message type constants identify different types of header messages.
const (
	MsgNil            MessageType = 0x00
	MsgDataspace      MessageType = 0x01
	MsgLinkInfo       MessageType = 0x02
	MsgDatatype       MessageType = 0x03
	MsgFillValueOld   MessageType = 0x04
	MsgFillValue      MessageType = 0x05
	MsgLinkMessage    MessageType = 0x06
	MsgDataLayout     MessageType = 0x08
	MsgGroupInfo      MessageType = 0x0A
	MsgFilterPipeline MessageType = 0x0B
	MsgAttribute      MessageType = 0x0C
	MsgAttributeInfo  MessageType = 0x0F
	MsgContinuation   MessageType = 0x10
	MsgSymbolTable    MessageType = 0x11
)

const (
	ohdrSignature = "OHDR"
	ochkSignature = "OCHK"

	// maxContinuations bounds the continuation chain of one header so a
	// corrupt file cannot loop forever.
	maxContinuations = 1024
)

// HeaderMessage represents a single message within an object header.
type HeaderMessage struct {
	Type  MessageType
	Flags uint8
	Data  []byte
}

// ObjectHeader represents a parsed version 1 or 2 object header.
type ObjectHeader struct {
	Address  uint64
	Version  uint8
	Flags    uint8
	Messages []*HeaderMessage
}

// Type reports whether the header describes a group or a dataset.
func (oh *ObjectHeader) Type() ObjectType {
	for _, msg := range oh.Messages {
		switch msg.Type {
		case MsgLinkInfo, MsgLinkMessage, MsgGroupInfo, MsgSymbolTable:
			return ObjectTypeGroup
		case MsgDataLayout, MsgDataspace:
			return ObjectTypeDataset
		}
	}
	return ObjectTypeUnknown
}

// Find returns the first message of type t, or nil.
func (oh *ObjectHeader) Find(t MessageType) *HeaderMessage {
	for _, msg := range oh.Messages {
		if msg.Type == t {
			return msg
		}
	}
	return nil
}

// FindAll returns every message of type t in header order.
func (oh *ObjectHeader) FindAll(t MessageType) []*HeaderMessage {
	var out []*HeaderMessage
	for _, msg := range oh.Messages {
		if msg.Type == t {
			out = append(out, msg)
		}
	}
	return out
}

// ReadObjectHeader reads and parses the object header at address,
// following continuation blocks. Version 2 headers have every checksum
// verified; version 1 headers carry none.
func ReadObjectHeader(r io.ReaderAt, address uint64) (*ObjectHeader, error) {
	prefix, err := utils.ReadFull(r, address, 6)
	if err != nil {
		return nil, utils.WrapError("object header read failed", err)
	}

	if string(prefix[0:4]) != ohdrSignature {
		if prefix[0] == 1 {
			return readObjectHeaderV1(r, address)
		}
		return nil, fmt.Errorf("invalid object header signature: % x", prefix[0:4])
	}

	header := &ObjectHeader{
		Address: address,
		Version: prefix[4],
		Flags:   prefix[5],
	}
	if header.Version != 2 {
		return nil, fmt.Errorf("unsupported object header version: %d", header.Version)
	}

	// Flags bits 0-1: width of the chunk #0 size field.
	// Bit 2: attribute creation order tracked (adds 2 bytes per message).
	// Bit 4: non-default attribute phase change values (4 bytes).
	// Bit 5: access/modification/change/birth times (16 bytes).
	fixed := 6
	if header.Flags&0x20 != 0 {
		fixed += 16
	}
	if header.Flags&0x10 != 0 {
		fixed += 4
	}
	sizeBytes := 1 << (header.Flags & 0x03)

	sizeField, err := utils.ReadFull(r, address+uint64(fixed), sizeBytes) //nolint:gosec // G115: small constant
	if err != nil {
		return nil, utils.WrapError("chunk size read failed", err)
	}
	chunkSize := utils.DecodeUint(sizeField, sizeBytes)

	prefixLen := uint64(fixed + sizeBytes) //nolint:gosec // G115: small constant
	block, err := utils.ReadFull(r, address, int(prefixLen+chunkSize+4))
	if err != nil {
		return nil, utils.WrapError("object header chunk read failed", err)
	}
	if err := verifyChecksum(block); err != nil {
		return nil, fmt.Errorf("object header at 0x%x: %w", address, err)
	}

	withOrder := header.Flags&0x04 != 0
	pending, err := header.parseMessages(block[prefixLen:prefixLen+chunkSize], withOrder)
	if err != nil {
		return nil, err
	}

	for hops := 0; len(pending) > 0; hops++ {
		if hops >= maxContinuations {
			return nil, errors.New("object header continuation chain too long")
		}
		cont := pending[0]
		pending = pending[1:]

		block, err := utils.ReadFull(r, cont.offset, int(cont.length)) //nolint:gosec // G115: bounded by file size
		if err != nil {
			return nil, utils.WrapError("continuation block read failed", err)
		}
		if len(block) < 8 || string(block[0:4]) != ochkSignature {
			return nil, fmt.Errorf("invalid continuation block signature at 0x%x", cont.offset)
		}
		if err := verifyChecksum(block); err != nil {
			return nil, fmt.Errorf("continuation block at 0x%x: %w", cont.offset, err)
		}
		more, err := header.parseMessages(block[4:len(block)-4], withOrder)
		if err != nil {
			return nil, err
		}
		pending = append(pending, more...)
	}

	return header, nil
}

type continuation struct {
	offset uint64
	length uint64
}

// parseMessages appends the messages found in one chunk and returns any
// continuation targets it references.
func (oh *ObjectHeader) parseMessages(chunk []byte, withOrder bool) ([]continuation, error) {
	headerLen := 4
	if withOrder {
		headerLen = 6
	}

	var conts []continuation
	pos := 0
	for pos+headerLen <= len(chunk) {
		msgType := MessageType(chunk[pos])
		size := int(binary.LittleEndian.Uint16(chunk[pos+1 : pos+3]))
		flags := chunk[pos+3]
		start := pos + headerLen
		end := start + size
		if end > len(chunk) {
			return nil, fmt.Errorf("message type 0x%02x overruns header chunk", msgType)
		}

		switch msgType {
		case MsgNil:
		case MsgContinuation:
			if size < 16 {
				return nil, errors.New("continuation message too short")
			}
			conts = append(conts, continuation{
				offset: binary.LittleEndian.Uint64(chunk[start : start+8]),
				length: binary.LittleEndian.Uint64(chunk[start+8 : start+16]),
			})
		default:
			data := make([]byte, size)
			copy(data, chunk[start:end])
			oh.Messages = append(oh.Messages, &HeaderMessage{Type: msgType, Flags: flags, Data: data})
		}
		pos = end
	}

	return conts, nil
}

func verifyChecksum(block []byte) error {
	n := len(block)
	stored := binary.LittleEndian.Uint32(block[n-4:])
	if computed := utils.Lookup3(block[:n-4], 0); computed != stored {
		return fmt.Errorf("checksum mismatch: stored 0x%08x, computed 0x%08x", stored, computed)
	}
	return nil
}
