package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/scigolib/hnf/internal/utils"
)

// objectHeaderV1PrefixSize covers version, reserved byte, message count,
// reference count, header size and the padding up to the first message.
const objectHeaderV1PrefixSize = 16

// readObjectHeaderV1 parses a version 1 object header.
//
//	Byte 0:      Version (1)
//	Byte 1:      Reserved
//	Bytes 2-3:   Total number of header messages
//	Bytes 4-7:   Object reference count
//	Bytes 8-11:  Size of the first chunk's message data
//	Bytes 12-15: Padding
//
// Every message is an 8-byte header (type u16, size u16, flags, 3
// reserved bytes) followed by its data, aligned to 8 bytes. Continuation
// blocks hold bare messages with no signature or checksum.
func readObjectHeaderV1(r io.ReaderAt, address uint64) (*ObjectHeader, error) {
	prefix, err := utils.ReadFull(r, address, objectHeaderV1PrefixSize)
	if err != nil {
		return nil, utils.WrapError("object header read failed", err)
	}

	header := &ObjectHeader{Address: address, Version: 1}
	total := int(binary.LittleEndian.Uint16(prefix[2:4]))
	size := binary.LittleEndian.Uint32(prefix[8:12])

	chunk, err := utils.ReadFull(r, address+objectHeaderV1PrefixSize, int(size))
	if err != nil {
		return nil, utils.WrapError("object header chunk read failed", err)
	}
	seen, pending, err := header.parseMessagesV1(chunk, total)
	if err != nil {
		return nil, err
	}

	for hops := 0; len(pending) > 0 && seen < total; hops++ {
		if hops >= maxContinuations {
			return nil, errors.New("object header continuation chain too long")
		}
		cont := pending[0]
		pending = pending[1:]

		block, err := utils.ReadFull(r, cont.offset, int(cont.length)) //nolint:gosec // G115: bounded by file size
		if err != nil {
			return nil, utils.WrapError("continuation block read failed", err)
		}
		n, more, err := header.parseMessagesV1(block, total-seen)
		if err != nil {
			return nil, err
		}
		seen += n
		pending = append(pending, more...)
	}

	return header, nil
}

// parseMessagesV1 decodes at most limit messages from one chunk and
// returns how many it consumed, including nil and continuation messages.
func (oh *ObjectHeader) parseMessagesV1(chunk []byte, limit int) (int, []continuation, error) {
	var conts []continuation
	count := 0
	pos := 0
	for count < limit && pos+8 <= len(chunk) {
		msgType := MessageType(binary.LittleEndian.Uint16(chunk[pos : pos+2]))
		size := int(binary.LittleEndian.Uint16(chunk[pos+2 : pos+4]))
		flags := chunk[pos+4]
		start := pos + 8
		end := start + size
		if end > len(chunk) {
			return 0, nil, fmt.Errorf("message type 0x%02x overruns header chunk", msgType)
		}

		switch msgType {
		case MsgNil:
		case MsgContinuation:
			if size < 16 {
				return 0, nil, errors.New("continuation message too short")
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
		count++
		pos = align8(end)
	}
	return count, conts, nil
}

func align8(n int) int {
	return (n + 7) &^ 7
}
