package core

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/scigolib/hnf/internal/utils"
)

// ObjectHeaderWriter assembles a version 2 object header.
type ObjectHeaderWriter struct {
	Messages []MessageWriter
}

// MessageWriter represents a message that can be written to an object header.
type MessageWriter struct {
	Type  MessageType
	Flags uint8
	Data  []byte
}

// MaxMessageSize is the largest message body a header can hold; the size
// field is two bytes wide.
const MaxMessageSize = math.MaxUint16

// Flags used for every header written: chunk #0 size stored in 4 bytes,
// no times, no attribute creation order, default phase change values.
const headerFlags = 0x02

// Add appends a message.
func (ohw *ObjectHeaderWriter) Add(t MessageType, data []byte) {
	ohw.Messages = append(ohw.Messages, MessageWriter{Type: t, Data: data})
}

// Size returns the encoded size of the header in bytes.
//
//	Signature (4) + Version (1) + Flags (1) + Chunk #0 Size (4)
//	+ per message: Type (1) + Size (2) + Flags (1) + Data
//	+ Checksum (4)
func (ohw *ObjectHeaderWriter) Size() uint64 {
	return 10 + ohw.chunkSize() + 4
}

func (ohw *ObjectHeaderWriter) chunkSize() uint64 {
	var n uint64
	for _, msg := range ohw.Messages {
		n += 4 + uint64(len(msg.Data))
	}
	return n
}

// Encode serializes the header including its trailing checksum.
func (ohw *ObjectHeaderWriter) Encode() ([]byte, error) {
	chunk := ohw.chunkSize()
	if chunk > math.MaxUint32 {
		return nil, fmt.Errorf("object header chunk too large: %d bytes", chunk)
	}

	buf := make([]byte, ohw.Size())
	copy(buf[0:4], ohdrSignature)
	buf[4] = 2
	buf[5] = headerFlags
	binary.LittleEndian.PutUint32(buf[6:10], uint32(chunk))

	offset := 10
	for _, msg := range ohw.Messages {
		if len(msg.Data) > MaxMessageSize {
			return nil, fmt.Errorf("message type 0x%02x too large for compact storage: %d bytes", msg.Type, len(msg.Data))
		}
		buf[offset] = uint8(msg.Type) //nolint:gosec // G115: message types fit in a byte
		binary.LittleEndian.PutUint16(buf[offset+1:offset+3], uint16(len(msg.Data)))
		buf[offset+3] = msg.Flags
		copy(buf[offset+4:], msg.Data)
		offset += 4 + len(msg.Data)
	}

	binary.LittleEndian.PutUint32(buf[offset:], utils.Lookup3(buf[:offset], 0))
	return buf, nil
}

// WriteTo writes the header at address and returns the number of bytes written.
func (ohw *ObjectHeaderWriter) WriteTo(w io.WriterAt, address uint64) (uint64, error) {
	buf, err := ohw.Encode()
	if err != nil {
		return 0, err
	}
	n, err := w.WriteAt(buf, int64(address)) //nolint:gosec // G115: address within file bounds
	if err != nil {
		return 0, fmt.Errorf("failed to write object header at address %d: %w", address, err)
	}
	if n != len(buf) {
		return 0, fmt.Errorf("incomplete object header write: wrote %d bytes, expected %d", n, len(buf))
	}
	return uint64(n), nil
}
