package core

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// FilterInfo describes one filter of a filter pipeline message.
type FilterInfo struct {
	ID         uint16
	Name       string
	Flags      uint16
	ClientData []uint32
}

// Optional reports whether the filter may be skipped when it fails on write.
func (fi FilterInfo) Optional() bool {
	return fi.Flags&0x0001 != 0
}

// FilterPipelineMessage represents an HDF5 filter pipeline message (0x000B).
type FilterPipelineMessage struct {
	Version uint8
	Filters []FilterInfo
}

// ParseFilterPipelineMessage parses a version 1 or 2 filter pipeline message.
func ParseFilterPipelineMessage(data []byte) (*FilterPipelineMessage, error) {
	if len(data) < 2 {
		return nil, errors.New("filter pipeline message too short")
	}

	msg := &FilterPipelineMessage{Version: data[0]}
	count := int(data[1])

	var pos int
	switch msg.Version {
	case 1:
		pos = 8 // Version, count, 6 reserved bytes.
	case 2:
		pos = 2
	default:
		return nil, fmt.Errorf("unsupported filter pipeline version: %d", msg.Version)
	}

	need := func(n int) error {
		if pos+n > len(data) {
			return fmt.Errorf("filter pipeline message truncated at offset %d", pos)
		}
		return nil
	}

	for i := 0; i < count; i++ {
		if err := need(2); err != nil {
			return nil, err
		}
		fi := FilterInfo{ID: binary.LittleEndian.Uint16(data[pos:])}
		pos += 2

		// Version 2 omits the name length for predefined filters (id < 256).
		nameLen := 0
		if msg.Version == 1 || fi.ID >= 256 {
			if err := need(2); err != nil {
				return nil, err
			}
			nameLen = int(binary.LittleEndian.Uint16(data[pos:]))
			pos += 2
		}

		if err := need(4); err != nil {
			return nil, err
		}
		fi.Flags = binary.LittleEndian.Uint16(data[pos:])
		numValues := int(binary.LittleEndian.Uint16(data[pos+2:]))
		pos += 4

		if nameLen > 0 {
			padded := nameLen
			if msg.Version == 1 {
				padded = (nameLen + 7) &^ 7
			}
			if err := need(padded); err != nil {
				return nil, err
			}
			fi.Name = trimNull(data[pos : pos+nameLen])
			pos += padded
		}

		if err := need(numValues * 4); err != nil {
			return nil, err
		}
		fi.ClientData = make([]uint32, numValues)
		for j := range fi.ClientData {
			fi.ClientData[j] = binary.LittleEndian.Uint32(data[pos:])
			pos += 4
		}
		if msg.Version == 1 && numValues%2 == 1 {
			pos += 4
		}

		msg.Filters = append(msg.Filters, fi)
	}

	return msg, nil
}

// Encode encodes the pipeline as a version 2 message.
//
//	Version (1) = 2, Number of Filters (1)
//	Per filter: ID (2), [Name Length (2) if ID >= 256], Flags (2),
//	Number of Client Data Values (2), [Name if ID >= 256], Client Data (4 each)
func (m *FilterPipelineMessage) Encode() []byte {
	buf := []byte{2, uint8(len(m.Filters))} //nolint:gosec // G115: pipelines hold a handful of filters
	for _, fi := range m.Filters {
		buf = binary.LittleEndian.AppendUint16(buf, fi.ID)
		var name []byte
		if fi.ID >= 256 && fi.Name != "" {
			name = append([]byte(fi.Name), 0)
		}
		if fi.ID >= 256 {
			buf = binary.LittleEndian.AppendUint16(buf, uint16(len(name))) //nolint:gosec // G115: short names
		}
		buf = binary.LittleEndian.AppendUint16(buf, fi.Flags)
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(fi.ClientData))) //nolint:gosec // G115: few values
		buf = append(buf, name...)
		for _, v := range fi.ClientData {
			buf = binary.LittleEndian.AppendUint32(buf, v)
		}
	}
	return buf
}

func trimNull(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
