package core

import (
	"encoding/binary"
	"fmt"
)

// SymbolTableEntrySize is the encoded size of a symbol table entry with
// 8-byte offsets: name offset, object header address, cache type,
// reserved word and a 16-byte scratch pad.
const SymbolTableEntrySize = 40

// SymbolTableEntry links a name in a local heap to an object header.
// Entries appear in version 0/1 superblocks and in symbol table nodes.
type SymbolTableEntry struct {
	LinkNameOffset uint64
	ObjectAddress  uint64
	CacheType      uint32

	// Scratch pad for cache type 1 (the object is a group).
	BTreeAddress uint64
	HeapAddress  uint64
}

// ParseSymbolTableEntry decodes one entry. The caller guarantees that b
// holds at least SymbolTableEntrySize bytes.
func ParseSymbolTableEntry(b []byte) SymbolTableEntry {
	return SymbolTableEntry{
		LinkNameOffset: binary.LittleEndian.Uint64(b[0:8]),
		ObjectAddress:  binary.LittleEndian.Uint64(b[8:16]),
		CacheType:      binary.LittleEndian.Uint32(b[16:20]),
		BTreeAddress:   binary.LittleEndian.Uint64(b[24:32]),
		HeapAddress:    binary.LittleEndian.Uint64(b[32:40]),
	}
}

// SymbolTableMessage locates the B-tree and local heap of an old-style
// group (header message 0x11).
type SymbolTableMessage struct {
	BTreeAddress uint64
	HeapAddress  uint64
}

// ParseSymbolTableMessage decodes a symbol table message.
func ParseSymbolTableMessage(data []byte) (*SymbolTableMessage, error) {
	if len(data) < 16 {
		return nil, fmt.Errorf("symbol table message too short: %d bytes", len(data))
	}
	return &SymbolTableMessage{
		BTreeAddress: binary.LittleEndian.Uint64(data[0:8]),
		HeapAddress:  binary.LittleEndian.Uint64(data[8:16]),
	}, nil
}
