// Package core encodes and decodes the on-disk HDF5 structures used by
// neuron archives: superblock, object headers and header messages.
package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/scigolib/hnf/internal/utils"
)

// HDF5 file signature and supported superblock versions.
const (
	Signature = "\x89HDF\r\n\x1a\n"
	Version0  = 0
	Version1  = 1
	Version2  = 2
	Version3  = 3

	// SuperblockV2Size is the encoded size of a version 2/3 superblock
	// with 8-byte offsets and lengths.
	SuperblockV2Size = 48

	// UndefinedAddress marks an absent address ("UNDEF" in the format).
	UndefinedAddress uint64 = 0xFFFFFFFFFFFFFFFF
)

// Superblock represents the file-level metadata at offset 0.
type Superblock struct {
	Version        uint8
	OffsetSize     uint8
	LengthSize     uint8
	BaseAddress    uint64
	SuperExtension uint64
	EOFAddress     uint64
	RootGroup      uint64

	// Set for version 0/1 superblocks only: the cached symbol table of
	// the root group from its symbol table entry.
	RootBTree uint64
	RootHeap  uint64
}

// ReadSuperblock reads and validates the superblock at offset 0.
//
// Version 2 and 3 superblocks are what this library and HDF5 1.8+ (libver
// "latest") produce; their lookup3 checksum is verified. Version 0 and 1
// superblocks come from older writers (h5py's default libver). Every
// version must use 8-byte offsets and lengths.
func ReadSuperblock(r io.ReaderAt) (*Superblock, error) {
	buf, err := utils.ReadFull(r, 0, SuperblockV2Size)
	if err != nil {
		return nil, utils.WrapError("superblock read failed", err)
	}

	if string(buf[:8]) != Signature {
		return nil, errors.New("invalid HDF5 signature")
	}

	switch version := buf[8]; version {
	case Version0, Version1:
		return readLegacySuperblock(r, version)
	case Version2, Version3:
	default:
		return nil, fmt.Errorf("unsupported superblock version: %d", version)
	}

	sb := &Superblock{
		Version:    buf[8],
		OffsetSize: buf[9],
		LengthSize: buf[10],
	}
	if sb.OffsetSize != 8 || sb.LengthSize != 8 {
		return nil, fmt.Errorf("unsupported offset/length sizes: offset=%d, length=%d", sb.OffsetSize, sb.LengthSize)
	}

	stored := binary.LittleEndian.Uint32(buf[44:48])
	if computed := utils.Lookup3(buf[:44], 0); computed != stored {
		return nil, fmt.Errorf("superblock checksum mismatch: stored 0x%08x, computed 0x%08x", stored, computed)
	}

	sb.BaseAddress = binary.LittleEndian.Uint64(buf[12:20])
	sb.SuperExtension = binary.LittleEndian.Uint64(buf[20:28])
	sb.EOFAddress = binary.LittleEndian.Uint64(buf[28:36])
	sb.RootGroup = binary.LittleEndian.Uint64(buf[36:44])

	if sb.BaseAddress != 0 {
		return nil, fmt.Errorf("unsupported base address: 0x%x", sb.BaseAddress)
	}

	return sb, nil
}

// readLegacySuperblock parses a version 0 or 1 superblock.
//
//	Bytes 8-15:  versions of superblock, free-space, root entry, shared
//	             header; size of offsets (13) and lengths (14)
//	Bytes 16-23: group leaf/internal node K, consistency flags
//	Bytes 24-27: (version 1 only) indexed storage K + reserved
//	then:        base, free-space, EOF and driver addresses, followed by
//	             the 40-byte root group symbol table entry
func readLegacySuperblock(r io.ReaderAt, version uint8) (*Superblock, error) {
	base := 24
	if version == Version1 {
		base = 28
	}
	buf, err := utils.ReadFull(r, 0, base+32+SymbolTableEntrySize)
	if err != nil {
		return nil, utils.WrapError("superblock read failed", err)
	}

	sb := &Superblock{
		Version:    version,
		OffsetSize: buf[13],
		LengthSize: buf[14],
	}
	if sb.OffsetSize != 8 || sb.LengthSize != 8 {
		return nil, fmt.Errorf("unsupported offset/length sizes: offset=%d, length=%d", sb.OffsetSize, sb.LengthSize)
	}

	sb.BaseAddress = binary.LittleEndian.Uint64(buf[base : base+8])
	sb.SuperExtension = UndefinedAddress
	sb.EOFAddress = binary.LittleEndian.Uint64(buf[base+16 : base+24])
	if sb.BaseAddress != 0 {
		return nil, fmt.Errorf("unsupported base address: 0x%x", sb.BaseAddress)
	}

	root := ParseSymbolTableEntry(buf[base+32:])
	sb.RootGroup = root.ObjectAddress
	if root.CacheType == 1 {
		sb.RootBTree = root.BTreeAddress
		sb.RootHeap = root.HeapAddress
	}
	return sb, nil
}

// Encode returns the 48-byte version 2 superblock.
//
//	Bytes 0-7:   Signature
//	Byte 8:      Version (2)
//	Byte 9:      Size of Offsets (8)
//	Byte 10:     Size of Lengths (8)
//	Byte 11:     File Consistency Flags (0)
//	Bytes 12-19: Base Address
//	Bytes 20-27: Superblock Extension Address (UNDEF)
//	Bytes 28-35: End-of-File Address
//	Bytes 36-43: Root Group Object Header Address
//	Bytes 44-47: lookup3 checksum of bytes 0-43
func (sb *Superblock) Encode() []byte {
	buf := make([]byte, SuperblockV2Size)
	copy(buf[0:8], Signature)
	buf[8] = Version2
	buf[9] = 8
	buf[10] = 8

	superExt := sb.SuperExtension
	if superExt == 0 {
		superExt = UndefinedAddress
	}

	binary.LittleEndian.PutUint64(buf[12:20], sb.BaseAddress)
	binary.LittleEndian.PutUint64(buf[20:28], superExt)
	binary.LittleEndian.PutUint64(buf[28:36], sb.EOFAddress)
	binary.LittleEndian.PutUint64(buf[36:44], sb.RootGroup)
	binary.LittleEndian.PutUint32(buf[44:48], utils.Lookup3(buf[:44], 0))

	return buf
}

// WriteTo writes the encoded superblock at offset 0.
func (sb *Superblock) WriteTo(w io.WriterAt) error {
	buf := sb.Encode()
	n, err := w.WriteAt(buf, 0)
	if err != nil {
		return fmt.Errorf("failed to write superblock: %w", err)
	}
	if n != len(buf) {
		return fmt.Errorf("incomplete superblock write: wrote %d bytes, expected %d", n, len(buf))
	}
	return nil
}
