package structures

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/scigolib/hnf/internal/core"
	"github.com/scigolib/hnf/internal/utils"
)

// ReadSymbolTableNode reads the entries of the symbol table node (SNOD)
// at address.
//
//	Signature "SNOD" (4), version 1 (1), reserved (1)
//	Number of symbols (2)
//	Entries (core.SymbolTableEntrySize bytes each)
func ReadSymbolTableNode(r io.ReaderAt, address uint64) ([]core.SymbolTableEntry, error) {
	header, err := utils.ReadFull(r, address, 8)
	if err != nil {
		return nil, utils.WrapError("SNOD header read failed", err)
	}
	if sig := string(header[0:4]); sig != "SNOD" {
		return nil, fmt.Errorf("invalid SNOD signature: %q", sig)
	}
	if header[4] != 1 {
		return nil, fmt.Errorf("unsupported SNOD version: %d", header[4])
	}

	n := int(binary.LittleEndian.Uint16(header[6:8]))
	buf, err := utils.ReadFull(r, address+8, n*core.SymbolTableEntrySize)
	if err != nil {
		return nil, utils.WrapError("SNOD entries read failed", err)
	}

	entries := make([]core.SymbolTableEntry, n)
	for i := range entries {
		entries[i] = core.ParseSymbolTableEntry(buf[i*core.SymbolTableEntrySize:])
	}
	return entries, nil
}
