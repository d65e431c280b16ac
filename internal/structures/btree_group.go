package structures

import (
	"io"

	"github.com/scigolib/hnf/internal/core"
)

// groupKeySize is one local heap offset.
const groupKeySize = 8

// GroupLink is one named member of an old-style group.
type GroupLink struct {
	Name    string
	Address uint64
}

// ReadGroupLinks enumerates an old-style group from its symbol table
// message: the group B-tree points at symbol table nodes, whose entries
// name their objects through the local heap. Soft links (cache type 2)
// have no object header and are skipped.
func ReadGroupLinks(r io.ReaderAt, stm *core.SymbolTableMessage) ([]GroupLink, error) {
	heap, err := LoadLocalHeap(r, stm.HeapAddress)
	if err != nil {
		return nil, err
	}

	var links []GroupLink
	err = walkBTree(r, stm.BTreeAddress, BTreeGroup, groupKeySize, func(_ []byte, snod uint64) error {
		entries, err := ReadSymbolTableNode(r, snod)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.CacheType == 2 || e.ObjectAddress == core.UndefinedAddress {
				continue
			}
			name, err := heap.String(e.LinkNameOffset)
			if err != nil {
				return err
			}
			links = append(links, GroupLink{Name: name, Address: e.ObjectAddress})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return links, nil
}
