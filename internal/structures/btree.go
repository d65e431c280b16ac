package structures

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/scigolib/hnf/internal/utils"
)

// B-tree node types.
const (
	BTreeGroup uint8 = 0
	BTreeChunk uint8 = 1

	btreeHeaderSize = 24

	// maxBTreeDepth bounds recursion so a corrupt file cannot loop.
	maxBTreeDepth = 64
)

// btreeNode is one version 1 B-tree node with its keys left undecoded.
//
//	Signature "TREE" (4), node type (1), node level (1)
//	Entries used (2), left sibling (8), right sibling (8)
//	key[0], child[0], key[1], ..., child[n-1], key[n]
type btreeNode struct {
	level    uint8
	keys     [][]byte
	children []uint64
}

func readBTreeNode(r io.ReaderAt, address uint64, nodeType uint8, keySize int) (*btreeNode, error) {
	header, err := utils.ReadFull(r, address, btreeHeaderSize)
	if err != nil {
		return nil, utils.WrapError("B-tree node read failed", err)
	}
	if string(header[0:4]) != "TREE" {
		return nil, fmt.Errorf("invalid B-tree signature at 0x%x", address)
	}
	if header[4] != nodeType {
		return nil, fmt.Errorf("B-tree node at 0x%x has type %d, want %d", address, header[4], nodeType)
	}

	node := &btreeNode{level: header[5]}
	used := int(binary.LittleEndian.Uint16(header[6:8]))

	body, err := utils.ReadFull(r, address+btreeHeaderSize, used*(keySize+8)+keySize)
	if err != nil {
		return nil, utils.WrapError("B-tree entries read failed", err)
	}
	pos := 0
	for i := 0; i < used; i++ {
		node.keys = append(node.keys, body[pos:pos+keySize])
		pos += keySize
		node.children = append(node.children, binary.LittleEndian.Uint64(body[pos:pos+8]))
		pos += 8
	}
	node.keys = append(node.keys, body[pos:pos+keySize])
	return node, nil
}

// walkBTree visits every leaf child of the tree rooted at address along
// with the key to its left.
func walkBTree(r io.ReaderAt, address uint64, nodeType uint8, keySize int, visit func(key []byte, child uint64) error) error {
	var walk func(addr uint64, depth int) error
	walk = func(addr uint64, depth int) error {
		if depth > maxBTreeDepth {
			return errors.New("B-tree too deep")
		}
		node, err := readBTreeNode(r, addr, nodeType, keySize)
		if err != nil {
			return err
		}
		for i, child := range node.children {
			if node.level > 0 {
				if err := walk(child, depth+1); err != nil {
					return err
				}
				continue
			}
			if err := visit(node.keys[i], child); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(address, 0)
}
