package trie

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/colorfulnotion/rollup/common"
)

/*
Branch Node (64 bytes)
+-------------------------------------------------+
|    First 255 bits of left child node hash       |
+-------------------------------------------------+
|    Full 256 bits of right child node hash       |
+-------------------------------------------------+

Embedded-Value Leaf Node (64 bytes), value of at most 32 bytes
+--------+------------------------------------------+
|  2 bits | 6 bits (value size) | 31 bytes (key)    |
+--------+------------------------------------------+
|              32 bytes (embedded value)            |
+---------------------------------------------------+

Regular Leaf Node (64 bytes), value longer than 32 bytes
+--------+------------------------------------------+
|  2 bits | 6 bits (0s) | 31 bytes (key)            |
+--------+------------------------------------------+
|               32 bytes (hash of value)            |
+---------------------------------------------------+
*/

const maxDepth = KeySize * 8

var (
	// ErrIncomplete is returned when an operation reaches a pruned subtree.
	ErrIncomplete = errors.New("trie: path reaches a pruned subtree")
	ErrMalformed  = errors.New("trie: malformed encoding")
)

type nodeKind uint8

const (
	kindEmpty nodeKind = iota
	kindLeaf
	kindBranch
	kindOpaque // pruned branch, only the hash is known
)

// Node represents a node in the Merkle Tree. Nodes are never mutated once
// built; updates copy the path from the root.
type Node struct {
	kind  nodeKind
	key   Key
	leaf  []byte // 64-byte leaf encoding
	left  *Node
	right *Node
	hash  common.Hash
}

var emptyNode = &Node{kind: kindEmpty}

// MerkleTree is a binary patricia merkle trie. A tree may be pruned, in
// which case untouched branches are replaced by their hashes.
type MerkleTree struct {
	root   *Node
	hasher common.Hasher
}

// KV is one trie entry.
type KV struct {
	Key   Key
	Value []byte
}

// NewMerkleTree returns the empty trie.
func NewMerkleTree(hasher common.Hasher) *MerkleTree {
	return &MerkleTree{root: emptyNode, hasher: hasher}
}

// Build constructs the canonical trie for kvs in one pass.
func Build(hasher common.Hasher, kvs []KV) *MerkleTree {
	t := NewMerkleTree(hasher)
	t.root = t.buildMerkleTree(kvs, 0)
	return t
}

func (t *MerkleTree) buildMerkleTree(kvs []KV, i int) *Node {
	if len(kvs) == 0 {
		return emptyNode
	}
	if len(kvs) == 1 {
		return t.newLeaf(kvs[0].Key, kvs[0].Value)
	}
	var l, r []KV
	for _, kv := range kvs {
		if bit(kv.Key, i) {
			r = append(r, kv)
		} else {
			l = append(l, kv)
		}
	}
	return t.newBranch(t.buildMerkleTree(l, i+1), t.buildMerkleTree(r, i+1))
}

// branch concatenates the left and right node hashes with a modified head
func branch(left, right common.Hash) []byte {
	out := make([]byte, 64)
	copy(out, left[:])
	out[0] &= 0xfe
	copy(out[32:], right[:])
	return out
}

// leaf encodes a key-value pair into a leaf node
func (t *MerkleTree) encodeLeaf(k Key, v []byte) []byte {
	out := make([]byte, 64)
	copy(out[1:32], k[:])
	if len(v) <= 32 {
		out[0] = byte(0b01 | (len(v) << 2))
		copy(out[32:], v)
	} else {
		out[0] = 0b11
		h := t.hasher.Hash(v)
		copy(out[32:], h[:])
	}
	return out
}

func (t *MerkleTree) newLeaf(k Key, v []byte) *Node {
	enc := t.encodeLeaf(k, v)
	return &Node{kind: kindLeaf, key: k, leaf: enc, hash: t.hasher.Hash(enc)}
}

func (t *MerkleTree) newBranch(left, right *Node) *Node {
	return &Node{kind: kindBranch, left: left, right: right, hash: t.hasher.Hash(branch(left.hash, right.hash))}
}

// Clone returns an independent handle on the same nodes. Nodes are
// immutable, so updates to the clone do not affect t.
func (t *MerkleTree) Clone() *MerkleTree {
	c := *t
	return &c
}

// RootHash returns the root hash of the Merkle Tree
func (t *MerkleTree) RootHash() common.Hash {
	return t.root.hash
}

// Insert sets key to value.
func (t *MerkleTree) Insert(key Key, value []byte) error {
	root, err := t.insertNode(t.root, t.newLeaf(key, value), 0)
	if err != nil {
		return err
	}
	t.root = root
	return nil
}

func (t *MerkleTree) insertNode(n *Node, lf *Node, depth int) (*Node, error) {
	switch n.kind {
	case kindEmpty:
		return lf, nil
	case kindLeaf:
		if n.key == lf.key {
			return lf, nil
		}
		return t.createBranchNode(n, lf, depth), nil
	case kindBranch:
		if bit(lf.key, depth) {
			r, err := t.insertNode(n.right, lf, depth+1)
			if err != nil {
				return nil, err
			}
			return t.newBranch(n.left, r), nil
		}
		l, err := t.insertNode(n.left, lf, depth+1)
		if err != nil {
			return nil, err
		}
		return t.newBranch(l, n.right), nil
	default:
		return nil, fmt.Errorf("%w: insert at depth %d", ErrIncomplete, depth)
	}
}

// createBranchNode places two leaves with distinct keys under a new branch,
// adding single-child branches until their key bits diverge.
func (t *MerkleTree) createBranchNode(a, b *Node, depth int) *Node {
	ba, bb := bit(a.key, depth), bit(b.key, depth)
	if ba == bb {
		child := t.createBranchNode(a, b, depth+1)
		if ba {
			return t.newBranch(emptyNode, child)
		}
		return t.newBranch(child, emptyNode)
	}
	if ba {
		return t.newBranch(b, a)
	}
	return t.newBranch(a, b)
}

// Delete removes key. Deleting an absent key is a no-op.
func (t *MerkleTree) Delete(key Key) error {
	root, err := t.deleteNode(t.root, key, 0)
	if err != nil {
		return err
	}
	t.root = root
	return nil
}

func (t *MerkleTree) deleteNode(n *Node, key Key, depth int) (*Node, error) {
	switch n.kind {
	case kindEmpty:
		return n, nil
	case kindLeaf:
		if n.key == key {
			return emptyNode, nil
		}
		return n, nil
	case kindBranch:
		l, r := n.left, n.right
		var err error
		if bit(key, depth) {
			r, err = t.deleteNode(r, key, depth+1)
		} else {
			l, err = t.deleteNode(l, key, depth+1)
		}
		if err != nil {
			return nil, err
		}
		if l == n.left && r == n.right {
			return n, nil
		}
		// a subtree holding a single key collapses into that leaf
		switch {
		case l.kind == kindEmpty && r.kind == kindEmpty:
			return emptyNode, nil
		case l.kind == kindEmpty && r.kind == kindLeaf:
			return r, nil
		case r.kind == kindEmpty && l.kind == kindLeaf:
			return l, nil
		}
		return t.newBranch(l, r), nil
	default:
		return nil, fmt.Errorf("%w: delete at depth %d", ErrIncomplete, depth)
	}
}

// Get returns the leaf encoding stored under key.
func (t *MerkleTree) Get(key Key) (leaf []byte, found bool, err error) {
	n := t.root
	for depth := 0; ; depth++ {
		switch n.kind {
		case kindEmpty:
			return nil, false, nil
		case kindLeaf:
			if n.key != key {
				return nil, false, nil
			}
			return n.leaf, true, nil
		case kindBranch:
			if bit(key, depth) {
				n = n.right
			} else {
				n = n.left
			}
		default:
			return nil, false, fmt.Errorf("%w: get at depth %d", ErrIncomplete, depth)
		}
	}
}

// VerifyValue checks that the trie holds value under key, or holds nothing
// under key when found is false.
func (t *MerkleTree) VerifyValue(key Key, value []byte, found bool) (bool, error) {
	leaf, ok, err := t.Get(key)
	if err != nil {
		return false, err
	}
	if ok != found {
		return false, nil
	}
	if !found {
		return true, nil
	}
	return bytes.Equal(leaf, t.encodeLeaf(key, value)), nil
}

// Prune returns a copy of the trie that only keeps the paths to keys.
// Branches not on any path become opaque hashes; leaves and empty nodes
// adjacent to a path are kept so deletions can collapse correctly.
func (t *MerkleTree) Prune(keys []Key) *MerkleTree {
	sorted := append([]Key(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i][:], sorted[j][:]) < 0 })
	return &MerkleTree{root: pruneNode(t.root, sorted, 0), hasher: t.hasher}
}

func pruneNode(n *Node, keys []Key, depth int) *Node {
	if n.kind != kindBranch {
		return n
	}
	if len(keys) == 0 {
		return &Node{kind: kindOpaque, hash: n.hash}
	}
	var l, r []Key
	for _, k := range keys {
		if bit(k, depth) {
			r = append(r, k)
		} else {
			l = append(l, k)
		}
	}
	return &Node{kind: kindBranch, left: pruneNode(n.left, l, depth+1), right: pruneNode(n.right, r, depth+1), hash: n.hash}
}

const (
	tagEmpty  = 0x00
	tagLeaf   = 0x01
	tagBranch = 0x02
	tagOpaque = 0x03
)

// Encode serializes the trie in pre-order.
func (t *MerkleTree) Encode() []byte {
	var buf bytes.Buffer
	encodeNode(&buf, t.root)
	return buf.Bytes()
}

func encodeNode(buf *bytes.Buffer, n *Node) {
	switch n.kind {
	case kindEmpty:
		buf.WriteByte(tagEmpty)
	case kindLeaf:
		buf.WriteByte(tagLeaf)
		buf.Write(n.leaf)
	case kindBranch:
		buf.WriteByte(tagBranch)
		encodeNode(buf, n.left)
		encodeNode(buf, n.right)
	case kindOpaque:
		buf.WriteByte(tagOpaque)
		buf.Write(n.hash[:])
	}
}

// Decode parses a trie produced by Encode. Hashes are recomputed, so the
// root of the result commits to everything in data.
func Decode(hasher common.Hasher, data []byte) (*MerkleTree, error) {
	t := NewMerkleTree(hasher)
	root, rest, err := t.decodeNode(data, 0)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(rest))
	}
	t.root = root
	return t, nil
}

func (t *MerkleTree) decodeNode(data []byte, depth int) (*Node, []byte, error) {
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("%w: truncated at depth %d", ErrMalformed, depth)
	}
	if depth > maxDepth {
		return nil, nil, fmt.Errorf("%w: deeper than %d", ErrMalformed, maxDepth)
	}
	tag, data := data[0], data[1:]
	switch tag {
	case tagEmpty:
		return emptyNode, data, nil
	case tagLeaf:
		if len(data) < 64 {
			return nil, nil, fmt.Errorf("%w: short leaf", ErrMalformed)
		}
		enc := append([]byte(nil), data[:64]...)
		if enc[0]&0b11 != 0b01 && enc[0] != 0b11 {
			return nil, nil, fmt.Errorf("%w: leaf header 0x%02x", ErrMalformed, enc[0])
		}
		var k Key
		copy(k[:], enc[1:32])
		return &Node{kind: kindLeaf, key: k, leaf: enc, hash: t.hasher.Hash(enc)}, data[64:], nil
	case tagBranch:
		l, rest, err := t.decodeNode(data, depth+1)
		if err != nil {
			return nil, nil, err
		}
		r, rest, err := t.decodeNode(rest, depth+1)
		if err != nil {
			return nil, nil, err
		}
		return t.newBranch(l, r), rest, nil
	case tagOpaque:
		if len(data) < 32 {
			return nil, nil, fmt.Errorf("%w: short hash", ErrMalformed)
		}
		return &Node{kind: kindOpaque, hash: common.BytesToHash(data[:32])}, data[32:], nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown tag 0x%02x", ErrMalformed, tag)
	}
}
