package trie

import (
	"github.com/colorfulnotion/rollup/common"
)

// KeySize is the number of key bytes a leaf commits to.
const KeySize = 31

// Key is a trie path. Storage keys are hashed into keys so the trie stays balanced.
type Key [KeySize]byte

// KeyOf hashes an arbitrary storage key into a trie key.
func KeyOf(hasher common.Hasher, storageKey []byte) Key {
	var k Key
	copy(k[:], hasher.Hash(storageKey).Bytes()[:KeySize])
	return k
}

// EmptyHash is the hash of the empty trie.
var EmptyHash = common.Hash{}

func bit(k Key, i int) bool {
	byteIndex := i / 8
	if byteIndex >= len(k) {
		return false
	}
	bitIndex := i % 8
	mask := byte(1 << bitIndex) // least significant bit first
	return k[byteIndex]&mask != 0
}
