package common

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

const (
	HasherBlake2b = "blake2b"
	HasherKeccak  = "keccak"
	HasherBlake3  = "blake3"
)

// Hasher is the 32-byte hash function a rollup is configured with. It is used
// for transaction digests, receipt hashes and state trie keys.
type Hasher interface {
	Hash(data ...[]byte) Hash
	Name() string
}

type blake2bHasher struct{}

func (blake2bHasher) Hash(data ...[]byte) Hash {
	h, _ := blake2b.New256(nil)
	for _, d := range data {
		h.Write(d)
	}
	return BytesToHash(h.Sum(nil))
}

func (blake2bHasher) Name() string { return HasherBlake2b }

type keccakHasher struct{}

func (keccakHasher) Hash(data ...[]byte) Hash {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return BytesToHash(h.Sum(nil))
}

func (keccakHasher) Name() string { return HasherKeccak }

type blake3Hasher struct{}

func (blake3Hasher) Hash(data ...[]byte) Hash {
	h := blake3.New()
	for _, d := range data {
		h.Write(d)
	}
	return BytesToHash(h.Sum(nil))
}

func (blake3Hasher) Name() string { return HasherBlake3 }

// DefaultHasher is blake2b-256.
var DefaultHasher Hasher = blake2bHasher{}

// NewHasher resolves a hasher by name. An empty name selects blake2b.
func NewHasher(name string) (Hasher, error) {
	switch strings.ToLower(name) {
	case "", HasherBlake2b:
		return blake2bHasher{}, nil
	case HasherKeccak, "keccak256":
		return keccakHasher{}, nil
	case HasherBlake3:
		return blake3Hasher{}, nil
	default:
		return nil, fmt.Errorf("unknown hasher %q", name)
	}
}

// ComputeHash computes the BLAKE2b hash of the given data
func ComputeHash(data []byte) []byte {
	hash := blake2b.Sum256(data)
	return hash[:]
}

func Blake2Hash(data []byte) Hash {
	return BytesToHash(ComputeHash(data))
}

func Keccak256(data []byte) Hash {
	hash := sha3.NewLegacyKeccak256()
	hash.Write(data)
	return BytesToHash(hash.Sum(nil))
}

func Uint64ToBytes(val uint64) []byte {
	bytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(bytes, val)
	return bytes
}

func Uint32ToBytes(val uint32) []byte {
	bytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(bytes, val)
	return bytes
}

func BytesToUint32(data []byte) uint32 {
	if len(data) < 4 {
		panic("BytesToUint32: byte slice too short")
	}
	return binary.LittleEndian.Uint32(data)
}
