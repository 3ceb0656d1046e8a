package state

import (
	"strings"
	"unicode"
)

// Prefix namespaces one logical collection inside the shared store.
type Prefix []byte

// NewPrefix joins parts with '/' and terminates with '/', so no prefix is a
// prefix of another collection's keys.
func NewPrefix(parts ...string) Prefix {
	return Prefix(strings.Join(parts, "/") + "/")
}

// String prints printable bytes as-is and everything else as \xNN.
func (p Prefix) String() string {
	var sb strings.Builder
	for _, b := range p {
		if b < unicode.MaxASCII && unicode.IsPrint(rune(b)) {
			sb.WriteByte(b)
		} else {
			sb.WriteString(`\x`)
			const hex = "0123456789abcdef"
			sb.WriteByte(hex[b>>4])
			sb.WriteByte(hex[b&0x0f])
		}
	}
	return sb.String()
}

// StorageKey is a prefix-qualified key.
type StorageKey []byte

func NewStorageKey(prefix Prefix, key []byte) StorageKey {
	k := make([]byte, 0, len(prefix)+len(key))
	k = append(k, prefix...)
	return append(k, key...)
}

func (k StorageKey) String() string {
	return Prefix(k).String()
}
