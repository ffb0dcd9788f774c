// Package audit builds tamper-evident hash trees over an event's expenses.
//
// Leaves and interior nodes are hashed with BLAKE3 in keyed mode under
// different domain keys, so a leaf hash can never be replayed as a node
// hash. A participant holding one expense, its proof and the event's
// published root can check inclusion without fetching the other expenses.
package audit

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Hash is a 32-byte BLAKE3 digest.
type Hash [32]byte

type domainKey [32]byte

// ASCII domain names, zero-padded to 32 bytes. Changing them invalidates
// every stored root.
var (
	leafDomainKey = domainKey{
		'k', 'i', 't', 't', 'y', '.', 'a', 'u', 'd', 'i', 't', '.',
		'l', 'e', 'a', 'f', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	nodeDomainKey = domainKey{
		'k', 'i', 't', 't', 'y', '.', 'a', 'u', 'd', 'i', 't', '.',
		'n', 'o', 'd', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// IsZero reports whether h is the root of an empty tree.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// MarshalText encodes the hash as lowercase hex.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText parses a 64-character hex string.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}

	*h = parsed

	return nil
}

// ParseHash parses a 64-character hex string into a Hash.
func ParseHash(s string) (Hash, error) {
	var h Hash

	decoded, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("parsing audit hash: %w", err)
	}

	if len(decoded) != len(h) {
		return h, fmt.Errorf("audit hash is %d bytes, want %d", len(decoded), len(h))
	}

	copy(h[:], decoded)

	return h, nil
}

// HashLeaf hashes an encoded leaf in the leaf domain.
func HashLeaf(data []byte) Hash {
	return keyedHash(leafDomainKey, data)
}

func hashPair(left, right Hash) Hash {
	var combined [64]byte
	copy(combined[:32], left[:])
	copy(combined[32:], right[:])

	return keyedHash(nodeDomainKey, combined[:])
}

func keyedHash(key domainKey, data []byte) Hash {
	// NewKeyed only fails on a key that is not 32 bytes.
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("audit: BLAKE3 keyed hash initialization failed: " + err.Error())
	}

	hasher.Write(data)

	var h Hash
	copy(h[:], hasher.Sum(nil))

	return h
}
