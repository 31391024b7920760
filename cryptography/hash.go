// Package cryptography implements the crypto contract that the chain-of-trust
// core depends on: content hashing, symmetric encryption keys, asymmetric
// signing keypairs, and per-payload initialization vectors. The concrete
// primitives are blake2b and hkdf from golang.org/x/crypto, AES-GCM from
// the standard library, and github.com/lestrrat-go/jwx/v2 for detached JWS
// signatures.
package cryptography

import (
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/blake2b"
)

// HashSize is the length in bytes of a Hash (256 bits).
const HashSize = 32

// Hash is a 256-bit content hash.
type Hash [HashSize]byte

// ErrShortHash is returned when decoding a byte slice that is not HashSize
// bytes long.
var ErrShortHash = errors.New("cryptography: hash must be 32 bytes")

// HashOf computes the content hash of a single byte slice.
func HashOf(data []byte) Hash {
	return Hash(blake2b.Sum256(data))
}

// FromBytesTwice deterministically derives a hash from two byte slices,
// domain-separated by length prefixing so that (a,b) and (a+b) never
// collide. Suited to two-input keyed derivations such as
// compute_super_key-style mixing of a username-derived and a
// secret-derived byte string. Header hashing does not use it; it hashes
// with HashOf.
func FromBytesTwice(a, b []byte) Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 with a nil key never errors; panicking here would
		// indicate a corrupted runtime, so surface the zero hash instead.
		return Hash{}
	}
	writeLenPrefixed(h, a)
	writeLenPrefixed(h, b)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

func writeLenPrefixed(w interface{ Write([]byte) (int, error) }, b []byte) {
	var lenBuf [8]byte
	n := len(b)
	for i := 0; i < 8; i++ {
		lenBuf[i] = byte(n >> (8 * i))
	}
	w.Write(lenBuf[:])
	w.Write(b)
}

// HashFromBytes decodes a 32-byte slice into a Hash.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, ErrShortHash
	}
	copy(h[:], b)
	return h, nil
}

// Bytes returns the raw 32 bytes of the hash.
func (h Hash) Bytes() []byte { return h[:] }

// String renders the hash as lowercase hex, matching the hex encodings used
// elsewhere in this codebase for content digests.
func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// IsZero reports whether the hash is the all-zero value (never produced by
// HashOf/FromBytesTwice, used as a sentinel for "no hash yet").
func (h Hash) IsZero() bool { return h == Hash{} }
