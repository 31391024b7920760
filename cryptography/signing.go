package cryptography

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
)

// PrivateSignKey is an Ed25519 signing key used to produce detached
// signatures over event header hashes, via jwx's JWS implementation with a
// detached payload (RFC 7515 §5, "JWS Unencoded Payload").
type PrivateSignKey struct {
	priv ed25519.PrivateKey
}

// PublicSignKey is the verification half of a PrivateSignKey.
type PublicSignKey struct {
	pub ed25519.PublicKey
}

// GenerateSignKeyPair creates a fresh Ed25519 keypair.
func GenerateSignKeyPair() (PrivateSignKey, PublicSignKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return PrivateSignKey{}, PublicSignKey{}, fmt.Errorf("cryptography: generate sign key: %w", err)
	}
	return PrivateSignKey{priv: priv}, PublicSignKey{pub: pub}, nil
}

// Public returns the verification key matching k.
func (k PrivateSignKey) Public() PublicSignKey {
	return PublicSignKey{pub: k.priv.Public().(ed25519.PublicKey)}
}

// Sign produces a detached JWS signature over a header hash. The returned
// bytes are the compact JWS with the payload segment empty, matching how
// MetaSignature stores "a signer's public-key hash and the signature bytes"
// without duplicating the hash itself in the signature blob.
func (k PrivateSignKey) Sign(headerHash Hash) ([]byte, error) {
	sig, err := jws.Sign(nil, jws.WithKey(jwa.EdDSA, k.priv), jws.WithDetachedPayload(headerHash.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("cryptography: sign header hash: %w", err)
	}
	return sig, nil
}

// PublicKeyBytes returns the raw Ed25519 public key, stored as the
// MetaPublicKey facet.
func (k PrivateSignKey) PublicKeyBytes() []byte { return append([]byte(nil), k.priv.Public().(ed25519.PublicKey)...) }

// Hash returns the content hash of the public key, used as the signer
// fingerprint in a MetaSignature facet and for write-set membership checks.
func (p PublicSignKey) Hash() Hash { return HashOf(p.pub) }

// Bytes returns the raw Ed25519 public key bytes.
func (p PublicSignKey) Bytes() []byte { return append([]byte(nil), p.pub...) }

// PublicSignKeyFromBytes reconstructs a PublicSignKey from raw bytes, e.g.
// when loading a MetaPublicKey facet off an event.
func PublicSignKeyFromBytes(raw []byte) (PublicSignKey, error) {
	if len(raw) != ed25519.PublicKeySize {
		return PublicSignKey{}, fmt.Errorf("cryptography: public key must be %d bytes", ed25519.PublicKeySize)
	}
	return PublicSignKey{pub: ed25519.PublicKey(raw)}, nil
}

// Verify checks a detached signature produced by Sign against headerHash.
func (p PublicSignKey) Verify(headerHash Hash, signature []byte) error {
	_, err := jws.Verify(signature, jws.WithKey(jwa.EdDSA, p.pub), jws.WithDetachedPayload(headerHash.Bytes()))
	if err != nil {
		return fmt.Errorf("cryptography: verify signature: %w", err)
	}
	return nil
}
