package meta

import (
	"time"

	"github.com/chainvault/chainvault/cryptography"
)

// Kind discriminates the variants of a MetadataSet facet. The list is
// intentionally open: a Kind the codec doesn't recognize is preserved as an
// UnknownFacet rather than dropped, so forward-compatible readers don't
// lose data written by a newer chain.
type Kind string

const (
	KindData                   Kind = "data"
	KindTombstone              Kind = "tombstone"
	KindAuthorization          Kind = "authorization"
	KindTree                   Kind = "tree"
	KindAuthor                 Kind = "author"
	KindTimestamp              Kind = "timestamp"
	KindSignature              Kind = "signature"
	KindPublicKey              Kind = "public_key"
	KindEncryptedPrivateKey    Kind = "encrypted_private_key"
	KindEncryptedEncryptionKey Kind = "encrypted_encryption_key"
	KindInitializationVector   Kind = "initialization_vector"
)

// Facet is one typed entry in an event's MetadataSet.
type Facet interface {
	Kind() Kind
}

// DataFacet marks the event as holding live data under Key.
type DataFacet struct {
	Key PrimaryKey `cbor:"key" json:"key"`
}

func (DataFacet) Kind() Kind { return KindData }

// TombstoneFacet marks Key as logically deleted; terminal once applied.
type TombstoneFacet struct {
	Key PrimaryKey `cbor:"key" json:"key"`
}

func (TombstoneFacet) Kind() Kind { return KindTombstone }

// AuthorizationFacet carries the read/write key fingerprints that govern a
// key's tree of descendants, plus an optional implicit-authority anchor
// (e.g. a root key) that short-circuits the walk in TreeAuthority.
type AuthorizationFacet struct {
	ReadHashes        []cryptography.Hash `cbor:"read_hashes" json:"read_hashes"`
	WriteHashes       []cryptography.Hash `cbor:"write_hashes" json:"write_hashes"`
	ImplicitAuthority bool                `cbor:"implicit_authority,omitempty" json:"implicit_authority,omitempty"`
}

func (AuthorizationFacet) Kind() Kind { return KindAuthorization }

// TreeFacet links an event to its parent and controls whether the parent's
// read/write authorization is inherited. CollectionID groups sibling
// children under the parent (the id a DaoVec or DaoMap was opened with);
// zero means "not a collection member", just a plain tree link.
type TreeFacet struct {
	Parent       PrimaryKey `cbor:"parent" json:"parent"`
	CollectionID uint64     `cbor:"collection_id,omitempty" json:"collection_id,omitempty"`
	InheritRead  bool       `cbor:"inherit_read" json:"inherit_read"`
	InheritWrite bool       `cbor:"inherit_write" json:"inherit_write"`
}

func (TreeFacet) Kind() Kind { return KindTree }

// AuthorFacet names the session identity that produced the event.
type AuthorFacet struct {
	Identity string `cbor:"identity" json:"identity"`
}

func (AuthorFacet) Kind() Kind { return KindAuthor }

// TimestampFacet is the wall-clock time the event was linted, checked by
// the TimestampEnforcer plugin against a configured tolerance window.
type TimestampFacet struct {
	When time.Time `cbor:"when" json:"when"`
}

func (TimestampFacet) Kind() Kind { return KindTimestamp }

// SignatureFacet is a detached signature over the header hash (computed
// excluding this facet), plus the fingerprint of the signing key.
type SignatureFacet struct {
	SignerHash cryptography.Hash `cbor:"signer_hash" json:"signer_hash"`
	Signature  []byte            `cbor:"signature" json:"signature"`
}

func (SignatureFacet) Kind() Kind { return KindSignature }

// PublicKeyFacet embeds a raw signing public key so readers without prior
// knowledge of the signer can still verify SignatureFacet entries.
type PublicKeyFacet struct {
	Raw []byte `cbor:"raw" json:"raw"`
}

func (PublicKeyFacet) Kind() Kind { return KindPublicKey }

// EncryptedPrivateKeyFacet carries a signing private key, sealed under a
// key only the intended reader holds.
type EncryptedPrivateKeyFacet struct {
	Data cryptography.EncryptedSecureData[[]byte] `cbor:"data" json:"data"`
}

func (EncryptedPrivateKeyFacet) Kind() Kind { return KindEncryptedPrivateKey }

// EncryptedEncryptionKeyFacet carries a body EncryptKey, sealed under a
// reader's key so that only authorized sessions can decrypt the body.
type EncryptedEncryptionKeyFacet struct {
	Data cryptography.EncryptedSecureData[[]byte] `cbor:"data" json:"data"`
}

func (EncryptedEncryptionKeyFacet) Kind() Kind { return KindEncryptedEncryptionKey }

// InitializationVectorFacet carries the nonce used to seal the event body.
type InitializationVectorFacet struct {
	IV cryptography.InitializationVector `cbor:"iv" json:"iv"`
}

func (InitializationVectorFacet) Kind() Kind { return KindInitializationVector }

// UnknownFacet preserves a facet whose Kind the current codec doesn't
// recognize, keeping its raw encoded payload intact across replay.
type UnknownFacet struct {
	kind Kind
	Raw  []byte
}

func (u UnknownFacet) Kind() Kind { return u.kind }
