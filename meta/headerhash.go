package meta

import (
	"github.com/chainvault/chainvault/cryptography"
	"github.com/fxamacker/cbor/v2"
)

// canonicalEncMode is used only for header hashing, independent of whatever
// Format the chain stores metadata/bodies in: hashing needs one fixed,
// deterministic byte representation regardless of the configured wire
// format, so every reader computes the same hash for the same facets.
var canonicalEncMode = func() cbor.EncMode {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic("meta: build canonical cbor encoder: " + err.Error())
	}
	return mode
}()

// HeaderHash computes the content hash of a MetadataSet's canonical byte
// representation, excluding any SignatureFacet (a signature signs the hash
// of everything else, so it cannot also be part of its own input).
func HeaderHash(key PrimaryKey, set MetadataSet) (cryptography.Hash, error) {
	canonical := set.WithoutSignature()
	wire := make([]wireFacet, 0, len(canonical)+1)
	// The key enters the hash as a canonical CBOR byte string, so this
	// entry is a well-formed wireFacet like every other.
	keyPayload, err := canonicalEncMode.Marshal(key.Bytes())
	if err != nil {
		return cryptography.Hash{}, err
	}
	wire = append(wire, wireFacet{Kind: "__primary_key", Payload: keyPayload})
	for _, f := range canonical {
		payload, err := facetPayload(canonicalEncMode.Marshal, f)
		if err != nil {
			return cryptography.Hash{}, err
		}
		wire = append(wire, wireFacet{Kind: f.Kind(), Payload: payload})
	}
	encoded, err := canonicalEncMode.Marshal(wire)
	if err != nil {
		return cryptography.Hash{}, err
	}
	return cryptography.HashOf(encoded), nil
}
