// Package validators implements the standard validator pipeline stage: the
// final accept/deny verdict for each event.
package validators

import (
	"context"
	"fmt"

	"github.com/chainvault/chainvault/cryptography"
	"github.com/chainvault/chainvault/meta"
	"github.com/chainvault/chainvault/pipeline"
)

// RubberStamp allows every event unconditionally. Used by the Barebone
// ChainBuilder preset where validation is intentionally absent.
type RubberStamp struct{}

func (RubberStamp) Validate(_ context.Context, _ pipeline.Work) (pipeline.Verdict, error) {
	return pipeline.Allow, nil
}

// SignatureValidator requires at least one SignatureFacet and verifies each
// one against the embedded or supplied public key, denying the event if any
// signature fails to verify.
type SignatureValidator struct {
	// TrustedKey, when set, is used to verify signatures instead of the
	// PublicKeyFacet embedded in the event; leave nil to trust whatever
	// public key the event carries (TreeAuthority is responsible for
	// checking that key is actually authorized to write).
	TrustedKey *cryptography.PublicSignKey
}

func (v SignatureValidator) Validate(_ context.Context, w pipeline.Work) (pipeline.Verdict, error) {
	sigs := w.Header.Metadata.Signatures()
	if len(sigs) == 0 {
		return pipeline.Deny, fmt.Errorf("validators: no signature present")
	}

	hash, err := meta.HeaderHash(w.Header.Key, w.Header.Metadata)
	if err != nil {
		return pipeline.Deny, fmt.Errorf("validators: compute header hash: %w", err)
	}

	pubFacet, hasEmbedded := w.Header.Metadata.PublicKey()
	for _, sig := range sigs {
		key := v.TrustedKey
		if key == nil {
			if !hasEmbedded {
				return pipeline.Deny, fmt.Errorf("validators: no public key to verify against")
			}
			pub, err := cryptography.PublicSignKeyFromBytes(pubFacet.Raw)
			if err != nil {
				return pipeline.Deny, fmt.Errorf("validators: decode public key: %w", err)
			}
			key = &pub
		}
		if err := key.Verify(hash, sig.Signature); err != nil {
			return pipeline.Deny, fmt.Errorf("validators: signature verification failed: %w", err)
		}
	}
	return pipeline.Allow, nil
}
