// Package linters implements the standard write-path linters: they append
// metadata facets to an event before transformation, in the fixed order the
// pipeline runs them (Timestamp, Author, PublicKey, Signature last,
// EncryptedEncryptionKey as needed).
package linters

import (
	"context"
	"fmt"

	"github.com/chainvault/chainvault/clock"
	"github.com/chainvault/chainvault/cryptography"
	"github.com/chainvault/chainvault/meta"
	"github.com/chainvault/chainvault/pipeline"
)

// TimestampLinter stamps every event with the current time.
type TimestampLinter struct {
	Clock clock.Source
}

func (l TimestampLinter) Lint(_ context.Context, _ pipeline.Session, w *pipeline.Work) error {
	src := l.Clock
	if src == nil {
		src = clock.SystemTimeSource{}
	}
	w.Header.Metadata = w.Header.Metadata.Append(meta.TimestampFacet{When: src.Now()})
	return nil
}

// AuthorLinter stamps the committing session's identity.
type AuthorLinter struct{}

func (AuthorLinter) Lint(_ context.Context, sess pipeline.Session, w *pipeline.Work) error {
	if sess.AuthorIdentity == "" {
		return nil
	}
	w.Header.Metadata = w.Header.Metadata.Append(meta.AuthorFacet{Identity: sess.AuthorIdentity})
	return nil
}

// PublicKeyLinter embeds the signer's public key so future readers can
// verify the event without prior knowledge of the signer.
type PublicKeyLinter struct{}

func (PublicKeyLinter) Lint(_ context.Context, sess pipeline.Session, w *pipeline.Work) error {
	if sess.SignKey == nil {
		return nil
	}
	w.Header.Metadata = w.Header.Metadata.Append(meta.PublicKeyFacet{Raw: sess.SignKey.PublicKeyBytes()})
	return nil
}

// SignatureLinter signs the header hash last, after every other metadata
// facet has been attached (a signature must cover everything else).
type SignatureLinter struct{}

func (SignatureLinter) Lint(_ context.Context, sess pipeline.Session, w *pipeline.Work) error {
	if sess.SignKey == nil {
		return nil
	}
	hash, err := meta.HeaderHash(w.Header.Key, w.Header.Metadata)
	if err != nil {
		return fmt.Errorf("linters: compute header hash: %w", err)
	}
	sig, err := sess.SignKey.Sign(hash)
	if err != nil {
		return fmt.Errorf("linters: sign header: %w", err)
	}
	w.Header.Metadata = w.Header.Metadata.Append(meta.SignatureFacet{
		SignerHash: sess.SignKey.Public().Hash(),
		Signature:  sig,
	})
	return nil
}

// EncryptionKeyLinter seals the commit's effective body key under
// sess.SealBodyKeyUnder, when both are configured, so a holder of the
// sealing key can recover the body key at load time.
type EncryptionKeyLinter struct{}

func (EncryptionKeyLinter) Lint(_ context.Context, sess pipeline.Session, w *pipeline.Work) error {
	if sess.BodyKey == nil || sess.SealBodyKeyUnder == nil {
		return nil
	}
	sealed, err := cryptography.Seal(*sess.SealBodyKeyUnder, sess.BodyKey.Bytes())
	if err != nil {
		return fmt.Errorf("linters: seal body key: %w", err)
	}
	w.Header.Metadata = w.Header.Metadata.Append(meta.EncryptedEncryptionKeyFacet{Data: sealed})
	return nil
}
