// Package pipeline implements the six-stage event processing chain that
// every commit and every replayed event passes through: linters that add
// metadata, transformers that rewrite the body, plugins that may reject,
// validators that give the final accept/deny verdict, indexers that update
// the timeline, and compactors that decide what survives a rewrite.
package pipeline

import (
	"context"

	"github.com/chainvault/chainvault/cryptography"
	"github.com/chainvault/chainvault/meta"
	"github.com/chainvault/chainvault/redo"
)

// Verdict is a validator's tri-valued answer for one event. An event is
// accepted iff at least one Allow and no Deny is returned across every
// configured validator.
type Verdict int

const (
	Abstain Verdict = iota
	Allow
	Deny
)

// Work is one event in flight through the pipeline.
type Work struct {
	Header meta.Header
	Body   []byte
}

// Session carries the per-commit cryptographic material linters and
// transformers need. It is supplied by the DIO for the duration of one
// commit and never retained past it.
type Session struct {
	AuthorIdentity string
	SignKey        *cryptography.PrivateSignKey
	// BodyKey is the effective symmetric key used to encrypt this commit's
	// bodies. Nil disables body encryption.
	BodyKey *cryptography.EncryptKey
	// SealBodyKeyUnder, if non-nil, causes the linter stage to attach an
	// EncryptedEncryptionKeyFacet sealing BodyKey so a holder of this key
	// can recover it at load time.
	SealBodyKeyUnder *cryptography.EncryptKey
}

// Validator gives the final accept/deny verdict for one event.
type Validator interface {
	Validate(ctx context.Context, w Work) (Verdict, error)
}

// Linter mutates a Work's metadata in place before transformation.
type Linter interface {
	Lint(ctx context.Context, sess Session, w *Work) error
}

// Transformer rewrites a Work's body on write (Transform) and reverses it
// on load (Inverse). Transformers run in order on write and in reverse
// order on load. They see the full Work (not just the body bytes) and the
// commit's Session, so a transformer that needs per-commit key material
// (encryption) can read Session.BodyKey and record recovery metadata (an
// initialization vector) as a facet on w.Header.Metadata.
type Transformer interface {
	Transform(ctx context.Context, sess Session, w *Work) error
	Inverse(ctx context.Context, sess Session, w *Work) error
}

// Plugin observes a fully-linted, fully-transformed event and may reject it.
type Plugin interface {
	Feed(ctx context.Context, w Work) error
}

// Indexer updates the timeline after an event has cleared every prior
// stage.
type Indexer interface {
	Index(ctx context.Context, w Work, loc redo.Location) error
}

// CompactDecision is a compactor's verdict for one already-stored event.
type CompactDecision int

const (
	Keep CompactDecision = iota
	Drop
)

// IndexedEvent is one stored event as seen by a compactor: its location,
// decoded header, and whether it's already marked tombstoned.
type IndexedEvent struct {
	Location   redo.Location
	Header     meta.Header
	Tombstoned bool
}

// Compactor inspects a snapshot of the whole log and decides, for each
// event occurrence (keyed by its Location, since a PrimaryKey may appear
// more than once before compaction), whether it survives a rewrite.
type Compactor interface {
	Decide(ctx context.Context, events []IndexedEvent) map[redo.Location]CompactDecision
}
