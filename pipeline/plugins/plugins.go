// Package plugins implements the standard feed-phase pipeline plugins:
// each sees a fully-linted, fully-transformed event and may reject it.
package plugins

import (
	"context"
	"fmt"
	"time"

	"github.com/chainvault/chainvault/clock"
	"github.com/chainvault/chainvault/cryptography"
	"github.com/chainvault/chainvault/mesh"
	"github.com/chainvault/chainvault/meta"
	"github.com/chainvault/chainvault/pipeline"
)

// AntiReplay rejects an event whose header hash has already been accepted,
// and any event addressed at an already-tombstoned PrimaryKey. Store, when
// nil, defaults to an in-memory MemoryDedupStore (single-node behaviour);
// supply a Redis-backed store to share the dedup set across nodes.
type AntiReplay struct {
	Store        mesh.DedupStore
	IsTombstoned func(meta.PrimaryKey) bool
}

// NewAntiReplay returns an AntiReplay with a private in-memory dedup store.
func NewAntiReplay(isTombstoned func(meta.PrimaryKey) bool) *AntiReplay {
	return &AntiReplay{Store: mesh.NewMemoryDedupStore(), IsTombstoned: isTombstoned}
}

func (p *AntiReplay) Feed(ctx context.Context, w pipeline.Work) error {
	if p.IsTombstoned != nil && p.IsTombstoned(w.Header.Key) {
		return fmt.Errorf("plugins: %s is tombstoned", w.Header.Key)
	}
	hash, err := meta.HeaderHash(w.Header.Key, w.Header.Metadata)
	if err != nil {
		return fmt.Errorf("plugins: compute header hash: %w", err)
	}
	if p.Store == nil {
		p.Store = mesh.NewMemoryDedupStore()
	}
	duplicate, err := p.Store.MarkSeen(ctx, hash.String())
	if err != nil {
		return fmt.Errorf("plugins: dedup check: %w", err)
	}
	if duplicate {
		return fmt.Errorf("plugins: duplicate event %s", hash)
	}
	return nil
}

// TimestampEnforcer rejects events with no Timestamp facet, or whose
// Timestamp falls outside Tolerance of the current time.
type TimestampEnforcer struct {
	Clock     clock.Source
	Tolerance time.Duration
}

func (p TimestampEnforcer) Feed(_ context.Context, w pipeline.Work) error {
	ts, ok := w.Header.Metadata.Timestamp()
	if !ok {
		return fmt.Errorf("plugins: event carries no timestamp")
	}
	src := p.Clock
	if src == nil {
		src = clock.SystemTimeSource{}
	}
	delta := src.Now().Sub(ts.When)
	if delta < 0 {
		delta = -delta
	}
	if delta > p.Tolerance {
		return fmt.Errorf("plugins: timestamp %s outside tolerance %s", ts.When, p.Tolerance)
	}
	return nil
}

// AuthorityLookup resolves the write-set a key's ancestry grants, walking
// TreeFacet parent links. Implemented by the chain package over its
// Timeline.
type AuthorityLookup interface {
	// EffectiveWriteSet returns the write-key fingerprints authorized to
	// write under key, resolved by walking key's TreeFacet ancestry up to
	// the nearest AuthorizationFacet (or a root key, if none is found).
	EffectiveWriteSet(key meta.PrimaryKey) ([]cryptography.Hash, error)
}

// TreeAuthority computes the effective write-set for an event's PrimaryKey
// by walking its parent chain, and rejects the event if none of its
// signatures match.
type TreeAuthority struct {
	Lookup AuthorityLookup
}

func (p TreeAuthority) Feed(_ context.Context, w pipeline.Work) error {
	writeSet, err := p.Lookup.EffectiveWriteSet(w.Header.Key)
	if err != nil {
		return fmt.Errorf("plugins: resolve write-set: %w", err)
	}
	if len(writeSet) == 0 {
		// No authorization chain configured for this key: nothing to
		// enforce (Barebone / Raw presets run without TreeAuthority
		// registered at all; a configured-but-empty write-set means the
		// chain has no root keys yet).
		return nil
	}
	sigs := w.Header.Metadata.Signatures()
	for _, sig := range sigs {
		for _, allowed := range writeSet {
			if sig.SignerHash == allowed {
				return nil
			}
		}
	}
	return fmt.Errorf("plugins: no signature satisfies the write-set for %s", w.Header.Key)
}
