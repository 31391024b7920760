package chain

import (
	"fmt"

	"github.com/chainvault/chainvault/cryptography"
	"github.com/chainvault/chainvault/meta"
)

// authorityLookup implements plugins.AuthorityLookup by walking a key's
// TreeFacet ancestry up to the nearest AuthorizationFacet, establishing
// tree-derived write authority. It is only ever invoked from a
// pipeline stage running inside the chain's exclusive write phase (see
// Chain.Feed / Chain.FeedBatch), so it reads the chain's log and timeline
// directly instead of re-acquiring inside_async.
type authorityLookup struct {
	c *Chain
}

func (a *authorityLookup) EffectiveWriteSet(key meta.PrimaryKey) ([]cryptography.Hash, error) {
	visited := make(map[meta.PrimaryKey]bool)
	cur := key
	for {
		if visited[cur] {
			return nil, fmt.Errorf("chain: cyclic tree ancestry detected at %s", cur)
		}
		visited[cur] = true

		leaf, ok := a.c.timeline.LookupPrimary(cur)
		if !ok {
			// No prior event for this key: either a brand-new object with
			// no recorded ancestry yet, or a dangling parent reference. A
			// chain built with a root key anchors write authority for such
			// ownerless objects there instead of leaving the write-set
			// empty; a chain with no root key has nothing further to fall
			// back to, so enforcement stays a no-op.
			return a.c.rootKeys, nil
		}
		rec, err := a.c.log.Load(leaf.Location)
		if err != nil {
			return nil, fmt.Errorf("chain: authority lookup: load %s: %w", cur, err)
		}
		header, err := meta.DecodeHeader(a.c.codec, rec.Meta)
		if err != nil {
			return nil, fmt.Errorf("chain: authority lookup: decode %s: %w", cur, err)
		}
		if auth, ok := header.Metadata.Authorization(); ok {
			if auth.ImplicitAuthority {
				return nil, nil
			}
			return auth.WriteHashes, nil
		}
		parent, ok := a.c.timeline.LookupParent(cur)
		if !ok {
			// Reached a key with a recorded header but no TreeFacet and no
			// AuthorizationFacet of its own: a top-level object whose
			// authority, if any, comes from the chain's root key(s).
			return a.c.rootKeys, nil
		}
		cur = parent.Parent
	}
}
