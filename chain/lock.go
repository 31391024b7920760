package chain

import (
	"github.com/chainvault/chainvault/meta"
	"github.com/chainvault/chainvault/pipeline"
	"github.com/chainvault/chainvault/redo"
	"github.com/chainvault/chainvault/timeline"
)

// Two per-chain locks guard every operation:
//
//   - inside_sync: a short-held RWMutex over metadata that changes rarely
//     and is never held across I/O (the pipe head, root keys, the default
//     wire format).
//   - inside_async: an RWMutex over the RedoLog and Timeline. multi() takes
//     the read side (any number concurrent); single() takes the write side
//     (exclusive). It is held across suspension points by design, so a
//     multi() reader never observes a partially-applied commit.

// pipeHead returns the pipeline under inside_sync's read side.
func (c *Chain) pipeHead() *pipeline.Pipeline {
	c.insideSync.RLock()
	defer c.insideSync.RUnlock()
	return c.pipe
}

// SetPipe replaces the chain's pipeline under inside_sync's write side.
// Used by tests and by callers reconfiguring validators/plugins after
// Build.
func (c *Chain) SetPipe(p *pipeline.Pipeline) {
	c.insideSync.Lock()
	defer c.insideSync.Unlock()
	c.pipe = p
}

// MultiView is the shared read view inside_async.multi() grants: any
// number of MultiViews may be held concurrently, none of them observing a
// commit that is still in flight under a SingleView.
type MultiView struct {
	c *Chain
}

// Multi acquires the shared read view. Release must be called exactly
// once.
func (c *Chain) Multi() *MultiView {
	c.insideAsync.RLock()
	return &MultiView{c: c}
}

// Release gives up the shared read view.
func (v *MultiView) Release() { v.c.insideAsync.RUnlock() }

func (v *MultiView) LookupPrimary(key meta.PrimaryKey) (timeline.EventLeaf, bool) {
	return v.c.timeline.LookupPrimary(key)
}

func (v *MultiView) LookupParent(key meta.PrimaryKey) (timeline.MetaParent, bool) {
	return v.c.timeline.LookupParent(key)
}

func (v *MultiView) LookupSecondary(collectionID uint64) ([]timeline.EventLeaf, bool) {
	return v.c.timeline.LookupSecondary(collectionID)
}

func (v *MultiView) LookupSecondaryRaw(collectionID uint64) ([]meta.PrimaryKey, bool) {
	return v.c.timeline.LookupSecondaryRaw(collectionID)
}

func (v *MultiView) IsTombstoned(key meta.PrimaryKey) bool {
	return v.c.timeline.IsTombstoned(key)
}

func (v *MultiView) Load(loc redo.Location) (redo.Record, error) {
	return v.c.log.Load(loc)
}

func (v *MultiView) Count() int { return v.c.log.Count() }

// SingleView is the exclusive write view inside_async.single() grants:
// destroy, backup, and local feed all require it, and the RedoLog and
// Timeline are mutated only while it is held.
type SingleView struct {
	c *Chain
}

// Single acquires the exclusive write view. Release must be called
// exactly once.
func (c *Chain) Single() *SingleView {
	c.insideAsync.Lock()
	return &SingleView{c: c}
}

// Release gives up the exclusive write view.
func (v *SingleView) Release() { v.c.insideAsync.Unlock() }

func (v *SingleView) Log() *redo.RedoLog { return v.c.log }

func (v *SingleView) Timeline() *timeline.Timeline { return v.c.timeline }
