// Package dio implements the transaction layer user code actually talks to:
// a read/modify/write session over one Chain that stages stores, loads, and
// deletes locally, then emits them as one pipeline batch on Commit. It
// sits directly on top of chain.
package dio

import (
	"context"
	"errors"
	"fmt"

	"github.com/chainvault/chainvault/chain"
	"github.com/chainvault/chainvault/chainerr"
	"github.com/chainvault/chainvault/logging"
	"github.com/chainvault/chainvault/meta"
	"github.com/chainvault/chainvault/pipeline"
)

// pendingEvent is one not-yet-committed write: the header (carrying the
// DataFacet and, for collection children, a TreeFacet) plus the value's
// already-serialized bytes.
type pendingEvent struct {
	header     meta.Header
	valueBytes []byte
}

// DIO is a single transaction against a Chain. Its dirty/cache/locked/
// deleted sets are owned by this DIO alone and need no locking of their
// own; every cross-transaction synchronization point is the Chain's
// inside_async lock, reached only through Load (reading) and Commit
// (writing).
type DIO struct {
	chain *chain.Chain
	sess  Session
	codec meta.Codec

	dirty map[meta.PrimaryKey]*pendingEvent
	order []meta.PrimaryKey

	cache map[meta.PrimaryKey][]byte

	locked map[meta.PrimaryKey]struct{}

	deleted     map[meta.PrimaryKey]struct{}
	deleteOrder []meta.PrimaryKey

	logger *logging.ContextLogger
}

// New opens a transaction against c under sess. codec must match the
// chain's configured metadata format so Load can decode stored headers.
func New(c *chain.Chain, sess Session, codec meta.Codec) *DIO {
	return &DIO{
		chain:   c,
		sess:    sess,
		codec:   codec,
		dirty:   make(map[meta.PrimaryKey]*pendingEvent),
		cache:   make(map[meta.PrimaryKey][]byte),
		locked:  make(map[meta.PrimaryKey]struct{}),
		deleted: make(map[meta.PrimaryKey]struct{}),
		logger:  logging.Nop(),
	}
}

// WithLogger attaches a logger for warnings such as a contested write lock.
func (d *DIO) WithLogger(l *logging.ContextLogger) *DIO {
	d.logger = l
	return d
}

func (d *DIO) stageDirty(key meta.PrimaryKey, value any) error {
	bytes, err := d.codec.EncodeValue(value)
	if err != nil {
		return fmt.Errorf("dio: encode value: %w", err)
	}
	pe, ok := d.dirty[key]
	if !ok {
		header := meta.Header{Key: key, Metadata: meta.MetadataSet{}.Append(meta.DataFacet{Key: key})}
		pe = &pendingEvent{header: header}
		d.dirty[key] = pe
		d.order = append(d.order, key)
	}
	pe.valueBytes = bytes
	return nil
}

func storeAt[T any](d *DIO, key meta.PrimaryKey, value T, parent *meta.PrimaryKey, collectionID uint64) (*Handle[T], error) {
	bytes, err := d.codec.EncodeValue(value)
	if err != nil {
		return nil, fmt.Errorf("dio: encode value: %w", err)
	}
	facets := meta.MetadataSet{}.Append(meta.DataFacet{Key: key})
	if parent != nil {
		facets = facets.Append(meta.TreeFacet{
			Parent:       *parent,
			CollectionID: collectionID,
			InheritRead:  true,
			InheritWrite: true,
		})
	}
	if _, alreadyDirty := d.dirty[key]; !alreadyDirty {
		d.order = append(d.order, key)
	}
	d.dirty[key] = &pendingEvent{header: meta.Header{Key: key, Metadata: facets}, valueBytes: bytes}
	d.locked[key] = struct{}{}
	delete(d.deleted, key)
	return &Handle[T]{d: d, key: key, value: value, dirty: true}, nil
}

// Store allocates a new PrimaryKey, stages value as a pending write, and
// returns a mutable handle over it.
func Store[T any](d *DIO, value T) (*Handle[T], error) {
	return storeAt(d, meta.NewPrimaryKey(), value, nil, 0)
}

// StoreWithKey is Store with an explicit PrimaryKey; it fails if key is
// currently locked by another live handle in this transaction.
func StoreWithKey[T any](d *DIO, key meta.PrimaryKey, value T) (*Handle[T], error) {
	if _, locked := d.locked[key]; locked {
		return nil, chainerr.ErrLockedWhileDirty
	}
	return storeAt(d, key, value, nil, 0)
}

// storeChild is StoreWithKey's collection-aware sibling, used by DaoVec and
// DaoMap to attach a TreeFacet linking the new child to its parent.
func storeChild[T any](d *DIO, parent meta.PrimaryKey, collectionID uint64, value T) (*Handle[T], error) {
	return storeAt(d, meta.NewPrimaryKey(), value, &parent, collectionID)
}

// Load resolves key to a mutable handle, per the DIO read path: deleted,
// then locked, then dirty, then cache, then the Chain's durable store.
func Load[T any](ctx context.Context, d *DIO, key meta.PrimaryKey) (*Handle[T], error) {
	if _, ok := d.deleted[key]; ok {
		return nil, chainerr.ErrNotFound
	}
	if _, ok := d.locked[key]; ok {
		return nil, chainerr.ErrLockedWhileDirty
	}
	if pe, ok := d.dirty[key]; ok {
		var v T
		if err := d.codec.DecodeValue(pe.valueBytes, &v); err != nil {
			return nil, fmt.Errorf("dio: decode dirty value: %w", err)
		}
		return &Handle[T]{d: d, key: key, value: v}, nil
	}
	if raw, ok := d.cache[key]; ok {
		var v T
		if err := d.codec.DecodeValue(raw, &v); err != nil {
			return nil, fmt.Errorf("dio: decode cached value: %w", err)
		}
		return &Handle[T]{d: d, key: key, value: v}, nil
	}

	body, err := d.loadDurable(ctx, key)
	if err != nil {
		return nil, err
	}
	d.cache[key] = body
	var v T
	if err := d.codec.DecodeValue(body, &v); err != nil {
		return nil, fmt.Errorf("dio: decode value: %w", err)
	}
	return &Handle[T]{d: d, key: key, value: v}, nil
}

// loadDurable fetches and inverts the stored body for key from the chain,
// surfacing NotFound/Tombstoned per the tombstone resolution rule.
func (d *DIO) loadDurable(ctx context.Context, key meta.PrimaryKey) ([]byte, error) {
	view := d.chain.Multi()
	leaf, ok := view.LookupPrimary(key)
	if !ok {
		view.Release()
		return nil, chainerr.ErrNotFound
	}
	if view.IsTombstoned(key) {
		view.Release()
		// Tombstoned headers surface as NotFound at the DIO read boundary;
		// ErrTombstoned remains available to lower-level chain consumers.
		return nil, chainerr.ErrNotFound
	}
	rec, err := view.Load(leaf.Location)
	view.Release()
	if err != nil {
		return nil, fmt.Errorf("dio: load record: %w", err)
	}

	header, err := meta.DecodeHeader(d.codec, rec.Meta)
	if err != nil {
		return nil, fmt.Errorf("dio: decode header: %w", err)
	}
	if _, tomb := header.Metadata.Tombstone(); tomb {
		return nil, chainerr.ErrNotFound
	}

	w := pipeline.Work{Header: header, Body: rec.Data}
	transformers := d.chain.Transformers()
	for i := len(transformers) - 1; i >= 0; i-- {
		if err := transformers[i].Inverse(ctx, d.sess.Session, &w); err != nil {
			return nil, fmt.Errorf("%w: %v", chainerr.ErrTransformation, err)
		}
	}
	return w.Body, nil
}

// Delete marks key as pending deletion: it is dropped from dirty/cache and
// acquires the write lock, so a subsequent Load or Store of the same key
// within this transaction fails until the transaction ends.
func Delete(d *DIO, key meta.PrimaryKey) {
	delete(d.dirty, key)
	delete(d.cache, key)
	for i, k := range d.order {
		if k == key {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	if _, already := d.deleted[key]; !already {
		d.deleteOrder = append(d.deleteOrder, key)
	}
	d.deleted[key] = struct{}{}
	d.locked[key] = struct{}{}
}

// Children loads every live event recorded under collectionID, in the
// Timeline's append order. Collections are indexed by id alone, so the
// result is not filtered by parent.
func Children[T any](ctx context.Context, d *DIO, collectionID uint64) ([]*Handle[T], error) {
	view := d.chain.Multi()
	leaves, ok := view.LookupSecondary(collectionID)
	view.Release()
	if !ok {
		return nil, nil
	}
	out := make([]*Handle[T], 0, len(leaves))
	for _, leaf := range leaves {
		h, err := Load[T](ctx, d, leaf.Key)
		if err != nil {
			if errors.Is(err, chainerr.ErrNotFound) || errors.Is(err, chainerr.ErrTombstoned) {
				continue
			}
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

// ChildrenKeys returns every live child PrimaryKey under collectionID, in
// append order, without loading or decoding their bodies.
func ChildrenKeys(d *DIO, collectionID uint64) ([]meta.PrimaryKey, error) {
	view := d.chain.Multi()
	keys, ok := view.LookupSecondaryRaw(collectionID)
	if !ok {
		view.Release()
		return nil, nil
	}
	live := keys[:0]
	for _, k := range keys {
		if _, deleted := d.deleted[k]; deleted || view.IsTombstoned(k) {
			continue
		}
		live = append(live, k)
	}
	view.Release()
	return live, nil
}

// Commit drains dirty and deleted into a single pipeline batch (stores in
// staging order, then tombstones in deletion order), awaits durability per
// the transaction's configured Scope, and clears all transaction state.
func (d *DIO) Commit(ctx context.Context) error {
	works := make([]pipeline.Work, 0, len(d.order)+len(d.deleteOrder))
	for _, key := range d.order {
		pe := d.dirty[key]
		works = append(works, pipeline.Work{Header: pe.header, Body: pe.valueBytes})
	}
	for _, key := range d.deleteOrder {
		header := meta.Header{Key: key, Metadata: meta.MetadataSet{}.Append(meta.TombstoneFacet{Key: key})}
		works = append(works, pipeline.Work{Header: header})
	}
	if len(works) == 0 {
		d.clear()
		return nil
	}

	_, linted, err := d.chain.FeedBatch(ctx, d.sess.Session, works)
	if err != nil {
		return err
	}
	if d.sess.Scope == ScopeLocal || d.sess.Scope == ScopeFull {
		if err := d.chain.Flush(ctx); err != nil {
			return fmt.Errorf("dio: commit: flush: %w", err)
		}
	}
	if d.sess.Scope == ScopeFull {
		if err := d.chain.Acknowledge(ctx, linted); err != nil {
			return fmt.Errorf("dio: commit: acknowledge: %w", err)
		}
	}
	d.clear()
	return nil
}

func (d *DIO) clear() {
	d.dirty = make(map[meta.PrimaryKey]*pendingEvent)
	d.order = nil
	d.cache = make(map[meta.PrimaryKey][]byte)
	d.locked = make(map[meta.PrimaryKey]struct{})
	d.deleted = make(map[meta.PrimaryKey]struct{})
	d.deleteOrder = nil
}
