package dio

import "github.com/chainvault/chainvault/meta"

// Handle is a typed, mutable view onto one object loaded or staged through a
// DIO. Every Handle a DIO hands out can be mutated; whether it actually
// needs to be flushed at commit is tracked by dirty, set the first time
// Mutate is called (or always true for a handle returned by Store, since
// storing a brand new object is itself a pending write).
type Handle[T any] struct {
	d     *DIO
	key   meta.PrimaryKey
	value T
	dirty bool
}

// Key returns the PrimaryKey this handle addresses.
func (h *Handle[T]) Key() meta.PrimaryKey { return h.key }

// Get returns the handle's current in-memory value.
func (h *Handle[T]) Get() T { return h.value }

// Mutate returns a pointer into the handle's value for in-place editing and
// marks the handle dirty. The first mutation on a handle not already
// holding this key's lock attempts to acquire it; per the write-lock
// design, a lock already held by another live handle for this key is
// logged and overridden rather than blocked on (competing in-scope writers
// on one DIO are a caller bug, not a condition to deadlock over).
func (h *Handle[T]) Mutate() *T {
	if !h.dirty {
		if _, held := h.d.locked[h.key]; held {
			h.d.logger.Warnf("key %s already locked by another live handle in this transaction", h.key)
		}
		h.d.locked[h.key] = struct{}{}
		h.dirty = true
	}
	return &h.value
}

// Flush serializes the handle's current value into the DIO's dirty set and
// releases this key's write lock, so a subsequent Load within the same DIO
// sees the update instead of LockedWhileDirty.
func (h *Handle[T]) Flush() error {
	if err := h.d.stageDirty(h.key, h.value); err != nil {
		return err
	}
	delete(h.d.locked, h.key)
	h.dirty = false
	return nil
}
