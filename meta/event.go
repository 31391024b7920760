package meta

import "github.com/chainvault/chainvault/cryptography"

// Header is the durable, signed portion of an event: the object it
// describes plus its typed metadata facets.
type Header struct {
	Key      PrimaryKey
	Metadata MetadataSet
}

// Event is one immutable, durable record: a header plus an optional opaque
// body. A tombstone event (Metadata.Tombstone present) typically carries no
// body.
type Event struct {
	Header Header
	Body   []byte
}

// Hash computes this event's header hash (excluding any SignatureFacet).
func (e Event) Hash() (cryptography.Hash, error) {
	return HeaderHash(e.Header.Key, e.Header.Metadata)
}

// IsTombstone reports whether this event tombstones its PrimaryKey.
func (e Event) IsTombstone() bool {
	_, ok := e.Header.Metadata.Tombstone()
	return ok
}
