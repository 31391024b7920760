package meta

import (
	"fmt"

	"github.com/google/uuid"
)

// PrimaryKey identifies an object within a chain: a 128-bit opaque value,
// globally unique, generated on first store. Backed by google/uuid so that
// generation, string round-tripping, and binary encoding come for free.
type PrimaryKey struct {
	id uuid.UUID
}

// NewPrimaryKey allocates a fresh, random PrimaryKey.
func NewPrimaryKey() PrimaryKey {
	return PrimaryKey{id: uuid.New()}
}

// ParsePrimaryKey decodes a canonical UUID string into a PrimaryKey.
func ParsePrimaryKey(s string) (PrimaryKey, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return PrimaryKey{}, fmt.Errorf("meta: parse primary key: %w", err)
	}
	return PrimaryKey{id: id}, nil
}

// PrimaryKeyFromBytes decodes a 16-byte slice into a PrimaryKey.
func PrimaryKeyFromBytes(b []byte) (PrimaryKey, error) {
	id, err := uuid.FromBytes(b)
	if err != nil {
		return PrimaryKey{}, fmt.Errorf("meta: primary key from bytes: %w", err)
	}
	return PrimaryKey{id: id}, nil
}

// Bytes returns the raw 16-byte encoding.
func (k PrimaryKey) Bytes() []byte {
	b := k.id
	return b[:]
}

// String renders the canonical UUID form.
func (k PrimaryKey) String() string { return k.id.String() }

// IsZero reports whether this is the unset PrimaryKey value.
func (k PrimaryKey) IsZero() bool { return k.id == uuid.Nil }

// MarshalText implements encoding.TextMarshaler so PrimaryKey can be used
// directly as a JSON object key or value under the Json codec.
func (k PrimaryKey) MarshalText() ([]byte, error) { return []byte(k.id.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *PrimaryKey) UnmarshalText(text []byte) error {
	id, err := uuid.ParseBytes(text)
	if err != nil {
		return fmt.Errorf("meta: unmarshal primary key: %w", err)
	}
	k.id = id
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler. fxamacker/cbor only
// honors cbor.Marshaler or encoding.BinaryMarshaler, never TextMarshaler, so
// the Bincode codec needs this pair or PrimaryKey fields silently encode as
// an empty map and decode back as the nil UUID.
func (k PrimaryKey) MarshalBinary() ([]byte, error) { return k.id.MarshalBinary() }

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (k *PrimaryKey) UnmarshalBinary(data []byte) error {
	id, err := uuid.FromBytes(data)
	if err != nil {
		return fmt.Errorf("meta: unmarshal binary primary key: %w", err)
	}
	k.id = id
	return nil
}
