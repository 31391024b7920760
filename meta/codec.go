package meta

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Format selects the wire encoding used for metadata or body bytes.
// Bincode is a compact binary format (backed here by CBOR, since the
// toolchain doesn't carry a literal bincode implementation but CBOR gives
// the same compact, self-describing binary properties); Json is the
// human-readable alternative. Both MUST be losslessly round-trippable.
type Format string

const (
	Bincode Format = "bincode"
	Json    Format = "json"
)

// Codec encodes and decodes MetadataSets and arbitrary user values in one
// chosen Format.
type Codec interface {
	Format() Format
	EncodeMetadata(MetadataSet) ([]byte, error)
	DecodeMetadata([]byte) (MetadataSet, error)
	EncodeValue(v any) ([]byte, error)
	DecodeValue(data []byte, out any) error
}

// EncodeHeader encodes a full Header (key + metadata) to the bytes stored
// as a redo log record's meta_bytes.
func EncodeHeader(c Codec, h Header) ([]byte, error) {
	metaBytes, err := c.EncodeMetadata(h.Metadata)
	if err != nil {
		return nil, err
	}
	wrapped := struct {
		Key  PrimaryKey `cbor:"key" json:"key"`
		Meta []byte     `cbor:"meta" json:"meta"`
	}{Key: h.Key, Meta: metaBytes}
	return c.EncodeValue(wrapped)
}

// DecodeHeader reverses EncodeHeader.
func DecodeHeader(c Codec, data []byte) (Header, error) {
	var wrapped struct {
		Key  PrimaryKey `cbor:"key" json:"key"`
		Meta []byte     `cbor:"meta" json:"meta"`
	}
	if err := c.DecodeValue(data, &wrapped); err != nil {
		return Header{}, fmt.Errorf("meta: decode header envelope: %w", err)
	}
	set, err := c.DecodeMetadata(wrapped.Meta)
	if err != nil {
		return Header{}, err
	}
	return Header{Key: wrapped.Key, Metadata: set}, nil
}

// NewCodec returns the Codec implementation for the requested Format.
func NewCodec(f Format) (Codec, error) {
	switch f {
	case Bincode:
		return bincodeCodec{}, nil
	case Json:
		return jsonCodec{}, nil
	default:
		return nil, fmt.Errorf("meta: unknown serialization format %q", f)
	}
}

// wireFacet is the on-the-wire envelope for one facet: a Kind discriminator
// plus the facet's own payload, encoded in whatever format the outer
// MetadataSet uses. An unrecognized Kind is kept as opaque Payload bytes so
// replay never drops data written by a newer chain.
type wireFacet struct {
	Kind    Kind            `cbor:"kind" json:"kind"`
	Payload cbor.RawMessage `cbor:"payload" json:"-"`
	RawJSON json.RawMessage `cbor:"-" json:"payload"`
}

func facetPayload(marshal func(any) ([]byte, error), f Facet) ([]byte, error) {
	switch v := f.(type) {
	case UnknownFacet:
		return v.Raw, nil
	default:
		return marshal(f)
	}
}

func decodeFacet(kind Kind, payload []byte, unmarshal func([]byte, any) error) (Facet, error) {
	switch kind {
	case KindData:
		var v DataFacet
		err := unmarshal(payload, &v)
		return v, err
	case KindTombstone:
		var v TombstoneFacet
		err := unmarshal(payload, &v)
		return v, err
	case KindAuthorization:
		var v AuthorizationFacet
		err := unmarshal(payload, &v)
		return v, err
	case KindTree:
		var v TreeFacet
		err := unmarshal(payload, &v)
		return v, err
	case KindAuthor:
		var v AuthorFacet
		err := unmarshal(payload, &v)
		return v, err
	case KindTimestamp:
		var v TimestampFacet
		err := unmarshal(payload, &v)
		return v, err
	case KindSignature:
		var v SignatureFacet
		err := unmarshal(payload, &v)
		return v, err
	case KindPublicKey:
		var v PublicKeyFacet
		err := unmarshal(payload, &v)
		return v, err
	case KindEncryptedPrivateKey:
		var v EncryptedPrivateKeyFacet
		err := unmarshal(payload, &v)
		return v, err
	case KindEncryptedEncryptionKey:
		var v EncryptedEncryptionKeyFacet
		err := unmarshal(payload, &v)
		return v, err
	case KindInitializationVector:
		var v InitializationVectorFacet
		err := unmarshal(payload, &v)
		return v, err
	default:
		return UnknownFacet{kind: kind, Raw: append([]byte(nil), payload...)}, nil
	}
}

// --- Bincode (CBOR) codec ---

type bincodeCodec struct{}

func (bincodeCodec) Format() Format { return Bincode }

func (bincodeCodec) EncodeMetadata(set MetadataSet) ([]byte, error) {
	wire := make([]wireFacet, 0, len(set))
	for _, f := range set {
		payload, err := facetPayload(cbor.Marshal, f)
		if err != nil {
			return nil, fmt.Errorf("meta: encode facet %s: %w", f.Kind(), err)
		}
		wire = append(wire, wireFacet{Kind: f.Kind(), Payload: payload})
	}
	out, err := cbor.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("meta: encode metadata: %w", err)
	}
	return out, nil
}

func (bincodeCodec) DecodeMetadata(data []byte) (MetadataSet, error) {
	var wire []wireFacet
	if err := cbor.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("meta: decode metadata: %w", err)
	}
	set := make(MetadataSet, 0, len(wire))
	for _, w := range wire {
		f, err := decodeFacet(w.Kind, w.Payload, cbor.Unmarshal)
		if err != nil {
			return nil, fmt.Errorf("meta: decode facet %s: %w", w.Kind, err)
		}
		set = append(set, f)
	}
	return set, nil
}

func (bincodeCodec) EncodeValue(v any) ([]byte, error) {
	out, err := cbor.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("meta: encode value: %w", err)
	}
	return out, nil
}

func (bincodeCodec) DecodeValue(data []byte, out any) error {
	if err := cbor.Unmarshal(data, out); err != nil {
		return fmt.Errorf("meta: decode value: %w", err)
	}
	return nil
}

// --- JSON codec ---

type jsonCodec struct{}

func (jsonCodec) Format() Format { return Json }

func (jsonCodec) EncodeMetadata(set MetadataSet) ([]byte, error) {
	wire := make([]wireFacet, 0, len(set))
	for _, f := range set {
		payload, err := facetPayload(json.Marshal, f)
		if err != nil {
			return nil, fmt.Errorf("meta: encode facet %s: %w", f.Kind(), err)
		}
		wire = append(wire, wireFacet{Kind: f.Kind(), RawJSON: payload})
	}
	out, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("meta: encode metadata: %w", err)
	}
	return out, nil
}

func (jsonCodec) DecodeMetadata(data []byte) (MetadataSet, error) {
	var wire []wireFacet
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("meta: decode metadata: %w", err)
	}
	set := make(MetadataSet, 0, len(wire))
	for _, w := range wire {
		f, err := decodeFacet(w.Kind, w.RawJSON, func(b []byte, out any) error { return json.Unmarshal(b, out) })
		if err != nil {
			return nil, fmt.Errorf("meta: decode facet %s: %w", w.Kind, err)
		}
		set = append(set, f)
	}
	return set, nil
}

func (jsonCodec) EncodeValue(v any) ([]byte, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("meta: encode value: %w", err)
	}
	return out, nil
}

func (jsonCodec) DecodeValue(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("meta: decode value: %w", err)
	}
	return nil
}
