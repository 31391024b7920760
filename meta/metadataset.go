package meta

// MetadataSet is the ordered, typed facet list attached to an event header.
// Order is preserved end to end: it is what makes header hashing
// deterministic and lets unknown facets round-trip untouched.
type MetadataSet []Facet

// Append returns a new MetadataSet with facet appended.
func (s MetadataSet) Append(facet Facet) MetadataSet {
	return append(append(MetadataSet(nil), s...), facet)
}

// WithoutSignature returns the set with every SignatureFacet removed, used
// when computing the header hash that a signature itself signs over.
func (s MetadataSet) WithoutSignature() MetadataSet {
	out := make(MetadataSet, 0, len(s))
	for _, f := range s {
		if f.Kind() == KindSignature {
			continue
		}
		out = append(out, f)
	}
	return out
}

// first returns the first facet of the given kind, if any.
func (s MetadataSet) first(kind Kind) (Facet, bool) {
	for _, f := range s {
		if f.Kind() == kind {
			return f, true
		}
	}
	return nil, false
}

// Data returns the DataFacet, if present.
func (s MetadataSet) Data() (DataFacet, bool) {
	f, ok := s.first(KindData)
	if !ok {
		return DataFacet{}, false
	}
	return f.(DataFacet), true
}

// Tombstone returns the TombstoneFacet, if present.
func (s MetadataSet) Tombstone() (TombstoneFacet, bool) {
	f, ok := s.first(KindTombstone)
	if !ok {
		return TombstoneFacet{}, false
	}
	return f.(TombstoneFacet), true
}

// Authorization returns the AuthorizationFacet, if present.
func (s MetadataSet) Authorization() (AuthorizationFacet, bool) {
	f, ok := s.first(KindAuthorization)
	if !ok {
		return AuthorizationFacet{}, false
	}
	return f.(AuthorizationFacet), true
}

// Tree returns the TreeFacet, if present.
func (s MetadataSet) Tree() (TreeFacet, bool) {
	f, ok := s.first(KindTree)
	if !ok {
		return TreeFacet{}, false
	}
	return f.(TreeFacet), true
}

// Author returns the AuthorFacet, if present.
func (s MetadataSet) Author() (AuthorFacet, bool) {
	f, ok := s.first(KindAuthor)
	if !ok {
		return AuthorFacet{}, false
	}
	return f.(AuthorFacet), true
}

// Timestamp returns the TimestampFacet, if present.
func (s MetadataSet) Timestamp() (TimestampFacet, bool) {
	f, ok := s.first(KindTimestamp)
	if !ok {
		return TimestampFacet{}, false
	}
	return f.(TimestampFacet), true
}

// Signatures returns every SignatureFacet on the set (an event may carry
// more than one signature when multiple write keys co-sign).
func (s MetadataSet) Signatures() []SignatureFacet {
	var out []SignatureFacet
	for _, f := range s {
		if sig, ok := f.(SignatureFacet); ok {
			out = append(out, sig)
		}
	}
	return out
}

// PublicKey returns the PublicKeyFacet, if present.
func (s MetadataSet) PublicKey() (PublicKeyFacet, bool) {
	f, ok := s.first(KindPublicKey)
	if !ok {
		return PublicKeyFacet{}, false
	}
	return f.(PublicKeyFacet), true
}

// EncryptedEncryptionKey returns the EncryptedEncryptionKeyFacet, if present.
func (s MetadataSet) EncryptedEncryptionKey() (EncryptedEncryptionKeyFacet, bool) {
	f, ok := s.first(KindEncryptedEncryptionKey)
	if !ok {
		return EncryptedEncryptionKeyFacet{}, false
	}
	return f.(EncryptedEncryptionKeyFacet), true
}

// InitializationVector returns the InitializationVectorFacet, if present.
func (s MetadataSet) InitializationVector() (InitializationVectorFacet, bool) {
	f, ok := s.first(KindInitializationVector)
	if !ok {
		return InitializationVectorFacet{}, false
	}
	return f.(InitializationVectorFacet), true
}
