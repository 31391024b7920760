package meta_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chainvault/chainvault/cryptography"
	"github.com/chainvault/chainvault/meta"
)

func sampleSet(key meta.PrimaryKey) meta.MetadataSet {
	return meta.MetadataSet{}.
		Append(meta.DataFacet{Key: key}).
		Append(meta.AuthorFacet{Identity: "tester"}).
		Append(meta.TimestampFacet{When: time.Now().UTC().Truncate(time.Millisecond)}).
		// Raw holds an already-encoded payload; "1" is one well-formed item
		// in both JSON and CBOR.
		Append(meta.UnknownFacet{Raw: []byte("1")})
}

// Both wire formats must round-trip a MetadataSet losslessly, including an
// UnknownFacet whose Kind the codec doesn't recognize.
func TestCodecRoundTripBothFormats(t *testing.T) {
	for _, format := range []meta.Format{meta.Bincode, meta.Json} {
		t.Run(string(format), func(t *testing.T) {
			codec, err := meta.NewCodec(format)
			require.NoError(t, err)
			require.Equal(t, format, codec.Format())

			key := meta.NewPrimaryKey()
			set := sampleSet(key)

			encoded, err := codec.EncodeMetadata(set)
			require.NoError(t, err)
			decoded, err := codec.DecodeMetadata(encoded)
			require.NoError(t, err)
			require.Len(t, decoded, len(set))

			data, ok := decoded.Data()
			require.True(t, ok)
			require.Equal(t, key, data.Key)

			author, ok := decoded.Author()
			require.True(t, ok)
			require.Equal(t, "tester", author.Identity)
		})
	}
}

func TestCodecEncodeHeaderRoundTrip(t *testing.T) {
	codec, err := meta.NewCodec(meta.Bincode)
	require.NoError(t, err)

	key := meta.NewPrimaryKey()
	header := meta.Header{Key: key, Metadata: sampleSet(key)}

	raw, err := meta.EncodeHeader(codec, header)
	require.NoError(t, err)

	decoded, err := meta.DecodeHeader(codec, raw)
	require.NoError(t, err)
	require.Equal(t, key, decoded.Key)
	require.Len(t, decoded.Metadata, len(header.Metadata))
}

func TestCodecUnknownFormatErrors(t *testing.T) {
	_, err := meta.NewCodec(meta.Format("nonsense"))
	require.Error(t, err)
}

// HeaderHash must be stable across encoding formats (it always hashes its
// own canonical CBOR representation) and must change whenever a non-
// signature facet changes, but must be blind to SignatureFacet entries.
func TestHeaderHashExcludesSignatureButCoversOtherFacets(t *testing.T) {
	key := meta.NewPrimaryKey()
	base := meta.MetadataSet{}.Append(meta.DataFacet{Key: key})

	h1, err := meta.HeaderHash(key, base)
	require.NoError(t, err)

	withSig := base.Append(meta.SignatureFacet{
		SignerHash: cryptography.Hash{},
		Signature:  []byte("does-not-matter"),
	})
	h2, err := meta.HeaderHash(key, withSig)
	require.NoError(t, err)
	require.Equal(t, h1, h2, "signature facets must not affect the header hash")

	withAuthor := base.Append(meta.AuthorFacet{Identity: "someone"})
	h3, err := meta.HeaderHash(key, withAuthor)
	require.NoError(t, err)
	require.NotEqual(t, h1, h3, "a non-signature facet change must change the hash")
}

func TestHeaderHashDifferentKeysDiffer(t *testing.T) {
	k1 := meta.NewPrimaryKey()
	k2 := meta.NewPrimaryKey()
	set := meta.MetadataSet{}.Append(meta.DataFacet{Key: k1})

	h1, err := meta.HeaderHash(k1, set)
	require.NoError(t, err)
	h2, err := meta.HeaderHash(k2, set)
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}
