package cryptography_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainvault/chainvault/cryptography"
)

func TestEncryptKeySealOpenRoundTrip(t *testing.T) {
	for _, size := range []cryptography.KeySize{cryptography.KeySize128, cryptography.KeySize192, cryptography.KeySize256} {
		key, err := cryptography.GenerateEncryptKey(size)
		require.NoError(t, err)
		require.Equal(t, size, key.Size())

		ciphertext, iv, err := key.Seal([]byte("hello chain"))
		require.NoError(t, err)
		require.NotEqual(t, []byte("hello chain"), ciphertext)

		plaintext, err := key.Open(ciphertext, iv)
		require.NoError(t, err)
		require.Equal(t, "hello chain", string(plaintext))
	}
}

func TestEncryptKeyOpenFailsWithWrongIV(t *testing.T) {
	key, err := cryptography.GenerateEncryptKey(cryptography.KeySize256)
	require.NoError(t, err)

	ciphertext, _, err := key.Seal([]byte("secret"))
	require.NoError(t, err)

	wrongIV, err := cryptography.NewInitializationVector()
	require.NoError(t, err)

	_, err = key.Open(ciphertext, wrongIV)
	require.Error(t, err)
}

func TestGenerateEncryptKeyRejectsUnsupportedSize(t *testing.T) {
	_, err := cryptography.GenerateEncryptKey(cryptography.KeySize(64))
	require.ErrorIs(t, err, cryptography.ErrUnsupportedKeySize)
}

func TestFromSeedBytesIsDeterministic(t *testing.T) {
	seed := []byte("shared secret material")
	k1, err := cryptography.FromSeedBytes(seed, cryptography.KeySize256, "body-key")
	require.NoError(t, err)
	k2, err := cryptography.FromSeedBytes(seed, cryptography.KeySize256, "body-key")
	require.NoError(t, err)
	require.Equal(t, k1.Bytes(), k2.Bytes())

	k3, err := cryptography.FromSeedBytes(seed, cryptography.KeySize256, "different-info")
	require.NoError(t, err)
	require.NotEqual(t, k1.Bytes(), k3.Bytes(), "distinct info strings must domain-separate derived keys")
}

func TestSealOpenGenericRoundTrip(t *testing.T) {
	type payload struct {
		Name string
		N    int
	}
	key, err := cryptography.GenerateEncryptKey(cryptography.KeySize256)
	require.NoError(t, err)

	sealed, err := cryptography.Seal(key, payload{Name: "alpha", N: 7})
	require.NoError(t, err)

	opened, err := cryptography.Open[payload](key, sealed)
	require.NoError(t, err)
	require.Equal(t, payload{Name: "alpha", N: 7}, opened)
}
