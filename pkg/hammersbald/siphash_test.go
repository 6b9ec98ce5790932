package hammersbald

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSipHashKeyEncodeDecodeRoundTrip(t *testing.T) {
	k, err := randomSipHashKey()
	require.NoError(t, err)

	buf := make([]byte, SipHashKeyBytes)
	k.encode(buf)
	got := decodeSipHashKey(buf)
	assert.Equal(t, k, got)
}

func TestHash64IsDeterministicForSameKey(t *testing.T) {
	k, err := randomSipHashKey()
	require.NoError(t, err)

	a := k.hash64([]byte("same-input"))
	b := k.hash64([]byte("same-input"))
	assert.Equal(t, a, b)
}

func TestHash64DiffersAcrossSipHashKeys(t *testing.T) {
	k1, err := randomSipHashKey()
	require.NoError(t, err)
	k2, err := randomSipHashKey()
	require.NoError(t, err)

	// Not a mathematical guarantee, but collision odds are 2^-64; a flake
	// here would indicate a broken RNG, not bad luck.
	assert.NotEqual(t, k1.hash64([]byte("x")), k2.hash64([]byte("x")))
}

func TestRandomSipHashKeyIsNotAllZero(t *testing.T) {
	k, err := randomSipHashKey()
	require.NoError(t, err)
	assert.False(t, k.k0 == 0 && k.k1 == 0)
}
