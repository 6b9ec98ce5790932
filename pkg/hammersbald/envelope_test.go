package hammersbald

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeEnvelopeRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		tag     Tag
		payload []byte
	}{
		{"keyed", TagKeyed, []byte{3, 'k', 'e', 'y', 'v', 'a', 'l'}},
		{"referenced-empty", TagReferenced, nil},
		{"referenced-nonempty", TagReferenced, []byte("value")},
		{"link", TagLink, bytes.Repeat([]byte{0xAB}, 20)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env, err := encodeEnvelope(tc.tag, tc.payload)
			require.NoError(t, err)

			tag, length, err := decodeEnvelopeHeader(env[:envelopeHeaderBytes])
			require.NoError(t, err)
			assert.Equal(t, tc.tag, tag)
			assert.Equal(t, len(tc.payload), length)
			// bytes.Equal, not assert.Equal: a nil payload round-trips
			// through a non-nil empty slice (the envelope buffer is
			// always allocated), and testify's []byte comparison treats
			// nil and empty as distinct.
			assert.True(t, bytes.Equal(tc.payload, env[envelopeHeaderBytes:]))
		})
	}
}

func TestEncodeEnvelopeRejectsEmptyKeyedOrLink(t *testing.T) {
	_, err := encodeEnvelope(TagKeyed, nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindCorrupt))

	_, err = encodeEnvelope(TagLink, nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindCorrupt))
}

func TestEncodeEnvelopeRejectsOversizePayload(t *testing.T) {
	_, err := encodeEnvelope(TagReferenced, make([]byte, maxPayloadLen+1))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindValueTooLarge))
}

func TestDecodeEnvelopeHeaderRejectsUnknownTag(t *testing.T) {
	b := []byte{0, 0, 1, 99}
	_, _, err := decodeEnvelopeHeader(b)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindCorrupt))
}

func TestKeyedPayloadRoundTrip(t *testing.T) {
	payload, err := encodeKeyedPayload([]byte("hello"), []byte("world"))
	require.NoError(t, err)

	key, value, err := decodeKeyedPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), key)
	assert.Equal(t, []byte("world"), value)
}

func TestEncodeKeyedPayloadRejectsBadKeyLength(t *testing.T) {
	_, err := encodeKeyedPayload(nil, []byte("v"))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindKeyTooLong))

	_, err = encodeKeyedPayload(bytes.Repeat([]byte{'a'}, maxKeyLen+1), []byte("v"))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindKeyTooLong))
}
