package hammersbald

import (
	crand "crypto/rand"
	"encoding/binary"

	"github.com/dchest/siphash"
)

// SipHashKeyBytes is the on-disk and in-memory size of the table's
// siphash key (§3, table header).
const SipHashKeyBytes = 16

// sipHashKey is the 128-bit keyed-hash key persisted in the table
// header. It is chosen randomly at creation and reloaded on every open
// so that hashing stays stable across reopens (§4.8, testable property
// 5).
type sipHashKey struct {
	k0, k1 uint64
}

func decodeSipHashKey(b []byte) sipHashKey {
	return sipHashKey{
		k0: binary.BigEndian.Uint64(b[0:8]),
		k1: binary.BigEndian.Uint64(b[8:16]),
	}
}

func (k sipHashKey) encode(b []byte) {
	binary.BigEndian.PutUint64(b[0:8], k.k0)
	binary.BigEndian.PutUint64(b[8:16], k.k1)
}

// hash64 returns the 64 bits of the keyed SipHash-128 of key used for
// slot resolution and chain-entry matching (§4.7). Which half of the
// 128-bit digest is used is an implementation detail; only internal
// consistency (same key, same bits, every time) matters.
func (k sipHashKey) hash64(key []byte) uint64 {
	_, lo := siphash.Hash128(k.k0, k.k1, key)
	return lo
}

// randomSipHashKey draws a fresh key from crypto/rand, used by Create
// when the caller does not supply one (§9, open question: default is
// fresh random at creation).
func randomSipHashKey() (sipHashKey, error) {
	var b [SipHashKeyBytes]byte
	if _, err := crand.Read(b[:]); err != nil {
		return sipHashKey{}, newError(KindIo, "randomSipHashKey", err)
	}
	return decodeSipHashKey(b[:]), nil
}
