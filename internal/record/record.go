// Package record defines the persisted unit of the sequence log: a
// sequence id encoded as a fixed-width big-endian key plus an opaque payload.
package record

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// KeySize is the width in bytes of an encoded sequence key.
const KeySize = 8

// ErrKeyLength indicates a stored key that is not KeySize bytes wide.
var ErrKeyLength = errors.New("record: key must be 8 bytes")

// Record is one (sequence id, payload) pair as persisted by the store.
type Record struct {
	Seq     uint64
	Payload []byte
}

// EncodeKey renders seq as an 8-byte big-endian key. Byte-lexicographic
// order of encoded keys equals numeric order of the ids.
func EncodeKey(seq uint64) []byte {
	return AppendKey(make([]byte, 0, KeySize), seq)
}

// AppendKey appends the encoded key for seq to dst.
func AppendKey(dst []byte, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(dst, seq)
}

// DecodeKey parses an encoded key back into its sequence id.
func DecodeKey(key []byte) (uint64, error) {
	if len(key) != KeySize {
		return 0, fmt.Errorf("%w: got %d", ErrKeyLength, len(key))
	}
	return binary.BigEndian.Uint64(key), nil
}

// Clone returns a copy of r whose payload does not alias r.Payload.
func (r Record) Clone() Record {
	out := Record{Seq: r.Seq}
	if r.Payload != nil {
		out.Payload = append([]byte(nil), r.Payload...)
	}
	return out
}
