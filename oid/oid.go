// Package oid implements the 20-byte object-id value type (component C's
// prefix sharder lives alongside it), modeled on go-git's
// plumbing.ObjectID: a fixed-size byte array with a lazily rendered hex
// string, equality by byte comparison, and a zero value as the "unset"
// sentinel.
package oid

import (
	"encoding/hex"
)

// Size is the byte length of an OID (a SHA-1 object id in the host
// repository's object database).
const Size = 20

// OID is an opaque 20-byte content-address. The zero value means "unset".
type OID [Size]byte

// Zero is the sentinel "unset" OID.
var Zero OID

// FromBytes copies a 20-byte slice into an OID. It returns false if b is not
// exactly Size bytes long.
func FromBytes(b []byte) (OID, bool) {
	var o OID
	if len(b) != Size {
		return o, false
	}
	copy(o[:], b)
	return o, true
}

// FromHex decodes a 40-char lowercase hex string into an OID.
func FromHex(s string) (OID, bool) {
	var o OID
	if len(s) != Size*2 {
		return o, false
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return o, false
	}
	copy(o[:], b)
	return o, true
}

// IsZero reports whether o is the unset sentinel.
func (o OID) IsZero() bool {
	return o == Zero
}

// Hex renders the auxiliary 40-char lowercase hex form used in log
// messages and file-name sharding.
func (o OID) Hex() string {
	return hex.EncodeToString(o[:])
}

// String satisfies fmt.Stringer with the same rendering as Hex.
func (o OID) String() string {
	return o.Hex()
}

// Bytes returns the 20-byte binary form.
func (o OID) Bytes() []byte {
	return o[:]
}

// Equal reports byte-wise equality.
func (o OID) Equal(other OID) bool {
	return o == other
}
