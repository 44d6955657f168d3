// Package stdcrypto is the default crypto-port adapter (spec §6). It is
// deliberately built on the standard library rather than a third-party
// crypto package: go-git itself wires crypto.SHA256 and a CSPRNG-backed
// hasher straight from the stdlib in plumbing/hash (only swapping in
// github.com/pjbgf/sha1cd for SHA-1 collision detection, which has no
// bearing on the SHA-256/CSPRNG pair this port exposes), so there is no
// ecosystem library in the pack that does this job better than
// crypto/sha256 and crypto/rand already do.
package stdcrypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
)

// Random implements ports.Random directly on crypto/rand.Reader.
type Random struct{}

func (Random) Read(p []byte) (int, error) {
	return rand.Read(p)
}

func (Random) Uint32() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint32(b[:])
}

func (Random) Uint64() uint64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint64(b[:])
}

// Hasher implements ports.Hasher on crypto/sha256.
type Hasher struct{}

func (Hasher) Sum256(data []byte) [32]byte {
	return sha256.Sum256(data)
}
