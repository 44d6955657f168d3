// Package cache implements the bitmap cache subsystem (spec §2 components
// B, F, G, H): the in-memory edge-map used during rebuild, the rebuilder,
// the meta reader and the stale detector.
package cache

import (
	"sort"

	"github.com/RoaringBitmap/roaring"

	"github.com/neuroglyph/git-mind-sub001/oid"
)

// EdgeMap is the mutable {OID -> bitmap of edge-ids} mapping built during
// a rebuild pass (spec §4.B). The C original backs this with a
// closed-address hash table and a non-keyed multiply-xor-shift mix sized
// by a caller-supplied bucket count; Go's native map already gives the
// same amortized behavior without hand-rolled bucket management, so
// EdgeMap is a thin, deterministic-iteration wrapper around one. It is
// not thread-safe and is only ever touched by the single-threaded
// rebuild path (spec §5).
type EdgeMap struct {
	entries map[oid.OID]*roaring.Bitmap
}

// NewEdgeMap creates an empty edge-map. bucketHint is accepted for
// parity with the original constructor signature (it seeds the native
// map's initial size) but has no effect on correctness.
func NewEdgeMap(bucketHint int) *EdgeMap {
	return &EdgeMap{entries: make(map[oid.OID]*roaring.Bitmap, bucketHint)}
}

// Add records that edgeID touches o. The edge-map owns every bitmap it
// creates.
func (m *EdgeMap) Add(o oid.OID, edgeID uint32) {
	b, ok := m.entries[o]
	if !ok {
		b = roaring.New()
		m.entries[o] = b
	}
	b.Add(edgeID)
}

// Len returns the number of distinct OIDs recorded.
func (m *EdgeMap) Len() int {
	return len(m.entries)
}

// Get returns the bitmap for o, or nil if o was never added.
func (m *EdgeMap) Get(o oid.OID) *roaring.Bitmap {
	return m.entries[o]
}

// VisitFunc is called once per (oid, bitmap) pair during Visit. A
// non-nil return halts the visit and is propagated as Visit's result,
// mirroring the C API's callback-return-halts contract (spec §4.B).
type VisitFunc func(o oid.OID, bitmap *roaring.Bitmap) error

// Visit walks every entry in a deterministic order (ascending OID bytes)
// so that rebuilds are reproducible independent of native map iteration
// order.
func (m *EdgeMap) Visit(fn VisitFunc) error {
	keys := make([]oid.OID, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Hex() < keys[j].Hex()
	})
	for _, k := range keys {
		if err := fn(k, m.entries[k]); err != nil {
			return err
		}
	}
	return nil
}
