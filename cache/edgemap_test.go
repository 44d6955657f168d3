package cache

import (
	"errors"
	"testing"

	"github.com/RoaringBitmap/roaring"
	"github.com/stretchr/testify/require"

	"github.com/neuroglyph/git-mind-sub001/oid"
)

func oidWithFirstByte(b byte) oid.OID {
	var o oid.OID
	o[0] = b
	return o
}

func TestEdgeMapAddAndGet(t *testing.T) {
	m := NewEdgeMap(0)
	a := oidWithFirstByte(0x0A)

	m.Add(a, 1)
	m.Add(a, 7)
	m.Add(oidWithFirstByte(0x0B), 2)

	require.Equal(t, 2, m.Len())
	require.True(t, m.Get(a).Contains(1))
	require.True(t, m.Get(a).Contains(7))
	require.Nil(t, m.Get(oidWithFirstByte(0xFF)))
}

func TestEdgeMapVisitIsOrderedByOID(t *testing.T) {
	m := NewEdgeMap(0)
	// Insert out of order; Visit must come back ascending regardless.
	for _, b := range []byte{0xC0, 0x01, 0x7F, 0x33} {
		m.Add(oidWithFirstByte(b), uint32(b))
	}

	var seen []byte
	err := m.Visit(func(o oid.OID, _ *roaring.Bitmap) error {
		seen = append(seen, o[0])
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x33, 0x7F, 0xC0}, seen)
}

func TestEdgeMapVisitHaltPropagates(t *testing.T) {
	m := NewEdgeMap(0)
	m.Add(oidWithFirstByte(0x01), 1)
	m.Add(oidWithFirstByte(0x02), 2)

	halt := errors.New("stop here")
	visited := 0
	err := m.Visit(func(oid.OID, *roaring.Bitmap) error {
		visited++
		return halt
	})
	require.ErrorIs(t, err, halt)
	require.Equal(t, 1, visited)
}
