package oid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromHexRoundTrip(t *testing.T) {
	o, ok := FromHex("1122334455667788990011223344556677889900")
	require.True(t, ok)
	require.Equal(t, "1122334455667788990011223344556677889900", o.Hex())

	back, ok := FromBytes(o.Bytes())
	require.True(t, ok)
	require.Equal(t, o, back)
}

func TestPrefixBoundaries(t *testing.T) {
	o, ok := FromHex("ab34ff0000000000000000000000000000000000")
	require.True(t, ok)

	require.Equal(t, "", Prefix(o, 0))
	require.Equal(t, o.Hex()[:2], Prefix(o, 8))
	require.Equal(t, o.Hex()[:3], Prefix(o, 12))
}

func TestPrefixSharedLeadingBitsMatch(t *testing.T) {
	a, ok := FromHex("ab34ff0000000000000000000000000000000000")
	require.True(t, ok)
	b, ok := FromHex("ab34000000000000000000000000000000000001")
	require.True(t, ok)

	require.Equal(t, Prefix(a, 8), Prefix(b, 8))
}

func TestZeroIsSentinel(t *testing.T) {
	var o OID
	require.True(t, o.IsZero())

	o2, ok := FromHex("0000000000000000000000000000000000000000")
	require.True(t, ok)
	require.True(t, o2.IsZero())
}
