package edge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/neuroglyph/git-mind-sub001/giterr"
	"github.com/neuroglyph/git-mind-sub001/oid"
)

func mustOID(t *testing.T, hexStr string) oid.OID {
	t.Helper()
	o, ok := oid.FromHex(hexStr)
	require.True(t, ok)
	return o
}

func sampleEdge(t *testing.T) Edge {
	return Edge{
		SrcOID:     mustOID(t, "1111111111111111111111111111111111111111"),
		TgtOID:     mustOID(t, "2222222222222222222222222222222222222222"),
		SrcSHA:     mustOID(t, "1111111111111111111111111111111111111111"),
		TgtSHA:     mustOID(t, "2222222222222222222222222222222222222222"),
		RelType:    RelReferences,
		Confidence: 1.0,
		Timestamp:  1700000000000,
		SrcPath:    "A",
		TgtPath:    "B",
		ULID:       "01ARZ3NDEKTSV4RRFFQ69G5FAV",
	}
}

func TestRoundTripBasicEdge(t *testing.T) {
	e := sampleEdge(t)
	b, err := Encode(e)
	require.NoError(t, err)

	got, n, err := Decode(b)
	require.NoError(t, err)
	require.Equal(t, len(b), n)
	require.Equal(t, e, got)
}

func TestRoundTripZeroOIDBackfillsFromSHA(t *testing.T) {
	e := sampleEdge(t)
	e.SrcOID = oid.Zero
	e.TgtOID = oid.Zero

	b, err := Encode(e)
	require.NoError(t, err)

	got, _, err := Decode(b)
	require.NoError(t, err)
	require.Equal(t, e.SrcSHA, got.SrcOID)
	require.Equal(t, e.TgtSHA, got.TgtOID)
}

func TestEqualityIgnoresPathsAndTimestamps(t *testing.T) {
	a := sampleEdge(t)
	b := a
	b.SrcPath = "different"
	b.Timestamp = 0
	b.ULID = "01ARZ3NDEKTSV4RRFFQ69G5FAW"

	require.True(t, a.Equal(b))
}

func TestPathTooLongFailsInvalidLength(t *testing.T) {
	e := sampleEdge(t)
	longPath := make([]byte, 4096)
	for i := range longPath {
		longPath[i] = 'a'
	}
	e.SrcPath = string(longPath) + "x" // 4097 bytes

	_, err := Encode(e)
	require.Error(t, err)
	require.Equal(t, giterr.InvalidLength, giterr.CodeOf(err))
}

func TestPathAtExactLimitEncodes(t *testing.T) {
	e := sampleEdge(t)
	longPath := make([]byte, 4095)
	for i := range longPath {
		longPath[i] = 'a'
	}
	e.SrcPath = string(longPath)

	_, err := Encode(e)
	require.NoError(t, err)
}

func TestMixedPayloadDecodesBothVariants(t *testing.T) {
	e1 := sampleEdge(t)
	e2 := AttributedEdge{
		Edge: sampleEdge(t),
		Attribution: Attribution{
			SourceType: SourceAIClaude,
			Author:     "claude",
			SessionID:  "sess-1",
			Flags:      0,
		},
		Lane: LaneAnalysis,
	}
	e2.ULID = "01ARZ3NDEKTSV4RRFFQ69G5FAW"

	b1, err := Encode(e1)
	require.NoError(t, err)
	b2, err := EncodeAttributed(e2)
	require.NoError(t, err)

	payload := append(append([]byte{}, b1...), b2...)

	rec1, n1, err := DecodeAny(payload)
	require.NoError(t, err)
	require.NotNil(t, rec1.Basic)
	require.Nil(t, rec1.Attributed)
	require.True(t, e1.Equal(*rec1.Basic))

	rec2, n2, err := DecodeAny(payload[n1:])
	require.NoError(t, err)
	require.NotNil(t, rec2.Attributed)
	require.Equal(t, len(payload)-n1, n2)
	require.Equal(t, e2.Attribution, rec2.Attributed.Attribution)
	require.Equal(t, e2.Lane, rec2.Attributed.Lane)
}

func TestTruncatedTrailingRecordFailsInvalidFormat(t *testing.T) {
	e := sampleEdge(t)
	b, err := Encode(e)
	require.NoError(t, err)

	truncated := b[:len(b)-2]
	_, _, err = DecodeAny(truncated)
	require.Error(t, err)
	require.Equal(t, giterr.InvalidFormat, giterr.CodeOf(err))
}

func TestUnknownFieldKeyIsRejected(t *testing.T) {
	e := sampleEdge(t)
	w, err := toWireBasic(e)
	require.NoError(t, err)
	wa := wireAttributed{wireBasic: w, SourceType: uint8(SourceHuman)}
	b, err := em.Marshal(wa)
	require.NoError(t, err)

	// An attributed-shaped record decoded via the basic decoder must be
	// rejected: the basic decoder treats attributed-only keys as unknown.
	_, _, err = Decode(b)
	require.Error(t, err)
}
