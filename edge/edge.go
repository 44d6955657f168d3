// Package edge defines the canonical edge record (spec §3) and its
// CBOR wire codec (spec §4.A). Types follow go-git's plumbing/object
// style: small immutable value structs with explicit constructors and
// Equal methods, no hidden global state.
package edge

import (
	"github.com/neuroglyph/git-mind-sub001/oid"
)

// RelType is the 16-bit relationship tag. Unknown codes round-trip as
// opaque integers, so this is deliberately not a closed enum check at
// decode time.
type RelType uint16

const (
	RelImplements RelType = iota
	RelReferences
	RelDependsOn
	RelAugments
	RelCustom
)

// SourceType identifies who authored an attributed edge.
type SourceType uint8

const (
	SourceHuman SourceType = iota
	SourceAIClaude
	SourceAIGPT
	SourceAIOther
	SourceSystem
	SourceImport
	SourceUnknown
)

// Lane partitions edges by purpose.
type Lane uint8

const (
	LaneDefault Lane = iota
	LaneArchitecture
	LaneTesting
	LaneRefactor
	LaneAnalysis
	LaneCustom
)

// Default confidences from spec §3.
const (
	ConfidenceHuman   = 1.0
	ConfidenceAIEdge  = 0.85
	maxPathBytes      = 4096
	maxAuthorBytes    = 64
	maxSessionIDBytes = 32
	ulidLength        = 26
)

// Attribution is provenance metadata attached to an AttributedEdge.
type Attribution struct {
	SourceType SourceType
	Author     string
	SessionID  string
	Flags      uint32
}

// Edge is the basic edge record (spec §3, 10-field variant).
type Edge struct {
	SrcOID     oid.OID
	TgtOID     oid.OID
	SrcSHA     oid.OID
	TgtSHA     oid.OID
	RelType    RelType
	Confidence float32 // stored/encoded as IEEE-754 half precision
	Timestamp  uint64  // milliseconds since Unix epoch
	SrcPath    string
	TgtPath    string
	ULID       string
}

// AttributedEdge is the 15-field variant: a basic edge plus attribution
// and lane.
type AttributedEdge struct {
	Edge
	Attribution Attribution
	Lane        Lane
}

// identityOIDs returns the OID pair used for identity, applying the
// SHA fallback from spec §3 when either OID side is zero.
func (e Edge) identityOIDs() (oid.OID, oid.OID, bool) {
	if !e.SrcOID.IsZero() && !e.TgtOID.IsZero() {
		return e.SrcOID, e.TgtOID, true
	}
	return e.SrcSHA, e.TgtSHA, false
}

// Equal implements the identity rule from spec §3: two edges are equal
// iff (src_oid, tgt_oid, rel_type) match by OID, falling back to
// (src_sha, tgt_sha, rel_type) when either side has a zero OID. Paths,
// timestamps, confidence, ULID and attribution never participate.
func (e Edge) Equal(o Edge) bool {
	if e.RelType != o.RelType {
		return false
	}
	aSrc, aTgt, _ := e.identityOIDs()
	bSrc, bTgt, _ := o.identityOIDs()
	return aSrc.Equal(bSrc) && aTgt.Equal(bTgt)
}

// BackfillOIDs applies the decoder's back-fill law: when an OID side is
// zero but the matching legacy SHA is set, the OID is populated from the
// SHA. The inverse is never performed.
func (e *Edge) BackfillOIDs() {
	if e.SrcOID.IsZero() && !e.SrcSHA.IsZero() {
		e.SrcOID = e.SrcSHA
	}
	if e.TgtOID.IsZero() && !e.TgtSHA.IsZero() {
		e.TgtOID = e.TgtSHA
	}
}
