package edge

import (
	"bytes"
	"unicode/utf8"

	"github.com/fxamacker/cbor/v2"
	"github.com/x448/float16"

	"github.com/neuroglyph/git-mind-sub001/giterr"
	"github.com/neuroglyph/git-mind-sub001/oid"
)

// Field keys from spec §4.A. Basic edges use keys 0-9 (10 fields,
// oids included); attributed edges add keys 10-14.
const (
	keyRelTypeN = iota
	keyConfidenceN
	keyTimestampN
	keySrcPathN
	keyTgtPathN
	keyULIDN
	keySrcSHAN
	keyTgtSHAN
	keySrcOIDN
	keyTgtOIDN
	keySourceTypeN
	keyAuthorN
	keySessionIDN
	keyFlagsN
	keyLaneN
)

var basicKeys = map[uint64]bool{
	keyRelTypeN: true, keyConfidenceN: true, keyTimestampN: true,
	keySrcPathN: true, keyTgtPathN: true, keyULIDN: true,
	keySrcSHAN: true, keyTgtSHAN: true, keySrcOIDN: true, keyTgtOIDN: true,
}

var attributedOnlyKeys = map[uint64]bool{
	keySourceTypeN: true, keyAuthorN: true, keySessionIDN: true,
	keyFlagsN: true, keyLaneN: true,
}

// wireBasic is the 10-field CBOR map shape for a basic edge.
type wireBasic struct {
	RelType    uint16 `cbor:"0,keyasint"`
	Confidence uint16 `cbor:"1,keyasint"` // IEEE-754 half precision bits
	Timestamp  uint64 `cbor:"2,keyasint"`
	SrcPath    string `cbor:"3,keyasint"`
	TgtPath    string `cbor:"4,keyasint"`
	ULID       string `cbor:"5,keyasint"`
	SrcSHA     []byte `cbor:"6,keyasint"`
	TgtSHA     []byte `cbor:"7,keyasint"`
	SrcOID     []byte `cbor:"8,keyasint"`
	TgtOID     []byte `cbor:"9,keyasint"`
}

// wireAttributed is the 15-field CBOR map shape for an attributed edge.
type wireAttributed struct {
	wireBasic
	SourceType uint8  `cbor:"10,keyasint"`
	Author     string `cbor:"11,keyasint"`
	SessionID  string `cbor:"12,keyasint"`
	Flags      uint32 `cbor:"13,keyasint"`
	Lane       uint8  `cbor:"14,keyasint"`
}

var em, _ = cbor.CTAP2EncOptions().EncMode()

func validatePath(p string, field string) error {
	if len(p) > maxPathBytes {
		return giterr.New(giterr.InvalidLength, field+" exceeds 4096 bytes")
	}
	if !utf8.ValidString(p) {
		return giterr.New(giterr.InvalidFormat, field+" is not valid UTF-8")
	}
	return nil
}

func toWireBasic(e Edge) (wireBasic, error) {
	if err := validatePath(e.SrcPath, "src_path"); err != nil {
		return wireBasic{}, err
	}
	if err := validatePath(e.TgtPath, "tgt_path"); err != nil {
		return wireBasic{}, err
	}
	if len(e.ULID) != ulidLength {
		return wireBasic{}, giterr.New(giterr.InvalidLength, "ulid must be exactly 26 bytes")
	}

	oidBytes := e.SrcOID
	if oidBytes.IsZero() {
		oidBytes = e.SrcSHA
	}
	tidBytes := e.TgtOID
	if tidBytes.IsZero() {
		tidBytes = e.TgtSHA
	}

	return wireBasic{
		RelType:    uint16(e.RelType),
		Confidence: float16.Fromfloat32(e.Confidence).Bits(),
		Timestamp:  e.Timestamp,
		SrcPath:    e.SrcPath,
		TgtPath:    e.TgtPath,
		ULID:       e.ULID,
		SrcSHA:     e.SrcSHA.Bytes(),
		TgtSHA:     e.TgtSHA.Bytes(),
		SrcOID:     oidBytes.Bytes(),
		TgtOID:     tidBytes.Bytes(),
	}, nil
}

// Encode serializes a basic edge to an owned byte slice. Go's allocator
// removes the C API's fixed-output-buffer failure mode for the common
// path; EncodeInto below preserves BufferTooSmall for callers that do
// supply a bound buffer.
func Encode(e Edge) ([]byte, error) {
	w, err := toWireBasic(e)
	if err != nil {
		return nil, err
	}
	b, err := em.Marshal(w)
	if err != nil {
		return nil, giterr.Wrap(giterr.InvalidFormat, err, "encode basic edge")
	}
	return b, nil
}

// EncodeAttributed serializes an attributed edge to an owned byte slice.
func EncodeAttributed(e AttributedEdge) ([]byte, error) {
	wb, err := toWireBasic(e.Edge)
	if err != nil {
		return nil, err
	}
	if len(e.Attribution.Author) > maxAuthorBytes {
		return nil, giterr.New(giterr.InvalidLength, "author exceeds 64 bytes")
	}
	if len(e.Attribution.SessionID) > maxSessionIDBytes {
		return nil, giterr.New(giterr.InvalidLength, "session_id exceeds 32 bytes")
	}
	w := wireAttributed{
		wireBasic:  wb,
		SourceType: uint8(e.Attribution.SourceType),
		Author:     e.Attribution.Author,
		SessionID:  e.Attribution.SessionID,
		Flags:      e.Attribution.Flags,
		Lane:       uint8(e.Lane),
	}
	b, err := em.Marshal(w)
	if err != nil {
		return nil, giterr.Wrap(giterr.InvalidFormat, err, "encode attributed edge")
	}
	return b, nil
}

// EncodeInto writes the encoded form of e into buf, returning the number
// of bytes written. It fails with BufferTooSmall when buf cannot hold the
// encoded record.
func EncodeInto(buf []byte, e Edge) (int, error) {
	b, err := Encode(e)
	if err != nil {
		return 0, err
	}
	if len(buf) < len(b) {
		return 0, giterr.New(giterr.BufferTooSmall, "output buffer too small for encoded edge")
	}
	return copy(buf, b), nil
}

// fieldSet decodes the top-level CBOR map into a key->raw-value table,
// tracking how many bytes of payload were consumed so callers can walk a
// concatenated stream of records. Duplicate keys resolve to their last
// occurrence because later map entries simply overwrite earlier ones in
// the destination Go map.
func fieldSet(payload []byte) (map[uint64]cbor.RawMessage, int, error) {
	dec := cbor.NewDecoder(bytes.NewReader(payload))
	raw := map[uint64]cbor.RawMessage{}
	if err := dec.Decode(&raw); err != nil {
		return nil, 0, giterr.Wrap(giterr.InvalidFormat, err, "decode edge record header")
	}
	if len(raw) > 23 {
		return nil, 0, giterr.New(giterr.InvalidFormat, "edge record field count exceeds small immediate form")
	}
	return raw, dec.NumBytesRead(), nil
}

func decodeBytesField(raw map[uint64]cbor.RawMessage, key uint64) (oid.OID, error) {
	v, ok := raw[key]
	if !ok {
		return oid.Zero, nil
	}
	var b []byte
	if err := cbor.Unmarshal(v, &b); err != nil {
		return oid.Zero, giterr.Wrap(giterr.InvalidType, err, "decode oid field")
	}
	if len(b) == 0 {
		return oid.Zero, nil
	}
	o, ok := oid.FromBytes(b)
	if !ok {
		return oid.Zero, giterr.New(giterr.InvalidFormat, "oid field is not 20 bytes")
	}
	return o, nil
}

func decodeStringField(raw map[uint64]cbor.RawMessage, key uint64) (string, error) {
	v, ok := raw[key]
	if !ok {
		return "", nil
	}
	var s string
	if err := cbor.Unmarshal(v, &s); err != nil {
		return "", giterr.Wrap(giterr.InvalidType, err, "decode text field")
	}
	return s, nil
}

func decodeUintField(raw map[uint64]cbor.RawMessage, key uint64) (uint64, error) {
	v, ok := raw[key]
	if !ok {
		return 0, nil
	}
	var n uint64
	if err := cbor.Unmarshal(v, &n); err != nil {
		return 0, giterr.Wrap(giterr.InvalidType, err, "decode integer field")
	}
	return n, nil
}

func decodeBasicFields(raw map[uint64]cbor.RawMessage) (Edge, error) {
	for k := range raw {
		if !basicKeys[k] && !attributedOnlyKeys[k] {
			return Edge{}, giterr.New(giterr.InvalidFormat, "unknown field key in edge record")
		}
	}

	relType, err := decodeUintField(raw, keyRelTypeN)
	if err != nil {
		return Edge{}, err
	}
	confBits, err := decodeUintField(raw, keyConfidenceN)
	if err != nil {
		return Edge{}, err
	}
	ts, err := decodeUintField(raw, keyTimestampN)
	if err != nil {
		return Edge{}, err
	}
	srcPath, err := decodeStringField(raw, keySrcPathN)
	if err != nil {
		return Edge{}, err
	}
	tgtPath, err := decodeStringField(raw, keyTgtPathN)
	if err != nil {
		return Edge{}, err
	}
	ulid, err := decodeStringField(raw, keyULIDN)
	if err != nil {
		return Edge{}, err
	}
	srcSHA, err := decodeBytesField(raw, keySrcSHAN)
	if err != nil {
		return Edge{}, err
	}
	tgtSHA, err := decodeBytesField(raw, keyTgtSHAN)
	if err != nil {
		return Edge{}, err
	}
	srcOID, err := decodeBytesField(raw, keySrcOIDN)
	if err != nil {
		return Edge{}, err
	}
	tgtOID, err := decodeBytesField(raw, keyTgtOIDN)
	if err != nil {
		return Edge{}, err
	}

	e := Edge{
		SrcOID:     srcOID,
		TgtOID:     tgtOID,
		SrcSHA:     srcSHA,
		TgtSHA:     tgtSHA,
		RelType:    RelType(relType),
		Confidence: float16.Frombits(uint16(confBits)).Float32(),
		Timestamp:  ts,
		SrcPath:    srcPath,
		TgtPath:    tgtPath,
		ULID:       ulid,
	}
	e.BackfillOIDs()
	return e, nil
}

// Decode decodes one basic edge record from the head of payload, returning
// the number of bytes consumed so the caller can continue walking a
// concatenated buffer.
func Decode(payload []byte) (Edge, int, error) {
	raw, n, err := fieldSet(payload)
	if err != nil {
		return Edge{}, 0, err
	}
	for k := range raw {
		if attributedOnlyKeys[k] {
			return Edge{}, 0, giterr.New(giterr.InvalidFormat, "attributed-only field present in basic record")
		}
	}
	e, err := decodeBasicFields(raw)
	if err != nil {
		return Edge{}, 0, err
	}
	return e, n, nil
}

// DecodeAttributed decodes one attributed edge record from the head of
// payload.
func DecodeAttributed(payload []byte) (AttributedEdge, int, error) {
	raw, n, err := fieldSet(payload)
	if err != nil {
		return AttributedEdge{}, 0, err
	}

	hasAttributed := false
	for k := range attributedOnlyKeys {
		if _, ok := raw[k]; ok {
			hasAttributed = true
			break
		}
	}
	if !hasAttributed {
		return AttributedEdge{}, 0, giterr.New(giterr.InvalidFormat, "record has no attribution fields")
	}

	base, err := decodeBasicFields(raw)
	if err != nil {
		return AttributedEdge{}, 0, err
	}
	sourceType, err := decodeUintField(raw, keySourceTypeN)
	if err != nil {
		return AttributedEdge{}, 0, err
	}
	author, err := decodeStringField(raw, keyAuthorN)
	if err != nil {
		return AttributedEdge{}, 0, err
	}
	sessionID, err := decodeStringField(raw, keySessionIDN)
	if err != nil {
		return AttributedEdge{}, 0, err
	}
	flags, err := decodeUintField(raw, keyFlagsN)
	if err != nil {
		return AttributedEdge{}, 0, err
	}
	lane, err := decodeUintField(raw, keyLaneN)
	if err != nil {
		return AttributedEdge{}, 0, err
	}

	return AttributedEdge{
		Edge: base,
		Attribution: Attribution{
			SourceType: SourceType(sourceType),
			Author:     author,
			SessionID:  sessionID,
			Flags:      uint32(flags),
		},
		Lane: Lane(lane),
	}, n, nil
}

// DecodeAny tries the attributed decoder first, falling back to the
// basic decoder on structural failure, per spec §4.E's reader algorithm.
// It returns the decoded record as a Record (tagged union) plus the
// number of bytes consumed.
func DecodeAny(payload []byte) (Record, int, error) {
	if ae, n, err := DecodeAttributed(payload); err == nil {
		return Record{Attributed: &ae}, n, nil
	}
	e, n, err := Decode(payload)
	if err != nil {
		return Record{}, 0, err
	}
	return Record{Basic: &e}, n, nil
}

// Record is the tagged-union iterator value from spec §9: either a
// Basic edge or an Attributed one, never both.
type Record struct {
	Basic      *Edge
	Attributed *AttributedEdge
}

// DefaultAttribution is synthesized for basic records read through the
// attributed API (spec §4.E step 6).
func DefaultAttribution() Attribution {
	return Attribution{SourceType: SourceHuman, Author: "user@local", SessionID: "", Flags: 0}
}

// AsAttributed returns r as an AttributedEdge, synthesizing default
// attribution/lane when r only carries a basic edge.
func (r Record) AsAttributed() AttributedEdge {
	if r.Attributed != nil {
		return *r.Attributed
	}
	return AttributedEdge{Edge: *r.Basic, Attribution: DefaultAttribution(), Lane: LaneDefault}
}

// AsBasic projects r down to its basic edge fields.
func (r Record) AsBasic() Edge {
	if r.Basic != nil {
		return *r.Basic
	}
	return r.Attributed.Edge
}
