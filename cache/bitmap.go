package cache

import (
	"bytes"
	"encoding/binary"

	"github.com/RoaringBitmap/roaring"

	"github.com/neuroglyph/git-mind-sub001/giterr"
)

// magic is the 8-byte ASCII header that precedes every cache leaf blob
// (spec §3 "Cache tree").
var magic = [8]byte{'G', 'M', 'C', 'A', 'C', 'H', 'E', 0}

// FormatVersion is the current cache blob/meta version.
const FormatVersion uint16 = 1

// EncodeBitmapBlob serializes a roaring bitmap with the magic/version/
// reserved header spec §3 requires.
func EncodeBitmapBlob(b *roaring.Bitmap) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(magic[:])
	_ = binary.Write(&buf, binary.BigEndian, FormatVersion)
	_ = binary.Write(&buf, binary.BigEndian, uint16(0)) // reserved flags
	if _, err := b.WriteTo(&buf); err != nil {
		return nil, giterr.Wrap(giterr.IoFailed, err, "serialize bitmap")
	}
	return buf.Bytes(), nil
}

// DecodeBitmapBlob parses a cache leaf blob, validating the magic header
// before deserializing the roaring bitmap payload.
func DecodeBitmapBlob(data []byte) (*roaring.Bitmap, error) {
	if len(data) < 12 || !bytes.Equal(data[:8], magic[:]) {
		return nil, giterr.New(giterr.InvalidFormat, "cache blob has bad magic")
	}
	b := roaring.New()
	if _, err := b.FromBuffer(data[12:]); err != nil {
		return nil, giterr.Wrap(giterr.InvalidFormat, err, "deserialize bitmap")
	}
	return b, nil
}

// SortedEdgeIDs materializes a bitmap's contents as a sorted ascending
// slice (spec §4.I step 1).
func SortedEdgeIDs(b *roaring.Bitmap) []uint32 {
	if b == nil || b.IsEmpty() {
		return nil
	}
	return b.ToArray()
}
