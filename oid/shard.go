package oid

// maxPrefixChars is the clamp from spec §4.C: the sharder never returns
// more characters than fit a directory-name buffer, regardless of bits.
const maxPrefixChars = 31

// Prefix returns the lowercase hex rendering of the leading ceil(bits/4)
// hex characters of o, clamped to maxPrefixChars. Two OIDs sharing the
// same leading bits always yield the same prefix, which is what lets the
// cache rebuilder shard the tree by directory without readers needing to
// know the shard width in advance (they just re-derive it from shard_bits
// in the cache meta).
func Prefix(o OID, bits int) string {
	if bits <= 0 {
		return ""
	}
	chars := (bits + 3) / 4
	if chars > maxPrefixChars {
		chars = maxPrefixChars
	}
	if chars > Size*2 {
		chars = Size * 2
	}
	return o.Hex()[:chars]
}
