package cache

import (
	"time"

	"github.com/neuroglyph/git-mind-sub001/ports"
	"github.com/neuroglyph/git-mind-sub001/refs"
)

// staleAfter is the maximum age of a cache before it is considered
// stale purely on recency grounds (spec §4.H).
const staleAfter = time.Hour

// IsStale implements spec §4.H: a cache is stale when no meta can be
// loaded, when it is older than staleAfter, or when the branch's
// current journal tip no longer matches the cache's recorded tip.
func IsStale(repo ports.Repository, branch string, now time.Time) bool {
	meta, err := LoadMeta(repo, branch)
	if err != nil {
		return true
	}

	if now.Sub(meta.JournalTipTime) > staleAfter {
		return true
	}

	currentTip, err := repo.ReferenceTip(refs.Journal(branch))
	if err != nil {
		return true
	}

	return tipsDiffer(meta, currentTip)
}

// tipsDiffer implements the equality rule from spec §4.H: prefer binary
// OID equality, falling back to hex-string equality when either side's
// binary OID is zero. If both sides are zero the cache is never
// considered stale on tip-mismatch grounds alone.
func tipsDiffer(meta Meta, current ports.ReferenceTip) bool {
	cachedZero := meta.JournalTipOID.IsZero()
	currentZero := !current.HasTarget || current.OID.IsZero()

	if !cachedZero && !currentZero {
		return !meta.JournalTipOID.Equal(current.OID)
	}
	if cachedZero && currentZero {
		return false
	}
	return meta.JournalTipHex != current.OIDHex
}
