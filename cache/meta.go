package cache

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/neuroglyph/git-mind-sub001/giterr"
	"github.com/neuroglyph/git-mind-sub001/oid"
	"github.com/neuroglyph/git-mind-sub001/ports"
	"github.com/neuroglyph/git-mind-sub001/refs"
)

// DefaultShardBits is the current sharding parameter (spec §3).
const DefaultShardBits = 8

// MaxBranchNameBytes mirrors the C meta struct's bounded branch-name
// buffer (spec §4.F's GM_CACHE_BRANCH_NAME_SIZE). A branch whose length
// meets or exceeds this must fail InvalidArgument before any I/O.
const MaxBranchNameBytes = 256

// Meta is the cache metadata carried by a cache commit (spec §3).
type Meta struct {
	Version        uint16
	ShardBits      int
	Branch         string
	JournalTipOID  oid.OID
	JournalTipHex  string
	JournalTipTime time.Time
	EdgeCount      uint64
	BuildTimeMS    uint64
}

// ValidateBranchName enforces the boundary from spec §4.F's
// branch-name validation, failing InvalidArgument before any side
// effect.
func ValidateBranchName(branch string) error {
	if len(branch) >= MaxBranchNameBytes {
		return giterr.New(giterr.InvalidArgument, "branch name too long for cache meta")
	}
	return nil
}

// metaMessagePrefix tags the cache commit message so LoadMeta can parse
// it back out; the fields after the prefix are a stable `key=value`
// line format chosen for this implementation (spec §9 leaves the exact
// persisted representation an open question).
const metaMessagePrefix = "gitmind-cache-meta/v1\n"

// EncodeMetaMessage renders m as a cache commit message. Persisting
// edge_count and build_time_ms here resolves spec §9's open question in
// favor of always persisting them, so LoadMeta never needs to
// synthesize zeros for a cache this implementation wrote itself.
func EncodeMetaMessage(m Meta) string {
	var b strings.Builder
	b.WriteString(metaMessagePrefix)
	fmt.Fprintf(&b, "branch=%s\n", m.Branch)
	fmt.Fprintf(&b, "shard_bits=%d\n", m.ShardBits)
	fmt.Fprintf(&b, "journal_tip_oid=%s\n", m.JournalTipOID.Hex())
	fmt.Fprintf(&b, "journal_tip_time=%d\n", m.JournalTipTime.UnixMilli())
	fmt.Fprintf(&b, "edge_count=%d\n", m.EdgeCount)
	fmt.Fprintf(&b, "build_time_ms=%d\n", m.BuildTimeMS)
	return b.String()
}

// DecodeMetaMessage parses a cache commit message written by
// EncodeMetaMessage. commitTime is used for JournalTipTime when the
// message predates persisting that field (legacy commits).
func DecodeMetaMessage(message string, commitTime time.Time) (Meta, bool) {
	if !strings.HasPrefix(message, metaMessagePrefix) {
		return Meta{}, false
	}
	m := Meta{Version: FormatVersion, ShardBits: DefaultShardBits, JournalTipTime: commitTime}
	lines := strings.Split(strings.TrimPrefix(message, metaMessagePrefix), "\n")
	for _, line := range lines {
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch k {
		case "branch":
			m.Branch = v
		case "shard_bits":
			if n, err := strconv.Atoi(v); err == nil {
				m.ShardBits = n
			}
		case "journal_tip_oid":
			if o, ok := oid.FromHex(v); ok {
				m.JournalTipOID = o
				m.JournalTipHex = v
			}
		case "journal_tip_time":
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				m.JournalTipTime = time.UnixMilli(n)
			}
		case "edge_count":
			if n, err := strconv.ParseUint(v, 10, 64); err == nil {
				m.EdgeCount = n
			}
		case "build_time_ms":
			if n, err := strconv.ParseUint(v, 10, 64); err == nil {
				m.BuildTimeMS = n
			}
		}
	}
	return m, true
}

// LoadMeta reads cache metadata for branch (spec §4.G): first the
// primary cache ref, then the most recent legacy timestamped snapshot
// reachable via the glob pattern.
func LoadMeta(repo ports.Repository, branch string) (Meta, error) {
	tip, err := repo.ReferenceTip(refs.Cache(branch))
	if err != nil {
		return Meta{}, giterr.Wrap(giterr.NotFound, err, "resolve cache ref")
	}
	if !tip.HasTarget {
		tip, err = repo.ReferenceGlobLatest(refs.LegacyCacheGlob(branch))
		if err != nil {
			return Meta{}, giterr.Wrap(giterr.NotFound, err, "resolve legacy cache ref")
		}
		if !tip.HasTarget {
			return Meta{}, giterr.New(giterr.NotFound, "no cache found for branch")
		}
	}

	message, err := repo.CommitReadMessage(tip.OID)
	if err != nil {
		return Meta{}, giterr.Wrap(giterr.IoFailed, err, "read cache commit message")
	}

	m, ok := DecodeMetaMessage(message, tip.CommitTime)
	if !ok {
		m = Meta{Version: FormatVersion, ShardBits: DefaultShardBits, Branch: branch, JournalTipTime: tip.CommitTime}
	}
	if m.Branch == "" {
		m.Branch = branch
	}

	// A cache this implementation wrote always persists its build-time
	// journal tip (EncodeMetaMessage above), so m.JournalTipOID is
	// already the value the stale detector needs to compare against.
	// Only a legacy cache commit that never recorded the field falls
	// back to resolving the branch's current journal tip here (spec
	// §4.G step 4) — otherwise this would make tip-mismatch staleness
	// unobservable for every cache this implementation builds.
	if m.JournalTipOID.IsZero() && m.JournalTipHex == "" {
		journalTip, err := repo.ReferenceTip(refs.Journal(branch))
		if err != nil {
			return Meta{}, giterr.Wrap(giterr.IoFailed, err, "resolve journal ref")
		}
		if journalTip.HasTarget {
			m.JournalTipOID = journalTip.OID
			m.JournalTipHex = journalTip.OIDHex
		}
	}

	return m, nil
}
