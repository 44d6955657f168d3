// Package query implements the cache-first edge lookups of spec §2
// component I: fanout/fanin queries that prefer the bitmap cache and
// fall back to a bounded linear journal scan, plus cache size stats.
package query

import (
	"time"

	"github.com/neuroglyph/git-mind-sub001/cache"
	"github.com/neuroglyph/git-mind-sub001/edge"
	"github.com/neuroglyph/git-mind-sub001/giterr"
	"github.com/neuroglyph/git-mind-sub001/journal"
	"github.com/neuroglyph/git-mind-sub001/oid"
	"github.com/neuroglyph/git-mind-sub001/ports"
	"github.com/neuroglyph/git-mind-sub001/refs"
)

// scanCap bounds the fallback journal scan (spec §4.I): a query that
// would have to inspect more edges than this to answer fails outright
// rather than degrading into an unbounded linear scan on every miss.
const scanCap = 100_000

// estimatedBytesPerEdge approximates cache tree size when
// Repository.CommitTreeSize cannot be computed (spec §4.I's Stats
// fallback).
const estimatedBytesPerEdge = 24

// Result is the outcome of a fanout/fanin query.
type Result struct {
	EdgeIDs   []uint32
	FromCache bool
}

// Engine answers edge queries against a repository's journal and cache.
type Engine struct {
	Repo        ports.Repository
	Logger      ports.Logger
	Metrics     ports.Metrics
	Diagnostics ports.Diagnostics
}

func (e *Engine) logEvent(level ports.LogLevel, event string, fields map[string]any) {
	if e.Logger == nil {
		return
	}
	e.Logger.Log(level, "query", event, fields)
}

// QueryFanout returns the sorted edge-ids whose source OID is o.
func (e *Engine) QueryFanout(branch string, o oid.OID, now time.Time) (Result, error) {
	return e.query(branch, o, now, cache.ForwardSuffix, func(rec edge.Record) oid.OID {
		return rec.AsBasic().SrcOID
	})
}

// QueryFanin returns the sorted edge-ids whose target OID is o.
func (e *Engine) QueryFanin(branch string, o oid.OID, now time.Time) (Result, error) {
	return e.query(branch, o, now, cache.ReverseSuffix, func(rec edge.Record) oid.OID {
		return rec.AsBasic().TgtOID
	})
}

func (e *Engine) query(branch string, target oid.OID, now time.Time, suffix string, key func(edge.Record) oid.OID) (Result, error) {
	if res, ok, err := e.queryCache(branch, target, now, suffix); err != nil {
		return Result{}, err
	} else if ok {
		return res, nil
	}

	e.logEvent(ports.Warn, "query_cache_miss_fallback", map[string]any{"branch": branch, "suffix": suffix})
	ids, err := e.scanJournal(branch, target, key)
	if err != nil {
		return Result{}, err
	}
	return Result{EdgeIDs: ids, FromCache: false}, nil
}

// queryCache attempts the cache-path lookup. The bool result reports
// whether the cache could answer the query at all (true) as opposed to
// needing the journal-scan fallback (false); it is independent of
// whether any edge-ids were actually found.
func (e *Engine) queryCache(branch string, target oid.OID, now time.Time, suffix string) (Result, bool, error) {
	cacheTip, err := e.Repo.ReferenceTip(refs.Cache(branch))
	if err != nil || !cacheTip.HasTarget {
		return Result{}, false, nil
	}
	if cache.IsStale(e.Repo, branch, now) {
		return Result{}, false, nil
	}

	meta, err := cache.LoadMeta(e.Repo, branch)
	if err != nil {
		return Result{}, false, nil
	}

	path := oid.Prefix(target, meta.ShardBits) + "/" + target.Hex() + "." + suffix
	blob, err := e.Repo.CommitReadBlob(cacheTip.OID, path)
	if err != nil {
		if giterr.Is(err, giterr.NotFound) {
			return Result{EdgeIDs: nil, FromCache: true}, true, nil
		}
		return Result{}, false, nil
	}
	defer func() {
		if blob.Close != nil {
			blob.Close()
		}
	}()

	bitmap, err := cache.DecodeBitmapBlob(blob.Data)
	if err != nil {
		// A corrupt shard blob (e.g. bad magic) is a cache miss, not a
		// fatal error: spec §7 and §8 require falling back to the
		// journal scan here, the same as any other cache-path failure.
		e.logEvent(ports.Warn, "query_cache_blob_corrupt", map[string]any{"branch": branch, "path": path})
		return Result{}, false, nil
	}
	return Result{EdgeIDs: cache.SortedEdgeIDs(bitmap), FromCache: true}, true, nil
}

// scanJournal answers the query by walking the journal directly,
// failing if more than scanCap edges would need inspecting.
func (e *Engine) scanJournal(branch string, target oid.OID, key func(edge.Record) oid.OID) ([]uint32, error) {
	reader := &journal.Reader{Repo: e.Repo}
	var ids []uint32
	var scanned uint32

	err := reader.Read(branch, func(rec edge.Record) error {
		if scanned >= scanCap {
			return giterr.New(giterr.InvalidState, "journal scan fallback exceeded edge cap")
		}
		if key(rec) == target {
			ids = append(ids, scanned)
		}
		scanned++
		return nil
	})
	if err != nil {
		if giterr.Is(err, giterr.NotFound) {
			return nil, nil
		}
		return nil, err
	}
	return ids, nil
}

// Stats reports the cached edge count and the cache tree's size on disk
// (spec §4.I). When the tree size cannot be measured directly, it is
// estimated from the edge count.
func (e *Engine) Stats(branch string) (edgeCount uint64, sizeBytes uint64, err error) {
	meta, err := cache.LoadMeta(e.Repo, branch)
	if err != nil {
		return 0, 0, err
	}

	cacheTip, err := e.Repo.ReferenceTip(refs.Cache(branch))
	if err == nil && cacheTip.HasTarget {
		if size, sizeErr := e.Repo.CommitTreeSize(cacheTip.OID); sizeErr == nil {
			return meta.EdgeCount, size, nil
		}
	}
	return meta.EdgeCount, meta.EdgeCount * estimatedBytesPerEdge, nil
}
