package inbound

import (
	"time"

	"github.com/neuroglyph/git-mind-sub001/giterr"
	"github.com/neuroglyph/git-mind-sub001/oid"
	"github.com/neuroglyph/git-mind-sub001/ports"
	"github.com/neuroglyph/git-mind-sub001/query"
)

// CacheQueryPort is the cache query port: query_fanout, query_fanin,
// stats (spec §4.J).
type CacheQueryPort struct {
	engine *query.Engine
}

// NewCacheQueryPort builds a cache query port over repo.
func NewCacheQueryPort(repo ports.Repository, logger ports.Logger, metrics ports.Metrics, diag ports.Diagnostics) *CacheQueryPort {
	return &CacheQueryPort{engine: &query.Engine{Repo: repo, Logger: logger, Metrics: metrics, Diagnostics: diag}}
}

// QueryFanout returns the sorted edge-ids whose source OID is o.
//
// query.Result's zero value (nil EdgeIDs, FromCache false) is already
// the spec's "count = 0 → edge_ids = nil" allocation rule, and a Go
// result value needs no disposer: there is nothing corresponding to
// result_free to call, and calling nothing is trivially idempotent and
// nil-safe.
func (p *CacheQueryPort) QueryFanout(branch string, o oid.OID, now time.Time) (query.Result, error) {
	if p == nil || p.engine == nil {
		return query.Result{}, giterr.New(giterr.InvalidState, "cache query port is not initialized")
	}
	return p.engine.QueryFanout(branch, o, now)
}

// QueryFanin returns the sorted edge-ids whose target OID is o.
func (p *CacheQueryPort) QueryFanin(branch string, o oid.OID, now time.Time) (query.Result, error) {
	if p == nil || p.engine == nil {
		return query.Result{}, giterr.New(giterr.InvalidState, "cache query port is not initialized")
	}
	return p.engine.QueryFanin(branch, o, now)
}

// Stats reports the cached edge count and cache tree size for branch.
func (p *CacheQueryPort) Stats(branch string) (edgeCount uint64, sizeBytes uint64, err error) {
	if p == nil || p.engine == nil {
		return 0, 0, giterr.New(giterr.InvalidState, "cache query port is not initialized")
	}
	return p.engine.Stats(branch)
}

// Dispose releases p's reference to its engine.
func (p *CacheQueryPort) Dispose() {
	if p == nil {
		return
	}
	p.engine = nil
}
