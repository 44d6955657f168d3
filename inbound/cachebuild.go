package inbound

import (
	"time"

	"github.com/neuroglyph/git-mind-sub001/cache"
	"github.com/neuroglyph/git-mind-sub001/giterr"
	"github.com/neuroglyph/git-mind-sub001/ports"
)

// CacheBuildPort is the cache build port: request_build/invalidate
// (spec §4.J). Invalidate is part of the contract but has no effect
// today; a future revision that adds an explicit staleness flag to the
// cache meta would give it a real implementation.
type CacheBuildPort struct {
	rebuilder *cache.Rebuilder
}

// NewCacheBuildPort builds a cache build port over repo, wiring the
// given collaborators into the underlying rebuilder.
func NewCacheBuildPort(repo ports.Repository, fsTemp ports.FSTemp, random ports.Random, shardBits int, logger ports.Logger, metrics ports.Metrics, diag ports.Diagnostics) *CacheBuildPort {
	return &CacheBuildPort{rebuilder: &cache.Rebuilder{
		Repo: repo, FSTemp: fsTemp, Random: random, ShardBits: shardBits,
		Logger: logger, Metrics: metrics, Diagnostics: diag,
	}}
}

// RequestBuild rebuilds branch's cache.
func (p *CacheBuildPort) RequestBuild(branch string, forceFull bool, now time.Time) (cache.Meta, error) {
	if p == nil || p.rebuilder == nil {
		return cache.Meta{}, giterr.New(giterr.InvalidState, "cache build port is not initialized")
	}
	return p.rebuilder.Rebuild(branch, forceFull, now)
}

// Invalidate is a no-op today, present only to satisfy the port
// contract (spec §4.J).
func (p *CacheBuildPort) Invalidate(branch string) error {
	if p == nil {
		return giterr.New(giterr.InvalidState, "cache build port is not initialized")
	}
	return nil
}

// Dispose releases p's reference to its rebuilder.
func (p *CacheBuildPort) Dispose() {
	if p == nil {
		return
	}
	p.rebuilder = nil
}
