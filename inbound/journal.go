// Package inbound implements the three driving ports spec §4.J
// describes as thin coordinators over the core: journal append, cache
// build/invalidate, and cache query. Each port owns a small state
// object referencing its collaborators; Dispose is idempotent and safe
// to call on a zero-valued or already-disposed port.
package inbound

import (
	"time"

	"github.com/neuroglyph/git-mind-sub001/edge"
	"github.com/neuroglyph/git-mind-sub001/giterr"
	"github.com/neuroglyph/git-mind-sub001/journal"
	"github.com/neuroglyph/git-mind-sub001/ports"
)

// JournalPort is the journal command port: append/append_attributed,
// validating inputs before delegating to journal.Writer (spec §4.D).
type JournalPort struct {
	writer *journal.Writer
}

// NewJournalPort builds a journal command port over repo, wiring the
// given telemetry sinks into the underlying writer.
func NewJournalPort(repo ports.Repository, logger ports.Logger, metrics ports.Metrics, diag ports.Diagnostics) *JournalPort {
	return &JournalPort{writer: &journal.Writer{Repo: repo, Logger: logger, Metrics: metrics, Diagnostics: diag}}
}

// Append writes basic edges to the journal of the current branch.
func (p *JournalPort) Append(edges []edge.Edge, now time.Time) error {
	if p == nil || p.writer == nil {
		return giterr.New(giterr.InvalidState, "journal port is not initialized")
	}
	if len(edges) == 0 {
		return giterr.New(giterr.InvalidArgument, "append requires at least one edge")
	}
	records := make([]edge.Record, len(edges))
	for i := range edges {
		e := edges[i]
		records[i] = edge.Record{Basic: &e}
	}
	return p.writer.Append(records, now)
}

// AppendAttributed writes attributed edges to the journal of the
// current branch.
func (p *JournalPort) AppendAttributed(edges []edge.AttributedEdge, now time.Time) error {
	if p == nil || p.writer == nil {
		return giterr.New(giterr.InvalidState, "journal port is not initialized")
	}
	if len(edges) == 0 {
		return giterr.New(giterr.InvalidArgument, "append requires at least one edge")
	}
	records := make([]edge.Record, len(edges))
	for i := range edges {
		ae := edges[i]
		records[i] = edge.Record{Attributed: &ae}
	}
	return p.writer.Append(records, now)
}

// Dispose releases p's reference to its writer. It tolerates a nil or
// already-disposed port.
func (p *JournalPort) Dispose() {
	if p == nil {
		return
	}
	p.writer = nil
}
