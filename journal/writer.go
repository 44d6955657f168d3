// Package journal implements the append-only edge log (spec §2
// components D and E): Writer appends encoded edge records as commits
// on refs/gitmind/edges/<branch>, and Reader walks that log back out.
package journal

import (
	"time"

	"github.com/neuroglyph/git-mind-sub001/edge"
	"github.com/neuroglyph/git-mind-sub001/giterr"
	"github.com/neuroglyph/git-mind-sub001/oid"
	"github.com/neuroglyph/git-mind-sub001/ports"
	"github.com/neuroglyph/git-mind-sub001/refs"
)

// Writer appends edge records to the journal (spec §4.D).
//
// The commit carrier is the empty tree plus a message holding the
// concatenated CBOR payload (spec §9's open question is pinned to this
// choice; Reader.Read/ReadAttributed extract the payload the same way).
type Writer struct {
	Repo        ports.Repository
	Logger      ports.Logger
	Metrics     ports.Metrics
	Diagnostics ports.Diagnostics
}

func (w *Writer) logEvent(level ports.LogLevel, event string, fields map[string]any) {
	if w.Logger == nil {
		return
	}
	w.Logger.Log(level, "journal", event, fields)
}

func (w *Writer) counter(name string, value float64, tags map[string]string) {
	if w.Metrics == nil {
		return
	}
	w.Metrics.CounterAdd(name, value, tags)
}

func (w *Writer) timing(name string, value float64, tags map[string]string) {
	if w.Metrics == nil {
		return
	}
	w.Metrics.TimingMS(name, value, tags)
}

func (w *Writer) diagnostic(event string, kv map[string]string) {
	if w.Diagnostics == nil {
		return
	}
	w.Diagnostics.Emit("journal", event, kv)
}

// Append encodes and commits records onto the current branch's journal,
// retrying once on a non-fast-forward reference update (spec §4.D
// steps 1-7).
func (w *Writer) Append(records []edge.Record, now time.Time) error {
	start := now
	if len(records) == 0 {
		return giterr.New(giterr.InvalidArgument, "append requires at least one edge")
	}

	branch, err := w.Repo.HeadBranch()
	if err != nil {
		return giterr.Wrap(giterr.InvalidState, err, "resolve head branch for journal append")
	}
	refName := refs.Journal(branch)

	payload, err := encodePayload(records)
	if err != nil {
		w.logEvent(ports.Error, "journal_append_failed", map[string]any{"branch": branch, "error": err.Error()})
		return giterr.Wrap(giterr.InvalidFormat, err, "encode journal append batch")
	}

	w.logEvent(ports.Info, "journal_append_start", map[string]any{"branch": branch, "count": len(records)})

	if err := w.commitPayload(refName, payload, false); err != nil {
		if !giterr.Is(err, giterr.AlreadyExists) {
			w.logEvent(ports.Error, "journal_append_failed", map[string]any{"branch": branch, "error": err.Error()})
			return err
		}
		w.diagnostic("journal_nff_retry", map[string]string{"branch": branch})
		if err := w.commitPayload(refName, payload, true); err != nil {
			w.logEvent(ports.Error, "journal_append_failed", map[string]any{"branch": branch, "error": err.Error()})
			return err
		}
	}

	tags := map[string]string{"branch": branch, "mode": "append"}
	w.counter("journal.append.edges_total", float64(len(records)), tags)
	w.timing("journal.append.duration_ms", float64(time.Since(start).Milliseconds()), tags)
	w.logEvent(ports.Info, "journal_append_ok", map[string]any{"branch": branch, "count": len(records)})
	return nil
}

// commitPayload creates one commit carrying payload and attempts a
// compare-and-set update of refName.
func (w *Writer) commitPayload(refName string, payload []byte, isRetry bool) error {
	tip, err := w.Repo.ReferenceTip(refName)
	if err != nil {
		return giterr.Wrap(giterr.IoFailed, err, "read journal tip")
	}

	var parents []oid.OID
	var old *oid.OID
	if tip.HasTarget {
		parents = []oid.OID{tip.OID}
		o := tip.OID
		old = &o
	}

	commitOID, err := w.Repo.CommitCreate(ports.CommitSpec{
		Tree:    oid.Zero, // sentinel: use the repository's empty tree
		Message: string(payload),
		Parents: parents,
	})
	if err != nil {
		return giterr.Wrap(giterr.IoFailed, err, "create journal commit")
	}

	err = w.Repo.ReferenceUpdate(ports.ReferenceUpdate{
		RefName: refName,
		Target:  commitOID,
		Old:     old,
	})
	if err != nil {
		if giterr.Is(err, giterr.AlreadyExists) {
			return err
		}
		return giterr.Wrap(giterr.IoFailed, err, "update journal ref")
	}
	return nil
}

// encodePayload concatenates the encoded form of every record in order;
// a single bad record aborts the whole batch (spec §4.D's
// all-or-nothing failure semantics).
func encodePayload(records []edge.Record) ([]byte, error) {
	var out []byte
	for _, r := range records {
		var b []byte
		var err error
		if r.Attributed != nil {
			b, err = edge.EncodeAttributed(*r.Attributed)
		} else {
			b, err = edge.Encode(*r.Basic)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}
