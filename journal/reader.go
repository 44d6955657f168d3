package journal

import (
	"github.com/neuroglyph/git-mind-sub001/edge"
	"github.com/neuroglyph/git-mind-sub001/giterr"
	"github.com/neuroglyph/git-mind-sub001/oid"
	"github.com/neuroglyph/git-mind-sub001/ports"
	"github.com/neuroglyph/git-mind-sub001/refs"
)

// Visitor is called once per decoded record while reading a journal.
// Returning a non-nil error halts iteration and is propagated to the
// caller of Read/ReadAttributed, per spec §4.E.
type Visitor func(r edge.Record) error

// Reader walks a branch's journal commit chain and decodes its records
// (spec §4.E, component E).
type Reader struct {
	Repo ports.Repository
}

// Read walks branch's journal in reverse-chronological order, decoding
// each commit's payload into records and invoking visit for each one in
// the order they were originally appended within that commit. Basic and
// attributed records may be interleaved across commits; Read decodes
// whichever shape each record actually carries. An empty branch means
// the current head's branch.
func (r *Reader) Read(branch string, visit Visitor) error {
	return r.walk(branch, visit)
}

// ReadAttributed behaves like Read, but every record passed to visit
// carries attribution, synthesizing spec §4.E step 6's default
// attribution and lane for records that were written through the basic
// API.
func (r *Reader) ReadAttributed(branch string, visit Visitor) error {
	return r.walk(branch, func(rec edge.Record) error {
		ae := rec.AsAttributed()
		return visit(edge.Record{Attributed: &ae})
	})
}

func (r *Reader) walk(branch string, visit Visitor) error {
	if branch == "" {
		head, err := r.Repo.HeadBranch()
		if err != nil {
			return giterr.Wrap(giterr.InvalidState, err, "resolve head branch for journal read")
		}
		branch = head
	}
	refName := refs.Journal(branch)

	tip, err := r.Repo.ReferenceTip(refName)
	if err != nil {
		return giterr.Wrap(giterr.IoFailed, err, "resolve journal ref")
	}
	if !tip.HasTarget {
		return giterr.New(giterr.NotFound, "no journal found for branch")
	}

	return r.Repo.WalkCommits(refName, func(commit oid.OID) error {
		message, err := r.Repo.CommitReadMessage(commit)
		if err != nil {
			return giterr.Wrap(giterr.IoFailed, err, "read journal commit message")
		}
		return decodeAndVisit([]byte(message), visit)
	})
}

// decodeAndVisit decodes every record concatenated in payload in order.
// On a truncated or corrupt record it stops after visiting every record
// before it and fails with InvalidFormat; any error the visitor itself
// returns is propagated unchanged.
func decodeAndVisit(payload []byte, visit Visitor) error {
	for len(payload) > 0 {
		rec, n, err := edge.DecodeAny(payload)
		if err != nil {
			return giterr.Wrap(giterr.InvalidFormat, err, "decode journal record")
		}
		if err := visit(rec); err != nil {
			return err
		}
		payload = payload[n:]
	}
	return nil
}
