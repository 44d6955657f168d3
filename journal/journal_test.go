package journal_test

import (
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/require"

	"github.com/neuroglyph/git-mind-sub001/adapters/gitrepo"
	"github.com/neuroglyph/git-mind-sub001/edge"
	"github.com/neuroglyph/git-mind-sub001/giterr"
	"github.com/neuroglyph/git-mind-sub001/journal"
	"github.com/neuroglyph/git-mind-sub001/oid"
)

func openTestRepo(t *testing.T) *gitrepo.Repository {
	t.Helper()
	dir := t.TempDir()
	_, err := gogit.PlainInit(dir, true)
	require.NoError(t, err)
	repo, err := gitrepo.Open(dir)
	require.NoError(t, err)
	return repo
}

func sampleEdge(n byte) edge.Edge {
	var src, tgt oid.OID
	src[0] = n
	tgt[0] = n + 1
	return edge.Edge{
		SrcOID:     src,
		TgtOID:     tgt,
		RelType:    edge.RelReferences,
		Confidence: edge.ConfidenceHuman,
		Timestamp:  1700000000000,
		SrcPath:    "a.go",
		TgtPath:    "b.go",
		ULID:       "01ARZ3NDEKTSV4RRFFQ69G5FAV",
	}
}

func TestAppendThenReadRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	w := &journal.Writer{Repo: repo}

	e1 := sampleEdge(1)
	e2 := sampleEdge(3)
	now := time.Unix(1700000000, 0)

	require.NoError(t, w.Append([]edge.Record{{Basic: &e1}}, now))
	require.NoError(t, w.Append([]edge.Record{{Basic: &e2}}, now.Add(time.Minute)))

	r := &journal.Reader{Repo: repo}
	var seen []edge.Edge
	err := r.Read("master", func(rec edge.Record) error {
		seen = append(seen, rec.AsBasic())
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 2)
	// Reader walks commits newest-first; the most recent append (e2) is seen first.
	require.True(t, seen[0].Equal(e2))
	require.True(t, seen[1].Equal(e1))
}

func TestAppendEmptyRejected(t *testing.T) {
	repo := openTestRepo(t)
	w := &journal.Writer{Repo: repo}
	err := w.Append(nil, time.Unix(0, 0))
	require.Error(t, err)
}

func TestReadEmptyBranchUsesCurrentHead(t *testing.T) {
	repo := openTestRepo(t)
	w := &journal.Writer{Repo: repo}
	e := sampleEdge(9)
	require.NoError(t, w.Append([]edge.Record{{Basic: &e}}, time.Unix(1700000000, 0)))

	r := &journal.Reader{Repo: repo}
	var seen []edge.Edge
	err := r.Read("", func(rec edge.Record) error {
		seen = append(seen, rec.AsBasic())
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 1)
	require.True(t, seen[0].Equal(e))
}

func TestReadMissingJournalIsNotFound(t *testing.T) {
	repo := openTestRepo(t)
	r := &journal.Reader{Repo: repo}
	err := r.Read("master", func(edge.Record) error { return nil })
	require.Error(t, err)
	require.Equal(t, giterr.NotFound, giterr.CodeOf(err))
}

func TestReadAttributedSynthesizesDefaultAttribution(t *testing.T) {
	repo := openTestRepo(t)
	w := &journal.Writer{Repo: repo}
	e := sampleEdge(5)
	require.NoError(t, w.Append([]edge.Record{{Basic: &e}}, time.Unix(1700000000, 0)))

	r := &journal.Reader{Repo: repo}
	var got edge.AttributedEdge
	err := r.ReadAttributed("master", func(rec edge.Record) error {
		got = rec.AsAttributed()
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, edge.DefaultAttribution(), got.Attribution)
	require.Equal(t, edge.LaneDefault, got.Lane)
}

// TestAppendRetriesOnceOnNonFastForwardThenSucceeds drives spec §8
// scenario 5: the first reference_update fails with AlreadyExists, the
// retry succeeds, and journal_nff_retry fires exactly once.
func TestAppendRetriesOnceOnNonFastForwardThenSucceeds(t *testing.T) {
	repo := openTestRepo(t)
	fake := &fakeRepository{Repository: repo}
	fake.failNextReferenceUpdates(1)
	diag := &recordingDiagnostics{}
	w := &journal.Writer{Repo: fake, Diagnostics: diag}

	e := sampleEdge(1)
	require.NoError(t, w.Append([]edge.Record{{Basic: &e}}, time.Unix(1700000000, 0)))
	require.Equal(t, 1, diag.countEvent("journal_nff_retry"))

	r := &journal.Reader{Repo: repo}
	var seen []edge.Edge
	err := r.Read("master", func(rec edge.Record) error {
		seen = append(seen, rec.AsBasic())
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 1)
	require.True(t, seen[0].Equal(e))
}

// TestAppendFailsWhenRetryAlsoNonFastForward confirms the writer gives
// up (rather than looping) after its single retry also loses the race.
func TestAppendFailsWhenRetryAlsoNonFastForward(t *testing.T) {
	repo := openTestRepo(t)
	fake := &fakeRepository{Repository: repo}
	fake.failNextReferenceUpdates(2)
	diag := &recordingDiagnostics{}
	w := &journal.Writer{Repo: fake, Diagnostics: diag}

	e := sampleEdge(1)
	err := w.Append([]edge.Record{{Basic: &e}}, time.Unix(1700000000, 0))
	require.Error(t, err)
	require.Equal(t, giterr.AlreadyExists, giterr.CodeOf(err))
	require.Equal(t, 1, diag.countEvent("journal_nff_retry"))
}
