package inbound_test

import (
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/require"

	"github.com/neuroglyph/git-mind-sub001/adapters/billyfs"
	"github.com/neuroglyph/git-mind-sub001/adapters/gitrepo"
	"github.com/neuroglyph/git-mind-sub001/edge"
	"github.com/neuroglyph/git-mind-sub001/giterr"
	"github.com/neuroglyph/git-mind-sub001/inbound"
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

func sampleEdge(src, tgt byte) edge.Edge {
	var s, g oid.OID
	s[0] = src
	g[0] = tgt
	return edge.Edge{
		SrcOID:     s,
		TgtOID:     g,
		RelType:    edge.RelReferences,
		Confidence: edge.ConfidenceHuman,
		Timestamp:  1700000000000,
		SrcPath:    "a.go",
		TgtPath:    "b.go",
		ULID:       "01ARZ3NDEKTSV4RRFFQ69G5FAV",
	}
}

func TestJournalPortAppendRejectsEmptyBatch(t *testing.T) {
	p := inbound.NewJournalPort(openTestRepo(t), nil, nil, nil)
	err := p.Append(nil, time.Unix(1700000000, 0))
	require.Error(t, err)
	require.Equal(t, giterr.InvalidArgument, giterr.CodeOf(err))
}

func TestJournalPortDisposeThenAppendFailsCleanly(t *testing.T) {
	p := inbound.NewJournalPort(openTestRepo(t), nil, nil, nil)
	p.Dispose()
	p.Dispose() // idempotent
	err := p.Append([]edge.Edge{sampleEdge(1, 2)}, time.Unix(1700000000, 0))
	require.Error(t, err)
	require.Equal(t, giterr.InvalidState, giterr.CodeOf(err))
}

func TestCacheBuildThenQueryPortsRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	now := time.Unix(1700000000, 0)

	journalPort := inbound.NewJournalPort(repo, nil, nil, nil)
	require.NoError(t, journalPort.Append([]edge.Edge{sampleEdge(0xAA, 0xBB)}, now))
	require.NoError(t, journalPort.AppendAttributed([]edge.AttributedEdge{
		{Edge: sampleEdge(0xAA, 0xCC), Attribution: edge.DefaultAttribution(), Lane: edge.LaneDefault},
	}, now.Add(time.Minute)))

	buildPort := inbound.NewCacheBuildPort(repo, billyfs.New(t.TempDir(), nil), nil, 0, nil, nil, nil)
	meta, err := buildPort.RequestBuild("master", true, now.Add(2*time.Minute))
	require.NoError(t, err)
	require.Equal(t, uint64(2), meta.EdgeCount)
	require.NoError(t, buildPort.Invalidate("master"))

	queryPort := inbound.NewCacheQueryPort(repo, nil, nil, nil)
	var src oid.OID
	src[0] = 0xAA
	fanout, err := queryPort.QueryFanout("master", src, now.Add(2*time.Minute))
	require.NoError(t, err)
	require.True(t, fanout.FromCache)
	require.Len(t, fanout.EdgeIDs, 2)

	count, size, err := queryPort.Stats("master")
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)
	require.Greater(t, size, uint64(0))

	buildPort.Dispose()
	_, err = buildPort.RequestBuild("master", true, now)
	require.Error(t, err)
	require.Equal(t, giterr.InvalidState, giterr.CodeOf(err))

	queryPort.Dispose()
	_, err = queryPort.QueryFanin("master", src, now)
	require.Error(t, err)
	require.Equal(t, giterr.InvalidState, giterr.CodeOf(err))
}
