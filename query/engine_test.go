package query_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/require"

	"github.com/neuroglyph/git-mind-sub001/adapters/billyfs"
	"github.com/neuroglyph/git-mind-sub001/adapters/gitrepo"
	"github.com/neuroglyph/git-mind-sub001/cache"
	"github.com/neuroglyph/git-mind-sub001/edge"
	"github.com/neuroglyph/git-mind-sub001/journal"
	"github.com/neuroglyph/git-mind-sub001/oid"
	"github.com/neuroglyph/git-mind-sub001/ports"
	"github.com/neuroglyph/git-mind-sub001/query"
	"github.com/neuroglyph/git-mind-sub001/refs"
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

func edgeWithOIDs(src, tgt byte) edge.Edge {
	var s, g oid.OID
	s[0] = src
	g[0] = tgt
	return edge.Edge{
		SrcOID:     s,
		TgtOID:     g,
		RelType:    edge.RelImplements,
		Confidence: edge.ConfidenceHuman,
		Timestamp:  1700000000000,
		SrcPath:    "a.go",
		TgtPath:    "b.go",
		ULID:       "01ARZ3NDEKTSV4RRFFQ69G5FAV",
	}
}

func TestFanoutFaninAfterRebuildUseCache(t *testing.T) {
	repo := openTestRepo(t)
	w := &journal.Writer{Repo: repo}
	now := time.Unix(1700000000, 0)

	a2b := edgeWithOIDs(0xAA, 0xBB)
	a2c := edgeWithOIDs(0xAA, 0xCC)
	require.NoError(t, w.Append([]edge.Record{{Basic: &a2b}}, now))
	require.NoError(t, w.Append([]edge.Record{{Basic: &a2c}}, now.Add(time.Minute)))

	r := &cache.Rebuilder{Repo: repo, FSTemp: billyfs.New(t.TempDir(), nil)}
	_, err := r.Rebuild("master", true, now.Add(2*time.Minute))
	require.NoError(t, err)

	e := &query.Engine{Repo: repo}
	var a oid.OID
	a[0] = 0xAA
	fanout, err := e.QueryFanout("master", a, now.Add(2*time.Minute))
	require.NoError(t, err)
	require.True(t, fanout.FromCache)
	require.GreaterOrEqual(t, len(fanout.EdgeIDs), 2)

	var b oid.OID
	b[0] = 0xBB
	fanin, err := e.QueryFanin("master", b, now.Add(2*time.Minute))
	require.NoError(t, err)
	require.True(t, fanin.FromCache)
	require.GreaterOrEqual(t, len(fanin.EdgeIDs), 1)
}

func TestFanoutFallsBackToJournalScanWithoutCache(t *testing.T) {
	repo := openTestRepo(t)
	w := &journal.Writer{Repo: repo}
	now := time.Unix(1700000000, 0)

	e1 := edgeWithOIDs(0x01, 0x02)
	require.NoError(t, w.Append([]edge.Record{{Basic: &e1}}, now))

	eng := &query.Engine{Repo: repo}
	var src oid.OID
	src[0] = 0x01
	res, err := eng.QueryFanout("master", src, now)
	require.NoError(t, err)
	require.False(t, res.FromCache)
	require.Len(t, res.EdgeIDs, 1)
}

func TestQueryMissingOIDReturnsEmptyResult(t *testing.T) {
	repo := openTestRepo(t)
	w := &journal.Writer{Repo: repo}
	now := time.Unix(1700000000, 0)
	e1 := edgeWithOIDs(0x01, 0x02)
	require.NoError(t, w.Append([]edge.Record{{Basic: &e1}}, now))

	eng := &query.Engine{Repo: repo}
	var missing oid.OID
	missing[0] = 0xFF
	res, err := eng.QueryFanout("master", missing, now)
	require.NoError(t, err)
	require.Empty(t, res.EdgeIDs)
}

func TestStatsReportsCachedEdgeCount(t *testing.T) {
	repo := openTestRepo(t)
	w := &journal.Writer{Repo: repo}
	now := time.Unix(1700000000, 0)
	e1 := edgeWithOIDs(0x01, 0x02)
	e2 := edgeWithOIDs(0x03, 0x04)
	require.NoError(t, w.Append([]edge.Record{{Basic: &e1}}, now))
	require.NoError(t, w.Append([]edge.Record{{Basic: &e2}}, now.Add(time.Minute)))

	r := &cache.Rebuilder{Repo: repo, FSTemp: billyfs.New(t.TempDir(), nil)}
	_, err := r.Rebuild("master", true, now.Add(2*time.Minute))
	require.NoError(t, err)

	eng := &query.Engine{Repo: repo}
	count, size, err := eng.Stats("master")
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)
	require.Greater(t, size, uint64(0))
}

// TestBadMagicCacheBlobFallsBackToJournalScan drives the engine itself
// through a corrupted cache (spec §8: "A cache blob with a bad magic
// fails InvalidFormat; the query engine then falls back to journal scan
// and returns from_cache = false"), rather than just asserting that
// DecodeBitmapBlob errors on bad input in isolation.
func TestBadMagicCacheBlobFallsBackToJournalScan(t *testing.T) {
	repo := openTestRepo(t)
	w := &journal.Writer{Repo: repo}
	now := time.Unix(1700000000, 0)

	var src oid.OID
	src[0] = 0x01
	e1 := edgeWithOIDs(0x01, 0x02)
	require.NoError(t, w.Append([]edge.Record{{Basic: &e1}}, now))

	r := &cache.Rebuilder{Repo: repo, FSTemp: billyfs.New(t.TempDir(), nil)}
	meta, err := r.Rebuild("master", true, now.Add(time.Minute))
	require.NoError(t, err)

	// Replace the cache ref's tree with one whose forward shard for src
	// is a bad-magic blob, keeping a meta message that still points at
	// the real journal tip so IsStale/LoadMeta both succeed and the
	// only failure is the blob decode.
	badDir := t.TempDir()
	shardDir := filepath.Join(badDir, oid.Prefix(src, meta.ShardBits))
	require.NoError(t, os.MkdirAll(shardDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(shardDir, src.Hex()+"."+cache.ForwardSuffix), []byte("not-a-cache-blob"), 0o644))

	badTreeOID, err := repo.BuildTreeFromDirectory(badDir)
	require.NoError(t, err)

	prevTip, err := repo.ReferenceTip(refs.Cache("master"))
	require.NoError(t, err)
	require.True(t, prevTip.HasTarget)

	badCommitOID, err := repo.CommitCreate(ports.CommitSpec{
		Tree:    badTreeOID,
		Message: cache.EncodeMetaMessage(meta),
		Parents: []oid.OID{prevTip.OID},
	})
	require.NoError(t, err)
	require.NoError(t, repo.ReferenceUpdate(ports.ReferenceUpdate{RefName: refs.Cache("master"), Target: badCommitOID}))

	eng := &query.Engine{Repo: repo}
	res, err := eng.QueryFanout("master", src, now.Add(time.Minute))
	require.NoError(t, err)
	require.False(t, res.FromCache)
	require.Len(t, res.EdgeIDs, 1)
}
