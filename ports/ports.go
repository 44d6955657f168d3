// Package ports declares the abstract collaborator interfaces consumed
// by the core (spec §6): repository, filesystem-temp, environment,
// crypto and telemetry. Concrete implementations live under
// adapters/ and are wired by callers, never imported by the
// core packages (journal, cache, query, edge) directly — those only
// see these interfaces, in the same "port objects as an interface, not
// a vtable" spirit go-git uses for its storer.Storer abstraction.
package ports

import (
	"io"
	"time"

	"github.com/neuroglyph/git-mind-sub001/oid"
)

// ReferenceTip is the result of resolving a reference to its current
// target commit.
type ReferenceTip struct {
	HasTarget  bool
	OID        oid.OID
	OIDHex     string
	CommitTime time.Time
}

// CommitSpec describes a commit to be created by Repository.CommitCreate.
type CommitSpec struct {
	Tree    oid.OID
	Message string
	Parents []oid.OID
}

// ReferenceUpdate describes a compare-and-set reference update.
type ReferenceUpdate struct {
	RefName    string
	Target     oid.OID
	LogMessage string
	// Old, when non-nil, makes the update conditional: it fails with
	// giterr.AlreadyExists if the reference's current value isn't Old.
	Old *oid.OID
}

// BlobHandle is an owned byte payload read from a commit; Close releases
// any backing resource (mirrors go-git's io.Closer-returning blob reads).
type BlobHandle struct {
	Data  []byte
	Close func()
}

// CommitVisitor is called once per commit while walking history in
// reverse-chronological order. A non-nil return halts the walk and is
// propagated to the caller of Repository.WalkCommits.
type CommitVisitor func(commit oid.OID) error

// Repository is the version-control substrate port (spec §6).
type Repository interface {
	RepositoryPath(kind string) (string, error)
	HeadBranch() (string, error)
	BuildTreeFromDirectory(path string) (oid.OID, error)
	ReferenceTip(refName string) (ReferenceTip, error)
	ReferenceGlobLatest(pattern string) (ReferenceTip, error)
	CommitReadBlob(commit oid.OID, path string) (BlobHandle, error)
	CommitReadMessage(commit oid.OID) (string, error)
	WalkCommits(refName string, visit CommitVisitor) error
	CommitTreeSize(commit oid.OID) (uint64, error)
	CommitCreate(spec CommitSpec) (oid.OID, error)
	ReferenceUpdate(update ReferenceUpdate) error
	ResolveBlobAtHead(path string) (oid.OID, error)
	ResolveBlobAtCommit(commit oid.OID, path string) (oid.OID, error)
	CommitParentCount(commit oid.OID) (int, error)
}

// CanonicalizeMode selects how FSTemp.CanonicalizeEx resolves a path.
type CanonicalizeMode int

const (
	Logical CanonicalizeMode = iota
	PhysicalExisting
	PhysicalCreateOK
)

// FSTemp is the filesystem temp-directory port (spec §6). Unlike the C
// original, MakeTempDir returns an owned string: there is no shared
// buffer for a later call to silently invalidate.
type FSTemp interface {
	BaseDir(base string, ensure bool) (string, error)
	MakeTempDir(repoID, component, suffixRandom string) (string, error)
	RemoveTree(path string) error
	PathJoinUnderBase(base string, parts ...string) (string, error)
	CanonicalizeEx(path string, mode CanonicalizeMode) (string, error)
}

// Env is the environment-variable port, used only for telemetry
// configuration (spec §6).
type Env interface {
	Get(key string) (string, bool)
}

// Random is the CSPRNG half of the crypto port (spec §6), used for ULID
// randomness.
type Random interface {
	io.Reader
	Uint32() uint32
	Uint64() uint64
}

// Hasher is the SHA-256 half of the crypto port, used for optional
// repo-id hashing.
type Hasher interface {
	Sum256(data []byte) [32]byte
}

// LogLevel mirrors spec §6's logger levels.
type LogLevel int

const (
	Debug LogLevel = iota
	Info
	Warn
	Error
)

// Logger is the structured-logging telemetry sink. All telemetry is
// best-effort: failures here must never propagate to the caller.
type Logger interface {
	Log(level LogLevel, component, message string, fields map[string]any)
}

// Metrics is the metrics telemetry sink.
type Metrics interface {
	CounterAdd(name string, value float64, tags map[string]string)
	GaugeSet(name string, value float64, tags map[string]string)
	TimingMS(name string, value float64, tags map[string]string)
}

// Diagnostics emits anomaly breadcrumbs such as journal_nff_retry.
type Diagnostics interface {
	Emit(component, event string, kv map[string]string)
}
