package telemetry

import (
	"encoding/hex"
	"hash/fnv"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/neuroglyph/git-mind-sub001/adapters/stdcrypto"
	"github.com/neuroglyph/git-mind-sub001/ports"
)

// tagsLabel is the single label every metric carries: a canonical,
// sorted "k=v,k=v" rendering of the caller's tag map plus whatever the
// tag policy in spec §6 adds (branch, mode, repo, extra tags). A fixed
// label set lets every call site share one vector per metric name
// without prometheus's label-cardinality mismatch panics, at the cost
// of losing per-tag querying in favor of per-combination querying.
const tagsLabel = "tags"

// Metrics implements ports.Metrics on prometheus client_golang
// CounterVec/GaugeVec/HistogramVec, registered lazily per metric name
// the first time it is observed.
type Metrics struct {
	cfg      Config
	reg      prometheus.Registerer
	repoPath string
	hasher   ports.Hasher

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewMetrics builds a Metrics sink registered against reg (pass
// prometheus.DefaultRegisterer for the global registry, or a fresh
// prometheus.NewRegistry() in tests to avoid duplicate-registration
// collisions across cases). repoPath is the repository path (spec §6's
// Repository.RepositoryPath("git_dir")) used to compute the repo=
// metrics tag when cfg.RepoTag is enabled; pass "" when the caller has
// no repository context, which leaves the tag off regardless of cfg.
func NewMetrics(cfg Config, reg prometheus.Registerer, repoPath string) *Metrics {
	return &Metrics{
		cfg:        cfg,
		reg:        reg,
		repoPath:   repoPath,
		hasher:     stdcrypto.Hasher{},
		counters:   map[string]*prometheus.CounterVec{},
		gauges:     map[string]*prometheus.GaugeVec{},
		histograms: map[string]*prometheus.HistogramVec{},
	}
}

func canonicalTags(tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(tags[k])
	}
	return b.String()
}

func sanitizeMetricName(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

func (m *Metrics) counterVec(name string) *prometheus.CounterVec {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.counters[name]; ok {
		return v
	}
	v := promauto.With(m.reg).NewCounterVec(prometheus.CounterOpts{Name: sanitizeMetricName(name)}, []string{tagsLabel})
	m.counters[name] = v
	return v
}

func (m *Metrics) gaugeVec(name string) *prometheus.GaugeVec {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.gauges[name]; ok {
		return v
	}
	v := promauto.With(m.reg).NewGaugeVec(prometheus.GaugeOpts{Name: sanitizeMetricName(name)}, []string{tagsLabel})
	m.gauges[name] = v
	return v
}

func (m *Metrics) histogramVec(name string) *prometheus.HistogramVec {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.histograms[name]; ok {
		return v
	}
	v := promauto.With(m.reg).NewHistogramVec(prometheus.HistogramOpts{Name: sanitizeMetricName(name)}, []string{tagsLabel})
	m.histograms[name] = v
	return v
}

// CounterAdd implements ports.Metrics.
func (m *Metrics) CounterAdd(name string, value float64, tags map[string]string) {
	if !m.cfg.MetricsEnabled {
		return
	}
	m.counterVec(name).WithLabelValues(canonicalTags(m.applyPolicy(tags))).Add(value)
}

// GaugeSet implements ports.Metrics.
func (m *Metrics) GaugeSet(name string, value float64, tags map[string]string) {
	if !m.cfg.MetricsEnabled {
		return
	}
	m.gaugeVec(name).WithLabelValues(canonicalTags(m.applyPolicy(tags))).Set(value)
}

// TimingMS implements ports.Metrics.
func (m *Metrics) TimingMS(name string, value float64, tags map[string]string) {
	if !m.cfg.MetricsEnabled {
		return
	}
	m.histogramVec(name).WithLabelValues(canonicalTags(m.applyPolicy(tags))).Observe(value)
}

// applyPolicy enforces spec §6's tag policy: branch/mode tags are
// dropped when disabled, any extra tags parsed from the environment are
// merged in, and a repo= tag is attached per cfg.RepoTag/RepoHashAlgo
// (without overriding a caller-supplied tag of the same key in any
// case).
func (m *Metrics) applyPolicy(tags map[string]string) map[string]string {
	out := map[string]string{}
	for k, v := range tags {
		if k == "branch" && !m.cfg.BranchTag {
			continue
		}
		if k == "mode" && !m.cfg.ModeTag {
			continue
		}
		out[k] = v
	}
	for k, v := range m.cfg.ExtraTags {
		if _, exists := out[k]; !exists {
			out[k] = v
		}
	}
	if repo, ok := m.repoTag(); ok {
		if _, exists := out["repo"]; !exists {
			out["repo"] = repo
		}
	}
	return out
}

// repoTag renders the repo= tag value per spec §6: RepoTagOff attaches
// nothing, RepoTagPlain uses the repository path verbatim (commas
// escaped so it can't corrupt the canonical "k=v,k=v" tag rendering),
// and RepoTagHash hashes it with RepoHashAlgo so the path itself never
// leaves the process.
func (m *Metrics) repoTag() (string, bool) {
	if m.repoPath == "" || m.cfg.RepoTag == RepoTagOff {
		return "", false
	}
	if m.cfg.RepoTag == RepoTagPlain {
		return strings.ReplaceAll(m.repoPath, ",", ";"), true
	}
	return m.repoHash(), true
}

func (m *Metrics) repoHash() string {
	if m.cfg.RepoHashAlgo == RepoHashSHA256 {
		hasher := m.hasher
		if hasher == nil {
			hasher = stdcrypto.Hasher{}
		}
		sum := hasher.Sum256([]byte(m.repoPath))
		return hex.EncodeToString(sum[:8])
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(m.repoPath))
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(h.Sum64() >> (8 * (7 - i)))
	}
	return hex.EncodeToString(buf[:])
}
