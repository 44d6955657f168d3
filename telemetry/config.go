// Package telemetry builds the Logger/Metrics/Diagnostics adapters used
// by every git-mind component from the environment variables spec §6
// lists under "Environment variables consumed". Config parsing is
// grounded on go-git's own environment handling
// (plumbing/transport/http honoring GIT_SSL_NO_VERIFY-style flags):
// read once, validate with clear drop-on-invalid semantics, never
// panic.
package telemetry

import (
	"strings"

	"github.com/neuroglyph/git-mind-sub001/ports"
)

// RepoTagMode selects how (or whether) the repo tag is attached to
// metrics.
type RepoTagMode int

const (
	RepoTagOff RepoTagMode = iota
	RepoTagHash
	RepoTagPlain
)

// RepoHashAlgo selects the algorithm used when RepoTagMode is
// RepoTagHash.
type RepoHashAlgo int

const (
	RepoHashFNV RepoHashAlgo = iota
	RepoHashSHA256
)

// Config is the parsed form of spec §6's telemetry environment
// variables.
type Config struct {
	MetricsEnabled  bool
	BranchTag       bool
	ModeTag         bool
	RepoTag         RepoTagMode
	RepoHashAlgo    RepoHashAlgo
	ExtraTags       map[string]string
	ExtrasDropped   bool
	LogLevel        ports.LogLevel
	LogFormat       string // "text" or "json"
}

func boolEnv(env ports.Env, key string, def bool) bool {
	v, ok := env.Get(key)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "0", "false", "no", "off":
		return false
	case "1", "true", "yes", "on":
		return true
	default:
		return def
	}
}

func isValidTagKey(k string) bool {
	if k == "" {
		return false
	}
	for _, r := range k {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '_' && r != '-' {
			return false
		}
	}
	return true
}

func isValidTagValue(v string) bool {
	if v == "" {
		return false
	}
	for _, r := range v {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.' || r == ':' || r == '@' || r == '/':
		default:
			return false
		}
	}
	return true
}

// parseExtraTags implements GITMIND_METRICS_EXTRA_TAGS's "invalid pairs
// dropped and extras_dropped=true flagged" rule, capped at three tags
// (spec §6's tag policy).
func parseExtraTags(raw string) (map[string]string, bool) {
	tags := map[string]string{}
	dropped := false
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok || !isValidTagKey(k) || !isValidTagValue(v) {
			dropped = true
			continue
		}
		if len(tags) >= 3 {
			dropped = true
			continue
		}
		tags[k] = v
	}
	return tags, dropped
}

func parseLogLevel(s string) ports.LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return ports.Debug
	case "WARN":
		return ports.Warn
	case "ERROR":
		return ports.Error
	default:
		return ports.Info
	}
}

func parseRepoTagMode(s string) RepoTagMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hash":
		return RepoTagHash
	case "plain":
		return RepoTagPlain
	default:
		return RepoTagOff
	}
}

func parseRepoHashAlgo(s string) RepoHashAlgo {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sha256":
		return RepoHashSHA256
	default:
		return RepoHashFNV
	}
}

// LoadConfig reads spec §6's telemetry environment variables through
// env, applying each variable's documented default when unset or
// unparseable.
func LoadConfig(env ports.Env) Config {
	cfg := Config{
		MetricsEnabled: boolEnv(env, "GITMIND_METRICS_ENABLED", true),
		BranchTag:      boolEnv(env, "GITMIND_METRICS_BRANCH_TAG", true),
		ModeTag:        boolEnv(env, "GITMIND_METRICS_MODE_TAG", true),
		RepoTag:        RepoTagOff,
		RepoHashAlgo:   RepoHashFNV,
		LogLevel:       ports.Info,
		LogFormat:      "text",
	}

	if v, ok := env.Get("GITMIND_METRICS_REPO_TAG"); ok {
		cfg.RepoTag = parseRepoTagMode(v)
	}
	if v, ok := env.Get("GITMIND_METRICS_REPO_HASH_ALGO"); ok {
		cfg.RepoHashAlgo = parseRepoHashAlgo(v)
	}
	if v, ok := env.Get("GITMIND_METRICS_EXTRA_TAGS"); ok {
		cfg.ExtraTags, cfg.ExtrasDropped = parseExtraTags(v)
	}
	if v, ok := env.Get("GITMIND_LOG_LEVEL"); ok {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v, ok := env.Get("GITMIND_LOG_FORMAT"); ok {
		if strings.ToLower(strings.TrimSpace(v)) == "json" {
			cfg.LogFormat = "json"
		}
	}

	return cfg
}
