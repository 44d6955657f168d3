// Package refs names the reference patterns git-mind uses to store its
// state inside the host repository (spec §6 "Persisted state layout").
// It has no logic beyond string formatting so both journal and cache
// can depend on it without creating an import cycle between them.
package refs

// Journal returns the per-branch journal reference name.
func Journal(branch string) string {
	return "refs/gitmind/edges/" + branch
}

// Cache returns the per-branch cache reference name.
func Cache(branch string) string {
	return "refs/gitmind/cache/" + branch
}

// LegacyCacheGlob returns the glob pattern for legacy timestamped cache
// snapshots under a branch.
func LegacyCacheGlob(branch string) string {
	return Cache(branch) + "/*"
}
