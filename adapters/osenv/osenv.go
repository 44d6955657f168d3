// Package osenv is the default ports.Env adapter (spec §6), a thin
// wrapper over os.LookupEnv. Like adapters/stdcrypto, this stays on the
// standard library deliberately: reading a process's own environment
// variables has no third-party equivalent in the pack worth wiring in
// place of os.LookupEnv.
package osenv

import "os"

// Env implements ports.Env directly on os.LookupEnv.
type Env struct{}

func (Env) Get(key string) (string, bool) {
	return os.LookupEnv(key)
}
