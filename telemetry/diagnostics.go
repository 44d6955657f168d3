package telemetry

import "github.com/neuroglyph/git-mind-sub001/ports"

// Diagnostics implements ports.Diagnostics by logging anomaly
// breadcrumbs (journal_nff_retry, rebuild_prep_failed, ...) at WARN
// through the same Logger sink, per spec §7's "Telemetry and
// diagnostics failures are swallowed (logged at WARN at most)".
type Diagnostics struct {
	Logger *Logger
}

// Emit implements ports.Diagnostics.
func (d *Diagnostics) Emit(component, event string, kv map[string]string) {
	if d == nil || d.Logger == nil {
		return
	}
	fields := make(map[string]any, len(kv)+1)
	fields["event"] = event
	for k, v := range kv {
		fields[k] = v
	}
	d.Logger.Log(ports.Warn, component, "diagnostic: "+event, fields)
}
