package journal_test

import (
	"sync"

	"github.com/neuroglyph/git-mind-sub001/giterr"
	"github.com/neuroglyph/git-mind-sub001/ports"
)

// fakeRepository wraps a real ports.Repository and lets a test script a
// fixed number of ReferenceUpdate failures before delegating through,
// the same "inject N failures then behave" shape go-git's own storage
// fakes use for compare-and-set races.
type fakeRepository struct {
	ports.Repository

	mu                sync.Mutex
	refUpdateFailures int
}

func (f *fakeRepository) failNextReferenceUpdates(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refUpdateFailures = n
}

func (f *fakeRepository) ReferenceUpdate(update ports.ReferenceUpdate) error {
	f.mu.Lock()
	if f.refUpdateFailures > 0 {
		f.refUpdateFailures--
		f.mu.Unlock()
		return giterr.New(giterr.AlreadyExists, "simulated non-fast-forward reference update")
	}
	f.mu.Unlock()
	return f.Repository.ReferenceUpdate(update)
}

// recordingDiagnostics captures every Emit call so a test can assert an
// anomaly breadcrumb fired exactly once.
type recordingDiagnostics struct {
	mu     sync.Mutex
	events []diagnosticEvent
}

type diagnosticEvent struct {
	component string
	event     string
	kv        map[string]string
}

func (d *recordingDiagnostics) Emit(component, event string, kv map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, diagnosticEvent{component: component, event: event, kv: kv})
}

func (d *recordingDiagnostics) countEvent(event string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, e := range d.events {
		if e.event == event {
			n++
		}
	}
	return n
}
