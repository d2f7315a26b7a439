package expression

import (
	"sort"
	"sync"

	"github.com/teslashibe/go-facesense/pkg/metrics"
)

// Mode selects how subjects map to states.
type Mode string

const (
	// PerSubject keeps one state per subject id.
	PerSubject Mode = "per_subject"

	// Shared routes every subject into a single state, so simultaneous
	// faces count into the same counters.
	Shared Mode = "shared"
)

// SharedSubject is the key all subjects collapse to in Shared mode.
const SharedSubject = "shared"

// Snapshot is a copy of a subject's state.
type Snapshot struct {
	Subject string `json:"subject"`
	State
}

// Tracker owns the states of all subjects in a session. It is safe for
// concurrent use; callers must still feed each subject's ticks in order.
type Tracker struct {
	machine *Machine
	mode    Mode

	mu     sync.RWMutex
	states map[string]*State
}

// NewTracker creates a tracker. An empty mode means PerSubject.
func NewTracker(m *Machine, mode Mode) *Tracker {
	if mode == "" {
		mode = PerSubject
	}
	return &Tracker{
		machine: m,
		mode:    mode,
		states:  make(map[string]*State),
	}
}

// Mode returns the tracker's subject mode.
func (t *Tracker) Mode() Mode {
	return t.mode
}

// Thresholds returns the trigger levels applied to every subject.
func (t *Tracker) Thresholds() Thresholds {
	return t.machine.Thresholds()
}

// Key returns the state key a subject id maps to.
func (t *Tracker) Key(subject string) string {
	if t.mode == Shared {
		return SharedSubject
	}
	return subject
}

// Update applies a sample to the subject's state, creating it on first
// sight, and returns the fired events with the state after the update.
func (t *Tracker) Update(subject string, sample metrics.Sample) ([]Event, Snapshot) {
	key := t.Key(subject)

	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.states[key]
	if !ok {
		s = &State{}
		t.states[key] = s
	}
	events := t.machine.Update(s, sample)
	return events, Snapshot{Subject: key, State: *s}
}

// Snapshot returns a copy of the subject's state.
func (t *Tracker) Snapshot(subject string) (Snapshot, error) {
	key := t.Key(subject)

	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.states[key]
	if !ok {
		return Snapshot{}, ErrUnknownSubject
	}
	return Snapshot{Subject: key, State: *s}, nil
}

// Snapshots returns copies of every state, ordered by subject.
func (t *Tracker) Snapshots() []Snapshot {
	t.mu.RLock()
	out := make([]Snapshot, 0, len(t.states))
	for id, s := range t.states {
		out = append(out, Snapshot{Subject: id, State: *s})
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Subject < out[j].Subject })
	return out
}

// Remove discards a subject's state at the end of its session.
func (t *Tracker) Remove(subject string) bool {
	key := t.Key(subject)

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.states[key]; !ok {
		return false
	}
	delete(t.states, key)
	return true
}

// Len returns the number of tracked states.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.states)
}
