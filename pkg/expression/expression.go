// Package expression turns per-frame eye and mouth ratios into debounced
// events with running counts.
//
// Each signal is latched: an event fires once when the signal crosses its
// threshold and cannot fire again until the opposite condition is seen.
// The eye uses two thresholds with a dead zone between them; the mouth a
// single threshold.
package expression

import (
	"fmt"

	"github.com/teslashibe/go-facesense/pkg/metrics"
)

// Default thresholds.
const (
	DefaultEyeCloseThreshold  = 0.08
	DefaultEyeOpenThreshold   = 0.15
	DefaultMouthOpenThreshold = 0.3
)

// Thresholds holds the trigger levels for each signal.
type Thresholds struct {
	EyeClose  float64 `json:"eye_close" yaml:"eye_close"`   // EAR below this closes
	EyeOpen   float64 `json:"eye_open" yaml:"eye_open"`     // EAR above this opens
	MouthOpen float64 `json:"mouth_open" yaml:"mouth_open"` // MAR above this opens
}

// DefaultThresholds returns the stock trigger levels.
func DefaultThresholds() Thresholds {
	return Thresholds{
		EyeClose:  DefaultEyeCloseThreshold,
		EyeOpen:   DefaultEyeOpenThreshold,
		MouthOpen: DefaultMouthOpenThreshold,
	}
}

// Validate checks that the eye thresholds leave a non-empty dead zone.
func (t Thresholds) Validate() error {
	if t.EyeClose <= 0 || t.EyeOpen <= t.EyeClose {
		return fmt.Errorf("%w: need 0 < eye_close (%v) < eye_open (%v)", ErrInvalidThresholds, t.EyeClose, t.EyeOpen)
	}
	if t.MouthOpen <= 0 {
		return fmt.Errorf("%w: mouth_open must be positive, got %v", ErrInvalidThresholds, t.MouthOpen)
	}
	return nil
}

// Event is a discrete transition.
type Event int

const (
	// EyeClosed fires when EAR drops below the close threshold.
	EyeClosed Event = iota
	// EyeOpened fires when EAR rises above the open threshold.
	EyeOpened
	// MouthOpened fires when MAR rises above the mouth threshold.
	MouthOpened
)

// String returns the event name used on the wire.
func (e Event) String() string {
	switch e {
	case EyeClosed:
		return "eye_closed"
	case EyeOpened:
		return "eye_opened"
	case MouthOpened:
		return "mouth_opened"
	default:
		return "unknown"
	}
}

// MarshalText encodes the event by name.
func (e Event) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText decodes an event name.
func (e *Event) UnmarshalText(text []byte) error {
	switch string(text) {
	case "eye_closed":
		*e = EyeClosed
	case "eye_opened":
		*e = EyeOpened
	case "mouth_opened":
		*e = MouthOpened
	default:
		return fmt.Errorf("unknown event %q", text)
	}
	return nil
}

// State is one subject's latches and counters. The zero value is the
// initial state. Counters only grow.
type State struct {
	EyeClosed bool `json:"eye_closed"`
	EyeOpened bool `json:"eye_opened"`
	MouthOpen bool `json:"mouth_open"`

	EyeCloseCount  uint64 `json:"eye_close_count"`
	EyeOpenCount   uint64 `json:"eye_open_count"`
	MouthOpenCount uint64 `json:"mouth_open_count"`
}

// Machine applies Thresholds to a State.
type Machine struct {
	thresholds Thresholds
}

// NewMachine creates a machine with the given thresholds.
func NewMachine(t Thresholds) (*Machine, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Machine{thresholds: t}, nil
}

// Thresholds returns the machine's trigger levels.
func (m *Machine) Thresholds() Thresholds {
	return m.thresholds
}

// Update advances s by one tick and returns the events that fired.
// Signals marked invalid in the sample leave their sub-machine untouched.
func (m *Machine) Update(s *State, sample metrics.Sample) []Event {
	var events []Event
	if sample.EyeValid {
		if e, ok := m.UpdateEye(s, sample.EAR); ok {
			events = append(events, e)
		}
	}
	if sample.MouthValid {
		if e, ok := m.UpdateMouth(s, sample.MAR); ok {
			events = append(events, e)
		}
	}
	return events
}

// UpdateEye runs the eye sub-machine for one EAR reading.
// Readings inside the dead zone never transition.
func (m *Machine) UpdateEye(s *State, ear float64) (Event, bool) {
	switch {
	case ear < m.thresholds.EyeClose && !s.EyeClosed:
		s.EyeCloseCount++
		s.EyeClosed = true
		s.EyeOpened = false
		return EyeClosed, true
	case ear > m.thresholds.EyeOpen && !s.EyeOpened:
		s.EyeOpenCount++
		s.EyeOpened = true
		s.EyeClosed = false
		return EyeOpened, true
	}
	return 0, false
}

// UpdateMouth runs the mouth sub-machine for one MAR reading.
func (m *Machine) UpdateMouth(s *State, mar float64) (Event, bool) {
	if mar > m.thresholds.MouthOpen {
		if !s.MouthOpen {
			s.MouthOpenCount++
			s.MouthOpen = true
			return MouthOpened, true
		}
		return 0, false
	}
	s.MouthOpen = false
	return 0, false
}
