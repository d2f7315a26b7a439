// Package pipeline runs the metric extractor and expression tracker over
// landmark ticks and fans the results out to sinks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/teslashibe/go-facesense/internal/log"
	"github.com/teslashibe/go-facesense/pkg/debug"
	"github.com/teslashibe/go-facesense/pkg/expression"
	"github.com/teslashibe/go-facesense/pkg/landmark"
	"github.com/teslashibe/go-facesense/pkg/metrics"
)

// Face is one detected face in a tick.
type Face struct {
	// Subject identifies the face across ticks. Empty means face_<index>.
	Subject   string         `json:"subject,omitempty"`
	Landmarks landmark.Frame `json:"landmarks" validate:"required,min=1"`
}

// Tick is the detector output for one video frame.
type Tick struct {
	Seq   uint64 `json:"seq"`
	Faces []Face `json:"faces" validate:"dive"`
}

// FaceResult is the outcome for one face.
type FaceResult struct {
	Subject string              `json:"subject"`
	Sample  metrics.Sample      `json:"metrics"`
	Counts  expression.Snapshot `json:"state"`
	Events  []expression.Event  `json:"events,omitempty"`
}

// Result is the outcome of one tick.
type Result struct {
	Seq       uint64       `json:"seq"`
	Timestamp time.Time    `json:"timestamp"`
	Faces     []FaceResult `json:"faces"`
}

// FaceError reports a face that was skipped this tick.
type FaceError struct {
	Subject string
	Err     error
}

func (e *FaceError) Error() string {
	return fmt.Sprintf("face %s: %v", e.Subject, e.Err)
}

func (e *FaceError) Unwrap() error {
	return e.Err
}

// Sink receives every processed tick. Publish is called in tick order with
// the processor lock held, so it must return quickly. Sinks with slow
// transports queue the result and send it from their own goroutine.
type Sink interface {
	Publish(ctx context.Context, r Result) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, r Result) error

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, r Result) error {
	return f(ctx, r)
}

// Processor turns ticks into results. Ticks are processed one at a time
// so each subject sees its updates in arrival order.
type Processor struct {
	tracker *expression.Tracker

	mu    sync.Mutex
	sinks []Sink
	last  Result
	ticks uint64
}

// New creates a processor around tracker.
func New(tracker *expression.Tracker, sinks ...Sink) *Processor {
	return &Processor{
		tracker: tracker,
		sinks:   sinks,
	}
}

// AddSink registers a sink for subsequent ticks.
func (p *Processor) AddSink(s Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks = append(p.sinks, s)
}

// Tracker returns the processor's tracker.
func (p *Processor) Tracker() *expression.Tracker {
	return p.tracker
}

// Process runs one tick. Faces whose frames are malformed are left out of
// the result and reported in the returned error as *FaceError values
// wrapping landmark.ErrMalformedFrame; the other faces are still applied.
func (p *Processor) Process(ctx context.Context, tick Tick) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := Result{
		Seq:       tick.Seq,
		Timestamp: time.Now(),
		Faces:     make([]FaceResult, 0, len(tick.Faces)),
	}

	var errs []error
	for i, face := range tick.Faces {
		subject := face.Subject
		if subject == "" {
			subject = fmt.Sprintf("face_%d", i)
		}

		sample, err := metrics.Extract(face.Landmarks)
		if err != nil {
			errs = append(errs, &FaceError{Subject: subject, Err: err})
			continue
		}

		events, snap := p.tracker.Update(subject, sample)
		result.Faces = append(result.Faces, FaceResult{
			Subject: subject,
			Sample:  sample,
			Counts:  snap,
			Events:  events,
		})

		debug.MetricLog("tick",
			"seq", tick.Seq,
			"subject", subject,
			"ear", sample.EAR,
			"mar", sample.MAR,
			"roll", sample.Pose.Roll,
			"pitch", sample.Pose.Pitch,
			"yaw", sample.Pose.Yaw)
		for _, e := range events {
			debug.Log("expression event", "subject", subject, "event", e.String(), "seq", tick.Seq)
		}
	}

	p.ticks++
	p.last = result

	for _, s := range p.sinks {
		if err := s.Publish(ctx, result); err != nil {
			log.Warn("sink publish failed", "seq", tick.Seq, "error", err)
		}
	}

	return result, errors.Join(errs...)
}

// Last returns the most recent result and the number of ticks processed.
func (p *Processor) Last() (Result, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.ticks
}

// Groups returns the landmark groups a renderer highlights.
func Groups() []landmark.NamedGroup {
	return landmark.Groups()
}
