// Package landmark defines face mesh frames and the fixed index groups the
// metrics are computed from.
//
// Indices follow the 478-point face mesh with iris refinement: 468 and 473
// are the iris centers, so a usable frame has at least MinFrameLen points.
package landmark

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-facesense/pkg/geometry"
)

// ErrMalformedFrame is returned when a frame lacks an index a group needs.
// It signals a detector contract violation, not a measurement problem.
var ErrMalformedFrame = errors.New("malformed landmark frame")

// Landmark is a single normalized mesh point.
type Landmark = geometry.Point

// Frame is one face's landmarks for one video tick. Index i always denotes
// the same anatomical point.
type Frame []Landmark

// Group is an ordered list of frame indices.
type Group []int

// Aspect-ratio groups list the reference corners at positions 0 and 4 and
// the three upper/lower pairs at (1,5), (2,6), (3,7).
var (
	LeftEye  = Group{263, 385, 386, 387, 362, 380, 374, 373}
	RightEye = Group{33, 160, 159, 158, 133, 144, 145, 153}
	Mouth    = Group{61, 81, 13, 311, 291, 178, 14, 402}

	// Pose is ordered right iris, left iris, nose tip, right mouth corner,
	// left mouth corner (subject's sides).
	Pose = Group{468, 473, 4, 61, 291}
)

// MinFrameLen is the smallest frame every group can be read from.
var MinFrameLen = maxIndex(LeftEye, RightEye, Mouth, Pose) + 1

// NamedGroup pairs a group with the name renderers use for it.
type NamedGroup struct {
	Name    string `json:"name"`
	Indices Group  `json:"indices"`
}

// Groups returns copies of the groups a renderer highlights.
func Groups() []NamedGroup {
	return []NamedGroup{
		{Name: "left_eye", Indices: clone(LeftEye)},
		{Name: "right_eye", Indices: clone(RightEye)},
		{Name: "mouth", Indices: clone(Mouth)},
		{Name: "pose", Indices: clone(Pose)},
	}
}

// Validate reports whether every group can be read from the frame and
// every grouped point is a finite coordinate inside [0,1].
func (f Frame) Validate() error {
	if len(f) < MinFrameLen {
		return fmt.Errorf("%w: %d landmarks, need at least %d", ErrMalformedFrame, len(f), MinFrameLen)
	}
	for _, g := range []Group{LeftEye, RightEye, Mouth, Pose} {
		for _, idx := range g {
			if p := f[idx]; !normalized(p.X) || !normalized(p.Y) {
				return fmt.Errorf("%w: landmark %d at (%v, %v) outside [0,1]", ErrMalformedFrame, idx, p.X, p.Y)
			}
		}
	}
	return nil
}

// normalized is also false for NaN.
func normalized(v float64) bool {
	return v >= 0 && v <= 1
}

// Select returns the group's points in group order.
func (f Frame) Select(g Group) ([]Landmark, error) {
	pts := make([]Landmark, len(g))
	for i, idx := range g {
		if idx < 0 || idx >= len(f) {
			return nil, fmt.Errorf("%w: index %d out of range for %d landmarks", ErrMalformedFrame, idx, len(f))
		}
		pts[i] = f[idx]
	}
	return pts, nil
}

// Select8 returns an aspect-ratio group as a fixed array.
func (f Frame) Select8(g Group) ([8]Landmark, error) {
	var out [8]Landmark
	if len(g) != len(out) {
		return out, fmt.Errorf("group has %d indices, want %d", len(g), len(out))
	}
	pts, err := f.Select(g)
	if err != nil {
		return out, err
	}
	copy(out[:], pts)
	return out, nil
}

// Select5 returns the pose group as a fixed array.
func (f Frame) Select5(g Group) ([5]Landmark, error) {
	var out [5]Landmark
	if len(g) != len(out) {
		return out, fmt.Errorf("group has %d indices, want %d", len(g), len(out))
	}
	pts, err := f.Select(g)
	if err != nil {
		return out, err
	}
	copy(out[:], pts)
	return out, nil
}

func clone(g Group) Group {
	out := make(Group, len(g))
	copy(out, g)
	return out
}

func maxIndex(groups ...Group) int {
	m := -1
	for _, g := range groups {
		for _, idx := range g {
			if idx > m {
				m = idx
			}
		}
	}
	return m
}
