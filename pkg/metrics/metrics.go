// Package metrics extracts eye, mouth and head pose measurements from a
// landmark frame.
package metrics

import (
	"math"

	"github.com/teslashibe/go-facesense/pkg/geometry"
	"github.com/teslashibe/go-facesense/pkg/landmark"
)

// Pose is a coarse head orientation in degrees. Values are heuristic and
// are not clamped; readings outside [-90, 90] should be treated as noise.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Sample is everything measured from one frame.
type Sample struct {
	EAR        float64 `json:"ear"`
	EyeValid   bool    `json:"ear_valid"`
	MAR        float64 `json:"mar"`
	MouthValid bool    `json:"mar_valid"`
	Pose       Pose    `json:"pose"`
}

// EAR returns the eye aspect ratio averaged over both eyes. ok is false
// when either eye is degenerate; the ratio is then geometry.Degenerate.
func EAR(f landmark.Frame) (ear float64, ok bool, err error) {
	left, err := f.Select8(landmark.LeftEye)
	if err != nil {
		return geometry.Degenerate, false, err
	}
	right, err := f.Select8(landmark.RightEye)
	if err != nil {
		return geometry.Degenerate, false, err
	}

	l, lok := geometry.FourPointAspectRatio(left)
	r, rok := geometry.FourPointAspectRatio(right)
	if !lok || !rok {
		return geometry.Degenerate, false, nil
	}
	return (l + r) / 2, true, nil
}

// MAR returns the mouth aspect ratio.
func MAR(f landmark.Frame) (mar float64, ok bool, err error) {
	mouth, err := f.Select8(landmark.Mouth)
	if err != nil {
		return geometry.Degenerate, false, err
	}
	mar, ok = geometry.FourPointAspectRatio(mouth)
	return mar, ok, nil
}

// HeadPose estimates roll, pitch and yaw from the frame's pose group.
func HeadPose(f landmark.Frame) (Pose, error) {
	pts, err := f.Select5(landmark.Pose)
	if err != nil {
		return Pose{}, err
	}
	return HeadPoseFromPoints(pts), nil
}

// HeadPoseFromPoints estimates head pose from five points ordered right
// eye, left eye, nose tip, right mouth corner, left mouth corner.
//
// Roll is the tilt of the eye line. The points are then rotated level
// about the nose and yaw/pitch come from where the nose sits between the
// eyes and the mouth corners: centered reads as 0, each edge as ±90.
func HeadPoseFromPoints(pts [5]geometry.Point) Pose {
	dxEyes := math.Max(pts[1].X-pts[0].X, 1.0)
	dyEyes := pts[1].Y - pts[0].Y
	angle := math.Atan2(dyEyes, dxEyes)

	alpha := math.Cos(angle)
	beta := math.Sin(angle)

	var r [5]geometry.Point
	for i, p := range pts {
		r[i] = geometry.Rotate(p, pts[2], alpha, beta)
	}

	dXtot := (r[1].X - r[0].X + r[4].X - r[3].X) / 2
	dYtot := (r[3].Y - r[0].Y + r[4].Y - r[1].Y) / 2

	dXnose := (r[1].X - r[2].X + r[4].X - r[2].X) / 2
	dYnose := (r[3].Y - r[2].Y + r[4].Y - r[2].Y) / 2

	return Pose{
		Roll:  geometry.Degrees(angle),
		Pitch: frontal(dYnose, dYtot),
		Yaw:   frontal(dXnose, dXtot),
	}
}

// frontal maps the nose offset fraction to degrees; a zero span yields 0.
func frontal(nose, total float64) float64 {
	if total == 0 {
		return 0
	}
	return -90 + (90/0.5)*nose/total
}

// Extract computes every metric for a frame. A frame that cannot supply
// all groups fails with landmark.ErrMalformedFrame and no partial sample.
func Extract(f landmark.Frame) (Sample, error) {
	if err := f.Validate(); err != nil {
		return Sample{}, err
	}

	var s Sample
	var err error
	if s.EAR, s.EyeValid, err = EAR(f); err != nil {
		return Sample{}, err
	}
	if s.MAR, s.MouthValid, err = MAR(f); err != nil {
		return Sample{}, err
	}
	if s.Pose, err = HeadPose(f); err != nil {
		return Sample{}, err
	}
	return s, nil
}
