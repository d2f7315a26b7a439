package metrics

import (
	"errors"
	"math"
	"testing"

	"github.com/teslashibe/go-facesense/pkg/geometry"
	"github.com/teslashibe/go-facesense/pkg/landmark"
)

const tolerance = 1e-6

func near(a, b float64) bool {
	return math.Abs(a-b) < tolerance
}

func TestEAR(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
	}{
		{"open", 0.3},
		{"half", 0.12},
		{"closed", 0.05},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ear, ok, err := EAR(landmark.Synthesize(landmark.Shape{EyeRatio: tc.ratio}))
			if err != nil {
				t.Fatalf("EAR() error: %v", err)
			}
			if !ok {
				t.Fatal("EAR() ok = false, want true")
			}
			if !near(ear, tc.ratio) {
				t.Errorf("EAR() = %v, want %v", ear, tc.ratio)
			}
		})
	}
}

func TestEAR_AveragesEyes(t *testing.T) {
	f := landmark.Synthesize(landmark.Shape{EyeRatio: 0.2})
	// Close only the right eye.
	for i := 1; i <= 3; i++ {
		f[landmark.RightEye[i+4]] = f[landmark.RightEye[i]]
	}

	ear, ok, err := EAR(f)
	if err != nil || !ok {
		t.Fatalf("EAR() = %v, %v, %v", ear, ok, err)
	}
	if !near(ear, 0.1) {
		t.Errorf("EAR() = %v, want 0.1", ear)
	}
}

func TestEAR_DegenerateEye(t *testing.T) {
	f := landmark.Synthesize(landmark.Shape{EyeRatio: 0.2})
	f[landmark.LeftEye[4]] = f[landmark.LeftEye[0]]

	ear, ok, err := EAR(f)
	if err != nil {
		t.Fatalf("EAR() error: %v", err)
	}
	if ok {
		t.Error("EAR() ok = true, want false for collapsed eye")
	}
	if ear != geometry.Degenerate {
		t.Errorf("EAR() = %v, want sentinel %v", ear, geometry.Degenerate)
	}
}

func TestMAR(t *testing.T) {
	mar, ok, err := MAR(landmark.Synthesize(landmark.Shape{MouthRatio: 0.35}))
	if err != nil || !ok {
		t.Fatalf("MAR() = %v, %v, %v", mar, ok, err)
	}
	if !near(mar, 0.35) {
		t.Errorf("MAR() = %v, want 0.35", mar)
	}
}

func TestHeadPose_Frontal(t *testing.T) {
	pose, err := HeadPose(landmark.Synthesize(landmark.Shape{EyeRatio: 0.3}))
	if err != nil {
		t.Fatalf("HeadPose() error: %v", err)
	}
	if !near(pose.Roll, 0) || !near(pose.Pitch, 0) || !near(pose.Yaw, 0) {
		t.Errorf("HeadPose() = %+v, want all zero", pose)
	}
}

func TestHeadPose_Yaw(t *testing.T) {
	pose, err := HeadPose(landmark.Synthesize(landmark.Shape{NoseShiftX: 0.05}))
	if err != nil {
		t.Fatalf("HeadPose() error: %v", err)
	}
	if !near(pose.Yaw, -45) {
		t.Errorf("Yaw = %v, want -45", pose.Yaw)
	}
}

func TestHeadPose_Pitch(t *testing.T) {
	pose, err := HeadPose(landmark.Synthesize(landmark.Shape{NoseShiftY: 0.075}))
	if err != nil {
		t.Fatalf("HeadPose() error: %v", err)
	}
	// dYnose shrinks from 0.15 to 0.075 of a 0.3 span.
	if !near(pose.Pitch, -45) {
		t.Errorf("Pitch = %v, want -45", pose.Pitch)
	}
}

func TestHeadPoseFromPoints_Roll(t *testing.T) {
	pts := [5]geometry.Point{
		{X: 0.4, Y: 0.4},
		{X: 0.6, Y: 0.5},
		{X: 0.5, Y: 0.55},
		{X: 0.4, Y: 0.7},
		{X: 0.6, Y: 0.7},
	}

	pose := HeadPoseFromPoints(pts)

	// Horizontal eye span is floored at 1.0 in normalized space.
	want := geometry.Degrees(math.Atan(0.1))
	if !near(pose.Roll, want) {
		t.Errorf("Roll = %v, want %v", pose.Roll, want)
	}
}

func TestHeadPoseFromPoints_ZeroSpanYaw(t *testing.T) {
	pts := [5]geometry.Point{
		{X: 0.5, Y: 0.4},
		{X: 0.5, Y: 0.4},
		{X: 0.5, Y: 0.5},
		{X: 0.5, Y: 0.7},
		{X: 0.5, Y: 0.7},
	}

	pose := HeadPoseFromPoints(pts)
	if pose.Yaw != 0 {
		t.Errorf("Yaw = %v, want exactly 0 when dXtot == 0", pose.Yaw)
	}
	if math.IsNaN(pose.Pitch) || math.IsInf(pose.Pitch, 0) {
		t.Errorf("Pitch = %v, want finite", pose.Pitch)
	}
}

func TestHeadPoseFromPoints_AllCoincident(t *testing.T) {
	pose := HeadPoseFromPoints([5]geometry.Point{})
	if pose != (Pose{}) {
		t.Errorf("HeadPoseFromPoints(zero) = %+v, want zero pose", pose)
	}
}

func TestExtract(t *testing.T) {
	s, err := Extract(landmark.Synthesize(landmark.Shape{EyeRatio: 0.25, MouthRatio: 0.4}))
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if !s.EyeValid || !s.MouthValid {
		t.Errorf("Extract() validity = %v/%v, want true/true", s.EyeValid, s.MouthValid)
	}
	if !near(s.EAR, 0.25) || !near(s.MAR, 0.4) {
		t.Errorf("Extract() EAR/MAR = %v/%v, want 0.25/0.4", s.EAR, s.MAR)
	}
}

func TestExtract_MalformedFrame(t *testing.T) {
	short := landmark.Synthesize(landmark.Shape{EyeRatio: 0.3})[:468]

	_, err := Extract(short)
	if !errors.Is(err, landmark.ErrMalformedFrame) {
		t.Errorf("Extract() error = %v, want ErrMalformedFrame", err)
	}
}

func TestExtract_FarOutEyeRejected(t *testing.T) {
	f := landmark.Synthesize(landmark.Shape{EyeRatio: 0.3, MouthRatio: 0.1})
	for i, idx := range landmark.LeftEye {
		if i < 4 {
			f[idx].X = 0
		} else {
			f[idx].X = 1e200
		}
	}

	sample, err := Extract(f)
	if !errors.Is(err, landmark.ErrMalformedFrame) {
		t.Fatalf("Extract() error = %v, want ErrMalformedFrame", err)
	}
	if sample != (Sample{}) {
		t.Errorf("Extract() sample = %+v, want zero", sample)
	}

	// Without frame validation the overflowing eye reads as degenerate.
	ear, ok, err := EAR(f)
	if err != nil || ok || ear != geometry.Degenerate {
		t.Errorf("EAR() = %v, %v, %v, want %v, false, nil", ear, ok, err, geometry.Degenerate)
	}
}
