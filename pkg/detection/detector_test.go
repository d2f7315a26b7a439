package detection

import (
	"math"
	"testing"

	"github.com/teslashibe/go-facesense/pkg/metrics"
)

func TestDetection_Center(t *testing.T) {
	tests := []struct {
		name    string
		det     Detection
		expectX float64
		expectY float64
	}{
		{"center of image", Detection{X: 0.25, Y: 0.25, W: 0.5, H: 0.5}, 0.5, 0.5},
		{"top left corner", Detection{X: 0, Y: 0, W: 0.2, H: 0.2}, 0.1, 0.1},
		{"bottom right corner", Detection{X: 0.8, Y: 0.8, W: 0.2, H: 0.2}, 0.9, 0.9},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			x, y := tc.det.Center()
			if x != tc.expectX || y != tc.expectY {
				t.Errorf("Center() = (%.2f, %.2f), want (%.2f, %.2f)", x, y, tc.expectX, tc.expectY)
			}
		})
	}
}

func TestDetection_Area(t *testing.T) {
	det := Detection{W: 0.1, H: 0.2}
	if diff := det.Area() - 0.02; diff < -0.0001 || diff > 0.0001 {
		t.Errorf("Area() = %.4f, want 0.02", det.Area())
	}
}

func TestSelectBest(t *testing.T) {
	tests := []struct {
		name       string
		detections []Detection
		expectNil  bool
		expectIdx  int
	}{
		{
			name:       "empty list",
			detections: []Detection{},
			expectNil:  true,
		},
		{
			name:       "single detection",
			detections: []Detection{{X: 0.4, Y: 0.4, W: 0.2, H: 0.2, Confidence: 0.9}},
			expectIdx:  0,
		},
		{
			name: "high confidence beats larger area",
			detections: []Detection{
				{X: 0.0, Y: 0.0, W: 0.4, H: 0.4, Confidence: 0.5},
				{X: 0.3, Y: 0.3, W: 0.2, H: 0.2, Confidence: 0.95},
			},
			expectIdx: 1, // 0.95*0.7 + 0.25*0.3 = 0.74 vs 0.5*0.7 + 0.3 = 0.65
		},
		{
			name: "similar confidence picks larger",
			detections: []Detection{
				{X: 0.0, Y: 0.0, W: 0.5, H: 0.5, Confidence: 0.8},
				{X: 0.3, Y: 0.3, W: 0.1, H: 0.1, Confidence: 0.8},
			},
			expectIdx: 0,
		},
		{
			name: "zero area boxes fall back to confidence",
			detections: []Detection{
				{Confidence: 0.6},
				{Confidence: 0.7},
			},
			expectIdx: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			best := SelectBest(tc.detections)
			if tc.expectNil {
				if best != nil {
					t.Errorf("SelectBest() = %+v, want nil", best)
				}
				return
			}
			if best != &tc.detections[tc.expectIdx] {
				t.Errorf("SelectBest() = %+v, want index %d", best, tc.expectIdx)
			}
		})
	}
}

func TestFromRow(t *testing.T) {
	// 200x100 frame, box at (20,10) 100x50, frontal keypoints
	row := [15]float32{
		20, 10, 100, 50,
		50, 20, // right eye
		90, 20, // left eye
		70, 35, // nose
		55, 50, // right mouth
		85, 50, // left mouth
		0.9,
	}

	d := fromRow(row, 200, 100)

	if d.X != 0.1 || d.Y != 0.1 || d.W != 0.5 || d.H != 0.5 {
		t.Errorf("box = (%v, %v, %v, %v), want (0.1, 0.1, 0.5, 0.5)", d.X, d.Y, d.W, d.H)
	}
	if math.Abs(d.Confidence-0.9) > 1e-6 {
		t.Errorf("Confidence = %v, want 0.9", d.Confidence)
	}
	if nose := d.Keypoints[NoseTip]; nose.X != 0.35 || nose.Y != 0.35 {
		t.Errorf("nose = %+v, want (0.35, 0.35)", nose)
	}

	pose := metrics.HeadPoseFromPoints(d.PosePoints())
	if math.Abs(pose.Yaw) > 1e-9 || math.Abs(pose.Roll) > 1e-9 {
		t.Errorf("pose = %+v, want frontal yaw and level roll", pose)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ModelPath == "" {
		t.Error("ModelPath should not be empty")
	}
	if cfg.ConfidenceThresh <= 0 || cfg.ConfidenceThresh > 1 {
		t.Errorf("ConfidenceThresh should be 0-1, got %f", cfg.ConfidenceThresh)
	}
	if cfg.InputWidth <= 0 || cfg.InputHeight <= 0 {
		t.Errorf("input size should be positive, got %dx%d", cfg.InputWidth, cfg.InputHeight)
	}
}
