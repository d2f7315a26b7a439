// Package detection finds faces and their five keypoints in camera frames
package detection

import "github.com/teslashibe/go-facesense/pkg/geometry"

// Keypoint order as reported by the detector. It matches landmark.Pose.
const (
	RightEye = iota
	LeftEye
	NoseTip
	RightMouth
	LeftMouth
)

// Detection represents a detected face
type Detection struct {
	X, Y       float64 // Top-left corner (0-1 normalized)
	W, H       float64 // Width and height (0-1 normalized)
	Confidence float64 // Detection confidence (0-1)

	// Keypoints are normalized to the frame, in RightEye..LeftMouth order.
	Keypoints [5]geometry.Point
}

// Center returns the center point of the detection
func (d Detection) Center() (x, y float64) {
	return d.X + d.W/2, d.Y + d.H/2
}

// Area returns the area of the bounding box
func (d Detection) Area() float64 {
	return d.W * d.H
}

// PosePoints returns the keypoints in the order metrics.HeadPoseFromPoints
// expects.
func (d Detection) PosePoints() [5]geometry.Point {
	return d.Keypoints
}

// Detector is the interface for face detection backends
type Detector interface {
	// Detect finds faces in a JPEG image
	Detect(jpeg []byte) ([]Detection, error)

	// Close releases resources
	Close() error
}

// Config holds detector configuration
type Config struct {
	ModelPath        string  // Path to ONNX model
	ConfidenceThresh float64 // Minimum confidence (default 0.5)
	InputWidth       int     // Model input width
	InputHeight      int     // Model input height
}

// DefaultConfig returns defaults for YuNet
func DefaultConfig() Config {
	return Config{
		ModelPath:        "models/face_detection_yunet.onnx",
		ConfidenceThresh: 0.5,
		InputWidth:       320,
		InputHeight:      320,
	}
}

// SelectBest picks the primary face from multiple detections.
// Score: confidence * 0.7 + relative area * 0.3
func SelectBest(dets []Detection) *Detection {
	if len(dets) == 0 {
		return nil
	}
	if len(dets) == 1 {
		return &dets[0]
	}

	maxArea := 0.0
	for _, d := range dets {
		if d.Area() > maxArea {
			maxArea = d.Area()
		}
	}

	bestScore := -1.0
	var best *Detection
	for i := range dets {
		score := dets[i].Confidence * 0.7
		if maxArea > 0 {
			score += (dets[i].Area() / maxArea) * 0.3
		}
		if score > bestScore {
			bestScore = score
			best = &dets[i]
		}
	}
	return best
}

// fromRow converts one detector output row into a normalized detection.
// Row layout: x, y, w, h in pixels, five keypoint x,y pairs, score.
func fromRow(row [15]float32, imgW, imgH float64) Detection {
	d := Detection{
		X:          float64(row[0]) / imgW,
		Y:          float64(row[1]) / imgH,
		W:          float64(row[2]) / imgW,
		H:          float64(row[3]) / imgH,
		Confidence: float64(row[14]),
	}
	for i := range d.Keypoints {
		d.Keypoints[i] = geometry.Point{
			X: float64(row[4+2*i]) / imgW,
			Y: float64(row[5+2*i]) / imgH,
		}
	}
	return d
}
