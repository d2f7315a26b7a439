// Package geometry provides the point math behind the facial metrics:
// distances, four-point aspect ratios and the in-plane rotation used to
// frontalize a face before estimating head pose.
//
// Nothing in this package knows about faces. Callers pick the points.
package geometry

import "math"

// Degenerate is the value FourPointAspectRatio reports when the vertical
// reference distance is zero and no ratio can be computed.
const Degenerate = 0.0

// Point is a normalized image coordinate. Z is carried through but never
// used by the 2D math.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// Distance returns the Euclidean distance between two points in the XY plane.
func Distance(p1, p2 Point) float64 {
	dx := p1.X - p2.X
	dy := p1.Y - p2.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// FourPointAspectRatio measures an opening described by four point pairs.
// Pair (0,4) is the reference span; pairs (1,5), (2,6) and (3,7) are the
// openings averaged against it:
//
//	ratio = (h1 + h2 + h3) / (3 * v1)
//
// When the reference span collapses to zero, or the points are so far out
// that the ratio overflows, (Degenerate, false) is returned instead of Inf
// or NaN.
func FourPointAspectRatio(pts [8]Point) (float64, bool) {
	v1 := Distance(pts[0], pts[4])
	if v1 == 0 {
		return Degenerate, false
	}

	h1 := Distance(pts[1], pts[5])
	h2 := Distance(pts[2], pts[6])
	h3 := Distance(pts[3], pts[7])

	ratio := (h1 + h2 + h3) / (3 * v1)
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) || math.IsInf(v1, 0) {
		return Degenerate, false
	}
	return ratio, true
}

// Rotate applies the frontalizing rotation with alpha=cos(angle) and
// beta=sin(angle) about pivot. The translation term uses half the pivot
// offset; only differences between rotated points are meaningful.
func Rotate(p, pivot Point, alpha, beta float64) Point {
	return Point{
		X: alpha*p.X + beta*p.Y + (1-alpha)*pivot.X/2 - beta*pivot.Y/2,
		Y: -beta*p.X + alpha*p.Y + beta*pivot.X/2 + (1-alpha)*pivot.Y/2,
		Z: p.Z,
	}
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}
