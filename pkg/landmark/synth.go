package landmark

// Shape describes a synthetic face for Synthesize.
type Shape struct {
	EyeRatio   float64 // target aspect ratio for both eyes
	MouthRatio float64 // target mouth aspect ratio
	NoseShiftX float64 // horizontal nose offset, turns yaw
	NoseShiftY float64 // vertical nose offset, turns pitch
}

// Synthesize builds a full-size frame whose groups measure exactly the
// ratios in s. Points outside the groups sit at the face center. Used for
// replay demos and tests where no detector is available.
func Synthesize(s Shape) Frame {
	f := make(Frame, 478)
	for i := range f {
		f[i] = Landmark{X: 0.5, Y: 0.5}
	}

	place(f, RightEye, Landmark{X: 0.4, Y: 0.4}, 0.1, s.EyeRatio)
	place(f, LeftEye, Landmark{X: 0.6, Y: 0.4}, 0.1, s.EyeRatio)
	place(f, Mouth, Landmark{X: 0.5, Y: 0.7}, 0.2, s.MouthRatio)

	f[Pose[0]] = Landmark{X: 0.4, Y: 0.4}
	f[Pose[1]] = Landmark{X: 0.6, Y: 0.4}
	f[Pose[2]] = Landmark{X: 0.5 + s.NoseShiftX, Y: 0.55 + s.NoseShiftY}
	return f
}

// place lays an aspect-ratio group out horizontally around center so that
// its four-point ratio equals ratio.
func place(f Frame, g Group, center Landmark, width, ratio float64) {
	h := ratio * width
	left := center.X - width/2
	f[g[0]] = Landmark{X: left, Y: center.Y}
	f[g[4]] = Landmark{X: left + width, Y: center.Y}
	for i := 1; i <= 3; i++ {
		x := left + float64(i)*width/4
		f[g[i]] = Landmark{X: x, Y: center.Y - h/2}
		f[g[i+4]] = Landmark{X: x, Y: center.Y + h/2}
	}
}
