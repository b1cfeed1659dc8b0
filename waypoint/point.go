package waypoint

import "math"

// Point is a world-space position in pixels
type Point struct {
	X float32
	Y float32
}

// IsFinite reports whether both coordinates are neither NaN nor infinite
func (p Point) IsFinite() bool {
	return isFinite(p.X) && isFinite(p.Y)
}

// Distance returns the euclidean distance between p and q in world units
func (p Point) Distance(q Point) float64 {
	dx := float64(p.X) - float64(q.X)
	dy := float64(p.Y) - float64(q.Y)
	return math.Hypot(dx, dy)
}

func isFinite(f float32) bool {
	v := float64(f)
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
