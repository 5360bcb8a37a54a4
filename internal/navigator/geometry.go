package navigator

import "math"

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Lerp moves from p toward q by t in [0,1].
func (p Point) Lerp(q Point, t float64) Point {
	return Point{X: p.X + (q.X-p.X)*t, Y: p.Y + (q.Y-p.Y)*t}
}

func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / math.Sqrt(na*nb)
}

func euclidean(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return math.Sqrt(s)
}

// fitToCanvas scales points into [pad, size-pad] on both axes, keeping the
// aspect of the point cloud's bounding box per axis.
func fitToCanvas(pts []Point, width, height, pad float64) []Point {
	if len(pts) == 0 {
		return pts
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	innerW := math.Max(width-2*pad, 0)
	innerH := math.Max(height-2*pad, 0)
	out := make([]Point, len(pts))
	for i, p := range pts {
		x, y := width/2, height/2
		if maxX > minX {
			x = pad + (p.X-minX)/(maxX-minX)*innerW
		}
		if maxY > minY {
			y = pad + (p.Y-minY)/(maxY-minY)*innerH
		}
		out[i] = Point{X: x, Y: y}
	}
	return out
}
