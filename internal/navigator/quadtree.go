package navigator

import "math"

const maxQuadDepth = 32

// quad is a Barnes-Hut cell. Leaves hold point indices; internal cells hold
// the aggregate charge and its weighted center.
type quad struct {
	x0, y0, x1, y1 float64
	children       [4]*quad
	points         []int
	charge         float64
	cx, cy         float64
}

func buildQuadtree(pos []Point, charge float64) *quad {
	if len(pos) == 0 {
		return nil
	}
	x0, y0 := math.Inf(1), math.Inf(1)
	x1, y1 := math.Inf(-1), math.Inf(-1)
	for _, p := range pos {
		x0, x1 = math.Min(x0, p.X), math.Max(x1, p.X)
		y0, y1 = math.Min(y0, p.Y), math.Max(y1, p.Y)
	}
	size := math.Max(math.Max(x1-x0, y1-y0), 1)
	root := &quad{x0: x0, y0: y0, x1: x0 + size, y1: y0 + size}
	for i := range pos {
		root.insert(pos, i, 0)
	}
	root.accumulate(pos, charge)
	return root
}

func (q *quad) leaf() bool {
	return q.children == [4]*quad{}
}

func (q *quad) insert(pos []Point, i, depth int) {
	if q.leaf() {
		if len(q.points) == 0 || depth >= maxQuadDepth {
			q.points = append(q.points, i)
			return
		}
		existing := q.points
		q.points = nil
		for _, e := range existing {
			q.child(pos[e]).insert(pos, e, depth+1)
		}
	}
	q.child(pos[i]).insert(pos, i, depth+1)
}

func (q *quad) child(p Point) *quad {
	mx, my := (q.x0+q.x1)/2, (q.y0+q.y1)/2
	idx := 0
	if p.X >= mx {
		idx |= 1
	}
	if p.Y >= my {
		idx |= 2
	}
	if q.children[idx] == nil {
		c := &quad{x0: q.x0, y0: q.y0, x1: mx, y1: my}
		if idx&1 != 0 {
			c.x0, c.x1 = mx, q.x1
		}
		if idx&2 != 0 {
			c.y0, c.y1 = my, q.y1
		}
		q.children[idx] = c
	}
	return q.children[idx]
}

func (q *quad) accumulate(pos []Point, charge float64) {
	var wx, wy, total float64
	if q.leaf() {
		for _, i := range q.points {
			wx += pos[i].X * charge
			wy += pos[i].Y * charge
			total += charge
		}
	} else {
		for _, c := range q.children {
			if c == nil {
				continue
			}
			c.accumulate(pos, charge)
			wx += c.cx * c.charge
			wy += c.cy * c.charge
			total += c.charge
		}
	}
	q.charge = total
	if total != 0 {
		q.cx, q.cy = wx/total, wy/total
	}
}

// applyCharge adds the many-body velocity change for node i. Cells whose
// width over distance is below theta are treated as one body.
func (q *quad) applyCharge(pos []Point, vel []Point, i int, alpha, theta2, distMax2 float64) {
	if q == nil || q.charge == 0 {
		return
	}
	dx, dy := q.cx-pos[i].X, q.cy-pos[i].Y
	l := dx*dx + dy*dy
	w := q.x1 - q.x0

	if !q.leaf() && w*w/theta2 < l {
		if l < distMax2 {
			l = math.Max(l, 1)
			f := q.charge * alpha / l
			vel[i].X += dx * f
			vel[i].Y += dy * f
		}
		return
	}
	if q.leaf() {
		per := q.charge / float64(len(q.points))
		for _, j := range q.points {
			if j == i {
				continue
			}
			dx, dy := pos[j].X-pos[i].X, pos[j].Y-pos[i].Y
			if dx == 0 && dy == 0 {
				// coincident points: nudge deterministically by index
				dx, dy = 1e-3*float64(j-i), 1e-3
			}
			l := dx*dx + dy*dy
			if l >= distMax2 {
				continue
			}
			l = math.Max(l, 1)
			f := per * alpha / l
			vel[i].X += dx * f
			vel[i].Y += dy * f
		}
		return
	}
	for _, c := range q.children {
		c.applyCharge(pos, vel, i, alpha, theta2, distMax2)
	}
}
