package navigator

import (
	"context"
	"math"

	"telemetry-dashboard/pkg/yield"
)

// Force simulation constants.
const (
	baseCharge       = -300.0
	chargeDistMax    = 500.0
	collisionRadius  = 30.0
	alphaDecay       = 0.02
	velocityDecay    = 0.4
	quickTicks       = 30
	refineTicks      = 20
	refineAlpha      = 0.3
	refineNodeLimit  = 200
	largeGraphNodes  = 200
	linkMinDistance  = 30.0
	linkDistanceSpan = 120.0
)

// PhysicalParams sizes the simulation.
type PhysicalParams struct {
	Width, Height float64
}

// Charge is -300, scaled by √(100/n) above 100 nodes.
func Charge(n int) float64 {
	if n > 100 {
		return baseCharge * math.Sqrt(100/float64(n))
	}
	return baseCharge
}

// Theta is the Barnes-Hut opening angle.
func Theta(n int) float64 {
	if n > largeGraphNodes {
		return 0.9
	}
	return 0.7
}

// LinkDistance shortens links as similarity grows.
func LinkDistance(similarity float64) float64 {
	return linkMinDistance + (1-similarity)*linkDistanceSpan
}

type simLink struct {
	s, t     int
	distance float64
	strength float64
	bias     float64
}

// PhysicalLayout runs a force-directed simulation over nodes and edges:
// 30 ticks from alpha 1, then 20 refine ticks at alpha 0.3 for graphs
// under 200 nodes. Nodes start on a phyllotaxis spiral around the canvas
// center.
func PhysicalLayout(ctx context.Context, nodes []FileNode, edges []Edge, p PhysicalParams, y *yield.Yielder) (map[string]Point, error) {
	n := len(nodes)
	out := make(map[string]Point, n)
	if n == 0 {
		return out, nil
	}
	if y == nil {
		y = yield.New(yield.DefaultBudget)
	}
	cx, cy := p.Width/2, p.Height/2

	index := make(map[string]int, n)
	for i, node := range nodes {
		index[node.ID] = i
	}
	degree := make([]int, n)
	links := make([]simLink, 0, len(edges))
	for _, e := range edges {
		s, okS := index[e.Source]
		t, okT := index[e.Target]
		if !okS || !okT || s == t {
			continue
		}
		degree[s]++
		degree[t]++
		links = append(links, simLink{s: s, t: t, distance: LinkDistance(e.Similarity), strength: e.Similarity * 0.5})
	}
	for i := range links {
		l := &links[i]
		l.bias = float64(degree[l.s]) / float64(degree[l.s]+degree[l.t])
	}

	pos := make([]Point, n)
	vel := make([]Point, n)
	golden := math.Pi * (3 - math.Sqrt(5))
	for i := range pos {
		r := 10 * math.Sqrt(0.5+float64(i))
		a := float64(i) * golden
		pos[i] = Point{X: cx + r*math.Cos(a), Y: cy + r*math.Sin(a)}
	}

	charge := Charge(n)
	theta2 := Theta(n) * Theta(n)
	distMax2 := chargeDistMax * chargeDistMax

	tick := func(alpha float64) error {
		for _, l := range links {
			dx := pos[l.t].X + vel[l.t].X - pos[l.s].X - vel[l.s].X
			dy := pos[l.t].Y + vel[l.t].Y - pos[l.s].Y - vel[l.s].Y
			d := math.Hypot(dx, dy)
			if d == 0 {
				dx, d = 1e-3, 1e-3
			}
			f := (d - l.distance) / d * alpha * l.strength
			dx, dy = dx*f, dy*f
			vel[l.t].X -= dx * l.bias
			vel[l.t].Y -= dy * l.bias
			vel[l.s].X += dx * (1 - l.bias)
			vel[l.s].Y += dy * (1 - l.bias)
		}

		tree := buildQuadtree(pos, charge)
		for i := 0; i < n; i++ {
			tree.applyCharge(pos, vel, i, alpha, theta2, distMax2)
			if err := y.Every(ctx, i+1, 100); err != nil {
				return err
			}
		}

		collide(pos, vel)

		var mx, my float64
		for i := range pos {
			vel[i].X *= 1 - velocityDecay
			vel[i].Y *= 1 - velocityDecay
			pos[i].X += vel[i].X
			pos[i].Y += vel[i].Y
			mx += pos[i].X
			my += pos[i].Y
		}
		mx, my = mx/float64(n)-cx, my/float64(n)-cy
		for i := range pos {
			pos[i].X -= mx
			pos[i].Y -= my
		}
		return y.Checkpoint(ctx)
	}

	alpha := 1.0
	for t := 0; t < quickTicks; t++ {
		if err := tick(alpha); err != nil {
			return nil, err
		}
		alpha += (0 - alpha) * alphaDecay
	}
	if n < refineNodeLimit {
		alpha = refineAlpha
		for t := 0; t < refineTicks; t++ {
			if err := tick(alpha); err != nil {
				return nil, err
			}
			alpha += (0 - alpha) * alphaDecay
		}
	}

	for i, node := range nodes {
		out[node.ID] = pos[i]
	}
	return out, nil
}

// collide separates overlapping nodes by nudging their velocities apart.
func collide(pos, vel []Point) {
	const minDist = 2 * collisionRadius
	for i := range pos {
		for j := i + 1; j < len(pos); j++ {
			dx := pos[j].X + vel[j].X - pos[i].X - vel[i].X
			dy := pos[j].Y + vel[j].Y - pos[i].Y - vel[i].Y
			l := dx*dx + dy*dy
			if l >= minDist*minDist {
				continue
			}
			if l == 0 {
				dx, dy, l = 1e-3*float64(j-i), 1e-3, 1e-6*float64((j-i)*(j-i))+1e-6
			}
			d := math.Sqrt(l)
			f := (minDist - d) / d * 0.5
			vel[i].X -= dx * f * 0.5
			vel[i].Y -= dy * f * 0.5
			vel[j].X += dx * f * 0.5
			vel[j].Y += dy * f * 0.5
		}
	}
}
