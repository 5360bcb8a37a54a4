package navigator

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"

	"telemetry-dashboard/pkg/yield"
)

// LatentParams tunes the UMAP-style embedding.
type LatentParams struct {
	Seed            int64
	Width, Height   float64
	Padding         float64
	LearningRate    float64
	MinDist         float64
	NegativeSamples int
}

func DefaultLatentParams(seed int64, width, height float64) LatentParams {
	return LatentParams{
		Seed:            seed,
		Width:           width,
		Height:          height,
		Padding:         100,
		LearningRate:    0.15,
		MinDist:         0.1,
		NegativeSamples: 2,
	}
}

type neighbor struct {
	idx  int
	dist float64
}

// NeighborCount is clamp(⌊√n⌋, 5, 15), never more than n-1.
func NeighborCount(n int) int {
	k := int(math.Sqrt(float64(n)))
	k = max(5, min(k, 15))
	return min(k, n-1)
}

// Epochs is clamp(10 + ⌊n/100⌋, 15, cap) where the cap shrinks for large n.
func Epochs(n int) int {
	limit := 60
	if n > 1000 {
		limit = 40
	}
	return max(15, min(10+n/100, limit))
}

func vectorDistance(a, b []float64) float64 {
	return 1 - cosine(a, b)
}

func keepBest(cands []neighbor, k int) []neighbor {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].idx < cands[j].idx
	})
	seen := make(map[int]struct{}, k)
	out := make([]neighbor, 0, k)
	for _, c := range cands {
		if _, dup := seen[c.idx]; dup {
			continue
		}
		seen[c.idx] = struct{}{}
		out = append(out, c)
		if len(out) == k {
			break
		}
	}
	return out
}

// KNN finds k nearest neighbors per vector: exhaustively up to 200 points,
// over a random sample up to 500, and with a sample-then-probe search
// beyond that.
func KNN(ctx context.Context, vecs [][]float64, k int, rng *rand.Rand, y *yield.Yielder) ([][]neighbor, error) {
	n := len(vecs)
	out := make([][]neighbor, n)
	if n < 2 || k <= 0 {
		return out, nil
	}
	randomOther := func(i int) int {
		j := rng.IntN(n - 1)
		if j >= i {
			j++
		}
		return j
	}
	for i := 0; i < n; i++ {
		var cands []neighbor
		switch {
		case n <= 200:
			cands = make([]neighbor, 0, n-1)
			for j := 0; j < n; j++ {
				if j != i {
					cands = append(cands, neighbor{j, vectorDistance(vecs[i], vecs[j])})
				}
			}
		case n <= 500:
			size := min(300, int(float64(n)*math.Log2(float64(n))/50))
			size = max(size, k)
			for s := 0; s < size; s++ {
				j := randomOther(i)
				cands = append(cands, neighbor{j, vectorDistance(vecs[i], vecs[j])})
			}
		default:
			for s := 0; s < 3*k; s++ {
				j := randomOther(i)
				cands = append(cands, neighbor{j, vectorDistance(vecs[i], vecs[j])})
			}
			top := keepBest(cands, k)
			for range top {
				for p := 0; p < 3; p++ {
					j := randomOther(i)
					cands = append(cands, neighbor{j, vectorDistance(vecs[i], vecs[j])})
				}
			}
		}
		out[i] = keepBest(cands, k)
		if err := y.Every(ctx, i+1, 50); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// LatentLayout embeds vectors in 2-D: points start on the unit circle, are
// pulled toward their nearest neighbors and pushed from random negatives,
// then scaled to the canvas. Output is deterministic for a given seed.
func LatentLayout(ctx context.Context, vecs [][]float64, p LatentParams, y *yield.Yielder) ([]Point, error) {
	n := len(vecs)
	if n == 0 {
		return nil, nil
	}
	if y == nil {
		y = yield.New(yield.DefaultBudget)
	}
	rng := rand.New(rand.NewPCG(uint64(p.Seed), uint64(n)))
	knn, err := KNN(ctx, vecs, NeighborCount(n), rng, y)
	if err != nil {
		return nil, err
	}

	pos := make([]Point, n)
	for i := range pos {
		a := 2 * math.Pi * float64(i) / float64(n)
		pos[i] = Point{X: math.Cos(a), Y: math.Sin(a)}
	}
	if n == 1 {
		return fitToCanvas(pos, p.Width, p.Height, p.Padding), nil
	}

	epochs := Epochs(n)
	for e := 0; e < epochs; e++ {
		lr := p.LearningRate * (1 - float64(e)/float64(epochs))
		for i := 0; i < n; i++ {
			for _, nb := range knn[i] {
				w := math.Max(1-nb.dist, 0.05)
				dx, dy := pos[nb.idx].X-pos[i].X, pos[nb.idx].Y-pos[i].Y
				d := math.Hypot(dx, dy)
				if d <= p.MinDist {
					continue
				}
				f := lr * w * (1 - p.MinDist/d)
				pos[i].X += dx * f
				pos[i].Y += dy * f
			}
			for s := 0; s < p.NegativeSamples; s++ {
				j := rng.IntN(n - 1)
				if j >= i {
					j++
				}
				dx, dy := pos[i].X-pos[j].X, pos[i].Y-pos[j].Y
				d2 := dx*dx + dy*dy
				f := math.Min(lr*0.1/(0.01+d2), 4*lr)
				pos[i].X += dx * f
				pos[i].Y += dy * f
			}
		}
		if err := y.Checkpoint(ctx); err != nil {
			return nil, err
		}
	}
	return fitToCanvas(pos, p.Width, p.Height, p.Padding), nil
}
