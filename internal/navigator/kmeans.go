package navigator

import (
	"context"
	"math"
	"math/rand/v2"

	"telemetry-dashboard/pkg/yield"
)

const kmeansIterations = 20

// KMeans partitions vecs into k groups with k-means++ seeding and returns
// the assignment. It is deterministic for a given rng state.
func KMeans(ctx context.Context, vecs [][]float64, k int, rng *rand.Rand, y *yield.Yielder) ([]int, error) {
	n := len(vecs)
	assign := make([]int, n)
	if n == 0 || k <= 1 {
		return assign, nil
	}
	k = min(k, n)
	dim := len(vecs[0])

	centroids := make([][]float64, 0, k)
	centroids = append(centroids, append([]float64(nil), vecs[rng.IntN(n)]...))
	d2 := make([]float64, n)
	for len(centroids) < k {
		var sum float64
		for i, v := range vecs {
			best := math.Inf(1)
			for _, c := range centroids {
				best = math.Min(best, sq(euclidean(v, c)))
			}
			d2[i] = best
			sum += best
		}
		next := rng.IntN(n)
		if sum > 0 {
			r := rng.Float64() * sum
			for i, d := range d2 {
				r -= d
				if r <= 0 {
					next = i
					break
				}
			}
		}
		centroids = append(centroids, append([]float64(nil), vecs[next]...))
	}

	for it := 0; it < kmeansIterations; it++ {
		changed := false
		for i, v := range vecs {
			best, bestD := 0, math.Inf(1)
			for c, cen := range centroids {
				if d := euclidean(v, cen); d < bestD {
					best, bestD = c, d
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		counts := make([]int, k)
		sums := make([][]float64, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, v := range vecs {
			counts[assign[i]]++
			for d, x := range v {
				sums[assign[i]][d] += x
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			for d := range sums[c] {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
		if err := y.Checkpoint(ctx); err != nil {
			return nil, err
		}
		if !changed && it > 0 {
			break
		}
	}
	return assign, nil
}

func sq(x float64) float64 { return x * x }

// Silhouette is the mean silhouette coefficient of an assignment, in [-1,1].
// Points in singleton clusters contribute zero.
func Silhouette(vecs [][]float64, assign []int, k int) float64 {
	n := len(vecs)
	if n < 2 || k < 2 {
		return 0
	}
	size := make([]int, k)
	for _, a := range assign {
		size[a]++
	}
	var total float64
	for i := range vecs {
		if size[assign[i]] <= 1 {
			continue
		}
		sums := make([]float64, k)
		for j := range vecs {
			if i != j {
				sums[assign[j]] += euclidean(vecs[i], vecs[j])
			}
		}
		a := sums[assign[i]] / float64(size[assign[i]]-1)
		b := math.Inf(1)
		for c := 0; c < k; c++ {
			if c != assign[i] && size[c] > 0 {
				b = math.Min(b, sums[c]/float64(size[c]))
			}
		}
		if math.IsInf(b, 1) {
			continue
		}
		if m := math.Max(a, b); m > 0 {
			total += (b - a) / m
		}
	}
	return total / float64(n)
}

// SweepRange is the auto-tuned k range [max(20, n/40), min(60, n/10)];
// ok is false when the range is empty.
func SweepRange(n int) (lo, hi int, ok bool) {
	lo = max(20, n/40)
	hi = min(60, n/10)
	return lo, hi, lo <= hi
}

// SimpleK sizes k-means for small node sets.
func SimpleK(n int) int {
	if n < 2 {
		return 1
	}
	return max(2, min(int(math.Ceil(math.Sqrt(float64(n)/2))), 8))
}

// AutoKMeans sweeps k in steps of 5 over SweepRange and keeps the best
// silhouette. Small sets fall back to SimpleK.
func AutoKMeans(ctx context.Context, vecs [][]float64, seed int64, y *yield.Yielder) (assign []int, k int, quality float64, err error) {
	n := len(vecs)
	lo, hi, ok := SweepRange(n)
	if !ok {
		k = SimpleK(n)
		rng := rand.New(rand.NewPCG(uint64(seed), uint64(k)))
		assign, err = KMeans(ctx, vecs, k, rng, y)
		if err != nil {
			return nil, 0, 0, err
		}
		return assign, k, Silhouette(vecs, assign, k), nil
	}
	quality = math.Inf(-1)
	for c := lo; c <= hi; c += 5 {
		rng := rand.New(rand.NewPCG(uint64(seed), uint64(c)))
		a, err := KMeans(ctx, vecs, c, rng, y)
		if err != nil {
			return nil, 0, 0, err
		}
		if s := Silhouette(vecs, a, c); s > quality {
			assign, k, quality = a, c, s
		}
	}
	return assign, k, quality, nil
}
