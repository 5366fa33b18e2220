package kmeans

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// Tolerance is the distance every centroid must move less than for a
	// step to count as converged.
	Tolerance = 1e-5

	// SeparationDivisor sets the minimum spacing of initial centroids to
	// min(Width, Height) / SeparationDivisor.
	SeparationDivisor = 5

	// DefaultMaxInitAttempts is the per-centroid sampling budget used when
	// callers pass a non-positive attempt count to InitCentroids.
	DefaultMaxInitAttempts = 10000
)

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return floats.Distance([]float64{a.X, a.Y}, []float64{b.X, b.Y}, 2)
}

// MinSeparation returns the minimum distance enforced between initial
// centroids drawn inside b.
func MinSeparation(b Bounds) float64 {
	return math.Min(b.Width, b.Height) / SeparationDivisor
}

// InitCentroids draws k centroids uniformly from b, resampling any candidate
// that lands closer than MinSeparation(b) to an accepted centroid.
//
// Each centroid gets at most maxAttempts candidates. When the budget runs out
// the area cannot hold k well-separated centroids and ErrDegenerateInitialization
// is returned; callers should lower k.
func InitCentroids(rng *rand.Rand, k int, b Bounds, maxAttempts int) ([]Point, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be at least 1, got %d", ErrInvalidArgument, k)
	}
	if b.Width <= 0 || b.Height <= 0 {
		return nil, fmt.Errorf("%w: bounds must be positive, got %gx%g", ErrInvalidArgument, b.Width, b.Height)
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxInitAttempts
	}

	minDist := MinSeparation(b)
	centroids := make([]Point, 0, k)
	for i := 0; i < k; i++ {
		placed := false
		for attempt := 0; attempt < maxAttempts; attempt++ {
			candidate := Point{X: rng.Float64() * b.Width, Y: rng.Float64() * b.Height}
			if farFromAll(candidate, centroids, minDist) {
				centroids = append(centroids, candidate)
				placed = true
				break
			}
		}
		if !placed {
			return nil, fmt.Errorf("%w: placed %d of %d centroids with separation %.2f in %gx%g after %d attempts",
				ErrDegenerateInitialization, i, k, minDist, b.Width, b.Height, maxAttempts)
		}
	}
	return centroids, nil
}

func farFromAll(p Point, accepted []Point, minDist float64) bool {
	for _, c := range accepted {
		if Distance(p, c) < minDist {
			return false
		}
	}
	return true
}

// Nearest returns the index of the centroid closest to p. The first centroid
// achieving the minimum wins, so ties resolve to the lowest index. When no
// distance compares below +Inf (overflowed or NaN centroids) the result is 0.
// centroids must not be empty.
func Nearest(p Point, centroids []Point) int {
	best := 0
	minDist := math.Inf(1)
	for i, c := range centroids {
		if d := Distance(p, c); d < minDist {
			minDist = d
			best = i
		}
	}
	return best
}

// Assign partitions points into len(centroids) clusters, each point going to
// its nearest centroid. Every input point appears in exactly one cluster.
func Assign(points []Point, centroids []Point) []Cluster {
	clusters := make([]Cluster, len(centroids))
	if len(centroids) == 0 {
		return clusters
	}
	for _, p := range points {
		i := Nearest(p, centroids)
		clusters[i] = append(clusters[i], p)
	}
	return clusters
}

// Recompute returns the mean of every cluster. An empty cluster keeps its
// previous centroid unchanged, so the slot is never dropped or reseeded.
func Recompute(clusters []Cluster, prev []Point) []Point {
	next := make([]Point, len(clusters))
	for i, c := range clusters {
		if len(c) == 0 {
			next[i] = prev[i]
			continue
		}
		xs := make([]float64, len(c))
		ys := make([]float64, len(c))
		for j, p := range c {
			xs[j] = p.X
			ys[j] = p.Y
		}
		next[i] = Point{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)}
	}
	return next
}

// Converged reports whether every centroid moved strictly less than tol
// between prev and next. Partial convergence does not count.
func Converged(prev, next []Point, tol float64) bool {
	if len(prev) != len(next) {
		return false
	}
	for i := range prev {
		if Distance(prev[i], next[i]) >= tol {
			return false
		}
	}
	return true
}
