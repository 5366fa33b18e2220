package kmeans

// Point is a position in the 2D coordinate space. Coordinates are unbounded;
// clamping to a canvas is the job of the data generators.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Cluster is the set of points owned by the centroid with the same index.
// It may be empty after an assignment pass.
type Cluster []Point

// Bounds is the rectangle [0, Width) × [0, Height) that initial centroids are
// drawn from.
type Bounds struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// State is the complete state threaded through the iteration loop.
// len(Centroids) == len(Clusters) == K at every step.
type State struct {
	Centroids []Point   `json:"centroids"`
	Clusters  []Cluster `json:"clusters"`
	Iteration int       `json:"iteration"`
}

// NewState returns the state a run starts from: the given centroids and K
// empty clusters.
func NewState(centroids []Point) State {
	c := make([]Point, len(centroids))
	copy(c, centroids)
	return State{
		Centroids: c,
		Clusters:  make([]Cluster, len(centroids)),
	}
}

// K returns the number of clusters.
func (s State) K() int {
	return len(s.Centroids)
}

// Clone returns a deep copy so callers can hold on to a snapshot while the
// owner keeps mutating its own state.
func (s State) Clone() State {
	out := State{
		Centroids: make([]Point, len(s.Centroids)),
		Clusters:  make([]Cluster, len(s.Clusters)),
		Iteration: s.Iteration,
	}
	copy(out.Centroids, s.Centroids)
	for i, c := range s.Clusters {
		if c == nil {
			continue
		}
		out.Clusters[i] = make(Cluster, len(c))
		copy(out.Clusters[i], c)
	}
	return out
}

// Sizes returns the number of points in each cluster.
func (s State) Sizes() []int {
	sizes := make([]int, len(s.Clusters))
	for i, c := range s.Clusters {
		sizes[i] = len(c)
	}
	return sizes
}

// Flatten collapses pre-grouped input into one flat multiset. Grouping carries
// no meaning for the engine.
func Flatten(groups [][]Point) []Point {
	n := 0
	for _, g := range groups {
		n += len(g)
	}
	out := make([]Point, 0, n)
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
