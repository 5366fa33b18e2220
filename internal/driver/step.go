package driver

import "github.com/banshee-data/kmeans.visual/internal/kmeans"

// Status is the lifecycle state of a run.
type Status int

const (
	// StatusIdle is a run that was cancelled before reaching a terminal state.
	StatusIdle Status = iota
	StatusRunning
	StatusConverged
	StatusMaxIterations
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusConverged:
		return "converged"
	case StatusMaxIterations:
		return "max_iterations"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further steps follow s.
func (s Status) Terminal() bool {
	return s == StatusConverged || s == StatusMaxIterations
}

// Step advances s by one Lloyd iteration over points: assign against the
// current centroids, recompute from the fresh clusters, then test the moved
// centroids against the previous ones. It returns StatusRunning while more
// steps are needed.
func Step(s *kmeans.State, points []kmeans.Point, maxIterations int, tol float64) Status {
	s.Clusters = kmeans.Assign(points, s.Centroids)
	prev := s.Centroids
	s.Centroids = kmeans.Recompute(s.Clusters, prev)
	s.Iteration++

	switch {
	case kmeans.Converged(prev, s.Centroids, tol):
		return StatusConverged
	case s.Iteration >= maxIterations:
		return StatusMaxIterations
	}
	return StatusRunning
}
