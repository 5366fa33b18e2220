// Package kmeans owns the 2D point model and the pure steps of Lloyd's
// algorithm: centroid initialization, assignment, recomputation and the
// convergence test.
//
// Responsibilities: Point, Cluster and State types; Euclidean distance.
// Key functions: InitCentroids, Assign, Recompute, Converged.
//
// Dependency rule: this package holds no mutable shared state and never
// schedules work. Pacing and run ownership live in internal/driver.
package kmeans
