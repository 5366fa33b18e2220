// Package driver runs k-means clustering as a paced state machine.
//
// A Driver owns at most one active run. Each run holds its ClusteringState
// exclusively, advances it one Lloyd step per clock tick and hands a copy of
// every intermediate state to the UpdateFunc supplied by the presentation
// layer. Starting a run cancels any run still in flight.
package driver
