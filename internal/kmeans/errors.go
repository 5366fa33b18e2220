package kmeans

import "errors"

var (
	// ErrInvalidArgument reports a request that cannot start a run:
	// K < 1, no input points, a non-positive iteration cap or empty bounds.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDegenerateInitialization reports that the minimum-separation
	// sampling could not place K centroids within the retry budget.
	ErrDegenerateInitialization = errors.New("degenerate initialization")
)
