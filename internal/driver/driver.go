package driver

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/kmeans.visual/internal/kmeans"
	"github.com/banshee-data/kmeans.visual/internal/monitoring"
	"github.com/banshee-data/kmeans.visual/internal/timeutil"
)

// DefaultInterval is the pause between steps of a paced run.
const DefaultInterval = 500 * time.Millisecond

var logf = monitoring.Component("Driver")

// UpdateFunc receives a copy of the state after every step. terminal is true
// on the last call of a run that converged or hit its iteration cap; it is
// never called again after a run is cancelled.
//
// The driver invokes it from the run goroutine while holding the run lock, so
// it must not call back into the Driver synchronously.
type UpdateFunc func(state kmeans.State, terminal bool)

// InitFunc produces the k initial centroids of a run.
type InitFunc func(k int) ([]kmeans.Point, error)

// Options configures a Driver.
type Options struct {
	// Bounds is the rectangle initial centroids are drawn from.
	Bounds kmeans.Bounds
	// Interval paces steps. Zero runs steps back to back.
	Interval time.Duration
	// Tolerance is the convergence threshold; zero means kmeans.Tolerance.
	Tolerance float64
	// MaxInitAttempts bounds the resampling loop of centroid initialization.
	MaxInitAttempts int
	Clock           timeutil.Clock
	Rand            *rand.Rand
	// Init overrides random initialization, mainly for reproducible tests.
	Init     InitFunc
	OnUpdate UpdateFunc
}

// DefaultOptions returns the pacing and bounds of the browser demo.
func DefaultOptions() Options {
	return Options{
		Bounds:          kmeans.Bounds{Width: 800, Height: 600},
		Interval:        DefaultInterval,
		Tolerance:       kmeans.Tolerance,
		MaxInitAttempts: kmeans.DefaultMaxInitAttempts,
	}
}

// Driver orchestrates clustering runs. It is safe for concurrent use.
type Driver struct {
	mu      sync.Mutex
	opts    Options
	rng     *rand.Rand // guarded by mu
	current *RunHandle
}

// New creates a Driver, filling unset options with defaults.
func New(opts Options) *Driver {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = kmeans.Tolerance
	}
	if opts.Interval < 0 {
		opts.Interval = 0
	}
	rng := opts.Rand
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &Driver{opts: opts, rng: rng}
}

// RunHandle identifies one run and exposes its lifecycle.
type RunHandle struct {
	id            string
	k             int
	maxIterations int
	points        []kmeans.Point
	startedAt     time.Time

	ticker timeutil.Ticker
	cancel chan struct{}
	done   chan struct{}

	// state is owned by the run goroutine.
	state kmeans.State

	mu        sync.Mutex
	status    Status
	iteration int
	cancelled bool
}

// ID returns the unique run identifier.
func (h *RunHandle) ID() string { return h.id }

// K returns the cluster count of the run.
func (h *RunHandle) K() int { return h.k }

// MaxIterations returns the iteration cap of the run.
func (h *RunHandle) MaxIterations() int { return h.maxIterations }

// Done is closed once the run goroutine has exited.
func (h *RunHandle) Done() <-chan struct{} { return h.done }

// Status returns the current lifecycle state.
func (h *RunHandle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Iteration returns the number of completed steps.
func (h *RunHandle) Iteration() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.iteration
}

func validate(k, maxIterations, numPoints int) error {
	if k < 1 {
		return fmt.Errorf("%w: k must be at least 1, got %d", kmeans.ErrInvalidArgument, k)
	}
	if maxIterations < 1 {
		return fmt.Errorf("%w: max iterations must be at least 1, got %d", kmeans.ErrInvalidArgument, maxIterations)
	}
	if numPoints == 0 {
		return fmt.Errorf("%w: no input points", kmeans.ErrInvalidArgument)
	}
	return nil
}

// initCentroids must be called with d.mu held.
func (d *Driver) initCentroids(k int) ([]kmeans.Point, error) {
	var (
		centroids []kmeans.Point
		err       error
	)
	if d.opts.Init != nil {
		centroids, err = d.opts.Init(k)
	} else {
		centroids, err = kmeans.InitCentroids(d.rng, k, d.opts.Bounds, d.opts.MaxInitAttempts)
	}
	if err != nil {
		return nil, err
	}
	if len(centroids) != k {
		return nil, fmt.Errorf("%w: initializer returned %d centroids for k=%d", kmeans.ErrInvalidArgument, len(centroids), k)
	}
	return centroids, nil
}

// StartRun validates the request, places the initial centroids and starts a
// paced run over the flattened groups. Any run still in flight is cancelled
// first. Failures are returned synchronously and leave the driver unchanged.
func (d *Driver) StartRun(k, maxIterations int, groups [][]kmeans.Point) (*RunHandle, error) {
	points := kmeans.Flatten(groups)
	if err := validate(k, maxIterations, len(points)); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	centroids, err := d.initCentroids(k)
	if err != nil {
		logf("Rejected run with k=%d: %v", k, err)
		return nil, err
	}

	if prev := d.current; prev != nil && prev.abort() {
		logf("Cancelled run %s at iteration %d: superseded", prev.id, prev.Iteration())
	}

	h := &RunHandle{
		id:            uuid.New().String(),
		k:             k,
		maxIterations: maxIterations,
		points:        points,
		startedAt:     d.opts.Clock.Now(),
		cancel:        make(chan struct{}),
		done:          make(chan struct{}),
		state:         kmeans.NewState(centroids),
		status:        StatusRunning,
	}
	// The ticker exists before StartRun returns so the first tick cannot be missed.
	if d.opts.Interval > 0 {
		h.ticker = d.opts.Clock.NewTicker(d.opts.Interval)
	}
	d.current = h

	logf("Started run %s: k=%d max_iterations=%d points=%d", h.id, k, maxIterations, len(points))
	go d.loop(h)
	return h, nil
}

// CancelRun stops h if it is still running. No UpdateFunc call for h happens
// after CancelRun returns. It reports whether the run was cancelled.
func (d *Driver) CancelRun(h *RunHandle) bool {
	if h == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if !h.abort() {
		return false
	}
	if d.current == h {
		d.current = nil
	}
	logf("Cancelled run %s at iteration %d", h.id, h.Iteration())
	return true
}

// Current returns the active run, or nil when idle.
func (d *Driver) Current() *RunHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Lookup returns the active run with the given id.
func (d *Driver) Lookup(id string) (*RunHandle, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil || d.current.id != id {
		return nil, false
	}
	return d.current, true
}

// Close cancels the active run and waits for its goroutine to exit.
func (d *Driver) Close() {
	h := d.Current()
	if h == nil {
		return
	}
	d.CancelRun(h)
	<-h.done
}

func (d *Driver) loop(h *RunHandle) {
	defer close(h.done)
	if h.ticker != nil {
		defer h.ticker.Stop()
	}

	for {
		if h.ticker != nil {
			select {
			case <-h.cancel:
				return
			case <-h.ticker.C():
			}
		} else {
			select {
			case <-h.cancel:
				return
			default:
			}
		}

		status := Step(&h.state, h.points, h.maxIterations, d.opts.Tolerance)
		if !h.emit(d.opts.OnUpdate, status) {
			return
		}
		if status.Terminal() {
			d.finish(h, status)
			return
		}
	}
}

func (d *Driver) finish(h *RunHandle, status Status) {
	d.mu.Lock()
	if d.current == h {
		d.current = nil
	}
	d.mu.Unlock()

	elapsed := d.opts.Clock.Now().Sub(h.startedAt)
	logf("Run %s finished: %s after %d iterations in %v", h.id, status, h.Iteration(), elapsed)
}

// emit publishes the state unless the run was cancelled. Holding h.mu across
// the callback is what makes CancelRun a barrier for further updates.
func (h *RunHandle) emit(fn UpdateFunc, status Status) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancelled {
		return false
	}
	h.status = status
	h.iteration = h.state.Iteration
	if fn != nil {
		fn(h.state.Clone(), status.Terminal())
	}
	return true
}

// abort marks a running h as cancelled. It reports false when h already
// finished or was cancelled before.
func (h *RunHandle) abort() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancelled || h.status.Terminal() {
		return false
	}
	h.cancelled = true
	h.status = StatusIdle
	close(h.cancel)
	return true
}

// Run executes a whole run on the calling goroutine without pacing, for
// offline use. It does not touch the driver's active run. Cancelling ctx stops
// the run between steps, skips the terminal notification and returns
// ctx.Err() together with the last state.
func (d *Driver) Run(ctx context.Context, k, maxIterations int, groups [][]kmeans.Point) (kmeans.State, Status, error) {
	points := kmeans.Flatten(groups)
	if err := validate(k, maxIterations, len(points)); err != nil {
		return kmeans.State{}, StatusIdle, err
	}

	d.mu.Lock()
	centroids, err := d.initCentroids(k)
	d.mu.Unlock()
	if err != nil {
		return kmeans.State{}, StatusIdle, err
	}

	state := kmeans.NewState(centroids)
	for {
		if err := ctx.Err(); err != nil {
			return state, StatusIdle, err
		}
		status := Step(&state, points, maxIterations, d.opts.Tolerance)
		if d.opts.OnUpdate != nil {
			d.opts.OnUpdate(state.Clone(), status.Terminal())
		}
		if status.Terminal() {
			return state, status, nil
		}
	}
}
