package driver

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/kmeans.visual/internal/kmeans"
	"github.com/banshee-data/kmeans.visual/internal/monitoring"
	"github.com/banshee-data/kmeans.visual/internal/timeutil"
)

const waitTimeout = 2 * time.Second

type update struct {
	state    kmeans.State
	terminal bool
}

// recorder collects UpdateFunc calls on a buffered channel.
type recorder struct {
	ch chan update
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan update, 256)}
}

func (r *recorder) record(s kmeans.State, terminal bool) {
	r.ch <- update{state: s, terminal: terminal}
}

func (r *recorder) next(t *testing.T) update {
	t.Helper()
	select {
	case u := <-r.ch:
		return u
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for state update")
		return update{}
	}
}

func (r *recorder) assertQuiet(t *testing.T) {
	t.Helper()
	select {
	case u := <-r.ch:
		t.Fatalf("unexpected update at iteration %d (terminal=%v)", u.state.Iteration, u.terminal)
	case <-time.After(50 * time.Millisecond):
	}
}

func waitDone(t *testing.T, h *RunHandle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(waitTimeout):
		t.Fatal("run goroutine did not exit")
	}
}

func fixedInit(centroids ...kmeans.Point) InitFunc {
	return func(k int) ([]kmeans.Point, error) {
		return append([]kmeans.Point(nil), centroids...), nil
	}
}

func quietLogs(t *testing.T) {
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(original) })
}

func pacedDriver(clock *timeutil.MockClock, rec *recorder, init InitFunc) *Driver {
	opts := DefaultOptions()
	opts.Clock = clock
	opts.Init = init
	opts.OnUpdate = rec.record
	return New(opts)
}

var twoPairs = [][]kmeans.Point{
	{{X: 0, Y: 0}, {X: 0, Y: 1}},
	{{X: 10, Y: 0}, {X: 10, Y: 1}},
}

func TestStep_TwoPairsConvergesInTwoIterations(t *testing.T) {
	state := kmeans.NewState([]kmeans.Point{{X: 0, Y: 0}, {X: 10, Y: 0}})
	points := kmeans.Flatten(twoPairs)

	status := Step(&state, points, 100, kmeans.Tolerance)
	assert.Equal(t, StatusRunning, status)
	assert.Equal(t, 1, state.Iteration)
	assert.Equal(t, []kmeans.Point{{X: 0, Y: 0.5}, {X: 10, Y: 0.5}}, state.Centroids)
	assert.Equal(t, []kmeans.Cluster{{{X: 0, Y: 0}, {X: 0, Y: 1}}, {{X: 10, Y: 0}, {X: 10, Y: 1}}}, state.Clusters)

	status = Step(&state, points, 100, kmeans.Tolerance)
	assert.Equal(t, StatusConverged, status)
	assert.Equal(t, 2, state.Iteration)
}

func TestStep_ConvergenceWinsOverCap(t *testing.T) {
	state := kmeans.NewState([]kmeans.Point{{X: 0, Y: 0.5}})
	status := Step(&state, []kmeans.Point{{X: 0, Y: 0}, {X: 0, Y: 1}}, 1, kmeans.Tolerance)
	assert.Equal(t, StatusConverged, status)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "idle", StatusIdle.String())
	assert.Equal(t, "running", StatusRunning.String())
	assert.Equal(t, "converged", StatusConverged.String())
	assert.Equal(t, "max_iterations", StatusMaxIterations.String())
	assert.Equal(t, "unknown", Status(42).String())
	assert.True(t, StatusConverged.Terminal())
	assert.False(t, StatusIdle.Terminal())
}

func TestStartRun_PacedTwoPairsScenario(t *testing.T) {
	quietLogs(t)
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	rec := newRecorder()
	d := pacedDriver(clock, rec, fixedInit(kmeans.Point{X: 0, Y: 0}, kmeans.Point{X: 10, Y: 0}))

	h, err := d.StartRun(2, 100, twoPairs)
	require.NoError(t, err)
	require.NotEmpty(t, h.ID())
	assert.Equal(t, StatusRunning, h.Status())
	assert.Same(t, h, d.Current())

	// Nothing happens until the first tick.
	rec.assertQuiet(t)

	clock.Advance(DefaultInterval)
	u := rec.next(t)
	assert.False(t, u.terminal)
	assert.Equal(t, 1, u.state.Iteration)
	assert.Equal(t, []kmeans.Point{{X: 0, Y: 0.5}, {X: 10, Y: 0.5}}, u.state.Centroids)
	assert.Equal(t, []int{2, 2}, u.state.Sizes())

	clock.Advance(DefaultInterval)
	u = rec.next(t)
	assert.True(t, u.terminal)
	assert.Equal(t, 2, u.state.Iteration)

	waitDone(t, h)
	assert.Equal(t, StatusConverged, h.Status())
	assert.Equal(t, 2, h.Iteration())
	assert.Nil(t, d.Current())
	tickers := clock.Tickers()
	require.Len(t, tickers, 1)
	assert.True(t, tickers[0].Stopped(), "ticker stopped once the run converged")
	assert.False(t, d.CancelRun(h), "finished runs cannot be cancelled")

	clock.Advance(DefaultInterval)
	rec.assertQuiet(t)
}

func TestStartRun_MaxIterationsOne(t *testing.T) {
	quietLogs(t)
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	rec := newRecorder()
	d := pacedDriver(clock, rec, fixedInit(kmeans.Point{X: 500, Y: 500}, kmeans.Point{X: 600, Y: 600}))

	h, err := d.StartRun(2, 1, twoPairs)
	require.NoError(t, err)

	clock.Advance(DefaultInterval)
	u := rec.next(t)
	assert.True(t, u.terminal)
	assert.Equal(t, 1, u.state.Iteration)

	waitDone(t, h)
	assert.Equal(t, StatusMaxIterations, h.Status())

	clock.Advance(DefaultInterval)
	clock.Advance(DefaultInterval)
	rec.assertQuiet(t)
}

func TestStartRun_StepsOnEveryTick(t *testing.T) {
	quietLogs(t)
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	rec := newRecorder()
	d := pacedDriver(clock, rec, fixedInit(kmeans.Point{X: 0, Y: 0}, kmeans.Point{X: 10, Y: 0}))

	h, err := d.StartRun(2, 100, twoPairs)
	require.NoError(t, err)
	tickers := clock.Tickers()
	require.Len(t, tickers, 1)
	ticker := tickers[0]
	assert.False(t, ticker.Stopped())

	// Ticks drive the run without the clock moving.
	ticker.Trigger(clock.Now())
	assert.Equal(t, 1, rec.next(t).state.Iteration)
	ticker.Trigger(clock.Now())
	u := rec.next(t)
	assert.True(t, u.terminal)
	assert.Equal(t, 2, u.state.Iteration)

	waitDone(t, h)
	assert.True(t, ticker.Stopped())
	ticker.Trigger(clock.Now())
	rec.assertQuiet(t)
}

func TestCancelRun_StopsUpdates(t *testing.T) {
	quietLogs(t)
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	rec := newRecorder()
	// The second centroid owns nothing, so this run keeps moving for a while.
	d := pacedDriver(clock, rec, fixedInit(kmeans.Point{X: 100, Y: 100}, kmeans.Point{X: 400, Y: 400}))

	points := [][]kmeans.Point{{{X: 0, Y: 0}, {X: 50, Y: 50}, {X: 1, Y: 3}}}
	h, err := d.StartRun(2, 100, points)
	require.NoError(t, err)

	clock.Advance(DefaultInterval)
	u := rec.next(t)
	require.False(t, u.terminal)

	assert.True(t, d.CancelRun(h))
	assert.Equal(t, StatusIdle, h.Status())
	assert.Nil(t, d.Current())
	waitDone(t, h)
	require.Len(t, clock.Tickers(), 1)
	assert.True(t, clock.Tickers()[0].Stopped(), "ticker stopped on cancel")

	clock.Advance(DefaultInterval)
	rec.assertQuiet(t)
	assert.False(t, d.CancelRun(h), "second cancel is a no-op")
	assert.False(t, d.CancelRun(nil))
}

func TestStartRun_SupersedesActiveRun(t *testing.T) {
	quietLogs(t)
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	rec := newRecorder()
	d := pacedDriver(clock, rec, fixedInit(kmeans.Point{X: 0, Y: 0}, kmeans.Point{X: 10, Y: 0}))

	first, err := d.StartRun(2, 100, twoPairs)
	require.NoError(t, err)
	second, err := d.StartRun(2, 100, twoPairs)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID(), second.ID())
	waitDone(t, first)
	assert.Equal(t, StatusIdle, first.Status())
	assert.Same(t, second, d.Current())

	_, ok := d.Lookup(first.ID())
	assert.False(t, ok)
	got, ok := d.Lookup(second.ID())
	require.True(t, ok)
	assert.Same(t, second, got)

	clock.Advance(DefaultInterval)
	u := rec.next(t)
	assert.Equal(t, 1, u.state.Iteration)

	d.Close()
	waitDone(t, second)
	assert.Equal(t, StatusIdle, second.Status())
}

func TestStartRun_InvalidArgument(t *testing.T) {
	quietLogs(t)
	d := New(DefaultOptions())

	cases := []struct {
		name   string
		k      int
		max    int
		groups [][]kmeans.Point
	}{
		{"zero k", 0, 10, twoPairs},
		{"negative k", -1, 10, twoPairs},
		{"zero max iterations", 2, 0, twoPairs},
		{"no groups", 2, 10, nil},
		{"empty groups", 2, 10, [][]kmeans.Point{{}, {}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := d.StartRun(tc.k, tc.max, tc.groups)
			assert.ErrorIs(t, err, kmeans.ErrInvalidArgument)
			assert.Nil(t, h)
			assert.Nil(t, d.Current())
		})
	}
}

func TestStartRun_DegenerateInitializationKeepsActiveRun(t *testing.T) {
	quietLogs(t)
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	opts := DefaultOptions()
	opts.Clock = clock
	opts.Bounds = kmeans.Bounds{Width: 100, Height: 100}
	opts.MaxInitAttempts = 20
	opts.Rand = rand.New(rand.NewPCG(1, 2))
	d := New(opts)

	active, err := d.StartRun(1, 100, twoPairs)
	require.NoError(t, err)

	h, err := d.StartRun(500, 100, twoPairs)
	assert.ErrorIs(t, err, kmeans.ErrDegenerateInitialization)
	assert.Nil(t, h)
	assert.Same(t, active, d.Current())
	assert.Equal(t, StatusRunning, active.Status())

	d.Close()
}

func TestStartRun_InitializerMismatch(t *testing.T) {
	quietLogs(t)
	opts := DefaultOptions()
	opts.Init = fixedInit(kmeans.Point{X: 1, Y: 1})
	d := New(opts)

	_, err := d.StartRun(3, 10, twoPairs)
	assert.ErrorIs(t, err, kmeans.ErrInvalidArgument)
}

func TestStartRun_UnpacedRunsToCompletion(t *testing.T) {
	quietLogs(t)
	rec := newRecorder()
	opts := DefaultOptions()
	opts.Interval = 0
	opts.Rand = rand.New(rand.NewPCG(11, 12))
	opts.OnUpdate = rec.record
	d := New(opts)

	h, err := d.StartRun(2, 50, twoPairs)
	require.NoError(t, err)
	waitDone(t, h)
	assert.True(t, h.Status().Terminal())

	var last update
	for i := 0; i < h.Iteration(); i++ {
		last = rec.next(t)
		assert.Equal(t, i+1, last.state.Iteration)
		assert.Equal(t, i+1 == h.Iteration(), last.terminal)
	}
	rec.assertQuiet(t)
}

func TestRun_SingleClusterReachesMean(t *testing.T) {
	quietLogs(t)
	var updates []update
	opts := DefaultOptions()
	opts.Rand = rand.New(rand.NewPCG(5, 6))
	opts.OnUpdate = func(s kmeans.State, terminal bool) {
		updates = append(updates, update{state: s, terminal: terminal})
	}
	d := New(opts)

	groups := [][]kmeans.Point{{{X: 1, Y: 2}, {X: 3, Y: 4}}, {{X: 5, Y: 9}}}
	state, status, err := d.Run(context.Background(), 1, 100, groups)
	require.NoError(t, err)
	assert.Equal(t, StatusConverged, status)

	mean := kmeans.Point{X: 3, Y: 5}
	require.NotEmpty(t, updates)
	first := updates[0].state
	assert.Len(t, first.Clusters[0], 3, "every point lands in the single cluster")
	assert.InDelta(t, mean.X, first.Centroids[0].X, 1e-12)
	assert.InDelta(t, mean.Y, first.Centroids[0].Y, 1e-12)

	// The random start is never the mean, so the fixed point is confirmed on step two.
	assert.Equal(t, 2, state.Iteration)
	assert.Len(t, updates, 2)
	assert.True(t, updates[1].terminal)
	assert.False(t, updates[0].terminal)
}

func TestRun_OverflowingMeanDoesNotPanic(t *testing.T) {
	quietLogs(t)
	opts := DefaultOptions()
	opts.Rand = rand.New(rand.NewPCG(1, 2))
	d := New(opts)

	groups := [][]kmeans.Point{{{X: 1.7e308, Y: 0}}, {{X: 1.7e308, Y: 5}}}
	var (
		state  kmeans.State
		status Status
		err    error
	)
	require.NotPanics(t, func() {
		state, status, err = d.Run(context.Background(), 1, 10, groups)
	})
	require.NoError(t, err)
	assert.True(t, status.Terminal())
	require.Len(t, state.Clusters, 1)
	assert.Len(t, state.Clusters[0], 2)
}

func TestRun_ContextCancelled(t *testing.T) {
	quietLogs(t)
	called := false
	opts := DefaultOptions()
	opts.OnUpdate = func(kmeans.State, bool) { called = true }
	d := New(opts)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, status, err := d.Run(ctx, 2, 10, twoPairs)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusIdle, status)
	assert.False(t, called)
}

func TestRun_InvalidArgument(t *testing.T) {
	d := New(DefaultOptions())
	_, _, err := d.Run(context.Background(), 0, 10, twoPairs)
	assert.ErrorIs(t, err, kmeans.ErrInvalidArgument)
}
