package render

import (
	"fmt"
	"io"
	"sync"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/kmeans.visual/internal/kmeans"
)

// EChartsAssetsHost is where rendered pages load the echarts scripts from.
const EChartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// Frame is one recorded iteration.
type Frame struct {
	State    kmeans.State
	Terminal bool
}

// Timeline records the states of a run and renders them with go-echarts.
// It is safe for concurrent use.
type Timeline struct {
	mu        sync.Mutex
	bounds    kmeans.Bounds
	title     string
	maxFrames int
	frames    []Frame
}

// NewTimeline creates a Timeline for charts of the given bounds. maxFrames
// caps how many iterations are kept (oldest dropped first); zero keeps all.
func NewTimeline(bounds kmeans.Bounds, title string, maxFrames int) *Timeline {
	return &Timeline{bounds: bounds, title: title, maxFrames: maxFrames}
}

// Record appends a state. Its signature matches driver.UpdateFunc.
func (tl *Timeline) Record(state kmeans.State, terminal bool) {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	tl.frames = append(tl.frames, Frame{State: state, Terminal: terminal})
	if tl.maxFrames > 0 && len(tl.frames) > tl.maxFrames {
		tl.frames = append([]Frame(nil), tl.frames[len(tl.frames)-tl.maxFrames:]...)
	}
}

// Reset forgets every recorded frame.
func (tl *Timeline) Reset() {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.frames = nil
}

// Frames returns the recorded frames, oldest first.
func (tl *Timeline) Frames() []Frame {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return append([]Frame(nil), tl.frames...)
}

// Latest returns the most recent frame.
func (tl *Timeline) Latest() (Frame, bool) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if len(tl.frames) == 0 {
		return Frame{}, false
	}
	return tl.frames[len(tl.frames)-1], true
}

// Render writes an HTML page with one scatter chart per recorded iteration.
func (tl *Timeline) Render(w io.Writer) error {
	frames := tl.Frames()

	page := components.NewPage()
	page.PageTitle = tl.title
	page.SetAssetsHost(EChartsAssetsHost)
	for _, f := range frames {
		page.AddCharts(tl.scatter(f))
	}
	if len(frames) == 0 {
		page.AddCharts(tl.scatter(Frame{}))
	}
	return page.Render(w)
}

// RenderLatest writes a single chart of the most recent iteration.
func (tl *Timeline) RenderLatest(w io.Writer) error {
	f, _ := tl.Latest()
	return tl.scatter(f).Render(w)
}

func (tl *Timeline) scatter(f Frame) *charts.Scatter {
	k := f.State.K()
	subtitle := "no iterations recorded"
	if k > 0 {
		status := "running"
		if f.Terminal {
			status = "converged or reached maximum iterations"
		}
		subtitle = fmt.Sprintf("iteration %d, k=%d, %s", f.State.Iteration, k, status)
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: tl.title, Width: "900px", Height: "700px", AssetsHost: EChartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: tl.title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: tl.bounds.Width, Name: "x", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: tl.bounds.Height, Name: "y", NameLocation: "middle", NameGap: 30}),
	)

	for i, c := range f.State.Clusters {
		data := make([]opts.ScatterData, 0, len(c))
		for _, p := range c {
			data = append(data, opts.ScatterData{Value: []interface{}{p.X, p.Y}})
		}
		scatter.AddSeries(fmt.Sprintf("cluster %d", i), data,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: Hex(ClusterColor(i, k))}),
		)
	}

	centroids := make([]opts.ScatterData, 0, k)
	for _, c := range f.State.Centroids {
		centroids = append(centroids, opts.ScatterData{Value: []interface{}{c.X, c.Y}})
	}
	scatter.AddSeries("centroids", centroids,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 12}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: Hex(CentroidColor)}),
	)
	return scatter
}
