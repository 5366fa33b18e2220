package render

import (
	"bytes"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/kmeans.visual/internal/kmeans"
)

var bounds = kmeans.Bounds{Width: 800, Height: 600}

func sampleState(iteration int) kmeans.State {
	s := kmeans.NewState([]kmeans.Point{{X: 100, Y: 100}, {X: 600, Y: 400}, {X: 700, Y: 50}})
	s.Clusters = kmeans.Assign([]kmeans.Point{{X: 90, Y: 110}, {X: 120, Y: 80}, {X: 590, Y: 420}}, s.Centroids)
	s.Iteration = iteration
	return s
}

func TestClusterColor(t *testing.T) {
	assert.Equal(t, color.RGBA{R: 255, A: 255}, ClusterColor(0, 3))
	assert.Equal(t, color.RGBA{G: 255, A: 255}, ClusterColor(1, 3))
	assert.Equal(t, "#ff0000", Hex(ClusterColor(0, 3)))
	assert.Equal(t, "#000000", Hex(CentroidColor))
	assert.Equal(t, ClusterColor(0, 1), ClusterColor(0, 0), "k <= 0 falls back to one hue")
}

func TestTimeline_RecordAndCap(t *testing.T) {
	tl := NewTimeline(bounds, "test", 2)

	_, ok := tl.Latest()
	assert.False(t, ok)

	tl.Record(sampleState(1), false)
	tl.Record(sampleState(2), false)
	tl.Record(sampleState(3), true)

	frames := tl.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, 2, frames[0].State.Iteration)
	assert.Equal(t, 3, frames[1].State.Iteration)

	latest, ok := tl.Latest()
	require.True(t, ok)
	assert.True(t, latest.Terminal)

	tl.Reset()
	assert.Empty(t, tl.Frames())
}

func TestTimeline_Render(t *testing.T) {
	tl := NewTimeline(bounds, "K-Means Demo", 0)
	tl.Record(sampleState(1), false)
	tl.Record(sampleState(2), true)

	var buf bytes.Buffer
	require.NoError(t, tl.Render(&buf))
	html := buf.String()

	assert.Contains(t, html, "K-Means Demo")
	assert.Contains(t, html, "iteration 2, k=3")
	assert.Contains(t, html, "#ff0000")
	assert.Contains(t, html, "centroids")
}

func TestTimeline_RenderEmpty(t *testing.T) {
	tl := NewTimeline(bounds, "empty", 0)

	var page, single bytes.Buffer
	require.NoError(t, tl.Render(&page))
	require.NoError(t, tl.RenderLatest(&single))
	assert.Contains(t, page.String(), "no iterations recorded")
	assert.Contains(t, single.String(), "no iterations recorded")
}

func TestFrameWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	fw, err := NewFrameWriter(dir, bounds)
	require.NoError(t, err)

	fw.Record(sampleState(1), false)
	fw.Record(sampleState(2), true)
	require.NoError(t, fw.Err())

	files := fw.Files()
	require.Len(t, files, 2)
	assert.True(t, strings.HasSuffix(files[0], "iter_001.png"))

	data, err := os.ReadFile(files[1])
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")), "frame is not a PNG")
}
