package render

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/kmeans.visual/internal/kmeans"
)

// FrameWriter saves one PNG per iteration into a directory using gonum/plot.
// The y axis is inverted so frames match canvas orientation.
type FrameWriter struct {
	mu     sync.Mutex
	dir    string
	bounds kmeans.Bounds
	width  vg.Length
	height vg.Length
	files  []string
	err    error
}

// NewFrameWriter creates dir and returns a writer for frames of the given bounds.
func NewFrameWriter(dir string, bounds kmeans.Bounds) (*FrameWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create frame dir: %w", err)
	}
	return &FrameWriter{
		dir:    dir,
		bounds: bounds,
		width:  8 * vg.Inch,
		height: vg.Length(8*bounds.Height/bounds.Width) * vg.Inch,
	}, nil
}

// Record writes the frame for state. Its signature matches driver.UpdateFunc,
// so it cannot return an error; the first failure is kept for Err and later
// frames are skipped.
func (fw *FrameWriter) Record(state kmeans.State, terminal bool) {
	fw.mu.Lock()
	failed := fw.err != nil
	fw.mu.Unlock()
	if failed {
		return
	}
	if _, err := fw.WriteFrame(state, terminal); err != nil {
		fw.mu.Lock()
		fw.err = err
		fw.mu.Unlock()
	}
}

// Err returns the first error hit by Record.
func (fw *FrameWriter) Err() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.err
}

// Files returns the paths written so far.
func (fw *FrameWriter) Files() []string {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return append([]string(nil), fw.files...)
}

// WriteFrame renders state to iter_NNN.png and returns the file path.
func (fw *FrameWriter) WriteFrame(state kmeans.State, terminal bool) (string, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("k-means iteration %d (k=%d)", state.Iteration, state.K())
	if terminal {
		p.Title.Text += " - done"
	}
	p.X.Min, p.X.Max = 0, fw.bounds.Width
	p.Y.Min, p.Y.Max = 0, fw.bounds.Height
	p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}

	k := state.K()
	for i, c := range state.Clusters {
		if len(c) == 0 {
			continue
		}
		s, err := plotter.NewScatter(toXYs(c))
		if err != nil {
			return "", fmt.Errorf("cluster %d: %w", i, err)
		}
		s.GlyphStyle.Color = ClusterColor(i, k)
		s.GlyphStyle.Radius = vg.Points(1.5)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(s)
	}

	if len(state.Centroids) > 0 {
		s, err := plotter.NewScatter(toXYs(state.Centroids))
		if err != nil {
			return "", fmt.Errorf("centroids: %w", err)
		}
		s.GlyphStyle.Color = CentroidColor
		s.GlyphStyle.Radius = vg.Points(5)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(s)
	}

	file := filepath.Join(fw.dir, fmt.Sprintf("iter_%03d.png", state.Iteration))
	if err := p.Save(fw.width, fw.height, file); err != nil {
		return "", fmt.Errorf("save frame: %w", err)
	}

	fw.mu.Lock()
	fw.files = append(fw.files, file)
	fw.mu.Unlock()
	return file, nil
}

func toXYs(points []kmeans.Point) plotter.XYs {
	xys := make(plotter.XYs, len(points))
	for i, pt := range points {
		xys[i].X = pt.X
		xys[i].Y = pt.Y
	}
	return xys
}
