// Package dataset generates the 2D point sets fed to clustering runs and
// caches the currently selected one.
package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/banshee-data/kmeans.visual/internal/kmeans"
)

// Kind names a dataset shape.
type Kind string

const (
	// KindBlobs is a handful of round blobs at well-separated random centres.
	KindBlobs   Kind = "random"
	KindMickey  Kind = "mickey"
	KindUniform Kind = "uniform"
	// KindDrawn is the set built up from pointer strokes.
	KindDrawn Kind = "drawn"
)

// Kinds lists every supported dataset kind.
var Kinds = []Kind{KindBlobs, KindMickey, KindUniform, KindDrawn}

// ParseKind validates a dataset name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Params sizes the generated shapes.
type Params struct {
	BlobCount  int
	BlobPoints int
	BlobRadius float64

	MickeyHeadRadius float64
	MickeyHeadPoints int
	MickeyEarRadius  float64
	MickeyEarPoints  int

	UniformPoints int

	// StrokeSpread is the side of the square a stroke sample scatters into.
	StrokeSpread   float64
	StrokeMaxBurst int

	MaxInitAttempts int
}

// DefaultParams returns the shape sizes of the browser demo.
func DefaultParams() Params {
	return Params{
		BlobCount:        3,
		BlobPoints:       250,
		BlobRadius:       75,
		MickeyHeadRadius: 200,
		MickeyHeadPoints: 1500,
		MickeyEarRadius:  80,
		MickeyEarPoints:  200,
		UniformPoints:    1500,
		StrokeSpread:     50,
		StrokeMaxBurst:   5,
		MaxInitAttempts:  kmeans.DefaultMaxInitAttempts,
	}
}

// Disc scatters n points uniformly over the disc of the given radius around
// center, clamped to b.
func Disc(rng *rand.Rand, n int, center kmeans.Point, radius float64, b kmeans.Bounds) []kmeans.Point {
	points := make([]kmeans.Point, n)
	for i := range points {
		angle := rng.Float64() * 2 * math.Pi
		// sqrt keeps the density uniform across the area.
		r := math.Sqrt(rng.Float64()) * radius
		points[i] = clamp(kmeans.Point{
			X: center.X + r*math.Cos(angle),
			Y: center.Y + r*math.Sin(angle),
		}, b)
	}
	return points
}

func clamp(p kmeans.Point, b kmeans.Bounds) kmeans.Point {
	return kmeans.Point{
		X: math.Min(b.Width, math.Max(0, p.X)),
		Y: math.Min(b.Height, math.Max(0, p.Y)),
	}
}

// Blobs places p.BlobCount blob centres with the same separation rule as
// centroid initialization and fills each with a disc of points.
func Blobs(rng *rand.Rand, b kmeans.Bounds, p Params) ([][]kmeans.Point, error) {
	centres, err := kmeans.InitCentroids(rng, p.BlobCount, b, p.MaxInitAttempts)
	if err != nil {
		return nil, fmt.Errorf("place blob centres: %w", err)
	}
	groups := make([][]kmeans.Point, 0, len(centres))
	for _, c := range centres {
		groups = append(groups, Disc(rng, p.BlobPoints, c, p.BlobRadius, b))
	}
	return groups, nil
}

// Mickey draws a large head disc in the middle of b with two ears above it.
func Mickey(rng *rand.Rand, b kmeans.Bounds, p Params) [][]kmeans.Point {
	head := kmeans.Point{X: b.Width / 2, Y: b.Height / 2}
	offset := p.MickeyHeadRadius * 0.8
	leftEar := kmeans.Point{X: head.X - offset, Y: head.Y - offset}
	rightEar := kmeans.Point{X: head.X + offset, Y: head.Y - offset}

	return [][]kmeans.Point{
		Disc(rng, p.MickeyHeadPoints, head, p.MickeyHeadRadius, b),
		Disc(rng, p.MickeyEarPoints, leftEar, p.MickeyEarRadius, b),
		Disc(rng, p.MickeyEarPoints, rightEar, p.MickeyEarRadius, b),
	}
}

// Uniform scatters single-point groups over the whole of b with up to half a
// unit of jitter, so points may sit just outside the rectangle.
func Uniform(rng *rand.Rand, b kmeans.Bounds, p Params) [][]kmeans.Point {
	groups := make([][]kmeans.Point, p.UniformPoints)
	for i := range groups {
		pt := kmeans.Point{X: rng.Float64() * b.Width, Y: rng.Float64() * b.Height}
		pt.X += rng.Float64() - 0.5
		pt.Y += rng.Float64() - 0.5
		groups[i] = []kmeans.Point{pt}
	}
	return groups
}

// Stroke turns one pointer sample into a small burst of jittered points, the
// way a spray brush would. The burst size is between 1 and p.StrokeMaxBurst.
func Stroke(rng *rand.Rand, at kmeans.Point, p Params) []kmeans.Point {
	var points []kmeans.Point
	for n := 0; n < p.StrokeMaxBurst && rng.Float64()*float64(p.StrokeMaxBurst) >= float64(n); n++ {
		points = append(points, kmeans.Point{
			X: at.X + (rng.Float64()-0.5)*p.StrokeSpread,
			Y: at.Y + (rng.Float64()-0.5)*p.StrokeSpread,
		})
	}
	return points
}
