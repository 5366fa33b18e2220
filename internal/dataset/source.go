package dataset

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/banshee-data/kmeans.visual/internal/kmeans"
)

var (
	ErrUnknownKind = errors.New("unknown dataset kind")
	ErrNoSelection = errors.New("no dataset selected")
	// ErrNoPoints is returned for a drawn dataset with no strokes yet.
	ErrNoPoints   = errors.New("dataset has no points")
	ErrNotDrawing = errors.New("drawing is only enabled for the drawn dataset")
	ErrOffCanvas  = errors.New("pointer sample is outside the canvas")
)

// Source holds the selected dataset. Generated sets are cached per kind until
// Regenerate or a new Select, so a run reuses exactly what was previewed.
// It is safe for concurrent use.
type Source struct {
	mu       sync.Mutex
	rng      *rand.Rand
	bounds   kmeans.Bounds
	params   Params
	selected Kind
	cache    map[Kind][][]kmeans.Point
	drawn    [][]kmeans.Point
}

// NewSource creates a Source generating inside bounds.
func NewSource(rng *rand.Rand, bounds kmeans.Bounds, params Params) *Source {
	return &Source{
		rng:    rng,
		bounds: bounds,
		params: params,
		cache:  make(map[Kind][][]kmeans.Point),
	}
}

// Bounds returns the rectangle the source generates into.
func (s *Source) Bounds() kmeans.Bounds {
	return s.bounds
}

// Selected returns the selected kind, or "" when nothing is selected.
func (s *Source) Selected() Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Select switches to kind. Generated kinds get a fresh set, the drawn kind
// starts from an empty canvas. The new set is returned; it is empty for drawn.
func (s *Source) Select(kind Kind) ([][]kmeans.Point, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.selected = kind
	if kind == KindDrawn {
		s.drawn = nil
		return nil, nil
	}
	delete(s.cache, kind)
	return s.pointsLocked()
}

// Points returns the selected set, generating and caching it on first use.
func (s *Source) Points() ([][]kmeans.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pointsLocked()
}

func (s *Source) pointsLocked() ([][]kmeans.Point, error) {
	switch s.selected {
	case "":
		return nil, ErrNoSelection
	case KindDrawn:
		if len(s.drawn) == 0 {
			return nil, fmt.Errorf("%w: draw on the canvas first", ErrNoPoints)
		}
		return copyGroups(s.drawn), nil
	}

	if groups, ok := s.cache[s.selected]; ok {
		return copyGroups(groups), nil
	}
	groups, err := s.generate(s.selected)
	if err != nil {
		return nil, err
	}
	s.cache[s.selected] = groups
	return copyGroups(groups), nil
}

func (s *Source) generate(kind Kind) ([][]kmeans.Point, error) {
	switch kind {
	case KindBlobs:
		return Blobs(s.rng, s.bounds, s.params)
	case KindMickey:
		return Mickey(s.rng, s.bounds, s.params), nil
	case KindUniform:
		return Uniform(s.rng, s.bounds, s.params), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// Regenerate drops the cached set of the selected kind so the next Points
// call builds a new one.
func (s *Source) Regenerate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, s.selected)
}

// AddStroke records a pointer sample on the drawn canvas and returns the
// points it produced. Samples must lie on the canvas.
func (s *Source) AddStroke(at kmeans.Point) ([]kmeans.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected != KindDrawn {
		return nil, ErrNotDrawing
	}
	if !(at.X >= 0 && at.X <= s.bounds.Width && at.Y >= 0 && at.Y <= s.bounds.Height) {
		return nil, fmt.Errorf("%w: (%g, %g) not within %gx%g", ErrOffCanvas, at.X, at.Y, s.bounds.Width, s.bounds.Height)
	}
	points := Stroke(s.rng, at, s.params)
	for _, p := range points {
		s.drawn = append(s.drawn, []kmeans.Point{p})
	}
	return points, nil
}

// ClearDrawing empties the drawn canvas.
func (s *Source) ClearDrawing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drawn = nil
}

func copyGroups(groups [][]kmeans.Point) [][]kmeans.Point {
	out := make([][]kmeans.Point, len(groups))
	for i, g := range groups {
		out[i] = append([]kmeans.Point(nil), g...)
	}
	return out
}
