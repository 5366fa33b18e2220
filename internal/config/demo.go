package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/kmeans.visual/internal/dataset"
	"github.com/banshee-data/kmeans.visual/internal/kmeans"
)

// DefaultConfigPath is the path to the canonical demo defaults file.
const DefaultConfigPath = "config/demo.defaults.json"

// DemoConfig holds the settings of the clustering demo. Every field is
// optional; the Get* accessors fall back to built-in defaults so partial
// files are safe.
type DemoConfig struct {
	// Canvas
	CanvasWidth  *float64 `json:"canvas_width,omitempty"`
	CanvasHeight *float64 `json:"canvas_height,omitempty"`

	// Run params
	K               *int     `json:"k,omitempty"`
	MaxIterations   *int     `json:"max_iterations,omitempty"`
	StepInterval    *string  `json:"step_interval,omitempty"` // duration string like "500ms"
	Tolerance       *float64 `json:"tolerance,omitempty"`
	InitMaxAttempts *int     `json:"init_max_attempts,omitempty"`
	Seed            *uint64  `json:"seed,omitempty"` // 0 seeds from time

	// Dataset params
	BlobCount        *int     `json:"blob_count,omitempty"`
	BlobRadius       *float64 `json:"blob_radius,omitempty"`
	BlobPoints       *int     `json:"blob_points,omitempty"`
	MickeyHeadRadius *float64 `json:"mickey_head_radius,omitempty"`
	MickeyHeadPoints *int     `json:"mickey_head_points,omitempty"`
	MickeyEarRadius  *float64 `json:"mickey_ear_radius,omitempty"`
	MickeyEarPoints  *int     `json:"mickey_ear_points,omitempty"`
	UniformPoints    *int     `json:"uniform_points,omitempty"`
	StrokeSpread     *float64 `json:"stroke_spread,omitempty"`
	StrokeMaxBurst   *int     `json:"stroke_max_burst,omitempty"`

	// Output
	PlotDir *string `json:"plot_dir,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyDemoConfig returns a DemoConfig with all fields set to nil.
func EmptyDemoConfig() *DemoConfig {
	return &DemoConfig{}
}

// LoadDemoConfig loads a DemoConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadDemoConfig(path string) (*DemoConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyDemoConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents. Panics if the file cannot
// be loaded, intended for test setup.
func MustLoadDefaultConfig() *DemoConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadDemoConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the set values are usable.
func (c *DemoConfig) Validate() error {
	if c.CanvasWidth != nil && *c.CanvasWidth <= 0 {
		return fmt.Errorf("canvas_width must be positive, got %f", *c.CanvasWidth)
	}
	if c.CanvasHeight != nil && *c.CanvasHeight <= 0 {
		return fmt.Errorf("canvas_height must be positive, got %f", *c.CanvasHeight)
	}
	if c.K != nil && *c.K < 1 {
		return fmt.Errorf("k must be at least 1, got %d", *c.K)
	}
	if c.MaxIterations != nil && *c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1, got %d", *c.MaxIterations)
	}
	if c.StepInterval != nil && *c.StepInterval != "" {
		d, err := time.ParseDuration(*c.StepInterval)
		if err != nil {
			return fmt.Errorf("invalid step_interval '%s': %w", *c.StepInterval, err)
		}
		if d < 0 {
			return fmt.Errorf("step_interval must be non-negative, got %s", d)
		}
	}
	if c.Tolerance != nil && *c.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive, got %g", *c.Tolerance)
	}
	if c.InitMaxAttempts != nil && *c.InitMaxAttempts < 1 {
		return fmt.Errorf("init_max_attempts must be at least 1, got %d", *c.InitMaxAttempts)
	}

	counts := map[string]*int{
		"blob_count":         c.BlobCount,
		"blob_points":        c.BlobPoints,
		"mickey_head_points": c.MickeyHeadPoints,
		"mickey_ear_points":  c.MickeyEarPoints,
		"uniform_points":     c.UniformPoints,
		"stroke_max_burst":   c.StrokeMaxBurst,
	}
	for name, v := range counts {
		if v != nil && *v < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", name, *v)
		}
	}

	radii := map[string]*float64{
		"blob_radius":        c.BlobRadius,
		"mickey_head_radius": c.MickeyHeadRadius,
		"mickey_ear_radius":  c.MickeyEarRadius,
		"stroke_spread":      c.StrokeSpread,
	}
	for name, v := range radii {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must be non-negative, got %f", name, *v)
		}
	}

	return nil
}

// GetBounds returns the canvas rectangle.
func (c *DemoConfig) GetBounds() kmeans.Bounds {
	b := kmeans.Bounds{Width: 800, Height: 600}
	if c.CanvasWidth != nil {
		b.Width = *c.CanvasWidth
	}
	if c.CanvasHeight != nil {
		b.Height = *c.CanvasHeight
	}
	return b
}

// GetK returns the k value or the default.
func (c *DemoConfig) GetK() int {
	if c.K == nil {
		return 3
	}
	return *c.K
}

// GetMaxIterations returns the max_iterations value or the default.
func (c *DemoConfig) GetMaxIterations() int {
	if c.MaxIterations == nil {
		return 100
	}
	return *c.MaxIterations
}

// GetStepInterval parses and returns the StepInterval as a time.Duration.
func (c *DemoConfig) GetStepInterval() time.Duration {
	if c.StepInterval == nil || *c.StepInterval == "" {
		return 500 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.StepInterval)
	if err != nil {
		return 500 * time.Millisecond // default on parse error
	}
	return d
}

// GetTolerance returns the tolerance value or the default.
func (c *DemoConfig) GetTolerance() float64 {
	if c.Tolerance == nil {
		return kmeans.Tolerance
	}
	return *c.Tolerance
}

// GetInitMaxAttempts returns the init_max_attempts value or the default.
func (c *DemoConfig) GetInitMaxAttempts() int {
	if c.InitMaxAttempts == nil {
		return kmeans.DefaultMaxInitAttempts
	}
	return *c.InitMaxAttempts
}

// GetSeed returns the seed value, or zero when the generator should be
// seeded from the clock.
func (c *DemoConfig) GetSeed() uint64 {
	if c.Seed == nil {
		return 0
	}
	return *c.Seed
}

// GetPlotDir returns the plot_dir value or the default.
func (c *DemoConfig) GetPlotDir() string {
	if c.PlotDir == nil || *c.PlotDir == "" {
		return "frames"
	}
	return *c.PlotDir
}

// DatasetParams returns the generator sizes with unset fields taken from
// dataset.DefaultParams.
func (c *DemoConfig) DatasetParams() dataset.Params {
	p := dataset.DefaultParams()
	setInt(&p.BlobCount, c.BlobCount)
	setInt(&p.BlobPoints, c.BlobPoints)
	setFloat(&p.BlobRadius, c.BlobRadius)
	setFloat(&p.MickeyHeadRadius, c.MickeyHeadRadius)
	setInt(&p.MickeyHeadPoints, c.MickeyHeadPoints)
	setFloat(&p.MickeyEarRadius, c.MickeyEarRadius)
	setInt(&p.MickeyEarPoints, c.MickeyEarPoints)
	setInt(&p.UniformPoints, c.UniformPoints)
	setFloat(&p.StrokeSpread, c.StrokeSpread)
	setInt(&p.StrokeMaxBurst, c.StrokeMaxBurst)
	p.MaxInitAttempts = c.GetInitMaxAttempts()
	return p
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
