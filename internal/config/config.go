// Package config loads the detection parameters of the haar binaries from a JSON file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	haar "github.com/esimov/haar/core"
)

// maxFileSize bounds the size of a configuration file.
const maxFileSize = 1 << 20

// Detection modes.
const (
	ModeAll    = "all"
	ModeSingle = "single"
)

// Config holds the detection parameters. Omitted fields keep their default
// value, which the Get* methods return, so partial files are valid.
type Config struct {
	Cascade      *string  `json:"cascade,omitempty"`
	Mode         *string  `json:"mode,omitempty"` // "all" or "single"
	ScaleFactor  *float64 `json:"scale_factor,omitempty"`
	MinSize      *int     `json:"min_size,omitempty"`
	MaxSize      *int     `json:"max_size,omitempty"`
	MinNeighbors *int     `json:"min_neighbors,omitempty"`
	RoughSearch  *bool    `json:"rough_search,omitempty"`
	SplitStage   *int     `json:"split_stage,omitempty"`
	Workers      *int     `json:"workers,omitempty"`

	// Pre-processing
	ImageScale *int  `json:"image_scale,omitempty"`
	Equalize   *bool `json:"equalize,omitempty"`

	// Tracking
	FacePad *int `json:"face_pad,omitempty"`
	CropPad *int `json:"crop_pad,omitempty"`

	LogLevel *string `json:"log_level,omitempty"`
}

// Load reads and validates a configuration file. The file must have a .json
// extension and be smaller than 1MB.
func Load(path string) (*Config, error) {
	clean := filepath.Clean(path)
	if ext := filepath.Ext(clean); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}
	fi, err := os.Stat(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fi.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fi.Size(), maxFileSize)
	}
	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the values which are set.
func (c *Config) Validate() error {
	if c.Mode != nil && *c.Mode != ModeAll && *c.Mode != ModeSingle {
		return fmt.Errorf("mode must be %q or %q, got %q", ModeAll, ModeSingle, *c.Mode)
	}
	if c.ScaleFactor != nil && !(*c.ScaleFactor > 1) {
		return fmt.Errorf("scale_factor must be greater than 1, got %f", *c.ScaleFactor)
	}
	nonNegative := map[string]*int{
		"min_size":      c.MinSize,
		"max_size":      c.MaxSize,
		"min_neighbors": c.MinNeighbors,
		"split_stage":   c.SplitStage,
		"workers":       c.Workers,
		"face_pad":      c.FacePad,
		"crop_pad":      c.CropPad,
	}
	for name, v := range nonNegative {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", name, *v)
		}
	}
	if c.ImageScale != nil && *c.ImageScale < 1 {
		return fmt.Errorf("image_scale must be at least 1, got %d", *c.ImageScale)
	}
	if c.MinSize != nil && c.MaxSize != nil && *c.MaxSize > 0 && *c.MaxSize < *c.MinSize {
		return fmt.Errorf("max_size %d is smaller than min_size %d", *c.MaxSize, *c.MinSize)
	}
	return nil
}

// GetCascade returns the cascade path, empty when not set.
func (c *Config) GetCascade() string {
	if c.Cascade == nil {
		return ""
	}
	return *c.Cascade
}

// GetMode returns the detection mode or the default.
func (c *Config) GetMode() string {
	if c.Mode == nil {
		return ModeAll
	}
	return *c.Mode
}

// GetScaleFactor returns the scale_factor value or the default.
func (c *Config) GetScaleFactor() float64 {
	if c.ScaleFactor == nil {
		return 1.1
	}
	return *c.ScaleFactor
}

// GetMinSize returns the min_size value or the default.
func (c *Config) GetMinSize() int {
	if c.MinSize == nil {
		return haar.DefaultMinSize
	}
	return *c.MinSize
}

// GetMaxSize returns the max_size value, 0 meaning no limit.
func (c *Config) GetMaxSize() int {
	if c.MaxSize == nil {
		return 0
	}
	return *c.MaxSize
}

// GetMinNeighbors returns the min_neighbors value or the default.
func (c *Config) GetMinNeighbors() int {
	if c.MinNeighbors == nil {
		return 3
	}
	return *c.MinNeighbors
}

// GetRoughSearch returns the rough_search value or the default.
func (c *Config) GetRoughSearch() bool {
	if c.RoughSearch == nil {
		return false
	}
	return *c.RoughSearch
}

// GetSplitStage returns the split_stage value or the default.
func (c *Config) GetSplitStage() int {
	if c.SplitStage == nil {
		return haar.DefaultSplitStage
	}
	return *c.SplitStage
}

// GetWorkers returns the workers value, 0 meaning one per CPU.
func (c *Config) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetImageScale returns the image_scale value or the default.
func (c *Config) GetImageScale() int {
	if c.ImageScale == nil {
		return 1
	}
	return *c.ImageScale
}

// GetEqualize returns the equalize value or the default.
func (c *Config) GetEqualize() bool {
	if c.Equalize == nil {
		return false
	}
	return *c.Equalize
}

// GetFacePad returns the face_pad value or the default.
func (c *Config) GetFacePad() int {
	if c.FacePad == nil {
		return haar.DefaultFacePad
	}
	return *c.FacePad
}

// GetCropPad returns the crop_pad value or the default.
func (c *Config) GetCropPad() int {
	if c.CropPad == nil {
		return haar.DefaultCropPad
	}
	return *c.CropPad
}

// GetLogLevel returns the log_level value or the default.
func (c *Config) GetLogLevel() string {
	if c.LogLevel == nil {
		return "info"
	}
	return *c.LogLevel
}

// Flags returns the scanning flags matching the mode.
func (c *Config) Flags() haar.Flags {
	var f haar.Flags
	if c.GetMode() == ModeSingle {
		f |= haar.FindBiggestObject
		if c.GetRoughSearch() {
			f |= haar.DoRoughSearch
		}
	}
	return f
}

// CascadeParams returns the detector settings for the image.
func (c *Config) CascadeParams(img haar.ImageParams) haar.CascadeParams {
	minSize, maxSize := c.GetMinSize(), c.GetMaxSize()
	return haar.CascadeParams{
		MinSize:      haar.Size{Width: minSize, Height: minSize},
		MaxSize:      haar.Size{Width: maxSize, Height: maxSize},
		ScaleFactor:  c.GetScaleFactor(),
		MinNeighbors: c.GetMinNeighbors(),
		Flags:        c.Flags(),
		SplitStage:   c.GetSplitStage(),
		Workers:      c.GetWorkers(),
		ImageParams:  img,
	}
}

// SessionConfig returns the settings of a tracking session.
func (c *Config) SessionConfig() haar.SessionConfig {
	minSize := c.GetMinSize()
	return haar.SessionConfig{
		MinSize:     haar.Size{Width: minSize, Height: minSize},
		FacePad:     c.GetFacePad(),
		CropPad:     c.GetCropPad(),
		RoughSearch: c.GetRoughSearch(),
	}
}

// Tracking returns the defaults of the single object tracking mode
// used by the webcam server.
func Tracking() *Config {
	return &Config{
		Mode:         ptrString(ModeSingle),
		ScaleFactor:  ptrFloat64(haar.DefaultScaleFactor),
		MinNeighbors: ptrInt(haar.DefaultMinNeighbors),
		ImageScale:   ptrInt(haar.DefaultImageScale),
		Equalize:     ptrBool(true),
	}
}

// Merge overrides the fields of c which are set in o.
func (c *Config) Merge(o *Config) {
	if o == nil {
		return
	}
	override(&c.Cascade, o.Cascade)
	override(&c.Mode, o.Mode)
	override(&c.ScaleFactor, o.ScaleFactor)
	override(&c.MinSize, o.MinSize)
	override(&c.MaxSize, o.MaxSize)
	override(&c.MinNeighbors, o.MinNeighbors)
	override(&c.RoughSearch, o.RoughSearch)
	override(&c.SplitStage, o.SplitStage)
	override(&c.Workers, o.Workers)
	override(&c.ImageScale, o.ImageScale)
	override(&c.Equalize, o.Equalize)
	override(&c.FacePad, o.FacePad)
	override(&c.CropPad, o.CropPad)
	override(&c.LogLevel, o.LogLevel)
}

// override stores a copy of v in dst when v is set.
func override[T any](dst **T, v *T) {
	if v != nil {
		cp := *v
		*dst = &cp
	}
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
