// Package config loads the YAML run configuration of the conveyor belt
// vision pipeline.
package config

import (
	"errors"
	"fmt"
	"github.com/swdee/go-beltvision/calibrate"
	"github.com/swdee/go-beltvision/detect"
	"github.com/swdee/go-beltvision/store"
	"github.com/swdee/go-beltvision/tracker"
	"gopkg.in/yaml.v3"
	"image"
	"os"
	"strings"
)

// ErrInvalidConfig is wrapped by every failure to read, parse or validate a
// configuration file
var ErrInvalidConfig = errors.New("invalid config")

// Detection holds the frame detector settings
type Detection struct {
	// AreaMinimum is the contour area at or below which a contour is noise
	AreaMinimum *float64 `yaml:"area_minimum"`
	// Threshold is the binarization threshold applied to frames
	Threshold *float32 `yaml:"threshold"`
}

// Tracking holds the tracker settings
type Tracking struct {
	// Assignment is either "greedy" or "one-to-one"
	Assignment string `yaml:"assignment"`
	// MaxMissedFrames evicts identities unmatched for more than this many
	// frames, zero never evicts
	MaxMissedFrames int `yaml:"max_missed_frames"`
	// MaxTrajectory caps the trajectory samples kept per identity, zero is
	// unbounded
	MaxTrajectory int `yaml:"max_trajectory"`
}

// Storage holds the object state store settings
type Storage struct {
	// Backend is one of "json", "json-indexed" or "sqlite"
	Backend string `yaml:"backend"`
	// Atomic replaces the json file via a temporary file on every write
	Atomic bool `yaml:"atomic"`
}

// Config is the run configuration
type Config struct {
	// BeltSpeed is the conveyor belt speed in meters per second
	BeltSpeed float64 `yaml:"conveyor_belt_speed"`
	// BeltWidth is the real belt width in meters
	BeltWidth float64 `yaml:"conveyor_belt_width_real"`
	// BorderWidth is the real width in meters of the belt border excluded
	// from detection
	BorderWidth float64 `yaml:"conveyor_belt_border_width_real"`
	// ReferenceObject is the [x1, y1, x2, y2] pixel rectangle of the
	// reference object in the calibration image
	ReferenceObject []int `yaml:"reference_object_coordinate"`
	// FPS is the frame rate of the video source
	FPS float64 `yaml:"FPS"`
	// Delay is the actuator latency counted in frames
	Delay int `yaml:"delay"`
	// VideoPath is the video source
	VideoPath string `yaml:"video_path"`
	// CalibrationImagePath is the image containing the reference object
	CalibrationImagePath string `yaml:"calibration_image_path"`
	// OutputPath is where object records are persisted
	OutputPath string `yaml:"output_json"`
	// CalibrationThreshold is the binarization threshold for the reference
	// object crop.  It must be set explicitly.
	CalibrationThreshold *int `yaml:"calibration_threshold"`
	// BeltBaseline is the pixel row the belt band is measured from
	BeltBaseline *int `yaml:"belt_baseline_px"`

	Detection Detection `yaml:"detection"`
	Tracker   Tracking  `yaml:"tracker"`
	Store     Storage   `yaml:"store"`
}

// Load reads, parses and validates the configuration file at path
func Load(path string) (*Config, error) {

	data, err := os.ReadFile(path)

	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrInvalidConfig, path, err)
	}

	return Parse(data)
}

// Parse decodes YAML data into a Config, applies defaults and validates it
func Parse(data []byte) (*Config, error) {

	cfg := &Config{}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing: %w", ErrInvalidConfig, err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults fills in unset optional settings
func (c *Config) applyDefaults() {

	if c.BeltBaseline == nil {
		baseline := calibrate.BeltBaseline
		c.BeltBaseline = &baseline
	}

	def := detect.DefaultParams()

	if c.Detection.AreaMinimum == nil {
		c.Detection.AreaMinimum = &def.AreaMinimum
	}

	if c.Detection.Threshold == nil {
		c.Detection.Threshold = &def.Threshold
	}

	if c.Tracker.Assignment == "" {
		c.Tracker.Assignment = tracker.Greedy.String()
	}

	if c.Store.Backend == "" {
		c.Store.Backend = string(store.BackendJSON)
	}
}

// Validate checks the configuration is usable, all problems found are
// reported together
func (c *Config) Validate() error {

	var problems []string

	if c.BeltSpeed < 0 {
		problems = append(problems, "conveyor_belt_speed must not be negative")
	}

	if c.BeltWidth <= 0 {
		problems = append(problems, "conveyor_belt_width_real must be positive")
	}

	if c.BorderWidth < 0 {
		problems = append(problems, "conveyor_belt_border_width_real must not be negative")
	}

	if len(c.ReferenceObject) != 4 {
		problems = append(problems, "reference_object_coordinate must be [x1, y1, x2, y2]")
	} else if r := c.ReferenceRect(); r.Empty() || r.Min.X < 0 || r.Min.Y < 0 {
		problems = append(problems, "reference_object_coordinate must be a non empty rectangle")
	}

	if c.FPS <= 0 {
		problems = append(problems, "FPS must be positive")
	}

	if c.Delay < 0 {
		problems = append(problems, "delay must not be negative")
	}

	if c.VideoPath == "" {
		problems = append(problems, "video_path is required")
	}

	if c.CalibrationImagePath == "" {
		problems = append(problems, "calibration_image_path is required")
	}

	if c.OutputPath == "" {
		problems = append(problems, "output_json is required")
	}

	if c.CalibrationThreshold == nil {
		problems = append(problems, "calibration_threshold is required")
	} else if *c.CalibrationThreshold < 0 || *c.CalibrationThreshold > 255 {
		problems = append(problems, "calibration_threshold must be within 0-255")
	}

	if c.BeltBaseline != nil && *c.BeltBaseline < 0 {
		problems = append(problems, "belt_baseline_px must not be negative")
	}

	if c.Detection.AreaMinimum != nil && *c.Detection.AreaMinimum < 0 {
		problems = append(problems, "detection.area_minimum must not be negative")
	}

	if t := c.Detection.Threshold; t != nil && (*t < 0 || *t > 255) {
		problems = append(problems, "detection.threshold must be within 0-255")
	}

	if _, err := c.Assignment(); err != nil {
		problems = append(problems, err.Error())
	}

	if c.Tracker.MaxMissedFrames < 0 {
		problems = append(problems, "tracker.max_missed_frames must not be negative")
	}

	if c.Tracker.MaxTrajectory < 0 {
		problems = append(problems, "tracker.max_trajectory must not be negative")
	}

	switch store.Backend(c.Store.Backend) {
	case store.BackendJSON, store.BackendJSONIndexed, store.BackendSQLite:
	default:
		problems = append(problems, fmt.Sprintf("unknown store.backend %q", c.Store.Backend))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}

	return nil
}

// ReferenceRect returns the reference object rectangle in the calibration
// image
func (c *Config) ReferenceRect() image.Rectangle {

	if len(c.ReferenceObject) != 4 {
		return image.Rectangle{}
	}

	r := c.ReferenceObject
	return image.Rect(r[0], r[1], r[2], r[3])
}

// Threshold returns the calibration binarization threshold
func (c *Config) Threshold() float32 {

	if c.CalibrationThreshold == nil {
		return 0
	}

	return float32(*c.CalibrationThreshold)
}

// Baseline returns the belt baseline pixel row
func (c *Config) Baseline() int {

	if c.BeltBaseline == nil {
		return calibrate.BeltBaseline
	}

	return *c.BeltBaseline
}

// Assignment returns the tracker assignment mode
func (c *Config) Assignment() (tracker.Assignment, error) {

	switch c.Tracker.Assignment {
	case tracker.Greedy.String(), "":
		return tracker.Greedy, nil
	case tracker.OneToOne.String():
		return tracker.OneToOne, nil
	default:
		return tracker.Greedy, fmt.Errorf("unknown tracker.assignment %q", c.Tracker.Assignment)
	}
}

// TrackerOptions returns the tracker options
func (c *Config) TrackerOptions() tracker.Options {

	mode, _ := c.Assignment()

	return tracker.Options{
		Assignment:      mode,
		MaxMissedFrames: c.Tracker.MaxMissedFrames,
		MaxTrajectory:   c.Tracker.MaxTrajectory,
	}
}

// DetectParams returns the frame detector parameters, defaults fill any
// unset value
func (c *Config) DetectParams() detect.Params {

	params := detect.DefaultParams()

	if c.Detection.AreaMinimum != nil {
		params.AreaMinimum = *c.Detection.AreaMinimum
	}

	if c.Detection.Threshold != nil {
		params.Threshold = *c.Detection.Threshold
	}

	return params
}
