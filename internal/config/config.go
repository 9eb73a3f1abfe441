// Package config loads service configuration from JSON files and
// RETARGET_* environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ayusman/retarget/internal/geom"
	"github.com/ayusman/retarget/internal/pose"
	"github.com/ayusman/retarget/internal/retarget"
)

// ErrInvalid is returned for configuration values out of range.
var ErrInvalid = errors.New("invalid configuration")

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Config is the service configuration.
type Config struct {
	Addr   string `json:"addr"`
	DBPath string `json:"db_path"`
	// SinkDir is scanned for sink.json manifests. Empty disables sinks.
	SinkDir     string `json:"sink_dir"`
	SinkTimeout string `json:"sink_timeout"` // duration string like "2s"
	// TickRate is the pipeline rate in frames per second.
	TickRate int `json:"tick_rate"`
	// Replay is a JSON-lines recording fed to the pipeline. Empty disables it.
	Replay string `json:"replay"`
	// Camera is a device index or video file estimated live when Replay is
	// empty. Empty disables the camera.
	Camera string `json:"camera"`
	// Estimator is the pose estimation command run for camera frames.
	Estimator []string `json:"estimator"`
	// MotionThreshold is the changed pixel percentage that triggers a new
	// estimate. Zero estimates every frame.
	MotionThreshold float64 `json:"motion_threshold"`
	// Layout names the built-in skeleton used by the pipeline.
	Layout   string   `json:"layout"`
	Tray     bool     `json:"tray"`
	Retarget Retarget `json:"retarget"`
}

// Retarget holds the solver options in file form. Rotations are Euler
// angles in degrees.
type Retarget struct {
	UseFlip                bool       `json:"use_flip"`
	UseAdditionalRotation  bool       `json:"use_additional_rotation"`
	PreRotation            [3]float64 `json:"pre_rotation"`
	RootMotion             bool       `json:"root_motion"`
	Offset                 [3]float64 `json:"offset"`
	DebugOffset            [3]float64 `json:"debug_offset"`
	HistoryWindowSize      int        `json:"history_window_size"`
	SpatialSmoothingRadius float64    `json:"spatial_smoothing_radius"`
	InputRotation          [3]float64 `json:"input_rotation"`
	// Mobile selects the portrait camera input rotation and overrides
	// InputRotation.
	Mobile bool `json:"mobile"`
}

// DefaultConfig returns a Config with default settings.
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:8750",
		DBPath:          "retarget.db",
		SinkTimeout:     "2s",
		TickRate:        30,
		Estimator:       []string{"python3", "scripts/pose_service.py"},
		MotionThreshold: 1.0,
		Layout:          "default",
		Tray:            false,
		Retarget:        DefaultRetarget(),
	}
}

// DefaultRetarget returns the default solver options.
func DefaultRetarget() Retarget {
	return Retarget{
		HistoryWindowSize:      pose.DefaultWindowSize,
		SpatialSmoothingRadius: pose.DefaultSpatialRadius,
	}
}

// Load reads a JSON config file over the defaults. Fields omitted from the
// file keep their default values.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return cfg, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return cfg, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from RETARGET_* environment variables.
// Malformed numeric or boolean values are ignored.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("RETARGET_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("RETARGET_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("RETARGET_SINK_DIR"); v != "" {
		c.SinkDir = v
	}
	if v := os.Getenv("RETARGET_REPLAY"); v != "" {
		c.Replay = v
	}
	if v := os.Getenv("RETARGET_CAMERA"); v != "" {
		c.Camera = v
	}
	if v := os.Getenv("RETARGET_LAYOUT"); v != "" {
		c.Layout = v
	}
	if v, err := strconv.Atoi(os.Getenv("RETARGET_TICK_RATE")); err == nil {
		c.TickRate = v
	}
	if v, err := strconv.ParseBool(os.Getenv("RETARGET_TRAY")); err == nil {
		c.Tray = v
	}
	if v, err := strconv.ParseBool(os.Getenv("RETARGET_FLIP")); err == nil {
		c.Retarget.UseFlip = v
	}
	if v, err := strconv.ParseBool(os.Getenv("RETARGET_ROOT_MOTION")); err == nil {
		c.Retarget.RootMotion = v
	}
	if v, err := strconv.ParseBool(os.Getenv("RETARGET_MOBILE")); err == nil {
		c.Retarget.Mobile = v
	}
}

// Validate checks that every value is in range.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is empty: %w", ErrInvalid)
	}
	if c.TickRate <= 0 || c.TickRate > 240 {
		return fmt.Errorf("tick_rate %d out of range (1-240): %w", c.TickRate, ErrInvalid)
	}
	if c.Layout != "default" && c.Layout != "arms-down" {
		return fmt.Errorf("unknown layout %q: %w", c.Layout, ErrInvalid)
	}
	if c.MotionThreshold < 0 || c.MotionThreshold > 100 {
		return fmt.Errorf("motion_threshold %v out of range (0-100): %w", c.MotionThreshold, ErrInvalid)
	}
	if c.Camera != "" && len(c.Estimator) == 0 {
		return fmt.Errorf("camera set without an estimator command: %w", ErrInvalid)
	}
	if _, err := time.ParseDuration(c.SinkTimeout); err != nil {
		return fmt.Errorf("sink_timeout %q: %v: %w", c.SinkTimeout, err, ErrInvalid)
	}
	return c.Retarget.Validate()
}

// SinkTimeoutDuration returns the parsed sink timeout, or 2s if it is malformed.
func (c Config) SinkTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.SinkTimeout)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// TickInterval returns the pipeline tick period.
func (c Config) TickInterval() time.Duration {
	if c.TickRate <= 0 {
		return time.Second / 30
	}
	return time.Second / time.Duration(c.TickRate)
}

// Validate checks the solver options.
func (r Retarget) Validate() error {
	if r.HistoryWindowSize < 1 {
		return fmt.Errorf("history_window_size %d must be positive: %w", r.HistoryWindowSize, ErrInvalid)
	}
	if r.SpatialSmoothingRadius <= 0 {
		return fmt.Errorf("spatial_smoothing_radius %v must be positive: %w", r.SpatialSmoothingRadius, ErrInvalid)
	}
	return nil
}

// Merge decodes a partial JSON object over r. An empty document leaves r
// unchanged.
func (r Retarget) Merge(data []byte) (Retarget, error) {
	if len(data) == 0 {
		return r, nil
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("failed to parse retarget options: %w", err)
	}
	return r, r.Validate()
}

// Config converts the file form into solver options.
func (r Retarget) Config() retarget.Config {
	input := euler(r.InputRotation)
	if r.Mobile {
		input = retarget.MobileInputRotation()
	}
	return retarget.Config{
		UseFlip:                r.UseFlip,
		UseAdditionalRotation:  r.UseAdditionalRotation,
		PreRotation:            euler(r.PreRotation),
		RootMotion:             r.RootMotion,
		Offset:                 vec(r.Offset),
		DebugOffset:            vec(r.DebugOffset),
		HistoryWindowSize:      r.HistoryWindowSize,
		SpatialSmoothingRadius: r.SpatialSmoothingRadius,
		InputRotation:          input,
	}
}

func euler(a [3]float64) geom.Quat {
	return geom.FromEuler(a[0], a[1], a[2])
}

func vec(a [3]float64) geom.Vec3 {
	return geom.Vec3{X: a[0], Y: a[1], Z: a[2]}
}
