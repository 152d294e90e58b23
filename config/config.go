// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package config implements the configuration of the
// render graph, including the declarative description of
// its passes.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const prefix = "config: "

func newErr(reason string) error { return errors.New(prefix + reason) }

const (
	// The maximum number of frames in flight.
	MaxFrame = 3

	dflWidth        = 1280
	dflHeight       = 720
	dflFenceTimeout = 5 * time.Second
	dflLogLevel     = "info"
	dflShaderDir    = "shaders"
	dflDriver       = "null"
)

// Config is used to configure the render graph.
type Config struct {
	// Prefer double-buffering rather than the
	// default triple-buffering.
	// It is ignored if FrameCount is set.
	//
	// Default is false.
	DoubleBuffered bool `toml:"double_buffered" yaml:"double_buffered"`

	// The number of frame slots.
	// Zero means that it is derived from the swapchain's
	// image count, capped at MaxFrame.
	//
	// Default is 0.
	FrameCount int `toml:"frame_count" yaml:"frame_count"`

	// The size of the render area.
	//
	// Default is 1280x720.
	Width  int `toml:"width" yaml:"width"`
	Height int `toml:"height" yaml:"height"`

	// The maximum duration of a fence wait.
	// Zero disables the timeout.
	//
	// Default is 5s.
	FenceTimeout Duration `toml:"fence_timeout" yaml:"fence_timeout"`

	// Whether pipeline inputs that match neither a binder
	// nor a pass output are rejected when building the
	// graph.
	//
	// Default is false.
	Strict bool `toml:"strict" yaml:"strict"`

	// One of "debug", "info", "warn" or "error".
	//
	// Default is "info".
	LogLevel string `toml:"log_level" yaml:"log_level"`

	// The directory that relative shader paths are
	// resolved against. A leading ~ is expanded.
	//
	// Default is "shaders".
	ShaderDir string `toml:"shader_dir" yaml:"shader_dir"`

	// Whether shader files are watched for changes.
	//
	// Default is false.
	Watch bool `toml:"watch" yaml:"watch"`

	// The name of the driver to open.
	//
	// Default is "null".
	Driver string `toml:"driver" yaml:"driver"`

	// The passes of the graph. If empty, the default
	// pass set is used.
	//
	// Default is empty.
	Passes []PassConfig `toml:"passes" yaml:"passes"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		DoubleBuffered: false,
		FrameCount:     0,
		Width:          dflWidth,
		Height:         dflHeight,
		FenceTimeout:   Duration(dflFenceTimeout),
		Strict:         false,
		LogLevel:       dflLogLevel,
		ShaderDir:      dflShaderDir,
		Watch:          false,
		Driver:         dflDriver,
	}
}

var cfg Config

// Configure replaces the current configuration
// with config.
func Configure(config *Config) {
	cfg = *config
	cfg.Passes = append([]PassConfig(nil), config.Passes...)
}

// Current returns a copy of the current configuration.
func Current() Config {
	c := cfg
	c.Passes = append([]PassConfig(nil), cfg.Passes...)
	return c
}

func init() {
	config := DefaultConfig()
	Configure(&config)
}

// Frames returns the number of frame slots to use given
// the swapchain's image count.
func (c *Config) Frames(imageCount int) int {
	if c.FrameCount > 0 {
		return c.FrameCount
	}
	n := min(imageCount, MaxFrame)
	if c.DoubleBuffered {
		n = min(n, 2)
	}
	return max(n, 1)
}

// Level returns the slog level that LogLevel names.
// Invalid names yield slog.LevelInfo.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// ShaderPath resolves a shader stage path against
// ShaderDir.
func (c *Config) ShaderPath(stage string) string {
	if filepath.IsAbs(stage) || c.ShaderDir == "" {
		return stage
	}
	dir, err := homedir.Expand(c.ShaderDir)
	if err != nil {
		dir = c.ShaderDir
	}
	return filepath.Join(dir, stage)
}

// Validate checks that every field holds a valid value.
// Every problem found is reported.
func (c *Config) Validate() error {
	var errs []error
	if c.FrameCount < 0 || c.FrameCount > MaxFrame {
		errs = append(errs, newErr(fmt.Sprintf("frame_count must be in [0, %d], got %d", MaxFrame, c.FrameCount)))
	}
	if c.Width < 1 || c.Height < 1 {
		errs = append(errs, newErr(fmt.Sprintf("invalid render area %dx%d", c.Width, c.Height)))
	}
	if c.FenceTimeout < 0 {
		errs = append(errs, newErr("fence_timeout must not be negative"))
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		errs = append(errs, newErr(fmt.Sprintf("invalid log_level %q", c.LogLevel)))
	}
	seen := make(map[string]bool, len(c.Passes))
	for i := range c.Passes {
		p := &c.Passes[i]
		if seen[p.Name] {
			errs = append(errs, newErr(fmt.Sprintf("duplicate pass %q", p.Name)))
		}
		seen[p.Name] = true
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Load reads the configuration file at path.
// The format is chosen from the file extension: .toml,
// .yaml or .yml. Fields absent from the file keep their
// default values.
func Load(path string) (*Config, error) {
	p, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf(prefix+"%w", err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf(prefix+"%w", err)
	}
	c, err := Parse(data, filepath.Ext(p))
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, p)
	}
	return c, nil
}

// Parse decodes data in the given format ("toml" or
// "yaml", optionally with a leading dot) and validates
// the result.
func Parse(data []byte, format string) (*Config, error) {
	c := DefaultConfig()
	var err error
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "toml":
		err = toml.Unmarshal(data, &c)
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &c)
	default:
		return nil, newErr(fmt.Sprintf("unknown format %q", format))
	}
	if err != nil {
		return nil, fmt.Errorf(prefix+"%w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Marshal encodes c in the given format.
func (c *Config) Marshal(format string) ([]byte, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "toml":
		return toml.Marshal(c)
	case "yaml", "yml":
		return yaml.Marshal(c)
	}
	return nil, newErr(fmt.Sprintf("unknown format %q", format))
}

// Duration is a time.Duration that is encoded as text
// (e.g., "250ms").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	x, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(x)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }
