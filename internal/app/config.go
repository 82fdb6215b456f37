// Package app holds what every spritepick host shares: the YAML
// configuration, logging setup, atlas loading and pipeline assembly.
package app

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kjkrol/gokpick/pkg/gfx"
	"gopkg.in/yaml.v3"
)

const DefaultConfigFile = "spritepick.yaml"

type Config struct {
	Window      WindowConfig `yaml:"window"`
	RefreshRate int          `yaml:"refreshRate,omitempty"`
	VSync       bool         `yaml:"vsync,omitempty"`
	// Atlas is an image file; empty selects the generated atlas.
	Atlas      string        `yaml:"atlas,omitempty"`
	Sprites    SpritesConfig `yaml:"sprites"`
	ClearColor [4]float32    `yaml:"clearColor,flow"`
	LogLevel   string        `yaml:"logLevel,omitempty"`
}

type WindowConfig struct {
	Title  string `yaml:"title"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

type SpritesConfig struct {
	Count         int           `yaml:"count"`
	Columns       int           `yaml:"columns"`
	Rows          int           `yaml:"rows"`
	CellWidth     int           `yaml:"cellWidth"`
	CellHeight    int           `yaml:"cellHeight"`
	FrameDuration time.Duration `yaml:"frameDuration"`
	Scale         float32       `yaml:"scale"`
	Speed         float64       `yaml:"speed,omitempty"`
	Seed          uint64        `yaml:"seed,omitempty"`
}

// Default matches the reference demo: 64x64 cells and 16 animation frames
// of 100ms each.
func Default() Config {
	var c Config
	c.normalize()
	return c
}

func (c *Config) normalize() {
	if c.Window.Title == "" {
		c.Window.Title = "spritepick"
	}
	if c.Window.Width == 0 {
		c.Window.Width = 800
	}
	if c.Window.Height == 0 {
		c.Window.Height = 600
	}
	if c.RefreshRate == 0 {
		c.RefreshRate = 60
	}
	if c.Sprites.Count == 0 {
		c.Sprites.Count = 32
	}
	if c.Sprites.Columns == 0 {
		c.Sprites.Columns = 4
	}
	if c.Sprites.Rows == 0 {
		c.Sprites.Rows = 16
	}
	if c.Sprites.CellWidth == 0 {
		c.Sprites.CellWidth = 64
	}
	if c.Sprites.CellHeight == 0 {
		c.Sprites.CellHeight = 64
	}
	if c.Sprites.FrameDuration == 0 {
		c.Sprites.FrameDuration = 100 * time.Millisecond
	}
	if c.Sprites.Scale == 0 {
		c.Sprites.Scale = 1
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window: size %dx%d must be positive", c.Window.Width, c.Window.Height))
	}
	if c.RefreshRate < 0 {
		errs = append(errs, fmt.Errorf("refreshRate: %d must not be negative", c.RefreshRate))
	}
	if c.Sprites.Count < 0 || c.Sprites.Count > gfx.InstanceCapacity {
		errs = append(errs, fmt.Errorf("sprites.count: %d outside [0, %d]", c.Sprites.Count, gfx.InstanceCapacity))
	}
	if c.Sprites.Columns <= 0 || c.Sprites.Rows <= 0 {
		errs = append(errs, fmt.Errorf("sprites: atlas grid %dx%d must be positive", c.Sprites.Columns, c.Sprites.Rows))
	}
	if c.Sprites.CellWidth <= 0 || c.Sprites.CellHeight <= 0 {
		errs = append(errs, fmt.Errorf("sprites: cell %dx%d must be positive", c.Sprites.CellWidth, c.Sprites.CellHeight))
	}
	if c.Sprites.FrameDuration < 0 {
		errs = append(errs, fmt.Errorf("sprites.frameDuration: %s must not be negative", c.Sprites.FrameDuration))
	}
	if c.Sprites.Speed < 0 {
		errs = append(errs, fmt.Errorf("sprites.speed: %g must not be negative", c.Sprites.Speed))
	}
	for i, v := range c.ClearColor {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("clearColor[%d]: %g outside [0, 1]", i, v))
		}
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("logLevel: %w", err))
	}
	return errors.Join(errs...)
}

func ParseConfig(data []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

// LoadConfig reads a YAML file. A missing file at the default path yields
// the defaults; a missing file named explicitly is an error.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigFile
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && path == DefaultConfigFile {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	c, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// WriteConfig stores c as YAML, the way LoadConfig reads it back.
func WriteConfig(path string, c Config) error {
	c.normalize()
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(&c); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
