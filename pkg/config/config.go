// Package config provides configuration loading and management for sightdata.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"sightdata/pkg/compress"
	"sightdata/pkg/memory"
	"sightdata/pkg/mesh"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	Processing Processing `yaml:"processing"`
	Memory     Memory     `yaml:"memory"`
	Mesh       Mesh       `yaml:"mesh"`
	Mesher     Mesher     `yaml:"mesher"`
	Output     Output     `yaml:"output"`
	Logging    Logging    `yaml:"logging"`
}

// Processing holds the slice loading parameters.
type Processing struct {
	// NumCores specifies how many CPU cores to use for parallel processing
	NumCores int `yaml:"numCores"`

	// SliceGap is the physical distance between consecutive slices in mm
	SliceGap float64 `yaml:"sliceGap"`

	// PixelSpacing is the in-plane size of a pixel in mm
	PixelSpacing float64 `yaml:"pixelSpacing"`
}

// Memory configures the buffer manager.
type Memory struct {
	// DumpPolicy is one of never, always or barrier
	DumpPolicy string `yaml:"dumpPolicy"`

	// Barrier is the resident size above which the barrier policy dumps, e.g. "512MB"
	Barrier string `yaml:"barrier"`

	// Compression of dumped buffers: none, lz4, zstd or bg4_lz4
	Compression string `yaml:"compression"`

	// DumpDir receives dumped buffers, a temporary directory when empty
	DumpDir string `yaml:"dumpDir"`
}

// Mesh configures mesh storage.
type Mesh struct {
	// GrowStep is the number of points or cells added when a mesh runs out of capacity
	GrowStep int `yaml:"growStep"`
}

// Mesher configures surface extraction.
type Mesher struct {
	// Threshold is the normalized intensity above which a voxel is inside
	Threshold float64 `yaml:"threshold"`

	// Triangulate splits each quad face into two triangles
	Triangulate bool `yaml:"triangulate"`

	// Normals generates point normals on the extracted mesh
	Normals bool `yaml:"normals"`
}

// Output configures what gets written.
type Output struct {
	// Compression of the encoded mesh: none, lz4, zstd or bg4_lz4
	Compression string `yaml:"compression"`

	// SaveSlices writes the loaded volume back as images next to the output
	SaveSlices bool `yaml:"saveSlices"`

	// Verbose controls the level of logging output
	Verbose bool `yaml:"verbose"`
}

// Logging configures the log file.
type Logging struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.SliceGap = 1.0
	cfg.Processing.PixelSpacing = 1.0

	cfg.Memory.DumpPolicy = "never"
	cfg.Memory.Barrier = "1GiB"
	cfg.Memory.Compression = compress.LZ4.String()

	cfg.Mesh.GrowStep = mesh.DefaultGrowStep

	cfg.Mesher.Threshold = 0.25
	cfg.Mesher.Triangulate = true
	cfg.Mesher.Normals = true

	cfg.Output.Compression = compress.Zstd.String()
	cfg.Output.Verbose = true

	cfg.Logging.MaxSizeMB = 100
	cfg.Logging.MaxBackups = 5
	cfg.Logging.MaxAgeDays = 30
	cfg.Logging.Compress = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// Validate checks value ranges and names.
func (c *Config) Validate() error {
	var errs []error
	if c.Processing.NumCores < 1 {
		errs = append(errs, fmt.Errorf("processing.numCores must be positive, got %d", c.Processing.NumCores))
	}
	if c.Processing.SliceGap <= 0 {
		errs = append(errs, fmt.Errorf("processing.sliceGap must be positive, got %g", c.Processing.SliceGap))
	}
	if c.Processing.PixelSpacing <= 0 {
		errs = append(errs, fmt.Errorf("processing.pixelSpacing must be positive, got %g", c.Processing.PixelSpacing))
	}
	if _, err := c.DumpPolicy(); err != nil {
		errs = append(errs, err)
	}
	if _, err := compress.ParseTag(c.Memory.Compression); err != nil {
		errs = append(errs, fmt.Errorf("memory.compression: %w", err))
	}
	if _, err := compress.ParseTag(c.Output.Compression); err != nil {
		errs = append(errs, fmt.Errorf("output.compression: %w", err))
	}
	if c.Mesh.GrowStep < 1 {
		errs = append(errs, fmt.Errorf("mesh.growStep must be positive, got %d", c.Mesh.GrowStep))
	}
	if c.Mesher.Threshold < 0 || c.Mesher.Threshold > 1 {
		errs = append(errs, fmt.Errorf("mesher.threshold must be within [0, 1], got %g", c.Mesher.Threshold))
	}
	return errors.Join(errs...)
}

// DumpPolicy returns the configured memory dump policy.
func (c *Config) DumpPolicy() (memory.DumpPolicy, error) {
	p, err := memory.ParseDumpPolicy(c.Memory.DumpPolicy, c.Memory.Barrier)
	if err != nil {
		return nil, fmt.Errorf("memory.dumpPolicy: %w", err)
	}
	return p, nil
}

// NewManager builds the memory manager described by the memory section.
// A temporary dump directory is created when none is configured; the
// returned cleanup removes it.
func (c *Config) NewManager(opts ...memory.Option) (*memory.Manager, func(), error) {
	policy, err := c.DumpPolicy()
	if err != nil {
		return nil, nil, err
	}
	tag, err := compress.ParseTag(c.Memory.Compression)
	if err != nil {
		return nil, nil, fmt.Errorf("memory.compression: %w", err)
	}

	dir, cleanup := c.Memory.DumpDir, func() {}
	if dir == "" {
		if dir, err = os.MkdirTemp("", "sightdata-dump-"); err != nil {
			return nil, nil, fmt.Errorf("error creating dump directory: %w", err)
		}
		cleanup = func() { os.RemoveAll(dir) }
	}
	store, err := memory.NewFileStore(dir, tag)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	opts = append([]memory.Option{memory.WithStore(store), memory.WithDumpPolicy(policy)}, opts...)
	return memory.NewManager(opts...), cleanup, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
