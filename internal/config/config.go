package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Candseven88/3D-Logo-Maker/pkg/export"
	"github.com/Candseven88/3D-Logo-Maker/pkg/input"
	"github.com/Candseven88/3D-Logo-Maker/pkg/preset"
	"github.com/Candseven88/3D-Logo-Maker/pkg/preview"
	"github.com/Candseven88/3D-Logo-Maker/pkg/raster"
)

// Config holds the application configuration
type Config struct {
	Input      InputConfig      `json:"input" yaml:"input"`
	Raster     RasterConfig     `json:"raster" yaml:"raster"`
	Conversion ConversionConfig `json:"conversion" yaml:"conversion"`
	Output     OutputConfig     `json:"output" yaml:"output"`
	Handoff    HandoffConfig    `json:"handoff" yaml:"handoff"`
	Advisor    AdvisorConfig    `json:"advisor" yaml:"advisor"`
}

// InputConfig holds limits for accepted source files
type InputConfig struct {
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size"`
}

// RasterConfig holds configuration for rasterization
type RasterConfig struct {
	MaxDimension int `json:"max_dimension" yaml:"max_dimension"`
}

// ConversionConfig holds the default conversion options
type ConversionConfig struct {
	Preset string  `json:"preset" yaml:"preset"`
	Scale  float64 `json:"scale" yaml:"scale"`
	Colors int     `json:"colors" yaml:"colors"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	OutputDir     string  `json:"output_dir" yaml:"output_dir"`
	Prefix        string  `json:"prefix" yaml:"prefix"`
	PreviewZoom   float64 `json:"preview_zoom" yaml:"preview_zoom"`
	ThumbnailSize int     `json:"thumbnail_size" yaml:"thumbnail_size"`
}

// HandoffConfig holds the location of the editor handoff store
type HandoffConfig struct {
	Dir string `json:"dir" yaml:"dir"`
}

// AdvisorConfig holds configuration for the preset advisor
type AdvisorConfig struct {
	Backend string `json:"backend" yaml:"backend"`
	URL     string `json:"url" yaml:"url"`
	Model   string `json:"model" yaml:"model"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Input: InputConfig{
			MaxFileSize: input.DefaultMaxSize,
		},
		Raster: RasterConfig{
			MaxDimension: raster.DefaultMaxDimension,
		},
		Conversion: ConversionConfig{
			Preset: string(preset.DefaultName),
			Scale:  preset.DefaultScale,
			Colors: preset.DefaultColors,
		},
		Output: OutputConfig{
			OutputDir:     "./output",
			Prefix:        export.DefaultPrefix,
			PreviewZoom:   preview.DefaultZoom,
			ThumbnailSize: preview.DefaultThumbnailSize,
		},
		Handoff: HandoffConfig{
			Dir: defaultHandoffDir(),
		},
		Advisor: AdvisorConfig{
			Backend: "ollama",
			URL:     "",
			Model:   "llava",
		},
	}
}

func isYAML(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".yaml" || ext == ".yml"
}

// LoadFromFile loads configuration from a JSON or YAML file. Keys missing
// from the file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if isYAML(filename) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON or YAML file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(filename) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Input.MaxFileSize < 1 {
		return fmt.Errorf("input.max_file_size must be positive")
	}

	if c.Raster.MaxDimension < 1 {
		return fmt.Errorf("raster.max_dimension must be positive")
	}

	if _, err := preset.Resolve(preset.Name(c.Conversion.Preset), c.Conversion.Scale, c.Conversion.Colors); err != nil {
		return fmt.Errorf("conversion: %w", err)
	}

	if c.Output.PreviewZoom < preview.MinZoom || c.Output.PreviewZoom > preview.MaxZoom {
		return fmt.Errorf("output.preview_zoom must be between %v and %v", preview.MinZoom, preview.MaxZoom)
	}

	if c.Output.ThumbnailSize < 1 {
		return fmt.Errorf("output.thumbnail_size must be positive")
	}

	switch c.Advisor.Backend {
	case "ollama", "llamacpp":
	default:
		return fmt.Errorf("advisor.backend must be ollama or llamacpp, got %q", c.Advisor.Backend)
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "logomaker", "config.json")
}

func defaultHandoffDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "logomaker", "handoff")
	}
	return filepath.Join(os.TempDir(), "logomaker-handoff")
}
