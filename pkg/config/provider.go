package config

import (
	"fmt"
	"runtime"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/hydroglacier/glacierfrac/internal/constants"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment override, e.g. GLACIERFRAC_WORKERS.
const EnvPrefix = "GLACIERFRAC"

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)
}

// ConfigData is the complete pipeline configuration.
type ConfigData struct {
	// Inputs
	PartitionRaster string `yaml:"partition_raster" envconfig:"PARTITION_RASTER" validate:"required"`
	LandCoverRaster string `yaml:"landcover_raster" envconfig:"LANDCOVER_RASTER" validate:"required"`
	SnapshotDir     string `yaml:"snapshot_dir" envconfig:"SNAPSHOT_DIR" validate:"required"`
	SnapshotPattern string `yaml:"snapshot_pattern" envconfig:"SNAPSHOT_PATTERN" validate:"required"`
	TrackedClass    int    `yaml:"tracked_class" envconfig:"TRACKED_CLASS"`

	// Working and output locations
	AlignedDir string `yaml:"aligned_dir" envconfig:"ALIGNED_DIR" validate:"required"`
	OutputDir  string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
	CacheDir   string `yaml:"cache_dir,omitempty" envconfig:"CACHE_DIR"`
	StorePath  string `yaml:"store_path,omitempty" envconfig:"STORE_PATH"`

	// Collaborators
	RasterBackend string `yaml:"raster_backend" envconfig:"RASTER_BACKEND" validate:"oneof=ascii gdal"`
	Resampler     string `yaml:"resampler" envconfig:"RESAMPLER" validate:"oneof=nearest gdal"`
	GDALBinDir    string `yaml:"gdal_bin_dir,omitempty" envconfig:"GDAL_BIN_DIR"`

	// Run shape
	Workers         int    `yaml:"workers" envconfig:"WORKERS" validate:"min=1"`
	Delimiter       string `yaml:"delimiter" envconfig:"DELIMITER" validate:"required"`
	FirstYear       int    `yaml:"first_year,omitempty" envconfig:"FIRST_YEAR" validate:"gte=0"`
	LastYear        int    `yaml:"last_year,omitempty" envconfig:"LAST_YEAR" validate:"gte=0"`
	SeasonalSummary bool   `yaml:"seasonal_summary" envconfig:"SEASONAL_SUMMARY"`
}

// Defaults returns a ConfigData with every optional field at its default.
func Defaults() *ConfigData {
	return &ConfigData{
		SnapshotPattern: "*.asc",
		TrackedClass:    constants.IceLandCoverClass,
		RasterBackend:   "ascii",
		Resampler:       "nearest",
		Workers:         runtime.NumCPU(),
		Delimiter:       "tab",
	}
}

// ApplyEnv overlays GLACIERFRAC_* environment variables onto c. Unset
// variables leave the current value alone.
func (c *ConfigData) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("failed to process environment overrides: %w", err)
	}
	return nil
}

// Validate checks field constraints and cross-field rules.
func (c *ConfigData) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if _, err := c.DelimiterRune(); err != nil {
		return err
	}
	if c.FirstYear != 0 && c.LastYear != 0 && c.LastYear < c.FirstYear {
		return fmt.Errorf("last_year %d is before first_year %d", c.LastYear, c.FirstYear)
	}
	if c.Resampler == "gdal" && c.RasterBackend != "gdal" {
		return fmt.Errorf("resampler gdal writes VRT output and needs raster_backend gdal")
	}
	return nil
}

// DelimiterRune returns the output column separator. "tab" and "\t" both
// mean a tab character.
func (c *ConfigData) DelimiterRune() (rune, error) {
	switch c.Delimiter {
	case "tab", `\t`:
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(c.Delimiter)
	if size != len(c.Delimiter) || r == utf8.RuneError || r == '\r' || r == '\n' || r == '"' {
		return 0, fmt.Errorf("invalid delimiter %q", c.Delimiter)
	}
	return r, nil
}
