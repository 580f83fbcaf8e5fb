package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig reads the YAML file over the defaults, applies environment
// overrides and validates the result. Relative paths in the file resolve
// against the file's directory.
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config := Defaults()
	if err := yaml.Unmarshal(cfgFile, config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", y.filename, err)
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	base := filepath.Dir(y.filename)
	for _, p := range []*string{
		&config.PartitionRaster, &config.LandCoverRaster, &config.SnapshotDir,
		&config.AlignedDir, &config.OutputDir, &config.CacheDir, &config.StorePath,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
