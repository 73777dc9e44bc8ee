package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings is the on-disk YAML settings file (--settings). It carries
// site-level defaults that rarely change between invocations: S3 transfer
// settings and external tool environment. CLI flags win over settings
// values; settings values win over built-in defaults.
type Settings struct {
	S3 struct {
		Region string `yaml:"region"`  // AWS region for transfers.
		NoSign bool   `yaml:"no_sign"` // Unsigned requests (public buckets).
		Fetch  string `yaml:"fetch"`   // Default fetch location (s3://bucket/prefix).
		Push   string `yaml:"push"`    // Default push location (s3://bucket/prefix).
	} `yaml:"s3"`
	FSL struct {
		OutputType string `yaml:"output_type"` // FSLOUTPUTTYPE value.
	} `yaml:"fsl"`
	LogFile string `yaml:"log_file"` // Default log sink.
}

// LoadSettings reads a YAML settings file and overlays its non-zero values
// onto cfg. Called before flag values are applied, so flags still override.
func LoadSettings(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("settings file: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("settings file %s: %w", path, err)
	}

	if s.S3.Region != "" {
		cfg.S3Region = s.S3.Region
	}
	if s.S3.NoSign {
		cfg.S3NoSign = true
	}
	if s.S3.Fetch != "" && cfg.FetchLocation == "" {
		cfg.FetchLocation = s.S3.Fetch
	}
	if s.S3.Push != "" && cfg.PushLocation == "" {
		cfg.PushLocation = s.S3.Push
	}
	if s.FSL.OutputType != "" {
		cfg.FSLOutputType = s.FSL.OutputType
	}
	if s.LogFile != "" && cfg.LogFile == "" {
		cfg.LogFile = s.LogFile
	}
	return nil
}
