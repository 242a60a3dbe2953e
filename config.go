package hwcodec

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the process-wide settings of the codec layer.
type Config struct {
	LibPath          string `mapstructure:"lib_path"`          // libhwcodec file or directory
	LogLevel         string `mapstructure:"log_level"`         // disabled, error, warn, info, debug, trace
	NVENCGPU         int    `mapstructure:"nvenc_gpu"`         // NVENC GPU ordinal, -1 lets the driver pick
	ProbeWorkers     int    `mapstructure:"probe_workers"`     // 0 runs one probe task per candidate
	Manifest         string `mapstructure:"manifest"`          // capability manifest used as allow-list
	SoftwareEncoders bool   `mapstructure:"software_encoders"` // append libx264/libx265 to encoder results
}

// LoadConfig merges defaults, the optional YAML file at path and HWCODEC_*
// environment variables. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("lib_path", "")
	v.SetDefault("log_level", "error")
	v.SetDefault("nvenc_gpu", -1)
	v.SetDefault("probe_workers", 0)
	v.SetDefault("manifest", "")
	v.SetDefault("software_encoders", false)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("hwcodec: read config %s: %w", path, err)
			}
		}
	}

	v.SetEnvPrefix("HWCODEC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("hwcodec: decode config: %w", err)
	}
	return &cfg, nil
}

// envConfig returns the configuration from the environment alone. Errors
// fall back to defaults so discovery never fails on bad settings.
func envConfig() *Config {
	cfg, err := LoadConfig("")
	if err != nil {
		return &Config{LogLevel: "error", NVENCGPU: -1}
	}
	return cfg
}

// LoadManifest reads the manifest file named by the config, in either the
// YAML or the msgpack encoding. Files ending in .yaml or .yml are always
// read as YAML. It returns nil when no manifest is configured or the file
// cannot be parsed.
func (c *Config) LoadManifest() (*Manifest, error) {
	if c.Manifest == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.Manifest)
	if err != nil {
		return nil, fmt.Errorf("hwcodec: read manifest: %w", err)
	}
	// YAML text never decodes as a msgpack map.
	if ext := strings.ToLower(filepath.Ext(c.Manifest)); ext != ".yaml" && ext != ".yml" {
		var m Manifest
		if err := m.UnmarshalBinary(data); err == nil {
			return &m, nil
		}
	}
	return ParseManifest(string(data)), nil
}
