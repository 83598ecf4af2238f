// Package config holds all backscroll configuration: YAML on disk, with
// defaults that work without any file at all.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "5s"
// or "15m" (bare integers are taken as nanoseconds, matching
// time.Duration's underlying representation).
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\" or an integer")
	}
	*d = Duration(n)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds all backscroll configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Capture CaptureConfig `yaml:"capture"`
	OCR     OCRConfig     `yaml:"ocr"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type StorageConfig struct {
	Dir string `yaml:"dir"` // root for images/, manifest, and text db
}

type CaptureConfig struct {
	SaveQuality    int      `yaml:"save_quality"`
	Thumbnails     bool     `yaml:"thumbnails"`
	ThumbnailWidth int      `yaml:"thumbnail_width"`
	MinimumSpacing Duration `yaml:"minimum_spacing"`
	HashThreshold  int      `yaml:"hash_threshold"`
}

type OCRConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Command    string   `yaml:"command"` // OCR binary, tesseract-style stdin/stdout
	Interval   Duration `yaml:"interval"`
	QueueDepth int      `yaml:"queue_depth"`
	MaxAge     Duration `yaml:"max_age"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 38452,
		},
		Storage: StorageConfig{
			Dir: "", // resolved at runtime via DefaultStorageDir()
		},
		Capture: CaptureConfig{
			SaveQuality:    72,
			Thumbnails:     true,
			ThumbnailWidth: 320,
			MinimumSpacing: Duration(60 * time.Second),
			HashThreshold:  4,
		},
		OCR: OCRConfig{
			Enabled:    true,
			Command:    "tesseract",
			Interval:   Duration(250 * time.Millisecond),
			QueueDepth: 64,
			MaxAge:     Duration(15 * time.Minute),
		},
	}
}

// Load reads YAML config from path, layered over the defaults. A missing
// file is not an error: the defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// DefaultConfigPath returns the default config location:
// ~/.backscroll/config.yaml
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".backscroll", "config.yaml"), nil
}

// DefaultStorageDir returns the default storage root: ~/.backscroll
func DefaultStorageDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".backscroll"), nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// ResolveStorageDir returns the configured storage dir, falling back to the
// default.
func (c *Config) ResolveStorageDir() (string, error) {
	if c.Storage.Dir != "" {
		return c.Storage.Dir, nil
	}
	return DefaultStorageDir()
}
