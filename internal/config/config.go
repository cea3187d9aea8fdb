package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config file location.
const (
	PathEnv     = "HOTCALC_CONFIG"
	DefaultPath = "hotcalc.toml"
)

// Config holds all hotcalc settings.
type Config struct {
	Plugins PluginsConfig `toml:"plugins" yaml:"plugins"`
	Logging LoggingConfig `toml:"logging" yaml:"logging"`
	Metrics MetricsConfig `toml:"metrics" yaml:"metrics"`
}

// PluginsConfig controls plugin discovery and execution.
type PluginsConfig struct {
	// Dir is the plugin directory, watched recursively.
	Dir string `toml:"dir" yaml:"dir"`

	// Extension is the plugin file extension.
	Extension string `toml:"extension" yaml:"extension"`

	// AllowShadowing lets plugins replace built-in commands.
	AllowShadowing bool `toml:"allow_shadowing" yaml:"allow_shadowing"`

	// Debounce coalesces bursts of file events. Zero disables it.
	Debounce Duration `toml:"debounce" yaml:"debounce"`

	// ExecTimeout bounds a single plugin invocation. Zero disables it.
	ExecTimeout Duration `toml:"exec_timeout" yaml:"exec_timeout"`

	// CacheSize is the number of compiled plugin chunks kept.
	CacheSize int `toml:"cache_size" yaml:"cache_size"`
}

// LoggingConfig controls the logger.
type LoggingConfig struct {
	// Level is a logrus level name.
	Level string `toml:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format" yaml:"format"`
}

// MetricsConfig controls metrics exposition.
type MetricsConfig struct {
	// Addr is the listen address of the metrics server. Empty disables it.
	Addr string `toml:"addr" yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Plugins: PluginsConfig{
			Dir:            "./plugins",
			Extension:      ".lua",
			AllowShadowing: true,
			ExecTimeout:    Duration(5 * time.Second),
			CacheSize:      128,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Resolve loads the file named by HOTCALC_CONFIG (or DefaultPath), applies
// environment overrides and validates the result.
func Resolve() (*Config, error) {
	path := DefaultPath
	if p, ok := os.LookupEnv(PathEnv); ok && p != "" {
		path = p
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the config file at path over the defaults. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := cfg.parse(path, data); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parse decodes data over c, choosing the decoder by file extension.
func (c *Config) parse(path string, data []byte) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", "":
		if err := toml.Unmarshal(data, c); err != nil {
			pe := &ParseError{Path: path, Message: err.Error(), Err: err}
			var de *toml.DecodeError
			if errors.As(err, &de) {
				pe.Line, pe.Column = de.Position()
			}
			return pe
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return &ParseError{Path: path, Message: err.Error(), Err: err}
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	return nil
}

// Validate checks every setting and reports all failures at once.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Plugins.Dir) == "" {
		errs = append(errs, &ValidationError{Key: "plugins.dir", Message: "must not be empty", Value: c.Plugins.Dir})
	}
	if !strings.HasPrefix(c.Plugins.Extension, ".") || len(c.Plugins.Extension) < 2 {
		errs = append(errs, &ValidationError{Key: "plugins.extension", Message: "must start with a dot", Value: c.Plugins.Extension})
	}
	if c.Plugins.Debounce < 0 {
		errs = append(errs, &ValidationError{Key: "plugins.debounce", Message: "must not be negative", Value: c.Plugins.Debounce})
	}
	if c.Plugins.ExecTimeout < 0 {
		errs = append(errs, &ValidationError{Key: "plugins.exec_timeout", Message: "must not be negative", Value: c.Plugins.ExecTimeout})
	}
	if c.Plugins.CacheSize < 0 {
		errs = append(errs, &ValidationError{Key: "plugins.cache_size", Message: "must not be negative", Value: c.Plugins.CacheSize})
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, &ValidationError{Key: "logging.level", Message: "unknown level", Value: c.Logging.Level})
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, &ValidationError{Key: "logging.format", Message: `must be "text" or "json"`, Value: c.Logging.Format})
	}

	return errors.Join(errs...)
}

// Duration is a time.Duration written as a string such as "250ms" in
// config files.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String formats d like time.Duration.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}
