package config

import (
	"fmt"
	"strconv"
	"time"
)

// Environment variables overriding file settings.
const (
	EnvPluginsDir     = "HOTCALC_PLUGINS_DIR"
	EnvAllowShadowing = "HOTCALC_ALLOW_SHADOWING"
	EnvExecTimeout    = "HOTCALC_EXEC_TIMEOUT"
	EnvLogLevel       = "HOTCALC_LOG_LEVEL"
	EnvLogFormat      = "HOTCALC_LOG_FORMAT"
	EnvMetricsAddr    = "HOTCALC_METRICS_ADDR"
)

// LookupFunc looks up an environment variable, like os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides settings from environment variables.
// Empty values are treated as set.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if v, ok := lookup(EnvPluginsDir); ok {
		c.Plugins.Dir = v
	}
	if v, ok := lookup(EnvAllowShadowing); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAllowShadowing, err)
		}
		c.Plugins.AllowShadowing = b
	}
	if v, ok := lookup(EnvExecTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvExecTimeout, err)
		}
		c.Plugins.ExecTimeout = Duration(d)
	}
	if v, ok := lookup(EnvLogLevel); ok {
		c.Logging.Level = v
	}
	if v, ok := lookup(EnvLogFormat); ok {
		c.Logging.Format = v
	}
	if v, ok := lookup(EnvMetricsAddr); ok {
		c.Metrics.Addr = v
	}
	return nil
}
