// Package config loads hotcalc settings.
//
// Settings are resolved in three layers, later layers overriding earlier:
//
//  1. Built-in defaults (Default)
//  2. The config file, TOML or YAML by extension
//  3. HOTCALC_* environment variables
//
// The config file path comes from HOTCALC_CONFIG and defaults to
// hotcalc.toml in the working directory. A missing file is not an error.
//
//	[plugins]
//	dir = "./plugins"
//	allow_shadowing = true
//	debounce = "100ms"
//	exec_timeout = "5s"
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[metrics]
//	addr = ":9090"
package config
