package plugin

import "errors"

// Plugin system errors.
var (
	// ErrPluginNotFound is returned when a plugin file cannot be located.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrInvalidPlugin is returned when a plugin fails to load or lacks the
	// required command table. The manager recovers from it.
	ErrInvalidPlugin = errors.New("invalid plugin")

	// ErrLoaderFault is returned when the loading machinery itself fails.
	// It indicates a bug rather than a malformed plugin and is not recovered.
	ErrLoaderFault = errors.New("plugin loader fault")

	// ErrShadowingDisabled is returned when a plugin would replace a built-in
	// command and shadowing is turned off.
	ErrShadowingDisabled = errors.New("plugin shadows a built-in command")
)
