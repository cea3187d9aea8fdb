// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/dshills/hotcalc/internal/config"
)

// Format names accepted by New.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// New creates a logger from the logging settings. Logs go to out, or
// stderr when out is nil, so stdout carries only calculator output.
func New(cfg config.LoggingConfig, out io.Writer) (*logrus.Logger, error) {
	if out == nil {
		out = os.Stderr
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logging level: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	logger.SetReportCaller(true)

	switch cfg.Format {
	case FormatText, "":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    true,
			DisableColors:    true,
			CallerPrettyfier: shortCaller,
		})
	case FormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{
			CallerPrettyfier: shortCaller,
		})
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	return logger, nil
}

// shortCaller reports callers as file:line without the function name.
func shortCaller(frame *runtime.Frame) (function string, file string) {
	return "", fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)
}
