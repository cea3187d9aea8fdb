package watcher

import (
	"path/filepath"
	"strings"

	"github.com/tidwall/match"
)

// Filter selects the paths a watcher reports. Hidden entries (".name")
// are always skipped, as are files starting with "_", which plugin trees
// use for shared helpers.
type Filter struct {
	patterns []string
}

// NewFilter creates a filter. With no patterns every visible file passes.
func NewFilter(patterns ...string) *Filter {
	return &Filter{patterns: patterns}
}

// SkipDir reports whether the directory at path is left unwatched.
func (f *Filter) SkipDir(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// Allow reports whether changes to the file at path are delivered.
func (f *Filter) Allow(path string) bool {
	base := filepath.Base(path)
	switch {
	case base == "." || base == string(filepath.Separator):
		return false
	case strings.HasPrefix(base, "."), strings.HasPrefix(base, "_"):
		return false
	case len(f.patterns) == 0:
		return true
	}
	for _, pattern := range f.patterns {
		if match.Match(base, pattern) {
			return true
		}
	}
	return false
}
