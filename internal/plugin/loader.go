package plugin

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultExtension is the file extension of plugin source units.
const DefaultExtension = ".lua"

// Loader discovers plugin files under a directory tree.
type Loader struct {
	// Root directory, walked recursively
	dir string

	// Plugin file extension, including the dot
	ext string
}

// PluginInfo contains discovery information about a plugin file.
type PluginInfo struct {
	Name string
	Path string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithExtension sets the plugin file extension.
func WithExtension(ext string) LoaderOption {
	return func(l *Loader) {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		l.ext = ext
	}
}

// NewLoader creates a new plugin loader rooted at dir.
func NewLoader(dir string, opts ...LoaderOption) *Loader {
	l := &Loader{
		dir: dir,
		ext: DefaultExtension,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Dir returns the plugin root directory.
func (l *Loader) Dir() string {
	return l.dir
}

// Extension returns the plugin file extension.
func (l *Loader) Extension() string {
	return l.ext
}

// Pattern returns the glob pattern plugin file names match.
func (l *Loader) Pattern() string {
	return "*" + l.ext
}

// NameFromPath returns the command name for a plugin file path.
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsPluginFile reports whether path names a plugin source unit.
// Files starting with "_" or "." are private helpers and never plugins.
func (l *Loader) IsPluginFile(path string) bool {
	base := filepath.Base(path)
	if base == "" || strings.HasPrefix(base, "_") || strings.HasPrefix(base, ".") {
		return false
	}
	return filepath.Ext(base) == l.ext && NameFromPath(base) != ""
}

// Discover finds all plugin files under the root directory.
// Returns plugins sorted by name. When two files share a stem, the
// shallower one wins, then the first in lexical walk order.
func (l *Loader) Discover() ([]*PluginInfo, error) {
	discovered := make(map[string]*PluginInfo)

	err := filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == l.dir {
				return err
			}
			return nil // Skip unreadable entries, continue walking
		}
		if d.IsDir() {
			if path != l.dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !l.IsPluginFile(path) {
			return nil
		}

		name := NameFromPath(path)
		if prev, exists := discovered[name]; !exists || depth(path) < depth(prev.Path) {
			discovered[name] = &PluginInfo{Name: name, Path: path}
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // Not an error if the directory doesn't exist
		}
		return nil, fmt.Errorf("scanning %s: %w", l.dir, err)
	}

	plugins := make([]*PluginInfo, 0, len(discovered))
	for _, info := range discovered {
		plugins = append(plugins, info)
	}

	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].Name < plugins[j].Name
	})

	return plugins, nil
}

// FindPlugin searches for the plugin file of the named command.
func (l *Loader) FindPlugin(name string) (*PluginInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrPluginNotFound)
	}

	// Fast path: file directly in the root
	direct := filepath.Join(l.dir, name+l.ext)
	if stat, err := os.Stat(direct); err == nil && !stat.IsDir() && l.IsPluginFile(direct) {
		return &PluginInfo{Name: name, Path: direct}, nil
	}

	plugins, err := l.Discover()
	if err != nil {
		return nil, err
	}
	for _, info := range plugins {
		if info.Name == name {
			return info, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
}

// depth counts path separators, used to prefer shallower duplicates.
func depth(path string) int {
	return strings.Count(filepath.ToSlash(path), "/")
}
