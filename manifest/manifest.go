// Package manifest handles nbc.toml project configuration for the CLI
// runner. The core VM takes everything it needs as arguments; the
// manifest only supplies defaults for the command line.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents an nbc.toml configuration.
type Manifest struct {
	Module ModuleConfig `toml:"module"`
	VM     VMConfig     `toml:"vm"`

	// Dir is the directory containing the nbc.toml file (set at load time).
	Dir string `toml:"-"`
}

// ModuleConfig names the module file and the entry function to run.
type ModuleConfig struct {
	Path  string   `toml:"path"`
	Entry string   `toml:"entry"`
	Args  []string `toml:"args"`
}

// VMConfig configures the execution engine.
type VMConfig struct {
	Trace     bool `toml:"trace"`
	MaxFrames int  `toml:"max-frames"`
}

// Load parses an nbc.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "nbc.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Module.Entry == "" {
		m.Module.Entry = "main"
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find an nbc.toml file, then
// loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "nbc.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// ModulePath returns the absolute path of the configured module file.
func (m *Manifest) ModulePath() string {
	if filepath.IsAbs(m.Module.Path) {
		return m.Module.Path
	}
	return filepath.Join(m.Dir, m.Module.Path)
}
