package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest file name inside a project directory.
const FileName = "agents.toml"

// Manifest is the parsed form of agents.toml.
type Manifest struct {
	Package      Package           `toml:"package"`
	Dependencies map[string]string `toml:"dependencies,omitempty"`
}

// Package identifies the project itself.
type Package struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Path returns the manifest path for a project root.
func Path(projectRoot string) string {
	return filepath.Join(projectRoot, FileName)
}

// Load reads and parses the manifest in projectRoot.
func Load(projectRoot string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(Path(projectRoot), &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	if m.Package.Name == "" {
		return nil, fmt.Errorf("%s: [package] name is required", FileName)
	}
	return &m, nil
}

// Exists reports whether projectRoot contains a manifest.
func Exists(projectRoot string) bool {
	_, err := os.Stat(Path(projectRoot))
	return err == nil
}

// Write serializes a manifest to projectRoot/agents.toml. Used by `tz init`
// for fresh files; established files are edited in place (see rewrite.go)
// so user formatting survives.
func Write(projectRoot string, m *Manifest) error {
	f, err := os.Create(Path(projectRoot))
	if err != nil {
		return fmt.Errorf("creating %s: %w", FileName, err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encoding %s: %w", FileName, err)
	}
	return nil
}
