package lockfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/terrazul-dev/tz/internal/errs"
)

// FileName is the lockfile name inside a project directory.
const FileName = "agents-lock.toml"

// SchemaVersion is the current lockfile schema version.
const SchemaVersion = 1

// Package is one locked dependency entry.
type Package struct {
	Version      string            `toml:"version"`
	Resolved     string            `toml:"resolved"`
	Integrity    string            `toml:"integrity"`
	Dependencies map[string]string `toml:"dependencies,omitempty"`
	Yanked       bool              `toml:"yanked,omitempty"`
}

// Metadata records provenance for a lockfile write.
type Metadata struct {
	GeneratedAt string `toml:"generated_at"`
	CLIVersion  string `toml:"cli_version"`
}

// Data is the full lockfile contents.
type Data struct {
	Version  int                `toml:"version"`
	Packages map[string]Package `toml:"packages"`
	Metadata Metadata           `toml:"metadata"`
}

// Path returns the lockfile path for a project root.
func Path(projectRoot string) string {
	return filepath.Join(projectRoot, FileName)
}

// Write serializes data to projectRoot/agents-lock.toml. Package tables are
// written in ascending name order (the TOML encoder sorts map keys), and the
// file is replaced atomically.
func Write(data *Data, projectRoot string) error {
	tmp, err := os.CreateTemp(projectRoot, ".agents-lock-*.toml")
	if err != nil {
		return errs.Wrap(errs.StorageError, err, "creating temp lockfile")
	}
	tmpName := tmp.Name()

	// CreateTemp gives 0600; the lockfile is shared project state.
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errs.Wrap(errs.StorageError, err, "setting lockfile permissions")
	}

	enc := toml.NewEncoder(tmp)
	if err := enc.Encode(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errs.Wrap(errs.StorageError, err, "encoding lockfile")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errs.Wrap(errs.StorageError, err, "closing temp lockfile")
	}
	if err := os.Rename(tmpName, Path(projectRoot)); err != nil {
		os.Remove(tmpName)
		return errs.Wrap(errs.StorageError, err, "replacing %s", FileName)
	}
	return nil
}

// rawMetadata accepts both the on-disk snake_case keys and the camelCase
// variants older writers emitted.
type rawMetadata struct {
	GeneratedAt      string `toml:"generated_at"`
	GeneratedAtCamel string `toml:"generatedAt"`
	CLIVersion       string `toml:"cli_version"`
	CLIVersionCamel  string `toml:"cliVersion"`
}

type rawData struct {
	Version  int                `toml:"version"`
	Packages map[string]Package `toml:"packages"`
	Metadata rawMetadata        `toml:"metadata"`
}

// Read parses projectRoot/agents-lock.toml. It returns (nil, nil) when the
// file does not exist. Metadata keys are normalized to the in-memory shape
// regardless of on-disk casing.
func Read(projectRoot string) (*Data, error) {
	raw, err := os.ReadFile(Path(projectRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.StorageError, err, "reading %s", FileName)
	}

	var rd rawData
	if err := toml.Unmarshal(raw, &rd); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}

	data := &Data{
		Version:  rd.Version,
		Packages: rd.Packages,
		Metadata: Metadata{
			GeneratedAt: firstNonEmpty(rd.Metadata.GeneratedAt, rd.Metadata.GeneratedAtCamel),
			CLIVersion:  firstNonEmpty(rd.Metadata.CLIVersion, rd.Metadata.CLIVersionCamel),
		},
	}
	if data.Packages == nil {
		data.Packages = make(map[string]Package)
	}
	return data, nil
}

// Merge returns a new Data whose packages contain every entry of existing
// untouched, except those named in updates, which are replaced wholesale.
// Entries absent from updates are never dropped.
func Merge(existing *Data, updates map[string]Package) *Data {
	merged := &Data{
		Version:  SchemaVersion,
		Packages: make(map[string]Package),
	}
	if existing != nil {
		merged.Metadata = existing.Metadata
		for name, pkg := range existing.Packages {
			merged.Packages[name] = pkg
		}
	}
	for name, pkg := range updates {
		merged.Packages[name] = pkg
	}
	return merged
}

// NeedsUpdate reports whether any of the given names is missing from the
// lockfile.
func NeedsUpdate(data *Data, names []string) bool {
	if data == nil {
		return len(names) > 0
	}
	for _, name := range names {
		if _, ok := data.Packages[name]; !ok {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
