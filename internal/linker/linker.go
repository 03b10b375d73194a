// Package linker materializes installed packages inside a project by
// linking each extracted store path into <project>/agent_modules/<name>.
package linker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/terrazul-dev/tz/internal/platform"
)

// ModulesDir is the directory inside a project that holds linked packages.
const ModulesDir = "agent_modules"

// ModulePath returns the link location for a package inside a project.
// Scoped names keep their scope as a directory level:
// "@scope/name" → <project>/agent_modules/@scope/name.
func ModulePath(projectRoot, name string) string {
	return filepath.Join(projectRoot, ModulesDir, filepath.FromSlash(name))
}

// Link points the project's module entry for a package at its extracted
// store path. Relinking an existing entry replaces it.
func Link(projectRoot, name, storePath string) error {
	if err := validateName(name); err != nil {
		return err
	}

	link := ModulePath(projectRoot, name)
	if err := os.MkdirAll(filepath.Dir(link), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(link), err)
	}

	if _, err := os.Lstat(link); err == nil {
		if err := platform.RemoveSymlink(link); err != nil {
			return fmt.Errorf("replacing existing link %s: %w", link, err)
		}
	}

	if err := platform.CreateDirSymlink(storePath, link); err != nil {
		return fmt.Errorf("linking %s: %w", name, err)
	}
	return nil
}

// Unlink removes the project's module entry for a package, pruning an
// emptied scope directory afterwards.
func Unlink(projectRoot, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	link := ModulePath(projectRoot, name)
	if _, err := os.Lstat(link); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := platform.RemoveSymlink(link); err != nil {
		return fmt.Errorf("unlinking %s: %w", name, err)
	}

	// A scope directory left empty is noise; remove it best-effort.
	scopeDir := filepath.Dir(link)
	if scopeDir != filepath.Join(projectRoot, ModulesDir) {
		_ = os.Remove(scopeDir)
	}
	return nil
}

// Linked reports whether a module entry exists for the package.
func Linked(projectRoot, name string) bool {
	_, err := os.Lstat(ModulePath(projectRoot, name))
	return err == nil
}

// validateName rejects package names that would traverse outside the
// agent_modules tree.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty package name")
	}
	if filepath.IsAbs(name) {
		return fmt.Errorf("invalid package name %q: absolute path", name)
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("invalid package name %q", name)
		}
	}
	return nil
}
