package store

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/terrazul-dev/tz/internal/errs"
)

// ExtractTarball extracts a gzip tarball into PackagePath(name, version).
// The name and version are rejected up front unless they are safe path
// components, so a hostile registry response can never steer the target
// outside the store root. Validation then runs over the whole archive
// before anything touches disk: entries with absolute paths or paths
// escaping the target root fail with SECURITY_VIOLATION, so an aborted
// extraction never leaves partial files. Symlink and hardlink entries are
// skipped, and executable bits are stripped from every extracted file.
func (s *Store) ExtractTarball(tarballPath, name, version string) error {
	if err := validatePackageRef(name, version); err != nil {
		return err
	}
	target := s.PackagePath(name, version)

	if err := s.validateTarball(tarballPath, target); err != nil {
		return err
	}

	// Re-extraction replaces the previous tree wholesale so stale files
	// from an earlier archive never survive.
	if err := os.RemoveAll(target); err != nil {
		return errs.Wrap(errs.StorageError, err, "clearing %s", target)
	}
	if err := os.MkdirAll(target, 0755); err != nil {
		return errs.Wrap(errs.StorageError, err, "creating %s", target)
	}

	return s.extractEntries(tarballPath, target)
}

// validateTarball walks every archive entry and checks its resolved path
// stays inside the target root. No file is written during this pass.
func (s *Store) validateTarball(tarballPath, target string) error {
	return s.walkTarball(tarballPath, func(hdr *tar.Header, _ *tar.Reader) error {
		switch hdr.Typeflag {
		case tar.TypeSymlink, tar.TypeLink:
			// Skipped during extraction; no path check needed.
			return nil
		}
		if _, err := resolveWithinRoot(target, hdr.Name); err != nil {
			return err
		}
		return nil
	})
}

// extractEntries performs the write pass over a validated archive.
func (s *Store) extractEntries(tarballPath, target string) error {
	return s.walkTarball(tarballPath, func(hdr *tar.Header, tr *tar.Reader) error {
		switch hdr.Typeflag {
		case tar.TypeSymlink, tar.TypeLink:
			// Never materialized: link targets are attacker-controlled.
			return nil
		case tar.TypeDir:
			dest, err := resolveWithinRoot(target, hdr.Name)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(dest, 0755); err != nil {
				return errs.Wrap(errs.StorageError, err, "creating directory %s", hdr.Name)
			}
			return nil
		case tar.TypeReg:
			dest, err := resolveWithinRoot(target, hdr.Name)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
				return errs.Wrap(errs.StorageError, err, "creating parent of %s", hdr.Name)
			}
			// Extracted content is config and templates, never executables.
			mode := (hdr.FileInfo().Mode().Perm() | 0400) &^ 0111
			out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
			if err != nil {
				return errs.Wrap(errs.StorageError, err, "creating file %s", hdr.Name)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return errs.Wrap(errs.StorageError, err, "extracting %s", hdr.Name)
			}
			return out.Close()
		default:
			// Character devices, FIFOs, etc. have no business in a
			// configuration package.
			return nil
		}
	})
}

// walkTarball opens a gzip tarball and invokes fn for each entry.
func (s *Store) walkTarball(tarballPath string, fn func(*tar.Header, *tar.Reader) error) error {
	f, err := os.Open(tarballPath)
	if err != nil {
		return errs.Wrap(errs.StorageError, err, "opening tarball")
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return errs.Wrap(errs.InvalidPackage, err, "reading gzip stream")
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errs.Wrap(errs.InvalidPackage, err, "reading tar entry")
		}
		if err := fn(hdr, tr); err != nil {
			return err
		}
	}
}

// resolveWithinRoot is the single path-escape gate: it canonicalizes the
// candidate entry path against root and asserts the result is a descendant
// of root. Every archive-entry check routes through here.
func resolveWithinRoot(root, entryName string) (string, error) {
	if filepath.IsAbs(entryName) || strings.HasPrefix(filepath.ToSlash(entryName), "/") {
		return "", errs.New(errs.SecurityViolation, "absolute path in archive entry %q", entryName)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", errs.Wrap(errs.StorageError, err, "canonicalizing root %s", root)
	}
	candidate := filepath.Join(absRoot, filepath.FromSlash(entryName))

	rel, err := filepath.Rel(absRoot, candidate)
	if err != nil {
		return "", errs.Wrap(errs.SecurityViolation, err, "resolving archive entry %q", entryName)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errs.New(errs.SecurityViolation, "archive entry escapes extraction root").
			WithDetail("entry", entryName).
			WithDetail("root", absRoot)
	}
	return candidate, nil
}
