package store

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/terrazul-dev/tz/internal/errs"
)

// Store is a content-addressed blob store rooted at a single directory.
type Store struct {
	root string
}

// New creates a Store rooted at the given directory. Subdirectories are
// created lazily on first write.
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the store root directory.
func (s *Store) Root() string { return s.root }

// blobPath returns the filesystem path for a hex digest:
// <root>/sha256/ab/cdef0123...
func (s *Store) blobPath(digest string) (string, error) {
	if !validDigest(digest) {
		return "", errs.New(errs.StorageError, "invalid content digest %q", digest)
	}
	return filepath.Join(s.root, "sha256", digest[:2], digest[2:]), nil
}

// Store writes a payload keyed by its SHA-256 digest and returns the hex
// digest. Storing bytes already present is a no-op.
func (s *Store) Store(buf []byte) (string, error) {
	sum := sha256.Sum256(buf)
	digest := hex.EncodeToString(sum[:])

	path, err := s.blobPath(digest)
	if err != nil {
		return "", err
	}

	// Fast path: identical content already stored.
	if _, err := os.Stat(path); err == nil {
		return digest, nil
	}

	if err := s.writeBlob(path, func(w io.Writer) error {
		_, err := w.Write(buf)
		return err
	}); err != nil {
		return "", err
	}
	return digest, nil
}

// StoreStream writes a payload from r, computing the digest incrementally
// so large tarballs are never fully buffered in memory. The blob is staged
// to a temp file and only promoted into the store once fully read.
func (s *Store) StoreStream(r io.Reader) (string, error) {
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return "", errs.Wrap(errs.StorageError, err, "creating store root")
	}

	tmp, err := os.CreateTemp(s.root, ".blob-*")
	if err != nil {
		return "", errs.Wrap(errs.StorageError, err, "creating temp blob")
	}
	tmpName := tmp.Name()

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", errs.Wrap(errs.StorageError, err, "streaming blob")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", errs.Wrap(errs.StorageError, err, "closing temp blob")
	}

	digest := hex.EncodeToString(h.Sum(nil))
	path, err := s.blobPath(digest)
	if err != nil {
		os.Remove(tmpName)
		return "", err
	}

	if _, err := os.Stat(path); err == nil {
		os.Remove(tmpName)
		return digest, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		os.Remove(tmpName)
		return "", errs.Wrap(errs.StorageError, err, "creating blob directory")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", errs.Wrap(errs.StorageError, err, "promoting blob")
	}
	return digest, nil
}

// Retrieve returns the payload for a digest, or (nil, nil) if the store
// does not contain it.
func (s *Store) Retrieve(digest string) ([]byte, error) {
	path, err := s.blobPath(digest)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.StorageError, err, "reading blob %s", digest)
	}
	return data, nil
}

// Verify reports whether the store contains a blob for the digest. It is an
// existence check only; it does not re-hash the contents.
func (s *Store) Verify(digest string) bool {
	path, err := s.blobPath(digest)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// PackagePath returns the deterministic extraction target for a package
// version: <root>/packages/<scope>/<name>/<version>. Distinct versions
// never collide. The path is a pure join; every operation that reads or
// writes through it checks the pair with validatePackageRef first.
func (s *Store) PackagePath(name, version string) string {
	return filepath.Join(s.root, "packages", filepath.FromSlash(name), version)
}

// PackageExtracted reports whether a package version has an extraction
// directory in the store. Names or versions that are not safe path
// components are never considered extracted.
func (s *Store) PackageExtracted(name, version string) bool {
	if validatePackageRef(name, version) != nil {
		return false
	}
	info, err := os.Stat(s.PackagePath(name, version))
	return err == nil && info.IsDir()
}

// validatePackageRef rejects package names and versions that cannot be
// safely joined into a store path. Names are "name" or "@scope/name";
// each segment and the version must be a single plain path component.
func validatePackageRef(name, version string) error {
	segments := strings.Split(name, "/")
	ok := len(segments) == 1 || (len(segments) == 2 && strings.HasPrefix(segments[0], "@"))
	if ok {
		for i, seg := range segments {
			if i == 0 && len(segments) == 2 {
				seg = strings.TrimPrefix(seg, "@")
			}
			if !validRefSegment(seg) {
				ok = false
				break
			}
		}
	}
	if !ok {
		return errs.New(errs.SecurityViolation, "invalid package name %q", name).
			WithDetail("name", name)
	}
	if !validRefSegment(version) {
		return errs.New(errs.SecurityViolation, "invalid package version %q", version).
			WithDetail("version", version)
	}
	return nil
}

// validRefSegment reports whether s is a safe single path component:
// non-empty, not "." or "..", drawn from [A-Za-z0-9._+-].
func validRefSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.' || c == '_' || c == '-' || c == '+':
		default:
			return false
		}
	}
	return true
}

// writeBlob writes blob content atomically via temp file + rename.
func (s *Store) writeBlob(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errs.Wrap(errs.StorageError, err, "creating blob directory")
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errs.Wrap(errs.StorageError, err, "creating temp blob")
	}
	tmpName := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errs.Wrap(errs.StorageError, err, "writing blob")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errs.Wrap(errs.StorageError, err, "closing temp blob")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errs.Wrap(errs.StorageError, err, "promoting blob")
	}
	return nil
}

// validDigest reports whether s is a 64-character lowercase hex string.
func validDigest(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
