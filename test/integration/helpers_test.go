//go:build integration

package integration_test

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/terrazul-dev/tz/internal/config"
	"github.com/terrazul-dev/tz/internal/installer"
	"github.com/terrazul-dev/tz/internal/lockfile"
	"github.com/terrazul-dev/tz/internal/registry"
)

// testEnv holds the isolated pieces of a full install run: a fake registry,
// a project directory, and store/cache roots.
type testEnv struct {
	Registry   *registryServer
	ProjectDir string
	Config     config.Context
	Installer  *installer.Installer
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	reg := newRegistryServer(t)
	cfg := config.Context{
		RegistryURL: reg.srv.URL,
		StoreDir:    t.TempDir(),
		CacheDir:    t.TempDir(),
	}
	env := &testEnv{
		Registry:   reg,
		ProjectDir: t.TempDir(),
		Config:     cfg,
		Installer: installer.New(cfg, registry.NewClient(cfg),
			installer.WithCLIVersion("0.3.0"),
			installer.WithClock(func() time.Time {
				return time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
			}),
		),
	}

	// Keep the whole run hermetic: no ambient user config leaks in.
	t.Setenv("TERRAZUL_REGISTRY", reg.srv.URL)
	t.Setenv("TERRAZUL_STORE", cfg.StoreDir)
	t.Setenv("TERRAZUL_CACHE", cfg.CacheDir)

	return env
}

func (e *testEnv) writeManifest(t *testing.T, deps map[string]string) {
	t.Helper()
	var b strings.Builder
	b.WriteString("[package]\nname = \"@local/proj\"\nversion = \"0.1.0\"\n")
	if len(deps) > 0 {
		b.WriteString("\n[dependencies]\n")
		names := make([]string, 0, len(deps))
		for name := range deps {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			b.WriteString("\"" + name + "\" = \"" + deps[name] + "\"\n")
		}
	}
	if err := os.WriteFile(filepath.Join(e.ProjectDir, "agents.toml"), []byte(b.String()), 0644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}
}

// registryServer is a minimal in-process registry for end-to-end runs.
type registryServer struct {
	srv      *httptest.Server
	versions map[string]map[string]versionEntry
}

type versionEntry struct {
	deps   map[string]string
	files  map[string]string
	yanked bool
}

func newRegistryServer(t *testing.T) *registryServer {
	t.Helper()
	rs := &registryServer{versions: make(map[string]map[string]versionEntry)}
	rs.srv = httptest.NewServer(http.HandlerFunc(rs.handle))
	t.Cleanup(rs.srv.Close)
	return rs
}

func (rs *registryServer) publish(name, version string, deps map[string]string, files map[string]string) {
	if rs.versions[name] == nil {
		rs.versions[name] = make(map[string]versionEntry)
	}
	rs.versions[name][version] = versionEntry{deps: deps, files: files}
}

func (rs *registryServer) yank(name, version string) {
	entry := rs.versions[name][version]
	entry.yanked = true
	rs.versions[name][version] = entry
}

func (rs *registryServer) handle(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if rest, ok := strings.CutPrefix(path, "/tarballs/"); ok {
		// The version is the final path segment; the name may contain "/".
		slash := strings.LastIndex(rest, "/")
		if slash < 0 {
			http.NotFound(w, r)
			return
		}
		name, version := rest[:slash], rest[slash+1:]
		entry, exists := rs.versions[name][version]
		if !exists {
			http.NotFound(w, r)
			return
		}
		w.Write(tarballBytes(entry.files))
		return
	}

	if rest, ok := strings.CutPrefix(path, "/v1/packages/"); ok {
		if name, version, ok := strings.Cut(rest, "/tarballs/"); ok {
			entry, exists := rs.versions[name][version]
			if !exists {
				http.NotFound(w, r)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{
				"url":       rs.srv.URL + "/tarballs/" + name + "/" + version,
				"integrity": lockfile.CreateIntegrityHash(tarballBytes(entry.files)),
			})
			return
		}

		listing, exists := rs.versions[rest]
		if !exists {
			http.NotFound(w, r)
			return
		}
		versions := make(map[string]any, len(listing))
		for version, entry := range listing {
			ve := map[string]any{"version": version}
			if len(entry.deps) > 0 {
				ve["dependencies"] = entry.deps
			}
			if entry.yanked {
				ve["yanked"] = true
			}
			versions[version] = ve
		}
		json.NewEncoder(w).Encode(map[string]any{"name": rest, "versions": versions})
		return
	}

	http.NotFound(w, r)
}

func tarballBytes(files map[string]string) []byte {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, name := range names {
		body := files[name]
		hdr := &tar.Header{Name: name, Mode: 0644, Size: int64(len(body))}
		if err := tw.WriteHeader(hdr); err != nil {
			panic(err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			panic(err)
		}
	}
	tw.Close()
	gz.Close()
	return buf.Bytes()
}

func assertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file %s: %v", path, err)
	}
}

func assertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Errorf("expected directory %s: %v", path, err)
		return
	}
	if !info.IsDir() {
		t.Errorf("%s is not a directory", path)
	}
}
