//go:build integration

package integration_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/terrazul-dev/tz/internal/errs"
	"github.com/terrazul-dev/tz/internal/installer"
	"github.com/terrazul-dev/tz/internal/linker"
	"github.com/terrazul-dev/tz/internal/lockfile"
	"github.com/terrazul-dev/tz/internal/manifest"
)

func TestInstallEndToEnd(t *testing.T) {
	env := setupTestEnv(t)
	env.Registry.publish("@starter/ctx", "1.0.0", nil, map[string]string{
		"context/overview.md": "Project context.",
		"README.md":           "# starter\n",
	})
	env.Registry.publish("@starter/ctx", "1.2.0",
		map[string]string{"@starter/base": "^2.0.0"},
		map[string]string{"context/overview.md": "Project context v1.2."},
	)
	env.Registry.publish("@starter/base", "2.3.1", nil, map[string]string{
		"agents/reviewer.md": "Review with care.",
	})
	env.writeManifest(t, map[string]string{"@starter/ctx": "^1.0.0"})

	result, err := env.Installer.Install(context.Background(), installer.Request{ProjectRoot: env.ProjectDir})
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if len(result.Installed) != 2 {
		t.Fatalf("Installed = %+v, want @starter/ctx and @starter/base", result.Installed)
	}

	// Lockfile records both packages at their resolved versions.
	data, err := lockfile.Read(env.ProjectDir)
	if err != nil {
		t.Fatalf("reading lockfile: %v", err)
	}
	if got := data.Packages["@starter/ctx"].Version; got != "1.2.0" {
		t.Errorf("ctx version = %q, want 1.2.0", got)
	}
	if got := data.Packages["@starter/base"].Version; got != "2.3.1" {
		t.Errorf("base version = %q, want 2.3.1", got)
	}

	// Both packages are linked and readable through agent_modules.
	assertDirExists(t, filepath.Join(env.ProjectDir, "agent_modules", "@starter"))
	assertFileExists(t, filepath.Join(env.ProjectDir, "agent_modules", "@starter", "ctx", "context", "overview.md"))
	assertFileExists(t, filepath.Join(env.ProjectDir, "agent_modules", "@starter", "base", "agents", "reviewer.md"))

	// The store holds the extracted trees under scope/name/version.
	assertDirExists(t, filepath.Join(env.Config.StoreDir, "packages", "@starter", "ctx", "1.2.0"))
	assertDirExists(t, filepath.Join(env.Config.StoreDir, "packages", "@starter", "base", "2.3.1"))
}

func TestInstallSkipsYankedRelease(t *testing.T) {
	env := setupTestEnv(t)
	env.Registry.publish("@starter/ctx", "1.0.0", nil, map[string]string{"README.md": "ok"})
	env.Registry.publish("@starter/ctx", "1.1.0", nil, map[string]string{"README.md": "bad"})
	env.Registry.yank("@starter/ctx", "1.1.0")
	env.writeManifest(t, map[string]string{"@starter/ctx": "^1.0.0"})

	result, err := env.Installer.Install(context.Background(), installer.Request{ProjectRoot: env.ProjectDir})
	if err != nil {
		t.Fatalf("Install: %v", err)
	}

	data, _ := lockfile.Read(env.ProjectDir)
	if got := data.Packages["@starter/ctx"].Version; got != "1.0.0" {
		t.Errorf("version = %q, want 1.0.0 (1.1.0 is yanked)", got)
	}
	if len(result.Warnings) == 0 {
		t.Error("expected a warning about the skipped yanked release")
	}
}

func TestInstallConflictingTransitiveRanges(t *testing.T) {
	env := setupTestEnv(t)
	env.Registry.publish("@a/pkg", "1.0.0",
		map[string]string{"@common/lib": "^2.0.0"},
		map[string]string{"README.md": "a"})
	env.Registry.publish("@b/pkg", "1.0.0",
		map[string]string{"@common/lib": "^3.0.0"},
		map[string]string{"README.md": "b"})
	env.Registry.publish("@common/lib", "2.5.0", nil, map[string]string{"README.md": "c2"})
	env.Registry.publish("@common/lib", "3.1.0", nil, map[string]string{"README.md": "c3"})
	env.writeManifest(t, map[string]string{"@a/pkg": "^1.0.0", "@b/pkg": "^1.0.0"})

	_, err := env.Installer.Install(context.Background(), installer.Request{ProjectRoot: env.ProjectDir})
	if !errors.Is(err, &errs.Error{Code: errs.VersionConflict}) {
		t.Fatalf("err = %v, want VERSION_CONFLICT", err)
	}

	// A failed batch leaves no lockfile behind.
	if _, statErr := os.Stat(lockfile.Path(env.ProjectDir)); !os.IsNotExist(statErr) {
		t.Error("lockfile should not exist after a failed resolution")
	}
}

func TestAddThenRemoveFlow(t *testing.T) {
	env := setupTestEnv(t)
	env.Registry.publish("@starter/ctx", "1.4.0", nil, map[string]string{"README.md": "x"})
	env.writeManifest(t, nil)

	// Add: install one explicit package and record it in the manifest.
	_, err := env.Installer.Install(context.Background(), installer.Request{
		ProjectRoot:    env.ProjectDir,
		Packages:       map[string]string{"@starter/ctx": ""},
		UpdateManifest: true,
	})
	if err != nil {
		t.Fatalf("add install: %v", err)
	}

	m, err := manifest.Load(env.ProjectDir)
	if err != nil {
		t.Fatalf("loading manifest: %v", err)
	}
	if m.Dependencies["@starter/ctx"] != "^1.4.0" {
		t.Errorf("manifest range = %q, want ^1.4.0", m.Dependencies["@starter/ctx"])
	}
	if !linker.Linked(env.ProjectDir, "@starter/ctx") {
		t.Fatal("package should be linked after add")
	}

	// Remove: drop the manifest entry, lock entry, and link.
	if err := manifest.RemoveDependency(env.ProjectDir, "@starter/ctx"); err != nil {
		t.Fatalf("RemoveDependency: %v", err)
	}
	data, _ := lockfile.Read(env.ProjectDir)
	delete(data.Packages, "@starter/ctx")
	if err := lockfile.Write(data, env.ProjectDir); err != nil {
		t.Fatalf("rewriting lockfile: %v", err)
	}
	if err := linker.Unlink(env.ProjectDir, "@starter/ctx"); err != nil {
		t.Fatalf("Unlink: %v", err)
	}

	if linker.Linked(env.ProjectDir, "@starter/ctx") {
		t.Error("link should be gone after remove")
	}
	raw, _ := os.ReadFile(manifest.Path(env.ProjectDir))
	if strings.Contains(string(raw), "@starter/ctx") {
		t.Errorf("manifest still names the removed package:\n%s", raw)
	}
	// The extracted tree stays in the shared store.
	assertDirExists(t, filepath.Join(env.Config.StoreDir, "packages", "@starter", "ctx", "1.4.0"))
}

func TestSecondProjectReusesStore(t *testing.T) {
	env := setupTestEnv(t)
	env.Registry.publish("@starter/ctx", "1.0.0", nil, map[string]string{"README.md": "x"})
	env.writeManifest(t, map[string]string{"@starter/ctx": "^1.0.0"})

	if _, err := env.Installer.Install(context.Background(), installer.Request{ProjectRoot: env.ProjectDir}); err != nil {
		t.Fatalf("first project install: %v", err)
	}

	// A second project against the same store links without re-extracting.
	second := t.TempDir()
	if err := os.WriteFile(filepath.Join(second, "agents.toml"), []byte("[package]\nname = \"@local/other\"\nversion = \"0.1.0\"\n\n[dependencies]\n\"@starter/ctx\" = \"^1.0.0\"\n"), 0644); err != nil {
		t.Fatalf("writing second manifest: %v", err)
	}
	if _, err := env.Installer.Install(context.Background(), installer.Request{ProjectRoot: second}); err != nil {
		t.Fatalf("second project install: %v", err)
	}
	if !linker.Linked(second, "@starter/ctx") {
		t.Error("second project should be linked")
	}
}
