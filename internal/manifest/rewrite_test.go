package manifest

import (
	"os"
	"runtime"
	"strings"
	"testing"
)

func readManifest(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		t.Fatalf("reading manifest: %v", err)
	}
	return string(data)
}

func TestSetDependencyUpdatesExistingLine(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `# project manifest
[package]
name = "@local/demo"
version = "0.1.0"

[dependencies]
"@scope/base" = "^1.0.0"
`)

	if err := SetDependency(dir, "@scope/base", "^2.0.0"); err != nil {
		t.Fatalf("SetDependency: %v", err)
	}

	got := readManifest(t, dir)
	if !strings.Contains(got, `"@scope/base" = "^2.0.0"`) {
		t.Errorf("updated range missing:\n%s", got)
	}
	if strings.Contains(got, "^1.0.0") {
		t.Errorf("old range should be gone:\n%s", got)
	}
	if !strings.Contains(got, "# project manifest") {
		t.Errorf("comment should survive the rewrite:\n%s", got)
	}
}

func TestRewriteKeepsManifestWorldReadable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX permission bits")
	}
	dir := t.TempDir()
	writeManifest(t, dir, `[package]
name = "@local/demo"
version = "0.1.0"

[dependencies]
"@scope/base" = "^1.0.0"
`)

	if err := SetDependency(dir, "@scope/base", "^2.0.0"); err != nil {
		t.Fatalf("SetDependency: %v", err)
	}

	info, err := os.Stat(Path(dir))
	if err != nil {
		t.Fatalf("stat manifest: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0644 {
		t.Errorf("manifest mode = %o, want 644", perm)
	}
}

func TestSetDependencyAppendsToSection(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `[package]
name = "@local/demo"
version = "0.1.0"

[dependencies]
"@scope/base" = "^1.0.0"
`)

	if err := SetDependency(dir, "@scope/extras", "^3.1.0"); err != nil {
		t.Fatalf("SetDependency: %v", err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load after rewrite: %v", err)
	}
	if m.Dependencies["@scope/base"] != "^1.0.0" {
		t.Errorf("existing entry lost: %v", m.Dependencies)
	}
	if m.Dependencies["@scope/extras"] != "^3.1.0" {
		t.Errorf("new entry missing: %v", m.Dependencies)
	}
}

func TestSetDependencyCreatesSection(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `[package]
name = "@local/demo"
version = "0.1.0"
`)

	if err := SetDependency(dir, "@scope/base", "^1.0.0"); err != nil {
		t.Fatalf("SetDependency: %v", err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load after rewrite: %v", err)
	}
	if m.Dependencies["@scope/base"] != "^1.0.0" {
		t.Errorf("Dependencies = %v, want @scope/base ^1.0.0", m.Dependencies)
	}
}

func TestSetDependencyPreservesUnrelatedFormatting(t *testing.T) {
	dir := t.TempDir()
	original := `[package]
name = "@local/demo"   # keep this comment
version = "0.1.0"

# dependency block below
[dependencies]
"@scope/base" = "^1.0.0"

[unrelated]
key = "value"
`
	writeManifest(t, dir, original)

	if err := SetDependency(dir, "@scope/base", "^1.5.0"); err != nil {
		t.Fatalf("SetDependency: %v", err)
	}

	got := readManifest(t, dir)
	for _, keep := range []string{
		"# keep this comment",
		"# dependency block below",
		"[unrelated]",
		`key = "value"`,
	} {
		if !strings.Contains(got, keep) {
			t.Errorf("rewrite dropped %q:\n%s", keep, got)
		}
	}
}

func TestRemoveDependency(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `[package]
name = "@local/demo"
version = "0.1.0"

[dependencies]
"@scope/base" = "^1.0.0"
"@scope/extras" = "^2.0.0"
`)

	if err := RemoveDependency(dir, "@scope/base"); err != nil {
		t.Fatalf("RemoveDependency: %v", err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load after remove: %v", err)
	}
	if _, ok := m.Dependencies["@scope/base"]; ok {
		t.Error("removed dependency still present")
	}
	if m.Dependencies["@scope/extras"] != "^2.0.0" {
		t.Errorf("unrelated dependency lost: %v", m.Dependencies)
	}
}

func TestRemoveDependencyNotFound(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `[package]
name = "@local/demo"
version = "0.1.0"
`)

	if err := RemoveDependency(dir, "@scope/missing"); err == nil {
		t.Fatal("RemoveDependency should fail for an unknown dependency")
	}
}
