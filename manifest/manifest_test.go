package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "nbc.toml"), []byte(content), 0644); err != nil {
		t.Fatalf("write nbc.toml: %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[module]
path = "out/app.nbc"
entry = "start"
args = ["a", "b"]

[vm]
trace = true
max-frames = 64
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Module.Path != "out/app.nbc" {
		t.Errorf("Path = %q", m.Module.Path)
	}
	if m.Module.Entry != "start" {
		t.Errorf("Entry = %q", m.Module.Entry)
	}
	if len(m.Module.Args) != 2 || m.Module.Args[0] != "a" {
		t.Errorf("Args = %v", m.Module.Args)
	}
	if !m.VM.Trace || m.VM.MaxFrames != 64 {
		t.Errorf("VM = %+v", m.VM)
	}
	if m.Dir == "" {
		t.Error("Dir not set")
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[module]
path = "app.nbc"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Module.Entry != "main" {
		t.Errorf("Entry = %q, want \"main\"", m.Module.Entry)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("expected error for missing nbc.toml")
	}
}

func TestLoadBadTOML(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `[module`)
	if _, err := Load(dir); err == nil {
		t.Error("expected parse error")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, `
[module]
path = "app.nbc"
`)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if m == nil {
		t.Fatal("manifest not found from nested dir")
	}

	rootAbs, _ := filepath.Abs(root)
	if m.Dir != rootAbs {
		t.Errorf("Dir = %q, want %q", m.Dir, rootAbs)
	}
}

func TestFindAndLoadAbsent(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if m != nil {
		t.Errorf("m = %+v, want nil", m)
	}
}

func TestModulePath(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[module]
path = "out/app.nbc"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := filepath.Join(m.Dir, "out", "app.nbc")
	if got := m.ModulePath(); got != want {
		t.Errorf("ModulePath = %q, want %q", got, want)
	}

	m.Module.Path = "/abs/app.nbc"
	if got := m.ModulePath(); got != "/abs/app.nbc" {
		t.Errorf("ModulePath = %q, want absolute unchanged", got)
	}
}
