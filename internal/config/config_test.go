package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHomeDirHonorsOverride(t *testing.T) {
	t.Setenv("HOME", "/tmp/fake-home")
	home, err := HomeDir()
	if err != nil {
		t.Fatalf("HomeDir: %v", err)
	}
	if home != "/tmp/fake-home" {
		t.Fatalf("got %q, want /tmp/fake-home", home)
	}
}

func TestRootCreatesDirectory(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	root, err := Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		t.Fatalf("stat root: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("expected root to be a directory")
	}
	if filepath.Base(root) != RootDirName {
		t.Fatalf("got leaf %q, want %q", filepath.Base(root), RootDirName)
	}
}

func TestLoadBootstrapMissingFileReturnsZeroValue(t *testing.T) {
	b, err := LoadBootstrap(filepath.Join(t.TempDir(), "teamctl.yaml"))
	if err != nil {
		t.Fatalf("LoadBootstrap: %v", err)
	}
	if b != (Bootstrap{}) {
		t.Fatalf("expected zero value, got %+v", b)
	}
}

func TestLoadBootstrapParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "teamctl.yaml")
	contents := "configRoot: /srv/levelcode\ndefaultModel: opus\nnotifications:\n  slack: true\n  toast: true\n"
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("write bootstrap file: %v", err)
	}

	b, err := LoadBootstrap(path)
	if err != nil {
		t.Fatalf("LoadBootstrap: %v", err)
	}
	if b.ConfigRoot != "/srv/levelcode" {
		t.Fatalf("got configRoot %q", b.ConfigRoot)
	}
	if b.DefaultModel != "opus" {
		t.Fatalf("got defaultModel %q", b.DefaultModel)
	}
	if !b.Notifications.Slack || !b.Notifications.Toast {
		t.Fatalf("got notifications %+v", b.Notifications)
	}
	if b.Notifications.Discord {
		t.Fatal("expected discord to default false")
	}
}

func TestDefaultBootstrapPath(t *testing.T) {
	got := DefaultBootstrapPath("/srv/levelcode")
	want := filepath.Join("/srv/levelcode", "teamctl.yaml")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
