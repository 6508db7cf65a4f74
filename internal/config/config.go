// Package config resolves the per-user config root under
// <home>/.config/levelcode and loads the optional teamctl.yaml CLI
// bootstrap file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// RootDirName is the config root's leaf directory name under the user's
// home (or XDG-equivalent) directory.
const RootDirName = "levelcode"

// HomeDir returns the user's home directory, honoring HOME (POSIX) and
// USERPROFILE (Windows) so tests can override it without touching the real
// environment.
func HomeDir() (string, error) {
	if home := os.Getenv("HOME"); home != "" {
		return home, nil
	}
	if runtime.GOOS == "windows" {
		if profile := os.Getenv("USERPROFILE"); profile != "" {
			return profile, nil
		}
	}
	return os.UserHomeDir()
}

// Root returns <home>/.config/levelcode, creating it if absent.
func Root() (string, error) {
	home, err := HomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home dir: %w", err)
	}
	root := filepath.Join(home, ".config", RootDirName)
	if err := os.MkdirAll(root, 0755); err != nil {
		return "", fmt.Errorf("config: create config root %s: %w", root, err)
	}
	return root, nil
}

// Bootstrap is the optional teamctl.yaml CLI bootstrap file: default model,
// a config-root override, and notification routing. This is the only YAML
// surface; all durable team/task/inbox state stays JSON.
type Bootstrap struct {
	ConfigRoot       string            `yaml:"configRoot,omitempty"`
	DefaultModel     string            `yaml:"defaultModel,omitempty"`
	DefaultAgentType string            `yaml:"defaultAgentType,omitempty"`
	Notifications    NotificationRoute `yaml:"notifications,omitempty"`
}

// NotificationRoute records which external sinks teamctl.yaml enables. It is
// parsed into Bootstrap, but no package in this repo reads it, and no Slack,
// Discord, email or terminal sink exists here.
type NotificationRoute struct {
	Slack    bool `yaml:"slack,omitempty"`
	Discord  bool `yaml:"discord,omitempty"`
	Email    bool `yaml:"email,omitempty"`
	Toast    bool `yaml:"toast,omitempty"`
	Terminal bool `yaml:"terminal,omitempty"`
}

// LoadBootstrap reads path's YAML bootstrap file. A missing file is not an
// error: it returns the zero-value Bootstrap so callers can proceed with
// defaults.
func LoadBootstrap(path string) (Bootstrap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Bootstrap{}, nil
		}
		return Bootstrap{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var b Bootstrap
	if err := yaml.Unmarshal(data, &b); err != nil {
		return Bootstrap{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return b, nil
}

// DefaultBootstrapPath returns <root>/teamctl.yaml.
func DefaultBootstrapPath(root string) string {
	return filepath.Join(root, "teamctl.yaml")
}
