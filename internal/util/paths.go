package util

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

const appName = "skillbridge"

// HomeDir returns the user's home directory.
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return home
}

// ConfigDir returns the skillbridge configuration directory.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, appName)
}

// DefaultArtifactsDir returns the directory screenshots and other RPC
// artifacts are written to.
func DefaultArtifactsDir() string {
	return filepath.Join(os.TempDir(), "phoneagent-artifacts")
}

// ExpandPath expands a leading ~ to the home directory and resolves
// relative paths against baseDir. Returns "" for empty input.
func ExpandPath(path, baseDir string) string {
	if path == "" {
		return ""
	}

	if path == "~" {
		return HomeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(HomeDir(), path[2:])
	}

	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	if baseDir == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(baseDir, path)
}
