// Package config turns viper settings into typed component configuration.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return os.ExpandEnv(path)
}

// Dir returns the directory searched for config.yaml.
func Dir() string {
	return ExpandPath("~/.config/bates")
}

// DefaultDatabasePath is where the run audit log lives unless configured.
func DefaultDatabasePath() string {
	return ExpandPath("~/.local/share/bates/bates.db")
}
