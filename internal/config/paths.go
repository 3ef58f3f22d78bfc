package config

import (
	"os"
	"path/filepath"

	"butterfly/internal/errors"
)

const (
	// EnvConfigPath names a config file, ignored when the file is missing
	EnvConfigPath = "BUTTERFLY_CONFIG"
	// ConfigFileName is looked up in the working directory
	ConfigFileName = "butterfly.yaml"
	// ConfigDirName is the directory under the XDG and system config roots
	ConfigDirName = "butterfly"
)

// ErrConfigNotFound is returned when an explicitly requested file is missing
var ErrConfigNotFound = errors.New("config file not found")

// SearchPaths lists the implicit config locations, most specific first.
// Relative entries resolve against the working directory.
func SearchPaths() []string {
	var paths []string
	if env := os.Getenv(EnvConfigPath); env != "" {
		paths = append(paths, env)
	}
	paths = append(paths, ConfigFileName)

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, ConfigDirName, "config.yaml"))
	} else if home := os.Getenv("HOME"); home != "" {
		paths = append(paths, filepath.Join(home, ".config", ConfigDirName, "config.yaml"))
	}
	return append(paths, filepath.Join("/etc", ConfigDirName, "config.yaml"))
}

// FindConfigPath resolves the config file to load. An explicit path (the
// --config flag) wins and must exist. Otherwise the first existing entry of
// SearchPaths is used, and an empty path means run on defaults.
func FindConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if !fileExists(explicit) {
			return "", errors.Wrapf(ErrConfigNotFound, "%s", explicit)
		}
		return explicit, nil
	}

	for _, path := range SearchPaths() {
		if !fileExists(path) {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			return abs, nil
		}
		return path, nil
	}
	return "", nil
}

// EnsureConfigDir creates the directory holding configPath
func EnsureConfigDir(configPath string) error {
	return os.MkdirAll(filepath.Dir(configPath), 0755)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
