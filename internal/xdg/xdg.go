// Package xdg resolves XDG Base Directory paths for accountd.
package xdg

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "accountd"

// ConfigFileName is the file FindConfigFile looks for.
const ConfigFileName = "config.yaml"

// SystemConfigDir is searched after the user's config directory.
var SystemConfigDir = "/etc/accountd"

// ConfigDir returns the XDG config directory for accountd.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// CertsDir returns the directory for generated TLS certificates.
func CertsDir() string {
	return filepath.Join(ConfigDir(), "certs")
}

// FindConfigFile returns the first config.yaml found in ConfigDir or
// SystemConfigDir, or "" when neither exists.
func FindConfigFile() (string, error) {
	for _, dir := range []string{ConfigDir(), SystemConfigDir} {
		path := filepath.Join(dir, ConfigFileName)
		info, err := os.Stat(path)
		switch {
		case err == nil && !info.IsDir():
			return path, nil
		case err == nil, errors.Is(err, fs.ErrNotExist):
			continue
		default:
			return "", oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
	}
	return "", nil
}

// EnsureDir creates a directory and all parent directories if they don't exist.
// Directories are created with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.With("path", path).Wrapf(err, "failed to create directory")
	}
	return nil
}
