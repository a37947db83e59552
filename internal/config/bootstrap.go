package config

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// EnsureUserConfig returns <dataDir>/config.yml, writing the defaults there
// on first start.
func EnsureUserConfig(dataDir string) (string, error) {
	userPath := filepath.Join(dataDir, "config.yml")

	_, err := os.Stat(userPath)
	if err == nil {
		return userPath, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", errors.Wrapf(err, "stat %s", userPath)
	}

	cfg := Default()
	cfg.App.DataDir = dataDir
	if err := SaveAtomic(userPath, cfg); err != nil {
		return "", errors.Wrap(err, "write default config")
	}
	return userPath, nil
}
