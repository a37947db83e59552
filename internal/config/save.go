package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"
)

func Validate(cfg Config) error {
	_, res := NormalizeAndValidate(cfg)
	if res.OK() {
		return nil
	}
	return errors.Newf("config validation failed:\n- %s", strings.Join(res.Errors, "\n- "))
}

// SaveAtomic validates cfg and writes it through a temp file, keeping the
// previous version as <path>.bak. Writers are serialised by a lock file so
// the CLI and the HTTP API cannot interleave.
func SaveAtomic(path string, cfg Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}

	b, err := yaml.Marshal(&cfg)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create config dir %s", dir)
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	for i := 0; err == nil && !ok && i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		ok, err = lock.TryLock()
	}
	if err != nil {
		return errors.Wrap(err, "lock config")
	}
	if !ok {
		return errors.WithHint(errors.New("config is locked by another writer"), "retry in a few seconds")
	}
	defer func() { _ = lock.Unlock() }()

	tmp := path + ".tmp"
	bak := path + ".bak"

	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return errors.Wrap(err, "write temp config")
	}

	_ = os.Remove(bak)
	_ = os.Rename(path, bak)

	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "replace config")
	}
	return nil
}
