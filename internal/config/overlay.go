package config

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// CompaniesFile is the optional companies.yml kept next to config.yml so the
// board lists can be edited without touching the main config.
type CompaniesFile struct {
	Greenhouse []Company `yaml:"greenhouse"`
	Lever      []Company `yaml:"lever"`
}

// OverlayCompanies merges companies.yml into the board lists. An entry whose
// slug is already configured replaces it; new slugs are appended. A missing
// file is not an error.
func OverlayCompanies(cfg *Config, companiesPath string) error {
	b, err := os.ReadFile(companiesPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "read %s", companiesPath)
	}

	var cf CompaniesFile
	if err := yaml.Unmarshal(b, &cf); err != nil {
		return errors.Wrapf(err, "parse %s", companiesPath)
	}
	cfg.Sources.Greenhouse.Companies = mergeCompanies(cfg.Sources.Greenhouse.Companies, cf.Greenhouse)
	cfg.Sources.Lever.Companies = mergeCompanies(cfg.Sources.Lever.Companies, cf.Lever)
	return nil
}

func mergeCompanies(base, extra []Company) []Company {
	idx := make(map[string]int, len(base))
	out := append([]Company(nil), base...)
	for i, c := range out {
		idx[strings.ToLower(c.Slug)] = i
	}
	for _, c := range extra {
		key := strings.ToLower(strings.TrimSpace(c.Slug))
		if key == "" {
			continue
		}
		if i, ok := idx[key]; ok {
			out[i] = c
			continue
		}
		idx[key] = len(out)
		out = append(out, c)
	}
	return out
}
