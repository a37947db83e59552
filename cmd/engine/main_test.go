package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobpipe-engine/internal/domain"
	"jobpipe-engine/internal/pipeline"
)

func withDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	prevDir, prevCfg := dataDirFlag, configFlag
	dataDirFlag, configFlag = dir, ""
	t.Cleanup(func() { dataDirFlag, configFlag = prevDir, prevCfg })
	return dir
}

func TestConfigPath_WritesDefaults(t *testing.T) {
	dir := withDataDir(t)
	path, err := configPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.yml"), path)
	assert.FileExists(t, path)
}

func TestLoadConfigFile_OverlaysCompanies(t *testing.T) {
	dir := withDataDir(t)
	path, err := configPath()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "companies.yml"),
		[]byte("greenhouse:\n  - name: Acme\n    slug: acme\n"), 0o644))

	cfg, err := loadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.App.DataDir)
	require.Len(t, cfg.Sources.Greenhouse.Companies, 1)
	assert.Equal(t, "acme", cfg.Sources.Greenhouse.Companies[0].Slug)
}

func TestLoadConfigFile_Invalid(t *testing.T) {
	dir := withDataDir(t)
	path := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("scoring:\n  min_score: 42\n"), 0o644))

	_, err := loadConfigFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_score")
}

func TestOpenApp_RunsScoreStage(t *testing.T) {
	dir := withDataDir(t)
	ctx := context.Background()

	a, err := openApp(ctx)
	require.NoError(t, err)
	defer a.Close()
	assert.FileExists(t, filepath.Join(dir, "jobpipe.db"))

	sum, err := a.orch.TryRun(ctx, pipeline.RunOptions{Stages: []string{pipeline.StageScore}, Trigger: "test"})
	require.NoError(t, err)
	assert.Zero(t, sum.Scored)

	states, err := a.orch.SchedulerStates(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, states)
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = parseID("x")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = parseID("0")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
