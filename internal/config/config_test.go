package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	_, res := NormalizeAndValidate(Default())
	assert.True(t, res.OK(), "errors: %v", res.Errors)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  port: 9000
scoring:
  min_score: 5.5
scheduler:
  channels:
    applications:
      max_requests: 10
      window: 30m
      daily_cap: 12
      session_threshold: 5
      session_break: 2m
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.App.Port)
	assert.Equal(t, 5.5, cfg.Scoring.MinScore)
	assert.NotEmpty(t, cfg.Scoring.SeniorIndicators, "defaults survive a partial file")

	apps := cfg.Scheduler.Channels[ChannelApplications]
	assert.Equal(t, 30*time.Minute, apps.Window.Duration)
	assert.Equal(t, 12, apps.DailyCap)
	assert.Equal(t, 2*time.Minute, apps.SessionBreak.Duration)
	assert.Contains(t, cfg.Scheduler.Channels, ChannelLever)
}

func TestNormalizeDedupesTerms(t *testing.T) {
	cfg := Default()
	cfg.Profile.HighPriorityKeywords = []string{" Python ", "python", "", "SQL"}
	out, res := NormalizeAndValidate(cfg)
	require.True(t, res.OK())
	assert.Equal(t, []string{"python", "sql"}, out.Profile.HighPriorityKeywords)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.App.Port = 0
	cfg.Scoring.MinScore = 11
	cfg.Application.Submitter = "webhook"
	cfg.Schedule.Cron = "not a cron"
	cfg.Schedule.Stages = []string{"ingest", "publish"}

	_, res := NormalizeAndValidate(cfg)
	assert.False(t, res.OK())
	assert.Contains(t, res.Errors, "app.port must be 1..65535")
	assert.Contains(t, res.Errors, "scoring.min_score must be within 0..10")
	assert.Contains(t, res.Errors, "application.webhook_url is required when application.submitter=webhook")
	assert.Contains(t, res.Errors, `schedule.stages: unknown stage "publish"`)
	assert.Error(t, Validate(cfg))
}

func TestSaveAtomicAndBootstrap(t *testing.T) {
	dir := t.TempDir()

	path, err := EnsureUserConfig(dir)
	require.NoError(t, err)
	assert.FileExists(t, path)

	cfg, err := Load(path)
	require.NoError(t, err)
	cfg.Application.DailyLimit = 12
	require.NoError(t, SaveAtomic(path, cfg))
	assert.FileExists(t, path+".bak")

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, again.Application.DailyLimit)
	assert.Equal(t, time.Hour, again.Scheduler.Channels[ChannelApplications].Window.Duration)
}

func TestOverlayCompanies(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "companies.yml")
	require.NoError(t, os.WriteFile(path, []byte("lever:\n  - slug: acme\n    name: Acme\n"), 0o644))

	cfg := Default()
	require.NoError(t, OverlayCompanies(&cfg, path))
	require.Len(t, cfg.Sources.Lever.Companies, 1)
	assert.Equal(t, "acme", cfg.Sources.Lever.Companies[0].Slug)

	assert.NoError(t, OverlayCompanies(&cfg, filepath.Join(dir, "missing.yml")))
}

func TestOverlayCompanies_MergesBySlug(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "companies.yml")
	require.NoError(t, os.WriteFile(path, []byte("greenhouse:\n  - slug: ACME\n    name: Acme Corp\n  - slug: globex\n  - slug: \"\"\n"), 0o644))

	cfg := Default()
	cfg.Sources.Greenhouse.Companies = []Company{{Slug: "acme", Name: "Acme"}, {Slug: "initech"}}
	require.NoError(t, OverlayCompanies(&cfg, path))

	got := cfg.Sources.Greenhouse.Companies
	require.Len(t, got, 3)
	assert.Equal(t, "Acme Corp", got[0].Name)
	assert.Equal(t, "initech", got[1].Slug)
	assert.Equal(t, "globex", got[2].Slug)
}
