// engine/internal/config/config.go
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Profile is the user's preference snapshot used by the scorer and letters.
type Profile struct {
	FullName     string `yaml:"full_name" json:"full_name"`
	Email        string `yaml:"email" json:"email"`
	Phone        string `yaml:"phone" json:"phone"`
	CurrentStudy string `yaml:"current_study" json:"current_study"`

	HighPriorityKeywords   []string `yaml:"high_priority_keywords" json:"high_priority_keywords"`
	MediumPriorityKeywords []string `yaml:"medium_priority_keywords" json:"medium_priority_keywords"`
	Skills                 []string `yaml:"skills" json:"skills"`
	Exclusions             []string `yaml:"exclusions" json:"exclusions"`
	PreferredLocations     []string `yaml:"preferred_locations" json:"preferred_locations"`
	AcceptableLocations    []string `yaml:"acceptable_locations" json:"acceptable_locations"`
	RoleTypes              []string `yaml:"role_types" json:"role_types"`
}

type Scoring struct {
	MinScore         float64  `yaml:"min_score" json:"min_score"`
	SeniorIndicators []string `yaml:"senior_indicators" json:"senior_indicators"`
	JuniorIndicators []string `yaml:"junior_indicators" json:"junior_indicators"`
	RemoteIndicators []string `yaml:"remote_indicators" json:"remote_indicators"`
	PermanentTerms   []string `yaml:"permanent_terms" json:"permanent_terms"`
}

// Channel configures one throttling domain.
type Channel struct {
	MaxRequests      int      `yaml:"max_requests" json:"max_requests"`
	Window           Duration `yaml:"window" json:"window"`
	DailyCap         int      `yaml:"daily_cap" json:"daily_cap"`
	SessionThreshold int      `yaml:"session_threshold" json:"session_threshold"`
	SessionBreak     Duration `yaml:"session_break" json:"session_break"`
}

// DelayRange is a pacing range in seconds.
type DelayRange struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

type Scheduler struct {
	Channels map[string]Channel    `yaml:"channels" json:"channels"`
	Actions  map[string]DelayRange `yaml:"actions" json:"actions"`
}

type Application struct {
	AutoApply          bool    `yaml:"auto_apply" json:"auto_apply"`
	AutoApplyThreshold float64 `yaml:"auto_apply_threshold" json:"auto_apply_threshold"`
	DailyLimit         int     `yaml:"daily_limit" json:"daily_limit"`
	DryRun             bool    `yaml:"dry_run" json:"dry_run"`
	Submitter          string  `yaml:"submitter" json:"submitter"` // manual | webhook
	WebhookURL         string  `yaml:"webhook_url" json:"webhook_url"`
	Method             string  `yaml:"method" json:"method"`
}

type Letters struct {
	OutputDir  string `yaml:"output_dir" json:"output_dir"`
	TemplateFR string `yaml:"template_fr" json:"template_fr"`
	TemplateEN string `yaml:"template_en" json:"template_en"`
}

type Company struct {
	Slug string `yaml:"slug" json:"slug"`
	Name string `yaml:"name" json:"name"`
}

type Board struct {
	Enabled   bool      `yaml:"enabled" json:"enabled"`
	Companies []Company `yaml:"companies" json:"companies"`
}

type Sources struct {
	Greenhouse Board `yaml:"greenhouse" json:"greenhouse"`
	Lever      Board `yaml:"lever" json:"lever"`
}

type Email struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	IMAPHost    string `yaml:"imap_host" json:"imap_host"`
	IMAPPort    int    `yaml:"imap_port" json:"imap_port"`
	Username    string `yaml:"username" json:"username"`
	Mailbox     string `yaml:"mailbox" json:"mailbox"`
	MaxMessages int    `yaml:"max_messages" json:"max_messages"`
}

type Events struct {
	RedisURL string `yaml:"redis_url" json:"redis_url"`
	Channel  string `yaml:"channel" json:"channel"`
}

type Schedule struct {
	Cron       string   `yaml:"cron" json:"cron"`
	RunOnStart bool     `yaml:"run_on_start" json:"run_on_start"`
	Stages     []string `yaml:"stages" json:"stages"`
}

type Config struct {
	App struct {
		Port     int    `yaml:"port" json:"port"`
		DataDir  string `yaml:"data_dir" json:"data_dir"`
		Timezone string `yaml:"timezone" json:"timezone"`
	} `yaml:"app" json:"app"`

	Database struct {
		Path string `yaml:"path" json:"path"`
	} `yaml:"database" json:"database"`

	Profile     Profile     `yaml:"profile" json:"profile"`
	Scoring     Scoring     `yaml:"scoring" json:"scoring"`
	Scheduler   Scheduler   `yaml:"scheduler" json:"scheduler"`
	Application Application `yaml:"application" json:"application"`
	Letters     Letters     `yaml:"letters" json:"letters"`
	Sources     Sources     `yaml:"sources" json:"sources"`
	Email       Email       `yaml:"email" json:"email"`
	Events      Events      `yaml:"events" json:"events"`
	Schedule    Schedule    `yaml:"schedule" json:"schedule"`
}

// Load reads path over Default(). Keys missing from the file keep their
// defaults; lists present in the file replace the default list.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	ApplyEnv(&cfg)
	return cfg, nil
}

// DBPath resolves the sqlite path relative to the data dir.
func (c Config) DBPath() string {
	p := c.Database.Path
	if p == "" {
		p = "jobpipe.db"
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.App.DataDir, p)
}

// LettersDir resolves the letter output directory relative to the data dir.
func (c Config) LettersDir() string {
	p := c.Letters.OutputDir
	if p == "" {
		p = "letters"
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.App.DataDir, p)
}

// Location returns the configured timezone, falling back to local time.
func (c Config) Location() *time.Location {
	if c.App.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
