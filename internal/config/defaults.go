package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that reads and writes as "90s", "1h" and so on.
type Duration struct {
	time.Duration
}

func D(d time.Duration) Duration { return Duration{d} }

func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	return d.parse(s)
}

func (d Duration) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(err, "duration must be a string like \"1h\"")
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "parse duration %q", s)
	}
	d.Duration = v
	return nil
}

// Channel names used by the pipeline.
const (
	ChannelApplications = "applications"
	ChannelGreenhouse   = "greenhouse"
	ChannelLever        = "lever"
	ChannelEmail        = "linkedin"
)

// Default returns the full configuration with every recognised option set.
func Default() Config {
	var c Config
	c.App.Port = 38471
	c.App.DataDir = "./data"
	c.Database.Path = "jobpipe.db"

	c.Profile = Profile{
		CurrentStudy: "Data Science",
		HighPriorityKeywords: []string{
			"data scientist", "data analyst", "machine learning", "alternance", "python",
		},
		MediumPriorityKeywords: []string{
			"sql", "statistics", "deep learning", "nlp", "big data",
		},
		Skills:              []string{"Python", "SQL", "Pandas", "Scikit-learn", "TensorFlow"},
		Exclusions:          []string{"stage de 2 mois", "bénévole", "unpaid"},
		PreferredLocations:  []string{"paris", "île-de-france"},
		AcceptableLocations: []string{"lyon", "lille", "france"},
		RoleTypes:           []string{"alternance", "apprentissage"},
	}

	c.Scoring = Scoring{
		MinScore: 6.0,
		SeniorIndicators: []string{
			"senior", "confirmé", "expert", "lead", "principal",
			"5+ years", "5 ans", "6 ans", "7 ans", "8 ans", "10 ans",
			"10+ years", "15 years", "15 ans",
		},
		JuniorIndicators: []string{
			"junior", "débutant", "entry level", "graduate", "0-2 years",
			"1-2 ans", "2-3 ans", "alternance", "stage", "apprentissage",
			"première expérience",
		},
		RemoteIndicators: []string{"remote", "télétravail", "full remote", "hybride"},
		PermanentTerms:   []string{"cdi"},
	}

	session := Channel{
		MaxRequests:      30,
		Window:           D(time.Hour),
		SessionThreshold: 30,
		SessionBreak:     D(300 * time.Second),
	}
	apps := session
	apps.DailyCap = 30
	c.Scheduler = Scheduler{
		Channels: map[string]Channel{
			ChannelApplications: apps,
			ChannelGreenhouse:   session,
			ChannelLever:        session,
			ChannelEmail:        session,
		},
		Actions: DefaultActions(),
	}

	c.Application = Application{
		AutoApply:          false,
		AutoApplyThreshold: 8.0,
		DailyLimit:         30,
		DryRun:             true,
		Submitter:          "manual",
		Method:             "email",
	}

	c.Letters = Letters{OutputDir: "letters"}

	c.Email = Email{
		IMAPHost:    "imap.gmail.com",
		IMAPPort:    993,
		Mailbox:     "INBOX",
		MaxMessages: 50,
	}

	c.Events.Channel = "jobpipe:events"

	c.Schedule = Schedule{
		Cron:   "@every 6h",
		Stages: []string{"ingest", "score", "letters", "apply"},
	}
	return c
}

// DefaultActions is the pacing table, in seconds.
func DefaultActions() map[string]DelayRange {
	return map[string]DelayRange{
		"page_load": {Min: 3, Max: 7},
		"scroll":    {Min: 0.5, Max: 2},
		"click":     {Min: 1, Max: 3},
		"form_fill": {Min: 2, Max: 5},
		"submit":    {Min: 5, Max: 12},
		"default":   {Min: 2, Max: 5},
	}
}

// ApplyEnv overlays JOBPIPE_* environment variables.
func ApplyEnv(c *Config) {
	if v := strings.TrimSpace(os.Getenv("JOBPIPE_DATA_DIR")); v != "" {
		c.App.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv("JOBPIPE_PORT")); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.App.Port = p
		}
	}
	if v := strings.TrimSpace(os.Getenv("JOBPIPE_REDIS_URL")); v != "" {
		c.Events.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("JOBPIPE_WEBHOOK_URL")); v != "" {
		c.Application.WebhookURL = v
	}
}
