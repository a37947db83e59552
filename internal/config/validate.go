package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

var knownStages = map[string]bool{"ingest": true, "score": true, "letters": true, "apply": true}

// NormalizeAndValidate returns a normalized copy of cfg and the validation
// result. Term lists are trimmed, lowercased where they are matched
// case-insensitively, and deduplicated.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	out := cfg
	var res Validation

	trimList := func(xs []string, lower bool) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			if lower {
				x = key
			}
			ys = append(ys, x)
		}
		return ys
	}

	p := &out.Profile
	p.HighPriorityKeywords = trimList(p.HighPriorityKeywords, true)
	p.MediumPriorityKeywords = trimList(p.MediumPriorityKeywords, true)
	p.Skills = trimList(p.Skills, false)
	p.Exclusions = trimList(p.Exclusions, true)
	p.PreferredLocations = trimList(p.PreferredLocations, true)
	p.AcceptableLocations = trimList(p.AcceptableLocations, true)
	p.RoleTypes = trimList(p.RoleTypes, true)

	s := &out.Scoring
	s.SeniorIndicators = trimList(s.SeniorIndicators, true)
	s.JuniorIndicators = trimList(s.JuniorIndicators, true)
	s.RemoteIndicators = trimList(s.RemoteIndicators, true)
	s.PermanentTerms = trimList(s.PermanentTerms, true)

	out.Schedule.Stages = trimList(out.Schedule.Stages, true)

	// ---- Validation rules ----

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}
	if strings.TrimSpace(out.App.DataDir) == "" {
		res.addErr("app.data_dir is required")
	}

	if s.MinScore < 0 || s.MinScore > 10 {
		res.addErr("scoring.min_score must be within 0..10")
	}
	if len(p.HighPriorityKeywords) == 0 && len(p.MediumPriorityKeywords) == 0 {
		res.addWarn("profile has no keywords; keyword scores will always be 0.")
	}
	if len(p.RoleTypes) == 0 {
		res.addWarn("profile.role_types is empty; job type scores fall back to neutral.")
	}

	pref := map[string]bool{}
	for _, l := range p.PreferredLocations {
		pref[l] = true
	}
	for _, l := range p.AcceptableLocations {
		if pref[l] {
			res.addWarn("location appears in both preferred and acceptable: %q", l)
		}
	}

	// scheduler
	if len(out.Scheduler.Actions) == 0 {
		out.Scheduler.Actions = DefaultActions()
	}
	for name, r := range out.Scheduler.Actions {
		if r.Min < 0 || r.Max < r.Min {
			res.addErr("scheduler.actions.%s needs 0 <= min <= max", name)
		}
	}
	channels := make(map[string]Channel, len(out.Scheduler.Channels)+1)
	for name, ch := range out.Scheduler.Channels {
		channels[strings.ToLower(strings.TrimSpace(name))] = ch
	}
	if _, ok := channels[ChannelApplications]; !ok {
		channels[ChannelApplications] = Default().Scheduler.Channels[ChannelApplications]
	}
	out.Scheduler.Channels = channels
	for name, ch := range out.Scheduler.Channels {
		if ch.MaxRequests <= 0 {
			res.addErr("scheduler.channels.%s.max_requests must be > 0", name)
		}
		if ch.Window.Duration <= 0 {
			res.addErr("scheduler.channels.%s.window must be > 0", name)
		}
		if ch.DailyCap < 0 {
			res.addErr("scheduler.channels.%s.daily_cap must be >= 0", name)
		}
		if ch.SessionThreshold < 0 || ch.SessionBreak.Duration < 0 {
			res.addErr("scheduler.channels.%s session settings must be >= 0", name)
		}
	}

	// application
	a := &out.Application
	if a.AutoApplyThreshold < 0 || a.AutoApplyThreshold > 10 {
		res.addErr("application.auto_apply_threshold must be within 0..10")
	} else if a.AutoApply && a.AutoApplyThreshold < s.MinScore {
		res.addWarn("application.auto_apply_threshold (%.1f) is below scoring.min_score (%.1f).", a.AutoApplyThreshold, s.MinScore)
	}
	if a.DailyLimit < 0 {
		res.addErr("application.daily_limit must be >= 0")
	} else if a.DailyLimit == 0 {
		res.addWarn("application.daily_limit is 0; the applications channel cap is unlimited.")
	}
	switch a.Submitter {
	case "manual", "":
		a.Submitter = "manual"
	case "webhook":
		if strings.TrimSpace(a.WebhookURL) == "" {
			res.addErr("application.webhook_url is required when application.submitter=webhook")
		}
	default:
		res.addErr("application.submitter must be manual or webhook, got %q", a.Submitter)
	}

	// sources
	checkBoard := func(name string, b Board) {
		if !b.Enabled {
			return
		}
		if len(b.Companies) == 0 {
			res.addWarn("sources.%s is enabled with no companies.", name)
		}
		for i, co := range b.Companies {
			if strings.TrimSpace(co.Slug) == "" {
				res.addErr("sources.%s.companies[%d].slug is required", name, i)
			}
		}
	}
	checkBoard("greenhouse", out.Sources.Greenhouse)
	checkBoard("lever", out.Sources.Lever)

	// email required fields if enabled (password lives in the keychain)
	if out.Email.Enabled {
		if strings.TrimSpace(out.Email.IMAPHost) == "" {
			res.addErr("email.imap_host is required when email.enabled=true")
		}
		if out.Email.IMAPPort == 0 {
			res.addErr("email.imap_port is required when email.enabled=true")
		}
		if strings.TrimSpace(out.Email.Username) == "" {
			res.addErr("email.username is required when email.enabled=true")
		}
		if strings.TrimSpace(out.Email.Mailbox) == "" {
			res.addErr("email.mailbox is required when email.enabled=true")
		}
	}

	if !out.Sources.Greenhouse.Enabled && !out.Sources.Lever.Enabled && !out.Email.Enabled {
		res.addWarn("no sources enabled; the ingest stage will find nothing.")
	}

	// schedule
	if strings.TrimSpace(out.Schedule.Cron) != "" {
		if _, err := cron.ParseStandard(out.Schedule.Cron); err != nil {
			res.addErr("schedule.cron is invalid: %v", err)
		}
	}
	for _, st := range out.Schedule.Stages {
		if !knownStages[st] {
			res.addErr("schedule.stages: unknown stage %q", st)
		}
	}

	return out, res
}
