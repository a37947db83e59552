// engine/internal/rank/profile_scorer.go
package rank

import (
	"math"
	"regexp"
	"strings"
	"time"

	"jobpipe-engine/internal/config"
	"jobpipe-engine/internal/domain"
)

const (
	highKeywordWeight   = 0.4
	mediumKeywordWeight = 0.2
	keywordCap          = 4.0

	skillWeight = 0.3
	skillCap    = 3.0

	exclusionWeight = 2.0
	exclusionCap    = 5.0

	maxTotal = 10.0
)

// skillMatcher matches a skill as a whole word. Word characters are Unicode
// letters, digits and underscore, so accented skills match too.
type skillMatcher struct {
	name string
	re   *regexp.Regexp
}

// ProfileScorer scores postings against a preference profile. Term lists are
// lowercased and skill patterns compiled once in NewProfileScorer.
type ProfileScorer struct {
	high, medium    []string
	skills          []skillMatcher
	exclusions      []string
	preferred       []string
	acceptable      []string
	roleTypes       []string
	senior, junior  []string
	remote          []string
	permanent       []string
	preferPermanent bool
	now             func() time.Time
}

func NewProfileScorer(p config.Profile, s config.Scoring, now func() time.Time) *ProfileScorer {
	if now == nil {
		now = time.Now
	}
	ps := &ProfileScorer{
		high:       lowerAll(p.HighPriorityKeywords),
		medium:     lowerAll(p.MediumPriorityKeywords),
		exclusions: lowerAll(p.Exclusions),
		preferred:  lowerAll(p.PreferredLocations),
		acceptable: lowerAll(p.AcceptableLocations),
		roleTypes:  lowerAll(p.RoleTypes),
		senior:     lowerAll(s.SeniorIndicators),
		junior:     lowerAll(s.JuniorIndicators),
		remote:     lowerAll(s.RemoteIndicators),
		permanent:  lowerAll(s.PermanentTerms),
		now:        now,
	}
	for _, sk := range uniq(trimAll(p.Skills)) {
		ps.skills = append(ps.skills, skillMatcher{
			name: sk,
			re:   regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])` + regexp.QuoteMeta(sk) + `(?:$|[^\p{L}\p{N}_])`),
		})
	}
	for _, rt := range ps.roleTypes {
		if containsAny(rt, ps.permanent) {
			ps.preferPermanent = true
		}
	}
	return ps
}

func (s *ProfileScorer) Score(p domain.Posting) domain.ScoreResult {
	full := joinLower(p.Title, p.Description, p.Requirements, p.Company, p.Location)

	var c domain.Components
	res := domain.ScoreResult{
		MatchedKeywords:   []string{},
		MatchedSkills:     []string{},
		MatchedExclusions: []string{},
	}

	c.KeywordMatch, res.MatchedKeywords = s.keywordScore(full)
	c.SkillMatch, res.MatchedSkills = s.skillScore(full)
	c.JobTypeMatch = s.jobTypeScore(p)
	c.ExperienceMatch = s.experienceScore(p)
	c.LocationMatch = s.locationScore(p.Location)
	c.Recency = s.recencyScore(p)
	c.ExclusionPenalty, res.MatchedExclusions = s.exclusionPenalty(full)

	res.Components = c
	res.Total = round2(clamp(c.Positive()-c.ExclusionPenalty, 0, maxTotal))
	return res
}

func (s *ProfileScorer) keywordScore(text string) (float64, []string) {
	score := 0.0
	matched := []string{}
	for _, kw := range s.high {
		if strings.Contains(text, kw) {
			score += highKeywordWeight
			matched = append(matched, "HIGH:"+kw)
		}
	}
	for _, kw := range s.medium {
		if strings.Contains(text, kw) {
			score += mediumKeywordWeight
			matched = append(matched, "MEDIUM:"+kw)
		}
	}
	return math.Min(score, keywordCap), matched
}

func (s *ProfileScorer) skillScore(text string) (float64, []string) {
	score := 0.0
	matched := []string{}
	for _, sk := range s.skills {
		if sk.re.MatchString(text) {
			score += skillWeight
			matched = append(matched, sk.name)
		}
	}
	return math.Min(score, skillCap), matched
}

// jobTypeScore checks the explicit job type first, then title and
// description, then the permanent-contract fallback.
func (s *ProfileScorer) jobTypeScore(p domain.Posting) float64 {
	if jt := strings.ToLower(p.JobType); jt != "" && containsAny(jt, s.roleTypes) {
		return 1.0
	}
	combined := joinLower(p.Title, p.Description)
	if containsAny(combined, s.roleTypes) {
		return 1.0
	}
	if containsAny(combined, s.permanent) && !s.preferPermanent {
		return 0.3
	}
	return 0.5
}

// experienceScore: any senior indicator disqualifies, even when junior
// indicators are also present.
func (s *ProfileScorer) experienceScore(p domain.Posting) float64 {
	text := joinLower(p.Title, p.Description, p.ExperienceLevel)
	if containsAny(text, s.senior) {
		return 0.0
	}
	if containsAny(text, s.junior) {
		return 1.0
	}
	return 0.7
}

func (s *ProfileScorer) locationScore(location string) float64 {
	loc := strings.ToLower(location)
	switch {
	case containsAny(loc, s.preferred):
		return 0.5
	case containsAny(loc, s.acceptable):
		return 0.3
	case containsAny(loc, s.remote):
		return 0.4
	default:
		return 0.1
	}
}

func (s *ProfileScorer) recencyScore(p domain.Posting) float64 {
	if p.PostedAt == nil {
		if strings.TrimSpace(p.PostedRaw) != "" {
			return 0.1
		}
		return 0.25
	}
	days := int(s.now().Sub(*p.PostedAt).Hours() / 24)
	switch {
	case days <= 1:
		return 0.5
	case days <= 3:
		return 0.4
	case days <= 7:
		return 0.3
	case days <= 14:
		return 0.2
	default:
		return 0.1
	}
}

func (s *ProfileScorer) exclusionPenalty(text string) (float64, []string) {
	penalty := 0.0
	matched := []string{}
	for _, ex := range s.exclusions {
		if strings.Contains(text, ex) {
			penalty += exclusionWeight
			matched = append(matched, ex)
		}
	}
	return math.Min(penalty, exclusionCap), matched
}

func joinLower(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.ToLower(strings.Join(nonEmpty, " "))
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func lowerAll(in []string) []string {
	out := trimAll(in)
	for i := range out {
		out[i] = strings.ToLower(out[i])
	}
	return uniq(out)
}

func uniq(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, t := range in {
		k := strings.ToLower(t)
		if !seen[k] {
			seen[k] = true
			out = append(out, t)
		}
	}
	return out
}
