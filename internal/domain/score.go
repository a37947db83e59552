package domain

// Components holds the named sub-scores of a ScoreResult.
type Components struct {
	KeywordMatch     float64 `json:"keywordMatch"`
	SkillMatch       float64 `json:"skillMatch"`
	JobTypeMatch     float64 `json:"jobTypeMatch"`
	ExperienceMatch  float64 `json:"experienceMatch"`
	LocationMatch    float64 `json:"locationMatch"`
	Recency          float64 `json:"recency"`
	ExclusionPenalty float64 `json:"exclusionPenalty"`
}

// Positive sums every component except the exclusion penalty.
func (c Components) Positive() float64 {
	return c.KeywordMatch + c.SkillMatch + c.JobTypeMatch + c.ExperienceMatch + c.LocationMatch + c.Recency
}

func (c Components) Map() map[string]float64 {
	return map[string]float64{
		"keywordMatch":     c.KeywordMatch,
		"skillMatch":       c.SkillMatch,
		"jobTypeMatch":     c.JobTypeMatch,
		"experienceMatch":  c.ExperienceMatch,
		"locationMatch":    c.LocationMatch,
		"recency":          c.Recency,
		"exclusionPenalty": c.ExclusionPenalty,
	}
}

type ScoreResult struct {
	Total             float64    `json:"total"`
	Components        Components `json:"components"`
	MatchedKeywords   []string   `json:"matchedKeywords"`
	MatchedSkills     []string   `json:"matchedSkills"`
	MatchedExclusions []string   `json:"matchedExclusions"`
}
