package rank

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobpipe-engine/internal/config"
	"jobpipe-engine/internal/domain"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func testScorer(mut func(*config.Profile)) *ProfileScorer {
	p := config.Profile{
		HighPriorityKeywords: []string{"data analyst", "python"},
		Skills:               []string{"SQL"},
		Exclusions:           []string{"unpaid"},
		PreferredLocations:   []string{"paris"},
		AcceptableLocations:  []string{"lyon"},
		RoleTypes:            []string{"alternance"},
	}
	if mut != nil {
		mut(&p)
	}
	return NewProfileScorer(p, config.Default().Scoring, func() time.Time { return fixedNow })
}

func ago(d time.Duration) *time.Time {
	t := fixedNow.Add(-d)
	return &t
}

func TestScoreJuniorAlternanceExample(t *testing.T) {
	s := testScorer(nil)
	res := s.Score(domain.Posting{
		Title:       "Alternance Data Analyst",
		Company:     "Acme",
		Description: "Vous utiliserez Python et SQL au quotidien.",
		Location:    "Paris, France",
		PostedAt:    ago(2 * time.Hour),
	})

	assert.InDelta(t, 0.8, res.Components.KeywordMatch, 1e-9)
	assert.InDelta(t, 0.3, res.Components.SkillMatch, 1e-9)
	assert.Equal(t, 1.0, res.Components.JobTypeMatch)
	assert.Equal(t, 1.0, res.Components.ExperienceMatch)
	assert.Equal(t, 0.5, res.Components.LocationMatch)
	assert.Equal(t, 0.5, res.Components.Recency)
	assert.Equal(t, 0.0, res.Components.ExclusionPenalty)
	assert.Equal(t, 4.1, res.Total)

	assert.Equal(t, []string{"HIGH:data analyst", "HIGH:python"}, res.MatchedKeywords)
	assert.Equal(t, []string{"SQL"}, res.MatchedSkills)
	assert.Empty(t, res.MatchedExclusions)
}

func TestScoreSeniorWithExclusion(t *testing.T) {
	s := testScorer(nil)
	res := s.Score(domain.Posting{
		Title:       "Senior Data Scientist",
		Description: "Lead the team. Unpaid trial period.",
		Location:    "Berlin",
	})

	assert.Equal(t, 0.0, res.Components.ExperienceMatch)
	assert.Equal(t, 2.0, res.Components.ExclusionPenalty)
	assert.Equal(t, []string{"unpaid"}, res.MatchedExclusions)
	assert.Equal(t, 0.0, res.Total)
	assert.Less(t, res.Total, config.Default().Scoring.MinScore)
}

func TestSeniorIndicatorBeatsJunior(t *testing.T) {
	s := testScorer(nil)
	res := s.Score(domain.Posting{Title: "Alternance - poste de lead developer"})
	assert.Equal(t, 0.0, res.Components.ExperienceMatch)
	assert.Equal(t, 1.0, res.Components.JobTypeMatch)
}

func TestKeywordCapSharedAcrossPriorities(t *testing.T) {
	s := testScorer(func(p *config.Profile) {
		p.HighPriorityKeywords = []string{"a1", "a2", "a3", "a4", "a5", "a6", "a7", "a8", "a9"}
		p.MediumPriorityKeywords = []string{"b1", "b2", "b3"}
	})
	res := s.Score(domain.Posting{Description: "a1 a2 a3 a4 a5 a6 a7 a8 a9 b1 b2 b3"})
	assert.Equal(t, 4.0, res.Components.KeywordMatch)
	assert.Len(t, res.MatchedKeywords, 12, "every match is recorded even past the cap")
	assert.Equal(t, "MEDIUM:b1", res.MatchedKeywords[9])
}

func TestSkillsMatchWholeWords(t *testing.T) {
	s := testScorer(func(p *config.Profile) {
		p.Skills = []string{"R", "Java", "Go", "Spark"}
	})
	res := s.Score(domain.Posting{Description: "Rust and JavaScript shop, some spark jobs, GO services"})
	assert.Equal(t, []string{"Go", "Spark"}, res.MatchedSkills)
	assert.InDelta(t, 0.6, res.Components.SkillMatch, 1e-9)

	fr := testScorer(func(p *config.Profile) {
		p.Skills = []string{"Sécurité", "Qualité", "Créativité", "C++"}
	})
	res = fr.Score(domain.Posting{Description: "Mission: sécurité réseau et qualité des données. Insécurité exclue. Outils C++."})
	assert.Equal(t, []string{"Sécurité", "Qualité", "C++"}, res.MatchedSkills)
	assert.InDelta(t, 0.9, res.Components.SkillMatch, 1e-9)
}

func TestSkillCap(t *testing.T) {
	var skills, words []string
	for i := 0; i < 12; i++ {
		w := "skill" + string(rune('a'+i))
		skills = append(skills, w)
		words = append(words, w)
	}
	s := testScorer(func(p *config.Profile) { p.Skills = skills })
	res := s.Score(domain.Posting{Requirements: strings.Join(words, ", ")})
	assert.Equal(t, 3.0, res.Components.SkillMatch)
}

func TestJobTypeScore(t *testing.T) {
	tests := []struct {
		name      string
		roleTypes []string
		posting   domain.Posting
		want      float64
	}{
		{"explicit field", []string{"alternance"}, domain.Posting{JobType: "Alternance (24 mois)"}, 1.0},
		{"title", []string{"alternance"}, domain.Posting{Title: "Data Alternance"}, 1.0},
		{"permanent not preferred", []string{"alternance"}, domain.Posting{Description: "Poste en CDI"}, 0.3},
		{"permanent preferred", []string{"cdi"}, domain.Posting{Description: "Poste en CDI"}, 1.0},
		{"neutral", []string{"alternance"}, domain.Posting{Description: "Full-time role"}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testScorer(func(p *config.Profile) { p.RoleTypes = tt.roleTypes })
			assert.Equal(t, tt.want, s.Score(tt.posting).Components.JobTypeMatch)
		})
	}
}

func TestLocationScore(t *testing.T) {
	s := testScorer(nil)
	tests := map[string]float64{
		"Paris 75008":       0.5,
		"Lyon":              0.3,
		"Remote - EU":       0.4,
		"Télétravail total": 0.4,
		"Berlin":            0.1,
		"":                  0.1,
	}
	for loc, want := range tests {
		assert.Equal(t, want, s.Score(domain.Posting{Location: loc}).Components.LocationMatch, loc)
	}
}

func TestRecencyBuckets(t *testing.T) {
	s := testScorer(nil)
	tests := []struct {
		name string
		p    domain.Posting
		want float64
	}{
		{"today", domain.Posting{PostedAt: ago(3 * time.Hour)}, 0.5},
		{"one day", domain.Posting{PostedAt: ago(36 * time.Hour)}, 0.5},
		{"three days", domain.Posting{PostedAt: ago(3*24*time.Hour + time.Hour)}, 0.4},
		{"a week", domain.Posting{PostedAt: ago(6 * 24 * time.Hour)}, 0.3},
		{"two weeks", domain.Posting{PostedAt: ago(10 * 24 * time.Hour)}, 0.2},
		{"old", domain.Posting{PostedAt: ago(40 * 24 * time.Hour)}, 0.1},
		{"future", domain.Posting{PostedAt: ago(-48 * time.Hour)}, 0.5},
		{"missing", domain.Posting{}, 0.25},
		{"unparseable", domain.Posting{PostedRaw: "il y a quelque temps"}, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Score(tt.p).Components.Recency)
		})
	}
}

func TestExclusionPenaltyCap(t *testing.T) {
	s := testScorer(func(p *config.Profile) { p.Exclusions = []string{"unpaid", "bénévole", "freelance", "Unpaid"} })
	res := s.Score(domain.Posting{Description: "unpaid bénévole freelance"})
	assert.Equal(t, 5.0, res.Components.ExclusionPenalty)
	assert.Equal(t, []string{"unpaid", "bénévole", "freelance"}, res.MatchedExclusions)
}

func TestScoreBoundedAndDeterministic(t *testing.T) {
	vocab := []string{
		"python", "data analyst", "sql", "senior", "junior", "alternance", "cdi", "paris",
		"lyon", "remote", "unpaid", "lead", "stage", "spark", "go", "", "expert", "graduate",
	}
	s := testScorer(func(p *config.Profile) {
		p.MediumPriorityKeywords = []string{"spark", "go"}
		p.Skills = []string{"SQL", "Python", "Go"}
	})
	rng := rand.New(rand.NewSource(42))
	pick := func() string {
		n := rng.Intn(6)
		var parts []string
		for i := 0; i < n; i++ {
			parts = append(parts, vocab[rng.Intn(len(vocab))])
		}
		return strings.Join(parts, " ")
	}

	for i := 0; i < 500; i++ {
		p := domain.Posting{
			Title:        pick(),
			Description:  pick(),
			Requirements: pick(),
			Location:     pick(),
			JobType:      pick(),
		}
		if rng.Intn(2) == 0 {
			p.PostedAt = ago(time.Duration(rng.Intn(30*24)) * time.Hour)
		}
		a := s.Score(p)
		b := s.Score(p)
		require.Equal(t, a, b)
		require.GreaterOrEqual(t, a.Total, 0.0)
		require.LessOrEqual(t, a.Total, 10.0)
	}
}

func TestScorerSatisfiesInterface(t *testing.T) {
	var _ Scorer = testScorer(nil)
}
