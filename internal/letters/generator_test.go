package letters

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"jobpipe-engine/internal/config"
	"jobpipe-engine/internal/domain"
)

func profile() config.Profile {
	return config.Profile{
		FullName:     "Camille Martin",
		Email:        "camille@example.com",
		CurrentStudy: "Master Data Science",
		Skills:       []string{"Python", "SQL", "Tableau", "Docker"},
	}
}

func TestDetectLanguage(t *testing.T) {
	fr := domain.Posting{Title: "Alternance Data Analyst", Description: "Vous rejoindrez une équipe pour des missions dans le domaine de la data", Location: "Lyon"}
	en := domain.Posting{Title: "Data Analyst Intern", Description: "You will work with the team and grow your skills", Location: "London"}
	assert.Equal(t, "fr", DetectLanguage(fr))
	assert.Equal(t, "en", DetectLanguage(en))

	// A French city tips a neutral posting.
	assert.Equal(t, "fr", DetectLanguage(domain.Posting{Title: "Data Analyst", Location: "Paris, France"}))
}

func TestExtractKeywords(t *testing.T) {
	kws := ExtractKeywords(domain.Posting{Title: "ML Engineer", Description: "Python, SQL, Docker and deep learning with PyTorch"})
	assert.Equal(t, []string{"python", "sql", "deep learning", "pytorch", "docker"}, kws)
}

func TestSkillsParagraph(t *testing.T) {
	p := skillsParagraph([]string{"Python", "SQL", "Tableau"}, []string{"python", "sql"}, false)
	assert.Contains(t, p, "Python and SQL")

	p = skillsParagraph([]string{"Python", "SQL", "Tableau"}, []string{"python", "sql"}, true)
	assert.Contains(t, p, "Python et SQL")

	// nothing matches: first three skills
	p = skillsParagraph([]string{"Excel", "Tableau", "Power BI", "Looker"}, nil, false)
	assert.Contains(t, p, "Excel, Tableau and Power BI")

	p = skillsParagraph(nil, nil, false)
	assert.Contains(t, p, "solid technical foundation")
}

func TestGenerate_WritesFile(t *testing.T) {
	dir := t.TempDir()
	g, err := New(dir, config.Letters{}, profile(), zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	g.Now = func() time.Time { return time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC) }

	rec := domain.JobRecord{ID: 17, Posting: domain.Posting{
		Title:       "Alternance Data Analyst",
		Company:     "Acme",
		Location:    "Paris",
		Description: "Python et SQL pour une équipe innovation",
	}}
	path, err := g.Generate(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "letter_17_fr.txt"), path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	body := string(b)
	assert.True(t, strings.HasPrefix(body, "Camille Martin\n\ncamille@example.com"))
	assert.Contains(t, body, "02/04/2026")
	assert.Contains(t, body, "Objet : Candidature pour le poste de Alternance Data Analyst")
	assert.Contains(t, body, "Python et SQL")
	assert.Contains(t, body, "chez Acme")
	assert.NotContains(t, body, "\n\n\n")

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestNew_TemplateOverride(t *testing.T) {
	dir := t.TempDir()
	custom := filepath.Join(dir, "en.tmpl")
	require.NoError(t, os.WriteFile(custom, []byte("Hi {{.Company}}, {{.Name}} here."), 0o644))

	g, err := New(dir, config.Letters{TemplateEN: custom}, profile(), nil)
	require.NoError(t, err)
	out, err := g.Render(domain.JobRecord{Posting: domain.Posting{Company: "Globex"}}, "en")
	require.NoError(t, err)
	assert.Equal(t, "Hi Globex, Camille Martin here.\n", out)

	_, err = g.Render(domain.JobRecord{}, "de")
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(custom, []byte("{{.Nope}}"), 0o644))
	g, err = New(dir, config.Letters{TemplateEN: custom}, profile(), nil)
	require.NoError(t, err)
	_, err = g.Render(domain.JobRecord{}, "en")
	assert.Error(t, err, "unknown fields fail at render time")

	_, err = New(dir, config.Letters{TemplateFR: filepath.Join(dir, "missing.tmpl")}, profile(), nil)
	assert.Error(t, err)
}

func TestGenerate_CanceledContext(t *testing.T) {
	g, err := New(t.TempDir(), config.Letters{}, profile(), nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Generate(ctx, domain.JobRecord{ID: 1})
	assert.ErrorIs(t, err, context.Canceled)
}
