package letters

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"jobpipe-engine/internal/config"
	"jobpipe-engine/internal/domain"
)

//go:embed templates/*.tmpl
var defaultTemplates embed.FS

// Generator renders cover letters from the profile and a job record and
// writes them as text files under Dir.
type Generator struct {
	Dir     string
	Profile config.Profile
	Now     func() time.Time
	Log     *zap.SugaredLogger

	tmpl map[string]*template.Template
}

// New loads the French and English templates. A non-empty path in lc
// replaces the embedded default for that language.
func New(dir string, lc config.Letters, profile config.Profile, log *zap.SugaredLogger) (*Generator, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	g := &Generator{Dir: dir, Profile: profile, Now: time.Now, Log: log, tmpl: map[string]*template.Template{}}
	for lang, override := range map[string]string{"fr": lc.TemplateFR, "en": lc.TemplateEN} {
		t, err := loadTemplate(lang, override)
		if err != nil {
			return nil, err
		}
		g.tmpl[lang] = t
	}
	return g, nil
}

func loadTemplate(lang, path string) (*template.Template, error) {
	var src []byte
	var err error
	if path != "" {
		src, err = os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s template", lang)
		}
	} else {
		src, err = defaultTemplates.ReadFile("templates/letter_" + lang + ".tmpl")
		if err != nil {
			return nil, errors.Wrapf(err, "embedded %s template", lang)
		}
	}
	t, err := template.New(lang).Option("missingkey=error").Parse(string(src))
	return t, errors.Wrapf(err, "parse %s template", lang)
}

type letterData struct {
	Name                string
	Email               string
	Phone               string
	Date                string
	Company             string
	Title               string
	JobType             string
	CurrentStudy        string
	Passion             string
	SkillsParagraph     string
	MotivationParagraph string
	CompanyParagraph    string
}

// Generate writes the letter for rec and returns its path.
func (g *Generator) Generate(ctx context.Context, rec domain.JobRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	lang := DetectLanguage(rec.Posting)
	body, err := g.Render(rec, lang)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(g.Dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create letters dir")
	}
	path := filepath.Join(g.Dir, fmt.Sprintf("letter_%d_%s.txt", rec.ID, lang))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(body), 0o644); err != nil {
		return "", errors.Wrap(err, "write letter")
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", errors.Wrap(err, "rename letter")
	}
	g.Log.Infow("letter generated", "job_id", rec.ID, "lang", lang, "path", path)
	return path, nil
}

// Render produces the letter text for rec in lang ("fr" or "en").
func (g *Generator) Render(rec domain.JobRecord, lang string) (string, error) {
	t, ok := g.tmpl[lang]
	if !ok {
		return "", errors.Newf("no template for language %q", lang)
	}
	p := rec.Posting
	fr := lang == "fr"

	jobType := p.JobType
	if jobType == "" {
		jobType = pick(fr, "alternance", "internship")
	}
	study := g.Profile.CurrentStudy
	if study == "" {
		study = "Data Science"
	}
	passion := pick(fr, "l'intelligence artificielle et la data science", "AI and data science")
	if strings.Contains(strings.ToLower(p.Title), "quant") {
		passion = pick(fr, "la finance quantitative", "quantitative finance")
	}

	data := letterData{
		Name:                g.Profile.FullName,
		Email:               g.Profile.Email,
		Phone:               g.Profile.Phone,
		Date:                g.now().Format("02/01/2006"),
		Company:             p.Company,
		Title:               p.Title,
		JobType:             jobType,
		CurrentStudy:        study,
		Passion:             passion,
		SkillsParagraph:     skillsParagraph(g.Profile.Skills, ExtractKeywords(p), fr),
		MotivationParagraph: motivationParagraph(p.Title, fr),
		CompanyParagraph:    companyParagraph(p.Company, p.Description, fr),
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", errors.Wrapf(err, "render %s letter for job %d", lang, rec.ID)
	}
	return tidy(buf.String()), nil
}

func (g *Generator) now() time.Time {
	if g.Now == nil {
		return time.Now()
	}
	return g.Now()
}

// tidy trims every line and separates the non-empty ones by a blank line.
func tidy(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n\n") + "\n"
}

func pick(fr bool, a, b string) string {
	if fr {
		return a
	}
	return b
}
