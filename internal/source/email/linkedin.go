package email

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobpipe-engine/internal/source/util"
)

// AlertJob is one job card from a LinkedIn job-alert mail.
type AlertJob struct {
	JobID    string
	Title    string
	Company  string
	Location string
	Salary   string
	URL      string
}

var (
	reSalary = regexp.MustCompile(`(?i)(?:[$€£]\s?\d[\d\s,.]*(?:k|m)?|\d[\d\s,.]*(?:k|m)?\s?[$€£])\s*(?:[-–]\s*(?:[$€£]\s?)?\d[\d\s,.]*(?:k|m)?\s?[$€£]?)?\s*/\s*(?:year|yr|an|mois|month)`)
	reJobID  = regexp.MustCompile(`/jobs/view/(\d+)`)
)

// ParseAlertHTML extracts job cards. Several anchors usually point at the
// same job (logo, title, "view job"); they are merged by job id and the
// most title-like text wins.
func ParseAlertHTML(body string) ([]AlertJob, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	byKey := map[string]*AlertJob{}
	var order []string

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := unwrapRedirect(strings.TrimSpace(a.AttrOr("href", "")))
		if !looksLikeJobURL(href) {
			return
		}
		id := ""
		if m := reJobID.FindStringSubmatch(href); len(m) == 2 {
			id = m[1]
		}
		key := id
		if key == "" {
			key = util.CanonicalURL(href)
		}

		j, ok := byKey[key]
		if !ok {
			j = &AlertJob{JobID: id, URL: jobURL(id, href)}
			byKey[key] = j
			order = append(order, key)
		}

		if cand := stripBadges(util.CleanText(a.Text())); betterTitle(cand, j.Title) {
			j.Title = cand
		}

		card := a.Closest("table")
		if card.Length() == 0 {
			card = a.Parent()
		}
		card.Find("p").Each(func(_ int, p *goquery.Selection) {
			t := util.CleanText(p.Text())
			if t == "" {
				return
			}
			if strings.Contains(t, " · ") {
				if j.Company == "" {
					company, loc, _ := strings.Cut(t, " · ")
					j.Company = strings.TrimSpace(company)
					j.Location = util.NormalizeLocation(loc)
				}
				return
			}
			if cand := stripBadges(t); betterTitle(cand, j.Title) {
				j.Title = cand
			}
		})
		if j.Salary == "" {
			if m := reSalary.FindString(util.CleanText(card.Text())); m != "" {
				j.Salary = strings.TrimSpace(m)
			}
		}
	})

	out := make([]AlertJob, 0, len(order))
	for _, k := range order {
		if j := byKey[k]; strings.TrimSpace(j.Title) != "" {
			out = append(out, *j)
		}
	}
	return out, nil
}

// jobURL rebuilds a clean posting URL when the id is known.
func jobURL(id, href string) string {
	if id != "" {
		return "https://www.linkedin.com/jobs/view/" + id + "/"
	}
	return util.CanonicalURL(href)
}

func looksLikeJobURL(href string) bool {
	h := strings.ToLower(href)
	return strings.Contains(h, "linkedin.com") && strings.Contains(h, "/jobs/view/")
}

// unwrapRedirect follows ?url= wrappers and Google /url?q= redirects.
func unwrapRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if raw := u.Query().Get("url"); raw != "" {
		if uu, err := url.Parse(raw); err == nil && uu.Host != "" {
			return uu.String()
		}
	}
	if strings.Contains(strings.ToLower(u.Host), "google.") && strings.HasPrefix(u.Path, "/url") {
		if uu, err := url.Parse(u.Query().Get("q")); err == nil && uu.Host != "" {
			return uu.String()
		}
	}
	return u.String()
}

func isAlert(from, subject, body string) bool {
	if strings.Contains(strings.ToLower(from), "jobalerts-noreply") {
		return true
	}
	s := strings.ToLower(subject)
	if !strings.Contains(s, "job alert") && !strings.Contains(s, "alerte") && !strings.Contains(s, "linkedin") {
		return false
	}
	return looksLikeJobURL(body)
}

var badges = []string{"Actively recruiting", "Recrute activement", "Easy Apply", "Candidature simplifiée", "Promoted", "Promu"}

func stripBadges(s string) string {
	for _, b := range badges {
		s = strings.ReplaceAll(s, b, "")
	}
	low := strings.ToLower(s)
	for _, noise := range []string{"alumni", "connections", "relations", "applicants", "candidats", "school"} {
		if strings.Contains(low, noise) {
			return ""
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

// betterTitle reports whether candidate should replace current.
func betterTitle(candidate, current string) bool {
	if candidate == "" {
		return false
	}
	cs := titleScore(candidate)
	if current == "" {
		return cs >= 5
	}
	ks := titleScore(current)
	if ks >= 8 && cs < ks {
		return false
	}
	return cs >= ks+3
}

var (
	titleWords = []string{
		"engineer", "ingénieur", "developer", "développeur", "software", "backend", "frontend",
		"data", "ml", "ai", "ia", "scientist", "analyst", "analyste", "quant", "consultant",
		"intern", "stage", "stagiaire", "alternance", "alternant", "apprenti", "chargé",
	}
	ctaWords      = []string{"apply", "postuler", "view job", "voir l'offre", "see job", "learn more", "sign in"}
	locationWords = []string{"remote", "télétravail", "hybrid", "hybride", "on-site", "sur site", "france"}
	levelWords    = []string{"sr", "senior", "jr", "junior", "i", "ii", "iii", "lead", "h/f", "f/h"}
)

func titleScore(s string) int {
	if s == "" {
		return -100
	}
	l := strings.ToLower(s)
	if strings.Contains(l, "unsubscribe") || strings.Contains(l, "désabonner") ||
		(strings.Contains(l, "manage") && strings.Contains(l, "alert")) {
		return -50
	}
	if strings.Contains(l, "http://") || strings.Contains(l, "https://") || strings.Contains(l, "www.") {
		return -30
	}

	score := 0
	if strings.ContainsAny(s, "$€£") || reSalary.MatchString(s) {
		score -= 8
	}
	for _, w := range ctaWords {
		if strings.Contains(l, w) {
			score -= 6
		}
	}
	for _, w := range locationWords {
		if strings.Contains(l, w) {
			score -= 3
		}
	}
	if strings.ContainsAny(s, "|•") {
		score -= 2
	}
	for _, w := range titleWords {
		if containsWord(l, w) {
			score += 4
			break
		}
	}
	for _, w := range levelWords {
		if containsWord(l, w) {
			score += 2
		}
	}

	switch n := len([]rune(s)); {
	case n >= 6 && n <= 80:
		score += 2
	case n < 4 || n > 140:
		score -= 6
	}
	if strings.HasSuffix(s, ".") || strings.Contains(l, "you will") || strings.Contains(l, "vous serez") {
		score -= 4
	}

	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits >= 6 {
		score -= 4
	}
	return score
}

// containsWord matches needle only between word boundaries, so "sr" does
// not hit "sre".
func containsWord(hay, needle string) bool {
	bound := func(b byte) bool {
		return strings.IndexByte(" \t\n-/\\()[]{},.:;|", b) >= 0
	}
	for i := 0; ; {
		j := strings.Index(hay[i:], needle)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(needle)
		if (start == 0 || bound(hay[start-1])) && (end == len(hay) || bound(hay[end])) {
			return true
		}
		i = start + 1
	}
}
