package util

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

// HTMLToText flattens an HTML fragment to readable text, one block per
// line. Input that does not parse is returned cleaned.
func HTMLToText(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return CleanText(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return CleanText(fragment)
	}
	doc.Find("script,style").Remove()

	var lines []string
	doc.Find("p,li,h1,h2,h3,h4,div").Each(func(_ int, s *goquery.Selection) {
		if s.Children().Filter("p,li,div,ul,ol").Length() > 0 {
			return
		}
		if t := CleanText(s.Text()); t != "" {
			lines = append(lines, t)
		}
	})
	if len(lines) == 0 {
		return CleanText(doc.Text())
	}
	return strings.Join(lines, "\n")
}

// NormalizeLocation cleans a location label and drops repeated
// comma-separated parts.
func NormalizeLocation(loc string) string {
	loc = CleanText(loc)
	for _, p := range []string{"Location:", "LOCATIONS:", "Locations:"} {
		loc = strings.TrimSpace(strings.TrimPrefix(loc, p))
	}
	if loc == "" {
		return ""
	}

	seen := map[string]bool{}
	var out []string
	for _, part := range strings.Split(loc, ",") {
		part = CleanText(part)
		k := strings.ToLower(part)
		if part == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, part)
	}
	return strings.Join(out, ", ")
}

// LooksLikeJunkTitle catches link texts such as "View job" or "Apply now".
func LooksLikeJunkTitle(t string) bool {
	l := strings.ToLower(t)
	return strings.Contains(l, "view") || strings.Contains(l, "apply")
}
