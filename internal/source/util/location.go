package util

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var locationSelectors = []string{
	".location",
	".opening .location",
	".job__location",
	".app-title + .location",
	"[itemprop='jobLocation']",
	"[data-qa='location']",
	".posting-categories .location",
	"[data-testid='job-location']",
}

// FindLocation looks for a location on a job page: known selectors first,
// then a "Location:" label in the og:description or the body text.
func FindLocation(doc *goquery.Document) string {
	for _, sel := range locationSelectors {
		if t := CleanText(doc.Find(sel).First().Text()); t != "" {
			return NormalizeLocation(t)
		}
	}
	if v, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
		if loc := LabeledLocation(v); loc != "" {
			return NormalizeLocation(loc)
		}
	}
	return NormalizeLocation(LabeledLocation(doc.Find("body").Text()))
}

// LabeledLocation returns the text after a "Location:" style label, up to
// the next line break or separator.
func LabeledLocation(s string) string {
	low := strings.ToLower(s)
	for _, lab := range []string{"job location:", "locations:", "location:", "lieu :", "lieu:"} {
		i := strings.Index(low, lab)
		if i < 0 {
			continue
		}
		rest := strings.TrimSpace(s[i+len(lab):])
		for _, cut := range []string{"\n", "\r", " | ", " · "} {
			if j := strings.Index(rest, cut); j >= 0 {
				rest = rest[:j]
			}
		}
		if rest = CleanText(rest); rest != "" && len(rest) <= 80 {
			return rest
		}
	}
	return ""
}
