package greenhouse

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"jobpipe-engine/internal/config"
	"jobpipe-engine/internal/domain"
	"jobpipe-engine/internal/source/util"
)

const DefaultBaseURL = "https://boards.greenhouse.io"

// Scraper reads public Greenhouse job boards, one per company slug.
type Scraper struct {
	Companies []config.Company
	BaseURL   string

	hc      *http.Client
	limiter *util.HostLimiter
	log     *zap.SugaredLogger
}

func New(companies []config.Company, limiter *util.HostLimiter, log *zap.SugaredLogger) *Scraper {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Scraper{
		Companies: companies,
		BaseURL:   DefaultBaseURL,
		hc:        &http.Client{Timeout: 20 * time.Second},
		limiter:   limiter,
		log:       log,
	}
}

func (s *Scraper) Name() string { return config.ChannelGreenhouse }

// Fetch returns the postings of every board that answered. It fails only
// when every board failed.
func (s *Scraper) Fetch(ctx context.Context) ([]domain.Posting, error) {
	var out []domain.Posting
	var firstErr error
	failed := 0
	for _, co := range s.Companies {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		ps, err := s.fetchCompany(ctx, co)
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			s.log.Warnw("greenhouse board failed", "company", co.Name, "slug", co.Slug, "err", err)
			continue
		}
		out = append(out, ps...)
	}
	if failed > 0 && failed == len(s.Companies) {
		return nil, errors.Wrapf(firstErr, "all %d greenhouse boards failed", failed)
	}
	return out, nil
}

func (s *Scraper) get(ctx context.Context, u string) (*goquery.Document, error) {
	if err := s.limiter.WaitURL(ctx, u); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", "jobpipe-engine/1.0 (+local)")

	res, err := s.hc.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", u)
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return nil, errors.Newf("get %s: status %d", u, res.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(res.Body)
	return doc, errors.Wrap(err, "parse html")
}

func (s *Scraper) fetchCompany(ctx context.Context, co config.Company) ([]domain.Posting, error) {
	base := strings.TrimRight(s.BaseURL, "/")
	doc, err := s.get(ctx, fmt.Sprintf("%s/%s", base, co.Slug))
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []domain.Posting
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if strings.HasPrefix(href, "/") {
			href = base + href
		}
		if !strings.HasPrefix(href, base) || !strings.Contains(href, "/jobs/") {
			return
		}
		id := jobID(href)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true

		title := util.CleanText(a.Text())
		if util.LooksLikeJunkTitle(title) {
			title = ""
		}
		out = append(out, domain.Posting{
			SourceSystem: "greenhouse",
			ExternalID:   co.Slug + ":" + id,
			Title:        title,
			Company:      co.Name,
			Location:     util.NormalizeLocation(a.Parent().Find(".location").First().Text()),
			URL:          href,
		})
	})

	for i := range out {
		if err := s.hydrate(ctx, &out[i]); err != nil {
			s.log.Debugw("greenhouse job page skipped", "url", out[i].URL, "err", err)
		}
	}
	return out, nil
}

// hydrate fills title, location, description and posting date from the
// job page.
func (s *Scraper) hydrate(ctx context.Context, p *domain.Posting) error {
	doc, err := s.get(ctx, p.URL)
	if err != nil {
		return err
	}
	if p.Title == "" {
		p.Title = util.CleanText(doc.Find("h1").First().Text())
	}
	if p.Location == "" {
		p.Location = util.FindLocation(doc)
	}
	if sel := doc.Find("#content").First(); sel.Length() > 0 {
		if h, err := sel.Html(); err == nil {
			p.Description = util.HTMLToText(h)
		}
	}
	if v, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			p.PostedAt = &t
		} else {
			p.PostedRaw = v
		}
	}
	return nil
}

// jobID takes the digits that follow /jobs/ in u.
func jobID(u string) string {
	_, tail, ok := strings.Cut(u, "/jobs/")
	if !ok {
		return ""
	}
	end := 0
	for end < len(tail) && tail[end] >= '0' && tail[end] <= '9' {
		end++
	}
	return tail[:end]
}
