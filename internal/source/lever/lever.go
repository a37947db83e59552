package lever

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"jobpipe-engine/internal/config"
	"jobpipe-engine/internal/domain"
	"jobpipe-engine/internal/source/util"
)

const DefaultBaseURL = "https://api.lever.co/v0/postings"

type Scraper struct {
	Companies []config.Company
	BaseURL   string
	Workers   int

	client  *resty.Client
	limiter *util.HostLimiter
	log     *zap.SugaredLogger
}

func New(companies []config.Company, limiter *util.HostLimiter, log *zap.SugaredLogger) *Scraper {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	client := resty.New()
	client.SetHeader("User-Agent", "jobpipe-engine/1.0 (+local)")
	client.SetTimeout(20 * time.Second)
	return &Scraper{
		Companies: companies,
		BaseURL:   DefaultBaseURL,
		Workers:   4,
		client:    client,
		limiter:   limiter,
		log:       log,
	}
}

func (s *Scraper) Name() string { return config.ChannelLever }

type leverPosting struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	HostedURL  string `json:"hostedUrl"`
	CreatedAt  int64  `json:"createdAt"` // ms epoch
	Categories struct {
		Location   string `json:"location"`
		Team       string `json:"team"`
		Commitment string `json:"commitment"`
	} `json:"categories"`
	Description      string `json:"description"` // html
	DescriptionPlain string `json:"descriptionPlain"`
	Lists            []struct {
		Text    string `json:"text"`
		Content string `json:"content"` // html
	} `json:"lists"`
}

type result struct {
	idx  int
	jobs []domain.Posting
	err  error
}

// Fetch queries every company with a small worker pool. Results keep the
// configured company order; it fails only when every company failed.
func (s *Scraper) Fetch(ctx context.Context) ([]domain.Posting, error) {
	workers := s.Workers
	if workers <= 0 {
		workers = 1
	}

	workCh := make(chan int)
	resCh := make(chan result, len(s.Companies))

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for idx := range workCh {
				cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
				jobs, err := s.fetchCompany(cctx, s.Companies[idx])
				cancel()
				resCh <- result{idx: idx, jobs: jobs, err: err}
			}
		}()
	}

	go func() {
		defer close(workCh)
		for i := range s.Companies {
			select {
			case <-ctx.Done():
				return
			case workCh <- i:
			}
		}
	}()

	wg.Wait()
	close(resCh)

	byIdx := make([][]domain.Posting, len(s.Companies))
	var firstErr error
	failed := 0
	for r := range resCh {
		if r.err != nil {
			co := s.Companies[r.idx]
			s.log.Warnw("lever company failed", "company", co.Name, "slug", co.Slug, "err", r.err)
			failed++
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		byIdx[r.idx] = r.jobs
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failed > 0 && failed == len(s.Companies) {
		return nil, errors.Wrapf(firstErr, "all %d lever companies failed", failed)
	}

	var out []domain.Posting
	for _, jobs := range byIdx {
		out = append(out, jobs...)
	}
	s.log.Debugw("lever fetched", "postings", len(out), "companies", len(s.Companies))
	return out, nil
}

func (s *Scraper) fetchCompany(ctx context.Context, co config.Company) ([]domain.Posting, error) {
	apiURL := fmt.Sprintf("%s/%s", strings.TrimRight(s.BaseURL, "/"), co.Slug)
	if err := s.limiter.WaitURL(ctx, apiURL); err != nil {
		return nil, err
	}

	var postings []leverPosting
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("mode", "json").
		SetResult(&postings).
		Get(apiURL)
	if err != nil {
		return nil, errors.Wrapf(err, "lever get %s", co.Slug)
	}
	if resp.IsError() {
		return nil, errors.Newf("lever %s: status %d", co.Slug, resp.StatusCode())
	}

	out := make([]domain.Posting, 0, len(postings))
	for _, p := range postings {
		if p.ID == "" || strings.TrimSpace(p.Text) == "" {
			continue
		}
		out = append(out, toPosting(co, p))
	}
	return out, nil
}

func toPosting(co config.Company, p leverPosting) domain.Posting {
	desc := strings.TrimSpace(p.DescriptionPlain)
	if desc == "" {
		desc = util.HTMLToText(p.Description)
	}

	var reqs []string
	for _, l := range p.Lists {
		body := util.HTMLToText(l.Content)
		if body == "" {
			continue
		}
		if h := util.CleanText(l.Text); h != "" {
			body = h + "\n" + body
		}
		reqs = append(reqs, body)
	}

	company := co.Name
	if company == "" {
		company = co.Slug
	}
	out := domain.Posting{
		SourceSystem: "lever",
		ExternalID:   co.Slug + ":" + p.ID,
		Title:        util.CleanText(p.Text),
		Company:      company,
		Location:     util.NormalizeLocation(p.Categories.Location),
		Description:  desc,
		Requirements: strings.Join(reqs, "\n\n"),
		JobType:      strings.ToLower(util.CleanText(p.Categories.Commitment)),
		URL:          util.CanonicalURL(p.HostedURL),
	}
	if p.CreatedAt > 0 {
		t := time.UnixMilli(p.CreatedAt).UTC()
		out.PostedAt = &t
	}
	return out
}
