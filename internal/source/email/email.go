package email

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/emersion/go-imap/v2"
	"go.uber.org/zap"

	"jobpipe-engine/internal/config"
	"jobpipe-engine/internal/domain"
	"jobpipe-engine/internal/secrets"
	"jobpipe-engine/internal/source/util"
)

// Source reads LinkedIn job-alert mails from an IMAP mailbox. Every
// scanned message is flagged \Seen once its jobs were extracted, alerts or
// not, so the next run only looks at new mail.
type Source struct {
	Cfg      config.Email
	Dial     Dialer
	Password func(config.Email) (string, error)
	Now      func() time.Time
	// Lookback bounds the IMAP search.
	Lookback time.Duration

	log *zap.SugaredLogger
}

func New(ec config.Email, log *zap.SugaredLogger) *Source {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Source{
		Cfg:      ec,
		Dial:     DialIMAP(log),
		Password: secrets.IMAPPassword,
		Now:      time.Now,
		Lookback: 90 * 24 * time.Hour,
		log:      log,
	}
}

// Name is also the scheduler channel alerts are throttled on.
func (s *Source) Name() string { return config.ChannelEmail }

func (s *Source) Fetch(ctx context.Context) ([]domain.Posting, error) {
	pw, err := s.Password(s.Cfg)
	if err != nil {
		return nil, err
	}
	mb, err := s.Dial(ctx, s.Cfg, pw)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := mb.Close(); err != nil {
			s.log.Debugw("imap close", "err", err)
		}
	}()

	msgs, err := mb.Unseen(ctx, s.Cfg.MaxMessages, s.Now().Add(-s.Lookback))
	if err != nil {
		return nil, err
	}

	var (
		out       []domain.Posting
		processed = make([]imap.UID, 0, len(msgs))
		alerts    int
	)
	for _, m := range msgs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		headerFallback(&m)
		pm := parseRFC822(m.Raw, m.Subject)
		body := pm.HTML
		if body == "" {
			body = pm.Plain
		}
		if !isAlert(m.From, pm.Subject, body) {
			processed = append(processed, m.UID)
			continue
		}
		jobs, err := ParseAlertHTML(body)
		if err != nil {
			// left unseen so the next run retries it
			s.log.Warnw("alert parse failed", "uid", m.UID, "subject", pm.Subject, "err", err)
			continue
		}
		alerts++
		for _, j := range jobs {
			out = append(out, toPosting(j, m, pm))
		}
		processed = append(processed, m.UID)
	}

	if err := mb.MarkSeen(ctx, processed); err != nil {
		return out, errors.Wrap(err, "mark seen")
	}
	s.log.Infow("mailbox scanned", "messages", len(msgs), "alerts", alerts, "postings", len(out))
	return out, nil
}

func toPosting(j AlertJob, m Message, pm parsedMail) domain.Posting {
	id := j.JobID
	if id == "" {
		sum := sha1.Sum([]byte(pm.MessageID + "|" + j.URL))
		id = "h" + hex.EncodeToString(sum[:8])
	}
	var desc []string
	if j.Company != "" || j.Location != "" {
		desc = append(desc, strings.Trim(j.Company+" · "+j.Location, " ·"))
	}
	if j.Salary != "" {
		desc = append(desc, j.Salary)
	}
	desc = append(desc, "Alert: "+pm.Subject)

	p := domain.Posting{
		SourceSystem: config.ChannelEmail,
		ExternalID:   id,
		Title:        j.Title,
		Company:      j.Company,
		Location:     j.Location,
		Description:  strings.Join(desc, "\n"),
		SalaryRange:  j.Salary,
		URL:          util.CanonicalURL(j.URL),
	}
	if !m.Date.IsZero() {
		t := m.Date.UTC()
		p.PostedAt = &t
	}
	return p
}
