package submit

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"jobpipe-engine/internal/config"
	"jobpipe-engine/internal/domain"
)

// Manual leaves sending to a person: every application needs review and
// is later confirmed with ConfirmSubmitted.
type Manual struct {
	Log *zap.SugaredLogger
}

func (m Manual) Submit(_ context.Context, rec domain.JobRecord, app domain.Application) (domain.SubmitOutcome, error) {
	if m.Log != nil {
		m.Log.Infow("apply by hand", "job_id", rec.ID, "application_id", app.ID,
			"company", rec.Posting.Company, "title", rec.Posting.Title, "url", rec.Posting.URL, "letter", rec.LetterRef)
	}
	return domain.OutcomeNeedsReview, nil
}

// Webhook posts the application to an external service. 2xx means
// submitted, 202 means the service accepted it for manual completion and
// anything else is a failure.
type Webhook struct {
	client *resty.Client
	url    string
	log    *zap.SugaredLogger
}

func NewWebhook(url string, timeout time.Duration, log *zap.SugaredLogger) *Webhook {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("User-Agent", "jobpipe-engine/1.0")
	client.SetTimeout(timeout)
	return &Webhook{client: client, url: url, log: log}
}

type webhookPayload struct {
	ApplicationID int64          `json:"application_id"`
	JobID         int64          `json:"job_id"`
	Method        string         `json:"method"`
	Posting       domain.Posting `json:"posting"`
	Score         float64        `json:"score"`
	LetterRef     string         `json:"letter_ref,omitempty"`
}

type webhookReply struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (w *Webhook) Submit(ctx context.Context, rec domain.JobRecord, app domain.Application) (domain.SubmitOutcome, error) {
	var reply webhookReply
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(webhookPayload{
			ApplicationID: app.ID,
			JobID:         rec.ID,
			Method:        app.Method,
			Posting:       rec.Posting,
			Score:         rec.Total(),
			LetterRef:     rec.LetterRef,
		}).
		SetResult(&reply).
		Post(w.url)
	if err != nil {
		return domain.OutcomeFailed, errors.Wrap(err, "post application webhook")
	}

	code := resp.StatusCode()
	w.log.Debugw("webhook replied", "job_id", rec.ID, "status", code, "reply", reply.Status)
	switch {
	case code == 202:
		return domain.OutcomeNeedsReview, nil
	case code >= 200 && code < 300:
		return domain.OutcomeSubmitted, nil
	default:
		return domain.OutcomeFailed, errors.Newf("webhook returned HTTP %d: %s", code, truncate(string(resp.Body()), 200))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Submitter is what the apply stage calls.
type Submitter interface {
	Submit(ctx context.Context, rec domain.JobRecord, app domain.Application) (domain.SubmitOutcome, error)
}

// FromConfig picks the submitter named in the application section.
func FromConfig(ac config.Application, log *zap.SugaredLogger) (Submitter, error) {
	switch ac.Submitter {
	case "", "manual":
		return Manual{Log: log}, nil
	case "webhook":
		if ac.WebhookURL == "" {
			return nil, errors.New("webhook submitter needs application.webhook_url")
		}
		return NewWebhook(ac.WebhookURL, 0, log), nil
	default:
		return nil, errors.Newf("unknown submitter %q", ac.Submitter)
	}
}
