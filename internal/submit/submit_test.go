package submit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"jobpipe-engine/internal/config"
	"jobpipe-engine/internal/domain"
)

func TestManual(t *testing.T) {
	out, err := Manual{Log: zaptest.NewLogger(t).Sugar()}.Submit(context.Background(), domain.JobRecord{ID: 1}, domain.Application{ID: 2})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNeedsReview, out)
}

func TestWebhook_Outcomes(t *testing.T) {
	var got webhookPayload
	code := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, 0, zaptest.NewLogger(t).Sugar())
	rec := domain.JobRecord{ID: 9, Posting: domain.Posting{Title: "Data Analyst"}, LetterRef: "letters/letter_9_en.txt",
		Score: &domain.ScoreResult{Total: 8.4}}
	app := domain.Application{ID: 3, Method: "webhook"}

	out, err := wh.Submit(context.Background(), rec, app)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSubmitted, out)
	assert.Equal(t, int64(9), got.JobID)
	assert.Equal(t, int64(3), got.ApplicationID)
	assert.Equal(t, 8.4, got.Score)
	assert.Equal(t, "Data Analyst", got.Posting.Title)

	code = http.StatusAccepted
	out, err = wh.Submit(context.Background(), rec, app)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNeedsReview, out)

	code = http.StatusBadGateway
	out, err = wh.Submit(context.Background(), rec, app)
	require.Error(t, err)
	assert.Equal(t, domain.OutcomeFailed, out)
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestWebhook_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	out, err := NewWebhook(url, 0, nil).Submit(context.Background(), domain.JobRecord{}, domain.Application{})
	assert.Error(t, err)
	assert.Equal(t, domain.OutcomeFailed, out)
}

func TestFromConfig(t *testing.T) {
	s, err := FromConfig(config.Application{}, nil)
	require.NoError(t, err)
	assert.IsType(t, Manual{}, s)

	s, err = FromConfig(config.Application{Submitter: "webhook", WebhookURL: "http://localhost:9"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Webhook{}, s)

	_, err = FromConfig(config.Application{Submitter: "webhook"}, nil)
	assert.Error(t, err)
	_, err = FromConfig(config.Application{Submitter: "fax"}, nil)
	assert.Error(t, err)
}
