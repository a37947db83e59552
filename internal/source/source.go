package source

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"jobpipe-engine/internal/domain"
	"jobpipe-engine/internal/throttle"
)

// Source produces postings from one job board or mailbox. Name doubles as
// the throttle channel the source is paced on.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]domain.Posting, error)
}

// Permitter grants throttled actions. *throttle.Scheduler implements it.
type Permitter interface {
	RequestPermission(ctx context.Context, channel, action string) (throttle.Grant, error)
}

// Batch is what one source returned.
type Batch struct {
	Source   string
	Postings []domain.Posting
	Err      error
	Took     time.Duration
}

// FetchAll runs every source concurrently, each under its own timeout and
// after a page_load grant on its channel. A failing source is reported in
// its Batch and does not stop the others. Batches keep the input order.
func FetchAll(ctx context.Context, sources []Source, perm Permitter, timeout time.Duration, log *zap.SugaredLogger) []Batch {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	out := make([]Batch, len(sources))
	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			start := time.Now()
			b := Batch{Source: src.Name()}
			defer func() {
				b.Took = time.Since(start)
				out[i] = b
			}()

			if perm != nil {
				if _, err := perm.RequestPermission(ctx, src.Name(), "page_load"); err != nil {
					b.Err = err
					log.Warnw("source not permitted", "channel", src.Name(), "err", err)
					return nil
				}
			}

			fctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			log.Infow("fetching", "source", src.Name())
			b.Postings, b.Err = src.Fetch(fctx)
			if b.Err != nil {
				log.Warnw("source failed", "source", src.Name(), "err", b.Err)
				return nil
			}
			log.Infow("fetched", "source", src.Name(), "postings", len(b.Postings))
			return nil
		})
	}
	_ = g.Wait()
	return out
}
