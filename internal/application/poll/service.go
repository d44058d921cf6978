package poll

import (
	"context"
	"errors"
	"time"

	"convcli/internal/domain/job"
	"github.com/sirupsen/logrus"
)

const (
	defaultInterval    = 3 * time.Second
	defaultMaxAttempts = 20
)

// Options bound one wait. Call sites pick intervals and budgets matching the
// expected job duration; nothing here is hardcoded per endpoint.
type Options struct {
	Interval    time.Duration
	MaxAttempts int
	// OnProgress fires only when the observed state differs from the
	// previous poll, so an unchanged status produces no output noise.
	// Unknown states are still-running but visible here.
	OnProgress func(job.Job)
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = defaultInterval
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	return o
}

// Service drives a submitted job to a terminal state by bounded polling.
type Service struct {
	fetcher StatusFetcher
	log     *logrus.Logger
}

// NewService creates a poller with an injected status fetcher.
func NewService(fetcher StatusFetcher, log *logrus.Logger) *Service {
	return &Service{fetcher: fetcher, log: log}
}

// AwaitCompletion polls the job until it reaches Completed, Failed or
// Cancelled, returning that snapshot. When the attempt budget runs out while
// the job is still Queued/Processing/Unknown it returns *job.TimeoutError;
// the job keeps running server-side and the same id can be polled again
// later.
//
// Transport failures during the wait are treated as transient blips: they
// consume an attempt and polling continues. Decoded API rejections and an
// unknown job id abort immediately.
func (s *Service) AwaitCompletion(ctx context.Context, token, id string, opts Options) (job.Job, error) {
	opts = opts.withDefaults()

	lastState := job.State("")
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if err := sleep(ctx, opts.Interval); err != nil {
			return job.Job{}, err
		}

		j, err := s.fetcher.FetchStatus(ctx, token, id)
		if err != nil {
			var transport *job.TransportError
			if errors.As(err, &transport) {
				s.log.WithFields(logrus.Fields{"job_id": id, "attempt": attempt}).Warnf("status poll failed, will retry: %v", transport.Err)
				continue
			}
			return job.Job{}, err
		}

		if j.State != lastState {
			lastState = j.State
			if opts.OnProgress != nil {
				opts.OnProgress(j)
			}
		}
		if j.Terminal() {
			return j, nil
		}
	}

	return job.Job{}, &job.TimeoutError{JobID: id, AttemptsMade: opts.MaxAttempts}
}

// AwaitSubmitted resolves a freshly submitted job. A cache hit that came back
// already terminal is returned as-is with zero polls.
func (s *Service) AwaitSubmitted(ctx context.Context, token string, submitted job.Job, opts Options) (job.Job, error) {
	if submitted.Terminal() {
		return submitted, nil
	}
	return s.AwaitCompletion(ctx, token, submitted.ID, opts)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
