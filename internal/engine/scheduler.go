package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tenderscan/internal/tender"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"
)

// PageFetcher retrieves the raw content of one listing page.
type PageFetcher interface {
	Fetch(ctx context.Context, page tender.PageID) ([]byte, error)
}

// RecordExtractor turns raw page content into records.
type RecordExtractor interface {
	Extract(raw []byte) ([]tender.Record, error)
}

const (
	DefaultConcurrency  = 5
	DefaultRetries      = 2
	DefaultRetryBackoff = 500 * time.Millisecond

	// MaxRetryBackoff caps a single wait between attempts.
	MaxRetryBackoff = 30 * time.Second
)

type SchedulerOptions struct {
	// Concurrency is the number of long-lived workers, and so the ceiling on
	// simultaneous fetch+extract operations.
	Concurrency int

	// Retries is how many extra attempts a retryable failure gets.
	Retries int

	// RetryBackoff is the wait before the first retry; it doubles afterwards,
	// up to MaxRetryBackoff.
	RetryBackoff time.Duration
}

type Scheduler struct {
	fetcher     PageFetcher
	extractor   RecordExtractor
	concurrency int
	retries     int
	backoff     time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewScheduler(f PageFetcher, x RecordExtractor, opts SchedulerOptions) (*Scheduler, error) {
	if f == nil {
		return nil, errors.New("fetcher is nil")
	}
	if x == nil {
		return nil, errors.New("extractor is nil")
	}
	if opts.Concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be >= 1, got %d", opts.Concurrency)
	}
	if opts.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", opts.Retries)
	}
	if opts.RetryBackoff < 0 {
		return nil, fmt.Errorf("retry backoff must be >= 0, got %s", opts.RetryBackoff)
	}
	return &Scheduler{
		fetcher:     f,
		extractor:   x,
		concurrency: opts.Concurrency,
		retries:     opts.Retries,
		backoff:     opts.RetryBackoff,
		sleep:       sleepContext,
	}, nil
}

// Execute starts the worker pool and streams one PageResult per page received
// on jobs.
//
// Channel semantics:
//   - Exactly Concurrency workers pull from jobs; with an unbuffered jobs
//     channel a page is only handed over when a worker is idle.
//   - Results arrive in completion order, each tagged with its page.
//   - A failed page is reported as a result and never stops other workers.
//   - The results channel is closed once every worker has exited, which
//     happens when jobs is closed or ctx is done.
//   - Sends on results are not guarded by ctx, so pages already in flight
//     are still reported after cancellation. The caller must drain results
//     until it is closed, or workers block forever.
func (s *Scheduler) Execute(ctx context.Context, jobs <-chan tender.PageID) <-chan PageResult {
	results := make(chan PageResult)

	go func() {
		defer close(results)

		var g errgroup.Group
		for i := 0; i < s.concurrency; i++ {
			g.Go(func() error {
				for {
					select {
					case <-ctx.Done():
						return nil
					case page, ok := <-jobs:
						if !ok {
							return nil
						}
						results <- s.process(ctx, page)
					}
				}
			})
		}
		_ = g.Wait()
	}()

	return results
}

// newBackOff returns the wait policy for one page: exponential from the
// configured backoff, doubling, capped at MaxRetryBackoff, without jitter.
func (s *Scheduler) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.backoff
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = max(MaxRetryBackoff, s.backoff)
	bo.Reset()
	return bo
}

// process fetches and extracts one page, retrying retryable fetch failures
// within the same worker slot.
func (s *Scheduler) process(ctx context.Context, page tender.PageID) PageResult {
	var bo *backoff.ExponentialBackOff
	attempts := 0
	for {
		attempts++
		raw, err := s.fetcher.Fetch(ctx, page)
		if err == nil {
			records, xerr := s.extractor.Extract(raw)
			if xerr != nil {
				return PageResult{
					Page:     page,
					Err:      &tender.PageError{Page: page, Kind: tender.KindMalformed, Err: xerr},
					Attempts: attempts,
				}
			}
			for i := range records {
				records[i].Page = page
			}
			return PageResult{Page: page, Records: records, Attempts: attempts}
		}

		if attempts > s.retries || !retryable(err) || ctx.Err() != nil {
			return PageResult{Page: page, Err: err, Attempts: attempts}
		}
		if bo == nil {
			bo = s.newBackOff()
		}
		if serr := s.sleep(ctx, bo.NextBackOff()); serr != nil {
			return PageResult{Page: page, Err: err, Attempts: attempts}
		}
	}
}

func retryable(err error) bool {
	var pe *tender.PageError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
