package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces outbound page requests. It combines a token bucket with a
// cooldown learned from Retry-After on throttling responses.
type Limiter struct {
	mu       sync.Mutex
	bucket   *rate.Limiter
	cooldown time.Time
	now      func() time.Time
	notifyCh chan struct{}
}

// NewLimiter returns a Limiter allowing rps requests per second with the given
// burst. rps <= 0 disables pacing; the Retry-After cooldown still applies.
func NewLimiter(rps float64, burst int) *Limiter {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		bucket:   rate.NewLimiter(limit, burst),
		now:      time.Now,
		notifyCh: make(chan struct{}),
	}
}

// Wait blocks until a request may be sent or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("Wait: nil context")
	}
	if l == nil {
		return nil
	}
	if l.now == nil || l.notifyCh == nil {
		return fmt.Errorf("Wait: Limiter is not initialized (use NewLimiter)")
	}

	for {
		l.mu.Lock()
		now := l.now()
		if !now.Before(l.cooldown) {
			l.mu.Unlock()
			break
		}
		until := l.cooldown
		ch := l.notifyCh
		l.mu.Unlock()

		timer := time.NewTimer(until.Sub(now))
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return ctx.Err()
		case <-ch:
			if !timer.Stop() {
				<-timer.C
			}
		case <-timer.C:
		}
	}

	return l.bucket.Wait(ctx)
}

// Cooldown returns the time before which no request is sent.
func (l *Limiter) Cooldown() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cooldown
}

func (l *Limiter) signalLocked() {
	close(l.notifyCh)
	l.notifyCh = make(chan struct{})
}

// Observe learns from a response. Throttling responses (429, 503) carrying
// Retry-After extend the cooldown.
func (l *Limiter) Observe(resp *http.Response) {
	if l == nil || resp == nil || l.now == nil {
		return
	}
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return
	}

	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var until time.Time
	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		if seconds <= 0 {
			return
		}
		until = now.Add(time.Duration(seconds) * time.Second)
	} else if at, err := http.ParseTime(retryAfter); err == nil {
		until = at
	} else {
		return
	}

	if until.After(l.cooldown) {
		l.cooldown = until
		l.signalLocked()
	}
}
